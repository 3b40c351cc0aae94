package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// Mem2Reg returns the alloca-promotion pass with conservative SROA (spec
// §4.F.2). An alloca promotes when every use is a direct Load/Store, or a
// Load/Store through a single constant-offset GEP off the alloca (a
// dynamic-offset GEP, or a GEP chained off another GEP, disqualifies it);
// each offset is treated as an independent scalar field. A promotable
// alloca's defining block must dominate every block containing a use.
func Mem2Reg() Pass {
	return Pass{Name: "mem2reg", Run: runMem2Reg}
}

func runMem2Reg(m *ir.Module, st *Stats, ctxOf func(*ir.Function) *cfg.Context) PreservedAnalyses {
	for _, fn := range m.Funcs {
		ctx := ctxOf(fn)
		if ctx == nil {
			continue
		}
		promoteAllocas(fn, ctx, st)
	}
	// Promotion only rewrites values and deletes pure memory instructions;
	// it never changes block successors/edges, so the CFG and dominance
	// relation both survive unchanged.
	return PreservesAll
}

type memField struct {
	typ    ir.Type
	loads  []*ir.Instr
	stores []*ir.Instr
}

type ptrUses struct {
	escapes bool
	loads   []*ir.Instr
	stores  []*ir.Instr
	geps    []*ir.Instr
}

func promoteAllocas(fn *ir.Function, ctx *cfg.Context, st *Stats) bool {
	df := dominanceFrontier(fn, ctx)
	changed := false
	for _, b := range fn.Blocks {
		for _, in := range append([]*ir.Instr(nil), b.Instrs...) {
			if in.Op != ir.OpAlloca {
				continue
			}
			if promoteOneAlloca(fn, ctx, df, b, in, st) {
				changed = true
			}
		}
	}
	return changed
}

func scanPtrUses(fn *ir.Function, ptr ir.ValueID) ptrUses {
	var u ptrUses
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for _, args := range in.BrArgs {
				for _, a := range args {
					if a.Kind == ir.ValTemp && a.Temp == ptr {
						u.escapes = true
					}
				}
			}
			for i, a := range in.Args {
				if !(a.Kind == ir.ValTemp && a.Temp == ptr) {
					continue
				}
				switch {
				case in.Op == ir.OpLoad && i == 0:
					u.loads = append(u.loads, in)
				case in.Op == ir.OpStore && i == 0:
					u.stores = append(u.stores, in)
				case in.Op == ir.OpGEP && i == 0 && len(in.Args) > 1 && in.Args[1].Kind == ir.ValConstInt:
					u.geps = append(u.geps, in)
				default:
					u.escapes = true
				}
			}
		}
	}
	return u
}

func blockOf(fn *ir.Function, target *ir.Instr) *ir.Block {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in == target {
				return b
			}
		}
	}
	return nil
}

func deleteInstrs(fn *ir.Function, list []*ir.Instr) {
	dead := make(map[*ir.Instr]bool, len(list))
	for _, in := range list {
		dead[in] = true
	}
	for _, b := range fn.Blocks {
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if dead[in] {
				continue
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
}

func promoteOneAlloca(fn *ir.Function, ctx *cfg.Context, df map[*ir.Block]map[*ir.Block]bool, allocaBlock *ir.Block, allocaInstr *ir.Instr, st *Stats) bool {
	base := scanPtrUses(fn, allocaInstr.Result)
	if base.escapes {
		return false
	}

	fields := make(map[int64]*memField)
	var toDelete []*ir.Instr

	addLoad := func(offset int64, in *ir.Instr) bool {
		f, ok := fields[offset]
		if !ok {
			f = &memField{typ: in.ResultType}
			fields[offset] = f
		} else if !f.typ.Valid() {
			f.typ = in.ResultType
		} else if f.typ != in.ResultType {
			return false
		}
		f.loads = append(f.loads, in)
		return true
	}
	addStore := func(offset int64, in *ir.Instr) {
		f, ok := fields[offset]
		if !ok {
			f = &memField{}
			fields[offset] = f
		}
		f.stores = append(f.stores, in)
	}

	for _, ld := range base.loads {
		if !addLoad(0, ld) {
			return false
		}
	}
	for _, s := range base.stores {
		addStore(0, s)
	}
	for _, gep := range base.geps {
		offset := gep.Args[1].Int
		gu := scanPtrUses(fn, gep.Result)
		if gu.escapes || len(gu.geps) > 0 {
			return false
		}
		for _, ld := range gu.loads {
			if !addLoad(offset, ld) {
				return false
			}
		}
		for _, s := range gu.stores {
			addStore(offset, s)
		}
		toDelete = append(toDelete, gep)
	}

	for _, f := range fields {
		for _, in := range f.loads {
			if !ctx.Dominates(allocaBlock, blockOf(fn, in)) {
				return false
			}
		}
		for _, in := range f.stores {
			if !ctx.Dominates(allocaBlock, blockOf(fn, in)) {
				return false
			}
		}
	}

	for _, f := range fields {
		promoteField(fn, ctx, df, f, &toDelete)
	}
	toDelete = append(toDelete, allocaInstr)
	deleteInstrs(fn, toDelete)
	st.PromotedAllocas++
	return true
}

// promoteField runs dominance-frontier-based SSA reconstruction for one
// scalar field of a promoted alloca: it inserts block parameters at the
// iterated dominance frontier of the field's stores, then walks the
// dominator tree rewriting loads to the reaching value and threading that
// value through branch arguments at every block owning an inserted param.
func promoteField(fn *ir.Function, ctx *cfg.Context, df map[*ir.Block]map[*ir.Block]bool, f *memField, toDelete *[]*ir.Instr) {
	if len(f.loads) == 0 {
		// Never read: its stores have no observable effect once the
		// alloca itself is gone.
		*toDelete = append(*toDelete, f.stores...)
		return
	}
	defBlocks := make(map[*ir.Block]bool, len(f.stores))
	for _, in := range f.stores {
		defBlocks[blockOf(fn, in)] = true
	}
	idf := iteratedDominanceFrontier(df, defBlocks)

	params := make(map[*ir.Block]ir.ValueID, len(idf))
	for b := range idf {
		id := fn.AllocTemp()
		b.Params = append(b.Params, ir.Param{Type: f.typ, Temp: id})
		params[b] = id
	}

	children := make(map[*ir.Block][]*ir.Block)
	for _, b := range fn.Blocks {
		if b == fn.Entry() {
			continue
		}
		p := ctx.IDom(b)
		if p == nil {
			continue
		}
		children[p] = append(children[p], b)
	}

	storeSet := make(map[*ir.Instr]bool, len(f.stores))
	for _, in := range f.stores {
		storeSet[in] = true
	}
	loadSet := make(map[*ir.Instr]bool, len(f.loads))
	for _, in := range f.loads {
		loadSet[in] = true
	}

	zero := ir.ConstInt(0)
	if f.typ.IsFloat() {
		zero = ir.ConstFloat(0)
	}

	var walk func(b *ir.Block, incoming ir.Value)
	walk = func(b *ir.Block, incoming ir.Value) {
		current := incoming
		if id, ok := params[b]; ok {
			current = ir.Temp(id)
		}
		for _, in := range b.Instrs {
			if in.IsTerminator() {
				break
			}
			if storeSet[in] {
				current = in.Args[1]
				*toDelete = append(*toDelete, in)
				continue
			}
			if loadSet[in] {
				substituteValue(fn, in.Result, current)
				*toDelete = append(*toDelete, in)
			}
		}
		if term := b.Terminator(); term != nil {
			for i, label := range term.Labels {
				target := fn.BlockByLabel(label)
				if target == nil {
					continue
				}
				if _, ok := params[target]; ok {
					term.BrArgs[i] = append(term.BrArgs[i], current)
				}
			}
		}
		for _, c := range children[b] {
			walk(c, current)
		}
	}
	walk(fn.Entry(), zero)

	eliminateRedundantParams(fn, params)
}

// eliminateRedundantParams drops a freshly inserted block parameter when
// every non-self-referencing incoming argument agrees on the same value,
// replacing it with that value directly — the "trivial phi" pruning
// mem2reg's block-parameter insertion performs to avoid leaving
// join-point parameters where the dominance frontier over-approximated a
// real merge.
func eliminateRedundantParams(fn *ir.Function, params map[*ir.Block]ir.ValueID) {
	for b, id := range params {
		paramIdx := -1
		for i, p := range b.Params {
			if p.Temp == id {
				paramIdx = i
				break
			}
		}
		if paramIdx < 0 {
			continue
		}
		preds := findPredecessors(fn, b)
		var common ir.Value
		first := true
		redundant := true
		for _, pe := range preds {
			v := pe.block.Terminator().BrArgs[pe.labelIdx][paramIdx]
			if v.Kind == ir.ValTemp && v.Temp == id {
				continue
			}
			if first {
				common = v
				first = false
				continue
			}
			if !v.Equal(common) {
				redundant = false
				break
			}
		}
		if !redundant || first {
			continue
		}
		substituteValue(fn, id, common)
		b.Params = append(b.Params[:paramIdx], b.Params[paramIdx+1:]...)
		for _, pe := range preds {
			args := pe.block.Terminator().BrArgs[pe.labelIdx]
			pe.block.Terminator().BrArgs[pe.labelIdx] = append(args[:paramIdx], args[paramIdx+1:]...)
		}
	}
}

// dominanceFrontier computes, for every block, the set of blocks in its
// dominance frontier (Cytron et al.), using the CFG context's exposed
// predecessor and immediate-dominator queries. It lives here rather than
// in internal/cfg because Mem2Reg is its only consumer.
func dominanceFrontier(fn *ir.Function, ctx *cfg.Context) map[*ir.Block]map[*ir.Block]bool {
	df := make(map[*ir.Block]map[*ir.Block]bool, len(fn.Blocks))
	for _, b := range fn.Blocks {
		df[b] = make(map[*ir.Block]bool)
	}
	for _, n := range fn.Blocks {
		preds := ctx.Predecessors(n)
		if len(preds) < 2 {
			continue
		}
		idomN := ctx.IDom(n)
		for _, p := range preds {
			runner := p
			for runner != nil && runner != idomN {
				df[runner][n] = true
				runner = ctx.IDom(runner)
			}
		}
	}
	return df
}

func iteratedDominanceFrontier(df map[*ir.Block]map[*ir.Block]bool, defs map[*ir.Block]bool) map[*ir.Block]bool {
	idf := make(map[*ir.Block]bool)
	var worklist []*ir.Block
	for b := range defs {
		worklist = append(worklist, b)
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for f := range df[b] {
			if !idf[f] {
				idf[f] = true
				worklist = append(worklist, f)
			}
		}
	}
	return idf
}
