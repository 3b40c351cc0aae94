package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// loopUnrollMaxTrip bounds how many iterations this pass will ever
// materialize for a single loop, keeping unrolled code size bounded.
const loopUnrollMaxTrip = 4

// LoopUnroll returns the loop-unrolling pass referenced by the O2
// pipeline. spec.md names "loop unrolling" in the pass list and the O2
// pipeline but, unlike SCCP/Mem2Reg/Peephole/Inliner/SimplifyCFG, gives
// it no further semantics (§4.F only documents those five). Given no
// grounding beyond the name and the risk of an unverifiable correctness
// bug in a general unroller (this module never runs the toolchain),
// this pass is scoped narrowly: it fully unrolls only a "counted
// do-while" loop — a single block that is its own sole back-edge
// predecessor, carrying exactly one induction parameter stepped by a
// constant and compared against a constant bound, with nothing live
// out of the loop on the exit edge. Anything else is left untouched;
// a no-op is always safe, which this pass relies on for every shape it
// does not specifically recognize.
func LoopUnroll() Pass {
	return Pass{Name: "loop-unroll", Run: runLoopUnroll}
}

func runLoopUnroll(m *ir.Module, st *Stats, ctxOf func(*ir.Function) *cfg.Context) PreservedAnalyses {
	preserved := PreservesAll
	for _, fn := range m.Funcs {
		ctx := ctxOf(fn)
		if ctx == nil {
			continue
		}
		for {
			ctx = ctxOf(fn)
			h := findCountedLoopHeader(fn, ctx)
			if h == nil {
				break
			}
			if !unrollCountedLoop(fn, ctx, h, st) {
				break
			}
			preserved = PreservesNone
		}
	}
	return preserved
}

func findCountedLoopHeader(fn *ir.Function, ctx *cfg.Context) *ir.Block {
	for _, b := range fn.Blocks {
		if b == fn.Entry() {
			continue
		}
		if !ctx.IsLoopHeader(b) {
			continue
		}
		selfEdge := false
		for _, p := range ctx.Predecessors(b) {
			if p == b {
				selfEdge = true
			}
		}
		if selfEdge {
			return b
		}
	}
	return nil
}

// unrollCountedLoop attempts to recognize and unroll h as a counted
// do-while loop. It returns false (a no-op, leaving the function
// unchanged) whenever the shape doesn't match exactly.
func unrollCountedLoop(fn *ir.Function, ctx *cfg.Context, h *ir.Block, st *Stats) bool {
	if len(h.Params) != 1 {
		return false
	}
	indVar := h.Params[0].Temp

	term := h.Terminator()
	if term == nil || term.Op != ir.OpCBr || len(term.Labels) != 2 {
		return false
	}
	continueIdx, exitIdx := -1, -1
	for i, l := range term.Labels {
		if l == h.Label {
			continueIdx = i
		} else {
			exitIdx = i
		}
	}
	if continueIdx < 0 || exitIdx < 0 {
		return false
	}
	if len(term.BrArgs[exitIdx]) != 0 {
		return false // something escapes the loop on the exit edge; bail out
	}
	exitLabel := term.Labels[exitIdx]

	defOf := buildDefMap(fn)
	for _, in := range h.Instrs {
		if in.Op.IsEHSensitive() {
			return false
		}
	}

	cond := term.Arg(0)
	if cond.Kind != ir.ValTemp {
		return false
	}
	condDef, ok := defOf[cond.Temp]
	if !ok || blockOf(fn, condDef) != h {
		return false
	}

	selfArgs := term.BrArgs[continueIdx]
	if len(selfArgs) != 1 || selfArgs[0].Kind != ir.ValTemp {
		return false
	}
	stepDef, ok := defOf[selfArgs[0].Temp]
	if !ok || blockOf(fn, stepDef) != h {
		return false
	}
	if stepDef.Op != ir.OpIAddOvf && stepDef.Op != ir.OpAdd {
		return false
	}
	var step int64
	switch {
	case stepDef.Arg(0).Kind == ir.ValTemp && stepDef.Arg(0).Temp == indVar && stepDef.Arg(1).Kind == ir.ValConstInt:
		step = stepDef.Arg(1).Int
	case stepDef.Arg(1).Kind == ir.ValTemp && stepDef.Arg(1).Temp == indVar && stepDef.Arg(0).Kind == ir.ValConstInt:
		step = stepDef.Arg(0).Int
	default:
		return false
	}
	if step == 0 {
		return false
	}

	var bound int64
	var cmpVar ir.ValueID
	switch {
	case condDef.Arg(0).Kind == ir.ValTemp && condDef.Arg(1).Kind == ir.ValConstInt:
		cmpVar, bound = condDef.Arg(0).Temp, condDef.Arg(1).Int
	case condDef.Arg(1).Kind == ir.ValTemp && condDef.Arg(0).Kind == ir.ValConstInt:
		cmpVar, bound = condDef.Arg(1).Temp, condDef.Arg(0).Int
	default:
		return false
	}
	if cmpVar != indVar && cmpVar != selfArgs[0].Temp {
		return false
	}
	comparesNext := cmpVar == selfArgs[0].Temp

	preds := findPredecessors(fn, h)
	var preheader *predRef
	for i := range preds {
		if preds[i].block != h {
			preheader = &preds[i]
		}
	}
	if preheader == nil || len(preheader.block.Terminator().BrArgs[preheader.labelIdx]) != 1 {
		return false
	}
	initArg := preheader.block.Terminator().BrArgs[preheader.labelIdx][0]
	if initArg.Kind != ir.ValConstInt {
		return false
	}

	trips, keepsLooping := simulateCountedLoop(initArg.Int, step, bound, condDef.Op, comparesNext)
	if trips < 0 || trips > loopUnrollMaxTrip || keepsLooping {
		return false
	}

	blocks := buildUnrolledCopies(fn, h, indVar, initArg.Int, step, trips, exitLabel)
	if blocks == nil {
		return false
	}

	preheader.block.Terminator().Labels[preheader.labelIdx] = blocks[0].Label
	preheader.block.Terminator().BrArgs[preheader.labelIdx] = nil
	fn.RemoveBlock(h)
	st.BlocksRemoved++
	return true
}

// simulateCountedLoop walks the induction variable forward from init,
// applying the loop's own continuation test at each step, and returns
// the number of full iterations before the test first evaluates false
// (i.e. the do-while loop exits), or -1 if it does not terminate within
// loopUnrollMaxTrip+1 steps. keepsLooping reports whether the simulated
// bound was never reached within the cap, which also disqualifies
// unrolling.
func simulateCountedLoop(init, step, bound int64, cmpOp ir.Opcode, comparesNext bool) (trips int, keepsLooping bool) {
	i := init
	for n := 0; n <= loopUnrollMaxTrip; n++ {
		next := i + step
		testVal := i
		if comparesNext {
			testVal = next
		}
		if !evalIntCompare(cmpOp, testVal, bound) {
			return n + 1, false
		}
		i = next
	}
	return -1, true
}

func evalIntCompare(op ir.Opcode, a, b int64) bool {
	switch op {
	case ir.OpSCmpLT:
		return a < b
	case ir.OpSCmpLE:
		return a <= b
	case ir.OpSCmpGT:
		return a > b
	case ir.OpSCmpGE:
		return a >= b
	case ir.OpICmpEq:
		return a == b
	case ir.OpICmpNe:
		return a != b
	default:
		return false
	}
}

// buildUnrolledCopies materializes trips straight-line copies of h's
// body (excluding its terminator), each with the induction variable
// bound to its concrete per-iteration literal, chained copy-to-copy and
// finally branching to exitLabel. Returns nil if any instruction inside
// h has a result referenced from outside h (this narrow unroller does
// not support values escaping the loop other than via the exit edge,
// which is already required to be empty by the caller).
func buildUnrolledCopies(fn *ir.Function, h *ir.Block, indVar ir.ValueID, init, step int64, trips int, exitLabel string) []*ir.Block {
	if paramReferencedElsewhere(fn, h) {
		return nil
	}
	body := h.Instrs[:len(h.Instrs)-1]
	for _, in := range body {
		if in.HasResult && resultReferencedOutside(fn, h, in.Result) {
			return nil
		}
	}

	blocks := make([]*ir.Block, trips)
	for k := 0; k < trips; k++ {
		nb := fn.AppendBlock(unrollBlockLabel(h.Label, k))
		tempMap := make(map[ir.ValueID]ir.ValueID)
		iVal := ir.ConstInt(init + int64(k)*step)
		remap := func(v ir.Value) ir.Value {
			if v.Kind != ir.ValTemp {
				return v
			}
			if v.Temp == indVar {
				return iVal
			}
			if nid, ok := tempMap[v.Temp]; ok {
				return ir.Temp(nid)
			}
			return v
		}
		for _, in := range body {
			nin := in.Clone()
			for i, a := range nin.Args {
				nin.Args[i] = remap(a)
			}
			if nin.HasResult {
				nid := fn.AllocTemp()
				tempMap[nin.Result] = nid
				nin.Result = nid
			}
			nb.Append(nin)
		}
		blocks[k] = nb
	}
	for k := 0; k < trips-1; k++ {
		blocks[k].Append(&ir.Instr{Op: ir.OpBr, Labels: []string{blocks[k+1].Label}, BrArgs: [][]ir.Value{{}}})
	}
	blocks[trips-1].Append(&ir.Instr{Op: ir.OpBr, Labels: []string{exitLabel}, BrArgs: [][]ir.Value{{}}})
	return blocks
}

func unrollBlockLabel(base string, k int) string {
	const suffixes = "0123456789"
	if k < len(suffixes) {
		return base + ".unroll" + string(suffixes[k])
	}
	return base + ".unrollN"
}

// resultReferencedOutside reports whether id, defined in h, is used by
// any instruction outside h — the narrow case this unroller declines to
// handle, since that would require threading a per-copy value back out
// through a block parameter instead of a plain literal substitution.
func resultReferencedOutside(fn *ir.Function, h *ir.Block, id ir.ValueID) bool {
	for _, b := range fn.Blocks {
		if b == h {
			continue
		}
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				if a.Kind == ir.ValTemp && a.Temp == id {
					return true
				}
			}
			for _, args := range in.BrArgs {
				for _, a := range args {
					if a.Kind == ir.ValTemp && a.Temp == id {
						return true
					}
				}
			}
		}
	}
	return false
}
