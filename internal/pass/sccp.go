package pass

import (
	"math"

	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// SCCP returns the sparse conditional constant propagation pass (spec
// §4.F.1). It solves two joint lattices — per-value Unknown/Constant/
// Overdefined and per-edge Unreachable/Executable — to a fixed point by
// repeated full scans of the function (the same scan-to-fixed-point shape
// used by the other passes in this package, rather than a sparse
// worklist), then rewrites every constant-proved use and folds any
// terminator whose outcome became known.
func SCCP() Pass {
	return Pass{Name: "sccp", Run: runSCCP}
}

func runSCCP(m *ir.Module, st *Stats, ctxOf func(*ir.Function) *cfg.Context) PreservedAnalyses {
	preserved := PreservesAll
	for _, fn := range m.Funcs {
		if sccpFunction(fn, st) {
			preserved &^= PreservesCFG | PreservesDominance
		}
	}
	return preserved
}

type latKind int

const (
	latTop latKind = iota
	latConst
	latBottom
)

type lattice struct {
	kind latKind
	val  ir.Value
}

func latEqual(a, b lattice) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == latConst {
		return a.val.Equal(b.val)
	}
	return true
}

func latMeet(a, b lattice) lattice {
	if a.kind == latTop {
		return b
	}
	if b.kind == latTop {
		return a
	}
	if a.kind == latBottom || b.kind == latBottom {
		return lattice{kind: latBottom}
	}
	if a.val.Equal(b.val) {
		return a
	}
	return lattice{kind: latBottom}
}

type edgeKey struct {
	from *ir.Block
	idx  int
}

func sccpFunction(fn *ir.Function, st *Stats) bool {
	entry := fn.Entry()
	if entry == nil {
		return false
	}
	cells := make(map[ir.ValueID]lattice)
	blocks := map[*ir.Block]bool{entry: true}
	edges := make(map[edgeKey]bool)

	markLabel := func(from *ir.Block, idx int, label string) bool {
		target := fn.BlockByLabel(label)
		if target == nil {
			return false
		}
		changed := false
		key := edgeKey{from, idx}
		if !edges[key] {
			edges[key] = true
			changed = true
		}
		if !blocks[target] {
			blocks[target] = true
			changed = true
		}
		return changed
	}

	for {
		round := false
		for _, b := range fn.Blocks {
			if !blocks[b] {
				continue
			}
			if evalBlockParams(fn, b, entry, cells, edges) {
				round = true
			}
			for _, in := range b.Instrs {
				if in.IsTerminator() {
					if markTerminatorEdges(in, b, cells, markLabel) {
						round = true
					}
					continue
				}
				if !in.HasResult {
					continue
				}
				newLat := evalInstrLattice(in, cells)
				if !latEqual(cells[in.Result], newLat) {
					cells[in.Result] = newLat
					round = true
				}
			}
		}
		if !round {
			break
		}
	}

	rewrote := rewriteConstants(fn, cells, st)
	folded := foldBranches(fn, st)
	return rewrote || folded
}

func evalBlockParams(fn *ir.Function, b *ir.Block, entry *ir.Block, cells map[ir.ValueID]lattice, edges map[edgeKey]bool) bool {
	if len(b.Params) == 0 {
		return false
	}
	changed := false
	if b == entry {
		for _, p := range b.Params {
			if cells[p.Temp].kind != latBottom {
				cells[p.Temp] = lattice{kind: latBottom}
				changed = true
			}
		}
		return changed
	}
	preds := findPredecessors(fn, b)
	for i, p := range b.Params {
		merged := lattice{}
		for _, pe := range preds {
			if !edges[edgeKey{pe.block, pe.labelIdx}] {
				continue
			}
			incoming := pe.block.Terminator().BrArgs[pe.labelIdx][i]
			merged = latMeet(merged, evalOperand(incoming, cells))
		}
		if !latEqual(cells[p.Temp], merged) {
			cells[p.Temp] = merged
			changed = true
		}
	}
	return changed
}

func markTerminatorEdges(in *ir.Instr, from *ir.Block, cells map[ir.ValueID]lattice, markLabel func(*ir.Block, int, string) bool) bool {
	changed := false
	mark := func(idx int) {
		if markLabel(from, idx, in.Labels[idx]) {
			changed = true
		}
	}
	switch in.Op {
	case ir.OpBr:
		mark(0)
	case ir.OpResumeLabel:
		mark(0)
	case ir.OpCBr:
		cond := evalOperand(in.Arg(0), cells)
		switch cond.kind {
		case latConst:
			if cond.val.Int != 0 {
				mark(0)
			} else {
				mark(1)
			}
		case latBottom:
			mark(0)
			mark(1)
		}
	case ir.OpSwitchI32:
		scrut := evalOperand(in.Arg(0), cells)
		switch scrut.kind {
		case latConst:
			matched := false
			for i, c := range in.SwitchCases {
				if int64(c) == scrut.val.Int {
					mark(i + 1)
					matched = true
					break
				}
			}
			if !matched {
				mark(0)
			}
		case latBottom:
			for i := range in.Labels {
				mark(i)
			}
		}
	}
	return changed
}

func evalOperand(v ir.Value, cells map[ir.ValueID]lattice) lattice {
	if v.Kind == ir.ValTemp {
		return cells[v.Temp]
	}
	if v.IsConst() {
		return lattice{kind: latConst, val: v}
	}
	return lattice{kind: latBottom}
}

// evalInstrLattice computes the lattice value an instruction's result
// takes given the current operand lattices. Opcodes with externally
// observable effects are immediately Overdefined, per spec; everything
// else is Top until every operand resolves to a constant, at which point
// it folds (or, for the checked/FDiv families, may still resolve to
// Overdefined when the concrete computation would trap or produce a
// non-finite result).
func evalInstrLattice(in *ir.Instr, cells map[ir.ValueID]lattice) lattice {
	switch in.Op {
	case ir.OpConstStr, ir.OpConstNull:
		if len(in.Args) == 1 {
			return lattice{kind: latConst, val: in.Args[0]}
		}
		return lattice{kind: latBottom}
	case ir.OpAlloca, ir.OpGEP, ir.OpLoad, ir.OpAddrOf, ir.OpCall, ir.OpCallIndirect,
		ir.OpIdxChk, ir.OpErrGetKind, ir.OpErrGetCode, ir.OpErrGetIp, ir.OpErrGetLine:
		return lattice{kind: latBottom}
	}
	if len(in.Args) == 0 {
		return lattice{kind: latBottom}
	}
	ops := make([]lattice, len(in.Args))
	for i, a := range in.Args {
		ops[i] = evalOperand(a, cells)
	}
	for _, o := range ops {
		if o.kind == latTop {
			return lattice{kind: latTop}
		}
	}
	for _, o := range ops {
		if o.kind == latBottom {
			return lattice{kind: latBottom}
		}
	}
	return foldConstant(in.Op, ops)
}

func constI(v int64) lattice   { return lattice{kind: latConst, val: ir.ConstInt(v)} }
func constF(v float64) lattice { return lattice{kind: latConst, val: ir.ConstFloat(v)} }
func constB(b bool) lattice    { return lattice{kind: latConst, val: ir.ConstBool(b)} }
func bot() lattice             { return lattice{kind: latBottom} }

func foldConstant(op ir.Opcode, ops []lattice) lattice {
	if len(ops) == 1 {
		x := ops[0].val
		switch op {
		case ir.OpSitofp, ir.OpCastSiToFp:
			return constF(float64(x.Int))
		case ir.OpCastUiToFp:
			return constF(float64(uint64(x.Int)))
		case ir.OpFptosi:
			return constI(int64(x.Float))
		case ir.OpZext1:
			return constI(x.Int)
		case ir.OpTrunc1:
			return constB(x.Int&1 != 0)
		}
		return bot()
	}
	if len(ops) != 2 {
		return bot()
	}
	x, y := ops[0].val, ops[1].val
	switch op {
	case ir.OpAdd:
		return constI(x.Int + y.Int)
	case ir.OpSub:
		return constI(x.Int - y.Int)
	case ir.OpMul:
		return constI(x.Int * y.Int)
	case ir.OpSDiv:
		if y.Int == 0 {
			return bot()
		}
		return constI(x.Int / y.Int)
	case ir.OpUDiv:
		if y.Int == 0 {
			return bot()
		}
		return constI(int64(uint64(x.Int) / uint64(y.Int)))
	case ir.OpSRem:
		if y.Int == 0 {
			return bot()
		}
		return constI(x.Int % y.Int)
	case ir.OpURem:
		if y.Int == 0 {
			return bot()
		}
		return constI(int64(uint64(x.Int) % uint64(y.Int)))
	case ir.OpIAddOvf:
		if r, ok := addOvfChecked(x.Int, y.Int); ok {
			return constI(r)
		}
		return bot()
	case ir.OpISubOvf:
		if r, ok := subOvfChecked(x.Int, y.Int); ok {
			return constI(r)
		}
		return bot()
	case ir.OpIMulOvf:
		if r, ok := mulOvfChecked(x.Int, y.Int); ok {
			return constI(r)
		}
		return bot()
	case ir.OpSDivChk0:
		if y.Int == 0 || (x.Int == math.MinInt64 && y.Int == -1) {
			return bot()
		}
		return constI(x.Int / y.Int)
	case ir.OpUDivChk0:
		if y.Int == 0 {
			return bot()
		}
		return constI(int64(uint64(x.Int) / uint64(y.Int)))
	case ir.OpSRemChk0:
		if y.Int == 0 || (x.Int == math.MinInt64 && y.Int == -1) {
			return bot()
		}
		return constI(x.Int % y.Int)
	case ir.OpURemChk0:
		if y.Int == 0 {
			return bot()
		}
		return constI(int64(uint64(x.Int) % uint64(y.Int)))
	case ir.OpFAdd:
		return constF(x.Float + y.Float)
	case ir.OpFSub:
		return constF(x.Float - y.Float)
	case ir.OpFMul:
		return constF(x.Float * y.Float)
	case ir.OpFDiv:
		r := x.Float / y.Float
		if math.IsInf(r, 0) || math.IsNaN(r) {
			return bot()
		}
		return constF(r)
	case ir.OpAnd:
		return constI(x.Int & y.Int)
	case ir.OpOr:
		return constI(x.Int | y.Int)
	case ir.OpXor:
		return constI(x.Int ^ y.Int)
	case ir.OpShl:
		return constI(x.Int << uint64(y.Int))
	case ir.OpLShr:
		return constI(int64(uint64(x.Int) >> uint64(y.Int)))
	case ir.OpAShr:
		return constI(x.Int >> uint64(y.Int))
	case ir.OpICmpEq:
		return constB(x.Int == y.Int)
	case ir.OpICmpNe:
		return constB(x.Int != y.Int)
	case ir.OpSCmpLT:
		return constB(x.Int < y.Int)
	case ir.OpSCmpLE:
		return constB(x.Int <= y.Int)
	case ir.OpSCmpGT:
		return constB(x.Int > y.Int)
	case ir.OpSCmpGE:
		return constB(x.Int >= y.Int)
	case ir.OpUCmpLT:
		return constB(uint64(x.Int) < uint64(y.Int))
	case ir.OpUCmpLE:
		return constB(uint64(x.Int) <= uint64(y.Int))
	case ir.OpUCmpGT:
		return constB(uint64(x.Int) > uint64(y.Int))
	case ir.OpUCmpGE:
		return constB(uint64(x.Int) >= uint64(y.Int))
	case ir.OpFCmpEQ:
		return constB(x.Float == y.Float)
	case ir.OpFCmpNE:
		return constB(x.Float != y.Float)
	case ir.OpFCmpLT:
		return constB(x.Float < y.Float)
	case ir.OpFCmpLE:
		return constB(x.Float <= y.Float)
	case ir.OpFCmpGT:
		return constB(x.Float > y.Float)
	case ir.OpFCmpGE:
		return constB(x.Float >= y.Float)
	}
	return bot()
}

func addOvfChecked(a, b int64) (int64, bool) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, false
	}
	return r, true
}

func subOvfChecked(a, b int64) (int64, bool) {
	r := a - b
	if (b < 0 && r < a) || (b > 0 && r > a) {
		return 0, false
	}
	return r, true
}

func mulOvfChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a == -1 && b == math.MinInt64 {
		return 0, false
	}
	if b == -1 && a == math.MinInt64 {
		return 0, false
	}
	r := a * b
	if r/b != a {
		return 0, false
	}
	return r, true
}

// trapToPure maps a checked-arithmetic opcode to its unchecked equivalent,
// used once SCCP proves a specific instance cannot trap: downgrading the
// opcode removes the EffectTraps barrier so DCE can remove it if unused.
var trapToPure = map[ir.Opcode]ir.Opcode{
	ir.OpIAddOvf:  ir.OpAdd,
	ir.OpISubOvf:  ir.OpSub,
	ir.OpIMulOvf:  ir.OpMul,
	ir.OpSDivChk0: ir.OpSDiv,
	ir.OpUDivChk0: ir.OpUDiv,
	ir.OpSRemChk0: ir.OpSRem,
	ir.OpURemChk0: ir.OpURem,
}

// rewriteConstants substitutes every operand reference to a value proved
// Constant with its literal, and downgrades any checked-arithmetic
// instruction proved not to trap to its pure counterpart opcode.
func rewriteConstants(fn *ir.Function, cells map[ir.ValueID]lattice, st *Stats) bool {
	changed := false
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			instrChanged := false
			for i, a := range in.Args {
				if a.Kind == ir.ValTemp {
					if c := cells[a.Temp]; c.kind == latConst {
						in.Args[i] = c.val
						instrChanged = true
					}
				}
			}
			for _, args := range in.BrArgs {
				for i, a := range args {
					if a.Kind == ir.ValTemp {
						if c := cells[a.Temp]; c.kind == latConst {
							args[i] = c.val
							instrChanged = true
						}
					}
				}
			}
			if in.HasResult && cells[in.Result].kind == latConst {
				if pureOp, ok := trapToPure[in.Op]; ok && in.Op != pureOp {
					in.Op = pureOp
					instrChanged = true
				}
			}
			if instrChanged {
				st.InstructionsFolded++
				changed = true
			}
		}
	}
	return changed
}
