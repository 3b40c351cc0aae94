package pass

import (
	"math"

	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// Peephole returns the table-driven peephole simplification pass (spec
// §4.F.3): algebraic identities on arithmetic/bitwise/shift/compare
// instructions, plus folding a CBr with a constant condition to an
// unconditional branch.
func Peephole() Pass {
	return Pass{Name: "peephole", Run: runPeephole}
}

func runPeephole(m *ir.Module, st *Stats, _ func(*ir.Function) *cfg.Context) PreservedAnalyses {
	preserved := PreservesAll
	for _, fn := range m.Funcs {
		if foldCBrConstants(fn, st) {
			preserved &^= PreservesCFG | PreservesDominance
		}
		if foldPeepholeRules(fn, st) {
			preserved &^= PreservesDominance
		}
	}
	return preserved
}

// foldCBrConstants rewrites a CBr whose condition is a constant into an
// unconditional Br to the taken target.
func foldCBrConstants(fn *ir.Function, st *Stats) bool {
	changed := false
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term == nil || term.Op != ir.OpCBr {
			continue
		}
		cond := term.Arg(0)
		if cond.Kind != ir.ValConstInt {
			continue
		}
		idx := 0
		if cond.Int == 0 {
			idx = 1
		}
		b.Instrs[len(b.Instrs)-1] = &ir.Instr{
			Op:     ir.OpBr,
			Labels: []string{term.Labels[idx]},
			BrArgs: [][]ir.Value{term.BrArgs[idx]},
			Loc:    term.Loc,
		}
		st.CbrToBr++
		changed = true
	}
	return changed
}

// foldPeepholeRules applies the algebraic-identity table to a fixed
// point, substituting each folded instruction's result with its
// replacement value throughout the function and deleting the instruction.
func foldPeepholeRules(fn *ir.Function, st *Stats) bool {
	changed := false
	for {
		defOf := buildDefMap(fn)
		roundChanged := false
		for _, b := range fn.Blocks {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if in.HasResult {
					if repl, ok := matchPeephole(in, defOf); ok {
						substituteValue(fn, in.Result, repl)
						st.InstructionsFolded++
						roundChanged = true
						continue
					}
				}
				kept = append(kept, in)
			}
			b.Instrs = kept
		}
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}

func buildDefMap(fn *ir.Function) map[ir.ValueID]*ir.Instr {
	defs := make(map[ir.ValueID]*ir.Instr)
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.HasResult {
				defs[in.Result] = in
			}
		}
	}
	return defs
}

func substituteValue(fn *ir.Function, old ir.ValueID, repl ir.Value) {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for i, a := range in.Args {
				if a.Kind == ir.ValTemp && a.Temp == old {
					in.Args[i] = repl
				}
			}
			for _, args := range in.BrArgs {
				for i, a := range args {
					if a.Kind == ir.ValTemp && a.Temp == old {
						args[i] = repl
					}
				}
			}
		}
	}
}

func isZero(v ir.Value) bool      { return v.Kind == ir.ValConstInt && v.Int == 0 }
func isOne(v ir.Value) bool       { return v.Kind == ir.ValConstInt && v.Int == 1 }
func isAllOnes(v ir.Value) bool   { return v.Kind == ir.ValConstInt && v.Int == -1 }
func sameOperand(x, y ir.Value) bool { return x.Equal(y) }

// isTrapping reports whether v is a reference to a still-present
// instruction whose opcode may trap. Per the recorded open-question
// decision, IMulOvf(0,x)/IMulOvf(x,0) is folded to 0 only when x is not
// such a reference, so a trapping producer is never silently dropped from
// the instruction stream by virtue of its consumer disappearing.
func isTrapping(v ir.Value, defOf map[ir.ValueID]*ir.Instr) bool {
	if v.Kind != ir.ValTemp {
		return false
	}
	in, ok := defOf[v.Temp]
	return ok && in.Op.SideEffect() == ir.EffectTraps
}

func matchPeephole(in *ir.Instr, defOf map[ir.ValueID]*ir.Instr) (ir.Value, bool) {
	if len(in.Args) != 2 {
		return ir.Value{}, false
	}
	x, y := in.Args[0], in.Args[1]

	switch in.Op {
	case ir.OpIAddOvf:
		if isZero(y) {
			return x, true
		}
		if isZero(x) {
			return y, true
		}
	case ir.OpISubOvf:
		if isZero(y) {
			return x, true
		}
		if sameOperand(x, y) {
			return ir.ConstInt(0), true
		}
	case ir.OpIMulOvf:
		if isOne(y) {
			return x, true
		}
		if isOne(x) {
			return y, true
		}
		if isZero(y) && !isTrapping(x, defOf) {
			return ir.ConstInt(0), true
		}
		if isZero(x) && !isTrapping(y, defOf) {
			return ir.ConstInt(0), true
		}
	case ir.OpAnd:
		if isAllOnes(y) || sameOperand(x, y) {
			return x, true
		}
		if isAllOnes(x) {
			return y, true
		}
		if isZero(y) || isZero(x) {
			return ir.ConstInt(0), true
		}
	case ir.OpOr:
		if isZero(y) || sameOperand(x, y) {
			return x, true
		}
		if isZero(x) {
			return y, true
		}
		if isAllOnes(y) || isAllOnes(x) {
			return ir.ConstInt(-1), true
		}
	case ir.OpXor:
		if isZero(y) {
			return x, true
		}
		if isZero(x) {
			return y, true
		}
		if sameOperand(x, y) {
			return ir.ConstInt(0), true
		}
	case ir.OpShl, ir.OpLShr, ir.OpAShr:
		if isZero(y) {
			return x, true
		}
		if isZero(x) {
			return ir.ConstInt(0), true
		}
	case ir.OpICmpEq, ir.OpSCmpLE, ir.OpSCmpGE, ir.OpUCmpLE, ir.OpUCmpGE:
		if sameOperand(x, y) {
			return ir.ConstBool(true), true
		}
	case ir.OpICmpNe, ir.OpSCmpLT, ir.OpSCmpGT, ir.OpUCmpLT, ir.OpUCmpGT:
		if sameOperand(x, y) {
			return ir.ConstBool(false), true
		}
	case ir.OpFCmpEQ:
		if x.Kind == ir.ValConstFloat && y.Kind == ir.ValConstFloat && x.Float == y.Float {
			return ir.ConstBool(!math.IsNaN(x.Float)), true
		}
	case ir.OpFCmpNE:
		if x.Kind == ir.ValConstFloat && y.Kind == ir.ValConstFloat && x.Float == y.Float {
			return ir.ConstBool(math.IsNaN(x.Float)), true
		}
	case ir.OpFCmpLE, ir.OpFCmpGE:
		if x.Kind == ir.ValConstFloat && y.Kind == ir.ValConstFloat && x.Float == y.Float && !math.IsNaN(x.Float) {
			return ir.ConstBool(true), true
		}
	case ir.OpFCmpLT, ir.OpFCmpGT:
		if x.Kind == ir.ValConstFloat && y.Kind == ir.ValConstFloat && x.Float == y.Float {
			return ir.ConstBool(false), true
		}
	}
	return ir.Value{}, false
}
