package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// CheckOpt returns the redundant-check elimination pass referenced by
// the O2 pipeline. Like LoopUnroll, spec.md names "check-opt" in the O2
// pipeline without defining it anywhere in §4.F. This implements the
// literal reading of the name: within a single block, a checked
// instruction (bounds check, checked arithmetic, checked narrowing
// conversion) that is textually identical — same opcode, same operand
// values — to an earlier instruction in the same block is redundant:
// SSA values never change once defined, so the earlier instance has
// already either trapped (and control never reached the second one) or
// produced the same result the second one would. The second instance is
// replaced by an alias of the first rather than re-executed.
//
// Scoped to a single block (no cross-block value numbering) to avoid
// reasoning about whether the first check's block dominates the
// second's — trivially true within one straight-line block, not free to
// establish in general without more infrastructure than this pass
// needs.
func CheckOpt() Pass {
	return Pass{Name: "check-opt", Run: runCheckOpt}
}

func runCheckOpt(m *ir.Module, st *Stats, _ func(*ir.Function) *cfg.Context) PreservedAnalyses {
	preserved := PreservesAll
	for _, fn := range m.Funcs {
		if eliminateRedundantChecks(fn, st) {
			preserved &^= PreservesDominance
		}
	}
	return preserved
}

func isCheckedOpcode(op ir.Opcode) bool {
	return op.SideEffect() == ir.EffectTraps
}

func eliminateRedundantChecks(fn *ir.Function, st *Stats) bool {
	changed := false
	for {
		roundChanged := false
		for _, b := range fn.Blocks {
			var seen []*ir.Instr
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if in.HasResult && isCheckedOpcode(in.Op) {
					if dup := findDuplicateCheck(seen, in); dup != nil {
						substituteValue(fn, in.Result, dup.ResultValue())
						st.InstructionsFolded++
						roundChanged = true
						continue
					}
					seen = append(seen, in)
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

func findDuplicateCheck(seen []*ir.Instr, in *ir.Instr) *ir.Instr {
	for _, s := range seen {
		if s.Op != in.Op || s.ResultType != in.ResultType || len(s.Args) != len(in.Args) {
			continue
		}
		match := true
		for i := range s.Args {
			if !s.Args[i].Equal(in.Args[i]) {
				match = false
				break
			}
		}
		if match {
			return s
		}
	}
	return nil
}
