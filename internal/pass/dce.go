package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// DCE returns the dead-code-elimination pass (spec §4.F.6): it removes
// unreachable blocks (reachability seeded from the entry block via the
// CFG context) and instructions whose result is unused and whose opcode
// has no side effect, to a fixed point. Terminators and EH-sensitive
// opcodes are never removed.
func DCE() Pass {
	return Pass{Name: "dce", Run: runDCE}
}

func runDCE(m *ir.Module, st *Stats, ctxOf func(*ir.Function) *cfg.Context) PreservedAnalyses {
	preserved := PreservesAll
	for _, fn := range m.Funcs {
		if removeUnreachableBlocks(fn, ctxOf(fn), st) {
			preserved &^= PreservesCFG | PreservesDominance
		}
		if removeDeadInstructions(fn, st) {
			preserved &^= PreservesDominance
		}
	}
	return preserved
}

func removeUnreachableBlocks(fn *ir.Function, ctx *cfg.Context, st *Stats) bool {
	if ctx == nil {
		return false
	}
	reachable := make(map[*ir.Block]bool)
	for _, b := range ctx.ReversePostOrder() {
		reachable[b] = true
	}
	var toRemove []*ir.Block
	for _, b := range fn.Blocks {
		if !reachable[b] {
			toRemove = append(toRemove, b)
		}
	}
	for _, b := range toRemove {
		fn.RemoveBlock(b)
		st.BlocksRemoved++
		st.GrowthDelta -= len(b.Instrs)
	}
	return len(toRemove) > 0
}

// removeDeadInstructions iterates to a fixed point since deleting a dead
// instruction can make its own operands' defining instructions newly dead.
func removeDeadInstructions(fn *ir.Function, st *Stats) bool {
	changed := false
	for {
		uses := computeUses(fn)
		removedThisRound := false
		for _, b := range fn.Blocks {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if in.IsTerminator() || instrSideEffectBarrier(in) {
					kept = append(kept, in)
					continue
				}
				if in.HasResult && uses[in.Result] == 0 {
					removedThisRound = true
					st.GrowthDelta--
					continue
				}
				kept = append(kept, in)
			}
			b.Instrs = kept
		}
		if !removedThisRound {
			break
		}
		changed = true
	}
	return changed
}

// computeUses counts, across every instruction's Args and BrArgs, how
// many times each temp is referenced.
func computeUses(fn *ir.Function) map[ir.ValueID]int {
	uses := make(map[ir.ValueID]int)
	count := func(v ir.Value) {
		if v.Kind == ir.ValTemp {
			uses[v.Temp]++
		}
	}
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				count(a)
			}
			for _, args := range in.BrArgs {
				for _, a := range args {
					count(a)
				}
			}
		}
	}
	return uses
}
