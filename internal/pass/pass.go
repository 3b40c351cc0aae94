// Package pass implements the optimization passes and pass manager (spec
// components C6/C7): SCCP, Mem2Reg+SROA, Peephole, the Inliner,
// SimplifyCFG, and DCE, each operating in place on an internal/ir.Module,
// plus named pipelines (O0/O1/O2) that run them in sequence.
//
// Every pass follows the same shape wazero's own optimization passes
// use: a plain function taking the structure to mutate and returning
// what it preserves, so the manager can decide whether downstream
// analyses need to be recomputed.
package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// PreservedAnalyses is a bitset of analyses a pass did not invalidate.
// The manager consults it to decide whether to recompute the CFG context
// before the next pass that needs it.
type PreservedAnalyses uint8

const (
	PreservesNone PreservedAnalyses = 0
	PreservesCFG  PreservedAnalyses = 1 << iota
	PreservesDominance
	PreservesCallGraph
)

// PreservesAll is returned by passes (like a no-op run) that changed
// nothing observable to any analysis.
const PreservesAll = PreservesCFG | PreservesDominance | PreservesCallGraph

// Has reports whether p includes every flag in want.
func (p PreservedAnalyses) Has(want PreservedAnalyses) bool { return p&want == want }

// Pass is one optimization pass, operating on the whole module in place.
// ctxOf supplies a freshly built CFG context per function on demand,
// memoized by the manager between passes that both preserve it.
type Pass struct {
	Name string
	Run  func(m *ir.Module, st *Stats, ctxOf func(*ir.Function) *cfg.Context) PreservedAnalyses
}

// instrSideEffectBarrier reports whether in must never be reordered past,
// duplicated, or deleted as dead regardless of result usage — the
// distinction DCE consults. EffectTraps instructions count as
// having a side effect (the possible trap) until SCCP proves the specific
// operation cannot trap and downgrades it to its pure counterpart opcode.
func instrSideEffectBarrier(in *ir.Instr) bool {
	return in.Op.SideEffect() != ir.EffectNone || in.Op.IsEHSensitive()
}
