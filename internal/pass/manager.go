package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
	"github.com/splanck/viper-sub016/internal/verify"
)

// Manager runs named pass pipelines over a Module (spec.md §4.G). It
// memoizes each function's CFG context across passes that report
// preserving it, rebuilding only when a pass reports otherwise, and
// accumulates Stats across every pipeline run until reset.
type Manager struct {
	verifyBetweenPasses bool
	stats               Stats
	custom              map[string][]Pass
}

// NewManager returns a Manager with between-pass verification disabled
// and zeroed stats.
func NewManager() *Manager {
	return &Manager{}
}

// SetVerifyBetweenPasses toggles whether RunPipeline re-verifies the
// module after every pass in the pipeline, aborting on the first
// failing verification.
func (mgr *Manager) SetVerifyBetweenPasses(on bool) {
	mgr.verifyBetweenPasses = on
}

// Stats returns the accumulated pass statistics across every
// RunPipeline call since the Manager was created or last reset.
func (mgr *Manager) Stats() Stats {
	return mgr.stats
}

// ResetStats zeroes the accumulated statistics.
func (mgr *Manager) ResetStats() {
	mgr.stats = Stats{}
}

// pipelineOrder returns the registered pipelines by name, per spec.md
// §4.G: O0 is the verifier only; O1 runs simplify-cfg, mem2reg, sccp,
// peephole, dce once in that order; O2 additionally inlines first and
// runs loop-unroll and check-opt before the final dce.
func pipelineOrder(name string) ([]Pass, bool) {
	switch name {
	case "O0":
		return nil, true
	case "O1":
		return []Pass{SimplifyCFG(), Mem2Reg(), SCCP(), Peephole(), DCE()}, true
	case "O2":
		return []Pass{
			Inline(), SimplifyCFG(), Mem2Reg(), SCCP(), Peephole(),
			LoopUnroll(), CheckOpt(), DCE(),
		}, true
	default:
		return nil, false
	}
}

// RunPipeline runs the named pipeline over m once, in order, returning
// false if name isn't registered, or if between-pass verification is
// enabled and some pass leaves the module failing verification. O0
// names the verifier-only pipeline: it always verifies once regardless
// of SetVerifyBetweenPasses.
func (mgr *Manager) RunPipeline(m *ir.Module, name string) bool {
	if name == "O0" {
		return verify.Module(m).OK()
	}
	passes, ok := pipelineOrder(name)
	if !ok {
		passes, ok = mgr.custom[name]
	}
	if !ok {
		return false
	}

	ctxCache := make(map[*ir.Function]*cfg.Context, len(m.Funcs))
	ctxOf := func(fn *ir.Function) *cfg.Context {
		if c, ok := ctxCache[fn]; ok {
			return c
		}
		c := cfg.Build(fn)
		ctxCache[fn] = c
		return c
	}

	for _, p := range passes {
		preserved := p.Run(m, &mgr.stats, ctxOf)
		if !preserved.Has(PreservesCFG | PreservesDominance) {
			ctxCache = make(map[*ir.Function]*cfg.Context, len(m.Funcs))
		}
		if mgr.verifyBetweenPasses {
			if res := verify.Module(m); !res.OK() {
				return false
			}
		}
	}
	return true
}
