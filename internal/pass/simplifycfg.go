package pass

import (
	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// SimplifyCFG returns the branch-folding and forwarder-elimination pass
// (spec §4.F.5). Both sub-transforms run to a fixed point.
//
// Forwarder elimination is scoped here to blocks whose body is empty
// (nothing but the terminating Br): a wider definition would let a
// forwarder carry side-effect-free computation that predecessors would
// then need to duplicate, which this pass does not attempt. This is a
// conservative subset of forwarder block elimination, not a divergence
// from the general definition — every block it elides also satisfies the
// broader one.
func SimplifyCFG() Pass {
	return Pass{Name: "simplify-cfg", Run: runSimplifyCFG}
}

func runSimplifyCFG(m *ir.Module, st *Stats, ctxOf func(*ir.Function) *cfg.Context) PreservedAnalyses {
	preserved := PreservesAll
	for _, fn := range m.Funcs {
		fnChanged := false
		for {
			roundChanged := false
			if foldBranches(fn, st) {
				roundChanged = true
			}
			if eliminateForwarders(fn, st) {
				roundChanged = true
			}
			if !roundChanged {
				break
			}
			fnChanged = true
		}
		if fnChanged {
			preserved &^= PreservesCFG | PreservesDominance
		}
	}
	return preserved
}

func foldBranches(fn *ir.Function, st *Stats) bool {
	changed := false
	for _, b := range fn.Blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch term.Op {
		case ir.OpSwitchI32:
			switch {
			case len(term.SwitchCases) == 0:
				replaceWithBr(b, term.Labels[0], term.BrArgs[0])
				st.SwitchToBr++
				changed = true
			case len(term.SwitchCases) == 1 && term.Labels[1] == term.Labels[0] && sameArgs(term.BrArgs[1], term.BrArgs[0]):
				replaceWithBr(b, term.Labels[0], term.BrArgs[0])
				st.SwitchToBr++
				changed = true
			}
		case ir.OpCBr:
			switch {
			case term.Arg(0).Kind == ir.ValConstInt:
				idx := 0
				if term.Arg(0).Int == 0 {
					idx = 1
				}
				replaceWithBr(b, term.Labels[idx], term.BrArgs[idx])
				st.CbrToBr++
				changed = true
			case term.Labels[0] == term.Labels[1] && sameArgs(term.BrArgs[0], term.BrArgs[1]):
				replaceWithBr(b, term.Labels[0], term.BrArgs[0])
				st.CbrToBr++
				changed = true
			}
		}
	}
	return changed
}

func replaceWithBr(b *ir.Block, label string, args []ir.Value) {
	old := b.Terminator()
	b.Instrs[len(b.Instrs)-1] = &ir.Instr{Op: ir.OpBr, Labels: []string{label}, BrArgs: [][]ir.Value{args}, Loc: old.Loc}
}

func sameArgs(a, b []ir.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

type predRef struct {
	block    *ir.Block
	labelIdx int
}

func eliminateForwarders(fn *ir.Function, st *Stats) bool {
	changed := false
	ehHandlers := collectEHHandlerLabels(fn)
	for {
		roundChanged := false
		for _, fb := range append([]*ir.Block(nil), fn.Blocks...) {
			if fb == fn.Entry() {
				continue
			}
			if !isForwarder(fb, ehHandlers) {
				continue
			}
			term := fb.Instrs[0]
			target := fn.BlockByLabel(term.Labels[0])
			if target == nil || target == fb {
				continue
			}
			targetArgs := term.BrArgs[0]
			if paramReferencedElsewhere(fn, fb) {
				continue
			}

			preds := findPredecessors(fn, fb)
			for _, pe := range preds {
				predTerm := pe.block.Terminator()
				incoming := predTerm.BrArgs[pe.labelIdx]
				predTerm.Labels[pe.labelIdx] = target.Label
				predTerm.BrArgs[pe.labelIdx] = substituteParams(fb, targetArgs, incoming)
				st.PredecessorsMerged++
			}
			fn.RemoveBlock(fb)
			st.BlocksRemoved++
			roundChanged = true
		}
		if !roundChanged {
			break
		}
		changed = true
	}
	return changed
}

// isForwarder reports whether fb is eligible for forwarder elimination:
// non-entry, not an EH handler target, and with nothing but a single
// unconditional Br as its body.
func isForwarder(fb *ir.Block, ehHandlers map[string]bool) bool {
	if ehHandlers[fb.Label] {
		return false
	}
	if len(fb.Instrs) != 1 {
		return false
	}
	return fb.Instrs[0].Op == ir.OpBr
}

func collectEHHandlerLabels(fn *ir.Function) map[string]bool {
	out := make(map[string]bool)
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Op == ir.OpEhPush {
				for _, l := range in.Labels {
					out[l] = true
				}
			}
		}
	}
	return out
}

// paramReferencedElsewhere reports whether any of fb's own block
// parameters is used by an instruction outside fb (i.e. somewhere other
// than fb's own forwarding Br), which would make eliding fb unsound.
func paramReferencedElsewhere(fn *ir.Function, fb *ir.Block) bool {
	if len(fb.Params) == 0 {
		return false
	}
	wanted := make(map[ir.ValueID]bool, len(fb.Params))
	for _, p := range fb.Params {
		wanted[p.Temp] = true
	}
	for _, b := range fn.Blocks {
		if b == fb {
			continue
		}
		for _, in := range b.Instrs {
			for _, a := range in.Args {
				if a.Kind == ir.ValTemp && wanted[a.Temp] {
					return true
				}
			}
			for _, args := range in.BrArgs {
				for _, a := range args {
					if a.Kind == ir.ValTemp && wanted[a.Temp] {
						return true
					}
				}
			}
		}
	}
	return false
}

func findPredecessors(fn *ir.Function, fb *ir.Block) []predRef {
	var out []predRef
	for _, b := range fn.Blocks {
		if b == fb {
			continue
		}
		term := b.Terminator()
		if term == nil {
			continue
		}
		for i, l := range term.Labels {
			if l == fb.Label {
				out = append(out, predRef{block: b, labelIdx: i})
			}
		}
	}
	return out
}

// substituteParams rewrites fb's own forwarding argument list in terms of
// the values a given predecessor actually supplied to fb's parameters.
func substituteParams(fb *ir.Block, targetArgs []ir.Value, incoming []ir.Value) []ir.Value {
	paramIndex := make(map[ir.ValueID]int, len(fb.Params))
	for i, p := range fb.Params {
		paramIndex[p.Temp] = i
	}
	out := make([]ir.Value, len(targetArgs))
	for i, a := range targetArgs {
		if a.Kind == ir.ValTemp {
			if idx, ok := paramIndex[a.Temp]; ok {
				out[i] = incoming[idx]
				continue
			}
		}
		out[i] = a
	}
	return out
}
