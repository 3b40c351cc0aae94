package pass

import (
	"fmt"

	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// Budgets and bonuses for the direct-call inliner (spec §4.F.4). A
// callee's inlining cost is its instruction count minus any bonuses that
// apply at a given call site; it is inlined only when that cost fits
// within inlineInstrBudget and its block count fits within
// inlineBlockBudget.
const (
	inlineInstrBudget     = 80
	inlineBlockBudget     = 8
	inlineDepthBudget     = 3
	inlineConstArgBonus   = 4
	inlineSingleUseBonus  = 10
	inlineTinyThreshold   = 8
	inlineTinyBonus       = 16
	inlineModuleGrowthCap = 1000
)

// Inline returns the direct-call inliner pass (spec §4.F.4). It never
// inlines a recursive callee (own SCC has more than one member, or a
// self-edge), a callee containing an EH-sensitive instruction, or a
// callee whose entry block carries parameters.
//
// Open-question resolution: the entry block's parameters equal the
// function's parameters (see the comment on Function.Params), so the
// spec's "callees whose entry block has parameters are skipped" rule
// reads literally as "only nullary callees are inlined." That is what
// this pass implements; the call-site argument-mapping machinery below
// is still written generally; it simply never has an argument list to
// map under the current rule, and would need nothing further if this
// rule is ever relaxed to allow mapping parameters to call-site actuals.
func Inline() Pass {
	return Pass{Name: "inline", Run: runInline}
}

func runInline(m *ir.Module, st *Stats, _ func(*ir.Function) *cfg.Context) PreservedAnalyses {
	cg := cfg.BuildCallGraph(m)
	grown := 0
	changed := false
	for _, fn := range m.Funcs {
		depth := make(map[*ir.Block]int)
		for grown < inlineModuleGrowthCap {
			site, hostBlock, callee := findInlineCandidate(m, fn, cg, depth)
			if site == nil {
				break
			}
			delta := inlineCallSite(fn, hostBlock, site, callee, depth)
			grown += delta
			st.InlinedCallSites++
			st.GrowthDelta += delta
			changed = true
		}
	}
	if changed {
		return PreservesNone
	}
	return PreservesAll
}

// findInlineCandidate scans fn for the first eligible call site, in
// block then instruction order, so repeated passes over the same
// function make deterministic forward progress.
func findInlineCandidate(m *ir.Module, fn *ir.Function, cg *cfg.CallGraph, depth map[*ir.Block]int) (*ir.Instr, *ir.Block, *ir.Function) {
	for _, b := range fn.Blocks {
		if depth[b] >= inlineDepthBudget {
			continue
		}
		for _, in := range b.Instrs {
			if in.Op != ir.OpCall {
				continue
			}
			callee := m.FuncByName(in.Callee)
			if callee == nil || callee == fn {
				continue
			}
			if inlineEligible(fn, cg, in, callee) {
				return in, b, callee
			}
		}
	}
	return nil, nil, nil
}

func inlineEligible(fn *ir.Function, cg *cfg.CallGraph, site *ir.Instr, callee *ir.Function) bool {
	if cg.IsRecursive(callee.Name) {
		return false
	}
	if len(callee.Params) > 0 {
		return false
	}
	if len(callee.Blocks) == 0 || len(callee.Blocks) > inlineBlockBudget {
		return false
	}

	count := 0
	for _, b := range callee.Blocks {
		for _, in := range b.Instrs {
			if in.Op.IsEHSensitive() {
				return false
			}
			count++
		}
	}

	bonus := 0
	for _, a := range site.Args {
		if a.IsConst() {
			bonus += inlineConstArgBonus
		}
	}
	if site.HasResult && computeUses(fn)[site.Result] == 1 {
		bonus += inlineSingleUseBonus
	}
	if count <= inlineTinyThreshold {
		bonus += inlineTinyBonus
	}
	return count-bonus <= inlineInstrBudget
}

// inlineCallSite splices a fresh copy of callee into fn at site, and
// returns the net instruction-count growth (callee's cloned body minus
// the removed call instruction).
//
// The transformation: clone the callee's blocks with fresh temps and
// labels (step a) — callee takes no parameters under the current
// eligibility rule, so there is nothing to map at step (b) — split the
// host block at the call site into a continuation block whose parameter
// (if the call has a result) receives the return value (step c),
// rewrite every cloned Ret into a branch to the continuation carrying
// its operand (step d), and replace the call with a branch to the
// cloned entry (step e). Every other use of the call's original result
// is redirected to the continuation's parameter.
func inlineCallSite(fn *ir.Function, hostBlock *ir.Block, site *ir.Instr, callee *ir.Function, depth map[*ir.Block]int) int {
	seed := fn.NextTemp()

	labelMap := make(map[string]string, len(callee.Blocks))
	for _, cb := range callee.Blocks {
		labelMap[cb.Label] = fmt.Sprintf("%s.inl%d.%s", callee.Name, seed, cb.Label)
	}

	tempMap := make(map[ir.ValueID]ir.ValueID)
	for _, cb := range callee.Blocks {
		for _, p := range cb.Params {
			tempMap[p.Temp] = fn.AllocTemp()
		}
		for _, in := range cb.Instrs {
			if in.HasResult {
				tempMap[in.Result] = fn.AllocTemp()
			}
		}
	}

	clonedBlocks := make([]*ir.Block, len(callee.Blocks))
	contLabel := fmt.Sprintf("%s.cont%d", callee.Name, seed)

	remap := func(v ir.Value) ir.Value {
		if v.Kind == ir.ValTemp {
			return ir.Temp(tempMap[v.Temp])
		}
		return v
	}

	growth := 0
	for i, cb := range callee.Blocks {
		nb := fn.AppendBlock(labelMap[cb.Label])
		depth[nb] = depth[hostBlock] + 1
		for _, p := range cb.Params {
			nb.Params = append(nb.Params, ir.Param{Name: p.Name, Type: p.Type, Temp: tempMap[p.Temp]})
		}
		for _, in := range cb.Instrs {
			nin := in.Clone()
			for j, a := range nin.Args {
				nin.Args[j] = remap(a)
			}
			if nin.HasResult {
				nin.Result = tempMap[nin.Result]
			}
			for li, lbl := range nin.Labels {
				nin.Labels[li] = labelMap[lbl]
			}
			for ai, args := range nin.BrArgs {
				for j, a := range args {
					nin.BrArgs[ai][j] = remap(a)
				}
			}
			if nin.Op == ir.OpRet {
				var args []ir.Value
				if len(nin.Args) > 0 {
					args = []ir.Value{nin.Args[0]}
				}
				nin = &ir.Instr{Op: ir.OpBr, Labels: []string{contLabel}, BrArgs: [][]ir.Value{args}, Loc: nin.Loc}
			}
			nb.Append(nin)
			growth++
		}
		clonedBlocks[i] = nb
	}

	cont := fn.AppendBlock(contLabel)
	var contParam ir.ValueID
	if site.HasResult {
		contParam = fn.AllocTemp()
		cont.Params = append(cont.Params, ir.Param{Type: site.ResultType, Temp: contParam})
	}

	siteIdx := -1
	for i, in := range hostBlock.Instrs {
		if in == site {
			siteIdx = i
			break
		}
	}
	cont.Instrs = append(cont.Instrs, hostBlock.Instrs[siteIdx+1:]...)
	depth[cont] = depth[hostBlock]

	hostBlock.Instrs = hostBlock.Instrs[:siteIdx]
	hostBlock.Append(&ir.Instr{Op: ir.OpBr, Labels: []string{clonedBlocks[0].Label}, BrArgs: [][]ir.Value{{}}})
	growth-- // the call itself is gone, replaced by this branch

	if site.HasResult {
		substituteValue(fn, site.Result, ir.Temp(contParam))
	}

	return growth
}
