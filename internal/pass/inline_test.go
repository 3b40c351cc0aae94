package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

// buildCalleeAndCaller builds a nullary callee `add5() i64 { ret 5 }` and a
// caller that calls it once and returns the result plus one.
func buildCalleeAndCaller() *ir.Module {
	m := ir.NewModule()

	callee := ir.NewFunction("add5", ir.I64, nil)
	cb := ir.NewBuilder(callee)
	centry := cb.Block("entry")
	cb.SetBlock(centry)
	five := ir.ConstInt(5)
	cb.Ret(&five)
	m.AddFunc(callee)

	caller := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(caller)
	entry := b.Block("entry")
	b.SetBlock(entry)
	r := b.Call("add5", ir.I64, nil)
	sum := b.Bin(ir.OpAdd, ir.I64, r, ir.ConstInt(1))
	b.Ret(&sum)
	m.AddFunc(caller)

	return m
}

// TestInlineSplicesNullaryCallee checks that a single call to a small,
// non-recursive, nullary callee is replaced by a branch into a cloned
// copy of the callee's body, with the call's result redirected to the
// continuation block's parameter.
func TestInlineSplicesNullaryCallee(t *testing.T) {
	m := buildCalleeAndCaller()
	fn := m.FuncByName("f")

	st := &Stats{}
	preserved := runInline(m, st, nil)

	require.Equal(t, PreservesNone, preserved)
	require.Equal(t, 1, st.InlinedCallSites)

	entry := fn.BlockByLabel("entry")
	term := entry.Terminator()
	require.Equal(t, ir.OpBr, term.Op)
	require.Len(t, term.Labels, 1)

	clonedEntry := fn.BlockByLabel(term.Labels[0])
	require.NotNil(t, clonedEntry)
	cterm := clonedEntry.Terminator()
	require.Equal(t, ir.OpBr, cterm.Op)
	require.Len(t, cterm.BrArgs[0], 1)
	require.Equal(t, ir.ValConstInt, cterm.BrArgs[0][0].Kind)
	require.Equal(t, int64(5), cterm.BrArgs[0][0].Int)

	cont := fn.BlockByLabel(cterm.Labels[0])
	require.NotNil(t, cont)
	require.Len(t, cont.Params, 1)

	// The original call no longer appears anywhere in the caller.
	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			require.NotEqual(t, ir.OpCall, in.Op)
		}
	}

	// sum's Add should now consume the continuation's parameter.
	sumInstr := cont.Instrs[0]
	require.Equal(t, ir.OpAdd, sumInstr.Op)
	require.Equal(t, ir.ValTemp, sumInstr.Args[0].Kind)
	require.Equal(t, cont.Params[0].Temp, sumInstr.Args[0].Temp)
}

// TestInlineSkipsRecursiveCallee checks that a self-recursive callee is
// never inlined, even though it otherwise fits every budget.
func TestInlineSkipsRecursiveCallee(t *testing.T) {
	m := ir.NewModule()

	callee := ir.NewFunction("loop", ir.I64, nil)
	cb := ir.NewBuilder(callee)
	centry := cb.Block("entry")
	cb.SetBlock(centry)
	cb.Call("loop", ir.I64, nil)
	zero := ir.ConstInt(0)
	cb.Ret(&zero)
	m.AddFunc(callee)

	caller := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(caller)
	entry := b.Block("entry")
	b.SetBlock(entry)
	r := b.Call("loop", ir.I64, nil)
	b.Ret(&r)
	m.AddFunc(caller)

	st := &Stats{}
	preserved := runInline(m, st, nil)

	require.Equal(t, PreservesAll, preserved)
	require.Equal(t, 0, st.InlinedCallSites)

	fn := m.FuncByName("f")
	foundCall := false
	for _, in := range fn.Entry().Instrs {
		if in.Op == ir.OpCall {
			foundCall = true
		}
	}
	require.True(t, foundCall)
}

// TestInlineSkipsParameterizedCallee checks the accepted reading of the
// "entry block has parameters" exclusion: a callee taking any parameters
// is never inlined under the current rule.
func TestInlineSkipsParameterizedCallee(t *testing.T) {
	m := ir.NewModule()

	callee := ir.NewFunction("inc", ir.I64, []ir.Param{{Name: "x", Type: ir.I64}})
	callee.Params[0].Temp = callee.AllocTemp()
	cb := ir.NewBuilder(callee)
	centry := cb.Block("entry")
	centry.Params = []ir.Param{callee.Params[0]}
	cb.SetBlock(centry)
	one := ir.Temp(callee.Params[0].Temp)
	cb.Ret(&one)
	m.AddFunc(callee)

	caller := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(caller)
	entry := b.Block("entry")
	b.SetBlock(entry)
	r := b.Call("inc", ir.I64, []ir.Value{ir.ConstInt(7)})
	b.Ret(&r)
	m.AddFunc(caller)

	st := &Stats{}
	preserved := runInline(m, st, nil)

	require.Equal(t, PreservesAll, preserved)
	require.Equal(t, 0, st.InlinedCallSites)
}
