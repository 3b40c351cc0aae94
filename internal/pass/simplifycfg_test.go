package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

// TestSimplifyCFGFoldsSingleCaseSwitch builds a SwitchI32 with exactly
// one case whose target and arguments are identical to the default
// (spec.md §8's seed scenario), which should fold to an unconditional Br
// and increment SwitchToBr.
func TestSimplifyCFGFoldsSingleCaseSwitch(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	target := b.Block("target")

	b.SetBlock(entry)
	scrut := ir.ConstInt(0)
	b.SwitchI32(scrut, target, nil, []int32{1}, []*ir.Block{target}, [][]ir.Value{nil})

	b.SetBlock(target)
	zero := ir.ConstInt(0)
	b.Ret(&zero)

	m.AddFunc(fn)

	st := &Stats{}
	changed := foldBranches(fn, st)
	require.True(t, changed)
	require.Equal(t, 1, st.SwitchToBr)

	term := entry.Terminator()
	require.Equal(t, ir.OpBr, term.Op)
	require.Equal(t, []string{"target"}, term.Labels)
}

// TestSimplifyCFGFoldsZeroCaseSwitch builds a SwitchI32 with no cases at
// all, which is unconditionally the default target.
func TestSimplifyCFGFoldsZeroCaseSwitch(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.Void, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	target := b.Block("target")

	b.SetBlock(entry)
	b.SwitchI32(ir.ConstInt(3), target, nil, nil, nil, nil)

	b.SetBlock(target)
	b.Ret(nil)

	m.AddFunc(fn)

	st := &Stats{}
	changed := foldBranches(fn, st)
	require.True(t, changed)
	require.Equal(t, ir.OpBr, entry.Terminator().Op)
}

// TestSimplifyCFGEliminatesForwarder builds entry -> mid -> target, where
// mid does nothing but forward to target, and checks that mid is spliced
// out and entry branches straight to target.
func TestSimplifyCFGEliminatesForwarder(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	mid := b.Block("mid")
	target := b.Block("target")

	param := b.AddParam(target, "x", ir.I64)

	b.SetBlock(entry)
	five := ir.ConstInt(5)
	b.Br(mid, []ir.Value{five})

	midParam := b.AddParam(mid, "y", ir.I64)
	b.SetBlock(mid)
	b.Br(target, []ir.Value{ir.Temp(midParam)})

	b.SetBlock(target)
	xv := ir.Temp(param)
	b.Ret(&xv)

	m.AddFunc(fn)

	st := &Stats{}
	changed := eliminateForwarders(fn, st)
	require.True(t, changed)
	require.Equal(t, 1, st.BlocksRemoved)
	require.Nil(t, fn.BlockByLabel("mid"))

	term := entry.Terminator()
	require.Equal(t, []string{"target"}, term.Labels)
	require.Len(t, term.BrArgs[0], 1)
	require.Equal(t, ir.ValConstInt, term.BrArgs[0][0].Kind)
	require.Equal(t, int64(5), term.BrArgs[0][0].Int)
}

// TestSimplifyCFGRunIsIdempotent checks the spec.md §8 law that running
// SimplifyCFG a second time changes nothing further.
func TestSimplifyCFGRunIsIdempotent(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	target := b.Block("target")

	b.SetBlock(entry)
	b.SwitchI32(ir.ConstInt(0), target, nil, []int32{1}, []*ir.Block{target}, [][]ir.Value{nil})

	b.SetBlock(target)
	zero := ir.ConstInt(0)
	b.Ret(&zero)

	m.AddFunc(fn)

	st1 := &Stats{}
	runSimplifyCFG(m, st1, ctxOfFunc(fn))
	st2 := &Stats{}
	preserved := runSimplifyCFG(m, st2, ctxOfFunc(fn))

	require.Equal(t, PreservesAll, preserved)
	require.Equal(t, Stats{}, *st2)
}
