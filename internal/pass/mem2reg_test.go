package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// TestMem2RegPromotesTwoFieldAlloca builds a two-field alloca (spec.md
// §8's seed scenario): store two known constants through constant-offset
// GEPs, load them back, and add them. Mem2Reg should eliminate the
// alloca entirely and rewrite both loads to their stored literals.
func TestMem2RegPromotesTwoFieldAlloca(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)

	ptr := b.Alloca(ir.ConstInt(16))
	g1 := b.GEP(ptr, ir.ConstInt(0))
	b.Store(g1, ir.ConstInt(3))
	g2 := b.GEP(ptr, ir.ConstInt(8))
	b.Store(g2, ir.ConstInt(4))
	g3 := b.GEP(ptr, ir.ConstInt(0))
	l1 := b.Load(ir.I64, g3)
	g4 := b.GEP(ptr, ir.ConstInt(8))
	l2 := b.Load(ir.I64, g4)
	sum := b.Bin(ir.OpAdd, ir.I64, l1, l2)
	b.Ret(&sum)

	m.AddFunc(fn)

	ctx := cfg.Build(fn)
	st := &Stats{}
	changed := promoteAllocas(fn, ctx, st)
	require.True(t, changed)
	require.Equal(t, 1, st.PromotedAllocas)

	require.Len(t, entry.Instrs, 2)
	add := entry.Instrs[0]
	require.Equal(t, ir.OpAdd, add.Op)
	require.Equal(t, ir.ValConstInt, add.Args[0].Kind)
	require.Equal(t, int64(3), add.Args[0].Int)
	require.Equal(t, ir.ValConstInt, add.Args[1].Kind)
	require.Equal(t, int64(4), add.Args[1].Int)

	ret := entry.Instrs[1]
	require.Equal(t, ir.OpRet, ret.Op)
	require.Equal(t, ir.ValTemp, ret.Args[0].Kind)
	require.Equal(t, add.Result, ret.Args[0].Temp)
}

// TestMem2RegSkipsEscapingAlloca checks that an alloca whose pointer
// escapes (passed to a call) is left untouched.
func TestMem2RegSkipsEscapingAlloca(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.Void, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)

	ptr := b.Alloca(ir.ConstInt(8))
	b.Call("consume", ir.Void, []ir.Value{ptr})
	b.Ret(nil)

	m.AddFunc(fn)

	ctx := cfg.Build(fn)
	st := &Stats{}
	changed := promoteAllocas(fn, ctx, st)
	require.False(t, changed)
	require.Equal(t, 0, st.PromotedAllocas)

	found := false
	for _, in := range entry.Instrs {
		if in.Op == ir.OpAlloca {
			found = true
		}
	}
	require.True(t, found)
}

// TestMem2RegPromotesAcrossJoin builds a diamond CFG where one branch
// stores to the alloca and the other doesn't; the load after the join
// should become a block parameter merging the stored value with the
// alloca's originally-undefined (zeroed) value, eliminating the alloca.
func TestMem2RegPromotesAcrossJoin(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	b.SetBlock(entry)
	ptr := b.Alloca(ir.ConstInt(8))
	b.CBr(ir.ConstBool(true), left, nil, right, nil)

	b.SetBlock(left)
	b.Store(ptr, ir.ConstInt(9))
	b.Br(join, nil)

	b.SetBlock(right)
	b.Br(join, nil)

	b.SetBlock(join)
	loaded := b.Load(ir.I64, ptr)
	b.Ret(&loaded)

	m.AddFunc(fn)

	ctx := cfg.Build(fn)
	st := &Stats{}
	changed := promoteAllocas(fn, ctx, st)
	require.True(t, changed)
	require.Equal(t, 1, st.PromotedAllocas)

	for _, blk := range fn.Blocks {
		for _, in := range blk.Instrs {
			require.NotEqual(t, ir.OpAlloca, in.Op)
			require.NotEqual(t, ir.OpLoad, in.Op)
			require.NotEqual(t, ir.OpStore, in.Op)
		}
	}
	require.Len(t, join.Params, 1)
}
