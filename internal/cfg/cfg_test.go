package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

// buildDiamond builds:
//
//	entry -> left, right
//	left -> join
//	right -> join
func buildDiamond() *ir.Function {
	fn := ir.NewFunction("diamond", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	b.SetBlock(entry)
	b.CBr(ir.ConstBool(true), left, nil, right, nil)

	b.SetBlock(left)
	b.Br(join, nil)

	b.SetBlock(right)
	b.Br(join, nil)

	b.SetBlock(join)
	zero := ir.ConstInt(0)
	b.Ret(&zero)

	return fn
}

func TestSuccessorsPredecessors(t *testing.T) {
	fn := buildDiamond()
	c := Build(fn)

	entry, left, right, join := fn.Blocks[0], fn.Blocks[1], fn.Blocks[2], fn.Blocks[3]

	require.ElementsMatch(t, []*ir.Block{left, right}, c.Successors(entry))
	require.ElementsMatch(t, []*ir.Block{left, right}, c.Predecessors(join))
}

func TestDominance(t *testing.T) {
	fn := buildDiamond()
	c := Build(fn)
	entry, left, right, join := fn.Blocks[0], fn.Blocks[1], fn.Blocks[2], fn.Blocks[3]

	require.True(t, c.Dominates(entry, join))
	require.True(t, c.Dominates(entry, left))
	require.False(t, c.Dominates(left, join))
	require.False(t, c.Dominates(right, join))
	require.True(t, c.Dominates(join, join))
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	fn := ir.NewFunction("loop", ir.Void, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	body := b.Block("body")

	b.SetBlock(entry)
	b.Br(body, nil)

	b.SetBlock(body)
	b.Br(body, nil) // self-loop

	c := Build(fn)
	require.True(t, c.IsLoopHeader(body))
	require.Nil(t, c.TopologicalOrder())
	require.False(t, c.IsAcyclic())
}

func TestTopologicalOrderAcyclic(t *testing.T) {
	fn := buildDiamond()
	c := Build(fn)
	order := c.TopologicalOrder()
	require.Len(t, order, 4)
	require.Equal(t, fn.Blocks[0], order[0])
	require.Equal(t, fn.Blocks[3], order[3])
}

func buildModuleWithRecursion() *ir.Module {
	m := ir.NewModule()

	fact := ir.NewFunction("factorial", ir.I64, []ir.Param{{Name: "n", Type: ir.I64}})
	fact.Params[0].Temp = fact.AllocTemp()
	fb := ir.NewBuilder(fact)
	entry := fb.Block("entry")
	fb.SetBlock(entry)
	n := ir.Temp(fact.Params[0].Temp)
	rec := fb.Call("factorial", ir.I64, []ir.Value{n})
	fb.Ret(&rec)
	m.AddFunc(fact)

	helper := ir.NewFunction("helper", ir.I64, nil)
	hb := ir.NewBuilder(helper)
	he := hb.Block("entry")
	hb.SetBlock(he)
	zero := ir.ConstInt(0)
	hb.Ret(&zero)
	m.AddFunc(helper)

	main := ir.NewFunction("main", ir.I64, nil)
	mb := ir.NewBuilder(main)
	me := mb.Block("entry")
	mb.SetBlock(me)
	mb.Call("helper", ir.I64, nil)
	ret := mb.Call("factorial", ir.I64, []ir.Value{ir.ConstInt(5)})
	mb.Ret(&ret)
	m.AddFunc(main)

	return m
}

func TestCallGraphRecursion(t *testing.T) {
	m := buildModuleWithRecursion()
	g := BuildCallGraph(m)

	require.True(t, g.IsRecursive("factorial"))
	require.False(t, g.IsRecursive("helper"))
	require.False(t, g.IsRecursive("main"))
	require.Equal(t, 1, g.CallCount("helper"))
	require.Equal(t, 2, g.CallCount("factorial")) // one self-call, one from main
}
