package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

// buildCountedDoWhileModule builds a single-block do-while loop:
//
//	entry: br h(0)
//	h(i): step = i + 1; cond = step < 3; cbr cond, h(step), exit
//	exit: ret 0
//
// which should fully unroll into three straight-line copies (i=0,1,2).
func buildCountedDoWhileModule() (*ir.Module, *ir.Function) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	h := b.Block("h")
	indVar := b.AddParam(h, "i", ir.I64)
	exit := b.Block("exit")

	b.SetBlock(entry)
	b.Br(h, []ir.Value{ir.ConstInt(0)})

	b.SetBlock(h)
	step := b.Bin(ir.OpIAddOvf, ir.I64, ir.Temp(indVar), ir.ConstInt(1))
	cond := b.Bin(ir.OpSCmpLT, ir.I1, step, ir.ConstInt(3))
	b.CBr(cond, h, []ir.Value{step}, exit, nil)

	b.SetBlock(exit)
	zero := ir.ConstInt(0)
	b.Ret(&zero)

	m.AddFunc(fn)
	return m, fn
}

func TestLoopUnrollFullyUnrollsCountedDoWhile(t *testing.T) {
	m, fn := buildCountedDoWhileModule()

	st := &Stats{}
	preserved := runLoopUnroll(m, st, ctxOfFunc(fn))

	require.Equal(t, PreservesNone, preserved)
	require.Equal(t, 1, st.BlocksRemoved)
	require.Nil(t, fn.BlockByLabel("h"))

	b0 := fn.BlockByLabel("h.unroll0")
	b1 := fn.BlockByLabel("h.unroll1")
	b2 := fn.BlockByLabel("h.unroll2")
	require.NotNil(t, b0)
	require.NotNil(t, b1)
	require.NotNil(t, b2)
	require.Nil(t, fn.BlockByLabel("h.unroll3"))

	term := fn.BlockByLabel("entry").Terminator()
	require.Equal(t, ir.OpBr, term.Op)
	require.Equal(t, []string{"h.unroll0"}, term.Labels)
	require.Empty(t, term.BrArgs[0])

	last := b2.Terminator()
	require.Equal(t, ir.OpBr, last.Op)
	require.Equal(t, []string{"exit"}, last.Labels)
}

// TestLoopUnrollNoOpWithoutLoop checks that a function with no loop is
// left completely untouched.
func TestLoopUnrollNoOpWithoutLoop(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	zero := ir.ConstInt(0)
	b.Ret(&zero)
	m.AddFunc(fn)

	st := &Stats{}
	preserved := runLoopUnroll(m, st, ctxOfFunc(fn))

	require.Equal(t, PreservesAll, preserved)
	require.Equal(t, 0, st.BlocksRemoved)
	require.Len(t, fn.Blocks, 1)
}
