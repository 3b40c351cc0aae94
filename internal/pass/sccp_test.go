package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

func ctxOfFunc(fn *ir.Function) func(*ir.Function) *cfg.Context {
	ctx := cfg.Build(fn)
	return func(f *ir.Function) *cfg.Context {
		if f == fn {
			return ctx
		}
		return cfg.Build(f)
	}
}

// buildAddConstModule builds `fn f() i64 { entry: t = Add 3, 5; ret t }`,
// the seed scenario from spec.md §8: SCCP should fold t to 8 and rewrite
// Ret's operand to a literal constant.
func buildAddConstModule() (*ir.Module, *ir.Function) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	t := b.Bin(ir.OpAdd, ir.I64, ir.ConstInt(3), ir.ConstInt(5))
	b.Ret(&t)
	m.AddFunc(fn)
	return m, fn
}

func TestSCCPFoldsConstantAdd(t *testing.T) {
	m, fn := buildAddConstModule()
	st := &Stats{}
	runSCCP(m, st, ctxOfFunc(fn))

	term := fn.Entry().Terminator()
	require.Equal(t, ir.OpRet, term.Op)
	require.Equal(t, ir.ValConstInt, term.Args[0].Kind)
	require.Equal(t, int64(8), term.Args[0].Int)
	require.Equal(t, 1, st.InstructionsFolded)
}

func TestSCCPConstantFoldIsIdempotent(t *testing.T) {
	m, fn := buildAddConstModule()
	st := &Stats{}
	runSCCP(m, st, ctxOfFunc(fn))
	again := &Stats{}
	changed := runSCCP(m, again, ctxOfFunc(fn)) != PreservesAll || again.InstructionsFolded != 0
	require.False(t, changed)
}

// TestSCCPFoldsNonTrappingCheckedDiv builds a checked division by a nonzero constant,
// which SCCP should fold without trapping, downgrading the opcode to its
// pure counterpart so DCE can subsequently remove it if unused.
func TestSCCPFoldsNonTrappingCheckedDiv(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	q := b.Bin(ir.OpSDivChk0, ir.I64, ir.ConstInt(10), ir.ConstInt(5))
	b.Ret(&q)
	m.AddFunc(fn)

	st := &Stats{}
	runSCCP(m, st, ctxOfFunc(fn))

	term := fn.Entry().Terminator()
	require.Equal(t, ir.ValConstInt, term.Args[0].Kind)
	require.Equal(t, int64(2), term.Args[0].Int)
}

// TestSCCPFoldsConstantBranch builds a CBr with a constant-true condition;
// SCCP should fold it to an unconditional Br to the true target,
// preserving the surviving branch's argument list.
func TestSCCPFoldsConstantBranch(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")

	b.SetBlock(entry)
	cond := b.Bin(ir.OpICmpEq, ir.I1, ir.ConstInt(1), ir.ConstInt(1))
	seven := ir.ConstInt(7)
	b.CBr(cond, left, []ir.Value{seven}, right, nil)

	leftParam := b.AddParam(left, "x", ir.I64)
	b.SetBlock(left)
	xv := ir.Temp(leftParam)
	b.Ret(&xv)

	b.SetBlock(right)
	zero := ir.ConstInt(0)
	b.Ret(&zero)

	m.AddFunc(fn)

	st := &Stats{}
	runSCCP(m, st, ctxOfFunc(fn))

	term := fn.Entry().Terminator()
	require.Equal(t, ir.OpBr, term.Op)
	require.Equal(t, []string{"left"}, term.Labels)
	require.Len(t, term.BrArgs[0], 1)
	require.Equal(t, ir.ValConstInt, term.BrArgs[0][0].Kind)
	require.Equal(t, int64(7), term.BrArgs[0][0].Int)
}
