package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

func buildFactorialModule() *ir.Module {
	m := ir.NewModule()

	fact := ir.NewFunction("factorial", ir.I64, []ir.Param{{Name: "n", Type: ir.I64}})
	fact.Params[0].Temp = fact.AllocTemp()
	fb := ir.NewBuilder(fact)
	entry := fb.Block("entry")
	entry.Params = []ir.Param{fact.Params[0]}
	fb.SetBlock(entry)

	n := ir.Temp(fact.Params[0].Temp)
	le1 := fb.Bin(ir.OpSCmpLE, ir.I1, n, ir.ConstInt(1))

	base := fb.Block("base")
	rec := fb.Block("rec")
	fb.CBr(le1, base, nil, rec, nil)

	fb.SetBlock(base)
	one := ir.ConstInt(1)
	fb.Ret(&one)

	fb.SetBlock(rec)
	nMinus1 := fb.Bin(ir.OpSub, ir.I64, n, ir.ConstInt(1))
	call := fb.Call("factorial", ir.I64, []ir.Value{nMinus1})
	result := fb.Bin(ir.OpMul, ir.I64, n, call)
	fb.Ret(&result)

	m.AddFunc(fact)
	return m
}

func TestVerifyAcceptsFactorial(t *testing.T) {
	m := buildFactorialModule()
	r := Module(m)
	require.True(t, r.OK(), r.Error())
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	fn := ir.NewFunction("f", ir.Void, nil)
	fn.AppendBlock("entry").Append(&ir.Instr{Op: ir.OpAdd, Args: []ir.Value{ir.ConstInt(1), ir.ConstInt(2)}})
	m := ir.NewModule()
	m.AddFunc(fn)

	r := Module(m)
	require.False(t, r.OK())
}

func TestVerifyRejectsUndominatedUse(t *testing.T) {
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	other := b.Block("other")

	b.SetBlock(other)
	v := b.Bin(ir.OpAdd, ir.I64, ir.ConstInt(1), ir.ConstInt(2))
	b.Ret(&v)

	b.SetBlock(entry)
	b.Ret(&v)

	m := ir.NewModule()
	m.AddFunc(fn)

	r := Module(m)
	require.False(t, r.OK())
}

func TestVerifyRejectsBranchArgMismatch(t *testing.T) {
	fn := ir.NewFunction("f", ir.Void, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	target := b.Block("target")
	target.Params = []ir.Param{{Name: "x", Type: ir.I64, Temp: fn.AllocTemp()}}

	b.SetBlock(entry)
	b.Br(target, nil) // missing the required argument

	b.SetBlock(target)
	b.Ret(nil)

	m := ir.NewModule()
	m.AddFunc(fn)

	r := Module(m)
	require.False(t, r.OK())
}

func TestVerifyRejectsLoadOfNonPointer(t *testing.T) {
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	v := b.Load(ir.I64, ir.ConstInt(5)) // not a Ptr
	b.Ret(&v)

	m := ir.NewModule()
	m.AddFunc(fn)

	r := Module(m)
	require.False(t, r.OK())
}
