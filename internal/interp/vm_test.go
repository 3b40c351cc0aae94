package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

// buildFactorial builds:
//
//	fn fact(n i64) i64 {
//	entry(n):
//	  base = ICmpEq n, 0
//	  CBr base, done(1), recurse()
//	recurse():
//	  n1 = Sub n, 1
//	  r = Call fact(n1)
//	  result = Mul n, r
//	  Br done(result)
//	done(v):
//	  Ret v
//	}
func buildFactorial() *ir.Module {
	m := ir.NewModule()
	fn := ir.NewFunction("fact", ir.I64, []ir.Param{{Name: "n", Type: ir.I64}})
	fn.Params[0].Temp = fn.AllocTemp()
	n := ir.Temp(fn.Params[0].Temp)

	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	recurse := b.Block("recurse")
	done := b.Block("done")
	v := b.AddParam(done, "v", ir.I64)

	b.SetBlock(entry)
	base := b.Bin(ir.OpICmpEq, ir.I1, n, ir.ConstInt(0))
	b.CBr(base, done, []ir.Value{ir.ConstInt(1)}, recurse, nil)

	b.SetBlock(recurse)
	n1 := b.Bin(ir.OpSub, ir.I64, n, ir.ConstInt(1))
	r := b.Call("fact", ir.I64, []ir.Value{n1})
	result := b.Bin(ir.OpMul, ir.I64, n, r)
	b.Br(done, []ir.Value{result})

	b.SetBlock(done)
	retv := ir.Temp(v)
	b.Ret(&retv)

	m.AddFunc(fn)
	return m
}

func TestFactorialRecursion(t *testing.T) {
	m := buildFactorial()
	fn := m.FuncByName("fact")

	for _, strategy := range []string{"table", "switch", "threaded"} {
		t.Run(strategy, func(t *testing.T) {
			t.Setenv("VIPER_DISPATCH", strategy)
			vm := NewVM(m)
			out, trap := vm.Run(fn, []Slot{{I64: 5}})
			require.Nil(t, trap)
			require.Equal(t, int64(120), out.I64)
		})
	}
}

func TestNullLoadTraps(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("deref", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	v := b.Load(ir.I64, ir.NullPtr)
	ret := v
	b.Ret(&ret)
	m.AddFunc(fn)

	vm := NewVM(m)
	_, trap := vm.Run(fn, nil)
	require.NotNil(t, trap)
	require.Equal(t, TrapInvalidOperation, trap.Kind)
	require.Equal(t, "deref", trap.FuncName)
	require.Equal(t, 0, trap.BlockIndex)
}

func TestIAddOvfTraps(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("addovf", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	const maxI64 = int64(1<<63 - 1)
	sum := b.Bin(ir.OpIAddOvf, ir.I64, ir.ConstInt(maxI64), ir.ConstInt(1))
	ret := sum
	b.Ret(&ret)
	m.AddFunc(fn)

	vm := NewVM(m)
	_, trap := vm.Run(fn, nil)
	require.NotNil(t, trap)
	require.Equal(t, TrapOverflow, trap.Kind)
}

func TestDivByZeroTraps(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("divz", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)
	q := b.Bin(ir.OpSDiv, ir.I64, ir.ConstInt(10), ir.ConstInt(0))
	ret := q
	b.Ret(&ret)
	m.AddFunc(fn)

	vm := NewVM(m)
	_, trap := vm.Run(fn, nil)
	require.NotNil(t, trap)
	require.Equal(t, TrapDivideByZero, trap.Kind)
}

// TestEhCatchesTrap builds a function with an EhPush/EhPop pair whose
// handler catches a Trap raised by TrapKind, reads the error's code via
// ErrGetCode, and returns it — exercising the full unwind-into-handler
// path in handleTrap without going through any front-end syntax.
func TestEhCatchesTrap(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("guarded", ir.I64, nil)
	b := ir.NewBuilder(fn)

	entry := b.Block("entry")
	handler := b.Block("handler")

	b.SetBlock(entry)
	entry.Append(&ir.Instr{Op: ir.OpEhPush, Labels: []string{"handler"}})
	entry.Append(&ir.Instr{
		Op:   ir.OpTrapKind,
		Args: []ir.Value{ir.ConstInt(int64(TrapUser)), ir.ConstInt(42)},
	})

	errID := fn.AllocTemp()
	handler.Append(&ir.Instr{Op: ir.OpEhEntry, HasResult: true, Result: errID, ResultType: ir.Error})
	codeID := fn.AllocTemp()
	handler.Append(&ir.Instr{
		Op: ir.OpErrGetCode, HasResult: true, Result: codeID, ResultType: ir.I64,
		Args: []ir.Value{ir.Temp(errID)},
	})
	retv := ir.Temp(codeID)
	handler.Append(&ir.Instr{Op: ir.OpRet, Args: []ir.Value{retv}})

	m.AddFunc(fn)

	vm := NewVM(m)
	out, trap := vm.Run(fn, nil)
	require.Nil(t, trap)
	require.Equal(t, int64(42), out.I64)
}
