package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeRoundTrip(t *testing.T) {
	for _, ty := range []Type{Void, I1, I16, I32, I64, F64, Ptr, Str, Error, ResumeTok} {
		parsed, ok := ParseType(ty.String())
		require.True(t, ok, "type %v", ty)
		require.Equal(t, ty, parsed)
	}
}

func TestOpcodeRoundTrip(t *testing.T) {
	for op := OpInvalid + 1; op < opcodeCount; op++ {
		name := op.String()
		require.NotEqual(t, "invalid", name, "opcode %d missing a name", op)
		parsed, ok := ParseOpcode(name)
		require.True(t, ok, "opcode %s", name)
		require.Equal(t, op, parsed)
	}
}

func TestTerminatorClassification(t *testing.T) {
	require.True(t, OpBr.IsTerminator())
	require.True(t, OpRet.IsTerminator())
	require.False(t, OpAdd.IsTerminator())
	require.False(t, OpCall.IsTerminator())
}

func TestValueEqual(t *testing.T) {
	require.True(t, Temp(3).Equal(Temp(3)))
	require.False(t, Temp(3).Equal(Temp(4)))
	require.True(t, ConstInt(5).Equal(ConstInt(5)))
	require.True(t, NullPtr.Equal(NullPtr))
	require.False(t, ConstBool(true).Equal(ConstInt(1)))
}

func TestBuilderFactorialShape(t *testing.T) {
	fn := NewFunction("factorial", I64, []Param{{Name: "n", Type: I64}})
	fn.Params[0].Temp = fn.AllocTemp()

	b := NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)

	n := Temp(fn.Params[0].Temp)
	le1 := b.Bin(OpSCmpLE, I1, n, ConstInt(1))

	baseBB := b.Block("base")
	recBB := b.Block("rec")
	b.CBr(le1, baseBB, nil, recBB, nil)

	b.SetBlock(baseBB)
	one := ConstInt(1)
	b.Ret(&one)

	b.SetBlock(recBB)
	nMinus1 := b.Bin(OpSub, I64, n, ConstInt(1))
	rec := b.Call("factorial", I64, []Value{nMinus1})
	result := b.Bin(OpMul, I64, n, rec)
	b.Ret(&result)

	require.Len(t, fn.Blocks, 3)
	require.True(t, entry.Terminated())
	require.True(t, baseBB.Terminated())
	require.True(t, recBB.Terminated())
	require.Equal(t, OpCBr, entry.Terminator().Op)
}
