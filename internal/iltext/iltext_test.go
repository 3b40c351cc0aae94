package iltext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
	"github.com/splanck/viper-sub016/internal/verify"
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

func TestParsePrintRoundTripFactorial(t *testing.T) {
	m := buildFactorialModule()
	require.True(t, verify.Module(m).OK())

	text := Print(m)

	parsed, err := Parse(text)
	require.NoError(t, err)
	require.True(t, verify.Module(parsed).OK())

	require.Len(t, parsed.Funcs, 1)
	require.Equal(t, "factorial", parsed.Funcs[0].Name)
	require.Equal(t, ir.I64, parsed.Funcs[0].RetType)
	require.Len(t, parsed.Funcs[0].Blocks, 3)
}

func TestParseSimpleModule(t *testing.T) {
	src := `il 1.0.0

extern @rt_len(str) -> i64

global const str @greeting = "hi\n"

func @main() -> i64 {
entry:
  %t0:i64 = Add 2, 3
  Ret %t0
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, [3]int{1, 0, 0}, m.Version)
	require.Len(t, m.Externs, 1)
	require.Equal(t, "rt_len", m.Externs[0].Name)
	require.Len(t, m.Globals, 1)
	require.Equal(t, "hi\n", m.Globals[0].Payload)
	require.Len(t, m.Funcs, 1)

	r := verify.Module(m)
	require.True(t, r.OK(), r.Error())
}

func TestParseSwitchRoundTrip(t *testing.T) {
	fn := ir.NewFunction("pick", ir.I64, []ir.Param{{Name: "x", Type: ir.I32}})
	fn.Params[0].Temp = fn.AllocTemp()
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	entry.Params = []ir.Param{fn.Params[0]}
	b.SetBlock(entry)

	def := b.Block("def")
	c0 := b.Block("c0")
	c1 := b.Block("c1")
	b.SwitchI32(ir.Temp(fn.Params[0].Temp), def, nil, []int32{0, 1}, []*ir.Block{c0, c1}, [][]ir.Value{nil, nil})

	b.SetBlock(def)
	zero := ir.ConstInt(0)
	b.Ret(&zero)
	b.SetBlock(c0)
	ten := ir.ConstInt(10)
	b.Ret(&ten)
	b.SetBlock(c1)
	twenty := ir.ConstInt(20)
	b.Ret(&twenty)

	m := ir.NewModule()
	m.AddFunc(fn)
	require.True(t, verify.Module(m).OK())

	text := Print(m)
	parsed, err := Parse(text)
	require.NoError(t, err)
	require.True(t, verify.Module(parsed).OK())

	sw := parsed.Funcs[0].Blocks[0].Instrs[0]
	require.Equal(t, ir.OpSwitchI32, sw.Op)
	require.Equal(t, []int32{0, 1}, sw.SwitchCases)
	require.Len(t, sw.Labels, 3)
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	src := `il 1.0.0

func @f() -> i64 {
entry:
  %t0:i64 = Bogus 1, 2
  Ret %t0
}
`
	_, err := Parse(src)
	require.Error(t, err)
}

func TestParseRejectsUndeclaredName(t *testing.T) {
	src := `il 1.0.0

func @f() -> i64 {
entry:
  Ret %nope
}
`
	_, err := Parse(src)
	require.Error(t, err)
}

func TestLexerHandlesLiteralForms(t *testing.T) {
	toks, err := Tokens(`1 -2 0x1F 0b101 3.5 NaN Inf -Inf "a\nb"`)
	require.NoError(t, err)

	require.Equal(t, TokInt, toks[0].Kind)
	require.EqualValues(t, 1, toks[0].IntVal)
	require.Equal(t, TokInt, toks[1].Kind)
	require.EqualValues(t, -2, toks[1].IntVal)
	require.Equal(t, TokInt, toks[2].Kind)
	require.EqualValues(t, 0x1F, toks[2].IntVal)
	require.Equal(t, TokInt, toks[3].Kind)
	require.EqualValues(t, 0b101, toks[3].IntVal)
	require.Equal(t, TokFloat, toks[4].Kind)
	require.InDelta(t, 3.5, toks[4].FloatVal, 1e-9)
	require.Equal(t, TokFloat, toks[5].Kind)
	require.True(t, toks[5].FloatVal != toks[5].FloatVal) // NaN
	require.Equal(t, TokFloat, toks[6].Kind)
	require.Equal(t, TokFloat, toks[7].Kind)
	require.Equal(t, TokString, toks[8].Kind)
	require.Equal(t, "a\nb", toks[8].Text)
}
