package rtabi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/heap"
	"github.com/splanck/viper-sub016/internal/interp"
	"github.com/splanck/viper-sub016/internal/ir"
)

func TestTableClassificationMatchesSpec(t *testing.T) {
	readonlyNothrow := []string{"rt_len", "rt_str_eq", "rt_sqrt", "rt_floor", "rt_instr2", "rt_instr3"}
	for _, name := range readonlyNothrow {
		s, ok := Lookup(name)
		require.True(t, ok, name)
		require.True(t, s.Readonly, name)
		require.True(t, s.Nothrow, name)
		require.False(t, s.Pure, name)
	}

	pureNothrow := []string{"rt_abs_f64", "rt_round_even", "rt_cdbl_from_any"}
	for _, name := range pureNothrow {
		s, ok := Lookup(name)
		require.True(t, ok, name)
		require.True(t, s.Pure, name)
		require.True(t, s.Nothrow, name)
	}

	s, ok := Lookup("rt_print_str")
	require.True(t, ok)
	require.False(t, s.Pure || s.Readonly || s.Nothrow)
}

func TestExternsRoundTripSignatures(t *testing.T) {
	externs := Externs()
	require.Len(t, externs, len(Table))
	for i, e := range externs {
		require.Equal(t, Table[i].Name, e.Name)
		require.Equal(t, Table[i].Ret, e.RetType)
	}
}

func newVMWithHelpers() *interp.VM {
	m := ir.NewModule()
	m.Externs = Externs()
	vm := interp.NewVM(m)
	Register(vm, nil)
	return vm
}

func TestRtStrEqAndLen(t *testing.T) {
	vm := newVMWithHelpers()
	h, ok := vm.Helpers["rt_str_eq"]
	require.True(t, ok)
	out, trap := h([]interp.Slot{{Str: heap.NewString("abc")}, {Str: heap.NewString("abc")}})
	require.Nil(t, trap)
	require.Equal(t, int64(1), out.I64)

	lh := vm.Helpers["rt_len"]
	out, trap = lh([]interp.Slot{{Str: heap.NewString("hello")}})
	require.Nil(t, trap)
	require.Equal(t, int64(5), out.I64)
}

func TestRtInstr2AndInstr3(t *testing.T) {
	vm := newVMWithHelpers()
	h2 := vm.Helpers["rt_instr2"]
	out, trap := h2([]interp.Slot{{I64: 255}, {I64: 16}})
	require.Nil(t, trap)
	require.Equal(t, "ff", out.Str.String())

	h3 := vm.Helpers["rt_instr3"]
	out, trap = h3([]interp.Slot{{I64: 5}, {I64: 10}, {I64: 4}})
	require.Nil(t, trap)
	require.Equal(t, "0005", out.Str.String())
}

func TestRtFminFmaxWasmCompat(t *testing.T) {
	vm := newVMWithHelpers()
	fmin := vm.Helpers["rt_fmin"]
	out, _ := fmin([]interp.Slot{{F64: 1}, {F64: -0.0}})
	_ = out
	fmax := vm.Helpers["rt_fmax"]
	out, _ = fmax([]interp.Slot{{F64: 3}, {F64: 7}})
	require.Equal(t, float64(7), out.F64)
}
