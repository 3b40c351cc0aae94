package rtabi

import (
	"fmt"
	"math"
	"strconv"

	"github.com/splanck/viper-sub016/internal/heap"
	"github.com/splanck/viper-sub016/internal/interp"
	moremath "github.com/splanck/viper-sub016/internal/moremath_ref"
)

// Register populates vm's helper table with this package's Go
// implementations for every classified (readonly/pure nothrow) helper in
// Table. I/O helpers (rt_print_*) are registered too, since the VM needs
// something to call, but they are the ones left unclassified in Table;
// Register does not change that classification.
func Register(vm *interp.VM, stdout func(string)) {
	vm.Helpers["rt_len"] = rtLen
	vm.Helpers["rt_str_eq"] = rtStrEq
	vm.Helpers["rt_sqrt"] = rtSqrt
	vm.Helpers["rt_floor"] = rtFloor
	vm.Helpers["rt_instr2"] = rtInstr2
	vm.Helpers["rt_instr3"] = rtInstr3
	vm.Helpers["rt_abs_f64"] = rtAbsF64
	vm.Helpers["rt_round_even"] = rtRoundEven
	vm.Helpers["rt_cdbl_from_any"] = rtCdblFromAny
	vm.Helpers["rt_fmin"] = rtFmin
	vm.Helpers["rt_fmax"] = rtFmax
	vm.Helpers["rt_concat"] = rtConcat
	if stdout == nil {
		stdout = func(string) {}
	}
	vm.Helpers["rt_print_str"] = printStrHelper(stdout)
	vm.Helpers["rt_print_i64"] = printI64Helper(stdout)
	vm.Helpers["rt_print_f64"] = printF64Helper(stdout)
}

func rtLen(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	s := args[0].Str
	if s == nil {
		return interp.Slot{I64: 0}, nil
	}
	return interp.Slot{I64: int64(len(s.String()))}, nil
}

func rtStrEq(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	a, b := args[0].Str, args[1].Str
	eq := a.Eq(b)
	v := int64(0)
	if eq {
		v = 1
	}
	return interp.Slot{I64: v}, nil
}

func rtSqrt(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: math.Sqrt(args[0].F64)}, nil
}

func rtFloor(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: math.Floor(args[0].F64)}, nil
}

// rtInstr2 renders an i64 value as a string in the given base (2-36).
func rtInstr2(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	value, base := args[0].I64, args[1].I64
	if base < 2 || base > 36 {
		return interp.Slot{}, &interp.TrapValue{Kind: interp.TrapDomainError, Message: "rt_instr2: base out of range"}
	}
	return interp.Slot{Str: heap.NewString(strconv.FormatInt(value, int(base)))}, nil
}

// rtInstr3 renders an i64 value as a string in the given base, zero-padded
// to at least width digits.
func rtInstr3(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	value, base, width := args[0].I64, args[1].I64, args[2].I64
	if base < 2 || base > 36 {
		return interp.Slot{}, &interp.TrapValue{Kind: interp.TrapDomainError, Message: "rt_instr3: base out of range"}
	}
	digits := strconv.FormatInt(value, int(base))
	neg := value < 0
	if neg {
		digits = digits[1:]
	}
	for int64(len(digits)) < width {
		digits = "0" + digits
	}
	if neg {
		digits = "-" + digits
	}
	return interp.Slot{Str: heap.NewString(digits)}, nil
}

func rtAbsF64(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: math.Abs(args[0].F64)}, nil
}

func rtRoundEven(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: math.RoundToEven(args[0].F64)}, nil
}

func rtCdblFromAny(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: float64(args[0].I64)}, nil
}

// rtFmin and rtFmax are grounded directly on moremath_ref's WasmCompatMin/
// Max, which differ from math.Min/Max in how they treat signed zero and
// NaN-vs-infinity combinations.
func rtFmin(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: moremath.WasmCompatMin(args[0].F64, args[1].F64)}, nil
}

func rtFmax(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	return interp.Slot{F64: moremath.WasmCompatMax(args[0].F64, args[1].F64)}, nil
}

func rtConcat(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
	a, b := args[0].Str, args[1].Str
	as, bs := "", ""
	if a != nil {
		as = a.String()
	}
	if b != nil {
		bs = b.String()
	}
	return interp.Slot{Str: heap.NewString(as + bs)}, nil
}

func printStrHelper(stdout func(string)) interp.Helper {
	return func(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
		s := args[0].Str
		if s != nil {
			stdout(s.String())
		}
		return interp.Slot{}, nil
	}
}

func printI64Helper(stdout func(string)) interp.Helper {
	return func(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
		stdout(strconv.FormatInt(args[0].I64, 10))
		return interp.Slot{}, nil
	}
}

func printF64Helper(stdout func(string)) interp.Helper {
	return func(args []interp.Slot) (interp.Slot, *interp.TrapValue) {
		stdout(fmt.Sprintf("%g", args[0].F64))
		return interp.Slot{}, nil
	}
}
