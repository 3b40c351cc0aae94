package interp

import (
	"math"

	"github.com/splanck/viper-sub016/internal/ir"
)

// truncateToType re-narrows a 64-bit computation result to t's bit width,
// since every arithmetic/bitwise result is computed in a full int64
// container here but I1/I16/I32-typed results must carry only their
// declared width from this point on (the next instruction to read them
// trusts that narrowing already happened).
func truncateToType(t ir.Type, v int64) int64 {
	switch t {
	case ir.I1:
		return boolToI64(v&1 != 0)
	case ir.I16:
		return int64(int16(v))
	case ir.I32:
		return int64(int32(v))
	default:
		return v
	}
}

func fitsSigned(v int64, t ir.Type) bool {
	bits := t.Bits()
	if bits >= 64 {
		return true
	}
	lo := -(int64(1) << (bits - 1))
	hi := (int64(1) << (bits - 1)) - 1
	return v >= lo && v <= hi
}

func fitsUnsigned(v int64, t ir.Type) bool {
	bits := t.Bits()
	if bits >= 64 {
		return v >= 0
	}
	if v < 0 {
		return false
	}
	hi := (uint64(1) << bits) - 1
	return uint64(v) <= hi
}

// addOverflows reports whether x+y overflows signed 64-bit arithmetic,
// using the standard same-sign-operands/different-sign-result test.
func addOverflows(x, y int64) (int64, bool) {
	r := x + y
	return r, (x >= 0) == (y >= 0) && (r >= 0) != (x >= 0)
}

func subOverflows(x, y int64) (int64, bool) {
	r := x - y
	return r, (x >= 0) != (y >= 0) && (r >= 0) != (x >= 0)
}

func mulOverflows(x, y int64) (int64, bool) {
	if x == 0 || y == 0 {
		return 0, false
	}
	if (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
		return 0, true
	}
	r := x * y
	return r, r/y != x
}
