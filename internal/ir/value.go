package ir

import "fmt"

// ValueID identifies an SSA temporary within a function. IDs are dense and
// nonnegative; ValueID 0 is a valid temp, so the zero value of ValueID is
// not used as a sentinel — use ValueInvalid instead.
type ValueID uint32

// ValueInvalid is the distinguished invalid ValueID.
const ValueInvalid ValueID = 1<<32 - 1

// ValueKind discriminates the Value sum type.
type ValueKind byte

const (
	// ValTemp references an SSA temporary by id.
	ValTemp ValueKind = iota
	// ValConstInt is an integer (or, with IsBool set, I1) literal.
	ValConstInt
	// ValConstFloat is an F64 literal.
	ValConstFloat
	// ValConstStr is a string literal backed by a heap-allocated payload
	// at execution time; in the IR it is simply the decoded bytes.
	ValConstStr
	// ValGlobalAddr names a module-level global by name.
	ValGlobalAddr
	// ValNullPtr is the null pointer constant.
	ValNullPtr
)

// Value is the operand sum type: a reference to an SSA temporary, one of
// several constant forms, a global address, or the null pointer. It is
// represented as a small struct rather than an interface so that operand
// lists can be plain slices with no per-element allocation.
type Value struct {
	Kind   ValueKind
	Temp   ValueID // valid when Kind == ValTemp
	Int    int64   // valid when Kind == ValConstInt
	IsBool bool    // valid when Kind == ValConstInt; true selects I1
	Float  float64 // valid when Kind == ValConstFloat
	Str    string  // valid when Kind == ValConstStr or ValGlobalAddr
}

// Temp builds a reference to SSA temporary id.
func Temp(id ValueID) Value { return Value{Kind: ValTemp, Temp: id} }

// ConstInt builds an integer constant of the given (non-boolean) value.
func ConstInt(v int64) Value { return Value{Kind: ValConstInt, Int: v} }

// ConstBool builds an I1 constant.
func ConstBool(b bool) Value {
	v := int64(0)
	if b {
		v = 1
	}
	return Value{Kind: ValConstInt, Int: v, IsBool: true}
}

// ConstFloat builds an F64 constant.
func ConstFloat(v float64) Value { return Value{Kind: ValConstFloat, Float: v} }

// ConstStr builds a string literal value.
func ConstStr(s string) Value { return Value{Kind: ValConstStr, Str: s} }

// GlobalAddr builds a reference to a module-level global by name.
func GlobalAddr(name string) Value { return Value{Kind: ValGlobalAddr, Str: name} }

// NullPtr is the null pointer constant.
var NullPtr = Value{Kind: ValNullPtr}

// IsConst reports whether v is one of the constant kinds (not a temp or a
// global address, which requires relocation).
func (v Value) IsConst() bool {
	switch v.Kind {
	case ValConstInt, ValConstFloat, ValConstStr, ValNullPtr:
		return true
	default:
		return false
	}
}

// Equal reports whether two values denote the same operand syntactically
// (used by Peephole's SameOperands rule and by SCCP's lattice equality).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValTemp:
		return v.Temp == o.Temp
	case ValConstInt:
		return v.Int == o.Int && v.IsBool == o.IsBool
	case ValConstFloat:
		return v.Float == o.Float
	case ValConstStr:
		return v.Str == o.Str
	case ValGlobalAddr:
		return v.Str == o.Str
	case ValNullPtr:
		return true
	default:
		return false
	}
}

// String renders v in the textual IL operand syntax.
func (v Value) String() string {
	switch v.Kind {
	case ValTemp:
		return fmt.Sprintf("%%t%d", v.Temp)
	case ValConstInt:
		if v.IsBool {
			if v.Int != 0 {
				return "true"
			}
			return "false"
		}
		return fmt.Sprintf("%d", v.Int)
	case ValConstFloat:
		return formatFloat(v.Float)
	case ValConstStr:
		return quoteString(v.Str)
	case ValGlobalAddr:
		return "@" + v.Str
	case ValNullPtr:
		return "null"
	default:
		return "<invalid value>"
	}
}
