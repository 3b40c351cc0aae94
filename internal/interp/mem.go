package interp

import (
	"math"

	"github.com/splanck/viper-sub016/internal/heap"
	"github.com/splanck/viper-sub016/internal/ir"
)

// MemAddr is the runtime representation of a Ptr value. Rather than a
// flat byte-addressed region, it addresses a field within a reference-
// counted heap.Object: the IL's memory operations only ever touch memory
// through Ptr-typed loads/stores at GEP-computed offsets, and
// heap.Object already gives this layer retain/release discipline for any
// Str-typed field for free (see internal/heap/object.go). The zero value
// (Obj == nil) is the null pointer.
//
// FuncName is set only for the (currently unconstructible — see
// CallIndirect in dispatch.go) function-pointer flavor of Ptr; ordinary
// data pointers never set it.
type MemAddr struct {
	Obj      *heap.Object
	Field    int
	FuncName string
}

// IsNull reports whether a denotes the null pointer.
func (a MemAddr) IsNull() bool { return a.Obj == nil && a.FuncName == "" }

// fieldWidth is the width in bytes of one heap.Object field; GEP byte
// offsets must be a multiple of this.
const fieldWidth = 8

// Alloca allocates a fresh, frame-scoped Object sized to hold sizeBytes
// bytes of storage, rounded up to whole fieldWidth-sized fields. Per
// spec.md §4.H stack memory dies with the frame: this implementation
// relies on nothing else retaining the Object once the frame's register
// file is discarded, so Go's GC reclaims it exactly when the frame does
// — no explicit release is needed or attempted here.
func Alloca(sizeBytes int64) MemAddr {
	n := (sizeBytes + fieldWidth - 1) / fieldWidth
	if n < 1 {
		n = 1
	}
	return MemAddr{Obj: heap.NewObject(int(n))}
}

// GEP adds a signed byte offset to ptr, converting it to a field index.
// Offsets not a multiple of fieldWidth trap InvalidOperation rather than
// silently truncating, matching "Load/Store trap... on misalignment
// relative to the element's natural alignment" (spec.md §4.H) — every
// element type this VM supports is itself at most 8 bytes wide, so
// natural alignment here always means 8-byte alignment.
func GEP(ptr MemAddr, byteOffset int64) (MemAddr, *TrapValue) {
	if byteOffset%fieldWidth != 0 {
		return MemAddr{}, newTrap(TrapInvalidOperation, 0, "misaligned pointer offset")
	}
	return MemAddr{Obj: ptr.Obj, Field: ptr.Field + int(byteOffset/fieldWidth)}, nil
}

// withHeapRecover runs fn, converting a panicked *heap.AbortError (raised
// by heap bounds checks — reachable here if a GEP offset, though 8-byte
// aligned, still lands outside the allocation) into an IndexOutOfBounds
// trap instead of propagating the panic, per spec.md §9's "a trap is a
// plain result value" design note.
func withHeapRecover(fn func()) (trap *TrapValue) {
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*heap.AbortError); ok {
				trap = newTrap(TrapIndexOutOfBounds, 0, ae.Message)
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

// Load reads a t-typed value through ptr.
func Load(t ir.Type, ptr MemAddr) (Slot, *TrapValue) {
	if ptr.IsNull() {
		return Slot{}, newTrap(TrapInvalidOperation, 0, "null load")
	}
	var result Slot
	trap := withHeapRecover(func() {
		switch t {
		case ir.Str:
			result.Str = ptr.Obj.GetRef(ptr.Field).Retain()
		case ir.I1, ir.I16, ir.I32, ir.I64, ir.F64:
			result = slotFromBits(t, ptr.Obj.GetScalar(ptr.Field))
		default:
			// handled below, outside the recover scope
		}
	})
	if trap != nil {
		return Slot{}, trap
	}
	switch t {
	case ir.Str, ir.I1, ir.I16, ir.I32, ir.I64, ir.F64:
		return result, nil
	default:
		return Slot{}, newTrap(TrapInvalidOperation, 0, "value of this type cannot be loaded from memory")
	}
}

// Store writes value, whose static type is t, through ptr.
func Store(t ir.Type, ptr MemAddr, value Slot) *TrapValue {
	if ptr.IsNull() {
		return newTrap(TrapInvalidOperation, 0, "null store")
	}
	switch t {
	case ir.Str:
		return withHeapRecover(func() { ptr.Obj.SetRef(ptr.Field, value.Str) })
	case ir.I1, ir.I16, ir.I32, ir.I64, ir.F64:
		bits := bitsFromSlot(t, value)
		return withHeapRecover(func() { ptr.Obj.SetScalar(ptr.Field, bits) })
	default:
		return newTrap(TrapInvalidOperation, 0, "value of this type cannot be stored to memory")
	}
}

func slotFromBits(t ir.Type, bits uint64) Slot {
	switch t {
	case ir.F64:
		return Slot{F64: math.Float64frombits(bits)}
	case ir.I1:
		return Slot{I64: boolToI64(bits&1 != 0)}
	case ir.I16:
		return Slot{I64: int64(int16(bits))}
	case ir.I32:
		return Slot{I64: int64(int32(bits))}
	default: // I64
		return Slot{I64: int64(bits)}
	}
}

func bitsFromSlot(t ir.Type, v Slot) uint64 {
	switch t {
	case ir.F64:
		return math.Float64bits(v.F64)
	case ir.I1:
		return uint64(boolToI64(v.I64&1 != 0))
	case ir.I16:
		return uint64(uint16(v.I64))
	case ir.I32:
		return uint64(uint32(v.I64))
	default: // I64
		return uint64(v.I64)
	}
}
