package heap

// Field is one slot of an Object payload. Scalar fields (I32/I64/F64)
// carry their value in Scalar; Str fields carry an owning reference in
// Ref (retained on store, released on overwrite or destruction, exactly
// like ArrayStr's elements). Ref is a *String, so no other payload kind
// can be held in a field.
type Field struct {
	IsRef  bool
	Scalar uint64
	Ref    *String
}

// Object is a reference-counted payload of named... in practice
// positionally-addressed... fields, used by front ends that lower
// user-defined record types onto the heap. The IL itself only sees it
// through Ptr-typed loads/stores at GEP-computed offsets; Object exists
// at this layer so that the heap, not ad-hoc byte blobs, owns the
// retain/release discipline for any Str-typed field.
type Object struct {
	Header
	Fields []Field
}

// NewObject allocates an Object with numFields zero-valued scalar fields.
func NewObject(numFields int) *Object {
	o := &Object{Fields: make([]Field, numFields)}
	initHeader(&o.Header, KindObject, ElemNone, numFields, numFields)
	return o
}

func (o *Object) Retain() *Object {
	if o == nil {
		return nil
	}
	o.checkMagic()
	o.refcnt++
	return o
}

func (o *Object) Release() {
	if o == nil {
		return
	}
	releaseSimple(&o.Header, func() {
		for i := range o.Fields {
			if o.Fields[i].IsRef {
				o.Fields[i].Ref.Release()
			}
		}
		o.Fields = nil
	})
}

// GetScalar returns field i's scalar bits.
func (o *Object) GetScalar(i int) uint64 {
	boundsCheck(&o.Header, i)
	return o.Fields[i].Scalar
}

// SetScalar stores a scalar value at field i, releasing any string
// reference previously held there.
func (o *Object) SetScalar(i int, v uint64) {
	boundsCheck(&o.Header, i)
	if o.Fields[i].IsRef {
		o.Fields[i].Ref.Release()
	}
	o.Fields[i] = Field{Scalar: v}
}

// GetRef returns field i's string reference (borrowed; call Retain if the
// caller needs an owning copy).
func (o *Object) GetRef(i int) *String {
	boundsCheck(&o.Header, i)
	return o.Fields[i].Ref
}

// SetRef stores a retained copy of v at field i, releasing whatever was
// previously there.
func (o *Object) SetRef(i int, v *String) {
	boundsCheck(&o.Header, i)
	old := o.Fields[i]
	o.Fields[i] = Field{IsRef: true, Ref: v.Retain()}
	if old.IsRef {
		old.Ref.Release()
	}
}
