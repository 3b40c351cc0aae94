package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringRetainRelease(t *testing.T) {
	s := NewString("hello")
	require.Equal(t, int32(1), s.Refcnt())
	s.Retain()
	require.Equal(t, int32(2), s.Refcnt())
	s.Release()
	require.Equal(t, int32(1), s.Refcnt())
	require.Equal(t, "hello", s.String())
	s.Release()
}

func TestStringNilSafe(t *testing.T) {
	var s *String
	require.NotPanics(t, func() {
		s.Retain()
		s.Release()
	})
	require.Equal(t, "", s.String())
}

func TestArrayI64BoundsAbort(t *testing.T) {
	a := NewArrayI64(3)
	a.Set(0, 10)
	a.Set(2, 30)
	require.Equal(t, int64(10), a.Get(0))

	require.PanicsWithError(t, "index out of bounds (len=3)", func() {
		a.Get(3)
	})
}

func TestArrayI64ResizeUnsharedGrows(t *testing.T) {
	a := NewArrayI64(2)
	a.Set(0, 1)
	a.Set(1, 2)
	grown := a.Resize(4)
	require.Same(t, a, grown)
	require.Equal(t, int64(1), grown.Get(0))
	require.Equal(t, int64(0), grown.Get(3))
}

func TestArrayI64ResizeSharedCopiesOnWrite(t *testing.T) {
	a := NewArrayI64(2)
	a.Set(0, 7)
	a.Retain() // refcnt=2, now shared

	grown := a.Resize(3)
	require.NotSame(t, a, grown)
	require.Equal(t, int64(7), grown.Get(0))
	require.Equal(t, int32(1), a.Refcnt())
}

func TestArrayStrRetainsOnSetReleasesOnOverwrite(t *testing.T) {
	arr := NewArrayStr(2)
	s1 := NewString("a")
	s2 := NewString("b")
	arr.Set(0, s1)
	require.Equal(t, int32(2), s1.Refcnt())

	arr.Set(0, s2)
	require.Equal(t, int32(1), s1.Refcnt())
	require.Equal(t, int32(2), s2.Refcnt())

	arr.Release()
	require.Equal(t, int32(1), s2.Refcnt())
}

func TestObjectFieldRefLifecycle(t *testing.T) {
	o := NewObject(2)
	s := NewString("field")
	o.SetRef(0, s)
	require.Equal(t, int32(2), s.Refcnt())
	o.SetScalar(1, 42)
	require.Equal(t, uint64(42), o.GetScalar(1))

	o.Release()
	require.Equal(t, int32(1), s.Refcnt())
}

func TestMagicMismatchAborts(t *testing.T) {
	s := NewString("x")
	s.Release() // refcnt -> 0, magic cleared
	require.Panics(t, func() {
		s.Retain()
	})
}
