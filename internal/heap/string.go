package heap

// String is a reference-counted, immutable byte payload — the backing
// storage for the IL's Str values.
type String struct {
	Header
	Bytes []byte
}

// NewString allocates a String payload with refcnt=1 holding a copy of s.
func NewString(s string) *String {
	str := &String{Bytes: append([]byte(nil), s...)}
	initHeader(&str.Header, KindString, ElemNone, len(s), len(s))
	return str
}

// Retain increments the reference count and returns the same payload, so
// callers can write `h := s.Retain()` when cloning a handle.
func (s *String) Retain() *String {
	if s == nil {
		return nil
	}
	s.checkMagic()
	s.refcnt++
	return s
}

// Release decrements the reference count, freeing the backing bytes once
// it reaches zero. Nil-safe.
func (s *String) Release() {
	if s == nil {
		return
	}
	s.checkMagic()
	s.refcnt--
	switch {
	case s.refcnt > 0:
		return
	case s.refcnt == 0:
		s.Bytes = nil
		s.magic = 0
	default:
		abort("heap: release of string with refcnt already zero")
	}
}

// String returns the Go string view of the payload's bytes. Nil-safe,
// returning "".
func (s *String) String() string {
	if s == nil {
		return ""
	}
	s.checkMagic()
	return string(s.Bytes)
}

// Eq reports whether two string payloads hold equal content; used by the
// rt_str_eq runtime helper (spec component C9).
func (s *String) Eq(o *String) bool {
	return s.String() == o.String()
}
