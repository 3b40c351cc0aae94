package ir

import "fmt"

// SourceLoc pins an instruction back to the front end's source text. It is
// carried by every instruction for diagnostics and tracing; front ends
// that have no source (synthetic code) use the zero value.
type SourceLoc struct {
	File   int // index into a SourceManager's file table; 0 = unknown
	Line   int
	Column int
}

// String renders the location the way trap diagnostics and source-level
// tracing do: "line N" when the file is unknown, "file:line:col" otherwise.
func (s SourceLoc) String() string {
	if s.File == 0 {
		return fmt.Sprintf("line %d", s.Line)
	}
	return fmt.Sprintf("%d:%d:%d", s.File, s.Line, s.Column)
}
