package interp

import (
	"fmt"
	"io"
)

// TraceMode selects how much per-instruction detail the VM writes to its
// trace writer while it runs, per spec.md §4.H.
type TraceMode int

const (
	// TraceOff emits nothing.
	TraceOff TraceMode = iota
	// TraceIL emits one line per executed instruction in the textual IL
	// syntax, via ir.Instr.Format.
	TraceIL
	// TraceSource additionally prefixes each line with the instruction's
	// source location.
	TraceSource
)

// traceStep writes one line for the instruction about to execute, if
// tracing is enabled.
func (vm *VM) traceStep(fr *Frame) {
	if vm.Trace == TraceOff || vm.TraceWriter == nil {
		return
	}
	in := fr.current()
	if vm.Trace == TraceSource {
		loc := in.Loc.String()
		if vm.Sources != nil {
			if text, ok := vm.Sources.Line(in.Loc.File, in.Loc.Line); ok {
				loc = fmt.Sprintf("%s: %s", loc, text)
			}
		}
		fmt.Fprintf(vm.TraceWriter, "%s @%s#%d: %s\n", loc, fr.Fn.Name, fr.Block.Index(), in.Format())
		return
	}
	fmt.Fprintf(vm.TraceWriter, "@%s#%d: %s\n", fr.Fn.Name, fr.Block.Index(), in.Format())
}

// discardWriter is the TraceWriter NewVM installs by default; traceStep
// still skips writing when a caller sets TraceWriter to nil.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var _ io.Writer = discardWriter{}
