// Package interp implements the tree-walking virtual machine (component
// C8): it executes a verified Module directly off its SSA-form blocks,
// rather than lowering to bytecode first, per spec.md §4.H.
package interp

import "github.com/splanck/viper-sub016/internal/heap"

// Slot is the VM's untagged register value: a plain Go struct with one
// field per static type the IL defines, exactly mirroring the "the
// static type on each instruction tells the VM which field to touch"
// contract from the glossary's "Slot" entry. Nothing here is a tagged
// union or an interface; the opcode handler for a given instruction
// always knows from in.ResultType (or, for Store, from the producing
// instruction's static type) which field is live, so there is no
// runtime discriminant to maintain.
type Slot struct {
	I64 int64       // I1, I16, I32, I64
	F64 float64     // F64
	Ptr MemAddr     // Ptr
	Str *heap.String // Str
	Err *TrapValue  // Error and ResumeTok share this field; see trap.go
}

func boolToI64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
