// Package rtabi declares the runtime helper ABI (component C9): the
// fixed set of C-callable functions the VM invokes for an extern Call it
// cannot resolve against the module's own functions, plus their
// pure/readonly/nothrow classification, per spec.md §4.I.
//
// The classification table here is the single source of truth: both the
// optimizer's call-effects analysis (internal/pass) and the VM
// (internal/interp) must agree with it, mirroring the array-indexed
// classification idiom ssa_ref/instructions.go uses for its own opcodes
// (there keyed by Opcode; here keyed by helper name, since helpers are
// not part of the closed Opcode enum).
package rtabi

import "github.com/splanck/viper-sub016/internal/ir"

// Spec describes one runtime helper's signature and effect
// classification.
type Spec struct {
	Name     string
	Params   []ir.Type
	Ret      ir.Type
	Pure     bool
	Readonly bool
	Nothrow  bool
}

// Table lists every helper this ABI defines. Params/Ret ground each
// helper's extern declaration; Pure/Readonly/Nothrow feed directly into
// ir.Extern's matching fields.
var Table = []Spec{
	{Name: "rt_len", Params: []ir.Type{ir.Str}, Ret: ir.I64, Readonly: true, Nothrow: true},
	{Name: "rt_str_eq", Params: []ir.Type{ir.Str, ir.Str}, Ret: ir.I1, Readonly: true, Nothrow: true},
	{Name: "rt_sqrt", Params: []ir.Type{ir.F64}, Ret: ir.F64, Readonly: true, Nothrow: true},
	{Name: "rt_floor", Params: []ir.Type{ir.F64}, Ret: ir.F64, Readonly: true, Nothrow: true},
	{Name: "rt_instr2", Params: []ir.Type{ir.I64, ir.I64}, Ret: ir.Str, Readonly: true, Nothrow: true},
	{Name: "rt_instr3", Params: []ir.Type{ir.I64, ir.I64, ir.I64}, Ret: ir.Str, Readonly: true, Nothrow: true},

	{Name: "rt_abs_f64", Params: []ir.Type{ir.F64}, Ret: ir.F64, Pure: true, Nothrow: true},
	{Name: "rt_round_even", Params: []ir.Type{ir.F64}, Ret: ir.F64, Pure: true, Nothrow: true},
	{Name: "rt_cdbl_from_any", Params: []ir.Type{ir.I64}, Ret: ir.F64, Pure: true, Nothrow: true},
	{Name: "rt_fmin", Params: []ir.Type{ir.F64, ir.F64}, Ret: ir.F64, Pure: true, Nothrow: true},
	{Name: "rt_fmax", Params: []ir.Type{ir.F64, ir.F64}, Ret: ir.F64, Pure: true, Nothrow: true},

	// I/O and allocation helpers are conservatively unclassified: none of
	// Pure/Readonly/Nothrow is set, so the optimizer must treat them as
	// observable, order-dependent, and trapping.
	{Name: "rt_print_str", Params: []ir.Type{ir.Str}, Ret: ir.Void},
	{Name: "rt_print_i64", Params: []ir.Type{ir.I64}, Ret: ir.Void},
	{Name: "rt_print_f64", Params: []ir.Type{ir.F64}, Ret: ir.Void},
	{Name: "rt_concat", Params: []ir.Type{ir.Str, ir.Str}, Ret: ir.Str},
}

// bySpecName indexes Table for O(1) lookup.
var bySpecName = func() map[string]Spec {
	m := make(map[string]Spec, len(Table))
	for _, s := range Table {
		m[s.Name] = s
	}
	return m
}()

// Lookup finds a helper's Spec by name.
func Lookup(name string) (Spec, bool) {
	s, ok := bySpecName[name]
	return s, ok
}

// Externs builds the ir.Extern declarations for every helper in Table, in
// Table order, suitable for seeding a freshly parsed or hand-built
// Module's Externs list.
func Externs() []*ir.Extern {
	out := make([]*ir.Extern, len(Table))
	for i, s := range Table {
		out[i] = &ir.Extern{
			Name: s.Name, Params: append([]ir.Type(nil), s.Params...), RetType: s.Ret,
			Pure: s.Pure, Readonly: s.Readonly, Nothrow: s.Nothrow,
		}
	}
	return out
}
