package ir

// Extern declares an externally-provided function signature: a runtime
// helper (spec component C9) or a host-registered function. Only the
// signature lives here; the implementation is supplied by the host before
// the VM runs.
type Extern struct {
	Name    string
	Params  []Type
	RetType Type

	// Classification per the runtime helper ABI (spec §4.I); consulted by
	// optimization passes and the VM so that optimizer-visible effects
	// agree with runtime behavior.
	Pure     bool
	Readonly bool
	Nothrow  bool
}

// Global is a module-level immutable string constant, addressed via
// AddrOf/GlobalAddr.
type Global struct {
	Name    string
	Payload string
}

// Module is the top-level IL container: ordered lists of externs,
// globals, and functions. A Module exclusively owns everything beneath
// it; analyses and the VM hold borrowed references bounded by a single
// pass-manager run or VM invocation.
type Module struct {
	Version  [3]int // major, minor, patch, per the "il M.m.p" header
	Externs  []*Extern
	Globals  []*Global
	Funcs    []*Function
}

// NewModule creates an empty module at version 1.0.0.
func NewModule() *Module {
	return &Module{Version: [3]int{1, 0, 0}}
}

// FuncByName finds a function by name, or nil if none matches.
func (m *Module) FuncByName(name string) *Function {
	for _, fn := range m.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// ExternByName finds an extern declaration by name, or nil.
func (m *Module) ExternByName(name string) *Extern {
	for _, e := range m.Externs {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// GlobalByName finds a global by name, or nil.
func (m *Module) GlobalByName(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Signature returns the callable signature for name, checking functions
// first and then externs, or ok=false if neither declares it.
func (m *Module) Signature(name string) (params []Type, ret Type, ok bool) {
	if fn := m.FuncByName(name); fn != nil {
		ps := make([]Type, len(fn.Params))
		for i, p := range fn.Params {
			ps[i] = p.Type
		}
		return ps, fn.RetType, true
	}
	if e := m.ExternByName(name); e != nil {
		return e.Params, e.RetType, true
	}
	return nil, typeInvalid, false
}

// AddExtern appends an extern declaration to the module.
func (m *Module) AddExtern(e *Extern) { m.Externs = append(m.Externs, e) }

// AddGlobal appends a global to the module.
func (m *Module) AddGlobal(g *Global) { m.Globals = append(m.Globals, g) }

// AddFunc appends a function to the module.
func (m *Module) AddFunc(f *Function) { m.Funcs = append(m.Funcs, f) }
