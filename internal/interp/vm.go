package interp

import (
	"io"
	"os"

	"github.com/splanck/viper-sub016/internal/heap"
	"github.com/splanck/viper-sub016/internal/ir"
	"github.com/splanck/viper-sub016/internal/srcmgr"
)

// Strategy selects how the dispatch loop resolves an instruction's opcode
// to the handlerFunc that executes it. All three produce identical
// results (spec.md's observational-equivalence testable property); they
// differ only in dispatch mechanism, chosen via the VIPER_DISPATCH
// environment variable, mirroring the env-var-driven toggle style used
// elsewhere in this codebase's build options.
type Strategy byte

const (
	// StrategyTable looks up handlers in a map[ir.Opcode]handlerFunc.
	StrategyTable Strategy = iota
	// StrategySwitch resolves handlers via a hand-written Go switch.
	StrategySwitch
	// StrategyThreaded caches a per-block slice of handlers, populated
	// from the table on first visit to each instruction and read
	// directly on every later visit (e.g. loop bodies, recursive calls).
	StrategyThreaded
)

// dispatcher is the one method each dispatch strategy implements.
type dispatcher interface {
	exec(vm *VM, st *State, in *ir.Instr) signal
}

// Helper is a registered runtime helper (component C9) backing an extern
// declaration: it receives the already-evaluated argument slots and
// returns a result slot plus an optional trap.
type Helper func(args []Slot) (Slot, *TrapValue)

// VM executes a verified Module by walking its SSA-form blocks directly,
// per spec.md §4.H.
type VM struct {
	Module *ir.Module

	Helpers map[string]Helper

	Trace       TraceMode
	TraceWriter io.Writer
	// Sources resolves TraceSource's instruction locations back to their
	// file text. Left nil, TraceSource falls back to the bare
	// "line N"/"file:line:col" rendering with no source text.
	Sources *srcmgr.Manager

	pool     *slotPool
	disp     dispatcher
	strategy Strategy

	globals   map[string]*heap.Object
	funcTypes map[*ir.Function]map[ir.ValueID]ir.Type

	threadedCache map[*ir.Block][]handlerFunc
}

// NewVM builds a VM over m, selecting its dispatch strategy from the
// VIPER_DISPATCH environment variable ("table" (default), "switch", or
// "threaded").
func NewVM(m *ir.Module) *VM {
	vm := &VM{
		Module:        m,
		Helpers:       map[string]Helper{},
		TraceWriter:   discardWriter{},
		pool:          newSlotPool(),
		globals:       map[string]*heap.Object{},
		funcTypes:     map[*ir.Function]map[ir.ValueID]ir.Type{},
		threadedCache: map[*ir.Block][]handlerFunc{},
	}
	vm.strategy = strategyFromEnv()
	switch vm.strategy {
	case StrategySwitch:
		vm.disp = switchDispatcher{}
	case StrategyThreaded:
		vm.disp = threadedDispatcher{}
	default:
		vm.disp = tableDispatcher{}
	}
	for _, g := range m.Globals {
		obj := heap.NewObject(1)
		obj.SetRef(0, heap.NewString(g.Payload))
		vm.globals[g.Name] = obj
	}
	return vm
}

func strategyFromEnv() Strategy {
	switch os.Getenv("VIPER_DISPATCH") {
	case "switch":
		return StrategySwitch
	case "threaded":
		return StrategyThreaded
	default:
		return StrategyTable
	}
}

// State is the live call stack for one VM.Run invocation.
type State struct {
	frames []*Frame
}

func (st *State) top() *Frame              { return st.frames[len(st.frames)-1] }
func (st *State) push(fr *Frame)           { st.frames = append(st.frames, fr) }
func (st *State) empty() bool              { return len(st.frames) == 0 }
func (st *State) pop() *Frame {
	n := len(st.frames)
	fr := st.frames[n-1]
	st.frames = st.frames[:n-1]
	return fr
}

// StepOutcome reports what happened after the call stack's top frame
// finished executing the function entirely: either a final value or an
// uncaught trap.
type StepOutcome struct {
	Returned bool
	Value    Slot
	Trapped  bool
	Trap     *TrapValue
}

func (vm *VM) newFrame(fn *ir.Function) *Frame {
	return &Frame{
		Fn:    fn,
		Block: fn.Entry(),
		Regs:  vm.pool.get(regFileSize(fn)),
	}
}

func (vm *VM) releaseFrame(fr *Frame) {
	vm.pool.put(fr.Regs)
}

// regFileSize returns one past the highest ValueID any instruction or
// block parameter in fn defines, sized so a dense []Slot indexed directly
// by ValueID covers every temp.
func regFileSize(fn *ir.Function) int {
	max := -1
	for _, p := range fn.Params {
		if int(p.Temp) > max {
			max = int(p.Temp)
		}
	}
	for _, b := range fn.Blocks {
		for _, p := range b.Params {
			if int(p.Temp) > max {
				max = int(p.Temp)
			}
		}
		for _, in := range b.Instrs {
			if in.HasResult && int(in.Result) > max {
				max = int(in.Result)
			}
		}
	}
	return max + 1
}

// Prepare builds a fresh call stack ready to execute fn(args...).
func (vm *VM) Prepare(fn *ir.Function, args []Slot) *State {
	fr := vm.newFrame(fn)
	for i, p := range fn.Params {
		if i < len(args) {
			fr.Regs[p.Temp] = args[i]
		}
	}
	return &State{frames: []*Frame{fr}}
}

// Run executes fn to completion with args, returning its result slot or
// the trap that escaped uncaught.
func (vm *VM) Run(fn *ir.Function, args []Slot) (Slot, *TrapValue) {
	st := vm.Prepare(fn, args)
	for {
		out := vm.Step(st)
		if out.Trapped {
			return Slot{}, out.Trap
		}
		if out.Returned {
			return out.Value, nil
		}
	}
}

// Step executes exactly one instruction on st's top frame and folds the
// resulting signal into the call stack: branching, returning, or
// unwinding for a trap, all independent of which dispatch strategy
// produced the signal.
func (vm *VM) Step(st *State) StepOutcome {
	fr := st.top()
	vm.traceStep(fr)
	in := fr.current()
	sig := vm.disp.exec(vm, st, in)

	switch {
	case sig.trap != nil:
		return vm.handleTrap(st, sig.trap)
	case sig.returned:
		return vm.handleReturn(st, sig.retVal)
	case sig.branched:
		return StepOutcome{}
	default:
		fr.IP++
		return StepOutcome{}
	}
}

// handleTrap searches the call stack, innermost frame first, for an
// active EH handler. If one is found, the trap is stamped as that
// frame's pendingTrap and control jumps into the handler block; frames
// below it that had no handler are popped and their register files
// recycled along the way. If the whole stack empties without finding a
// handler, the trap is the overall, uncaught result.
func (vm *VM) handleTrap(st *State, trap *TrapValue) StepOutcome {
	for !st.empty() {
		fr := st.top()
		if trap.FuncName == "" {
			trap.FuncName = fr.Fn.Name
			trap.BlockIndex = fr.Block.Index()
		}
		if label, ok := fr.popHandler(); ok {
			fr.pendingTrap = trap
			fr.gotoBlock(fr.Fn.BlockByLabel(label))
			return StepOutcome{}
		}
		vm.releaseFrame(st.pop())
	}
	return StepOutcome{Trapped: true, Trap: trap}
}

// handleReturn pops the completed frame. If a caller remains, the
// returned value is written into its result temp (when it expects one)
// and its IP is advanced past the Call; otherwise the popped frame was
// the outermost call and value is the overall result.
func (vm *VM) handleReturn(st *State, value Slot) StepOutcome {
	callee := st.pop()
	vm.releaseFrame(callee)
	if st.empty() {
		return StepOutcome{Returned: true, Value: value}
	}
	caller := st.top()
	if callee.CallerHasResult {
		caller.Regs[callee.CallerResultTemp] = value
	}
	caller.IP++
	return StepOutcome{}
}

// fail builds a trap located at fr's current instruction and returns it
// as a signal.
func (vm *VM) fail(fr *Frame, kind TrapKind, code int64, message string) signal {
	in := fr.current()
	return signal{trap: &TrapValue{
		Kind: kind, Code: code, Message: message,
		FuncName: fr.Fn.Name, BlockIndex: fr.Block.Index(), Line: in.Loc.Line,
	}}
}

// trapSignal stamps location information from fr onto an already-built
// trap (e.g. one returned by mem.go's helpers, which have no frame
// context of their own) and wraps it as a signal.
func (vm *VM) trapSignal(fr *Frame, trap *TrapValue) signal {
	in := fr.current()
	trap.FuncName = fr.Fn.Name
	trap.BlockIndex = fr.Block.Index()
	trap.Line = in.Loc.Line
	return signal{trap: trap}
}

// branch moves fr to the named target block, binding args to its block
// parameters.
func (vm *VM) branch(fr *Frame, label string, args []ir.Value) {
	target := fr.Fn.BlockByLabel(label)
	vals := make([]Slot, len(args))
	for i, a := range args {
		vals[i] = vm.eval(fr, a)
	}
	fr.gotoBlock(target)
	for i, p := range target.Params {
		if i < len(vals) {
			fr.Regs[p.Temp] = vals[i]
		}
	}
}

// doCall resolves callee as either a Module function (pushing a new
// Frame) or an extern dispatched through vm.Helpers, reporting an
// InvalidOperation trap if neither resolves.
func (vm *VM) doCall(st *State, fr *Frame, in *ir.Instr, callee string, argExprs []ir.Value) signal {
	args := make([]Slot, len(argExprs))
	for i, a := range argExprs {
		args[i] = vm.eval(fr, a)
	}

	if target := vm.Module.FuncByName(callee); target != nil {
		nf := vm.newFrame(target)
		for i, p := range target.Params {
			if i < len(args) {
				nf.Regs[p.Temp] = args[i]
			}
		}
		nf.CallerHasResult = in.HasResult
		nf.CallerResultTemp = in.Result
		st.push(nf)
		return signal{branched: true}
	}
	if ext := vm.Module.ExternByName(callee); ext != nil {
		h, ok := vm.Helpers[callee]
		if !ok {
			return vm.fail(fr, TrapInvalidOperation, 0, "no runtime helper registered for extern "+callee)
		}
		result, trap := h(args)
		if trap != nil {
			return vm.trapSignal(fr, trap)
		}
		if in.HasResult {
			fr.Regs[in.Result] = result
		}
		return signal{}
	}
	return vm.fail(fr, TrapInvalidOperation, 0, "call to unresolved function "+callee)
}

// eval resolves a Value operand against fr's register file and
// constants. ValGlobalAddr is deliberately NOT handled here: its meaning
// depends on which opcode consumes it (AddrOf wants the global's name
// turned into a pointer, ConstStr wants its payload turned into a string
// value), so those two opcodes' own handlers read in.Args[0].Str
// directly instead of routing through eval.
func (vm *VM) eval(fr *Frame, v ir.Value) Slot {
	switch v.Kind {
	case ir.ValTemp:
		return fr.Regs[v.Temp]
	case ir.ValConstInt:
		return Slot{I64: v.Int}
	case ir.ValConstFloat:
		return Slot{F64: v.Float}
	case ir.ValConstStr:
		return Slot{Str: heap.NewString(v.Str)}
	case ir.ValNullPtr:
		return Slot{}
	default:
		return Slot{}
	}
}

// globalAddr returns the MemAddr addressing the named module global.
func (vm *VM) globalAddr(name string) MemAddr {
	return MemAddr{Obj: vm.globals[name]}
}

// constStr resolves a ConstStr operand, which is either a literal string
// or a reference to a module global's payload.
func (vm *VM) constStr(v ir.Value) *heap.String {
	if v.Kind == ir.ValGlobalAddr {
		obj := vm.globals[v.Str]
		if obj == nil {
			return heap.NewString("")
		}
		return obj.GetRef(0).Retain()
	}
	return heap.NewString(v.Str)
}

// typeOf infers the static type of value v within fn: a constant's type
// is self-evident, and a temp's type is whatever instruction or block
// parameter defines it, found by a linear scan mirroring
// internal/verify's own funcVerifier.typeOf — there is no explicit type
// annotation on the consuming instruction to read instead.
func (vm *VM) typeOf(fn *ir.Function, v ir.Value) ir.Type {
	switch v.Kind {
	case ir.ValConstFloat:
		return ir.F64
	case ir.ValConstStr:
		return ir.Str
	case ir.ValNullPtr:
		return ir.Ptr
	case ir.ValConstInt:
		if v.IsBool {
			return ir.I1
		}
		return ir.I64
	case ir.ValTemp:
		if t, ok := vm.funcTypeOf(fn, v.Temp); ok {
			return t
		}
	}
	return ir.I64
}

func (vm *VM) funcTypeOf(fn *ir.Function, id ir.ValueID) (ir.Type, bool) {
	table, ok := vm.funcTypes[fn]
	if !ok {
		table = buildTypeTable(fn)
		vm.funcTypes[fn] = table
	}
	t, ok := table[id]
	return t, ok
}

func buildTypeTable(fn *ir.Function) map[ir.ValueID]ir.Type {
	table := map[ir.ValueID]ir.Type{}
	for _, p := range fn.Params {
		table[p.Temp] = p.Type
	}
	for _, b := range fn.Blocks {
		for _, p := range b.Params {
			table[p.Temp] = p.Type
		}
		for _, in := range b.Instrs {
			if in.HasResult {
				table[in.Result] = in.ResultType
			}
		}
	}
	return table
}

// threadedCacheFor returns (creating if absent) the per-instruction
// handler cache for b, used only by dispatch_threaded.go.
func (vm *VM) threadedCacheFor(b *ir.Block) []handlerFunc {
	c, ok := vm.threadedCache[b]
	if !ok {
		c = make([]handlerFunc, len(b.Instrs))
		vm.threadedCache[b] = c
	}
	return c
}
