package interp

import (
	"math"

	"github.com/splanck/viper-sub016/internal/ir"
)

// signal is what one opcode handler reports back to the shared dispatch
// loop in vm.go: either nothing unusual (advance to the next
// instruction), a branch the handler already carried out itself
// (fr.Block/fr.IP already repositioned), a function return, or a trap —
// a plain value, never a panic, per spec.md §9's explicit design note.
type signal struct {
	trap     *TrapValue
	branched bool
	returned bool
	retVal   Slot
}

// handlerFunc implements one opcode (or, for the grouped handlers below,
// a family of closely related opcodes) against the current top frame of
// st. All three dispatch strategies (dispatch_table.go, dispatch_switch.go,
// dispatch_threaded.go) resolve an instruction to one of these same
// functions; they differ only in how they get from in.Op to the function,
// never in what the function does once called.
type handlerFunc func(vm *VM, st *State, in *ir.Instr) signal

// handlers is the opcode -> handlerFunc table dispatch_table.go and
// dispatch_threaded.go consult. dispatch_switch.go re-expresses the same
// grouping as a literal switch instead of a map lookup.
var handlers = map[ir.Opcode]handlerFunc{}

func registerHandlers(fn handlerFunc, ops ...ir.Opcode) {
	for _, op := range ops {
		handlers[op] = fn
	}
}

func init() {
	registerHandlers(arithHandler,
		ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpIAddOvf, ir.OpISubOvf, ir.OpIMulOvf,
		ir.OpSDivChk0, ir.OpUDivChk0, ir.OpSRemChk0, ir.OpURemChk0,
		ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr,
	)
	registerHandlers(cmpHandler,
		ir.OpICmpEq, ir.OpICmpNe, ir.OpSCmpLT, ir.OpSCmpLE, ir.OpSCmpGT, ir.OpSCmpGE,
		ir.OpUCmpLT, ir.OpUCmpLE, ir.OpUCmpGT, ir.OpUCmpGE,
		ir.OpFCmpEQ, ir.OpFCmpNE, ir.OpFCmpLT, ir.OpFCmpLE, ir.OpFCmpGT, ir.OpFCmpGE,
	)
	registerHandlers(convHandler,
		ir.OpSitofp, ir.OpFptosi, ir.OpCastFpToSiRteChk, ir.OpCastFpToUiRteChk,
		ir.OpCastSiNarrowChk, ir.OpCastUiNarrowChk, ir.OpCastSiToFp, ir.OpCastUiToFp,
		ir.OpZext1, ir.OpTrunc1,
	)
	registerHandlers(memHandler,
		ir.OpAlloca, ir.OpGEP, ir.OpLoad, ir.OpStore, ir.OpAddrOf, ir.OpConstStr, ir.OpConstNull,
	)
	registerHandlers(brHandler, ir.OpBr, ir.OpCBr, ir.OpSwitchI32)
	registerHandlers(retHandler, ir.OpRet)
	registerHandlers(trapHandler, ir.OpTrap, ir.OpTrapKind, ir.OpTrapFromErr, ir.OpTrapErr)
	registerHandlers(ehHandler,
		ir.OpEhPush, ir.OpEhPop, ir.OpEhEntry,
		ir.OpResumeSame, ir.OpResumeNext, ir.OpResumeLabel,
		ir.OpErrGetKind, ir.OpErrGetCode, ir.OpErrGetIp, ir.OpErrGetLine,
	)
	registerHandlers(callHandler, ir.OpCall, ir.OpCallIndirect)
	registerHandlers(idxChkHandler, ir.OpIdxChk)
}

func unknownOpHandler(vm *VM, st *State, in *ir.Instr) signal {
	return vm.fail(st.top(), TrapInvalidOperation, 0, "unknown opcode "+in.Op.String())
}

// arithHandler implements every wrapping, overflow-checked, divide-by-
// zero-checked, floating-point, and bitwise/shift opcode.
func arithHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	x := vm.eval(fr, in.Args[0])
	y := vm.eval(fr, in.Args[1])

	switch in.Op {
	case ir.OpFAdd:
		fr.Regs[in.Result] = Slot{F64: x.F64 + y.F64}
		return signal{}
	case ir.OpFSub:
		fr.Regs[in.Result] = Slot{F64: x.F64 - y.F64}
		return signal{}
	case ir.OpFMul:
		fr.Regs[in.Result] = Slot{F64: x.F64 * y.F64}
		return signal{}
	case ir.OpFDiv:
		fr.Regs[in.Result] = Slot{F64: x.F64 / y.F64}
		return signal{}
	}

	var r int64
	switch in.Op {
	case ir.OpAdd:
		r = x.I64 + y.I64
	case ir.OpSub:
		r = x.I64 - y.I64
	case ir.OpMul:
		r = x.I64 * y.I64
	case ir.OpAnd:
		r = x.I64 & y.I64
	case ir.OpOr:
		r = x.I64 | y.I64
	case ir.OpXor:
		r = x.I64 ^ y.I64
	case ir.OpShl:
		r = x.I64 << uint64(y.I64&63)
	case ir.OpLShr:
		r = int64(uint64(x.I64) >> uint64(y.I64&63))
	case ir.OpAShr:
		r = x.I64 >> uint64(y.I64&63)
	case ir.OpSDiv:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		r = x.I64 / y.I64
	case ir.OpUDiv:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		r = int64(uint64(x.I64) / uint64(y.I64))
	case ir.OpSRem:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		r = x.I64 % y.I64
	case ir.OpURem:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		r = int64(uint64(x.I64) % uint64(y.I64))
	case ir.OpIAddOvf:
		v, ovf := addOverflows(x.I64, y.I64)
		if ovf {
			return vm.fail(fr, TrapOverflow, 0, "integer overflow in IAddOvf")
		}
		r = v
	case ir.OpISubOvf:
		v, ovf := subOverflows(x.I64, y.I64)
		if ovf {
			return vm.fail(fr, TrapOverflow, 0, "integer overflow in ISubOvf")
		}
		r = v
	case ir.OpIMulOvf:
		v, ovf := mulOverflows(x.I64, y.I64)
		if ovf {
			return vm.fail(fr, TrapOverflow, 0, "integer overflow in IMulOvf")
		}
		r = v
	case ir.OpSDivChk0:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		if x.I64 == math.MinInt64 && y.I64 == -1 {
			return vm.fail(fr, TrapOverflow, 0, "signed division overflow")
		}
		r = x.I64 / y.I64
	case ir.OpUDivChk0:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		r = int64(uint64(x.I64) / uint64(y.I64))
	case ir.OpSRemChk0:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		if x.I64 == math.MinInt64 && y.I64 == -1 {
			return vm.fail(fr, TrapOverflow, 0, "signed remainder overflow")
		}
		r = x.I64 % y.I64
	case ir.OpURemChk0:
		if y.I64 == 0 {
			return vm.fail(fr, TrapDivideByZero, 0, "division by zero")
		}
		r = int64(uint64(x.I64) % uint64(y.I64))
	}
	fr.Regs[in.Result] = Slot{I64: truncateToType(in.ResultType, r)}
	return signal{}
}

// cmpHandler implements every integer and floating-point comparison.
// Go's own float comparisons are already IEEE-754-correct for NaN (every
// ordered comparison is false, != is true), so no special-casing is
// needed for FCmp*.
func cmpHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	x := vm.eval(fr, in.Args[0])
	y := vm.eval(fr, in.Args[1])
	var b bool
	switch in.Op {
	case ir.OpICmpEq:
		b = x.I64 == y.I64
	case ir.OpICmpNe:
		b = x.I64 != y.I64
	case ir.OpSCmpLT:
		b = x.I64 < y.I64
	case ir.OpSCmpLE:
		b = x.I64 <= y.I64
	case ir.OpSCmpGT:
		b = x.I64 > y.I64
	case ir.OpSCmpGE:
		b = x.I64 >= y.I64
	case ir.OpUCmpLT:
		b = uint64(x.I64) < uint64(y.I64)
	case ir.OpUCmpLE:
		b = uint64(x.I64) <= uint64(y.I64)
	case ir.OpUCmpGT:
		b = uint64(x.I64) > uint64(y.I64)
	case ir.OpUCmpGE:
		b = uint64(x.I64) >= uint64(y.I64)
	case ir.OpFCmpEQ:
		b = x.F64 == y.F64
	case ir.OpFCmpNE:
		b = x.F64 != y.F64
	case ir.OpFCmpLT:
		b = x.F64 < y.F64
	case ir.OpFCmpLE:
		b = x.F64 <= y.F64
	case ir.OpFCmpGT:
		b = x.F64 > y.F64
	case ir.OpFCmpGE:
		b = x.F64 >= y.F64
	}
	fr.Regs[in.Result] = Slot{I64: boolToI64(b)}
	return signal{}
}

// convHandler implements every numeric conversion, unchecked and checked.
func convHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	x := vm.eval(fr, in.Args[0])
	switch in.Op {
	case ir.OpSitofp, ir.OpCastSiToFp:
		fr.Regs[in.Result] = Slot{F64: float64(x.I64)}
	case ir.OpCastUiToFp:
		fr.Regs[in.Result] = Slot{F64: float64(uint64(x.I64))}
	case ir.OpFptosi:
		fr.Regs[in.Result] = Slot{I64: truncateToType(in.ResultType, int64(x.F64))}
	case ir.OpCastFpToSiRteChk:
		if math.IsNaN(x.F64) || math.IsInf(x.F64, 0) {
			return vm.fail(fr, TrapDomainError, 0, "cannot convert NaN/Inf to integer")
		}
		rounded := math.RoundToEven(x.F64)
		if rounded < math.MinInt64 || rounded >= math.MaxInt64 {
			return vm.fail(fr, TrapOverflow, 0, "float-to-signed-int conversion overflow")
		}
		fr.Regs[in.Result] = Slot{I64: int64(rounded)}
	case ir.OpCastFpToUiRteChk:
		if math.IsNaN(x.F64) || math.IsInf(x.F64, 0) {
			return vm.fail(fr, TrapDomainError, 0, "cannot convert NaN/Inf to integer")
		}
		rounded := math.RoundToEven(x.F64)
		if rounded < 0 || rounded >= math.MaxUint64 {
			return vm.fail(fr, TrapOverflow, 0, "float-to-unsigned-int conversion overflow")
		}
		fr.Regs[in.Result] = Slot{I64: int64(uint64(rounded))}
	case ir.OpCastSiNarrowChk:
		if !fitsSigned(x.I64, in.ResultType) {
			return vm.fail(fr, TrapOverflow, 0, "signed narrowing conversion overflow")
		}
		fr.Regs[in.Result] = Slot{I64: truncateToType(in.ResultType, x.I64)}
	case ir.OpCastUiNarrowChk:
		if !fitsUnsigned(x.I64, in.ResultType) {
			return vm.fail(fr, TrapOverflow, 0, "unsigned narrowing conversion overflow")
		}
		fr.Regs[in.Result] = Slot{I64: truncateToType(in.ResultType, x.I64)}
	case ir.OpZext1:
		fr.Regs[in.Result] = Slot{I64: truncateToType(in.ResultType, x.I64&1)}
	case ir.OpTrunc1:
		fr.Regs[in.Result] = Slot{I64: boolToI64(x.I64&1 != 0)}
	}
	return signal{}
}

// memHandler implements Alloca/GEP/Load/Store/AddrOf/ConstStr/ConstNull.
func memHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	switch in.Op {
	case ir.OpAlloca:
		size := vm.eval(fr, in.Args[0]).I64
		fr.Regs[in.Result] = Slot{Ptr: Alloca(size)}
	case ir.OpGEP:
		ptr := vm.eval(fr, in.Args[0]).Ptr
		off := vm.eval(fr, in.Args[1]).I64
		addr, trap := GEP(ptr, off)
		if trap != nil {
			return vm.trapSignal(fr, trap)
		}
		fr.Regs[in.Result] = Slot{Ptr: addr}
	case ir.OpLoad:
		ptr := vm.eval(fr, in.Args[0]).Ptr
		slot, trap := Load(in.ResultType, ptr)
		if trap != nil {
			return vm.trapSignal(fr, trap)
		}
		fr.Regs[in.Result] = slot
	case ir.OpStore:
		ptr := vm.eval(fr, in.Args[0]).Ptr
		val := vm.eval(fr, in.Args[1])
		valT := vm.typeOf(fr.Fn, in.Args[1])
		if trap := Store(valT, ptr, val); trap != nil {
			return vm.trapSignal(fr, trap)
		}
	case ir.OpAddrOf:
		fr.Regs[in.Result] = Slot{Ptr: vm.globalAddr(in.Args[0].Str)}
	case ir.OpConstStr:
		fr.Regs[in.Result] = Slot{Str: vm.constStr(in.Args[0])}
	case ir.OpConstNull:
		fr.Regs[in.Result] = Slot{}
	}
	return signal{}
}

// brHandler implements Br/CBr/SwitchI32; each repositions the frame's
// cursor itself and reports branched so the shared loop doesn't also
// advance IP.
func brHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	switch in.Op {
	case ir.OpBr:
		vm.branch(fr, in.Labels[0], in.BrArgs[0])
	case ir.OpCBr:
		if vm.eval(fr, in.Args[0]).I64 != 0 {
			vm.branch(fr, in.Labels[0], in.BrArgs[0])
		} else {
			vm.branch(fr, in.Labels[1], in.BrArgs[1])
		}
	case ir.OpSwitchI32:
		scrut := int32(vm.eval(fr, in.Args[0]).I64)
		target := 0
		for i, c := range in.SwitchCases {
			if c == scrut {
				target = i + 1
				break
			}
		}
		vm.branch(fr, in.Labels[target], in.BrArgs[target])
	}
	return signal{branched: true}
}

func retHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	if len(in.Args) == 0 {
		return signal{returned: true}
	}
	return signal{returned: true, retVal: vm.eval(fr, in.Args[0])}
}

// trapHandler implements the explicit trap-construction opcodes.
func trapHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	switch in.Op {
	case ir.OpTrap:
		return vm.fail(fr, TrapUser, 0, "trap")
	case ir.OpTrapKind:
		kind := TrapKind(vm.eval(fr, in.Args[0]).I64)
		code := vm.eval(fr, in.Args[1]).I64
		return vm.fail(fr, kind, code, "explicit trap")
	case ir.OpTrapFromErr:
		e := vm.eval(fr, in.Args[0]).Err
		if e == nil {
			return vm.fail(fr, TrapInvalidOperation, 0, "TrapFromErr of a non-error value")
		}
		return vm.trapSignal(fr, &TrapValue{Kind: e.Kind, Code: e.Code, Message: e.Message})
	case ir.OpTrapErr:
		kind := TrapKind(vm.eval(fr, in.Args[0]).I64)
		code := vm.eval(fr, in.Args[1]).I64
		msg := vm.eval(fr, in.Args[2]).Str
		message := ""
		if msg != nil {
			message = msg.String()
		}
		return vm.fail(fr, kind, code, message)
	}
	return signal{}
}

// ehHandler implements the structured-exception-handling opcode family.
// ResumeSame and ResumeNext are deliberately narrowed to identical
// behavior: both re-signal the carried token as a fresh trap, which the
// shared dispatch loop's unwind logic then resolves against whatever
// handler remains enclosing this point, per the Open Question decision
// recorded in DESIGN.md.
func ehHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	switch in.Op {
	case ir.OpEhPush:
		fr.pushEH(in.Labels[0])
	case ir.OpEhPop:
		fr.popEH()
	case ir.OpEhEntry:
		fr.Regs[in.Result] = Slot{Err: fr.pendingTrap}
	case ir.OpResumeSame, ir.OpResumeNext:
		tok := vm.eval(fr, in.Args[0]).Err
		return signal{trap: tok}
	case ir.OpResumeLabel:
		target := fr.Fn.BlockByLabel(in.Labels[0])
		fr.gotoBlock(target)
		return signal{branched: true}
	case ir.OpErrGetKind:
		fr.Regs[in.Result] = Slot{I64: int64(vm.eval(fr, in.Args[0]).Err.Kind)}
	case ir.OpErrGetCode:
		fr.Regs[in.Result] = Slot{I64: vm.eval(fr, in.Args[0]).Err.Code}
	case ir.OpErrGetIp:
		fr.Regs[in.Result] = Slot{I64: int64(vm.eval(fr, in.Args[0]).Err.BlockIndex)}
	case ir.OpErrGetLine:
		fr.Regs[in.Result] = Slot{I64: int64(vm.eval(fr, in.Args[0]).Err.Line)}
	}
	return signal{}
}

// callHandler implements Call and CallIndirect, pushing a new Frame onto
// st for a direct function call, dispatching to a registered runtime
// helper for an extern, and trapping on an unresolved callee.
func callHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	switch in.Op {
	case ir.OpCall:
		return vm.doCall(st, fr, in, in.Callee, in.Args)
	case ir.OpCallIndirect:
		fnPtr := vm.eval(fr, in.Args[0]).Ptr
		if fnPtr.FuncName == "" {
			return vm.fail(fr, TrapInvalidOperation, 0, "indirect call through a non-function pointer")
		}
		return vm.doCall(st, fr, in, fnPtr.FuncName, in.Args[1:])
	}
	return signal{}
}

func idxChkHandler(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	idx := vm.eval(fr, in.Args[0]).I64
	lo := vm.eval(fr, in.Args[1]).I64
	hi := vm.eval(fr, in.Args[2]).I64
	if idx < lo || idx >= hi {
		return vm.fail(fr, TrapIndexOutOfBounds, 0, "index out of bounds")
	}
	return signal{}
}
