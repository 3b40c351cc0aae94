package interp

import "github.com/splanck/viper-sub016/internal/ir"

// switchDispatcher resolves every instruction through a hand-written Go
// switch instead of a map lookup, grouped identically to the table built
// in dispatch.go's init — the same handlerFunc bodies run either way,
// only the opcode-to-function resolution mechanism differs.
type switchDispatcher struct{}

func (switchDispatcher) exec(vm *VM, st *State, in *ir.Instr) signal {
	switch in.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem,
		ir.OpIAddOvf, ir.OpISubOvf, ir.OpIMulOvf,
		ir.OpSDivChk0, ir.OpUDivChk0, ir.OpSRemChk0, ir.OpURemChk0,
		ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv,
		ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpLShr, ir.OpAShr:
		return arithHandler(vm, st, in)
	case ir.OpICmpEq, ir.OpICmpNe, ir.OpSCmpLT, ir.OpSCmpLE, ir.OpSCmpGT, ir.OpSCmpGE,
		ir.OpUCmpLT, ir.OpUCmpLE, ir.OpUCmpGT, ir.OpUCmpGE,
		ir.OpFCmpEQ, ir.OpFCmpNE, ir.OpFCmpLT, ir.OpFCmpLE, ir.OpFCmpGT, ir.OpFCmpGE:
		return cmpHandler(vm, st, in)
	case ir.OpSitofp, ir.OpFptosi, ir.OpCastFpToSiRteChk, ir.OpCastFpToUiRteChk,
		ir.OpCastSiNarrowChk, ir.OpCastUiNarrowChk, ir.OpCastSiToFp, ir.OpCastUiToFp,
		ir.OpZext1, ir.OpTrunc1:
		return convHandler(vm, st, in)
	case ir.OpAlloca, ir.OpGEP, ir.OpLoad, ir.OpStore, ir.OpAddrOf, ir.OpConstStr, ir.OpConstNull:
		return memHandler(vm, st, in)
	case ir.OpBr, ir.OpCBr, ir.OpSwitchI32:
		return brHandler(vm, st, in)
	case ir.OpRet:
		return retHandler(vm, st, in)
	case ir.OpTrap, ir.OpTrapKind, ir.OpTrapFromErr, ir.OpTrapErr:
		return trapHandler(vm, st, in)
	case ir.OpEhPush, ir.OpEhPop, ir.OpEhEntry,
		ir.OpResumeSame, ir.OpResumeNext, ir.OpResumeLabel,
		ir.OpErrGetKind, ir.OpErrGetCode, ir.OpErrGetIp, ir.OpErrGetLine:
		return ehHandler(vm, st, in)
	case ir.OpCall, ir.OpCallIndirect:
		return callHandler(vm, st, in)
	case ir.OpIdxChk:
		return idxChkHandler(vm, st, in)
	default:
		return unknownOpHandler(vm, st, in)
	}
}
