package ir

// Opcode enumerates every instruction kind the IL defines. The table below
// is the single source of truth for opcode metadata (name, terminator-ness,
// EH-sensitivity, side effects); every lookup table in this file is indexed
// by Opcode and sized opcodeCount, mirroring the "one array per concern,
// indexed by the enum" idiom used for side-effect and return-type
// classification elsewhere in this kind of IR.
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// arithmetic (wrapping)
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem

	// arithmetic (overflow-checked, traps on overflow)
	OpIAddOvf
	OpISubOvf
	OpIMulOvf

	// arithmetic (divide-by-zero checked, traps on zero divisor or
	// INT_MIN/-1 for the signed forms)
	OpSDivChk0
	OpUDivChk0
	OpSRemChk0
	OpURemChk0

	// floating point
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv

	// bitwise / shift
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr

	// comparisons
	OpICmpEq
	OpICmpNe
	OpSCmpLT
	OpSCmpLE
	OpSCmpGT
	OpSCmpGE
	OpUCmpLT
	OpUCmpLE
	OpUCmpGT
	OpUCmpGE
	OpFCmpEQ
	OpFCmpNE
	OpFCmpLT
	OpFCmpLE
	OpFCmpGT
	OpFCmpGE

	// conversions
	OpSitofp
	OpFptosi
	OpCastFpToSiRteChk
	OpCastFpToUiRteChk
	OpCastSiNarrowChk
	OpCastUiNarrowChk
	OpCastSiToFp
	OpCastUiToFp
	OpZext1
	OpTrunc1

	// memory
	OpAlloca
	OpGEP
	OpLoad
	OpStore
	OpAddrOf
	OpConstStr
	OpConstNull

	// control flow
	OpBr
	OpCBr
	OpSwitchI32
	OpRet
	OpTrap
	OpTrapKind
	OpTrapFromErr
	OpTrapErr

	// structured exception handling
	OpEhPush
	OpEhPop
	OpEhEntry
	OpResumeSame
	OpResumeNext
	OpResumeLabel
	OpErrGetKind
	OpErrGetCode
	OpErrGetIp
	OpErrGetLine

	// calls
	OpCall
	OpCallIndirect

	// bounds
	OpIdxChk

	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpInvalid:          "invalid",
	OpAdd:              "Add",
	OpSub:              "Sub",
	OpMul:              "Mul",
	OpSDiv:             "SDiv",
	OpUDiv:             "UDiv",
	OpSRem:             "SRem",
	OpURem:             "URem",
	OpIAddOvf:          "IAddOvf",
	OpISubOvf:          "ISubOvf",
	OpIMulOvf:          "IMulOvf",
	OpSDivChk0:         "SDivChk0",
	OpUDivChk0:         "UDivChk0",
	OpSRemChk0:         "SRemChk0",
	OpURemChk0:         "URemChk0",
	OpFAdd:             "FAdd",
	OpFSub:             "FSub",
	OpFMul:             "FMul",
	OpFDiv:             "FDiv",
	OpAnd:              "And",
	OpOr:               "Or",
	OpXor:              "Xor",
	OpShl:              "Shl",
	OpLShr:             "LShr",
	OpAShr:             "AShr",
	OpICmpEq:           "ICmpEq",
	OpICmpNe:           "ICmpNe",
	OpSCmpLT:           "SCmpLT",
	OpSCmpLE:           "SCmpLE",
	OpSCmpGT:           "SCmpGT",
	OpSCmpGE:           "SCmpGE",
	OpUCmpLT:           "UCmpLT",
	OpUCmpLE:           "UCmpLE",
	OpUCmpGT:           "UCmpGT",
	OpUCmpGE:           "UCmpGE",
	OpFCmpEQ:           "FCmpEQ",
	OpFCmpNE:           "FCmpNE",
	OpFCmpLT:           "FCmpLT",
	OpFCmpLE:           "FCmpLE",
	OpFCmpGT:           "FCmpGT",
	OpFCmpGE:           "FCmpGE",
	OpSitofp:           "Sitofp",
	OpFptosi:           "Fptosi",
	OpCastFpToSiRteChk: "CastFpToSiRteChk",
	OpCastFpToUiRteChk: "CastFpToUiRteChk",
	OpCastSiNarrowChk:  "CastSiNarrowChk",
	OpCastUiNarrowChk:  "CastUiNarrowChk",
	OpCastSiToFp:       "CastSiToFp",
	OpCastUiToFp:       "CastUiToFp",
	OpZext1:            "Zext1",
	OpTrunc1:           "Trunc1",
	OpAlloca:           "Alloca",
	OpGEP:              "GEP",
	OpLoad:             "Load",
	OpStore:            "Store",
	OpAddrOf:           "AddrOf",
	OpConstStr:         "ConstStr",
	OpConstNull:        "ConstNull",
	OpBr:               "Br",
	OpCBr:              "CBr",
	OpSwitchI32:        "SwitchI32",
	OpRet:              "Ret",
	OpTrap:             "Trap",
	OpTrapKind:         "TrapKind",
	OpTrapFromErr:      "TrapFromErr",
	OpTrapErr:          "TrapErr",
	OpEhPush:           "EhPush",
	OpEhPop:            "EhPop",
	OpEhEntry:          "EhEntry",
	OpResumeSame:       "ResumeSame",
	OpResumeNext:       "ResumeNext",
	OpResumeLabel:      "ResumeLabel",
	OpErrGetKind:       "ErrGetKind",
	OpErrGetCode:       "ErrGetCode",
	OpErrGetIp:         "ErrGetIp",
	OpErrGetLine:       "ErrGetLine",
	OpCall:             "Call",
	OpCallIndirect:     "CallIndirect",
	OpIdxChk:           "IdxChk",
}

// String implements fmt.Stringer.
func (op Opcode) String() string {
	if op < opcodeCount {
		return opcodeNames[op]
	}
	return "invalid"
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, opcodeCount)
	for op, name := range opcodeNames {
		if op == int(OpInvalid) {
			continue
		}
		m[name] = Opcode(op)
	}
	return m
}()

// ParseOpcode maps a textual mnemonic to an Opcode.
func ParseOpcode(s string) (Opcode, bool) {
	op, ok := opcodeByName[s]
	return op, ok
}

// isTerminator records which opcodes may legally be the last instruction
// of a block; the verifier rejects any block whose last instruction is
// not one of these, and rejects any instruction found after one.
var isTerminator = [opcodeCount]bool{
	OpBr: true, OpCBr: true, OpSwitchI32: true, OpRet: true,
	OpTrap: true, OpTrapKind: true, OpTrapFromErr: true, OpTrapErr: true,
	OpResumeSame: true, OpResumeNext: true, OpResumeLabel: true,
}

// IsTerminator reports whether op may end a basic block.
func (op Opcode) IsTerminator() bool {
	return op < opcodeCount && isTerminator[op]
}

// isEHSensitive records the EH-sensitive opcodes: those that participate
// in the structured exception-handling protocol and must never be
// reordered, duplicated, or deleted by an optimization pass that does not
// understand EH.
var isEHSensitive = [opcodeCount]bool{
	OpEhPush: true, OpEhPop: true, OpEhEntry: true,
	OpResumeSame: true, OpResumeNext: true, OpResumeLabel: true,
	OpTrap: true, OpTrapKind: true, OpTrapFromErr: true, OpTrapErr: true,
}

// IsEHSensitive reports whether op participates in structured exception
// handling.
func (op Opcode) IsEHSensitive() bool {
	return op < opcodeCount && isEHSensitive[op]
}

// SideEffect classifies how freely an instruction may be reordered,
// duplicated, or deleted by an optimization pass. It mirrors the
// side-effect lattice used to drive dead-code elimination and SCCP's
// treatment of externally observable operations.
type SideEffect byte

const (
	// EffectNone instructions are pure with respect to the Module: they
	// may be freely reordered with respect to other EffectNone
	// instructions, duplicated, or deleted if their result is unused.
	EffectNone SideEffect = iota
	// EffectTraps instructions have no effect besides possibly trapping;
	// they may be deleted only when proven not to trap (by SCCP's
	// folding rules) and are never duplicated speculatively.
	EffectTraps
	// EffectStrict instructions have an externally observable effect
	// (memory, calls, EH) and are never deleted, reordered across each
	// other, or treated as dead regardless of whether their result is
	// used.
	EffectStrict
)

var opcodeSideEffects = [opcodeCount]SideEffect{
	OpIAddOvf: EffectTraps, OpISubOvf: EffectTraps, OpIMulOvf: EffectTraps,
	OpSDivChk0: EffectTraps, OpUDivChk0: EffectTraps,
	OpSRemChk0: EffectTraps, OpURemChk0: EffectTraps,
	OpCastFpToSiRteChk: EffectTraps, OpCastFpToUiRteChk: EffectTraps,
	OpCastSiNarrowChk: EffectTraps, OpCastUiNarrowChk: EffectTraps,
	OpIdxChk: EffectTraps,

	OpLoad: EffectStrict, OpStore: EffectStrict, OpAlloca: EffectStrict,
	OpCall: EffectStrict, OpCallIndirect: EffectStrict,
	OpBr: EffectStrict, OpCBr: EffectStrict, OpSwitchI32: EffectStrict,
	OpRet: EffectStrict,
	OpTrap: EffectStrict, OpTrapKind: EffectStrict, OpTrapFromErr: EffectStrict, OpTrapErr: EffectStrict,
	OpEhPush: EffectStrict, OpEhPop: EffectStrict, OpEhEntry: EffectStrict,
	OpResumeSame: EffectStrict, OpResumeNext: EffectStrict, OpResumeLabel: EffectStrict,
}

// SideEffect reports op's classification, defaulting to EffectNone for any
// opcode not listed above (arithmetic, bitwise, comparisons, conversions,
// GEP/AddrOf/ConstStr/ConstNull, and error decomposition are all pure).
func (op Opcode) SideEffect() SideEffect {
	if op < opcodeCount {
		return opcodeSideEffects[op]
	}
	return EffectStrict
}

// IsArith reports whether op is one of the wrapping or overflow-checked
// integer arithmetic opcodes.
func (op Opcode) IsArith() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpSDiv, OpUDiv, OpSRem, OpURem,
		OpIAddOvf, OpISubOvf, OpIMulOvf,
		OpSDivChk0, OpUDivChk0, OpSRemChk0, OpURemChk0:
		return true
	default:
		return false
	}
}

// IsCompare reports whether op is one of the comparison opcodes.
func (op Opcode) IsCompare() bool {
	switch op {
	case OpICmpEq, OpICmpNe,
		OpSCmpLT, OpSCmpLE, OpSCmpGT, OpSCmpGE,
		OpUCmpLT, OpUCmpLE, OpUCmpGT, OpUCmpGE,
		OpFCmpEQ, OpFCmpNE, OpFCmpLT, OpFCmpLE, OpFCmpGT, OpFCmpGE:
		return true
	default:
		return false
	}
}

// IsCommutative reports whether swapping op's two operands is
// semantics-preserving.
func (op Opcode) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpIAddOvf, OpIMulOvf, OpAnd, OpOr, OpXor,
		OpFAdd, OpFMul, OpICmpEq, OpICmpNe, OpFCmpEQ, OpFCmpNE:
		return true
	default:
		return false
	}
}
