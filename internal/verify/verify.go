// Package verify implements the structural, type, SSA, and CFG
// well-formedness checks a Module must pass before the pass manager or
// the VM may operate on it (spec component C4).
//
// Verification is a single linear pass per function: build a block-label
// map, seed a Temp->Type table from parameters, walk each block checking
// operand kinds/types instruction by instruction, check branch targets
// and branch-argument typing, and check the terminator rule. All
// diagnostics found are accumulated and returned together rather than
// stopping at the first error, so a user sees every problem in one run.
package verify

import (
	"fmt"

	"github.com/splanck/viper-sub016/internal/cfg"
	"github.com/splanck/viper-sub016/internal/ir"
)

// Diagnostic is one verification failure, pinned to the function and
// (where available) the instruction that triggered it.
type Diagnostic struct {
	Func    string
	Block   string
	Message string
}

func (d Diagnostic) String() string {
	if d.Block != "" {
		return fmt.Sprintf("%s#%s: %s", d.Func, d.Block, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Func, d.Message)
}

// Result is the outcome of verifying a Module: Diagnostics is empty iff
// the module is well-formed.
type Result struct {
	Diagnostics []Diagnostic
}

// OK reports whether verification found no problems.
func (r Result) OK() bool { return len(r.Diagnostics) == 0 }

// Error implements the error interface so a Result can be returned
// directly as an error from APIs that only need a single failure value
// (e.g. the pass manager aborting a pipeline).
func (r Result) Error() string {
	if r.OK() {
		return "no errors"
	}
	s := fmt.Sprintf("%d verification error(s):", len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		s += "\n  " + d.String()
	}
	return s
}

type funcVerifier struct {
	m       *ir.Module
	fn      *ir.Function
	cfgCtx  *cfg.Context
	types   map[ir.ValueID]ir.Type
	defined map[ir.ValueID]bool
	diags   []Diagnostic
}

// Module verifies every function in m and returns the accumulated
// result.
func Module(m *ir.Module) Result {
	var r Result
	for _, fn := range m.Funcs {
		r.Diagnostics = append(r.Diagnostics, Function(m, fn).Diagnostics...)
	}
	return r
}

// Function verifies a single function against m's extern/function
// signatures (for Call operand checking).
func Function(m *ir.Module, fn *ir.Function) Result {
	fv := &funcVerifier{
		m:       m,
		fn:      fn,
		types:   make(map[ir.ValueID]ir.Type),
		defined: make(map[ir.ValueID]bool),
	}
	fv.run()
	return Result{Diagnostics: fv.diags}
}

func (fv *funcVerifier) errf(b *ir.Block, format string, args ...any) {
	d := Diagnostic{Func: fv.fn.Name, Message: fmt.Sprintf(format, args...)}
	if b != nil {
		d.Block = b.Label
	}
	fv.diags = append(fv.diags, d)
}

func (fv *funcVerifier) run() {
	if len(fv.fn.Blocks) == 0 {
		fv.errf(nil, "function has no blocks")
		return
	}

	entry := fv.fn.Entry()
	if len(entry.Params) != len(fv.fn.Params) {
		fv.errf(entry, "entry block parameter count (%d) does not match function parameter count (%d)",
			len(entry.Params), len(fv.fn.Params))
	} else {
		for i, p := range fv.fn.Params {
			if entry.Params[i].Type != p.Type {
				fv.errf(entry, "entry block parameter %d type %s does not match function parameter type %s",
					i, entry.Params[i].Type, p.Type)
			}
		}
	}

	labels := make(map[string]*ir.Block, len(fv.fn.Blocks))
	for _, b := range fv.fn.Blocks {
		if _, dup := labels[b.Label]; dup {
			fv.errf(b, "duplicate block label %q", b.Label)
			continue
		}
		labels[b.Label] = b
	}

	for _, b := range fv.fn.Blocks {
		for _, p := range b.Params {
			fv.types[p.Temp] = p.Type
			fv.defined[p.Temp] = true
		}
	}

	for _, b := range fv.fn.Blocks {
		fv.checkBlock(b, labels)
	}

	if fv.okSoFar() {
		fv.cfgCtx = cfg.Build(fv.fn)
		fv.checkDominance()
	}
}

func (fv *funcVerifier) okSoFar() bool { return len(fv.diags) == 0 }

func (fv *funcVerifier) checkBlock(b *ir.Block, labels map[string]*ir.Block) {
	if len(b.Instrs) == 0 {
		fv.errf(b, "block is empty")
		return
	}
	for i, in := range b.Instrs {
		isLast := i == len(b.Instrs)-1
		if in.IsTerminator() && !isLast {
			fv.errf(b, "terminator %s is not the last instruction in the block", in.Op)
		}
		if !in.IsTerminator() && isLast {
			fv.errf(b, "block does not end with a terminator (last instruction is %s)", in.Op)
		}
		fv.checkInstr(b, in, labels)
		if in.HasResult {
			if fv.defined[in.Result] {
				fv.errf(b, "temp %%t%d is defined more than once", in.Result)
			}
			fv.defined[in.Result] = true
			fv.types[in.Result] = in.ResultType
		}
	}
}

func (fv *funcVerifier) typeOf(v ir.Value) (ir.Type, bool) {
	switch v.Kind {
	case ir.ValTemp:
		t, ok := fv.types[v.Temp]
		return t, ok
	case ir.ValConstInt:
		if v.IsBool {
			return ir.I1, true
		}
		return ir.I64, true
	case ir.ValConstFloat:
		return ir.F64, true
	case ir.ValConstStr:
		return ir.Str, true
	case ir.ValGlobalAddr:
		return ir.Ptr, true // AddrOf's operand; AddrOf itself produces Ptr
	case ir.ValNullPtr:
		return ir.Ptr, true
	default:
		return typeInvalid(), false
	}
}

func typeInvalid() ir.Type { var t ir.Type; return t }

func (fv *funcVerifier) checkUse(b *ir.Block, v ir.Value) {
	if v.Kind == ir.ValTemp && !fv.defined[v.Temp] {
		fv.errf(b, "use of undefined temp %%t%d", v.Temp)
	}
}

func (fv *funcVerifier) checkInstr(b *ir.Block, in *ir.Instr, labels map[string]*ir.Block) {
	for _, a := range in.Args {
		fv.checkUse(b, a)
	}

	switch {
	case in.Op.IsArith():
		fv.checkArith(b, in)
	case in.Op.IsCompare():
		fv.checkCompare(b, in)
	}

	switch in.Op {
	case ir.OpLoad:
		fv.checkLoad(b, in)
	case ir.OpStore:
		fv.checkStore(b, in)
	case ir.OpGEP:
		fv.checkGEP(b, in)
	case ir.OpAddrOf:
		fv.checkAddrOf(b, in)
	case ir.OpConstStr:
		fv.checkConstStr(b, in)
	case ir.OpAlloca:
		fv.checkAlloca(b, in)
	case ir.OpCBr:
		fv.checkCBr(b, in, labels)
	case ir.OpBr:
		fv.checkBranchTargets(b, in, labels)
	case ir.OpSwitchI32:
		fv.checkSwitch(b, in, labels)
	case ir.OpRet:
		fv.checkRet(b, in)
	case ir.OpCall:
		fv.checkCall(b, in)
	case ir.OpIdxChk:
		fv.checkIdxChk(b, in)
	}
}

func (fv *funcVerifier) checkArith(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 2 {
		fv.errf(b, "%s expects 2 operands, got %d", in.Op, len(in.Args))
		return
	}
	t0, _ := fv.typeOf(in.Args[0])
	t1, _ := fv.typeOf(in.Args[1])
	if t0 != t1 {
		fv.errf(b, "%s operand types disagree (%s vs %s)", in.Op, t0, t1)
	}
	if in.HasResult && in.ResultType != t0 {
		fv.errf(b, "%s result type %s does not match operand type %s", in.Op, in.ResultType, t0)
	}
}

func (fv *funcVerifier) checkCompare(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 2 {
		fv.errf(b, "%s expects 2 operands, got %d", in.Op, len(in.Args))
		return
	}
	t0, _ := fv.typeOf(in.Args[0])
	t1, _ := fv.typeOf(in.Args[1])
	if t0 != t1 {
		fv.errf(b, "%s operand types disagree (%s vs %s)", in.Op, t0, t1)
	}
	if in.HasResult && in.ResultType != ir.I1 {
		fv.errf(b, "%s result type must be i1, got %s", in.Op, in.ResultType)
	}
}

func (fv *funcVerifier) checkLoad(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 1 {
		fv.errf(b, "Load expects 1 operand, got %d", len(in.Args))
		return
	}
	if t, ok := fv.typeOf(in.Args[0]); ok && t != ir.Ptr {
		fv.errf(b, "Load operand must be Ptr, got %s", t)
	}
	if in.ResultType == ir.Void {
		fv.errf(b, "Load element type must not be void")
	}
}

func (fv *funcVerifier) checkStore(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 2 {
		fv.errf(b, "Store expects 2 operands, got %d", len(in.Args))
		return
	}
	if t, ok := fv.typeOf(in.Args[0]); ok && t != ir.Ptr {
		fv.errf(b, "Store first operand must be Ptr, got %s", t)
	}
	valT, _ := fv.typeOf(in.Args[1])
	if valT == ir.Void {
		fv.errf(b, "Store element type must not be void")
	}
}

func (fv *funcVerifier) checkGEP(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 2 {
		fv.errf(b, "GEP expects 2 operands, got %d", len(in.Args))
		return
	}
	if t, ok := fv.typeOf(in.Args[0]); ok && t != ir.Ptr {
		fv.errf(b, "GEP first operand must be Ptr, got %s", t)
	}
	if t, ok := fv.typeOf(in.Args[1]); ok && t != ir.I64 {
		fv.errf(b, "GEP offset must be i64, got %s", t)
	}
	if in.HasResult && in.ResultType != ir.Ptr {
		fv.errf(b, "GEP result must be Ptr, got %s", in.ResultType)
	}
}

func (fv *funcVerifier) checkAddrOf(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 1 || in.Args[0].Kind != ir.ValGlobalAddr {
		fv.errf(b, "AddrOf operand must be a global address")
		return
	}
	if fv.m.GlobalByName(in.Args[0].Str) == nil {
		fv.errf(b, "AddrOf references undeclared global @%s", in.Args[0].Str)
	}
	if in.HasResult && in.ResultType != ir.Ptr {
		fv.errf(b, "AddrOf result must be Ptr, got %s", in.ResultType)
	}
}

func (fv *funcVerifier) checkConstStr(b *ir.Block, in *ir.Instr) {
	if len(in.Args) == 1 && in.Args[0].Kind != ir.ValGlobalAddr && in.Args[0].Kind != ir.ValConstStr {
		fv.errf(b, "ConstStr operand must be a global address or a literal string")
	}
	if in.HasResult && in.ResultType != ir.Str {
		fv.errf(b, "ConstStr result must be Str, got %s", in.ResultType)
	}
}

func (fv *funcVerifier) checkAlloca(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 1 {
		fv.errf(b, "Alloca expects 1 operand, got %d", len(in.Args))
		return
	}
	if v := in.Args[0]; v.Kind == ir.ValConstInt && v.Int < 0 {
		fv.errf(b, "Alloca size must be non-negative, got %d", v.Int)
	}
	if t, ok := fv.typeOf(in.Args[0]); ok && t != ir.I64 {
		fv.errf(b, "Alloca size must be i64, got %s", t)
	}
}

func (fv *funcVerifier) checkCBr(b *ir.Block, in *ir.Instr, labels map[string]*ir.Block) {
	if len(in.Args) != 1 {
		fv.errf(b, "CBr expects 1 condition operand, got %d", len(in.Args))
	} else if t, ok := fv.typeOf(in.Args[0]); ok && t != ir.I1 {
		fv.errf(b, "CBr condition must be i1, got %s", t)
	}
	if len(in.Labels) != 2 {
		fv.errf(b, "CBr requires exactly 2 successor labels, got %d", len(in.Labels))
	}
	fv.checkBranchTargets(b, in, labels)
}

func (fv *funcVerifier) checkSwitch(b *ir.Block, in *ir.Instr, labels map[string]*ir.Block) {
	if len(in.Args) != 1 {
		fv.errf(b, "SwitchI32 expects 1 scrutinee operand, got %d", len(in.Args))
	} else if t, ok := fv.typeOf(in.Args[0]); ok && t != ir.I32 {
		fv.errf(b, "SwitchI32 scrutinee must be i32, got %s", t)
	}
	if len(in.Labels) < 1 {
		fv.errf(b, "SwitchI32 requires a default label")
	}
	if len(in.SwitchCases) != len(in.Labels)-1 {
		fv.errf(b, "SwitchI32 has %d case values but %d case labels", len(in.SwitchCases), len(in.Labels)-1)
	}
	fv.checkBranchTargets(b, in, labels)
}

func (fv *funcVerifier) checkBranchTargets(b *ir.Block, in *ir.Instr, labels map[string]*ir.Block) {
	for i, label := range in.Labels {
		tgt, ok := labels[label]
		if !ok {
			fv.errf(b, "%s references unknown label %q", in.Op, label)
			continue
		}
		var args []ir.Value
		if i < len(in.BrArgs) {
			args = in.BrArgs[i]
		}
		if len(args) != len(tgt.Params) {
			fv.errf(b, "%s branch to %s passes %d arguments, target expects %d",
				in.Op, label, len(args), len(tgt.Params))
			continue
		}
		for j, a := range args {
			fv.checkUse(b, a)
			at, ok := fv.typeOf(a)
			if ok && at != tgt.Params[j].Type {
				fv.errf(b, "%s branch argument %d to %s has type %s, parameter expects %s",
					in.Op, j, label, at, tgt.Params[j].Type)
			}
		}
	}
}

func (fv *funcVerifier) checkRet(b *ir.Block, in *ir.Instr) {
	if fv.fn.RetType == ir.Void {
		if len(in.Args) != 0 {
			fv.errf(b, "Ret in void function must have no value")
		}
		return
	}
	if len(in.Args) != 1 {
		fv.errf(b, "Ret must return exactly one value of type %s", fv.fn.RetType)
		return
	}
	if t, ok := fv.typeOf(in.Args[0]); ok && t != fv.fn.RetType {
		fv.errf(b, "Ret value type %s does not match function return type %s", t, fv.fn.RetType)
	}
}

func (fv *funcVerifier) checkCall(b *ir.Block, in *ir.Instr) {
	params, ret, ok := fv.m.Signature(in.Callee)
	if !ok {
		fv.errf(b, "call to undeclared function %q", in.Callee)
		return
	}
	if len(in.Args) != len(params) {
		fv.errf(b, "call to %q passes %d arguments, expects %d", in.Callee, len(in.Args), len(params))
	} else {
		for i, a := range in.Args {
			if t, ok := fv.typeOf(a); ok && t != params[i] {
				fv.errf(b, "call to %q argument %d has type %s, expects %s", in.Callee, i, t, params[i])
			}
		}
	}
	if in.HasResult && in.ResultType != ret {
		fv.errf(b, "call to %q result type %s does not match declared return type %s", in.Callee, in.ResultType, ret)
	}
}

func (fv *funcVerifier) checkIdxChk(b *ir.Block, in *ir.Instr) {
	if len(in.Args) != 3 {
		fv.errf(b, "IdxChk expects 3 operands (index, lo, hi), got %d", len(in.Args))
		return
	}
	for i, a := range in.Args {
		if t, ok := fv.typeOf(a); ok && !t.IsInt() {
			fv.errf(b, "IdxChk operand %d must be an integer type, got %s", i, t)
		}
	}
}

// checkDominance verifies that every use of a temp is dominated by its
// definition. Parameters are defined at block entry (dominating every
// instruction in that block and all blocks it dominates); instruction
// results are defined at that instruction's point within its block.
func (fv *funcVerifier) checkDominance() {
	defBlock := make(map[ir.ValueID]*ir.Block, 16)
	defIndex := make(map[ir.ValueID]int, 16)
	for _, b := range fv.fn.Blocks {
		for _, p := range b.Params {
			defBlock[p.Temp] = b
			defIndex[p.Temp] = -1 // parameters dominate every instruction in the block
		}
		for i, in := range b.Instrs {
			if in.HasResult {
				defBlock[in.Result] = b
				defIndex[in.Result] = i
			}
		}
	}

	for _, useBlock := range fv.fn.Blocks {
		for i, in := range useBlock.Instrs {
			for _, a := range in.Args {
				fv.checkDominatedUse(a, useBlock, i, defBlock, defIndex)
			}
			for _, vs := range in.BrArgs {
				for _, a := range vs {
					fv.checkDominatedUse(a, useBlock, i, defBlock, defIndex)
				}
			}
		}
	}
}

func (fv *funcVerifier) checkDominatedUse(v ir.Value, useBlock *ir.Block, useIndex int, defBlock map[ir.ValueID]*ir.Block, defIndex map[ir.ValueID]int) {
	if v.Kind != ir.ValTemp {
		return
	}
	db, ok := defBlock[v.Temp]
	if !ok {
		return // already reported as undefined by checkUse
	}
	if db == useBlock {
		if defIndex[v.Temp] >= useIndex {
			fv.errf(useBlock, "use of %%t%d at instruction %d is not dominated by its definition at instruction %d in the same block",
				v.Temp, useIndex, defIndex[v.Temp])
		}
		return
	}
	if !fv.cfgCtx.Dominates(db, useBlock) {
		fv.errf(useBlock, "use of %%t%d in block %s is not dominated by its definition in block %s", v.Temp, useBlock.Label, db.Label)
	}
}
