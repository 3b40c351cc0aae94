package ir

// Builder provides a convenient, explicit API for constructing a
// Function's blocks and instructions. Unlike an incomplete-CFG SSA
// builder that reconstructs block parameters from variable definitions,
// this Builder requires the caller (a front end, a pass performing
// surgery, or the textual parser) to supply block parameters and every
// branch's argument list explicitly; the verifier (internal/verify)
// checks that supply is internally consistent. This matches the IL's own
// definition: block parameters are data, not a derived convenience.
type Builder struct {
	Fn  *Function
	cur *Block
}

// NewBuilder creates a Builder over an existing function.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Fn: fn}
}

// Block creates a new block in the builder's function and returns it
// without selecting it as current.
func (b *Builder) Block(label string) *Block {
	return b.Fn.AppendBlock(label)
}

// SetBlock selects blk as the block subsequent Emit calls append to.
func (b *Builder) SetBlock(blk *Block) { b.cur = blk }

// CurrentBlock returns the block currently receiving instructions.
func (b *Builder) CurrentBlock() *Block { return b.cur }

// AddParam appends a parameter to blk and returns its temp id.
func (b *Builder) AddParam(blk *Block, name string, t Type) ValueID {
	id := b.Fn.AllocTemp()
	blk.Params = append(blk.Params, Param{Name: name, Type: t, Temp: id})
	return id
}

// emit appends in to the current block, allocating a result temp when
// resultType is not Void.
func (b *Builder) emit(op Opcode, resultType Type, args []Value) *Instr {
	in := b.Fn.AllocInstr()
	in.Op = op
	in.Args = args
	if resultType != Void && resultType != typeInvalid {
		in.HasResult = true
		in.Result = b.Fn.AllocTemp()
		in.ResultType = resultType
	}
	b.cur.Append(in)
	return in
}

// Bin emits a two-operand instruction (arithmetic, bitwise, or
// comparison) with the given result type and returns its result value.
func (b *Builder) Bin(op Opcode, resultType Type, x, y Value) Value {
	return b.emit(op, resultType, []Value{x, y}).ResultValue()
}

// Un emits a one-operand instruction (conversions, error decomposition)
// and returns its result value.
func (b *Builder) Un(op Opcode, resultType Type, x Value) Value {
	return b.emit(op, resultType, []Value{x}).ResultValue()
}

// Alloca emits an Alloca of the given byte size and returns a Ptr value.
func (b *Builder) Alloca(size Value) Value {
	return b.emit(OpAlloca, Ptr, []Value{size}).ResultValue()
}

// GEP emits a pointer-offset computation.
func (b *Builder) GEP(ptr, offset Value) Value {
	return b.emit(OpGEP, Ptr, []Value{ptr, offset}).ResultValue()
}

// Load emits a typed load through ptr.
func (b *Builder) Load(elem Type, ptr Value) Value {
	return b.emit(OpLoad, elem, []Value{ptr}).ResultValue()
}

// Store emits a typed store of value through ptr; it has no result.
func (b *Builder) Store(ptr, value Value) {
	b.emit(OpStore, Void, []Value{ptr, value})
}

// AddrOf emits the address of a module global.
func (b *Builder) AddrOf(global string) Value {
	return b.emit(OpAddrOf, Ptr, []Value{GlobalAddr(global)}).ResultValue()
}

// Call emits a direct call to callee with args, returning the result
// value when ret != Void, or the zero Value otherwise.
func (b *Builder) Call(callee string, ret Type, args []Value) Value {
	in := b.emit(OpCall, ret, args)
	in.Callee = callee
	if in.HasResult {
		return in.ResultValue()
	}
	return Value{}
}

// CallIndirect emits an indirect call through a function-reference Ptr.
func (b *Builder) CallIndirect(fnPtr Value, ret Type, args []Value) Value {
	all := append([]Value{fnPtr}, args...)
	in := b.emit(OpCallIndirect, ret, all)
	if in.HasResult {
		return in.ResultValue()
	}
	return Value{}
}

// Br terminates the current block with an unconditional branch.
func (b *Builder) Br(target *Block, args []Value) {
	in := b.Fn.AllocInstr()
	in.Op = OpBr
	in.Labels = []string{target.Label}
	in.BrArgs = [][]Value{args}
	b.cur.Append(in)
}

// CBr terminates the current block with a conditional branch.
func (b *Builder) CBr(cond Value, trueBlk *Block, trueArgs []Value, falseBlk *Block, falseArgs []Value) {
	in := b.Fn.AllocInstr()
	in.Op = OpCBr
	in.Args = []Value{cond}
	in.Labels = []string{trueBlk.Label, falseBlk.Label}
	in.BrArgs = [][]Value{trueArgs, falseArgs}
	b.cur.Append(in)
}

// SwitchI32 terminates the current block with a multi-way branch.
func (b *Builder) SwitchI32(scrut Value, defaultBlk *Block, defaultArgs []Value, cases []int32, caseBlks []*Block, caseArgs [][]Value) {
	labels := make([]string, 1+len(caseBlks))
	brArgs := make([][]Value, 1+len(caseBlks))
	labels[0] = defaultBlk.Label
	brArgs[0] = defaultArgs
	for i, cb := range caseBlks {
		labels[i+1] = cb.Label
		brArgs[i+1] = caseArgs[i]
	}
	in := b.Fn.AllocInstr()
	in.Op = OpSwitchI32
	in.Args = []Value{scrut}
	in.Labels = labels
	in.BrArgs = brArgs
	in.SwitchCases = cases
	b.cur.Append(in)
}

// Ret terminates the current block by returning value (or no value for a
// Void-returning function).
func (b *Builder) Ret(value *Value) {
	in := b.Fn.AllocInstr()
	in.Op = OpRet
	if value != nil {
		in.Args = []Value{*value}
	}
	b.cur.Append(in)
}

// Trap terminates the current block unconditionally with a bare Trap.
func (b *Builder) Trap() {
	in := b.Fn.AllocInstr()
	in.Op = OpTrap
	b.cur.Append(in)
}
