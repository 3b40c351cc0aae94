package ir

// Instr is a single SSA instruction. It is intentionally a flat struct
// rather than a tree of opcode-specific node types: every field that any
// opcode might need is present, and which ones are meaningful is
// determined entirely by Op. This mirrors the flattened-union instruction
// representation common to SSA-based intermediate representations, and
// keeps the instruction list a plain slice with no per-node allocation or
// interface dispatch.
type Instr struct {
	Op Opcode

	// Result holds the instruction's defined temporary, if any. HasResult
	// is false for instructions with no result (Store, Br, Ret of void,
	// ...).
	HasResult  bool
	Result     ValueID
	ResultType Type

	// Args are the instruction's value operands, in declaration order.
	Args []Value

	// Callee names the direct callee for Call; empty otherwise.
	Callee string

	// Labels are successor block labels, in declaration order: for Br, a
	// single label; for CBr, [trueLabel, falseLabel]; for SwitchI32,
	// [default, case0, case1, ...]; for EhPush, the handler label; for
	// ResumeLabel, the target label.
	Labels []string

	// BrArgs holds one branch-argument vector per entry in Labels, in the
	// same order, supplying the values passed to the corresponding
	// target block's parameters.
	BrArgs [][]Value

	// SwitchCases holds the case values for SwitchI32, parallel to
	// Labels[1:] (Labels[0] is the default target).
	SwitchCases []int32

	Loc SourceLoc

	// Pure and Readonly annotate call sites per the runtime helper ABI
	// classification (spec component C9); they are advisory attributes
	// consulted by the optimizer, not independently enforced here.
	Pure     bool
	Readonly bool
}

// Arg returns the i'th operand, or the zero Value if out of range.
func (in *Instr) Arg(i int) Value {
	if i < 0 || i >= len(in.Args) {
		return Value{}
	}
	return in.Args[i]
}

// ResultValue returns a Temp value referencing this instruction's result.
// Panics if the instruction has no result; callers should check HasResult
// first (or know the opcode always produces one).
func (in *Instr) ResultValue() Value {
	if !in.HasResult {
		panic("ir: instruction has no result")
	}
	return Temp(in.Result)
}

// IsTerminator reports whether this instruction ends a block.
func (in *Instr) IsTerminator() bool { return in.Op.IsTerminator() }

// Clone returns a deep copy of in suitable for inlining or pass rewrites
// that must not alias the original's slices.
func (in *Instr) Clone() *Instr {
	out := *in
	out.Args = append([]Value(nil), in.Args...)
	out.Labels = append([]string(nil), in.Labels...)
	out.SwitchCases = append([]int32(nil), in.SwitchCases...)
	out.BrArgs = make([][]Value, len(in.BrArgs))
	for i, vs := range in.BrArgs {
		out.BrArgs[i] = append([]Value(nil), vs...)
	}
	return &out
}
