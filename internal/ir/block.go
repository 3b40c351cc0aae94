package ir

// Param is a basic block parameter: a named, typed value defined at block
// entry and supplied by each predecessor's branch-argument list.
type Param struct {
	Name string
	Type Type
	Temp ValueID
}

// Block is a basic block: a label, its parameters, and a straight-line
// instruction list ending in exactly one terminator.
type Block struct {
	Label  string
	Params []Param
	Instrs []*Instr

	// index within Function.Blocks; maintained by Function methods so
	// diagnostics can report "#<block_index>" per the trap format.
	index int
}

// Index returns the block's position within its owning function's block
// list (the form used in trap diagnostics, e.g. "@main#0").
func (b *Block) Index() int { return b.index }

// Terminated reports whether the block currently ends with a terminator
// instruction. An empty block is not terminated.
func (b *Block) Terminated() bool {
	if len(b.Instrs) == 0 {
		return false
	}
	return b.Instrs[len(b.Instrs)-1].IsTerminator()
}

// Terminator returns the block's terminator instruction, or nil if the
// block is empty or not yet terminated.
func (b *Block) Terminator() *Instr {
	if !b.Terminated() {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// Append adds an instruction to the end of the block's instruction list.
// It does not check the terminator invariant; that is the verifier's job.
func (b *Block) Append(in *Instr) {
	b.Instrs = append(b.Instrs, in)
}

// ParamTemps returns the ValueIDs of the block's parameters, in order.
func (b *Block) ParamTemps() []ValueID {
	ids := make([]ValueID, len(b.Params))
	for i, p := range b.Params {
		ids[i] = p.Temp
	}
	return ids
}
