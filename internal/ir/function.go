package ir

import "github.com/splanck/viper-sub016/internal/ssapool"

// Param is redeclared conceptually at the function level via Function's
// own Params field (function parameters), reusing the Param type since a
// function's parameter list and its entry block's parameter list must
// agree per spec: the entry block's parameters equal the function's
// parameters.

// Function is a single IL function: a name, return type, parameter list,
// and ordered block list. The first block is always the entry block.
type Function struct {
	Name    string
	RetType Type
	Params  []Param
	Blocks  []*Block

	// ValueNames is a sparse, debug-only side table mapping a temp id to
	// a human-readable name for diagnostics and the printer; it has no
	// semantic effect.
	ValueNames map[ValueID]string

	nextTemp ValueID

	// blocks backs AppendBlock's allocations; a function's blocks are
	// all created during one construction pass (the builder or the
	// textual parser), so a single pool per function avoids one GC
	// allocation per block without needing a pool shared across
	// functions.
	blocks ssapool.Pool[Block]

	// instrs backs AllocInstr, used by Builder and the textual parser
	// for the instructions they create during the initial construction
	// pass. Passes that synthesize instructions later (inlining,
	// peephole rewrites) allocate directly; they run well after
	// construction and in far lower volume per function.
	instrs ssapool.Pool[Instr]
}

// NewFunction creates an empty function with no blocks. Use Builder to
// populate it.
func NewFunction(name string, ret Type, params []Param) *Function {
	return &Function{
		Name:       name,
		RetType:    ret,
		Params:     params,
		ValueNames: make(map[ValueID]string),
		blocks:     ssapool.New[Block](),
		instrs:     ssapool.New[Instr](),
	}
}

// AllocInstr returns a fresh, zero-valued *Instr backed by the
// function's instruction pool, for callers that build instructions
// during initial construction (Builder, the textual parser).
func (f *Function) AllocInstr() *Instr {
	return f.instrs.Allocate()
}

// Entry returns the function's entry block (Blocks[0]), or nil if the
// function has no blocks yet.
func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// BlockByLabel finds a block by label, or nil if none matches.
func (f *Function) BlockByLabel(label string) *Block {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// AllocTemp returns the next unused ValueID and advances the counter.
func (f *Function) AllocTemp() ValueID {
	id := f.nextTemp
	f.nextTemp++
	return id
}

// NextTemp reports the next ValueID that AllocTemp would return, without
// consuming it; used by passes that pre-size register files.
func (f *Function) NextTemp() ValueID { return f.nextTemp }

// reserveTemp bumps the allocator past id if needed, used when a pass
// clones instructions with pre-existing temp ids (e.g. the inliner
// renaming a callee's temps into the caller's numbering space) and must
// avoid colliding with subsequently allocated ones.
func (f *Function) reserveTemp(id ValueID) {
	if id != ValueInvalid && id >= f.nextTemp {
		f.nextTemp = id + 1
	}
}

// AppendBlock creates a new block, appends it to the function, and
// returns it. The caller is responsible for populating parameters and
// instructions.
func (f *Function) AppendBlock(label string) *Block {
	b := f.blocks.Allocate()
	b.Label = label
	b.index = len(f.Blocks)
	f.Blocks = append(f.Blocks, b)
	return b
}

// RemoveBlock deletes b from f.Blocks and renumbers the
// remaining blocks' indices. Used by DCE and SimplifyCFG when a block
// becomes unreachable or is folded away.
func (f *Function) RemoveBlock(b *Block) {
	for i, cur := range f.Blocks {
		if cur == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			break
		}
	}
	f.reindexBlocks()
}

func (f *Function) reindexBlocks() {
	for i, b := range f.Blocks {
		b.index = i
	}
}

// SetName records a debug name for a temp; has no semantic effect.
func (f *Function) SetName(id ValueID, name string) {
	if f.ValueNames == nil {
		f.ValueNames = make(map[ValueID]string)
	}
	f.ValueNames[id] = name
}
