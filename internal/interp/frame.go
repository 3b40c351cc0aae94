package interp

import "github.com/splanck/viper-sub016/internal/ir"

// Frame is one call's activation record: the function and current block
// being executed, an instruction cursor, a dense register file indexed
// by SSA temp id, and the per-frame stack of active EH handler labels
// that EhPush/EhPop maintain.
//
// CallerResult* record where, in the *caller's* frame, this frame's
// eventual Ret value must land; they are set by the Call handler at
// frame-push time and read back when this frame's Ret pops it.
type Frame struct {
	Fn    *ir.Function
	Block *ir.Block
	IP    int
	Regs  []Slot

	EHStack []string

	// pendingTrap holds the trap an enclosing handler is currently
	// catching, read by EhEntry to materialize it as an Error value.
	// Set by the dispatch loop's handleTrap when it lands a trap into a
	// handler block. Nothing clears it; the next trap landed in this
	// frame overwrites it.
	pendingTrap *TrapValue

	CallerHasResult  bool
	CallerResultTemp ir.ValueID
}

// current returns the instruction the frame's cursor points at.
func (fr *Frame) current() *ir.Instr {
	return fr.Block.Instrs[fr.IP]
}

// pushEH records a newly active handler label.
func (fr *Frame) pushEH(label string) {
	fr.EHStack = append(fr.EHStack, label)
}

// popEH removes the most recently pushed handler label, if any.
func (fr *Frame) popEH() {
	if n := len(fr.EHStack); n > 0 {
		fr.EHStack = fr.EHStack[:n-1]
	}
}

// popHandler pops and returns the frame's innermost active handler
// label, or ("", false) if none remain.
func (fr *Frame) popHandler() (string, bool) {
	n := len(fr.EHStack)
	if n == 0 {
		return "", false
	}
	label := fr.EHStack[n-1]
	fr.EHStack = fr.EHStack[:n-1]
	return label, true
}

// gotoBlock moves the frame's cursor to the start of b.
func (fr *Frame) gotoBlock(b *ir.Block) {
	fr.Block = b
	fr.IP = 0
}
