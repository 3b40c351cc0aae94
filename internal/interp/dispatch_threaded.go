package interp

import "github.com/splanck/viper-sub016/internal/ir"

// threadedDispatcher caches the resolved handlerFunc for each instruction
// the first time its block is visited, keyed by the instruction's
// position within the block, so repeat execution of the same block (a
// loop body, a recursive function's entry block) pays one map lookup per
// instruction instead of one per execution.
type threadedDispatcher struct{}

func (threadedDispatcher) exec(vm *VM, st *State, in *ir.Instr) signal {
	fr := st.top()
	cache := vm.threadedCacheFor(fr.Block)
	h := cache[fr.IP]
	if h == nil {
		var ok bool
		h, ok = handlers[in.Op]
		if !ok {
			h = unknownOpHandler
		}
		cache[fr.IP] = h
	}
	return h(vm, st, in)
}
