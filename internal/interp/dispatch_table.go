package interp

import "github.com/splanck/viper-sub016/internal/ir"

// tableDispatcher resolves every instruction through a single shared
// map[ir.Opcode]handlerFunc lookup.
type tableDispatcher struct{}

func (tableDispatcher) exec(vm *VM, st *State, in *ir.Instr) signal {
	h, ok := handlers[in.Op]
	if !ok {
		return unknownOpHandler(vm, st, in)
	}
	return h(vm, st, in)
}
