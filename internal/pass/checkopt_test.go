package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper-sub016/internal/ir"
)

// TestCheckOptAliasesRedundantCheck checks that a second checked division
// with identical operands to an earlier one in the same block is aliased
// to the first instead of re-executed.
func TestCheckOptAliasesRedundantCheck(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)

	a := b.Bin(ir.OpSDivChk0, ir.I64, ir.ConstInt(10), ir.ConstInt(5))
	dup := b.Bin(ir.OpSDivChk0, ir.I64, ir.ConstInt(10), ir.ConstInt(5))
	sum := b.Bin(ir.OpAdd, ir.I64, a, dup)
	b.Ret(&sum)
	m.AddFunc(fn)

	st := &Stats{}
	preserved := runCheckOpt(m, st, nil)

	require.False(t, preserved.Has(PreservesDominance))
	require.Equal(t, 1, st.InstructionsFolded)

	require.Len(t, entry.Instrs, 3)
	addInstr := entry.Instrs[1]
	require.Equal(t, ir.OpAdd, addInstr.Op)
	require.Equal(t, ir.ValTemp, addInstr.Args[0].Kind)
	require.Equal(t, ir.ValTemp, addInstr.Args[1].Kind)
	require.Equal(t, addInstr.Args[0].Temp, addInstr.Args[1].Temp)
}

// TestCheckOptLeavesDistinctChecksAlone checks that two checked divisions
// with different operands are both kept.
func TestCheckOptLeavesDistinctChecksAlone(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunction("f", ir.I64, nil)
	b := ir.NewBuilder(fn)
	entry := b.Block("entry")
	b.SetBlock(entry)

	a := b.Bin(ir.OpSDivChk0, ir.I64, ir.ConstInt(10), ir.ConstInt(5))
	c := b.Bin(ir.OpSDivChk0, ir.I64, ir.ConstInt(20), ir.ConstInt(4))
	sum := b.Bin(ir.OpAdd, ir.I64, a, c)
	b.Ret(&sum)
	m.AddFunc(fn)

	st := &Stats{}
	preserved := runCheckOpt(m, st, nil)

	require.Equal(t, PreservesAll, preserved)
	require.Equal(t, 0, st.InstructionsFolded)
	require.Len(t, entry.Instrs, 4)
}
