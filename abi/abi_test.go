package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

func TestClassifyTypeScalars(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	assert.Equal(t, ClassInteger, ClassifyType(types, typetab.Index(typetab.KindInt)))
	assert.Equal(t, ClassSSE, ClassifyType(types, typetab.Index(typetab.KindDouble)))
}

func TestClassifyTypeLargeStructIsMemory(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	idx, si := types.NewStruct(strings.Intern("Big"))
	for i := 0; i < 4; i++ {
		types.Struct(si).AddMember(typetab.Member{Name: strings.Intern("f"), Type: typetab.Index(typetab.KindLong)}, types)
	}
	assert.Equal(t, ClassMemory, ClassifyType(types, idx))
}

func TestAssignParamsSystemVFillsIntegerRegsThenStack(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)
	params := []typetab.Index{intT, intT, intT, intT, intT, intT, intT}
	a := AssignParams(SystemV, types, params, false)
	require.Len(t, a.Params, 7)
	for i := 0; i < 6; i++ {
		assert.True(t, a.Params[i].InRegister)
	}
	assert.False(t, a.Params[6].InRegister)
	assert.Equal(t, int64(0), a.Params[6].StackSlot)
}

func TestAssignParamsWindowsLockstepSlots(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)
	doubleT := typetab.Index(typetab.KindDouble)
	params := []typetab.Index{intT, doubleT, intT, doubleT, intT}
	a := AssignParams(Windows, types, params, false)
	require.Len(t, a.Params, 5)
	assert.Equal(t, RCX, a.Params[0].Reg)
	assert.Equal(t, XMM1, a.Params[1].Reg)
	assert.Equal(t, R8, a.Params[2].Reg)
	assert.Equal(t, XMM3, a.Params[3].Reg)
	assert.False(t, a.Params[4].InRegister) // 5th slot overflows both 4-register files
	assert.Equal(t, int64(ShadowSpaceBytes), a.ShadowSpace)
}

func TestAlignStackTo16(t *testing.T) {
	assert.Equal(t, int64(16), AlignStackTo16(1))
	assert.Equal(t, int64(16), AlignStackTo16(16))
	assert.Equal(t, int64(32), AlignStackTo16(17))
}
