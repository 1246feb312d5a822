package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/typetab"
)

func TestFunctionNewTempAssignsSequentialIDs(t *testing.T) {
	fn := &Function{}
	a := fn.NewTemp(typetab.Index(11), 32, ValueCategory{Kind: CatPRValue})
	b := fn.NewTemp(typetab.Index(11), 32, ValueCategory{Kind: CatLValue})
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	require.Len(t, fn.Temps, 2)
	assert.Equal(t, CatLValue, fn.Temp(b).Category.Kind)
}

func TestEmitTracksEHPresence(t *testing.T) {
	fn := &Function{}
	fn.Emit(OpStackAlloc, StackAlloc{})
	assert.False(t, fn.HasEH)
	fn.Emit(OpTryBegin, TryBegin{LandingPad: "Lpad0"})
	assert.True(t, fn.HasEH)
}

func TestTypedValueIsZeroPointer(t *testing.T) {
	nullPtr := TypedValue{Kind: ValueIntLiteral, IntLiteral: 0, PointerDepth: 1}
	notNull := TypedValue{Kind: ValueIntLiteral, IntLiteral: 1, PointerDepth: 1}
	notPtr := TypedValue{Kind: ValueIntLiteral, IntLiteral: 0, PointerDepth: 0}
	assert.True(t, nullPtr.IsZeroPointer())
	assert.False(t, notNull.IsZeroPointer())
	assert.False(t, notPtr.IsZeroPointer())
}

func TestModuleNewFunctionRegistersInOrder(t *testing.T) {
	m := &Module{}
	f1 := m.NewFunction(FunctionDecl{MangledName: "_Z3foov"})
	f2 := m.NewFunction(FunctionDecl{MangledName: "_Z3barv", HasHiddenReturnParam: true})
	require.Len(t, m.Functions, 2)
	assert.Same(t, f1, m.Functions[0])
	assert.Same(t, f2, m.Functions[1])
	assert.True(t, m.Functions[1].HasHiddenReturnParam)
}
