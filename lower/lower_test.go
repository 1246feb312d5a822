package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

func newIntFunction(strings *strtab.Table, types *typetab.Table, nParams int) *ir.Function {
	intT := typetab.Index(typetab.KindInt)
	fn := &ir.Function{MangledName: "_Z1fii", ReturnType: intT}
	for i := 0; i < nParams; i++ {
		fn.Params = append(fn.Params, ir.Param{Type: intT})
		fn.NewTemp(intT, 32, ir.ValueCategory{Kind: ir.CatPRValue})
	}
	return fn
}

func TestBuildFrameReservesParamSlotsFirst(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	fn := newIntFunction(strings, types, 2)
	fn.NewTemp(typetab.Index(typetab.KindInt), 32, ir.ValueCategory{Kind: ir.CatPRValue}) // the sum result

	frame := BuildFrame(abi.SystemV, types, fn)
	require.Len(t, frame.TempSlot, 3)
	assert.NotEqual(t, frame.TempSlot[0], frame.TempSlot[1])
	assert.NotEqual(t, frame.TempSlot[1], frame.TempSlot[2])
	assert.Equal(t, int64(0), frame.Size%16, "frame size must stay 16-byte aligned")
}

func TestBuildFrameSizesStackAllocByStructLayout(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	structT, sidx := types.NewStruct(strings.Intern("Point"))
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("x"), Type: typetab.Index(typetab.KindInt)}, types)
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("y"), Type: typetab.Index(typetab.KindInt)}, types)

	fn := &ir.Function{MangledName: "_Z1gv", ReturnType: typetab.Index(typetab.KindVoid)}
	result := fn.NewTemp(structT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	fn.Emit(ir.OpStackAlloc, ir.StackAlloc{Type: structT, Slot: 0, Result: result})

	frame := BuildFrame(abi.SystemV, types, fn)
	require.Contains(t, frame.AllocSlot, 0)
	// The struct alloc and the TempVar holding its address each need a slot
	// independent of one another: 8 bytes for the struct is rounded up to
	// a full 8-byte slot, plus 8 for the address-holding TempVar.
	assert.GreaterOrEqual(t, frame.Size, int64(16))
}

func TestConvertEmitsPrologueAndEpilogueAroundBody(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	fn := newIntFunction(strings, types, 2)
	sum := fn.NewTemp(typetab.Index(typetab.KindInt), 32, ir.ValueCategory{Kind: ir.CatPRValue})

	addOp := strings.Intern("+")
	fn.Emit(ir.OpBinaryOp, ir.BinaryOp{
		Op:     addOp,
		LHS:    ir.TypedValue{Kind: ir.ValueTemp, Temp: 0, Type: typetab.Index(typetab.KindInt), IsSigned: true},
		RHS:    ir.TypedValue{Kind: ir.ValueTemp, Temp: 1, Type: typetab.Index(typetab.KindInt), IsSigned: true},
		Result: sum,
	})
	fn.Emit(ir.OpReturn, ir.Return{Value: ir.TypedValue{Kind: ir.ValueTemp, Temp: sum, Type: typetab.Index(typetab.KindInt), IsSigned: true}})

	conv := &Converter{Target: abi.SystemV, Types: types, Strings: strings}
	result, err := conv.Convert(fn)
	require.NoError(t, err)

	require.NotEmpty(t, result.Code)
	assert.Equal(t, byte(0x55), result.Code[0], "prologue starts with push rbp")
	assert.Equal(t, byte(0xC3), result.Code[len(result.Code)-1], "epilogue ends with ret")
	assert.Equal(t, "_Z1fii", result.Symbol.Name)
}

func TestConvertCondBranchTargetsBothLabels(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	boolT := typetab.Index(typetab.KindBool)
	fn := &ir.Function{MangledName: "_Z1hb", ReturnType: typetab.Index(typetab.KindVoid)}
	cond := fn.NewTemp(boolT, 8, ir.ValueCategory{Kind: ir.CatPRValue})
	fn.Params = append(fn.Params, ir.Param{Type: boolT})

	fn.Emit(ir.OpCondBranch, ir.CondBranch{
		Cond:      ir.TypedValue{Kind: ir.ValueTemp, Temp: cond, Type: boolT},
		ThenLabel: "then",
		ElseLabel: "else",
	})
	fn.Emit(ir.OpLabel, ir.Label{Name: "then"})
	fn.Emit(ir.OpJump, ir.Jump{Target: "join"})
	fn.Emit(ir.OpLabel, ir.Label{Name: "else"})
	fn.Emit(ir.OpLabel, ir.Label{Name: "join"})
	fn.Emit(ir.OpReturn, ir.Return{Void: true})

	conv := &Converter{Target: abi.SystemV, Types: types, Strings: strings}
	_, err := conv.Convert(fn)
	require.NoError(t, err)
}

func TestConvertDirectCallRecordsPLTRelocationOnSystemV(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)
	fn := &ir.Function{MangledName: "_Z6callerv", ReturnType: typetab.Index(typetab.KindVoid)}
	fn.Emit(ir.OpCall, ir.Call{
		Callee:     "_Z6calleei",
		Args:       []ir.TypedValue{{Kind: ir.ValueIntLiteral, IntLiteral: 7, Type: intT, IsSigned: true}},
		Result:     -1,
		ResultType: typetab.Index(typetab.KindVoid),
	})
	fn.Emit(ir.OpReturn, ir.Return{Void: true})

	conv := &Converter{Target: abi.SystemV, Types: types, Strings: strings}
	result, err := conv.Convert(fn)
	require.NoError(t, err)
	require.Len(t, result.Relocs, 1)
	assert.Equal(t, "_Z6calleei", result.Relocs[0].Symbol)
}

func TestConvertConstructorCallThreadsThisAsFirstArgument(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	structT, sidx := types.NewStruct(strings.Intern("Widget"))
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("n"), Type: typetab.Index(typetab.KindInt)}, types)

	fn := &ir.Function{MangledName: "_Z4makev", ReturnType: typetab.Index(typetab.KindVoid)}
	obj := fn.NewTemp(structT, 32, ir.ValueCategory{Kind: ir.CatLValue})
	fn.Emit(ir.OpStackAlloc, ir.StackAlloc{Type: structT, Slot: 0, Result: obj})
	fn.Emit(ir.OpConstructorCall, ir.ConstructorCall{
		Target:      ir.TypedValue{Kind: ir.ValueTemp, Temp: obj, Type: structT},
		MangledCtor: "_ZN6WidgetC1Ev",
	})
	fn.Emit(ir.OpReturn, ir.Return{Void: true})

	conv := &Converter{Target: abi.SystemV, Types: types, Strings: strings}
	result, err := conv.Convert(fn)
	require.NoError(t, err)
	require.Len(t, result.Relocs, 1)
	assert.Equal(t, "_ZN6WidgetC1Ev", result.Relocs[0].Symbol)
}
