package mangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

func TestItaniumEncodeFreeFunctionNoArgs(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := Itanium{Types: types, Strings: strings}
	got := m.Encode(FunctionName{Name: "main"})
	assert.Equal(t, "_Z4mainv", got)
}

func TestItaniumEncodeNamespacedWithParams(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := Itanium{Types: types, Strings: strings}
	intT := typetab.Index(typetab.KindInt)
	doubleT := typetab.Index(typetab.KindDouble)
	got := m.Encode(FunctionName{
		Namespaces: []string{"app"},
		Name:       "compute",
		Params:     []typetab.Index{intT, doubleT},
	})
	assert.Equal(t, "_ZN3app7computeEid", got)
}

func TestItaniumEncodePointerAndConstReference(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := Itanium{Types: types, Strings: strings}

	intT := typetab.Index(typetab.KindInt)
	ptrToInt := types.Pointer(intT)
	constInt := types.Qualify(intT, typetab.CVConst)
	refToConstInt := types.Reference(constInt, typetab.RefLValue)

	got := m.Encode(FunctionName{Name: "f", Params: []typetab.Index{ptrToInt, refToConstInt}})
	assert.Equal(t, "_Z1fPiRKi", got)
}

func TestItaniumEncodeClassType(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := Itanium{Types: types, Strings: strings}

	idx, _ := types.NewStruct(strings.Intern("Widget"))
	got := m.Encode(FunctionName{Name: "use", Params: []typetab.Index{idx}})
	assert.Equal(t, "_Z3use6Widget", got)
}

func TestItaniumDecodeRoundTripsStructure(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := Itanium{Types: types, Strings: strings}

	intT := typetab.Index(typetab.KindInt)
	doubleT := typetab.Index(typetab.KindDouble)
	ptrToInt := types.Pointer(intT)

	fn := FunctionName{
		Namespaces: []string{"app", "math"},
		Name:       "solve",
		Params:     []typetab.Index{intT, doubleT, ptrToInt},
	}
	mangled := m.Encode(fn)

	sig, err := DecodeItanium(mangled)
	require.NoError(t, err)
	assert.Equal(t, fn.Namespaces, sig.Namespaces)
	assert.Equal(t, fn.Name, sig.Name)
	assert.Equal(t, []string{"i", "d", "Pi"}, sig.Params)
}

func TestItaniumEncodeConstructorAndDestructor(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := Itanium{Types: types, Strings: strings}

	got := m.Encode(FunctionName{Namespaces: []string{"Widget"}, IsCtor: true})
	assert.Equal(t, "_ZN6WidgetC1Ev", got)

	got = m.Encode(FunctionName{Namespaces: []string{"Widget"}, IsDtor: true})
	assert.Equal(t, "_ZN6WidgetD1Ev", got)
}

func TestMSVCEncodeFreeFunctionVoid(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := MSVC{Types: types, Strings: strings}
	got := m.Encode(FunctionName{Name: "main"})
	assert.Equal(t, "?main@@YAXXZ", got)
}

func TestMSVCEncodeWithParamsAndReturn(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := MSVC{Types: types, Strings: strings}
	intT := typetab.Index(typetab.KindInt)
	got := m.Encode(FunctionName{Name: "add", Params: []typetab.Index{intT, intT}, ReturnType: intT})
	assert.Equal(t, "?add@@YAHHH@Z", got)
}

func TestMSVCEncodeMemberFunctionUsesClassScope(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	m := MSVC{Types: types, Strings: strings}
	got := m.Encode(FunctionName{Namespaces: []string{"Widget"}, Name: "tick"})
	assert.Equal(t, "?tick@Widget@@QEAAXXZ", got)
}
