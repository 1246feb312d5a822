package typetab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/strtab"
)

func TestPrimitivesPrepopulated(t *testing.T) {
	tab := New(strtab.New())
	assert.Equal(t, Void, Index(0))
	assert.Equal(t, KindVoid, tab.Get(Void).Base)
	assert.Equal(t, KindInt, tab.Get(Index(KindInt)).Base)
}

func TestPointerDepthMonotonic(t *testing.T) {
	tab := New(strtab.New())
	intIdx := Index(KindInt)

	p1 := tab.Pointer(intIdx)
	require.Equal(t, 1, tab.Get(p1).PointerDepth)

	p2 := tab.Pointer(p1)
	require.Equal(t, 2, tab.Get(p2).PointerDepth)

	back := tab.Dereference(p2)
	assert.Equal(t, 1, tab.Get(back).PointerDepth)
}

func TestDereferenceOfNonPointerPanics(t *testing.T) {
	tab := New(strtab.New())
	assert.Panics(t, func() {
		tab.Dereference(Index(KindInt))
	})
}

func TestStructLayoutFreezesAfterClose(t *testing.T) {
	strs := strtab.New()
	tab := New(strs)

	_, sidx := tab.NewStruct(strs.Intern("Point"))
	si := tab.Struct(sidx)

	ok := si.AddMember(Member{Name: strs.Intern("x"), Type: Index(KindInt)}, tab)
	require.True(t, ok)
	ok = si.AddMember(Member{Name: strs.Intern("y"), Type: Index(KindInt)}, tab)
	require.True(t, ok)

	assert.Equal(t, int64(8), si.Size)
	assert.Equal(t, int64(4), si.Align)
	assert.Equal(t, int64(4), si.Members[1].Offset)

	si.Freeze()
	assert.True(t, si.Frozen())

	ok = si.AddMember(Member{Name: strs.Intern("z"), Type: Index(KindInt)}, tab)
	assert.False(t, ok, "adding a member after Freeze must be rejected, not silently applied")
}

func TestStructAlignmentWithDoubleMember(t *testing.T) {
	strs := strtab.New()
	tab := New(strs)
	_, sidx := tab.NewStruct(strs.Intern("Mixed"))
	si := tab.Struct(sidx)

	si.AddMember(Member{Name: strs.Intern("a"), Type: Index(KindChar)}, tab)
	si.AddMember(Member{Name: strs.Intern("b"), Type: Index(KindDouble)}, tab)
	si.Freeze()

	// char then double: double must be 8-byte aligned, so offset 8, total size 16.
	assert.Equal(t, int64(8), si.Members[1].Offset)
	assert.Equal(t, int64(16), si.Size)
	assert.Equal(t, int64(8), si.Align)
}
