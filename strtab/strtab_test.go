package strtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternDeduplicates(t *testing.T) {
	tab := New()

	a := tab.Intern("foo")
	b := tab.Intern("foo")
	c := tab.Intern("bar")

	assert.Equal(t, a, b, "interning the same string twice must return the same handle")
	assert.NotEqual(t, a, c)
	assert.Equal(t, "foo", tab.String(a))
	assert.Equal(t, "bar", tab.String(c))
}

func TestInvalidHandleIsReserved(t *testing.T) {
	tab := New()
	assert.Equal(t, "", tab.String(Invalid))

	h := tab.Intern("x")
	assert.NotEqual(t, Invalid, h)
}

func TestLookupDoesNotIntern(t *testing.T) {
	tab := New()
	_, ok := tab.Lookup("never-interned")
	assert.False(t, ok)

	h := tab.Intern("seen")
	got, ok := tab.Lookup("seen")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestHashIsStable(t *testing.T) {
	tab := New()
	h := tab.Intern("stable")
	first := tab.Hash(h)
	second := tab.Hash(h)
	assert.Equal(t, first, second)

	other := tab.Intern("different")
	assert.NotEqual(t, tab.Hash(h), tab.Hash(other))
}

func TestLenCountsReservedSlot(t *testing.T) {
	tab := New()
	assert.Equal(t, 1, tab.Len())
	tab.Intern("a")
	tab.Intern("b")
	tab.Intern("a")
	assert.Equal(t, 3, tab.Len())
}
