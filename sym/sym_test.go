package sym

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

func TestNamespaceFQNComputedOnce(t *testing.T) {
	strs := strtab.New()
	reg := NewNamespaceRegistry(strs)

	a := reg.OpenOrCreate(Global, strs.Intern("a"))
	b := reg.OpenOrCreate(a, strs.Intern("b"))
	again := reg.OpenOrCreate(a, strs.Intern("b"))

	assert.Equal(t, b, again, "reopening a namespace must return the same handle")
	assert.Equal(t, "a::b", strs.String(reg.Get(b).FQN))
	assert.Equal(t, 2, reg.Get(b).Depth)
}

func TestScopeLookupOrder(t *testing.T) {
	strs := strtab.New()
	nsReg := NewNamespaceRegistry(strs)
	stack := NewStack(nsReg)

	outer := ast.NodeID(1)
	name := strs.Intern("x")
	stack.Declare(name, outer)

	stack.Push(ScopeBlock, Global)
	inner := ast.NodeID(2)
	stack.Declare(name, inner)

	found, ok := stack.Lookup(name)
	require.True(t, ok)
	assert.Equal(t, []ast.NodeID{inner}, found, "inner scope shadows outer")

	stack.Pop()
	found, ok = stack.Lookup(name)
	require.True(t, ok)
	assert.Equal(t, []ast.NodeID{outer}, found)
}

func TestScopeHygieneAfterParse(t *testing.T) {
	stack := NewStack(NewNamespaceRegistry(strtab.New()))
	stack.Push(ScopeFunction, Global)
	stack.Push(ScopeBlock, Global)
	stack.Pop()
	stack.Pop()
	assert.Equal(t, 1, stack.Depth(), "only the global namespace scope remains")
}

func TestUsingDirectivePullsInNames(t *testing.T) {
	strs := strtab.New()
	nsReg := NewNamespaceRegistry(strs)
	stack := NewStack(nsReg)

	other := nsReg.OpenOrCreate(Global, strs.Intern("other"))
	stack.Push(ScopeNamespace, other)
	fn := ast.NodeID(7)
	stack.Declare(strs.Intern("helper"), fn)
	stack.Pop()

	nsReg.AddUsingDirective(Global, other)

	found, ok := stack.Lookup(strs.Intern("helper"))
	require.True(t, ok)
	assert.Equal(t, []ast.NodeID{fn}, found)
}

func TestInstantiationCacheNeverInvalidates(t *testing.T) {
	cache := NewInstantiationCache()
	key := InstantiationKey{Template: 1, TypeArgs: []typetab.Index{typetab.Index(typetab.KindInt)}}

	result := InstantiationResult{ClassType: 42}
	stored := cache.Store(key, result)
	assert.Equal(t, result, stored)

	// A later "resolution" for the same key must not overwrite the first.
	other := cache.Store(key, InstantiationResult{ClassType: 999})
	assert.Equal(t, result, other)

	got, ok := cache.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, result, got)
}

func TestInstantiationCachePreloadDoesNotOverwriteExisting(t *testing.T) {
	cache := NewInstantiationCache()
	key := InstantiationKey{Template: 2}
	cache.Store(key, InstantiationResult{FuncMangled: "first"})

	cache.Preload(key.Digest(), InstantiationResult{FuncMangled: "from-disk"})

	got, ok := cache.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "first", got.FuncMangled)
}

func TestInstantiationCachePreloadSeedsAbsentDigest(t *testing.T) {
	cache := NewInstantiationCache()
	key := InstantiationKey{Template: 3}

	cache.Preload(key.Digest(), InstantiationResult{FuncMangled: "from-disk"})

	got, ok := cache.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "from-disk", got.FuncMangled)
}

func TestInstantiationCacheEntriesSnapshotsAllStoredResults(t *testing.T) {
	cache := NewInstantiationCache()
	k1 := InstantiationKey{Template: 4}
	k2 := InstantiationKey{Template: 5}
	cache.Store(k1, InstantiationResult{FuncMangled: "a"})
	cache.Store(k2, InstantiationResult{FuncMangled: "b"})

	entries := cache.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[k1.Digest()].FuncMangled)
	assert.Equal(t, "b", entries[k2.Digest()].FuncMangled)
}

func TestMostSpecializedDetectsAmbiguity(t *testing.T) {
	cands := []Specialization{{Rank: 1}, {Rank: 2}, {Rank: 2}}
	best, ambiguous, ok := MostSpecialized(cands)
	require.True(t, ok)
	assert.True(t, ambiguous)
	assert.Equal(t, 2, best.Rank)

	single, ambiguous, ok := MostSpecialized([]Specialization{{Rank: 5}})
	require.True(t, ok)
	assert.False(t, ambiguous)
	assert.Equal(t, 5, single.Rank)
}

func TestInstantiationDepthLimitAndRecursionDetection(t *testing.T) {
	reg := NewRegistry()
	reg.maxInstantiationDepth = 2

	k1 := InstantiationKey{Template: 1, NonTypeArgs: []int64{1}}
	k2 := InstantiationKey{Template: 1, NonTypeArgs: []int64{2}}
	k3 := InstantiationKey{Template: 1, NonTypeArgs: []int64{3}}

	ok, _ := reg.EnterInstantiation(k1)
	require.True(t, ok)
	ok, _ = reg.EnterInstantiation(k2)
	require.True(t, ok)
	ok, reason := reg.EnterInstantiation(k3)
	assert.False(t, ok)
	assert.Contains(t, reason, "depth limit")

	reg.ExitInstantiation()
	reg.ExitInstantiation()

	ok, reason = reg.EnterInstantiation(k1)
	require.True(t, ok)
	ok, reason = reg.EnterInstantiation(k1)
	assert.False(t, ok)
	assert.Contains(t, reason, "recursive")
}
