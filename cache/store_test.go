package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/typetab"
)

func TestOpenCreatesDatabaseUnderDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	assert.NotEmpty(t, s.RunID())
}

func TestPutThenLookupRoundTripsAFunctionInstantiation(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	key := sym.InstantiationKey{Template: 1, TypeArgs: []typetab.Index{typetab.Index(typetab.KindInt)}}
	result := sym.InstantiationResult{FuncMangled: "_Z3maxIiET_S0_S0_"}

	require.NoError(t, s.Put(key, result))

	e, ok := s.Lookup(key.Digest())
	require.True(t, ok)
	assert.Equal(t, "_Z3maxIiET_S0_S0_", e.FuncMangled)
	assert.False(t, e.Failed)
	assert.Equal(t, string(s.RunID()), e.RunID)

	got := e.Result()
	assert.Equal(t, result.FuncMangled, got.FuncMangled)
}

func TestPutRecordsFailureVerdict(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	key := sym.InstantiationKey{Template: 2, NonTypeArgs: []int64{-1}}
	result := sym.InstantiationResult{Failed: true, FailMessage: "negative array bound"}
	require.NoError(t, s.Put(key, result))

	e, ok := s.Lookup(key.Digest())
	require.True(t, ok)
	assert.True(t, e.Failed)
	assert.Equal(t, "negative array bound", e.FailMessage)
}

func TestPutIsFirstWriterWins(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	key := sym.InstantiationKey{Template: 3}
	require.NoError(t, s.Put(key, sym.InstantiationResult{FuncMangled: "first"}))
	require.NoError(t, s.Put(key, sym.InstantiationResult{FuncMangled: "second"}))

	e, ok := s.Lookup(key.Digest())
	require.True(t, ok)
	assert.Equal(t, "first", e.FuncMangled)
}

func TestLookupMissReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Lookup("no-such-digest")
	assert.False(t, ok)
}

func TestFlushWritesNewInMemoryEntriesOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	existingKey := sym.InstantiationKey{Template: 10}
	require.NoError(t, s.Put(existingKey, sym.InstantiationResult{FuncMangled: "already-on-disk"}))

	mem := sym.NewInstantiationCache()
	mem.Store(existingKey, sym.InstantiationResult{FuncMangled: "should-not-clobber"})
	newKey := sym.InstantiationKey{Template: 11}
	mem.Store(newKey, sym.InstantiationResult{FuncMangled: "fresh-this-run"})

	require.NoError(t, s.Flush(mem))

	e, ok := s.Lookup(existingKey.Digest())
	require.True(t, ok)
	assert.Equal(t, "already-on-disk", e.FuncMangled)

	e2, ok := s.Lookup(newKey.Digest())
	require.True(t, ok)
	assert.Equal(t, "fresh-this-run", e2.FuncMangled)
}

func TestHydrateIntoSeedsFreshInMemoryCache(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	key := sym.InstantiationKey{Template: 12, TypeArgs: []typetab.Index{typetab.Index(typetab.KindFloat)}}
	require.NoError(t, s.Put(key, sym.InstantiationResult{FuncMangled: "_Z3absIfET_S0_"}))

	mem := sym.NewInstantiationCache()
	require.NoError(t, s.HydrateInto(mem))

	got, ok := mem.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "_Z3absIfET_S0_", got.FuncMangled)
	assert.EqualValues(t, 1, mem.Hits, "the seeded entry is found by the first real Lookup call")
	assert.EqualValues(t, 0, mem.Misses)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	require.NoError(t, err)

	key := sym.InstantiationKey{Template: 4, TypeArgs: []typetab.Index{typetab.Index(typetab.KindDouble)}}
	require.NoError(t, s1.Put(key, sym.InstantiationResult{FuncMangled: "_Z4sqrtIdET_S0_"}))
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	e, ok := s2.Lookup(key.Digest())
	require.True(t, ok)
	assert.Equal(t, "_Z4sqrtIdET_S0_", e.FuncMangled)
	assert.Equal(t, string(s1.RunID()), e.RunID, "the row still carries the RunID of the run that created it")
}
