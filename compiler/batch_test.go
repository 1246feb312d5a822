package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/config"
)

func TestBatchRunCompilesEachInputIndependently(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "add.ii", `int add(int a, int b) { return a + b; }`)
	bad := writeSource(t, dir, "bad.ii", `int broken( {`)

	sess, err := NewSession(config.Default())
	require.NoError(t, err)
	defer sess.Close()

	batch := &Batch{Session: sess}
	results := batch.Run([]string{good, bad})
	require.Len(t, results, 2)

	assert.Equal(t, good, results[0].Input)
	require.NoError(t, results[0].Err)
	assert.False(t, results[0].Unit.Diags.HasErrors())
	assert.NotEmpty(t, results[0].Unit.Obj)

	assert.Equal(t, bad, results[1].Input)
	require.NoError(t, results[1].Err)
	assert.True(t, results[1].Unit.Diags.HasErrors())
	assert.Nil(t, results[1].Unit.Obj)
}

func TestSucceededIsFalseWhenAnyInputFailsToCompile(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "add.ii", `int add(int a, int b) { return a + b; }`)
	bad := writeSource(t, dir, "bad.ii", `int broken( {`)

	sess, err := NewSession(config.Default())
	require.NoError(t, err)
	defer sess.Close()

	batch := &Batch{Session: sess}

	assert.True(t, Succeeded(batch.Run([]string{good})))
	assert.False(t, Succeeded(batch.Run([]string{good, bad})))
}
