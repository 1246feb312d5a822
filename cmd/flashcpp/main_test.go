package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestRunCompilesAndWritesObjectFile(t *testing.T) {
	dir := t.TempDir()
	in := writeSource(t, dir, "add.ii", `int add(int a, int b) { return a + b; }`)
	out := filepath.Join(dir, "add.o")

	code := run([]string{"-o", out, in})
	assert.Equal(t, exitOK, code)

	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestRunReportsParseErrorWithExitCodeOne(t *testing.T) {
	dir := t.TempDir()
	in := writeSource(t, dir, "bad.ii", `int broken( {`)

	code := run([]string{in})
	assert.Equal(t, exitCompileError, code)
}

func TestRunReportsIOErrorForMissingInput(t *testing.T) {
	code := run([]string{filepath.Join(t.TempDir(), "does-not-exist.ii")})
	assert.Equal(t, exitIOError, code)
}

func TestRunRequiresAtLeastOneInput(t *testing.T) {
	code := run([]string{})
	assert.NotEqual(t, exitOK, code)
}
