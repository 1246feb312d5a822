package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeResponseFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inputs.rsp")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestExpandResponseFileReadsOneInputPerLine(t *testing.T) {
	path := writeResponseFile(t, "a.ii\nb.ii\nc.ii\n")
	out, err := ExpandResponseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ii", "b.ii", "c.ii"}, out)
}

func TestExpandResponseFileSkipsBlankAndCommentLines(t *testing.T) {
	path := writeResponseFile(t, "a.ii\n\n# a comment\n   \nb.ii\n")
	out, err := ExpandResponseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ii", "b.ii"}, out)
}

func TestExpandResponseFileTrimsSurroundingWhitespace(t *testing.T) {
	path := writeResponseFile(t, "  a.ii  \n\tb.ii\t\n")
	out, err := ExpandResponseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ii", "b.ii"}, out)
}

func TestExpandResponseFileErrorsOnMissingFile(t *testing.T) {
	_, err := ExpandResponseFile(filepath.Join(t.TempDir(), "missing.rsp"))
	assert.Error(t, err)
}
