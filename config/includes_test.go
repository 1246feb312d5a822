package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandIncludeDirsPassesLiteralDirsThrough(t *testing.T) {
	out, err := ExpandIncludeDirs([]string{"vendor/include", "/usr/include"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor/include", "/usr/include"}, out)
}

func TestExpandIncludeDirsExpandsDoublestarGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "libA", "include"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "libB", "include"), 0o755))

	pattern := filepath.ToSlash(filepath.Join(dir, "*", "include"))
	out, err := ExpandIncludeDirs([]string{pattern})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestExpandIncludeDirsDeduplicates(t *testing.T) {
	out, err := ExpandIncludeDirs([]string{"vendor/include", "vendor/include"})
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor/include"}, out)
}
