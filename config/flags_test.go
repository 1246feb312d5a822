package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/abi"
)

func newBoundFlagSet(t *testing.T, args []string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("flashcpp", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestFromFlagsOverridesBaseOutput(t *testing.T) {
	fs := newBoundFlagSet(t, []string{"-o", "out.o", "a.ii"})
	cfg, err := FromFlags(fs, fs.Args(), Default())
	require.NoError(t, err)
	assert.Equal(t, "out.o", cfg.Output)
	assert.Equal(t, []string{"a.ii"}, cfg.Inputs)
}

func TestFromFlagsTargetWindowsOverridesHostDefault(t *testing.T) {
	fs := newBoundFlagSet(t, []string{"--target-windows", "a.ii"})
	cfg, err := FromFlags(fs, fs.Args(), Default())
	require.NoError(t, err)
	assert.Equal(t, abi.Windows, cfg.Target)
}

func TestFromFlagsRepeatedIncludeAccumulates(t *testing.T) {
	fs := newBoundFlagSet(t, []string{"-Ivendor/a", "-Ivendor/b", "a.ii"})
	cfg, err := FromFlags(fs, fs.Args(), Default())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vendor/a", "vendor/b"}, cfg.IncludeDirs)
}

func TestFromFlagsRejectsUnknownColorMode(t *testing.T) {
	fs := newBoundFlagSet(t, []string{"--color=loud", "a.ii"})
	_, err := FromFlags(fs, fs.Args(), Default())
	require.Error(t, err)
}
