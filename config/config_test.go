package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/diag"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FLASHCPP_STD", "FLASHCPP_CACHE_DIR", "FLASHCPP_TARGET",
		"FLASHCPP_VERBOSE", "FLASHCPP_COLOR", "FLASHCPP_INCLUDE",
	} {
		os.Unsetenv(k)
	}
}

func TestDefaultUsesCpp20AndAutoColor(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "c++20", cfg.Std)
	assert.Equal(t, diag.ColorAuto, cfg.Color)
}

func TestLoadLeavesDefaultsUntouchedWhenEnvAbsent(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	cfg := Load(Default())
	assert.Equal(t, "c++20", cfg.Std)
	assert.Equal(t, "", cfg.CacheDir)
	assert.False(t, cfg.Verbose)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	os.Setenv("FLASHCPP_CACHE_DIR", "/tmp/flashcpp-cache")
	os.Setenv("FLASHCPP_VERBOSE", "true")
	os.Setenv("FLASHCPP_TARGET", "windows")
	os.Setenv("FLASHCPP_COLOR", "never")

	cfg := Load(Default())
	assert.Equal(t, "/tmp/flashcpp-cache", cfg.CacheDir)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, abi.Windows, cfg.Target)
	assert.Equal(t, diag.ColorNever, cfg.Color)
}

func TestParseColorModeRejectsUnknownValue(t *testing.T) {
	_, err := ParseColorMode("rainbow")
	require.Error(t, err)
}

func TestObjectSuffixMatchesTarget(t *testing.T) {
	cfg := Default()
	cfg.Target = abi.SystemV
	assert.Equal(t, ".o", cfg.ObjectSuffix())
	cfg.Target = abi.Windows
	assert.Equal(t, ".obj", cfg.ObjectSuffix())
}

func TestOutputForDerivesFromInputBasenameWhenOutputUnset(t *testing.T) {
	cfg := Default()
	cfg.Inputs = []string{"src/widget.ii", "src/gadget.ii"}
	assert.Equal(t, "widget.o", cfg.OutputFor("src/widget.ii"))
	assert.Equal(t, "gadget.o", cfg.OutputFor("src/gadget.ii"))
}

func TestOutputForHonorsExplicitOutputForSingleInput(t *testing.T) {
	cfg := Default()
	cfg.Inputs = []string{"src/widget.ii"}
	cfg.Output = "bin/widget.o"
	assert.Equal(t, "bin/widget.o", cfg.OutputFor("src/widget.ii"))
}
