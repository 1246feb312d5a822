// Package config resolves FlashCpp's compile-time settings from command-line
// flags, FLASHCPP_* environment variables and built-in defaults, in that
// precedence order — the same merge order termfx-morfx/internal/config uses
// for its flag/env/default layering, with .env loaded through godotenv
// before any FLASHCPP_* variable is read.
//
// Unlike the teacher, this package is public: a host embedding FlashCpp as a
// library constructs a Config directly instead of going through cmd/flashcpp.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/diag"
)

// ParseColorMode parses the --color / FLASHCPP_COLOR value into the mode
// diag.NewPrinter expects.
func ParseColorMode(s string) (diag.ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return diag.ColorAuto, nil
	case "always":
		return diag.ColorAlways, nil
	case "never":
		return diag.ColorNever, nil
	default:
		return diag.ColorAuto, fmt.Errorf("config: unknown --color mode %q (want auto, always or never)", s)
	}
}

// Config is the fully resolved set of options one compile invocation runs
// with, after merging flags over environment over defaults.
type Config struct {
	Inputs []string

	Output      string
	Verbose     bool
	DebugLines  bool
	Target      abi.Target
	IncludeDirs []string
	Defines     []string
	Std         string
	CacheDir    string
	Color       diag.ColorMode
	AtomicBatch bool
}

// Default returns the built-in baseline a flag or environment value
// overrides. The host's GOOS picks the target the same way termfx-morfx's
// provider resolution falls back to the file extension when --lang is
// omitted: absent an explicit flag, FlashCpp targets the machine it runs on.
func Default() Config {
	target := abi.SystemV
	if runtime.GOOS == "windows" {
		target = abi.Windows
	}
	return Config{
		Std:    "c++20",
		Target: target,
		Color:  diag.ColorAuto,
	}
}

// Load applies FLASHCPP_* environment overrides onto base, after loading a
// .env file from the working directory if present (a missing .env is not an
// error, mirroring how termfx-morfx's config loader tolerates a missing
// .env and continues with whatever os.Getenv already has).
func Load(base Config) Config {
	_ = godotenv.Load()

	cfg := base
	if v := os.Getenv("FLASHCPP_STD"); v != "" {
		cfg.Std = v
	}
	if v := os.Getenv("FLASHCPP_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("FLASHCPP_TARGET"); v != "" {
		switch strings.ToLower(v) {
		case "linux":
			cfg.Target = abi.SystemV
		case "windows":
			cfg.Target = abi.Windows
		}
	}
	if v := os.Getenv("FLASHCPP_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
	if v := os.Getenv("FLASHCPP_COLOR"); v != "" {
		if mode, err := ParseColorMode(v); err == nil {
			cfg.Color = mode
		}
	}
	if v := os.Getenv("FLASHCPP_INCLUDE"); v != "" {
		cfg.IncludeDirs = append(cfg.IncludeDirs, strings.Split(v, string(os.PathListSeparator))...)
	}
	return cfg
}

// ObjectSuffix returns the object-file extension for the config's target,
// ".o" for SystemV/ELF and ".obj" for Windows/COFF.
func (c Config) ObjectSuffix() string {
	if c.Target == abi.Windows {
		return ".obj"
	}
	return ".o"
}

// OutputFor resolves the object path for a single input when -o was not
// given: input basename with its extension swapped for ObjectSuffix, per
// §6.1's "defaulting to input basename + platform object suffix" rule.
func (c Config) OutputFor(input string) string {
	if c.Output != "" && len(c.Inputs) <= 1 {
		return c.Output
	}
	base := input
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base + c.ObjectSuffix()
}
