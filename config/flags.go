package config

import (
	"github.com/spf13/pflag"

	"github.com/oxhq/flashcpp/abi"
)

// BindFlags registers FlashCpp's closed flag set from §6.1 onto fs, the way
// termfx-morfx/internal/config.BuildConfigFromFlags registers morfx's flag
// set onto a pflag.FlagSet before parsing. cmd/flashcpp owns fs and calls
// fs.Parse; FromFlags below reads the bound values back out afterward.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "Output object file path.")
	fs.BoolP("verbose", "v", false, "Enable verbose diagnostic output.")
	fs.BoolP("debug-lines", "g", false, "Emit a minimal line-table for debuggers.")
	fs.Bool("target-linux", false, "Target Linux/System V ABI and ELF64 object format.")
	fs.Bool("target-windows", false, "Target Windows x64 ABI and COFF object format.")
	fs.StringArrayP("include", "I", nil, "Add a directory to the preprocessor search path. Repeatable.")
	fs.StringArrayP("define", "D", nil, "Define a preprocessor macro, name[=value]. Repeatable.")
	fs.String("std", "c++20", "Language standard. Only c++20 is accepted.")
	fs.String("cache-dir", "", "Enable the persistent template instantiation cache at this directory.")
	fs.String("color", "auto", "Diagnostic colorization: auto, always or never.")
	fs.String("response-file", "", "Read additional translation-unit paths (one per line) from this file.")
	fs.Bool("atomic-batch", false, "Roll back every object already written in this invocation if any later input fails to write.")
}

// FromFlags builds a Config from a parsed flag set layered over base
// (already resolved from environment and defaults via Load), with flags
// taking highest precedence per the teacher's flag > env > default merge
// order.
func FromFlags(fs *pflag.FlagSet, args []string, base Config) (Config, error) {
	cfg := base
	cfg.Inputs = args

	if v, err := fs.GetString("output"); err == nil && fs.Changed("output") {
		cfg.Output = v
	}
	if v, err := fs.GetBool("verbose"); err == nil && v {
		cfg.Verbose = v
	}
	if v, err := fs.GetBool("debug-lines"); err == nil && v {
		cfg.DebugLines = v
	}
	if linux, _ := fs.GetBool("target-linux"); linux {
		cfg.Target = abi.SystemV
	}
	if win, _ := fs.GetBool("target-windows"); win {
		cfg.Target = abi.Windows
	}
	if v, err := fs.GetStringArray("include"); err == nil && len(v) > 0 {
		expanded, err := ExpandIncludeDirs(v)
		if err != nil {
			return Config{}, err
		}
		cfg.IncludeDirs = append(cfg.IncludeDirs, expanded...)
	}
	if v, err := fs.GetStringArray("define"); err == nil && len(v) > 0 {
		cfg.Defines = append(cfg.Defines, v...)
	}
	if v, err := fs.GetString("std"); err == nil && fs.Changed("std") {
		cfg.Std = v
	}
	if v, err := fs.GetString("cache-dir"); err == nil && fs.Changed("cache-dir") {
		cfg.CacheDir = v
	}
	if v, err := fs.GetString("color"); err == nil && fs.Changed("color") {
		mode, err := ParseColorMode(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Color = mode
	}
	if v, err := fs.GetString("response-file"); err == nil && fs.Changed("response-file") {
		extra, err := ExpandResponseFile(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Inputs = append(cfg.Inputs, extra...)
	}
	if v, err := fs.GetBool("atomic-batch"); err == nil && v {
		cfg.AtomicBatch = v
	}
	return cfg, nil
}
