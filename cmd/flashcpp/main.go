// Command flashcpp is the C++20 compiler front end and x86-64 backend
// described in §6: it turns one or more preprocessed translation units into
// object files, one per input.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxhq/flashcpp/compiler"
	"github.com/oxhq/flashcpp/config"
	"github.com/oxhq/flashcpp/diag"
)

// Exit codes from §6.1.
const (
	exitOK            = 0
	exitCompileError  = 1
	exitIOError       = 2
	exitInternalError = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var exitCode int

	cmd := &cobra.Command{
		Use:          "flashcpp [flags] input...",
		Short:        "Compile preprocessed C++20 translation units to object files",
		SilenceUsage: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && cmd.Flags().Lookup("response-file").Value.String() == "" {
				return fmt.Errorf("requires at least one input or --response-file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, inputs []string) error {
			cfg, err := config.FromFlags(cmd.Flags(), inputs, config.Load(config.Default()))
			if err != nil {
				exitCode = exitInternalError
				return err
			}
			exitCode = compileAll(cfg)
			return nil
		},
	}
	config.BindFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == exitOK {
			exitCode = exitInternalError
		}
	}
	return exitCode
}

// compileAll runs every input through the compiler pipeline, printing
// diagnostics for each and writing successful units to disk. It keeps going
// past a failing input (§7: a parse/semantic error kills only the current
// translation unit), returning the highest-severity exit code observed.
func compileAll(cfg config.Config) int {
	sess, err := compiler.NewSession(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitIOError
	}
	defer sess.Close()

	printer := diag.NewPrinter(os.Stderr, cfg.Color)
	printer.SourceLine = sourceLineReader()

	batch := &compiler.Batch{Session: sess}
	results := batch.Run(cfg.Inputs)

	worst := exitOK
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintln(os.Stderr, r.Err)
			worst = maxExit(worst, exitIOError)
			continue
		}
		if r.Unit.Diags.HasErrors() {
			printer.PrintAll(r.Unit.Diags)
			worst = maxExit(worst, exitCompileError)
			continue
		}
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "flashcpp: %s\n", r.Input)
			fmt.Fprint(os.Stderr, r.Unit.IRDump)
		}
	}

	// With --atomic-batch, every object is written together at the end, and
	// a single write failure rolls every one of this invocation's objects
	// back out again, instead of each input's write being atomic on its own.
	if cfg.AtomicBatch {
		if err := compiler.WriteAllOrNothing(results, cfg.OutputFor); err != nil {
			fmt.Fprintln(os.Stderr, err)
			worst = maxExit(worst, exitIOError)
		}
		return worst
	}

	for _, r := range results {
		if r.Err != nil || r.Unit.Diags.HasErrors() {
			continue
		}
		if err := compiler.WriteUnit(r.Unit, cfg.OutputFor(r.Input)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			worst = maxExit(worst, exitIOError)
		}
	}
	return worst
}

func maxExit(a, b int) int {
	if b > a {
		return b
	}
	return a
}

// sourceLineReader caches each file's lines the first time a diagnostic
// needs it, so printing a second diagnostic from the same file doesn't
// re-read and re-split it.
func sourceLineReader() func(file string, line int) (string, bool) {
	cache := map[string][]string{}
	return func(file string, line int) (string, bool) {
		lines, ok := cache[file]
		if !ok {
			data, err := os.ReadFile(file)
			if err != nil {
				return "", false
			}
			lines = strings.Split(string(data), "\n")
			cache[file] = lines
		}
		if line < 1 || line > len(lines) {
			return "", false
		}
		return lines[line-1], true
	}
}
