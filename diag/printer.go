package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
)

// ColorMode controls whether Printer emits ANSI color codes around the
// caret and the diagnostic kind.
type ColorMode uint8

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// Printer renders Diagnostics in the one-line-plus-source-plus-caret format
// from §7:
//
//	<file>:<line>:<col>: <kind>: <message>
//	<source line>
//	<caret>
//
// followed, when the diagnostic carries an instantiation chain, by one
// "instantiated from ..." line per enclosing instantiation.
type Printer struct {
	w     io.Writer
	color bool
	// SourceLine, given a file and 1-based line number, returns that line's
	// text (without trailing newline) and whether it was found. The core
	// doesn't own file I/O for the *original* source (only the preprocessed
	// byte range); the CLI driver supplies this by re-reading the mapped
	// source file on demand, only when printing a diagnostic.
	SourceLine func(file string, line int) (string, bool)
}

// NewPrinter selects color behavior from mode and, for ColorAuto, whether w
// is a terminal (when w is an *os.File) via go-isatty.
func NewPrinter(w io.Writer, mode ColorMode) *Printer {
	color := false
	switch mode {
	case ColorAlways:
		color = true
	case ColorNever:
		color = false
	case ColorAuto:
		if f, ok := w.(interface{ Fd() uintptr }); ok {
			color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	return &Printer{w: w, color: color}
}

// Print renders one diagnostic.
func (p *Printer) Print(d Diagnostic) {
	kind := d.Kind.String()
	if p.color {
		kind = "\x1b[1;31m" + kind + "\x1b[0m"
	}
	fmt.Fprintf(p.w, "%s:%d:%d: %s: %s\n", d.Pos.File, d.Pos.Line, d.Pos.Column, kind, d.Message)

	if p.SourceLine != nil {
		if line, ok := p.SourceLine(d.Pos.File, d.Pos.Line); ok {
			fmt.Fprintln(p.w, line)
			fmt.Fprintln(p.w, caret(d.Pos.Column, p.color))
		}
	}

	for _, f := range d.Chain {
		fmt.Fprintf(p.w, "instantiated from %s<%s> at %s:%d:%d\n",
			f.TemplateName, f.Args, f.Pos.File, f.Pos.Line, f.Pos.Column)
	}

	if len(d.Candidates) > 0 {
		fmt.Fprintln(p.w, "candidates:")
		for _, c := range d.Candidates {
			fmt.Fprintf(p.w, "  %s\n", c)
		}
	}
}

// PrintAll renders every diagnostic in l in order.
func (p *Printer) PrintAll(l *List) {
	for _, d := range l.Items() {
		p.Print(d)
	}
}

func caret(column int, color bool) string {
	if column < 1 {
		column = 1
	}
	s := strings.Repeat(" ", column-1) + "^"
	if color {
		return "\x1b[1;32m" + s + "\x1b[0m"
	}
	return s
}
