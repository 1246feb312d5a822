// Package diag implements the error taxonomy and user-visible diagnostic
// formatting described in spec §7.
package diag

import (
	"fmt"

	"github.com/oxhq/flashcpp/token"
)

// Kind is one of the error-taxonomy buckets from §7. It classifies a
// diagnostic, not a Go error type hierarchy: every Kind is carried by the
// same Diagnostic struct.
type Kind uint8

const (
	LexicalError Kind = iota
	ParseError
	NameError
	TypeError
	TemplateError
	SemanticError
	CodegenError
	IOError
	InternalError
)

func (k Kind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case ParseError:
		return "parse error"
	case NameError:
		return "name error"
	case TypeError:
		return "type error"
	case TemplateError:
		return "template error"
	case SemanticError:
		return "semantic error"
	case CodegenError:
		return "codegen error"
	case IOError:
		return "I/O error"
	default:
		return "internal error"
	}
}

// InstantiationFrame is one entry of the "instantiated from ..." chain
// appended to a diagnostic raised while substituting a template.
type InstantiationFrame struct {
	TemplateName string
	Args         string
	Pos          token.Position
}

// Diagnostic is one reported error. Its Pos is always the original,
// innermost offending token's position — §4.4 requires that an inner
// parse error propagate with its own token, never re-wrapped with an
// outer construct's start position.
type Diagnostic struct {
	Kind       Kind
	Pos        token.Position
	Message    string
	Candidates []string // populated for ambiguous-lookup / overload-not-viable
	Chain      []InstantiationFrame
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Pos.File, d.Pos.Line, d.Pos.Column, d.Kind, d.Message)
}

// New builds a Diagnostic.
func New(kind Kind, pos token.Position, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// WithChain returns a copy of d with an instantiation chain appended,
// outermost-last (the order frames are encountered walking out from the
// point of failure).
func (d Diagnostic) WithChain(chain []InstantiationFrame) Diagnostic {
	d.Chain = chain
	return d
}

// List accumulates diagnostics across a translation unit. It is not an
// error-stop mechanism: per §7, the first error kills only the current
// top-level declaration, so parsing keeps adding to this list after
// resyncing at the next ';' or matching '}'.
type List struct {
	items []Diagnostic
}

// Add appends d.
func (l *List) Add(d Diagnostic) { l.items = append(l.items, d) }

// HasErrors reports whether any diagnostic was recorded.
func (l *List) HasErrors() bool { return len(l.items) > 0 }

// Items returns every recorded diagnostic, in report order.
func (l *List) Items() []Diagnostic { return l.items }

// Count returns how many diagnostics were recorded.
func (l *List) Count() int { return len(l.items) }
