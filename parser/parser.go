// Package parser implements the recursive-descent parser over the lexer's
// token stream, producing AST nodes while populating the symbol, namespace,
// and template registries (§4.4).
package parser

import (
	"fmt"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/diag"
	"github.com/oxhq/flashcpp/lexer"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

// Parser holds all per-translation-unit parsing state.
type Parser struct {
	Lex        *lexer.Lexer
	Strings    *strtab.Table
	Types      *typetab.Table
	Scopes     *sym.Stack
	Namespaces *sym.NamespaceRegistry
	Templates  *sym.Registry
	Arena      *ast.Arena
	Diags      *diag.List

	curNamespace sym.NamespaceHandle

	// typeNames tracks every class/struct/union/enum/alias name seen so far
	// in this translation unit, so startsDecl/looksLikeTypeStart can tell a
	// declaration from an expression-statement without full name lookup
	// (§4.4's disambiguation problem, simplified to "have we seen it before").
	typeNames map[string]bool

	// trialDepth > 0 means we're inside a SFINAE trial-parse bracket
	// (§4.4/§9): errors are captured instead of recorded, and a hard error
	// is turned into "candidate not viable" for the caller.
	trialDepth int
	trialErr   *diag.Diagnostic

	// typeBindings maps template-parameter names to their substituted
	// concrete types while an instantiation reparse is active (§4.4's
	// two-phase template body parsing); nil outside instantiation.
	typeBindings map[string]typetab.Index

	// instantiated caches, per translation unit, the concrete FuncDecl node
	// each instantiation key produced, keyed by the key's digest. The shared
	// sym cache records success/failure across units; node identity is only
	// meaningful within this arena. instantiatedClasses is its class-side
	// twin, additionally carrying the instantiation's TypeIndex.
	instantiated        map[string]ast.NodeID
	instantiatedClasses map[string]classInstance
}

// New constructs a Parser over lex sharing the given compilation-wide
// registries (string/type tables are process-wide per §3.4; scopes are
// fresh per translation unit).
func New(lex *lexer.Lexer, strings *strtab.Table, types *typetab.Table, namespaces *sym.NamespaceRegistry, templates *sym.Registry, arena *ast.Arena, diags *diag.List) *Parser {
	return &Parser{
		Lex:        lex,
		Strings:    strings,
		Types:      types,
		Scopes:     sym.NewStack(namespaces),
		Namespaces: namespaces,
		Templates:  templates,
		Arena:      arena,
		Diags:      diags,
		typeNames:  make(map[string]bool),
	}
}

// declareTypeName records name as a known type so later statement parsing
// can recognize `name x;` as a declaration rather than an expression.
func (p *Parser) declareTypeName(name string) {
	p.typeNames[name] = true
}

// isKnownTypeName reports whether name was previously declared as a
// class/struct/union/enum/alias in this translation unit.
func (p *Parser) isKnownTypeName(name string) bool {
	return p.typeNames[name]
}

func (p *Parser) peek() token.Token { return p.Lex.Peek(0) }

func (p *Parser) at(text string) bool {
	t := p.peek()
	return (t.Kind == token.Operator || t.Kind == token.Punctuator || t.Kind == token.Keyword) && p.Strings.String(t.Text) == text
}

func (p *Parser) atIdent() bool { return p.peek().Kind == token.Identifier }

func (p *Parser) consume() token.Token { return p.Lex.Consume() }

// expect consumes the next token if its spelling matches text, else records
// a ParseError and returns the zero Token.
func (p *Parser) expect(text string) (token.Token, bool) {
	if p.at(text) {
		return p.consume(), true
	}
	t := p.peek()
	p.errorf(diag.ParseError, t.Pos, "expected %q, got %q", text, p.spelling(t))
	return token.Token{}, false
}

func (p *Parser) spelling(t token.Token) string {
	switch t.Kind {
	case token.EndOfFile:
		return "<eof>"
	case token.Identifier, token.Keyword, token.Operator, token.Punctuator:
		return p.Strings.String(t.Text)
	case token.NumericLiteral:
		return "<number>"
	case token.StringLiteral:
		return "<string>"
	case token.CharLiteral:
		return "<char>"
	default:
		return "<invalid>"
	}
}

// errorf records a diagnostic unless inside a SFINAE trial bracket, in which
// case it's captured as the trial's failure reason instead (§4.4, §9). The
// original offending token's position is always used (never re-wrapped),
// satisfying §4.4's error-token-preservation rule.
func (p *Parser) errorf(kind diag.Kind, pos token.Position, format string, args ...any) diag.Diagnostic {
	d := diag.New(kind, pos, format, args...)
	if p.trialDepth > 0 {
		if p.trialErr == nil {
			p.trialErr = &d
		}
	} else {
		p.Diags.Add(d)
	}
	return d
}

// BeginTrial opens a SFINAE save/restore bracket: a true snapshot of the
// lexer cursor (O(1), §4.1) and the trial-error marker. Use with EndTrial.
func (p *Parser) BeginTrial() lexer.Position {
	p.trialDepth++
	mark := p.Lex.SavePosition()
	p.trialErr = nil
	return mark
}

// EndTrial closes a trial bracket. If the trial failed, the lexer is
// restored to mark and (false, reason) is returned; the caller discards
// whatever AST nodes the trial may have appended to the arena (they become
// harmless unreferenced garbage, matching the arena's append-only design).
// On success the lexer position is left wherever the trial advanced it.
func (p *Parser) EndTrial(mark lexer.Position, failed bool) (ok bool, reason string) {
	p.trialDepth--
	if failed || p.trialErr != nil {
		p.Lex.RestorePosition(mark)
		reason = "candidate is not viable"
		if p.trialErr != nil {
			reason = p.trialErr.Message
		}
		p.trialErr = nil
		return false, reason
	}
	return true, ""
}

// ResyncToDeclBoundary skips tokens until the next top-level ';' or a
// matching closing '}', per §7's resync policy so multiple errors in one
// translation unit can all be reported.
func (p *Parser) ResyncToDeclBoundary() {
	depth := 0
	for {
		t := p.peek()
		if t.Kind == token.EndOfFile {
			return
		}
		spelling := p.spelling(t)
		if depth == 0 && spelling == ";" {
			p.consume()
			return
		}
		if spelling == "{" {
			depth++
		}
		if spelling == "}" {
			if depth == 0 {
				p.consume()
				return
			}
			depth--
			if depth == 0 {
				p.consume()
				return
			}
		}
		p.consume()
	}
}

func (p *Parser) internf(format string, args ...any) strtab.Handle {
	return p.Strings.Intern(fmt.Sprintf(format, args...))
}
