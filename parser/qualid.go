package parser

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/diag"
	"github.com/oxhq/flashcpp/token"
)

// parseQualifiedId parses `[::] A [<Args>] [:: B [<Args>] ...]`, resolving
// each segment against the left side incrementally (§4.4): after each '::'
// the left side becomes the lookup root for the next segment. This function
// only builds the syntax node; sema resolves each QualifiedId segment to a
// namespace/class/instantiation when the parser hands the declaration to
// code generation.
//
// allowTemplateArgs controls whether a following '<' is parsed as a
// template-argument list (true in type-spec / expression-as-type contexts)
// or left for the expression parser to treat as "less than" (false when
// parsing a plain expression-primary qualified-id whose template-ness is
// ambiguous without type information — callers that know better, e.g. after
// seeing the `template` disambiguation keyword, pass true explicitly).
func (p *Parser) parseQualifiedId(allowTemplateArgs bool) ast.NodeID {
	pos := p.peek().Pos
	global := false
	if p.at("::") {
		p.consume()
		global = true
	}

	var left ast.NodeID
	first := true
	for {
		t := p.peek()
		if t.Kind != token.Identifier && t.Kind != token.Keyword {
			p.errorf(diag.ParseError, t.Pos, "expected identifier in qualified name, got %q", p.spelling(t))
			break
		}
		seg := p.Strings.Intern(p.spelling(t))
		p.consume()

		node := ast.QualifiedId{Left: left, Global: global && first, Segment: seg}
		first = false

		if allowTemplateArgs && p.at("<") {
			node.TemplateArgs = p.parseTemplateArgList()
		}

		left = p.Arena.Add(ast.KindQualifiedId, pos, node)

		if p.at("::") {
			p.consume()
			continue
		}
		break
	}
	return left
}

// parseTemplateArgList parses `< Arg, Arg, ... >`, flipping the lexer's
// template-arg mode so a closing ">>" on nested templates splits into two
// '>' tokens (§4.1).
func (p *Parser) parseTemplateArgList() []ast.NodeID {
	p.consume() // '<'
	// Enter split mode before scanning anything inside the list: a closing
	// ">>" can be reached mid-argument (e.g. while parsing the last
	// argument's type), well before the code here gets to look for it.
	p.Lex.SetTemplateArgMode(true)
	defer p.Lex.SetTemplateArgMode(false)

	var args []ast.NodeID
	if p.at(">") {
		p.consume()
		return args
	}
	for {
		args = append(args, p.parseTemplateArgument())
		if p.at(",") {
			p.consume()
			continue
		}
		break
	}
	p.expect(">")
	return args
}

// parseTemplateArgument parses either a type-id or a constant-expression,
// disambiguated the way real compilers do: try type-spec first via a SFINAE
// trial, fall back to an expression.
func (p *Parser) parseTemplateArgument() ast.NodeID {
	mark := p.BeginTrial()
	if looksLikeTypeStart(p) {
		node := p.ParseTypeSpec()
		if ok, _ := p.EndTrial(mark, false); ok {
			return node
		}
	} else {
		p.EndTrial(mark, true)
	}
	return p.parseAssignmentExpr()
}

func looksLikeTypeStart(p *Parser) bool {
	t := p.peek()
	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "int", "unsigned", "signed", "short", "long", "char", "bool",
			"float", "double", "void", "const", "volatile", "typename", "class", "struct":
			return true
		}
	}
	if t.Kind == token.Identifier {
		return p.isKnownTypeName(p.Strings.String(t.Text))
	}
	return false
}
