package parser

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
)

// parseRequiresClause parses an optional `requires constraint-logical-or-expr`
// clause, returning ast.None if no `requires` keyword is present. Checking
// the constraint is deferred to instantiation's existing SFINAE-by-trial
// mechanism (§4.3): this production only captures the syntax.
func (p *Parser) parseRequiresClause() ast.NodeID {
	if !(p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "requires") {
		return ast.None
	}
	p.consume()
	return p.parseBinaryExpr(1)
}

// parseTemplateDecl parses `template < param-list > (class-decl|func-decl)`
// (§4.3). The body of a function template's pattern is not fully parsed
// here: its token range is recorded on the FuncDecl for two-phase
// instantiation (§4.4) once substitution supplies concrete argument types,
// while its declarator (name, params, return type) is parsed eagerly so the
// primary template can be registered and looked up by ordinary name lookup.
func (p *Parser) parseTemplateDecl() ast.NodeID {
	pos := p.consume().Pos // 'template'
	p.expect("<")
	var params []ast.NodeID
	if !p.at(">") {
		for {
			params = append(params, p.parseTemplateParam())
			if p.at(",") {
				p.consume()
				continue
			}
			break
		}
	}
	p.Lex.SetTemplateArgMode(true)
	p.expect(">")
	p.Lex.SetTemplateArgMode(false)

	// Template parameter names resolve as dependent types for the duration
	// of parsing the pattern.
	for _, prm := range params {
		node := p.Arena.Get(prm).Payload.(ast.TemplateParamDecl)
		if node.Kind == ast.TemplateParamType {
			p.declareTypeName(p.Strings.String(node.Name))
		}
	}

	requires := p.parseRequiresClause()

	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "concept" {
		return p.parseConceptDecl(params)
	}

	var pattern ast.NodeID
	if p.peek().Kind == token.Keyword {
		switch p.Strings.String(p.peek().Text) {
		case "class", "struct":
			pattern = p.parseClassTemplatePattern()
		default:
			pattern = p.parseFunctionTemplatePattern()
		}
	} else {
		pattern = p.parseFunctionTemplatePattern()
	}

	node := ast.TemplateDecl{Params: params, Pattern: pattern, Requires: requires}
	decl := p.Arena.Add(ast.KindTemplateDecl, pos, node)

	name := p.templateDeclName(pattern)
	if name != strtab.Invalid {
		p.Templates.Declare(name, decl)
	}
	return decl
}

// parseConceptDecl parses `concept Name = constraint-expr;` (§ C++20
// concepts), the tail of a `template<params> concept ...` declaration whose
// parameter list was already consumed by the caller.
func (p *Parser) parseConceptDecl(params []ast.NodeID) ast.NodeID {
	pos := p.consume().Pos // 'concept'
	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}
	p.expect("=")
	constraint := p.parseBinaryExpr(1)
	p.expect(";")
	decl := p.Arena.Add(ast.KindConceptDecl, pos, ast.ConceptDecl{
		Name: name, Params: params, Constraint: constraint,
	})
	if name != strtab.Invalid {
		p.declareTypeName(p.Strings.String(name))
	}
	return decl
}

func (p *Parser) templateDeclName(pattern ast.NodeID) strtab.Handle {
	n := p.Arena.Get(pattern)
	switch v := n.Payload.(type) {
	case ast.StructDecl:
		return v.Name
	case ast.FuncDecl:
		return v.Name
	}
	return strtab.Invalid
}

// parseTemplateParam parses one `class T`, `typename T = Default`,
// `int N`, or `template<class> class TT` parameter.
func (p *Parser) parseTemplateParam() ast.NodeID {
	pos := p.peek().Pos
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "template" {
		p.consume()
		p.expect("<")
		for !p.at(">") {
			p.parseTemplateParam()
			if p.at(",") {
				p.consume()
				continue
			}
		}
		p.Lex.SetTemplateArgMode(true)
		p.expect(">")
		p.Lex.SetTemplateArgMode(false)
		p.expect("class")
		name := strtab.Invalid
		if p.atIdent() {
			name = p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
		}
		var def ast.NodeID
		if p.at("=") {
			p.consume()
			def = p.parseQualifiedId(false)
		}
		return p.Arena.Add(ast.KindTemplateParamDecl, pos, ast.TemplateParamDecl{
			Kind: ast.TemplateParamTemplate, Name: name, Default: def,
		})
	}

	if p.peek().Kind == token.Keyword {
		switch p.Strings.String(p.peek().Text) {
		case "class", "typename":
			p.consume()
			isVariadic := false
			if p.at("...") {
				p.consume()
				isVariadic = true
			}
			name := strtab.Invalid
			if p.atIdent() {
				name = p.Strings.Intern(p.spelling(p.peek()))
				p.consume()
			}
			var def ast.NodeID
			if p.at("=") {
				p.consume()
				def = p.ParseTypeSpec()
			}
			return p.Arena.Add(ast.KindTemplateParamDecl, pos, ast.TemplateParamDecl{
				Kind: ast.TemplateParamType, Name: name, Default: def, IsVariadic: isVariadic,
			})
		}
	}

	// Non-type template parameter: `int N`, `bool B = true`.
	typeSpec := p.ParseTypeSpec()
	isVariadic := false
	if p.at("...") {
		p.consume()
		isVariadic = true
	}
	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}
	var def ast.NodeID
	if p.at("=") {
		p.consume()
		def = p.parseConditionalExpr()
	}
	return p.Arena.Add(ast.KindTemplateParamDecl, pos, ast.TemplateParamDecl{
		Kind: ast.TemplateParamNonType, Name: name, NonTypeType: typeSpec, Default: def, IsVariadic: isVariadic,
	})
}

// parseClassTemplatePattern parses a class/struct template's declarator and
// body. The pattern parse leaves every template-parameter-typed member
// Dependent; what instantiation actually replays is the recorded token
// range, re-parsed with the parameters bound to concrete types (§4.4), so
// the pattern node itself only exists for registration and diagnostics.
// The range starts at the class-key token, letting the instantiation reuse
// tryParseClassDecl wholesale instead of a body-only re-parse.
func (p *Parser) parseClassTemplatePattern() ast.NodeID {
	start := int(p.Lex.SavePosition())
	node := p.tryParseClassDecl()
	end := int(p.Lex.SavePosition())

	sd, ok := p.Arena.Get(node).Payload.(ast.StructDecl)
	if !ok {
		return node
	}
	sd.DeferredStart = start
	sd.DeferredEnd = end
	return p.Arena.Add(ast.KindStructDecl, p.Arena.Get(node).Pos, sd)
}

// parseFunctionTemplatePattern parses a function template's full declarator
// eagerly, then records the body's token range instead of parsing it, per
// §4.4's two-phase template body parsing: the body may reference
// dependent names that only resolve once concrete template arguments are
// substituted, so parsing (and the codegen it drives) is deferred to
// instantiation time.
func (p *Parser) parseFunctionTemplatePattern() ast.NodeID {
	pos := p.peek().Pos
	storage := p.consumeStorageClass()
	isConstexpr := false
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "constexpr" {
		p.consume()
		isConstexpr = true
	}
	spec := p.ParseTypeSpec()
	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}
	p.expect("(")
	params := p.parseParamList()
	p.expect(")")
	fn := ast.FuncDecl{
		Name: name, ReturnType: spec, Params: params,
		IsConstexpr: isConstexpr, IsStatic: storage == ast.StorageStatic,
	}

	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "noexcept" {
		p.consume()
		fn.IsNoexcept = true
	}
	fn.Requires = p.parseRequiresClause()

	if p.at(";") {
		p.consume()
		return p.Arena.Add(ast.KindFuncDecl, pos, fn)
	}

	p.expect("{")
	fn.DeferredBodyStart = int(p.Lex.SavePosition())
	depth := 1
	for depth > 0 && p.peek().Kind != token.EndOfFile {
		if p.at("{") {
			depth++
		} else if p.at("}") {
			depth--
			if depth == 0 {
				break
			}
		}
		p.consume()
	}
	fn.DeferredBodyEnd = int(p.Lex.SavePosition())
	p.expect("}")

	return p.Arena.Add(ast.KindFuncDecl, pos, fn)
}
