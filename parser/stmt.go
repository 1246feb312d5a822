package parser

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
)

// ParseStmt parses one statement (§4.5/§4.6). On a parse error it records a
// diagnostic and resyncs to the next declaration boundary so later
// statements can still be parsed.
func (p *Parser) ParseStmt() ast.NodeID {
	t := p.peek()

	if t.Kind == token.Punctuator && p.spelling(t) == "{" {
		return p.parseBlock()
	}

	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "if":
			return p.parseIf()
		case "switch":
			return p.parseSwitch()
		case "for":
			return p.parseFor()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDoWhile()
		case "return":
			return p.parseReturn()
		case "break":
			pos := p.consume().Pos
			p.expect(";")
			return p.Arena.Add(ast.KindBreak, pos, ast.Break{})
		case "continue":
			pos := p.consume().Pos
			p.expect(";")
			return p.Arena.Add(ast.KindContinue, pos, ast.Continue{})
		case "goto":
			pos := p.consume().Pos
			name := p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
			p.expect(";")
			return p.Arena.Add(ast.KindGoto, pos, ast.Goto{Label: name})
		case "try":
			return p.parseTry()
		}
	}

	// Labeled statement: `identifier ':' stmt`.
	if t.Kind == token.Identifier {
		if nt := p.Lex.Peek(1); nt.Kind == token.Punctuator && p.Strings.String(nt.Text) == ":" {
			pos := t.Pos
			name := p.Strings.Intern(p.spelling(t))
			p.consume()
			p.consume()
			stmt := p.ParseStmt()
			return p.Arena.Add(ast.KindLabel, pos, ast.Label{Name: name, Stmt: stmt})
		}
	}

	if p.startsDecl() {
		return p.parseDeclStmt()
	}

	pos := t.Pos
	expr := p.ParseExpr()
	p.expect(";")
	return p.Arena.Add(ast.KindExprStmt, pos, ast.ExprStmt{Expr: expr})
}

func (p *Parser) parseBlock() ast.NodeID {
	pos := p.consume().Pos // '{'
	var stmts []ast.NodeID
	for !p.at("}") && p.peek().Kind != token.EndOfFile {
		stmts = append(stmts, p.ParseStmt())
	}
	p.expect("}")
	return p.Arena.Add(ast.KindBlock, pos, ast.Block{Stmts: stmts})
}

func (p *Parser) parseIf() ast.NodeID {
	pos := p.consume().Pos // 'if'
	p.expect("(")
	cond := p.ParseExpr()
	p.expect(")")
	then := p.ParseStmt()
	node := ast.If{Cond: cond, Then: then}
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "else" {
		p.consume()
		node.Else = p.ParseStmt()
	}
	return p.Arena.Add(ast.KindIf, pos, node)
}

func (p *Parser) parseSwitch() ast.NodeID {
	pos := p.consume().Pos // 'switch'
	p.expect("(")
	cond := p.ParseExpr()
	p.expect(")")
	p.expect("{")
	var cases []ast.SwitchCase
	for !p.at("}") && p.peek().Kind != token.EndOfFile {
		var c ast.SwitchCase
		if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "case" {
			p.consume()
			c.Value = p.ParseExpr()
			p.expect(":")
		} else {
			p.expect("default")
			p.expect(":")
		}
		for !p.at("case") && !p.at("default") && !p.at("}") && p.peek().Kind != token.EndOfFile {
			c.Body = append(c.Body, p.ParseStmt())
		}
		cases = append(cases, c)
	}
	p.expect("}")
	return p.Arena.Add(ast.KindSwitch, pos, ast.Switch{Cond: cond, Cases: cases})
}

func (p *Parser) parseFor() ast.NodeID {
	pos := p.consume().Pos // 'for'
	p.expect("(")

	// Disambiguate classic vs range-based: try a declaration/expr then look
	// for ':' vs ';'.
	mark := p.BeginTrial()
	var declNode ast.NodeID
	if p.startsDecl() {
		declNode = p.parseSimpleDecl()
	} else if !p.at(";") {
		declNode = p.Arena.Add(ast.KindExprStmt, p.peek().Pos, ast.ExprStmt{Expr: p.ParseExpr()})
	}
	if p.at(":") {
		p.consume()
		if ok, _ := p.EndTrial(mark, false); ok {
			rng := p.ParseExpr()
			p.expect(")")
			body := p.ParseStmt()
			return p.Arena.Add(ast.KindRangeFor, pos, ast.RangeFor{Decl: declNode, Range: rng, Body: body})
		}
	}
	p.EndTrial(mark, true)

	node := ast.For{}
	if p.startsDecl() {
		node.Init = p.parseSimpleDecl()
		p.expect(";")
	} else if !p.at(";") {
		node.Init = p.Arena.Add(ast.KindExprStmt, p.peek().Pos, ast.ExprStmt{Expr: p.ParseExpr()})
		p.expect(";")
	} else {
		p.expect(";")
	}
	if !p.at(";") {
		node.Cond = p.ParseExpr()
	}
	p.expect(";")
	if !p.at(")") {
		node.Post = p.ParseExpr()
	}
	p.expect(")")
	node.Body = p.ParseStmt()
	return p.Arena.Add(ast.KindFor, pos, node)
}

func (p *Parser) parseWhile() ast.NodeID {
	pos := p.consume().Pos // 'while'
	p.expect("(")
	cond := p.ParseExpr()
	p.expect(")")
	body := p.ParseStmt()
	return p.Arena.Add(ast.KindWhile, pos, ast.While{Cond: cond, Body: body})
}

func (p *Parser) parseDoWhile() ast.NodeID {
	pos := p.consume().Pos // 'do'
	body := p.ParseStmt()
	p.expect("while")
	p.expect("(")
	cond := p.ParseExpr()
	p.expect(")")
	p.expect(";")
	return p.Arena.Add(ast.KindDoWhile, pos, ast.DoWhile{Body: body, Cond: cond})
}

func (p *Parser) parseReturn() ast.NodeID {
	pos := p.consume().Pos // 'return'
	node := ast.Return{}
	if !p.at(";") {
		node.Value = p.ParseExpr()
	}
	p.expect(";")
	return p.Arena.Add(ast.KindReturn, pos, node)
}

func (p *Parser) parseTry() ast.NodeID {
	pos := p.consume().Pos // 'try'
	body := p.parseBlock()
	var catches []ast.CatchClause
	for p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "catch" {
		p.consume()
		p.expect("(")
		var c ast.CatchClause
		if p.at("...") {
			p.consume()
		} else {
			spec := p.ParseTypeSpec()
			declName := strtab.Invalid
			if p.peek().Kind == token.Identifier {
				declName = p.Strings.Intern(p.spelling(p.peek()))
				p.consume()
			}
			c.Decl = p.Arena.Add(ast.KindVarDecl, p.peek().Pos, ast.VarDecl{Name: declName, TypeSpec: spec})
		}
		p.expect(")")
		c.Body = p.parseBlock()
		catches = append(catches, c)
	}
	return p.Arena.Add(ast.KindTry, pos, ast.Try{Body: body, Catches: catches})
}

// startsDecl reports whether the current token begins a declaration rather
// than an expression, per the same heuristic parseFor and ParseStmt
// need: a type keyword, or an identifier that names a known type.
func (p *Parser) startsDecl() bool {
	t := p.peek()
	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "int", "unsigned", "signed", "short", "long", "char", "bool",
			"float", "double", "void", "const", "volatile", "auto",
			"typename", "class", "struct", "enum", "union", "static",
			"extern", "constexpr", "thread_local":
			return true
		case "wchar_t", "char8_t", "char16_t", "char32_t":
			return true
		}
		return false
	}
	if t.Kind == token.Identifier {
		return p.isKnownTypeName(p.Strings.String(t.Text))
	}
	return false
}

// parseDeclStmt parses a declaration statement: one parseSimpleDecl plus its
// ';'. parseSimpleDecl handles statement/for-init position,
// `type-spec declarator ['=' init | '(' args ')' | '{' args '}']`, with a
// single declarator; a ',' separated declarator list is not parsed. The
// trailing ';' is consumed by the caller for a for-loop Init.
func (p *Parser) parseDeclStmt() ast.NodeID {
	pos := p.peek().Pos
	decl := p.parseSimpleDecl()
	p.expect(";")
	return p.Arena.Add(ast.KindDeclStmt, pos, ast.DeclStmt{Decls: []ast.NodeID{decl}})
}

func (p *Parser) parseSimpleDecl() ast.NodeID {
	attrs := p.parseAttributeSpecifiers()
	pos := p.peek().Pos
	storage := p.consumeStorageClass()
	isConstexpr := false
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "constexpr" {
		p.consume()
		isConstexpr = true
	}
	spec := p.ParseTypeSpec()
	name := strtab.Invalid
	if p.peek().Kind == token.Identifier {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}
	var init ast.NodeID
	if p.at("=") {
		p.consume()
		init = p.parseAssignmentExpr()
	} else if p.at("(") || p.at("{") {
		closing := ")"
		if p.at("{") {
			closing = "}"
		}
		p.consume()
		var args []ast.NodeID
		for !p.at(closing) {
			args = append(args, p.parseAssignmentExpr())
			if p.at(",") {
				p.consume()
				continue
			}
			break
		}
		p.expect(closing)
		init = p.Arena.Add(ast.KindConstructorExpr, pos, ast.ConstructorExpr{TypeSpec: spec, Args: args, BraceInit: closing == "}"})
	}
	return p.Arena.Add(ast.KindVarDecl, pos, ast.VarDecl{
		Name: name, TypeSpec: spec, Init: init, Storage: storage, IsConstexpr: isConstexpr, IsMaybeUnused: attrs.MaybeUnused,
	})
}

func (p *Parser) consumeStorageClass() ast.StorageClass {
	if p.peek().Kind != token.Keyword {
		return ast.StorageAuto
	}
	switch p.Strings.String(p.peek().Text) {
	case "static":
		p.consume()
		return ast.StorageStatic
	case "extern":
		p.consume()
		return ast.StorageExtern
	case "thread_local":
		p.consume()
		return ast.StorageThreadLocal
	}
	return ast.StorageAuto
}
