package parser

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/diag"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

// DeclSink receives each top-level declaration as soon as its syntax is
// complete, so a driver can interleave codegen with parsing (§4.4) instead
// of waiting for a whole-file AST.
type DeclSink func(ast.NodeID)

// ParseTranslationUnit parses top-level declarations until EOF, calling sink
// after each one. Parse errors resync to the next declaration boundary so a
// single bad declaration doesn't abort the whole file.
func (p *Parser) ParseTranslationUnit(sink DeclSink) {
	for p.peek().Kind != token.EndOfFile {
		before := p.Diags.Count()
		node := p.parseTopLevelDecl()
		if node != ast.None {
			sink(node)
		}
		if p.Diags.Count() > before && !p.atDeclBoundary() {
			p.ResyncToDeclBoundary()
		}
	}
}

// atDeclBoundary reports whether the cursor already sits where a new
// top-level declaration would plausibly begin, so an error recorded earlier
// in the declaration just parsed doesn't trigger a redundant resync that
// would swallow the next, perfectly well-formed declaration.
func (p *Parser) atDeclBoundary() bool {
	t := p.peek()
	if t.Kind == token.EndOfFile {
		return true
	}
	if t.Kind == token.Punctuator && (p.spelling(t) == "}" || p.spelling(t) == ";") {
		return true
	}
	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "namespace", "using", "template", "concept", "class", "struct", "union", "enum",
			"int", "unsigned", "signed", "short", "long", "char", "bool", "float",
			"double", "void", "const", "volatile", "auto", "typename", "static",
			"extern", "constexpr", "thread_local", "inline":
			return true
		}
		return false
	}
	return t.Kind == token.Identifier
}

// declAttributes is the closed set of standard attributes this front end
// recognizes (§ attribute parsing); anything else inside `[[...]]` is
// consumed and discarded, matching how an unrecognized attribute is
// ignorable by the standard.
type declAttributes struct {
	Noreturn    bool
	Nodiscard   bool
	MaybeUnused bool
}

// parseAttributeSpecifiers consumes zero or more `[[ attr, attr, ... ]]`
// attribute-specifiers, folding every occurrence of a recognized attribute
// name into the result (a declaration can carry more than one specifier,
// e.g. `[[nodiscard]] [[noreturn]]`).
func (p *Parser) parseAttributeSpecifiers() declAttributes {
	var attrs declAttributes
	for p.at("[") && p.Lex.Peek(1).Kind == token.Punctuator && p.Strings.String(p.Lex.Peek(1).Text) == "[" {
		p.consume() // '['
		p.consume() // '['
		for !p.at("]") && p.peek().Kind != token.EndOfFile {
			name := p.spelling(p.peek())
			p.consume()
			switch name {
			case "noreturn":
				attrs.Noreturn = true
			case "nodiscard":
				attrs.Nodiscard = true
			case "maybe_unused":
				attrs.MaybeUnused = true
			}
			// Skip an attribute-argument-clause, e.g. `deprecated("why")`.
			if p.at("(") {
				depth := 0
				for {
					if p.at("(") {
						depth++
					} else if p.at(")") {
						depth--
					}
					p.consume()
					if depth == 0 {
						break
					}
				}
			}
			if p.at(",") {
				p.consume()
				continue
			}
			break
		}
		p.expect("]")
		p.expect("]")
	}
	return attrs
}

// parseTopLevelDecl parses one namespace/using/template/function/variable/
// class/enum declaration.
func (p *Parser) parseTopLevelDecl() ast.NodeID {
	attrs := p.parseAttributeSpecifiers()
	t := p.peek()
	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "namespace":
			return p.parseNamespace()
		case "using":
			return p.parseUsing()
		case "template":
			return p.parseTemplateDecl()
		case "class", "struct", "union":
			if decl := p.tryParseClassDecl(); decl != ast.None {
				return decl
			}
		case "enum":
			return p.parseEnumDecl()
		case ";":
			p.consume()
			return ast.None
		}
	}
	if p.at(";") {
		p.consume()
		return ast.None
	}
	return p.parseFunctionOrVarDecl(attrs)
}

func (p *Parser) parseNamespace() ast.NodeID {
	pos := p.consume().Pos // 'namespace'
	isInline := false
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "inline" {
		p.consume()
		isInline = true
	}
	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}

	// `namespace alias = target;`
	if p.at("=") {
		p.consume()
		target := p.parseQualifiedId(false)
		p.expect(";")
		node := ast.UsingAlias{Alias: name, Target: target}
		return p.Arena.Add(ast.KindUsingAlias, pos, node)
	}

	parentNS := p.curNamespace
	ns := p.Namespaces.OpenOrCreate(parentNS, name)
	p.curNamespace = ns
	p.Scopes.Push(sym.ScopeNamespace, ns)

	p.expect("{")
	var members []ast.NodeID
	for !p.at("}") && p.peek().Kind != token.EndOfFile {
		before := p.Diags.Count()
		m := p.parseTopLevelDecl()
		if m != ast.None {
			members = append(members, m)
		}
		if p.Diags.Count() > before && !p.atDeclBoundary() {
			p.ResyncToDeclBoundary()
		}
	}
	p.expect("}")

	p.Scopes.Pop()
	p.curNamespace = parentNS

	return p.Arena.Add(ast.KindNamespaceDecl, pos, ast.NamespaceDecl{Name: name, Members: members, IsInline: isInline})
}

func (p *Parser) parseUsing() ast.NodeID {
	pos := p.consume().Pos // 'using'
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "namespace" {
		p.consume()
		target := p.parseQualifiedId(false)
		p.expect(";")
		return p.Arena.Add(ast.KindUsingAlias, pos, ast.UsingAlias{Target: target, IsDirective: true})
	}

	// Peek ahead: `using Name = Type;` (alias) vs `using A::b;` (declaration).
	if p.atIdent() {
		if nt := p.Lex.Peek(1); nt.Kind == token.Operator && p.Strings.String(nt.Text) == "=" {
			alias := p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
			p.consume() // '='
			spec := p.ParseTypeSpec()
			p.expect(";")
			p.declareTypeName(p.Strings.String(alias))
			return p.Arena.Add(ast.KindUsingAlias, pos, ast.UsingAlias{Alias: alias, Target: spec})
		}
	}

	target := p.parseQualifiedId(false)
	p.expect(";")
	return p.Arena.Add(ast.KindUsingAlias, pos, ast.UsingAlias{Target: target})
}

func (p *Parser) parseEnumDecl() ast.NodeID {
	pos := p.consume().Pos // 'enum'
	isScoped := false
	if p.peek().Kind == token.Keyword {
		switch p.Strings.String(p.peek().Text) {
		case "class", "struct":
			p.consume()
			isScoped = true
		}
	}
	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
		p.declareTypeName(p.Strings.String(name))
	}
	var underlying ast.NodeID
	if p.at(":") {
		p.consume()
		underlying = p.ParseTypeSpec()
	}

	enumTypeIdx, structIdx := p.Types.NewStruct(name)
	_ = structIdx

	var enumerators []ast.Enumerator
	if p.at("{") {
		p.consume()
		for !p.at("}") {
			enName := p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
			var val ast.NodeID
			if p.at("=") {
				p.consume()
				val = p.parseConditionalExpr()
			}
			enumerators = append(enumerators, ast.Enumerator{Name: enName, Value: val})
			if p.at(",") {
				p.consume()
				continue
			}
			break
		}
		p.expect("}")
	}
	p.expect(";")

	return p.Arena.Add(ast.KindEnumDecl, pos, ast.EnumDecl{
		Name: name, IsScoped: isScoped, Underlying: underlying,
		Enumerators: enumerators, EnumType: enumTypeIdx,
	})
}

// tryParseClassDecl parses a class/struct/union declaration or definition.
// Returns ast.None (without consuming) if this is actually a variable
// declaration using an elaborated type specifier the caller should instead
// route through parseFunctionOrVarDecl — in practice every `class X ... ;`
// form is a declaration, so this never backtracks today but keeps the
// signature symmetric with the other try* helpers for when forward
// declarations used as elaborated-type-specifiers in expressions are added.
func (p *Parser) tryParseClassDecl() ast.NodeID {
	pos := p.peek().Pos
	kindKw := p.Strings.String(p.peek().Text)
	p.consume()
	isUnion := kindKw == "union"

	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}

	// Forward declaration: `class Foo;`
	if p.at(";") {
		p.consume()
		p.declareTypeName(p.Strings.String(name))
		tidx, _ := p.Types.NewStruct(name)
		return p.Arena.Add(ast.KindStructDecl, pos, ast.StructDecl{Name: name, IsUnion: isUnion, StructType: tidx})
	}

	p.declareTypeName(p.Strings.String(name))

	var bases []ast.BaseSpec
	if p.at(":") {
		p.consume()
		for {
			access := typetab.AccessPrivate
			if kindKw == "struct" {
				access = typetab.AccessPublic
			}
			isVirtual := false
			for p.peek().Kind == token.Keyword {
				switch p.Strings.String(p.peek().Text) {
				case "public":
					access = typetab.AccessPublic
					p.consume()
					continue
				case "protected":
					access = typetab.AccessProtected
					p.consume()
					continue
				case "private":
					access = typetab.AccessPrivate
					p.consume()
					continue
				case "virtual":
					isVirtual = true
					p.consume()
					continue
				}
				break
			}
			baseSpec := p.ParseTypeSpec()
			bases = append(bases, ast.BaseSpec{TypeSpec: baseSpec, Access: access, IsVirtual: isVirtual})
			if p.at(",") {
				p.consume()
				continue
			}
			break
		}
	}

	tidx, sidx := p.Types.NewStruct(name)
	si := p.Types.Struct(sidx)
	for _, b := range bases {
		bts := p.Arena.Get(b.TypeSpec).Payload.(ast.TypeSpec)
		baseType, resolved := p.layoutType(bts)
		si.AddBase(typetab.BaseClass{Type: baseType, Access: b.Access, IsVirtual: b.IsVirtual, Deferred: !resolved}, p.Types)
	}

	p.expect("{")
	defaultAccess := typetab.AccessPrivate
	if kindKw == "struct" {
		defaultAccess = typetab.AccessPublic
	}
	curAccess := defaultAccess
	p.Scopes.Push(sym.ScopeClass, p.curNamespace)
	var members []ast.NodeID
	for !p.at("}") && p.peek().Kind != token.EndOfFile {
		if p.peek().Kind == token.Keyword {
			switch p.Strings.String(p.peek().Text) {
			case "public":
				p.consume()
				p.expect(":")
				curAccess = typetab.AccessPublic
				continue
			case "protected":
				p.consume()
				p.expect(":")
				curAccess = typetab.AccessProtected
				continue
			case "private":
				p.consume()
				p.expect(":")
				curAccess = typetab.AccessPrivate
				continue
			}
		}
		before := p.Diags.Count()
		m := p.parseClassMember(name, tidx)
		if m != ast.None {
			members = append(members, m)
			p.recordMemberLayout(si, m, curAccess)
		}
		if p.Diags.Count() > before && !p.atDeclBoundary() {
			p.ResyncToDeclBoundary()
		}
	}
	p.Scopes.Pop()
	p.expect("}")
	p.expect(";")

	si.Freeze()

	return p.Arena.Add(ast.KindStructDecl, pos, ast.StructDecl{
		Name: name, IsUnion: isUnion, Bases: bases, Members: members, StructType: tidx,
	})
}

// recordMemberLayout folds one parsed member declaration into the class's
// StructInfo while it is still unfrozen: non-static data members grow the
// layout, a destructor sets the user-dtor flag. A member whose type is
// still dependent (a template pattern's `T value;`) adds nothing — the
// instantiation re-parse resolves it and lays the concrete class out then.
func (p *Parser) recordMemberLayout(si *typetab.StructInfo, m ast.NodeID, access typetab.Access) {
	n := p.Arena.Get(m)
	switch d := n.Payload.(type) {
	case ast.VarDecl:
		if d.Storage == ast.StorageStatic {
			return
		}
		ts := p.Arena.Get(d.TypeSpec).Payload.(ast.TypeSpec)
		memberType, resolved := p.layoutType(ts)
		if !resolved {
			return
		}
		si.AddMember(typetab.Member{Name: d.Name, Type: memberType, Access: access}, p.Types)
	case ast.FuncDecl:
		if d.IsDestructor {
			si.HasUserDtor = true
		}
	}
}

// layoutType resolves a member/base TypeSpec far enough to lay storage out:
// primitives and bound template parameters through Resolved, previously
// declared classes by name, with the declarator's pointer/reference shape
// applied. Returns false while the type is still dependent.
func (p *Parser) layoutType(ts ast.TypeSpec) (typetab.Index, bool) {
	base := ts.Resolved
	if base == typetab.Void && ts.Dependent {
		if ts.QualifiedName != ast.None {
			if q, ok := p.Arena.Get(ts.QualifiedName).Payload.(ast.QualifiedId); ok && len(q.TemplateArgs) > 0 {
				return typetab.Void, false
			}
		}
		if h, ok := p.Strings.Lookup(p.dependentSpecName(ts)); ok {
			if idx, found := p.Types.LookupStruct(h); found {
				base = idx
			}
		}
		if base == typetab.Void {
			return typetab.Void, false
		}
	}
	t := base
	for i := 0; i < ts.PointerDepth; i++ {
		t = p.Types.Pointer(t)
	}
	if ts.Ref != typetab.RefNone {
		t = p.Types.Reference(t, ts.Ref)
	}
	return t, true
}

// parseClassMember parses one member-declaration: a data member, member
// function (including constructor/destructor, recognized by name), or a
// nested class/enum.
func (p *Parser) parseClassMember(className strtab.Handle, classType typetab.Index) ast.NodeID {
	attrs := p.parseAttributeSpecifiers()
	t := p.peek()
	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "class", "struct", "union":
			return p.tryParseClassDecl()
		case "enum":
			return p.parseEnumDecl()
		case "using":
			return p.parseUsing()
		}
	}

	// Destructor: `~Name() ...`
	if p.at("~") {
		pos := p.consume().Pos
		p.expect(p.Strings.String(className))
		p.expect("(")
		p.expect(")")
		fn := ast.FuncDecl{Name: className, IsDestructor: true}
		p.parseFunctionTail(&fn)
		return p.Arena.Add(ast.KindFuncDecl, pos, fn)
	}

	// Constructor: `Name(...) ...` — identifier matching the class name
	// immediately followed by '('.
	if t.Kind == token.Identifier && p.Strings.String(t.Text) == p.Strings.String(className) {
		if nt := p.Lex.Peek(1); nt.Kind == token.Punctuator && p.Strings.String(nt.Text) == "(" {
			pos := p.consume().Pos
			p.consume() // '('
			fn := ast.FuncDecl{Name: className, IsConstructor: true}
			fn.Params = p.parseParamList()
			p.expect(")")
			p.parseFunctionTail(&fn)
			return p.Arena.Add(ast.KindFuncDecl, pos, fn)
		}
	}

	isStatic, isVirtual, isConstexpr := false, false, false
	for p.peek().Kind == token.Keyword {
		switch p.Strings.String(p.peek().Text) {
		case "static":
			isStatic = true
			p.consume()
			continue
		case "virtual":
			isVirtual = true
			p.consume()
			continue
		case "constexpr":
			isConstexpr = true
			p.consume()
			continue
		case "explicit", "inline", "friend", "mutable":
			p.consume()
			continue
		}
		break
	}

	pos := p.peek().Pos
	spec := p.ParseTypeSpec()
	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	}

	if p.at("(") {
		p.consume()
		fn := ast.FuncDecl{
			Name: name, IsStatic: isStatic, IsVirtual: isVirtual, IsConstexpr: isConstexpr, ReturnType: spec,
			IsNoreturn: attrs.Noreturn, IsNodiscard: attrs.Nodiscard, IsMaybeUnused: attrs.MaybeUnused,
		}
		fn.Params = p.parseParamList()
		p.expect(")")
		if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "const" {
			p.consume()
			fn.IsConst = true
		}
		if p.at("=") {
			p.consume()
			if p.atIdent() && p.spelling(p.peek()) == "delete" {
				p.consume()
				fn.IsDeleted = true
			} else if p.atIdent() && p.spelling(p.peek()) == "default" {
				p.consume()
				fn.IsDefaulted = true
			} else {
				p.consume() // '0' pure-virtual marker
				fn.IsPureVirtual = true
			}
			p.expect(";")
		} else {
			p.parseFunctionTail(&fn)
		}
		return p.Arena.Add(ast.KindFuncDecl, pos, fn)
	}

	// Data member.
	var init ast.NodeID
	if p.at("=") {
		p.consume()
		init = p.parseAssignmentExpr()
	}
	p.expect(";")
	vd := ast.VarDecl{Name: name, TypeSpec: spec, Init: init, IsConstexpr: isConstexpr, IsMaybeUnused: attrs.MaybeUnused}
	if isStatic {
		vd.Storage = ast.StorageStatic
	}
	return p.Arena.Add(ast.KindVarDecl, pos, vd)
}

// parseFunctionTail parses a function body (filling fn.Body) or a trailing
// ';' for a prototype-only declaration.
func (p *Parser) parseFunctionTail(fn *ast.FuncDecl) {
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "noexcept" {
		p.consume()
		fn.IsNoexcept = true
		if p.at("(") {
			p.consume()
			p.ParseExpr()
			p.expect(")")
		}
	}
	fn.Requires = p.parseRequiresClause()
	if p.at(";") {
		p.consume()
		return
	}
	fn.Body = p.parseBlock()
}

// parseParamList parses a function's parameter list up to (not including)
// the closing ')'.
func (p *Parser) parseParamList() []ast.NodeID {
	var params []ast.NodeID
	for !p.at(")") {
		if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "void" {
			if nt := p.Lex.Peek(1); nt.Kind == token.Punctuator && p.Strings.String(nt.Text) == ")" {
				p.consume()
				break
			}
		}
		attrs := p.parseAttributeSpecifiers()
		pos := p.peek().Pos
		spec := p.ParseTypeSpec()
		name := strtab.Invalid
		if p.atIdent() {
			name = p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
		}
		var def ast.NodeID
		if p.at("=") {
			p.consume()
			def = p.parseAssignmentExpr()
		}
		params = append(params, p.Arena.Add(ast.KindVarDecl, pos, ast.VarDecl{
			Name: name, TypeSpec: spec, Init: def, IsParameter: true, IsMaybeUnused: attrs.MaybeUnused,
		}))
		if p.at(",") {
			p.consume()
			continue
		}
		break
	}
	return params
}

// parseFunctionOrVarDecl parses a top-level function definition/prototype or
// a variable declaration, disambiguated by whether '(' follows the declarator
// name.
func (p *Parser) parseFunctionOrVarDecl(attrs declAttributes) ast.NodeID {
	storage := p.consumeStorageClass()
	isConstexpr, isInline := false, false
	for p.peek().Kind == token.Keyword {
		switch p.Strings.String(p.peek().Text) {
		case "constexpr":
			isConstexpr = true
			p.consume()
			continue
		case "inline":
			isInline = true
			p.consume()
			continue
		}
		break
	}
	_ = isInline

	pos := p.peek().Pos
	if p.peek().Kind == token.EndOfFile {
		return ast.None
	}
	spec := p.ParseTypeSpec()

	name := strtab.Invalid
	if p.atIdent() {
		name = p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
	} else if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "operator" {
		p.consume()
		opTok := p.peek()
		name = p.Strings.Intern("operator" + p.spelling(opTok))
		p.consume()
	} else {
		p.errorf(diag.ParseError, p.peek().Pos, "expected declarator name, got %q", p.spelling(p.peek()))
		return ast.None
	}

	if p.at("(") {
		p.consume()
		fn := ast.FuncDecl{
			Name: name, ReturnType: spec, IsConstexpr: isConstexpr, IsStatic: storage == ast.StorageStatic,
			IsNoreturn: attrs.Noreturn, IsNodiscard: attrs.Nodiscard, IsMaybeUnused: attrs.MaybeUnused,
		}
		fn.Params = p.parseParamList()
		p.expect(")")
		p.parseFunctionTail(&fn)
		p.Scopes.Declare(name, ast.None)
		return p.Arena.Add(ast.KindFuncDecl, pos, fn)
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
	p.expect(";")
	vd := ast.VarDecl{Name: name, TypeSpec: spec, Init: init, Storage: storage, IsConstexpr: isConstexpr, IsMaybeUnused: attrs.MaybeUnused}
	p.Scopes.Declare(name, ast.None)
	return p.Arena.Add(ast.KindVarDecl, pos, vd)
}
