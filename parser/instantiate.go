package parser

import (
	"fmt"
	"strings"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/lexer"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

// InstantiateFunctionTemplate resolves a call to a function template: it
// deduces template arguments from argTypes, reparses the deferred body with
// the parameters bound to their substituted types (§4.4's two-phase
// parsing), and returns a concrete FuncDecl node ready for ordinary
// registration and code generation. The instantiation cache guarantees the
// same key always yields the same node within a translation unit (§3.3).
//
// Deduction covers type parameters (including a trailing parameter pack);
// a candidate needing non-type or template-template deduction is skipped,
// the same way an unviable overload is.
func (p *Parser) InstantiateFunctionTemplate(name strtab.Handle, argTypes []typetab.Index) (ast.NodeID, error) {
	handles := p.Templates.Lookup(name)
	if len(handles) == 0 {
		return ast.None, fmt.Errorf("no template named %q", p.Strings.String(name))
	}

	var lastReason string
	for _, h := range handles {
		node, err := p.tryInstantiate(h, argTypes)
		if err != nil {
			lastReason = err.Error()
			continue
		}
		return node, nil
	}
	if lastReason == "" {
		lastReason = "no candidate's parameter pattern unifies with the argument types"
	}
	return ast.None, fmt.Errorf("no viable instantiation of %q: %s", p.Strings.String(name), lastReason)
}

func (p *Parser) tryInstantiate(h sym.TemplateHandle, argTypes []typetab.Index) (ast.NodeID, error) {
	entry := p.Templates.Entry(h)
	tdNode := p.Arena.Get(entry.Primary)
	td, ok := tdNode.Payload.(ast.TemplateDecl)
	if !ok {
		return ast.None, fmt.Errorf("registry entry is not a template declaration")
	}
	patNode := p.Arena.Get(td.Pattern)
	pat, ok := patNode.Payload.(ast.FuncDecl)
	if !ok {
		return ast.None, fmt.Errorf("template pattern is not a function")
	}

	bindings, orderedArgs, tail, err := p.deduce(td.Params, pat.Params, argTypes)
	if err != nil {
		return ast.None, err
	}

	key := sym.InstantiationKey{Template: h, TypeArgs: orderedArgs, VariadicTail: tail}
	digest := key.Digest()
	if p.instantiated == nil {
		p.instantiated = make(map[string]ast.NodeID)
	}
	if node, ok := p.instantiated[digest]; ok {
		return node, nil
	}
	if cached, ok := p.Templates.Cache.Lookup(key); ok && cached.Failed {
		return ast.None, fmt.Errorf("%s", cached.FailMessage)
	}

	if ok, reason := p.Templates.EnterInstantiation(key); !ok {
		return ast.None, fmt.Errorf("%s", reason)
	}
	defer p.Templates.ExitInstantiation()

	node, err := p.reparseInstance(patNode.Pos, pat, bindings, tail)
	if err != nil {
		p.Templates.Cache.Store(key, sym.InstantiationResult{Failed: true, FailMessage: err.Error()})
		return ast.None, err
	}
	p.instantiated[digest] = node
	p.Templates.Cache.Store(key, sym.InstantiationResult{})
	return node, nil
}

// deduce unifies the pattern's parameter list against the call's argument
// types, producing the name->type binding map, the deduced arguments in
// template-parameter order (the instantiation key's TypeArgs), and the
// expanded pack tail if the last pattern parameter is a pack.
func (p *Parser) deduce(tparams, fparams []ast.NodeID, argTypes []typetab.Index) (map[string]typetab.Index, []typetab.Index, []typetab.Index, error) {
	var typeParamNames []string
	packParam := ""
	for _, tp := range tparams {
		tpd, ok := p.Arena.Get(tp).Payload.(ast.TemplateParamDecl)
		if !ok || tpd.Kind != ast.TemplateParamType {
			return nil, nil, nil, fmt.Errorf("only type parameters are deducible from a call")
		}
		if tpd.IsVariadic {
			packParam = p.Strings.String(tpd.Name)
			continue
		}
		typeParamNames = append(typeParamNames, p.Strings.String(tpd.Name))
	}

	bindings := map[string]typetab.Index{}
	var tail []typetab.Index
	argIdx := 0
	for _, fp := range fparams {
		pd, ok := p.Arena.Get(fp).Payload.(ast.VarDecl)
		if !ok {
			continue
		}
		ts := p.Arena.Get(pd.TypeSpec).Payload.(ast.TypeSpec)
		if ts.IsPack {
			if p.dependentSpecName(ts) != packParam || packParam == "" {
				return nil, nil, nil, fmt.Errorf("parameter pack does not name the template's variadic parameter")
			}
			for ; argIdx < len(argTypes); argIdx++ {
				tail = append(tail, p.decayArg(argTypes[argIdx]))
			}
			continue
		}
		if argIdx >= len(argTypes) {
			return nil, nil, nil, fmt.Errorf("too few arguments for template parameter deduction")
		}
		arg := p.decayArg(argTypes[argIdx])
		argIdx++
		if !ts.Dependent {
			continue
		}
		name := p.dependentSpecName(ts)
		if prev, ok := bindings[name]; ok {
			if prev != arg {
				return nil, nil, nil, fmt.Errorf("conflicting deductions for template parameter %q", name)
			}
			continue
		}
		bindings[name] = arg
	}
	if argIdx < len(argTypes) {
		return nil, nil, nil, fmt.Errorf("too many arguments for the template's parameter list")
	}

	ordered := make([]typetab.Index, 0, len(typeParamNames))
	for _, n := range typeParamNames {
		t, ok := bindings[n]
		if !ok {
			return nil, nil, nil, fmt.Errorf("could not deduce template parameter %q", n)
		}
		ordered = append(ordered, t)
	}
	return bindings, ordered, tail, nil
}

// reparseInstance repositions the lexer at the pattern's deferred body and
// parses it with typeBindings active, building the concrete parameter list
// (expanding a pack into per-element parameters) and the substituted return
// type along the way.
func (p *Parser) reparseInstance(pos token.Position, pat ast.FuncDecl, bindings map[string]typetab.Index, tail []typetab.Index) (ast.NodeID, error) {
	if pat.DeferredBodyStart == 0 && pat.Body == ast.None {
		return ast.None, fmt.Errorf("template %q has no body to instantiate", p.Strings.String(pat.Name))
	}

	var params []ast.NodeID
	var packs []ast.PackBinding
	for _, fp := range pat.Params {
		pd := p.Arena.Get(fp).Payload.(ast.VarDecl)
		ts := p.Arena.Get(pd.TypeSpec).Payload.(ast.TypeSpec)
		if ts.IsPack {
			pb := ast.PackBinding{Name: pd.Name}
			for j, t := range tail {
				elemName := p.internf("%s#%d", p.Strings.String(pd.Name), j)
				spec := p.Arena.Add(ast.KindTypeSpec, pos, ast.TypeSpec{Resolved: t})
				params = append(params, p.Arena.Add(ast.KindVarDecl, pos, ast.VarDecl{Name: elemName, TypeSpec: spec, IsParameter: true}))
				pb.Elements = append(pb.Elements, elemName)
				pb.Types = append(pb.Types, t)
			}
			packs = append(packs, pb)
			continue
		}
		spec, ok := p.substituteSpec(pos, ts, bindings)
		if !ok {
			return ast.None, fmt.Errorf("dependent parameter type %q did not resolve after substitution", p.dependentSpecName(ts))
		}
		params = append(params, p.Arena.Add(ast.KindVarDecl, pos, ast.VarDecl{Name: pd.Name, TypeSpec: spec, IsParameter: true}))
	}

	retSpec := pat.ReturnType
	if retSpec != ast.None {
		rts := p.Arena.Get(retSpec).Payload.(ast.TypeSpec)
		if rts.Dependent {
			sub, ok := p.substituteSpec(pos, rts, bindings)
			if !ok {
				return ast.None, fmt.Errorf("dependent return type %q did not resolve after substitution", p.dependentSpecName(rts))
			}
			retSpec = sub
		}
	}

	save := p.Lex.SavePosition()
	prevBindings := p.typeBindings
	p.Lex.RestorePosition(lexer.Position(pat.DeferredBodyStart))
	p.typeBindings = bindings
	defer func() {
		p.typeBindings = prevBindings
		p.Lex.RestorePosition(save)
	}()

	// The body reparse runs inside a trial bracket: a hard error under the
	// substituted arguments makes this candidate not viable (§4.4) rather
	// than polluting the translation unit's diagnostics.
	mark := p.BeginTrial()
	var stmts []ast.NodeID
	for !p.at("}") && p.peek().Kind != token.EndOfFile {
		stmts = append(stmts, p.ParseStmt())
	}
	if ok, reason := p.EndTrial(mark, false); !ok {
		return ast.None, fmt.Errorf("substitution failed: %s", reason)
	}
	body := p.Arena.Add(ast.KindBlock, pos, ast.Block{Stmts: stmts})

	inst := ast.FuncDecl{
		Name:        pat.Name,
		Params:      params,
		ReturnType:  retSpec,
		Body:        body,
		IsConstexpr: pat.IsConstexpr,
		IsStatic:    pat.IsStatic,
		IsNoexcept:  pat.IsNoexcept,
		Packs:       packs,
	}
	return p.Arena.Add(ast.KindFuncDecl, pos, inst), nil
}

// substituteSpec builds a concrete TypeSpec node from a pattern's spec,
// replacing a dependent base name through bindings while preserving the
// declarator's pointer/reference/cv shape.
func (p *Parser) substituteSpec(pos token.Position, ts ast.TypeSpec, bindings map[string]typetab.Index) (ast.NodeID, bool) {
	base := ts.Resolved
	if ts.Dependent {
		t, ok := bindings[p.dependentSpecName(ts)]
		if !ok {
			return ast.None, false
		}
		base = t
	}
	out := ast.TypeSpec{Resolved: base, PointerDepth: ts.PointerDepth, Ref: ts.Ref, CV: ts.CV}
	return p.Arena.Add(ast.KindTypeSpec, pos, out), true
}

// dependentSpecName extracts the bare name a dependent TypeSpec was spelled
// with: the recorded DependentName, or a single-segment qualified name's
// segment.
func (p *Parser) dependentSpecName(ts ast.TypeSpec) string {
	if ts.DependentName != strtab.Invalid {
		return p.Strings.String(ts.DependentName)
	}
	if ts.QualifiedName != ast.None {
		n := p.Arena.Get(ts.QualifiedName)
		if n.Kind == ast.KindQualifiedId {
			q := n.Payload.(ast.QualifiedId)
			if q.Left == ast.None {
				return p.Strings.String(q.Segment)
			}
		}
	}
	return ""
}

// classInstance pairs the TypeIndex one class instantiation produced with
// the concrete StructDecl node codegen registers member functions from.
type classInstance struct {
	Type typetab.Index
	Node ast.NodeID
}

// InstantiateClassTemplate resolves `Name<Args...>` used as a type: it
// binds the class template's parameters to the supplied type arguments,
// re-parses the pattern's recorded token range with the bindings active
// (the §4.4 two-phase mechanism, reusing tryParseClassDecl wholesale —
// member function bodies re-parse concretely along the way), renames the
// result to the instantiated spelling (`Box<int>`), and returns the frozen
// TypeIndex plus the concrete StructDecl node. Per §3.2, the cached result
// of a class key is a TypeIndex; the same key always yields the same one.
func (p *Parser) InstantiateClassTemplate(name strtab.Handle, typeArgs []typetab.Index) (typetab.Index, ast.NodeID, error) {
	handles := p.Templates.Lookup(name)
	if len(handles) == 0 {
		return typetab.Void, ast.None, fmt.Errorf("no template named %q", p.Strings.String(name))
	}

	var lastReason string
	for _, h := range handles {
		inst, err := p.tryInstantiateClass(h, typeArgs)
		if err != nil {
			lastReason = err.Error()
			continue
		}
		return inst.Type, inst.Node, nil
	}
	return typetab.Void, ast.None, fmt.Errorf("no viable instantiation of %q: %s", p.Strings.String(name), lastReason)
}

func (p *Parser) tryInstantiateClass(h sym.TemplateHandle, typeArgs []typetab.Index) (classInstance, error) {
	entry := p.Templates.Entry(h)
	tdNode := p.Arena.Get(entry.Primary)
	td, ok := tdNode.Payload.(ast.TemplateDecl)
	if !ok {
		return classInstance{}, fmt.Errorf("registry entry is not a template declaration")
	}
	pat, ok := p.Arena.Get(td.Pattern).Payload.(ast.StructDecl)
	if !ok {
		return classInstance{}, fmt.Errorf("template pattern is not a class")
	}

	bindings, err := p.bindClassParams(td.Params, typeArgs)
	if err != nil {
		return classInstance{}, err
	}

	key := sym.InstantiationKey{Template: h, TypeArgs: typeArgs}
	digest := key.Digest()
	if p.instantiatedClasses == nil {
		p.instantiatedClasses = make(map[string]classInstance)
	}
	if inst, ok := p.instantiatedClasses[digest]; ok {
		return inst, nil
	}
	if cached, ok := p.Templates.Cache.Lookup(key); ok && cached.Failed {
		return classInstance{}, fmt.Errorf("%s", cached.FailMessage)
	}

	if ok, reason := p.Templates.EnterInstantiation(key); !ok {
		return classInstance{}, fmt.Errorf("%s", reason)
	}
	defer p.Templates.ExitInstantiation()

	inst, err := p.reparseClassInstance(pat, typeArgs, bindings)
	if err != nil {
		p.Templates.Cache.Store(key, sym.InstantiationResult{Failed: true, FailMessage: err.Error()})
		return classInstance{}, err
	}
	p.instantiatedClasses[digest] = inst
	p.Templates.Cache.Store(key, sym.InstantiationResult{ClassType: inst.Type})
	return inst, nil
}

// bindClassParams maps each template parameter name to its argument,
// consuming defaults for trailing parameters the use site omitted.
func (p *Parser) bindClassParams(tparams []ast.NodeID, typeArgs []typetab.Index) (map[string]typetab.Index, error) {
	if len(typeArgs) > len(tparams) {
		return nil, fmt.Errorf("too many template arguments")
	}
	bindings := map[string]typetab.Index{}
	for i, tp := range tparams {
		tpd, ok := p.Arena.Get(tp).Payload.(ast.TemplateParamDecl)
		if !ok || tpd.Kind != ast.TemplateParamType || tpd.IsVariadic {
			return nil, fmt.Errorf("class instantiation supports plain type parameters only")
		}
		name := p.Strings.String(tpd.Name)
		if i < len(typeArgs) {
			bindings[name] = typeArgs[i]
			continue
		}
		if tpd.Default == ast.None {
			return nil, fmt.Errorf("too few template arguments and no default for %q", name)
		}
		dts := p.Arena.Get(tpd.Default).Payload.(ast.TypeSpec)
		def, ok := p.substituteSpec(ast.Node{}.Pos, dts, bindings)
		if !ok {
			return nil, fmt.Errorf("default argument for %q did not resolve", name)
		}
		bindings[name] = p.Arena.Get(def).Payload.(ast.TypeSpec).Resolved
	}
	return bindings, nil
}

// reparseClassInstance replays the pattern's token range through
// tryParseClassDecl with typeBindings active, then renames the freshly
// frozen class to its instantiated spelling so member mangling and later
// qualified lookups see the per-instance name (§4.4).
func (p *Parser) reparseClassInstance(pat ast.StructDecl, typeArgs []typetab.Index, bindings map[string]typetab.Index) (classInstance, error) {
	if pat.DeferredStart == 0 {
		return classInstance{}, fmt.Errorf("class template %q has no recorded pattern range", p.Strings.String(pat.Name))
	}

	save := p.Lex.SavePosition()
	prevBindings := p.typeBindings
	p.Lex.RestorePosition(lexer.Position(pat.DeferredStart))
	p.typeBindings = bindings
	defer func() {
		p.typeBindings = prevBindings
		p.Lex.RestorePosition(save)
	}()

	mark := p.BeginTrial()
	node := p.tryParseClassDecl()
	if ok, reason := p.EndTrial(mark, false); !ok || node == ast.None {
		if reason == "" {
			reason = "pattern did not re-parse"
		}
		return classInstance{}, fmt.Errorf("substitution failed: %s", reason)
	}

	n := p.Arena.Get(node)
	sd, ok := n.Payload.(ast.StructDecl)
	if !ok {
		return classInstance{}, fmt.Errorf("pattern re-parse did not yield a class")
	}

	instName := p.Strings.Intern(p.instantiatedClassName(pat.Name, typeArgs))
	sd.Name = instName
	p.Types.Struct(p.Types.Get(sd.StructType).Struct).Name = instName
	concrete := p.Arena.Add(ast.KindStructDecl, n.Pos, sd)
	return classInstance{Type: sd.StructType, Node: concrete}, nil
}

// instantiatedClassName renders `Box<int>`-style spellings; the mangler's
// length-prefixed source-name encoding keeps them injective even with the
// angle brackets, which is all it promises.
func (p *Parser) instantiatedClassName(name strtab.Handle, typeArgs []typetab.Index) string {
	var b strings.Builder
	b.WriteString(p.Strings.String(name))
	b.WriteByte('<')
	for i, t := range typeArgs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.typeSpelling(t))
	}
	b.WriteByte('>')
	return b.String()
}

// typeSpelling renders a type argument for diagnostics and instantiated
// class names.
func (p *Parser) typeSpelling(t typetab.Index) string {
	info := p.Types.Get(t)
	base := ""
	switch info.Base {
	case typetab.KindVoid:
		base = "void"
	case typetab.KindBool:
		base = "bool"
	case typetab.KindChar:
		base = "char"
	case typetab.KindSChar:
		base = "signed char"
	case typetab.KindUChar:
		base = "unsigned char"
	case typetab.KindWChar:
		base = "wchar_t"
	case typetab.KindChar8:
		base = "char8_t"
	case typetab.KindChar16:
		base = "char16_t"
	case typetab.KindChar32:
		base = "char32_t"
	case typetab.KindShort:
		base = "short"
	case typetab.KindUShort:
		base = "unsigned short"
	case typetab.KindInt:
		base = "int"
	case typetab.KindUInt:
		base = "unsigned int"
	case typetab.KindLong:
		base = "long"
	case typetab.KindULong:
		base = "unsigned long"
	case typetab.KindLongLong:
		base = "long long"
	case typetab.KindULongLong:
		base = "unsigned long long"
	case typetab.KindFloat:
		base = "float"
	case typetab.KindDouble:
		base = "double"
	case typetab.KindLongDouble:
		base = "long double"
	case typetab.KindNullptr:
		base = "nullptr_t"
	case typetab.KindStruct, typetab.KindEnum:
		base = p.Strings.String(p.Types.Struct(info.Struct).Name)
	default:
		base = fmt.Sprintf("type%d", t)
	}
	return base + strings.Repeat("*", info.PointerDepth)
}

// decayArg drops reference-ness from a deduced argument type, the by-value
// slice of reference collapsing a call-expression deduction needs.
func (p *Parser) decayArg(t typetab.Index) typetab.Index {
	info := p.Types.Get(t)
	if info.Ref == typetab.RefNone {
		return t
	}
	info.Ref = typetab.RefNone
	return p.Types.Add(info)
}
