package parser

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

var primitiveKeywords = map[string]typetab.BaseKind{
	"void": typetab.KindVoid, "bool": typetab.KindBool,
	"char": typetab.KindChar, "wchar_t": typetab.KindWChar,
	"char8_t": typetab.KindChar8, "char16_t": typetab.KindChar16, "char32_t": typetab.KindChar32,
	"float": typetab.KindFloat, "double": typetab.KindDouble,
}

// ParseTypeSpec parses a (possibly cv-qualified, possibly pointer/reference)
// type specifier: built-in keyword sequences, a class/enum name, or a
// dependent template-parameter name inside a template pattern.
func (p *Parser) ParseTypeSpec() ast.NodeID {
	pos := p.peek().Pos
	spec := ast.TypeSpec{}

	var (
		sawUnsigned, sawSigned bool
		longCount              int
		sawShort               bool
		primitive              typetab.BaseKind
		sawPrimitive           bool
	)

loop:
	for {
		t := p.peek()
		if t.Kind == token.Keyword {
			switch p.Strings.String(t.Text) {
			case "const":
				spec.CV |= typetab.CVConst
				p.consume()
				continue
			case "volatile":
				spec.CV |= typetab.CVVolatile
				p.consume()
				continue
			case "unsigned":
				sawUnsigned = true
				p.consume()
				continue
			case "signed":
				sawSigned = true
				p.consume()
				continue
			case "short":
				sawShort = true
				p.consume()
				continue
			case "long":
				longCount++
				p.consume()
				continue
			case "int":
				sawPrimitive = true
				primitive = typetab.KindInt
				p.consume()
				continue
			case "auto":
				spec.Dependent = true
				spec.DependentName = p.Strings.Intern("auto")
				p.consume()
				break loop
			case "typename", "class", "struct", "enum", "union":
				p.consume()
				continue
			}
			if k, ok := primitiveKeywords[p.Strings.String(t.Text)]; ok {
				sawPrimitive = true
				primitive = k
				p.consume()
				continue
			}
		}
		break loop
	}

	if sawUnsigned || sawSigned || sawShort || longCount > 0 || sawPrimitive {
		spec.Resolved = resolvePrimitive(sawUnsigned, sawShort, longCount, primitive, sawPrimitive)
	} else if p.atIdent() {
		// Inside an instantiation reparse a template parameter's name is
		// bound to its concrete substituted type (§4.4's two-phase parsing);
		// everywhere else the name stays dependent for sema to look up.
		if bound, ok := p.typeBindings[p.spelling(p.peek())]; ok {
			p.consume()
			spec.Resolved = bound
		} else {
			spec.QualifiedName = p.parseQualifiedIdForType()
			spec.Dependent = true // resolved later by sema once the name is looked up
		}
	}

	for p.at("*") {
		p.consume()
		spec.PointerDepth++
		for p.at("const") || p.at("volatile") {
			p.consume()
		}
	}
	if p.at("&") {
		p.consume()
		spec.Ref = typetab.RefLValue
	} else if p.at("&&") {
		p.consume()
		spec.Ref = typetab.RefRValue
	}

	// Parameter-pack declarator: `Args... args` (§ variadic templates). A
	// bare `...` before ')' or ',' belongs to the declarator, not the
	// following name, since the name itself never carries its own ellipsis.
	if p.at("...") {
		p.consume()
		spec.IsPack = true
	}

	return p.Arena.Add(ast.KindTypeSpec, pos, spec)
}

func resolvePrimitive(unsigned, short bool, longCount int, base typetab.BaseKind, sawPrimitive bool) typetab.Index {
	if !sawPrimitive {
		base = typetab.KindInt
	}
	if base != typetab.KindInt {
		return typetab.Index(base)
	}
	switch {
	case short && unsigned:
		return typetab.Index(typetab.KindUShort)
	case short:
		return typetab.Index(typetab.KindShort)
	case longCount >= 2 && unsigned:
		return typetab.Index(typetab.KindULongLong)
	case longCount >= 2:
		return typetab.Index(typetab.KindLongLong)
	case longCount == 1 && unsigned:
		return typetab.Index(typetab.KindULong)
	case longCount == 1:
		return typetab.Index(typetab.KindLong)
	case unsigned:
		return typetab.Index(typetab.KindUInt)
	default:
		return typetab.Index(typetab.KindInt)
	}
}

// parseQualifiedIdForType parses a possibly-qualified class/enum/template
// name used as a type specifier, e.g. `std::vector<int>` or `Box<T>`.
func (p *Parser) parseQualifiedIdForType() ast.NodeID {
	return p.parseQualifiedId(true)
}
