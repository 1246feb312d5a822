package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/sema"
	"github.com/oxhq/flashcpp/typetab"
)

// staticTypeOf computes an expression's type without emitting any
// instructions, the way overload resolution needs to inspect every
// argument's type before committing to one candidate's code generation. It
// covers the expression shapes that can appear as a call argument; anything
// requiring full evaluation (a nested call's return type, resolved through
// whichever overload that inner call itself picks) degrades to the first
// same-arity candidate, a known simplification around nested overloaded
// calls noted alongside the rest of the overload-resolution surface.
func (g *Generator) staticTypeOf(id ast.NodeID) (typetab.Index, error) {
	n := g.Arena.Get(id)
	switch n.Kind {
	case ast.KindNumericLiteral:
		return n.Payload.(ast.NumericLiteral).Type, nil

	case ast.KindCharLiteral:
		return typetab.Index(typetab.KindChar), nil

	case ast.KindStringLiteral:
		return g.Types.Pointer(typetab.Index(typetab.KindChar)), nil

	case ast.KindIdentifierRef, ast.KindQualifiedId:
		ref, ok := g.asIdentifier(n)
		if !ok {
			return typetab.Void, g.genError(id, "codegen: cannot infer a type for a multi-segment qualified name")
		}
		if v, ok := g.lookupLocal(ref.Name); ok {
			return v.Type, nil
		}
		if _, m, ok := g.implicitThisMember(ref.Name); ok {
			return m.Type, nil
		}
		if info, ok := g.globals[ref.Name]; ok {
			return info.Type, nil
		}
		return typetab.Void, g.genError(id, "codegen: undeclared identifier %q", g.Strings.String(ref.Name))

	case ast.KindCast:
		return g.resolveSpec(n.Payload.(ast.Cast).TypeSpec)

	case ast.KindSizeof, ast.KindAlignof:
		return typetab.Index(typetab.KindULong), nil

	case ast.KindTypeTrait:
		return typetab.Index(typetab.KindBool), nil

	case ast.KindFoldExpr:
		f := n.Payload.(ast.FoldExpr)
		if name, ok := g.packNameOf(f.Pack); ok {
			if pb := g.fnPacks[name]; len(pb.Types) > 0 {
				return pb.Types[0], nil
			}
		}
		return typetab.Index(typetab.KindInt), nil

	case ast.KindConstructorExpr:
		return g.resolveSpec(n.Payload.(ast.ConstructorExpr).TypeSpec)

	case ast.KindUnaryOp:
		u := n.Payload.(ast.UnaryOp)
		op := g.Strings.String(u.Op)
		operandT, err := g.staticTypeOf(u.Operand)
		if err != nil {
			return typetab.Void, err
		}
		switch op {
		case "&":
			return g.Types.Pointer(operandT), nil
		case "*":
			return g.Types.Dereference(operandT), nil
		case "!":
			return typetab.Index(typetab.KindBool), nil
		default:
			return operandT, nil
		}

	case ast.KindBinaryOp:
		b := n.Payload.(ast.BinaryOp)
		switch g.Strings.String(b.Op) {
		case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
			return typetab.Index(typetab.KindBool), nil
		case ",":
			return g.staticTypeOf(b.RHS)
		default:
			return g.staticTypeOf(b.LHS)
		}

	case ast.KindConditional:
		return g.staticTypeOf(n.Payload.(ast.Conditional).Then)

	case ast.KindMemberAccess:
		m := n.Payload.(ast.MemberAccess)
		baseT, err := g.staticTypeOf(m.Base)
		if err != nil {
			return typetab.Void, err
		}
		structT := baseT
		if m.Arrow {
			structT = g.Types.Dereference(baseT)
		}
		mem, ok := findMember(g.Types, structT, m.Member)
		if !ok {
			return typetab.Void, g.genError(id, "codegen: no member %q", g.Strings.String(m.Member))
		}
		return mem.Type, nil

	case ast.KindArraySubscript:
		arrT, err := g.staticTypeOf(n.Payload.(ast.ArraySubscript).Array)
		if err != nil {
			return typetab.Void, err
		}
		return g.Types.Dereference(arrT), nil

	case ast.KindCall:
		return g.staticCallType(n.Payload.(ast.Call))
	}
	return typetab.Void, g.genError(id, "codegen: cannot infer a static type for node kind %d", n.Kind)
}

// staticCallType resolves a nested call's return type by matching arity
// alone against the name's declared overloads, sidestepping full recursive
// overload resolution purely to size this one outer argument slot.
func (g *Generator) staticCallType(c ast.Call) (typetab.Index, error) {
	name, ok := g.calleeName(c.Callee)
	if !ok {
		return typetab.Void, g.genError(c.Callee, "codegen: unsupported nested call-target expression")
	}
	if sema.IsTraitName(name) {
		return typetab.Index(typetab.KindBool), nil
	}
	if fn, intrinsic := sema.LookupIntrinsicFunc(name); intrinsic {
		if fn.Name == "__builtin_va_arg" && len(c.Args) == 2 {
			return g.resolveSpec(c.Args[1])
		}
		return fn.Return, nil
	}
	h := g.Strings.Intern(name)
	candidates, ok := g.Scopes.Lookup(h)
	if !ok {
		return typetab.Void, g.genError(c.Callee, "codegen: undeclared function %q", name)
	}
	for _, id := range candidates {
		if info, ok := g.Functions[id]; ok && len(info.ParamTypes) == len(c.Args) {
			return info.ReturnType, nil
		}
	}
	return typetab.Void, g.genError(c.Callee, "codegen: no overload of %q matches argument count", name)
}
