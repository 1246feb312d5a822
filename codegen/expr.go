package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/sema"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// genExpr evaluates id as an rvalue, returning the TypedValue a caller can
// feed straight into another instruction's operand (§4.6). For an aggregate
// (struct) expression, the TypedValue names the TempVar holding the
// object's address, consistent with how OpStackAlloc's Result is defined —
// every place downstream that consumes an aggregate operand already expects
// an address in that slot, not a byte-for-byte value.
func (g *Generator) genExpr(id ast.NodeID) (ir.TypedValue, error) {
	n := g.Arena.Get(id)
	switch n.Kind {
	case ast.KindNumericLiteral:
		lit := n.Payload.(ast.NumericLiteral)
		if lit.IsFloat {
			return ir.TypedValue{Type: lit.Type, Kind: ir.ValueFloatLiteral, FloatLiteral: lit.FloatValue, IsSigned: true}, nil
		}
		return ir.TypedValue{Type: lit.Type, Kind: ir.ValueIntLiteral, IntLiteral: int64(lit.IntValue), IsSigned: !lit.IsUnsigned}, nil

	case ast.KindCharLiteral:
		lit := n.Payload.(ast.CharLiteral)
		var v int64
		if len(lit.Decoded) > 0 {
			v = int64(lit.Decoded[0])
		}
		return ir.TypedValue{Type: typetab.Index(typetab.KindChar), Kind: ir.ValueIntLiteral, IntLiteral: v, IsSigned: true}, nil

	case ast.KindStringLiteral:
		lit := n.Payload.(ast.StringLiteral)
		h := g.Strings.Intern(string(lit.Decoded))
		charT := typetab.Index(typetab.KindChar)
		return ir.TypedValue{Type: g.Types.Pointer(charT), Kind: ir.ValueStringLiteral, StrHandle: h, PointerDepth: 1}, nil

	case ast.KindIdentifierRef:
		return g.genIdentifier(id, n.Payload.(ast.IdentifierRef))

	case ast.KindQualifiedId:
		q := n.Payload.(ast.QualifiedId)
		if q.Left == ast.None && len(q.TemplateArgs) == 0 {
			return g.genIdentifier(id, ast.IdentifierRef{Name: q.Segment})
		}
		return ir.TypedValue{}, g.genError(id, "codegen: qualified-name expressions beyond a single segment are not supported here")

	case ast.KindBinaryOp:
		return g.genBinaryExpr(id, n.Payload.(ast.BinaryOp))

	case ast.KindUnaryOp:
		return g.genUnaryExpr(id, n.Payload.(ast.UnaryOp))

	case ast.KindConditional:
		return g.genConditional(id, n.Payload.(ast.Conditional))

	case ast.KindMemberAccess:
		return g.genMemberLoad(id, n.Payload.(ast.MemberAccess))

	case ast.KindArraySubscript:
		return g.genArrayLoad(id, n.Payload.(ast.ArraySubscript))

	case ast.KindCall:
		return g.genCall(id, n.Payload.(ast.Call))

	case ast.KindConstructorExpr:
		return g.genConstructorExpr(id, n.Payload.(ast.ConstructorExpr))

	case ast.KindCast:
		return g.genCastExpr(id, n.Payload.(ast.Cast))

	case ast.KindSizeof:
		sz := n.Payload.(ast.Sizeof)
		if sz.IsPack {
			pb, ok := g.fnPacks[sz.PackName]
			if !ok {
				return ir.TypedValue{}, g.genError(id, "codegen: sizeof... names no parameter pack %q", g.Strings.String(sz.PackName))
			}
			return ir.TypedValue{Type: typetab.Index(typetab.KindULong), Kind: ir.ValueIntLiteral, IntLiteral: int64(len(pb.Elements))}, nil
		}
		return g.genConstantFold(id)

	case ast.KindAlignof, ast.KindTypeTrait:
		return g.genConstantFold(id)

	case ast.KindFoldExpr:
		return g.genFoldExpr(id, n.Payload.(ast.FoldExpr))

	case ast.KindLambda:
		return g.genLambda(id, n.Payload.(ast.Lambda))

	case ast.KindNew:
		return g.genNew(id, n.Payload.(ast.New))

	case ast.KindDelete:
		return ir.TypedValue{}, g.genDelete(id, n.Payload.(ast.Delete))

	case ast.KindThrow:
		return ir.TypedValue{}, g.genThrow(n.Payload.(ast.Throw))
	}
	return ir.TypedValue{}, g.genError(id, "codegen: unhandled expression node kind %d", n.Kind)
}

func (g *Generator) genIdentifier(id ast.NodeID, ref ast.IdentifierRef) (ir.TypedValue, error) {
	if v, ok := g.lookupLocal(ref.Name); ok {
		return g.loadLocal(v), nil
	}
	if this, m, ok := g.implicitThisMember(ref.Name); ok {
		base := g.typedValue(this.Temp, this.Type)
		if g.isAggregateType(m.Type) {
			ptrT := g.Types.Pointer(m.Type)
			result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
			g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
				Base:   base,
				Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: m.Offset, ResultType: m.Type}},
				Result: result,
			})
			return g.typedValue(result, m.Type), nil
		}
		result := g.fn.NewTemp(m.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
		g.fn.Emit(ir.OpMemberLoad, ir.MemberLoad{Base: base, ByteOffset: m.Offset, MemberType: m.Type, Result: result})
		return g.typedValue(result, m.Type), nil
	}
	if info, ok := g.globals[ref.Name]; ok {
		return g.genGlobalLoad(id, info)
	}
	return ir.TypedValue{}, g.genError(id, "codegen: undeclared identifier %q", g.Strings.String(ref.Name))
}

// implicitThisMember resolves an unqualified name against the enclosing
// member function's `this` — the class-scope step of §4.3's lookup order,
// sitting between function locals and namespace scope.
func (g *Generator) implicitThisMember(name strtab.Handle) (*localVar, member, bool) {
	this, ok := g.lookupLocal(g.Strings.Intern("this"))
	if !ok {
		return nil, member{}, false
	}
	if g.Types.Get(this.Type).PointerDepth == 0 {
		return nil, member{}, false
	}
	m, ok := findMember(g.Types, g.Types.Dereference(this.Type), name)
	if !ok {
		return nil, member{}, false
	}
	return this, m, true
}

// loadLocal produces a local's rvalue. A scalar bound by address (a by-ref
// lambda capture, say) needs an explicit Load through the stored address;
// aggregates keep the address-in-temp convention untouched.
func (g *Generator) loadLocal(v *localVar) ir.TypedValue {
	if v.IsAddress && !g.isAggregateType(v.Type) {
		ptrT := g.Types.Pointer(v.Type)
		result := g.fn.NewTemp(v.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
		g.fn.Emit(ir.OpLoad, ir.Load{Address: g.typedValue(v.Temp, ptrT), Result: result})
		return g.typedValue(result, v.Type)
	}
	return g.typedValue(v.Temp, v.Type)
}

// genConstantFold evaluates a constexpr-only expression (sizeof/alignof/type
// traits) through sema.Evaluator, the same evaluator constexpr initializers
// and non-type template arguments use (§4.5) — codegen never needs its own
// copy of the sizeof/alignof arithmetic.
func (g *Generator) genConstantFold(id ast.NodeID) (ir.TypedValue, error) {
	ev := sema.Evaluator{Arena: g.Arena, Strings: g.Strings, Types: g.Types}
	v, err := ev.Eval(id)
	if err != nil {
		return ir.TypedValue{}, g.genError(id, "codegen: %v", err)
	}
	switch v.Kind {
	case sema.ValFloat:
		return ir.TypedValue{Type: v.Type, Kind: ir.ValueFloatLiteral, FloatLiteral: v.Flt, IsSigned: true}, nil
	case sema.ValBool:
		b := int64(0)
		if v.Bool {
			b = 1
		}
		return ir.TypedValue{Type: typetab.Index(typetab.KindBool), Kind: ir.ValueIntLiteral, IntLiteral: b}, nil
	default:
		return ir.TypedValue{Type: v.Type, Kind: ir.ValueIntLiteral, IntLiteral: v.AsInt64(), IsSigned: g.isSignedType(v.Type)}, nil
	}
}

func (g *Generator) genConditional(id ast.NodeID, c ast.Conditional) (ir.TypedValue, error) {
	condV, err := g.genExpr(c.Cond)
	if err != nil {
		return ir.TypedValue{}, err
	}
	thenLabel, elseLabel, joinLabel := g.newLabel("tt"), g.newLabel("tf"), g.newLabel("tj")
	g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: condV, ThenLabel: thenLabel, ElseLabel: elseLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: thenLabel})
	thenV, err := g.genExpr(c.Then)
	if err != nil {
		return ir.TypedValue{}, err
	}
	result := g.fn.NewTemp(thenV.Type, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.storeInto(result, thenV)
	g.fn.Emit(ir.OpJump, ir.Jump{Target: joinLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: elseLabel})
	elseV, err := g.genExpr(c.Else)
	if err != nil {
		return ir.TypedValue{}, err
	}
	g.storeInto(result, elseV)

	g.fn.Emit(ir.OpLabel, ir.Label{Name: joinLabel})
	return g.typedValue(result, thenV.Type), nil
}

// storeInto writes v into an existing TempVar's home slot via an identity
// cast, the same trick plain local-variable assignment uses — there is no
// standalone "move into this slot" opcode, so a same-type Cast stands in for
// one (lower's emitCast turns a same-domain cast into a plain move).
func (g *Generator) storeInto(dst int, v ir.TypedValue) {
	g.fn.Emit(ir.OpCast, ir.Cast{Kind: ir.CastKind(ast.CastImplicit), Operand: v, To: v.Type, Result: dst})
}
