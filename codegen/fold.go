package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// genFoldExpr expands a C++17 fold expression against the concrete pack the
// enclosing instantiation bound (§4.4: expansion happens during code
// generation with a known argument list). The four fold shapes reduce to
// two loops: a left fold combines elements front-to-back, a right fold
// back-to-front, with the init operand (when present) seeding the
// accumulator on the matching end.
func (g *Generator) genFoldExpr(id ast.NodeID, f ast.FoldExpr) (ir.TypedValue, error) {
	op := g.Strings.String(f.Op)

	packName, ok := g.packNameOf(f.Pack)
	kind := f.Kind
	initNode := f.Init
	if !ok && f.Init != ast.None {
		// `(a op ... op b)` parses with both operands in source order; when
		// the left one doesn't name a pack the right one must, making this
		// a binary left fold with the roles swapped.
		if name, rightIsPack := g.packNameOf(f.Init); rightIsPack {
			packName, ok = name, true
			initNode = f.Pack
			kind = ast.FoldBinaryLeft
		}
	}
	if !ok {
		return ir.TypedValue{}, g.genError(id, "codegen: fold expression operand does not name a parameter pack")
	}
	pb := g.fnPacks[packName]

	elems := make([]ir.TypedValue, len(pb.Elements))
	for i, e := range pb.Elements {
		v, found := g.lookupLocal(e)
		if !found {
			return ir.TypedValue{}, g.genError(id, "codegen: pack element %q is not in scope", g.Strings.String(e))
		}
		elems[i] = g.loadLocal(v)
	}

	var acc ir.TypedValue
	haveAcc := false
	if initNode != ast.None {
		v, err := g.genExpr(initNode)
		if err != nil {
			return ir.TypedValue{}, err
		}
		acc, haveAcc = v, true
	}

	if len(elems) == 0 && !haveAcc {
		// An empty pack only folds under the three operators the standard
		// gives an identity element.
		boolT := typetab.Index(typetab.KindBool)
		switch op {
		case "&&":
			return ir.TypedValue{Type: boolT, Kind: ir.ValueIntLiteral, IntLiteral: 1}, nil
		case "||":
			return ir.TypedValue{Type: boolT, Kind: ir.ValueIntLiteral, IntLiteral: 0}, nil
		case ",":
			return ir.TypedValue{Type: typetab.Void}, nil
		}
		return ir.TypedValue{}, g.genError(id, "codegen: fold of an empty pack over %q has no identity element", op)
	}

	switch kind {
	case ast.FoldUnaryLeft, ast.FoldBinaryLeft:
		start := 0
		if !haveAcc {
			acc = elems[0]
			start = 1
		}
		for _, e := range elems[start:] {
			acc = g.emitFoldOp(op, acc, e)
		}
	default: // FoldUnaryRight, FoldBinaryRight
		last := len(elems) - 1
		if !haveAcc {
			acc = elems[last]
			last--
		}
		for i := last; i >= 0; i-- {
			acc = g.emitFoldOp(op, elems[i], acc)
		}
	}
	return acc, nil
}

// emitFoldOp combines two already-evaluated operands with op, routing
// comparison operators through OpCompare the way genBinaryExpr does.
func (g *Generator) emitFoldOp(op string, lhs, rhs ir.TypedValue) ir.TypedValue {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		boolT := typetab.Index(typetab.KindBool)
		result := g.fn.NewTemp(boolT, 8, ir.ValueCategory{Kind: ir.CatPRValue})
		g.fn.Emit(ir.OpCompare, ir.Compare{Op: g.Strings.Intern(op), LHS: lhs, RHS: rhs, Result: result})
		return g.typedValue(result, boolT)
	}
	return g.emitBinary(op, lhs, rhs)
}

// packNameOf reports whether an expression names one of the current
// function's parameter packs: a bare identifier (or single-segment
// qualified name) whose spelling matches a pack binding.
func (g *Generator) packNameOf(id ast.NodeID) (strtab.Handle, bool) {
	if id == ast.None {
		return strtab.Invalid, false
	}
	ref, ok := g.asIdentifier(g.Arena.Get(id))
	if !ok {
		return strtab.Invalid, false
	}
	if _, bound := g.fnPacks[ref.Name]; !bound {
		return strtab.Invalid, false
	}
	return ref.Name, true
}
