package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/typetab"
)

// assignOps maps each compound-assignment spelling to the arithmetic
// operator it folds into (`x += y` becomes `x = x + y` at the IR level,
// matching how lower's emitBinaryOp never sees a compound form).
var assignOps = map[string]string{
	"+=": "+", "-=": "-", "*=": "*", "/=": "/", "%=": "%",
	"&=": "&", "|=": "|", "^=": "^", "<<=": "<<", ">>=": ">>",
}

func (g *Generator) genBinaryExpr(id ast.NodeID, b ast.BinaryOp) (ir.TypedValue, error) {
	op := g.Strings.String(b.Op)

	switch op {
	case "=":
		rhs, err := g.genExpr(b.RHS)
		if err != nil {
			return ir.TypedValue{}, err
		}
		return g.assignTo(b.LHS, rhs)

	case ",":
		if _, err := g.genExpr(b.LHS); err != nil {
			return ir.TypedValue{}, err
		}
		return g.genExpr(b.RHS)

	case "&&", "||":
		return g.genLogical(op, b)
	}

	if arith, ok := assignOps[op]; ok {
		lhs, err := g.genExpr(b.LHS)
		if err != nil {
			return ir.TypedValue{}, err
		}
		rhs, err := g.genExpr(b.RHS)
		if err != nil {
			return ir.TypedValue{}, err
		}
		combined := g.emitBinary(arith, lhs, rhs)
		return g.assignTo(b.LHS, combined)
	}

	lhs, err := g.genExpr(b.LHS)
	if err != nil {
		return ir.TypedValue{}, err
	}
	rhs, err := g.genExpr(b.RHS)
	if err != nil {
		return ir.TypedValue{}, err
	}

	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		result := g.fn.NewTemp(typetab.Index(typetab.KindBool), 8, ir.ValueCategory{Kind: ir.CatPRValue})
		g.fn.Emit(ir.OpCompare, ir.Compare{Op: b.Op, LHS: lhs, RHS: rhs, Result: result})
		return g.typedValue(result, typetab.Index(typetab.KindBool)), nil
	}

	return g.emitBinary(op, lhs, rhs), nil
}

// emitBinary emits one OpBinaryOp and returns the TypedValue naming its
// result, resolving the result type as the already-converted LHS operand's
// type (sema's usual-arithmetic-conversion pass inserts whatever implicit
// Cast nodes are needed before codegen ever sees the BinaryOp, per §4.5).
func (g *Generator) emitBinary(op string, lhs, rhs ir.TypedValue) ir.TypedValue {
	result := g.fn.NewTemp(lhs.Type, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpBinaryOp, ir.BinaryOp{Op: g.Strings.Intern(op), LHS: lhs, RHS: rhs, Result: result})
	return g.typedValue(result, lhs.Type)
}

// genLogical lowers short-circuiting && and || to a branch, matching how a
// compiler without a dedicated boolean-SSA lane represents them: the second
// operand's code is only reached when the first didn't already decide the
// outcome.
func (g *Generator) genLogical(op string, b ast.BinaryOp) (ir.TypedValue, error) {
	lhs, err := g.genExpr(b.LHS)
	if err != nil {
		return ir.TypedValue{}, err
	}
	boolT := typetab.Index(typetab.KindBool)
	result := g.fn.NewTemp(boolT, 8, ir.ValueCategory{Kind: ir.CatPRValue})

	rhsLabel, shortLabel, joinLabel := g.newLabel("lr"), g.newLabel("ls"), g.newLabel("lj")
	if op == "&&" {
		g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: lhs, ThenLabel: rhsLabel, ElseLabel: shortLabel})
	} else {
		g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: lhs, ThenLabel: shortLabel, ElseLabel: rhsLabel})
	}

	g.fn.Emit(ir.OpLabel, ir.Label{Name: rhsLabel})
	rhs, err := g.genExpr(b.RHS)
	if err != nil {
		return ir.TypedValue{}, err
	}
	g.storeInto(result, rhs)
	g.fn.Emit(ir.OpJump, ir.Jump{Target: joinLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: shortLabel})
	shortValue := int64(0)
	if op == "||" {
		shortValue = 1
	}
	g.storeInto(result, ir.TypedValue{Type: boolT, Kind: ir.ValueIntLiteral, IntLiteral: shortValue})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: joinLabel})
	return g.typedValue(result, boolT), nil
}

func (g *Generator) genUnaryExpr(id ast.NodeID, u ast.UnaryOp) (ir.TypedValue, error) {
	op := g.Strings.String(u.Op)

	switch op {
	case "&":
		return g.genAddress(u.Operand)

	case "*":
		ptr, err := g.genExpr(u.Operand)
		if err != nil {
			return ir.TypedValue{}, err
		}
		elemT := g.Types.Dereference(ptr.Type)
		result := g.fn.NewTemp(elemT, 64, ir.ValueCategory{Kind: ir.CatLValue})
		g.fn.Emit(ir.OpDereference, ir.Dereference{Pointer: ptr, Result: result})
		return g.typedValue(result, elemT), nil

	case "++", "--":
		one := ir.TypedValue{Type: typetab.Index(typetab.KindInt), Kind: ir.ValueIntLiteral, IntLiteral: 1, IsSigned: true}
		arith := "+"
		if op == "--" {
			arith = "-"
		}
		old, err := g.genExpr(u.Operand)
		if err != nil {
			return ir.TypedValue{}, err
		}
		updated := g.emitBinary(arith, old, one)
		stored, err := g.assignTo(u.Operand, updated)
		if err != nil {
			return ir.TypedValue{}, err
		}
		if u.Postfix {
			return old, nil
		}
		return stored, nil
	}

	operand, err := g.genExpr(u.Operand)
	if err != nil {
		return ir.TypedValue{}, err
	}
	switch op {
	case "-", "~", "!":
		result := g.fn.NewTemp(operand.Type, 64, ir.ValueCategory{Kind: ir.CatPRValue})
		g.fn.Emit(ir.OpUnaryOp, ir.UnaryOp{Op: u.Op, Operand: operand, Result: result})
		return g.typedValue(result, operand.Type), nil
	case "+":
		return operand, nil
	}
	return ir.TypedValue{}, g.genError(id, "codegen: unhandled unary operator %q", op)
}
