package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
)

func (g *Generator) genCastExpr(id ast.NodeID, c ast.Cast) (ir.TypedValue, error) {
	operand, err := g.genExpr(c.Operand)
	if err != nil {
		return ir.TypedValue{}, err
	}
	to, err := g.resolveSpec(c.TypeSpec)
	if err != nil {
		return ir.TypedValue{}, err
	}
	result := g.fn.NewTemp(to, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpCast, ir.Cast{Kind: ir.CastKind(c.Kind), Operand: operand, To: to, Result: result})
	return g.typedValue(result, to), nil
}
