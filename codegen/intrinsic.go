package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/sema"
	"github.com/oxhq/flashcpp/typetab"
)

// genIntrinsicCall lowers a call to one of the pre-populated
// compiler-intrinsic functions (§3.4, §6.3). The math builtins fold to a
// literal when every argument is constant — the same path sizeof and the
// type traits take — and otherwise expand inline to a compare-and-negate
// sequence; no call instruction is ever emitted for an intrinsic.
func (g *Generator) genIntrinsicCall(id ast.NodeID, fn sema.IntrinsicFunc, argNodes []ast.NodeID) (ir.TypedValue, error) {
	switch fn.Name {
	case "__builtin_va_start":
		return g.genVaStart(id, argNodes)
	case "__builtin_va_arg":
		return g.genVaArg(id, argNodes)
	}

	if len(argNodes) != 1 {
		return ir.TypedValue{}, g.genError(id, "codegen: %s expects 1 argument", fn.Name)
	}

	if fn.Fold != nil {
		ev := sema.Evaluator{Arena: g.Arena, Strings: g.Strings, Types: g.Types}
		if v, err := ev.Eval(argNodes[0]); err == nil {
			folded, ferr := fn.Fold([]sema.Value{v})
			if ferr == nil {
				if folded.Kind == sema.ValFloat {
					return ir.TypedValue{Type: fn.Return, Kind: ir.ValueFloatLiteral, FloatLiteral: folded.Flt, IsSigned: true}, nil
				}
				return ir.TypedValue{Type: fn.Return, Kind: ir.ValueIntLiteral, IntLiteral: folded.AsInt64(), IsSigned: true}, nil
			}
		}
	}

	operand, err := g.genExpr(argNodes[0])
	if err != nil {
		return ir.TypedValue{}, err
	}
	return g.emitAbs(operand, fn.Return), nil
}

// emitAbs expands |v| as `v < 0 ? -v : v`, the branch diamond genConditional
// already lowers, over either integer or floating operands.
func (g *Generator) emitAbs(v ir.TypedValue, resultT typetab.Index) ir.TypedValue {
	zero := ir.TypedValue{Type: resultT, Kind: ir.ValueIntLiteral, IsSigned: true}
	if g.isFloatType(resultT) {
		zero = ir.TypedValue{Type: resultT, Kind: ir.ValueFloatLiteral, IsSigned: true}
	}

	boolT := typetab.Index(typetab.KindBool)
	isNeg := g.fn.NewTemp(boolT, 8, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpCompare, ir.Compare{Op: g.Strings.Intern("<"), LHS: v, RHS: zero, Result: isNeg})

	result := g.fn.NewTemp(resultT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	negLabel, joinLabel := g.newLabel("an"), g.newLabel("aj")
	posLabel := g.newLabel("ap")
	g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: g.typedValue(isNeg, boolT), ThenLabel: negLabel, ElseLabel: posLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: negLabel})
	negated := g.fn.NewTemp(resultT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpUnaryOp, ir.UnaryOp{Op: g.Strings.Intern("-"), Operand: v, Result: negated})
	g.storeInto(result, g.typedValue(negated, resultT))
	g.fn.Emit(ir.OpJump, ir.Jump{Target: joinLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: posLabel})
	g.storeInto(result, v)
	g.fn.Emit(ir.OpLabel, ir.Label{Name: joinLabel})
	return g.typedValue(result, resultT)
}

// genVaStart points the va_list cursor at the anchor parameter's home slot.
// Only the stack-area walk of the System V va_list is modeled: arguments
// reach va_arg through consecutive 8-byte slots starting at the last named
// parameter, which holds for the spilled-parameter layout lower's frame
// assigns (every parameter's home slot is adjacent by TempVar id).
func (g *Generator) genVaStart(id ast.NodeID, argNodes []ast.NodeID) (ir.TypedValue, error) {
	if len(argNodes) != 2 {
		return ir.TypedValue{}, g.genError(id, "codegen: __builtin_va_start expects (va_list, last-parameter)")
	}
	anchor, err := g.genAddress(argNodes[1])
	if err != nil {
		return ir.TypedValue{}, err
	}
	if _, err := g.assignTo(argNodes[0], anchor); err != nil {
		return ir.TypedValue{}, err
	}
	return ir.TypedValue{Type: typetab.Void}, nil
}

// genVaArg reads the value the va_list cursor points at, then advances the
// cursor one 8-byte slot: `*(T*)ap` followed by `ap += 8`.
func (g *Generator) genVaArg(id ast.NodeID, argNodes []ast.NodeID) (ir.TypedValue, error) {
	if len(argNodes) != 2 {
		return ir.TypedValue{}, g.genError(id, "codegen: __builtin_va_arg expects (va_list, type)")
	}
	if _, ok := g.Arena.Get(argNodes[1]).Payload.(ast.TypeSpec); !ok {
		return ir.TypedValue{}, g.genError(argNodes[1], "codegen: __builtin_va_arg's second argument must be a type")
	}
	elemT, err := g.resolveSpec(argNodes[1])
	if err != nil {
		return ir.TypedValue{}, err
	}

	cursor, err := g.genExpr(argNodes[0])
	if err != nil {
		return ir.TypedValue{}, err
	}
	result := g.fn.NewTemp(elemT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.fn.Emit(ir.OpLoad, ir.Load{Address: cursor, Result: result})

	step := ir.TypedValue{Type: typetab.Index(typetab.KindLong), Kind: ir.ValueIntLiteral, IntLiteral: 8, IsSigned: true}
	advanced := g.emitBinary("+", cursor, step)
	if _, err := g.assignTo(argNodes[0], advanced); err != nil {
		return ir.TypedValue{}, err
	}
	return g.typedValue(result, elemT), nil
}
