package sema

import (
	"fmt"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// ValueKind tags a constexpr Value's active field.
type ValueKind uint8

const (
	ValInt ValueKind = iota
	ValFloat
	ValBool
	ValString
)

// Value is the result of evaluating a constant expression (§4.5): integer,
// floating, boolean, pointer-comparison (represented as ValInt, since a
// compile-time pointer constant is either null or an address sema never
// needs to materialize), and string-handle constants.
type Value struct {
	Kind ValueKind
	Int  int64
	Flt  float64
	Bool bool
	Str  strtab.Handle
	Type typetab.Index
}

// AsInt64 coerces a numeric Value to int64 (true/false -> 1/0), the form
// InstantiationKey.NonTypeArgs and case-label matching both need.
func (v Value) AsInt64() int64 {
	switch v.Kind {
	case ValInt:
		return v.Int
	case ValFloat:
		return int64(v.Flt)
	case ValBool:
		if v.Bool {
			return 1
		}
		return 0
	}
	return 0
}

// Evaluator walks AST expression nodes computing constexpr Values. It needs
// the arena (to dereference NodeIDs), the string table (operator spellings),
// and the type table (sizeof/alignof).
type Evaluator struct {
	Arena   *ast.Arena
	Strings *strtab.Table
	Types   *typetab.Table
}

// Eval evaluates node, returning an error describing the first non-constant
// construct encountered (a dependent name, a function call, or an
// unsupported node kind — §4.5 scopes the evaluator to integer, floating,
// boolean, pointer-comparison and string-handle constants plus sizeof,
// alignof, enumerator values, and the type-trait intrinsics).
func (e *Evaluator) Eval(id ast.NodeID) (Value, error) {
	if id == ast.None {
		return Value{}, fmt.Errorf("constexpr: empty operand")
	}
	n := e.Arena.Get(id)
	switch n.Kind {
	case ast.KindNumericLiteral:
		lit := n.Payload.(ast.NumericLiteral)
		if lit.IsFloat {
			return Value{Kind: ValFloat, Flt: lit.FloatValue, Type: lit.Type}, nil
		}
		return Value{Kind: ValInt, Int: int64(lit.IntValue), Type: lit.Type}, nil

	case ast.KindCharLiteral:
		lit := n.Payload.(ast.CharLiteral)
		var v int64
		if len(lit.Decoded) > 0 {
			v = int64(lit.Decoded[0])
		}
		return Value{Kind: ValInt, Int: v, Type: typetab.Index(typetab.KindChar)}, nil

	case ast.KindStringLiteral:
		return Value{}, fmt.Errorf("constexpr: string literal has no scalar value")

	case ast.KindBinaryOp:
		return e.evalBinary(n.Payload.(ast.BinaryOp))

	case ast.KindUnaryOp:
		return e.evalUnary(n.Payload.(ast.UnaryOp))

	case ast.KindConditional:
		c := n.Payload.(ast.Conditional)
		cond, err := e.Eval(c.Cond)
		if err != nil {
			return Value{}, err
		}
		if truthy(cond) {
			return e.Eval(c.Then)
		}
		return e.Eval(c.Else)

	case ast.KindSizeof:
		s := n.Payload.(ast.Sizeof)
		if s.TypeSpec != ast.None {
			ts := e.Arena.Get(s.TypeSpec).Payload.(ast.TypeSpec)
			return Value{Kind: ValInt, Int: e.sizeOf(ts.Resolved), Type: typetab.Index(typetab.KindULong)}, nil
		}
		return Value{}, fmt.Errorf("constexpr: sizeof(expr) requires type-of-expression resolution")

	case ast.KindAlignof:
		a := n.Payload.(ast.Alignof)
		ts := e.Arena.Get(a.TypeSpec).Payload.(ast.TypeSpec)
		return Value{Kind: ValInt, Int: e.alignOf(ts.Resolved), Type: typetab.Index(typetab.KindULong)}, nil

	case ast.KindTypeTrait:
		tt := n.Payload.(ast.TypeTrait)
		return e.evalTrait(tt)

	case ast.KindCall:
		return e.evalIntrinsicCall(n.Payload.(ast.Call))

	case ast.KindCast:
		c := n.Payload.(ast.Cast)
		v, err := e.Eval(c.Operand)
		if err != nil {
			return Value{}, err
		}
		ts := e.Arena.Get(c.TypeSpec).Payload.(ast.TypeSpec)
		return e.convert(v, ts.Resolved), nil
	}
	return Value{}, fmt.Errorf("constexpr: node kind %d is not a constant expression", n.Kind)
}

func (e *Evaluator) evalBinary(b ast.BinaryOp) (Value, error) {
	lhs, err := e.Eval(b.LHS)
	if err != nil {
		return Value{}, err
	}
	rhs, err := e.Eval(b.RHS)
	if err != nil {
		return Value{}, err
	}
	op := e.Strings.String(b.Op)

	if op == "&&" {
		return boolVal(truthy(lhs) && truthy(rhs)), nil
	}
	if op == "||" {
		return boolVal(truthy(lhs) || truthy(rhs)), nil
	}

	if lhs.Kind == ValFloat || rhs.Kind == ValFloat {
		a, b := toFloat(lhs), toFloat(rhs)
		switch op {
		case "+":
			return Value{Kind: ValFloat, Flt: a + b}, nil
		case "-":
			return Value{Kind: ValFloat, Flt: a - b}, nil
		case "*":
			return Value{Kind: ValFloat, Flt: a * b}, nil
		case "/":
			return Value{Kind: ValFloat, Flt: a / b}, nil
		case "<":
			return boolVal(a < b), nil
		case ">":
			return boolVal(a > b), nil
		case "<=":
			return boolVal(a <= b), nil
		case ">=":
			return boolVal(a >= b), nil
		case "==":
			return boolVal(a == b), nil
		case "!=":
			return boolVal(a != b), nil
		}
		return Value{}, fmt.Errorf("constexpr: operator %q not defined for floating operands", op)
	}

	a, c := lhs.AsInt64(), rhs.AsInt64()
	switch op {
	case "+":
		return intVal(a + c), nil
	case "-":
		return intVal(a - c), nil
	case "*":
		return intVal(a * c), nil
	case "/":
		if c == 0 {
			return Value{}, fmt.Errorf("constexpr: division by zero")
		}
		return intVal(a / c), nil
	case "%":
		if c == 0 {
			return Value{}, fmt.Errorf("constexpr: modulo by zero")
		}
		return intVal(a % c), nil
	case "&":
		return intVal(a & c), nil
	case "|":
		return intVal(a | c), nil
	case "^":
		return intVal(a ^ c), nil
	case "<<":
		return intVal(a << uint(c)), nil
	case ">>":
		return intVal(a >> uint(c)), nil
	case "<":
		return boolVal(a < c), nil
	case ">":
		return boolVal(a > c), nil
	case "<=":
		return boolVal(a <= c), nil
	case ">=":
		return boolVal(a >= c), nil
	case "==":
		return boolVal(a == c), nil
	case "!=":
		return boolVal(a != c), nil
	}
	return Value{}, fmt.Errorf("constexpr: operator %q not supported in constant expressions", op)
}

func (e *Evaluator) evalUnary(u ast.UnaryOp) (Value, error) {
	v, err := e.Eval(u.Operand)
	if err != nil {
		return Value{}, err
	}
	switch e.Strings.String(u.Op) {
	case "-":
		if v.Kind == ValFloat {
			return Value{Kind: ValFloat, Flt: -v.Flt}, nil
		}
		return intVal(-v.AsInt64()), nil
	case "+":
		return v, nil
	case "!":
		return boolVal(!truthy(v)), nil
	case "~":
		return intVal(^v.AsInt64()), nil
	}
	return Value{}, fmt.Errorf("constexpr: unary operator %q not supported", e.Strings.String(u.Op))
}

func (e *Evaluator) evalTrait(tt ast.TypeTrait) (Value, error) {
	types := make([]typetab.Index, 0, len(tt.Types))
	for _, id := range tt.Types {
		ts := e.Arena.Get(id).Payload.(ast.TypeSpec)
		types = append(types, ts.Resolved)
	}
	result, err := EvalTypeTrait(e.Types, e.Strings.String(tt.Name), types)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: ValBool, Bool: result}, nil
}

func (e *Evaluator) convert(v Value, to typetab.Index) Value {
	ti := e.Types.Get(to)
	if ti.Base == typetab.KindFloat || ti.Base == typetab.KindDouble || ti.Base == typetab.KindLongDouble {
		return Value{Kind: ValFloat, Flt: toFloat(v), Type: to}
	}
	if ti.Base == typetab.KindBool {
		return Value{Kind: ValBool, Bool: truthy(v), Type: to}
	}
	return Value{Kind: ValInt, Int: v.AsInt64(), Type: to}
}

func (e *Evaluator) sizeOf(t typetab.Index) int64 {
	info := e.Types.Get(t)
	if info.PointerDepth > 0 {
		return 8
	}
	if info.Base == typetab.KindStruct {
		return e.Types.Struct(info.Struct).Size
	}
	return sizeAlignOf(info, e.Types)
}

func (e *Evaluator) alignOf(t typetab.Index) int64 {
	info := e.Types.Get(t)
	if info.Base == typetab.KindStruct {
		return e.Types.Struct(info.Struct).Align
	}
	_, align := sizeAlignOf2(info, e.Types)
	return align
}

// sizeAlignOf/sizeAlignOf2 reimplement typetab's private sizeAlign for
// exported use from sema: both packages need the primitive-size table
// (typetab for StructInfo.AddMember layout, sema for sizeof/alignof), and
// typetab intentionally keeps it unexported since it is an internal layout
// detail, not public API.
func sizeAlignOf(info typetab.Info, table *typetab.Table) int64 {
	s, _ := sizeAlignOf2(info, table)
	return s
}

func sizeAlignOf2(info typetab.Info, table *typetab.Table) (int64, int64) {
	if info.PointerDepth > 0 || info.Ref != typetab.RefNone {
		return 8, 8
	}
	switch info.Base {
	case typetab.KindVoid:
		return 0, 1
	case typetab.KindBool, typetab.KindChar, typetab.KindSChar, typetab.KindUChar, typetab.KindChar8:
		return 1, 1
	case typetab.KindChar16, typetab.KindShort, typetab.KindUShort, typetab.KindWChar:
		return 2, 2
	case typetab.KindChar32, typetab.KindInt, typetab.KindUInt, typetab.KindFloat, typetab.KindEnum:
		return 4, 4
	case typetab.KindLong, typetab.KindULong, typetab.KindLongLong, typetab.KindULongLong, typetab.KindDouble, typetab.KindNullptr:
		return 8, 8
	case typetab.KindLongDouble:
		return 16, 16
	case typetab.KindStruct:
		si := table.Struct(info.Struct)
		return si.Size, si.Align
	default:
		return 8, 8
	}
}

func truthy(v Value) bool {
	switch v.Kind {
	case ValFloat:
		return v.Flt != 0
	case ValBool:
		return v.Bool
	default:
		return v.Int != 0
	}
}

func toFloat(v Value) float64 {
	if v.Kind == ValFloat {
		return v.Flt
	}
	return float64(v.AsInt64())
}

func intVal(i int64) Value { return Value{Kind: ValInt, Int: i} }
func boolVal(b bool) Value { return Value{Kind: ValBool, Bool: b} }
