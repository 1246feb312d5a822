package sema

import (
	"fmt"
	"math"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/typetab"
)

// IntrinsicFunc is one entry of the pre-populated compiler-intrinsic
// function table every translation unit starts with (§3.4): the builtin's
// spelling, its signature, and — for the math builtins — a folder the
// constexpr evaluator applies when every argument is itself a constant.
// The va_* entries have no Fold: a va_list has no compile-time value.
type IntrinsicFunc struct {
	Name   string
	Return typetab.Index
	Params []typetab.Index
	Fold   func(args []Value) (Value, error)
}

func absFoldInt(ret typetab.Index) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("constexpr: intrinsic expects 1 argument")
		}
		v := args[0].AsInt64()
		if v < 0 {
			v = -v
		}
		return Value{Kind: ValInt, Int: v, Type: ret}, nil
	}
}

func absFoldFloat(ret typetab.Index) func([]Value) (Value, error) {
	return func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("constexpr: intrinsic expects 1 argument")
		}
		f := args[0].Flt
		if args[0].Kind == ValInt {
			f = float64(args[0].Int)
		}
		return Value{Kind: ValFloat, Flt: math.Abs(f), Type: ret}, nil
	}
}

// intrinsicFuncs is the closed set of math/variadic builtins (§6.3), keyed
// by spelling. The table is package-level state, alive before any
// declaration is parsed, matching the type table's pre-populated primitives.
var intrinsicFuncs = map[string]IntrinsicFunc{
	"__builtin_labs": {
		Name:   "__builtin_labs",
		Return: typetab.Index(typetab.KindLong),
		Params: []typetab.Index{typetab.Index(typetab.KindLong)},
		Fold:   absFoldInt(typetab.Index(typetab.KindLong)),
	},
	"__builtin_llabs": {
		Name:   "__builtin_llabs",
		Return: typetab.Index(typetab.KindLongLong),
		Params: []typetab.Index{typetab.Index(typetab.KindLongLong)},
		Fold:   absFoldInt(typetab.Index(typetab.KindLongLong)),
	},
	"__builtin_fabs": {
		Name:   "__builtin_fabs",
		Return: typetab.Index(typetab.KindDouble),
		Params: []typetab.Index{typetab.Index(typetab.KindDouble)},
		Fold:   absFoldFloat(typetab.Index(typetab.KindDouble)),
	},
	"__builtin_fabsf": {
		Name:   "__builtin_fabsf",
		Return: typetab.Index(typetab.KindFloat),
		Params: []typetab.Index{typetab.Index(typetab.KindFloat)},
		Fold:   absFoldFloat(typetab.Index(typetab.KindFloat)),
	},
	"__builtin_va_start": {
		Name:   "__builtin_va_start",
		Return: typetab.Void,
	},
	"__builtin_va_arg": {
		Name: "__builtin_va_arg",
		// Return is the type named by the call's second argument; codegen
		// resolves it per call site.
	},
}

// evalIntrinsicCall folds a call to a math builtin when the callee names an
// intrinsic-table entry with a folder and every argument is itself constant
// (§6.3: "Each is a constexpr expression"). Any other call stays
// non-constant, the same answer the evaluator gives every user function.
func (e *Evaluator) evalIntrinsicCall(c ast.Call) (Value, error) {
	callee := e.Arena.Get(c.Callee)
	name := ""
	switch p := callee.Payload.(type) {
	case ast.IdentifierRef:
		name = e.Strings.String(p.Name)
	case ast.QualifiedId:
		if p.Left == ast.None {
			name = e.Strings.String(p.Segment)
		}
	}
	fn, ok := LookupIntrinsicFunc(name)
	if !ok || fn.Fold == nil {
		return Value{}, fmt.Errorf("constexpr: call to %q is not a constant expression", name)
	}
	args := make([]Value, len(c.Args))
	for i, a := range c.Args {
		v, err := e.Eval(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn.Fold(args)
}

// IsIntrinsicFuncName reports whether name is one of the closed-set
// math/variadic builtins (§6.3).
func IsIntrinsicFuncName(name string) bool {
	_, ok := intrinsicFuncs[name]
	return ok
}

// LookupIntrinsicFunc returns the table entry for name.
func LookupIntrinsicFunc(name string) (IntrinsicFunc, bool) {
	f, ok := intrinsicFuncs[name]
	return f, ok
}
