package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

func TestIntrinsicFuncTableCoversTheClosedSet(t *testing.T) {
	for _, name := range []string{
		"__builtin_labs", "__builtin_llabs", "__builtin_fabs",
		"__builtin_fabsf", "__builtin_va_start", "__builtin_va_arg",
	} {
		assert.True(t, IsIntrinsicFuncName(name), name)
	}
	assert.False(t, IsIntrinsicFuncName("__builtin_expect"))
	assert.False(t, IsIntrinsicFuncName("labs"))
}

func TestIntrinsicMathBuiltinsFoldConstants(t *testing.T) {
	labs, _ := LookupIntrinsicFunc("__builtin_labs")
	v, err := labs.Fold([]Value{{Kind: ValInt, Int: -41}})
	require.NoError(t, err)
	assert.Equal(t, int64(41), v.Int)
	assert.Equal(t, typetab.Index(typetab.KindLong), v.Type)

	fabs, _ := LookupIntrinsicFunc("__builtin_fabs")
	v, err = fabs.Fold([]Value{{Kind: ValFloat, Flt: -2.5}})
	require.NoError(t, err)
	assert.Equal(t, 2.5, v.Flt)

	vaStart, _ := LookupIntrinsicFunc("__builtin_va_start")
	assert.Nil(t, vaStart.Fold, "a va_list has no compile-time value")
}

func TestEvaluatorFoldsIntrinsicCall(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()

	lit := arena.Add(ast.KindNumericLiteral, ast.Node{}.Pos, ast.NumericLiteral{IntValue: 5, Type: typetab.Index(typetab.KindLong)})
	neg := arena.Add(ast.KindUnaryOp, ast.Node{}.Pos, ast.UnaryOp{Op: strings.Intern("-"), Operand: lit})
	callee := arena.Add(ast.KindIdentifierRef, ast.Node{}.Pos, ast.IdentifierRef{Name: strings.Intern("__builtin_labs")})
	call := arena.Add(ast.KindCall, ast.Node{}.Pos, ast.Call{Callee: callee, Args: []ast.NodeID{neg}})

	ev := Evaluator{Arena: arena, Strings: strings, Types: types}
	v, err := ev.Eval(call)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.AsInt64())
}

func TestEvaluatorRejectsNonIntrinsicCall(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()

	callee := arena.Add(ast.KindIdentifierRef, ast.Node{}.Pos, ast.IdentifierRef{Name: strings.Intern("helper")})
	call := arena.Add(ast.KindCall, ast.Node{}.Pos, ast.Call{Callee: callee})

	ev := Evaluator{Arena: arena, Strings: strings, Types: types}
	_, err := ev.Eval(call)
	require.Error(t, err)
}
