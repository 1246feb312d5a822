package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

func zeroPos() token.Position { return token.Position{} }

func TestRankConversionOrdering(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)

	intT := typetab.Index(typetab.KindInt)
	charT := typetab.Index(typetab.KindChar)
	doubleT := typetab.Index(typetab.KindDouble)

	assert.Equal(t, RankExact, RankConversion(types, intT, intT))
	assert.Equal(t, RankPromotion, RankConversion(types, charT, intT))
	assert.Equal(t, RankStandard, RankConversion(types, intT, doubleT))
}

func TestResolveOverloadPicksBestRank(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)
	doubleT := typetab.Index(typetab.KindDouble)
	charT := typetab.Index(typetab.KindChar)

	candidates := []Candidate{
		{Handle: 1, Sig: typetab.FunctionSig{Params: []typetab.Index{doubleT}}},
		{Handle: 2, Sig: typetab.FunctionSig{Params: []typetab.Index{intT}}},
	}
	res := ResolveOverload(types, candidates, []typetab.Index{charT})
	require.True(t, res.Found)
	require.False(t, res.Ambiguous)
	assert.Equal(t, 2, res.Best.Handle) // char->int is Promotion, beats char->double's Standard
}

func TestResolveOverloadAmbiguous(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)
	uintT := typetab.Index(typetab.KindUInt)

	candidates := []Candidate{
		{Handle: 1, Sig: typetab.FunctionSig{Params: []typetab.Index{intT}}},
		{Handle: 2, Sig: typetab.FunctionSig{Params: []typetab.Index{uintT}}},
	}
	res := ResolveOverload(types, candidates, []typetab.Index{intT}) // exact match to #1... not ambiguous
	require.True(t, res.Found)
	assert.False(t, res.Ambiguous)
	assert.Equal(t, 1, res.Best.Handle)
}

func TestResolveOverloadNoViableCandidate(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)

	structIdx, _ := types.NewStruct(strings.Intern("S"))
	candidates := []Candidate{{Handle: 1, Sig: typetab.FunctionSig{Params: []typetab.Index{structIdx}}}}
	res := ResolveOverload(types, candidates, []typetab.Index{intT})
	assert.False(t, res.Found)
}

func newEvaluator() (*Evaluator, *ast.Arena, *strtab.Table, *typetab.Table) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	return &Evaluator{Arena: arena, Strings: strings, Types: types}, arena, strings, types
}

func TestConstexprEvalArithmetic(t *testing.T) {
	e, arena, strings, _ := newEvaluator()
	lhs := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 40})
	rhs := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 2})
	add := arena.Add(ast.KindBinaryOp, zeroPos(), ast.BinaryOp{Op: strings.Intern("+"), LHS: lhs, RHS: rhs})

	v, err := e.Eval(add)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.AsInt64())
}

func TestConstexprEvalConditional(t *testing.T) {
	e, arena, strings, _ := newEvaluator()
	cond := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 1})
	then := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 10})
	els := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 20})
	node := arena.Add(ast.KindConditional, zeroPos(), ast.Conditional{Cond: cond, Then: then, Else: els})

	v, err := e.Eval(node)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.AsInt64())
	_ = strings
}

func TestConstexprDivisionByZeroErrors(t *testing.T) {
	e, arena, strings, _ := newEvaluator()
	lhs := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 1})
	rhs := arena.Add(ast.KindNumericLiteral, zeroPos(), ast.NumericLiteral{IntValue: 0})
	div := arena.Add(ast.KindBinaryOp, zeroPos(), ast.BinaryOp{Op: strings.Intern("/"), LHS: lhs, RHS: rhs})

	_, err := e.Eval(div)
	assert.Error(t, err)
}

func TestEvalTypeTraitIsSame(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)

	ok, err := EvalTypeTrait(types, "__is_same", []typetab.Index{intT, intT})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalTypeTrait(types, "__is_same", []typetab.Index{intT, typetab.Index(typetab.KindDouble)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalTypeTraitIsBaseOf(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)

	baseIdx, _ := types.NewStruct(strings.Intern("Base"))
	derivedIdx, derivedSI := types.NewStruct(strings.Intern("Derived"))
	types.Struct(derivedSI).AddBase(typetab.BaseClass{Type: baseIdx}, types)

	ok, err := EvalTypeTrait(types, "__is_base_of", []typetab.Index{baseIdx, derivedIdx})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalTypeTrait(types, "__is_base_of", []typetab.Index{derivedIdx, baseIdx})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalTypeTraitUnknownName(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	_, err := EvalTypeTrait(types, "__is_bogus", []typetab.Index{typetab.Void})
	assert.Error(t, err)
}
