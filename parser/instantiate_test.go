package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/typetab"
)

func TestInstantiateFunctionTemplateSubstitutesParameterTypes(t *testing.T) {
	p := newTestParser(`
		template<class T>
		T max_(T a, T b) { return a > b ? a : b; }
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	intT := typetab.Index(typetab.KindInt)
	node, err := p.InstantiateFunctionTemplate(p.Strings.Intern("max_"), []typetab.Index{intT, intT})
	require.NoError(t, err)
	require.NotEqual(t, ast.None, node)

	fn := p.Arena.Get(node).Payload.(ast.FuncDecl)
	assert.Equal(t, "max_", p.Strings.String(fn.Name))
	require.Len(t, fn.Params, 2)
	for _, prm := range fn.Params {
		pd := p.Arena.Get(prm).Payload.(ast.VarDecl)
		ts := p.Arena.Get(pd.TypeSpec).Payload.(ast.TypeSpec)
		assert.Equal(t, intT, ts.Resolved)
		assert.False(t, ts.Dependent)
	}
	rts := p.Arena.Get(fn.ReturnType).Payload.(ast.TypeSpec)
	assert.Equal(t, intT, rts.Resolved)
	require.NotEqual(t, ast.None, fn.Body)

	body := p.Arena.Get(fn.Body).Payload.(ast.Block)
	require.Len(t, body.Stmts, 1)
	assert.Equal(t, ast.KindReturn, p.Arena.Get(body.Stmts[0]).Kind)
}

func TestInstantiateFunctionTemplateCachesByArgumentTypes(t *testing.T) {
	p := newTestParser(`
		template<class T>
		T twice(T v) { return v + v; }
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	intT := typetab.Index(typetab.KindInt)
	dblT := typetab.Index(typetab.KindDouble)
	name := p.Strings.Intern("twice")

	first, err := p.InstantiateFunctionTemplate(name, []typetab.Index{intT})
	require.NoError(t, err)
	again, err := p.InstantiateFunctionTemplate(name, []typetab.Index{intT})
	require.NoError(t, err)
	assert.Equal(t, first, again, "same key must return the same node (§ cache soundness)")

	other, err := p.InstantiateFunctionTemplate(name, []typetab.Index{dblT})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestInstantiateVariadicTemplateExpandsPack(t *testing.T) {
	p := newTestParser(`
		template<class T, class... Args>
		int count_(T first, Args... rest) { return 1 + sizeof...(rest); }
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	intT := typetab.Index(typetab.KindInt)
	node, err := p.InstantiateFunctionTemplate(p.Strings.Intern("count_"), []typetab.Index{intT, intT, intT})
	require.NoError(t, err)

	fn := p.Arena.Get(node).Payload.(ast.FuncDecl)
	require.Len(t, fn.Params, 3, "one fixed parameter plus two expanded pack elements")
	require.Len(t, fn.Packs, 1)
	pb := fn.Packs[0]
	assert.Equal(t, "rest", p.Strings.String(pb.Name))
	require.Len(t, pb.Elements, 2)
	assert.Equal(t, []typetab.Index{intT, intT}, pb.Types)
}

func TestInstantiateFunctionTemplateRejectsConflictingDeduction(t *testing.T) {
	p := newTestParser(`
		template<class T>
		T pick(T a, T b) { return a; }
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	intT := typetab.Index(typetab.KindInt)
	dblT := typetab.Index(typetab.KindDouble)
	_, err := p.InstantiateFunctionTemplate(p.Strings.Intern("pick"), []typetab.Index{intT, dblT})
	require.Error(t, err)
}

func TestInstantiateUnknownTemplateNameFails(t *testing.T) {
	p := newTestParser(`int x;`)
	p.ParseTranslationUnit(func(ast.NodeID) {})

	_, err := p.InstantiateFunctionTemplate(p.Strings.Intern("missing"), nil)
	require.Error(t, err)
}

func TestInstantiateClassTemplateSubstitutesMemberLayout(t *testing.T) {
	p := newTestParser(`
		template<class T>
		struct Box {
			T value;
			T get() { return value; }
		};
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	intT := typetab.Index(typetab.KindInt)
	tidx, node, err := p.InstantiateClassTemplate(p.Strings.Intern("Box"), []typetab.Index{intT})
	require.NoError(t, err)
	require.NotEqual(t, ast.None, node)

	sd := p.Arena.Get(node).Payload.(ast.StructDecl)
	assert.Equal(t, "Box<int>", p.Strings.String(sd.Name))
	assert.Equal(t, tidx, sd.StructType)

	si := p.Types.Struct(p.Types.Get(tidx).Struct)
	assert.True(t, si.Frozen())
	assert.Equal(t, "Box<int>", p.Strings.String(si.Name))
	require.Len(t, si.Members, 1)
	assert.Equal(t, "value", p.Strings.String(si.Members[0].Name))
	assert.Equal(t, intT, si.Members[0].Type)
	assert.Equal(t, int64(4), si.Size)

	// The member function re-parsed concretely: resolved return type, body
	// present rather than deferred.
	var foundGet bool
	for _, m := range sd.Members {
		fd, ok := p.Arena.Get(m).Payload.(ast.FuncDecl)
		if !ok || p.Strings.String(fd.Name) != "get" {
			continue
		}
		foundGet = true
		require.NotEqual(t, ast.None, fd.Body)
		rts := p.Arena.Get(fd.ReturnType).Payload.(ast.TypeSpec)
		assert.Equal(t, intT, rts.Resolved)
	}
	assert.True(t, foundGet)
}

func TestInstantiateClassTemplateCachesTypeIndexPerKey(t *testing.T) {
	p := newTestParser(`
		template<class T>
		struct Pair { T first; T second; };
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	intT := typetab.Index(typetab.KindInt)
	dblT := typetab.Index(typetab.KindDouble)
	name := p.Strings.Intern("Pair")

	first, _, err := p.InstantiateClassTemplate(name, []typetab.Index{intT})
	require.NoError(t, err)
	again, _, err := p.InstantiateClassTemplate(name, []typetab.Index{intT})
	require.NoError(t, err)
	assert.Equal(t, first, again, "same key must return the same TypeIndex (§ cache soundness)")

	other, _, err := p.InstantiateClassTemplate(name, []typetab.Index{dblT})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Equal(t, int64(16), p.Types.Struct(p.Types.Get(other).Struct).Size, "two doubles")
}

func TestInstantiateClassTemplateConsumesDefaultArgument(t *testing.T) {
	p := newTestParser(`
		template<class T = int>
		struct Cell { T slot; };
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	tidx, _, err := p.InstantiateClassTemplate(p.Strings.Intern("Cell"), nil)
	require.NoError(t, err)
	si := p.Types.Struct(p.Types.Get(tidx).Struct)
	require.Len(t, si.Members, 1)
	assert.Equal(t, typetab.Index(typetab.KindInt), si.Members[0].Type)
}

func TestInstantiateClassTemplateRejectsTooManyArguments(t *testing.T) {
	p := newTestParser(`
		template<class T>
		struct One { T x; };
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})

	intT := typetab.Index(typetab.KindInt)
	_, _, err := p.InstantiateClassTemplate(p.Strings.Intern("One"), []typetab.Index{intT, intT})
	require.Error(t, err)
}

func TestInstantiationLeavesLexerWhereItWas(t *testing.T) {
	p := newTestParser(`
		template<class T>
		T ident(T v) { return v; }
		int tail() { return 7; }
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 2)

	before := p.Lex.SavePosition()
	_, err := p.InstantiateFunctionTemplate(p.Strings.Intern("ident"), []typetab.Index{typetab.Index(typetab.KindInt)})
	require.NoError(t, err)
	assert.Equal(t, before, p.Lex.SavePosition())
}
