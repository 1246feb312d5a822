package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/diag"
	"github.com/oxhq/flashcpp/lexer"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/typetab"
)

func newTestParser(src string) *Parser {
	strings := strtab.New()
	types := typetab.New(strings)
	namespaces := sym.NewNamespaceRegistry(strings)
	templates := sym.NewRegistry()
	arena := ast.NewArena()
	diags := &diag.List{}
	lex := lexer.New([]byte(src), "t.cpp", lexer.LineMap{}, strings)
	return New(lex, strings, types, namespaces, templates, arena, diags)
}

func TestParseFunctionDefinition(t *testing.T) {
	p := newTestParser(`int add(int a, int b) { return a + b; }`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 1)

	fn := p.Arena.Get(decls[0]).Payload.(ast.FuncDecl)
	assert.Equal(t, "add", p.Strings.String(fn.Name))
	assert.Len(t, fn.Params, 2)
	require.NotEqual(t, ast.None, fn.Body)

	body := p.Arena.Get(fn.Body).Payload.(ast.Block)
	require.Len(t, body.Stmts, 1)
	ret := p.Arena.Get(body.Stmts[0]).Payload.(ast.Return)
	require.NotEqual(t, ast.None, ret.Value)
	bin := p.Arena.Get(ret.Value).Payload.(ast.BinaryOp)
	assert.Equal(t, "+", p.Strings.String(bin.Op))
}

func TestParseVarDeclWithInitializer(t *testing.T) {
	p := newTestParser(`int x = 1 + 2 * 3;`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 1)

	vd := p.Arena.Get(decls[0]).Payload.(ast.VarDecl)
	assert.Equal(t, "x", p.Strings.String(vd.Name))
	require.NotEqual(t, ast.None, vd.Init)

	add := p.Arena.Get(vd.Init).Payload.(ast.BinaryOp)
	assert.Equal(t, "+", p.Strings.String(add.Op))
	mul := p.Arena.Get(add.RHS).Payload.(ast.BinaryOp)
	assert.Equal(t, "*", p.Strings.String(mul.Op))
}

func TestOperatorPrecedenceAndAssociativity(t *testing.T) {
	p := newTestParser(`int x = a = b + c * d;`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	vd := p.Arena.Get(decls[0]).Payload.(ast.VarDecl)
	assign := p.Arena.Get(vd.Init).Payload.(ast.BinaryOp)
	assert.Equal(t, "=", p.Strings.String(assign.Op))
}

func TestParseClassWithBasesAndMembers(t *testing.T) {
	p := newTestParser(`
		class Base {};
		class Derived : public Base {
		public:
			Derived(int x);
			~Derived();
			int value;
		private:
			int hidden;
		};
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 2)

	derived := p.Arena.Get(decls[1]).Payload.(ast.StructDecl)
	assert.Equal(t, "Derived", p.Strings.String(derived.Name))
	require.Len(t, derived.Bases, 1)
	require.Len(t, derived.Members, 4)

	ctor := p.Arena.Get(derived.Members[0]).Payload.(ast.FuncDecl)
	assert.True(t, ctor.IsConstructor)
	dtor := p.Arena.Get(derived.Members[1]).Payload.(ast.FuncDecl)
	assert.True(t, dtor.IsDestructor)
}

func TestParseClassTemplate(t *testing.T) {
	p := newTestParser(`
		template<class T>
		class Box {
		public:
			T value;
		};
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 1)

	td := p.Arena.Get(decls[0]).Payload.(ast.TemplateDecl)
	require.Len(t, td.Params, 1)
	sd := p.Arena.Get(td.Pattern).Payload.(ast.StructDecl)
	assert.Equal(t, "Box", p.Strings.String(sd.Name))

	handles := p.Templates.Lookup(p.Strings.Intern("Box"))
	require.Len(t, handles, 1)
}

func TestParseFunctionTemplateDefersBody(t *testing.T) {
	p := newTestParser(`
		template<class T>
		T max_(T a, T b) { return a > b ? a : b; }
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 1)

	td := p.Arena.Get(decls[0]).Payload.(ast.TemplateDecl)
	fn := p.Arena.Get(td.Pattern).Payload.(ast.FuncDecl)
	assert.Equal(t, ast.None, fn.Body)
	assert.Greater(t, fn.DeferredBodyEnd, fn.DeferredBodyStart)
}

func TestParseTemplateArgListSplitsNestedShr(t *testing.T) {
	p := newTestParser(`Box<Box<int>> nested;`)
	p.declareTypeName("Box")
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 1)

	vd := p.Arena.Get(decls[0]).Payload.(ast.VarDecl)
	assert.Equal(t, "nested", p.Strings.String(vd.Name))
}

func TestParseNamespaceAndUsing(t *testing.T) {
	p := newTestParser(`
		namespace app {
			int counter;
		}
		using namespace app;
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 2)

	ns := p.Arena.Get(decls[0]).Payload.(ast.NamespaceDecl)
	assert.Equal(t, "app", p.Strings.String(ns.Name))
	require.Len(t, ns.Members, 1)

	using := p.Arena.Get(decls[1]).Payload.(ast.UsingAlias)
	assert.True(t, using.IsDirective)
}

func TestParseIfForWhileControlFlow(t *testing.T) {
	p := newTestParser(`
		int f() {
			int total = 0;
			for (int i = 0; i < 10; i = i + 1) {
				if (i == 5) {
					break;
				} else {
					total = total + i;
				}
			}
			while (total > 0) {
				total = total - 1;
			}
			return total;
		}
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	require.Len(t, decls, 1)

	fn := p.Arena.Get(decls[0]).Payload.(ast.FuncDecl)
	body := p.Arena.Get(fn.Body).Payload.(ast.Block)
	require.Len(t, body.Stmts, 4)
	_, ok := p.Arena.Get(body.Stmts[1]).Payload.(ast.For)
	assert.True(t, ok)
	_, ok = p.Arena.Get(body.Stmts[2]).Payload.(ast.While)
	assert.True(t, ok)
}

func TestParseTryCatch(t *testing.T) {
	p := newTestParser(`
		void f() {
			try {
				throw 1;
			} catch (int e) {
				return;
			} catch (...) {
				return;
			}
		}
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))

	fn := p.Arena.Get(decls[0]).Payload.(ast.FuncDecl)
	body := p.Arena.Get(fn.Body).Payload.(ast.Block)
	tryStmt := p.Arena.Get(body.Stmts[0]).Payload.(ast.Try)
	require.Len(t, tryStmt.Catches, 2)
	require.NotEqual(t, ast.None, tryStmt.Catches[0].Decl)
	assert.Equal(t, ast.None, tryStmt.Catches[1].Decl)
}

func TestScopeStackReturnsToGlobalDepth(t *testing.T) {
	p := newTestParser(`
		namespace a {
			namespace b {
				class C { void m() { int x = 1; } };
			}
		}
	`)
	p.ParseTranslationUnit(func(ast.NodeID) {})
	require.False(t, p.Diags.HasErrors(), diagsString(p.Diags))
	assert.Equal(t, 1, p.Scopes.Depth())
}

func TestParseErrorRecoversAtNextDeclaration(t *testing.T) {
	p := newTestParser(`
		int a = ;
		int b = 2;
	`)
	var decls []ast.NodeID
	p.ParseTranslationUnit(func(n ast.NodeID) { decls = append(decls, n) })
	require.True(t, p.Diags.HasErrors())
	require.Len(t, decls, 2)
	vb := p.Arena.Get(decls[1]).Payload.(ast.VarDecl)
	assert.Equal(t, "b", p.Strings.String(vb.Name))
}

func diagsString(l *diag.List) string {
	s := ""
	for _, d := range l.Items() {
		s += d.Error() + "\n"
	}
	return s
}
