package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/typetab"
)

func TestRegisterGlobalSplitsInitializedAndZeroFilled(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	intT := typetab.Index(typetab.KindInt)

	counter := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("counter"), TypeSpec: typeSpecOf(arena, intT), Init: intLit(arena, 5),
	})
	zeroed := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("zeroed"), TypeSpec: typeSpecOf(arena, intT),
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{counter, zeroed}))

	require.Len(t, g.Module.Globals, 2)
	init := g.Module.Globals[0]
	assert.Equal(t, "counter", init.MangledName)
	assert.False(t, init.Zero)
	assert.Equal(t, []byte{5, 0, 0, 0}, init.InitData)
	assert.Equal(t, int64(4), init.Size)

	bss := g.Module.Globals[1]
	assert.Equal(t, "zeroed", bss.MangledName)
	assert.True(t, bss.Zero)
	assert.Empty(t, bss.InitData)
}

func TestGlobalReadsAndWritesLowerToGlobalOps(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	intT := typetab.Index(typetab.KindInt)

	global := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("g_count"), TypeSpec: typeSpecOf(arena, intT), Init: intLit(arena, 1),
	})

	// int main() { g_count = g_count + 1; return g_count; }
	sum := arena.Add(ast.KindBinaryOp, ast.Node{}.Pos, ast.BinaryOp{
		Op: strings.Intern("+"), LHS: ident(arena, strings, "g_count"), RHS: intLit(arena, 1),
	})
	assign := arena.Add(ast.KindBinaryOp, ast.Node{}.Pos, ast.BinaryOp{
		Op: strings.Intern("="), LHS: ident(arena, strings, "g_count"), RHS: sum,
	})
	assignStmt := arena.Add(ast.KindExprStmt, ast.Node{}.Pos, ast.ExprStmt{Expr: assign})
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: ident(arena, strings, "g_count")})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{assignStmt, ret}})
	mainFn := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("main"), ReturnType: typeSpecOf(arena, intT), Body: body,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{global, mainFn}))

	require.Len(t, g.Module.Functions, 1)
	var loads, stores int
	for _, in := range g.Module.Functions[0].Instructions {
		switch in.Op {
		case ir.OpGlobalLoad:
			loads++
			assert.Equal(t, "g_count", strings.String(in.Payload.(ir.GlobalLoad).Name))
		case ir.OpGlobalStore:
			stores++
		}
	}
	assert.Equal(t, 2, loads, "one read for the sum, one for the return")
	assert.Equal(t, 1, stores)
}

func TestGlobalSymbolManglesNamespaceScope(t *testing.T) {
	strings := strtab.New()
	name := strings.Intern("limit")
	assert.Equal(t, "limit", globalSymbol(strings, nil, name))
	assert.Equal(t, "_ZN3cfg5limitE", globalSymbol(strings, []string{"cfg"}, name))
}
