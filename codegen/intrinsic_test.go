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

func intrinsicCall(arena *ast.Arena, strings *strtab.Table, name string, args ...ast.NodeID) ast.NodeID {
	callee := arena.Add(ast.KindIdentifierRef, ast.Node{}.Pos, ast.IdentifierRef{Name: strings.Intern(name)})
	return arena.Add(ast.KindCall, ast.Node{}.Pos, ast.Call{Callee: callee, Args: args})
}

func TestGenIntrinsicCallFoldsConstantArgument(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	longT := typetab.Index(typetab.KindLong)

	lit := arena.Add(ast.KindNumericLiteral, ast.Node{}.Pos, ast.NumericLiteral{IntValue: 42, Type: longT})
	neg := arena.Add(ast.KindUnaryOp, ast.Node{}.Pos, ast.UnaryOp{Op: strings.Intern("-"), Operand: lit})
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: intrinsicCall(arena, strings, "__builtin_labs", neg)})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{ret}})
	fn := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("f"), ReturnType: typeSpecOf(arena, longT), Body: body,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{fn}))

	irFn := g.Module.Functions[0]
	require.Len(t, irFn.Instructions, 1, "a folded intrinsic emits nothing but the return")
	retIn := irFn.Instructions[0].Payload.(ir.Return)
	assert.Equal(t, ir.ValueIntLiteral, retIn.Value.Kind)
	assert.Equal(t, int64(42), retIn.Value.IntLiteral)
}

func TestGenIntrinsicCallExpandsRuntimeAbsInline(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	longT := typetab.Index(typetab.KindLong)

	param := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("x"), TypeSpec: typeSpecOf(arena, longT), IsParameter: true,
	})
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{
		Value: intrinsicCall(arena, strings, "__builtin_labs", ident(arena, strings, "x")),
	})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{ret}})
	fn := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("f"), Params: []ast.NodeID{param}, ReturnType: typeSpecOf(arena, longT), Body: body,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{fn}))

	var sawCompare, sawNegate, sawCall bool
	for _, in := range g.Module.Functions[0].Instructions {
		switch in.Op {
		case ir.OpCompare:
			sawCompare = true
		case ir.OpUnaryOp:
			sawNegate = true
		case ir.OpCall:
			sawCall = true
		}
	}
	assert.True(t, sawCompare, "runtime abs compares against zero")
	assert.True(t, sawNegate, "runtime abs negates on the negative branch")
	assert.False(t, sawCall, "an intrinsic never lowers to a call instruction")
}

func TestGenVaArgLoadsThroughCursorAndAdvancesIt(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	intT := typetab.Index(typetab.KindInt)
	charPtrT := types.Pointer(typetab.Index(typetab.KindChar))

	ap := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("ap"), TypeSpec: typeSpecOf(arena, charPtrT), IsParameter: true,
	})
	typeArg := typeSpecOf(arena, intT)
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{
		Value: intrinsicCall(arena, strings, "__builtin_va_arg", ident(arena, strings, "ap"), typeArg),
	})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{ret}})
	fn := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("next"), Params: []ast.NodeID{ap}, ReturnType: typeSpecOf(arena, intT), Body: body,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{fn}))

	var sawLoad, sawAdvance bool
	for _, in := range g.Module.Functions[0].Instructions {
		switch in.Op {
		case ir.OpLoad:
			sawLoad = true
		case ir.OpBinaryOp:
			b := in.Payload.(ir.BinaryOp)
			if b.RHS.Kind == ir.ValueIntLiteral && b.RHS.IntLiteral == 8 {
				sawAdvance = true
			}
		}
	}
	assert.True(t, sawLoad, "va_arg reads through the cursor")
	assert.True(t, sawAdvance, "va_arg advances the cursor one 8-byte slot")
}
