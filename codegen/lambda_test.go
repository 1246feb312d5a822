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

func autoSpec(arena *ast.Arena, strings *strtab.Table) ast.NodeID {
	return arena.Add(ast.KindTypeSpec, ast.Node{}.Pos, ast.TypeSpec{
		Dependent: true, DependentName: strings.Intern("auto"),
	})
}

func intLit(arena *ast.Arena, v uint64) ast.NodeID {
	return arena.Add(ast.KindNumericLiteral, ast.Node{}.Pos, ast.NumericLiteral{IntValue: v, Type: typetab.Index(typetab.KindInt)})
}

// lambdaMain builds `int main() { int x = 1; auto f = [x](int y){ return x + y; }; return f(2); }`.
func lambdaMain(arena *ast.Arena, strings *strtab.Table) ast.NodeID {
	intT := typetab.Index(typetab.KindInt)

	declX := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("x"), TypeSpec: typeSpecOf(arena, intT), Init: intLit(arena, 1),
	})
	declXStmt := arena.Add(ast.KindDeclStmt, ast.Node{}.Pos, ast.DeclStmt{Decls: []ast.NodeID{declX}})

	paramY := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("y"), TypeSpec: typeSpecOf(arena, intT), IsParameter: true,
	})
	sum := arena.Add(ast.KindBinaryOp, ast.Node{}.Pos, ast.BinaryOp{
		Op: strings.Intern("+"), LHS: ident(arena, strings, "x"), RHS: ident(arena, strings, "y"),
	})
	lamRet := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: sum})
	lamBody := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{lamRet}})
	lam := arena.Add(ast.KindLambda, ast.Node{}.Pos, ast.Lambda{
		Captures: []ast.LambdaCapture{{Kind: ast.CaptureByValue, Name: strings.Intern("x")}},
		Params:   []ast.NodeID{paramY},
		Body:     lamBody,
	})
	declF := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("f"), TypeSpec: autoSpec(arena, strings), Init: lam,
	})
	declFStmt := arena.Add(ast.KindDeclStmt, ast.Node{}.Pos, ast.DeclStmt{Decls: []ast.NodeID{declF}})

	call := arena.Add(ast.KindCall, ast.Node{}.Pos, ast.Call{
		Callee: ident(arena, strings, "f"), Args: []ast.NodeID{intLit(arena, 2)},
	})
	retMain := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: call})
	mainBody := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{declXStmt, declFStmt, retMain}})
	return arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("main"), ReturnType: typeSpecOf(arena, intT), Body: mainBody,
	})
}

func TestGenLambdaSynthesizesClosureAndOperatorBody(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	fn := lambdaMain(arena, strings)

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{fn}))

	require.Len(t, g.Module.Functions, 2, "main plus the closure's operator()")
	mainFn, opFn := g.Module.Functions[0], g.Module.Functions[1]

	// The closure type exists, carries the captured member, and is frozen.
	closureT, ok := types.LookupStruct(strings.Intern("__lambda_1"))
	require.True(t, ok)
	si := types.Struct(types.Get(closureT).Struct)
	require.Len(t, si.Members, 1)
	assert.Equal(t, "x", strings.String(si.Members[0].Name))
	assert.True(t, si.Frozen())

	// main allocates the closure, stores the capture, and calls operator()
	// with the closure object as the hidden first argument.
	var sawAlloc, sawCaptureStore, sawCall bool
	for _, in := range mainFn.Instructions {
		switch in.Op {
		case ir.OpStackAlloc:
			if in.Payload.(ir.StackAlloc).Type == closureT {
				sawAlloc = true
			}
		case ir.OpMemberStore:
			sawCaptureStore = true
		case ir.OpCall:
			c := in.Payload.(ir.Call)
			if c.Callee == opFn.MangledName {
				sawCall = true
				assert.Len(t, c.Args, 2, "closure object plus the declared argument")
			}
		}
	}
	assert.True(t, sawAlloc)
	assert.True(t, sawCaptureStore)
	assert.True(t, sawCall)

	// operator() rebinds the capture through the closure parameter.
	require.NotEmpty(t, opFn.Params)
	assert.True(t, opFn.Params[0].IsThis)
	var sawMemberLoad bool
	for _, in := range opFn.Instructions {
		if in.Op == ir.OpMemberLoad {
			sawMemberLoad = true
		}
	}
	assert.True(t, sawMemberLoad, "by-value capture must load through the closure member")
}

func TestGenLambdaStarThisCapturesCopyAndRebindsThis(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	intT := typetab.Index(typetab.KindInt)

	// struct W { int n; int get() { auto f = [*this]() { return this->n; }; return f(); } };
	ownerT, sidx := types.NewStruct(strings.Intern("W"))
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("n"), Type: intT}, types)
	types.Struct(sidx).Freeze()

	memberN := arena.Add(ast.KindMemberAccess, ast.Node{}.Pos, ast.MemberAccess{
		Base: ident(arena, strings, "this"), Member: strings.Intern("n"), Arrow: true,
	})
	lamRet := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: memberN})
	lamBody := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{lamRet}})
	lam := arena.Add(ast.KindLambda, ast.Node{}.Pos, ast.Lambda{
		Captures: []ast.LambdaCapture{{Kind: ast.CaptureStarThis}},
		Body:     lamBody,
	})
	declF := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{
		Name: strings.Intern("f"), TypeSpec: autoSpec(arena, strings), Init: lam,
	})
	declFStmt := arena.Add(ast.KindDeclStmt, ast.Node{}.Pos, ast.DeclStmt{Decls: []ast.NodeID{declF}})
	call := arena.Add(ast.KindCall, ast.Node{}.Pos, ast.Call{Callee: ident(arena, strings, "f")})
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: call})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{declFStmt, ret}})

	method := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("get"), ReturnType: typeSpecOf(arena, intT), Body: body,
	})
	structDecl := arena.Add(ast.KindStructDecl, ast.Node{}.Pos, ast.StructDecl{
		Name: strings.Intern("W"), Members: []ast.NodeID{method}, StructType: ownerT,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{structDecl}))

	require.Len(t, g.Module.Functions, 2)

	// The closure type holds one hidden member named __copy_this of W's type.
	closureT, ok := types.LookupStruct(strings.Intern("__lambda_1"))
	require.True(t, ok)
	si := types.Struct(types.Get(closureT).Struct)
	require.Len(t, si.Members, 1)
	assert.Equal(t, "__copy_this", strings.String(si.Members[0].Name))
	memberInfo := types.Get(si.Members[0].Type)
	assert.Equal(t, typetab.KindStruct, memberInfo.Base)
	assert.Equal(t, types.Get(ownerT).Struct, memberInfo.Struct, "the copy member must be W itself, not a pointer to it")
	assert.Equal(t, 0, memberInfo.PointerDepth)

	// The enclosing method copies *this into the member, not a pointer.
	var sawCopy bool
	for _, in := range g.Module.Functions[0].Instructions {
		if in.Op == ir.OpAggregateCopy {
			sawCopy = true
		}
	}
	assert.True(t, sawCopy, "[*this] must copy the object into the closure")

	// The operator() body resolves this->n through the copy: a MemberLoad
	// whose base chain started at the __copy_this member, never the
	// enclosing frame's this pointer.
	var sawLoadN bool
	for _, in := range g.Module.Functions[1].Instructions {
		if in.Op == ir.OpMemberLoad && in.Payload.(ir.MemberLoad).MemberType == intT {
			sawLoadN = true
		}
	}
	assert.True(t, sawLoadN)
}
