package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/mangle"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/typetab"
)

func newGenerator(strings *strtab.Table, types *typetab.Table) *Generator {
	ns := sym.NewNamespaceRegistry(strings)
	return New(ast.NewArena(), strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
}

// typeSpecOf adds a resolved TypeSpec node naming t.
func typeSpecOf(arena *ast.Arena, t typetab.Index) ast.NodeID {
	return arena.Add(ast.KindTypeSpec, ast.Node{}.Pos, ast.TypeSpec{Resolved: t})
}

func ident(arena *ast.Arena, strings *strtab.Table, name string) ast.NodeID {
	return arena.Add(ast.KindIdentifierRef, ast.Node{}.Pos, ast.IdentifierRef{Name: strings.Intern(name)})
}

func TestGenerateFunctionReservesParamTempsBeforeBody(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	intT := typetab.Index(typetab.KindInt)
	arena := ast.NewArena()

	paramA := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{Name: strings.Intern("a"), TypeSpec: typeSpecOf(arena, intT), IsParameter: true})
	paramB := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{Name: strings.Intern("b"), TypeSpec: typeSpecOf(arena, intT), IsParameter: true})

	lhs := ident(arena, strings, "a")
	rhs := ident(arena, strings, "b")
	sum := arena.Add(ast.KindBinaryOp, ast.Node{}.Pos, ast.BinaryOp{Op: strings.Intern("+"), LHS: lhs, RHS: rhs})
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: sum})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{ret}})

	fn := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name:       strings.Intern("add"),
		Params:     []ast.NodeID{paramA, paramB},
		ReturnType: typeSpecOf(arena, intT),
		Body:       body,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{fn}))

	require.Len(t, g.Module.Functions, 1)
	irFn := g.Module.Functions[0]
	require.Len(t, irFn.Params, 2)
	require.GreaterOrEqual(t, len(irFn.Temps), 2)
	assert.Equal(t, 0, irFn.Temps[0].ID)
	assert.Equal(t, 1, irFn.Temps[1].ID)

	var sawBinary, sawReturn bool
	for _, in := range irFn.Instructions {
		switch in.Op {
		case ir.OpBinaryOp:
			sawBinary = true
		case ir.OpReturn:
			sawReturn = true
			assert.True(t, sawBinary, "return must follow the sum it returns")
		}
	}
	assert.True(t, sawBinary)
	assert.True(t, sawReturn)

	wantName := g.Itanium.Encode(mangle.FunctionName{Name: "add", Params: []typetab.Index{intT, intT}})
	assert.Equal(t, wantName, irFn.MangledName)
}

func TestGenerateFunctionWithHiddenReturnParamStoresIntoSlotZero(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()

	// A struct bigger than 16 bytes classifies as ClassMemory and takes the
	// hidden-return-pointer path.
	structT, sidx := types.NewStruct(strings.Intern("Big"))
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("a"), Type: typetab.Index(typetab.KindLong)}, types)
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("b"), Type: typetab.Index(typetab.KindLong)}, types)
	types.Struct(sidx).AddMember(typetab.Member{Name: strings.Intern("c"), Type: typetab.Index(typetab.KindLong)}, types)

	decl := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{Name: strings.Intern("v"), TypeSpec: typeSpecOf(arena, structT)})
	declStmt := arena.Add(ast.KindDeclStmt, ast.Node{}.Pos, ast.DeclStmt{Decls: []ast.NodeID{decl}})
	ret := arena.Add(ast.KindReturn, ast.Node{}.Pos, ast.Return{Value: ident(arena, strings, "v")})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{declStmt, ret}})

	fn := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name:       strings.Intern("make"),
		ReturnType: typeSpecOf(arena, structT),
		Body:       body,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	require.NoError(t, g.Generate([]ast.NodeID{fn}))

	require.Len(t, g.Module.Functions, 1)
	irFn := g.Module.Functions[0]
	require.True(t, irFn.HasHiddenReturnParam)
	require.NotEmpty(t, irFn.Params)
	assert.True(t, irFn.Params[0].Type != typetab.Void)

	var sawCopyIntoSlot0, sawVoidReturn bool
	for _, in := range irFn.Instructions {
		if in.Op == ir.OpAggregateCopy {
			ac := in.Payload.(ir.AggregateCopy)
			if ac.Dst.Kind == ir.ValueTemp && ac.Dst.Temp == 0 {
				sawCopyIntoSlot0 = true
			}
		}
		if in.Op == ir.OpReturn {
			assert.True(t, in.Payload.(ir.Return).Void)
			sawVoidReturn = true
		}
	}
	assert.True(t, sawCopyIntoSlot0, "returning a class by value must copy the object into the hidden slot, parameter 0")
	assert.True(t, sawVoidReturn)
}

func TestRegisterDeclsQualifiesMethodNameWithEnclosingClass(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()

	voidT := typetab.Index(typetab.KindVoid)
	structT, _ := types.NewStruct(strings.Intern("Widget"))

	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{})
	method := arena.Add(ast.KindFuncDecl, ast.Node{}.Pos, ast.FuncDecl{
		Name: strings.Intern("reset"),
		Body: body,
	})
	structDecl := arena.Add(ast.KindStructDecl, ast.Node{}.Pos, ast.StructDecl{
		Name:       strings.Intern("Widget"),
		Members:    []ast.NodeID{method},
		StructType: structT,
	})

	ns := sym.NewNamespaceRegistry(strings)
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(ns), sym.NewRegistry())
	g.registerDecls([]ast.NodeID{structDecl}, nil, voidT)

	info, ok := g.Functions[method]
	require.True(t, ok)
	assert.True(t, info.IsMethod)
	assert.Equal(t, structT, info.OwnerType)

	want := g.Itanium.Encode(mangle.FunctionName{Namespaces: []string{"Widget"}, Name: "reset"})
	assert.Equal(t, want, info.MangledName)
}

func TestUnwindScopesRespectsKeepDepth(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	g := newGenerator(strings, types)
	g.fn = &ir.Function{MangledName: "_Z1fv", ReturnType: typetab.Index(typetab.KindVoid)}

	structT := typetab.Index(typetab.KindInt) // destructor metadata doesn't care about the real type here

	g.pushScope()
	outerTemp := g.fn.NewTemp(structT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.declareLocal(strings.Intern("outer"), &localVar{Temp: outerTemp, Type: structT, IsAddress: true, NeedsDtor: true, MangledDtor: "outer_dtor"})

	g.pushScope()
	innerTemp := g.fn.NewTemp(structT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.declareLocal(strings.Intern("inner"), &localVar{Temp: innerTemp, Type: structT, IsAddress: true, NeedsDtor: true, MangledDtor: "inner_dtor"})

	g.unwindScopes(1)

	require.Len(t, g.fn.Instructions, 1)
	dc := g.fn.Instructions[0].Payload.(ir.DestructorCall)
	assert.Equal(t, "inner_dtor", dc.MangledDtor)
}

func TestUnwindScopesZeroDestroysOuterAfterInner(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	g := newGenerator(strings, types)
	g.fn = &ir.Function{MangledName: "_Z1fv", ReturnType: typetab.Index(typetab.KindVoid)}

	intT := typetab.Index(typetab.KindInt)

	g.pushScope()
	outerTemp := g.fn.NewTemp(intT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.declareLocal(strings.Intern("outer"), &localVar{Temp: outerTemp, Type: intT, IsAddress: true, NeedsDtor: true, MangledDtor: "outer_dtor"})

	g.pushScope()
	innerTemp := g.fn.NewTemp(intT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.declareLocal(strings.Intern("inner"), &localVar{Temp: innerTemp, Type: intT, IsAddress: true, NeedsDtor: true, MangledDtor: "inner_dtor"})

	g.unwindScopes(0)

	require.Len(t, g.fn.Instructions, 2)
	first := g.fn.Instructions[0].Payload.(ir.DestructorCall)
	second := g.fn.Instructions[1].Payload.(ir.DestructorCall)
	assert.Equal(t, "inner_dtor", first.MangledDtor)
	assert.Equal(t, "outer_dtor", second.MangledDtor)
}

func TestEmitScopeDestructorsRunsInReverseDeclarationOrder(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	g := newGenerator(strings, types)
	g.fn = &ir.Function{MangledName: "_Z1fv", ReturnType: typetab.Index(typetab.KindVoid)}
	intT := typetab.Index(typetab.KindInt)

	g.pushScope()
	for _, name := range []string{"a", "b", "c"} {
		tmp := g.fn.NewTemp(intT, 64, ir.ValueCategory{Kind: ir.CatLValue})
		g.declareLocal(strings.Intern(name), &localVar{Temp: tmp, Type: intT, IsAddress: true, NeedsDtor: true, MangledDtor: name + "_dtor"})
	}
	g.emitScopeDestructors(g.popScope())

	require.Len(t, g.fn.Instructions, 3)
	var order []string
	for _, in := range g.fn.Instructions {
		order = append(order, in.Payload.(ir.DestructorCall).MangledDtor)
	}
	assert.Equal(t, []string{"c_dtor", "b_dtor", "a_dtor"}, order)
}

func TestGenBreakUnwindsOnlyScopesOpenedInsideLoopBody(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(sym.NewNamespaceRegistry(strings)), sym.NewRegistry())
	g.fn = &ir.Function{MangledName: "_Z1fv", ReturnType: typetab.Index(typetab.KindVoid)}
	intT := typetab.Index(typetab.KindInt)

	g.pushScope()
	outerTemp := g.fn.NewTemp(intT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.declareLocal(strings.Intern("outer"), &localVar{Temp: outerTemp, Type: intT, IsAddress: true, NeedsDtor: true, MangledDtor: "outer_dtor"})

	innerDecl := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{Name: strings.Intern("inner"), TypeSpec: typeSpecOf(arena, intT)})
	innerStmt := arena.Add(ast.KindDeclStmt, ast.Node{}.Pos, ast.DeclStmt{Decls: []ast.NodeID{innerDecl}})
	breakStmt := arena.Add(ast.KindBreak, ast.Node{}.Pos, ast.Break{})
	loopBody := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{Stmts: []ast.NodeID{innerStmt, breakStmt}})

	trueLit := arena.Add(ast.KindNumericLiteral, ast.Node{}.Pos, ast.NumericLiteral{IntValue: 1, Type: typetab.Index(typetab.KindBool)})
	whileStmt := arena.Add(ast.KindWhile, ast.Node{}.Pos, ast.While{Cond: trueLit, Body: loopBody})

	require.NoError(t, g.genStmt(whileStmt))

	var outerDestroyed bool
	for _, in := range g.fn.Instructions {
		if in.Op == ir.OpDestructorCall && in.Payload.(ir.DestructorCall).MangledDtor == "outer_dtor" {
			outerDestroyed = true
		}
	}
	assert.False(t, outerDestroyed, "break must never unwind the loop's enclosing scope")
}

func TestGenForDestroysItsOwnScopeExactlyOnceAtEndLabel(t *testing.T) {
	strings := strtab.New()
	types := typetab.New(strings)
	arena := ast.NewArena()
	g := New(arena, strings, types, abi.SystemV, sym.NewStack(sym.NewNamespaceRegistry(strings)), sym.NewRegistry())
	g.fn = &ir.Function{MangledName: "_Z1fv", ReturnType: typetab.Index(typetab.KindVoid)}
	intT := typetab.Index(typetab.KindInt)

	initDecl := arena.Add(ast.KindVarDecl, ast.Node{}.Pos, ast.VarDecl{Name: strings.Intern("i"), TypeSpec: typeSpecOf(arena, intT)})
	initStmt := arena.Add(ast.KindDeclStmt, ast.Node{}.Pos, ast.DeclStmt{Decls: []ast.NodeID{initDecl}})
	body := arena.Add(ast.KindBlock, ast.Node{}.Pos, ast.Block{})

	forStmt := arena.Add(ast.KindFor, ast.Node{}.Pos, ast.For{Init: initStmt, Body: body})
	require.NoError(t, g.genStmt(forStmt))

	assert.Equal(t, 0, len(g.locals), "the for-loop's own scope must be popped once the loop is fully generated")
}
