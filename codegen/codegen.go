// Package codegen implements §4.6: walking the frozen AST arena to emit the
// linear ir.Function instruction stream the lower package consumes. There is
// no separate "lowering IR" inside this package — expression and statement
// generation emit final-shape ir.Instruction values directly, the same way
// sema.Evaluator walks the arena switching on ast.Kind rather than building
// an intermediate tree of its own.
package codegen

import (
	"fmt"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/mangle"
	"github.com/oxhq/flashcpp/sema"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/sym"
	"github.com/oxhq/flashcpp/typetab"
)

// FuncInfo is what the generator needs about a declared function to both
// call it and, when it is the function currently being generated, to build
// its ir.Function shell. One FuncInfo exists per overload, keyed by the
// FuncDecl node that introduced it.
type FuncInfo struct {
	MangledName          string
	ReturnType           typetab.Index
	ParamTypes           []typetab.Index
	HasHiddenReturnParam bool
	IsMethod             bool
	OwnerType            typetab.Index // valid when IsMethod
	IsCtor               bool
	IsDtor               bool
}

// localVar is one block-scope variable binding: Temp names either the
// variable's own value slot (scalars) or the slot holding its address
// (anything StackAlloc'd — structs, arrays, anything address-taken).
type localVar struct {
	Name        strtab.Handle
	Temp        int
	Type        typetab.Index
	IsAddress   bool // Temp holds this variable's address rather than its value
	NeedsDtor   bool
	MangledDtor string
}

// loopCtx tracks the break/continue target labels for the innermost
// enclosing loop or switch.
type loopCtx struct {
	BreakLabel    string
	ContinueLabel string
	// ScopeDepth is len(Generator.localOrder) at the point this loop's body
	// begins executing — break/continue unwind destructors for scopes opened
	// past this depth before jumping, leaving the loop's own control scope
	// (a for-init declaration, say) for the loop construct itself to retire.
	ScopeDepth int
}

// Generator turns one translation unit's AST into an ir.Module (§4.6). A
// fresh Generator is used per translation unit; Functions is populated by a
// first pass over every FuncDecl before any body is generated, so forward
// calls and mutual recursion resolve without a second pass.
type Generator struct {
	Arena   *ast.Arena
	Strings *strtab.Table
	Types   *typetab.Table
	Target  abi.Target

	Scopes    *sym.Stack
	Templates *sym.Registry

	Functions map[ast.NodeID]FuncInfo
	Itanium   mangle.Itanium
	MSVC      mangle.MSVC

	// Instantiate is the parser's on-demand function-template entry point
	// (§4.4): given a template's name and the call's argument types, it
	// returns a concrete FuncDecl node ready for registration. Nil when the
	// translation unit declared no templates (unit tests drive the
	// generator without a parser).
	Instantiate func(name strtab.Handle, argTypes []typetab.Index) (ast.NodeID, error)

	// InstantiateClass is the class-template counterpart: `Name<Args...>`
	// used as a type resolves through it to a frozen TypeIndex plus the
	// concrete StructDecl whose member functions this generator then
	// registers and generates.
	InstantiateClass func(name strtab.Handle, typeArgs []typetab.Index) (typetab.Index, ast.NodeID, error)

	Module *ir.Module

	fn           *ir.Function
	locals       []map[strtab.Handle]*localVar
	localOrder   [][]*localVar
	loops        []loopCtx
	labelCounter int

	// fnPacks maps a parameter pack's declared name to its expanded element
	// list for the function currently being generated.
	fnPacks map[strtab.Handle]ast.PackBinding

	// globals maps a namespace-scope variable's declared name to its type
	// and mangled symbol, populated during registration so bodies anywhere
	// in the unit resolve it.
	globals map[strtab.Handle]globalInfo

	// classInstances marks instantiated class types whose members are
	// already registered, so repeated `Box<int>` spellings register and
	// generate the members once.
	classInstances map[typetab.Index]bool

	// pending holds function bodies that must be generated after the
	// current top-level declaration finishes: template instantiations
	// discovered at call sites and lambda operator() bodies. Generate
	// drains it between top-level declarations, so g.fn is never nested.
	pending []func() error

	lambdaCounter int
}

// New returns a Generator over a translation unit the parser has already
// walked: scopes carries every name the parser declared along the way (§4.4),
// so Generate's registration pass finds FuncDecls through the same lookup
// chain overload resolution uses at every call site.
func New(arena *ast.Arena, strings *strtab.Table, types *typetab.Table, target abi.Target, scopes *sym.Stack, templates *sym.Registry) *Generator {
	return &Generator{
		Arena:     arena,
		Strings:   strings,
		Types:     types,
		Target:    target,
		Scopes:    scopes,
		Templates: templates,
		Functions: map[ast.NodeID]FuncInfo{},
		Itanium:   mangle.Itanium{Types: types, Strings: strings},
		MSVC:      mangle.MSVC{Types: types, Strings: strings},
		Module:    &ir.Module{},
	}
}

// genError annotates a code-generation failure with the originating node's
// source position, mirroring the diagnostic shape sema.Evaluator's errors
// already carry through ast.Node.Pos.
func (g *Generator) genError(id ast.NodeID, format string, args ...any) error {
	pos := g.Arena.Get(id).Pos
	return fmt.Errorf("%s:%d:%d: %w", pos.File, pos.Line, pos.Column, fmt.Errorf(format, args...))
}

func (g *Generator) newLabel(prefix string) string {
	g.labelCounter++
	return fmt.Sprintf(".L%s%d", prefix, g.labelCounter)
}

func (g *Generator) pushScope() {
	g.locals = append(g.locals, map[strtab.Handle]*localVar{})
	g.localOrder = append(g.localOrder, nil)
}

func (g *Generator) popScope() []*localVar {
	top := g.localOrder[len(g.localOrder)-1]
	g.locals = g.locals[:len(g.locals)-1]
	g.localOrder = g.localOrder[:len(g.localOrder)-1]
	return top
}

func (g *Generator) declareLocal(name strtab.Handle, v *localVar) {
	v.Name = name
	g.locals[len(g.locals)-1][name] = v
	top := len(g.localOrder) - 1
	g.localOrder[top] = append(g.localOrder[top], v)
}

func (g *Generator) lookupLocal(name strtab.Handle) (*localVar, bool) {
	for i := len(g.locals) - 1; i >= 0; i-- {
		if v, ok := g.locals[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// isFloatType mirrors lower.Converter.isFloatType; codegen needs the same
// classification to decide literal kinds and cast behavior, and it is cheap
// enough that importing lower just for this would be the wrong direction of
// dependency (lower depends on nothing upstream of ir/abi/asm/objfile).
func (g *Generator) isFloatType(t typetab.Index) bool {
	switch g.Types.Get(t).Base {
	case typetab.KindFloat, typetab.KindDouble, typetab.KindLongDouble:
		return true
	}
	return false
}

// isSignedType mirrors the signed/unsigned classification sema/traits.go
// keeps package-private (signedBases/unsignedBases); codegen needs it to fill in
// every ir.TypedValue.IsSigned field, so the small table is duplicated here
// the same way lower.byteSizeOf duplicates sema's size table.
func (g *Generator) isSignedType(t typetab.Index) bool {
	switch g.Types.Get(t).Base {
	case typetab.KindSChar, typetab.KindShort, typetab.KindInt, typetab.KindLong,
		typetab.KindLongLong, typetab.KindChar, typetab.KindFloat, typetab.KindDouble, typetab.KindLongDouble:
		return true
	}
	return false
}

func (g *Generator) isAggregateType(t typetab.Index) bool {
	info := g.Types.Get(t)
	return info.PointerDepth == 0 && info.Base == typetab.KindStruct
}

// typedValue builds the TypedValue referencing a TempVar, filling in the
// signedness/float metadata instruction selection in lower needs.
func (g *Generator) typedValue(temp int, t typetab.Index) ir.TypedValue {
	info := g.Types.Get(t)
	return ir.TypedValue{
		Type:         t,
		Kind:         ir.ValueTemp,
		Temp:         temp,
		PointerDepth: info.PointerDepth,
		CV:           info.CV,
		IsReference:  info.Ref != typetab.RefNone,
		IsSigned:     g.isSignedType(t),
	}
}

func mangledName(g *Generator, fn ast.FuncDecl, namespaces []string, ownerType typetab.Index, paramTypes []typetab.Index, returnType typetab.Index) string {
	// main keeps C linkage on both ABIs; everything else is mangled.
	if len(namespaces) == 0 && ownerType == typetab.Void && g.Strings.String(fn.Name) == "main" {
		return "main"
	}
	name := mangle.FunctionName{
		Namespaces: namespaces,
		Name:       g.Strings.String(fn.Name),
		IsConstMethod: fn.IsConst,
		Params:     paramTypes,
		ReturnType: returnType,
		IsCtor:     fn.IsConstructor,
		IsDtor:     fn.IsDestructor,
	}
	_ = ownerType
	if g.Target == abi.Windows {
		return g.MSVC.Encode(name)
	}
	return g.Itanium.Encode(name)
}

// resolveOverload picks the best FuncInfo among candidates sharing a name,
// using sema.ResolveOverload the same way the parser/sema boundary resolves
// any other overload set (§4.5).
func (g *Generator) resolveOverload(candidates []ast.NodeID, argTypes []typetab.Index) (FuncInfo, ast.NodeID, error) {
	var scored []sema.Candidate
	byHandle := map[int]ast.NodeID{}
	for _, id := range candidates {
		n := g.Arena.Get(id)
		if n.Kind != ast.KindFuncDecl {
			continue
		}
		info, ok := g.Functions[id]
		if !ok {
			continue
		}
		scored = append(scored, sema.Candidate{Handle: int(id), Sig: typetab.FunctionSig{Return: info.ReturnType, Params: info.ParamTypes}})
		byHandle[int(id)] = id
	}
	if len(scored) == 0 {
		return FuncInfo{}, ast.None, fmt.Errorf("codegen: no viable function declaration among %d candidates", len(candidates))
	}
	result := sema.ResolveOverload(g.Types, scored, argTypes)
	if !result.Found {
		return FuncInfo{}, ast.None, fmt.Errorf("codegen: no viable overload for call")
	}
	if result.Ambiguous {
		return FuncInfo{}, ast.None, fmt.Errorf("codegen: ambiguous call")
	}
	id := byHandle[result.Best.Handle]
	return g.Functions[id], id, nil
}
