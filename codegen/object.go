package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/typetab"
)

// operatorNew/operatorDelete are the global free-store entry points every
// `new`/`delete` expression calls through when the class being constructed
// declares no member `operator new`/`operator delete` of its own.
const (
	operatorNewSymbol    = "_Znwm"
	operatorDeleteSymbol = "_ZdlPv"
)

func (g *Generator) genConstructorExpr(id ast.NodeID, ce ast.ConstructorExpr) (ir.TypedValue, error) {
	structT, err := g.resolveSpec(ce.TypeSpec)
	if err != nil {
		return ir.TypedValue{}, err
	}

	addr := g.fn.NewTemp(structT, 64, ir.ValueCategory{Kind: ir.CatPRValue, EligibleForRVO: true})
	g.fn.Emit(ir.OpStackAlloc, ir.StackAlloc{Type: structT, Slot: len(g.fn.Instructions), Result: addr})

	if !g.Types.IsClass(structT) {
		if len(ce.Args) == 1 {
			v, err := g.genExpr(ce.Args[0])
			if err != nil {
				return ir.TypedValue{}, err
			}
			return v, nil
		}
		return g.typedValue(addr, structT), nil
	}

	target := g.typedValue(addr, structT)
	if err := g.genConstructorCallInto(id, target, structT, ce.Args); err != nil {
		return ir.TypedValue{}, err
	}
	return target, nil
}

// genConstructorCallInto resolves an overload for structT over argNodes and
// emits a ConstructorCall building directly into target. genConstructorExpr
// uses it over a throwaway local's address; genReturn uses it over the
// caller's hidden return slot to get mandatory prvalue copy elision
// (`return T(args);` builds the result in place rather than constructing a
// local and then copying it out).
func (g *Generator) genConstructorCallInto(id ast.NodeID, target ir.TypedValue, structT typetab.Index, argNodes []ast.NodeID) error {
	ctor, err := g.findConstructor(structT, argNodes)
	if err != nil {
		return err
	}
	args := make([]ir.TypedValue, len(argNodes))
	for i, a := range argNodes {
		v, err := g.genExpr(a)
		if err != nil {
			return err
		}
		args[i] = v
	}
	g.fn.Emit(ir.OpConstructorCall, ir.ConstructorCall{
		Target:      target,
		MangledCtor: ctor.MangledName,
		Args:        args,
	})
	return nil
}

func (g *Generator) findConstructor(structT typetab.Index, argNodes []ast.NodeID) (FuncInfo, error) {
	argTypes, err := g.inferArgTypes(argNodes)
	if err != nil {
		return FuncInfo{}, err
	}
	var owned []ast.NodeID
	for id, info := range g.Functions {
		if info.IsCtor && info.OwnerType == structT {
			owned = append(owned, id)
		}
	}
	info, _, err := g.resolveOverload(owned, argTypes)
	return info, err
}

// genNew lowers `new T(args)`/`new T[n]` to an operator-new call followed,
// for class types, by a constructor call over the freshly allocated
// storage. Array new only allocates the raw bytes — per-element
// construction for non-trivial element types is a known gap noted next to
// the rest of this core's array-of-class-object handling.
func (g *Generator) genNew(id ast.NodeID, nw ast.New) (ir.TypedValue, error) {
	elemT, err := g.resolveSpec(nw.TypeSpec)
	if err != nil {
		return ir.TypedValue{}, err
	}
	ptrT := g.Types.Pointer(elemT)

	size := ir.TypedValue{Type: typetab.Index(typetab.KindULong), Kind: ir.ValueIntLiteral, IntLiteral: elemByteSize(g.Types, elemT)}
	if nw.ArraySize != ast.None {
		count, err := g.genExpr(nw.ArraySize)
		if err != nil {
			return ir.TypedValue{}, err
		}
		size = g.emitBinary("*", count, ir.TypedValue{Type: typetab.Index(typetab.KindULong), Kind: ir.ValueIntLiteral, IntLiteral: elemByteSize(g.Types, elemT)})
	}

	result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpCall, ir.Call{Callee: operatorNewSymbol, Args: []ir.TypedValue{size}, Result: result, ResultType: ptrT})
	addr := g.typedValue(result, ptrT)

	if nw.ArraySize == ast.None && g.Types.IsClass(elemT) {
		ctor, err := g.findConstructor(elemT, nw.Args)
		if err == nil {
			args := make([]ir.TypedValue, len(nw.Args))
			for i, a := range nw.Args {
				v, genErr := g.genExpr(a)
				if genErr != nil {
					return ir.TypedValue{}, genErr
				}
				args[i] = v
			}
			g.fn.Emit(ir.OpConstructorCall, ir.ConstructorCall{Target: addr, MangledCtor: ctor.MangledName, Args: args})
		}
	}
	return addr, nil
}

// genDelete lowers `delete p`/`delete[] p`: a destructor call (for class
// pointees) followed by operator delete. Array-delete element destruction
// shares the same known gap as array-new element construction.
func (g *Generator) genDelete(id ast.NodeID, d ast.Delete) error {
	ptr, err := g.genExpr(d.Operand)
	if err != nil {
		return err
	}
	elemT := g.Types.Dereference(ptr.Type)
	if !d.IsArray && g.Types.IsClass(elemT) {
		if dtor, ok := g.findDestructor(elemT); ok {
			g.fn.Emit(ir.OpDestructorCall, ir.DestructorCall{TargetAddress: ptr, StructType: elemT, MangledDtor: dtor})
		}
	}
	g.fn.Emit(ir.OpCall, ir.Call{Callee: operatorDeleteSymbol, Args: []ir.TypedValue{ptr}, Result: -1, ResultType: typetab.Index(typetab.KindVoid)})
	return nil
}

func (g *Generator) findDestructor(structT typetab.Index) (string, bool) {
	for _, info := range g.Functions {
		if info.IsDtor && info.OwnerType == structT {
			return info.MangledName, true
		}
	}
	return "", false
}

func (g *Generator) genThrow(t ast.Throw) error {
	if t.Operand == ast.None {
		g.fn.Emit(ir.OpReThrow, ir.ReThrow{})
		return nil
	}
	v, err := g.genExpr(t.Operand)
	if err != nil {
		return err
	}
	g.fn.Emit(ir.OpThrow, ir.Throw{TypeDescriptor: v.Type, Operand: v})
	return nil
}
