package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/sema"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// genCall lowers a call expression. Type-trait intrinsics (`__is_class(T)`
// and friends) are spelled as ordinary-looking calls in the grammar but
// never reach the parser as a distinct node, so codegen recognizes the
// callee name here and routes it through sema.EvalTypeTrait instead of
// emitting an ir.Call — the same special-casing decision recorded for the
// constexpr evaluator's own KindTypeTrait arm.
func (g *Generator) genCall(id ast.NodeID, c ast.Call) (ir.TypedValue, error) {
	if name, ok := g.calleeName(c.Callee); ok {
		if sema.IsTraitName(name) {
			return g.genTraitCall(id, name, c.Args)
		}
		if fn, intrinsic := sema.LookupIntrinsicFunc(name); intrinsic {
			return g.genIntrinsicCall(id, fn, c.Args)
		}
	}

	callArgs := g.expandArgPacks(c.Args)
	info, thisArg, args, err := g.resolveCallee(c.Callee, callArgs)
	if err != nil {
		return ir.TypedValue{}, err
	}

	argValues := make([]ir.TypedValue, 0, len(args)+1)
	if thisArg != nil {
		argValues = append(argValues, *thisArg)
	}
	for _, a := range args {
		v, err := g.genExpr(a)
		if err != nil {
			return ir.TypedValue{}, err
		}
		argValues = append(argValues, v)
	}

	if g.isAggregateType(info.ReturnType) {
		ptrT := g.Types.Pointer(info.ReturnType)
		slot := len(g.fn.Instructions) // unique per call site for the StackAlloc bookkeeping below
		addr := g.fn.NewTemp(info.ReturnType, 64, ir.ValueCategory{Kind: ir.CatLValue})
		g.fn.Emit(ir.OpStackAlloc, ir.StackAlloc{Type: info.ReturnType, Slot: slot, Result: addr})
		g.fn.Emit(ir.OpCall, ir.Call{
			Callee:         info.MangledName,
			Args:           argValues,
			Result:         -1,
			UsesReturnSlot: true,
			ReturnSlot:     g.typedValue(addr, ptrT),
			ResultType:     info.ReturnType,
		})
		return g.typedValue(addr, info.ReturnType), nil
	}

	var result int
	if g.Types.Get(info.ReturnType).Base == typetab.KindVoid {
		result = -1
	} else {
		result = g.fn.NewTemp(info.ReturnType, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	}
	g.fn.Emit(ir.OpCall, ir.Call{Callee: info.MangledName, Args: argValues, Result: result, ResultType: info.ReturnType})
	if result < 0 {
		return ir.TypedValue{Type: typetab.Index(typetab.KindVoid)}, nil
	}
	return g.typedValue(result, info.ReturnType), nil
}

// calleeName extracts a plain identifier spelling from a callee expression,
// when it is exactly that shape (an unqualified name, not a multi-segment
// qualified name or member access) — the only shape a type-trait name can
// take.
func (g *Generator) calleeName(callee ast.NodeID) (string, bool) {
	ref, ok := g.asIdentifier(g.Arena.Get(callee))
	if !ok {
		return "", false
	}
	return g.Strings.String(ref.Name), true
}

// expandArgPacks replaces a trailing `pack...` expansion among call
// arguments with one IdentifierRef per expanded element, using the pack
// bindings of the instantiated function being generated (§4.3: expansion
// happens against a concrete argument count).
func (g *Generator) expandArgPacks(args []ast.NodeID) []ast.NodeID {
	if len(g.fnPacks) == 0 {
		return args
	}
	var out []ast.NodeID
	for _, a := range args {
		n := g.Arena.Get(a)
		if u, ok := n.Payload.(ast.UnaryOp); ok && n.Kind == ast.KindUnaryOp && u.Postfix && g.Strings.String(u.Op) == "..." {
			if name, isPack := g.packNameOf(u.Operand); isPack {
				for _, e := range g.fnPacks[name].Elements {
					out = append(out, g.Arena.Add(ast.KindIdentifierRef, n.Pos, ast.IdentifierRef{Name: e}))
				}
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func (g *Generator) genTraitCall(id ast.NodeID, name string, argNodes []ast.NodeID) (ir.TypedValue, error) {
	types := make([]typetab.Index, len(argNodes))
	for i, a := range argNodes {
		if _, ok := g.Arena.Get(a).Payload.(ast.TypeSpec); !ok {
			return ir.TypedValue{}, g.genError(a, "codegen: type-trait argument must be a type")
		}
		t, err := g.resolveSpec(a)
		if err != nil {
			return ir.TypedValue{}, err
		}
		types[i] = t
	}
	result, err := sema.EvalTypeTrait(g.Types, name, types)
	if err != nil {
		return ir.TypedValue{}, g.genError(id, "codegen: %v", err)
	}
	v := int64(0)
	if result {
		v = 1
	}
	return ir.TypedValue{Type: typetab.Index(typetab.KindBool), Kind: ir.ValueIntLiteral, IntLiteral: v}, nil
}

// resolveCallee looks up the function a call targets, splitting out an
// implicit `this` argument for `obj.method(...)` call syntax.
func (g *Generator) resolveCallee(callee ast.NodeID, argNodes []ast.NodeID) (FuncInfo, *ir.TypedValue, []ast.NodeID, error) {
	n := g.Arena.Get(callee)

	if n.Kind == ast.KindMemberAccess {
		m := n.Payload.(ast.MemberAccess)
		var base ir.TypedValue
		var err error
		if m.Arrow {
			base, err = g.genExpr(m.Base)
		} else {
			base, err = g.genAddress(m.Base)
		}
		if err != nil {
			return FuncInfo{}, nil, nil, err
		}
		structT := structTypeOf(g.Types, base, m.Arrow)
		candidates, ok := g.Scopes.Lookup(m.Member)
		if !ok {
			return FuncInfo{}, nil, nil, g.genError(callee, "codegen: no method %q", g.Strings.String(m.Member))
		}
		argTypes, err := g.inferArgTypes(argNodes)
		if err != nil {
			return FuncInfo{}, nil, nil, err
		}
		info, _, err := g.resolveMethodOverload(candidates, structT, argTypes)
		if err != nil {
			return FuncInfo{}, nil, nil, err
		}
		return info, &base, argNodes, nil
	}

	var name strtab.Handle
	switch n.Kind {
	case ast.KindIdentifierRef:
		name = n.Payload.(ast.IdentifierRef).Name
	case ast.KindQualifiedId:
		name = n.Payload.(ast.QualifiedId).Segment
	default:
		return FuncInfo{}, nil, nil, g.genError(callee, "codegen: unsupported call-target expression")
	}
	argTypes, err := g.inferArgTypes(argNodes)
	if err != nil {
		return FuncInfo{}, nil, nil, err
	}

	// A call through a local of class type dispatches to that type's
	// operator() — the shape every lambda call takes once the closure
	// object exists.
	if local, ok := g.lookupLocal(name); ok && g.Types.IsClass(local.Type) {
		base := g.typedValue(local.Temp, local.Type)
		opCands, found := g.Scopes.Lookup(g.Strings.Intern("operator()"))
		if !found {
			return FuncInfo{}, nil, nil, g.genError(callee, "codegen: %q is not callable: its type declares no operator()", g.Strings.String(name))
		}
		info, _, err := g.resolveMethodOverload(opCands, local.Type, argTypes)
		if err != nil {
			return FuncInfo{}, nil, nil, err
		}
		return info, &base, argNodes, nil
	}

	if candidates, ok := g.Scopes.Lookup(name); ok {
		if info, _, err := g.resolveOverload(candidates, argTypes); err == nil {
			return info, nil, argNodes, nil
		}
	}

	// No declared overload is viable: the name may still resolve through a
	// function template the parser registered, instantiated on demand
	// against these argument types (§4.4's deferred-body path).
	if g.Instantiate != nil {
		node, instErr := g.Instantiate(name, argTypes)
		if instErr == nil {
			if _, seen := g.Functions[node]; !seen {
				fd := g.Arena.Get(node).Payload.(ast.FuncDecl)
				g.registerFunc(node, fd, nil, typetab.Void)
				inst := node
				g.pending = append(g.pending, func() error { return g.generateFunc(inst, fd) })
			}
			return g.Functions[node], nil, argNodes, nil
		}
		if len(g.Templates.Lookup(name)) > 0 {
			return FuncInfo{}, nil, nil, g.genError(callee, "codegen: %v", instErr)
		}
	}
	return FuncInfo{}, nil, nil, g.genError(callee, "codegen: no viable function %q for this call", g.Strings.String(name))
}

// resolveMethodOverload narrows candidates to FuncDecls owned by structT
// before handing off to the shared overload-resolution helper.
func (g *Generator) resolveMethodOverload(candidates []ast.NodeID, structT typetab.Index, argTypes []typetab.Index) (FuncInfo, ast.NodeID, error) {
	var owned []ast.NodeID
	for _, id := range candidates {
		if info, ok := g.Functions[id]; ok && info.IsMethod && info.OwnerType == structT {
			owned = append(owned, id)
		}
	}
	return g.resolveOverload(owned, argTypes)
}

// inferArgTypes computes each argument's static type through staticTypeOf
// without emitting any IR for it, so overload resolution can rank the
// candidates before the arguments themselves are generated.
func (g *Generator) inferArgTypes(argNodes []ast.NodeID) ([]typetab.Index, error) {
	types := make([]typetab.Index, len(argNodes))
	for i, a := range argNodes {
		t, err := g.staticTypeOf(a)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return types, nil
}
