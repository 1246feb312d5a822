package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// genStmt lowers one statement node (§4.6). Expression-valued statements
// discard their TypedValue; everything else is pure control flow and
// instruction emission.
func (g *Generator) genStmt(id ast.NodeID) error {
	n := g.Arena.Get(id)
	switch n.Kind {
	case ast.KindBlock:
		return g.genBlockStmt(n.Payload.(ast.Block))
	case ast.KindExprStmt:
		_, err := g.genExpr(n.Payload.(ast.ExprStmt).Expr)
		return err
	case ast.KindDeclStmt:
		return g.genDeclStmt(n.Payload.(ast.DeclStmt))
	case ast.KindIf:
		return g.genIf(n.Payload.(ast.If))
	case ast.KindWhile:
		return g.genWhile(n.Payload.(ast.While))
	case ast.KindDoWhile:
		return g.genDoWhile(n.Payload.(ast.DoWhile))
	case ast.KindFor:
		return g.genFor(n.Payload.(ast.For))
	case ast.KindRangeFor:
		return g.genRangeFor(n.Payload.(ast.RangeFor))
	case ast.KindSwitch:
		return g.genSwitch(n.Payload.(ast.Switch))
	case ast.KindReturn:
		return g.genReturn(n.Payload.(ast.Return))
	case ast.KindBreak:
		return g.genBreak(id)
	case ast.KindContinue:
		return g.genContinue(id)
	case ast.KindGoto:
		g.fn.Emit(ir.OpJump, ir.Jump{Target: g.gotoLabel(n.Payload.(ast.Goto).Label)})
		return nil
	case ast.KindLabel:
		lbl := n.Payload.(ast.Label)
		g.fn.Emit(ir.OpLabel, ir.Label{Name: g.gotoLabel(lbl.Name)})
		return g.genStmt(lbl.Stmt)
	case ast.KindTry:
		return g.genTry(n.Payload.(ast.Try))
	}
	return g.genError(id, "codegen: unhandled statement node kind %d", n.Kind)
}

// gotoLabel turns a goto/label name into a stable assembly label, distinct
// from the synthetic .L-prefixed ones newLabel mints for control-flow
// constructs so a user-written label can never collide with one of ours.
func (g *Generator) gotoLabel(name strtab.Handle) string {
	return "user_" + g.Strings.String(name)
}

func (g *Generator) genBlockStmt(b ast.Block) error {
	g.pushScope()
	for _, s := range b.Stmts {
		if err := g.genStmt(s); err != nil {
			g.popScope()
			return err
		}
	}
	g.emitScopeDestructors(g.popScope())
	return nil
}

// emitScopeDestructors issues destructor calls, in reverse declaration
// order, for every object in scope that has one (§4.6's scope-exit
// destructor scheduling).
func (g *Generator) emitScopeDestructors(scope []*localVar) {
	for i := len(scope) - 1; i >= 0; i-- {
		local := scope[i]
		if !local.NeedsDtor {
			continue
		}
		g.fn.Emit(ir.OpDestructorCall, ir.DestructorCall{
			TargetAddress: g.typedValue(local.Temp, local.Type),
			StructType:    local.Type,
			MangledDtor:   local.MangledDtor,
		})
	}
}

// unwindScopes emits destructor calls for every currently open scope, in
// reverse declaration order, deepest scope first — used by return/break/
// continue to run live objects' destructors before transferring control out
// of their scope. keepDepth is the number of outermost scopes to leave
// untouched (0 for a function return, the loop body's own depth for a
// break/continue).
func (g *Generator) unwindScopes(keepDepth int) {
	for i := len(g.localOrder) - 1; i >= keepDepth; i-- {
		g.emitScopeDestructors(g.localOrder[i])
	}
}

func (g *Generator) genDeclStmt(d ast.DeclStmt) error {
	for _, declID := range d.Decls {
		v := g.Arena.Get(declID).Payload.(ast.VarDecl)

		// `auto` takes its type — and for class-typed initializers (lambda
		// closures included) its storage — straight from the initializer.
		if g.specIsAuto(v.TypeSpec) {
			if v.Init == ast.None {
				return g.genError(declID, "codegen: `auto` declaration needs an initializer")
			}
			val, err := g.genExpr(v.Init)
			if err != nil {
				return err
			}
			if g.isAggregateType(val.Type) && val.Kind == ir.ValueTemp {
				local := &localVar{Temp: val.Temp, Type: val.Type, IsAddress: true}
				if dtor, ok := g.findDestructor(val.Type); ok {
					local.NeedsDtor = true
					local.MangledDtor = dtor
				}
				g.declareLocal(v.Name, local)
				continue
			}
			temp := g.fn.NewTemp(val.Type, 64, ir.ValueCategory{Kind: ir.CatPRValue})
			g.storeInto(temp, val)
			g.declareLocal(v.Name, &localVar{Temp: temp, Type: val.Type})
			continue
		}

		typ, err := g.resolveSpec(v.TypeSpec)
		if err != nil {
			return err
		}

		if g.isAggregateType(typ) {
			addr := g.fn.NewTemp(typ, 64, ir.ValueCategory{Kind: ir.CatLValue})
			g.fn.Emit(ir.OpStackAlloc, ir.StackAlloc{Type: typ, Slot: len(g.fn.Instructions), Result: addr})
			local := &localVar{Temp: addr, Type: typ, IsAddress: true}
			if v.Init != ast.None {
				if err := g.initAggregate(addr, typ, v.Init); err != nil {
					return err
				}
			} else if ctor, err := g.findConstructor(typ, nil); err == nil {
				g.fn.Emit(ir.OpConstructorCall, ir.ConstructorCall{Target: g.typedValue(addr, typ), MangledCtor: ctor.MangledName})
			}
			if dtor, ok := g.findDestructor(typ); ok {
				local.NeedsDtor = true
				local.MangledDtor = dtor
			}
			g.declareLocal(v.Name, local)
			continue
		}

		temp := g.fn.NewTemp(typ, 64, ir.ValueCategory{Kind: ir.CatPRValue})
		if v.Init != ast.None {
			val, err := g.genExpr(v.Init)
			if err != nil {
				return err
			}
			g.storeInto(temp, val)
		}
		g.declareLocal(v.Name, &localVar{Temp: temp, Type: typ})
	}
	return nil
}

func (g *Generator) initAggregate(addr int, structT typetab.Index, init ast.NodeID) error {
	n := g.Arena.Get(init)
	if n.Kind == ast.KindConstructorExpr {
		ce := n.Payload.(ast.ConstructorExpr)
		ctor, err := g.findConstructor(structT, ce.Args)
		if err != nil {
			return err
		}
		args := make([]ir.TypedValue, len(ce.Args))
		for i, a := range ce.Args {
			v, err := g.genExpr(a)
			if err != nil {
				return err
			}
			args[i] = v
		}
		g.fn.Emit(ir.OpConstructorCall, ir.ConstructorCall{Target: g.typedValue(addr, structT), MangledCtor: ctor.MangledName, Args: args})
		return nil
	}
	v, err := g.genExpr(init)
	if err != nil {
		return err
	}
	ctor, err := g.findConstructor(structT, []ast.NodeID{init})
	if err != nil {
		// No converting constructor for this initializer: copy-initialization
		// from another object of the same type, e.g. `Foo b = a;`.
		g.emitAggregateCopy(g.typedValue(addr, structT), v, structT)
		return nil
	}
	g.fn.Emit(ir.OpConstructorCall, ir.ConstructorCall{Target: g.typedValue(addr, structT), MangledCtor: ctor.MangledName, Args: []ir.TypedValue{v}})
	return nil
}

func (g *Generator) genIf(s ast.If) error {
	if s.Init != ast.None {
		if err := g.genStmt(s.Init); err != nil {
			return err
		}
	}
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	thenLabel, elseLabel, joinLabel := g.newLabel("it"), g.newLabel("ie"), g.newLabel("ij")
	g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: cond, ThenLabel: thenLabel, ElseLabel: elseLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: thenLabel})
	if err := g.genStmt(s.Then); err != nil {
		return err
	}
	g.fn.Emit(ir.OpJump, ir.Jump{Target: joinLabel})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: elseLabel})
	if s.Else != ast.None {
		if err := g.genStmt(s.Else); err != nil {
			return err
		}
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: joinLabel})
	return nil
}

func (g *Generator) genWhile(s ast.While) error {
	top, body, end := g.newLabel("wt"), g.newLabel("wb"), g.newLabel("we")
	g.loops = append(g.loops, loopCtx{BreakLabel: end, ContinueLabel: top, ScopeDepth: len(g.localOrder)})
	defer func() { g.loops = g.loops[:len(g.loops)-1] }()

	g.fn.Emit(ir.OpLabel, ir.Label{Name: top})
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: cond, ThenLabel: body, ElseLabel: end})
	g.fn.Emit(ir.OpLabel, ir.Label{Name: body})
	if err := g.genStmt(s.Body); err != nil {
		return err
	}
	g.fn.Emit(ir.OpJump, ir.Jump{Target: top})
	g.fn.Emit(ir.OpLabel, ir.Label{Name: end})
	return nil
}

func (g *Generator) genDoWhile(s ast.DoWhile) error {
	body, cont, end := g.newLabel("db"), g.newLabel("dc"), g.newLabel("de")
	g.loops = append(g.loops, loopCtx{BreakLabel: end, ContinueLabel: cont, ScopeDepth: len(g.localOrder)})
	defer func() { g.loops = g.loops[:len(g.loops)-1] }()

	g.fn.Emit(ir.OpLabel, ir.Label{Name: body})
	if err := g.genStmt(s.Body); err != nil {
		return err
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: cont})
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: cond, ThenLabel: body, ElseLabel: end})
	g.fn.Emit(ir.OpLabel, ir.Label{Name: end})
	return nil
}

// genFor lowers a classic for-loop. The loop's own scope (its init
// declaration) outlives every iteration's body, so it is retired exactly
// once at the end label — the point every exit path, whether a false
// condition or a break, converges on.
func (g *Generator) genFor(s ast.For) error {
	g.pushScope()
	if s.Init != ast.None {
		if err := g.genStmt(s.Init); err != nil {
			g.popScope()
			return err
		}
	}
	top, body, cont, end := g.newLabel("ft"), g.newLabel("fb"), g.newLabel("fc"), g.newLabel("fe")
	g.loops = append(g.loops, loopCtx{BreakLabel: end, ContinueLabel: cont, ScopeDepth: len(g.localOrder)})
	defer func() { g.loops = g.loops[:len(g.loops)-1] }()

	g.fn.Emit(ir.OpLabel, ir.Label{Name: top})
	if s.Cond != ast.None {
		cond, err := g.genExpr(s.Cond)
		if err != nil {
			return err
		}
		g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: cond, ThenLabel: body, ElseLabel: end})
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: body})
	if err := g.genStmt(s.Body); err != nil {
		return err
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: cont})
	if s.Post != ast.None {
		if _, err := g.genExpr(s.Post); err != nil {
			return err
		}
	}
	g.fn.Emit(ir.OpJump, ir.Jump{Target: top})
	g.fn.Emit(ir.OpLabel, ir.Label{Name: end})
	g.emitScopeDestructors(g.popScope())
	return nil
}

// genRangeFor lowers `for (decl : range) body` over a pointer/array range by
// iterating [begin, end) with raw pointer arithmetic. Range-based iteration
// over a class type's begin()/end() member functions is a known gap: this
// core only supports the array/pointer form.
func (g *Generator) genRangeFor(s ast.RangeFor) error {
	g.pushScope()

	rangeV, err := g.genExpr(s.Range)
	if err != nil {
		g.popScope()
		return err
	}
	elemT := g.Types.Dereference(rangeV.Type)
	elemSize := elemByteSize(g.Types, elemT)

	cursor := g.fn.NewTemp(g.Types.Pointer(elemT), 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.storeInto(cursor, rangeV)

	decl := g.Arena.Get(s.Decl).Payload.(ast.VarDecl)
	elemLocal := g.fn.NewTemp(elemT, 64, ir.ValueCategory{Kind: ir.CatLValue})

	top, body, cont, end := g.newLabel("rt"), g.newLabel("rb"), g.newLabel("rc"), g.newLabel("re")
	g.loops = append(g.loops, loopCtx{BreakLabel: end, ContinueLabel: cont, ScopeDepth: len(g.localOrder)})
	defer func() { g.loops = g.loops[:len(g.loops)-1] }()

	g.fn.Emit(ir.OpLabel, ir.Label{Name: top})
	g.fn.Emit(ir.OpLoad, ir.Load{Address: g.typedValue(cursor, g.Types.Pointer(elemT)), Result: elemLocal})
	g.declareLocal(decl.Name, &localVar{Temp: elemLocal, Type: elemT})
	g.fn.Emit(ir.OpLabel, ir.Label{Name: body})
	if err := g.genStmt(s.Body); err != nil {
		return err
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: cont})
	step := g.emitBinary("+", g.typedValue(cursor, g.Types.Pointer(elemT)), ir.TypedValue{Type: typetab.Index(typetab.KindLong), Kind: ir.ValueIntLiteral, IntLiteral: elemSize, IsSigned: true})
	g.storeInto(cursor, step)
	g.fn.Emit(ir.OpJump, ir.Jump{Target: top})
	g.fn.Emit(ir.OpLabel, ir.Label{Name: end})
	g.emitScopeDestructors(g.popScope())
	return nil
}

func (g *Generator) genSwitch(s ast.Switch) error {
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	end := g.newLabel("sw")
	g.loops = append(g.loops, loopCtx{BreakLabel: end, ScopeDepth: len(g.localOrder)})
	defer func() { g.loops = g.loops[:len(g.loops)-1] }()

	caseLabels := make([]string, len(s.Cases))
	defaultIdx := -1
	for i, c := range s.Cases {
		caseLabels[i] = g.newLabel("sc")
		if c.Value == ast.None {
			defaultIdx = i
		}
	}

	for i, c := range s.Cases {
		if c.Value == ast.None {
			continue
		}
		val, err := g.genExpr(c.Value)
		if err != nil {
			return err
		}
		eq := g.fn.NewTemp(typetab.Index(typetab.KindBool), 8, ir.ValueCategory{Kind: ir.CatPRValue})
		g.fn.Emit(ir.OpCompare, ir.Compare{Op: g.Strings.Intern("=="), LHS: cond, RHS: val, Result: eq})
		next := g.newLabel("sn")
		g.fn.Emit(ir.OpCondBranch, ir.CondBranch{Cond: g.typedValue(eq, typetab.Index(typetab.KindBool)), ThenLabel: caseLabels[i], ElseLabel: next})
		g.fn.Emit(ir.OpLabel, ir.Label{Name: next})
	}
	if defaultIdx >= 0 {
		g.fn.Emit(ir.OpJump, ir.Jump{Target: caseLabels[defaultIdx]})
	} else {
		g.fn.Emit(ir.OpJump, ir.Jump{Target: end})
	}

	for i, c := range s.Cases {
		g.fn.Emit(ir.OpLabel, ir.Label{Name: caseLabels[i]})
		for _, stmt := range c.Body {
			if err := g.genStmt(stmt); err != nil {
				return err
			}
		}
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: end})
	return nil
}

// genReturn unwinds every open scope's destructors before transferring
// control out of the function. Returning a named local by value without
// NRVO means its own destructor call below runs on the object the caller
// is about to receive a copy of through the hidden return slot — elision
// would need a liveness check this core does not perform.
//
// `return T(args);` is different: the operand is a prvalue, and C++17 makes
// its elision mandatory rather than an optimization. genConstructorCallInto
// builds it straight into the caller's hidden return slot, the same way
// initAggregate builds a local declaration's initializer in place, so no
// throwaway local and no copy out of it ever exist.
func (g *Generator) genReturn(r ast.Return) error {
	if r.Value == ast.None {
		g.unwindScopes(0)
		g.fn.Emit(ir.OpReturn, ir.Return{Void: true})
		return nil
	}

	if g.fn.HasHiddenReturnParam {
		dst := g.typedValue(0, g.fn.Params[0].Type)
		if n := g.Arena.Get(r.Value); n.Kind == ast.KindConstructorExpr {
			ce := n.Payload.(ast.ConstructorExpr)
			ctorT, err := g.resolveSpec(ce.TypeSpec)
			if err != nil {
				return err
			}
			if g.Types.IsClass(ctorT) {
				if err := g.genConstructorCallInto(r.Value, g.typedValue(0, ctorT), ctorT, ce.Args); err != nil {
					return err
				}
				g.unwindScopes(0)
				g.fn.Emit(ir.OpReturn, ir.Return{Void: true})
				return nil
			}
		}

		v, err := g.genExpr(r.Value)
		if err != nil {
			return err
		}
		if g.isAggregateType(g.fn.ReturnType) {
			g.emitAggregateCopy(g.typedValue(0, g.fn.ReturnType), v, g.fn.ReturnType)
		} else {
			g.fn.Emit(ir.OpStore, ir.Store{Address: dst, Value: v})
		}
		g.unwindScopes(0)
		g.fn.Emit(ir.OpReturn, ir.Return{Void: true})
		return nil
	}

	v, err := g.genExpr(r.Value)
	if err != nil {
		return err
	}
	g.unwindScopes(0)
	g.fn.Emit(ir.OpReturn, ir.Return{Value: v})
	return nil
}

func (g *Generator) genBreak(id ast.NodeID) error {
	if len(g.loops) == 0 {
		return g.genError(id, "codegen: break outside a loop or switch")
	}
	top := g.loops[len(g.loops)-1]
	g.unwindScopes(top.ScopeDepth)
	g.fn.Emit(ir.OpJump, ir.Jump{Target: top.BreakLabel})
	return nil
}

func (g *Generator) genContinue(id ast.NodeID) error {
	for i := len(g.loops) - 1; i >= 0; i-- {
		if g.loops[i].ContinueLabel != "" {
			g.unwindScopes(g.loops[i].ScopeDepth)
			g.fn.Emit(ir.OpJump, ir.Jump{Target: g.loops[i].ContinueLabel})
			return nil
		}
	}
	return g.genError(id, "codegen: continue outside a loop")
}

func (g *Generator) genTry(t ast.Try) error {
	landingPad := g.newLabel("lp")
	end := g.newLabel("te")
	g.fn.Emit(ir.OpTryBegin, ir.TryBegin{LandingPad: landingPad})
	if err := g.genStmt(t.Body); err != nil {
		return err
	}
	g.fn.Emit(ir.OpTryEnd, ir.TryEnd{})
	g.fn.Emit(ir.OpJump, ir.Jump{Target: end})

	g.fn.Emit(ir.OpLabel, ir.Label{Name: landingPad})
	for _, c := range t.Catches {
		catchLabel := g.newLabel("cc")
		g.fn.Emit(ir.OpLabel, ir.Label{Name: catchLabel})
		excVar := -1
		catchType := typetab.Void
		g.pushScope()
		if c.Decl != ast.None {
			decl := g.Arena.Get(c.Decl).Payload.(ast.VarDecl)
			t, err := g.resolveSpec(decl.TypeSpec)
			if err != nil {
				return err
			}
			catchType = t
			excVar = g.fn.NewTemp(t, 64, ir.ValueCategory{Kind: ir.CatLValue})
			g.declareLocal(decl.Name, &localVar{Temp: excVar, Type: t})
		}
		// A bare `catch (...)` has no Decl to resolve a type from; catchType
		// stays typetab.Void, the generic-handler marker lower's exception
		// lowering already treats as catch-all.
		g.fn.Emit(ir.OpCatchBegin, ir.CatchBegin{CatchType: catchType, ContinuationLabel: end, ExceptionVar: excVar})
		if err := g.genStmt(c.Body); err != nil {
			return err
		}
		g.fn.Emit(ir.OpCatchEnd, ir.CatchEnd{ContinuationLabel: end})
		g.popScope()
	}
	g.fn.Emit(ir.OpLabel, ir.Label{Name: end})
	return nil
}
