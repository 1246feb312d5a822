package codegen

import (
	"fmt"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/mangle"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// captureSlot describes one member of a synthesized closure type: what it
// captures, the member's name/type/offset in the closure layout, and how
// the enclosing frame supplies its value.
type captureSlot struct {
	Kind     ast.LambdaCaptureKind
	Name     strtab.Handle // the name the lambda body looks up ("this" for This/StarThis)
	Member   strtab.Handle // closure member name
	Type     typetab.Index // member's declared type
	Offset   int64
	Src      *localVar     // enclosing-frame binding (nil for init-captures)
	OrigType typetab.Index // captured variable's own type, for by-ref members
	Init     ast.NodeID    // init-capture initializer
}

// genLambda materializes a lambda expression (§4.5): it synthesizes the
// closure class from the capture list, stack-allocates and fills a closure
// object in the enclosing frame, and queues the operator() body for
// generation once the enclosing function is done. The returned TypedValue
// addresses the closure object, the same aggregate convention every other
// class-typed expression uses.
func (g *Generator) genLambda(id ast.NodeID, lam ast.Lambda) (ir.TypedValue, error) {
	g.lambdaCounter++
	closureName := g.Strings.Intern(fmt.Sprintf("__lambda_%d", g.lambdaCounter))
	closureT, sidx := g.Types.NewStruct(closureName)
	si := g.Types.Struct(sidx)

	slots, err := g.planCaptures(id, lam)
	if err != nil {
		return ir.TypedValue{}, err
	}
	for i := range slots {
		si.AddMember(typetab.Member{Name: slots[i].Member, Type: slots[i].Type}, g.Types)
		slots[i].Offset = si.Members[len(si.Members)-1].Offset
	}
	si.Freeze()

	addr := g.fn.NewTemp(closureT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpStackAlloc, ir.StackAlloc{Type: closureT, Slot: len(g.fn.Instructions), Result: addr})
	base := g.typedValue(addr, closureT)
	if err := g.emitCaptureStores(base, slots); err != nil {
		return ir.TypedValue{}, err
	}

	paramTypes := make([]typetab.Index, len(lam.Params))
	for i, p := range lam.Params {
		pd := g.Arena.Get(p).Payload.(ast.VarDecl)
		t, err := g.resolveSpec(pd.TypeSpec)
		if err != nil {
			return ir.TypedValue{}, err
		}
		paramTypes[i] = t
	}
	retT := typetab.Index(typetab.KindVoid)
	if lam.ReturnType != ast.None {
		t, err := g.resolveSpec(lam.ReturnType)
		if err != nil {
			return ir.TypedValue{}, err
		}
		retT = t
	} else {
		retT = g.deduceLambdaReturn(lam, paramTypes, slots)
	}

	fname := mangle.FunctionName{
		Namespaces:    []string{g.Strings.String(closureName)},
		Name:          "operator()",
		IsConstMethod: !lam.IsMutable,
		Params:        paramTypes,
		ReturnType:    retT,
	}
	var mangled string
	if g.Target == abi.Windows {
		mangled = g.MSVC.Encode(fname)
	} else {
		mangled = g.Itanium.Encode(fname)
	}

	opName := g.Strings.Intern("operator()")
	fnNode := g.Arena.Add(ast.KindFuncDecl, g.Arena.Get(id).Pos, ast.FuncDecl{
		Name: opName, IsOperator: true, Params: lam.Params,
		ReturnType: lam.ReturnType, Body: lam.Body, IsConst: !lam.IsMutable,
	})
	info := FuncInfo{
		MangledName:          mangled,
		ReturnType:           retT,
		ParamTypes:           paramTypes,
		HasHiddenReturnParam: g.isAggregateType(retT) && abi.ClassifyType(g.Types, retT) == abi.ClassMemory,
		IsMethod:             true,
		OwnerType:            closureT,
	}
	g.Functions[fnNode] = info
	g.Scopes.Declare(opName, fnNode)

	captured := append([]captureSlot(nil), slots...)
	g.pending = append(g.pending, func() error {
		return g.genLambdaOperator(info, captured, lam)
	})
	return base, nil
}

// planCaptures turns the capture list into member slots. A default capture
// (`[=]` / `[&]`) takes every local visible at the lambda, innermost
// shadowing outward, in declaration order so the closure layout is
// deterministic; explicit captures then override nothing because the parser
// always lists them separately.
func (g *Generator) planCaptures(id ast.NodeID, lam ast.Lambda) ([]captureSlot, error) {
	thisName := g.Strings.Intern("this")
	var slots []captureSlot
	seen := map[strtab.Handle]bool{}

	addNamed := func(name strtab.Handle, byRef bool) error {
		if seen[name] {
			return nil
		}
		src, ok := g.lookupLocal(name)
		if !ok {
			return g.genError(id, "codegen: capture of undeclared variable %q", g.Strings.String(name))
		}
		seen[name] = true
		slot := captureSlot{Name: name, Member: name, Src: src, OrigType: src.Type}
		if byRef {
			slot.Kind = ast.CaptureByRef
			slot.Type = g.Types.Pointer(src.Type)
		} else {
			slot.Kind = ast.CaptureByValue
			slot.Type = src.Type
		}
		slots = append(slots, slot)
		return nil
	}

	for _, c := range lam.Captures {
		switch c.Kind {
		case ast.CaptureByValue, ast.CaptureByRef:
			byRef := c.Kind == ast.CaptureByRef
			if c.Name == strtab.Invalid {
				for _, lv := range g.visibleLocals() {
					if lv.Name == thisName {
						if !seen[thisName] {
							seen[thisName] = true
							slots = append(slots, captureSlot{Kind: ast.CaptureThis, Name: thisName, Member: g.Strings.Intern("__this"), Type: lv.Type, Src: lv})
						}
						continue
					}
					if err := addNamed(lv.Name, byRef); err != nil {
						return nil, err
					}
				}
				continue
			}
			if err := addNamed(c.Name, byRef); err != nil {
				return nil, err
			}

		case ast.CaptureThis:
			src, ok := g.lookupLocal(thisName)
			if !ok {
				return nil, g.genError(id, "codegen: `this` capture outside a member function")
			}
			if !seen[thisName] {
				seen[thisName] = true
				slots = append(slots, captureSlot{Kind: ast.CaptureThis, Name: thisName, Member: g.Strings.Intern("__this"), Type: src.Type, Src: src})
			}

		case ast.CaptureStarThis:
			src, ok := g.lookupLocal(thisName)
			if !ok {
				return nil, g.genError(id, "codegen: `*this` capture outside a member function")
			}
			if !seen[thisName] {
				seen[thisName] = true
				ownerT := g.Types.Dereference(src.Type)
				slots = append(slots, captureSlot{Kind: ast.CaptureStarThis, Name: thisName, Member: g.Strings.Intern("__copy_this"), Type: ownerT, Src: src})
			}

		case ast.CaptureInit:
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			t, err := g.staticTypeOf(c.Init)
			if err != nil {
				return nil, err
			}
			slots = append(slots, captureSlot{Kind: ast.CaptureInit, Name: c.Name, Member: c.Name, Type: t, Init: c.Init})
		}
	}
	return slots, nil
}

// visibleLocals returns every local the lambda can see, outer scopes first
// and each scope in declaration order, with inner declarations shadowing
// outer ones. Declaration order (never map order) keeps the closure layout,
// and with it the emitted object file, deterministic.
func (g *Generator) visibleLocals() []*localVar {
	byName := map[strtab.Handle]*localVar{}
	var order []strtab.Handle
	for _, scope := range g.localOrder {
		for _, lv := range scope {
			if _, ok := byName[lv.Name]; !ok {
				order = append(order, lv.Name)
			}
			byName[lv.Name] = lv
		}
	}
	out := make([]*localVar, 0, len(order))
	for _, n := range order {
		out = append(out, byName[n])
	}
	return out
}

// emitCaptureStores fills the freshly allocated closure object from the
// enclosing frame, one member at a time.
func (g *Generator) emitCaptureStores(base ir.TypedValue, slots []captureSlot) error {
	for _, s := range slots {
		switch s.Kind {
		case ast.CaptureByValue:
			if g.isAggregateType(s.Type) {
				dst := g.memberAddress(base, s.Offset, s.Type)
				g.emitAggregateCopy(dst, g.typedValue(s.Src.Temp, s.Type), s.Type)
				continue
			}
			g.fn.Emit(ir.OpMemberStore, ir.MemberStore{Base: base, ByteOffset: s.Offset, MemberType: s.Type, Value: g.loadLocal(s.Src)})

		case ast.CaptureByRef:
			var ptr ir.TypedValue
			if s.Src.IsAddress {
				ptr = g.typedValue(s.Src.Temp, s.Type)
			} else {
				ptr = g.addressOfTemp(s.Src.Temp, s.OrigType)
			}
			g.fn.Emit(ir.OpMemberStore, ir.MemberStore{Base: base, ByteOffset: s.Offset, MemberType: s.Type, Value: ptr})

		case ast.CaptureThis:
			g.fn.Emit(ir.OpMemberStore, ir.MemberStore{Base: base, ByteOffset: s.Offset, MemberType: s.Type, Value: g.typedValue(s.Src.Temp, s.Type)})

		case ast.CaptureStarThis:
			dst := g.memberAddress(base, s.Offset, s.Type)
			g.emitAggregateCopy(dst, g.typedValue(s.Src.Temp, s.Type), s.Type)

		case ast.CaptureInit:
			v, err := g.genExpr(s.Init)
			if err != nil {
				return err
			}
			if g.isAggregateType(s.Type) {
				dst := g.memberAddress(base, s.Offset, s.Type)
				g.emitAggregateCopy(dst, v, s.Type)
				continue
			}
			g.fn.Emit(ir.OpMemberStore, ir.MemberStore{Base: base, ByteOffset: s.Offset, MemberType: s.Type, Value: v})
		}
	}
	return nil
}

// memberAddress computes a member's address off a closure base, the same
// ComputeAddress shape genMemberAddress emits.
func (g *Generator) memberAddress(base ir.TypedValue, offset int64, memberT typetab.Index) ir.TypedValue {
	ptrT := g.Types.Pointer(memberT)
	result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
		Base:   base,
		Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: offset, ResultType: memberT}},
		Result: result,
	})
	return g.typedValue(result, memberT)
}

// deduceLambdaReturn infers an unannotated lambda's return type from its
// first value-returning return statement, typed under a throwaway scope
// holding the parameters and captures. A body whose return expression can't
// be statically typed falls back to int, the deduction gap every other
// nested-inference site in this generator shares.
func (g *Generator) deduceLambdaReturn(lam ast.Lambda, paramTypes []typetab.Index, slots []captureSlot) typetab.Index {
	ret := g.findReturnExpr(lam.Body)
	if ret == ast.None {
		return typetab.Index(typetab.KindVoid)
	}
	g.pushScope()
	for i, p := range lam.Params {
		pd := g.Arena.Get(p).Payload.(ast.VarDecl)
		g.declareLocal(pd.Name, &localVar{Temp: -1, Type: paramTypes[i]})
	}
	for _, s := range slots {
		t := s.Type
		switch s.Kind {
		case ast.CaptureByRef:
			t = s.OrigType
		case ast.CaptureStarThis:
			t = g.Types.Pointer(s.Type)
		}
		g.declareLocal(s.Name, &localVar{Temp: -1, Type: t})
	}
	t, err := g.staticTypeOf(ret)
	g.popScope()
	if err != nil {
		return typetab.Index(typetab.KindInt)
	}
	return t
}

// findReturnExpr walks a statement subtree for the first `return expr;`.
func (g *Generator) findReturnExpr(id ast.NodeID) ast.NodeID {
	if id == ast.None {
		return ast.None
	}
	n := g.Arena.Get(id)
	switch n.Kind {
	case ast.KindReturn:
		return n.Payload.(ast.Return).Value
	case ast.KindBlock:
		for _, s := range n.Payload.(ast.Block).Stmts {
			if r := g.findReturnExpr(s); r != ast.None {
				return r
			}
		}
	case ast.KindIf:
		s := n.Payload.(ast.If)
		if r := g.findReturnExpr(s.Then); r != ast.None {
			return r
		}
		return g.findReturnExpr(s.Else)
	case ast.KindWhile:
		return g.findReturnExpr(n.Payload.(ast.While).Body)
	case ast.KindDoWhile:
		return g.findReturnExpr(n.Payload.(ast.DoWhile).Body)
	case ast.KindFor:
		return g.findReturnExpr(n.Payload.(ast.For).Body)
	case ast.KindRangeFor:
		return g.findReturnExpr(n.Payload.(ast.RangeFor).Body)
	case ast.KindSwitch:
		for _, c := range n.Payload.(ast.Switch).Cases {
			for _, s := range c.Body {
				if r := g.findReturnExpr(s); r != ast.None {
					return r
				}
			}
		}
	case ast.KindLabel:
		return g.findReturnExpr(n.Payload.(ast.Label).Stmt)
	case ast.KindTry:
		s := n.Payload.(ast.Try)
		if r := g.findReturnExpr(s.Body); r != ast.None {
			return r
		}
		for _, c := range s.Catches {
			if r := g.findReturnExpr(c.Body); r != ast.None {
				return r
			}
		}
	}
	return ast.None
}

// genLambdaOperator generates the closure's operator() as its own IR
// function: closure pointer first (after any hidden return slot), then the
// declared parameters. Captured names rebind through the closure members —
// by-value members load into fresh locals, by-ref members rebind the
// original object through the stored pointer, and `this` (whether captured
// as a pointer or as the `__copy_this` object) becomes an ordinary pointer
// local, so member lookups inside a `[*this]` body resolve through the
// copy, never the enclosing frame's object.
func (g *Generator) genLambdaOperator(info FuncInfo, slots []captureSlot, lam ast.Lambda) error {
	conv := ir.ConvSystemV
	if g.Target == abi.Windows {
		conv = ir.ConvWindows
	}
	ptrClosure := g.Types.Pointer(info.OwnerType)

	irParams := make([]ir.Param, 0, len(lam.Params)+2)
	if info.HasHiddenReturnParam {
		irParams = append(irParams, ir.Param{Type: g.Types.Pointer(info.ReturnType)})
	}
	irParams = append(irParams, ir.Param{Type: ptrClosure, IsThis: true})
	for i, p := range lam.Params {
		pd := g.Arena.Get(p).Payload.(ast.VarDecl)
		irParams = append(irParams, ir.Param{Name: pd.Name, Type: info.ParamTypes[i]})
	}

	g.fn = g.Module.NewFunction(ir.FunctionDecl{
		MangledName:          info.MangledName,
		ReturnType:           info.ReturnType,
		Params:               irParams,
		HasHiddenReturnParam: info.HasHiddenReturnParam,
		Conv:                 conv,
	})
	g.locals = nil
	g.localOrder = nil
	g.loops = nil
	g.fnPacks = nil
	g.pushScope()

	for i, p := range irParams {
		temp := g.fn.NewTemp(p.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
		if temp != i {
			return fmt.Errorf("codegen: lambda parameter temp %d did not land at its required slot %d", temp, i)
		}
		if p.IsThis || p.Name == 0 {
			continue
		}
		g.declareLocal(p.Name, &localVar{Temp: temp, Type: p.Type})
	}

	closureIdx := 0
	if info.HasHiddenReturnParam {
		closureIdx = 1
	}
	closureTV := g.typedValue(closureIdx, ptrClosure)

	for _, s := range slots {
		switch s.Kind {
		case ast.CaptureByValue, ast.CaptureInit:
			if g.isAggregateType(s.Type) {
				addr := g.fn.NewTemp(g.Types.Pointer(s.Type), 64, ir.ValueCategory{Kind: ir.CatPRValue})
				g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
					Base:   closureTV,
					Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: s.Offset, ResultType: s.Type}},
					Result: addr,
				})
				g.declareLocal(s.Name, &localVar{Temp: addr, Type: s.Type, IsAddress: true})
				continue
			}
			tmp := g.fn.NewTemp(s.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
			g.fn.Emit(ir.OpMemberLoad, ir.MemberLoad{Base: closureTV, ByteOffset: s.Offset, MemberType: s.Type, Result: tmp})
			g.declareLocal(s.Name, &localVar{Temp: tmp, Type: s.Type})

		case ast.CaptureByRef:
			tmp := g.fn.NewTemp(s.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
			g.fn.Emit(ir.OpMemberLoad, ir.MemberLoad{Base: closureTV, ByteOffset: s.Offset, MemberType: s.Type, Result: tmp})
			g.declareLocal(s.Name, &localVar{Temp: tmp, Type: s.OrigType, IsAddress: true})

		case ast.CaptureThis:
			tmp := g.fn.NewTemp(s.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
			g.fn.Emit(ir.OpMemberLoad, ir.MemberLoad{Base: closureTV, ByteOffset: s.Offset, MemberType: s.Type, Result: tmp})
			g.declareLocal(s.Name, &localVar{Temp: tmp, Type: s.Type})

		case ast.CaptureStarThis:
			ptrOwner := g.Types.Pointer(s.Type)
			addr := g.fn.NewTemp(ptrOwner, 64, ir.ValueCategory{Kind: ir.CatPRValue})
			g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
				Base:   closureTV,
				Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: s.Offset, ResultType: s.Type}},
				Result: addr,
			})
			g.declareLocal(s.Name, &localVar{Temp: addr, Type: ptrOwner})
		}
	}

	if err := g.genStmt(lam.Body); err != nil {
		g.popScope()
		return err
	}
	g.emitScopeDestructors(g.popScope())

	if len(g.fn.Instructions) == 0 || g.fn.Instructions[len(g.fn.Instructions)-1].Op != ir.OpReturn {
		if info.ReturnType == typetab.Index(typetab.KindVoid) {
			g.fn.Emit(ir.OpReturn, ir.Return{Void: true})
		}
	}
	return nil
}
