package codegen

import (
	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// Generate lowers every function in one translation unit's top-level
// declaration list into g.Module. Registration runs as a complete pass
// before any body is generated, so a call to a function declared later in
// the file (or a pair of mutually recursive methods) resolves the same way
// it would against the parser's own forward-declared scope (§4.4).
//
// Template patterns (FuncDecl/StructDecl wrapped in a TemplateDecl) carry no
// concrete types of their own and are skipped here; their instantiations are
// ordinary FuncDecl nodes the Instantiate callback produces on demand when a
// call site needs one, queued on the pending worklist and generated between
// top-level declarations.
func (g *Generator) Generate(decls []ast.NodeID) error {
	g.registerDecls(decls, nil, typetab.Void)
	for _, id := range decls {
		if err := g.generateDecls(id); err != nil {
			return err
		}
		if err := g.drainPending(); err != nil {
			return err
		}
	}
	return g.drainPending()
}

// drainPending generates every deferred function body queued while the last
// top-level declaration was being generated: template instantiations
// discovered at call sites and lambda operator() bodies. Work items may
// queue further items (a lambda inside an instantiated template body), so
// the drain loops until the queue is empty.
func (g *Generator) drainPending() error {
	for len(g.pending) > 0 {
		work := g.pending[0]
		g.pending = g.pending[1:]
		if err := work(); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) registerDecls(decls []ast.NodeID, namespaces []string, ownerType typetab.Index) {
	for _, id := range decls {
		n := g.Arena.Get(id)
		switch n.Kind {
		case ast.KindFuncDecl:
			g.registerFunc(id, n.Payload.(ast.FuncDecl), namespaces, ownerType)
		case ast.KindVarDecl:
			if ownerType == typetab.Void {
				g.registerGlobal(id, n.Payload.(ast.VarDecl), namespaces)
			}
		case ast.KindStructDecl:
			sd := n.Payload.(ast.StructDecl)
			classNs := append(append([]string{}, namespaces...), g.Strings.String(sd.Name))
			g.registerDecls(sd.Members, classNs, sd.StructType)
		case ast.KindNamespaceDecl:
			nd := n.Payload.(ast.NamespaceDecl)
			ns := namespaces
			if nd.Name != 0 {
				ns = append(append([]string{}, namespaces...), g.Strings.String(nd.Name))
			}
			g.registerDecls(nd.Members, ns, ownerType)
		}
	}
}

func (g *Generator) registerFunc(id ast.NodeID, fn ast.FuncDecl, namespaces []string, ownerType typetab.Index) {
	if len(fn.TemplateParams) > 0 {
		return
	}
	paramTypes := make([]typetab.Index, len(fn.Params))
	for i, p := range fn.Params {
		pd := g.Arena.Get(p).Payload.(ast.VarDecl)
		paramTypes[i] = g.resolveSpecOrVoid(pd.TypeSpec)
	}
	returnType := typetab.Index(typetab.KindVoid)
	if fn.ReturnType != ast.None {
		returnType = g.resolveSpecOrVoid(fn.ReturnType)
	}
	isMethod := ownerType != typetab.Void
	hasHiddenReturn := g.isAggregateType(returnType) && abi.ClassifyType(g.Types, returnType) == abi.ClassMemory

	info := FuncInfo{
		MangledName:          mangledName(g, fn, namespaces, ownerType, paramTypes, returnType),
		ReturnType:           returnType,
		ParamTypes:           paramTypes,
		HasHiddenReturnParam: hasHiddenReturn,
		IsMethod:             isMethod,
		OwnerType:            ownerType,
		IsCtor:               fn.IsConstructor,
		IsDtor:               fn.IsDestructor,
	}
	g.Functions[id] = info
	g.Scopes.Declare(fn.Name, id)
}

func (g *Generator) generateDecls(id ast.NodeID) error {
	n := g.Arena.Get(id)
	switch n.Kind {
	case ast.KindFuncDecl:
		return g.generateFunc(id, n.Payload.(ast.FuncDecl))
	case ast.KindStructDecl:
		sd := n.Payload.(ast.StructDecl)
		for _, m := range sd.Members {
			if err := g.generateDecls(m); err != nil {
				return err
			}
		}
	case ast.KindNamespaceDecl:
		nd := n.Payload.(ast.NamespaceDecl)
		for _, m := range nd.Members {
			if err := g.generateDecls(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// generateFunc lowers one function body. Parameter TempVars are reserved
// first, in declaration order, before any other temp is allocated — the
// contract lower's frame layout relies on to find each parameter's spill
// slot by TempVar id alone.
func (g *Generator) generateFunc(id ast.NodeID, fn ast.FuncDecl) error {
	if len(fn.TemplateParams) > 0 || fn.Body == ast.None {
		return nil
	}
	info, ok := g.Functions[id]
	if !ok {
		return g.genError(id, "codegen: function was not registered before code generation")
	}

	conv := ir.ConvSystemV
	if g.Target == abi.Windows {
		conv = ir.ConvWindows
	}
	irParams := make([]ir.Param, 0, len(fn.Params)+1)
	if info.HasHiddenReturnParam {
		irParams = append(irParams, ir.Param{Type: g.Types.Pointer(info.ReturnType), IsThis: false})
	}
	if info.IsMethod && !fn.IsStatic {
		irParams = append(irParams, ir.Param{Type: g.Types.Pointer(info.OwnerType), IsThis: true})
	}
	for i, p := range fn.Params {
		pd := g.Arena.Get(p).Payload.(ast.VarDecl)
		irParams = append(irParams, ir.Param{Name: pd.Name, Type: info.ParamTypes[i]})
	}

	g.fn = g.Module.NewFunction(ir.FunctionDecl{
		MangledName:          info.MangledName,
		ReturnType:           info.ReturnType,
		Params:               irParams,
		HasHiddenReturnParam: info.HasHiddenReturnParam,
		Conv:                 conv,
		IsNoreturn:           fn.IsNoreturn,
	})
	g.locals = nil
	g.localOrder = nil
	g.loops = nil
	g.fnPacks = nil
	if len(fn.Packs) > 0 {
		g.fnPacks = make(map[strtab.Handle]ast.PackBinding, len(fn.Packs))
		for _, pb := range fn.Packs {
			g.fnPacks[pb.Name] = pb
		}
	}
	g.pushScope()

	for i, p := range irParams {
		temp := g.fn.NewTemp(p.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
		if temp != i {
			return g.genError(id, "codegen: parameter temp %d did not land at its required slot %d", temp, i)
		}
		if p.IsThis {
			continue
		}
		if p.Name == 0 {
			continue
		}
		g.declareLocal(p.Name, &localVar{Temp: temp, Type: p.Type})
	}
	if info.IsMethod && !fn.IsStatic {
		thisIdx := 0
		if info.HasHiddenReturnParam {
			thisIdx = 1
		}
		g.declareLocal(g.Strings.Intern("this"), &localVar{Temp: thisIdx, Type: irParams[thisIdx].Type})
	}

	if err := g.genStmt(fn.Body); err != nil {
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
