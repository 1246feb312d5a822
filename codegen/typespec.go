package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// resolveSpec turns a TypeSpec node into the concrete type-table entry it
// denotes, applying the declarator's pointer/reference/cv shape on top of
// the base type. A spec naming a class declared earlier in the unit
// resolves through the type table's name index; the `auto` placeholder is
// the caller's job (specIsAuto) since only the initializer can supply its
// type.
func (g *Generator) resolveSpec(id ast.NodeID) (typetab.Index, error) {
	ts := g.Arena.Get(id).Payload.(ast.TypeSpec)
	base := ts.Resolved
	if base == typetab.Void && ts.Dependent {
		if q, ok := g.templateSpec(ts); ok {
			inst, err := g.instantiateClassSpec(id, q)
			if err != nil {
				return typetab.Void, err
			}
			base = inst
		} else {
			name, ok := g.specName(ts)
			if !ok {
				return typetab.Void, g.genError(id, "codegen: unresolved dependent type")
			}
			idx, found := g.Types.LookupStruct(name)
			if !found {
				return typetab.Void, g.genError(id, "codegen: unknown type %q", g.Strings.String(name))
			}
			base = idx
		}
	}
	t := base
	for i := 0; i < ts.PointerDepth; i++ {
		t = g.Types.Pointer(t)
	}
	if ts.Ref != typetab.RefNone {
		t = g.Types.Reference(t, ts.Ref)
	}
	if ts.CV != typetab.CVNone {
		t = g.Types.Qualify(t, ts.CV)
	}
	return t, nil
}

// resolveSpecOrVoid is resolveSpec for the registration pass, which has no
// error channel of its own: an unresolvable spec degrades to void, the same
// "fails later at the use site" behavior an unregistered function has.
func (g *Generator) resolveSpecOrVoid(id ast.NodeID) typetab.Index {
	t, err := g.resolveSpec(id)
	if err != nil {
		return typetab.Void
	}
	return t
}

// specIsAuto reports whether the TypeSpec node is the `auto` placeholder.
func (g *Generator) specIsAuto(id ast.NodeID) bool {
	ts, ok := g.Arena.Get(id).Payload.(ast.TypeSpec)
	return ok && ts.Dependent && g.Strings.String(ts.DependentName) == "auto"
}

// templateSpec recognizes a `Name<Args...>` type spec: a single-segment
// qualified name carrying template arguments.
func (g *Generator) templateSpec(ts ast.TypeSpec) (ast.QualifiedId, bool) {
	if ts.QualifiedName == ast.None {
		return ast.QualifiedId{}, false
	}
	n := g.Arena.Get(ts.QualifiedName)
	if n.Kind != ast.KindQualifiedId {
		return ast.QualifiedId{}, false
	}
	q := n.Payload.(ast.QualifiedId)
	if q.Left != ast.None || len(q.TemplateArgs) == 0 {
		return ast.QualifiedId{}, false
	}
	return q, true
}

// instantiateClassSpec resolves the template arguments (types only — a
// non-type argument here is a reported gap, not a silent misparse), hands
// the instantiation to the parser's class driver, and on first sight of
// the resulting type registers its member functions and queues their body
// generation on the pending worklist.
func (g *Generator) instantiateClassSpec(id ast.NodeID, q ast.QualifiedId) (typetab.Index, error) {
	if g.InstantiateClass == nil {
		return typetab.Void, g.genError(id, "codegen: no class-template instantiation is available here")
	}
	args := make([]typetab.Index, len(q.TemplateArgs))
	for i, a := range q.TemplateArgs {
		if _, ok := g.Arena.Get(a).Payload.(ast.TypeSpec); !ok {
			return typetab.Void, g.genError(a, "codegen: non-type template arguments are not supported for class instantiation")
		}
		t, err := g.resolveSpec(a)
		if err != nil {
			return typetab.Void, err
		}
		args[i] = t
	}
	tidx, node, err := g.InstantiateClass(q.Segment, args)
	if err != nil {
		return typetab.Void, g.genError(id, "codegen: %v", err)
	}
	if g.classInstances == nil {
		g.classInstances = make(map[typetab.Index]bool)
	}
	if !g.classInstances[tidx] {
		g.classInstances[tidx] = true
		g.registerDecls([]ast.NodeID{node}, nil, typetab.Void)
		inst := node
		g.pending = append(g.pending, func() error { return g.generateDecls(inst) })
	}
	return tidx, nil
}

// specName extracts the bare class name a spec was spelled with: the
// recorded dependent name, or a single-segment qualified name's segment.
func (g *Generator) specName(ts ast.TypeSpec) (strtab.Handle, bool) {
	if ts.DependentName != strtab.Invalid {
		return ts.DependentName, true
	}
	if ts.QualifiedName != ast.None {
		n := g.Arena.Get(ts.QualifiedName)
		if n.Kind == ast.KindQualifiedId {
			q := n.Payload.(ast.QualifiedId)
			if q.Left == ast.None {
				return q.Segment, true
			}
		}
	}
	return strtab.Invalid, false
}
