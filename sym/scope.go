package sym

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
)

// ScopeKind classifies a lookup frame.
type ScopeKind uint8

const (
	ScopeBlock ScopeKind = iota
	ScopeFunction
	ScopeClass
	ScopeNamespace
	ScopeTemplate
)

// Scope is one name-lookup frame. Block/Function/Template scopes are
// discarded on exit; Namespace/Class scopes persist (owned by the
// NamespaceRegistry / typetab.StructInfo respectively, but mirrored here
// while active so lookup can walk a uniform stack).
type Scope struct {
	Kind      ScopeKind
	Namespace NamespaceHandle
	symbols   map[strtab.Handle][]ast.NodeID // name -> overload set, declaration order
	usingDirectives []NamespaceHandle
	aliases   map[strtab.Handle]ast.NodeID
}

func newScope(kind ScopeKind, ns NamespaceHandle) *Scope {
	return &Scope{
		Kind:      kind,
		Namespace: ns,
		symbols:   make(map[strtab.Handle][]ast.NodeID),
		aliases:   make(map[strtab.Handle]ast.NodeID),
	}
}

// Declare adds decl to name's overload set in this scope.
func (s *Scope) Declare(name strtab.Handle, decl ast.NodeID) {
	s.symbols[name] = append(s.symbols[name], decl)
}

// Lookup returns name's overload set declared directly in this scope.
func (s *Scope) Lookup(name strtab.Handle) ([]ast.NodeID, bool) {
	v, ok := s.symbols[name]
	return v, ok
}

// Stack is the per-parser stack of active scopes, innermost last. Lookup
// order, per §4.3: innermost function -> enclosing class scopes (innermost
// outward) -> enclosing namespace scopes (innermost outward) -> global.
type Stack struct {
	frames []*Scope
	namespaces *NamespaceRegistry
}

// NewStack returns a Stack seeded with the global-namespace scope.
func NewStack(namespaces *NamespaceRegistry) *Stack {
	s := &Stack{namespaces: namespaces}
	s.frames = append(s.frames, newScope(ScopeNamespace, Global))
	return s
}

// Push opens a new scope.
func (s *Stack) Push(kind ScopeKind, ns NamespaceHandle) *Scope {
	sc := newScope(kind, ns)
	s.frames = append(s.frames, sc)
	return sc
}

// Pop closes the innermost scope and returns it.
func (s *Stack) Pop() *Scope {
	n := len(s.frames)
	sc := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return sc
}

// Depth reports how many scopes are open, for the "scope hygiene" testable
// property (§8): after parsing, Depth() must be 1 (just the global scope).
func (s *Stack) Depth() int { return len(s.frames) }

// Current returns the innermost scope.
func (s *Stack) Current() *Scope { return s.frames[len(s.frames)-1] }

// Declare adds a declaration to the innermost scope.
func (s *Stack) Declare(name strtab.Handle, decl ast.NodeID) {
	s.Current().Declare(name, decl)
}

// Lookup resolves name following §4.3's ordering: innermost function scope
// outward through class scopes, then namespace scopes (consulting
// using-directives at the namespace level where declared), to global.
func (s *Stack) Lookup(name strtab.Handle) ([]ast.NodeID, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if v, ok := s.frames[i].symbols[name]; ok {
			return v, true
		}
	}
	// Using-directives pull in another namespace's members at the point the
	// directive was declared; walk the namespace chain's using-directives
	// as a fallback pass after the lexical scope stack is exhausted.
	for i := len(s.frames) - 1; i >= 0; i-- {
		ns := s.frames[i].Namespace
		for _, anc := range s.namespaces.Ancestors(ns) {
			for _, used := range s.namespaces.Get(anc).UsingDirectives {
				if v, ok := s.lookupInNamespaceScope(used, name); ok {
					return v, true
				}
			}
		}
	}
	return nil, false
}

func (s *Stack) lookupInNamespaceScope(ns NamespaceHandle, name strtab.Handle) ([]ast.NodeID, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == ScopeNamespace && s.frames[i].Namespace == ns {
			return s.frames[i].Lookup(name)
		}
	}
	return nil, false
}
