// Package sym implements name-resolution state: the namespace registry,
// per-parser scope stack, and the template pattern/instantiation registry.
package sym

import "github.com/oxhq/flashcpp/strtab"

// NamespaceHandle indexes into a NamespaceRegistry. NamespaceHandle(0) is the
// global namespace.
type NamespaceHandle uint32

// Global is the reserved handle for the translation unit's global namespace.
const Global NamespaceHandle = 0

// NamespaceInfo is one registry entry.
type NamespaceInfo struct {
	Name   strtab.Handle // strtab.Invalid for an anonymous namespace
	Parent NamespaceHandle
	FQN    strtab.Handle // pre-computed "a::b::c", one hash per lookup
	Depth  int
	UsingDirectives []NamespaceHandle
	Aliases         map[strtab.Handle]NamespaceHandle
}

// NamespaceRegistry owns every NamespaceInfo for a translation unit.
type NamespaceRegistry struct {
	infos   []NamespaceInfo
	strings *strtab.Table
	// children maps (parent, name) to the handle of an already-opened
	// namespace, so reopening `namespace n { ... }` twice shares state.
	children map[namespaceKey]NamespaceHandle
	anonCounter int
}

type namespaceKey struct {
	parent NamespaceHandle
	name   strtab.Handle
}

// NewNamespaceRegistry returns a registry pre-populated with the global
// namespace.
func NewNamespaceRegistry(strings *strtab.Table) *NamespaceRegistry {
	r := &NamespaceRegistry{strings: strings, children: make(map[namespaceKey]NamespaceHandle)}
	r.infos = append(r.infos, NamespaceInfo{FQN: strtab.Invalid, Aliases: map[strtab.Handle]NamespaceHandle{}})
	return r
}

// Get returns the NamespaceInfo for h.
func (r *NamespaceRegistry) Get(h NamespaceHandle) NamespaceInfo {
	return r.infos[h]
}

// OpenOrCreate returns the handle for `namespace name` nested under parent,
// creating and computing its fully-qualified name once if this is the first
// time it's opened. name == strtab.Invalid creates a fresh anonymous
// namespace on every call (never shared across separate anonymous blocks);
// anonCounter counts them, but no suffix enters the namespace's FQN, which
// is built from the empty name like any other segment.
func (r *NamespaceRegistry) OpenOrCreate(parent NamespaceHandle, name strtab.Handle) NamespaceHandle {
	if name == strtab.Invalid {
		r.anonCounter++
		h := r.create(parent, name)
		return h
	}
	key := namespaceKey{parent, name}
	if h, ok := r.children[key]; ok {
		return h
	}
	h := r.create(parent, name)
	r.children[key] = h
	return h
}

func (r *NamespaceRegistry) create(parent NamespaceHandle, name strtab.Handle) NamespaceHandle {
	parentInfo := r.infos[parent]
	fqn := r.computeFQN(parentInfo, name)
	info := NamespaceInfo{
		Name:    name,
		Parent:  parent,
		FQN:     fqn,
		Depth:   parentInfo.Depth + 1,
		Aliases: map[strtab.Handle]NamespaceHandle{},
	}
	h := NamespaceHandle(len(r.infos))
	r.infos = append(r.infos, info)
	return h
}

func (r *NamespaceRegistry) computeFQN(parent NamespaceInfo, name strtab.Handle) strtab.Handle {
	nameStr := r.strings.String(name)
	if parent.FQN == strtab.Invalid {
		return r.strings.Intern(nameStr)
	}
	return r.strings.Intern(r.strings.String(parent.FQN) + "::" + nameStr)
}

// AddUsingDirective records `using namespace other;` declared while inside h.
func (r *NamespaceRegistry) AddUsingDirective(h, other NamespaceHandle) {
	r.infos[h].UsingDirectives = append(r.infos[h].UsingDirectives, other)
}

// AddAlias records a namespace alias `namespace alias = target;` declared
// while inside h.
func (r *NamespaceRegistry) AddAlias(h NamespaceHandle, alias strtab.Handle, target NamespaceHandle) {
	r.infos[h].Aliases[alias] = target
}

// Ancestors returns h and every enclosing namespace, innermost first, ending
// with Global.
func (r *NamespaceRegistry) Ancestors(h NamespaceHandle) []NamespaceHandle {
	var out []NamespaceHandle
	for {
		out = append(out, h)
		if h == Global {
			return out
		}
		h = r.infos[h].Parent
	}
}
