package sym

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/strtab"
)

// Specialization is a partial or full specialization of a primary template.
type Specialization struct {
	Pattern ast.NodeID // StructDecl or FuncDecl
	Params  []ast.NodeID
	// Rank orders partial-specialization preference: higher is more
	// specialized. MostSpecialized compares Rank alone; Params plays no part
	// in the ordering.
	Rank int
}

// OutsideMember is a member function/variable defined outside the class
// body of a template, e.g. `template<class T> void Box<T>::foo() {...}`,
// keyed by member name (and, when overloaded, signature handled by the
// caller matching structurally).
type OutsideMember struct {
	MemberName strtab.Handle
	Pattern    ast.NodeID
}

// TemplateEntry is everything the registry stores per primary template name.
type TemplateEntry struct {
	Handle          TemplateHandle
	Name            strtab.Handle
	Primary         ast.NodeID // TemplateDecl node
	Specializations []Specialization
	OutsideMembers  []OutsideMember
}

// Registry stores primary templates, their specializations, and the
// instantiation cache, for the whole compilation (§4.3).
type Registry struct {
	entries []TemplateEntry
	byName  map[strtab.Handle][]TemplateHandle
	Cache   *InstantiationCache

	// maxInstantiationDepth bounds recursive instantiation chains (§4.3
	// failure modes, §9(d)); exceeding it is a TemplateError.
	maxInstantiationDepth int
	activeChain           []InstantiationKey
}

// DefaultMaxInstantiationDepth matches common real-compiler defaults
// (clang/gcc both default near this range).
const DefaultMaxInstantiationDepth = 1024

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:                make(map[strtab.Handle][]TemplateHandle),
		Cache:                 NewInstantiationCache(),
		maxInstantiationDepth: DefaultMaxInstantiationDepth,
	}
}

// Declare registers a new primary template and returns its handle.
func (r *Registry) Declare(name strtab.Handle, primary ast.NodeID) TemplateHandle {
	h := TemplateHandle(len(r.entries))
	r.entries = append(r.entries, TemplateEntry{Handle: h, Name: name, Primary: primary})
	r.byName[name] = append(r.byName[name], h)
	return h
}

// Lookup returns every primary template registered under name (overloaded
// function templates share a name; class templates do not).
func (r *Registry) Lookup(name strtab.Handle) []TemplateHandle {
	return r.byName[name]
}

// Entry returns the TemplateEntry for h.
func (r *Registry) Entry(h TemplateHandle) *TemplateEntry {
	return &r.entries[h]
}

// AddSpecialization records a partial/full specialization against h.
func (r *Registry) AddSpecialization(h TemplateHandle, spec Specialization) {
	r.entries[h].Specializations = append(r.entries[h].Specializations, spec)
}

// AddOutsideMember records an out-of-class member definition against h.
func (r *Registry) AddOutsideMember(h TemplateHandle, m OutsideMember) {
	r.entries[h].OutsideMembers = append(r.entries[h].OutsideMembers, m)
}

// MostSpecialized selects the unique most-specialized specialization among
// candidates (those whose pattern already unified with the supplied
// arguments — unification itself is sema's job, this just orders the
// survivors). It returns ok=false (and a zero Specialization) only when
// candidates is empty. Otherwise ok is true, best is the first candidate
// with the highest Rank, and ambiguous reports that another candidate ties
// that Rank.
func MostSpecialized(candidates []Specialization) (best Specialization, ambiguous bool, ok bool) {
	if len(candidates) == 0 {
		return Specialization{}, false, false
	}
	best = candidates[0]
	tie := false
	for _, c := range candidates[1:] {
		if c.Rank > best.Rank {
			best = c
			tie = false
		} else if c.Rank == best.Rank {
			tie = true
		}
	}
	return best, tie, true
}

// EnterInstantiation pushes key onto the active instantiation chain (used
// both for depth-limiting and for the diagnostic "instantiated from ..."
// chain in §7). It returns an error message if the depth limit is exceeded
// or key is already on the chain (direct recursive instantiation).
func (r *Registry) EnterInstantiation(key InstantiationKey) (ok bool, reason string) {
	if len(r.activeChain) >= r.maxInstantiationDepth {
		return false, "template instantiation depth limit exceeded"
	}
	for _, k := range r.activeChain {
		if k.digest() == key.digest() {
			return false, "recursive template instantiation"
		}
	}
	r.activeChain = append(r.activeChain, key)
	return true, ""
}

// ExitInstantiation pops the most recently entered instantiation.
func (r *Registry) ExitInstantiation() {
	r.activeChain = r.activeChain[:len(r.activeChain)-1]
}

// ActiveChain returns the current instantiation chain, outermost first, for
// building the §7 "instantiated from ... at ..." diagnostic suffix.
func (r *Registry) ActiveChain() []InstantiationKey {
	return append([]InstantiationKey(nil), r.activeChain...)
}
