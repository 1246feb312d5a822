package sym

import (
	"fmt"
	"strings"

	"github.com/oxhq/flashcpp/typetab"
)

// TemplateHandle identifies a primary template in a TemplateRegistry.
type TemplateHandle uint32

// InstantiationKey uniquely identifies one instantiation of a template,
// per §3.2/§4.3: the template plus its type and non-type argument vectors,
// with room for template-template and variadic tails.
type InstantiationKey struct {
	Template       TemplateHandle
	TypeArgs       []typetab.Index
	NonTypeArgs    []int64
	TemplateArgs   []TemplateHandle // template-template arguments
	VariadicTail   []typetab.Index  // expanded pack tail, if any
	ScopeQualifier string           // enclosing-scope disambiguator for member templates
}

// digest renders a canonical, comparable string so InstantiationKey values
// (which embed slices, and so aren't natively comparable) can key a Go map.
// Equal keys always render equal digests and vice versa.
func (k InstantiationKey) digest() string {
	var b strings.Builder
	fmt.Fprintf(&b, "t%d|", k.Template)
	for _, t := range k.TypeArgs {
		fmt.Fprintf(&b, "T%d,", t)
	}
	b.WriteByte('|')
	for _, n := range k.NonTypeArgs {
		fmt.Fprintf(&b, "N%d,", n)
	}
	b.WriteByte('|')
	for _, tt := range k.TemplateArgs {
		fmt.Fprintf(&b, "TT%d,", tt)
	}
	b.WriteByte('|')
	for _, v := range k.VariadicTail {
		fmt.Fprintf(&b, "V%d,", v)
	}
	b.WriteByte('|')
	b.WriteString(k.ScopeQualifier)
	return b.String()
}

// InstantiationResult is the cached outcome of resolving a key: a class
// TypeIndex, a function's mangled name and type, or a recorded failure.
type InstantiationResult struct {
	ClassType    typetab.Index
	FuncMangled  string
	FuncType     typetab.Index
	Failed       bool
	FailMessage  string
}

// InstantiationCache maps InstantiationKey to InstantiationResult with
// never-invalidated semantics (§3.3): once a key resolves to a value, every
// subsequent lookup returns the same value, for the life of the compilation.
type InstantiationCache struct {
	byDigest map[string]InstantiationResult
	Hits     int64
	Misses   int64
}

// NewInstantiationCache returns an empty cache.
func NewInstantiationCache() *InstantiationCache {
	return &InstantiationCache{byDigest: make(map[string]InstantiationResult)}
}

// Lookup returns the cached result for key, if any.
func (c *InstantiationCache) Lookup(key InstantiationKey) (InstantiationResult, bool) {
	v, ok := c.byDigest[key.digest()]
	if ok {
		c.Hits++
	} else {
		c.Misses++
	}
	return v, ok
}

// Store records key's result. Storing a key that already has a result is a
// programming error (the cache is append-once): the existing value always
// wins, matching "soundness" testable property in §8.
func (c *InstantiationCache) Store(key InstantiationKey, result InstantiationResult) InstantiationResult {
	d := key.digest()
	if existing, ok := c.byDigest[d]; ok {
		return existing
	}
	c.byDigest[d] = result
	return result
}

// Digest exposes the canonical key encoding for the persistent cache backend
// (cache.Store) to use as its primary key / cache-file name.
func (k InstantiationKey) Digest() string { return k.digest() }

// Preload seeds digest with result without touching Hits/Misses, for a
// persistent cache backend (cache.Store) to hydrate this process's cache
// from a prior run before any lookup happens. An already-present digest is
// left untouched, the same first-writer-wins rule Store enforces.
func (c *InstantiationCache) Preload(digest string, result InstantiationResult) {
	if _, ok := c.byDigest[digest]; ok {
		return
	}
	c.byDigest[digest] = result
}

// Entries returns a snapshot of every digest/result pair recorded so far, for
// a persistent cache backend to flush at the end of a compilation run.
func (c *InstantiationCache) Entries() map[string]InstantiationResult {
	out := make(map[string]InstantiationResult, len(c.byDigest))
	for k, v := range c.byDigest {
		out[k] = v
	}
	return out
}
