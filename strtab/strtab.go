// Package strtab implements process-wide interning of identifiers, qualified
// names, and type-descriptor text into compact, comparable handles.
package strtab

import "sync"

// Handle is an opaque 32-bit index into a Table. Two handles compare equal
// iff the strings they were interned from compare equal.
type Handle uint32

// Invalid is the zero value returned by lookups that find nothing.
const Invalid Handle = 0

// Table is an append-only string interner. Strings are never removed or
// mutated once interned; the backing slice only grows. A Table is safe only
// for the single-threaded access pattern described by the core's concurrency
// model (one Table per compilation Session, shared by its translation units);
// Lock guards against accidental
// reentrant use rather than true concurrent access.
type Table struct {
	mu      sync.Mutex
	strings []string       // index 0 is reserved (Invalid)
	index   map[string]Handle
	hashes  []uint64
}

// New returns an empty Table with the zero handle already reserved.
func New() *Table {
	t := &Table{
		strings: make([]string, 1, 256),
		index:   make(map[string]Handle, 256),
		hashes:  make([]uint64, 1, 256),
	}
	return t
}

// Intern returns the Handle for s, assigning a new one if s was never seen.
func (t *Table) Intern(s string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.index[s]; ok {
		return h
	}
	h := Handle(len(t.strings))
	t.strings = append(t.strings, s)
	t.hashes = append(t.hashes, fnv64(s))
	t.index[s] = h
	return h
}

// Lookup returns the Handle for s without interning it, and whether it existed.
func (t *Table) Lookup(s string) (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.index[s]
	return h, ok
}

// String returns the interned text for h. It panics on an out-of-range
// handle, which indicates a compiler-internal bug (a handle minted by a
// different Table, or index corruption), not a user-facing error.
func (t *Table) String(h Handle) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.strings[h]
}

// Hash returns the cached 64-bit hash of the string behind h.
func (t *Table) Hash(h Handle) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hashes[h]
}

// Len reports how many distinct strings (including the reserved zero entry)
// have been interned.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.strings)
}

func fnv64(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
