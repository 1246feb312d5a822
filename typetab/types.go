// Package typetab owns the process-wide, append-only table of TypeInfo
// records and the StructInfo layouts they point into.
package typetab

import (
	"fmt"

	"github.com/oxhq/flashcpp/strtab"
)

// Index is a stable index into a Table's TypeInfo array. Index(0) is always
// void.
type Index uint32

// Void is the reserved index for the void type.
const Void Index = 0

// BaseKind classifies the fundamental shape of a type before cv-qualifiers,
// pointer depth, or reference kind are applied.
type BaseKind uint8

const (
	KindVoid BaseKind = iota
	KindBool
	KindChar
	KindSChar
	KindUChar
	KindWChar
	KindChar8
	KindChar16
	KindChar32
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindLong
	KindULong
	KindLongLong
	KindULongLong
	KindFloat
	KindDouble
	KindLongDouble
	KindNullptr
	KindStruct  // StructInfo holds the layout
	KindEnum    // StructInfo holds the enumerator table
	KindFunction
	KindDependent // template-parameter-dependent placeholder
)

// ReferenceKind distinguishes value, lvalue-reference, and rvalue-reference
// types, orthogonal to pointer depth.
type ReferenceKind uint8

const (
	RefNone ReferenceKind = iota
	RefLValue
	RefRValue
)

// CVQual is a bitmask of const/volatile qualification.
type CVQual uint8

const (
	CVNone     CVQual = 0
	CVConst    CVQual = 1 << 0
	CVVolatile CVQual = 1 << 1
)

// FunctionSig describes a function type's signature for KindFunction entries.
type FunctionSig struct {
	Return   Index
	Params   []Index
	Variadic bool
}

// Info is one entry of the type table. Once assigned an Index, an Info's
// fields are frozen except for Struct, whose StructInfo is mutated only
// while the owning class is being parsed (see StructInfo.Freeze).
type Info struct {
	Base         BaseKind
	CV           CVQual
	PointerDepth int // &x increments, *p decrements; never negative
	ArrayRank    []int64 // -1 entries mean an unbounded dimension
	Ref          ReferenceKind
	Struct       StructIndex // valid when Base == KindStruct or KindEnum
	Func         *FunctionSig
	Name         strtab.Handle // for Dependent / template-parameter types
}

// Table is the process-wide (one per compilation Session, shared by its
// translation units) growable array of Info
// records plus the StructInfo arena they reference.
type Table struct {
	infos   []Info
	structs []*StructInfo
	strings *strtab.Table
}

// New returns a Table pre-populated with the primitive types void, bool, the
// char/int/float/double families, and nullptr_t — the lifecycle §3.4 requires
// to exist before any declaration is parsed.
func New(strings *strtab.Table) *Table {
	t := &Table{strings: strings}
	prime := []BaseKind{
		KindVoid, KindBool, KindChar, KindSChar, KindUChar, KindWChar,
		KindChar8, KindChar16, KindChar32, KindShort, KindUShort, KindInt,
		KindUInt, KindLong, KindULong, KindLongLong, KindULongLong,
		KindFloat, KindDouble, KindLongDouble, KindNullptr,
	}
	for _, k := range prime {
		t.infos = append(t.infos, Info{Base: k})
	}
	return t
}

// Add appends a new Info and returns its stable Index.
func (t *Table) Add(info Info) Index {
	t.infos = append(t.infos, info)
	return Index(len(t.infos) - 1)
}

// Get returns the Info for idx.
func (t *Table) Get(idx Index) Info {
	return t.infos[idx]
}

// Pointer returns (interning if needed) the type "one pointer deeper" than
// base, preserving cv/array/ref/struct identity.
func (t *Table) Pointer(base Index) Index {
	info := t.infos[base]
	info.PointerDepth++
	return t.Add(info)
}

// Dereference returns the type one pointer shallower than base. It panics if
// base.PointerDepth is already zero: per §3.3 pointer_depth is monotonic and
// never negative, so a caller reaching this with depth zero has a type-system
// bug upstream (dereferencing a non-pointer was supposed to be rejected by
// sema before codegen ever calls this).
func (t *Table) Dereference(base Index) Index {
	info := t.infos[base]
	if info.PointerDepth == 0 {
		panic(fmt.Sprintf("typetab: Dereference of non-pointer type index %d", base))
	}
	info.PointerDepth--
	return t.Add(info)
}

// Reference returns base wrapped in the given reference kind.
func (t *Table) Reference(base Index, kind ReferenceKind) Index {
	info := t.infos[base]
	info.Ref = kind
	return t.Add(info)
}

// Qualify returns base with cv additionally applied.
func (t *Table) Qualify(base Index, cv CVQual) Index {
	info := t.infos[base]
	info.CV |= cv
	return t.Add(info)
}

// NewStruct allocates a fresh, unfrozen StructInfo and a KindStruct Info
// pointing at it, returning both indices.
func (t *Table) NewStruct(name strtab.Handle) (Index, StructIndex) {
	si := &StructInfo{Name: name}
	sidx := StructIndex(len(t.structs))
	t.structs = append(t.structs, si)
	tidx := t.Add(Info{Base: KindStruct, Struct: sidx})
	return tidx, sidx
}

// Struct returns the StructInfo for sidx.
func (t *Table) Struct(sidx StructIndex) *StructInfo {
	return t.structs[sidx]
}

// LookupStruct returns the unqualified, unmodified KindStruct entry whose
// layout carries name. When a forward declaration and a later definition
// each allocated an entry under the same name, the definition (the later
// entry) wins, matching how the parser re-points the name at the complete
// type once the class body closes.
func (t *Table) LookupStruct(name strtab.Handle) (Index, bool) {
	for i := len(t.infos) - 1; i >= 0; i-- {
		info := t.infos[i]
		if info.Base != KindStruct || info.PointerDepth != 0 || info.Ref != RefNone || info.CV != CVNone {
			continue
		}
		if t.structs[info.Struct].Name == name {
			return Index(i), true
		}
	}
	return Void, false
}

// IsClass reports whether idx names a struct/class (not an enum).
func (t *Table) IsClass(idx Index) bool {
	info := t.infos[idx]
	return info.Base == KindStruct
}

// Len reports the number of TypeInfo entries, for diagnostics/tests.
func (t *Table) Len() int { return len(t.infos) }
