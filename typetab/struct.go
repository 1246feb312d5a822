package typetab

import "github.com/oxhq/flashcpp/strtab"

// StructIndex is a stable index into a Table's StructInfo arena.
type StructIndex uint32

// Access is a class member's accessibility.
type Access uint8

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

// Member describes one data member of a class layout.
type Member struct {
	Name      strtab.Handle
	Type      Index
	Offset    int64 // byte offset within the struct
	Access    Access
	IsStatic  bool
	BitfieldWidth int // 0 means "not a bitfield"
}

// BaseClass describes one entry of a class's base-class list.
type BaseClass struct {
	Type     Index
	Access   Access
	IsVirtual bool
	Offset   int64 // byte offset of the base subobject
	Deferred bool  // base was a template parameter; resolved at instantiation
}

// MemberFunction records enough about a declared member function for
// overload resolution and vtable construction without duplicating the AST.
type MemberFunction struct {
	Name       strtab.Handle
	MangledName string
	Sig        FunctionSig
	IsVirtual  bool
	IsPure     bool
	IsStatic   bool
	IsConst    bool
	Access     Access
	VTableSlot int // -1 if not virtual
}

// StructInfo is the mutable-during-parse, frozen-after layout record for a
// class or struct. Per §3.3, once a TypeIndex is assigned its StructInfo's
// layout is frozen; AddMember after Freeze is a hard error surfaced by the
// caller (sym/parser), not silently ignored.
type StructInfo struct {
	Name              strtab.Handle
	Members           []Member
	Bases             []BaseClass
	MemberFunctions   []MemberFunction
	Size              int64
	Align             int64
	HasUserDtor       bool
	HasVTable         bool
	IsAbstract        bool
	IsFinal           bool
	IsPolymorphic     bool
	IsStandardLayout  bool
	IsAggregate       bool
	IsEmpty           bool
	IsUnion           bool
	frozen            bool
}

// Frozen reports whether further structural mutation is rejected.
func (s *StructInfo) Frozen() bool { return s.frozen }

// Freeze locks the layout. Called once, at the closing '}' of the class body.
func (s *StructInfo) Freeze() {
	s.IsEmpty = len(s.Members) == 0 && len(s.Bases) == 0 && !s.HasVTable
	s.frozen = true
}

// AddMember appends a data member and grows Size/Align accordingly. It
// returns false without mutating the struct if the layout is already frozen;
// the caller is responsible for turning that into a SemanticError
// ("duplicate definition" / "modifying frozen class").
func (s *StructInfo) AddMember(m Member, table *Table) bool {
	if s.frozen {
		return false
	}
	info := table.Get(m.Type)
	size, align := sizeAlign(info, table)
	s.Align = maxI64(s.Align, align)
	s.Size = alignUp(s.Size, align)
	m.Offset = s.Size
	s.Size += size
	s.Members = append(s.Members, m)
	return true
}

// AddBase appends a base-class entry, placing it before any data members.
func (s *StructInfo) AddBase(b BaseClass, table *Table) bool {
	if s.frozen {
		return false
	}
	if !b.Deferred {
		info := table.Get(b.Type)
		size, align := sizeAlign(info, table)
		s.Align = maxI64(s.Align, align)
		b.Offset = s.Size
		s.Size += size
	}
	s.Bases = append(s.Bases, b)
	return true
}

func sizeAlign(info Info, table *Table) (size, align int64) {
	if info.PointerDepth > 0 || info.Ref != RefNone {
		return 8, 8
	}
	switch info.Base {
	case KindVoid:
		return 0, 1
	case KindBool, KindChar, KindSChar, KindUChar, KindChar8:
		return 1, 1
	case KindChar16, KindShort, KindUShort, KindWChar:
		return 2, 2
	case KindChar32, KindInt, KindUInt, KindFloat, KindEnum:
		return 4, 4
	case KindLong, KindULong, KindLongLong, KindULongLong, KindDouble, KindNullptr:
		return 8, 8
	case KindLongDouble:
		return 16, 16
	case KindStruct:
		si := table.Struct(info.Struct)
		return si.Size, si.Align
	default:
		return 8, 8
	}
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
