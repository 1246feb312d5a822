// Package ir implements the linear, typed intermediate representation the
// code generator emits and the machine-code converter consumes (§3.2/§4.6):
// TempVars with value-category metadata, TypedValue operands, and a
// per-function instruction stream.
package ir

import (
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// TempVar is an IR temporary: a unique id (per function), its declared
// type, and optional value-category metadata (§3.2). Every TempVar has
// exactly one defining instruction; its declared type matches that
// instruction's result type (§3.3).
type TempVar struct {
	ID       int
	Type     typetab.Index
	SizeBits int
	Category ValueCategory
}

// CategoryKind distinguishes the three C++ value categories.
type CategoryKind uint8

const (
	CatPRValue CategoryKind = iota
	CatLValue
	CatXValue
)

// LValueStorageKind tags how an lvalue's storage is addressed. Per §9,
// implemented as a tagged variant rather than inheritance.
type LValueStorageKind uint8

const (
	StorageDirect LValueStorageKind = iota
	StorageIndirect
	StorageMember
	StorageArrayElement
	StorageTemporary
)

// LValueStorage is the payload for CatLValue, tagged by Kind.
type LValueStorage struct {
	Kind LValueStorageKind

	// StorageDirect
	StackSlot int

	// StorageIndirect
	Pointer TypedValue

	// StorageMember
	Base       TypedValue
	ByteOffset int64
	MemberName strtab.Handle

	// StorageArrayElement
	Array    TypedValue
	Index    TypedValue
	ElemSize int64
	ElemType typetab.Index

	// StorageTemporary
	TempSlot int
}

// ValueCategory carries the per-TempVar metadata described in §4.6. Kind
// selects which of the payload fields below is meaningful.
type ValueCategory struct {
	Kind CategoryKind

	LValue LValueStorage // meaningful when Kind == CatLValue

	// meaningful when Kind == CatPRValue
	EligibleForRVO bool
	IsReturnValue  bool
}

// ValueKind distinguishes a TypedValue's operand form.
type ValueKind uint8

const (
	ValueTemp ValueKind = iota
	ValueIntLiteral
	ValueFloatLiteral
	ValueStringLiteral
)

// TypedValue is one IR operand (§3.2): a type plus either a TempVar
// reference or an immediate literal, carrying enough metadata (pointer
// depth, cv-quals, reference-ness, signedness) that instruction selection
// in the lower package never has to re-derive it from the AST.
type TypedValue struct {
	Type         typetab.Index
	SizeBits     int
	Kind         ValueKind
	Temp         int // valid when Kind == ValueTemp; indexes Function.Temps
	IntLiteral   int64
	FloatLiteral float64
	StrHandle    strtab.Handle
	PointerDepth int
	CV           typetab.CVQual
	IsReference  bool
	IsSigned     bool
}

// IsZeroPointer reports whether v is a null-pointer-constant-shaped literal,
// a convenience the codegen/lower packages both need when deciding whether a
// pointer comparison can be folded.
func (v TypedValue) IsZeroPointer() bool {
	return v.Kind == ValueIntLiteral && v.IntLiteral == 0 && v.PointerDepth > 0
}
