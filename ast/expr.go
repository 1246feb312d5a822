package ast

import (
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// IdentifierRef is an unqualified name reference.
type IdentifierRef struct {
	Name strtab.Handle
}

// QualifiedId is `A::B::C<...>`, built incrementally: Left is None for the
// first segment (or for a leading `::`, in which case Global is true).
type QualifiedId struct {
	Left         NodeID
	Global       bool
	Segment      strtab.Handle
	TemplateArgs []NodeID // TypeSpec / constant-expression nodes, nil if none
}

// NumericLiteral mirrors the lexer's parsed numeric literal.
type NumericLiteral struct {
	IntValue   uint64
	FloatValue float64
	IsFloat    bool
	IsUnsigned bool
	Type       typetab.Index
}

// StringLiteral/CharLiteral carry decoded bytes plus encoding, matching the
// lexer token.
type StringLiteral struct {
	Decoded []byte
	Enc     uint8
}

type CharLiteral struct {
	Decoded []byte
	Enc     uint8
}

// BinaryOp covers arithmetic, relational, logical, assignment, and comma
// operators; Op is the operator's interned spelling.
type BinaryOp struct {
	Op  strtab.Handle
	LHS NodeID
	RHS NodeID
}

// UnaryOp covers prefix/postfix unary operators; Postfix distinguishes
// `x++` from `++x`.
type UnaryOp struct {
	Op      strtab.Handle
	Operand NodeID
	Postfix bool
}

// MemberAccess covers `.` and `->`.
type MemberAccess struct {
	Base    NodeID
	Member  strtab.Handle
	Arrow   bool
}

// ArraySubscript is `array[index]`.
type ArraySubscript struct {
	Array NodeID
	Index NodeID
}

// Call is a function-call expression; Callee may be an IdentifierRef,
// QualifiedId, or MemberAccess (for `obj.method(...)`).
type Call struct {
	Callee NodeID
	Args   []NodeID
}

// ConstructorExpr is `T(args)` or `T{args}` construction syntax.
type ConstructorExpr struct {
	TypeSpec NodeID
	Args     []NodeID
	BraceInit bool
}

// CastKind distinguishes the C++ cast forms.
type CastKind uint8

const (
	CastCStyle CastKind = iota
	CastStatic
	CastDynamic
	CastConst
	CastReinterpret
	CastImplicit // inserted by sema, not written by the user
)

// Cast is an explicit or sema-inserted conversion.
type Cast struct {
	Kind     CastKind
	TypeSpec NodeID
	Operand  NodeID
}

// Sizeof/Alignof: exactly one of TypeSpec/Operand is set; IsPack is true for
// `sizeof...(Pack)`.
type Sizeof struct {
	TypeSpec NodeID
	Operand  NodeID
	IsPack   bool
	PackName strtab.Handle
}

type Alignof struct {
	TypeSpec NodeID
}

// TypeTrait is one of the ~36 closed-set type-trait intrinsics (§6.3).
type TypeTrait struct {
	Name  strtab.Handle
	Types []NodeID // TypeSpec arguments
}

// FoldOpKind distinguishes the four fold-expression forms.
type FoldOpKind uint8

const (
	FoldUnaryRight FoldOpKind = iota
	FoldUnaryLeft
	FoldBinaryRight
	FoldBinaryLeft
)

// FoldExpr is a C++17 fold expression over a parameter pack.
type FoldExpr struct {
	Kind FoldOpKind
	Op   strtab.Handle
	Pack NodeID
	Init NodeID // None for unary folds
}

// LambdaCaptureKind distinguishes capture forms.
type LambdaCaptureKind uint8

const (
	CaptureByValue LambdaCaptureKind = iota
	CaptureByRef
	CaptureThis
	CaptureStarThis // [*this]
	CaptureInit     // [x = expr]
)

// LambdaCapture is one entry of a lambda's `[...]` capture list.
type LambdaCapture struct {
	Kind LambdaCaptureKind
	Name strtab.Handle
	Init NodeID // for CaptureInit
}

// Lambda is a lambda-expression. ClosureType is filled in by codegen once
// the synthesized closure class is materialized.
type Lambda struct {
	Captures    []LambdaCapture
	Params      []NodeID
	ReturnType  NodeID
	Body        NodeID
	IsMutable   bool
	ClosureType typetab.Index
}

// New is `new T(args)` / `new T[n]`.
type New struct {
	TypeSpec  NodeID
	Args      []NodeID
	ArraySize NodeID // None for non-array new
}

// Delete is `delete p` / `delete[] p`.
type Delete struct {
	Operand NodeID
	IsArray bool
}

// Throw is `throw expr` (Operand == None for a bare rethrow).
type Throw struct {
	Operand NodeID
}

// Conditional is the ternary `cond ? then : else`.
type Conditional struct {
	Cond NodeID
	Then NodeID
	Else NodeID
}

// RequirementKind distinguishes the three requirement forms a
// requires-expression's requirement-seq can hold.
type RequirementKind uint8

const (
	RequirementSimple RequirementKind = iota
	RequirementType
	RequirementCompound
)

// Requirement is one member of a requires-expression body. A
// simple-requirement is a bare expression statement asserting the
// expression is well-formed; a type-requirement asserts a qualified name
// names a type; a compound-requirement additionally constrains the
// expression's exception spec and, optionally, its result type.
type Requirement struct {
	Kind       RequirementKind
	Expr       NodeID // simple/compound requirement's asserted expression
	TypeName   NodeID // type-requirement's qualified-id
	Noexcept   bool   // compound-requirement's `noexcept` clause
	ReturnType NodeID // compound-requirement's `-> type-constraint`, if any
}

// RequiresExpr is a C++20 requires-expression: `requires (params) { reqs }`.
// Params is empty for the parameter-less form `requires { reqs }`.
type RequiresExpr struct {
	Params       []NodeID
	Requirements []NodeID // Requirement nodes
}
