package ast

import (
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// StorageClass is the declared storage duration/linkage of a variable or
// function.
type StorageClass uint8

const (
	StorageAuto StorageClass = iota
	StorageStatic
	StorageExtern
	StorageThreadLocal
)

// VarDecl is a variable declaration: `T name = init;` or a function
// parameter / member (see StructDecl.Members for member layout metadata;
// this node is the *declaration syntax*, not the frozen layout).
type VarDecl struct {
	Name          strtab.Handle
	TypeSpec      NodeID
	Init          NodeID // None if uninitialized
	Storage       StorageClass
	IsConstexpr   bool
	IsParameter   bool
	IsMaybeUnused bool // `[[maybe_unused]]`
}

// FuncDecl is a function (including member function, constructor, and
// destructor) declaration. Body is None for a declaration-only prototype.
type FuncDecl struct {
	Name           strtab.Handle
	IsOperator     bool   // `operator<op>` forms a single function name
	ConversionType NodeID // set for `operator T()`; Name is then unused
	Params         []NodeID
	ReturnType     NodeID // None for constructors/destructors
	Body           NodeID // None if prototype-only
	IsVirtual      bool
	IsPureVirtual  bool
	IsStatic       bool
	IsConst        bool
	IsConstexpr    bool
	IsNoexcept     bool
	IsNoreturn     bool
	IsDeleted      bool
	IsDefaulted    bool
	IsDestructor   bool
	IsConstructor  bool
	IsNodiscard    bool // `[[nodiscard]]`
	IsMaybeUnused  bool // `[[maybe_unused]]`
	TemplateParams []NodeID // non-empty for function templates
	Requires       NodeID   // trailing `requires constraint-expr`, None if absent

	// DeferredBodyStart/End mark a token range for two-phase template body
	// parsing (§4.4): when non-zero, Body is None until instantiation
	// repositions the lexer and reparses with substituted parameters.
	DeferredBodyStart int
	DeferredBodyEnd   int

	// Packs carries the expanded parameter packs of an instantiated function
	// template, so codegen can expand `args...` and fold expressions against
	// the concrete element list. Empty for non-template functions and for
	// uninstantiated patterns.
	Packs []PackBinding
}

// PackBinding is one expanded parameter pack: the pack's declared name plus
// the synthesized per-element parameter names and their concrete types, in
// expansion order. Element names use a '#' separator the lexer can never
// produce, so they cannot collide with user identifiers.
type PackBinding struct {
	Name     strtab.Handle
	Elements []strtab.Handle
	Types    []typetab.Index
}

// StructDecl is a class/struct/union declaration. The frozen layout lives in
// typetab.StructInfo once the class body closes; this node retains the
// member declaration syntax for template instantiation re-parsing.
type StructDecl struct {
	Name       strtab.Handle
	IsUnion    bool
	IsFinal    bool
	Bases      []BaseSpec
	Members    []NodeID // VarDecl / FuncDecl / nested StructDecl / EnumDecl nodes
	StructType typetab.Index
	TemplateParams []NodeID

	// DeferredStart/End mark the token range of a class template pattern's
	// whole declaration (from the class-key through the closing `};`), for
	// two-phase instantiation re-parsing (§4.4) — the class-side mirror of
	// FuncDecl's DeferredBodyStart/End.
	DeferredStart int
	DeferredEnd   int
}

// BaseSpec is one entry of a class's `: public Base1, private Base2` clause.
type BaseSpec struct {
	TypeSpec  NodeID
	Access    typetab.Access
	IsVirtual bool
}

// EnumDecl is an enum/enum class declaration.
type EnumDecl struct {
	Name         strtab.Handle
	IsScoped     bool // enum class
	Underlying   NodeID
	Enumerators  []Enumerator
	EnumType     typetab.Index
}

// Enumerator is one `Name = Value` entry of an EnumDecl.
type Enumerator struct {
	Name  strtab.Handle
	Value NodeID // None if implicit (prior + 1)
}

// NamespaceDecl is a `namespace name { ... }` block, or an anonymous
// namespace when Name is strtab.Invalid.
type NamespaceDecl struct {
	Name    strtab.Handle
	Members []NodeID
	IsInline bool
}

// UsingAlias covers both `using Alias = Type;` and `using Namespace::name;`.
type UsingAlias struct {
	Alias       strtab.Handle // strtab.Invalid for a using-declaration/directive
	Target      NodeID        // TypeSpec for alias, QualifiedId for declaration
	IsDirective bool          // `using namespace N;`
}

// TemplateParamKind distinguishes the three kinds of template parameter.
type TemplateParamKind uint8

const (
	TemplateParamType TemplateParamKind = iota
	TemplateParamNonType
	TemplateParamTemplate
)

// TemplateParamDecl is one entry of a template's `<...>` parameter list.
type TemplateParamDecl struct {
	Kind        TemplateParamKind
	Name        strtab.Handle
	NonTypeType NodeID // TypeSpec, for TemplateParamNonType
	Default     NodeID // None if no default
	IsVariadic  bool
}

// TemplateDecl wraps a Pattern declaration (FuncDecl or StructDecl) together
// with its parameter list, forming the unit the TemplateRegistry stores.
// Requires holds the leading `requires constraint-expr` clause that follows
// the `template<...>` parameter list, if any.
type TemplateDecl struct {
	Params   []NodeID // TemplateParamDecl nodes
	Pattern  NodeID
	Requires NodeID
}

// ConceptDecl is a C++20 `concept Name = constraint-expression;`.
type ConceptDecl struct {
	Name       strtab.Handle
	Params     []NodeID
	Constraint NodeID
}
