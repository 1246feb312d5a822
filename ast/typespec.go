package ast

import (
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// TypeSpec is a parsed type specifier. Resolved is set as soon as the
// referenced type is known; inside a template pattern it may remain
// typetab.Void with Dependent=true until substitution.
type TypeSpec struct {
	Resolved     typetab.Index
	Dependent    bool
	DependentName strtab.Handle // the unresolved name text, for diagnostics
	PointerDepth int
	Ref          typetab.ReferenceKind
	CV           typetab.CVQual
	ArrayDims    []NodeID // constant-expression nodes, empty entries mean unbounded
	TemplateArgs []NodeID // for `Name<Args...>` type specs before resolution
	QualifiedName NodeID  // QualifiedId node, if spelled with `::`
	IsPack       bool     // trailing `...` on a declarator type, e.g. `Args... args`
}
