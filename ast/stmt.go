package ast

import "github.com/oxhq/flashcpp/strtab"

// Block is `{ stmt; stmt; ... }`.
type Block struct {
	Stmts []NodeID
}

// If is `if (Cond) Then [else Else]`.
type If struct {
	Init NodeID // C++17 init-statement, None if absent
	Cond NodeID
	Then NodeID
	Else NodeID
}

// SwitchCase is one `case Value:` or the `default:` arm (Value == None).
type SwitchCase struct {
	Value NodeID
	Body  []NodeID
}

// Switch is a `switch (Cond) { ... }` statement.
type Switch struct {
	Cond  NodeID
	Cases []SwitchCase
}

// For is a classic C-style for loop.
type For struct {
	Init NodeID
	Cond NodeID
	Post NodeID
	Body NodeID
}

// RangeFor is `for (decl : range) body`.
type RangeFor struct {
	Decl  NodeID
	Range NodeID
	Body  NodeID
}

type While struct {
	Cond NodeID
	Body NodeID
}

type DoWhile struct {
	Body NodeID
	Cond NodeID
}

// Return carries an optional expression (None for `return;`).
type Return struct {
	Value NodeID
}

type Break struct{}
type Continue struct{}

type Goto struct {
	Label strtab.Handle
}

type Label struct {
	Name strtab.Handle
	Stmt NodeID
}

// CatchClause is one `catch (Type e) { ... }` arm; Decl == None for
// `catch (...)`. The parser leaves Type unset (strtab.Invalid) for every arm.
type CatchClause struct {
	Type strtab.Handle
	Decl NodeID // VarDecl for the caught exception, None for `catch (...)`
	Body NodeID
}

// Try is a try/catch statement.
type Try struct {
	Body    NodeID
	Catches []CatchClause
}

// ExprStmt is a bare expression statement (`f();`).
type ExprStmt struct {
	Expr NodeID
}

// DeclStmt wraps one or more VarDecl nodes appearing as a statement
// (`int a = 1, b = 2;`).
type DeclStmt struct {
	Decls []NodeID
}
