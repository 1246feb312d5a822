// Package ast implements the append-only AST arena: syntax nodes addressed
// by stable index, never mutated after insertion, and never pointing to a
// later-inserted node.
package ast

import "github.com/oxhq/flashcpp/token"

// NodeID is a stable handle into an Arena. The zero value, NodeID(0), is
// reserved and never returned by Arena.Add; it is used as the "no node"
// sentinel (an Option<NodeID> substitute, per §9's guidance to use explicit
// optionality rather than nil pointers).
type NodeID uint32

// None is the "absent" NodeID.
const None NodeID = 0

// Kind tags the sum type a Node's Payload belongs to.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Declarations
	KindVarDecl
	KindFuncDecl
	KindStructDecl
	KindEnumDecl
	KindNamespaceDecl
	KindUsingAlias
	KindTemplateParamDecl
	KindConceptDecl
	KindTemplateDecl

	// Expressions
	KindIdentifierRef
	KindQualifiedId
	KindNumericLiteral
	KindStringLiteral
	KindCharLiteral
	KindBinaryOp
	KindUnaryOp
	KindMemberAccess
	KindArraySubscript
	KindCall
	KindConstructorExpr
	KindCast
	KindSizeof
	KindAlignof
	KindTypeTrait
	KindFoldExpr
	KindLambda
	KindNew
	KindDelete
	KindThrow
	KindConditional
	KindRequiresExpr
	KindRequirement

	// Statements
	KindBlock
	KindIf
	KindSwitch
	KindFor
	KindRangeFor
	KindWhile
	KindDoWhile
	KindReturn
	KindBreak
	KindContinue
	KindGoto
	KindLabel
	KindTry
	KindExprStmt
	KindDeclStmt

	// Type specifiers
	KindTypeSpec
)

// Node is one arena entry: a Kind tag, the first token (for diagnostics, per
// §4.4's error-token preservation rule), and a Kind-specific payload.
type Node struct {
	Kind    Kind
	Pos     token.Position
	Payload any
}

// Arena is append-only storage for Nodes, indexed by NodeID.
type Arena struct {
	nodes []Node
}

// NewArena returns an Arena with the reserved zero slot occupied.
func NewArena() *Arena {
	return &Arena{nodes: make([]Node, 1, 1024)}
}

// Add appends a node and returns its NodeID. Every child NodeID referenced
// by payload must already exist in the arena (built bottom-up), preserving
// the "never points to a later node" invariant.
func (a *Arena) Add(kind Kind, pos token.Position, payload any) NodeID {
	a.nodes = append(a.nodes, Node{Kind: kind, Pos: pos, Payload: payload})
	return NodeID(len(a.nodes) - 1)
}

// Get returns the Node stored at id.
func (a *Arena) Get(id NodeID) Node {
	return a.nodes[id]
}

// Len reports how many nodes (including the reserved slot) exist.
func (a *Arena) Len() int { return len(a.nodes) }
