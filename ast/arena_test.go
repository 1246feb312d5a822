package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
)

func TestArenaAddGetRoundTrip(t *testing.T) {
	a := NewArena()
	strs := strtab.New()

	lit := a.Add(KindNumericLiteral, token.Position{Line: 1}, NumericLiteral{IntValue: 42})
	ref := a.Add(KindIdentifierRef, token.Position{Line: 2}, IdentifierRef{Name: strs.Intern("x")})
	bin := a.Add(KindBinaryOp, token.Position{Line: 3}, BinaryOp{Op: strs.Intern("+"), LHS: ref, RHS: lit})

	require.Greater(t, uint32(bin), uint32(lit))
	require.Greater(t, uint32(lit), uint32(None))

	node := a.Get(bin)
	assert.Equal(t, KindBinaryOp, node.Kind)
	payload := node.Payload.(BinaryOp)
	assert.Equal(t, ref, payload.LHS)
	assert.Equal(t, lit, payload.RHS)
}

func TestNoneIsReservedZero(t *testing.T) {
	a := NewArena()
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, NodeID(0), None)
}
