package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
)

func newLexer(src string) (*Lexer, *strtab.Table) {
	strs := strtab.New()
	return New([]byte(src), "test.cpp", LineMap{}, strs), strs
}

func TestKeywordVsIdentifier(t *testing.T) {
	l, _ := newLexer("int foo")
	tok := l.Consume()
	require.Equal(t, token.Keyword, tok.Kind)
	tok = l.Consume()
	require.Equal(t, token.Identifier, tok.Kind)
}

func TestPeekDoesNotConsume(t *testing.T) {
	l, strs := newLexer("a b")
	first := l.Peek(0)
	again := l.Peek(0)
	assert.Equal(t, first, again)
	consumed := l.Consume()
	assert.Equal(t, first, consumed)
	assert.Equal(t, "b", strs.String(l.Peek(0).Text))
}

func TestSaveRestoreIsConstantTimeAndDoesNotRescan(t *testing.T) {
	l, _ := newLexer("a b c")
	l.Consume() // a
	mark := l.SavePosition()
	l.Consume() // b
	l.Consume() // c
	l.RestorePosition(mark)
	tok := l.Consume()
	assert.Equal(t, token.Identifier, tok.Kind)
}

func TestNumericLiteral(t *testing.T) {
	l, _ := newLexer("42 3.14 0x1Au 10L")
	tok := l.Consume()
	require.Equal(t, token.NumericLiteral, tok.Kind)
	assert.Equal(t, uint64(42), tok.IntValue)

	tok = l.Consume()
	assert.True(t, tok.IsFloat)
	assert.InDelta(t, 3.14, tok.FloatValue, 1e-9)

	tok = l.Consume()
	assert.Equal(t, token.Base16, tok.NumBase)
	assert.Equal(t, uint64(0x1A), tok.IntValue)
	assert.True(t, tok.IsUnsigned)

	tok = l.Consume()
	assert.Equal(t, "L", tok.Suffix)
}

func TestStringAndCharLiterals(t *testing.T) {
	l, _ := newLexer(`"hi\n" 'a' u8"x" L'y'`)
	tok := l.Consume()
	require.Equal(t, token.StringLiteral, tok.Kind)
	assert.Equal(t, []byte("hi\n"), tok.Decoded)

	tok = l.Consume()
	require.Equal(t, token.CharLiteral, tok.Kind)
	assert.Equal(t, []byte("a"), tok.Decoded)

	tok = l.Consume()
	assert.Equal(t, token.EncodingUTF8, tok.Enc)

	tok = l.Consume()
	assert.Equal(t, token.EncodingWide, tok.Enc)
}

func TestTemplateArgModeSplitsShr(t *testing.T) {
	l, strs := newLexer("vector<vector<int>>")
	for {
		tok := l.Consume()
		if strs.String(tok.Text) == "<" {
			break
		}
		if tok.Kind == token.EndOfFile {
			t.Fatal("did not find opening <")
		}
	}
	tok := l.Consume() // inner "vector"
	require.Equal(t, "vector", strs.String(tok.Text))
	tok = l.Consume() // second '<'
	require.Equal(t, "<", strs.String(tok.Text))
	tok = l.Consume() // "int"
	require.Equal(t, "int", strs.String(tok.Text))

	l.SetTemplateArgMode(true)
	tok = l.Consume()
	assert.Equal(t, ">", strs.String(tok.Text))
	tok = l.Consume()
	assert.Equal(t, ">", strs.String(tok.Text))
}

func TestUnterminatedStringRecordsError(t *testing.T) {
	l, _ := newLexer(`"unterminated`)
	l.Consume()
	require.NotEmpty(t, l.Errors)
}

func TestIllegalCharacterRecordsError(t *testing.T) {
	l, _ := newLexer("$")
	tok := l.Consume()
	assert.Equal(t, token.Invalid, tok.Kind)
	require.NotEmpty(t, l.Errors)
}
