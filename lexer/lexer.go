// Package lexer turns a preprocessed byte range into an ordered, restartable
// token stream. It never re-tokenizes already-seen input: tokens are cached
// as they're produced, and save/restore are O(1) index operations over that
// cache.
package lexer

import (
	"fmt"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
)

// Error is one LexicalError: an illegal character or unterminated literal.
// The lexer does not stop on Error; it records one and emits an Invalid
// token so the parser can resync.
type Error struct {
	Pos     token.Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: lexical error: %s", e.Pos.File, e.Pos.Line, e.Pos.Column, e.Message)
}

// Position is an O(1) save/restore handle, per §4.1's contract. It is a
// trivial wrapper over a cursor index into the lexer's token cache so that
// restoring never re-scans bytes.
type Position int

// Lexer scans a byte buffer into tokens on demand, caching them so repeated
// peek/save/restore never re-tokenizes.
type Lexer struct {
	src     []byte
	offset  int // next unscanned byte
	ppLine  int // current preprocessed line (1-based)
	col     int // current preprocessed column (1-based)
	lineMap LineMap
	file    string
	strings *strtab.Table

	cache []token.Token // all tokens scanned so far, in order
	cur   int           // index into cache of the "current" (just-consumed) token

	// templateArgDepth, when > 0, makes the lexer split a ">>" (and ">>=")
	// sequence into two ">" tokens (or ">" + "=") instead of the operators
	// >> / >>=. It's a depth counter rather than a flag because the parser
	// enters this mode as soon as it opens a '<' argument list — before
	// scanning reaches the matching '>' — and nested lists (e.g.
	// `vector<vector<int>>`) must keep splitting active for the whole
	// outer list while an inner one is also open (§4.1).
	templateArgDepth int

	Errors []Error
}

// New constructs a Lexer over src. lineMap may be the zero value when the
// input was not preprocessed (raw positions are then source positions).
func New(src []byte, file string, lineMap LineMap, strings *strtab.Table) *Lexer {
	return &Lexer{
		src:     src,
		file:    file,
		ppLine:  1,
		col:     1,
		lineMap: lineMap,
		strings: strings,
		cur:     -1,
	}
}

// SetTemplateArgMode enters (on=true) or leaves (on=false) one level of
// '>>'-splitting mode. Callers must pair every true with a matching false
// once their own '<' ... '>' list has fully closed, even when nested.
func (l *Lexer) SetTemplateArgMode(on bool) {
	if on {
		l.templateArgDepth++
	} else if l.templateArgDepth > 0 {
		l.templateArgDepth--
	}
}

func (l *Lexer) inTemplateArgMode() bool { return l.templateArgDepth > 0 }

// SavePosition returns an O(1) handle to the current cursor.
func (l *Lexer) SavePosition() Position { return Position(l.cur) }

// RestorePosition rewinds the cursor to a previously saved handle. It never
// re-tokenizes; tokens between the saved and current cursor remain cached.
func (l *Lexer) RestorePosition(p Position) { l.cur = int(p) }

// Peek returns the token k positions ahead of the cursor without consuming
// it (Peek(0) is the next token Consume() would return).
func (l *Lexer) Peek(k int) token.Token {
	idx := l.cur + 1 + k
	for idx >= len(l.cache) {
		l.scanOne()
	}
	return l.cache[idx]
}

// Consume advances the cursor and returns the token it lands on.
func (l *Lexer) Consume() token.Token {
	l.cur++
	for l.cur >= len(l.cache) {
		l.scanOne()
	}
	return l.cache[l.cur]
}

// scanOne lexes exactly one more token and appends it to the cache.
func (l *Lexer) scanOne() {
	l.skipTrivia()
	pos := l.position()
	if l.offset >= len(l.src) {
		l.cache = append(l.cache, token.Token{Kind: token.EndOfFile, Pos: pos})
		return
	}
	c := l.src[l.offset]
	switch {
	case isIdentStart(c):
		if enc, width, ok := l.matchLiteralPrefix(); ok {
			l.offset += width
			l.col += width
			if l.src[l.offset] == '"' {
				l.cache = append(l.cache, l.scanString(pos, enc))
			} else {
				l.cache = append(l.cache, l.scanChar(pos, enc))
			}
			return
		}
		l.cache = append(l.cache, l.scanIdentifier(pos))
	case isDigit(c) || (c == '.' && l.offset+1 < len(l.src) && isDigit(l.src[l.offset+1])):
		l.cache = append(l.cache, l.scanNumber(pos))
	case c == '"':
		l.cache = append(l.cache, l.scanString(pos, token.EncodingNarrow))
	case c == '\'':
		l.cache = append(l.cache, l.scanChar(pos, token.EncodingNarrow))
	default:
		l.cache = append(l.cache, l.scanOperator(pos))
	}
}

func (l *Lexer) position() token.Position {
	file, line := l.lineMap.Resolve(l.ppLine)
	if file == "" {
		file = l.file
	}
	return token.Position{File: file, Line: line, Column: l.col, Offset: l.offset}
}

func (l *Lexer) advance() byte {
	c := l.src[l.offset]
	l.offset++
	if c == '\n' {
		l.ppLine++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *Lexer) skipTrivia() {
	for l.offset < len(l.src) {
		c := l.src[l.offset]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\v' || c == '\f':
			l.advance()
		case c == '/' && l.offset+1 < len(l.src) && l.src[l.offset+1] == '/':
			for l.offset < len(l.src) && l.src[l.offset] != '\n' {
				l.advance()
			}
		case c == '/' && l.offset+1 < len(l.src) && l.src[l.offset+1] == '*':
			l.advance()
			l.advance()
			for l.offset < len(l.src) {
				if l.src[l.offset] == '*' && l.offset+1 < len(l.src) && l.src[l.offset+1] == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) errorf(pos token.Position, format string, args ...any) {
	e := Error{Pos: pos, Message: fmt.Sprintf(format, args...)}
	l.Errors = append(l.Errors, e)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
