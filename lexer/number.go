package lexer

import (
	"strconv"
	"strings"

	"github.com/oxhq/flashcpp/token"
)

// scanNumber consumes a numeric literal: the parsed integer or float value
// (or, for literals needing complex parsing such as hex-floats, the raw
// token text for deferred parsing), its suffix, and its base.
func (l *Lexer) scanNumber(pos token.Position) token.Token {
	start := l.offset
	base := token.Base10
	isFloat := false

	if l.src[l.offset] == '0' && l.offset+1 < len(l.src) && (l.src[l.offset+1] == 'x' || l.src[l.offset+1] == 'X') {
		base = token.Base16
		l.advance()
		l.advance()
		for l.offset < len(l.src) && (isHexDigit(l.src[l.offset]) || l.src[l.offset] == '\'') {
			l.advance()
		}
		if l.offset < len(l.src) && l.src[l.offset] == '.' {
			isFloat = true
			l.advance()
			for l.offset < len(l.src) && isHexDigit(l.src[l.offset]) {
				l.advance()
			}
		}
		if l.offset < len(l.src) && (l.src[l.offset] == 'p' || l.src[l.offset] == 'P') {
			isFloat = true
			l.advance()
			l.scanExponentSign()
		}
	} else if l.src[l.offset] == '0' && l.offset+1 < len(l.src) && (l.src[l.offset+1] == 'b' || l.src[l.offset+1] == 'B') {
		base = token.Base2
		l.advance()
		l.advance()
		for l.offset < len(l.src) && (l.src[l.offset] == '0' || l.src[l.offset] == '1' || l.src[l.offset] == '\'') {
			l.advance()
		}
	} else {
		if l.src[l.offset] == '0' && l.offset+1 < len(l.src) && isDigit(l.src[l.offset+1]) {
			base = token.Base8
		}
		for l.offset < len(l.src) && (isDigit(l.src[l.offset]) || l.src[l.offset] == '\'') {
			l.advance()
		}
		if l.offset < len(l.src) && l.src[l.offset] == '.' {
			isFloat = true
			base = token.Base10
			l.advance()
			for l.offset < len(l.src) && isDigit(l.src[l.offset]) {
				l.advance()
			}
		}
		if l.offset < len(l.src) && (l.src[l.offset] == 'e' || l.src[l.offset] == 'E') {
			isFloat = true
			base = token.Base10
			l.advance()
			l.scanExponentSign()
		}
	}

	suffixStart := l.offset
	for l.offset < len(l.src) && isSuffixChar(l.src[l.offset]) {
		l.advance()
	}
	suffix := string(l.src[suffixStart:l.offset])
	raw := string(l.src[start:l.offset])
	digits := strings.ReplaceAll(raw[:suffixStart-start], "'", "")

	tok := token.Token{
		Kind:       token.NumericLiteral,
		Pos:        pos,
		RawLiteral: raw,
		NumBase:    base,
		Suffix:     suffix,
		IsFloat:    isFloat,
		IsUnsigned: strings.ContainsAny(suffix, "uU"),
	}

	if isFloat {
		if v, err := strconv.ParseFloat(digits, 64); err == nil {
			tok.FloatValue = v
		} else {
			// Hex-float or otherwise complex literal: leave RawLiteral for
			// the deferred parser sema invokes at constant-evaluation time.
			tok.FloatValue = 0
		}
		return tok
	}

	base10digits := digits
	parseBase := 10
	switch base {
	case token.Base16:
		parseBase = 16
		base10digits = strings.TrimPrefix(strings.TrimPrefix(digits, "0x"), "0X")
	case token.Base2:
		parseBase = 2
		base10digits = strings.TrimPrefix(strings.TrimPrefix(digits, "0b"), "0B")
	case token.Base8:
		parseBase = 8
	}
	if v, err := strconv.ParseUint(base10digits, parseBase, 64); err == nil {
		tok.IntValue = v
	}
	return tok
}

func (l *Lexer) scanExponentSign() {
	if l.offset < len(l.src) && (l.src[l.offset] == '+' || l.src[l.offset] == '-') {
		l.advance()
	}
	for l.offset < len(l.src) && isDigit(l.src[l.offset]) {
		l.advance()
	}
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isSuffixChar(c byte) bool {
	switch c {
	case 'u', 'U', 'l', 'L', 'f', 'F', 'i', 'I', 'j', 'J':
		return true
	default:
		return false
	}
}
