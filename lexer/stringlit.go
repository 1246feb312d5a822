package lexer

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/oxhq/flashcpp/token"
)

// scanString consumes a "..." literal (encoding prefix already identified by
// the caller or absent) and decodes escapes into raw bytes.
func (l *Lexer) scanString(pos token.Position, enc token.Encoding) token.Token {
	l.advance() // opening quote
	var decoded []byte
	for {
		if l.offset >= len(l.src) {
			l.errorf(pos, "unterminated string literal")
			return token.Token{Kind: token.StringLiteral, Pos: pos, Decoded: decoded, Enc: enc, ErrMessage: "unterminated string literal"}
		}
		c := l.src[l.offset]
		if c == '"' {
			l.advance()
			break
		}
		if c == '\n' {
			l.errorf(pos, "unterminated string literal")
			break
		}
		if c == '\\' {
			decoded = l.appendEscape(decoded)
			continue
		}
		decoded = append(decoded, c)
		l.advance()
	}
	return encodeLiteral(pos, decoded, enc, false)
}

// scanChar consumes a '...' literal.
func (l *Lexer) scanChar(pos token.Position, enc token.Encoding) token.Token {
	l.advance() // opening quote
	var decoded []byte
	for {
		if l.offset >= len(l.src) {
			l.errorf(pos, "unterminated character literal")
			return token.Token{Kind: token.CharLiteral, Pos: pos, Decoded: decoded, Enc: enc, ErrMessage: "unterminated character literal"}
		}
		c := l.src[l.offset]
		if c == '\'' {
			l.advance()
			break
		}
		if c == '\\' {
			decoded = l.appendEscape(decoded)
			continue
		}
		decoded = append(decoded, c)
		l.advance()
	}
	if len(decoded) == 0 {
		l.errorf(pos, "empty character literal")
	}
	return encodeLiteral(pos, decoded, enc, true)
}

func encodeLiteral(pos token.Position, decoded []byte, enc token.Encoding, isChar bool) token.Token {
	kind := token.StringLiteral
	if isChar {
		kind = token.CharLiteral
	}
	switch enc {
	case token.EncodingUTF16:
		decoded = encodeUTF16LE(decoded)
	case token.EncodingUTF32, token.EncodingWide:
		decoded = encodeUTF32LE(decoded)
	}
	return token.Token{Kind: kind, Pos: pos, Decoded: decoded, Enc: enc}
}

func encodeUTF16LE(narrow []byte) []byte {
	units := utf16.Encode([]rune(string(narrow)))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func encodeUTF32LE(narrow []byte) []byte {
	out := make([]byte, 0, utf8.RuneCountInString(string(narrow))*4)
	for _, r := range string(narrow) {
		out = append(out, byte(r), byte(r>>8), byte(r>>16), byte(r>>24))
	}
	return out
}

func (l *Lexer) appendEscape(decoded []byte) []byte {
	l.advance() // backslash
	if l.offset >= len(l.src) {
		return decoded
	}
	c := l.advance()
	switch c {
	case 'n':
		return append(decoded, '\n')
	case 't':
		return append(decoded, '\t')
	case 'r':
		return append(decoded, '\r')
	case '0':
		return append(decoded, 0)
	case '\\', '\'', '"':
		return append(decoded, c)
	case 'a':
		return append(decoded, 7)
	case 'b':
		return append(decoded, 8)
	case 'f':
		return append(decoded, 12)
	case 'v':
		return append(decoded, 11)
	case 'x':
		var v byte
		for l.offset < len(l.src) && isHexDigit(l.src[l.offset]) {
			v = v*16 + hexVal(l.advance())
		}
		return append(decoded, v)
	default:
		return append(decoded, c)
	}
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
