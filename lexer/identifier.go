package lexer

import "github.com/oxhq/flashcpp/token"

// matchLiteralPrefix recognizes the L/u8/u/U string-or-char literal
// encoding prefixes, returning the encoding and the number of bytes the
// prefix occupies, only when the prefix is immediately followed by a quote
// (otherwise it's an ordinary identifier that merely starts with one of
// those letters).
func (l *Lexer) matchLiteralPrefix() (token.Encoding, int, bool) {
	rest := l.src[l.offset:]
	try := func(prefix string, enc token.Encoding) (token.Encoding, int, bool) {
		n := len(prefix)
		if len(rest) > n && string(rest[:n]) == prefix && (rest[n] == '"' || rest[n] == '\'') {
			return enc, n, true
		}
		return 0, 0, false
	}
	if enc, n, ok := try("u8", token.EncodingUTF8); ok {
		return enc, n, ok
	}
	if enc, n, ok := try("u", token.EncodingUTF16); ok {
		return enc, n, ok
	}
	if enc, n, ok := try("U", token.EncodingUTF32); ok {
		return enc, n, ok
	}
	if enc, n, ok := try("L", token.EncodingWide); ok {
		return enc, n, ok
	}
	return 0, 0, false
}

// scanIdentifier consumes a maximal identifier run and classifies it against
// the closed keyword set with a single hash lookup.
func (l *Lexer) scanIdentifier(pos token.Position) token.Token {
	start := l.offset
	for l.offset < len(l.src) && isIdentCont(l.src[l.offset]) {
		l.advance()
	}
	spelling := string(l.src[start:l.offset])

	kind := token.Identifier
	if token.IsKeyword(spelling) {
		kind = token.Keyword
	}
	return token.Token{Kind: kind, Pos: pos, Text: l.strings.Intern(spelling)}
}
