package lexer

import "github.com/oxhq/flashcpp/token"

// multiCharOps is checked longest-first so e.g. "<<=" isn't mis-split into
// "<<" + "=".
var multiCharOps = []string{
	"<<=", ">>=", "...", "->*", "<=>",
	"::", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=",
	"&&", "||", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	".*",
}

var singleCharOps = "+-*/%=<>!&|^~?:;,.(){}[]#@"

// scanOperator consumes the longest matching operator/punctuator, honoring
// templateArgMode's ">>" → ">" ">" split.
func (l *Lexer) scanOperator(pos token.Position) token.Token {
	rest := l.src[l.offset:]

	if l.inTemplateArgMode() && len(rest) >= 1 && rest[0] == '>' {
		// A ">>" (or ">>=", ">>>"...) sequence is lexed one '>' at a time
		// while the parser is inside a '<' ... '>' argument list, so that
		// "vector<vector<int>>" doesn't need a space before the closing
		// angle brackets.
		l.advance()
		return token.Token{Kind: token.Operator, Pos: pos, Text: l.strings.Intern(">")}
	}

	for _, op := range multiCharOps {
		n := len(op)
		if len(rest) >= n && string(rest[:n]) == op {
			for i := 0; i < n; i++ {
				l.advance()
			}
			return token.Token{Kind: classify(op), Pos: pos, Text: l.strings.Intern(op)}
		}
	}

	c := l.advance()
	for i := 0; i < len(singleCharOps); i++ {
		if singleCharOps[i] == c {
			return token.Token{Kind: classify(string(c)), Pos: pos, Text: l.strings.Intern(string(c))}
		}
	}

	l.errorf(pos, "illegal character %q", c)
	return token.Token{Kind: token.Invalid, Pos: pos, ErrMessage: "illegal character"}
}

func classify(s string) token.Kind {
	switch s {
	case "(", ")", "{", "}", "[", "]", ";", ",", "#", "@":
		return token.Punctuator
	default:
		return token.Operator
	}
}
