// Package token defines the lexeme kinds the lexer produces and the closed
// keyword set it classifies identifiers against.
package token

import "github.com/oxhq/flashcpp/strtab"

// Kind classifies a Token.
type Kind uint8

const (
	Invalid Kind = iota
	Identifier
	Keyword
	NumericLiteral
	StringLiteral
	CharLiteral
	Operator
	Punctuator
	EndOfFile
)

func (k Kind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Keyword:
		return "keyword"
	case NumericLiteral:
		return "numeric-literal"
	case StringLiteral:
		return "string-literal"
	case CharLiteral:
		return "char-literal"
	case Operator:
		return "operator"
	case Punctuator:
		return "punctuator"
	case EndOfFile:
		return "eof"
	default:
		return "invalid"
	}
}

// Encoding flags the prefix on a character/string literal.
type Encoding uint8

const (
	EncodingNarrow Encoding = iota
	EncodingWide            // L"..."
	EncodingUTF8            // u8"..."
	EncodingUTF16           // u"..."
	EncodingUTF32           // U"..."
)

// NumericBase records the base a numeric literal was written in.
type NumericBase uint8

const (
	Base10 NumericBase = iota
	Base16
	Base8
	Base2
)

// Position is a location in the preprocessed byte stream plus, via the
// caller-supplied line map, the originating source file/line.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

// Token is one lexeme. Kind-specific data is carried in the fields relevant
// to that Kind; fields irrelevant to the current Kind are zero.
type Token struct {
	Kind Kind
	Pos  Position

	// Identifier / Keyword / Operator / Punctuator: the interned spelling.
	Text strtab.Handle

	// NumericLiteral
	IntValue    uint64
	FloatValue  float64
	IsFloat     bool
	IsUnsigned  bool
	NumBase     NumericBase
	Suffix      string
	RawLiteral  string // token range text for deferred complex-float parsing

	// StringLiteral / CharLiteral
	Decoded  []byte
	Enc      Encoding

	// Error token payload (LexicalError)
	ErrMessage string
}

// IsKeyword reports whether a spelling is one of the closed ~110 C++20 +
// MSVC-extension keywords recognized by the lexer.
func IsKeyword(spelling string) bool {
	_, ok := keywordSet[spelling]
	return ok
}

// keywordSet is the closed set consulted by a single hash lookup, per §4.1.
var keywordSet = map[string]struct{}{
	"alignas": {}, "alignof": {}, "and": {}, "and_eq": {}, "asm": {},
	"auto": {}, "bitand": {}, "bitor": {}, "bool": {}, "break": {},
	"case": {}, "catch": {}, "char": {}, "char8_t": {}, "char16_t": {},
	"char32_t": {}, "class": {}, "compl": {}, "concept": {}, "const": {},
	"consteval": {}, "constexpr": {}, "constinit": {}, "const_cast": {},
	"continue": {}, "co_await": {}, "co_return": {}, "co_yield": {},
	"decltype": {}, "default": {}, "delete": {}, "do": {}, "double": {},
	"dynamic_cast": {}, "else": {}, "enum": {}, "explicit": {}, "export": {},
	"extern": {}, "false": {}, "float": {}, "for": {}, "friend": {},
	"goto": {}, "if": {}, "inline": {}, "int": {}, "long": {}, "mutable": {},
	"namespace": {}, "new": {}, "noexcept": {}, "not": {}, "not_eq": {},
	"nullptr": {}, "operator": {}, "or": {}, "or_eq": {}, "private": {},
	"protected": {}, "public": {}, "register": {}, "reinterpret_cast": {},
	"requires": {}, "return": {}, "short": {}, "signed": {}, "sizeof": {},
	"static": {}, "static_assert": {}, "static_cast": {}, "struct": {},
	"switch": {}, "template": {}, "this": {}, "thread_local": {}, "throw": {},
	"true": {}, "try": {}, "typedef": {}, "typeid": {}, "typename": {},
	"union": {}, "unsigned": {}, "using": {}, "virtual": {}, "void": {},
	"volatile": {}, "wchar_t": {}, "while": {}, "xor": {}, "xor_eq": {},
	// MSVC extensions
	"__cdecl": {}, "__stdcall": {}, "__fastcall": {}, "__declspec": {},
	"__int8": {}, "__int16": {}, "__int32": {}, "__int64": {},
	"__forceinline": {}, "__interface": {}, "__based": {}, "__ptr32": {},
	"__ptr64": {}, "__super": {}, "__unaligned": {}, "__restrict": {},
}
