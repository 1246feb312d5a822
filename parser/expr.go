package parser

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/diag"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

// literalType assigns a numeric literal its C++ type from the suffix and
// value shape the lexer recorded (§4.1: literals carry their parsed value
// and suffix).
func literalType(t token.Token) typetab.Index {
	if t.IsFloat {
		if t.Suffix == "f" || t.Suffix == "F" {
			return typetab.Index(typetab.KindFloat)
		}
		return typetab.Index(typetab.KindDouble)
	}
	long := false
	for _, c := range t.Suffix {
		if c == 'l' || c == 'L' {
			long = true
		}
	}
	switch {
	case t.IsUnsigned && long:
		return typetab.Index(typetab.KindULong)
	case t.IsUnsigned:
		return typetab.Index(typetab.KindUInt)
	case long:
		return typetab.Index(typetab.KindLong)
	default:
		return typetab.Index(typetab.KindInt)
	}
}

// assignmentOps is the closed set of assignment operator spellings (§4.5);
// all are right-associative and bind looser than the conditional operator.
var assignmentOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true,
}

// binaryPrec gives each left-associative binary operator's precedence level;
// higher binds tighter. Mirrors the standard C++ expression grammar minus
// the assignment/conditional/comma tiers, which parseAssignmentExpr and
// ParseExpr handle directly.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// ParseExpr parses the comma operator: `e1, e2, ...`.
func (p *Parser) ParseExpr() ast.NodeID {
	left := p.parseAssignmentExpr()
	for p.at(",") {
		pos := p.peek().Pos
		op := p.consume()
		right := p.parseAssignmentExpr()
		left = p.Arena.Add(ast.KindBinaryOp, pos, ast.BinaryOp{Op: op.Text, LHS: left, RHS: right})
	}
	return left
}

// parseAssignmentExpr parses `conditional-expr [assignment-op assignment-expr]`,
// right-associative per §4.5.
func (p *Parser) parseAssignmentExpr() ast.NodeID {
	left := p.parseConditionalExpr()
	t := p.peek()
	if (t.Kind == token.Operator || t.Kind == token.Punctuator) && assignmentOps[p.spelling(t)] {
		pos := t.Pos
		op := p.consume()
		right := p.parseAssignmentExpr()
		return p.Arena.Add(ast.KindBinaryOp, pos, ast.BinaryOp{Op: op.Text, LHS: left, RHS: right})
	}
	return left
}

// parseConditionalExpr parses `logical-or-expr ['?' expr ':' assignment-expr]`.
func (p *Parser) parseConditionalExpr() ast.NodeID {
	cond := p.parseBinaryExpr(1)
	if p.at("?") {
		pos := p.consume().Pos
		then := p.ParseExpr()
		p.expect(":")
		els := p.parseAssignmentExpr()
		return p.Arena.Add(ast.KindConditional, pos, ast.Conditional{Cond: cond, Then: then, Else: els})
	}
	return cond
}

// parseBinaryExpr implements precedence climbing over binaryPrec, starting
// at minPrec.
func (p *Parser) parseBinaryExpr(minPrec int) ast.NodeID {
	left := p.parseUnaryExpr()
	for {
		t := p.peek()
		if t.Kind != token.Operator && t.Kind != token.Punctuator {
			break
		}
		spelling := p.spelling(t)
		prec, ok := binaryPrec[spelling]
		if !ok || prec < minPrec {
			break
		}
		pos := t.Pos
		op := p.consume()
		right := p.parseBinaryExpr(prec + 1)
		left = p.Arena.Add(ast.KindBinaryOp, pos, ast.BinaryOp{Op: op.Text, LHS: left, RHS: right})
	}
	return left
}

// prefixUnaryOps is the closed set of prefix unary operator spellings handled
// directly by parseUnaryExpr; `sizeof`/`alignof`/casts/`new`/`delete`/`throw`
// are parsed by dedicated productions below.
var prefixUnaryOps = map[string]bool{
	"+": true, "-": true, "!": true, "~": true, "*": true, "&": true,
	"++": true, "--": true,
}

// parseUnaryExpr parses prefix operators, sizeof/alignof, casts, new/delete,
// throw, and falls through to parsePostfixExpr for everything else (§4.5).
func (p *Parser) parseUnaryExpr() ast.NodeID {
	t := p.peek()

	if t.Kind == token.Operator || t.Kind == token.Punctuator {
		spelling := p.spelling(t)
		if prefixUnaryOps[spelling] {
			pos := p.consume().Pos
			operand := p.parseUnaryExpr()
			return p.Arena.Add(ast.KindUnaryOp, pos, ast.UnaryOp{Op: t.Text, Operand: operand})
		}
	}

	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "sizeof":
			return p.parseSizeof()
		case "alignof":
			return p.parseAlignof()
		case "static_cast", "dynamic_cast", "const_cast", "reinterpret_cast":
			return p.parseNamedCast()
		case "new":
			return p.parseNew()
		case "delete":
			return p.parseDelete()
		case "throw":
			return p.parseThrow()
		}
	}

	// C-style cast: `( type-id ) unary-expr`, disambiguated via SFINAE trial
	// since `(x)` alone is a parenthesized expression.
	if p.at("(") {
		mark := p.BeginTrial()
		pos := p.peek().Pos
		p.consume()
		if looksLikeTypeStart(p) {
			spec := p.ParseTypeSpec()
			if p.at(")") {
				p.consume()
				if ok, _ := p.EndTrial(mark, false); ok {
					operand := p.parseUnaryExpr()
					return p.Arena.Add(ast.KindCast, pos, ast.Cast{Kind: ast.CastCStyle, TypeSpec: spec, Operand: operand})
				}
			} else {
				p.EndTrial(mark, true)
			}
		} else {
			p.EndTrial(mark, true)
		}
	}

	return p.parsePostfixExpr()
}

func (p *Parser) parseSizeof() ast.NodeID {
	pos := p.consume().Pos // 'sizeof'
	if p.at("...") {
		p.consume()
		p.expect("(")
		name := p.Strings.Intern(p.spelling(p.peek()))
		p.consume()
		p.expect(")")
		return p.Arena.Add(ast.KindSizeof, pos, ast.Sizeof{IsPack: true, PackName: name})
	}
	if p.at("(") {
		mark := p.BeginTrial()
		p.consume()
		if looksLikeTypeStart(p) {
			spec := p.ParseTypeSpec()
			if p.at(")") {
				p.consume()
				if ok, _ := p.EndTrial(mark, false); ok {
					return p.Arena.Add(ast.KindSizeof, pos, ast.Sizeof{TypeSpec: spec})
				}
			} else {
				p.EndTrial(mark, true)
			}
		} else {
			p.EndTrial(mark, true)
		}
	}
	operand := p.parseUnaryExpr()
	return p.Arena.Add(ast.KindSizeof, pos, ast.Sizeof{Operand: operand})
}

func (p *Parser) parseAlignof() ast.NodeID {
	pos := p.consume().Pos // 'alignof'
	p.expect("(")
	spec := p.ParseTypeSpec()
	p.expect(")")
	return p.Arena.Add(ast.KindAlignof, pos, ast.Alignof{TypeSpec: spec})
}

// parseNamedCast parses `static_cast<T>(expr)` and its siblings, all sharing
// one syntax shape with the cast kind determined by the keyword.
func (p *Parser) parseNamedCast() ast.NodeID {
	t := p.peek()
	pos := t.Pos
	var kind ast.CastKind
	switch p.Strings.String(t.Text) {
	case "static_cast":
		kind = ast.CastStatic
	case "dynamic_cast":
		kind = ast.CastDynamic
	case "const_cast":
		kind = ast.CastConst
	case "reinterpret_cast":
		kind = ast.CastReinterpret
	}
	p.consume()
	p.expect("<")
	p.Lex.SetTemplateArgMode(true)
	spec := p.ParseTypeSpec()
	p.expect(">")
	p.Lex.SetTemplateArgMode(false)
	p.expect("(")
	operand := p.ParseExpr()
	p.expect(")")
	return p.Arena.Add(ast.KindCast, pos, ast.Cast{Kind: kind, TypeSpec: spec, Operand: operand})
}

func (p *Parser) parseNew() ast.NodeID {
	pos := p.consume().Pos // 'new'
	spec := p.ParseTypeSpec()
	n := ast.New{TypeSpec: spec}
	if p.at("[") {
		p.consume()
		n.ArraySize = p.ParseExpr()
		p.expect("]")
	} else if p.at("(") {
		p.consume()
		for !p.at(")") {
			n.Args = append(n.Args, p.parseAssignmentExpr())
			if p.at(",") {
				p.consume()
				continue
			}
			break
		}
		p.expect(")")
	}
	return p.Arena.Add(ast.KindNew, pos, n)
}

func (p *Parser) parseDelete() ast.NodeID {
	pos := p.consume().Pos // 'delete'
	isArray := false
	if p.at("[") {
		p.consume()
		p.expect("]")
		isArray = true
	}
	operand := p.parseUnaryExpr()
	return p.Arena.Add(ast.KindDelete, pos, ast.Delete{Operand: operand, IsArray: isArray})
}

func (p *Parser) parseThrow() ast.NodeID {
	pos := p.consume().Pos // 'throw'
	if p.at(";") || p.at(")") || p.at(",") {
		return p.Arena.Add(ast.KindThrow, pos, ast.Throw{})
	}
	operand := p.parseAssignmentExpr()
	return p.Arena.Add(ast.KindThrow, pos, ast.Throw{Operand: operand})
}

// parsePostfixExpr parses calls, subscripts, member access, and
// post-increment/decrement layered onto a primary expression.
func (p *Parser) parsePostfixExpr() ast.NodeID {
	left := p.parsePrimaryExpr()
	for {
		switch {
		case p.at("("):
			pos := p.consume().Pos
			var args []ast.NodeID
			for !p.at(")") {
				args = append(args, p.parseCallArgument())
				if p.at(",") {
					p.consume()
					continue
				}
				break
			}
			p.expect(")")
			left = p.Arena.Add(ast.KindCall, pos, ast.Call{Callee: left, Args: args})
		case p.at("["):
			pos := p.consume().Pos
			idx := p.ParseExpr()
			p.expect("]")
			left = p.Arena.Add(ast.KindArraySubscript, pos, ast.ArraySubscript{Array: left, Index: idx})
		case p.at(".") || p.at("->"):
			arrow := p.at("->")
			pos := p.consume().Pos
			t := p.peek()
			member := p.Strings.Intern(p.spelling(t))
			p.consume()
			left = p.Arena.Add(ast.KindMemberAccess, pos, ast.MemberAccess{Base: left, Member: member, Arrow: arrow})
		case p.at("++") || p.at("--"):
			t := p.peek()
			pos := p.consume().Pos
			left = p.Arena.Add(ast.KindUnaryOp, pos, ast.UnaryOp{Op: t.Text, Operand: left, Postfix: true})
		case p.at("...") && p.atPackExpansionEnd():
			// Pack expansion: `args...` in a call/initializer list, expanded
			// against a concrete argument count once the enclosing template is
			// instantiated (§4.3). Represented as a postfix unary op so codegen
			// and the fold-expression walker share one expansion shape.
			t := p.peek()
			pos := p.consume().Pos
			left = p.Arena.Add(ast.KindUnaryOp, pos, ast.UnaryOp{Op: t.Text, Operand: left, Postfix: true})
		default:
			return left
		}
	}
}

// parseCallArgument parses one call argument: usually an
// assignment-expression, but a bare type-id when the argument position
// holds one — the type-trait intrinsics and `__builtin_va_arg` spell types
// in argument position (§6.3). Disambiguated the same way
// parseTemplateArgument is: a trial type-spec parse that wins only when it
// consumes the whole argument (up to ',' or ')'), so `T(x)` still parses as
// a constructor expression.
func (p *Parser) parseCallArgument() ast.NodeID {
	if looksLikeTypeStart(p) {
		mark := p.BeginTrial()
		node := p.ParseTypeSpec()
		if p.at(",") || p.at(")") {
			if ok, _ := p.EndTrial(mark, false); ok {
				return node
			}
		} else {
			p.EndTrial(mark, true)
		}
	}
	return p.parseAssignmentExpr()
}

// foldOperators is the closed set of fold-capable binary operators (§4.5).
var foldOperators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "^": true, "&": true, "|": true,
	"<<": true, ">>": true,
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"^=": true, "&=": true, "|=": true, "<<=": true, ">>=": true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, ",": true,
}

func (p *Parser) atFoldOperator() bool {
	t := p.peek()
	if t.Kind != token.Operator && t.Kind != token.Punctuator {
		return false
	}
	return foldOperators[p.spelling(t)]
}

// tryParseFoldExpr attempts the C++17 fold-expression syntax inside a
// parenthesized expression (§4.5): `(pack op ...)`, `(... op pack)`, or
// `(e1 op ... op e2)`. Operands are parsed at cast-expression level, the
// grammar's actual operand production, not full binary expressions — that
// is what lets `op ...` terminate the left operand instead of being folded
// into it. Returns ast.None without consuming anything if the parenthesized
// content isn't one of these three shapes.
func (p *Parser) tryParseFoldExpr() ast.NodeID {
	if !p.at("(") {
		return ast.None
	}
	mark := p.BeginTrial()
	pos := p.consume().Pos // '('

	if p.at("...") {
		p.consume()
		if !p.atFoldOperator() {
			p.EndTrial(mark, true)
			return ast.None
		}
		op := p.consume()
		pack := p.parseUnaryExpr()
		if !p.at(")") {
			p.EndTrial(mark, true)
			return ast.None
		}
		p.consume()
		if ok, _ := p.EndTrial(mark, false); ok {
			return p.Arena.Add(ast.KindFoldExpr, pos, ast.FoldExpr{Kind: ast.FoldUnaryLeft, Op: op.Text, Pack: pack})
		}
		return ast.None
	}

	first := p.parseUnaryExpr()
	if !p.atFoldOperator() {
		p.EndTrial(mark, true)
		return ast.None
	}
	op := p.consume()
	if !p.at("...") {
		p.EndTrial(mark, true)
		return ast.None
	}
	p.consume()

	if p.at(")") {
		p.consume()
		if ok, _ := p.EndTrial(mark, false); ok {
			return p.Arena.Add(ast.KindFoldExpr, pos, ast.FoldExpr{Kind: ast.FoldUnaryRight, Op: op.Text, Pack: first})
		}
		return ast.None
	}

	if !p.atFoldOperator() {
		p.EndTrial(mark, true)
		return ast.None
	}
	op2 := p.consume()
	if p.Strings.String(op.Text) != p.Strings.String(op2.Text) {
		p.EndTrial(mark, true)
		return ast.None
	}
	second := p.parseUnaryExpr()
	if !p.at(")") {
		p.EndTrial(mark, true)
		return ast.None
	}
	p.consume()
	if ok, _ := p.EndTrial(mark, false); ok {
		return p.Arena.Add(ast.KindFoldExpr, pos, ast.FoldExpr{Kind: ast.FoldBinaryRight, Op: op.Text, Pack: first, Init: second})
	}
	return ast.None
}

// parseLambda parses a lambda-expression: `[captures](params) mutable? ->
// ReturnType? { body }` (§4.5). The closure type itself is synthesized by
// codegen once capture types are known; the parser only records the syntax.
func (p *Parser) parseLambda() ast.NodeID {
	pos := p.consume().Pos // '['
	var captures []ast.LambdaCapture
	for !p.at("]") {
		switch {
		case p.at("&"):
			p.consume()
			if p.at(",") || p.at("]") {
				captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureByRef})
				break
			}
			name := p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
			captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureByRef, Name: name})
		case p.at("="):
			p.consume()
			captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureByValue})
		case p.at("*"):
			p.consume()
			p.expect("this")
			captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureStarThis})
		case p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "this":
			p.consume()
			captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureThis})
		default:
			name := p.Strings.Intern(p.spelling(p.peek()))
			p.consume()
			if p.at("=") {
				p.consume()
				init := p.parseAssignmentExpr()
				captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureInit, Name: name, Init: init})
			} else {
				captures = append(captures, ast.LambdaCapture{Kind: ast.CaptureByValue, Name: name})
			}
		}
		if p.at(",") {
			p.consume()
			continue
		}
		break
	}
	p.expect("]")

	var params []ast.NodeID
	if p.at("(") {
		p.consume()
		params = p.parseParamList()
		p.expect(")")
	}

	isMutable := false
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "mutable" {
		p.consume()
		isMutable = true
	}

	var retType ast.NodeID
	if p.at("->") {
		p.consume()
		retType = p.ParseTypeSpec()
	}

	body := p.parseBlock()
	return p.Arena.Add(ast.KindLambda, pos, ast.Lambda{
		Captures: captures, Params: params, ReturnType: retType, Body: body, IsMutable: isMutable,
	})
}

// parseRequiresExpr parses the requires-expression primary,
// `requires (param-list) { requirement-seq }` (the parameter list is
// optional). Used both as a freestanding constraint (nested inside a
// `requires` clause, e.g. `requires requires (T t) { t.begin(); }`) and
// anywhere else a requires-expression can appear as an operand.
func (p *Parser) parseRequiresExpr() ast.NodeID {
	pos := p.consume().Pos // 'requires'
	var params []ast.NodeID
	if p.at("(") {
		p.consume()
		if !p.at(")") {
			params = p.parseParamList()
		}
		p.expect(")")
	}
	p.expect("{")
	var reqs []ast.NodeID
	for !p.at("}") && p.peek().Kind != token.EndOfFile {
		reqs = append(reqs, p.parseRequirement())
	}
	p.expect("}")
	return p.Arena.Add(ast.KindRequiresExpr, pos, ast.RequiresExpr{Params: params, Requirements: reqs})
}

// parseRequirement parses one member of a requires-expression's body: a
// type-requirement (`typename T::value_type;`), a compound-requirement
// (`{ expr } noexcept -> Concept;`), or a simple-requirement (a bare
// expression statement).
func (p *Parser) parseRequirement() ast.NodeID {
	pos := p.peek().Pos
	if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "typename" {
		p.consume()
		name := p.parseQualifiedIdForType()
		p.expect(";")
		return p.Arena.Add(ast.KindRequirement, pos, ast.Requirement{Kind: ast.RequirementType, TypeName: name})
	}
	if p.at("{") {
		p.consume()
		expr := p.ParseExpr()
		p.expect("}")
		req := ast.Requirement{Kind: ast.RequirementCompound, Expr: expr}
		if p.peek().Kind == token.Keyword && p.Strings.String(p.peek().Text) == "noexcept" {
			p.consume()
			req.Noexcept = true
		}
		if p.at("->") {
			p.consume()
			req.ReturnType = p.ParseTypeSpec()
		}
		p.expect(";")
		return p.Arena.Add(ast.KindRequirement, pos, req)
	}
	expr := p.ParseExpr()
	p.expect(";")
	return p.Arena.Add(ast.KindRequirement, pos, ast.Requirement{Kind: ast.RequirementSimple, Expr: expr})
}

// atPackExpansionEnd reports whether the token following a `...` the caller
// is about to consume closes the list it sits in, the shape a pack
// expansion always has (`f(args...)`, `{args...}`, trailing in a
// comma-separated list never makes sense any other way in expression
// position).
func (p *Parser) atPackExpansionEnd() bool {
	nt := p.Lex.Peek(1)
	if nt.Kind != token.Punctuator {
		return false
	}
	switch p.Strings.String(nt.Text) {
	case ")", ",", "}", ";":
		return true
	}
	return false
}

// parsePrimaryExpr parses literals, parenthesized expressions, and
// identifier/qualified-id references.
func (p *Parser) parsePrimaryExpr() ast.NodeID {
	t := p.peek()
	switch t.Kind {
	case token.NumericLiteral:
		p.consume()
		return p.Arena.Add(ast.KindNumericLiteral, t.Pos, ast.NumericLiteral{
			IntValue: t.IntValue, FloatValue: t.FloatValue, IsFloat: t.IsFloat, IsUnsigned: t.IsUnsigned,
			Type: literalType(t),
		})
	case token.StringLiteral:
		p.consume()
		return p.Arena.Add(ast.KindStringLiteral, t.Pos, ast.StringLiteral{Decoded: t.Decoded, Enc: uint8(t.Enc)})
	case token.CharLiteral:
		p.consume()
		return p.Arena.Add(ast.KindCharLiteral, t.Pos, ast.CharLiteral{Decoded: t.Decoded, Enc: uint8(t.Enc)})
	case token.Identifier:
		// A concept-id (`Sortable<T>`) needs its trailing '<' read as a
		// template-argument list, not a less-than comparison; ordinary
		// identifiers keep the ambiguous-by-default expression treatment.
		return p.parseQualifiedId(p.isKnownTypeName(p.Strings.String(t.Text)))
	}

	if t.Kind == token.Keyword {
		switch p.Strings.String(t.Text) {
		case "true":
			p.consume()
			return p.Arena.Add(ast.KindNumericLiteral, t.Pos, ast.NumericLiteral{IntValue: 1, Type: typetab.Index(typetab.KindBool)})
		case "false":
			p.consume()
			return p.Arena.Add(ast.KindNumericLiteral, t.Pos, ast.NumericLiteral{IntValue: 0, Type: typetab.Index(typetab.KindBool)})
		case "nullptr":
			p.consume()
			return p.Arena.Add(ast.KindNumericLiteral, t.Pos, ast.NumericLiteral{IntValue: 0, Type: typetab.Index(typetab.KindNullptr)})
		case "this":
			p.consume()
			return p.Arena.Add(ast.KindIdentifierRef, t.Pos, ast.IdentifierRef{Name: p.Strings.Intern("this")})
		case "requires":
			return p.parseRequiresExpr()
		}
	}

	if p.at("::") {
		return p.parseQualifiedId(false)
	}

	if p.at("[") {
		return p.parseLambda()
	}

	if p.at("(") {
		if fold := p.tryParseFoldExpr(); fold != ast.None {
			return fold
		}
		p.consume()
		e := p.ParseExpr()
		p.expect(")")
		return e
	}

	p.errorf(diag.ParseError, t.Pos, "expected expression, got %q", p.spelling(t))
	// Don't swallow a statement/declaration terminator: the caller (often
	// expecting a ';' or ')' right after this expression) needs to see it to
	// resync correctly instead of eating the following declaration too.
	if t.Kind != token.EndOfFile && p.spelling(t) != ";" && p.spelling(t) != ")" && p.spelling(t) != "}" {
		p.consume()
	}
	return ast.None
}
