package parser

import (
	"fmt"
	"strings"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/lexer"
)

// scope tracks local variable names. A hard scope (file, class, module)
// hides the variables of enclosing scopes; a block scope does not.
type scope struct {
	vars map[string]bool
	hard bool
}

// Parser transforms a stream of tokens into a syntax tree
type Parser struct {
	tokens  []lexer.Token
	current int
	errors  []ParseError
	scopes  []*scope
	noDo    int // >0 while parsing command arguments; `do` then binds to the outer call
}

// New creates a new parser for the given token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
		errors:  make([]ParseError, 0),
	}
}

// Parse lexes and parses a source file. The returned file is always usable;
// its Root may be partial when errors are reported.
func Parse(path string, src []byte) (*ast.File, []ParseError) {
	file := ast.NewFile(path, src)

	tokens, lexErrors := lexer.New(string(src)).ScanTokens()
	root, parseErrors := New(tokens).Parse()
	file.Root = root

	errs := make([]ParseError, 0, len(lexErrors)+len(parseErrors))
	for _, err := range lexErrors {
		errs = append(errs, fromLexError(err))
	}
	errs = append(errs, parseErrors...)

	return file, errs
}

// Parse parses the token stream and returns the root node and any errors.
// The root is nil for an empty file, the sole statement for a one-statement
// file, and a begin node otherwise.
func (p *Parser) Parse() (*ast.Node, []ParseError) {
	p.pushScope(true)
	root := p.statements()
	p.popScope()

	if !p.isAtEnd() {
		p.error(p.peek(), fmt.Sprintf("Unexpected '%s'", p.peek().Lexeme))
	}

	return root, p.errors
}

// statements parses statements until EOF or one of the terminator tokens
func (p *Parser) statements(terminators ...lexer.TokenType) *ast.Node {
	stmts := make([]*ast.Node, 0)

	for {
		p.skipTerminators()
		if p.isAtEnd() || p.check(terminators...) {
			break
		}

		before := p.current
		if stmt := p.statement(); stmt != nil {
			stmts = append(stmts, stmt)
		}

		if !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_EOF) && !p.check(terminators...) {
			p.error(p.peek(), fmt.Sprintf("Expected end of statement, got '%s'", p.peek().Lexeme))
			p.skipToStatementEnd()
		}

		if p.current == before {
			p.advance()
		}
	}

	return sequence(stmts)
}

// statement parses an expression followed by any statement modifiers
func (p *Parser) statement() *ast.Node {
	node := p.expressionStatement()

	for node != nil && p.check(lexer.TOKEN_IF, lexer.TOKEN_UNLESS, lexer.TOKEN_WHILE, lexer.TOKEN_UNTIL, lexer.TOKEN_RESCUE) {
		keyword := p.advance()
		cond := p.expressionStatement()

		modified := &ast.Node{
			Kind:  ast.KindCond,
			Name:  keyword.Lexeme,
			Args:  []*ast.Node{node},
			Start: node.Start,
			End:   keyword.End,
			Loc:   node.Loc,
		}
		if cond != nil {
			modified.Args = append(modified.Args, cond)
			modified.End = cond.End
		}
		node = modified
	}

	return node
}

// expressionStatement handles the low-precedence `and`, `or` and `not`
func (p *Parser) expressionStatement() *ast.Node {
	left := p.notExpression()

	for left != nil && p.check(lexer.TOKEN_AND, lexer.TOKEN_OR) {
		op := p.advance()
		right := p.notExpression()
		left = operator(op.Lexeme, left, right)
	}

	return left
}

func (p *Parser) notExpression() *ast.Node {
	if p.check(lexer.TOKEN_NOT) {
		op := p.advance()
		operand := p.notExpression()
		return prefix(op, operand)
	}
	return p.expression()
}

// expression parses an assignment or a ternary expression
func (p *Parser) expression() *ast.Node {
	left := p.ternary()
	if left == nil || !p.check(lexer.TOKEN_EQUALS, lexer.TOKEN_OP_ASSIGN) {
		return left
	}
	if !assignable(left) {
		return left
	}

	op := p.advance()
	value := p.expression()
	if value == nil {
		p.error(p.peek(), "Expected value after assignment")
		return left
	}

	switch left.Kind {
	case ast.KindSend:
		if left.Name == "[]" {
			// h[k] = v
			return &ast.Node{
				Kind:     ast.KindSend,
				Receiver: left.Receiver,
				Name:     "[]=",
				Op:       op.Lexeme,
				Args:     append(append([]*ast.Node{}, left.Args...), value),
				Start:    left.Start,
				End:      value.End,
				Loc:      left.Loc,
			}
		}
		if left.Receiver != nil {
			// recv.attr = v
			return &ast.Node{
				Kind:     ast.KindSend,
				Receiver: left.Receiver,
				Name:     left.Name + "=",
				Op:       op.Lexeme,
				Args:     []*ast.Node{value},
				Start:    left.Start,
				End:      value.End,
				Loc:      left.Loc,
			}
		}
		p.declare(left.Name)
	case ast.KindLvar:
		p.declare(left.Name)
	}

	return &ast.Node{
		Kind:  ast.KindAsgn,
		Name:  left.Name,
		Op:    op.Lexeme,
		Args:  []*ast.Node{value},
		Start: left.Start,
		End:   value.End,
		Loc:   left.Loc,
	}
}

// assignable reports whether node may appear on the left of `=`
func assignable(node *ast.Node) bool {
	switch node.Kind {
	case ast.KindLvar, ast.KindIvar, ast.KindConst:
		return true
	case ast.KindSend:
		return len(node.Args) == 0 || node.Name == "[]"
	}
	return false
}

// ternary parses cond ? a : b
func (p *Parser) ternary() *ast.Node {
	cond := p.rangeExpression()
	if cond == nil || !p.check(lexer.TOKEN_QUESTION) {
		return cond
	}
	p.advance()

	var then *ast.Node
	if p.check(lexer.TOKEN_LABEL) {
		// `a ? b: c` lexes the then-branch as a label
		label := p.advance()
		then = &ast.Node{
			Kind:  ast.KindSend,
			Name:  label.Literal,
			Start: label.Offset,
			End:   label.Offset + len(label.Literal),
			Loc:   ast.TokenLocation(label),
		}
		if p.isLocal(label.Literal) {
			then.Kind = ast.KindLvar
		}
	} else {
		then = p.ternary()
		p.consume(lexer.TOKEN_COLON, "Expected ':' in ternary expression")
	}

	otherwise := p.ternary()

	node := &ast.Node{
		Kind:  ast.KindCond,
		Name:  "?",
		Args:  compact(cond, then, otherwise),
		Start: cond.Start,
		End:   p.previous().End,
		Loc:   cond.Loc,
	}
	return node
}

// rangeExpression parses a..b and a...b, including endless ranges
func (p *Parser) rangeExpression() *ast.Node {
	left := p.binary(0)
	if left == nil || !p.check(lexer.TOKEN_DOT2, lexer.TOKEN_DOT3) {
		return left
	}

	op := p.advance()
	var right *ast.Node
	if !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_EOF,
		lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_COMMA) {
		right = p.binary(0)
	}
	return operator(op.Lexeme, left, right)
}

// binaryLevels lists binary operators from lowest to highest precedence
var binaryLevels = [][]lexer.TokenType{
	{lexer.TOKEN_DOUBLE_PIPE},
	{lexer.TOKEN_DOUBLE_AMP},
	{lexer.TOKEN_SPACESHIP, lexer.TOKEN_EQ, lexer.TOKEN_CASE_EQ, lexer.TOKEN_NEQ, lexer.TOKEN_MATCH, lexer.TOKEN_NMATCH},
	{lexer.TOKEN_LT, lexer.TOKEN_GT, lexer.TOKEN_LTE, lexer.TOKEN_GTE},
	{lexer.TOKEN_PIPE, lexer.TOKEN_CARET},
	{lexer.TOKEN_AMP},
	{lexer.TOKEN_LSHIFT, lexer.TOKEN_RSHIFT},
	{lexer.TOKEN_PLUS, lexer.TOKEN_MINUS},
	{lexer.TOKEN_STAR, lexer.TOKEN_SLASH, lexer.TOKEN_PERCENT},
}

// binary parses left-associative binary operators by precedence climbing
func (p *Parser) binary(level int) *ast.Node {
	if level == len(binaryLevels) {
		return p.unary()
	}

	left := p.binary(level + 1)
	for left != nil && p.check(binaryLevels[level]...) {
		op := p.advance()
		right := p.binary(level + 1)
		left = operator(op.Lexeme, left, right)
	}
	return left
}

// unary parses prefix operators, defined? and exponentiation
func (p *Parser) unary() *ast.Node {
	switch {
	case p.check(lexer.TOKEN_BANG, lexer.TOKEN_TILDE):
		op := p.advance()
		return prefix(op, p.unary())
	case p.check(lexer.TOKEN_MINUS, lexer.TOKEN_PLUS):
		op := p.advance()
		if p.check(lexer.TOKEN_INT, lexer.TOKEN_FLOAT) && !p.peek().SpaceBefore {
			num := p.advance()
			kind := ast.KindInt
			if num.Type == lexer.TOKEN_FLOAT {
				kind = ast.KindFloat
			}
			return &ast.Node{
				Kind:  kind,
				Name:  op.Lexeme + num.Literal,
				Start: op.Offset,
				End:   num.End,
				Loc:   ast.TokenLocation(op),
			}
		}
		return prefix(op, p.unary())
	case p.check(lexer.TOKEN_DEFINED):
		keyword := p.advance()
		node := nodeFrom(ast.KindKeyword, keyword)
		node.Name = keyword.Lexeme
		if operand := p.unary(); operand != nil {
			node.Args = []*ast.Node{operand}
			node.End = operand.End
		}
		return node
	}

	base := p.postfix()
	if base != nil && p.check(lexer.TOKEN_DOUBLE_STAR) {
		op := p.advance()
		return operator(op.Lexeme, base, p.unary())
	}
	return base
}

// postfix parses method chains, scope resolution and indexing
func (p *Parser) postfix() *ast.Node {
	node := p.primary()

	for node != nil {
		switch {
		case p.check(lexer.TOKEN_DOT, lexer.TOKEN_SAFE_NAV):
			dot := p.advance()
			if p.check(lexer.TOKEN_LPAREN) {
				// recv.(args) is recv.call(args)
				node = p.callRest(node, lexer.Token{Lexeme: "call", Offset: dot.End, End: dot.End, Line: dot.Line, Column: dot.Column + 1}, dot)
				continue
			}
			if !p.check(lexer.TOKEN_IDENTIFIER, lexer.TOKEN_CONSTANT) {
				p.error(p.peek(), "Expected method name after '.'")
				return node
			}
			node = p.callRest(node, p.advance(), dot)
		case p.check(lexer.TOKEN_DOUBLE_COLON):
			colons := p.advance()
			switch {
			case p.check(lexer.TOKEN_CONSTANT) && !(p.checkNext(lexer.TOKEN_LPAREN) && !p.peekNext().SpaceBefore):
				name := p.advance()
				node = &ast.Node{
					Kind:     ast.KindConst,
					Receiver: node,
					Name:     name.Lexeme,
					Start:    node.Start,
					End:      name.End,
					Loc:      node.Loc,
				}
			case p.check(lexer.TOKEN_IDENTIFIER, lexer.TOKEN_CONSTANT):
				node = p.callRest(node, p.advance(), colons)
			default:
				p.error(p.peek(), "Expected name after '::'")
				return node
			}
		case p.check(lexer.TOKEN_LBRACKET) && !p.peek().SpaceBefore:
			p.advance()
			args := p.nested(func() []*ast.Node { return p.argList(lexer.TOKEN_RBRACKET) })
			closing, _ := p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after index")
			node = &ast.Node{
				Kind:     ast.KindSend,
				Receiver: node,
				Name:     "[]",
				Args:     args,
				Start:    node.Start,
				End:      closing.End,
				Loc:      node.Loc,
			}
		default:
			return node
		}
	}

	return node
}

// callRest completes a method call whose name token has been consumed:
// parenthesized or command arguments, then an optional block
func (p *Parser) callRest(receiver *ast.Node, name lexer.Token, op lexer.Token) *ast.Node {
	send := &ast.Node{
		Kind:     ast.KindSend,
		Receiver: receiver,
		Name:     name.Lexeme,
		Start:    name.Offset,
		End:      name.End,
		Loc:      ast.TokenLocation(name),
	}
	if receiver != nil {
		send.Start = receiver.Start
		send.Loc = receiver.Loc
		if op.Type == lexer.TOKEN_SAFE_NAV {
			send.Op = op.Lexeme
		}
	}

	switch {
	case p.check(lexer.TOKEN_LPAREN) && !p.peek().SpaceBefore:
		p.advance()
		send.Args = p.nested(func() []*ast.Node { return p.argList(lexer.TOKEN_RPAREN) })
		closing, _ := p.consume(lexer.TOKEN_RPAREN, "Expected ')' after arguments")
		send.End = closing.End
	case p.canStartCommandArg():
		send.Args = p.commandArgs()
		if n := len(send.Args); n > 0 {
			send.End = send.Args[n-1].End
		}
	}

	return p.blockCall(send)
}

// canStartCommandArg decides whether the token after a method name begins
// an argument of a parenthesis-less call (`has_many :posts`)
func (p *Parser) canStartCommandArg() bool {
	token := p.peek()
	if !token.SpaceBefore {
		return false
	}

	switch token.Type {
	case lexer.TOKEN_IDENTIFIER, lexer.TOKEN_CONSTANT, lexer.TOKEN_IVAR, lexer.TOKEN_LABEL,
		lexer.TOKEN_INT, lexer.TOKEN_FLOAT, lexer.TOKEN_STRING, lexer.TOKEN_DSTRING,
		lexer.TOKEN_SYMBOL, lexer.TOKEN_REGEXP, lexer.TOKEN_WORDS, lexer.TOKEN_SYMBOLS,
		lexer.TOKEN_SELF, lexer.TOKEN_NIL, lexer.TOKEN_TRUE, lexer.TOKEN_FALSE,
		lexer.TOKEN_ARROW, lexer.TOKEN_DEFINED, lexer.TOKEN_DEF, lexer.TOKEN_BANG,
		lexer.TOKEN_LBRACKET, lexer.TOKEN_LPAREN:
		return true
	case lexer.TOKEN_MINUS, lexer.TOKEN_STAR, lexer.TOKEN_DOUBLE_STAR, lexer.TOKEN_AMP,
		lexer.TOKEN_DOUBLE_COLON, lexer.TOKEN_TILDE:
		return !p.peekNext().SpaceBefore
	}
	return false
}

// commandArgs parses comma-separated arguments without parentheses
func (p *Parser) commandArgs() []*ast.Node {
	p.noDo++
	defer func() { p.noDo-- }()
	return p.argList()
}

// argList parses call arguments. With a closer, newlines are insignificant
// and parsing stops at the closer (which is not consumed). Keyword pairs are
// collected into one trailing hash node.
func (p *Parser) argList(closers ...lexer.TokenType) []*ast.Node {
	args := make([]*ast.Node, 0)
	var hash *ast.Node

	for {
		if len(closers) > 0 {
			p.skipNewlines()
			if p.check(closers...) || p.isAtEnd() {
				break
			}
		}

		arg := p.argument()
		if arg == nil {
			break
		}

		if arg.Kind == ast.KindPair || (arg.Kind == ast.KindSplat && arg.Op == "**") {
			if hash == nil {
				hash = &ast.Node{Kind: ast.KindHash, Start: arg.Start, Loc: arg.Loc}
				args = append(args, hash)
			}
			hash.Args = append(hash.Args, arg)
			hash.End = arg.End
		} else {
			args = append(args, arg)
		}

		if len(closers) > 0 {
			p.skipNewlines()
		}
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}

	return args
}

// argument parses a single argument, hash entry or array element
func (p *Parser) argument() *ast.Node {
	switch {
	case p.check(lexer.TOKEN_STAR, lexer.TOKEN_DOUBLE_STAR):
		op := p.advance()
		node := nodeFrom(ast.KindSplat, op)
		node.Op = op.Lexeme
		if !p.check(lexer.TOKEN_COMMA, lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_RBRACE) {
			if value := p.ternary(); value != nil {
				node.Args = []*ast.Node{value}
				node.End = value.End
			}
		}
		return node

	case p.check(lexer.TOKEN_AMP):
		op := p.advance()
		node := nodeFrom(ast.KindBlockPass, op)
		if !p.check(lexer.TOKEN_COMMA, lexer.TOKEN_RPAREN) {
			if value := p.ternary(); value != nil {
				node.Args = []*ast.Node{value}
				node.End = value.End
			}
		}
		return node

	case p.check(lexer.TOKEN_LABEL):
		label := p.advance()
		key := &ast.Node{
			Kind:  ast.KindSym,
			Name:  label.Literal,
			Start: label.Offset,
			End:   label.Offset + len(label.Literal),
			Loc:   ast.TokenLocation(label),
		}
		return p.pairValue(key, label)

	case p.check(lexer.TOKEN_STRING, lexer.TOKEN_DSTRING) && p.checkNext(lexer.TOKEN_COLON) && !p.peekNext().SpaceBefore:
		// "quoted": value
		str := p.advance()
		colon := p.advance()
		key := p.literal(str)
		key.Kind = ast.KindSym
		return p.pairValue(key, colon)
	}

	value := p.expression()
	if value == nil {
		return nil
	}

	if p.check(lexer.TOKEN_HASH_ROCKET) {
		p.advance()
		v := p.expression()
		pair := &ast.Node{
			Kind:  ast.KindPair,
			Args:  []*ast.Node{value, v},
			Start: value.Start,
			End:   p.previous().End,
			Loc:   value.Loc,
		}
		return pair
	}

	return value
}

// pairValue completes a `key: value` pair; the value may be omitted
func (p *Parser) pairValue(key *ast.Node, last lexer.Token) *ast.Node {
	pair := &ast.Node{
		Kind:  ast.KindPair,
		Args:  []*ast.Node{key, nil},
		Start: key.Start,
		End:   last.End,
		Loc:   key.Loc,
	}

	if p.check(lexer.TOKEN_COMMA, lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACE, lexer.TOKEN_RBRACKET,
		lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_EOF) {
		return pair
	}

	if value := p.expression(); value != nil {
		pair.Args[1] = value
		pair.End = value.End
	}
	return pair
}

// blockCall attaches a brace or do block to a call
func (p *Parser) blockCall(send *ast.Node) *ast.Node {
	switch {
	case p.check(lexer.TOKEN_LBRACE):
		return p.block(send)
	case p.check(lexer.TOKEN_DO) && p.noDo == 0:
		return p.block(send)
	}
	return send
}

// block parses `{ |params| body }` or `do |params| body end` after a call
func (p *Parser) block(call *ast.Node) *ast.Node {
	open := p.advance()
	closer := lexer.TOKEN_END
	if open.Type == lexer.TOKEN_LBRACE {
		closer = lexer.TOKEN_RBRACE
	}

	p.pushScope(false)
	defer p.popScope()

	var params *ast.Node
	switch {
	case p.check(lexer.TOKEN_PIPE):
		params = p.paramList(lexer.TOKEN_PIPE)
	case p.check(lexer.TOKEN_DOUBLE_PIPE):
		empty := p.advance()
		params = nodeFrom(ast.KindArgs, empty)
	}

	body := p.nestedBody(closer)
	closing, _ := p.consume(closer, fmt.Sprintf("Expected '%s' to close block", closerText(closer)))

	return &ast.Node{
		Kind:   ast.KindBlock,
		Call:   call,
		Params: params,
		Body:   body,
		Start:  call.Start,
		End:    closing.End,
		Loc:    call.Loc,
	}
}

// nestedBody parses a block or lambda body, skipping rescue/ensure clauses
func (p *Parser) nestedBody(closer lexer.TokenType) *ast.Node {
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()

	body := p.statements(closer, lexer.TOKEN_RESCUE, lexer.TOKEN_ELSE, lexer.TOKEN_ENSURE)
	for p.check(lexer.TOKEN_RESCUE, lexer.TOKEN_ELSE, lexer.TOKEN_ENSURE) {
		p.advance()
		p.skipToStatementEnd()
		p.statements(closer, lexer.TOKEN_RESCUE, lexer.TOKEN_ELSE, lexer.TOKEN_ENSURE)
	}
	return body
}

// paramList parses block or lambda parameters. For `|` and `(` lists the
// opening delimiter is the current token; a bare lambda list has none.
func (p *Parser) paramList(closer lexer.TokenType) *ast.Node {
	open := p.peek()
	params := nodeFrom(ast.KindArgs, open)
	bare := closer == lexer.TOKEN_LBRACE
	if !bare {
		p.advance()
	}

	for !p.isAtEnd() {
		if bare && p.check(lexer.TOKEN_LBRACE, lexer.TOKEN_DO) {
			break
		}
		if !bare && p.check(closer) {
			break
		}

		switch {
		case p.check(lexer.TOKEN_STAR, lexer.TOKEN_DOUBLE_STAR, lexer.TOKEN_AMP):
			p.advance()
			if p.check(lexer.TOKEN_IDENTIFIER) {
				params.Args = append(params.Args, p.param(p.advance()))
			}
		case p.check(lexer.TOKEN_IDENTIFIER):
			params.Args = append(params.Args, p.param(p.advance()))
			if p.match(lexer.TOKEN_EQUALS) {
				p.unary()
			}
		case p.check(lexer.TOKEN_LABEL):
			label := p.advance()
			arg := p.param(label)
			arg.Name = label.Literal
			p.declare(label.Literal)
			params.Args = append(params.Args, arg)
			if !p.check(lexer.TOKEN_COMMA, closer, lexer.TOKEN_LBRACE) {
				p.unary()
			}
		case p.check(lexer.TOKEN_LPAREN):
			// destructuring: |(key, value), index|
			p.advance()
			for !p.isAtEnd() && !p.check(lexer.TOKEN_RPAREN) {
				if p.check(lexer.TOKEN_IDENTIFIER) {
					params.Args = append(params.Args, p.param(p.advance()))
					continue
				}
				p.advance()
			}
			p.consume(lexer.TOKEN_RPAREN, "Expected ')' in block parameters")
		case p.check(lexer.TOKEN_SEMICOLON):
			p.advance()
		default:
			p.error(p.peek(), fmt.Sprintf("Unexpected '%s' in parameter list", p.peek().Lexeme))
			p.advance()
		}

		if !p.match(lexer.TOKEN_COMMA) && !p.check(lexer.TOKEN_SEMICOLON) {
			break
		}
	}

	if bare {
		params.End = p.previous().End
		return params
	}

	closing, _ := p.consume(closer, fmt.Sprintf("Expected '%s' after parameters", closerText(closer)))
	params.End = closing.End
	return params
}

func (p *Parser) param(name lexer.Token) *ast.Node {
	arg := nodeFrom(ast.KindArg, name)
	arg.Name = name.Lexeme
	p.declare(name.Lexeme)
	return arg
}

// primary parses literals, variables, calls and definitions
//
//nolint:gocyclo,cyclop // Parser dispatch function - complexity is inherent to the pattern
func (p *Parser) primary() *ast.Node {
	token := p.peek()

	switch token.Type {
	case lexer.TOKEN_INT, lexer.TOKEN_FLOAT, lexer.TOKEN_STRING, lexer.TOKEN_DSTRING,
		lexer.TOKEN_SYMBOL, lexer.TOKEN_REGEXP:
		p.advance()
		return p.literal(token)

	case lexer.TOKEN_WORDS, lexer.TOKEN_SYMBOLS:
		p.advance()
		return p.wordList(token)

	case lexer.TOKEN_NIL, lexer.TOKEN_TRUE, lexer.TOKEN_FALSE, lexer.TOKEN_SELF:
		p.advance()
		node := nodeFrom(keywordKinds[token.Type], token)
		node.Name = token.Lexeme
		return node

	case lexer.TOKEN_IVAR:
		p.advance()
		node := nodeFrom(ast.KindIvar, token)
		node.Name = token.Lexeme
		return node

	case lexer.TOKEN_CONSTANT:
		p.advance()
		if p.check(lexer.TOKEN_LPAREN) && !p.peek().SpaceBefore {
			return p.callRest(nil, token, lexer.Token{})
		}
		node := nodeFrom(ast.KindConst, token)
		node.Name = token.Lexeme
		return node

	case lexer.TOKEN_DOUBLE_COLON:
		p.advance()
		name, ok := p.consume(lexer.TOKEN_CONSTANT, "Expected constant after '::'")
		if !ok {
			return nil
		}
		return &ast.Node{
			Kind:  ast.KindConst,
			Name:  name.Lexeme,
			Start: token.Offset,
			End:   name.End,
			Loc:   ast.TokenLocation(token),
		}

	case lexer.TOKEN_IDENTIFIER:
		p.advance()
		if p.isLocal(token.Lexeme) && !(p.check(lexer.TOKEN_LPAREN) && !p.peek().SpaceBefore) {
			node := nodeFrom(ast.KindLvar, token)
			node.Name = token.Lexeme
			return node
		}
		return p.callRest(nil, token, lexer.Token{})

	case lexer.TOKEN_LPAREN:
		return p.group()

	case lexer.TOKEN_LBRACKET:
		return p.array()

	case lexer.TOKEN_LBRACE:
		return p.hash()

	case lexer.TOKEN_ARROW:
		return p.lambda()

	case lexer.TOKEN_CLASS:
		if p.checkNext(lexer.TOKEN_LSHIFT) {
			return p.opaque()
		}
		return p.classDefinition()

	case lexer.TOKEN_MODULE:
		return p.moduleDefinition()

	case lexer.TOKEN_DEF, lexer.TOKEN_IF, lexer.TOKEN_UNLESS, lexer.TOKEN_WHILE, lexer.TOKEN_UNTIL,
		lexer.TOKEN_CASE, lexer.TOKEN_BEGIN, lexer.TOKEN_FOR:
		return p.opaque()

	case lexer.TOKEN_RETURN, lexer.TOKEN_BREAK, lexer.TOKEN_NEXT, lexer.TOKEN_REDO, lexer.TOKEN_RETRY,
		lexer.TOKEN_YIELD, lexer.TOKEN_SUPER:
		return p.keyword()

	case lexer.TOKEN_ALIAS:
		p.advance()
		node := nodeFrom(ast.KindKeyword, token)
		node.Name = token.Lexeme
		for i := 0; i < 2 && !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_EOF); i++ {
			node.End = p.advance().End
		}
		return node

	case lexer.TOKEN_UNDEF:
		p.advance()
		node := nodeFrom(ast.KindKeyword, token)
		node.Name = token.Lexeme
		for !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_EOF) {
			node.End = p.advance().End
		}
		return node
	}

	p.error(token, fmt.Sprintf("Unexpected '%s'", token.Lexeme))
	if !p.isAtEnd() && !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON) {
		p.advance()
	}
	return nil
}

var keywordKinds = map[lexer.TokenType]ast.Kind{
	lexer.TOKEN_NIL:   ast.KindNil,
	lexer.TOKEN_TRUE:  ast.KindTrue,
	lexer.TOKEN_FALSE: ast.KindFalse,
	lexer.TOKEN_SELF:  ast.KindSelf,
}

// literal builds a node for a single-token literal
func (p *Parser) literal(token lexer.Token) *ast.Node {
	kinds := map[lexer.TokenType]ast.Kind{
		lexer.TOKEN_INT:     ast.KindInt,
		lexer.TOKEN_FLOAT:   ast.KindFloat,
		lexer.TOKEN_STRING:  ast.KindStr,
		lexer.TOKEN_DSTRING: ast.KindDstr,
		lexer.TOKEN_SYMBOL:  ast.KindSym,
		lexer.TOKEN_REGEXP:  ast.KindRegexp,
	}
	node := nodeFrom(kinds[token.Type], token)
	node.Name = token.Literal
	return node
}

// wordList expands %w[] and %i[] into an array of strings or symbols
func (p *Parser) wordList(token lexer.Token) *ast.Node {
	kind := ast.KindStr
	if token.Type == lexer.TOKEN_SYMBOLS {
		kind = ast.KindSym
	}

	array := nodeFrom(ast.KindArray, token)
	for _, word := range strings.Fields(token.Literal) {
		element := nodeFrom(kind, token)
		element.Name = word
		array.Args = append(array.Args, element)
	}
	return array
}

// group parses a parenthesized expression sequence
func (p *Parser) group() *ast.Node {
	open := p.advance()

	saved := p.noDo
	p.noDo = 0
	body := p.statements(lexer.TOKEN_RPAREN)
	p.noDo = saved

	closing, _ := p.consume(lexer.TOKEN_RPAREN, "Expected ')'")

	node := nodeFrom(ast.KindBegin, open)
	node.End = closing.End
	switch {
	case body == nil:
	case body.Kind == ast.KindBegin:
		node.Args = body.Args
	default:
		node.Args = []*ast.Node{body}
	}
	return node
}

// array parses an array literal
func (p *Parser) array() *ast.Node {
	open := p.advance()
	elements := p.nested(func() []*ast.Node { return p.argList(lexer.TOKEN_RBRACKET) })
	closing, _ := p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after array elements")

	node := nodeFrom(ast.KindArray, open)
	node.Args = elements
	node.End = closing.End
	return node
}

// hash parses a hash literal
func (p *Parser) hash() *ast.Node {
	open := p.advance()
	node := nodeFrom(ast.KindHash, open)

	entries := p.nested(func() []*ast.Node { return p.argList(lexer.TOKEN_RBRACE) })
	for _, entry := range entries {
		if entry.Kind == ast.KindHash {
			node.Args = append(node.Args, entry.Args...)
			continue
		}
		p.errors = append(p.errors, ParseError{
			Message:  "Expected key/value pair in hash literal",
			Location: entry.Loc,
			Token:    p.peek(),
		})
	}

	closing, _ := p.consume(lexer.TOKEN_RBRACE, "Expected '}' after hash entries")
	node.End = closing.End
	return node
}

// lambda parses -> (params) { body } and -> do ... end
func (p *Parser) lambda() *ast.Node {
	arrow := p.advance()
	node := nodeFrom(ast.KindLambda, arrow)

	p.pushScope(false)
	defer p.popScope()

	switch {
	case p.check(lexer.TOKEN_LPAREN):
		node.Params = p.paramList(lexer.TOKEN_RPAREN)
	case p.check(lexer.TOKEN_IDENTIFIER, lexer.TOKEN_STAR, lexer.TOKEN_AMP):
		node.Params = p.paramList(lexer.TOKEN_LBRACE)
	}

	var closer lexer.TokenType
	switch {
	case p.match(lexer.TOKEN_LBRACE):
		closer = lexer.TOKEN_RBRACE
	case p.match(lexer.TOKEN_DO):
		closer = lexer.TOKEN_END
	default:
		p.error(p.peek(), "Expected '{' or 'do' after '->'")
		return node
	}

	node.Body = p.nestedBody(closer)
	closing, _ := p.consume(closer, fmt.Sprintf("Expected '%s' to close lambda", closerText(closer)))
	node.End = closing.End
	return node
}

// keyword parses return, yield, super and friends with optional arguments
func (p *Parser) keyword() *ast.Node {
	token := p.advance()
	node := nodeFrom(ast.KindKeyword, token)
	node.Name = token.Lexeme

	switch {
	case p.check(lexer.TOKEN_LPAREN) && !p.peek().SpaceBefore:
		p.advance()
		node.Args = p.nested(func() []*ast.Node { return p.argList(lexer.TOKEN_RPAREN) })
		closing, _ := p.consume(lexer.TOKEN_RPAREN, "Expected ')' after arguments")
		node.End = closing.End
	case p.canStartCommandArg():
		node.Args = p.commandArgs()
		if n := len(node.Args); n > 0 {
			node.End = node.Args[n-1].End
		}
	}

	if token.Type == lexer.TOKEN_SUPER {
		return p.blockCall(node)
	}
	return node
}

// classDefinition parses `class Name < Superclass ... end`
func (p *Parser) classDefinition() *ast.Node {
	start := p.current
	classToken := p.advance()

	name := p.constPath()
	if name == nil {
		p.current = start
		return p.opaque()
	}

	var superclass *ast.Node
	if p.match(lexer.TOKEN_LT) {
		superclass = p.binary(0)
		if superclass == nil {
			p.error(p.peek(), "Expected superclass after '<'")
		}
	}

	p.pushScope(true)
	body := p.statements(lexer.TOKEN_END)
	p.popScope()

	closing, _ := p.consume(lexer.TOKEN_END, fmt.Sprintf("Expected 'end' to close class %s", name.Name))

	return &ast.Node{
		Kind:       ast.KindClass,
		Const:      name,
		Superclass: superclass,
		Body:       body,
		Start:      classToken.Offset,
		End:        closing.End,
		Loc:        ast.TokenLocation(classToken),
	}
}

// moduleDefinition parses `module Name ... end`
func (p *Parser) moduleDefinition() *ast.Node {
	start := p.current
	moduleToken := p.advance()

	name := p.constPath()
	if name == nil {
		p.current = start
		return p.opaque()
	}

	p.pushScope(true)
	body := p.statements(lexer.TOKEN_END)
	p.popScope()

	closing, _ := p.consume(lexer.TOKEN_END, fmt.Sprintf("Expected 'end' to close module %s", name.Name))

	return &ast.Node{
		Kind:  ast.KindModule,
		Const: name,
		Body:  body,
		Start: moduleToken.Offset,
		End:   closing.End,
		Loc:   ast.TokenLocation(moduleToken),
	}
}

// constPath parses Foo, Foo::Bar and ::Foo
func (p *Parser) constPath() *ast.Node {
	var node *ast.Node

	if p.check(lexer.TOKEN_DOUBLE_COLON) && p.checkNext(lexer.TOKEN_CONSTANT) {
		colons := p.advance()
		name := p.advance()
		node = &ast.Node{
			Kind:  ast.KindConst,
			Name:  name.Lexeme,
			Start: colons.Offset,
			End:   name.End,
			Loc:   ast.TokenLocation(colons),
		}
	} else if p.check(lexer.TOKEN_CONSTANT) {
		name := p.advance()
		node = nodeFrom(ast.KindConst, name)
		node.Name = name.Lexeme
	} else {
		return nil
	}

	for p.check(lexer.TOKEN_DOUBLE_COLON) && p.checkNext(lexer.TOKEN_CONSTANT) {
		p.advance()
		name := p.advance()
		node = &ast.Node{
			Kind:     ast.KindConst,
			Receiver: node,
			Name:     name.Lexeme,
			Start:    node.Start,
			End:      name.End,
			Loc:      node.Loc,
		}
	}

	return node
}

// nested runs fn with `do` binding restored, as inside parentheses
func (p *Parser) nested(fn func() []*ast.Node) []*ast.Node {
	saved := p.noDo
	p.noDo = 0
	defer func() { p.noDo = saved }()
	return fn()
}

// Local variable scopes

func (p *Parser) pushScope(hard bool) {
	p.scopes = append(p.scopes, &scope{vars: make(map[string]bool), hard: hard})
}

func (p *Parser) popScope() {
	if len(p.scopes) > 0 {
		p.scopes = p.scopes[:len(p.scopes)-1]
	}
}

func (p *Parser) declare(name string) {
	if len(p.scopes) == 0 {
		p.pushScope(true)
	}
	p.scopes[len(p.scopes)-1].vars[name] = true
}

func (p *Parser) isLocal(name string) bool {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if p.scopes[i].vars[name] {
			return true
		}
		if p.scopes[i].hard {
			return false
		}
	}
	return false
}

// Helper methods

// match checks if current token matches any of the given types and advances if so
func (p *Parser) match(types ...lexer.TokenType) bool {
	if p.check(types...) {
		p.advance()
		return true
	}
	return false
}

// check returns true if current token is one of the given types
func (p *Parser) check(types ...lexer.TokenType) bool {
	current := p.peek().Type
	for _, t := range types {
		if current == t {
			return true
		}
	}
	return false
}

// checkNext returns true if the token after the current one is of the given type
func (p *Parser) checkNext(tokenType lexer.TokenType) bool {
	return p.peekNext().Type == tokenType
}

// advance consumes the current token and returns it
func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

// isAtEnd returns true if we're at the end of the token stream
func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Type == lexer.TOKEN_EOF
}

// peek returns the current token without consuming it
func (p *Parser) peek() lexer.Token {
	if p.current >= len(p.tokens) {
		if len(p.tokens) == 0 {
			return lexer.Token{Type: lexer.TOKEN_EOF}
		}
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current]
}

// peekNext returns the token after the current one
func (p *Parser) peekNext() lexer.Token {
	if p.current+1 >= len(p.tokens) {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current+1]
}

// previous returns the most recently consumed token
func (p *Parser) previous() lexer.Token {
	if p.current == 0 || len(p.tokens) == 0 {
		return p.peek()
	}
	return p.tokens[p.current-1]
}

// consume expects a token of the given type and advances, or records an error
func (p *Parser) consume(tokenType lexer.TokenType, message string) (lexer.Token, bool) {
	if p.check(tokenType) {
		return p.advance(), true
	}
	p.error(p.peek(), message)
	// Report the error at the last good position so spans stay ordered
	return p.previous(), false
}

// error records a parse error
func (p *Parser) error(token lexer.Token, message string) {
	p.errors = append(p.errors, NewParseError(message, token))
}

// skipNewlines skips insignificant line breaks inside delimiters
func (p *Parser) skipNewlines() {
	for p.check(lexer.TOKEN_NEWLINE) {
		p.advance()
	}
}

// skipTerminators skips statement separators
func (p *Parser) skipTerminators() {
	for p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON) {
		p.advance()
	}
}

// skipToStatementEnd discards tokens up to the next statement separator
func (p *Parser) skipToStatementEnd() {
	for !p.isAtEnd() && !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON) {
		p.advance()
	}
}

// Node construction

func nodeFrom(kind ast.Kind, token lexer.Token) *ast.Node {
	return &ast.Node{
		Kind:  kind,
		Start: token.Offset,
		End:   token.End,
		Loc:   ast.TokenLocation(token),
	}
}

func operator(op string, left, right *ast.Node) *ast.Node {
	node := &ast.Node{
		Kind:  ast.KindOp,
		Op:    op,
		Args:  compact(left, right),
		Start: left.Start,
		End:   left.End,
		Loc:   left.Loc,
	}
	if right != nil {
		node.End = right.End
	}
	return node
}

func prefix(op lexer.Token, operand *ast.Node) *ast.Node {
	node := nodeFrom(ast.KindOp, op)
	node.Op = op.Lexeme
	if operand != nil {
		node.Args = []*ast.Node{operand}
		node.End = operand.End
	}
	return node
}

// sequence wraps statements the way the parser gem does: nil for none, the
// statement itself for one, a begin node for several
func sequence(stmts []*ast.Node) *ast.Node {
	switch len(stmts) {
	case 0:
		return nil
	case 1:
		return stmts[0]
	}
	return &ast.Node{
		Kind:  ast.KindBegin,
		Args:  stmts,
		Start: stmts[0].Start,
		End:   stmts[len(stmts)-1].End,
		Loc:   stmts[0].Loc,
	}
}

func compact(nodes ...*ast.Node) []*ast.Node {
	out := make([]*ast.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func closerText(t lexer.TokenType) string {
	switch t {
	case lexer.TOKEN_RBRACE:
		return "}"
	case lexer.TOKEN_RPAREN:
		return ")"
	case lexer.TOKEN_PIPE:
		return "|"
	}
	return "end"
}
