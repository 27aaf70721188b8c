package parser

import (
	"fmt"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/lexer"
)

// opaque skips a def, if, unless, while, until, case, begin, for or
// `class << self` construct as one balanced unit ending at its matching
// `end`. Column declarations never live inside these, so their contents are
// not parsed.
func (p *Parser) opaque() *ast.Node {
	first := p.peek()
	start := p.current

	if first.Type == lexer.TOKEN_DEF && p.isEndlessDef(start) {
		return p.endlessDef()
	}

	depth := 0
	loopPending := false

	for !p.isAtEnd() {
		i := p.current
		token := p.advance()
		opens := false

		switch token.Type {
		case lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON:
			loopPending = false
		case lexer.TOKEN_CLASS, lexer.TOKEN_MODULE, lexer.TOKEN_CASE, lexer.TOKEN_BEGIN:
			opens = true
		case lexer.TOKEN_DEF:
			opens = i == start || !p.isEndlessDef(i)
			p.skipDefName()
		case lexer.TOKEN_FOR:
			opens = true
			loopPending = true
		case lexer.TOKEN_WHILE, lexer.TOKEN_UNTIL:
			if i == start || p.startsStatement(i) {
				opens = true
				loopPending = true
			}
		case lexer.TOKEN_IF, lexer.TOKEN_UNLESS:
			opens = i == start || p.startsStatement(i)
		case lexer.TOKEN_DO:
			if loopPending {
				loopPending = false
			} else {
				opens = true
			}
		case lexer.TOKEN_END:
			depth--
			if depth <= 0 {
				return opaqueNode(first, token)
			}
		}

		if opens {
			depth++
		}
	}

	p.error(first, fmt.Sprintf("Unterminated '%s'", first.Lexeme))
	return opaqueNode(first, p.previous())
}

// isEndlessDef reports whether the def at token index i is `def name(args) = expr`
func (p *Parser) isEndlessDef(i int) bool {
	depth := 0
	for j := i + 1; j < len(p.tokens); j++ {
		token := p.tokens[j]
		switch token.Type {
		case lexer.TOKEN_LPAREN, lexer.TOKEN_LBRACKET, lexer.TOKEN_LBRACE:
			depth++
		case lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_RBRACE:
			depth--
		case lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_EOF:
			if depth <= 0 {
				return false
			}
		case lexer.TOKEN_EQUALS:
			// `def name=(value)` defines a setter; the endless form has a spaced `=`
			if depth == 0 && token.SpaceBefore {
				return true
			}
		}
	}
	return false
}

// endlessDef skips a one-line endless method definition
func (p *Parser) endlessDef() *ast.Node {
	first := p.advance()
	p.skipDefName()

	depth := 0
	last := first
	for !p.isAtEnd() {
		if depth <= 0 && p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON) {
			break
		}
		last = p.advance()
		switch last.Type {
		case lexer.TOKEN_LPAREN, lexer.TOKEN_LBRACKET, lexer.TOKEN_LBRACE:
			depth++
		case lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_RBRACE:
			depth--
		}
	}

	return opaqueNode(first, last)
}

// skipDefName consumes the method name after `def`, which may be a keyword
// (`def class`) or prefixed with `self.`
func (p *Parser) skipDefName() {
	if p.check(lexer.TOKEN_SELF) && p.checkNext(lexer.TOKEN_DOT) {
		p.advance()
		p.advance()
	}
	if !p.check(lexer.TOKEN_NEWLINE, lexer.TOKEN_SEMICOLON, lexer.TOKEN_LPAREN, lexer.TOKEN_EOF) {
		p.advance()
	}
}

// startsStatement reports whether the keyword at token index i begins an
// expression rather than modifying the one before it
func (p *Parser) startsStatement(i int) bool {
	if i == 0 {
		return true
	}

	switch p.tokens[i-1].Type {
	case lexer.TOKEN_IDENTIFIER, lexer.TOKEN_CONSTANT, lexer.TOKEN_IVAR,
		lexer.TOKEN_INT, lexer.TOKEN_FLOAT, lexer.TOKEN_STRING, lexer.TOKEN_DSTRING,
		lexer.TOKEN_SYMBOL, lexer.TOKEN_REGEXP, lexer.TOKEN_WORDS, lexer.TOKEN_SYMBOLS,
		lexer.TOKEN_RPAREN, lexer.TOKEN_RBRACKET, lexer.TOKEN_RBRACE,
		lexer.TOKEN_END, lexer.TOKEN_SELF, lexer.TOKEN_NIL, lexer.TOKEN_TRUE, lexer.TOKEN_FALSE,
		lexer.TOKEN_RETURN, lexer.TOKEN_BREAK, lexer.TOKEN_NEXT, lexer.TOKEN_REDO, lexer.TOKEN_RETRY,
		lexer.TOKEN_YIELD, lexer.TOKEN_SUPER:
		return false
	}
	return true
}

func opaqueNode(first, last lexer.Token) *ast.Node {
	return &ast.Node{
		Kind:  ast.KindOpaque,
		Name:  first.Lexeme,
		Start: first.Offset,
		End:   last.End,
		Loc:   ast.TokenLocation(first),
	}
}
