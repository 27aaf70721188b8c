// Package parser implements a tolerant recursive-descent parser for the Ruby
// found in model files and db/schema.rb. Class-level DSL calls, blocks,
// literals and expressions are parsed into ast nodes; method definitions and
// control-flow constructs are skipped as balanced opaque units.
package parser

import (
	"fmt"
	"strings"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/lexer"
)

// ParseError represents an error encountered during parsing
type ParseError struct {
	Message  string
	Location ast.SourceLocation
	Token    lexer.Token
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse error at %d:%d: %s (near '%s')",
		e.Location.Line, e.Location.Column, e.Message, e.Token.Lexeme)
}

// NewParseError creates a new parse error
func NewParseError(message string, token lexer.Token) ParseError {
	return ParseError{
		Message: message,
		Location: ast.SourceLocation{
			Line:   token.Line,
			Column: token.Column,
		},
		Token: token,
	}
}

// fromLexError converts a lexer error into a parse error
func fromLexError(err lexer.LexError) ParseError {
	return ParseError{
		Message: err.Message,
		Location: ast.SourceLocation{
			Line:   err.Line,
			Column: err.Column,
		},
		Token: lexer.Token{
			Lexeme: err.Lexeme,
			Line:   err.Line,
			Column: err.Column,
		},
	}
}

// Errors is a non-empty list of parse errors for one file
type Errors []ParseError

// Error implements the error interface, reporting the first error and a count
func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return "no parse errors"
	case 1:
		return e[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
	}
}

// Messages returns every error rendered on its own line
func (e Errors) Messages() string {
	lines := make([]string, len(e))
	for i := range e {
		lines[i] = e[i].Error()
	}
	return strings.Join(lines, "\n")
}
