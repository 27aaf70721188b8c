package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a lexer and scan tokens
func scanSource(source string) ([]Token, []LexError) {
	lexer := New(source)
	return lexer.ScanTokens()
}

// Helper to check if tokens match expected types
func checkTokenTypes(t *testing.T, tokens []Token, expected []TokenType) {
	t.Helper()

	// Remove EOF token for comparison
	actual := tokens
	if len(actual) > 0 && actual[len(actual)-1].Type == TOKEN_EOF {
		actual = actual[:len(actual)-1]
	}

	if len(actual) != len(expected) {
		t.Errorf("Expected %d tokens, got %d", len(expected), len(actual))
		t.Logf("Expected: %v", expected)
		t.Logf("Got: %v", tokensToTypes(actual))
		return
	}

	for i, token := range actual {
		if token.Type != expected[i] {
			t.Errorf("Token %d: expected %s, got %s", i, expected[i], token.Type)
		}
	}
}

func tokensToTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, t := range tokens {
		types[i] = t.Type
	}
	return types
}

func TestLexer_ColumnStatement(t *testing.T) {
	tokens, errors := scanSource("t.string \"name\", null: false\n")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_IDENTIFIER, TOKEN_DOT, TOKEN_IDENTIFIER, TOKEN_STRING,
		TOKEN_COMMA, TOKEN_LABEL, TOKEN_FALSE, TOKEN_NEWLINE,
	})
	assert.Equal(t, "name", tokens[3].Literal)
	assert.Equal(t, "null", tokens[5].Literal)
}

func TestLexer_Symbols(t *testing.T) {
	tokens, errors := scanSource(`:name :"quoted name" :<=> a ? b : c`)
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_SYMBOL, TOKEN_SYMBOL, TOKEN_SYMBOL,
		TOKEN_IDENTIFIER, TOKEN_QUESTION, TOKEN_IDENTIFIER, TOKEN_COLON, TOKEN_IDENTIFIER,
	})
	assert.Equal(t, "name", tokens[0].Literal)
	assert.Equal(t, "quoted name", tokens[1].Literal)
	assert.Equal(t, "<=>", tokens[2].Literal)
}

func TestLexer_NewlineContinuation(t *testing.T) {
	source := "foo(1,\n    2)\nbar\n  .baz\n"
	tokens, errors := scanSource(source)
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_IDENTIFIER, TOKEN_LPAREN, TOKEN_INT, TOKEN_COMMA, TOKEN_INT, TOKEN_RPAREN, TOKEN_NEWLINE,
		TOKEN_IDENTIFIER, TOKEN_DOT, TOKEN_IDENTIFIER, TOKEN_NEWLINE,
	})
}

func TestLexer_Heredoc(t *testing.T) {
	source := "execute <<~SQL\n  SELECT 1\nSQL\ndone\n"
	tokens, errors := scanSource(source)
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_IDENTIFIER, TOKEN_DSTRING, TOKEN_NEWLINE, TOKEN_IDENTIFIER, TOKEN_NEWLINE,
	})
	assert.Equal(t, "done", tokens[3].Lexeme)
	assert.Equal(t, 4, tokens[3].Line)
}

func TestLexer_RegexpVersusDivide(t *testing.T) {
	tokens, errors := scanSource("a / b")
	require.Empty(t, errors)
	checkTokenTypes(t, tokens, []TokenType{TOKEN_IDENTIFIER, TOKEN_SLASH, TOKEN_IDENTIFIER})

	tokens, errors = scanSource(`validates :x, format: /\d+/i`)
	require.Empty(t, errors)
	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_IDENTIFIER, TOKEN_SYMBOL, TOKEN_COMMA, TOKEN_LABEL, TOKEN_REGEXP,
	})
}

func TestLexer_PercentLiterals(t *testing.T) {
	tokens, errors := scanSource("[%w[a b], %i(c d)]")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_LBRACKET, TOKEN_WORDS, TOKEN_COMMA, TOKEN_SYMBOLS, TOKEN_RBRACKET,
	})
	assert.Equal(t, "a b", tokens[1].Literal)
	assert.Equal(t, "c d", tokens[3].Literal)
}

func TestLexer_KeywordsAfterDotAndLabels(t *testing.T) {
	tokens, errors := scanSource("self.class if: true")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_SELF, TOKEN_DOT, TOKEN_IDENTIFIER, TOKEN_LABEL, TOKEN_TRUE,
	})
}

func TestLexer_Comments(t *testing.T) {
	source := "# comment\n=begin\nstuff\n=end\nx"
	tokens, errors := scanSource(source)
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{TOKEN_IDENTIFIER})
	assert.Equal(t, 5, tokens[0].Line)
}

func TestLexer_EndMarker(t *testing.T) {
	tokens, errors := scanSource("x\n__END__\ngarbage '")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{TOKEN_IDENTIFIER, TOKEN_NEWLINE})
}

func TestLexer_Positions(t *testing.T) {
	tokens, errors := scanSource("class User < ApplicationRecord")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{TOKEN_CLASS, TOKEN_CONSTANT, TOKEN_LT, TOKEN_CONSTANT})

	user := tokens[1]
	assert.Equal(t, 1, user.Line)
	assert.Equal(t, 7, user.Column)
	assert.Equal(t, 6, user.Offset)
	assert.Equal(t, 10, user.End)
	assert.True(t, user.SpaceBefore)
}

func TestLexer_Interpolation(t *testing.T) {
	tokens, errors := scanSource(`"a#{b("}")}c"`)
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{TOKEN_DSTRING})
	assert.Equal(t, "ac", tokens[0].Literal)
}

func TestLexer_UnterminatedString(t *testing.T) {
	_, errors := scanSource(`"abc`)
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0].Error(), "Unterminated string")
	assert.Equal(t, 1, errors[0].Line)
}

func TestLexer_Numbers(t *testing.T) {
	tokens, errors := scanSource("1_000 3.14 1e5 0x1f")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{TOKEN_INT, TOKEN_FLOAT, TOKEN_FLOAT, TOKEN_INT})
	assert.Equal(t, "1000", tokens[0].Literal)
}

func TestLexer_MethodSuffixes(t *testing.T) {
	tokens, errors := scanSource("valid? save! x != y")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{
		TOKEN_IDENTIFIER, TOKEN_IDENTIFIER, TOKEN_IDENTIFIER, TOKEN_NEQ, TOKEN_IDENTIFIER,
	})
	assert.Equal(t, "valid?", tokens[0].Lexeme)
	assert.Equal(t, "save!", tokens[1].Lexeme)
}

func TestLexer_SpaceBefore(t *testing.T) {
	tokens, errors := scanSource("foo -1")
	require.Empty(t, errors)

	checkTokenTypes(t, tokens, []TokenType{TOKEN_IDENTIFIER, TOKEN_MINUS, TOKEN_INT})
	assert.True(t, tokens[1].SpaceBefore)
	assert.False(t, tokens[2].SpaceBefore)
}
