package lexer

import "fmt"

// TokenType represents the type of a token in Ruby source
type TokenType int

const (
	// TOKEN_EOF marks the end of the token stream.
	TOKEN_EOF TokenType = iota
	// TOKEN_NEWLINE terminates a statement. Newlines that cannot end a
	// statement (after a comma, an operator, or before a leading-dot method
	// chain) are not emitted.
	TOKEN_NEWLINE
	// TOKEN_SEMICOLON terminates a statement.
	TOKEN_SEMICOLON

	// Names and literals
	TOKEN_IDENTIFIER // user_name, valid?, save!
	TOKEN_CONSTANT   // User, ActiveRecord
	TOKEN_IVAR       // @name, @@count, $stdout
	TOKEN_LABEL      // name: (hash key / keyword argument)
	TOKEN_INT        // 42, 1_000, 0x1f
	TOKEN_FLOAT      // 3.14, 1e10
	TOKEN_STRING     // "plain", 'single', %q(...), ?c
	TOKEN_DSTRING    // "with #{interpolation}", heredocs, `xstring`
	TOKEN_SYMBOL     // :name, :"quoted", :<=>
	TOKEN_REGEXP     // /re/, %r{re}
	TOKEN_WORDS      // %w[a b]
	TOKEN_SYMBOLS    // %i[a b]

	// Keywords
	TOKEN_CLASS
	TOKEN_MODULE
	TOKEN_DEF
	TOKEN_END
	TOKEN_DO
	TOKEN_IF
	TOKEN_UNLESS
	TOKEN_ELSIF
	TOKEN_ELSE
	TOKEN_WHILE
	TOKEN_UNTIL
	TOKEN_CASE
	TOKEN_WHEN
	TOKEN_THEN
	TOKEN_BEGIN
	TOKEN_RESCUE
	TOKEN_ENSURE
	TOKEN_FOR
	TOKEN_IN
	TOKEN_RETURN
	TOKEN_YIELD
	TOKEN_SUPER
	TOKEN_SELF
	TOKEN_NIL
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_AND
	TOKEN_OR
	TOKEN_NOT
	TOKEN_DEFINED
	TOKEN_BREAK
	TOKEN_NEXT
	TOKEN_REDO
	TOKEN_RETRY
	TOKEN_ALIAS
	TOKEN_UNDEF

	// Delimiters
	TOKEN_LPAREN   // (
	TOKEN_RPAREN   // )
	TOKEN_LBRACKET // [
	TOKEN_RBRACKET // ]
	TOKEN_LBRACE   // {
	TOKEN_RBRACE   // }
	TOKEN_COMMA    // ,

	// Operators
	TOKEN_DOT          // .
	TOKEN_SAFE_NAV     // &.
	TOKEN_DOUBLE_COLON // ::
	TOKEN_COLON        // :
	TOKEN_QUESTION     // ?
	TOKEN_ARROW        // ->
	TOKEN_HASH_ROCKET  // =>
	TOKEN_EQUALS       // =
	TOKEN_OP_ASSIGN    // += -= *= /= ||= &&= <<= ...
	TOKEN_PIPE         // |
	TOKEN_DOUBLE_PIPE  // ||
	TOKEN_AMP          // &
	TOKEN_DOUBLE_AMP   // &&
	TOKEN_STAR         // *
	TOKEN_DOUBLE_STAR  // **
	TOKEN_BANG         // !
	TOKEN_TILDE        // ~
	TOKEN_PLUS         // +
	TOKEN_MINUS        // -
	TOKEN_SLASH        // /
	TOKEN_PERCENT      // %
	TOKEN_CARET        // ^
	TOKEN_LT           // <
	TOKEN_GT           // >
	TOKEN_LTE          // <=
	TOKEN_GTE          // >=
	TOKEN_EQ           // ==
	TOKEN_NEQ          // !=
	TOKEN_CASE_EQ      // ===
	TOKEN_MATCH        // =~
	TOKEN_NMATCH       // !~
	TOKEN_SPACESHIP    // <=>
	TOKEN_LSHIFT       // <<
	TOKEN_RSHIFT       // >>
	TOKEN_DOT2         // ..
	TOKEN_DOT3         // ...
)

// TokenTypeNames maps token types to their string representations
var TokenTypeNames = map[TokenType]string{
	TOKEN_EOF:          "EOF",
	TOKEN_NEWLINE:      "NEWLINE",
	TOKEN_SEMICOLON:    "SEMICOLON",
	TOKEN_IDENTIFIER:   "IDENTIFIER",
	TOKEN_CONSTANT:     "CONSTANT",
	TOKEN_IVAR:         "IVAR",
	TOKEN_LABEL:        "LABEL",
	TOKEN_INT:          "INT",
	TOKEN_FLOAT:        "FLOAT",
	TOKEN_STRING:       "STRING",
	TOKEN_DSTRING:      "DSTRING",
	TOKEN_SYMBOL:       "SYMBOL",
	TOKEN_REGEXP:       "REGEXP",
	TOKEN_WORDS:        "WORDS",
	TOKEN_SYMBOLS:      "SYMBOLS",
	TOKEN_CLASS:        "CLASS",
	TOKEN_MODULE:       "MODULE",
	TOKEN_DEF:          "DEF",
	TOKEN_END:          "END",
	TOKEN_DO:           "DO",
	TOKEN_IF:           "IF",
	TOKEN_UNLESS:       "UNLESS",
	TOKEN_ELSIF:        "ELSIF",
	TOKEN_ELSE:         "ELSE",
	TOKEN_WHILE:        "WHILE",
	TOKEN_UNTIL:        "UNTIL",
	TOKEN_CASE:         "CASE",
	TOKEN_WHEN:         "WHEN",
	TOKEN_THEN:         "THEN",
	TOKEN_BEGIN:        "BEGIN",
	TOKEN_RESCUE:       "RESCUE",
	TOKEN_ENSURE:       "ENSURE",
	TOKEN_FOR:          "FOR",
	TOKEN_IN:           "IN",
	TOKEN_RETURN:       "RETURN",
	TOKEN_YIELD:        "YIELD",
	TOKEN_SUPER:        "SUPER",
	TOKEN_SELF:         "SELF",
	TOKEN_NIL:          "NIL",
	TOKEN_TRUE:         "TRUE",
	TOKEN_FALSE:        "FALSE",
	TOKEN_AND:          "AND",
	TOKEN_OR:           "OR",
	TOKEN_NOT:          "NOT",
	TOKEN_DEFINED:      "DEFINED",
	TOKEN_BREAK:        "BREAK",
	TOKEN_NEXT:         "NEXT",
	TOKEN_REDO:         "REDO",
	TOKEN_RETRY:        "RETRY",
	TOKEN_ALIAS:        "ALIAS",
	TOKEN_UNDEF:        "UNDEF",
	TOKEN_LPAREN:       "LPAREN",
	TOKEN_RPAREN:       "RPAREN",
	TOKEN_LBRACKET:     "LBRACKET",
	TOKEN_RBRACKET:     "RBRACKET",
	TOKEN_LBRACE:       "LBRACE",
	TOKEN_RBRACE:       "RBRACE",
	TOKEN_COMMA:        "COMMA",
	TOKEN_DOT:          "DOT",
	TOKEN_SAFE_NAV:     "SAFE_NAV",
	TOKEN_DOUBLE_COLON: "DOUBLE_COLON",
	TOKEN_COLON:        "COLON",
	TOKEN_QUESTION:     "QUESTION",
	TOKEN_ARROW:        "ARROW",
	TOKEN_HASH_ROCKET:  "HASH_ROCKET",
	TOKEN_EQUALS:       "EQUALS",
	TOKEN_OP_ASSIGN:    "OP_ASSIGN",
	TOKEN_PIPE:         "PIPE",
	TOKEN_DOUBLE_PIPE:  "DOUBLE_PIPE",
	TOKEN_AMP:          "AMP",
	TOKEN_DOUBLE_AMP:   "DOUBLE_AMP",
	TOKEN_STAR:         "STAR",
	TOKEN_DOUBLE_STAR:  "DOUBLE_STAR",
	TOKEN_BANG:         "BANG",
	TOKEN_TILDE:        "TILDE",
	TOKEN_PLUS:         "PLUS",
	TOKEN_MINUS:        "MINUS",
	TOKEN_SLASH:        "SLASH",
	TOKEN_PERCENT:      "PERCENT",
	TOKEN_CARET:        "CARET",
	TOKEN_LT:           "LT",
	TOKEN_GT:           "GT",
	TOKEN_LTE:          "LTE",
	TOKEN_GTE:          "GTE",
	TOKEN_EQ:           "EQ",
	TOKEN_NEQ:          "NEQ",
	TOKEN_CASE_EQ:      "CASE_EQ",
	TOKEN_MATCH:        "MATCH",
	TOKEN_NMATCH:       "NMATCH",
	TOKEN_SPACESHIP:    "SPACESHIP",
	TOKEN_LSHIFT:       "LSHIFT",
	TOKEN_RSHIFT:       "RSHIFT",
	TOKEN_DOT2:         "DOT2",
	TOKEN_DOT3:         "DOT3",
}

// String returns the string representation of a TokenType
func (t TokenType) String() string {
	if name, ok := TokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// Token represents a single lexical token
type Token struct {
	Type        TokenType // The type of the token
	Lexeme      string    // The raw text of the token
	Literal     string    // Decoded value for strings, symbols, labels and %-arrays
	Offset      int       // Byte offset of the first character
	End         int       // Byte offset just past the last character
	Line        int       // Line number (1-indexed)
	Column      int       // Column number (1-indexed)
	SpaceBefore bool      // Whitespace (or a line start) precedes the token
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != "" {
		return fmt.Sprintf("%s '%s' (%s) at %d:%d",
			t.Type.String(), t.Lexeme, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s '%s' at %d:%d",
		t.Type.String(), t.Lexeme, t.Line, t.Column)
}

// Keywords maps reserved words to their token types
var Keywords = map[string]TokenType{
	"class":    TOKEN_CLASS,
	"module":   TOKEN_MODULE,
	"def":      TOKEN_DEF,
	"end":      TOKEN_END,
	"do":       TOKEN_DO,
	"if":       TOKEN_IF,
	"unless":   TOKEN_UNLESS,
	"elsif":    TOKEN_ELSIF,
	"else":     TOKEN_ELSE,
	"while":    TOKEN_WHILE,
	"until":    TOKEN_UNTIL,
	"case":     TOKEN_CASE,
	"when":     TOKEN_WHEN,
	"then":     TOKEN_THEN,
	"begin":    TOKEN_BEGIN,
	"rescue":   TOKEN_RESCUE,
	"ensure":   TOKEN_ENSURE,
	"for":      TOKEN_FOR,
	"in":       TOKEN_IN,
	"return":   TOKEN_RETURN,
	"yield":    TOKEN_YIELD,
	"super":    TOKEN_SUPER,
	"self":     TOKEN_SELF,
	"nil":      TOKEN_NIL,
	"true":     TOKEN_TRUE,
	"false":    TOKEN_FALSE,
	"and":      TOKEN_AND,
	"or":       TOKEN_OR,
	"not":      TOKEN_NOT,
	"defined?": TOKEN_DEFINED,
	"break":    TOKEN_BREAK,
	"next":     TOKEN_NEXT,
	"redo":     TOKEN_REDO,
	"retry":    TOKEN_RETRY,
	"alias":    TOKEN_ALIAS,
	"undef":    TOKEN_UNDEF,
}

// operators lists punctuation in longest-match-first order
var operators = []struct {
	text string
	typ  TokenType
}{
	{"**=", TOKEN_OP_ASSIGN},
	{"<<=", TOKEN_OP_ASSIGN},
	{">>=", TOKEN_OP_ASSIGN},
	{"&&=", TOKEN_OP_ASSIGN},
	{"||=", TOKEN_OP_ASSIGN},
	{"<=>", TOKEN_SPACESHIP},
	{"===", TOKEN_CASE_EQ},
	{"...", TOKEN_DOT3},
	{"&.", TOKEN_SAFE_NAV},
	{"->", TOKEN_ARROW},
	{"=>", TOKEN_HASH_ROCKET},
	{"==", TOKEN_EQ},
	{"!=", TOKEN_NEQ},
	{"=~", TOKEN_MATCH},
	{"!~", TOKEN_NMATCH},
	{">=", TOKEN_GTE},
	{"<=", TOKEN_LTE},
	{"&&", TOKEN_DOUBLE_AMP},
	{"||", TOKEN_DOUBLE_PIPE},
	{"<<", TOKEN_LSHIFT},
	{">>", TOKEN_RSHIFT},
	{"**", TOKEN_DOUBLE_STAR},
	{"+=", TOKEN_OP_ASSIGN},
	{"-=", TOKEN_OP_ASSIGN},
	{"*=", TOKEN_OP_ASSIGN},
	{"/=", TOKEN_OP_ASSIGN},
	{"%=", TOKEN_OP_ASSIGN},
	{"|=", TOKEN_OP_ASSIGN},
	{"&=", TOKEN_OP_ASSIGN},
	{"^=", TOKEN_OP_ASSIGN},
	{"::", TOKEN_DOUBLE_COLON},
	{"..", TOKEN_DOT2},
	{"(", TOKEN_LPAREN},
	{")", TOKEN_RPAREN},
	{"[", TOKEN_LBRACKET},
	{"]", TOKEN_RBRACKET},
	{"{", TOKEN_LBRACE},
	{"}", TOKEN_RBRACE},
	{",", TOKEN_COMMA},
	{".", TOKEN_DOT},
	{":", TOKEN_COLON},
	{"?", TOKEN_QUESTION},
	{"=", TOKEN_EQUALS},
	{"|", TOKEN_PIPE},
	{"&", TOKEN_AMP},
	{"*", TOKEN_STAR},
	{"!", TOKEN_BANG},
	{"~", TOKEN_TILDE},
	{"+", TOKEN_PLUS},
	{"-", TOKEN_MINUS},
	{"/", TOKEN_SLASH},
	{"%", TOKEN_PERCENT},
	{"^", TOKEN_CARET},
	{"<", TOKEN_LT},
	{">", TOKEN_GT},
	{";", TOKEN_SEMICOLON},
}

// operatorSymbols are the method names that may follow ':' in a symbol literal
var operatorSymbols = []string{
	"[]=", "[]", "<=>", "===", "==", "=~", "!=", "!~", "**", "+@", "-@",
	"<<", ">>", "<=", ">=", "+", "-", "*", "/", "%", "<", ">", "!", "&", "|", "^", "~",
}
