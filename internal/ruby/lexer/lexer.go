// Package lexer provides lexical analysis for the subset of Ruby found in
// model definitions and db/schema.rb files. It tokenizes source into a
// stream of positioned tokens for the parser; every token records its byte
// span so later stages can copy source text verbatim.
package lexer

import (
	"fmt"
	"strings"
)

// LexError represents a lexical error encountered during scanning
type LexError struct {
	Message string
	Line    int
	Column  int
	Lexeme  string
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("Lex error at %d:%d: %s (near '%s')", e.Line, e.Column, e.Message, e.Lexeme)
}

type heredoc struct {
	id       string
	indented bool
}

// Lexer tokenizes Ruby source code.
//
// Thread Safety: Lexer instances are NOT thread-safe. Each goroutine must
// create its own Lexer instance via New().
type Lexer struct {
	source    string     // Source code to tokenize
	start     int        // Start position of current token
	current   int        // Current position in source
	line      int        // Current line number (1-indexed)
	lineStart int        // Offset of the first character of the current line
	tokLine   int        // Line of the token being scanned
	tokCol    int        // Column of the token being scanned
	sawSpace  bool       // Whitespace seen since the previous token
	tokens    []Token    // Collected tokens
	errors    []LexError // Collected errors
	heredocs  []heredoc  // Heredoc bodies waiting for the end of the current line
}

// New creates a new Lexer for the given source code
func New(source string) *Lexer {
	return &Lexer{
		source:   source,
		line:     1,
		sawSpace: true,
		tokens:   make([]Token, 0),
		errors:   make([]LexError, 0),
	}
}

// ScanTokens tokenizes the entire source and returns tokens and errors
func (l *Lexer) ScanTokens() ([]Token, []LexError) {
	for !l.isAtEnd() {
		l.start = l.current
		if !l.scanToken() {
			break
		}
	}

	end := len(l.source)
	l.tokens = append(l.tokens, Token{
		Type:        TOKEN_EOF,
		Offset:      end,
		End:         end,
		Line:        l.line,
		Column:      end - l.lineStart + 1,
		SpaceBefore: true,
	})

	return l.tokens, l.errors
}

// scanToken processes the next token. It returns false when scanning must
// stop before the end of input (__END__).
//
//nolint:gocyclo,cyclop // Lexer dispatch function - complexity is inherent to the pattern
func (l *Lexer) scanToken() bool {
	l.tokLine = l.line
	l.tokCol = l.start - l.lineStart + 1

	c := l.peek()
	switch {
	case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
		l.advance()
		l.sawSpace = true
	case c == '\\' && l.peekNext() == '\n':
		l.advance()
		l.advance()
		l.sawSpace = true
	case c == '\n':
		l.advance()
		l.newline()
	case c == '#':
		l.comment()
	case c == '=' && l.atLineStart() && strings.HasPrefix(l.source[l.current:], "=begin"):
		l.blockComment()
	case c == '_' && l.atLineStart() && l.restOfLine() == "__END__":
		return false
	case c == '"' || c == '`':
		l.advance()
		l.doubleQuoted(c)
	case c == '\'':
		l.advance()
		l.singleQuoted()
	case isDigit(c):
		l.number()
	case isIdentStart(c):
		l.identifier()
	case c == '@' || c == '$':
		l.variable()
	case c == ':':
		l.colon()
	default:
		l.punctuation()
	}
	return true
}

// newline emits a statement terminator unless the line obviously continues
func (l *Lexer) newline() {
	if len(l.heredocs) > 0 {
		l.readHeredocBodies()
	}

	defer func() { l.sawSpace = true }()

	if l.continuesLine() {
		return
	}

	l.tokens = append(l.tokens, Token{
		Type:        TOKEN_NEWLINE,
		Lexeme:      "\n",
		Offset:      l.start,
		End:         l.start + 1,
		Line:        l.tokLine,
		Column:      l.tokCol,
		SpaceBefore: l.sawSpace,
	})
}

// continuesLine reports whether the newline just consumed is insignificant
func (l *Lexer) continuesLine() bool {
	if len(l.tokens) == 0 {
		return true
	}

	switch l.tokens[len(l.tokens)-1].Type {
	case TOKEN_NEWLINE, TOKEN_SEMICOLON,
		TOKEN_COMMA, TOKEN_DOT, TOKEN_SAFE_NAV, TOKEN_DOUBLE_COLON,
		TOKEN_LPAREN, TOKEN_LBRACKET, TOKEN_LBRACE,
		TOKEN_HASH_ROCKET, TOKEN_EQUALS, TOKEN_OP_ASSIGN,
		TOKEN_DOUBLE_PIPE, TOKEN_DOUBLE_AMP, TOKEN_AND, TOKEN_OR, TOKEN_NOT,
		TOKEN_PLUS, TOKEN_MINUS, TOKEN_STAR, TOKEN_DOUBLE_STAR, TOKEN_SLASH, TOKEN_PERCENT,
		TOKEN_LT, TOKEN_GT, TOKEN_LTE, TOKEN_GTE, TOKEN_EQ, TOKEN_NEQ, TOKEN_CASE_EQ,
		TOKEN_MATCH, TOKEN_NMATCH, TOKEN_SPACESHIP, TOKEN_LSHIFT, TOKEN_RSHIFT,
		TOKEN_QUESTION, TOKEN_COLON, TOKEN_AMP, TOKEN_CARET:
		return true
	}

	return l.nextLineStartsWithDot()
}

// nextLineStartsWithDot detects leading-dot method chains
func (l *Lexer) nextLineStartsWithDot() bool {
	i := l.current
	for i < len(l.source) {
		switch l.source[i] {
		case ' ', '\t', '\r', '\n':
			i++
		case '#':
			for i < len(l.source) && l.source[i] != '\n' {
				i++
			}
		case '.':
			return i+1 >= len(l.source) || l.source[i+1] != '.'
		case '&':
			return i+1 < len(l.source) && l.source[i+1] == '.'
		default:
			return false
		}
	}
	return false
}

// readHeredocBodies skips the bodies of heredocs opened on the previous line
func (l *Lexer) readHeredocBodies() {
	pending := l.heredocs
	l.heredocs = nil

	for _, doc := range pending {
		terminated := false
		for !l.isAtEnd() {
			lineEnd := strings.IndexByte(l.source[l.current:], '\n')
			var text string
			if lineEnd < 0 {
				text = l.source[l.current:]
			} else {
				text = l.source[l.current : l.current+lineEnd]
			}
			for i := 0; i < len(text); i++ {
				l.advance()
			}
			if !l.isAtEnd() {
				l.advance() // newline
			}

			text = strings.TrimRight(text, "\r")
			if doc.indented {
				text = strings.TrimSpace(text)
			}
			if text == doc.id {
				terminated = true
				break
			}
		}
		if !terminated {
			l.addError(fmt.Sprintf("Unterminated heredoc %s", doc.id))
		}
	}
}

// comment handles single-line comments starting with #
func (l *Lexer) comment() {
	for l.peek() != '\n' && !l.isAtEnd() {
		l.advance()
	}
}

// blockComment handles =begin ... =end documentation blocks
func (l *Lexer) blockComment() {
	for !l.isAtEnd() {
		l.comment()
		if l.isAtEnd() {
			break
		}
		l.advance() // newline
		if strings.HasPrefix(l.source[l.current:], "=end") {
			l.comment()
			return
		}
	}
	l.addError("Unterminated =begin comment")
}

// doubleQuoted handles "..." and `...` literals with escapes and interpolation
func (l *Lexer) doubleQuoted(quote byte) {
	value := strings.Builder{}
	interpolated := quote == '`'

	for !l.isAtEnd() && l.peek() != quote {
		c := l.advance()
		switch {
		case c == '\\':
			if l.isAtEnd() {
				break
			}
			value.WriteByte(unescape(l.advance()))
		case c == '#' && l.peek() == '{':
			interpolated = true
			l.advance()
			l.skipInterpolation()
		default:
			value.WriteByte(c)
		}
	}

	if l.isAtEnd() {
		l.addError(fmt.Sprintf("Unterminated string starting at %d:%d", l.tokLine, l.tokCol))
		return
	}
	l.advance() // closing quote

	if interpolated {
		l.addTokenWithLiteral(TOKEN_DSTRING, value.String())
	} else {
		l.addTokenWithLiteral(TOKEN_STRING, value.String())
	}
}

// singleQuoted handles '...' literals, where only \\ and \' are escapes
func (l *Lexer) singleQuoted() {
	value := strings.Builder{}

	for !l.isAtEnd() && l.peek() != '\'' {
		c := l.advance()
		if c == '\\' && (l.peek() == '\\' || l.peek() == '\'') {
			c = l.advance()
		}
		value.WriteByte(c)
	}

	if l.isAtEnd() {
		l.addError(fmt.Sprintf("Unterminated string starting at %d:%d", l.tokLine, l.tokCol))
		return
	}
	l.advance()

	l.addTokenWithLiteral(TOKEN_STRING, value.String())
}

// skipInterpolation consumes the body of #{...} up to the matching brace
func (l *Lexer) skipInterpolation() {
	depth := 1
	for !l.isAtEnd() {
		c := l.advance()
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return
			}
		case '"', '`':
			l.skipQuoted(c, true)
		case '\'':
			l.skipQuoted(c, false)
		}
	}
	l.addError("Unterminated string interpolation")
}

// skipQuoted consumes a nested string literal inside an interpolation
func (l *Lexer) skipQuoted(quote byte, interpolates bool) {
	for !l.isAtEnd() {
		c := l.advance()
		switch {
		case c == '\\':
			l.advance()
		case c == quote:
			return
		case interpolates && c == '#' && l.peek() == '{':
			l.advance()
			l.skipInterpolation()
		}
	}
}

// number handles integer and float literals
func (l *Lexer) number() {
	if l.peek() == '0' && strings.ContainsRune("xXbBoO", rune(l.peekNext())) {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
		l.addTokenWithLiteral(TOKEN_INT, strings.ReplaceAll(l.source[l.start:l.current], "_", ""))
		return
	}

	for isDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	isFloat := false
	if l.peek() == '.' && isDigit(l.peekNext()) {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
	}

	if (l.peek() == 'e' || l.peek() == 'E') &&
		(isDigit(l.peekNext()) || ((l.peekNext() == '+' || l.peekNext() == '-') && isDigit(l.peekAt(2)))) {
		isFloat = true
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}

	literal := strings.ReplaceAll(l.source[l.start:l.current], "_", "")
	if isFloat {
		l.addTokenWithLiteral(TOKEN_FLOAT, literal)
	} else {
		l.addTokenWithLiteral(TOKEN_INT, literal)
	}
}

// identifier handles identifiers, constants, labels and keywords
func (l *Lexer) identifier() {
	for isIdentChar(l.peek()) {
		l.advance()
	}

	first := l.source[l.start]
	if c := l.peek(); (c == '?' || c == '!') && !isUpper(first) && l.peekNext() != '=' {
		l.advance()
	}

	text := l.source[l.start:l.current]
	afterDot := l.prevIs(TOKEN_DOT, TOKEN_SAFE_NAV)

	// name: is a label unless it starts a :: scope
	if l.peek() == ':' && l.peekNext() != ':' && !afterDot {
		l.advance()
		l.addTokenWithLiteral(TOKEN_LABEL, text)
		return
	}

	if !afterDot {
		if tokenType, ok := Keywords[text]; ok {
			l.addToken(tokenType)
			return
		}
	}

	if isUpper(first) {
		l.addToken(TOKEN_CONSTANT)
	} else {
		l.addToken(TOKEN_IDENTIFIER)
	}
}

// variable handles @ivar, @@cvar and $gvar
func (l *Lexer) variable() {
	l.advance()
	if l.peek() == '@' {
		l.advance()
	}
	if l.source[l.start] == '$' && !isIdentStart(l.peek()) && !l.isAtEnd() {
		// special globals such as $! and $0
		l.advance()
		l.addToken(TOKEN_IVAR)
		return
	}
	for isIdentChar(l.peek()) {
		l.advance()
	}
	if l.current-l.start == 1 || (l.current-l.start == 2 && l.source[l.start+1] == '@') {
		l.addError("Expected variable name")
		return
	}
	l.addToken(TOKEN_IVAR)
}

// colon handles symbols, :: and the ternary colon
func (l *Lexer) colon() {
	next := l.peekNext()

	if next == ':' {
		l.punctuation()
		return
	}

	if next == '"' {
		l.advance() // :
		l.advance() // "
		l.doubleQuoted('"')
		if n := len(l.tokens); n > 0 && l.tokens[n-1].Offset == l.start {
			l.tokens[n-1].Type = TOKEN_SYMBOL
		}
		return
	}

	if l.valueEnded() && !l.sawSpace {
		l.punctuation()
		return
	}

	if isIdentStart(next) || next == '@' || next == '$' {
		l.advance() // :
		for l.peek() == '@' || l.peek() == '$' {
			l.advance()
		}
		for isIdentChar(l.peek()) {
			l.advance()
		}
		switch l.peek() {
		case '?', '!':
			if l.peekNext() != '=' {
				l.advance()
			}
		case '=':
			if n := l.peekNext(); n != '=' && n != '>' && n != '~' {
				l.advance()
			}
		}
		l.addTokenWithLiteral(TOKEN_SYMBOL, l.source[l.start+1:l.current])
		return
	}

	rest := l.source[l.current+1:]
	for _, op := range operatorSymbols {
		if strings.HasPrefix(rest, op) {
			for i := 0; i <= len(op); i++ {
				l.advance()
			}
			l.addTokenWithLiteral(TOKEN_SYMBOL, op)
			return
		}
	}

	l.punctuation()
}

// punctuation handles operators, delimiters and the literals they introduce
func (l *Lexer) punctuation() {
	c := l.peek()

	switch {
	case c == '/' && l.literalAllowed():
		l.regexp()
		return
	case c == '%' && l.literalAllowed() && l.percentLiteralStart():
		l.percent()
		return
	case c == '<' && l.literalAllowed() && l.heredocStart():
		return
	case c == '?' && l.charLiteral():
		return
	}

	rest := l.source[l.current:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			for i := 0; i < len(op.text); i++ {
				l.advance()
			}
			l.addToken(op.typ)
			return
		}
	}

	l.advance()
	l.addError(fmt.Sprintf("Unexpected character: '%c'", c))
}

// regexp handles /.../ literals with trailing flags
func (l *Lexer) regexp() {
	l.advance() // opening /
	for !l.isAtEnd() && l.peek() != '/' {
		c := l.advance()
		switch {
		case c == '\\':
			l.advance()
		case c == '#' && l.peek() == '{':
			l.advance()
			l.skipInterpolation()
		}
	}
	if l.isAtEnd() {
		l.addError("Unterminated regular expression")
		return
	}
	l.advance() // closing /
	for isRegexpFlag(l.peek()) {
		l.advance()
	}
	l.addTokenWithLiteral(TOKEN_REGEXP, l.source[l.start+1:l.current])
}

// percentLiteralStart checks for %w[], %i(), %q{}, %() and friends
func (l *Lexer) percentLiteralStart() bool {
	next := l.peekNext()
	if strings.IndexByte("wWiIqQrsx", next) >= 0 {
		d := l.peekAt(2)
		return d != 0 && !isIdentChar(d) && d != ' ' && d != '\n' && d != '='
	}
	return strings.IndexByte("([{<|!/^", next) >= 0
}

// percent handles percent literals
func (l *Lexer) percent() {
	l.advance() // %
	kind := byte('Q')
	if isIdentStart(l.peek()) {
		kind = l.advance()
	}

	open := l.advance()
	closer := open
	switch open {
	case '(':
		closer = ')'
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	case '<':
		closer = '>'
	}

	contentStart := l.current
	depth := 1
	interpolated := false
	for !l.isAtEnd() {
		c := l.peek()
		if c == '\\' {
			l.advance()
			l.advance()
			continue
		}
		if c == '#' && l.peekNext() == '{' && strings.IndexByte("WIQrx", kind) >= 0 {
			interpolated = true
			l.advance()
			l.advance()
			l.skipInterpolation()
			continue
		}
		if c == closer && open != closer {
			depth--
		} else if c == open && open != closer {
			depth++
		} else if c == closer {
			depth = 0
		}
		if depth == 0 {
			break
		}
		l.advance()
	}

	if l.isAtEnd() {
		l.addError("Unterminated percent literal")
		return
	}
	content := l.source[contentStart:l.current]
	l.advance() // closer

	switch kind {
	case 'w', 'W':
		l.addTokenWithLiteral(TOKEN_WORDS, content)
	case 'i', 'I':
		l.addTokenWithLiteral(TOKEN_SYMBOLS, content)
	case 'r':
		for isRegexpFlag(l.peek()) {
			l.advance()
		}
		l.addTokenWithLiteral(TOKEN_REGEXP, content)
	case 's':
		l.addTokenWithLiteral(TOKEN_SYMBOL, content)
	case 'x':
		l.addTokenWithLiteral(TOKEN_DSTRING, content)
	default:
		if interpolated {
			l.addTokenWithLiteral(TOKEN_DSTRING, content)
		} else {
			l.addTokenWithLiteral(TOKEN_STRING, content)
		}
	}
}

// heredocStart scans a heredoc opener (<<~ID, <<-ID, <<ID, <<~'ID') and
// registers its body to be skipped at the end of the line
func (l *Lexer) heredocStart() bool {
	i := l.current + 2
	if !strings.HasPrefix(l.source[l.current:], "<<") || i >= len(l.source) {
		return false
	}

	indented := false
	if l.source[i] == '~' || l.source[i] == '-' {
		indented = true
		i++
	}
	if i >= len(l.source) {
		return false
	}

	var id string
	switch q := l.source[i]; {
	case q == '\'' || q == '"' || q == '`':
		end := strings.IndexByte(l.source[i+1:], q)
		if end < 0 {
			return false
		}
		id = l.source[i+1 : i+1+end]
		i += end + 2
	case isIdentStart(q) && (isUpper(q) || q == '_' || indented):
		j := i
		for j < len(l.source) && isIdentChar(l.source[j]) {
			j++
		}
		id = l.source[i:j]
		i = j
	default:
		return false
	}

	for l.current < i {
		l.advance()
	}
	l.heredocs = append(l.heredocs, heredoc{id: id, indented: indented})
	l.addToken(TOKEN_DSTRING)
	return true
}

// charLiteral handles ?c character literals
func (l *Lexer) charLiteral() bool {
	if l.valueEnded() {
		return false
	}
	c := l.peekNext()
	if c == 0 || c == ' ' || c == '\n' || c == '\t' {
		return false
	}
	if isIdentChar(l.peekAt(2)) {
		return false
	}
	l.advance()
	l.advance()
	l.addTokenWithLiteral(TOKEN_STRING, string(c))
	return true
}

// literalAllowed reports whether '/', '%' or '<<' may open a literal here.
// That is the case in operand position, or after a bare method name
// followed by a space where the next character is not a space
// (`validates_format_of :x, with: /re/`, `execute <<~SQL`).
func (l *Lexer) literalAllowed() bool {
	if !l.valueEnded() {
		return true
	}
	prev := l.tokens[len(l.tokens)-1]
	if prev.Type != TOKEN_IDENTIFIER || !l.sawSpace {
		return false
	}
	next := l.peekNext()
	if l.peek() == '<' {
		next = l.peekAt(2)
	}
	return next != ' ' && next != '=' && next != '\n'
}

// valueEnded reports whether the previous token ends an operand
func (l *Lexer) valueEnded() bool {
	if len(l.tokens) == 0 {
		return false
	}
	switch l.tokens[len(l.tokens)-1].Type {
	case TOKEN_IDENTIFIER, TOKEN_CONSTANT, TOKEN_IVAR, TOKEN_INT, TOKEN_FLOAT,
		TOKEN_STRING, TOKEN_DSTRING, TOKEN_SYMBOL, TOKEN_REGEXP, TOKEN_WORDS, TOKEN_SYMBOLS,
		TOKEN_RPAREN, TOKEN_RBRACKET, TOKEN_RBRACE,
		TOKEN_END, TOKEN_SELF, TOKEN_NIL, TOKEN_TRUE, TOKEN_FALSE:
		return true
	}
	return false
}

// Helper methods

// prevIs checks the type of the most recent token
func (l *Lexer) prevIs(types ...TokenType) bool {
	if len(l.tokens) == 0 {
		return false
	}
	prev := l.tokens[len(l.tokens)-1].Type
	for _, t := range types {
		if prev == t {
			return true
		}
	}
	return false
}

// atLineStart reports whether the token being scanned starts its line
func (l *Lexer) atLineStart() bool {
	return l.start == l.lineStart
}

// restOfLine returns the text from the current position to the end of line
func (l *Lexer) restOfLine() string {
	rest := l.source[l.current:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimRight(rest, "\r")
}

// isAtEnd checks if we've reached the end of the source
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current character, tracking lines
func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.current]
	l.current++
	if c == '\n' {
		l.line++
		l.lineStart = l.current
	}
	return c
}

// peek returns the current character without consuming it
func (l *Lexer) peek() byte {
	return l.peekAt(0)
}

// peekNext returns the next character without consuming
func (l *Lexer) peekNext() byte {
	return l.peekAt(1)
}

// peekAt returns the character n positions ahead
func (l *Lexer) peekAt(n int) byte {
	if l.current+n >= len(l.source) {
		return 0
	}
	return l.source[l.current+n]
}

// addToken adds a token with the current lexeme
func (l *Lexer) addToken(tokenType TokenType) {
	l.addTokenWithLiteral(tokenType, "")
}

// addTokenWithLiteral adds a token with a decoded literal value
func (l *Lexer) addTokenWithLiteral(tokenType TokenType, literal string) {
	l.tokens = append(l.tokens, Token{
		Type:        tokenType,
		Lexeme:      l.source[l.start:l.current],
		Literal:     literal,
		Offset:      l.start,
		End:         l.current,
		Line:        l.tokLine,
		Column:      l.tokCol,
		SpaceBefore: l.sawSpace,
	})
	l.sawSpace = false
}

// addError records a lexical error
func (l *Lexer) addError(message string) {
	end := l.current
	if end > l.start+20 {
		end = l.start + 20
	}
	l.errors = append(l.errors, LexError{
		Message: message,
		Line:    l.tokLine,
		Column:  l.tokCol,
		Lexeme:  l.source[l.start:end],
	})
	l.sawSpace = false
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case 's':
		return ' '
	default:
		return c
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || isUpper(c) || c == '_' || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isRegexpFlag(c byte) bool {
	return strings.IndexByte("imxounse", c) >= 0 && c != 0
}
