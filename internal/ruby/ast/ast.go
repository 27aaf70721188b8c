// Package ast defines the syntax tree produced by the Ruby parser.
// Node shapes follow the conventions of the parser gem: a block call is a
// Block node wrapping a Send, a body of several statements is a Begin node,
// and a body of exactly one statement is that statement itself.
package ast

import (
	"fmt"

	"github.com/schemalint/schemalint/internal/ruby/lexer"
)

// SourceLocation tracks the position of a node in source code
type SourceLocation struct {
	Line   int // Line number (1-indexed)
	Column int // Column number (1-indexed)
}

// String renders the location as line:column
func (l SourceLocation) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Kind identifies the syntactic category of a node
type Kind int

const (
	// KindBegin is a sequence of statements (explicit body or parenthesized group)
	KindBegin Kind = iota
	// KindSend is a method call, with or without receiver
	KindSend
	// KindBlock is a method call with an attached do/brace block
	KindBlock
	// KindArgs is the parameter list of a block or lambda
	KindArgs
	// KindArg is a single block or lambda parameter
	KindArg
	// KindClass is a class definition
	KindClass
	// KindModule is a module definition
	KindModule
	// KindConst is a constant reference, possibly scoped (Foo::Bar)
	KindConst
	// KindSym is a symbol literal
	KindSym
	// KindStr is a string literal without interpolation
	KindStr
	// KindDstr is a string literal with interpolation
	KindDstr
	// KindRegexp is a regular expression literal
	KindRegexp
	// KindInt is an integer literal
	KindInt
	// KindFloat is a float literal
	KindFloat
	// KindNil is the nil keyword
	KindNil
	// KindTrue is the true keyword
	KindTrue
	// KindFalse is the false keyword
	KindFalse
	// KindSelf is the self keyword
	KindSelf
	// KindLvar is a read of a local variable or block parameter
	KindLvar
	// KindIvar is an instance, class or global variable read
	KindIvar
	// KindAsgn is an assignment to a variable (=, ||=, += ...)
	KindAsgn
	// KindArray is an array literal (including %w and %i forms)
	KindArray
	// KindHash is a hash literal or a trailing keyword-argument group
	KindHash
	// KindPair is a key/value entry of a hash
	KindPair
	// KindSplat is *expr or **expr
	KindSplat
	// KindBlockPass is &expr
	KindBlockPass
	// KindLambda is a stabby lambda (-> { })
	KindLambda
	// KindOp is a unary or binary operator application
	KindOp
	// KindCond is a ternary or a statement modifier (if, unless, while, until, rescue)
	KindCond
	// KindKeyword is a control keyword with optional arguments (return, yield, super ...)
	KindKeyword
	// KindOpaque is a construct the parser skips as a balanced unit (def, if, case ...)
	KindOpaque
)

var kindNames = map[Kind]string{
	KindBegin:     "begin",
	KindSend:      "send",
	KindBlock:     "block",
	KindArgs:      "args",
	KindArg:       "arg",
	KindClass:     "class",
	KindModule:    "module",
	KindConst:     "const",
	KindSym:       "sym",
	KindStr:       "str",
	KindDstr:      "dstr",
	KindRegexp:    "regexp",
	KindInt:       "int",
	KindFloat:     "float",
	KindNil:       "nil",
	KindTrue:      "true",
	KindFalse:     "false",
	KindSelf:      "self",
	KindLvar:      "lvar",
	KindIvar:      "ivar",
	KindAsgn:      "asgn",
	KindArray:     "array",
	KindHash:      "hash",
	KindPair:      "pair",
	KindSplat:     "splat",
	KindBlockPass: "block_pass",
	KindLambda:    "lambda",
	KindOp:        "op",
	KindCond:      "cond",
	KindKeyword:   "keyword",
	KindOpaque:    "opaque",
}

// String returns the parser-gem style name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is a single syntax tree node.
//
// Which fields are populated depends on Kind:
//
//	Send      Receiver (nil for self-less calls), Name, Args
//	Block     Call (the Send), Params, Body
//	Lambda    Params, Body
//	Class     Const, Superclass (may be nil), Body
//	Module    Const, Body
//	Const     Receiver (scope, may be nil), Name
//	Begin     Args (statements in source order)
//	Args      Args (KindArg entries)
//	Asgn      Name, Op, Args[0] value
//	Pair      Args[0] key, Args[1] value (nil for shorthand `key:`)
//	Op        Op, Args (operands)
//	Cond      Name (keyword or "?"), Args
//	literals  Name holds the literal value (unquoted for Str and Sym)
//
// Start and End are byte offsets into the owning file's source; End is
// exclusive. Nodes are immutable once the parser returns them.
type Node struct {
	Kind       Kind
	Name       string
	Op         string
	Receiver   *Node
	Args       []*Node
	Call       *Node
	Params     *Node
	Body       *Node
	Const      *Node
	Superclass *Node
	Start      int
	End        int
	Loc        SourceLocation
}

// Location returns the source location of the first character of the node
func (n *Node) Location() SourceLocation {
	return n.Loc
}

// Children returns the non-nil child nodes in source order
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}

	children := make([]*Node, 0, len(n.Args)+4)
	add := func(c *Node) {
		if c != nil {
			children = append(children, c)
		}
	}

	switch n.Kind {
	case KindBlock:
		add(n.Call)
		add(n.Params)
		add(n.Body)
	case KindLambda:
		add(n.Params)
		add(n.Body)
	case KindClass:
		add(n.Const)
		add(n.Superclass)
		add(n.Body)
	case KindModule:
		add(n.Const)
		add(n.Body)
	default:
		add(n.Receiver)
		for _, arg := range n.Args {
			add(arg)
		}
	}

	return children
}

// LiteralName returns the value of a string or symbol literal
func (n *Node) LiteralName() (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind {
	case KindStr, KindSym:
		return n.Name, true
	default:
		return "", false
	}
}

// TokenLocation converts a token position into a SourceLocation
func TokenLocation(token lexer.Token) SourceLocation {
	return SourceLocation{
		Line:   token.Line,
		Column: token.Column,
	}
}
