// Package match implements structural tests over the Ruby syntax tree: a
// closed set of call-with-block shapes and statement-list flattening.
package match

import (
	"errors"
	"fmt"

	"github.com/schemalint/schemalint/internal/ruby/ast"
)

// ErrShapeMismatch is returned when a node does not have the expected shape
var ErrShapeMismatch = errors.New("node does not match expected shape")

// Shape is one of the block shapes column declarations are read from
type Shape int

const (
	// ShapeModelSchema is `the_schema_is do |t| ... end` inside a model
	ShapeModelSchema Shape = iota
	// ShapeCreateTable is `create_table "name" do |t| ... end` in db/schema.rb
	ShapeCreateTable
)

// Method returns the name of the call that introduces the block
func (s Shape) Method() string {
	switch s {
	case ShapeModelSchema:
		return "the_schema_is"
	case ShapeCreateTable:
		return "create_table"
	default:
		return ""
	}
}

// String returns the method name, or a placeholder for unknown shapes
func (s Shape) String() string {
	if m := s.Method(); m != "" {
		return m
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Match tests whether node is a receiver-less call of the shape's method
// with an attached block, and returns the block body. The body is nil for an
// empty block.
func Match(node *ast.Node, shape Shape) (*ast.Node, bool) {
	if node == nil || node.Kind != ast.KindBlock {
		return nil, false
	}

	call := node.Call
	if call == nil || call.Kind != ast.KindSend || call.Receiver != nil {
		return nil, false
	}
	if call.Name != shape.Method() {
		return nil, false
	}

	return node.Body, true
}

// Matches reports whether node has the given shape
func Matches(node *ast.Node, shape Shape) bool {
	_, ok := Match(node, shape)
	return ok
}

// IsBegin reports whether node is a sequence of statements
func IsBegin(node *ast.Node) bool {
	return node != nil && node.Kind == ast.KindBegin
}

// Flatten returns the statements of a block body in source order: the
// children of a begin node, nothing for an empty body, or the body itself
func Flatten(body *ast.Node) []*ast.Node {
	switch {
	case body == nil:
		return []*ast.Node{}
	case IsBegin(body):
		stmts := make([]*ast.Node, len(body.Args))
		copy(stmts, body.Args)
		return stmts
	default:
		return []*ast.Node{body}
	}
}

// Statements matches node against shape and flattens its body
func Statements(node *ast.Node, shape Shape) ([]*ast.Node, error) {
	body, ok := Match(node, shape)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s block", ErrShapeMismatch, shape)
	}
	return Flatten(body), nil
}
