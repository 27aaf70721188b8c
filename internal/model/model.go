// Package model decides whether a class definition is an ActiveRecord model
// and resolves its table name and inline schema block.
package model

import (
	"strings"
	"unicode"

	"github.com/gertd/go-pluralize"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
)

// DefaultBaseClasses are the superclasses that mark a class as a model
var DefaultBaseClasses = []string{"ApplicationRecord", "ActiveRecord::Base"}

// Descriptor is the resolved view of one model class
type Descriptor struct {
	ClassName   string
	TableName   string
	ClassNode   *ast.Node
	SchemaBlock *ast.Node // the_schema_is block, nil when the model declares none
}

// Resolver recognizes model classes by their superclass
type Resolver struct {
	BaseClasses []string

	pluralizer *pluralize.Client
}

// NewResolver creates a resolver; an empty list selects DefaultBaseClasses
func NewResolver(baseClasses []string) *Resolver {
	if len(baseClasses) == 0 {
		baseClasses = DefaultBaseClasses
	}
	return &Resolver{
		BaseClasses: baseClasses,
		pluralizer:  pluralize.NewClient(),
	}
}

// Resolve returns the descriptor for a class node, or false when the class
// is not a concrete model. Nothing is cached between calls.
func (r *Resolver) Resolve(class *ast.Node) (*Descriptor, bool) {
	if class == nil || class.Kind != ast.KindClass || class.Superclass == nil {
		return nil, false
	}
	if !r.isBaseClass(ConstName(class.Superclass)) {
		return nil, false
	}

	desc := &Descriptor{
		ClassName: ConstName(class.Const),
		ClassNode: class,
	}

	var explicitTable, schemaTable string
	for _, stmt := range match.Flatten(class.Body) {
		switch {
		case isSelfAssignment(stmt, "abstract_class"):
			if stmt.Args[0].Kind == ast.KindTrue {
				return nil, false
			}
		case isSelfAssignment(stmt, "table_name"):
			if name, ok := stmt.Args[0].LiteralName(); ok {
				explicitTable = name
			}
		case desc.SchemaBlock == nil && match.Matches(stmt, match.ShapeModelSchema):
			desc.SchemaBlock = stmt
			if args := stmt.Call.Args; len(args) > 0 {
				if name, ok := args[0].LiteralName(); ok {
					schemaTable = name
				}
			}
		}
	}

	switch {
	case explicitTable != "":
		desc.TableName = explicitTable
	case schemaTable != "":
		desc.TableName = schemaTable
	default:
		desc.TableName = r.TableName(desc.ClassName)
	}

	return desc, true
}

// TableName infers the conventional table name of a class: the last
// segment of the name, underscored, with its last word pluralized
func (r *Resolver) TableName(className string) string {
	if i := strings.LastIndex(className, "::"); i >= 0 {
		className = className[i+2:]
	}

	name := Underscore(className)
	head, word := "", name
	if i := strings.LastIndex(name, "_"); i >= 0 {
		head, word = name[:i+1], name[i+1:]
	}
	return head + r.pluralizer.Plural(word)
}

func (r *Resolver) isBaseClass(name string) bool {
	for _, base := range r.BaseClasses {
		if strings.TrimPrefix(base, "::") == name {
			return true
		}
	}
	return false
}

// isSelfAssignment matches `self.<attr> = value`
func isSelfAssignment(stmt *ast.Node, attr string) bool {
	return stmt.Kind == ast.KindSend &&
		stmt.Name == attr+"=" &&
		stmt.Receiver != nil && stmt.Receiver.Kind == ast.KindSelf &&
		len(stmt.Args) == 1
}

// ConstName renders a constant path such as ActiveRecord::Base. Leading
// `::` is dropped; anything that is not a constant renders empty.
func ConstName(node *ast.Node) string {
	if node == nil || node.Kind != ast.KindConst {
		return ""
	}
	if node.Receiver == nil {
		return node.Name
	}
	scope := ConstName(node.Receiver)
	if scope == "" {
		return ""
	}
	return scope + "::" + node.Name
}

// Underscore converts CamelCase to snake_case (HTTPRequest -> http_request)
func Underscore(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
