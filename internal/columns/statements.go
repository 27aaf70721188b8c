package columns

import (
	"github.com/schemalint/schemalint/internal/ruby/ast"
)

// ignoredMethods are table-definition calls that declare no column
var ignoredMethods = map[string]bool{
	"index":                true,
	"check_constraint":     true,
	"exclusion_constraint": true,
	"unique_constraint":    true,
	"foreign_key":          true,
	"remove":               true,
	"remove_index":         true,
	"remove_references":    true,
	"remove_belongs_to":    true,
	"remove_timestamps":    true,
	"rename":               true,
	"change":               true,
	"change_default":       true,
	"change_null":          true,
}

// FromStatements produces column specs from table-definition statements
// such as `t.string "email"`. Statements that are not calls on the block
// variable, or that declare no column, are skipped.
func FromStatements(stmts []*ast.Node) []Spec {
	specs := make([]Spec, 0, len(stmts))

	for _, stmt := range stmts {
		if stmt == nil || stmt.Kind != ast.KindSend {
			continue
		}
		if stmt.Receiver == nil || stmt.Receiver.Kind != ast.KindLvar {
			continue
		}
		if ignoredMethods[stmt.Name] {
			continue
		}

		switch stmt.Name {
		case "column":
			specs = append(specs, genericColumn(stmt)...)
		case "timestamps":
			specs = append(specs,
				Spec{Name: "created_at", Type: "datetime", Node: stmt},
				Spec{Name: "updated_at", Type: "datetime", Node: stmt},
			)
		case "references", "belongs_to":
			specs = append(specs, references(stmt)...)
		default:
			for _, name := range leadingNames(stmt.Args) {
				specs = append(specs, Spec{Name: name, Type: stmt.Name, Node: stmt})
			}
		}
	}

	return specs
}

// genericColumn handles t.column "name", :type
func genericColumn(stmt *ast.Node) []Spec {
	if len(stmt.Args) < 2 {
		return nil
	}
	name, ok := stmt.Args[0].LiteralName()
	if !ok {
		return nil
	}
	typ, ok := stmt.Args[1].LiteralName()
	if !ok {
		return nil
	}
	return []Spec{{Name: name, Type: typ, Node: stmt}}
}

// references handles t.references :user, which declares user_id (and
// user_type when polymorphic)
func references(stmt *ast.Node) []Spec {
	typ := "bigint"
	polymorphic := false

	if opts := trailingHash(stmt.Args); opts != nil {
		if value := option(opts, "type"); value != nil {
			if name, ok := value.LiteralName(); ok {
				typ = name
			}
		}
		if value := option(opts, "polymorphic"); value != nil && value.Kind != ast.KindFalse && value.Kind != ast.KindNil {
			polymorphic = true
		}
	}

	specs := make([]Spec, 0, 2)
	for _, name := range leadingNames(stmt.Args) {
		specs = append(specs, Spec{Name: name + "_id", Type: typ, Node: stmt})
		if polymorphic {
			specs = append(specs, Spec{Name: name + "_type", Type: "string", Node: stmt})
		}
	}
	return specs
}

// leadingNames returns the literal string/symbol arguments before options
func leadingNames(args []*ast.Node) []string {
	names := make([]string, 0, 1)
	for _, arg := range args {
		name, ok := arg.LiteralName()
		if !ok {
			break
		}
		names = append(names, name)
	}
	return names
}

func trailingHash(args []*ast.Node) *ast.Node {
	if len(args) == 0 {
		return nil
	}
	if last := args[len(args)-1]; last.Kind == ast.KindHash {
		return last
	}
	return nil
}

// option finds the value of a symbol-keyed entry in a hash node
func option(hash *ast.Node, key string) *ast.Node {
	for _, pair := range hash.Args {
		if pair.Kind != ast.KindPair || len(pair.Args) != 2 {
			continue
		}
		if name, ok := pair.Args[0].LiteralName(); ok && name == key {
			return pair.Args[1]
		}
	}
	return nil
}
