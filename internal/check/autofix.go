package check

import (
	"strings"

	"github.com/schemalint/schemalint/internal/diagnostic"
	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
)

// SynthesizeFix builds the the_schema_is block that copies the canonical
// table's statements into the model. The block goes right after the
// superclass expression, at the class keyword's column:
//
//	class User < ApplicationRecord
//	the_schema_is do |t|
//	  t.string "email", null: false
//	end
//
// Statements are copied verbatim. No fix is produced when the table is
// unknown or its body is not a plain statement list. Classes without a
// superclass have no anchor and get no fix either.
func SynthesizeFix(class *ast.Node, table *registry.Table) (diagnostic.TextEdit, bool) {
	if class == nil || class.Superclass == nil || table == nil || table.File == nil {
		return diagnostic.TextEdit{}, false
	}

	stmts, err := match.Statements(table.Block, match.ShapeCreateTable)
	if err != nil {
		return diagnostic.TextEdit{}, false
	}

	indent := strings.Repeat(" ", class.Loc.Column-1)
	lines := make([]string, 0, len(stmts)+2)
	lines = append(lines, indent+"the_schema_is do |t|")
	for _, stmt := range stmts {
		lines = append(lines, indent+"  "+table.File.Text(stmt))
	}
	lines = append(lines, indent+"end")

	return diagnostic.InsertAfter(class.Superclass, "\n"+strings.Join(lines, "\n")+"\n"), true
}
