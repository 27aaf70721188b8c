// Package columns turns column declaration statements into column specs and
// folds them into name-keyed mappings.
package columns

import (
	"fmt"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
)

// Spec describes one declared column
type Spec struct {
	Name string
	Type string
	Node *ast.Node // declaring statement, used to anchor diagnostics
}

// Mapping is an ordered set of column specs addressable by name
type Mapping struct {
	order []string
	specs map[string]Spec
}

// Fold builds a mapping from specs in declaration order. A repeated name
// keeps its first position and takes the later spec.
func Fold(specs []Spec) *Mapping {
	m := &Mapping{
		order: make([]string, 0, len(specs)),
		specs: make(map[string]Spec, len(specs)),
	}
	for _, spec := range specs {
		if _, seen := m.specs[spec.Name]; !seen {
			m.order = append(m.order, spec.Name)
		}
		m.specs[spec.Name] = spec
	}
	return m
}

// Names returns column names in declaration order
func (m *Mapping) Names() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Get returns the spec for a column name
func (m *Mapping) Get(name string) (Spec, bool) {
	spec, ok := m.specs[name]
	return spec, ok
}

// Has reports whether a column name is declared
func (m *Mapping) Has(name string) bool {
	_, ok := m.specs[name]
	return ok
}

// Len returns the number of distinct column names
func (m *Mapping) Len() int {
	return len(m.order)
}

// Specs returns the specs in declaration order
func (m *Mapping) Specs() []Spec {
	specs := make([]Spec, 0, len(m.order))
	for _, name := range m.order {
		specs = append(specs, m.specs[name])
	}
	return specs
}

// Extract reads the column mapping of a the_schema_is or create_table block
func Extract(block *ast.Node, shape match.Shape) (*Mapping, error) {
	stmts, err := match.Statements(block, shape)
	if err != nil {
		return nil, fmt.Errorf("extract columns: %w", err)
	}
	return Fold(FromStatements(stmts)), nil
}
