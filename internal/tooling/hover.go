package tooling

import (
	"fmt"
	"strings"

	"github.com/schemalint/schemalint/internal/columns"
	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/ruby/match"
)

// Hover is markdown shown for the symbol under the cursor
type Hover struct {
	Contents string
	Range    Range
}

// GetHover describes the model name or declared column at pos together
// with what the canonical schema says about it
func (a *API) GetHover(docURI string, pos Position) *Hover {
	doc, exists := a.GetDocument(docURI)
	if !exists || doc.Result.File == nil {
		return nil
	}

	for _, sym := range a.extractSymbols(doc.Result.File) {
		if !sym.Range.Contains(pos) {
			continue
		}
		for _, col := range sym.Children {
			if col.Range.Contains(pos) {
				return a.buildHover(sym, col)
			}
		}
		if sym.SelectionRange.Contains(pos) {
			return a.buildHover(sym, nil)
		}
	}
	return nil
}

// buildHover creates hover content for a model, or for one of its columns
// when col is set
func (a *API) buildHover(modelSym, col *Symbol) *Hover {
	var content strings.Builder
	table := a.canonicalTable(modelSym.Detail)

	content.WriteString("```ruby\n")
	if col != nil {
		fmt.Fprintf(&content, "%s: %s", col.Name, col.Detail)
	} else {
		fmt.Fprintf(&content, "class %s", modelSym.Name)
	}
	content.WriteString("\n```\n\n")

	if col == nil {
		fmt.Fprintf(&content, "*Table:* `%s`\n\n", modelSym.Detail)
	}

	switch {
	case table == nil:
		fmt.Fprintf(&content, "*Canonical:* no table `%s`\n", modelSym.Detail)

	case col == nil:
		fmt.Fprintf(&content, "*Canonical columns:* %d\n", table.Len())

	default:
		spec, ok := table.Get(col.Name)
		switch {
		case !ok:
			fmt.Fprintf(&content, "*Canonical:* `%s` has no column `%s`\n", modelSym.Detail, col.Name)
		case spec.Type != col.Detail:
			fmt.Fprintf(&content, "*Canonical:* `%s.%s` is `%s`, declared here as `%s`\n",
				modelSym.Detail, col.Name, spec.Type, col.Detail)
		default:
			fmt.Fprintf(&content, "*Canonical:* `%s.%s` is `%s`\n", modelSym.Detail, col.Name, spec.Type)
		}
	}

	rng := modelSym.SelectionRange
	if col != nil {
		rng = col.Range
	}
	return &Hover{
		Contents: content.String(),
		Range:    rng,
	}
}

// canonicalTable returns the canonical columns of a table, or nil when the
// schema cannot be loaded or has no such table
func (a *API) canonicalTable(name string) *columns.Mapping {
	schema, err := a.checker.Schema()
	if err != nil {
		return nil
	}
	table, ok := schema.LookupTable(name)
	if !ok {
		return nil
	}
	return tableColumns(table)
}

func tableColumns(table *registry.Table) *columns.Mapping {
	mapping, err := columns.Extract(table.Block, match.ShapeCreateTable)
	if err != nil {
		return nil
	}
	return mapping
}
