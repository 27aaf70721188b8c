package tooling

import (
	"github.com/schemalint/schemalint/internal/columns"
	"github.com/schemalint/schemalint/internal/model"
	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
)

// SymbolKind classifies a document symbol
type SymbolKind int

const (
	SymbolKindModel SymbolKind = iota
	SymbolKindColumn
)

// Symbol is a model class or a column its the_schema_is block declares
type Symbol struct {
	Name           string
	Kind           SymbolKind
	Detail         string // table name of a model, type of a column
	Range          Range
	SelectionRange Range
	ContainerName  string
	Children       []*Symbol
}

// GetDocumentSymbols returns the models of a document with their declared
// columns, in source order
func (a *API) GetDocumentSymbols(docURI string) []*Symbol {
	doc, exists := a.GetDocument(docURI)
	if !exists || doc.Result.File == nil {
		return nil
	}
	return a.extractSymbols(doc.Result.File)
}

func (a *API) extractSymbols(file *ast.File) []*Symbol {
	symbols := make([]*Symbol, 0)

	classes := ast.Find(file.Root, func(n *ast.Node) bool {
		return n.Kind == ast.KindClass
	})
	for _, class := range classes {
		desc, ok := a.checker.Resolve(class)
		if !ok {
			continue
		}

		sym := &Symbol{
			Name:           desc.ClassName,
			Kind:           SymbolKindModel,
			Detail:         desc.TableName,
			Range:          nodeRange(file, class),
			SelectionRange: nodeRange(file, class),
		}
		if class.Const != nil {
			sym.SelectionRange = nodeRange(file, class.Const)
		}

		for _, spec := range declaredColumns(desc) {
			sym.Children = append(sym.Children, &Symbol{
				Name:           spec.Name,
				Kind:           SymbolKindColumn,
				Detail:         spec.Type,
				Range:          nodeRange(file, spec.Node),
				SelectionRange: nodeRange(file, spec.Node),
				ContainerName:  desc.ClassName,
			})
		}

		symbols = append(symbols, sym)
	}

	return symbols
}

// declaredColumns reads the model's the_schema_is block; a model without
// one, or with a block that cannot be read, declares nothing
func declaredColumns(desc *model.Descriptor) []columns.Spec {
	if desc.SchemaBlock == nil {
		return nil
	}
	mapping, err := columns.Extract(desc.SchemaBlock, match.ShapeModelSchema)
	if err != nil {
		return nil
	}
	return mapping.Specs()
}

// nodeRange converts a node's byte span into a zero-based range
func nodeRange(file *ast.File, n *ast.Node) Range {
	start := file.Position(n.Start)
	end := file.Position(n.End)
	return Range{
		Start: Position{Line: start.Line - 1, Character: start.Column - 1},
		End:   Position{Line: end.Line - 1, Character: end.Column - 1},
	}
}
