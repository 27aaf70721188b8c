// Package check runs the schema drift validators over model classes.
package check

import (
	"fmt"
	"strings"

	"github.com/schemalint/schemalint/internal/columns"
	"github.com/schemalint/schemalint/internal/diagnostic"
	"github.com/schemalint/schemalint/internal/model"
	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
)

// Input is everything a validator sees for one model class
type Input struct {
	File  *ast.File
	Model *model.Descriptor
	Table *registry.Table // nil when the canonical schema has no such table
}

// Validator is one stateless drift check
type Validator interface {
	Code() string
	Name() string
	Description() string
	Validate(in Input) ([]diagnostic.Diagnostic, error)
}

// Validator names accepted by configuration
const (
	NamePresence        = "presence"
	NameMissingColumn   = "missing_column"
	NameUnknownColumn   = "unknown_column"
	NameWrongColumnType = "wrong_column_type"
)

// All returns every validator in run order
func All() []Validator {
	return []Validator{
		Presence{},
		MissingColumn{},
		UnknownColumn{},
		WrongColumnType{},
	}
}

// Names returns the names of every validator in run order
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, v := range all {
		names[i] = v.Name()
	}
	return names
}

// Select returns the named validators, still in run order. An empty list
// selects all of them.
func Select(names []string) ([]Validator, error) {
	if len(names) == 0 {
		return All(), nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.TrimSpace(name)] = true
	}

	var selected []Validator
	for _, v := range All() {
		if wanted[v.Name()] || wanted[v.Code()] {
			selected = append(selected, v)
			delete(wanted, v.Name())
			delete(wanted, v.Code())
		}
	}

	for name := range wanted {
		return nil, &UnknownCheckError{Name: name, Available: Names()}
	}
	return selected, nil
}

// UnknownCheckError reports a check name that no validator answers to
type UnknownCheckError struct {
	Name      string
	Available []string
}

func (e *UnknownCheckError) Error() string {
	return fmt.Sprintf("unknown check %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Presence reports models without a the_schema_is block
type Presence struct{}

func (Presence) Code() string { return diagnostic.CodeMissingSchema }
func (Presence) Name() string { return NamePresence }
func (Presence) Description() string {
	return "model has a the_schema_is block (autofixable)"
}

func (Presence) Validate(in Input) ([]diagnostic.Diagnostic, error) {
	if in.Model.SchemaBlock != nil {
		return nil, nil
	}

	d := diagnostic.New(in.File, diagnostic.MissingSchema, in.Model.ClassNode, diagnostic.MsgMissingSchema)
	if edit, ok := SynthesizeFix(in.Model.ClassNode, in.Table); ok {
		d = d.WithFix(edit)
	}
	return []diagnostic.Diagnostic{d}, nil
}

// MissingColumn reports canonical columns the model does not declare
type MissingColumn struct{}

func (MissingColumn) Code() string { return diagnostic.CodeMissingColumn }
func (MissingColumn) Name() string { return NameMissingColumn }
func (MissingColumn) Description() string {
	return "every canonical column is declared by the model"
}

func (MissingColumn) Validate(in Input) ([]diagnostic.Diagnostic, error) {
	modelCols, schemaCols, ok, err := mappings(in)
	if !ok || err != nil {
		return nil, err
	}

	var diags []diagnostic.Diagnostic
	for _, name := range schemaCols.Names() {
		if modelCols.Has(name) {
			continue
		}
		diags = append(diags, diagnostic.New(in.File, diagnostic.MissingColumn, in.Model.SchemaBlock,
			fmt.Sprintf(diagnostic.MsgMissingColumn, name)))
	}
	return diags, nil
}

// UnknownColumn reports model columns the canonical table does not have
type UnknownColumn struct{}

func (UnknownColumn) Code() string { return diagnostic.CodeUnknownColumn }
func (UnknownColumn) Name() string { return NameUnknownColumn }
func (UnknownColumn) Description() string {
	return "every declared column exists in the canonical table"
}

func (UnknownColumn) Validate(in Input) ([]diagnostic.Diagnostic, error) {
	modelCols, schemaCols, ok, err := mappings(in)
	if !ok || err != nil {
		return nil, err
	}

	var diags []diagnostic.Diagnostic
	for _, spec := range modelCols.Specs() {
		if schemaCols.Has(spec.Name) {
			continue
		}
		diags = append(diags, diagnostic.New(in.File, diagnostic.UnknownColumn, spec.Node,
			fmt.Sprintf(diagnostic.MsgUnknownColumn, spec.Name)))
	}
	return diags, nil
}

// WrongColumnType reports columns declared on both sides with different types
type WrongColumnType struct{}

func (WrongColumnType) Code() string { return diagnostic.CodeTypeMismatch }
func (WrongColumnType) Name() string { return NameWrongColumnType }
func (WrongColumnType) Description() string {
	return "declared column types match the canonical types"
}

func (WrongColumnType) Validate(in Input) ([]diagnostic.Diagnostic, error) {
	modelCols, schemaCols, ok, err := mappings(in)
	if !ok || err != nil {
		return nil, err
	}

	var diags []diagnostic.Diagnostic
	for _, spec := range modelCols.Specs() {
		canonical, found := schemaCols.Get(spec.Name)
		if !found || canonical.Type == spec.Type {
			continue
		}
		diags = append(diags, diagnostic.New(in.File, diagnostic.TypeMismatch, spec.Node,
			fmt.Sprintf(diagnostic.MsgTypeMismatch, spec.Name, canonical.Type)))
	}
	return diags, nil
}

// mappings extracts both column mappings. ok is false when the model has no
// schema block or the canonical schema has no table for it.
func mappings(in Input) (modelCols, schemaCols *columns.Mapping, ok bool, err error) {
	if in.Model.SchemaBlock == nil || in.Table == nil {
		return nil, nil, false, nil
	}

	modelCols, err = columns.Extract(in.Model.SchemaBlock, match.ShapeModelSchema)
	if err != nil {
		return nil, nil, false, err
	}
	schemaCols, err = columns.Extract(in.Table.Block, match.ShapeCreateTable)
	if err != nil {
		return nil, nil, false, err
	}
	return modelCols, schemaCols, true, nil
}
