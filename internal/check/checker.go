package check

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/diagnostic"
	"github.com/schemalint/schemalint/internal/model"
	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/parser"
)

// Options configures a Checker
type Options struct {
	SchemaPath  string
	BaseClasses []string
	Checks      []string
	Severity    string // info, warning or error; empty means warning
}

// Result holds the diagnostics of one model file
type Result struct {
	Path        string
	File        *ast.File
	Models      int
	Diagnostics []diagnostic.Diagnostic
}

// Fixes returns the text edits carried by the result's diagnostics
func (r Result) Fixes() []diagnostic.TextEdit {
	var edits []diagnostic.TextEdit
	for _, d := range r.Diagnostics {
		if d.Fix != nil {
			edits = append(edits, *d.Fix)
		}
	}
	return edits
}

// Checker checks model files against one canonical schema
type Checker struct {
	registry   *registry.Registry
	resolver   *model.Resolver
	validators []Validator
	schemaPath string
	severity   diagnostic.Severity
	logger     *zap.Logger
}

// NewChecker creates a checker. The registry may be shared between checkers.
func NewChecker(reg *registry.Registry, opts Options, logger *zap.Logger) (*Checker, error) {
	if opts.SchemaPath == "" {
		return nil, fmt.Errorf("schema path is required")
	}
	validators, err := Select(opts.Checks)
	if err != nil {
		return nil, err
	}
	severity := diagnostic.Warning
	if opts.Severity != "" {
		if severity, err = diagnostic.ParseSeverity(opts.Severity); err != nil {
			return nil, err
		}
	}
	if reg == nil {
		reg = registry.New(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		registry:   reg,
		resolver:   model.NewResolver(opts.BaseClasses),
		validators: validators,
		schemaPath: opts.SchemaPath,
		severity:   severity,
		logger:     logger,
	}, nil
}

// Registry returns the schema registry used by the checker
func (c *Checker) Registry() *registry.Registry {
	return c.registry
}

// Resolve reports whether a class node is a model and describes it
func (c *Checker) Resolve(class *ast.Node) (*model.Descriptor, bool) {
	return c.resolver.Resolve(class)
}

// Schema loads the canonical schema through the registry
func (c *Checker) Schema() (*registry.SchemaFile, error) {
	return c.registry.Load(c.schemaPath)
}

// InvalidateSchema makes the next check read the canonical schema again
func (c *Checker) InvalidateSchema() {
	c.registry.Invalidate(c.schemaPath)
}

// RevalidateSchema drops the cached schema when the file changed on disk
// since it was loaded, or failed to load. It reports whether it did.
func (c *Checker) RevalidateSchema() bool {
	return c.registry.Revalidate(c.schemaPath)
}

// CheckSource parses a model file and checks it. Parse errors are returned
// as parser.Errors.
func (c *Checker) CheckSource(path string, source []byte) (Result, error) {
	file, errs := parser.Parse(path, source)
	if len(errs) > 0 {
		return Result{Path: path, File: file}, parser.Errors(errs)
	}
	return c.CheckFile(file)
}

// CheckFile checks every model class of a parsed file, depth-first in
// source order. The canonical schema is loaded when the first model is
// found; a load failure aborts the file.
func (c *Checker) CheckFile(file *ast.File) (Result, error) {
	result := Result{Path: file.Path, File: file}
	logger := c.logger.With(zap.String("path", file.Path))

	classes := ast.Find(file.Root, func(n *ast.Node) bool {
		return n.Kind == ast.KindClass
	})

	var schema *registry.SchemaFile
	for _, class := range classes {
		desc, ok := c.resolver.Resolve(class)
		if !ok {
			continue
		}
		result.Models++

		if schema == nil {
			var err error
			schema, err = c.registry.Load(c.schemaPath)
			if err != nil {
				logger.Debug("schema unavailable", zap.Error(err))
				return result, err
			}
		}

		table, _ := schema.LookupTable(desc.TableName)
		diags, err := c.checkModel(Input{File: file, Model: desc, Table: table})
		if err != nil {
			return result, fmt.Errorf("check %s: %w", desc.ClassName, err)
		}

		logger.Debug("model checked",
			zap.String("class", desc.ClassName),
			zap.String("table", desc.TableName),
			zap.Bool("canonical", table != nil),
			zap.Int("diagnostics", len(diags)),
		)
		result.Diagnostics = append(result.Diagnostics, diags...)
	}

	return result, nil
}

func (c *Checker) checkModel(in Input) ([]diagnostic.Diagnostic, error) {
	var diags []diagnostic.Diagnostic
	for _, v := range c.validators {
		found, err := v.Validate(in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.Name(), err)
		}
		for _, d := range found {
			diags = append(diags, d.WithSeverity(c.severity))
		}
	}
	return diags, nil
}
