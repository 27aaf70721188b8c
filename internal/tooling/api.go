// Package tooling keeps open editor documents and their schema drift
// diagnostics for the language server. It is safe for concurrent use.
package tooling

import (
	"errors"
	"strings"
	"sync"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/diagnostic"
	"github.com/schemalint/schemalint/internal/ruby/parser"
)

// Source is reported as the origin of every diagnostic
const Source = "schemalint"

// API provides thread-safe access to checking for IDE integration
type API struct {
	documents map[string]*Document
	docsMutex sync.RWMutex

	checker *check.Checker
	logger  *zap.Logger
}

// Document is a cached open document with its check results
type Document struct {
	URI     string
	Path    string
	Content string
	Version int

	// ParseErrors contains any syntax errors from parsing
	ParseErrors []parser.ParseError

	// Failure is set when the canonical schema could not be loaded
	Failure error

	Result check.Result
}

// Position is a zero-based position in a document
type Position struct {
	Line      int
	Character int
}

// Range represents a range in a document
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether pos lies within the range, ends included
func (r Range) Contains(pos Position) bool {
	return !before(pos, r.Start) && !before(r.End, pos)
}

// Overlaps reports whether two ranges share at least one position
func (r Range) Overlaps(other Range) bool {
	return !before(r.End, other.Start) && !before(other.End, r.Start)
}

func before(a, b Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

// Diagnostic is a check finding in editor coordinates
type Diagnostic struct {
	Range    Range
	Severity DiagnosticSeverity
	Code     string
	Message  string
	Source   string
}

// DiagnosticSeverity indicates the severity of a diagnostic
type DiagnosticSeverity int

const (
	DiagnosticSeverityError DiagnosticSeverity = iota
	DiagnosticSeverityWarning
	DiagnosticSeverityInfo
	DiagnosticSeverityHint
)

// TextEdit replaces Range with NewText; an empty range is an insertion
type TextEdit struct {
	Range   Range
	NewText string
}

// CodeAction is a quick fix for one diagnostic
type CodeAction struct {
	Title      string
	Diagnostic Diagnostic
	Edit       TextEdit
}

// NewAPI creates a new tooling API instance
func NewAPI(checker *check.Checker, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		documents: make(map[string]*Document),
		checker:   checker,
		logger:    logger,
	}
}

// ParseFile checks a document and caches the result
func (a *API) ParseFile(docURI, content string) *Document {
	doc := a.analyze(docURI, content)

	a.docsMutex.Lock()
	a.documents[docURI] = doc
	a.docsMutex.Unlock()

	return doc
}

// UpdateDocument re-checks a document whose content changed
func (a *API) UpdateDocument(docURI, content string, version int) *Document {
	a.docsMutex.Lock()
	oldDoc, exists := a.documents[docURI]
	if exists && oldDoc.Content == content {
		// Content unchanged, update version and return cached document
		oldDoc.Version = version
		a.docsMutex.Unlock()
		return oldDoc
	}
	a.docsMutex.Unlock()

	doc := a.analyze(docURI, content)
	doc.Version = version

	a.docsMutex.Lock()
	a.documents[docURI] = doc
	a.docsMutex.Unlock()

	return doc
}

// SchemaChanged drops the cached canonical schema when the file changed on
// disk behind the server's back, e.g. after a migration rewrote it. Callers
// then Refresh the open documents.
func (a *API) SchemaChanged() bool {
	return a.checker.RevalidateSchema()
}

// Refresh drops the cached canonical schema and re-checks every open
// document. It returns the URIs that were re-checked.
func (a *API) Refresh() []string {
	a.checker.InvalidateSchema()

	a.docsMutex.RLock()
	snapshot := make([]*Document, 0, len(a.documents))
	for _, doc := range a.documents {
		snapshot = append(snapshot, doc)
	}
	a.docsMutex.RUnlock()

	uris := make([]string, 0, len(snapshot))
	for _, old := range snapshot {
		doc := a.analyze(old.URI, old.Content)
		doc.Version = old.Version

		a.docsMutex.Lock()
		if _, open := a.documents[old.URI]; open {
			a.documents[old.URI] = doc
			uris = append(uris, old.URI)
		}
		a.docsMutex.Unlock()
	}
	return uris
}

// GetDocument retrieves a cached document
func (a *API) GetDocument(docURI string) (*Document, bool) {
	a.docsMutex.RLock()
	defer a.docsMutex.RUnlock()

	doc, exists := a.documents[docURI]
	return doc, exists
}

// CloseDocument removes a document from the cache
func (a *API) CloseDocument(docURI string) {
	a.docsMutex.Lock()
	delete(a.documents, docURI)
	a.docsMutex.Unlock()
}

// GetDiagnostics returns diagnostics for a document
func (a *API) GetDiagnostics(docURI string) []Diagnostic {
	doc, exists := a.GetDocument(docURI)
	if !exists {
		return nil
	}

	diagnostics := make([]Diagnostic, 0, len(doc.ParseErrors)+len(doc.Result.Diagnostics)+1)

	for _, err := range doc.ParseErrors {
		start := Position{Line: err.Location.Line - 1, Character: err.Location.Column - 1}
		diagnostics = append(diagnostics, Diagnostic{
			Range: Range{
				Start: start,
				End:   Position{Line: start.Line, Character: start.Character + max(len(err.Token.Lexeme), 1)},
			},
			Severity: DiagnosticSeverityError,
			Code:     "parse_error",
			Message:  err.Message,
			Source:   Source,
		})
	}

	if doc.Failure != nil {
		diagnostics = append(diagnostics, Diagnostic{
			Severity: DiagnosticSeverityError,
			Code:     "schema_load_error",
			Message:  doc.Failure.Error(),
			Source:   Source,
		})
	}

	for _, d := range doc.Result.Diagnostics {
		diagnostics = append(diagnostics, convertDiagnostic(d))
	}

	return diagnostics
}

// GetCodeActions returns the fixes of diagnostics overlapping rng
func (a *API) GetCodeActions(docURI string, rng Range) []CodeAction {
	doc, exists := a.GetDocument(docURI)
	if !exists || doc.Result.File == nil {
		return nil
	}

	actions := make([]CodeAction, 0)
	for _, d := range doc.Result.Diagnostics {
		if d.Fix == nil {
			continue
		}
		converted := convertDiagnostic(d)
		if !converted.Range.Overlaps(rng) {
			continue
		}

		loc := doc.Result.File.Position(d.Fix.Offset)
		at := Position{Line: loc.Line - 1, Character: loc.Column - 1}
		actions = append(actions, CodeAction{
			Title:      "Insert the_schema_is block from the canonical schema",
			Diagnostic: converted,
			Edit: TextEdit{
				Range:   Range{Start: at, End: at},
				NewText: d.Fix.Text,
			},
		})
	}
	return actions
}

func (a *API) analyze(docURI, content string) *Document {
	doc := &Document{
		URI:     docURI,
		Path:    PathFromURI(docURI),
		Content: content,
		Version: 1,
	}

	result, err := a.checker.CheckSource(doc.Path, []byte(content))
	doc.Result = result

	var parseErrs parser.Errors
	switch {
	case err == nil:
	case errors.As(err, &parseErrs):
		doc.ParseErrors = parseErrs
	default:
		doc.Failure = err
	}

	a.logger.Debug("document checked",
		zap.String("uri", docURI),
		zap.Int("diagnostics", len(result.Diagnostics)),
		zap.Int("parse_errors", len(doc.ParseErrors)),
		zap.Bool("failed", doc.Failure != nil),
	)
	return doc
}

// PathFromURI returns the file path of a file:// URI and any other
// identifier unchanged
func PathFromURI(docURI string) string {
	if strings.HasPrefix(docURI, uri.FileScheme+"://") {
		return uri.URI(docURI).Filename()
	}
	return docURI
}

func convertDiagnostic(d diagnostic.Diagnostic) Diagnostic {
	return Diagnostic{
		Range: Range{
			Start: Position{Line: d.Location.Line - 1, Character: d.Location.Column - 1},
			End:   Position{Line: d.Location.EndLine - 1, Character: d.Location.EndColumn - 1},
		},
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Message:  d.Message,
		Source:   Source,
	}
}

func convertSeverity(severity diagnostic.Severity) DiagnosticSeverity {
	switch severity {
	case diagnostic.Error:
		return DiagnosticSeverityError
	case diagnostic.Warning:
		return DiagnosticSeverityWarning
	default:
		return DiagnosticSeverityInfo
	}
}
