// Package diagnostic defines schema drift diagnostics and their text and
// JSON renderings.
package diagnostic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/schemalint/schemalint/internal/ruby/ast"
)

// Severity represents the severity level of a diagnostic
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	parsed, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses info, warning or error
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return Info, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	default:
		return Warning, fmt.Errorf("unknown severity %q (expected info, warning or error)", s)
	}
}

// Kind identifies which check produced a diagnostic
type Kind int

const (
	MissingSchema Kind = iota
	MissingColumn
	UnknownColumn
	TypeMismatch
)

// Diagnostic codes
const (
	CodeMissingSchema = "S001"
	CodeMissingColumn = "S002"
	CodeUnknownColumn = "S003"
	CodeTypeMismatch  = "S004"
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case MissingSchema:
		return "MissingSchema"
	case MissingColumn:
		return "MissingColumn"
	case UnknownColumn:
		return "UnknownColumn"
	case TypeMismatch:
		return "TypeMismatch"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Code returns the stable diagnostic code of the kind
func (k Kind) Code() string {
	switch k {
	case MissingSchema:
		return CodeMissingSchema
	case MissingColumn:
		return CodeMissingColumn
	case UnknownColumn:
		return CodeUnknownColumn
	case TypeMismatch:
		return CodeTypeMismatch
	default:
		return "S000"
	}
}

// MarshalJSON implements json.Marshaler for Kind
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Location is the 1-indexed source range a diagnostic points at
type Location struct {
	Line      int `json:"line"`
	Column    int `json:"column"`
	EndLine   int `json:"end_line"`
	EndColumn int `json:"end_column"`
}

// TextEdit is a pure insertion of Text at byte Offset, which is the end of
// the Anchor node
type TextEdit struct {
	Anchor *ast.Node `json:"-"`
	Offset int       `json:"offset"`
	Text   string    `json:"text"`
}

// InsertAfter builds an insertion right after the anchor node
func InsertAfter(anchor *ast.Node, text string) TextEdit {
	return TextEdit{
		Anchor: anchor,
		Offset: anchor.End,
		Text:   text,
	}
}

// Diagnostic is one reported schema drift
type Diagnostic struct {
	Path     string    `json:"path"`
	Kind     Kind      `json:"kind"`
	Code     string    `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Location Location  `json:"location"`
	Fix      *TextEdit `json:"fix,omitempty"`

	Anchor     *ast.Node `json:"-"`
	SourceLine string    `json:"-"` // first line of the anchor, for terminal rendering
}

// New creates a warning diagnostic anchored at a node of file
func New(file *ast.File, kind Kind, anchor *ast.Node, message string) Diagnostic {
	d := Diagnostic{
		Path:     file.Path,
		Kind:     kind,
		Code:     kind.Code(),
		Severity: Warning,
		Message:  message,
		Anchor:   anchor,
	}

	if anchor != nil {
		start := file.Position(anchor.Start)
		end := file.EndLocation(anchor)
		d.Location = Location{
			Line:      start.Line,
			Column:    start.Column,
			EndLine:   end.Line,
			EndColumn: end.Column,
		}
		d.SourceLine = file.Line(start.Line)
	}

	return d
}

// WithFix attaches a text edit
func (d Diagnostic) WithFix(edit TextEdit) Diagnostic {
	d.Fix = &edit
	return d
}

// WithSeverity overrides the severity
func (d Diagnostic) WithSeverity(severity Severity) Diagnostic {
	d.Severity = severity
	return d
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s %s",
		d.Path,
		d.Location.Line,
		d.Location.Column,
		d.Code,
		d.Message)
}

// Failure is a file whose analysis could not complete
type Failure struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Messages for each kind
const (
	MsgMissingSchema = "The schema is not defined for the model"
	MsgMissingColumn = "Column %q definition is missing"
	MsgUnknownColumn = "Uknown column %q"
	MsgTypeMismatch  = "Wrong column type for %q: expected %s"
)
