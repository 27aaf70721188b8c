package diagnostic

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/ruby/ast"
)

func sampleFile() (*ast.File, *ast.Node) {
	source := "class User < ApplicationRecord\n  the_schema_is do |t|\n    t.string :nickname\n  end\nend\n"
	file := ast.NewFile("app/models/user.rb", []byte(source))
	start := strings.Index(source, "t.string")
	end := strings.Index(source, ":nickname") + len(":nickname")
	node := &ast.Node{Kind: ast.KindSend, Name: "string", Start: start, End: end, Loc: file.Position(start)}
	return file, node
}

func TestNew_Location(t *testing.T) {
	file, node := sampleFile()

	d := New(file, UnknownColumn, node, `Uknown column "nickname"`)

	assert.Equal(t, "app/models/user.rb", d.Path)
	assert.Equal(t, CodeUnknownColumn, d.Code)
	assert.Equal(t, Warning, d.Severity)
	assert.Equal(t, Location{Line: 3, Column: 5, EndLine: 3, EndColumn: 23}, d.Location)
	assert.Equal(t, "    t.string :nickname", d.SourceLine)
	assert.Same(t, node, d.Anchor)
	assert.Nil(t, d.Fix)
}

func TestDiagnostic_Error(t *testing.T) {
	file, node := sampleFile()
	d := New(file, UnknownColumn, node, `Uknown column "nickname"`)

	assert.Equal(t, `app/models/user.rb:3:5: S003 Uknown column "nickname"`, d.Error())
}

func TestKind_Codes(t *testing.T) {
	tests := []struct {
		kind Kind
		code string
		name string
	}{
		{MissingSchema, "S001", "MissingSchema"},
		{MissingColumn, "S002", "MissingColumn"},
		{UnknownColumn, "S003", "UnknownColumn"},
		{TypeMismatch, "S004", "TypeMismatch"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.kind.Code())
		assert.Equal(t, tt.name, tt.kind.String())
	}
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("ERROR")
	require.NoError(t, err)
	assert.Equal(t, Error, sev)

	sev, err = ParseSeverity("warn")
	require.NoError(t, err)
	assert.Equal(t, Warning, sev)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestSeverity_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Error)
	require.NoError(t, err)
	assert.Equal(t, `"error"`, string(data))

	var sev Severity
	require.NoError(t, json.Unmarshal([]byte(`"info"`), &sev))
	assert.Equal(t, Info, sev)
}

func TestFormatForTerminal(t *testing.T) {
	file, node := sampleFile()
	d := New(file, UnknownColumn, node, `Uknown column "nickname"`)

	out := FormatForTerminal(d, TerminalOptions{NoColor: true})

	expected := "warning[S003]: Uknown column \"nickname\"\n" +
		"  --> app/models/user.rb:3:5\n" +
		"   |\n" +
		" 3 |     t.string :nickname\n" +
		"   |     ^^^^^^^^^^^^^^^^^^\n"
	assert.Equal(t, expected, out)
}

func TestFormatForTerminal_FixHint(t *testing.T) {
	file, node := sampleFile()
	d := New(file, MissingSchema, node, MsgMissingSchema).WithFix(InsertAfter(node, "\n"))

	out := FormatForTerminal(d, TerminalOptions{NoColor: true})
	assert.Contains(t, out, "fix available")
}

func TestFormatSummary(t *testing.T) {
	opts := TerminalOptions{NoColor: true}

	assert.Equal(t, "✓ 3 files checked, no schema drift found\n",
		FormatSummary(Summary{Files: 3}, opts))
	assert.Equal(t, "✗ 0 errors, 2 warnings, 1 failure in 1 file\n",
		FormatSummary(Summary{Files: 1, Warnings: 2, Total: 2, Failures: 1}, opts))
}

func TestNewReport(t *testing.T) {
	file, node := sampleFile()
	warn := New(file, UnknownColumn, node, `Uknown column "nickname"`)

	t.Run("success", func(t *testing.T) {
		report := NewReport(2, nil, nil)
		assert.Equal(t, "success", report.Status)
		assert.NotNil(t, report.Diagnostics)
		assert.NotNil(t, report.Failures)
	})

	t.Run("warning", func(t *testing.T) {
		report := NewReport(1, []Diagnostic{warn}, nil)
		assert.Equal(t, "warning", report.Status)
		assert.Equal(t, 1, report.Summary.Warnings)
	})

	t.Run("error", func(t *testing.T) {
		report := NewReport(1, []Diagnostic{warn.WithSeverity(Error)}, nil)
		assert.Equal(t, "error", report.Status)
	})

	t.Run("failure", func(t *testing.T) {
		report := NewReport(1, nil, []Failure{{Path: "x.rb", Message: "boom"}})
		assert.Equal(t, "error", report.Status)
		assert.Equal(t, 1, report.Summary.Failures)
	})
}

func TestFormatJSON(t *testing.T) {
	file, node := sampleFile()
	d := New(file, UnknownColumn, node, `Uknown column "nickname"`)

	out, err := FormatJSON(NewReport(1, []Diagnostic{d}, nil))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "warning", decoded["status"])

	diags := decoded["diagnostics"].([]any)
	require.Len(t, diags, 1)
	first := diags[0].(map[string]any)
	assert.Equal(t, "UnknownColumn", first["kind"])
	assert.Equal(t, "S003", first["code"])
	assert.Equal(t, "warning", first["severity"])
	assert.NotContains(t, first, "Anchor")
	assert.NotContains(t, first, "fix")
}
