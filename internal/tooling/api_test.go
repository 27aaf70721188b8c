package tooling

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/registry"
)

const schemaSource = `ActiveRecord::Schema.define(version: 1) do
  create_table "users" do |t|
    t.string "email"
  end
end
`

func newAPI(t *testing.T) (*API, string) {
	t.Helper()
	schemaPath := filepath.Join(t.TempDir(), "schema.rb")
	require.NoError(t, os.WriteFile(schemaPath, []byte(schemaSource), 0o644))

	checker, err := check.NewChecker(registry.New(nil), check.Options{SchemaPath: schemaPath}, nil)
	require.NoError(t, err)
	return NewAPI(checker, nil), schemaPath
}

func TestAPI_ParseFile(t *testing.T) {
	api, _ := newAPI(t)
	docURI := string(uri.File("/project/app/models/user.rb"))

	doc := api.ParseFile(docURI, "class User < ApplicationRecord\n  the_schema_is do |t|\n    t.integer :age\n  end\nend\n")
	assert.Equal(t, filepath.FromSlash("/project/app/models/user.rb"), doc.Path)
	assert.Equal(t, 1, doc.Version)

	diags := api.GetDiagnostics(docURI)
	require.Len(t, diags, 2)

	assert.Equal(t, `Column "email" definition is missing`, diags[0].Message)
	assert.Equal(t, Range{Start: Position{1, 2}, End: Position{3, 5}}, diags[0].Range)

	assert.Equal(t, `Uknown column "age"`, diags[1].Message)
	assert.Equal(t, "S003", diags[1].Code)
	assert.Equal(t, DiagnosticSeverityWarning, diags[1].Severity)
	assert.Equal(t, Source, diags[1].Source)
	assert.Equal(t, Range{Start: Position{2, 4}, End: Position{2, 18}}, diags[1].Range)
}

func TestAPI_ParseErrors(t *testing.T) {
	api, _ := newAPI(t)

	api.ParseFile("untitled:1", "class User < ApplicationRecord\n")
	diags := api.GetDiagnostics("untitled:1")

	require.NotEmpty(t, diags)
	assert.Equal(t, "parse_error", diags[0].Code)
	assert.Equal(t, DiagnosticSeverityError, diags[0].Severity)
}

func TestAPI_SchemaFailure(t *testing.T) {
	checker, err := check.NewChecker(nil, check.Options{SchemaPath: filepath.Join(t.TempDir(), "none.rb")}, nil)
	require.NoError(t, err)
	api := NewAPI(checker, nil)

	api.ParseFile("untitled:1", "class User < ApplicationRecord\nend\n")
	diags := api.GetDiagnostics("untitled:1")

	require.Len(t, diags, 1)
	assert.Equal(t, "schema_load_error", diags[0].Code)
	assert.Contains(t, diags[0].Message, "failed to load schema")
}

func TestAPI_UpdateDocument(t *testing.T) {
	api, _ := newAPI(t)
	content := "class User < ApplicationRecord\nend\n"

	first := api.ParseFile("untitled:1", content)
	same := api.UpdateDocument("untitled:1", content, 2)
	assert.Same(t, first, same)
	assert.Equal(t, 2, same.Version)

	updated := api.UpdateDocument("untitled:1", "class Helper\nend\n", 3)
	assert.NotSame(t, first, updated)
	assert.Equal(t, 3, updated.Version)
	assert.Empty(t, api.GetDiagnostics("untitled:1"))
}

func TestAPI_CloseDocument(t *testing.T) {
	api, _ := newAPI(t)

	api.ParseFile("untitled:1", "class User < ApplicationRecord\nend\n")
	api.CloseDocument("untitled:1")

	_, ok := api.GetDocument("untitled:1")
	assert.False(t, ok)
	assert.Nil(t, api.GetDiagnostics("untitled:1"))
}

func TestAPI_GetCodeActions(t *testing.T) {
	api, _ := newAPI(t)
	content := "class User < ApplicationRecord\n  has_many :posts\nend\n"
	api.ParseFile("untitled:1", content)

	actions := api.GetCodeActions("untitled:1", Range{Start: Position{0, 3}, End: Position{0, 3}})
	require.Len(t, actions, 1)

	action := actions[0]
	assert.Equal(t, "S001", action.Diagnostic.Code)
	assert.Equal(t, Range{Start: Position{0, 30}, End: Position{0, 30}}, action.Edit.Range)
	assert.Equal(t, "\nthe_schema_is do |t|\n  t.string \"email\"\nend\n", action.Edit.NewText)

	// nothing to fix away from the class
	assert.Empty(t, api.GetCodeActions("untitled:1", Range{Start: Position{5, 0}, End: Position{5, 0}}))
}

func TestAPI_Refresh(t *testing.T) {
	api, schemaPath := newAPI(t)
	api.ParseFile("untitled:1", "class User < ApplicationRecord\n  the_schema_is do |t|\n    t.string :email\n  end\nend\n")
	assert.Empty(t, api.GetDiagnostics("untitled:1"))

	updated := strings.Replace(schemaSource, `t.string "email"`, `t.text "email"`, 1)
	require.NoError(t, os.WriteFile(schemaPath, []byte(updated), 0o644))

	assert.Equal(t, []string{"untitled:1"}, api.Refresh())
	diags := api.GetDiagnostics("untitled:1")
	require.Len(t, diags, 1)
	assert.Equal(t, `Wrong column type for "email": expected text`, diags[0].Message)
}

func TestAPI_ConcurrentAccess(t *testing.T) {
	api, _ := newAPI(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docURI := "untitled:" + string(rune('a'+i))
			api.ParseFile(docURI, "class User < ApplicationRecord\nend\n")
			api.GetDiagnostics(docURI)
			api.GetCodeActions(docURI, Range{})
		}(i)
	}
	wg.Wait()
}

func TestRange(t *testing.T) {
	r := Range{Start: Position{1, 2}, End: Position{3, 4}}

	assert.True(t, r.Contains(Position{1, 2}))
	assert.True(t, r.Contains(Position{2, 0}))
	assert.False(t, r.Contains(Position{3, 5}))

	assert.True(t, r.Overlaps(Range{Start: Position{0, 0}, End: Position{1, 2}}))
	assert.False(t, r.Overlaps(Range{Start: Position{4, 0}, End: Position{4, 1}}))
}

func TestPathFromURI(t *testing.T) {
	assert.Equal(t, "untitled:1", PathFromURI("untitled:1"))
	assert.Equal(t, filepath.FromSlash("/tmp/user.rb"), PathFromURI("file:///tmp/user.rb"))
}
