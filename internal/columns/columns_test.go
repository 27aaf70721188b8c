package columns

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
	"github.com/schemalint/schemalint/internal/ruby/parser"
)

func parseBlock(t *testing.T, source string) (*ast.File, *ast.Node) {
	t.Helper()
	file, errs := parser.Parse("test.rb", []byte(source))
	require.Empty(t, errs)
	require.NotNil(t, file.Root)
	return file, file.Root
}

func typesOf(m *Mapping) map[string]string {
	out := make(map[string]string, m.Len())
	for _, spec := range m.Specs() {
		out[spec.Name] = spec.Type
	}
	return out
}

func TestExtract_CreateTable(t *testing.T) {
	source := `create_table "users", force: :cascade do |t|
  t.string "email", null: false
  t.integer :age, default: 0
  t.column "score", :decimal
  t.references :account, foreign_key: true
  t.belongs_to :owner, type: :uuid
  t.references :subject, polymorphic: true
  t.timestamps
  t.index ["email"], unique: true
  t.check_constraint "age >= 0"
end
`
	file, block := parseBlock(t, source)

	mapping, err := Extract(block, match.ShapeCreateTable)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"email", "age", "score", "account_id", "owner_id",
		"subject_id", "subject_type", "created_at", "updated_at",
	}, mapping.Names())

	assert.Equal(t, map[string]string{
		"email":        "string",
		"age":          "integer",
		"score":        "decimal",
		"account_id":   "bigint",
		"owner_id":     "uuid",
		"subject_id":   "bigint",
		"subject_type": "string",
		"created_at":   "datetime",
		"updated_at":   "datetime",
	}, typesOf(mapping))

	email, ok := mapping.Get("email")
	require.True(t, ok)
	assert.Equal(t, `t.string "email", null: false`, file.Text(email.Node))
}

func TestExtract_SingleStatementBody(t *testing.T) {
	_, block := parseBlock(t, "the_schema_is do |t|\n  t.string \"name\"\nend\n")

	mapping, err := Extract(block, match.ShapeModelSchema)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, mapping.Names())
}

func TestExtract_EmptyBody(t *testing.T) {
	_, block := parseBlock(t, "the_schema_is do |t|\nend\n")

	mapping, err := Extract(block, match.ShapeModelSchema)
	require.NoError(t, err)
	assert.Equal(t, 0, mapping.Len())
}

func TestExtract_ShapeMismatch(t *testing.T) {
	_, block := parseBlock(t, "the_schema_is do |t|\nend\n")

	_, err := Extract(block, match.ShapeCreateTable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, match.ErrShapeMismatch))
}

func TestExtract_LastWriteWins(t *testing.T) {
	source := "the_schema_is do |t|\n  t.integer \"age\"\n  t.string \"name\"\n  t.string \"age\"\nend\n"
	file, block := parseBlock(t, source)

	mapping, err := Extract(block, match.ShapeModelSchema)
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "name"}, mapping.Names())
	age, ok := mapping.Get("age")
	require.True(t, ok)
	assert.Equal(t, "string", age.Type)
	assert.Equal(t, `t.string "age"`, file.Text(age.Node))
}

func TestFromStatements_SkipsNonColumnStatements(t *testing.T) {
	source := "the_schema_is do |t|\n  puts \"hi\"\n  t.string \"name\"\n  other.string \"x\"\n  t.string dynamic_name\nend\n"
	_, block := parseBlock(t, source)

	stmts, err := match.Statements(block, match.ShapeModelSchema)
	require.NoError(t, err)

	specs := FromStatements(stmts)
	require.Len(t, specs, 1)
	assert.Equal(t, "name", specs[0].Name)
}

func TestFold(t *testing.T) {
	m := Fold([]Spec{
		{Name: "id", Type: "integer"},
		{Name: "email", Type: "string"},
	})

	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Has("id"))
	assert.False(t, m.Has("name"))

	_, ok := m.Get("missing")
	assert.False(t, ok)

	names := m.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"id", "email"}, m.Names())
}
