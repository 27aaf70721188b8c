package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/parser"
)

func parseRoot(t *testing.T, source string) (*ast.File, *ast.Node) {
	t.Helper()
	file, errs := parser.Parse("test.rb", []byte(source))
	require.Empty(t, errs)
	return file, file.Root
}

func TestMatch_Shapes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		shape  Shape
		want   bool
	}{
		{"model schema", "the_schema_is do |t|\n  t.string \"a\"\nend\n", ShapeModelSchema, true},
		{"model schema with table argument", "the_schema_is \"users\" do |t|\nend\n", ShapeModelSchema, true},
		{"create table", "create_table \"users\", force: :cascade do |t|\nend\n", ShapeCreateTable, true},
		{"wrong method", "create_table \"users\" do |t|\nend\n", ShapeModelSchema, false},
		{"no block", "the_schema_is\n", ShapeModelSchema, false},
		{"with receiver", "schema.create_table \"users\" do |t|\nend\n", ShapeCreateTable, false},
		{"brace block", "the_schema_is { |t| t.string \"a\" }\n", ShapeModelSchema, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, root := parseRoot(t, tt.source)
			assert.Equal(t, tt.want, Matches(root, tt.shape))
		})
	}
}

func TestFlatten(t *testing.T) {
	t.Run("several statements", func(t *testing.T) {
		file, root := parseRoot(t, "create_table \"users\" do |t|\n  t.string \"a\"\n  t.integer \"b\"\nend\n")
		stmts, err := Statements(root, ShapeCreateTable)
		require.NoError(t, err)
		require.Len(t, stmts, 2)
		assert.Equal(t, `t.string "a"`, file.Text(stmts[0]))
		assert.Equal(t, `t.integer "b"`, file.Text(stmts[1]))
	})

	t.Run("single statement", func(t *testing.T) {
		file, root := parseRoot(t, "create_table \"users\" do |t|\n  t.string \"a\"\nend\n")
		stmts, err := Statements(root, ShapeCreateTable)
		require.NoError(t, err)
		require.Len(t, stmts, 1)
		assert.Equal(t, `t.string "a"`, file.Text(stmts[0]))
	})

	t.Run("empty body", func(t *testing.T) {
		_, root := parseRoot(t, "the_schema_is do |t|\nend\n")
		stmts, err := Statements(root, ShapeModelSchema)
		require.NoError(t, err)
		assert.Empty(t, stmts)
	})
}

func TestStatements_ShapeMismatch(t *testing.T) {
	_, root := parseRoot(t, "has_many :posts\n")

	_, err := Statements(root, ShapeCreateTable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "create_table")
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "the_schema_is", ShapeModelSchema.String())
	assert.Equal(t, "create_table", ShapeCreateTable.String())
	assert.Equal(t, "shape(7)", Shape(7).String())
}
