package check

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/parser"
)

func loadTable(t *testing.T, schema, name string) *registry.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.rb")
	require.NoError(t, os.WriteFile(path, []byte(schema), 0o644))

	file, err := registry.New(nil).Load(path)
	require.NoError(t, err)
	table, ok := file.LookupTable(name)
	require.True(t, ok)
	return table
}

func firstClass(t *testing.T, source string) *ast.Node {
	t.Helper()
	file, errs := parser.Parse("model.rb", []byte(source))
	require.Empty(t, errs)
	classes := ast.Find(file.Root, func(n *ast.Node) bool { return n.Kind == ast.KindClass })
	require.NotEmpty(t, classes)
	return classes[0]
}

func TestSynthesizeFix(t *testing.T) {
	table := loadTable(t, "create_table \"singles\" do |t|\n  t.string \"only\"\nend\n", "singles")

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "top level class",
			source: "class Single < ApplicationRecord\nend\n",
			want:   "\nthe_schema_is do |t|\n  t.string \"only\"\nend\n",
		},
		{
			name:   "nested class",
			source: "module Shop\n  class Single < ApplicationRecord\n  end\nend\n",
			want:   "\n  the_schema_is do |t|\n    t.string \"only\"\n  end\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edit, ok := SynthesizeFix(firstClass(t, tt.source), table)
			require.True(t, ok)
			assert.Equal(t, tt.want, edit.Text)
		})
	}
}

func TestSynthesizeFix_NoAnchor(t *testing.T) {
	table := loadTable(t, "create_table \"singles\" do |t|\n  t.string \"only\"\nend\n", "singles")

	_, ok := SynthesizeFix(firstClass(t, "class Single\nend\n"), table)
	assert.False(t, ok)

	_, ok = SynthesizeFix(firstClass(t, "class Single < ApplicationRecord\nend\n"), nil)
	assert.False(t, ok)
}
