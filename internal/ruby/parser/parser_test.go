package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/ruby/ast"
)

func parseSource(t *testing.T, source string) *ast.File {
	t.Helper()
	file, errs := Parse("test.rb", []byte(source))
	require.Empty(t, errs, "unexpected parse errors: %v", Errors(errs))
	return file
}

func TestParse_SchemaFile(t *testing.T) {
	source := `ActiveRecord::Schema[7.0].define(version: 2023_01_01) do
  create_table "users", force: :cascade do |t|
    t.string "email", null: false
    t.integer "age"
    t.timestamps
  end
end
`
	file := parseSource(t, source)

	root := file.Root
	require.NotNil(t, root)
	require.Equal(t, ast.KindBlock, root.Kind)
	assert.Equal(t, "define", root.Call.Name)

	table := root.Body
	require.NotNil(t, table)
	require.Equal(t, ast.KindBlock, table.Kind)
	assert.Equal(t, "create_table", table.Call.Name)
	assert.Nil(t, table.Call.Receiver)

	require.Len(t, table.Call.Args, 2)
	name, ok := table.Call.Args[0].LiteralName()
	require.True(t, ok)
	assert.Equal(t, "users", name)
	assert.Equal(t, ast.KindHash, table.Call.Args[1].Kind)

	require.NotNil(t, table.Params)
	require.Len(t, table.Params.Args, 1)
	assert.Equal(t, "t", table.Params.Args[0].Name)

	body := table.Body
	require.Equal(t, ast.KindBegin, body.Kind)
	require.Len(t, body.Args, 3)

	first := body.Args[0]
	assert.Equal(t, ast.KindSend, first.Kind)
	assert.Equal(t, "string", first.Name)
	require.NotNil(t, first.Receiver)
	assert.Equal(t, ast.KindLvar, first.Receiver.Kind)
	assert.Equal(t, `t.string "email", null: false`, file.Text(first))

	assert.Equal(t, "timestamps", body.Args[2].Name)
	assert.Empty(t, body.Args[2].Args)
}

func TestParse_ModelClass(t *testing.T) {
	source := `class User < ApplicationRecord
  the_schema_is "users" do |t|
    t.string "name"
  end

  has_many :posts, dependent: :destroy
  scope :active, -> { where(active: true) }

  def full_name
    if first
      "#{first} #{last}"
    end
  end
end
`
	file := parseSource(t, source)

	class := file.Root
	require.NotNil(t, class)
	require.Equal(t, ast.KindClass, class.Kind)
	assert.Equal(t, "User", class.Const.Name)
	require.NotNil(t, class.Superclass)
	assert.Equal(t, "ApplicationRecord", file.Text(class.Superclass))
	assert.Equal(t, 1, class.Loc.Line)
	assert.Equal(t, 1, class.Loc.Column)

	body := class.Body
	require.Equal(t, ast.KindBegin, body.Kind)
	require.Len(t, body.Args, 4)

	schema := body.Args[0]
	require.Equal(t, ast.KindBlock, schema.Kind)
	assert.Equal(t, "the_schema_is", schema.Call.Name)
	// A single-statement body is the statement itself
	require.NotNil(t, schema.Body)
	assert.Equal(t, ast.KindSend, schema.Body.Kind)
	assert.Equal(t, `t.string "name"`, file.Text(schema.Body))

	assert.Equal(t, "has_many", body.Args[1].Name)
	assert.Equal(t, "scope", body.Args[2].Name)
	require.Len(t, body.Args[2].Args, 2)
	assert.Equal(t, ast.KindLambda, body.Args[2].Args[1].Kind)

	def := body.Args[3]
	assert.Equal(t, ast.KindOpaque, def.Kind)
	assert.Equal(t, "def", def.Name)
	assert.Equal(t, 9, def.Loc.Line)
}

func TestParse_EmptyBlockBody(t *testing.T) {
	file := parseSource(t, "create_table \"tags\" do |t|\nend\n")

	require.Equal(t, ast.KindBlock, file.Root.Kind)
	assert.Nil(t, file.Root.Body)
}

func TestParse_NestedModule(t *testing.T) {
	source := "module Admin\n  class Account < ActiveRecord::Base\n  end\nend\n"
	file := parseSource(t, source)

	module := file.Root
	require.Equal(t, ast.KindModule, module.Kind)
	assert.Equal(t, "Admin", module.Const.Name)

	class := module.Body
	require.Equal(t, ast.KindClass, class.Kind)
	assert.Equal(t, "ActiveRecord::Base", file.Text(class.Superclass))
	assert.Equal(t, 3, class.Loc.Column)
	assert.Nil(t, class.Body)
}

func TestParse_AttributeAssignment(t *testing.T) {
	file := parseSource(t, "self.table_name = \"people\"\n")

	node := file.Root
	require.Equal(t, ast.KindSend, node.Kind)
	assert.Equal(t, "table_name=", node.Name)
	require.NotNil(t, node.Receiver)
	assert.Equal(t, ast.KindSelf, node.Receiver.Kind)
	require.Len(t, node.Args, 1)
	value, ok := node.Args[0].LiteralName()
	require.True(t, ok)
	assert.Equal(t, "people", value)
}

func TestParse_DoBindsToOuterCommand(t *testing.T) {
	file := parseSource(t, "foo bar do\nend\n")

	block := file.Root
	require.Equal(t, ast.KindBlock, block.Kind)
	assert.Equal(t, "foo", block.Call.Name)
	require.Len(t, block.Call.Args, 1)
	assert.Equal(t, "bar", block.Call.Args[0].Name)
}

func TestParse_StatementForms(t *testing.T) {
	source := "def x = 1\nvalidates :a, if: -> { b? }\nputs 1 if y\n"
	file := parseSource(t, source)

	require.Equal(t, ast.KindBegin, file.Root.Kind)
	stmts := file.Root.Args
	require.Len(t, stmts, 3)

	assert.Equal(t, ast.KindOpaque, stmts[0].Kind)
	assert.Equal(t, "def x = 1", file.Text(stmts[0]))
	assert.Equal(t, ast.KindSend, stmts[1].Kind)
	assert.Equal(t, ast.KindCond, stmts[2].Kind)
	assert.Equal(t, "if", stmts[2].Name)
}

func TestParse_LocalVariables(t *testing.T) {
	file := parseSource(t, "t = 1\nt.foo\n")

	stmts := file.Root.Args
	require.Len(t, stmts, 2)
	assert.Equal(t, ast.KindAsgn, stmts[0].Kind)

	call := stmts[1]
	require.Equal(t, ast.KindSend, call.Kind)
	require.NotNil(t, call.Receiver)
	assert.Equal(t, ast.KindLvar, call.Receiver.Kind)
}

func TestParse_ControlFlowIsOpaque(t *testing.T) {
	source := `class Post < ApplicationRecord
  class << self
    def recent
      while loading do
        wait
      end
      items.each do |i|
        i.touch unless i.fresh?
      end
    end
  end
  validates :title, presence: true
end
`
	file := parseSource(t, source)

	body := file.Root.Body
	require.Equal(t, ast.KindBegin, body.Kind)
	require.Len(t, body.Args, 2)
	assert.Equal(t, ast.KindOpaque, body.Args[0].Kind)
	assert.Equal(t, "validates", body.Args[1].Name)
}

func TestParse_HeredocAndPercentArguments(t *testing.T) {
	source := "execute <<~SQL\n  SELECT 1\nSQL\nenum status: %i[draft live]\n"
	file := parseSource(t, source)

	stmts := file.Root.Args
	require.Len(t, stmts, 2)
	assert.Equal(t, "execute", stmts[0].Name)
	assert.Equal(t, ast.KindDstr, stmts[0].Args[0].Kind)

	hash := stmts[1].Args[0]
	require.Equal(t, ast.KindHash, hash.Kind)
	values := hash.Args[0].Args[1]
	require.Equal(t, ast.KindArray, values.Kind)
	require.Len(t, values.Args, 2)
	assert.Equal(t, "live", values.Args[1].Name)
}

func TestParse_MissingEndReportsError(t *testing.T) {
	_, errs := Parse("broken.rb", []byte("class Foo < Bar\n  has_many :x\n"))
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Expected 'end'")
	assert.Contains(t, Errors(errs).Error(), "Parse error at")
}

func TestParse_EmptyFile(t *testing.T) {
	file := parseSource(t, "# just a comment\n")
	assert.Nil(t, file.Root)
}
