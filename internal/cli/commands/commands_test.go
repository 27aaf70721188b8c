package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/cli/config"
)

const testSchema = `ActiveRecord::Schema.define(version: 2024_01_01) do
  create_table "users" do |t|
    t.string "email"
  end
end
`

type project struct {
	dir        string
	configPath string
}

func newProject(t *testing.T, models map[string]string) *project {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "db"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "app", "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db", "schema.rb"), []byte(testSchema), 0o644))

	for name, content := range models {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "models", name), []byte(content), 0o644))
	}

	configPath := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(configPath, []byte("schema_path: db/schema.rb\npaths:\n  - app/models\n"), 0o644))
	return &project{dir: dir, configPath: configPath}
}

func (p *project) model(name string) string {
	return filepath.Join(p.dir, "app", "models", name)
}

// run executes the root command and returns stdout, stderr and the error
// as Execute would render it
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	if err != nil {
		renderError(&stderr, err, true)
	}
	return stdout.String(), stderr.String(), err
}

const (
	cleanUser = "class User < ApplicationRecord\n  the_schema_is do |t|\n    t.string :email\n  end\nend\n"
	bareUser  = "class User < ApplicationRecord\nend\n"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "schemalint", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"check", "checks", "init", "lsp", "version"} {
		assert.Contains(t, names, expected)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	defer func() { Version = "dev" }()

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "schemalint version: 1.0.0-test\n")
	assert.Contains(t, out, "Go version:")
}

func TestChecksCommand(t *testing.T) {
	out, _, err := run(t, "checks")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "Available checks", lines[0])
	assert.True(t, strings.HasPrefix(lines[4], "S001  presence"))
	assert.True(t, strings.HasPrefix(lines[7], "S004  wrong_column_type"))
}

func TestCheck_Clean(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": cleanUser, "helper.rb": "module Helper\nend\n"})

	out, _, err := run(t, "check", "--config", p.configPath)
	require.NoError(t, err)
	assert.Equal(t, "✓ 2 files checked, no schema drift found\n", out)
}

func TestCheck_DriftFailsTheRun(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": bareUser})

	out, stderr, err := run(t, "check", "--config", p.configPath)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, stderr)

	assert.Contains(t, out, "warning[S001]: The schema is not defined for the model\n")
	assert.Contains(t, out, "  = fix available")
	assert.Contains(t, out, "✗ 0 errors, 1 warning in 1 file\n")
}

func TestCheck_FailLevel(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": bareUser})

	_, _, err := run(t, "check", "--config", p.configPath, "--fail-level", "error")
	assert.NoError(t, err)

	_, _, err = run(t, "check", "--config", p.configPath, "--fail-level", "error", "--only", "unknown_column")
	assert.NoError(t, err)
}

func TestCheck_JSON(t *testing.T) {
	p := newProject(t, map[string]string{
		"user.rb": "class User < ApplicationRecord\n  the_schema_is do |t|\n    t.text :email\n  end\nend\n",
	})

	out, _, err := run(t, "check", "--config", p.configPath, "--format", "json")
	require.Error(t, err)

	var report struct {
		Status      string `json:"status"`
		Diagnostics []struct {
			Code     string `json:"code"`
			Severity string `json:"severity"`
			Message  string `json:"message"`
		} `json:"diagnostics"`
		Summary struct {
			Files    int `json:"files"`
			Warnings int `json:"warnings"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "warning", report.Status)
	assert.Equal(t, 1, report.Summary.Files)
	assert.Equal(t, 1, report.Summary.Warnings)
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, "S004", report.Diagnostics[0].Code)
	assert.Equal(t, `Wrong column type for "email": expected string`, report.Diagnostics[0].Message)
}

func TestCheck_Fix(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": bareUser})

	out, stderr, err := run(t, "check", "--config", p.configPath, "--fix")
	require.NoError(t, err)
	assert.Contains(t, stderr, "✓ Inserted the_schema_is blocks in 1 file(s)")
	assert.Equal(t, "✓ 1 file checked, no schema drift found\n", out)

	fixed, err := os.ReadFile(p.model("user.rb"))
	require.NoError(t, err)
	assert.Equal(t, "class User < ApplicationRecord\n"+
		"the_schema_is do |t|\n"+
		"  t.string \"email\"\n"+
		"end\n"+
		"\nend\n", string(fixed))
}

func TestCheck_Diff(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": bareUser})

	out, _, err := run(t, "check", "--config", p.configPath, "--diff")
	require.Error(t, err)

	assert.Contains(t, out, "+++ b/")
	assert.Contains(t, out, "+the_schema_is do |t|\n")
	assert.Contains(t, out, "4 lines added, 0 removed")

	unchanged, err := os.ReadFile(p.model("user.rb"))
	require.NoError(t, err)
	assert.Equal(t, bareUser, string(unchanged))
}

func TestCheck_ExplicitPathAndSchemaFlag(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": bareUser, "other.rb": bareUser})

	other := filepath.Join(p.dir, "other_schema.rb")
	require.NoError(t, os.WriteFile(other, []byte("create_table \"admins\" do |t|\nend\n"), 0o644))

	out, _, err := run(t, "check", "--config", p.configPath, "--schema", other, p.model("user.rb"))
	require.Error(t, err)
	assert.Contains(t, out, "in 1 file\n")
	assert.NotContains(t, out, "fix available")

	_, stderr, err := run(t, "check", "--config", p.configPath, "--schema", other, "--fix", p.model("user.rb"))
	require.Error(t, err)
	assert.Equal(t, "! No autofix available for the reported drift\n", stderr)

	unchanged, err := os.ReadFile(p.model("user.rb"))
	require.NoError(t, err)
	assert.Equal(t, bareUser, string(unchanged))
}

func TestCheck_UnknownCheckSuggestsName(t *testing.T) {
	p := newProject(t, nil)

	_, stderr, err := run(t, "check", "--config", p.configPath, "--only", "presense")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	var unknown *check.UnknownCheckError
	assert.True(t, errors.As(err, &unknown))
	assert.Contains(t, stderr, "UNKNOWN CHECK")
	assert.Contains(t, stderr, "Did you mean: presence?")
}

func TestCheck_MissingSchema(t *testing.T) {
	p := newProject(t, map[string]string{"user.rb": bareUser})
	require.NoError(t, os.Remove(filepath.Join(p.dir, "db", "schema.rb")))

	out, stderr, err := run(t, "check", "--config", p.configPath)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, out, "failure: ")
	assert.Contains(t, out, "1 failure")
	assert.Contains(t, stderr, "SCHEMA UNAVAILABLE")
}

func TestCheck_InvalidFlags(t *testing.T) {
	p := newProject(t, nil)

	_, stderr, err := run(t, "check", "--config", p.configPath, "--format", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)
	assert.Contains(t, stderr, "✗ unknown format")

	_, _, err = run(t, "check", "--config", p.configPath, "--watch", "--fix")
	assert.ErrorContains(t, err, "--watch cannot be combined")

	_, stderr, err = run(t, "check", "--config", p.configPath, "--concurrency", "0")
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Contains(t, stderr, "CONFIGURATION ERROR")
}

func TestInit_Defaults(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, "init", "--yes", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Created ")
	assert.Contains(t, out, "Checks:   all\n")

	cfg, err := config.Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSchemaPath, cfg.SchemaPath)
	assert.Equal(t, filepath.Join(dir, config.FileName), cfg.File)

	_, _, err = run(t, "init", "--yes", "--dir", dir)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = run(t, "init", "--yes", "--force", "--dir", dir)
	assert.NoError(t, err)
}

func TestInit_Prompted(t *testing.T) {
	original := askInit
	defer func() { askInit = original }()
	askInit = func(cfg *config.Config) error {
		return initAnswers{
			SchemaPath: "db/schema.rb",
			Paths:      "app/models, engines/app/models",
			Checks:     []string{"presence", "unknown_column"},
			Severity:   "error",
		}.apply(cfg)
	}

	dir := t.TempDir()
	_, _, err := run(t, "init", "--dir", dir)
	require.NoError(t, err)

	cfg, err := config.Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/models", "engines/app/models"}, cfg.Paths)
	assert.Equal(t, []string{"presence", "unknown_column"}, cfg.Checks)
	assert.Equal(t, "error", cfg.Severity)
}

func TestInitAnswers_Apply(t *testing.T) {
	cfg := config.Default()
	err := initAnswers{SchemaPath: "db/schema.rb", Paths: "app/models", Checks: check.Names()}.apply(cfg)
	require.NoError(t, err)
	assert.Empty(t, cfg.Checks)
	assert.Equal(t, "warning", cfg.Severity)

	err = initAnswers{SchemaPath: "db/schema.rb", Paths: "app/models"}.apply(config.Default())
	assert.EqualError(t, err, "select at least one check")

	err = initAnswers{SchemaPath: "db/schema.rb", Paths: " , ", Checks: check.Names()}.apply(config.Default())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(&ExitError{Code: 1, Silent: true}))
	assert.Equal(t, "exit status 3", (&ExitError{Code: 3}).Error())
}
