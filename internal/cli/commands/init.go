package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/cli/config"
	"github.com/schemalint/schemalint/internal/cli/ui"
)

type initOptions struct {
	*globalOptions

	yes   bool
	force bool
	dir   string
}

// initAnswers receives the survey answers
type initAnswers struct {
	SchemaPath string   `survey:"schema_path"`
	Paths      string   `survey:"paths"`
	Checks     []string `survey:"checks"`
	Severity   string   `survey:"severity"`
}

// askInit fills cfg interactively; replaced in tests
var askInit = func(cfg *config.Config) error {
	answers := initAnswers{}
	questions := []*survey.Question{
		{
			Name:     "schema_path",
			Prompt:   &survey.Input{Message: "Canonical schema:", Default: cfg.SchemaPath},
			Validate: survey.Required,
		},
		{
			Name:     "paths",
			Prompt:   &survey.Input{Message: "Model paths (comma separated):", Default: strings.Join(cfg.Paths, ",")},
			Validate: survey.Required,
		},
		{
			Name: "checks",
			Prompt: &survey.MultiSelect{
				Message: "Checks to run:",
				Options: check.Names(),
				Default: check.Names(),
			},
			Validate: survey.MinItems(1),
		},
		{
			Name: "severity",
			Prompt: &survey.Select{
				Message: "Report drift as:",
				Options: []string{"info", "warning", "error"},
				Default: cfg.Severity,
			},
		},
	}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}
	return answers.apply(cfg)
}

// apply copies the answers into cfg; selecting every check is stored as
// no explicit list
func (a initAnswers) apply(cfg *config.Config) error {
	cfg.SchemaPath = strings.TrimSpace(a.SchemaPath)

	cfg.Paths = nil
	for _, p := range strings.Split(a.Paths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.Paths = append(cfg.Paths, p)
		}
	}

	if len(a.Checks) == 0 {
		return errors.New("select at least one check")
	}
	cfg.Checks = nil
	if len(a.Checks) < len(check.All()) {
		cfg.Checks = a.Checks
	}

	if a.Severity != "" {
		cfg.Severity = a.Severity
	}
	return cfg.Validate()
}

// NewInitCommand creates the init command
func NewInitCommand(g *globalOptions) *cobra.Command {
	opts := &initOptions{globalOptions: g}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .schemalint.yml",
		Long: `Create a .schemalint.yml configuration in the current directory.

The schema path, model paths, enabled checks and severity are asked for
interactively. Use --yes to write the defaults without prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Write defaults without prompting")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing config file")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Directory to create the config file in")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	target := filepath.Join(opts.dir, config.FileName)
	if _, err := os.Stat(target); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", target)
	}

	cfg := config.Default()
	if !opts.yes {
		if err := askInit(cfg); err != nil {
			return err
		}
	}

	if err := config.Write(target, cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.WriteSuccess(out, fmt.Sprintf("Created %s", target), opts.colorless())

	checks := "all"
	if len(cfg.Checks) > 0 {
		checks = strings.Join(cfg.Checks, ", ")
	}
	table := ui.NewKeyValueTable(out, opts.colorless())
	table.AddRow("Schema", cfg.SchemaPath)
	table.AddRow("Paths", strings.Join(cfg.Paths, ", "))
	table.AddRow("Checks", checks)
	table.AddRow("Severity", cfg.Severity)
	table.Render()

	return nil
}
