// Package commands wires the schemalint cobra commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/cli/config"
	"github.com/schemalint/schemalint/internal/cli/ui"
	"github.com/schemalint/schemalint/internal/lsp"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	verbose    bool
	noColor    bool
}

func (g *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(g.configFile, "")
}

// logger returns a development logger on stderr under --verbose and a no-op
// logger otherwise
func (g *globalOptions) logger() (*zap.Logger, error) {
	if !g.verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func (g *globalOptions) colorless() bool {
	return g.noColor || color.NoColor
}

// ExitError carries a process exit code. Silent errors have already been
// reported to the user.
type ExitError struct {
	Code   int
	Err    error
	Silent bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 2
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "schemalint",
		Short: "Check Rails models against db/schema.rb",
		Long: color.CyanString(`schemalint - schema drift checker for Rails models

Models declare their columns inline with a the_schema_is block.
schemalint compares those declarations with the create_table blocks of
db/schema.rb and reports:
  • models without a the_schema_is block (autofixable)
  • columns missing from the model
  • columns unknown to the schema
  • columns declared with the wrong type`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
			lsp.Version = Version
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.configFile, "config", "", "Path to config file (default: nearest .schemalint.yml)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewCheckCommand(g))
	rootCmd.AddCommand(NewChecksCommand(g))
	rootCmd.AddCommand(NewInitCommand(g))
	rootCmd.AddCommand(NewLSPCommand(g))
	rootCmd.AddCommand(NewVersionCommand(g))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the schemalint version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), g.colorless())
			table.AddRow("schemalint version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// NewChecksCommand lists the available checks
func NewChecksCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the available checks",
		Long: `List the checks schemalint runs, in run order.

Names and codes are both accepted by --only and by the checks key of
.schemalint.yml.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ui.Header(cmd.OutOrStdout(), "Available checks", g.colorless())
			table := ui.NewTable(cmd.OutOrStdout(), []string{"Code", "Name", "Description"}, &ui.TableOptions{NoColor: g.colorless()})
			for _, v := range check.All() {
				table.AddRow(v.Code(), v.Name(), v.Description())
			}
			table.Render()
		},
	}
}

// Execute runs the root command and reports errors on stderr
func Execute() error {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	if err != nil {
		renderError(rootCmd.ErrOrStderr(), err, color.NoColor)
	}
	return err
}

// renderError prints an error with hints where schemalint knows a fix
func renderError(w io.Writer, err error, noColor bool) {
	var exit *ExitError
	if errors.As(err, &exit) && exit.Silent {
		return
	}

	var unknown *check.UnknownCheckError
	switch {
	case errors.As(err, &unknown):
		var suggestions []string
		if best := ui.FindBestMatch(unknown.Name, unknown.Available, nil); best != "" {
			suggestions = []string{best}
		}
		fmt.Fprint(w, ui.UnknownCheckError(unknown.Name, suggestions, noColor))
	case errors.Is(err, config.ErrInvalid):
		fmt.Fprint(w, ui.ConfigError(err.Error(), noColor))
	default:
		ui.WriteError(w, ui.ErrorOptions{
			Level:   ui.ErrorLevelError,
			Problem: err.Error(),
			NoColor: noColor,
		})
	}
}
