package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/check"
	"github.com/schemalint/schemalint/internal/cli/config"
	"github.com/schemalint/schemalint/internal/cli/ui"
	"github.com/schemalint/schemalint/internal/diagnostic"
	"github.com/schemalint/schemalint/internal/fix"
	"github.com/schemalint/schemalint/internal/registry"
	"github.com/schemalint/schemalint/internal/watch"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type checkOptions struct {
	*globalOptions

	schema      string
	format      string
	fix         bool
	diff        bool
	watch       bool
	only        []string
	failLevel   string
	concurrency int
}

// NewCheckCommand creates the check command
func NewCheckCommand(g *globalOptions) *cobra.Command {
	opts := &checkOptions{globalOptions: g}

	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Report schema drift between models and db/schema.rb",
		Long: `Check model files against the canonical schema.

Directories are searched recursively for .rb files. Without arguments the
paths from .schemalint.yml are checked (default: app/models).

Examples:
  schemalint check                          # Check app/models
  schemalint check app/models/user.rb       # Check one file
  schemalint check --fix                    # Insert missing the_schema_is blocks
  schemalint check --diff                   # Preview the insertions
  schemalint check --only presence,S003     # Run selected checks
  schemalint check --format json            # Machine-readable report
  schemalint check --watch                  # Re-check on every save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.schema, "schema", "", "Path to the canonical schema (default: db/schema.rb)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")
	cmd.Flags().BoolVar(&opts.fix, "fix", false, "Write autofixes to the model files")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "Show autofixes as a diff without writing them")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-check when models or the schema change")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "Run only these checks (names or codes)")
	cmd.Flags().StringVar(&opts.failLevel, "fail-level", "", "Lowest severity that fails the run: info, warning or error")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", 0, "Number of files checked in parallel")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, opts *checkOptions) error {
	if opts.format != formatText && opts.format != formatJSON {
		return fmt.Errorf("unknown format %q (expected text or json)", opts.format)
	}
	if opts.watch && (opts.fix || opts.diff) {
		return fmt.Errorf("--watch cannot be combined with --fix or --diff")
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := applyCheckFlags(cmd, cfg, opts); err != nil {
		return err
	}

	logger, err := opts.logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	checker, err := check.NewChecker(registry.New(logger), cfg.CheckOptions(), logger)
	if err != nil {
		return err
	}
	runner := check.NewRunner(checker, cfg.Concurrency, cfg.Exclude, logger)

	paths := cfg.ResolvedPaths()
	if len(args) > 0 {
		paths = args
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.watch {
		return runWatch(ctx, cmd, opts, cfg, runner, paths, logger)
	}

	report, err := runner.Run(ctx, paths)
	if err != nil {
		return err
	}

	if opts.fix || opts.diff {
		changed, err := applyFixes(cmd.OutOrStdout(), report, opts)
		if err != nil {
			return err
		}
		if changed == 0 && len(report.Diagnostics()) > 0 {
			fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("No autofix available for the reported drift", opts.colorless()))
		}
		if opts.fix && changed > 0 {
			ui.WriteSuccess(cmd.ErrOrStderr(), fmt.Sprintf("Inserted the_schema_is blocks in %d file(s)", changed), opts.colorless())
			if report, err = runner.Run(ctx, paths); err != nil {
				return err
			}
		}
	}

	if err := writeReport(cmd, report, opts); err != nil {
		return err
	}

	failLevel, err := diagnostic.ParseSeverity(cfg.FailLevel)
	if err != nil {
		return err
	}
	if failed(report, failLevel) {
		return &ExitError{Code: 1, Err: errors.New("schema drift found"), Silent: true}
	}
	return nil
}

// applyCheckFlags lets explicitly set flags override the configuration
func applyCheckFlags(cmd *cobra.Command, cfg *config.Config, opts *checkOptions) error {
	flags := cmd.Flags()
	if flags.Changed("schema") {
		abs, err := filepath.Abs(opts.schema)
		if err != nil {
			return fmt.Errorf("invalid schema path %s: %w", opts.schema, err)
		}
		cfg.SchemaPath = abs
	}
	if flags.Changed("only") {
		cfg.Checks = opts.only
	}
	if flags.Changed("fail-level") {
		cfg.FailLevel = opts.failLevel
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	return cfg.Validate()
}

// applyFixes previews or writes the autofixes of every result and returns
// how many files they change
func applyFixes(w io.Writer, report *check.Report, opts *checkOptions) (int, error) {
	changed := 0
	for _, result := range report.Results {
		edits := result.Fixes()
		if len(edits) == 0 || result.File == nil {
			continue
		}

		fixed, err := fix.Apply(result.File.Source, edits)
		if err != nil {
			return changed, fmt.Errorf("fix %s: %w", result.Path, err)
		}
		diff := fix.Diff(string(result.File.Source), string(fixed))
		if !diff.Changed {
			continue
		}
		changed++

		if opts.diff {
			fmt.Fprint(w, diff.String(displayPath(result.Path)))
			fmt.Fprintf(w, "%s\n\n", diff.Stats())
		}
		if opts.fix {
			if err := writeFile(result.Path, fixed); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// writeFile replaces a file's content, keeping its permissions
func writeFile(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeReport(cmd *cobra.Command, report *check.Report, opts *checkOptions) error {
	diags := report.Diagnostics()
	failures := report.FailureList()
	out := cmd.OutOrStdout()

	if opts.format == formatJSON {
		text, err := diagnostic.FormatJSON(diagnostic.NewReport(report.Files(), diags, failures))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	termOpts := diagnostic.TerminalOptions{NoColor: opts.colorless()}
	fmt.Fprint(out, diagnostic.FormatAll(diags, termOpts))
	for _, f := range failures {
		fmt.Fprint(out, diagnostic.FormatFailure(f, termOpts))
	}
	if len(failures) > 0 {
		fmt.Fprintln(out)
	}
	fmt.Fprint(out, diagnostic.FormatSummary(diagnostic.Summarize(report.Files(), diags, failures), termOpts))

	if msg, ok := schemaFailure(report); ok {
		fmt.Fprint(cmd.ErrOrStderr(), ui.SchemaError(msg, opts.colorless()))
	}
	return nil
}

// schemaFailure returns the first schema load error among the failures
func schemaFailure(report *check.Report) (string, bool) {
	for _, f := range report.Failures {
		var loadErr *registry.LoadError
		if errors.As(f, &loadErr) {
			return loadErr.Error(), true
		}
	}
	return "", false
}

// failed reports whether the run should exit non-zero
func failed(report *check.Report, failLevel diagnostic.Severity) bool {
	if len(report.Failures) > 0 {
		return true
	}
	for _, d := range report.Diagnostics() {
		if d.Severity >= failLevel {
			return true
		}
	}
	return false
}

func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// runWatch checks once, then re-checks what changed until ctx ends
func runWatch(ctx context.Context, cmd *cobra.Command, opts *checkOptions, cfg *config.Config, runner *check.Runner, paths []string, logger *zap.Logger) error {
	schemaPath := cfg.ResolvedSchemaPath()
	checker := watch.NewIncrementalChecker(runner, paths, schemaPath, logger)

	result, err := checker.FullRun(ctx)
	if err != nil {
		return err
	}
	if err := writeReport(cmd, result.Report, opts); err != nil {
		return err
	}

	var mu sync.Mutex
	info := color.New(color.FgCyan)
	if opts.colorless() {
		info.DisableColor()
	}

	roots := append(append([]string{}, paths...), schemaPath)
	watcher, err := watch.NewFileWatcher(watch.Options{
		Roots:    roots,
		Patterns: []string{"*.rb"},
		Ignored:  cfg.Exclude,
		Logger:   logger,
	}, func(files []string) error {
		mu.Lock()
		defer mu.Unlock()

		result, err := checker.Update(ctx, files)
		if err != nil {
			return err
		}
		info.Fprintf(cmd.OutOrStdout(), "\n%s changed, re-checked in %s\n\n", plural(len(files), "file"), result.Duration.Round(time.Millisecond))
		return writeReport(cmd, result.Report, opts)
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}

	info.Fprintln(cmd.ErrOrStderr(), "Watching for changes (Ctrl+C to stop)")
	<-ctx.Done()
	return watcher.Stop()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
