package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/check"
)

// IncrementalChecker keeps the last result of every model file and
// re-checks only what changed. A change to the canonical schema drops the
// schema cache and re-checks everything.
type IncrementalChecker struct {
	runner     *check.Runner
	roots      []string
	schemaPath string
	logger     *zap.Logger

	results  map[string]check.Result
	failures map[string]check.FileFailure
}

// RunResult holds the outcome of one watch iteration
type RunResult struct {
	Report       *check.Report
	ChangedFiles []string
	Full         bool
	Duration     time.Duration
}

// NewIncrementalChecker creates an incremental checker over model roots
func NewIncrementalChecker(runner *check.Runner, roots []string, schemaPath string, logger *zap.Logger) *IncrementalChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncrementalChecker{
		runner:     runner,
		roots:      roots,
		schemaPath: schemaPath,
		logger:     logger,
		results:    make(map[string]check.Result),
		failures:   make(map[string]check.FileFailure),
	}
}

// FullRun re-checks every file under the roots with a fresh schema
func (ic *IncrementalChecker) FullRun(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	ic.runner.Checker.InvalidateSchema()

	report, err := ic.runner.Run(ctx, ic.roots)
	if err != nil {
		return nil, err
	}

	ic.results = make(map[string]check.Result)
	ic.failures = make(map[string]check.FileFailure)
	ic.merge(report)

	return &RunResult{
		Report:   ic.snapshot(),
		Full:     true,
		Duration: time.Since(start),
	}, nil
}

// Update re-checks the changed files
func (ic *IncrementalChecker) Update(ctx context.Context, changed []string) (*RunResult, error) {
	for _, path := range changed {
		if ic.isSchema(path) {
			ic.logger.Debug("schema changed, re-checking everything", zap.String("path", path))
			result, err := ic.FullRun(ctx)
			if result != nil {
				result.ChangedFiles = changed
			}
			return result, err
		}
	}

	start := time.Now()
	existing := make([]string, 0, len(changed))
	for _, path := range changed {
		path = filepath.Clean(path)
		if !ic.withinRoots(path) {
			continue
		}
		delete(ic.results, path)
		delete(ic.failures, path)
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}

	if len(existing) > 0 {
		report, err := ic.runner.Run(ctx, existing)
		if err != nil {
			return nil, err
		}
		ic.merge(report)
	}

	ic.logger.Debug("incremental check",
		zap.Int("changed", len(changed)),
		zap.Int("checked", len(existing)),
	)

	return &RunResult{
		Report:       ic.snapshot(),
		ChangedFiles: changed,
		Duration:     time.Since(start),
	}, nil
}

func (ic *IncrementalChecker) merge(report *check.Report) {
	for _, result := range report.Results {
		ic.results[filepath.Clean(result.Path)] = result
	}
	for _, failure := range report.Failures {
		ic.failures[filepath.Clean(failure.Path)] = failure
	}
}

// snapshot builds a report of all cached results, ordered by path
func (ic *IncrementalChecker) snapshot() *check.Report {
	report := &check.Report{}

	for _, result := range ic.results {
		report.Results = append(report.Results, result)
	}
	for _, failure := range ic.failures {
		report.Failures = append(report.Failures, failure)
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Path < report.Results[j].Path
	})
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Path < report.Failures[j].Path
	})
	return report
}

func (ic *IncrementalChecker) isSchema(path string) bool {
	return sameFile(path, ic.schemaPath)
}

func (ic *IncrementalChecker) withinRoots(path string) bool {
	abs := absolute(path)
	for _, root := range ic.roots {
		rootAbs := absolute(root)
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func sameFile(a, b string) bool {
	return absolute(a) == absolute(b)
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
