package check

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schemalint/schemalint/internal/diagnostic"
)

// FileFailure is a model file that could not be checked, because it did
// not parse or because the canonical schema failed to load
type FileFailure struct {
	Path string
	Err  error
}

// Error implements the error interface
func (f FileFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// Unwrap returns the underlying error
func (f FileFailure) Unwrap() error {
	return f.Err
}

// Report is the outcome of a run
type Report struct {
	Results  []Result
	Failures []FileFailure
}

// Diagnostics returns every diagnostic of the run, ordered by path
func (r *Report) Diagnostics() []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic
	for _, result := range r.Results {
		diags = append(diags, result.Diagnostics...)
	}
	return diags
}

// FailureList converts failures for rendering
func (r *Report) FailureList() []diagnostic.Failure {
	failures := make([]diagnostic.Failure, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = diagnostic.Failure{Path: f.Path, Message: f.Err.Error()}
	}
	return failures
}

// Files returns how many files were checked, failed ones included
func (r *Report) Files() int {
	return len(r.Results) + len(r.Failures)
}

// Runner checks many files concurrently with one shared schema registry
type Runner struct {
	Checker     *Checker
	Concurrency int
	Exclude     []string

	logger *zap.Logger
}

// NewRunner creates a runner
func NewRunner(checker *Checker, concurrency int, exclude []string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Checker:     checker,
		Concurrency: concurrency,
		Exclude:     exclude,
		logger:      logger,
	}
}

// Run checks every Ruby file under paths. Per-file problems are collected
// as failures; the returned error is reserved for cancellation and for
// paths that cannot be expanded.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	files, err := r.Expand(paths)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("checking files", zap.Int("files", len(files)))

	jobs := r.Concurrency
	if jobs <= 0 {
		jobs = 1
	}

	results := make([]*Result, len(files))
	var (
		mu       sync.Mutex
		failures []FileFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			result, err := r.checkPath(path)
			if err != nil {
				r.logger.Debug("file failed", zap.String("path", path), zap.Error(err))
				mu.Lock()
				failures = append(failures, FileFailure{Path: path, Err: err})
				mu.Unlock()
				return nil
			}
			results[i] = &result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, result := range results {
		if result != nil {
			report.Results = append(report.Results, *result)
		}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	report.Failures = failures

	return report, nil
}

func (r *Runner) checkPath(path string) (Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return r.Checker.CheckSource(path, source)
}

// Expand turns files and directories into a sorted, de-duplicated list of
// Ruby files. Directories are walked recursively for *.rb files; files named
// explicitly are kept whatever their extension.
func (r *Runner) Expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] && !r.excluded(path) {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("cannot check %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && r.excluded(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".rb") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// excluded matches a path, and each of its trailing segments, against the
// exclude globs
func (r *Runner) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range r.Exclude {
		if ok, _ := filepath.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
		if strings.HasPrefix(slashed, strings.TrimSuffix(pattern, "/")+"/") {
			return true
		}
	}
	return false
}
