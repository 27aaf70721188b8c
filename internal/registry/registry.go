// Package registry loads canonical schema files (db/schema.rb) and indexes
// their create_table blocks by table name. Each path is read and parsed at
// most once per Registry, however many goroutines ask for it.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/schemalint/schemalint/internal/ruby/ast"
	"github.com/schemalint/schemalint/internal/ruby/match"
	"github.com/schemalint/schemalint/internal/ruby/parser"
)

// LoadError reports a schema file that could not be read or parsed
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying read or parse error
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Table is one create_table block of a schema file
type Table struct {
	Name  string
	Block *ast.Node
	File  *ast.File
}

// SchemaFile is a parsed canonical schema
type SchemaFile struct {
	Path     string
	Hash     string
	File     *ast.File
	Tables   map[string]*Table
	Order    []string // table names in first-declaration order
	LoadedAt time.Time
}

// LookupTable returns the create_table block for a table. A missing table
// is a normal outcome, not an error.
func (s *SchemaFile) LookupTable(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	table, ok := s.Tables[name]
	return table, ok
}

type entry struct {
	once    sync.Once
	loaded  atomic.Bool
	file    *SchemaFile
	err     error
	modTime time.Time
}

// Registry caches loaded schema files by path
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *zap.Logger
	loads   atomic.Int64

	// ReadFile reads schema sources; defaults to os.ReadFile
	ReadFile func(path string) ([]byte, error)
	// Stat reports modification times for Stale; defaults to os.Stat
	Stat func(path string) (os.FileInfo, error)
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:  make(map[string]*entry),
		logger:   logger,
		ReadFile: os.ReadFile,
		Stat:     os.Stat,
	}
}

// Load returns the schema file at path, reading and parsing it on first use.
// Failures are cached too: a broken schema is reported for every caller in
// the run without being re-read. Long-lived callers use Revalidate.
func (r *Registry) Load(path string) (*SchemaFile, error) {
	key := normalize(path)

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		if info, err := r.Stat(path); err == nil {
			e.modTime = info.ModTime()
		}
		e.file, e.err = r.load(path)
		e.loaded.Store(true)
	})

	return e.file, e.err
}

// Loads returns how many times a schema file was actually read
func (r *Registry) Loads() int64 {
	return r.loads.Load()
}

// Invalidate drops the cached schema for one path so the next Load reads
// it again. Never called within one check run.
func (r *Registry) Invalidate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, normalize(path))
}

// Stale reports whether the cached schema for path no longer reflects the
// file on disk: the load failed, or the file was removed or modified since.
// A path that was never loaded, or is still loading, is not stale.
func (r *Registry) Stale(path string) bool {
	r.mu.Lock()
	e, ok := r.entries[normalize(path)]
	r.mu.Unlock()

	if !ok || !e.loaded.Load() {
		return false
	}
	if e.err != nil {
		return true
	}
	info, err := r.Stat(path)
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(e.modTime)
}

// Revalidate invalidates path when it is stale and reports whether it did
func (r *Registry) Revalidate(path string) bool {
	if !r.Stale(path) {
		return false
	}
	r.logger.Debug("schema changed on disk", zap.String("schema", path))
	r.Invalidate(path)
	return true
}

func (r *Registry) load(path string) (*SchemaFile, error) {
	r.loads.Add(1)
	logger := r.logger.With(zap.String("schema", path))

	source, err := r.ReadFile(path)
	if err != nil {
		logger.Debug("schema read failed", zap.Error(err))
		return nil, &LoadError{Path: path, Err: err}
	}

	file, errs := parser.Parse(path, source)
	if len(errs) > 0 {
		logger.Debug("schema parse failed", zap.Int("errors", len(errs)))
		return nil, &LoadError{Path: path, Err: parser.Errors(errs)}
	}

	schema := Index(file)
	schema.Hash = hashContent(source)
	schema.LoadedAt = time.Now()

	logger.Debug("schema loaded",
		zap.String("hash", schema.Hash),
		zap.Int("tables", len(schema.Order)),
	)

	return schema, nil
}

// Index builds the table index of a parsed schema file. Every create_table
// block with a literal table name is indexed, wherever it is nested; a table
// declared twice resolves to its last declaration.
func Index(file *ast.File) *SchemaFile {
	schema := &SchemaFile{
		Path:   file.Path,
		File:   file,
		Tables: make(map[string]*Table),
		Order:  make([]string, 0),
	}

	blocks := ast.Find(file.Root, func(n *ast.Node) bool {
		return match.Matches(n, match.ShapeCreateTable)
	})

	for _, block := range blocks {
		if len(block.Call.Args) == 0 {
			continue
		}
		name, ok := block.Call.Args[0].LiteralName()
		if !ok {
			continue
		}
		if _, seen := schema.Tables[name]; !seen {
			schema.Order = append(schema.Order, name)
		}
		schema.Tables[name] = &Table{Name: name, Block: block, File: file}
	}

	return schema
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
