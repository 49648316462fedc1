// Package export writes a loaded record to the output formats listed in a
// Registry. Dispatch is a static map from format key to Backend, built
// once when the Engine is created.
//
// Export separates three failure classes:
//
//   - Unknown format, missing record, or a row count over the format's
//     limit are returned as errors. Nothing is written.
//   - A recognized format with no backend returns a failed Result carrying
//     ErrNotImplemented.
//   - A backend failure returns a failed Result carrying a
//     BackendWriteError. The session is untouched and later exports run
//     normally.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/headat/internal/metrics"
	"github.com/audiolibrelab/headat/internal/record"
	"github.com/audiolibrelab/headat/internal/workers"
)

// Source is what the engine needs from a session.
type Source interface {
	// CheckRegisteredRecord reports whether record, matrix and metadata
	// are all present.
	CheckRegisteredRecord() bool
	Matrix() *record.Matrix
	Metadata() *record.Metadata
	OutputDir() string
	// Timestamp is the session creation timestamp used in file names.
	Timestamp() string
	Workers() (*workers.Context, error)
	MarkExported()
}

// Result is the outcome of one export call.
type Result struct {
	Format  string
	Path    string
	Success bool
	Err     error
}

func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("%s: ok %s", r.Format, r.Path)
	}
	return fmt.Sprintf("%s: failed: %v", r.Format, r.Err)
}

// Engine dispatches exports.
type Engine struct {
	registry *Registry
	backends map[string]Backend
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBackend wires (or replaces) the backend for a canonical key.
func WithBackend(key string, b Backend) EngineOption {
	return func(e *Engine) { e.backends[key] = b }
}

// WithoutBackend unwires key, making it report not implemented.
func WithoutBackend(key string) EngineOption {
	return func(e *Engine) { delete(e.backends, key) }
}

func WithMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = c }
}

// WithClock replaces time.Now, for collision suffixes in file names.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine over registry with DefaultBackends. Every
// Native format must end up with a backend.
func NewEngine(registry *Registry, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	e := &Engine{
		registry: registry,
		backends: DefaultBackends(),
		logger:   slog.Default().With("component", "export.engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for key := range e.backends {
		if _, err := registry.Lookup(key); err != nil {
			delete(e.backends, key)
		}
	}
	for _, d := range registry.All() {
		if d.Kind == Native && e.backends[d.Key] == nil {
			return nil, fmt.Errorf("native format '%s' has no backend", d.Key)
		}
	}
	return e, nil
}

// Registry returns the registry the engine dispatches on.
func (e *Engine) Registry() *Registry { return e.registry }

// Implemented reports whether key resolves to a wired backend.
func (e *Engine) Implemented(key string) bool {
	d, err := e.registry.Lookup(key)
	return err == nil && e.backends[d.Key] != nil
}

// Export writes src in the format named by key.
func (e *Engine) Export(src Source, key string, opts Options) (Result, error) {
	desc, err := e.registry.Lookup(key)
	if err != nil {
		e.metrics.ObserveExport("unknown", metrics.OutcomeUnsupported, 0)
		return Result{Format: key, Err: err}, err
	}
	res := Result{Format: desc.Key}

	if !src.CheckRegisteredRecord() {
		e.metrics.ObserveExport(desc.Key, metrics.OutcomeNotLoaded, 0)
		res.Err = ErrNoRecord
		return res, ErrNoRecord
	}

	backend := e.backends[desc.Key]
	if backend == nil {
		e.logger.Warn("Format recognized but not implemented", "format", desc.Key)
		e.metrics.ObserveExport(desc.Key, metrics.OutcomeSoftFail, 0)
		res.Err = fmt.Errorf("%w: %s", ErrNotImplemented, desc.Key)
		return res, nil
	}

	m := src.Matrix()
	if desc.RowLimit > 0 && m.NumRows() > desc.RowLimit {
		e.metrics.ObserveExport(desc.Key, metrics.OutcomeRowLimit, 0)
		err := &RowLimitExceededError{Key: desc.Key, Rows: m.NumRows(), Limit: desc.RowLimit}
		res.Err = err
		return res, err
	}

	path := e.outputPath(src, desc.Extension)
	table := NewTable(m, !opts.NoIndex)
	if md := src.Metadata(); md != nil {
		table.RecordName = md.RecordName
	}
	if pool, err := src.Workers(); err == nil {
		table.WithPool(pool)
	}

	e.logger.Debug("Conversion started", "format", desc.Key, "path", path, "rows", m.NumRows())
	start := time.Now()
	if err := safeWrite(backend, table, path, opts.withDefaults()); err != nil {
		elapsed := time.Since(start)
		e.metrics.ObserveExport(desc.Key, metrics.OutcomeBackendError, elapsed)
		e.logger.Warn("Export failed", "format", desc.Key, "path", path, "error", err)
		res.Path = path
		res.Err = &BackendWriteError{Key: desc.Key, Path: path, Err: err}
		return res, nil
	}
	elapsed := time.Since(start)

	src.MarkExported()
	e.metrics.ObserveExport(desc.Key, metrics.OutcomeOK, elapsed)
	e.logger.Info("Export completed", "format", desc.Key, "path", path, "duration", elapsed)

	res.Path = path
	res.Success = true
	return res, nil
}

// ExportAll runs Export for every key in order. Errors become failed
// results so one bad format never stops the rest.
func (e *Engine) ExportAll(src Source, keys []string, opts Options) []Result {
	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		res, err := e.Export(src, key, opts)
		if err != nil {
			res.Success = false
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

// safeWrite runs the backend and turns a panic into an error.
func safeWrite(b Backend, t *Table, path string, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return b.Write(t, path, opts)
}

// outputPath returns <dir>/out_<session ts>.<ext>, or, when that file
// already exists, a name further qualified by the export time.
func (e *Engine) outputPath(src Source, ext string) string {
	dir := src.OutputDir()
	base := "out_" + src.Timestamp()
	path := filepath.Join(dir, base+"."+ext)
	if !exists(path) {
		return path
	}

	stamped := base + "_" + record.FormatTimestamp(e.now())
	path = filepath.Join(dir, stamped+"."+ext)
	for n := 1; exists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.%s", stamped, n, ext))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
