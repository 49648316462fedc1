package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/audiolibrelab/headat/internal/config"
	"github.com/audiolibrelab/headat/internal/export"
	"github.com/audiolibrelab/headat/internal/metrics"
	"github.com/audiolibrelab/headat/internal/session"
	"github.com/audiolibrelab/headat/internal/source"
)

// Service represents the core headat service interface
type Service interface {
	// Session operations
	Open(ctx context.Context, ref, title string) (*session.ViewSession, error)

	// Export operations
	Export(ctx context.Context, ref string, formats []string) (*ExportReport, error)
	ExportSession(s *session.ViewSession, formats []string) []ExportOutcome

	// Acquisition operations
	Fetch(ctx context.Context, ref string) (*FetchReport, error)

	// Information operations
	Info(ctx context.Context, ref string) (*RecordInfo, error)
	Formats() []FormatInfo
	GetConfig() *config.Config
	GetLastError() string

	// Metrics
	WriteMetrics() error
}

// ExportStatus summarizes one export outcome
type ExportStatus string

const (
	StatusOK             ExportStatus = "OK"
	StatusNotImplemented ExportStatus = "NOT_IMPLEMENTED"
	StatusFailed         ExportStatus = "FAILED"
)

// ExportOutcome is the printable form of an export.Result
type ExportOutcome struct {
	Format    string       `json:"format" yaml:"format"`
	Status    ExportStatus `json:"status" yaml:"status"`
	Path      string       `json:"path,omitempty" yaml:"path,omitempty"`
	Size      int64        `json:"size,omitempty" yaml:"size,omitempty"`
	SizeHuman string       `json:"size_human,omitempty" yaml:"size_human,omitempty"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// ExportReport is returned by Export
type ExportReport struct {
	Session   string          `json:"session" yaml:"session"`
	Directory string          `json:"directory" yaml:"directory"`
	Outcomes  []ExportOutcome `json:"outcomes" yaml:"outcomes"`
}

// Failed reports whether any format did not produce a file.
func (r *ExportReport) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status != StatusOK {
			return true
		}
	}
	return false
}

// FetchReport is returned by Fetch
type FetchReport struct {
	Record    string   `json:"record" yaml:"record"`
	Directory string   `json:"directory" yaml:"directory"`
	Files     []string `json:"files" yaml:"files"`
}

// RecordInfo contains the metadata of a loaded record and where it lives
type RecordInfo struct {
	Session    string   `json:"session" yaml:"session"`
	Title      string   `json:"title" yaml:"title"`
	Record     string   `json:"record" yaml:"record"`
	Source     string   `json:"source" yaml:"source"`
	Directory  string   `json:"directory" yaml:"directory"`
	Frequency  float64  `json:"frequency" yaml:"frequency"`
	Samples    int      `json:"samples" yaml:"samples"`
	Channels   []string `json:"channels" yaml:"channels"`
	Units      []string `json:"units" yaml:"units"`
	Comments   []string `json:"comments,omitempty" yaml:"comments,omitempty"`
	BaseTime   string   `json:"base_time,omitempty" yaml:"base_time,omitempty"`
	BaseDate   string   `json:"base_date,omitempty" yaml:"base_date,omitempty"`
	Files      []string `json:"files" yaml:"files"`
	SamplesDir string   `json:"samples_dir,omitempty" yaml:"samples_dir,omitempty"`
}

// FormatInfo describes one registry entry
type FormatInfo struct {
	Key         string   `json:"key" yaml:"key"`
	Extension   string   `json:"extension" yaml:"extension"`
	Kind        string   `json:"kind" yaml:"kind"`
	RowLimit    int      `json:"row_limit,omitempty" yaml:"row_limit,omitempty"`
	Aliases     []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Implemented bool     `json:"implemented" yaml:"implemented"`
}

// HeadatService is the main service implementation
type HeadatService struct {
	cfg      *config.Config
	locator  *source.Locator
	fetcher  *source.Fetcher
	factory  *session.Factory
	engine   *export.Engine
	metrics  *metrics.Collector
	progress source.Progress

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// Option customizes a HeadatService
type Option func(*options)

type options struct {
	client   *http.Client
	progress source.Progress
	registry *prometheus.Registry
}

// WithHTTPClient replaces the client used for remote listings and downloads
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithProgress reports each remote artifact before it is downloaded
func WithProgress(p source.Progress) Option {
	return func(o *options) { o.progress = p }
}

// WithRegistry collects metrics into reg instead of a private registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New creates a new headat service instance
func New(cfg *config.Config, opts ...Option) (Service, error) {
	return newService(cfg, opts...)
}

func newService(cfg *config.Config, opts ...Option) (*HeadatService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: cfg.Remote.Timeout}
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	collector := metrics.NewCollector(o.registry)
	locator := source.NewLocator(source.Policy{
		AllowedHost:       cfg.Remote.AllowedHost,
		CollectionSegment: cfg.Remote.CollectionSegment,
	})
	fetcher := source.NewFetcher(
		source.WithHTTPClient(o.client),
		source.WithUserAgent(cfg.Remote.UserAgent),
		source.WithExtensions(cfg.Remote.ArtifactExtensions...),
		source.WithProgress(o.progress),
		source.WithMetrics(collector),
	)

	engine, err := export.NewEngine(export.DefaultRegistry(), export.WithMetrics(collector))
	if err != nil {
		return nil, fmt.Errorf("failed to build export engine: %w", err)
	}

	return &HeadatService{
		cfg:     cfg,
		locator: locator,
		fetcher: fetcher,
		factory: session.NewFactory(cfg.Export.Root,
			session.WithLocator(locator),
			session.WithFetcher(fetcher),
			session.WithWorkerLimit(cfg.Workers.Limit),
		),
		engine:   engine,
		metrics:  collector,
		progress: o.progress,
	}, nil
}

// Open creates a session and loads ref into it. On failure the session is
// closed and discarded.
func (s *HeadatService) Open(ctx context.Context, ref, title string) (*session.ViewSession, error) {
	slog.Debug("Service.Open called", "record", ref)
	s.clearLastError()

	vs, err := s.factory.New(title)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to create session: %v", err))
		return nil, err
	}
	if err := vs.AddRecord(ctx, ref); err != nil {
		vs.Close()
		s.setLastError(fmt.Sprintf("Failed to load record %s: %v", ref, err))
		return nil, err
	}
	return vs, nil
}

// Export loads ref into a fresh session and writes every format in
// formats. An empty list uses the configured defaults. Per-format failures
// are reported in the outcomes, not as an error.
func (s *HeadatService) Export(ctx context.Context, ref string, formats []string) (*ExportReport, error) {
	if len(formats) == 0 {
		formats = s.cfg.Export.Formats
	}

	vs, err := s.Open(ctx, ref, "")
	if err != nil {
		return nil, err
	}
	defer vs.Close()

	return &ExportReport{
		Session:   vs.String(),
		Directory: vs.OutputDir(),
		Outcomes:  s.ExportSession(vs, formats),
	}, nil
}

// ExportSession writes formats from an already loaded session
func (s *HeadatService) ExportSession(vs *session.ViewSession, formats []string) []ExportOutcome {
	results := s.engine.ExportAll(vs, formats, s.cfg.ExportOptions())
	outcomes := make([]ExportOutcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, outcomeOf(r))
	}
	return outcomes
}

func outcomeOf(r export.Result) ExportOutcome {
	o := ExportOutcome{Format: r.Format, Path: r.Path}
	switch {
	case r.Success:
		o.Status = StatusOK
		if st, err := os.Stat(r.Path); err == nil {
			o.Size = st.Size()
			o.SizeHuman = formatBytes(st.Size())
		}
	case errors.Is(r.Err, export.ErrNotImplemented):
		o.Status = StatusNotImplemented
		o.Error = r.Err.Error()
	default:
		o.Status = StatusFailed
		if r.Err != nil {
			o.Error = r.Err.Error()
		}
	}
	return o
}

// Fetch downloads a remote record into a new session's samples directory
// without reading it.
func (s *HeadatService) Fetch(ctx context.Context, ref string) (*FetchReport, error) {
	s.clearLastError()

	r, err := s.locator.Classify(ref)
	if err != nil {
		s.setLastError(err.Error())
		return nil, err
	}
	if r.Kind != source.Remote {
		err := &source.InvalidSourceError{Ref: ref, Reason: "fetch needs a remote record URL"}
		s.setLastError(err.Error())
		return nil, err
	}

	vs, err := s.factory.New("")
	if err != nil {
		return nil, err
	}
	defer vs.Close()

	dir := filepath.Join(vs.OutputDir(), session.SamplesDirName)
	files, err := s.fetcher.Fetch(ctx, r.Parent, dir)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to fetch %s: %v", ref, err))
		return nil, err
	}
	return &FetchReport{Record: r.Stem, Directory: dir, Files: files}, nil
}

// Info loads ref and returns its metadata
func (s *HeadatService) Info(ctx context.Context, ref string) (*RecordInfo, error) {
	vs, err := s.Open(ctx, ref, "")
	if err != nil {
		return nil, err
	}
	defer vs.Close()

	md, err := vs.Info()
	if err != nil {
		return nil, err
	}
	files, err := vs.RecordFiles(true)
	if err != nil {
		return nil, err
	}
	r, _ := vs.Reference()

	return &RecordInfo{
		Session:    vs.ID.String(),
		Title:      vs.Title,
		Record:     md.RecordName,
		Source:     r.Kind.String(),
		Directory:  vs.OutputDir(),
		Frequency:  md.Frequency,
		Samples:    md.NumSamples,
		Channels:   md.Channels,
		Units:      md.Units,
		Comments:   md.Comments,
		BaseTime:   md.BaseTime,
		BaseDate:   md.BaseDate,
		Files:      files,
		SamplesDir: vs.SamplesDir(),
	}, nil
}

// Formats lists the export registry in display order
func (s *HeadatService) Formats() []FormatInfo {
	descs := s.engine.Registry().All()
	out := make([]FormatInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, FormatInfo{
			Key:         d.Key,
			Extension:   d.Extension,
			Kind:        d.Kind.String(),
			RowLimit:    d.RowLimit,
			Aliases:     d.Aliases,
			Implemented: s.engine.Implemented(d.Key),
		})
	}
	return out
}

// GetConfig returns the current configuration
func (s *HeadatService) GetConfig() *config.Config {
	return s.cfg
}

// WriteMetrics dumps the collected metrics to the configured textfile.
// It does nothing when no textfile is configured.
func (s *HeadatService) WriteMetrics() error {
	if s.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.Metrics.Textfile), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return s.metrics.WriteTextfile(s.cfg.Metrics.Textfile)
}

// GetLastError returns the last error message (thread-safe)
func (s *HeadatService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *HeadatService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *HeadatService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
