package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/headat/internal/record"
	"github.com/audiolibrelab/headat/internal/source"
	"github.com/audiolibrelab/headat/internal/wfdb"
)

// Factory creates sessions under one export root and owns the view
// counter used for default titles.
type Factory struct {
	root        string
	locator     *source.Locator
	fetcher     Fetcher
	reader      record.Reader
	now         func() time.Time
	workerLimit int
	counter     atomic.Int64
	logger      *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

func WithLocator(l *source.Locator) FactoryOption {
	return func(f *Factory) { f.locator = l }
}

func WithFetcher(fe Fetcher) FactoryOption {
	return func(f *Factory) { f.fetcher = fe }
}

func WithReader(r record.Reader) FactoryOption {
	return func(f *Factory) { f.reader = r }
}

func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) { f.now = now }
}

// WithWorkerLimit bounds each session's worker context. Non-positive
// means one worker per CPU.
func WithWorkerLimit(n int) FactoryOption {
	return func(f *Factory) { f.workerLimit = n }
}

// NewFactory returns a factory rooted at root with the default locator
// policy, an HTTP fetcher and the WFDB reader.
func NewFactory(root string, opts ...FactoryOption) *Factory {
	f := &Factory{
		root:    root,
		locator: source.NewLocator(source.DefaultPolicy()),
		fetcher: source.NewFetcher(),
		reader:  wfdb.NewReader(),
		now:     time.Now,
		logger:  slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Root() string { return f.root }

// Count reports how many sessions this factory has created.
func (f *Factory) Count() int64 { return f.counter.Load() }

// New creates an empty session with its own directory
// <root>/view_<timestamp>. An empty title becomes "View #<n>".
func (f *Factory) New(title string) (*ViewSession, error) {
	n := f.counter.Add(1)
	if title == "" {
		title = fmt.Sprintf("View #%d", n)
	}

	created := f.now()
	ts := record.FormatTimestamp(created)
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export root: %w", err)
	}
	dir, err := makeViewDir(f.root, "view_"+ts)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	s := &ViewSession{
		ID:          id,
		Title:       title,
		createdAt:   created,
		timestamp:   ts,
		outputDir:   dir,
		locator:     f.locator,
		fetcher:     f.fetcher,
		reader:      f.reader,
		workerLimit: f.workerLimit,
		logger:      f.logger.With("session", id.String()),
	}
	s.logger.Info("Session created", "title", title, "dir", dir)
	return s, nil
}

// makeViewDir creates root/name, adding a -n suffix if two sessions share
// a timestamp.
func makeViewDir(root, name string) (string, error) {
	dir := filepath.Join(root, name)
	for n := 1; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to create session directory: %w", err)
		}
		dir = filepath.Join(root, fmt.Sprintf("%s-%d", name, n))
	}
}
