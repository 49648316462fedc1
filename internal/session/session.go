// Package session owns the lifecycle of one loaded record: its working
// directory, the acquired samples, the decoded matrix and the state that
// gates exports.
//
// A ViewSession moves Empty -> RecordAttached -> [SamplesAcquired] ->
// Loaded -> Exported. Attachment is one-shot. Any failure while acquiring
// or reading resets the session to Empty and marks it unusable; callers
// discard it and start a new one. A ViewSession is not safe for
// concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/headat/internal/export"
	"github.com/audiolibrelab/headat/internal/record"
	"github.com/audiolibrelab/headat/internal/source"
	"github.com/audiolibrelab/headat/internal/workers"
)

var (
	ErrRecordAlreadyAttached = errors.New("session already has a record; create a new session")
	ErrNotLoaded             = errors.New("session has no loaded record")
	ErrSessionClosed         = errors.New("session is closed")
	ErrSessionUnusable       = errors.New("session failed to load a record and must be discarded")
)

// State is the lifecycle position of a session.
type State int

const (
	Empty State = iota
	RecordAttached
	SamplesAcquired
	Loaded
	Exported
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case RecordAttached:
		return "record_attached"
	case SamplesAcquired:
		return "samples_acquired"
	case Loaded:
		return "loaded"
	case Exported:
		return "exported"
	default:
		return "unknown"
	}
}

// Fetcher downloads the artifacts listed under parent into destDir.
type Fetcher interface {
	Fetch(ctx context.Context, parent *url.URL, destDir string) ([]string, error)
}

// SamplesDirName is the sub-directory holding remote artifacts.
const SamplesDirName = "samples"

// ViewSession is one record plus its export state.
type ViewSession struct {
	ID    uuid.UUID
	Title string

	createdAt  time.Time
	timestamp  string
	outputDir  string
	samplesDir string

	locator     *source.Locator
	fetcher     Fetcher
	reader      record.Reader
	workerLimit int

	ref     *source.Reference
	matrix  *record.Matrix
	meta    *record.Metadata
	state   State
	failed  bool
	exports int
	pool    *workers.Context
	closed  bool

	logger *slog.Logger
}

// AddRecord attaches raw, fetches it when remote and reads it. It may be
// called once per session.
func (s *ViewSession) AddRecord(ctx context.Context, raw string) error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.failed:
		return ErrSessionUnusable
	case s.state != Empty:
		return ErrRecordAlreadyAttached
	}

	ref, err := s.locator.Classify(raw)
	if err != nil {
		return s.fail(err)
	}
	s.ref = &ref
	s.state = RecordAttached
	s.logger.Info("Record attached", "record", ref.Stem, "kind", ref.Kind)

	stem := ref.Stem
	if ref.Kind == source.Remote {
		if s.fetcher == nil {
			return s.fail(fmt.Errorf("no fetcher configured for remote record %s", ref.Raw))
		}
		s.samplesDir = filepath.Join(s.outputDir, SamplesDirName)
		files, err := s.fetcher.Fetch(ctx, ref.Parent, s.samplesDir)
		if err != nil {
			return s.fail(err)
		}
		s.state = SamplesAcquired
		s.logger.Info("Samples acquired", "files", len(files), "dir", s.samplesDir)
		stem = filepath.Join(s.samplesDir, ref.Stem)
	}

	m, md, err := s.reader.Read(stem)
	if err != nil {
		return s.fail(err)
	}
	s.matrix, s.meta = m, md
	s.state = Loaded
	s.logger.Info("Record loaded", "record", md.RecordName, "channels", m.NumCols(), "samples", m.NumRows())
	return nil
}

func (s *ViewSession) fail(err error) error {
	s.ref, s.matrix, s.meta = nil, nil, nil
	s.state = Empty
	s.failed = true
	s.logger.Warn("Record acquisition failed", "error", err)
	return err
}

// CheckRegisteredRecord reports whether the session can be exported.
func (s *ViewSession) CheckRegisteredRecord() bool {
	return !s.closed && s.ref != nil && s.matrix != nil && s.meta != nil && s.state >= Loaded
}

func (s *ViewSession) State() State               { return s.state }
func (s *ViewSession) Failed() bool               { return s.failed }
func (s *ViewSession) Matrix() *record.Matrix     { return s.matrix }
func (s *ViewSession) Metadata() *record.Metadata { return s.meta }
func (s *ViewSession) OutputDir() string          { return s.outputDir }
func (s *ViewSession) SamplesDir() string         { return s.samplesDir }
func (s *ViewSession) Timestamp() string          { return s.timestamp }
func (s *ViewSession) CreatedAt() time.Time       { return s.createdAt }
func (s *ViewSession) ExportCount() int           { return s.exports }

// Reference returns the attached record reference.
func (s *ViewSession) Reference() (source.Reference, bool) {
	if s.ref == nil {
		return source.Reference{}, false
	}
	return *s.ref, true
}

// MarkExported records a successful export.
func (s *ViewSession) MarkExported() {
	s.exports++
	s.state = Exported
}

// Workers returns the session's worker context, creating it on first use.
func (s *ViewSession) Workers() (*workers.Context, error) {
	if s.closed {
		return nil, fmt.Errorf("%w: %w", ErrSessionClosed, workers.ErrClosed)
	}
	if s.pool == nil {
		s.pool = workers.New(s.workerLimit)
		s.logger.Debug("Worker context created", "limit", s.pool.Limit())
	}
	return s.pool, nil
}

// Info returns the loaded record's metadata.
func (s *ViewSession) Info() (*record.Metadata, error) {
	if !s.CheckRegisteredRecord() {
		return nil, ErrNotLoaded
	}
	return s.meta, nil
}

// RecordFiles lists the sample files named by the header, one per signal,
// or each file once when unique is set.
func (s *ViewSession) RecordFiles(unique bool) ([]string, error) {
	md, err := s.Info()
	if err != nil {
		return nil, err
	}
	if unique {
		return md.UniqueFiles(), nil
	}
	return append([]string(nil), md.Files...), nil
}

// Frame returns the tabular projection exports are written from.
func (s *ViewSession) Frame() (*export.Table, error) {
	if !s.CheckRegisteredRecord() {
		return nil, ErrNotLoaded
	}
	t := export.NewTable(s.matrix, true)
	t.RecordName = s.meta.RecordName
	return t, nil
}

// Close releases the worker context. It is safe to call more than once.
func (s *ViewSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.pool != nil {
		err = s.pool.Close()
	}
	s.logger.Info("Session closed", "state", s.state, "exports", s.exports, "duration", time.Since(s.createdAt).Round(time.Millisecond))
	return err
}

func (s *ViewSession) String() string {
	name := ""
	if s.ref != nil {
		name = s.ref.Stem
	}
	return fmt.Sprintf("HDView - [%s] - #rec: %s", s.Title, name)
}

var _ export.Source = (*ViewSession)(nil)
