package session

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/audiolibrelab/headat/internal/export"
	"github.com/audiolibrelab/headat/internal/record"
	"github.com/audiolibrelab/headat/internal/source"
	"github.com/audiolibrelab/headat/internal/wfdb"
	"github.com/audiolibrelab/headat/internal/workers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const recHeader = "rec 2 360 4\nrec.dat 16 200 16 0 0 0 0 MLII\nrec.dat 16 200 16 0 0 0 0 V 5\n"

func recData() []byte {
	var out []byte
	for _, v := range []int16{200, 100, 400, -200, 0, 0, -200, 50} {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

// writeRecord writes a two-signal format-16 record and returns its stem.
func writeRecord(t *testing.T, dir string) string {
	t.Helper()
	stem := filepath.Join(dir, "rec")
	require.NoError(t, os.WriteFile(stem+".hea", []byte(recHeader), 0o644))
	require.NoError(t, os.WriteFile(stem+".dat", recData(), 0o644))
	return stem
}

func newFactory(t *testing.T, opts ...FactoryOption) *Factory {
	t.Helper()
	return NewFactory(filepath.Join(t.TempDir(), "out"), opts...)
}

func newSession(t *testing.T, f *Factory) *ViewSession {
	t.Helper()
	s, err := f.New("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFactoryNew(t *testing.T) {
	clock := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	f := newFactory(t, WithClock(func() time.Time { return clock }))

	a := newSession(t, f)
	b := newSession(t, f)
	c, err := f.New("ecg review")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "View #1", a.Title)
	assert.Equal(t, "View #2", b.Title)
	assert.Equal(t, "ecg review", c.Title)
	assert.EqualValues(t, 3, f.Count())

	assert.Equal(t, filepath.Join(f.Root(), "view_2024-01-02_03-04-05+000006"), a.OutputDir())
	assert.Equal(t, a.OutputDir()+"-1", b.OutputDir())
	assert.DirExists(t, b.OutputDir())
	assert.Equal(t, "2024-01-02_03-04-05+000006", a.Timestamp())

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, Empty, a.State())
	assert.False(t, a.CheckRegisteredRecord())
}

func TestFactoryCountersAreIndependent(t *testing.T) {
	a := newSession(t, newFactory(t))
	b := newSession(t, newFactory(t))
	assert.Equal(t, "View #1", a.Title)
	assert.Equal(t, "View #1", b.Title)
}

func TestAddRecord_Local(t *testing.T) {
	stem := writeRecord(t, t.TempDir())
	s := newSession(t, newFactory(t))

	require.NoError(t, s.AddRecord(context.Background(), stem+".hea"))

	assert.Equal(t, Loaded, s.State())
	assert.True(t, s.CheckRegisteredRecord())
	assert.Empty(t, s.SamplesDir())
	assert.Equal(t, "HDView - [View #1] - #rec: "+stem, s.String())

	ref, ok := s.Reference()
	require.True(t, ok)
	assert.Equal(t, source.Local, ref.Kind)

	md, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, "rec", md.RecordName)
	assert.Equal(t, 360.0, md.Frequency)
	assert.Equal(t, []string{"mlii", "v_5"}, md.Channels)

	files, err := s.RecordFiles(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec.dat", "rec.dat"}, files)
	files, err = s.RecordFiles(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec.dat"}, files)

	frame, err := s.Frame()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "mlii", "v_5"}, frame.Columns())
	assert.Equal(t, 4, frame.NumRows())
	assert.Equal(t, 1.0, s.Matrix().At(0, 0))
	assert.Equal(t, -1.0, s.Matrix().At(1, 1))
}

func TestAddRecord_IsOneShot(t *testing.T) {
	stem := writeRecord(t, t.TempDir())
	s := newSession(t, newFactory(t))
	require.NoError(t, s.AddRecord(context.Background(), stem))

	err := s.AddRecord(context.Background(), stem)
	assert.ErrorIs(t, err, ErrRecordAlreadyAttached)
	assert.Equal(t, Loaded, s.State())
	assert.True(t, s.CheckRegisteredRecord())
}

func TestAddRecord_InvalidSourceMakesSessionUnusable(t *testing.T) {
	s := newSession(t, newFactory(t))

	err := s.AddRecord(context.Background(), "https://example.com/files/db/100.hea")
	var invalid *source.InvalidSourceError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, Empty, s.State())
	assert.True(t, s.Failed())
	_, ok := s.Reference()
	assert.False(t, ok)

	stem := writeRecord(t, t.TempDir())
	assert.ErrorIs(t, s.AddRecord(context.Background(), stem), ErrSessionUnusable)
}

func TestAddRecord_ReadFailure(t *testing.T) {
	s := newSession(t, newFactory(t))

	err := s.AddRecord(context.Background(), filepath.Join(t.TempDir(), "missing"))
	var readErr *wfdb.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, Empty, s.State())
	assert.False(t, s.CheckRegisteredRecord())

	_, err = s.Info()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Frame()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

// recordSite serves a listing at /files/db/1.0.0/ linking rec.hea and
// rec.dat. Paths in fail answer 500.
func recordSite(t *testing.T, fail ...string) (*httptest.Server, *source.Locator) {
	t.Helper()
	files := map[string][]byte{
		"/files/db/1.0.0/rec.hea": []byte(recHeader),
		"/files/db/1.0.0/rec.dat": recData(),
	}
	failing := make(map[string]bool)
	for _, p := range fail {
		failing[p] = true
	}

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case failing[r.URL.Path]:
			http.Error(w, "boom", http.StatusInternalServerError)
		case r.URL.Path == "/files/db/1.0.0/":
			w.Write([]byte(`<html><body><a href="rec.hea">rec.hea</a> <a href="rec.dat">rec.dat</a> <a href="RECORDS">RECORDS</a></body></html>`))
		case files[r.URL.Path] != nil:
			w.Write(files[r.URL.Path])
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	loc := source.NewLocator(source.Policy{AllowedHost: u.Host, CollectionSegment: "files"})
	return srv, loc
}

// stateSpy records the session state each time the record is read.
type stateSpy struct {
	s      *ViewSession
	seen   []State
	reader record.Reader
}

func (p *stateSpy) Read(stem string) (*record.Matrix, *record.Metadata, error) {
	p.seen = append(p.seen, p.s.State())
	return p.reader.Read(stem)
}

func TestAddRecord_Remote(t *testing.T) {
	srv, loc := recordSite(t)
	spy := &stateSpy{reader: wfdb.NewReader()}
	f := newFactory(t,
		WithLocator(loc),
		WithFetcher(source.NewFetcher(source.WithHTTPClient(srv.Client()))),
		WithReader(spy),
	)
	s := newSession(t, f)
	spy.s = s

	require.NoError(t, s.AddRecord(context.Background(), srv.URL+"/files/db/1.0.0/rec.hea"))

	assert.Equal(t, []State{SamplesAcquired}, spy.seen)
	assert.Equal(t, Loaded, s.State())
	assert.Equal(t, filepath.Join(s.OutputDir(), "samples"), s.SamplesDir())
	assert.FileExists(t, filepath.Join(s.SamplesDir(), "rec.hea"))
	assert.FileExists(t, filepath.Join(s.SamplesDir(), "rec.dat"))
	assert.NoFileExists(t, filepath.Join(s.SamplesDir(), "RECORDS"))
	assert.Equal(t, "HDView - [View #1] - #rec: rec", s.String())
}

func TestAddRecord_RemoteFetchFailure(t *testing.T) {
	srv, loc := recordSite(t, "/files/db/1.0.0/rec.dat")
	f := newFactory(t,
		WithLocator(loc),
		WithFetcher(source.NewFetcher(source.WithHTTPClient(srv.Client()))),
	)
	s := newSession(t, f)

	err := s.AddRecord(context.Background(), srv.URL+"/files/db/1.0.0/rec")
	var fetchErr *source.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Link, "rec.dat")

	assert.Equal(t, Empty, s.State())
	assert.True(t, s.Failed())
	assert.FileExists(t, filepath.Join(s.SamplesDir(), "rec.hea"))
}

type failingFetcher struct{ calls int }

func (f *failingFetcher) Fetch(context.Context, *url.URL, string) ([]string, error) {
	f.calls++
	return nil, errors.New("offline")
}

func TestAddRecord_LocalNeverFetches(t *testing.T) {
	fetcher := &failingFetcher{}
	s := newSession(t, newFactory(t, WithFetcher(fetcher)))

	require.NoError(t, s.AddRecord(context.Background(), writeRecord(t, t.TempDir())))
	assert.Zero(t, fetcher.calls)
}

func TestWorkers_MemoizedAndReleased(t *testing.T) {
	s := newSession(t, newFactory(t, WithWorkerLimit(3)))

	w1, err := s.Workers()
	require.NoError(t, err)
	w2, err := s.Workers()
	require.NoError(t, err)
	assert.Same(t, w1, w2)
	assert.Equal(t, 3, w1.Limit())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, w1.Closed())

	_, err = s.Workers()
	assert.ErrorIs(t, err, workers.ErrClosed)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.AddRecord(context.Background(), "rec"), ErrSessionClosed)
}

func TestExportFromSession(t *testing.T) {
	s := newSession(t, newFactory(t))
	require.NoError(t, s.AddRecord(context.Background(), writeRecord(t, t.TempDir())))

	engine, err := export.NewEngine(nil)
	require.NoError(t, err)

	res, err := engine.Export(s, "csv", export.Options{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Err)
	assert.Equal(t, filepath.Join(s.OutputDir(), "out_"+s.Timestamp()+".csv"), res.Path)
	assert.Equal(t, Exported, s.State())

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "id,mlii,v_5\n0,1,0.5\n1,2,-1\n2,0,0\n3,-1,0.25\n", string(data))

	res, err = engine.Export(s, "json", export.Options{})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Err)
	assert.Equal(t, 2, s.ExportCount())

	require.NoError(t, s.Close())
	_, err = engine.Export(s, "csv", export.Options{})
	assert.ErrorIs(t, err, export.ErrNoRecord)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "samples_acquired", SamplesAcquired.String())
	assert.Equal(t, "exported", Exported.String())
	assert.Equal(t, "unknown", State(42).String())
}
