package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/headat/internal/config"
	"github.com/audiolibrelab/headat/internal/source"
)

const header = "100 2 360 3\n100.dat 16 200 16 0 0 0 0 MLII\n100.dat 16 200 16 0 0 0 0 V5\n# 69 M\n"

func sampleData() []byte {
	var out []byte
	for _, v := range []int16{200, 100, 400, -200, 0, 0} {
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func writeRecord(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	stem := filepath.Join(dir, "100")
	require.NoError(t, os.WriteFile(stem+".hea", []byte(header), 0o644))
	require.NoError(t, os.WriteFile(stem+".dat", sampleData(), 0o644))
	return stem
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Export.Root = filepath.Join(t.TempDir(), "out")
	cfg.Workers.Limit = 2
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, opts ...Option) *HeadatService {
	t.Helper()
	svc, err := newService(cfg, opts...)
	require.NoError(t, err)
	return svc
}

func TestExport_ReportsEveryFormat(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	report, err := svc.Export(context.Background(), writeRecord(t), []string{"csv", "excel", "wav", "docx"})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 4)

	statuses := make([]ExportStatus, 0, 4)
	for _, o := range report.Outcomes {
		statuses = append(statuses, o.Status)
	}
	assert.Equal(t, []ExportStatus{StatusOK, StatusOK, StatusNotImplemented, StatusFailed}, statuses)
	assert.True(t, report.Failed())
	assert.True(t, strings.HasPrefix(report.Session, "HDView - [View #1] - #rec: "))

	csv := report.Outcomes[0]
	assert.FileExists(t, csv.Path)
	assert.Equal(t, report.Directory, filepath.Dir(csv.Path))
	assert.Positive(t, csv.Size)
	assert.Contains(t, report.Outcomes[3].Error, "docx")
}

func TestExport_DefaultFormats(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Formats = []string{"json", "md"}
	svc := newTestService(t, cfg)

	report, err := svc.Export(context.Background(), writeRecord(t), nil)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "json", report.Outcomes[0].Format)
	assert.Equal(t, "markdown", report.Outcomes[1].Format)
	assert.False(t, report.Failed())
}

func TestExport_LoadFailure(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	_, err := svc.Export(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.Contains(t, svc.GetLastError(), "Failed to load record")
}

func TestInfo(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	info, err := svc.Info(context.Background(), writeRecord(t))
	require.NoError(t, err)

	want := &RecordInfo{
		Session:   info.Session,
		Title:     "View #1",
		Record:    "100",
		Source:    "local",
		Directory: info.Directory,
		Frequency: 360,
		Samples:   3,
		Channels:  []string{"mlii", "v5"},
		Units:     []string{"mV", "mV"},
		Comments:  []string{"69 M"},
		Files:     []string{"100.dat"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("RecordInfo mismatch (-want +got):\n%s", diff)
	}
	assert.DirExists(t, info.Directory)
}

func TestFormats(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	formats := svc.Formats()
	require.Len(t, formats, 20)
	assert.Equal(t, FormatInfo{Key: "txt", Extension: "txt", Kind: "custom", Aliases: []string{"text"}, Implemented: true}, formats[0])
	assert.Equal(t, 1048574, formats[3].RowLimit)

	implemented := map[string]bool{}
	for _, f := range formats {
		implemented[f.Key] = f.Implemented
	}
	assert.False(t, implemented["hdf5"])
	assert.True(t, implemented["parquet"])
	assert.True(t, implemented["feather"])
	assert.True(t, implemented["pickle"])
	assert.True(t, implemented["stata"])
}

func TestFetch(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/mitdb/1.0.0/":
			fmt.Fprint(w, `<a href="100.hea">100.hea</a><a href="100.dat">100.dat</a><a href="../">up</a>`)
		case "/files/mitdb/1.0.0/100.hea":
			fmt.Fprint(w, header)
		case "/files/mitdb/1.0.0/100.dat":
			w.Write(sampleData())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cfg := testConfig(t)
	cfg.Remote.AllowedHost = u.Host

	var seen []string
	svc := newTestService(t, cfg,
		WithHTTPClient(srv.Client()),
		WithProgress(func(i, total int, a source.Artifact) { seen = append(seen, a.Name) }),
	)

	report, err := svc.Fetch(context.Background(), srv.URL+"/files/mitdb/1.0.0/100")
	require.NoError(t, err)
	assert.Equal(t, "100", report.Record)
	assert.Equal(t, []string{"100.hea", "100.dat"}, seen)
	assert.Len(t, report.Files, 2)
	assert.Equal(t, "samples", filepath.Base(report.Directory))

	info, err := svc.Info(context.Background(), srv.URL+"/files/mitdb/1.0.0/100.hea")
	require.NoError(t, err)
	assert.Equal(t, "remote", info.Source)
	assert.Equal(t, filepath.Join(info.Directory, "samples"), info.SamplesDir)
}

func TestFetch_RejectsLocalRecords(t *testing.T) {
	svc := newTestService(t, testConfig(t))

	_, err := svc.Fetch(context.Background(), writeRecord(t))
	var invalid *source.InvalidSourceError
	require.ErrorAs(t, err, &invalid)
	assert.NotEmpty(t, svc.GetLastError())
}

func TestFetch_RejectsPlainHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	cfg := testConfig(t)
	cfg.Remote.AllowedHost = u.Host
	svc := newTestService(t, cfg, WithHTTPClient(srv.Client()))

	_, err = svc.Fetch(context.Background(), srv.URL+"/files/mitdb/1.0.0/100")
	var invalid *source.InvalidSourceError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Reason, "https")
	assert.Equal(t, int32(0), hits.Load())
}

func TestWriteMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "prom", "headat.prom")
	svc := newTestService(t, cfg)

	_, err := svc.Export(context.Background(), writeRecord(t), []string{"csv"})
	require.NoError(t, err)
	require.NoError(t, svc.WriteMetrics())

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `headat_exports_total{format="csv",outcome="ok"} 1`)
}

func TestWriteMetrics_Disabled(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	assert.NoError(t, svc.WriteMetrics())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
