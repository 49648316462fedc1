package wfdb

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func int16Frames(frames [][]int16) []byte {
	var out []byte
	for _, f := range frames {
		for _, v := range f {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
	}
	return out
}

func TestRead_Format16(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "rec")
	writeFile(t, stem+".hea", []byte("rec 2 100 3\nrec.dat 16 100(10)/mV 16 0 0 0 0 ECG I\nrec.dat 16 50/mmHg 16 0 0 0 0 BP\n# age: 40\n"))
	writeFile(t, stem+".dat", int16Frames([][]int16{{110, 100}, {210, 150}, {math.MinInt16, -50}}))

	m, md, err := NewReader().Read(stem)
	require.NoError(t, err)

	assert.Equal(t, []string{"ecg_i", "bp"}, m.Channels())
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(1, 0))
	assert.True(t, math.IsNaN(m.At(2, 0)))
	assert.Equal(t, 2.0, m.At(0, 1))
	assert.Equal(t, -1.0, m.At(2, 1))

	assert.Equal(t, "rec", md.RecordName)
	assert.Equal(t, 100.0, md.Frequency)
	assert.Equal(t, 3, md.NumSamples)
	assert.Equal(t, []string{"mV", "mmHg"}, md.Units)
	assert.Equal(t, []string{"age: 40"}, md.Comments)
	assert.Equal(t, []string{"rec.dat"}, md.UniqueFiles())
}

func TestRead_SeparateFilesAndDerivedLength(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "rec")
	writeFile(t, stem+".hea", []byte("rec 2 250\nrec_a.dat 80 1 8 0 0 0 0 a\nrec_b.dat 61 1 16 0 0 0 0 b\n"))
	writeFile(t, filepath.Join(dir, "rec_a.dat"), []byte{128, 129, 130, 131})
	writeFile(t, filepath.Join(dir, "rec_b.dat"), []byte{0, 1, 0xff, 0xff, 0, 2})

	m, md, err := NewReader().Read(stem)
	require.NoError(t, err)

	// rec_b holds three samples, so the shorter file bounds the record.
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 3, md.NumSamples)
	assert.Equal(t, []float64{0, 1, 2}, m.Column(0))
	assert.Equal(t, []float64{1, -1, 2}, m.Column(1))
	assert.Equal(t, []string{"rec_a.dat", "rec_b.dat"}, md.Files)
}

func TestRead_Format212(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "rec")
	writeFile(t, stem+".hea", []byte("rec 2 360 1\nrec.dat 212 1 12 0 0 0 0 a\nrec.dat 212 1 12 0 0 0 0 b\n"))
	writeFile(t, stem+".dat", []byte{0x64, 0xf0, 0xfd})

	m, _, err := NewReader().Read(stem)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, -3}, m.Row(0))
}

func TestRead_Failures(t *testing.T) {
	dir := t.TempDir()

	truncated := filepath.Join(dir, "short")
	writeFile(t, truncated+".hea", []byte("short 1 100 10\nshort.dat 16\n"))
	writeFile(t, truncated+".dat", int16Frames([][]int16{{1}, {2}}))

	missingData := filepath.Join(dir, "nodata")
	writeFile(t, missingData+".hea", []byte("nodata 1 100 10\nnodata.dat 16\n"))

	emptyFirst := filepath.Join(dir, "split")
	writeFile(t, emptyFirst+".hea", []byte("split 2 250\na.dat 16 1 16 0 0 0 0 a\nb.dat 16 1 16 0 0 0 0 b\n"))
	writeFile(t, filepath.Join(dir, "a.dat"), nil)
	writeFile(t, filepath.Join(dir, "b.dat"), make([]byte, 20))

	for _, stem := range []string{filepath.Join(dir, "absent"), truncated, missingData, emptyFirst} {
		_, _, err := NewReader().Read(stem)
		var readErr *ReadError
		require.Error(t, err)
		require.True(t, errors.As(err, &readErr), "expected ReadError for %s, got %v", stem, err)
		assert.Equal(t, stem, readErr.Stem)
	}
}

func TestDecode212_OddTail(t *testing.T) {
	got := decode212([]byte{0x64, 0xf0, 0xfd, 0x01, 0x08})
	assert.Equal(t, []int{100, -3, -2047}, got)
}
