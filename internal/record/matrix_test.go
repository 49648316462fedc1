package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRows(t *testing.T) {
	m, err := FromRows([]string{"a", "b"}, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 2, m.NumCols())
	assert.Equal(t, 4.0, m.At(1, 1))
	assert.Equal(t, []float64{5, 6}, m.Row(2))
	assert.Equal(t, []float64{1, 3, 5}, m.Column(0))
}

func TestFromRows_RaggedRow(t *testing.T) {
	_, err := FromRows([]string{"a", "b"}, [][]float64{{1, 2}, {3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestNewMatrix_RejectsBadChannels(t *testing.T) {
	_, err := NewMatrix(nil, 1)
	assert.Error(t, err)

	_, err = NewMatrix([]string{"a", "a"}, 1)
	assert.ErrorContains(t, err, "duplicate channel name")

	_, err = NewMatrix([]string{"a", ""}, 1)
	assert.ErrorContains(t, err, "empty name")
}

func TestChannelsReturnsCopy(t *testing.T) {
	m, err := NewMatrix([]string{"a"}, 1)
	require.NoError(t, err)

	names := m.Channels()
	names[0] = "mutated"
	assert.Equal(t, []string{"a"}, m.Channels())
}

func TestNormalizeChannelNames(t *testing.T) {
	got := NormalizeChannelNames([]string{"MLII", "Resp Chest", "ecg", "ECG", "", "ecg_1"})
	assert.Equal(t, []string{"mlii", "resp_chest", "ecg", "ecg_1", "ch5", "ecg_1_1"}, got)
}

func TestMetadataUniqueFiles(t *testing.T) {
	md := &Metadata{Files: []string{"b001.dat", "b001.dat", "b001_2.dat"}}
	assert.Equal(t, []string{"b001.dat", "b001_2.dat"}, md.UniqueFiles())
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2022, 7, 3, 14, 5, 9, 123456789, time.UTC)
	assert.Equal(t, "2022-07-03_14-05-09+123456", FormatTimestamp(ts))
}
