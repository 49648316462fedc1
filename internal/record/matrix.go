// Package record holds the in-memory tabular form of a waveform record:
// the channel-labelled sample matrix and the metadata that came with it.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Matrix is a row-major sample matrix. Rows are observations, columns are
// channels. The column count always equals the number of channel names.
type Matrix struct {
	channels []string
	rows     int
	data     []float64
}

// NewMatrix allocates a zero-filled matrix for the given channels.
func NewMatrix(channels []string, rows int) (*Matrix, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	if rows < 0 {
		return nil, fmt.Errorf("row count must be >= 0, got %d", rows)
	}

	names := make([]string, len(channels))
	copy(names, channels)

	return &Matrix{
		channels: names,
		rows:     rows,
		data:     make([]float64, rows*len(channels)),
	}, nil
}

// FromRows builds a matrix from row slices. Every row must have one value
// per channel.
func FromRows(channels []string, rows [][]float64) (*Matrix, error) {
	m, err := NewMatrix(channels, len(rows))
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(channels) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(channels))
		}
		copy(m.data[i*len(channels):], row)
	}
	return m, nil
}

func checkChannels(channels []string) error {
	if len(channels) == 0 {
		return fmt.Errorf("matrix needs at least one channel")
	}
	seen := make(map[string]bool, len(channels))
	for i, name := range channels {
		if name == "" {
			return fmt.Errorf("channel[%d] has an empty name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate channel name '%s'", name)
		}
		seen[name] = true
	}
	return nil
}

// Channels returns a copy of the channel names in column order.
func (m *Matrix) Channels() []string {
	out := make([]string, len(m.channels))
	copy(out, m.channels)
	return out
}

func (m *Matrix) NumRows() int { return m.rows }

func (m *Matrix) NumCols() int { return len(m.channels) }

func (m *Matrix) At(row, col int) float64 {
	return m.data[row*len(m.channels)+col]
}

func (m *Matrix) Set(row, col int, v float64) {
	m.data[row*len(m.channels)+col] = v
}

// Row returns a view of one observation. Callers must not modify it.
func (m *Matrix) Row(row int) []float64 {
	n := len(m.channels)
	return m.data[row*n : (row+1)*n : (row+1)*n]
}

// Column copies one channel out of the matrix.
func (m *Matrix) Column(col int) []float64 {
	out := make([]float64, m.rows)
	n := len(m.channels)
	for r := 0; r < m.rows; r++ {
		out[r] = m.data[r*n+col]
	}
	return out
}

// Metadata describes where a matrix came from.
type Metadata struct {
	RecordName string   `yaml:"record_name" json:"record_name"`
	Frequency  float64  `yaml:"fs" json:"fs"`
	NumSamples int      `yaml:"sig_len" json:"sig_len"`
	Channels   []string `yaml:"sig_name" json:"sig_name"`
	Units      []string `yaml:"units" json:"units"`
	Comments   []string `yaml:"comments,omitempty" json:"comments,omitempty"`
	BaseTime   string   `yaml:"base_time,omitempty" json:"base_time,omitempty"`
	BaseDate   string   `yaml:"base_date,omitempty" json:"base_date,omitempty"`

	// Files lists the sample files named by the header, in header order,
	// one entry per signal.
	Files []string `yaml:"files" json:"files"`
}

// UniqueFiles returns the sample file names without repeats.
func (md *Metadata) UniqueFiles() []string {
	seen := make(map[string]bool, len(md.Files))
	var out []string
	for _, f := range md.Files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Reader turns a record stem (path without extension) into a matrix and
// its metadata.
type Reader interface {
	Read(stem string) (*Matrix, *Metadata, error)
}

// NormalizeChannelNames lower-cases names, replaces spaces with
// underscores and makes the result unique by suffixing repeats with _<n>.
// Empty names become ch<index+1>.
func NormalizeChannelNames(raw []string) []string {
	out := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	for i, name := range raw {
		name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		if name == "" {
			name = fmt.Sprintf("ch%d", i+1)
		}
		candidate := name
		for n := 1; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

// FormatTimestamp renders t the way view directories and export files are
// qualified: 2006-01-02_15-04-05+<microseconds>.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02_15-04-05") + fmt.Sprintf("+%06d", t.Nanosecond()/1000)
}
