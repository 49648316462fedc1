package export

import (
	"math"
	"slices"
	"strconv"

	"github.com/audiolibrelab/headat/internal/record"
)

const blockRows = 4096

// Mapper runs chunked work, possibly in parallel. *workers.Context
// satisfies it.
type Mapper interface {
	Limit() int
	MapChunks(n, chunk int, fn func(lo, hi int) error) error
}

// Table is the tabular projection a backend writes: channel names as
// column labels plus, when Index is set, the implicit row number as a
// leading column.
type Table struct {
	Matrix     *record.Matrix
	Channels   []string
	Index      bool
	IndexLabel string
	RecordName string

	pool Mapper
}

// NewTable projects m. The index column is labelled "id", then "index",
// then "index_<n>", whichever no channel uses.
func NewTable(m *record.Matrix, index bool) *Table {
	channels := m.Channels()
	label := "id"
	if slices.Contains(channels, label) {
		label = "index"
		for n := 1; slices.Contains(channels, label); n++ {
			label = "index_" + strconv.Itoa(n)
		}
	}
	return &Table{
		Matrix:     m,
		Channels:   channels,
		Index:      index,
		IndexLabel: label,
	}
}

// WithPool lets row formatting run on p.
func (t *Table) WithPool(p Mapper) *Table {
	t.pool = p
	return t
}

// Columns returns the header row.
func (t *Table) Columns() []string {
	if !t.Index {
		return slices.Clone(t.Channels)
	}
	return append([]string{t.IndexLabel}, t.Channels...)
}

func (t *Table) NumRows() int { return t.Matrix.NumRows() }

// cellFormat decides how non-finite values are spelled.
type cellFormat struct {
	NaN    string
	PosInf string
	NegInf string
}

var (
	textCells  = cellFormat{NaN: "", PosInf: "inf", NegInf: "-inf"}
	jsonCells  = cellFormat{NaN: "null", PosInf: "null", NegInf: "null"}
	latexCells = cellFormat{NaN: "NaN", PosInf: "inf", NegInf: "-inf"}
)

func (cf cellFormat) format(v float64) string {
	switch {
	case math.IsNaN(v):
		return cf.NaN
	case math.IsInf(v, 1):
		return cf.PosInf
	case math.IsInf(v, -1):
		return cf.NegInf
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

func (t *Table) formatRow(row int, cf cellFormat) []string {
	values := t.Matrix.Row(row)
	out := make([]string, 0, len(values)+1)
	if t.Index {
		out = append(out, strconv.Itoa(row))
	}
	for _, v := range values {
		out = append(out, cf.format(v))
	}
	return out
}

// formattedBlocks renders rows to strings a window at a time and hands each
// window to fn in row order. With a pool, the rows of one window are
// formatted in parallel.
func (t *Table) formattedBlocks(cf cellFormat, fn func(first int, rows [][]string) error) error {
	n := t.NumRows()
	window := blockRows
	if t.pool != nil {
		window = blockRows * max(t.pool.Limit(), 1)
	}

	for lo := 0; lo < n; lo += window {
		hi := min(lo+window, n)
		rows := make([][]string, hi-lo)
		fill := func(a, b int) error {
			for i := a; i < b; i++ {
				rows[i] = t.formatRow(lo+i, cf)
			}
			return nil
		}

		var err error
		if t.pool != nil {
			err = t.pool.MapChunks(hi-lo, blockRows, fill)
		} else {
			err = fill(0, hi-lo)
		}
		if err != nil {
			return err
		}
		if err := fn(lo, rows); err != nil {
			return err
		}
	}
	return nil
}

// Options tune individual backends. Zero values pick the defaults.
type Options struct {
	// Separator is the field delimiter of the plain-text variants.
	Separator rune
	// Sheet names the spreadsheet worksheet.
	Sheet string
	// Table names the relational table.
	Table string
	// NoIndex drops the id column.
	NoIndex bool
}

const (
	DefaultSeparator = ','
	DefaultSheet     = "Sheet1"
	DefaultTable     = "signals"
)

func (o Options) withDefaults() Options {
	if o.Separator == 0 {
		o.Separator = DefaultSeparator
	}
	if o.Sheet == "" {
		o.Sheet = DefaultSheet
	}
	if o.Table == "" {
		o.Table = DefaultTable
	}
	return o
}
