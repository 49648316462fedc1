package export

import (
	"fmt"
	"math"
	"os"

	"github.com/xuri/excelize/v2"
)

// writeXLSX streams the table into a single worksheet. Missing samples
// are left as empty cells.
func writeXLSX(t *Table, path string, opts Options) (err error) {
	f := excelize.NewFile()
	saving := false
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil && saving {
			os.Remove(path)
		}
	}()

	const defaultSheet = "Sheet1"
	if opts.Sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, opts.Sheet); err != nil {
			return fmt.Errorf("invalid sheet name %q: %w", opts.Sheet, err)
		}
	}

	sw, err := f.NewStreamWriter(opts.Sheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		header = append(header, c)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	m := t.Matrix
	row := make([]interface{}, len(header))
	for r := 0; r < m.NumRows(); r++ {
		i := 0
		if t.Index {
			row[0] = r
			i = 1
		}
		for _, v := range m.Row(r) {
			row[i] = xlsxCell(v)
			i++
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	}
	saving = true
	return f.SaveAs(path)
}

func xlsxCell(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return nil
	case math.IsInf(v, 0):
		return textCells.format(v)
	default:
		return v
	}
}
