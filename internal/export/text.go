package export

import (
	"bufio"
	"encoding/csv"
)

// writeDelimited writes the txt/out/dat family: a header line followed by
// one line per sample, fields joined by opts.Separator.
func writeDelimited(t *Table, path string, opts Options) error {
	return writeSeparated(t, path, opts.Separator)
}

// writeCSV is writeDelimited pinned to a comma.
func writeCSV(t *Table, path string, _ Options) error {
	return writeSeparated(t, path, ',')
}

func writeSeparated(t *Table, path string, sep rune) error {
	return createOutput(path, func(w *bufio.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = sep
		if err := cw.Write(t.Columns()); err != nil {
			return err
		}
		err := t.formattedBlocks(textCells, func(_ int, rows [][]string) error {
			return cw.WriteAll(rows)
		})
		if err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
}
