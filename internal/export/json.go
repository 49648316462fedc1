package export

import (
	"bufio"
	"encoding/json"
)

// writeJSON writes an array of row objects. Keys keep column order, so the
// object is assembled from pre-encoded keys rather than a map.
func writeJSON(t *Table, path string, _ Options) error {
	cols := t.Columns()
	keys := make([]string, len(cols))
	for i, c := range cols {
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}
		keys[i] = string(b) + ":"
	}

	return createOutput(path, func(w *bufio.Writer) error {
		ew := &errWriter{w: w}
		ew.WriteString("[")
		err := t.formattedBlocks(jsonCells, func(first int, rows [][]string) error {
			for i, row := range rows {
				if first+i > 0 {
					ew.WriteString(",")
				}
				ew.WriteString("\n  {")
				for j, cell := range row {
					if j > 0 {
						ew.WriteString(",")
					}
					ew.WriteString(keys[j])
					ew.WriteString(cell)
				}
				ew.WriteString("}")
			}
			return ew.err
		})
		if err != nil {
			return err
		}
		if t.NumRows() > 0 {
			ew.WriteString("\n")
		}
		ew.WriteString("]\n")
		return ew.err
	})
}
