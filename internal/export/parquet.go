package export

import (
	"bufio"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// writeParquet writes one required column per table column: the index as
// INT64, samples as DOUBLE. NaN is stored as-is.
func writeParquet(t *Table, path string, _ Options) error {
	group := parquet.Group{}
	if t.Index {
		group[t.IndexLabel] = parquet.Leaf(parquet.Int64Type)
	}
	for _, ch := range t.Channels {
		group[ch] = parquet.Leaf(parquet.DoubleType)
	}
	schema := parquet.NewSchema("signals", group)

	cols := t.Columns()
	leaf := make([]int, len(cols))
	for j, name := range cols {
		c, ok := schema.Lookup(name)
		if !ok {
			return fmt.Errorf("column %q missing from parquet schema", name)
		}
		leaf[j] = c.ColumnIndex
	}

	return createOutput(path, func(w *bufio.Writer) error {
		pw := parquet.NewWriter(w, schema)
		m := t.Matrix
		batch := make([]parquet.Row, 0, blockRows)
		flush := func() error {
			if _, err := pw.WriteRows(batch); err != nil {
				return err
			}
			batch = batch[:0]
			return nil
		}

		for r := 0; r < m.NumRows(); r++ {
			row := make(parquet.Row, len(cols))
			j := 0
			if t.Index {
				row[leaf[0]] = parquet.Int64Value(int64(r)).Level(0, 0, leaf[0])
				j = 1
			}
			for _, v := range m.Row(r) {
				row[leaf[j]] = parquet.DoubleValue(v).Level(0, 0, leaf[j])
				j++
			}
			batch = append(batch, row)
			if len(batch) == cap(batch) {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}
		return pw.Close()
	})
}
