package export

import (
	"bufio"

	pickle "github.com/kisielk/og-rek"
)

// writePickle writes one pickled dict in pandas' "split" orientation:
// {"columns": [...], "data": [[row], ...], "index": [...]}, so that
// pandas.DataFrame(**pickle.load(f)) rebuilds the frame. "index" is left
// out when the table has no index column.
func writePickle(t *Table, path string, _ Options) error {
	m := t.Matrix
	n := m.NumRows()

	data := make([]interface{}, n)
	for r := 0; r < n; r++ {
		data[r] = m.Row(r)
	}
	columns := make([]interface{}, len(t.Channels))
	for i, ch := range t.Channels {
		columns[i] = ch
	}
	frame := map[interface{}]interface{}{
		"columns": columns,
		"data":    data,
	}
	if t.Index {
		index := make([]interface{}, n)
		for r := range index {
			index[r] = int64(r)
		}
		frame["index"] = index
	}

	return createOutput(path, func(w *bufio.Writer) error {
		return pickle.NewEncoder(w).Encode(frame)
	})
}
