package export

import (
	"bufio"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// featherBatchRows bounds each Arrow record batch.
const featherBatchRows = 16 * blockRows

// writeFeather writes a Feather v2 file, which is the Arrow IPC file
// format: the index as int64, samples as float64. NaN is stored as a
// value, not as null.
func writeFeather(t *Table, path string, _ Options) error {
	fields := make([]arrow.Field, 0, len(t.Channels)+1)
	if t.Index {
		fields = append(fields, arrow.Field{Name: t.IndexLabel, Type: arrow.PrimitiveTypes.Int64})
	}
	for _, ch := range t.Channels {
		fields = append(fields, arrow.Field{Name: ch, Type: arrow.PrimitiveTypes.Float64})
	}
	md := arrow.NewMetadata([]string{"record"}, []string{t.RecordName})
	schema := arrow.NewSchema(fields, &md)

	return createOutput(path, func(w *bufio.Writer) error {
		mem := memory.NewGoAllocator()
		fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
		if err != nil {
			return fmt.Errorf("failed to start feather file: %w", err)
		}

		b := array.NewRecordBuilder(mem, schema)
		defer b.Release()

		m := t.Matrix
		n := m.NumRows()
		for lo := 0; lo < n; lo += featherBatchRows {
			hi := min(lo+featherBatchRows, n)
			j := 0
			if t.Index {
				ib := b.Field(0).(*array.Int64Builder)
				ib.Reserve(hi - lo)
				for r := lo; r < hi; r++ {
					ib.UnsafeAppend(int64(r))
				}
				j = 1
			}
			for c := range t.Channels {
				fb := b.Field(j + c).(*array.Float64Builder)
				fb.Reserve(hi - lo)
				for r := lo; r < hi; r++ {
					fb.UnsafeAppend(m.At(r, c))
				}
			}

			rec := b.NewRecord()
			err := fw.Write(rec)
			rec.Release()
			if err != nil {
				return err
			}
		}
		return fw.Close()
	})
}
