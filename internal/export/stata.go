package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Stata 114 (.dta for Stata 10 and later), the version pandas writes by
// default. All multi-byte values are little-endian.
const (
	dtaVersion   = 114
	dtaLOHI      = 2
	dtaNameLen   = 33
	dtaFmtLen    = 49
	dtaLabelLen  = 81
	dtaStampLen  = 18
	dtaMaxVars   = 32767
	dtaTypeLong  = 253
	dtaTypeDbl   = 255
	dtaMissing   = 0x7fe0000000000000
	dtaVarMaxLen = 32
)

var dtaReserved = map[string]bool{
	"_all": true, "_b": true, "byte": true, "_coef": true, "_cons": true,
	"double": true, "float": true, "if": true, "in": true, "int": true,
	"long": true, "_n": true, "_N": true, "_pi": true, "_pred": true,
	"_rc": true, "_skip": true, "strL": true, "using": true, "with": true,
}

// stataNow stamps the file header.
var stataNow = time.Now

// writeStata writes a Stata 114 dataset: the index as long, samples as
// double. NaN and infinities are stored as the system missing value ".".
func writeStata(t *Table, path string, _ Options) error {
	m := t.Matrix
	n := m.NumRows()
	cols := t.Columns()
	if len(cols) > dtaMaxVars {
		return fmt.Errorf("stata files hold at most %d variables, got %d", dtaMaxVars, len(cols))
	}
	if n > math.MaxInt32 {
		return fmt.Errorf("stata files hold at most %d observations, got %d", math.MaxInt32, n)
	}
	names := stataVariableNames(cols)

	return createOutput(path, func(w *bufio.Writer) error {
		var err error
		put := func(b []byte) {
			if err == nil {
				_, err = w.Write(b)
			}
		}

		header := make([]byte, 0, 10)
		header = append(header, dtaVersion, dtaLOHI, 1, 0)
		header = binary.LittleEndian.AppendUint16(header, uint16(len(cols)))
		header = binary.LittleEndian.AppendUint32(header, uint32(n))
		put(header)
		put(fixedField(t.RecordName, dtaLabelLen))
		put(fixedField(stataNow().Format("02 Jan 2006 15:04"), dtaStampLen))

		types := make([]byte, len(cols))
		for j := range types {
			types[j] = dtaTypeDbl
		}
		if t.Index {
			types[0] = dtaTypeLong
		}
		put(types)
		for _, name := range names {
			put(fixedField(name, dtaNameLen))
		}
		put(make([]byte, 2*(len(cols)+1)))
		for _, typ := range types {
			format := "%10.0g"
			if typ == dtaTypeLong {
				format = "%12.0g"
			}
			put(fixedField(format, dtaFmtLen))
		}
		put(make([]byte, dtaNameLen*len(cols)))
		for _, c := range cols {
			put(fixedField(c, dtaLabelLen))
		}
		// no expansion fields
		put(make([]byte, 5))

		row := make([]byte, 0, 8*len(cols))
		for r := 0; r < n && err == nil; r++ {
			row = row[:0]
			if t.Index {
				row = binary.LittleEndian.AppendUint32(row, uint32(r))
			}
			for _, v := range m.Row(r) {
				bits := math.Float64bits(v)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					bits = dtaMissing
				}
				row = binary.LittleEndian.AppendUint64(row, bits)
			}
			put(row)
		}
		return err
	})
}

func stataVariableNames(cols []string) []string {
	return identifiers(cols, identifierRules{
		maxLen:   dtaVarMaxLen,
		lead:     "_",
		leadOK:   func(c byte) bool { return c == '_' || isASCIILetter(c) },
		reserved: dtaReserved,
	})
}

// fixedField returns s as a NUL-padded field of size bytes, truncated so at
// least one NUL terminates it.
func fixedField(s string, size int) []byte {
	b := make([]byte, size)
	copy(b[:size-1], s)
	return b
}
