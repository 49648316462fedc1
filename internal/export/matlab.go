package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const matNameMax = 63

// writeMATLAB writes a Level 4 MAT-file holding one n-by-1 double matrix
// per table column, little-endian.
func writeMATLAB(t *Table, path string, _ Options) error {
	names := matVariableNames(t.Columns())
	m := t.Matrix
	n := m.NumRows()

	return createOutput(path, func(w *bufio.Writer) error {
		buf := make([]byte, 8)
		for j, name := range names {
			header := [5]int32{0, int32(n), 1, 0, int32(len(name) + 1)}
			if err := binary.Write(w, binary.LittleEndian, header); err != nil {
				return err
			}
			if _, err := w.WriteString(name); err != nil {
				return err
			}
			if err := w.WriteByte(0); err != nil {
				return err
			}

			col := j
			if t.Index {
				col--
			}
			for r := 0; r < n; r++ {
				v := float64(r)
				if col >= 0 {
					v = m.At(r, col)
				}
				binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
				if _, err := w.Write(buf); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// matVariableNames turns column labels into distinct MATLAB identifiers.
func matVariableNames(cols []string) []string {
	return identifiers(cols, identifierRules{
		maxLen: matNameMax,
		lead:   "x",
		leadOK: isASCIILetter,
	})
}

// identifierRules describe a target language's variable names: ASCII
// letters, digits and '_' only, a restricted first character and a
// length cap.
type identifierRules struct {
	maxLen   int
	lead     string
	leadOK   func(byte) bool
	reserved map[string]bool
}

// identifiers maps labels to distinct names valid under rules. Other
// characters become '_'; a name with a bad first character or a reserved
// name gets rules.lead prepended; repeats get _2, _3, ...
func identifiers(cols []string, rules identifierRules) []string {
	out := make([]string, len(cols))
	taken := make(map[string]bool, len(cols))
	for i, c := range cols {
		var b strings.Builder
		for _, r := range c {
			if r < 0x80 && (r == '_' || isASCIILetter(byte(r)) || r >= '0' && r <= '9') {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
		}
		name := b.String()
		if name == "" || !rules.leadOK(name[0]) || rules.reserved[name] {
			name = rules.lead + name
		}
		if len(name) > rules.maxLen {
			name = name[:rules.maxLen]
		}

		base := name
		for k := 2; taken[name]; k++ {
			suffix := fmt.Sprintf("_%d", k)
			name = base[:min(len(base), rules.maxLen-len(suffix))] + suffix
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

func isASCIILetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
