package export

import (
	"bufio"
	"strings"
)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// writeLaTeX writes a booktabs tabular environment.
func writeLaTeX(t *Table, path string, _ Options) error {
	cols := t.Columns()
	align := strings.Repeat("r", len(cols))
	if t.Index {
		align = "l" + align[1:]
	}

	return createOutput(path, func(w *bufio.Writer) error {
		ew := &errWriter{w: w}
		ew.WriteString(`\begin{tabular}{` + align + "}\n")
		ew.WriteString("\\toprule\n")
		ew.WriteString(latexRow(cols))
		ew.WriteString("\\midrule\n")
		err := t.formattedBlocks(latexCells, func(_ int, rows [][]string) error {
			for _, row := range rows {
				ew.WriteString(latexRow(row))
			}
			return ew.err
		})
		if err != nil {
			return err
		}
		ew.WriteString("\\bottomrule\n")
		ew.WriteString("\\end{tabular}\n")
		return ew.err
	})
}

func latexRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = latexEscaper.Replace(c)
	}
	return strings.Join(escaped, " & ") + ` \\` + "\n"
}
