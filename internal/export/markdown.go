package export

import (
	"bufio"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// writeMarkdown renders a pipe table. The whole table is laid out in
// memory because column widths depend on every row.
func writeMarkdown(t *Table, path string, _ Options) error {
	cell := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		StyleFunc(func(row, col int) lipgloss.Style { return cell }).
		Headers(t.Columns()...)

	err := t.formattedBlocks(textCells, func(_ int, rows [][]string) error {
		tbl.Rows(rows...)
		return nil
	})
	if err != nil {
		return err
	}

	return createOutput(path, func(w *bufio.Writer) error {
		if _, err := w.WriteString(tbl.String()); err != nil {
			return err
		}
		_, err := w.WriteString("\n")
		return err
	})
}
