package export

import (
	"bufio"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// writeHTML writes a bare <table> fragment. The header and every body row
// are built as node trees and rendered one at a time, so memory stays
// bounded by a block of rows.
func writeHTML(t *Table, path string, _ Options) error {
	return createOutput(path, func(w *bufio.Writer) error {
		if _, err := w.WriteString("<table border=\"1\" class=\"dataframe\">\n  <thead>\n    "); err != nil {
			return err
		}
		if err := html.Render(w, htmlRow(t.Columns(), func(int) atom.Atom { return atom.Th })); err != nil {
			return err
		}
		if _, err := w.WriteString("\n  </thead>\n  <tbody>\n"); err != nil {
			return err
		}

		cellTag := func(j int) atom.Atom {
			if t.Index && j == 0 {
				return atom.Th
			}
			return atom.Td
		}
		err := t.formattedBlocks(textCells, func(_ int, rows [][]string) error {
			for _, row := range rows {
				if _, err := w.WriteString("    "); err != nil {
					return err
				}
				if err := html.Render(w, htmlRow(row, cellTag)); err != nil {
					return err
				}
				if err := w.WriteByte('\n'); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		_, err = w.WriteString("  </tbody>\n</table>\n")
		return err
	})
}

// htmlRow builds a <tr> whose j-th cell is a tag(j) element holding cells[j]
// as text.
func htmlRow(cells []string, tag func(j int) atom.Atom) *html.Node {
	tr := &html.Node{Type: html.ElementNode, DataAtom: atom.Tr, Data: atom.Tr.String()}
	for j, cell := range cells {
		a := tag(j)
		td := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
		if cell != "" {
			td.AppendChild(&html.Node{Type: html.TextNode, Data: cell})
		}
		tr.AppendChild(td)
	}
	return tr
}
