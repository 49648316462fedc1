package export

import (
	"bufio"
	"encoding/xml"
	"strings"
	"unicode"
)

// writeXML writes <data><row><col>value</col>...</row>...</data>. Column
// names are turned into valid element names.
func writeXML(t *Table, path string, _ Options) error {
	cols := t.Columns()
	names := make([]xml.Name, len(cols))
	for i, c := range cols {
		names[i] = xml.Name{Local: xmlElementName(c)}
	}

	return createOutput(path, func(w *bufio.Writer) error {
		if _, err := w.WriteString(xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")

		data := xml.StartElement{Name: xml.Name{Local: "data"}}
		row := xml.StartElement{Name: xml.Name{Local: "row"}}
		if err := enc.EncodeToken(data); err != nil {
			return err
		}
		err := t.formattedBlocks(textCells, func(_ int, rows [][]string) error {
			for _, cells := range rows {
				if err := enc.EncodeToken(row); err != nil {
					return err
				}
				for j, cell := range cells {
					if err := enc.EncodeElement(cell, xml.StartElement{Name: names[j]}); err != nil {
						return err
					}
				}
				if err := enc.EncodeToken(row.End()); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := enc.EncodeToken(data.End()); err != nil {
			return err
		}
		if err := enc.Flush(); err != nil {
			return err
		}
		_, err = w.WriteString("\n")
		return err
	})
}

// xmlElementName replaces characters not allowed in an element name with
// '_' and prefixes names that cannot start an element.
func xmlElementName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" {
		return "_"
	}
	first := []rune(name)[0]
	if (!unicode.IsLetter(first) && first != '_') || strings.HasPrefix(strings.ToLower(name), "xml") {
		name = "_" + name
	}
	return name
}
