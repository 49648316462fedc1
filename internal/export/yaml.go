package export

import (
	"bufio"

	"gopkg.in/yaml.v3"
)

var yamlCells = cellFormat{NaN: ".nan", PosInf: ".inf", NegInf: "-.inf"}

// writeYAML writes a mapping with the record name, the column labels and
// the samples as flow-style rows.
func writeYAML(t *Table, path string, _ Options) error {
	columns := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, c := range t.Columns() {
		columns.Content = append(columns.Content, yamlScalar("!!str", c))
	}

	data := &yaml.Node{Kind: yaml.SequenceNode}
	err := t.formattedBlocks(yamlCells, func(_ int, rows [][]string) error {
		for _, row := range rows {
			seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
			for _, cell := range row {
				seq.Content = append(seq.Content, yamlScalar("", cell))
			}
			data.Content = append(data.Content, seq)
		}
		return nil
	})
	if err != nil {
		return err
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content,
		yamlScalar("!!str", "record"), yamlScalar("!!str", t.RecordName),
		yamlScalar("!!str", "columns"), columns,
		yamlScalar("!!str", "data"), data,
	)

	return createOutput(path, func(w *bufio.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	})
}

// yamlScalar builds a scalar node. Numbers pass an empty tag so the
// encoder leaves them plain.
func yamlScalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
