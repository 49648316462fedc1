package cmd

import (
	"context"
	"fmt"

	"github.com/audiolibrelab/headat/internal/service"

	"github.com/spf13/cobra"
)

var (
	exportFormats   []string
	exportSeparator string
	exportSheet     string
	exportTable     string
	exportNoIndex   bool
)

var exportCmd = &cobra.Command{
	Use:   "export <record>",
	Short: "Export a record to one or more formats",
	Long: `Load a record and write it in every requested format.

<record> is a local path (with or without .hea/.dat) or a
https://physionet.org/files/... URL. Without --format the formats listed
in export.formats are written. The command fails if any format did not
produce a file.`,
	Example: `  headat export data/100 -f csv -f xlsx
  headat export https://physionet.org/files/mitdb/1.0.0/100.hea -f parquet`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("separator") {
			cfg.Export.TextSeparator = exportSeparator
		}
		if cmd.Flags().Changed("sheet") {
			cfg.Export.Sheet = exportSheet
		}
		if cmd.Flags().Changed("table") {
			cfg.Export.Table = exportTable
		}
		if cmd.Flags().Changed("no-index") {
			cfg.Export.NoIndex = exportNoIndex
		}
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defer writeMetrics()

		report, err := svc.Export(context.Background(), args[0], exportFormats)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", report.Session)
		fmt.Printf("directory: %s\n", report.Directory)
		failed := 0
		for _, o := range report.Outcomes {
			switch o.Status {
			case service.StatusOK:
				fmt.Printf("  %-10s %-16s %s (%s)\n", o.Format, o.Status, o.Path, o.SizeHuman)
			default:
				failed++
				fmt.Printf("  %-10s %-16s %s\n", o.Format, o.Status, o.Error)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d formats failed", failed, len(report.Outcomes))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringSliceVarP(&exportFormats, "format", "f", nil, "output format key or alias (repeatable)")
	exportCmd.Flags().StringVar(&exportSeparator, "separator", ",", "field separator for txt/out/dat (single character, 'tab' or 'space')")
	exportCmd.Flags().StringVar(&exportSheet, "sheet", "Sheet1", "worksheet name for xlsx")
	exportCmd.Flags().StringVar(&exportTable, "table", "signals", "table name for sql")
	exportCmd.Flags().BoolVar(&exportNoIndex, "no-index", false, "omit the id column")
}
