package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List export formats",
	Long:  `List every format the exporter recognizes, in registry order, with its extension, backend kind, row limit and whether a backend is wired.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%-10s %-9s %-7s %-9s %-11s %s\n", "KEY", "EXT", "KIND", "ROWS", "WIRED", "ALIASES")
		for _, f := range svc.Formats() {
			limit := "-"
			if f.RowLimit > 0 {
				limit = fmt.Sprintf("%d", f.RowLimit)
			}
			wired := "yes"
			if !f.Implemented {
				wired = "no"
			}
			fmt.Printf("%-10s %-9s %-7s %-9s %-11s %s\n", f.Key, f.Extension, f.Kind, limit, wired, strings.Join(f.Aliases, ","))
		}
		return nil
	},
}
