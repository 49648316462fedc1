package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a remote record without converting it",
	Long:  `Download the header and data files listed next to a remote record into a new session's samples directory.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer writeMetrics()

		report, err := svc.Fetch(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("record: %s\n", report.Record)
		fmt.Printf("directory: %s\n", report.Directory)
		if len(report.Files) == 0 {
			fmt.Printf("no record files found\n")
			return nil
		}
		for i, f := range report.Files {
			fmt.Printf("  %d. %s\n", i+1, f)
		}
		return nil
	},
}
