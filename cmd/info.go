package cmd

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <record>",
	Short: "Show record metadata",
	Long:  `Load a record and print its metadata (channels, units, sampling frequency, sample count, record files and session directory) as YAML.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer writeMetrics()

		info, err := svc.Info(context.Background(), args[0])
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("error marshaling record info: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}
