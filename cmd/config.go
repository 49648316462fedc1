package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/headat/internal/config"

	"github.com/spf13/cobra"
)

var showDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Inspect the configuration headat runs with.

Settings come from the built-in defaults, then the config file
($HOME/.config/headat.yaml unless --config names another), then
HEADAT_* environment variables (HEADAT_EXPORT_ROOT, HEADAT_WORKERS_LIMIT,
...), then command-line flags.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := cfg
		if showDefaults {
			shown = config.Default()
		}

		source := "built-in defaults"
		if cfgFile != "" && !showDefaults {
			source = cfgFile
		}
		fmt.Fprintf(os.Stderr, "# source: %s\n", source)

		out, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&showDefaults, "defaults", false, "print the built-in defaults instead of the loaded configuration")
	configCmd.AddCommand(configShowCmd)
}
