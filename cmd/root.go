package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/headat/internal/config"
	"github.com/audiolibrelab/headat/internal/service"
	"github.com/audiolibrelab/headat/internal/source"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	svc          service.Service
	cfgFile      string
	outputDir    string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "headat",
	Short: "Convert physiological waveform records to tabular formats",
	Long: `headat loads a WFDB waveform record, either from a local path or
from https://physionet.org/files/..., and exports its signals to
spreadsheet, columnar, markup and database formats.

Every run works in its own directory under the export root
(out/view_<timestamp>/); remote records are downloaded into its
samples/ sub-directory first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		// Use default config path if not specified and present
		if cfgFile == "" {
			if def := os.ExpandEnv("$HOME/.config/headat.yaml"); fileExists(def) {
				cfgFile = def
			}
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if outputDir != "" {
			cfg.Export.Root = outputDir
		}

		// config show only needs the resolved configuration
		if cmd.Name() == "show" {
			return nil
		}

		svc, err = service.New(cfg, service.WithProgress(logProgress))
		if err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/headat.yaml when present)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "export root directory (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func logProgress(index, total int, a source.Artifact) {
	slog.Info("Processing link", "index", index+1, "total", total, "file", a.Name)
}

// writeMetrics dumps metrics when a textfile is configured. Failures are
// logged only; they never change the command's outcome.
func writeMetrics() {
	if svc == nil {
		return
	}
	if err := svc.WriteMetrics(); err != nil {
		slog.Warn("Failed to write metrics", "error", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
