package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/headat/internal/export"
)

// Version is stamped into the default User-Agent.
var Version = "dev"

type Config struct {
	Export  ExportConfig  `mapstructure:"export" yaml:"export"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type ExportConfig struct {
	Root          string   `mapstructure:"root" yaml:"root"`
	Formats       []string `mapstructure:"formats" yaml:"formats"`
	TextSeparator string   `mapstructure:"text_separator" yaml:"text_separator"`
	Sheet         string   `mapstructure:"sheet" yaml:"sheet"`
	Table         string   `mapstructure:"table" yaml:"table"`
	NoIndex       bool     `mapstructure:"no_index" yaml:"no_index"`
}

type RemoteConfig struct {
	AllowedHost        string        `mapstructure:"allowed_host" yaml:"allowed_host"`
	CollectionSegment  string        `mapstructure:"collection_segment" yaml:"collection_segment"`
	ArtifactExtensions []string      `mapstructure:"artifact_extensions" yaml:"artifact_extensions"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"` // 0 = no client timeout
}

type WorkersConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"` // empty disables the dump
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("export.root", "out")
	v.SetDefault("export.formats", []string{"csv"})
	v.SetDefault("export.text_separator", ",")
	v.SetDefault("export.sheet", export.DefaultSheet)
	v.SetDefault("export.table", export.DefaultTable)
	v.SetDefault("export.no_index", false)

	v.SetDefault("remote.allowed_host", "physionet.org")
	v.SetDefault("remote.collection_segment", "files")
	v.SetDefault("remote.artifact_extensions", []string{"hea", "dat"})
	v.SetDefault("remote.user_agent", "headat/"+Version)
	v.SetDefault("remote.timeout", time.Duration(0))

	v.SetDefault("workers.limit", runtime.NumCPU())
	v.SetDefault("metrics.textfile", "")
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults always validate
		panic(err)
	}
	return cfg
}

// Load reads configFile (optional) on top of the defaults, applies
// HEADAT_* environment overrides and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HEADAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(expandPath(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Export.Root = expandPath(cfg.Export.Root)
	cfg.Metrics.Textfile = expandPath(cfg.Metrics.Textfile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and fails on the first problem.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Export.Root) == "" {
		return fmt.Errorf("export.root cannot be empty")
	}

	if len(c.Export.Formats) == 0 {
		return fmt.Errorf("export.formats cannot be empty")
	}
	registry := export.DefaultRegistry()
	for i, f := range c.Export.Formats {
		if _, err := registry.Lookup(f); err != nil {
			return fmt.Errorf("export.formats[%d]: %w", i, err)
		}
	}

	if _, err := parseSeparator(c.Export.TextSeparator); err != nil {
		return fmt.Errorf("export.text_separator: %w", err)
	}

	if strings.TrimSpace(c.Remote.AllowedHost) == "" {
		return fmt.Errorf("remote.allowed_host cannot be empty")
	}
	if strings.TrimSpace(c.Remote.CollectionSegment) == "" {
		return fmt.Errorf("remote.collection_segment cannot be empty")
	}
	if len(c.Remote.ArtifactExtensions) == 0 {
		return fmt.Errorf("remote.artifact_extensions cannot be empty")
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must be >= 0, got: %s", c.Remote.Timeout)
	}

	if c.Workers.Limit <= 0 {
		return fmt.Errorf("workers.limit must be > 0, got: %d", c.Workers.Limit)
	}
	return nil
}

// ExportOptions builds the per-call export options.
func (c *Config) ExportOptions() export.Options {
	sep, _ := parseSeparator(c.Export.TextSeparator)
	return export.Options{
		Separator: sep,
		Sheet:     c.Export.Sheet,
		Table:     c.Export.Table,
		NoIndex:   c.Export.NoIndex,
	}
}

// parseSeparator accepts a single character or one of the names "tab",
// "space", "\t".
func parseSeparator(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "tab", `\t`:
		return '\t', nil
	case "space":
		return ' ', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("must be a single character, got: %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '\r' || r == '\n' || r == '"' || r == utf8.RuneError {
		return 0, fmt.Errorf("%q cannot be used as a separator", r)
	}
	return r, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
