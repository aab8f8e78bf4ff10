package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrConfiguration is the parent of every fatal configuration error.
// Errors wrapping it abort a run before any capture file is touched.
var ErrConfiguration = errors.New("configuration error")

// Output formats for the merged verdict artifact
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
	FormatSQLite  = "sqlite"
)

// Log modes
const (
	LogModeStderr = "stderr"
	LogModeStdout = "stdout"
	LogModeFile   = "file"
)

// Config is the resolved run configuration
type Config struct {
	Files     FilesConfig     `mapstructure:"files"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Output    OutputConfig    `mapstructure:"output"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Log       LogConfig       `mapstructure:"log"`
}

// FilesConfig controls where captures are read from and results are written to
type FilesConfig struct {
	PcapDir       string `mapstructure:"pcap_dir"`
	OutputDir     string `mapstructure:"output_dir"`
	IgnoreParsed  bool   `mapstructure:"ignore_parsed"`
	MarkProcessed bool   `mapstructure:"mark_processed"`
}

// WhitelistConfig controls suffix whitelisting of query names
type WhitelistConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OutputConfig selects the merged verdict artifact format
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// ScannerConfig contains orchestrator settings
type ScannerConfig struct {
	Workers int `mapstructure:"workers"` // 0 = GOMAXPROCS
}

// LogConfig contains diagnostic logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	Mode  string `mapstructure:"mode"`
}

// flagKeys maps CLI flag names to configuration keys
var flagKeys = map[string]string{
	"pcap-dir":       "files.pcap_dir",
	"output-dir":     "files.output_dir",
	"ignore-parsed":  "files.ignore_parsed",
	"mark-processed": "files.mark_processed",
	"whitelist":      "whitelist.enabled",
	"whitelist-file": "whitelist.path",
	"format":         "output.format",
	"workers":        "scanner.workers",
	"log-level":      "log.level",
	"log-mode":       "log.mode",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("files.pcap_dir", ".")
	v.SetDefault("files.output_dir", ".")
	v.SetDefault("files.ignore_parsed", true)
	v.SetDefault("files.mark_processed", true)
	v.SetDefault("whitelist.enabled", false)
	v.SetDefault("whitelist.path", "whitelist.txt")
	v.SetDefault("output.format", FormatCSV)
	v.SetDefault("scanner.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", LogModeStderr)
}

// Load resolves configuration from defaults, an optional config file,
// TUNNELHUNT_* environment variables and explicitly set CLI flags, in
// increasing order of precedence.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if ext := strings.TrimPrefix(filepath.Ext(configFile), "."); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %s: %w", ErrConfiguration, configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail mid-run
func (c *Config) Validate() error {
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	switch c.Output.Format {
	case FormatCSV, FormatJSONL, FormatParquet, FormatSQLite:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrConfiguration, c.Output.Format)
	}

	c.Log.Mode = strings.ToLower(strings.TrimSpace(c.Log.Mode))
	switch c.Log.Mode {
	case LogModeStderr, LogModeStdout, LogModeFile:
	default:
		return fmt.Errorf("%w: unknown log mode %q", ErrConfiguration, c.Log.Mode)
	}

	if c.Files.OutputDir == "" {
		return fmt.Errorf("%w: output directory must not be empty", ErrConfiguration)
	}
	if c.Whitelist.Enabled && c.Whitelist.Path == "" {
		return fmt.Errorf("%w: whitelist enabled without a whitelist path", ErrConfiguration)
	}
	if c.Scanner.Workers < 0 {
		c.Scanner.Workers = 0
	}
	return nil
}
