package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig indicates a configuration value outside its valid range.
var ErrInvalidConfig = errors.New("invalid configuration")

// WatchConfig holds configuration for `assoc watch`.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Config holds all runtime configuration for an assoc invocation.
// Values are populated from .assoc.yaml, ASSOC_* env vars, and CLI flags.
type Config struct {
	JournalPath    string      `mapstructure:"journal_path"`
	TelemetryPath  string      `mapstructure:"telemetry_path"`
	MetricsPath    string      `mapstructure:"metrics_path"`
	StateDir       string      `mapstructure:"state_dir"`
	MaxPasses      int         `mapstructure:"max_passes"`
	PathLossPolicy string      `mapstructure:"path_loss_policy"`
	LogLevel       string      `mapstructure:"log_level"`
	Verbose        bool        `mapstructure:"verbose"`
	Watch          WatchConfig `mapstructure:"watch"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("journal_path", ".assoc/journal.db")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("metrics_path", "")
	viper.SetDefault("state_dir", "")
	viper.SetDefault("max_passes", 3)
	viper.SetDefault("path_loss_policy", "erase")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("verbose", false)
	viper.SetDefault("watch.debounce_ms", 100)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MaxPasses < 1 {
		errs = append(errs, fmt.Errorf("%w: max_passes must be >= 1, got %d", ErrInvalidConfig, c.MaxPasses))
	}
	switch c.PathLossPolicy {
	case "erase", "keep":
	default:
		errs = append(errs, fmt.Errorf("%w: path_loss_policy must be erase or keep, got %q", ErrInvalidConfig, c.PathLossPolicy))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, fmt.Errorf("%w: watch.debounce_ms must be >= 0, got %d", ErrInvalidConfig, c.Watch.DebounceMS))
	}
	return errors.Join(errs...)
}

// Level returns the slog level to log at. Verbose forces debug.
func (c Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
	return l, nil
}
