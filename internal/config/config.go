// Package config provides configuration management for joi.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (JOI_ prefix)
//  3. Config file (.joi.yaml)
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/joi/internal/version"
	"github.com/hupe1980/joi/internal/watch"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// FileName is the base name of the auto-discovered config file.
const FileName = ".joi.yaml"

// Config represents the global configuration for joi.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel" yaml:"log-level,omitempty"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat" yaml:"log-format,omitempty"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor" yaml:"no-color,omitempty"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet" yaml:"quiet,omitempty"`

	// Debug reports changed files and every run/skip decision.
	Debug bool `mapstructure:"debug" json:"debug" yaml:"debug,omitempty"`

	// Root is the project directory to watch.
	Root string `mapstructure:"root" json:"root" yaml:"root,omitempty"`

	// Debounce is the quiet period used to batch filesystem events.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce" yaml:"debounce,omitempty"`

	// Preset selects a built-in watcher set: auto, go, ruby or none.
	Preset string `mapstructure:"preset" json:"preset" yaml:"preset,omitempty"`

	// Ignore lists regular expressions for root-relative paths that are
	// never reported.
	Ignore []string `mapstructure:"ignore" json:"ignore" yaml:"ignore,omitempty"`

	// Only, when set, restricts reported files to matching paths.
	Only []string `mapstructure:"only" json:"only" yaml:"only,omitempty"`

	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string `mapstructure:"metrics-addr" json:"metricsAddr" yaml:"metrics-addr,omitempty"`

	// Requires is a semver constraint the joi binary must satisfy.
	Requires string `mapstructure:"requires" json:"requires" yaml:"requires,omitempty"`

	// Watchers are appended after the preset's watchers.
	Watchers []WatcherConfig `mapstructure:"watchers" json:"watchers" yaml:"watchers,omitempty"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), never read from the config itself.
	ConfigFile string `mapstructure:"-" json:"-" yaml:"-"`
}

// WatcherConfig declares one watcher.
type WatcherConfig struct {
	// Name identifies the watcher in logs and metrics.
	Name string `mapstructure:"name" json:"name" yaml:"name"`

	// On lists the change kinds to react to: modified, added, removed.
	On []string `mapstructure:"on" json:"on" yaml:"on"`

	// Patterns are regular expressions matched against root-relative paths.
	Patterns []string `mapstructure:"patterns" json:"patterns" yaml:"patterns"`

	// Command is the argv to run. Matched paths are appended, or replace a
	// "{paths}" argument.
	Command []string `mapstructure:"command" json:"command" yaml:"command"`

	// All is the argv for baseline runs. Defaults to Command.
	All []string `mapstructure:"all" json:"all,omitempty" yaml:"all,omitempty"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
		NoColor:   false,
		Quiet:     false,
		Root:      ".",
		Debounce:  watch.DefaultDebounce,
		Preset:    "auto",
		Ignore:    []string{watch.DefaultIgnore},
	}
}

// Validate checks that all config values are valid and reports every
// problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		result = multierror.Append(result,
			fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel))
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		result = multierror.Append(result,
			fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat))
	}

	if c.Debounce < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid debounce %s: must not be negative", c.Debounce))
	}

	if _, err := CompilePatterns(c.Ignore); err != nil {
		result = multierror.Append(result, fmt.Errorf("ignore: %w", err))
	}

	if _, err := CompilePatterns(c.Only); err != nil {
		result = multierror.Append(result, fmt.Errorf("only: %w", err))
	}

	for i, w := range c.Watchers {
		if err := w.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("watchers[%d]: %w", i, err))
		}
	}

	if c.Requires != "" {
		if err := version.Check(c.Requires); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Validate checks a single watcher declaration.
func (w WatcherConfig) Validate() error {
	var result *multierror.Error

	if _, err := watch.ParseKindSet(w.On); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := CompilePatterns(w.Patterns); err != nil {
		result = multierror.Append(result, err)
	}

	if len(w.Command) == 0 {
		result = multierror.Append(result, fmt.Errorf("watcher %q: command is required", w.Name))
	}

	return result.ErrorOrNil()
}

// EffectiveLogLevel returns the log level to use. Quiet wins over Debug,
// which wins over the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	if c.Debug {
		return LogLevelDebug
	}

	return c.LogLevel
}

// CompilePatterns compiles every pattern, failing on the first invalid one.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p, err)
		}

		out = append(out, re)
	}

	return out, nil
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", d.NoColor)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("debug", false)
	v.SetDefault("root", d.Root)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("preset", d.Preset)
	v.SetDefault("ignore", d.Ignore)
	v.SetDefault("only", []string{})
	v.SetDefault("metrics-addr", "")
	v.SetDefault("requires", "")
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("JOI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "joi"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
