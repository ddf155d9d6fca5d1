// Package config provides configuration management for examplewatch.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (EXAMPLEWATCH_ prefix)
//  3. Config file (.examplewatch.yaml)
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
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

// Config represents the global configuration for examplewatch.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" yaml:"log-level"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" yaml:"log-format"`

	// NoColor disables colored output and screen clearing.
	NoColor bool `mapstructure:"no-color" yaml:"no-color"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" yaml:"quiet"`

	// Root is the project directory holding the sources, the build
	// description and the bin directory.
	Root string `mapstructure:"root" yaml:"root"`

	// Debounce is the quiet period that settles a burst of file events.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`

	// WatchDirs are watched recursively; WatchFiles individually. Relative
	// paths resolve against Root.
	WatchDirs  []string `mapstructure:"watch-dirs" yaml:"watch-dirs"`
	WatchFiles []string `mapstructure:"watch-files" yaml:"watch-files"`

	// Build-tool argv templates. "{target}" is replaced by the example name.
	BuildCmd       []string `mapstructure:"build-cmd" yaml:"build-cmd"`
	CleanNativeCmd []string `mapstructure:"clean-native-cmd" yaml:"clean-native-cmd"`
	CleanAllCmd    []string `mapstructure:"clean-all-cmd" yaml:"clean-all-cmd"`

	// Binary is the path template of the built example, relative to Root.
	Binary string `mapstructure:"binary" yaml:"binary"`

	// Env is the base validation environment passed to every launch.
	Env map[string]string `mapstructure:"env" yaml:"env"`

	// LoggingEnv is layered over Env when restarting with logging.
	LoggingEnv map[string]string `mapstructure:"logging-env" yaml:"logging-env"`

	// InheritEnv passes the supervisor's own environment to the example
	// underneath Env.
	InheritEnv bool `mapstructure:"inherit-env" yaml:"inherit-env"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), not read from config itself.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// DefaultEnv returns the Metal validation layer settings enabled for every
// launch.
func DefaultEnv() map[string]string {
	return map[string]string{
		// Enables all shader validation tests.
		"MTL_SHADER_VALIDATION": "1",
		// Validates accesses to device and constant memory.
		"MTL_SHADER_VALIDATION_GLOBAL_MEMORY": "1",
		// Validates accesses to threadgroup memory.
		"MTL_SHADER_VALIDATION_THREADGROUP_MEMORY": "1",
		// Validates that texture references are not nil.
		"MTL_SHADER_VALIDATION_TEXTURE_USAGE": "1",
	}
}

// DefaultLoggingEnv returns the overrides applied by a restart with logging.
func DefaultLoggingEnv() map[string]string {
	return map[string]string{
		"MTL_DEBUG_LAYER": "1",
		"VIZ_LOGGING":     "1",
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:       LogLevelInfo,
		LogFormat:      LogFormatText,
		Root:           ".",
		Debounce:       500 * time.Millisecond,
		WatchDirs:      []string{"src"},
		WatchFiles:     []string{"Makefile"},
		BuildCmd:       []string{"make", "./bin/{target}"},
		CleanNativeCmd: []string{"make", "clean-cpp"},
		CleanAllCmd:    []string{"make", "clean"},
		Binary:         "bin/{target}",
		Env:            DefaultEnv(),
		LoggingEnv:     DefaultLoggingEnv(),
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.Debounce <= 0 {
		return fmt.Errorf("invalid debounce %s: must be positive", c.Debounce)
	}

	if len(c.BuildCmd) == 0 {
		return errors.New("build-cmd must not be empty")
	}

	if c.Binary == "" {
		return errors.New("binary must not be empty")
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Resolve returns p relative to Root unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.Root, p)
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
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

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	// Flags and env are bound, so the root used for discovery is final
	// unless the config file itself moves it.
	if err := configureFile(v, configFile, v.GetString("root")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Viper replaces a default map wholesale when any source sets it, and
	// lower-cases its keys.
	cfg.Env = mergeEnv(DefaultEnv(), upperKeys(cfg.Env))
	cfg.LoggingEnv = mergeEnv(DefaultLoggingEnv(), upperKeys(cfg.LoggingEnv))

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", cfg.Root, err)
	}

	cfg.Root = root
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
	v.SetDefault("root", d.Root)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("watch-dirs", d.WatchDirs)
	v.SetDefault("watch-files", d.WatchFiles)
	v.SetDefault("build-cmd", d.BuildCmd)
	v.SetDefault("clean-native-cmd", d.CleanNativeCmd)
	v.SetDefault("clean-all-cmd", d.CleanAllCmd)
	v.SetDefault("binary", d.Binary)
	v.SetDefault("env", d.Env)
	v.SetDefault("logging-env", d.LoggingEnv)
	v.SetDefault("inherit-env", d.InheritEnv)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("EXAMPLEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source. Auto-discovery looks in
// root, the working directory and ~/.config/examplewatch, in that order.
func configureFile(v *viper.Viper, configFile, root string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".examplewatch")
	v.SetConfigType("yaml")

	if root != "" {
		v.AddConfigPath(root)
	}

	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "examplewatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
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

func upperKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}

	return out
}

// mergeEnv returns base with overrides applied on top.
func mergeEnv(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range overrides {
		out[k] = v
	}

	return out
}

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
