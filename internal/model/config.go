package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig selects and tunes the message source.
type SourceConfig struct {
	// Type is "mailfile" (directory of .eml files) or "gmailjson"
	// (directory of Gmail API message exports).
	Type string `mapstructure:"type" yaml:"type"`

	// Path is the directory the source reads from.
	Path string `mapstructure:"path" yaml:"path"`

	// Limit caps how many recent messages make up one batch.
	Limit int `mapstructure:"limit" yaml:"limit"`

	// Window restricts a batch to messages received within this duration.
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// PollConfig controls background checking.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	TimeoutSec  int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RetainLast keeps the previous non-empty result when a run finds nothing.
	RetainLast bool `mapstructure:"retain_last" yaml:"retain_last"`
}

// BridgeConfig holds the listen address of the request/response bridge.
type BridgeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Source       SourceConfig `mapstructure:"source" yaml:"source"`
	Poll         PollConfig   `mapstructure:"poll" yaml:"poll"`
	Bridge       BridgeConfig `mapstructure:"bridge" yaml:"bridge"`
	TargetDomain string       `mapstructure:"target_domain" yaml:"target_domain"`
	Log          LogConfig    `mapstructure:"log" yaml:"log"`
}

// Source type identifiers accepted in SourceConfig.Type.
const (
	SourceTypeMailFile  = "mailfile"
	SourceTypeGmailJSON = "gmailjson"
)

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/factrac/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "factrac", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration. The batch
// shape (5 messages, 5 minutes) mirrors a "newer_than:5m" inbox query.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Source: SourceConfig{
			Type:   SourceTypeMailFile,
			Path:   "inbox",
			Limit:  5,
			Window: 5 * time.Minute,
		},
		Poll: PollConfig{
			IntervalSec: 60,
			TimeoutSec:  30,
			RetainLast:  true,
		},
		Bridge: BridgeConfig{
			Addr: "127.0.0.1:8787",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("source.type", d.Source.Type)
	v.SetDefault("source.path", d.Source.Path)
	v.SetDefault("source.limit", d.Source.Limit)
	v.SetDefault("source.window", d.Source.Window)
	v.SetDefault("poll.interval_sec", d.Poll.IntervalSec)
	v.SetDefault("poll.timeout_sec", d.Poll.TimeoutSec)
	v.SetDefault("poll.retain_last", d.Poll.RetainLast)
	v.SetDefault("bridge.addr", d.Bridge.Addr)
	v.SetDefault("target_domain", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// FACTRAC_* environment variables override file values (for example
// FACTRAC_SOURCE_PATH). If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("factrac")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *AppConfig) Validate() error {
	switch c.Source.Type {
	case SourceTypeMailFile, SourceTypeGmailJSON:
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}
	if c.Source.Limit < 1 {
		return fmt.Errorf("source.limit must be positive, got %d", c.Source.Limit)
	}
	if c.Source.Window < 0 {
		return fmt.Errorf("source.window must not be negative, got %s", c.Source.Window)
	}
	if c.Poll.IntervalSec < 1 {
		return fmt.Errorf("poll.interval_sec must be positive, got %d", c.Poll.IntervalSec)
	}
	if c.Poll.TimeoutSec < 1 {
		return fmt.Errorf("poll.timeout_sec must be positive, got %d", c.Poll.TimeoutSec)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("source.type", cfg.Source.Type)
	v.Set("source.path", cfg.Source.Path)
	v.Set("source.limit", cfg.Source.Limit)
	v.Set("source.window", cfg.Source.Window.String())
	v.Set("poll.interval_sec", cfg.Poll.IntervalSec)
	v.Set("poll.timeout_sec", cfg.Poll.TimeoutSec)
	v.Set("poll.retain_last", cfg.Poll.RetainLast)
	v.Set("bridge.addr", cfg.Bridge.Addr)
	v.Set("target_domain", cfg.TargetDomain)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
