// Package config loads application settings from file, environment, and
// defaults, in that order of increasing precedence for the environment.
//
// Settings are read from scribe.yaml in the config directory (or an explicit
// --config path) and may be overridden with SCRIBE_* environment variables,
// e.g. SCRIBE_SYNC_INTERVAL=10s.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds every tunable the application reads at startup.
type Config struct {
	// APIURL is the base URL of the remote note service.
	APIURL string `mapstructure:"api_url"`

	// WSURL is the push channel endpoint. Empty disables the listener.
	WSURL string `mapstructure:"ws_url"`

	// DataDir holds the note database and queue snapshots.
	DataDir string `mapstructure:"data_dir"`

	// LogFile receives daemon logs. Empty logs to stderr.
	LogFile string `mapstructure:"log_file"`

	// SyncInterval is how often the scheduler drains the queue.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// MaxRetryCount escalates an item to the retry queue when exceeded.
	MaxRetryCount int `mapstructure:"max_retry_count"`

	// RetryCooldown is how long parked items wait before another attempt.
	RetryCooldown time.Duration `mapstructure:"retry_cooldown"`

	// ReconnectMinBackoff and ReconnectMaxBackoff bound the push channel's
	// reconnect delay.
	ReconnectMinBackoff time.Duration `mapstructure:"reconnect_min_backoff"`
	ReconnectMaxBackoff time.Duration `mapstructure:"reconnect_max_backoff"`
}

// DatabasePath returns the note database location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "notes.db")
}

// QueueDir returns where queue snapshots are written under DataDir.
func (c *Config) QueueDir() string {
	return filepath.Join(c.DataDir, "queue")
}

// Validate checks settings that have no usable zero value.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive, got %v", c.SyncInterval)
	}
	if c.MaxRetryCount < 1 {
		return fmt.Errorf("max_retry_count must be at least 1, got %d", c.MaxRetryCount)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scribe"
	}
	return filepath.Join(home, ".scribe")
}

func newViper(path string) *viper.Viper {
	v := viper.New()

	v.SetDefault("api_url", "https://api.scribepad.io")
	v.SetDefault("ws_url", "wss://api.scribepad.io/ws")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log_file", "")
	v.SetDefault("sync_interval", 30*time.Second)
	v.SetDefault("max_retry_count", 3)
	v.SetDefault("retry_cooldown", 5*time.Minute)
	v.SetDefault("reconnect_min_backoff", time.Second)
	v.SetDefault("reconnect_max_backoff", 30*time.Second)

	v.SetEnvPrefix("SCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scribe")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultDataDir())
		v.AddConfigPath(".")
	}

	return v
}

// Load reads configuration from the given file path. An empty path falls back
// to the default search locations; a missing file is not an error, the
// defaults and environment apply.
func Load(path string) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		// No file in the search path is fine; an unreadable explicit file
		// is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch reloads the config file on change and invokes onChange with the new
// settings. Invalid edits are logged and skipped; the previous settings stay
// in effect. Returns the initial load.
func Watch(path string, logger *log.Logger, onChange func(*Config)) (*Config, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		logger.Printf("config changed: %s", ev.Name)

		var next Config
		if err := v.Unmarshal(&next); err != nil {
			logger.Printf("WARNING: ignoring config change: %v", err)
			return
		}
		if err := next.Validate(); err != nil {
			logger.Printf("WARNING: ignoring invalid config change: %v", err)
			return
		}
		onChange(&next)
	})
	v.WatchConfig()

	return &cfg, nil
}
