// Package config loads the player configuration from an optional YAML
// file. Unset keys keep their defaults; command-line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-yaml"
)

// DefaultPath is the standard location for the config file.
const DefaultPath = "/etc/usbloop/config.yaml"

// Backend names.
const (
	BackendCVLC   = "cvlc"
	BackendLibVLC = "libvlc"
)

// Heartbeat configures the optional status reporting loop.
type Heartbeat struct {
	Endpoint    string `yaml:"endpoint"`
	ID          string `yaml:"id"`
	Key         string `yaml:"key"`
	IntervalSec int    `yaml:"interval_sec"`
}

// Config is the full player configuration.
type Config struct {
	LogLevel    string    `yaml:"log_level"`
	FallbackDir string    `yaml:"fallback_dir"`
	RetryDelay  string    `yaml:"retry_delay"`
	Backend     string    `yaml:"backend"`
	PrefsDir    string    `yaml:"prefs_dir"`
	InputDevice string    `yaml:"input_device"`
	Rescan      bool      `yaml:"rescan"`
	Heartbeat   Heartbeat `yaml:"heartbeat"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel:    "info",
		FallbackDir: "/playlist",
		RetryDelay:  "1s",
		Backend:     BackendCVLC,
		PrefsDir:    "/var/lib/usbloop",
		Heartbeat: Heartbeat{
			IntervalSec: 60,
		},
	}
}

// Load reads path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Heartbeat.IntervalSec <= 0 {
		cfg.Heartbeat.IntervalSec = 60
	}

	return cfg, nil
}

// Validate checks the values that cannot be fixed up silently.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	if _, err := c.Delay(); err != nil {
		return err
	}
	switch c.Backend {
	case BackendCVLC, BackendLibVLC:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.PrefsDir == "" {
		return fmt.Errorf("prefs_dir must not be empty")
	}
	return nil
}

// Delay returns the parsed retry delay.
func (c Config) Delay() (time.Duration, error) {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("retry_delay %q: %w", c.RetryDelay, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("retry_delay must be positive, got %s", d)
	}
	return d, nil
}

// HeartbeatEnabled reports whether enough is configured to send heartbeats.
func (c Config) HeartbeatEnabled() bool {
	return c.Heartbeat.Endpoint != "" && c.Heartbeat.ID != ""
}
