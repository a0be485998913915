// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/portal/internal/bridge"
	"github.com/jmylchreest/portal/internal/overlay"
)

// Bridge kinds.
const (
	BridgeDBus   = "dbus"
	BridgeMemory = "memory"
)

// Default configuration values.
const (
	DefaultBridgeKind  = BridgeDBus
	DefaultBus         = "session"
	DefaultLogLevel    = "warn"
	DefaultCallTimeout = Duration(bridge.DefaultCallTimeout)
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "500ms", "5s", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '500ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the portal configuration.
type Config struct {
	Overlay OverlayConfig `toml:"overlay" yaml:"overlay"`
	Bridge  BridgeConfig  `toml:"bridge" yaml:"bridge"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

// OverlayConfig holds the options handed to the positioning runtime.
type OverlayConfig struct {
	ContainerSelector string `toml:"container_selector" yaml:"container_selector"`
	FlipMargin        int    `toml:"flip_margin" yaml:"flip_margin"`
}

// BridgeConfig selects and locates the positioning runtime.
type BridgeConfig struct {
	Kind        string   `toml:"kind" yaml:"kind"` // dbus, memory
	Bus         string   `toml:"bus" yaml:"bus"`   // session, system
	Destination string   `toml:"destination" yaml:"destination"`
	Path        string   `toml:"path" yaml:"path"`
	Interface   string   `toml:"interface" yaml:"interface"`
	CallTimeout Duration `toml:"call_timeout" yaml:"call_timeout"` // 0 = no deadline
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Overlay: OverlayConfig{
			ContainerSelector: overlay.DefaultContainerSelector,
			FlipMargin:        0,
		},
		Bridge: BridgeConfig{
			Kind:        DefaultBridgeKind,
			Bus:         DefaultBus,
			Destination: bridge.DBusDestination,
			Path:        bridge.DBusPath,
			Interface:   bridge.DBusInterface,
			CallTimeout: DefaultCallTimeout,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "portal", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	switch c.Bridge.Kind {
	case BridgeDBus, BridgeMemory:
	default:
		return fmt.Errorf("bridge.kind must be %q or %q, got %q", BridgeDBus, BridgeMemory, c.Bridge.Kind)
	}
	switch c.Bridge.Bus {
	case "session", "system":
	default:
		return fmt.Errorf("bridge.bus must be \"session\" or \"system\", got %q", c.Bridge.Bus)
	}
	if c.Bridge.CallTimeout < 0 {
		return errors.New("bridge.call_timeout must not be negative")
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// OverlayOptions returns the overlay options described by the config.
func (c *Config) OverlayOptions() overlay.Options {
	return overlay.NewOptions(
		overlay.WithContainerSelector(c.Overlay.ContainerSelector),
		overlay.WithFlipMargin(c.Overlay.FlipMargin),
	)
}

// DBusConfig returns the D-Bus bridge location described by the config.
func (c *Config) DBusConfig() bridge.DBusConfig {
	return bridge.DBusConfig{
		Bus:         c.Bridge.Bus,
		Destination: c.Bridge.Destination,
		Path:        c.Bridge.Path,
		Interface:   c.Bridge.Interface,
		CallTimeout: c.Bridge.CallTimeout.Duration(),
	}
}

// LogLevel returns the configured log level, falling back to warn.
func (c *Config) LogLevel() slog.Level {
	level, err := ParseLogLevel(c.Log.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// ParseLogLevel parses a level name. An empty name means warn.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("log.level must be debug, info, warn or error, got %q", name)
	}
}
