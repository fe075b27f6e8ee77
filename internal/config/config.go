// Package config assembles the server configuration from defaults, an
// optional TOML file, LUCKYDRAW_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"

	"luckydraw/internal/services"
	"luckydraw/internal/storage"
)

// Config holds runtime configuration for the luckydraw server.
type Config struct {
	Addr         string
	Storage      string
	DataDir      string
	SQLitePath   string
	PageSize     int
	SpinDuration time.Duration
	TickInterval time.Duration
	WatchStorage bool
	Sound        bool
	GinMode      string
	Verbose      bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		Storage:      storage.BackendFile,
		DataDir:      DefaultDataDir(),
		PageSize:     services.DefaultPageSize,
		SpinDuration: services.DefaultSpinDuration,
		TickInterval: services.DefaultTickInterval,
		WatchStorage: true,
		Sound:        true,
		GinMode:      "release",
		Verbose:      true,
	}
}

// DefaultDataDir returns ~/.luckydraw, or ./data if the home directory is unknown.
func DefaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".luckydraw")
	}
	return "data"
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage) {
	case storage.BackendMemory, storage.BackendFile, storage.BackendSQLite:
		c.Storage = strings.ToLower(c.Storage)
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}
	if c.Storage == storage.BackendFile && c.DataDir == "" {
		return fmt.Errorf("data-dir is required for the file backend")
	}
	if c.Storage == storage.BackendSQLite && c.SQLitePath == "" {
		if c.DataDir == "" {
			return fmt.Errorf("sqlite-path is required (or data-dir)")
		}
		c.SQLitePath = filepath.Join(c.DataDir, "luckydraw.db")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.SpinDuration <= 0 {
		return fmt.Errorf("spin duration must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	return nil
}

// StorageOptions returns the options for storage.Open.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{Backend: c.Storage, DataDir: c.DataDir, SQLitePath: c.SQLitePath}
}

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Addr         string `toml:"addr"`
	Storage      string `toml:"storage"`
	DataDir      string `toml:"data_dir"`
	SQLitePath   string `toml:"sqlite_path"`
	PageSize     int    `toml:"page_size"`
	SpinDuration string `toml:"spin_duration"`
	TickInterval string `toml:"tick_interval"`
	WatchStorage *bool  `toml:"watch_storage"`
	Sound        *bool  `toml:"sound"`
	GinMode      string `toml:"gin_mode"`
	Verbose      *bool  `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// EnvConfig is the LUCKYDRAW_* environment surface.
type EnvConfig struct {
	Addr         string `env:"LUCKYDRAW_ADDR"`
	Storage      string `env:"LUCKYDRAW_STORAGE"`
	DataDir      string `env:"LUCKYDRAW_DATA_DIR"`
	SQLitePath   string `env:"LUCKYDRAW_SQLITE_PATH"`
	PageSize     int    `env:"LUCKYDRAW_PAGE_SIZE"`
	SpinDuration string `env:"LUCKYDRAW_SPIN_DURATION"`
	TickInterval string `env:"LUCKYDRAW_TICK_INTERVAL"`
	WatchStorage *bool  `env:"LUCKYDRAW_WATCH_STORAGE"`
	Sound        *bool  `env:"LUCKYDRAW_SOUND"`
	GinMode      string `env:"LUCKYDRAW_GIN_MODE"`
	Verbose      *bool  `env:"LUCKYDRAW_VERBOSE"`
}

// LoadEnvConfig parses LUCKYDRAW_* variables.
func LoadEnvConfig() (EnvConfig, error) {
	var ec EnvConfig
	if err := env.Parse(&ec); err != nil {
		return ec, fmt.Errorf("parse env: %w", err)
	}
	return ec, nil
}

// ApplyFileConfig applies file values, skipping fields whose flag was set explicitly.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	return apply(cfg, fc, changed)
}

// ApplyEnvConfig applies environment values, skipping fields whose flag was set explicitly.
func ApplyEnvConfig(cfg *Config, ec EnvConfig, changed map[string]bool) error {
	return apply(cfg, FileConfig(ec), changed)
}

func apply(cfg *Config, v FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("addr", v.Addr, &cfg.Addr)
	s.setString("storage", v.Storage, &cfg.Storage)
	s.setString("data-dir", v.DataDir, &cfg.DataDir)
	s.setString("sqlite-path", v.SQLitePath, &cfg.SQLitePath)
	s.setString("gin-mode", v.GinMode, &cfg.GinMode)
	s.setInt("page-size", v.PageSize, &cfg.PageSize)

	if err := s.setDuration("spin-duration", v.SpinDuration, &cfg.SpinDuration); err != nil {
		return err
	}
	if err := s.setDuration("tick-interval", v.TickInterval, &cfg.TickInterval); err != nil {
		return err
	}

	s.setBool("watch", v.WatchStorage, &cfg.WatchStorage)
	s.setBool("sound", v.Sound, &cfg.Sound)
	s.setBool("verbose", v.Verbose, &cfg.Verbose)
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// configSetter applies values only when the corresponding flag was not set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}
