package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Addr:         ":9090",
				Storage:      "sqlite",
				SQLitePath:   "/var/lib/luckydraw.db",
				PageSize:     10,
				SpinDuration: "5s",
				Sound:        &falseVal,
				Verbose:      &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Addr:         ":9090",
				Storage:      "sqlite",
				SQLitePath:   "/var/lib/luckydraw.db",
				PageSize:     10,
				SpinDuration: 5 * time.Second,
				Sound:        false,
				Verbose:      true,
			},
		},
		{
			name:       "respects changed flags",
			fileConfig: FileConfig{Addr: ":9090", PageSize: 10},
			changed:    map[string]bool{"addr": true},
			initial:    Config{Addr: ":1234", PageSize: 5},
			expected:   Config{Addr: ":1234", PageSize: 10},
		},
		{
			name:       "ignores empty values",
			fileConfig: FileConfig{},
			initial:    Config{Addr: ":8080", PageSize: 5, Sound: true},
			expected:   Config{Addr: ":8080", PageSize: 5, Sound: true},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{TickInterval: "fast"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error, but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, but got %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("Expected %+v, but got %+v", tt.expected, cfg)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
addr = "127.0.0.1:7000"
storage = "file"
data_dir = "/tmp/luckydraw"
spin_duration = "1500ms"
watch_storage = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if fc.Addr != "127.0.0.1:7000" || fc.DataDir != "/tmp/luckydraw" || fc.SpinDuration != "1500ms" {
		t.Errorf("Unexpected file config: %+v", fc)
	}
	if fc.WatchStorage == nil || *fc.WatchStorage {
		t.Errorf("Expected watch_storage=false, but got %v", fc.WatchStorage)
	}

	if err := os.WriteFile(path, []byte("addr = ["), 0o644); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if _, err := LoadFileConfig(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("Expected a parse error, but got %v", err)
	}
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("LUCKYDRAW_ADDR", ":7777")
	t.Setenv("LUCKYDRAW_STORAGE", "memory")
	t.Setenv("LUCKYDRAW_TICK_INTERVAL", "20ms")
	t.Setenv("LUCKYDRAW_SOUND", "false")

	ec, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	cfg := DefaultConfig()
	if err := ApplyEnvConfig(&cfg, ec, map[string]bool{"storage": true}); err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if cfg.Addr != ":7777" || cfg.TickInterval != 20*time.Millisecond || cfg.Sound {
		t.Errorf("Expected env overrides, but got %+v", cfg)
	}
	if cfg.Storage != "file" {
		t.Errorf("Expected flag-set storage to win over env, but got %s", cfg.Storage)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg := DefaultConfig()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected no error, but got %v", err)
		}
	})

	t.Run("sqlite path derived from data dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage = "SQLite"
		cfg.DataDir = "/srv/draw"
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Expected no error, but got %v", err)
		}
		if cfg.SQLitePath != filepath.Join("/srv/draw", "luckydraw.db") || cfg.Storage != "sqlite" {
			t.Errorf("Expected derived sqlite path, but got %+v", cfg)
		}
	})

	for name, mutate := range map[string]func(*Config){
		"unknown backend":   func(c *Config) { c.Storage = "redis" },
		"file without dir":  func(c *Config) { c.DataDir = "" },
		"zero page size":    func(c *Config) { c.PageSize = 0 },
		"zero spin":         func(c *Config) { c.SpinDuration = 0 },
		"negative interval": func(c *Config) { c.TickInterval = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected an error, but got nil")
			}
		})
	}
}
