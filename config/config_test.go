package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("expected default base url http://localhost:8080, got %s", cfg.API.BaseURL)
	}
	if cfg.Realtime.Path != "/ws" {
		t.Errorf("expected default realtime path /ws, got %s", cfg.Realtime.Path)
	}
	if cfg.Realtime.MaxReconnectAttempts != 5 {
		t.Errorf("expected 5 reconnect attempts, got %d", cfg.Realtime.MaxReconnectAttempts)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Errorf("expected 1m cache ttl, got %s", cfg.Cache.TTL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %s", cfg.Log.Level)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing base url",
			modify:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "negative reconnect attempts",
			modify:  func(c *Config) { c.Realtime.MaxReconnectAttempts = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	other := &Config{
		API:      APIConfig{BaseURL: "https://prod.example.com"},
		Realtime: RealtimeConfig{Host: "rt.example.com", MaxReconnectAttempts: 10},
		Log:      LogConfig{Level: "debug"},
	}

	base.Merge(other)

	if base.API.BaseURL != "https://prod.example.com" {
		t.Errorf("expected merged base url, got %s", base.API.BaseURL)
	}
	if base.Realtime.Host != "rt.example.com" {
		t.Errorf("expected merged realtime host, got %s", base.Realtime.Host)
	}
	if base.Realtime.MaxReconnectAttempts != 10 {
		t.Errorf("expected merged reconnect attempts, got %d", base.Realtime.MaxReconnectAttempts)
	}
	if base.Log.Level != "debug" {
		t.Errorf("expected merged log level, got %s", base.Log.Level)
	}
	// Unset fields keep their defaults.
	if base.Realtime.Path != "/ws" {
		t.Errorf("expected default path preserved, got %s", base.Realtime.Path)
	}
	if base.API.Timeout != 30*time.Second {
		t.Errorf("expected default timeout preserved, got %s", base.API.Timeout)
	}
}

func TestConfigMergeNil(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(nil)
	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Error("merging nil must not change the config")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "planwire.yaml")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://roundtrip.example.com"
	cfg.Realtime.Secure = true

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.API.BaseURL != "https://roundtrip.example.com" {
		t.Errorf("expected round-tripped base url, got %s", loaded.API.BaseURL)
	}
	if !loaded.Realtime.Secure {
		t.Error("expected round-tripped secure flag")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "https://env.example.com")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvCacheTTL, "120")

	loader := NewLoader(nil)
	cfg := DefaultConfig()
	loader.applyEnv(cfg)

	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("expected env base url, got %s", cfg.API.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected env log level, got %s", cfg.Log.Level)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("expected 2m cache ttl from env, got %s", cfg.Cache.TTL)
	}
}

func TestLoaderEnvInvalidTTLIgnored(t *testing.T) {
	t.Setenv(EnvCacheTTL, "not-a-number")

	loader := NewLoader(nil)
	cfg := DefaultConfig()
	loader.applyEnv(cfg)

	if cfg.Cache.TTL != time.Minute {
		t.Errorf("invalid ttl override must be ignored, got %s", cfg.Cache.TTL)
	}
}
