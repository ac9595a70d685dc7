// Package config provides configuration loading and management for the
// planwire client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete planwire configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Cache    CacheConfig    `yaml:"cache"`
	Persist  PersistConfig  `yaml:"persist"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig configures the backend HTTP surface
type APIConfig struct {
	// BaseURL is the backend root (e.g. "http://localhost:8080")
	BaseURL string `yaml:"base_url"`
	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout"`
}

// RealtimeConfig configures the persistent connection
type RealtimeConfig struct {
	// Host overrides the realtime host (empty = infer from the API base URL)
	Host string `yaml:"host"`
	// FallbackHost is used when neither Host nor the API base URL yield one
	FallbackHost string `yaml:"fallback_host"`
	// Path is the endpoint path on the host (default: /ws)
	Path string `yaml:"path"`
	// Secure forces wss regardless of the API scheme
	Secure bool `yaml:"secure"`
	// MaxReconnectAttempts caps reconnection after transport loss
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
	// ReconnectBaseDelay is the delay before the first reconnect attempt
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	// ReconnectMaxDelay caps the reconnect delay
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	// ReconnectFactor is the exponential growth factor between attempts
	ReconnectFactor float64 `yaml:"reconnect_factor"`
}

// CacheConfig configures the read-response cache
type CacheConfig struct {
	// TTL is the lifetime of cached backend reads
	TTL time.Duration `yaml:"ttl"`
}

// PersistConfig configures the message persistence layer
type PersistConfig struct {
	// RefreshDelay is how long after a final write settles before the
	// task-list refresh signal fires
	RefreshDelay time.Duration `yaml:"refresh_delay"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 30 * time.Second,
		},
		Realtime: RealtimeConfig{
			Path:                 "/ws",
			FallbackHost:         "localhost:8080",
			MaxReconnectAttempts: 5,
			ReconnectBaseDelay:   time.Second,
			ReconnectMaxDelay:    30 * time.Second,
			ReconnectFactor:      2,
		},
		Cache: CacheConfig{
			TTL: time.Minute,
		},
		Persist: PersistConfig{
			RefreshDelay: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	if c.Realtime.MaxReconnectAttempts < 0 {
		return fmt.Errorf("realtime.max_reconnect_attempts must not be negative")
	}
	if c.Realtime.ReconnectFactor < 0 {
		return fmt.Errorf("realtime.reconnect_factor must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// API
	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.Timeout != 0 {
		c.API.Timeout = other.API.Timeout
	}

	// Realtime
	if other.Realtime.Host != "" {
		c.Realtime.Host = other.Realtime.Host
	}
	if other.Realtime.FallbackHost != "" {
		c.Realtime.FallbackHost = other.Realtime.FallbackHost
	}
	if other.Realtime.Path != "" {
		c.Realtime.Path = other.Realtime.Path
	}
	if other.Realtime.Secure {
		c.Realtime.Secure = true
	}
	if other.Realtime.MaxReconnectAttempts != 0 {
		c.Realtime.MaxReconnectAttempts = other.Realtime.MaxReconnectAttempts
	}
	if other.Realtime.ReconnectBaseDelay != 0 {
		c.Realtime.ReconnectBaseDelay = other.Realtime.ReconnectBaseDelay
	}
	if other.Realtime.ReconnectMaxDelay != 0 {
		c.Realtime.ReconnectMaxDelay = other.Realtime.ReconnectMaxDelay
	}
	if other.Realtime.ReconnectFactor != 0 {
		c.Realtime.ReconnectFactor = other.Realtime.ReconnectFactor
	}

	// Cache
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}

	// Persist
	if other.Persist.RefreshDelay != 0 {
		c.Persist.RefreshDelay = other.Persist.RefreshDelay
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
