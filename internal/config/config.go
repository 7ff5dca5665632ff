// Package config loads the server configuration from a YAML file, creating
// it with defaults when missing.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	// HTTPAddr is the address the operator API listens on.
	HTTPAddr string `yaml:"http_addr"`
	// DataDir is the root directory for the key/value substrate and
	// backups.
	DataDir string `yaml:"data_dir"`

	Remote RemoteConfig `yaml:"remote"`
	Sync   SyncConfig   `yaml:"sync"`
	Blobs  BlobConfig   `yaml:"blobs"`
}

// RemoteConfig points at the hosted backend.
type RemoteConfig struct {
	// URL is the backend base URL. Empty disables sync entirely; the app
	// keeps working on local data alone.
	URL string `yaml:"url"`
	// Token is the bearer token for API calls.
	Token string `yaml:"token"`
	// RequestsPerMinute throttles outbound API calls. 0 means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// IntervalMinutes is the periodic sync cadence. 0 uses the default
	// (one hour).
	IntervalMinutes int `yaml:"interval_minutes"`
}

// BlobConfig tunes the blob cache limits.
type BlobConfig struct {
	// MaxItemBytes is the per-blob ceiling before compression is
	// attempted.
	MaxItemBytes int64 `yaml:"max_item_bytes"`
	// MaxTotalBytes is the global blob quota.
	MaxTotalBytes int64 `yaml:"max_total_bytes"`
	// MaxDimension bounds the longer side of stored images, in pixels.
	MaxDimension int `yaml:"max_dimension"`
	// Quality is the JPEG re-encoding quality, 1-100.
	Quality int `yaml:"quality"`
	// SubstrateCapacityBytes bounds the whole substrate. 0 means
	// unbounded.
	SubstrateCapacityBytes int64 `yaml:"substrate_capacity_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: "localhost:8080",
		DataDir:  "./data",
		Remote:   RemoteConfig{RequestsPerMinute: 300},
		Sync:     SyncConfig{IntervalMinutes: 60},
		Blobs: BlobConfig{
			MaxItemBytes:  500 << 10,
			MaxTotalBytes: 8 << 20,
			MaxDimension:  1280,
			Quality:       70,
		},
	}
}

// Load reads path, filling unset fields from [Default]. A missing file
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Sync.IntervalMinutes < 0 {
		return errors.New("sync.interval_minutes must be non-negative")
	}
	if c.Remote.RequestsPerMinute < 0 {
		return errors.New("remote.requests_per_minute must be non-negative")
	}
	if c.Blobs.MaxItemBytes <= 0 || c.Blobs.MaxTotalBytes <= 0 {
		return errors.New("blob size limits must be positive")
	}
	if c.Blobs.Quality < 1 || c.Blobs.Quality > 100 {
		return errors.New("blobs.quality must be between 1 and 100")
	}
	return nil
}
