package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != "localhost:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Blobs.MaxTotalBytes != 8<<20 {
		t.Errorf("MaxTotalBytes = %d", cfg.Blobs.MaxTotalBytes)
	}
	if cfg.Sync.IntervalMinutes != 60 {
		t.Errorf("IntervalMinutes = %d", cfg.Sync.IntervalMinutes)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
http_addr: ":9999"
remote:
  url: https://api.example.com
  token: tok123
sync:
  interval_minutes: 15
blobs:
  max_total_bytes: 1048576
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Remote.URL != "https://api.example.com" || cfg.Remote.Token != "tok123" {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	if cfg.Sync.IntervalMinutes != 15 {
		t.Errorf("IntervalMinutes = %d", cfg.Sync.IntervalMinutes)
	}
	if cfg.Blobs.MaxTotalBytes != 1<<20 {
		t.Errorf("MaxTotalBytes = %d", cfg.Blobs.MaxTotalBytes)
	}
	// Unset fields keep their defaults.
	if cfg.Blobs.Quality != 70 {
		t.Errorf("Quality = %d, want default", cfg.Blobs.Quality)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "http_addr: [unclosed"},
		{"negative interval", "sync:\n  interval_minutes: -1"},
		{"quality out of range", "blobs:\n  quality: 150"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() accepted invalid config")
			}
		})
	}
}
