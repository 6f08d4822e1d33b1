package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Buckets != 512 {
		t.Errorf("Buckets = %d, want 512", cfg.Buckets)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %s, want memory", cfg.Storage.Backend)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_addr: "127.0.0.1:9999"
buckets: 4096
storage:
  backend: sqlite
  sqlite_path: /tmp/counters.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIAddr != "127.0.0.1:9999" {
		t.Errorf("APIAddr = %s, want 127.0.0.1:9999", cfg.APIAddr)
	}
	if cfg.Buckets != 4096 {
		t.Errorf("Buckets = %d, want 4096", cfg.Buckets)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %s, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.SQLitePath != "/tmp/counters.db" {
		t.Errorf("SQLitePath = %s, want /tmp/counters.db", cfg.Storage.SQLitePath)
	}
	// Unset fields keep defaults.
	if cfg.PprofAddr != "localhost:6060" {
		t.Errorf("PprofAddr = %s, want default", cfg.PprofAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", "127.0.0.1:7777")
	t.Setenv("STORAGE_BACKEND", "sqlite")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIAddr != "127.0.0.1:7777" {
		t.Errorf("APIAddr = %s, want env override", cfg.APIAddr)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %s, want sqlite", cfg.Storage.Backend)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero buckets", "buckets: 0"},
		{"negative buckets", "buckets: -1"},
		{"non power of two", "buckets: 100"},
		{"bad backend", "storage:\n  backend: redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("writing config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected validation error, got nil")
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() with missing file expected error")
	}
}
