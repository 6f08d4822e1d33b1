// Package config loads service configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	// APIAddr is the listen address for the REST API.
	APIAddr string `yaml:"api_addr"`

	// PprofAddr is the listen address for the pprof side server.
	PprofAddr string `yaml:"pprof_addr"`

	// Buckets is the sketch size for newly created counters. Must be a
	// positive power of two.
	Buckets int `yaml:"buckets"`

	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend: "memory", "sqlite" or "clickhouse".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// ClickHouseAddr is the native-protocol address for the clickhouse
	// backend.
	ClickHouseAddr string `yaml:"clickhouse_addr"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		APIAddr:   "0.0.0.0:8080",
		PprofAddr: "localhost:6060",
		Buckets:   512,
		Storage: StorageConfig{
			Backend:        "memory",
			SQLitePath:     "streamcount.db",
			ClickHouseAddr: "localhost:9000",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults. An
// empty path returns the defaults with environment overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("PPROF_ADDR"); v != "" {
		cfg.PprofAddr = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("CLICKHOUSE_ADDR"); v != "" {
		cfg.Storage.ClickHouseAddr = v
	}
}

func (c Config) validate() error {
	if c.Buckets <= 0 || c.Buckets&(c.Buckets-1) != 0 {
		return fmt.Errorf("buckets must be a positive power of two, got %d", c.Buckets)
	}
	switch c.Storage.Backend {
	case "memory", "sqlite", "clickhouse":
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	return nil
}
