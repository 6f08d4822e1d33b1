package storage

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/fidde/streamcount/internal/storage/clickhouse"
	"github.com/fidde/streamcount/internal/storage/memory"
	"github.com/fidde/streamcount/internal/storage/sqlite"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "memory", "sqlite" or
	// "clickhouse".
	Backend string

	// Buckets is the sketch size for newly created counters.
	Buckets int

	// SQLite-specific config
	SQLitePath string

	// ClickHouse-specific config
	ClickHouseAddr string
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        "memory",
		Buckets:        512,
		SQLitePath:     "streamcount.db",
		ClickHouseAddr: "localhost:9000",
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "memory":
		log.Printf("Using in-memory storage (buckets: %d)", cfg.Buckets)
		return memory.New(cfg.Buckets), nil

	case "sqlite":
		log.Printf("Using SQLite storage: %s (buckets: %d)", cfg.SQLitePath, cfg.Buckets)
		return sqlite.New(sqlite.Config{
			DBPath:  cfg.SQLitePath,
			Buckets: cfg.Buckets,
		})

	case "clickhouse":
		log.Printf("Using ClickHouse storage: %s (buckets: %d)", cfg.ClickHouseAddr, cfg.Buckets)

		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Buckets = cfg.Buckets

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		store, err := clickhouse.NewStore(context.Background(), chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse)", cfg.Backend)
	}
}
