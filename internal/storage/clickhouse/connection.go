package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultMaxOpenConns  = 10
	defaultMaxIdleConns  = 5
	defaultDialTimeout   = 10 * time.Second
	defaultMaxRetries    = 3
	defaultRetryDelay    = 1 * time.Second
	defaultFlushInterval = 2 * time.Second
)

// Config holds ClickHouse connection and store parameters.
type Config struct {
	Addr          string
	Database      string
	Username      string
	Password      string
	MaxOpenConns  int
	MaxIdleConns  int
	DialTimeout   time.Duration
	MaxRetries    int
	TLS           *tls.Config
	FlushInterval time.Duration // max time between snapshot flushes
	Buckets       int           // sketch size for new counters
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:          "localhost:9000",
		Database:      "default",
		Username:      "default",
		Password:      "",
		MaxOpenConns:  defaultMaxOpenConns,
		MaxIdleConns:  defaultMaxIdleConns,
		DialTimeout:   defaultDialTimeout,
		MaxRetries:    defaultMaxRetries,
		TLS:           nil, // no TLS for local development
		FlushInterval: defaultFlushInterval,
		Buckets:       512,
	}
}

// Connect establishes a connection to ClickHouse with retry logic.
func Connect(ctx context.Context, config *Config) (driver.Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}

	opts := &clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      config.DialTimeout,
		MaxOpenConns:     config.MaxOpenConns,
		MaxIdleConns:     config.MaxIdleConns,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		TLS:              config.TLS,
	}

	var conn driver.Conn
	var err error
	retryDelay := defaultRetryDelay

	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		conn, err = clickhouse.Open(opts)
		if err == nil {
			if err = conn.Ping(ctx); err == nil {
				return conn, nil
			}
		}

		if attempt < config.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
				retryDelay *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", config.MaxRetries, err)
}
