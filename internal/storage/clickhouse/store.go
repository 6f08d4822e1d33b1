// Package clickhouse provides a ClickHouse-backed storage implementation.
// Counters live in memory and are flushed periodically as full sketch
// snapshots into a ReplacingMergeTree table, so the newest snapshot per
// counter wins and restarts reload the exact register state.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/fidde/streamcount/pkg/models"
)

const countersTableDDL = `
	CREATE TABLE IF NOT EXISTS counters (
		name          String,
		sketch        String,
		observations  UInt64,
		sample_values Array(String),
		first_seen    DateTime64(3),
		last_seen     DateTime64(3),
		updated_at    DateTime64(3) DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY name
`

// Store is a ClickHouse-backed store of counters.
type Store struct {
	conn   driver.Conn
	logger *slog.Logger

	mu       sync.RWMutex
	counters map[string]*models.Counter
	dirty    map[string]struct{}

	buckets int

	flushInterval time.Duration
	closeCh       chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

// NewStore connects, initializes the schema, reloads persisted counters
// and starts the flush loop.
func NewStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Exec(ctx, countersTableDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating counters table: %w", err)
	}

	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	s := &Store{
		conn:          conn,
		logger:        logger,
		counters:      make(map[string]*models.Counter),
		dirty:         make(map[string]struct{}),
		buckets:       cfg.Buckets,
		flushInterval: flushInterval,
		closeCh:       make(chan struct{}),
	}

	if err := s.loadCounters(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("loading counters: %w", err)
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// loadCounters restores the latest snapshot of every counter.
func (s *Store) loadCounters(ctx context.Context) error {
	rows, err := s.conn.Query(ctx, `
		SELECT name, sketch, observations, sample_values, first_seen, last_seen
		FROM counters FINAL`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.SerializedCounter
		if err := rows.Scan(&sc.Name, &sc.Sketch, &sc.Observations, &sc.SampleValues, &sc.FirstSeen, &sc.LastSeen); err != nil {
			return err
		}

		counter, err := models.DeserializeCounter(&sc)
		if err != nil {
			return err
		}
		s.counters[counter.Name] = counter
	}

	s.logger.Info("loaded counters from ClickHouse", "count", len(s.counters))
	return rows.Err()
}

// flushLoop periodically writes dirty counter snapshots.
func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.flush(context.Background()); err != nil {
				s.logger.Error("flush failed", "error", err)
			}
		case <-s.closeCh:
			// Final flush on shutdown.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.flush(ctx); err != nil {
				s.logger.Error("final flush failed", "error", err)
			}
			cancel()
			return
		}
	}
}

// flush writes a snapshot row for every dirty counter in one batch.
func (s *Store) flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return nil
	}

	snapshots := make([]*models.SerializedCounter, 0, len(s.dirty))
	for name := range s.dirty {
		c, exists := s.counters[name]
		if !exists {
			continue
		}
		sc, err := models.SerializeCounter(c)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		snapshots = append(snapshots, sc)
	}
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	if len(snapshots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO counters (name, sketch, observations, sample_values, first_seen, last_seen, updated_at)`)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	now := time.Now().UTC()
	for _, sc := range snapshots {
		samples := sc.SampleValues
		if samples == nil {
			samples = []string{}
		}
		if err := batch.Append(sc.Name, sc.Sketch, sc.Observations, samples, sc.FirstSeen, sc.LastSeen, now); err != nil {
			return fmt.Errorf("appending snapshot for %s: %w", sc.Name, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch of %d snapshots: %w", len(snapshots), err)
	}

	s.logger.Debug("flushed counter snapshots", "count", len(snapshots))
	return nil
}

// Observe records values under the named counter and marks it for the next
// snapshot flush.
func (s *Store) Observe(ctx context.Context, counter string, values []string) error {
	if counter == "" {
		return errors.New("counter name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.counters[counter]
	if !exists {
		var err error
		c, err = models.NewCounter(counter, s.buckets)
		if err != nil {
			return fmt.Errorf("creating counter %s: %w", counter, err)
		}
		s.counters[counter] = c
	}

	for _, v := range values {
		c.Observe(v)
	}
	s.dirty[counter] = struct{}{}
	return nil
}

// GetCounter returns the report for one counter.
func (s *Store) GetCounter(ctx context.Context, name string, actual *uint64) (*models.CounterReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.counters[name]
	if !exists {
		return nil, fmt.Errorf("counter %s: %w", name, models.ErrNotFound)
	}

	return c.Report(actual), nil
}

// ListCounters returns reports for all counters, sorted by name.
func (s *Store) ListCounters(ctx context.Context) ([]*models.CounterReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]*models.CounterReport, 0, len(s.counters))
	for _, c := range s.counters {
		reports = append(reports, c.Report(nil))
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Name < reports[j].Name
	})

	return reports, nil
}

// Clear removes all counters from memory and truncates the table.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Exec(ctx, `TRUNCATE TABLE counters`); err != nil {
		return fmt.Errorf("truncating counters: %w", err)
	}
	s.counters = make(map[string]*models.Counter)
	s.dirty = make(map[string]struct{})
	return nil
}

// Close stops the flush loop (flushing once more) and closes the
// connection.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	s.wg.Wait()
	return s.conn.Close()
}
