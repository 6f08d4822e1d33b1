// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fidde/streamcount/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// Store is a SQLite-backed store of counters. Live counters are held in
// memory behind a mutex (the sketch's serialization point) and written
// through to the database on every Observe batch, so a restart restores
// the exact register state.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	counters map[string]*models.Counter

	buckets int
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath  string
	Buckets int
}

// New opens the database, applies the schema and loads existing counters.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pragmas for performance
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{
		db:       db,
		counters: make(map[string]*models.Counter),
		buckets:  cfg.Buckets,
	}

	if err := s.loadCounters(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading counters: %w", err)
	}

	return s, nil
}

// loadCounters restores all persisted counters into the live map.
func (s *Store) loadCounters() error {
	rows, err := s.db.Query(`SELECT name, sketch, observations, sample_values, first_seen, last_seen FROM counters`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.SerializedCounter
		var samplesJSON, firstSeen, lastSeen string
		if err := rows.Scan(&sc.Name, &sc.Sketch, &sc.Observations, &samplesJSON, &firstSeen, &lastSeen); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(samplesJSON), &sc.SampleValues); err != nil {
			return fmt.Errorf("decoding samples for %s: %w", sc.Name, err)
		}
		if sc.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
			return fmt.Errorf("parsing first_seen for %s: %w", sc.Name, err)
		}
		if sc.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
			return fmt.Errorf("parsing last_seen for %s: %w", sc.Name, err)
		}

		counter, err := models.DeserializeCounter(&sc)
		if err != nil {
			return err
		}
		s.counters[counter.Name] = counter
	}
	return rows.Err()
}

// persistCounter upserts one counter row. Caller holds the write lock.
func (s *Store) persistCounter(ctx context.Context, c *models.Counter) error {
	sc, err := models.SerializeCounter(c)
	if err != nil {
		return err
	}

	samplesJSON, err := json.Marshal(sc.SampleValues)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO counters (name, sketch, observations, sample_values, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			sketch = excluded.sketch,
			observations = excluded.observations,
			sample_values = excluded.sample_values,
			last_seen = excluded.last_seen`,
		sc.Name, sc.Sketch, sc.Observations, string(samplesJSON),
		sc.FirstSeen.Format(time.RFC3339Nano), sc.LastSeen.Format(time.RFC3339Nano))
	return err
}

// Observe records values under the named counter and writes the updated
// sketch through to the database.
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

	if err := s.persistCounter(ctx, c); err != nil {
		return fmt.Errorf("persisting counter %s: %w", counter, err)
	}
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

// Clear removes all counters from memory and the database.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM counters`); err != nil {
		return fmt.Errorf("clearing counters: %w", err)
	}
	s.counters = make(map[string]*models.Counter)
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
