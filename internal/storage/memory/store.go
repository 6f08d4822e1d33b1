// Package memory provides an in-memory storage implementation for
// counters.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fidde/streamcount/pkg/models"
)

// Store is an in-memory store of counters. The mutex is the serialization
// point required by the sketch's single-owner contract: Observe performs a
// read-modify-write on registers and reports read a full snapshot, so
// neither may run concurrently unguarded.
type Store struct {
	mu       sync.RWMutex
	counters map[string]*models.Counter
	buckets  int
}

// New creates a new in-memory store. buckets selects the sketch size for
// newly created counters; <= 0 uses the model default.
func New(buckets int) *Store {
	return &Store{
		counters: make(map[string]*models.Counter),
		buckets:  buckets,
	}
}

// Observe records values under the named counter, creating it on first use.
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

// Clear removes all counters.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = make(map[string]*models.Counter)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
