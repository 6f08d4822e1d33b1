// Package storage defines the storage interface for distinct-count
// counters.
package storage

import (
	"context"

	"github.com/fidde/streamcount/pkg/models"
)

// ErrNotFound is returned when a requested counter does not exist. Every
// backend wraps this same sentinel; it is re-exported here so callers of
// the interface do not need to import a backend package to match it.
var ErrNotFound = models.ErrNotFound

// Storage stores and retrieves counters. Implementations must be safe for
// concurrent use: the underlying sketch is a single-owner structure, so
// every implementation serializes Observe and report access around it.
type Storage interface {
	// Observe records a batch of values under the named counter,
	// creating the counter on first use.
	Observe(ctx context.Context, counter string, values []string) error

	// GetCounter returns the report for one counter. A non-nil actual
	// count adds the signed error percentage to the report.
	GetCounter(ctx context.Context, name string, actual *uint64) (*models.CounterReport, error)

	// ListCounters returns reports for all counters, sorted by name.
	ListCounters(ctx context.Context) ([]*models.CounterReport, error)

	// Clear removes all counters.
	Clear(ctx context.Context) error

	// Close releases resources (DB connections, flush loops).
	Close() error
}
