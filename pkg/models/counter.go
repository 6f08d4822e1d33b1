// Package models defines the counter model shared by the API and storage
// layers.
package models

import (
	"time"

	"github.com/fidde/streamcount/pkg/hyperloglog"
)

// DefaultBuckets is the sketch size used when a counter is created without
// an explicit configuration (512 bytes, ~4.6% standard error).
const DefaultBuckets = 512

// DefaultMaxSamples bounds the per-counter sample list kept for debugging.
const DefaultMaxSamples = 5

// Counter tracks the approximate number of distinct values observed under
// one name. It owns exactly one sketch; callers must not share the sketch
// outside the counter. Counter itself is not safe for concurrent use; the
// storage layer serializes access.
type Counter struct {
	Name         string
	Observations uint64   // total values observed, duplicates included
	SampleValues []string // small bounded sample for debugging
	FirstSeen    time.Time
	LastSeen     time.Time

	sketch     *hyperloglog.HyperLogLog
	maxSamples int
}

// NewCounter creates a counter with the given sketch size. buckets <= 0
// selects DefaultBuckets; otherwise it must be a positive power of two.
func NewCounter(name string, buckets int) (*Counter, error) {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}

	sketch, err := hyperloglog.New(buckets)
	if err != nil {
		return nil, err
	}

	return &Counter{
		Name:         name,
		SampleValues: make([]string, 0, DefaultMaxSamples),
		sketch:       sketch,
		maxSamples:   DefaultMaxSamples,
	}, nil
}

// Observe records one value.
func (c *Counter) Observe(value string) {
	now := time.Now().UTC()
	if c.FirstSeen.IsZero() {
		c.FirstSeen = now
	}
	c.LastSeen = now
	c.Observations++

	c.sketch.Add(value)
	c.addSample(value)
}

func (c *Counter) addSample(value string) {
	if len(c.SampleValues) >= c.maxSamples {
		return
	}
	for _, s := range c.SampleValues {
		if s == value {
			return
		}
	}
	c.SampleValues = append(c.SampleValues, value)
}

// Estimate returns the estimated number of distinct values.
func (c *Counter) Estimate() uint64 {
	return c.sketch.Count()
}

// Report builds the reporting view of this counter. A non-nil actual count
// adds the signed error percentage against it.
func (c *Counter) Report(actual *uint64) *CounterReport {
	analysis := c.sketch.Analyze()

	report := &CounterReport{
		Name:         c.Name,
		Buckets:      analysis.Buckets,
		Alpha:        analysis.Alpha,
		Estimate:     analysis.Estimate,
		Observations: c.Observations,
		SampleValues: c.SampleValues,
		FirstSeen:    c.FirstSeen,
		LastSeen:     c.LastSeen,
	}
	if actual != nil {
		pct := analysis.ErrorPercent(*actual)
		report.ActualCount = actual
		report.ErrorPercent = &pct
	}
	return report
}

// Merge combines another counter into this one. Both sketches must have the
// same bucket count; the result estimates the union of both streams.
func (c *Counter) Merge(other *Counter) error {
	if err := c.sketch.Merge(other.sketch); err != nil {
		return err
	}

	c.Observations += other.Observations
	for _, v := range other.SampleValues {
		c.addSample(v)
	}
	if c.FirstSeen.IsZero() || (!other.FirstSeen.IsZero() && other.FirstSeen.Before(c.FirstSeen)) {
		c.FirstSeen = other.FirstSeen
	}
	if other.LastSeen.After(c.LastSeen) {
		c.LastSeen = other.LastSeen
	}
	return nil
}

// CounterReport is the JSON reporting view of a counter.
type CounterReport struct {
	Name         string    `json:"name"`
	Buckets      int       `json:"buckets"`
	Alpha        float64   `json:"alpha"`
	Estimate     uint64    `json:"estimate"`
	Observations uint64    `json:"observations"`
	SampleValues []string  `json:"sample_values,omitempty"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	ActualCount  *uint64   `json:"actual_count,omitempty"`
	ErrorPercent *float64  `json:"error_percent,omitempty"`
}
