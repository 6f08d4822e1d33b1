package models

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fidde/streamcount/pkg/hyperloglog"
)

// SerializedCounter is the storage and transport form of a Counter. The
// sketch travels as base64 so it fits JSON and text-typed database columns;
// the encoded bytes preserve the register array and bucket count exactly.
type SerializedCounter struct {
	Name         string    `json:"name"`
	Sketch       string    `json:"sketch"`
	Observations uint64    `json:"observations"`
	SampleValues []string  `json:"sample_values,omitempty"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// SerializeCounter converts a live counter to its serialized form.
func SerializeCounter(c *Counter) (*SerializedCounter, error) {
	data, err := c.sketch.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling sketch for %s: %w", c.Name, err)
	}

	return &SerializedCounter{
		Name:         c.Name,
		Sketch:       base64.StdEncoding.EncodeToString(data),
		Observations: c.Observations,
		SampleValues: c.SampleValues,
		FirstSeen:    c.FirstSeen,
		LastSeen:     c.LastSeen,
	}, nil
}

// DeserializeCounter restores a live counter from its serialized form.
func DeserializeCounter(sc *SerializedCounter) (*Counter, error) {
	data, err := base64.StdEncoding.DecodeString(sc.Sketch)
	if err != nil {
		return nil, fmt.Errorf("decoding sketch for %s: %w", sc.Name, err)
	}

	sketch, err := hyperloglog.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("restoring sketch for %s: %w", sc.Name, err)
	}

	samples := make([]string, 0, DefaultMaxSamples)
	samples = append(samples, sc.SampleValues...)

	return &Counter{
		Name:         sc.Name,
		Observations: sc.Observations,
		SampleValues: samples,
		FirstSeen:    sc.FirstSeen,
		LastSeen:     sc.LastSeen,
		sketch:       sketch,
		maxSamples:   DefaultMaxSamples,
	}, nil
}
