package hyperloglog

var (
	// ErrInvalidBucketCount is returned by New when the bucket count is not
	// a power of two between 1 and 2^24.
	ErrInvalidBucketCount = &HLLError{"bucket count must be a power of two between 1 and 2^24"}

	// ErrBucketCountMismatch is returned when merging sketches with
	// different bucket counts.
	ErrBucketCountMismatch = &HLLError{"bucket count mismatch"}

	// ErrInvalidData is returned when deserializing invalid sketch data.
	ErrInvalidData = &HLLError{"invalid serialized data"}
)

// HLLError represents an error in HyperLogLog operations.
type HLLError struct {
	message string
}

func (e *HLLError) Error() string {
	return "hyperloglog: " + e.message
}
