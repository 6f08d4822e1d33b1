package models

import "errors"

// ErrNotFound reports that a requested counter does not exist. Storage
// backends wrap it, so callers match it with errors.Is regardless of which
// backend produced the error.
var ErrNotFound = errors.New("counter not found")
