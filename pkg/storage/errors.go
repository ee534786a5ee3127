package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when an object (or the parent of an object
	// being stored) does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrConflict is returned when an operation would break the tree, such
	// as deleting the root object, or lost a race with a concurrent write.
	// Writes that fail with ErrConflict may be retried.
	ErrConflict = errors.New("object conflict")

	// ErrInvalidPath is returned for paths that are not absolute or contain
	// empty, "." or ".." segments.
	ErrInvalidPath = errors.New("invalid object path")
)
