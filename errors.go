package visearch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a product id is not in the catalog.
	ErrNotFound = errors.New("product not found")

	// ErrCorruptSnapshot indicates an unreadable or partially missing
	// snapshot artifact pair. It is never fatal: callers fall back to a
	// full rebuild.
	ErrCorruptSnapshot = errors.New("corrupt or incomplete snapshot")

	// ErrInvalidThreshold is returned when a client similarity threshold
	// is outside [0,1].
	ErrInvalidThreshold = errors.New("similarity threshold must be in [0,1]")
)

// ErrDimensionMismatch indicates a vector/index dimensionality mismatch.
// When raised during snapshot load it means the cached index was built by a
// different embedding model and must be discarded.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }
