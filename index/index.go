// Package index defines the nearest-neighbor index abstraction used by the
// catalog. The catalog's consistency logic is implementation-independent:
// any index that supports explicit-id insertion, inner-product search and
// id-selector removal can back it.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

var (
	// ErrEmptyVector is returned when an empty vector is inserted or queried.
	ErrEmptyVector = errors.New("vector must not be empty")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrDuplicateID is returned when an id is inserted twice.
type ErrDuplicateID struct {
	ID uint32
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("id %d already present in index", e.ID)
}

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the stable identifier of the stored vector.
	ID uint32

	// Score is the raw inner-product score between query and vector.
	// For unit vectors this equals the cosine similarity in [-1,1],
	// modulo floating-point error.
	Score float32
}

// Index stores normalized vectors under stable caller-assigned ids and
// serves k-nearest queries by inner product.
//
// Implementations must survive removal without a full rebuild: an id that
// was removed never reappears in search results, and ids are never assigned
// by the index itself.
type Index interface {
	// Add inserts a vector under an explicit id.
	Add(ctx context.Context, id uint32, vec []float32) error

	// Search returns at most k results ordered by descending score.
	// k is clamped to the live population; an empty index yields an
	// empty result without error.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// Remove deletes the listed ids. Absent ids are ignored.
	Remove(ctx context.Context, ids *roaring.Bitmap) error

	// Count returns the number of live vectors.
	Count() int

	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// Save writes the index state to w.
	Save(w io.Writer) error

	// Load replaces the index state from r.
	Load(r io.Reader) error
}

// Factory builds a fresh empty index of the given dimensionality.
// The catalog uses it for Reset and for cold-start rebuilds.
type Factory func(dimension int) (Index, error)
