// Package flat provides a brute-force inner-product index.
//
// Exact search over every live vector: the right trade-off for catalogs in
// the tens of thousands of entries, where recall must be 100% and the
// scan cost is negligible next to embedding extraction.
package flat

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/visearch/distance"
	"github.com/hupe1980/visearch/index"
	"github.com/hupe1980/visearch/internal/queue"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all inserts and searches.
	Dimension int
}

// indexState holds the immutable state of the index for lock-free reads.
type indexState struct {
	vectors map[uint32][]float32
	live    *roaring.Bitmap
}

// Flat is a flat index for vector storage and exact search.
// It uses a copy-on-write pattern for lock-free concurrent reads.
type Flat struct {
	state   atomic.Value // holds *indexState
	writeMu sync.Mutex   // serializes writes only
	opts    Options
}

// New creates a new flat index. Dimension must be positive.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &index.ErrDimensionMismatch{Expected: 1, Actual: opts.Dimension}
	}

	f := &Flat{opts: opts}
	f.state.Store(&indexState{
		vectors: make(map[uint32][]float32),
		live:    roaring.New(),
	})

	return f, nil
}

// WithDimension sets the vector dimensionality.
func WithDimension(dim int) func(o *Options) {
	return func(o *Options) { o.Dimension = dim }
}

// Name identifies the index implementation.
func (*Flat) Name() string { return "Flat" }

func (f *Flat) getState() *indexState {
	return f.state.Load().(*indexState)
}

func (f *Flat) cloneState(st *indexState) *indexState {
	vectors := make(map[uint32][]float32, len(st.vectors))
	for id, v := range st.vectors {
		vectors[id] = v
	}
	return &indexState{
		vectors: vectors,
		live:    st.live.Clone(),
	}
}

// Add inserts a vector under an explicit id.
// The vector is copied; callers keep ownership of v.
func (f *Flat) Add(ctx context.Context, id uint32, v []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(v) == 0 {
		return index.ErrEmptyVector
	}
	if len(v) != f.opts.Dimension {
		return &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(v)}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.getState()
	if oldState.live.Contains(id) {
		return &index.ErrDuplicateID{ID: id}
	}

	vec := make([]float32, len(v))
	copy(vec, v)

	newState := f.cloneState(oldState)
	newState.vectors[id] = vec
	newState.live.Add(id)

	f.state.Store(newState)
	return nil
}

// Remove deletes the listed ids from the index. Absent ids are no-ops.
func (f *Flat) Remove(ctx context.Context, ids *roaring.Bitmap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ids == nil || ids.IsEmpty() {
		return nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.getState()
	newState := f.cloneState(oldState)

	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		if newState.live.Contains(id) {
			newState.live.Remove(id)
			delete(newState.vectors, id)
		}
	}

	f.state.Store(newState)
	return nil
}

// Search performs an exact k-nearest search by inner product.
// Results are ordered by descending score. This method is lock-free
// for reads using the copy-on-write pattern.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]index.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(query) != f.opts.Dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.opts.Dimension, Actual: len(query)}
	}

	st := f.getState()
	population := int(st.live.GetCardinality())
	if population == 0 {
		return nil, nil
	}
	if k > population {
		k = population
	}

	// Min-heap of size k keyed on score: the top is the current worst
	// candidate and the eviction point for the scan.
	top := queue.NewMin(k)
	it := st.live.Iterator()
	for it.HasNext() {
		id := it.Next()
		vec, ok := st.vectors[id]
		if !ok {
			continue
		}
		score := distance.Dot(query, vec)

		if top.Len() < k {
			top.Push(queue.Item{ID: id, Score: score})
			continue
		}
		if worst, _ := top.Top(); score > worst.Score {
			top.Pop()
			top.Push(queue.Item{ID: id, Score: score})
		}
	}

	results := make([]index.SearchResult, top.Len())
	for i := top.Len() - 1; i >= 0; i-- {
		item, _ := top.Pop()
		results[i] = index.SearchResult{ID: item.ID, Score: item.Score}
	}
	return results, nil
}

// Count returns the number of live vectors.
func (f *Flat) Count() int {
	return int(f.getState().live.GetCardinality())
}

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int {
	return f.opts.Dimension
}
