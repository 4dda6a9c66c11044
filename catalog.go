package visearch

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/visearch/distance"
	"github.com/hupe1980/visearch/index"
	"github.com/hupe1980/visearch/model"
	"github.com/hupe1980/visearch/pk"
)

// Catalog is the composite vector index: one nearest-neighbor index, an
// ordered product list, a product lookup map and the product/index-id
// bijection. It owns all four structures exclusively; products handed to
// callers are copies.
//
// Invariant: the ordered list, the lookup map and the live index
// population always have equal size, and every live product has exactly
// one entry in each id-map direction.
//
// A single RWMutex guards the composite: reads may run concurrently with
// each other but never with a mutation.
type Catalog struct {
	mu sync.RWMutex

	dim      int
	newIndex index.Factory
	idx      index.Index

	ordered []model.Product
	byID    map[string]model.Product
	vectors map[string][]float32 // normalized, keyed by product id
	ids     *pk.Map

	// Dense row-major matrix of live normalized vectors, rebuilt lazily
	// for CountMatches and invalidated on every mutation.
	matrix      []float32
	matrixIDs   []string
	matrixValid bool

	opts Options
}

// New creates an empty catalog for vectors of the given dimensionality.
func New(dimension int, optFns ...func(o *Options)) (*Catalog, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.IndexFactory == nil {
		opts.IndexFactory = defaultIndexFactory
	}
	if opts.Codec == nil {
		opts.Codec = defaultCodec()
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}
	if dimension <= 0 {
		return nil, &ErrDimensionMismatch{Expected: 1, Actual: dimension}
	}

	idx, err := opts.IndexFactory(dimension)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		dim:      dimension,
		newIndex: opts.IndexFactory,
		idx:      idx,
		byID:     make(map[string]model.Product),
		vectors:  make(map[string][]float32),
		ids:      pk.NewMap(),
		opts:     opts,
	}, nil
}

// Dimension returns the fixed vector dimensionality of the catalog.
func (c *Catalog) Dimension() int {
	return c.dim
}

// Size returns the number of products in the catalog.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordered)
}

// GetProduct returns the product with the given id.
func (c *Catalog) GetProduct(productID string) (model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[productID]
	if !ok {
		return model.Product{}, false
	}
	return p.Clone(), true
}

// Products returns an ordered snapshot of all products.
func (c *Catalog) Products() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Product, len(c.ordered))
	for i, p := range c.ordered {
		out[i] = p.Clone()
	}
	return out
}

// AddProduct normalizes rawVector and indexes the product under a fresh
// index id. If a product with the same id already exists it is fully
// removed first, so re-adding is replace, not duplicate. The position
// selects which end of the ordered list receives the record.
func (c *Catalog) AddProduct(ctx context.Context, p model.Product, rawVector []float32, pos model.Position) error {
	// Checked before any mutation. A replace first drops the existing
	// record, so a cancellation surfacing between the drop and the new
	// insert would silently turn the replace into a delete.
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(rawVector) != c.dim {
		return &ErrDimensionMismatch{Expected: c.dim, Actual: len(rawVector)}
	}

	// The zero vector stays unchanged; it can never match anything
	// above the minimum similarity, which is the intended degenerate
	// behavior.
	vec, _ := distance.NormalizeL2Copy(rawVector)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[p.ID]; exists {
		if err := c.removeLocked(ctx, p.ID); err != nil {
			return err
		}
	}

	id := c.ids.Allocate(p.ID)
	if err := c.idx.Add(ctx, id, vec); err != nil {
		c.ids.Delete(p.ID)
		return err
	}

	stored := p.Clone()
	switch pos {
	case model.PositionFront:
		c.ordered = append([]model.Product{stored}, c.ordered...)
	default:
		c.ordered = append(c.ordered, stored)
	}
	c.byID[p.ID] = stored
	c.vectors[p.ID] = vec
	c.matrixValid = false

	return nil
}

// RemoveProduct removes the product with the given id from all owned
// structures. It returns ErrNotFound if the id is unknown.
func (c *Catalog) RemoveProduct(ctx context.Context, productID string) (model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.byID[productID]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	if err := c.removeLocked(ctx, productID); err != nil {
		return model.Product{}, err
	}
	return p.Clone(), nil
}

// removeLocked removes one product from all four structures.
// Caller holds the write lock.
func (c *Catalog) removeLocked(ctx context.Context, productID string) error {
	id, ok := c.ids.Lookup(productID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, productID)
	}

	if err := c.idx.Remove(ctx, roaring.BitmapOf(id)); err != nil {
		return err
	}

	for i, p := range c.ordered {
		if p.ID == productID {
			c.ordered = append(c.ordered[:i], c.ordered[i+1:]...)
			break
		}
	}
	delete(c.byID, productID)
	delete(c.vectors, productID)
	c.ids.Delete(productID)
	c.matrixValid = false

	return nil
}

// Search returns up to topK products ordered by descending similarity.
// Raw cosine scores are clipped to [-1,1] and mapped to the client-facing
// [0,1] range via (score+1)/2. Index ids without a live product are
// silently skipped.
func (c *Catalog) Search(ctx context.Context, query []float32, topK int) ([]model.SearchResult, error) {
	if len(query) != c.dim {
		return nil, &ErrDimensionMismatch{Expected: c.dim, Actual: len(query)}
	}
	if topK <= 0 {
		return nil, index.ErrInvalidK
	}

	q, _ := distance.NormalizeL2Copy(query)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.ordered) == 0 {
		return nil, nil
	}
	if topK > len(c.ordered) {
		topK = len(c.ordered)
	}

	raw, err := c.idx.Search(ctx, q, topK)
	if err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(raw))
	for _, r := range raw {
		productID, ok := c.ids.Reverse(r.ID)
		if !ok {
			continue
		}
		p, ok := c.byID[productID]
		if !ok {
			continue
		}
		sim := (distance.Clip(r.Score, -1, 1) + 1) / 2
		results = append(results, model.SearchResult{
			Product:    p.Clone(),
			Similarity: sim,
		})
	}
	return results, nil
}

// CountMatches counts, over all live vectors, how many score at least the
// given client threshold against the query. The client threshold in [0,1]
// is mapped back to cosine space via threshold*2-1; a converted threshold
// of -1 or lower means every vector matches, so the scan is skipped.
func (c *Catalog) CountMatches(ctx context.Context, query []float32, clientThreshold float32) (int, error) {
	if clientThreshold < 0 || clientThreshold > 1 {
		return 0, ErrInvalidThreshold
	}
	if len(query) != c.dim {
		return 0, &ErrDimensionMismatch{Expected: c.dim, Actual: len(query)}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cosThreshold := clientThreshold*2 - 1
	if cosThreshold <= -1 {
		return c.Size(), nil
	}

	q, _ := distance.NormalizeL2Copy(query)

	c.mu.RLock()
	if c.matrixValid {
		count := c.scanMatrixLocked(q, cosThreshold)
		c.mu.RUnlock()
		return count, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuildMatrixLocked()
	return c.scanMatrixLocked(q, cosThreshold), nil
}

// rebuildMatrixLocked refreshes the dense matrix of live normalized
// vectors. Caller holds the write lock.
func (c *Catalog) rebuildMatrixLocked() {
	if c.matrixValid {
		return
	}
	c.matrix = make([]float32, 0, len(c.ordered)*c.dim)
	c.matrixIDs = make([]string, 0, len(c.ordered))
	for _, p := range c.ordered {
		vec, ok := c.vectors[p.ID]
		if !ok {
			continue
		}
		c.matrix = append(c.matrix, vec...)
		c.matrixIDs = append(c.matrixIDs, p.ID)
	}
	c.matrixValid = true
}

// scanMatrixLocked counts rows scoring at least cosThreshold against q.
// Caller holds at least the read lock and the matrix is valid.
func (c *Catalog) scanMatrixLocked(q []float32, cosThreshold float32) int {
	count := 0
	for i := 0; i < len(c.matrixIDs); i++ {
		row := c.matrix[i*c.dim : (i+1)*c.dim]
		if distance.Clip(distance.Dot(q, row), -1, 1) >= cosThreshold {
			count++
		}
	}
	return count
}

// Reset clears all owned structures and reinitializes the index to empty
// with the same dimensionality. The index-id allocator keeps its position:
// ids stay monotonic for the process lifetime.
func (c *Catalog) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.newIndex(c.dim)
	if err != nil {
		return err
	}

	c.idx = idx
	c.ordered = nil
	c.byID = make(map[string]model.Product)
	c.vectors = make(map[string][]float32)
	c.ids = pk.Restore(nil, c.ids.NextID())
	c.matrix = nil
	c.matrixIDs = nil
	c.matrixValid = false

	return nil
}
