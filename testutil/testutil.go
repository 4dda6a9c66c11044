// Package testutil provides deterministic data generators for tests.
package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/visearch/distance"
	"github.com/hupe1980/visearch/model"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Float32 returns a pseudo-random number in [0.0, 1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unitVectorLocked(dimensions)
}

// UnitVectors generates num L2-normalized random vectors.
func (r *RNG) UnitVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = r.unitVectorLocked(dimensions)
	}
	return vectors
}

func (r *RNG) unitVectorLocked(dimensions int) []float32 {
	vec := make([]float32, dimensions)
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		norm = 1
	}
	invNorm := float32(1.0 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= invNorm
	}
	return vec
}

// Products generates num products named prod_0..prod_{num-1} with matching
// image paths under dir.
func Products(dir string, num int) []model.Product {
	products := make([]model.Product, num)
	for i := range products {
		id := fmt.Sprintf("prod_%d", i)
		products[i] = model.Product{
			ID:        id,
			Name:      fmt.Sprintf("Product %d", i),
			ImagePath: dir + "/" + id + ".jpg",
		}
	}
	return products
}

// BruteForceCosine ranks vectors by inner product with the normalized query,
// descending. Used as ground truth for index search tests.
func BruteForceCosine(vectors [][]float32, query []float32, k int) []int {
	q, _ := distance.NormalizeL2Copy(query)

	type result struct {
		idx   int
		score float32
	}
	results := make([]result, len(vectors))
	for i, v := range vectors {
		results[i] = result{idx: i, score: distance.Dot(q, v)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > k {
		results = results[:k]
	}

	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.idx
	}
	return out
}
