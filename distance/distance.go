// Package distance provides the vector math used by the catalog index.
//
// All similarity in this repo is inner product over unit vectors, so the
// raw score of two normalized vectors is their cosine similarity in [-1,1].
package distance

import (
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm; v is left unchanged in that case.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
//
// The zero vector cannot be normalized; it is returned as an unchanged copy
// with ok=false. Such a vector never scores above the minimum similarity,
// which is the degenerate behavior the catalog relies on.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	ok := NormalizeL2InPlace(dst)
	return dst, ok
}

// Clip bounds x to [lo, hi].
//
// Floating-point error can push the dot product of unit vectors slightly
// outside [-1,1]; consumers clip before deriving anything from the score.
func Clip(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
