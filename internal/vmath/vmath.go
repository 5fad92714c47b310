// Package vmath provides the float32 vector arithmetic shared by every
// index implementation: normalization, dot product, and the centroid
// computation used by IVF training.
package vmath

import (
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"
)

// Normalize returns a unit-length copy of v. A zero vector is returned
// unchanged since it has no direction to normalize.
func Normalize(v []float32) []float32 {
	norm := math32.Sqrt(vek32.Dot(v, v))
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	out := make([]float32, len(v))
	inv := 1 / norm
	for i, x := range v {
		out[i] = x * inv
	}
	return out
}

// Dot returns the dot product of a and b. For unit-normalized vectors
// this equals their cosine similarity.
func Dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// CosineSimilarity returns the cosine similarity of a and b,
// independent of whether either has been pre-normalized. Returns 0 if
// either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	dot := vek32.Dot(a, b)
	normA := math32.Sqrt(vek32.Dot(a, a))
	normB := math32.Sqrt(vek32.Dot(b, b))
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (normA * normB)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// Centroid returns the L2-normalized arithmetic mean of vectors, which
// must be non-empty and share a common dimension. Since every index
// operates on unit-normalized vectors, a centroid that didn't
// renormalize after averaging would be the one vector in the index
// not comparable by plain dot product.
func Centroid(vectors [][]float32) []float32 {
	dim := len(vectors[0])
	sum := make([]float32, dim)
	for _, v := range vectors {
		for i, x := range v {
			sum[i] += x
		}
	}
	inv := 1 / float32(len(vectors))
	for i := range sum {
		sum[i] *= inv
	}
	return Normalize(sum)
}

// SquaredEuclideanDistance returns the squared Euclidean distance
// between a and b, used by IVF's k-means++ seeding where avoiding a
// square root per comparison matters.
func SquaredEuclideanDistance(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
