// Package index defines the similarity-search collaborator contract
// (IndexBuilder/IndexReader, spec.md §6) and ships one concrete
// implementation: a hashing-trick bag-of-words vectorizer with cosine
// distance to the nearest baseline row.
package index

import (
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IndexBuilder accumulates tokenized baseline lines.
type IndexBuilder interface {
	Add(tokens string)
	Build() IndexReader
}

// IndexReader answers nearest-neighbour distance queries against the
// built index. Distance returns one non-negative scalar per input
// token string, same length and order as the input; lower means more
// similar to something seen during training.
type IndexReader interface {
	Distance(tokens []string) []float32
}

// numBins controls the hashing-trick vector width. A wider space
// reduces bin collisions between unrelated tokens at the cost of more
// memory per row.
const numBins = 4096

// vector is a sparse, L2-normalized term-frequency vector over the
// hashed bin space. Only non-zero bins are stored.
type vector map[uint32]float64

func vectorize(tokens string) vector {
	words := strings.Fields(tokens)
	v := make(vector, len(words))
	for _, w := range words {
		bin := uint32(xxhash.Sum64String(w) % numBins)
		v[bin]++
	}
	normalize(v)
	return v
}

func normalize(v vector) {
	var sumSquares float64
	for _, weight := range v {
		sumSquares += weight * weight
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for bin := range v {
		v[bin] /= norm
	}
}

// cosineDistance returns 1 - cosine_similarity(a, b), clamped to
// [0, 1] to absorb floating point noise.
func cosineDistance(a, b vector) float64 {
	small, big := a, b
	if len(a) > len(b) {
		small, big = b, a
	}
	var dot float64
	for bin, weight := range small {
		if otherWeight, ok := big[bin]; ok {
			dot += weight * otherWeight
		}
	}
	dist := 1 - dot
	if dist < 0 {
		dist = 0
	}
	if dist > 1 {
		dist = 1
	}
	return dist
}

// FeaturesMatrixBuilder is the concrete IndexBuilder: it just
// accumulates one row per Add call.
type FeaturesMatrixBuilder struct {
	rows []vector
}

// NewFeaturesMatrixBuilder returns an empty builder.
func NewFeaturesMatrixBuilder() *FeaturesMatrixBuilder {
	return &FeaturesMatrixBuilder{}
}

func (b *FeaturesMatrixBuilder) Add(tokens string) {
	b.rows = append(b.rows, vectorize(tokens))
}

func (b *FeaturesMatrixBuilder) Build() IndexReader {
	return &FeaturesMatrix{rows: b.rows}
}

// FeaturesMatrix is the concrete IndexReader: a read-only set of
// baseline row vectors queried for nearest-neighbour distance.
type FeaturesMatrix struct {
	rows []vector
}

// Distance implements IndexReader. With no baseline rows at all, every
// query is maximally dissimilar (distance 1.0) by convention: an empty
// baseline has seen nothing to be similar to.
func (m *FeaturesMatrix) Distance(tokens []string) []float32 {
	out := make([]float32, len(tokens))
	for i, t := range tokens {
		if len(m.rows) == 0 {
			out[i] = 1.0
			continue
		}
		q := vectorize(t)
		best := 1.0
		for _, row := range m.rows {
			d := cosineDistance(q, row)
			if d < best {
				best = d
			}
			if best == 0 {
				break
			}
		}
		out[i] = float32(best)
	}
	return out
}
