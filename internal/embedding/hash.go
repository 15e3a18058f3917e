package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultHashDimensions = 384

// Hash is a deterministic offline embedder: it counts lower-cased character
// trigrams hashed into a fixed number of buckets and normalizes the counts
// to a unit vector. Texts sharing substrings get a positive cosine
// similarity, which is enough for local development and tests without a
// model backend. All bucket values are non-negative, so similarity never
// goes below zero.
type Hash struct {
	dims int
}

// NewHash creates a hash provider. dims <= 0 selects the default width.
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &Hash{dims: dims}
}

// Dimensions returns the embedding size.
func (h *Hash) Dimensions() int {
	return h.dims
}

// Embed maps text to its normalized trigram-count vector. Texts shorter
// than one trigram hash as a single token.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	runes := []rune(strings.ToLower(text))

	if len(runes) < 3 {
		vec[h.bucket(string(runes))]++
		return normalize(vec), nil
	}
	for i := 0; i+3 <= len(runes); i++ {
		vec[h.bucket(string(runes[i:i+3]))]++
	}
	return normalize(vec), nil
}

func (h *Hash) bucket(token string) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(token))
	return int(hasher.Sum32() % uint32(h.dims))
}

// normalize scales the vector to unit length. A zero vector stays zero.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

var _ Provider = (*Hash)(nil)
