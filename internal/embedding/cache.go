package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached memoizes another provider with an in-process ristretto cache keyed
// by the input text. Safe because providers are deterministic for a fixed
// model; a cache miss just falls through to the inner provider.
type Cached struct {
	inner Provider
	cache *ristretto.Cache
}

// NewCached wraps inner with a cache holding up to maxEntries vectors.
// maxEntries <= 0 selects a small default.
func NewCached(inner Provider, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Dimensions returns the inner provider's embedding size.
func (c *Cached) Dimensions() int {
	return c.inner.Dimensions()
}

// Embed returns the cached vector when present, otherwise embeds and
// caches. Admission is best-effort; a rejected Set only costs a future
// recompute.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

var _ Provider = (*Cached)(nil)
