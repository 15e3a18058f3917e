// Package embedding turns free text into normalized fixed-dimension vectors
// for cosine similarity search.
package embedding

import "context"

// Provider is the embedding contract. Implementations are deterministic for
// a fixed model: identical input text yields an identical vector, which both
// the similarity ranking and the cache below rely on.
type Provider interface {
	// Embed returns the vector for the given text. Callers never pass blank
	// text; the event store skips embedding blank content and substitutes a
	// single space for blank queries.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the fixed width of every vector this provider returns.
	Dimensions() int
}
