// Package embed defines the embedding provider contract used to turn
// chunk text into vectors, plus caching and resiliency wrappers around
// it.
package embed

import "context"

// Embedder generates vector embeddings for text. Implementations call
// out to an external model or service; callers never block a
// library's lock while an Embedder call is in flight.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension this Embedder produces.
	Dimensions() int

	// ModelName returns the model identifier, used as part of the
	// cache key so switching models can't return stale vectors.
	ModelName() string
}
