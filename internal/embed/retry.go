package embed

import (
	"context"

	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// RetryingEmbedder retries a transient Embed/EmbedBatch failure with
// exponential backoff before surfacing it as EmbeddingFailure.
type RetryingEmbedder struct {
	inner  Embedder
	config vdberrors.RetryConfig
}

// NewRetryingEmbedder wraps inner with cfg's backoff schedule.
func NewRetryingEmbedder(inner Embedder, cfg vdberrors.RetryConfig) *RetryingEmbedder {
	return &RetryingEmbedder{inner: inner, config: cfg}
}

// NewRetryingEmbedderWithDefaults wraps inner with vdberrors.DefaultRetryConfig().
func NewRetryingEmbedderWithDefaults(inner Embedder) *RetryingEmbedder {
	return NewRetryingEmbedder(inner, vdberrors.DefaultRetryConfig())
}

func (r *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := vdberrors.Retry(ctx, r.config, func() error {
		v, err := r.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, vdberrors.EmbeddingFailure(err)
	}
	return vec, nil
}

func (r *RetryingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := vdberrors.Retry(ctx, r.config, func() error {
		v, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		vecs = v
		return nil
	})
	if err != nil {
		return nil, vdberrors.EmbeddingFailure(err)
	}
	return vecs, nil
}

func (r *RetryingEmbedder) Dimensions() int   { return r.inner.Dimensions() }
func (r *RetryingEmbedder) ModelName() string { return r.inner.ModelName() }

// Inner returns the wrapped Embedder, for layering with CachedEmbedder
// or CircuitBreakerEmbedder.
func (r *RetryingEmbedder) Inner() Embedder { return r.inner }
