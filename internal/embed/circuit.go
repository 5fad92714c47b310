package embed

import (
	"context"
	"time"

	"github.com/driftdb/vectorcore/internal/vdberrors"
)

// CircuitBreakerEmbedder wraps an Embedder with a circuit breaker so a
// flaky provider fails fast instead of stalling every caller on
// inserts and searches. After maxFailures consecutive failures the
// breaker opens and every call returns an EmbeddingFailure immediately
// until resetTimeout elapses, at which point a single probe call is
// allowed through (half-open).
type CircuitBreakerEmbedder struct {
	inner Embedder
	cb    *vdberrors.CircuitBreaker
}

// NewCircuitBreakerEmbedder wraps inner with a circuit breaker named
// after inner's model, tripping after maxFailures consecutive failures
// and probing again after resetTimeout.
func NewCircuitBreakerEmbedder(inner Embedder, maxFailures int, resetTimeout time.Duration) *CircuitBreakerEmbedder {
	cb := vdberrors.NewCircuitBreaker(
		"embedder:"+inner.ModelName(),
		vdberrors.WithMaxFailures(maxFailures),
		vdberrors.WithResetTimeout(resetTimeout),
	)
	return &CircuitBreakerEmbedder{inner: inner, cb: cb}
}

func (c *CircuitBreakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.cb.Allow() {
		return nil, vdberrors.EmbeddingFailure(vdberrors.ErrCircuitOpen)
	}

	vec, err := vdberrors.CircuitExecuteWithResult(c.cb,
		func() ([]float32, error) { return c.inner.Embed(ctx, text) },
		func() ([]float32, error) { return nil, vdberrors.ErrCircuitOpen },
	)
	if err != nil {
		return nil, vdberrors.EmbeddingFailure(err)
	}
	return vec, nil
}

func (c *CircuitBreakerEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.cb.Allow() {
		return nil, vdberrors.EmbeddingFailure(vdberrors.ErrCircuitOpen)
	}

	vecs, err := vdberrors.CircuitExecuteWithResult(c.cb,
		func() ([][]float32, error) { return c.inner.EmbedBatch(ctx, texts) },
		func() ([][]float32, error) { return nil, vdberrors.ErrCircuitOpen },
	)
	if err != nil {
		return nil, vdberrors.EmbeddingFailure(err)
	}
	return vecs, nil
}

func (c *CircuitBreakerEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CircuitBreakerEmbedder) ModelName() string { return c.inner.ModelName() }

// State reports the breaker's current state, for logging/metrics.
func (c *CircuitBreakerEmbedder) State() vdberrors.State { return c.cb.State() }
