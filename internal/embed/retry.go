package embed

import (
	"context"
	"errors"
	"time"
)

// RetryEmbedder wraps an Embedder with bounded exponential backoff for
// transient provider failures. Only ErrUnavailable is retried; malformed
// input and dimension errors surface immediately.
type RetryEmbedder struct {
	inner      Embedder
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryEmbedder creates a retrying embedder.
func NewRetryEmbedder(inner Embedder, maxRetries int, baseDelay time.Duration) *RetryEmbedder {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &RetryEmbedder{inner: inner, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Embed generates the embedding for a single text, retrying on transient
// failure.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.retry(ctx, func() error {
		var embedErr error
		vec, embedErr = r.inner.Embed(ctx, text)
		return embedErr
	})
	return vec, err
}

// EmbedBatch generates embeddings for multiple texts, retrying on transient
// failure.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.retry(ctx, func() error {
		var embedErr error
		vecs, embedErr = r.inner.EmbedBatch(ctx, texts)
		return embedErr
	})
	return vecs, err
}

// retry runs fn up to maxRetries+1 times with doubling delays.
func (r *RetryEmbedder) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := r.baseDelay

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrUnavailable) {
			return lastErr
		}
	}
	return lastErr
}

// Dimensions returns the embedding dimension (passthrough).
func (r *RetryEmbedder) Dimensions() int { return r.inner.Dimensions() }

// ModelName returns the model identifier (passthrough).
func (r *RetryEmbedder) ModelName() string { return r.inner.ModelName() }

// Available reports readiness (passthrough).
func (r *RetryEmbedder) Available(ctx context.Context) bool { return r.inner.Available(ctx) }

// Close closes the inner embedder.
func (r *RetryEmbedder) Close() error { return r.inner.Close() }

// Verify interface implementation
var _ Embedder = (*RetryEmbedder)(nil)
