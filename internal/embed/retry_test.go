package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEmbedder fails a fixed number of times before succeeding.
type flakyEmbedder struct {
	*StaticEmbedder
	failures int
	calls    int
	err      error
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.StaticEmbedder.Embed(ctx, text)
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestRetryEmbedderRecoversFromTransientFailure(t *testing.T) {
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       2,
		err:            ErrUnavailable,
	}
	r := NewRetryEmbedder(inner, 3, time.Millisecond)

	vec, err := r.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryEmbedderExhaustsRetries(t *testing.T) {
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       100,
		err:            ErrUnavailable,
	}
	r := NewRetryEmbedder(inner, 2, time.Millisecond)

	_, err := r.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, inner.calls) // initial attempt + 2 retries
}

func TestRetryEmbedderDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("bad input")
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       100,
		err:            permanent,
	}
	r := NewRetryEmbedder(inner, 3, time.Millisecond)

	_, err := r.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryEmbedderHonorsContext(t *testing.T) {
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       100,
		err:            ErrUnavailable,
	}
	r := NewRetryEmbedder(inner, 5, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.Embed(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryEmbedderBatch(t *testing.T) {
	inner := &flakyEmbedder{
		StaticEmbedder: NewStaticEmbedder(),
		failures:       1,
		err:            ErrUnavailable,
	}
	r := NewRetryEmbedder(inner, 3, time.Millisecond)

	vecs, err := r.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}
