package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndexSearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)

	require.NoError(t, idx.Add(ctx, "exact", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "close", []float32{0.9, 0.1, 0}))
	require.NoError(t, idx.Add(ctx, "far", []float32{0, 0, 1}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "close", results[1].ID)
	assert.Equal(t, "far", results[2].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Greater(t, results[1].Score, results[2].Score)
}

func TestFlatIndexTiesBreakByID(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)

	// Identical vectors produce identical scores.
	require.NoError(t, idx.Add(ctx, "b", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "c", []float32{1, 0}))

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
}

func TestFlatIndexKBound(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, idx.Add(ctx, id, []float32{1, 0}))
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFlatIndexEmptySearch(t *testing.T) {
	idx := NewFlatIndex(0)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0, 0}))

	var dimErr *DimensionError
	err := idx.Add(ctx, "b", []float32{1, 0})
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = idx.Search(ctx, []float32{1}, 5)
	assert.ErrorAs(t, err, &dimErr)
}

func TestFlatIndexAddReplacesAndRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "a", []float32{0, 1}))
	assert.Equal(t, 1, idx.Size())

	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	idx.Remove("a")
	assert.Equal(t, 0, idx.Size())
	idx.Remove("a") // absent ID is a no-op
}

func TestFlatIndexCloneIndependence(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))

	clone := idx.Clone()
	require.NoError(t, clone.Add(ctx, "b", []float32{0, 1}))
	clone.Remove("a")

	assert.Equal(t, 1, idx.Size())
	assert.Equal(t, 1, clone.Size())

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, "a", results[0].ID)
}

func TestFlatIndexCancelledContext(t *testing.T) {
	ctx := context.Background()
	idx := NewFlatIndex(0)
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err := idx.Search(cancelled, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
