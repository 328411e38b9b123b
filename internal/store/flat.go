package store

import (
	"context"
	"math"
	"sort"
	"sync"
)

// FlatIndex is the exact-scan vector index. Every search computes cosine
// similarity against all stored vectors, so results are exact and fully
// deterministic. It is the reference algorithm; approximate backends must
// reproduce its results on small corpora.
type FlatIndex struct {
	mu   sync.RWMutex
	dim  int
	vecs map[string][]float32
}

// NewFlatIndex creates an empty exact-scan index. The dimension is fixed by
// the first Add; pass dim > 0 to pin it up front (e.g. when loading a
// snapshot built with a known embedder).
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{
		dim:  dim,
		vecs: make(map[string][]float32),
	}
}

// Add inserts or replaces the embedding for a chunk.
func (f *FlatIndex) Add(_ context.Context, id string, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dim == 0 {
		f.dim = len(vec)
	}
	if len(vec) != f.dim {
		return &DimensionError{Expected: f.dim, Got: len(vec)}
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	f.vecs[id] = stored
	return nil
}

// Search scans all vectors and returns the k most cosine-similar chunks,
// ordered by descending similarity, ties broken by chunk ID ascending.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vecs) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != f.dim {
		return nil, &DimensionError{Expected: f.dim, Got: len(query)}
	}

	results := make([]*VectorResult, 0, len(f.vecs))
	i := 0
	for id, vec := range f.vecs {
		// Check for cancellation periodically during large scans.
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i++
		results = append(results, &VectorResult{
			ID:    id,
			Score: cosineSimilarity(query, vec),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Remove deletes a chunk's embedding.
func (f *FlatIndex) Remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vecs, id)
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vecs)
}

// Dimensions returns the fixed dimension, or 0 before the first insert.
func (f *FlatIndex) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// ForEach visits every stored (id, vector) pair until fn returns false.
func (f *FlatIndex) ForEach(fn func(id string, vec []float32) bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, vec := range f.vecs {
		if !fn(id, vec) {
			return
		}
	}
}

// Clone returns an independent deep copy.
func (f *FlatIndex) Clone() VectorIndex {
	f.mu.RLock()
	defer f.mu.RUnlock()

	clone := NewFlatIndex(f.dim)
	for id, vec := range f.vecs {
		copied := make([]float32, len(vec))
		copy(copied, vec)
		clone.vecs[id] = copied
	}
	return clone
}

// Stats returns index statistics.
func (f *FlatIndex) Stats() VectorIndexStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return VectorIndexStats{Count: len(f.vecs), Dimensions: f.dim, Backend: "flat"}
}

// Verify interface implementation
var _ VectorIndex = (*FlatIndex)(nil)

// cosineSimilarity computes dot(a,b) / (|a| * |b|). Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
