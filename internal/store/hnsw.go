package store

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex is an approximate vector index backed by coder/hnsw. It trades a
// small, bounded recall loss (governed by EfSearch) for sub-linear search on
// large corpora. Below the engine's corpus threshold the FlatIndex is used
// instead, so small indexes always see exact results.
//
// Vectors are kept in a side map alongside the graph: the graph cannot
// enumerate or deep-copy itself, and lazy deletion leaves orphan nodes behind,
// so the map is the source of truth for Size, ForEach and Clone.
type HNSWIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	vecs  map[string][]float32
	dim   int
	cfg   HNSWConfig
}

// HNSWConfig tunes the graph build and search parameters.
type HNSWConfig struct {
	// M is the maximum connections per layer.
	M int

	// EfSearch is the query-time search width. Larger values raise recall
	// at the cost of latency.
	EfSearch int
}

// DefaultHNSWConfig returns the parameters used when none are given.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfSearch: 64}
}

// NewHNSWIndex creates an empty approximate index with cosine distance.
func NewHNSWIndex(dim int, cfg HNSWConfig) *HNSWIndex {
	if cfg.M <= 0 {
		cfg.M = DefaultHNSWConfig().M
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultHNSWConfig().EfSearch
	}

	graph := hnsw.NewGraph[string]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch

	return &HNSWIndex{
		graph: graph,
		vecs:  make(map[string][]float32),
		dim:   dim,
		cfg:   cfg,
	}
}

// Add inserts or replaces the embedding for a chunk.
// Replacement uses lazy deletion: the old node stays in the graph but is
// filtered from results, matching the side map.
func (h *HNSWIndex) Add(_ context.Context, id string, vec []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dim == 0 {
		h.dim = len(vec)
	}
	if len(vec) != h.dim {
		return &DimensionError{Expected: h.dim, Got: len(vec)}
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	h.vecs[id] = stored
	h.graph.Add(hnsw.MakeNode(id, stored))
	return nil
}

// Search returns approximately the k nearest chunks. Over-fetching by the
// number of lazily deleted entries keeps k live results available.
func (h *HNSWIndex) Search(_ context.Context, query []float32, k int) ([]*VectorResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.vecs) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != h.dim {
		return nil, &DimensionError{Expected: h.dim, Got: len(query)}
	}

	fetch := k
	if orphans := h.graph.Len() - len(h.vecs); orphans > 0 {
		fetch += orphans
	}

	nodes := h.graph.Search(query, fetch)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		vec, live := h.vecs[node.Key]
		if !live {
			continue // lazily deleted
		}
		results = append(results, &VectorResult{
			ID:    node.Key,
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

// Remove deletes a chunk's embedding. The graph node is orphaned rather than
// removed; Search filters orphans via the side map.
func (h *HNSWIndex) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vecs, id)
}

// Size returns the number of live vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vecs)
}

// Dimensions returns the fixed dimension, or 0 before the first insert.
func (h *HNSWIndex) Dimensions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dim
}

// ForEach visits every live (id, vector) pair until fn returns false.
func (h *HNSWIndex) ForEach(fn func(id string, vec []float32) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, vec := range h.vecs {
		if !fn(id, vec) {
			return
		}
	}
}

// Clone rebuilds the graph from the live vectors. Orphans from lazy deletion
// are not carried over, so a clone doubles as compaction.
func (h *HNSWIndex) Clone() VectorIndex {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clone := NewHNSWIndex(h.dim, h.cfg)
	for id, vec := range h.vecs {
		copied := make([]float32, len(vec))
		copy(copied, vec)
		clone.vecs[id] = copied
		clone.graph.Add(hnsw.MakeNode(id, copied))
	}
	return clone
}

// Stats returns index statistics.
func (h *HNSWIndex) Stats() VectorIndexStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return VectorIndexStats{Count: len(h.vecs), Dimensions: h.dim, Backend: "hnsw"}
}

// Verify interface implementation
var _ VectorIndex = (*HNSWIndex)(nil)
