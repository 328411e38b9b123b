// Package store provides the two index structures backing hybrid retrieval:
// a vector index for dense nearest-neighbor ranking and an inverted index
// for BM25 keyword ranking.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Chunk is the atomic unit of indexing and retrieval: a fixed-size,
// overlapping slice of a source document. Immutable once stored.
type Chunk struct {
	ID         string    // Stable identifier, unique across the corpus
	DocumentID string    // Source document this chunk was cut from
	Sequence   int       // 0-based position within the source document
	Text       string    // Chunk content
	TokenCount int       // Number of tokens in Text
	CreatedAt  time.Time
}

// VectorResult is a single dense-similarity hit. Rank is implied by slice
// position (1-based) in the list returned from Search.
type VectorResult struct {
	ID    string  // Chunk ID
	Score float64 // Cosine similarity, higher is more similar
}

// BM25Result is a single keyword hit. Rank is implied by slice position.
type BM25Result struct {
	ID           string
	Score        float64
	MatchedTerms []string // Query terms present in the chunk
}

// VectorIndexStats describes the state of a vector index.
type VectorIndexStats struct {
	Count      int
	Dimensions int
	Backend    string
}

// KeywordIndexStats describes the state of the inverted index.
type KeywordIndexStats struct {
	ChunkCount   int
	TermCount    int
	AvgChunkLen  float64
	TotalTokens  int
}

// VectorIndex stores one embedding per chunk and ranks by similarity.
//
// Implementations must fix their dimension on first insert and reject
// mismatched vectors afterwards. Search returns at most k results ordered by
// descending similarity, ties broken by chunk ID ascending.
type VectorIndex interface {
	// Add inserts or replaces the embedding for a chunk.
	Add(ctx context.Context, id string, vec []float32) error

	// Search returns the k nearest chunks to the query embedding.
	// Returns ErrEmptyIndex when no vectors are present.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Remove deletes a chunk's embedding. Removing an absent ID is a no-op.
	Remove(id string)

	// Size returns the number of stored vectors.
	Size() int

	// Dimensions returns the fixed dimension, or 0 before the first insert.
	Dimensions() int

	// ForEach visits every stored (id, vector) pair until fn returns false.
	// Used for persistence and backend migration; visit order is unspecified.
	ForEach(fn func(id string, vec []float32) bool)

	// Clone returns an independent deep copy. The clone and the original
	// never share mutable state; snapshots rely on this.
	Clone() VectorIndex
}

// ErrEmptyIndex is returned when searching an index that holds no entries.
// This is an expected "no results" condition, not a failure.
var ErrEmptyIndex = errors.New("index is empty")

// DimensionError indicates an embedding whose length differs from the
// index's fixed dimension.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: index expects %d, got %d", e.Expected, e.Got)
}

// BM25Config tunes the keyword ranking function.
type BM25Config struct {
	// K1 is the term frequency saturation parameter.
	K1 float64

	// B controls how strongly chunk length normalizes scores.
	B float64
}

// DefaultBM25Config returns the standard BM25 constants.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

func (c BM25Config) withDefaults() BM25Config {
	if c.K1 <= 0 {
		c.K1 = 1.5
	}
	if c.B <= 0 {
		c.B = 0.75
	}
	return c
}
