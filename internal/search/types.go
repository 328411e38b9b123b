// Package search implements hybrid retrieval: dense and keyword searches run
// in parallel over an immutable snapshot and their rankings are merged with
// Reciprocal Rank Fusion (RRF).
package search

import "errors"

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search, OpenSearch).
const DefaultRRFConstant = 60

// Candidate pool defaults. Each index is asked for more results than the
// caller wants so fusion has enough overlap to work with.
const (
	// DefaultCandidateMultiplier scales the caller's top-K into the
	// per-index candidate pool size.
	DefaultCandidateMultiplier = 4

	// DefaultTopK is the number of fused results returned when the caller
	// does not specify one.
	DefaultTopK = 5

	// MaxTopK caps a single query's result count.
	MaxTopK = 100
)

// ErrInvalidWeights indicates a weight configuration that would make fusion
// meaningless: a negative weight, or both weights zero.
var ErrInvalidWeights = errors.New("invalid fusion weights")

// ErrNoDocumentsIndexed is returned for queries against an empty engine.
// An expected, user-visible "no results yet" condition.
var ErrNoDocumentsIndexed = errors.New("no documents indexed")

// Weights controls the relative contribution of each ranking method.
// They need not sum to 1; a weight of 0 fully disables that method.
type Weights struct {
	Vector  float64 // dense semantic similarity
	Keyword float64 // BM25 lexical match
}

// DefaultWeights favors semantic similarity while keeping exact-term
// matching influential.
func DefaultWeights() Weights {
	return Weights{Vector: 0.7, Keyword: 0.3}
}

// Validate rejects weight combinations fusion cannot rank with.
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Keyword < 0 {
		return errors.Join(ErrInvalidWeights, errors.New("weights must be non-negative"))
	}
	if w.Vector == 0 && w.Keyword == 0 {
		return errors.Join(ErrInvalidWeights, errors.New("at least one weight must be positive"))
	}
	return nil
}

// FusedResult is a single result after RRF fusion, enriched with the chunk
// content and its source document for citation.
type FusedResult struct {
	ChunkID      string
	FusedScore   float64  // combined RRF score
	VecRank      int      // 1-based rank in the vector list, 0 if absent
	VecScore     float64  // original cosine similarity
	KeywordRank  int      // 1-based rank in the keyword list, 0 if absent
	KeywordScore float64  // original BM25 score
	MatchedTerms []string // query terms matched by the keyword index
	DocumentID   string   // source document, for citation
	Text         string   // chunk content
}

// QueryOptions controls a single query.
type QueryOptions struct {
	// TopK is the number of fused results to return.
	TopK int

	// Weights override the engine defaults when non-nil.
	Weights *Weights

	// CandidateMultiplier overrides the internal candidate pool scaling.
	CandidateMultiplier int
}
