package search

import (
	"sort"

	"github.com/quillsearch/quill/internal/store"
)

// Fusion merges a vector ranking and a keyword ranking into one list using
// weighted Reciprocal Rank Fusion. RRF works on ranks, not raw scores, so it
// needs no score normalization: cosine similarities and BM25 scores never mix
// directly.
type Fusion struct {
	k int // smoothing constant; larger values flatten rank differences
}

// NewFusion creates a fusion ranker with the given RRF constant. Non-positive
// values fall back to DefaultRRFConstant.
func NewFusion(k int) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fusion{k: k}
}

// candidate accumulates per-chunk state while both input lists are walked.
type candidate struct {
	result  *FusedResult
	rankSum int // tie-break key; absence counts as len(list)+1
}

// Fuse merges the two ranked lists and returns at most topK results ordered
// by fused score descending. A chunk present in only one list receives that
// list's contribution alone; the other method contributes zero.
//
// Ordering is fully deterministic: equal fused scores are broken by the
// smaller combined rank sum, then by chunk ID ascending.
func (f *Fusion) Fuse(vecResults []*store.VectorResult, kwResults []*store.BM25Result, weights Weights, topK int) ([]*FusedResult, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	candidates := make(map[string]*candidate, len(vecResults)+len(kwResults))

	// A chunk missing from a list still needs a rank-sum contribution for
	// the tie break, one step past the worst real rank.
	vecAbsent := len(vecResults) + 1
	kwAbsent := len(kwResults) + 1

	for i, vr := range vecResults {
		rank := i + 1
		c := f.getOrCreate(candidates, vr.ID, vecAbsent, kwAbsent)
		c.result.VecRank = rank
		c.result.VecScore = vr.Score
		c.result.FusedScore += weights.Vector / float64(f.k+rank)
		c.rankSum += rank - vecAbsent
	}

	for i, kr := range kwResults {
		rank := i + 1
		c := f.getOrCreate(candidates, kr.ID, vecAbsent, kwAbsent)
		c.result.KeywordRank = rank
		c.result.KeywordScore = kr.Score
		c.result.MatchedTerms = kr.MatchedTerms
		c.result.FusedScore += weights.Keyword / float64(f.k+rank)
		c.rankSum += rank - kwAbsent
	}

	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.result.FusedScore != b.result.FusedScore {
			return a.result.FusedScore > b.result.FusedScore
		}
		if a.rankSum != b.rankSum {
			return a.rankSum < b.rankSum
		}
		return a.result.ChunkID < b.result.ChunkID
	})

	if len(ordered) > topK {
		ordered = ordered[:topK]
	}

	results := make([]*FusedResult, len(ordered))
	for i, c := range ordered {
		results[i] = c.result
	}
	return results, nil
}

// getOrCreate returns the accumulator for a chunk, seeding the rank sum with
// both absence penalties; real ranks subtract their penalty back out.
func (f *Fusion) getOrCreate(candidates map[string]*candidate, id string, vecAbsent, kwAbsent int) *candidate {
	if c, ok := candidates[id]; ok {
		return c
	}
	c := &candidate{
		result:  &FusedResult{ChunkID: id},
		rankSum: vecAbsent + kwAbsent,
	}
	candidates[id] = c
	return c
}
