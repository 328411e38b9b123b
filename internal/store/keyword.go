package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"math"
	"sort"
	"sync"
)

// Posting records one chunk containing a term and how often the term occurs
// in it. A term's document frequency is the length of its posting list, which
// holds each chunk at most once.
type Posting struct {
	ChunkID string
	TF      int
}

// InvertedIndex is the keyword index: a term -> posting-list map with the
// per-chunk token counts needed for BM25 length normalization.
type InvertedIndex struct {
	mu          sync.RWMutex
	cfg         BM25Config
	postings    map[string][]Posting
	chunkLens   map[string]int // chunk ID -> token count
	totalTokens int
}

// NewInvertedIndex creates an empty keyword index.
func NewInvertedIndex(cfg BM25Config) *InvertedIndex {
	return &InvertedIndex{
		cfg:       cfg.withDefaults(),
		postings:  make(map[string][]Posting),
		chunkLens: make(map[string]int),
	}
}

// Add indexes a chunk's tokens, updating postings, document frequencies and
// the rolling average chunk length. Re-adding an existing chunk replaces its
// previous postings.
func (idx *InvertedIndex) Add(_ context.Context, chunkID string, tokens []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.chunkLens[chunkID]; exists {
		idx.removeLocked(chunkID)
	}

	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}

	for term, tf := range freq {
		idx.postings[term] = append(idx.postings[term], Posting{ChunkID: chunkID, TF: tf})
	}
	idx.chunkLens[chunkID] = len(tokens)
	idx.totalTokens += len(tokens)
	return nil
}

// Remove deletes a chunk from all posting lists. Terms whose posting list
// becomes empty are dropped entirely.
func (idx *InvertedIndex) Remove(chunkID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(chunkID)
}

func (idx *InvertedIndex) removeLocked(chunkID string) {
	length, exists := idx.chunkLens[chunkID]
	if !exists {
		return
	}

	for term, list := range idx.postings {
		for i, p := range list {
			if p.ChunkID == chunkID {
				list = append(list[:i], list[i+1:]...)
				if len(list) == 0 {
					delete(idx.postings, term)
				} else {
					idx.postings[term] = list
				}
				break
			}
		}
	}

	delete(idx.chunkLens, chunkID)
	idx.totalTokens -= length
}

// Search scores every chunk containing at least one query term with BM25:
//
//	score = Σ_term IDF(term) * (tf*(k1+1)) / (tf + k1*(1 - b + b*(len/avgLen)))
//	IDF(term) = ln(1 + (N - df + 0.5)/(df + 0.5))
//
// Duplicate query terms contribute once. Results are ordered by descending
// score, ties broken by chunk ID ascending, truncated to k.
// Returns ErrEmptyIndex when nothing has been indexed.
func (idx *InvertedIndex) Search(ctx context.Context, terms []string, k int) ([]*BM25Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.chunkLens) == 0 {
		return nil, ErrEmptyIndex
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := float64(len(idx.chunkLens))
	avgLen := float64(idx.totalTokens) / n

	scores := make(map[string]float64)
	matched := make(map[string][]string)

	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		list, ok := idx.postings[term]
		if !ok {
			continue
		}

		df := float64(len(list))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for _, p := range list {
			tf := float64(p.TF)
			chunkLen := float64(idx.chunkLens[p.ChunkID])
			norm := tf + idx.cfg.K1*(1-idx.cfg.B+idx.cfg.B*(chunkLen/avgLen))
			scores[p.ChunkID] += idf * (tf * (idx.cfg.K1 + 1)) / norm
			matched[p.ChunkID] = append(matched[p.ChunkID], term)
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for id, score := range scores {
		results = append(results, &BM25Result{
			ID:           id,
			Score:        score,
			MatchedTerms: matched[id],
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

// Size returns the number of indexed chunks.
func (idx *InvertedIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunkLens)
}

// Stats returns index statistics.
func (idx *InvertedIndex) Stats() KeywordIndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := KeywordIndexStats{
		ChunkCount:  len(idx.chunkLens),
		TermCount:   len(idx.postings),
		TotalTokens: idx.totalTokens,
	}
	if stats.ChunkCount > 0 {
		stats.AvgChunkLen = float64(idx.totalTokens) / float64(stats.ChunkCount)
	}
	return stats
}

// Clone returns an independent deep copy.
func (idx *InvertedIndex) Clone() *InvertedIndex {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	clone := NewInvertedIndex(idx.cfg)
	for term, list := range idx.postings {
		copied := make([]Posting, len(list))
		copy(copied, list)
		clone.postings[term] = copied
	}
	for id, l := range idx.chunkLens {
		clone.chunkLens[id] = l
	}
	clone.totalTokens = idx.totalTokens
	return clone
}

// gobInvertedIndex mirrors InvertedIndex for encoding, minus the mutex.
type gobInvertedIndex struct {
	Config      BM25Config
	Postings    map[string][]Posting
	ChunkLens   map[string]int
	TotalTokens int
}

// GobEncode implements gob.GobEncoder so snapshots can serialize the index.
func (idx *InvertedIndex) GobEncode() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(gobInvertedIndex{
		Config:      idx.cfg,
		Postings:    idx.postings,
		ChunkLens:   idx.chunkLens,
		TotalTokens: idx.totalTokens,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (idx *InvertedIndex) GobDecode(data []byte) error {
	var decoded gobInvertedIndex
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&decoded); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.cfg = decoded.Config.withDefaults()
	idx.postings = decoded.Postings
	idx.chunkLens = decoded.ChunkLens
	idx.totalTokens = decoded.TotalTokens

	if idx.postings == nil {
		idx.postings = make(map[string][]Posting)
	}
	if idx.chunkLens == nil {
		idx.chunkLens = make(map[string]int)
	}
	return nil
}
