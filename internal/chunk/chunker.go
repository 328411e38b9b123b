// Package chunk splits normalized document text into overlapping fixed-size
// passages, the atomic units of indexing and retrieval.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/quillsearch/quill/internal/store"
)

// Defaults match the corpus-validated values for prose retrieval.
const (
	DefaultChunkTokens   = 800
	DefaultOverlapTokens = 200
)

// ErrInvalidChunkConfig indicates an overlap that is not smaller than the
// chunk size, which would make the sequence non-advancing.
var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Config controls chunk boundaries.
type Config struct {
	// Size is the chunk length in tokens.
	Size int

	// Overlap is the number of tokens each chunk shares with its
	// predecessor. Must be smaller than Size.
	Overlap int
}

// DefaultConfig returns the standard 800/200 chunking parameters.
func DefaultConfig() Config {
	return Config{Size: DefaultChunkTokens, Overlap: DefaultOverlapTokens}
}

// Validate checks the configuration once, at startup.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidChunkConfig, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidChunkConfig, c.Overlap, c.Size)
	}
	return nil
}

// Split cuts document text into overlapping chunks on token boundaries.
//
// Every chunk after the first overlaps its predecessor by exactly
// cfg.Overlap tokens; the final chunk may be shorter than cfg.Size. The
// output is finite and deterministic for identical input and configuration,
// which makes re-ingestion idempotent: chunk IDs are derived from the
// document ID, sequence index and content.
func Split(docID, text string, cfg Config) ([]*store.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	normalized := Normalize(text)
	spans := tokenSpans(normalized)
	if len(spans) == 0 {
		return []*store.Chunk{}, nil
	}

	step := cfg.Size - cfg.Overlap
	now := time.Now().UTC()

	chunks := make([]*store.Chunk, 0, len(spans)/step+1)
	for start, seq := 0, 0; start < len(spans); start, seq = start+step, seq+1 {
		end := start + cfg.Size
		if end > len(spans) {
			end = len(spans)
		}

		content := normalized[spans[start][0]:spans[end-1][1]]
		chunks = append(chunks, &store.Chunk{
			ID:         chunkID(docID, seq, content),
			DocumentID: docID,
			Sequence:   seq,
			Text:       content,
			TokenCount: end - start,
			CreatedAt:  now,
		})

		if end == len(spans) {
			break
		}
	}

	return chunks, nil
}

// Normalize collapses whitespace runs to single spaces and strips control
// characters. Extracted text from heterogeneous sources (PDF, DOCX) tends to
// carry both.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inSpace = true
		case unicode.IsControl(r):
			// drop
		default:
			if inSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenSpans returns the [start, end) byte offsets of every token in text,
// using the same token definition as the keyword index.
func tokenSpans(text string) [][]int {
	return store.TokenSpans(text)
}

// chunkID derives a stable content-addressable identifier.
func chunkID(docID string, seq int, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s", docID, seq, content)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
