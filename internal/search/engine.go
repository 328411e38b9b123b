package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillsearch/quill/internal/chunk"
	"github.com/quillsearch/quill/internal/embed"
	qerrors "github.com/quillsearch/quill/internal/errors"
	"github.com/quillsearch/quill/internal/snapshot"
	"github.com/quillsearch/quill/internal/store"
)

// State describes the engine lifecycle.
type State string

const (
	// StateEmpty means no documents have been indexed.
	StateEmpty State = "EMPTY"
	// StateReady means the engine is serving queries.
	StateReady State = "READY"
	// StateIngesting means a write is in progress. Queries keep serving
	// from the previous generation.
	StateIngesting State = "INGESTING"
)

// Snapshot is one immutable generation of the index. Readers grab the
// current snapshot with a single atomic load and keep using it for the whole
// query, untouched by concurrent ingestion.
type Snapshot struct {
	Version    uint64
	Dimensions int
	Chunks     map[string]*store.Chunk
	Vector     store.VectorIndex
	Keyword    *store.InvertedIndex
}

// EngineConfig tunes the engine. Zero values fall back to defaults.
type EngineConfig struct {
	Weights       Weights
	RRFConstant   int
	TopK          int
	Chunking      chunk.Config
	VectorBackend string // "auto", "flat" or "hnsw"
	HNSWThreshold int    // auto switches to HNSW above this chunk count
}

// IngestReport summarizes one ingestion.
type IngestReport struct {
	DocumentID    string
	ChunksAdded   int
	ChunksSkipped int
	Warnings      []string
	Version       uint64
	Elapsed       time.Duration
}

// EngineStats is a point-in-time view of engine state.
type EngineStats struct {
	State         State
	ChunkCount    int
	DocumentCount int
	IndexVersion  uint64
	Dimensions    int
	VectorBackend string
	Terms         int
}

// Engine orchestrates chunking, embedding, both indexes, fusion and
// persistence. Reads are lock-free against an atomic snapshot pointer;
// writes are serialized by a single mutex.
type Engine struct {
	cfg      EngineConfig
	embedder embed.Embedder
	fusion   *Fusion
	persist  *snapshot.Manager
	logger   *slog.Logger

	writeMu   sync.Mutex
	current   atomic.Pointer[Snapshot]
	ingesting atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPersistence enables snapshot persistence through the given manager.
func WithPersistence(m *snapshot.Manager) EngineOption {
	return func(e *Engine) { e.persist = m }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine in the EMPTY state.
func NewEngine(cfg EngineConfig, embedder embed.Embedder, opts ...EngineOption) (*Engine, error) {
	if embedder == nil {
		return nil, qerrors.ValidationError("embedder is required", nil)
	}
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, err
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.VectorBackend == "" {
		cfg.VectorBackend = "auto"
	}
	if cfg.HNSWThreshold <= 0 {
		cfg.HNSWThreshold = 10000
	}

	e := &Engine{
		cfg:      cfg,
		embedder: embedder,
		fusion:   NewFusion(cfg.RRFConstant),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State reports the engine lifecycle state.
func (e *Engine) State() State {
	if e.ingesting.Load() {
		return StateIngesting
	}
	snap := e.current.Load()
	if snap == nil || len(snap.Chunks) == 0 {
		return StateEmpty
	}
	return StateReady
}

// Recover loads the newest valid snapshot from disk and serves from it.
// With nothing valid on disk the engine simply starts empty; recovery never
// fails the process over corrupt files.
func (e *Engine) Recover(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}

	payload, err := e.persist.LoadLatestValid()
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshots) {
			e.logger.Info("no snapshots on disk, starting empty")
			return nil
		}
		return qerrors.Wrap(qerrors.ErrCodeRecoverFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	vec := e.newVectorIndex(payload.Dimensions, len(payload.Vectors))
	for id, v := range payload.Vectors {
		if err := vec.Add(ctx, id, v); err != nil {
			return qerrors.Wrap(qerrors.ErrCodeRecoverFailed, fmt.Errorf("rebuild vector index: %w", err))
		}
	}

	kw := payload.Keyword
	if kw == nil {
		kw = store.NewInvertedIndex(store.DefaultBM25Config())
	}

	snap := &Snapshot{
		Version:    payload.Version,
		Dimensions: payload.Dimensions,
		Chunks:     payload.Chunks,
		Vector:     vec,
		Keyword:    kw,
	}
	e.current.Store(snap)

	e.logger.Info("recovered from snapshot",
		"version", payload.Version,
		"chunks", len(payload.Chunks),
		"model", payload.Model)
	return nil
}

// Ingest chunks a document, embeds the chunks and adds them to both indexes
// as one new generation. Re-ingesting a document ID replaces its previous
// chunks entirely. A chunk whose embedding fails is skipped from BOTH indexes
// and reported as a warning; it never ends up keyword-searchable but
// vector-invisible.
func (e *Engine) Ingest(ctx context.Context, docID, text string) (*IngestReport, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, qerrors.ValidationError("document ID must not be empty", nil)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.ingesting.Store(true)
	defer e.ingesting.Store(false)

	started := time.Now()

	chunks, err := chunk.Split(docID, text, e.cfg.Chunking)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeIngestFailed, err)
	}

	next := e.cloneCurrent()
	e.removeDocumentLocked(next, docID)

	report := &IngestReport{DocumentID: docID, Version: next.Version}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, warnings := e.embedWithFallback(ctx, texts)
	report.Warnings = warnings

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if vectors[i] == nil {
			report.ChunksSkipped++
			continue
		}
		if err := next.Vector.Add(ctx, c.ID, vectors[i]); err != nil {
			report.ChunksSkipped++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("chunk %s: %v", c.ID, err))
			continue
		}
		// Keyword entry only after the vector is in, so a chunk is either
		// in both indexes or in neither.
		if err := next.Keyword.Add(ctx, c.ID, store.Tokenize(c.Text)); err != nil {
			next.Vector.Remove(c.ID)
			report.ChunksSkipped++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("chunk %s: %v", c.ID, err))
			continue
		}
		next.Chunks[c.ID] = c
		report.ChunksAdded++
	}

	next.Dimensions = next.Vector.Dimensions()
	e.maybeMigrateBackend(ctx, next)

	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	report.Version = next.Version
	report.Elapsed = time.Since(started)
	e.logger.Info("document ingested",
		"doc", docID,
		"chunks_added", report.ChunksAdded,
		"chunks_skipped", report.ChunksSkipped,
		"version", next.Version,
		"elapsed", report.Elapsed)
	return report, nil
}

// Delete removes every chunk of a document and commits a new generation.
// Returns the number of chunks removed; deleting an unknown document is a
// no-op that commits nothing.
func (e *Engine) Delete(ctx context.Context, docID string) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.ingesting.Store(true)
	defer e.ingesting.Store(false)

	next := e.cloneCurrent()
	removed := e.removeDocumentLocked(next, docID)
	if removed == 0 {
		return 0, nil
	}

	if err := e.commit(ctx, next); err != nil {
		return 0, err
	}

	e.logger.Info("document deleted",
		"doc", docID,
		"chunks_removed", removed,
		"version", next.Version)
	return removed, nil
}

// Query runs vector and keyword searches in parallel over the current
// snapshot and fuses the rankings. A method with weight zero is skipped
// entirely; in particular no query embedding is computed when the vector
// weight is zero.
func (e *Engine) Query(ctx context.Context, query string, opts QueryOptions) ([]*FusedResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, qerrors.New(qerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	snap := e.current.Load()
	if snap == nil || len(snap.Chunks) == 0 {
		return nil, ErrNoDocumentsIndexed
	}

	weights := e.cfg.Weights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	multiplier := opts.CandidateMultiplier
	if multiplier <= 0 {
		multiplier = DefaultCandidateMultiplier
	}
	poolK := topK * multiplier

	var (
		vecResults []*store.VectorResult
		kwResults  []*store.BM25Result
	)

	g, gctx := errgroup.WithContext(ctx)

	if weights.Vector > 0 {
		g.Go(func() error {
			qvec, err := e.embedder.Embed(gctx, query)
			if err != nil {
				return qerrors.Wrap(qerrors.ErrCodeEmbeddingFailed, err)
			}
			results, err := snap.Vector.Search(gctx, qvec, poolK)
			if err != nil {
				if errors.Is(err, store.ErrEmptyIndex) {
					return nil
				}
				return qerrors.Wrap(qerrors.ErrCodeSearchFailed, err)
			}
			vecResults = results
			return nil
		})
	}

	if weights.Keyword > 0 {
		g.Go(func() error {
			results, err := snap.Keyword.Search(gctx, store.Tokenize(query), poolK)
			if err != nil {
				if errors.Is(err, store.ErrEmptyIndex) {
					return nil
				}
				return qerrors.Wrap(qerrors.ErrCodeSearchFailed, err)
			}
			kwResults = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused, err := e.fusion.Fuse(vecResults, kwResults, weights, topK)
	if err != nil {
		return nil, err
	}

	for _, r := range fused {
		if c, ok := snap.Chunks[r.ChunkID]; ok {
			r.DocumentID = c.DocumentID
			r.Text = c.Text
		}
	}
	return fused, nil
}

// Stats returns a point-in-time view of the engine.
func (e *Engine) Stats() EngineStats {
	stats := EngineStats{State: e.State()}

	snap := e.current.Load()
	if snap == nil {
		return stats
	}

	docs := make(map[string]struct{})
	for _, c := range snap.Chunks {
		docs[c.DocumentID] = struct{}{}
	}

	stats.ChunkCount = len(snap.Chunks)
	stats.DocumentCount = len(docs)
	stats.IndexVersion = snap.Version
	stats.Dimensions = snap.Dimensions
	stats.VectorBackend = vectorBackendName(snap.Vector)
	stats.Terms = snap.Keyword.Stats().TermCount
	return stats
}

// Documents lists indexed document IDs, sorted.
func (e *Engine) Documents() []string {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, c := range snap.Chunks {
		seen[c.DocumentID] = struct{}{}
	}
	docs := make([]string, 0, len(seen))
	for id := range seen {
		docs = append(docs, id)
	}
	sort.Strings(docs)
	return docs
}

// Close releases the embedder.
func (e *Engine) Close() error {
	return e.embedder.Close()
}

// cloneCurrent deep-copies the current snapshot for mutation, bumping the
// version. Caller holds writeMu.
func (e *Engine) cloneCurrent() *Snapshot {
	cur := e.current.Load()
	if cur == nil {
		return &Snapshot{
			Version: 1,
			Chunks:  make(map[string]*store.Chunk),
			Vector:  e.newVectorIndex(0, 0),
			Keyword: store.NewInvertedIndex(store.DefaultBM25Config()),
		}
	}

	chunks := make(map[string]*store.Chunk, len(cur.Chunks))
	for id, c := range cur.Chunks {
		chunks[id] = c
	}
	return &Snapshot{
		Version:    cur.Version + 1,
		Dimensions: cur.Dimensions,
		Chunks:     chunks,
		Vector:     cur.Vector.Clone(),
		Keyword:    cur.Keyword.Clone(),
	}
}

// removeDocumentLocked strips a document's chunks from every structure in
// the pending snapshot. Caller holds writeMu.
func (e *Engine) removeDocumentLocked(snap *Snapshot, docID string) int {
	removed := 0
	for id, c := range snap.Chunks {
		if c.DocumentID != docID {
			continue
		}
		snap.Vector.Remove(id)
		snap.Keyword.Remove(id)
		delete(snap.Chunks, id)
		removed++
	}
	return removed
}

// embedWithFallback embeds all texts in one batch; if the batch fails it
// retries text by text so one bad input cannot sink the whole document.
// The result slice is parallel to texts with nil marking failures.
func (e *Engine) embedWithFallback(ctx context.Context, texts []string) ([][]float32, []string) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		return vectors, nil
	}

	e.logger.Warn("batch embedding failed, falling back to per-chunk", "error", err)

	var warnings []string
	vectors = make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.embedder.Embed(ctx, t)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("chunk %d: embedding failed: %v", i, err))
			continue
		}
		vectors[i] = vec
	}
	return vectors, warnings
}

// commit persists the pending snapshot (when persistence is configured) and
// publishes it. Persistence failure aborts the commit; queries keep serving
// the previous generation. Caller holds writeMu.
func (e *Engine) commit(ctx context.Context, next *Snapshot) error {
	if e.persist != nil {
		vectors := make(map[string][]float32, len(next.Chunks))
		next.Vector.ForEach(func(id string, vec []float32) bool {
			vectors[id] = vec
			return true
		})

		payload := &snapshot.Payload{
			Version:    next.Version,
			CreatedAt:  time.Now().UTC(),
			Model:      e.embedder.ModelName(),
			Dimensions: next.Dimensions,
			Chunks:     next.Chunks,
			Vectors:    vectors,
			Keyword:    next.Keyword,
		}
		if err := e.persist.Save(ctx, payload); err != nil {
			return err
		}
	}

	e.current.Store(next)
	return nil
}

// newVectorIndex picks the backend for a corpus of the given size.
func (e *Engine) newVectorIndex(dim, count int) store.VectorIndex {
	switch e.cfg.VectorBackend {
	case "flat":
		return store.NewFlatIndex(dim)
	case "hnsw":
		return store.NewHNSWIndex(dim, store.DefaultHNSWConfig())
	default:
		if count >= e.cfg.HNSWThreshold {
			return store.NewHNSWIndex(dim, store.DefaultHNSWConfig())
		}
		return store.NewFlatIndex(dim)
	}
}

// maybeMigrateBackend rebuilds the pending snapshot's vector index as HNSW
// once an auto-backend corpus outgrows exact scanning. Runs before commit so
// queries never observe a half-built graph.
func (e *Engine) maybeMigrateBackend(ctx context.Context, snap *Snapshot) {
	if e.cfg.VectorBackend != "auto" {
		return
	}
	if _, isFlat := snap.Vector.(*store.FlatIndex); !isFlat {
		return
	}
	if snap.Vector.Size() < e.cfg.HNSWThreshold {
		return
	}

	hnswIdx := store.NewHNSWIndex(snap.Vector.Dimensions(), store.DefaultHNSWConfig())
	failed := false
	snap.Vector.ForEach(func(id string, vec []float32) bool {
		if err := hnswIdx.Add(ctx, id, vec); err != nil {
			e.logger.Warn("backend migration aborted", "chunk", id, "error", err)
			failed = true
			return false
		}
		return true
	})
	if failed {
		return
	}

	e.logger.Info("vector backend migrated",
		"from", "flat",
		"to", "hnsw",
		"size", hnswIdx.Size())
	snap.Vector = hnswIdx
}

func vectorBackendName(v store.VectorIndex) string {
	switch v.(type) {
	case *store.HNSWIndex:
		return "hnsw"
	default:
		return "flat"
	}
}
