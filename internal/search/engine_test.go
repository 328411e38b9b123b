package search

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsearch/quill/internal/chunk"
	"github.com/quillsearch/quill/internal/embed"
	"github.com/quillsearch/quill/internal/snapshot"
)

func testEngineConfig() EngineConfig {
	return EngineConfig{
		Weights:  DefaultWeights(),
		Chunking: chunk.Config{Size: 50, Overlap: 10},
	}
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	engine, err := NewEngine(testEngineConfig(), embed.NewStaticEmbedder(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// failingEmbedder always reports the provider as down.
type failingEmbedder struct{ *embed.StaticEmbedder }

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, embed.ErrUnavailable
}

func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, embed.ErrUnavailable
}

func TestEngineLifecycleStates(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	assert.Equal(t, StateEmpty, engine.State())

	_, err := engine.Ingest(ctx, "doc", "the cat sat on the mat")
	require.NoError(t, err)
	assert.Equal(t, StateReady, engine.State())
}

func TestEngineQueryEmptyEngine(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Query(context.Background(), "cat", QueryOptions{})
	assert.ErrorIs(t, err, ErrNoDocumentsIndexed)
}

func TestEngineQueryEmptyString(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.Ingest(ctx, "doc", "some text here")
	require.NoError(t, err)

	_, err = engine.Query(ctx, "   ", QueryOptions{})
	assert.Error(t, err)
}

func TestEngineHybridQueryRanksRelevantChunkFirst(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "animals", "The cat sat on the mat while the dog slept nearby.")
	require.NoError(t, err)
	_, err = engine.Ingest(ctx, "finance", "Quarterly revenue projections exceeded analyst estimates this year.")
	require.NoError(t, err)

	results, err := engine.Query(ctx, "cat mat", QueryOptions{
		TopK:    1,
		Weights: &Weights{Vector: 0.7, Keyword: 0.3},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "animals", results[0].DocumentID)
	assert.Contains(t, results[0].Text, "cat")
	assert.Positive(t, results[0].FusedScore)
	assert.Positive(t, results[0].VecRank)
	assert.Positive(t, results[0].KeywordRank)
	assert.Contains(t, results[0].MatchedTerms, "cat")
}

func TestEngineQueryInvalidWeights(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	_, err := engine.Ingest(ctx, "doc", "some text")
	require.NoError(t, err)

	_, err = engine.Query(ctx, "text", QueryOptions{Weights: &Weights{Vector: 0, Keyword: 0}})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = engine.Query(ctx, "text", QueryOptions{Weights: &Weights{Vector: -1, Keyword: 1}})
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestEngineKeywordOnlySkipsEmbedding(t *testing.T) {
	// The embedder fails on every call. Ingestion goes through the normal
	// embedder first, so build the index with a working engine and then swap
	// in the broken embedder to prove queries with vector weight zero never
	// touch it.
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "doc", "the cat sat on the mat")
	require.NoError(t, err)

	engine.embedder = &failingEmbedder{StaticEmbedder: embed.NewStaticEmbedder()}

	results, err := engine.Query(ctx, "cat", QueryOptions{Weights: &Weights{Vector: 0, Keyword: 1}})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 0, results[0].VecRank)
	assert.Positive(t, results[0].KeywordRank)

	// With a vector weight the broken embedder must surface as an error.
	_, err = engine.Query(ctx, "cat", QueryOptions{Weights: &Weights{Vector: 1, Keyword: 1}})
	assert.Error(t, err)
}

func TestEngineIngestWithFailingEmbedderSkipsChunks(t *testing.T) {
	engine, err := NewEngine(testEngineConfig(), &failingEmbedder{StaticEmbedder: embed.NewStaticEmbedder()})
	require.NoError(t, err)

	report, err := engine.Ingest(context.Background(), "doc", "the cat sat on the mat")
	require.NoError(t, err)

	// Skipped chunks appear in neither index.
	assert.Zero(t, report.ChunksAdded)
	assert.Positive(t, report.ChunksSkipped)
	assert.NotEmpty(t, report.Warnings)
	assert.Equal(t, StateEmpty, engine.State())
}

func TestEngineReingestReplacesDocument(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "doc", "original text about cats")
	require.NoError(t, err)
	_, err = engine.Ingest(ctx, "doc", "replacement text about dogs")
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.ChunkCount)

	results, err := engine.Query(ctx, "cats", QueryOptions{Weights: &Weights{Vector: 0, Keyword: 1}})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.Query(ctx, "dogs", QueryOptions{Weights: &Weights{Vector: 0, Keyword: 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestEngineDelete(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "keep", "text that stays indexed")
	require.NoError(t, err)
	_, err = engine.Ingest(ctx, "drop", "text that gets removed")
	require.NoError(t, err)

	removed, err := engine.Delete(ctx, "drop")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = engine.Delete(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, removed)

	assert.Equal(t, []string{"keep"}, engine.Documents())
}

func TestEngineStatsAndVersioning(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	assert.Zero(t, engine.Stats().IndexVersion)

	_, err := engine.Ingest(ctx, "a", "first document text")
	require.NoError(t, err)
	_, err = engine.Ingest(ctx, "b", "second document text")
	require.NoError(t, err)

	stats := engine.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 2, stats.ChunkCount)
	assert.Equal(t, uint64(2), stats.IndexVersion)
	assert.Equal(t, "flat", stats.VectorBackend)
	assert.Equal(t, embed.StaticDimensions, stats.Dimensions)
	assert.Positive(t, stats.Terms)
}

func TestEngineConcurrentQueriesDuringIngest(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, "base", "the cat sat on the mat")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				results, err := engine.Query(ctx, "cat mat", QueryOptions{TopK: 3})
				if err != nil {
					errs <- err
					return
				}
				// Every result must be internally consistent: fused
				// snapshots always resolve chunk content.
				for _, r := range results {
					if r.Text == "" || r.DocumentID == "" {
						errs <- fmt.Errorf("torn result for chunk %s", r.ChunkID)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Ingest(ctx, fmt.Sprintf("doc-%d", i), "more text about cats and mats")
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEnginePersistenceAndRecovery(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	manager, err := snapshot.NewManager(dir)
	require.NoError(t, err)

	engine, err := NewEngine(testEngineConfig(), embed.NewStaticEmbedder(),
		WithPersistence(manager))
	require.NoError(t, err)

	_, err = engine.Ingest(ctx, "animals", "the cat sat on the mat")
	require.NoError(t, err)
	_, err = engine.Ingest(ctx, "finance", "quarterly revenue projections")
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	// A fresh engine over the same directory recovers the last generation.
	manager2, err := snapshot.NewManager(dir)
	require.NoError(t, err)
	restored, err := NewEngine(testEngineConfig(), embed.NewStaticEmbedder(),
		WithPersistence(manager2))
	require.NoError(t, err)
	defer restored.Close()

	require.NoError(t, restored.Recover(ctx))
	assert.Equal(t, StateReady, restored.State())
	assert.Equal(t, uint64(2), restored.Stats().IndexVersion)

	results, err := restored.Query(ctx, "cat mat", QueryOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "animals", results[0].DocumentID)
}

func TestEngineRecoverEmptyDirStartsEmpty(t *testing.T) {
	manager, err := snapshot.NewManager(t.TempDir())
	require.NoError(t, err)

	engine, err := NewEngine(testEngineConfig(), embed.NewStaticEmbedder(),
		WithPersistence(manager))
	require.NoError(t, err)
	defer engine.Close()

	require.NoError(t, engine.Recover(context.Background()))
	assert.Equal(t, StateEmpty, engine.State())
}

func TestEngineTopKTruncation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := engine.Ingest(ctx, fmt.Sprintf("doc-%d", i), fmt.Sprintf("cat story number %d", i))
		require.NoError(t, err)
	}

	results, err := engine.Query(ctx, "cat", QueryOptions{TopK: 4})
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestEngineInvalidChunkConfig(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Chunking = chunk.Config{Size: 10, Overlap: 10}

	_, err := NewEngine(cfg, embed.NewStaticEmbedder())
	assert.ErrorIs(t, err, chunk.ErrInvalidChunkConfig)
}
