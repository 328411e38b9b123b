package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillsearch/quill/internal/chunk"
	"github.com/quillsearch/quill/internal/config"
	"github.com/quillsearch/quill/internal/embed"
	"github.com/quillsearch/quill/internal/search"
	"github.com/quillsearch/quill/internal/snapshot"
)

// loadConfig resolves the config file path and loads configuration.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".quill", "config.yaml")
		}
	}
	return config.Load(path)
}

// newEmbedder builds the embedder stack from configuration: the configured
// provider, wrapped with retry (ollama only) and LRU caching.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var embedder embed.Embedder

	switch cfg.Embedding.Provider {
	case "ollama":
		var opts []embed.OllamaOption
		if cfg.Embedding.Host != "" {
			opts = append(opts, embed.WithHost(cfg.Embedding.Host))
		}
		embedder = embed.NewRetryEmbedder(
			embed.NewOllamaEmbedder(cfg.Embedding.Model, opts...),
			embed.DefaultMaxRetries, 0)
	case "static":
		embedder = embed.NewStaticEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Embedding.CacheSize > 0 {
		embedder = embed.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}
	return embedder, nil
}

// buildEngine assembles the full engine from configuration and recovers the
// newest valid snapshot from disk. The returned cleanup closes the embedder.
func buildEngine(ctx context.Context) (*search.Engine, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	manager, err := snapshot.NewManager(cfg.SnapshotDir(),
		snapshot.WithKeepVersions(cfg.Index.SnapshotKeep))
	if err != nil {
		_ = embedder.Close()
		return nil, nil, nil, err
	}

	engine, err := search.NewEngine(search.EngineConfig{
		Weights: search.Weights{
			Vector:  cfg.Search.VectorWeight,
			Keyword: cfg.Search.KeywordWeight,
		},
		RRFConstant: cfg.Search.RRFConstant,
		TopK:        cfg.Search.TopK,
		Chunking: chunk.Config{
			Size:    cfg.Chunking.SizeTokens,
			Overlap: cfg.Chunking.OverlapTokens,
		},
		VectorBackend: cfg.Index.VectorBackend,
		HNSWThreshold: cfg.Index.HNSWThreshold,
	}, embedder, search.WithPersistence(manager))
	if err != nil {
		_ = embedder.Close()
		return nil, nil, nil, err
	}

	if err := engine.Recover(ctx); err != nil {
		_ = engine.Close()
		return nil, nil, nil, err
	}

	cleanup := func() { _ = engine.Close() }
	return engine, cfg, cleanup, nil
}
