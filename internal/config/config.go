// Package config loads and validates Quill configuration from YAML with
// environment variable overrides. A Config is immutable after Load; runtime
// tuning (per-query weights, top-K) travels in request options instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	qerrors "github.com/quillsearch/quill/internal/errors"
)

// Defaults mirror the constants used across the engine.
const (
	DefaultChunkTokens    = 800
	DefaultOverlapTokens  = 200
	DefaultVectorWeight   = 0.7
	DefaultKeywordWeight  = 0.3
	DefaultRRFConstant    = 60
	DefaultTopK           = 5
	DefaultHNSWThreshold  = 10000
	DefaultEmbedProvider  = "static"
	DefaultSnapshotKeep   = 3
	DefaultEmbedCacheSize = 1000
)

// Config is the root configuration.
type Config struct {
	// DataDir is where snapshots live. Defaults to ~/.quill/data.
	DataDir string `yaml:"data_dir"`

	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkingConfig controls how documents are split.
type ChunkingConfig struct {
	// SizeTokens is the target chunk size in tokens.
	SizeTokens int `yaml:"size_tokens"`
	// OverlapTokens is how many tokens consecutive chunks share.
	OverlapTokens int `yaml:"overlap_tokens"`
}

// SearchConfig controls fusion defaults.
type SearchConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	RRFConstant   int     `yaml:"rrf_constant"`
	TopK          int     `yaml:"top_k"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "static" or "ollama".
	Provider string `yaml:"provider"`
	// Model is the provider-specific model name (ollama only).
	Model string `yaml:"model"`
	// Host is the provider endpoint (ollama only).
	Host string `yaml:"host"`
	// CacheSize is the embedding LRU cache capacity. 0 disables caching.
	CacheSize int `yaml:"cache_size"`
}

// IndexConfig controls the vector backend and persistence.
type IndexConfig struct {
	// VectorBackend is "auto", "flat" or "hnsw". Auto starts flat and
	// switches to HNSW once the corpus crosses HNSWThreshold.
	VectorBackend string `yaml:"vector_backend"`
	// HNSWThreshold is the chunk count at which auto switches backends.
	HNSWThreshold int `yaml:"hnsw_threshold"`
	// SnapshotKeep is how many snapshot versions to retain on disk.
	SnapshotKeep int `yaml:"snapshot_keep"`
}

// LoggingConfig controls the log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a fully populated default configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Chunking: ChunkingConfig{
			SizeTokens:    DefaultChunkTokens,
			OverlapTokens: DefaultOverlapTokens,
		},
		Search: SearchConfig{
			VectorWeight:  DefaultVectorWeight,
			KeywordWeight: DefaultKeywordWeight,
			RRFConstant:   DefaultRRFConstant,
			TopK:          DefaultTopK,
		},
		Embedding: EmbeddingConfig{
			Provider:  DefaultEmbedProvider,
			CacheSize: DefaultEmbedCacheSize,
		},
		Index: IndexConfig{
			VectorBackend: "auto",
			HNSWThreshold: DefaultHNSWThreshold,
			SnapshotKeep:  DefaultSnapshotKeep,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, falling back to defaults for any field
// the file leaves unset. A missing file is not an error; defaults apply.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, qerrors.Wrap(qerrors.ErrCodeConfigNotFound, fmt.Errorf("read config %s: %w", path, err))
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, qerrors.Wrap(qerrors.ErrCodeConfigInvalid, fmt.Errorf("parse config %s: %w", path, err))
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values left by a sparse YAML file.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Chunking.SizeTokens == 0 {
		c.Chunking.SizeTokens = DefaultChunkTokens
	}
	if c.Search.RRFConstant == 0 {
		c.Search.RRFConstant = DefaultRRFConstant
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = DefaultTopK
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultEmbedProvider
	}
	if c.Index.VectorBackend == "" {
		c.Index.VectorBackend = "auto"
	}
	if c.Index.HNSWThreshold == 0 {
		c.Index.HNSWThreshold = DefaultHNSWThreshold
	}
	if c.Index.SnapshotKeep == 0 {
		c.Index.SnapshotKeep = DefaultSnapshotKeep
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Chunking.SizeTokens <= 0 {
		return qerrors.ConfigError(fmt.Sprintf("chunking.size_tokens must be positive, got %d", c.Chunking.SizeTokens), nil)
	}
	if c.Chunking.OverlapTokens < 0 {
		return qerrors.ConfigError(fmt.Sprintf("chunking.overlap_tokens must be non-negative, got %d", c.Chunking.OverlapTokens), nil)
	}
	if c.Chunking.OverlapTokens >= c.Chunking.SizeTokens {
		return qerrors.ConfigError(fmt.Sprintf("chunking.overlap_tokens (%d) must be smaller than size_tokens (%d)", c.Chunking.OverlapTokens, c.Chunking.SizeTokens), nil)
	}
	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return qerrors.New(qerrors.ErrCodeInvalidWeights, "search weights must be non-negative", nil)
	}
	if c.Search.VectorWeight == 0 && c.Search.KeywordWeight == 0 {
		return qerrors.New(qerrors.ErrCodeInvalidWeights, "at least one search weight must be positive", nil)
	}
	if c.Search.RRFConstant <= 0 {
		return qerrors.ConfigError(fmt.Sprintf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant), nil)
	}
	if c.Search.TopK <= 0 {
		return qerrors.ConfigError(fmt.Sprintf("search.top_k must be positive, got %d", c.Search.TopK), nil)
	}
	switch c.Embedding.Provider {
	case "static", "ollama":
	default:
		return qerrors.ConfigError(fmt.Sprintf("embedding.provider must be static or ollama, got %q", c.Embedding.Provider), nil)
	}
	switch c.Index.VectorBackend {
	case "auto", "flat", "hnsw":
	default:
		return qerrors.ConfigError(fmt.Sprintf("index.vector_backend must be auto, flat or hnsw, got %q", c.Index.VectorBackend), nil)
	}
	if c.Index.HNSWThreshold <= 0 {
		return qerrors.ConfigError(fmt.Sprintf("index.hnsw_threshold must be positive, got %d", c.Index.HNSWThreshold), nil)
	}
	return nil
}

// SnapshotDir returns the directory snapshots are stored in.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// applyEnvOverrides maps QUILL_* environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUILL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QUILL_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("QUILL_OLLAMA_HOST"); v != "" {
		cfg.Embedding.Host = v
	}
	if v := os.Getenv("QUILL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUILL_VECTOR_BACKEND"); v != "" {
		cfg.Index.VectorBackend = v
	}
	if v := os.Getenv("QUILL_HNSW_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.HNSWThreshold = n
		}
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".quill", "data")
	}
	return filepath.Join(home, ".quill", "data")
}
