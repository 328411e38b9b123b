package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultChunkTokens, cfg.Chunking.SizeTokens)
	assert.Equal(t, DefaultOverlapTokens, cfg.Chunking.OverlapTokens)
	assert.Equal(t, DefaultVectorWeight, cfg.Search.VectorWeight)
	assert.Equal(t, DefaultKeywordWeight, cfg.Search.KeywordWeight)
	assert.Equal(t, "static", cfg.Embedding.Provider)
	assert.Equal(t, "auto", cfg.Index.VectorBackend)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
chunking:
  size_tokens: 400
  overlap_tokens: 50
search:
  top_k: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Chunking.SizeTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, DefaultHNSWThreshold, cfg.Index.HNSWThreshold)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "chunking: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap >= size", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.SizeTokens }},
		{"negative weight", func(c *Config) { c.Search.VectorWeight = -0.5 }},
		{"both weights zero", func(c *Config) {
			c.Search.VectorWeight = 0
			c.Search.KeywordWeight = 0
		}},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"unknown backend", func(c *Config) { c.Index.VectorBackend = "annoy" }},
		{"negative rrf constant", func(c *Config) { c.Search.RRFConstant = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUILL_DATA_DIR", "/tmp/quill-test")
	t.Setenv("QUILL_EMBED_PROVIDER", "ollama")
	t.Setenv("QUILL_VECTOR_BACKEND", "hnsw")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/quill-test", cfg.DataDir)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "hnsw", cfg.Index.VectorBackend)
	assert.Equal(t, filepath.Join("/tmp/quill-test", "snapshots"), cfg.SnapshotDir())
}
