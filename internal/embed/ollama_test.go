package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/embed with fixed-dimension vectors.
func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			resp := embedResponse{Embeddings: make([][]float32, len(req.Input))}
			for i := range req.Input {
				vec := make([]float32, dims)
				vec[0] = 1
				resp.Embeddings[i] = vec
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaEmbedderBatch(t *testing.T) {
	srv := fakeOllama(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder("test-model", WithHost(srv.URL))
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
	assert.Equal(t, 8, e.Dimensions())
	assert.Equal(t, "ollama/test-model", e.ModelName())
}

func TestOllamaEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("missing", WithHost(srv.URL))
	defer e.Close()

	_, err := e.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaEmbedderUnreachable(t *testing.T) {
	e := NewOllamaEmbedder("test", WithHost("http://127.0.0.1:1"))
	defer e.Close()

	_, err := e.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, e.Available(context.Background()))
}

func TestOllamaEmbedderDimensionDrift(t *testing.T) {
	srv := fakeOllama(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder("test", WithHost(srv.URL), WithDimensions(16))
	defer e.Close()

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestOllamaEmbedderAvailable(t *testing.T) {
	srv := fakeOllama(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder("test", WithHost(srv.URL))
	assert.True(t, e.Available(context.Background()))

	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
}

func TestOllamaEmbedderBatchLimit(t *testing.T) {
	srv := fakeOllama(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder("test", WithHost(srv.URL))
	defer e.Close()

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := e.EmbedBatch(context.Background(), texts)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
