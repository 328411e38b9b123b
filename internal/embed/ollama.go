package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaEmbedder generates embeddings via a local or remote Ollama server.
// All transport failures are reported as ErrUnavailable so callers can apply
// the ingestion skip / query abort policy uniformly.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client

	mu     sync.RWMutex
	dims   int // discovered from the first response
	closed bool
}

// OllamaOption configures the embedder.
type OllamaOption func(*OllamaEmbedder)

// WithHost overrides the Ollama endpoint.
func WithHost(host string) OllamaOption {
	return func(e *OllamaEmbedder) {
		if host != "" {
			e.host = host
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) OllamaOption {
	return func(e *OllamaEmbedder) {
		if d > 0 {
			e.client.Timeout = d
		}
	}
}

// WithDimensions pins the expected dimension up front, enabling mismatch
// detection on the first response instead of at index time.
func WithDimensions(dims int) OllamaOption {
	return func(e *OllamaEmbedder) {
		if dims > 0 {
			e.dims = dims
		}
	}
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server.
func NewOllamaEmbedder(model string, opts ...OllamaOption) *OllamaEmbedder {
	if model == "" {
		model = DefaultOllamaModel
	}
	e := &OllamaEmbedder{
		host:   DefaultOllamaHost,
		model:  model,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// embedRequest is the Ollama /api/embed request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the Ollama /api/embed response body.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("%w: embedder is closed", ErrUnavailable)
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum %d", len(texts), MaxBatchSize)
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: ollama returned %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode embed response: %v", ErrUnavailable, err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrUnavailable, len(decoded.Embeddings), len(texts))
	}

	for i, vec := range decoded.Embeddings {
		if err := e.checkDimensions(len(vec)); err != nil {
			return nil, err
		}
		decoded.Embeddings[i] = normalizeVector(vec)
	}
	return decoded.Embeddings, nil
}

// checkDimensions records the dimension from the first response and rejects
// later drift (e.g. the server swapped models underneath us).
func (e *OllamaEmbedder) checkDimensions(got int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dims == 0 {
		e.dims = got
		return nil
	}
	if got != e.dims {
		return fmt.Errorf("embedding dimension changed: expected %d, got %d", e.dims, got)
	}
	return nil
}

// Dimensions returns the embedding dimension, or 0 before the first request
// when not pinned via WithDimensions.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return "ollama/" + e.model
}

// Available checks connectivity with a cheap version probe.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}

// Verify interface implementation
var _ Embedder = (*OllamaEmbedder)(nil)
