package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed
// endpoint. It is safe for concurrent use. No API key is required — Ollama
// runs locally.
type OllamaEmbedder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// dimension is the declared output vector length for model. Every
	// response is checked against it.
	dimension int
	// maxChars is the maximum accepted input length per text, in characters.
	maxChars int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Dimension is the declared output vector length for Model.
	Dimension int
	// MaxChars bounds the accepted input length per text. Defaults to
	// DefaultMaxInputChars if zero.
	MaxChars int
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	return &OllamaEmbedder{
		host:      cfg.Host,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		maxChars:  maxChars,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Dimension returns the fixed vector length this embedder produces.
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice. All failures are
// reported as *rag.EmbeddingError.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkInputLengths(texts, e.maxChars); err != nil {
		return nil, &rag.EmbeddingError{Model: e.model, Reason: err}
	}

	body := ollamaEmbedRequest{
		Model: e.model,
		Input: texts,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &rag.EmbeddingError{Model: e.model, Reason: fmt.Errorf("marshal request: %w", err)}
	}

	url := e.host + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &rag.EmbeddingError{Model: e.model, Reason: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &rag.EmbeddingError{Model: e.model, Reason: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &rag.EmbeddingError{Model: e.model, Reason: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, &rag.EmbeddingError{Model: e.model, Reason: fmt.Errorf("%s", msg)}
	}

	if err := checkBatch(result.Embeddings, len(texts), e.dimension); err != nil {
		return nil, &rag.EmbeddingError{Model: e.model, Reason: err}
	}

	return result.Embeddings, nil
}

// Ping probes the Ollama server's /api/tags endpoint so readiness checks can
// report embedder availability without embedding anything.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama embedder: create ping request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama embedder: unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama embedder: ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Name returns the dependency label used in readiness responses.
func (e *OllamaEmbedder) Name() string { return "ollama-embedder" }
