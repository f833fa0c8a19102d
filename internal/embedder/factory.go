package embedder

import (
	"fmt"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimension is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with embedding.dimensions.
	defaultOllamaDimension = 768
	// defaultOpenAIDimension is the output dimension of text-embedding-3-small.
	defaultOpenAIDimension = 1536
)

// Config selects and parameterizes an embedding backend. It is resolved by
// the config package; this factory only validates and constructs.
type Config struct {
	// Provider selects the backend: ollama, openai, azure.
	Provider string

	// Model is the embedding model name. Defaults per backend.
	Model string

	// Dimension is the declared output vector length. Defaults per backend
	// model. The entire index is bound to this value.
	Dimension int

	// Endpoint overrides the backend's default API base URL.
	Endpoint string

	// APIKey authenticates openai/azure backends. Unused for ollama.
	APIKey string

	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string

	// MaxChars bounds the accepted input length per text.
	MaxChars int
}

// New constructs a rag.Embedder from cfg. It validates required settings up
// front so operators get a clear error at startup rather than a cryptic
// failure on the first embed call. Defaulted values (model, dimension) are
// written back into cfg so callers can bind other components — notably the
// index — to the effective model.
func New(cfg *Config) (rag.Embedder, error) {
	switch cfg.Provider {
	case "", "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
		if cfg.Dimension == 0 {
			cfg.Dimension = defaultOllamaDimension
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:      host,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			MaxChars:  cfg.MaxChars,
		}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai backend requires embedding.api_key (or EMBEDDING_API_KEY)")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		if cfg.Dimension == 0 {
			cfg.Dimension = defaultOpenAIDimension
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:   baseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			MaxChars:  cfg.MaxChars,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure backend requires embedding.api_key (or EMBEDDING_API_KEY)")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure backend requires embedding.endpoint (or EMBEDDING_ENDPOINT)")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		if cfg.Dimension == 0 {
			cfg.Dimension = defaultOpenAIDimension
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimension:  cfg.Dimension,
			MaxChars:   cfg.MaxChars,
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure", cfg.Provider)
	}
}
