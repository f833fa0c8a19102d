package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Default values applied by Resolve when neither the YAML file nor env vars
// provide a setting.
const (
	DefaultChunkSize           = 2400
	DefaultChunkOverlap        = 400
	DefaultTopK                = 5
	DefaultMaxTopK             = 20
	DefaultConfidenceThreshold = 0.30
	DefaultIndexBackend        = "local"
	DefaultOnDuplicate         = "append"
	DefaultEmbedBatchSize      = 32
	DefaultAnswerProvider      = "mock"
	DefaultAnswerBackend       = "ollama"
	DefaultAnswerTimeout       = 60
	DefaultServerHost          = "0.0.0.0"
	DefaultServerPort          = 8080
)

// Resolve assembles the effective configuration from the environment,
// applying defaults where nothing is set. Call Load first so YAML values
// have been layered into the env.
func Resolve() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   envStr("EMBEDDING_PROVIDER", "ollama"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS", 0),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
			APIVersion: os.Getenv("EMBEDDING_API_VERSION"),
		},
		Chunking: ChunkingConfig{
			Size:    envInt("DOCQA_CHUNK_SIZE", DefaultChunkSize),
			Overlap: envInt("DOCQA_CHUNK_OVERLAP", DefaultChunkOverlap),
		},
		Retrieval: RetrievalConfig{
			TopK:                envInt("DOCQA_TOP_K", DefaultTopK),
			MaxTopK:             envInt("DOCQA_MAX_TOP_K", DefaultMaxTopK),
			ConfidenceThreshold: envFloat("DOCQA_CONFIDENCE_THRESHOLD", DefaultConfidenceThreshold),
		},
		Index: IndexConfig{
			Backend: envStr("DOCQA_INDEX_BACKEND", DefaultIndexBackend),
			Path:    envStr("DOCQA_INDEX_PATH", defaultIndexPath()),
			Qdrant: QdrantConfig{
				Host:       envStr("QDRANT_HOST", "localhost"),
				Port:       envInt("QDRANT_PORT", 6334),
				Collection: envStr("QDRANT_COLLECTION", "docqa"),
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				TLS:        os.Getenv("QDRANT_TLS") == "true",
			},
		},
		Ingest: IngestConfig{
			OnDuplicate: envStr("DOCQA_ON_DUPLICATE", DefaultOnDuplicate),
			BatchSize:   envInt("DOCQA_EMBED_BATCH_SIZE", DefaultEmbedBatchSize),
		},
		Answer: AnswerConfig{
			Provider:       envStr("ANSWER_PROVIDER", DefaultAnswerProvider),
			Backend:        envStr("MODEL_PROVIDER", DefaultAnswerBackend),
			TimeoutSeconds: envInt("MODEL_TIMEOUT_SECONDS", DefaultAnswerTimeout),
			MaxTokens:      envInt("MODEL_MAX_TOKENS", 1024),
			Temperature:    float32(envFloat("MODEL_TEMPERATURE", 0)),
		},
		Server: ServerConfig{
			Host:   envStr("DOCQA_SERVER_HOST", DefaultServerHost),
			Port:   envInt("DOCQA_SERVER_PORT", DefaultServerPort),
			APIKey: os.Getenv("DOCQA_API_KEY"),
		},
		Logging: LoggingConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		Tracing: TracingConfig{
			PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
			SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
			Host:      os.Getenv("LANGFUSE_HOST"),
		},
	}
}

// defaultIndexPath places the index artifact under the user's home
// directory, falling back to the working directory when home is unknown.
func defaultIndexPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", "index.db")
	}
	return filepath.Join(home, ".docqa", "index.db")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
