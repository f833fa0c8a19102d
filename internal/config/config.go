// Package config provides YAML-based configuration for docqa.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCQA_CONFIG environment variable
//  3. ~/.docqa/config.yaml
//  4. ./docqa.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Chunking configures document chunking.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval configures search depth and the confidence policy.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Index configures the vector index backend.
	Index IndexConfig `yaml:"index"`

	// Ingest configures ingestion behavior.
	Ingest IngestConfig `yaml:"ingest"`

	// Answer configures answer composition and the LLM backend.
	Answer AnswerConfig `yaml:"answer"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIVersion is the Azure API version (azure provider only).
	APIVersion string `yaml:"api_version"`
}

// ChunkingConfig holds document chunking settings.
type ChunkingConfig struct {
	// Size is the chunk window size in characters.
	Size int `yaml:"size"`
	// Overlap is the character overlap between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds search and confidence settings.
type RetrievalConfig struct {
	// TopK is the default number of passages retrieved per query.
	TopK int `yaml:"top_k"`
	// MaxTopK caps caller-supplied top_k values.
	MaxTopK int `yaml:"max_top_k"`
	// ConfidenceThreshold is the minimum confidence for an in-scope answer.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// IndexConfig holds vector index backend settings.
type IndexConfig struct {
	// Backend selects the index implementation: local, qdrant.
	Backend string `yaml:"backend"`
	// Path is the local index artifact path (local backend only).
	Path string `yaml:"path"`
	// Qdrant holds Qdrant connection settings (qdrant backend only).
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	// OnDuplicate selects re-ingestion semantics: append, replace.
	OnDuplicate string `yaml:"on_duplicate"`
	// BatchSize is the chunk batch size for embedding calls.
	BatchSize int `yaml:"batch_size"`
}

// AnswerConfig holds answer composition settings.
type AnswerConfig struct {
	// Provider selects the composer: mock, llm.
	Provider string `yaml:"provider"`
	// Backend selects the LLM backend: ollama, openai, azure, bedrock, gemini.
	Backend string `yaml:"backend"`
	// TimeoutSeconds bounds a single LLM call before falling back to mock.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxTokens caps tokens generated per answer.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32 `yaml:"temperature"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var DOCQA_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_API_VERSION", func(c *Config) string { return c.Embedding.APIVersion }},
	{"DOCQA_CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"DOCQA_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"DOCQA_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"DOCQA_MAX_TOP_K", func(c *Config) string { return intStr(c.Retrieval.MaxTopK) }},
	{"DOCQA_CONFIDENCE_THRESHOLD", func(c *Config) string { return float64Str(c.Retrieval.ConfidenceThreshold) }},
	{"DOCQA_INDEX_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"DOCQA_INDEX_PATH", func(c *Config) string { return c.Index.Path }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Index.Qdrant.TLS) }},
	{"DOCQA_ON_DUPLICATE", func(c *Config) string { return c.Ingest.OnDuplicate }},
	{"DOCQA_EMBED_BATCH_SIZE", func(c *Config) string { return intStr(c.Ingest.BatchSize) }},
	{"ANSWER_PROVIDER", func(c *Config) string { return c.Answer.Provider }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Answer.Backend }},
	{"MODEL_TIMEOUT_SECONDS", func(c *Config) string { return intStr(c.Answer.TimeoutSeconds) }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Answer.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Answer.Temperature) }},
	{"DOCQA_SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"DOCQA_SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"DOCQA_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DOCQA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".docqa", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("docqa.yaml"); err == nil {
		return "docqa.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
