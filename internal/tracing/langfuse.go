// Package tracing wires optional Langfuse tracing into the eino callback
// chain so LLM answer composition can be inspected per question.
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is assumed when no Langfuse host is configured.
const DefaultHost = "http://localhost:3000"

// Config carries the Langfuse connection settings. The caller resolves them
// from the layered configuration; this package never reads the environment
// itself.
type Config struct {
	// Host is the Langfuse API host.
	Host string

	// PublicKey and SecretKey authenticate against the Langfuse project.
	// Tracing is disabled unless both are set.
	PublicKey string
	SecretKey string
}

// Setup initialises the Langfuse callback handler when both keys are
// configured. Returns a flush function that must be called before process
// exit to ensure all traces are sent. When tracing is not configured, both
// return values are nil and tracing is silently disabled.
func Setup(cfg Config) (callbacks.Handler, func(), bool) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})

	return handler, flusher, true
}
