package rag

import (
	"errors"
	"fmt"
)

// ErrIndexCorrupt is wrapped by every load-time integrity failure: a missing
// or partial artifact, a format version mismatch, or malformed vector data.
// It is fatal at startup; recovery requires re-ingestion from source
// documents.
var ErrIndexCorrupt = errors.New("index corrupt")

// ErrEmptyIndex is returned by operations that require at least one ingested
// document where an empty result cannot express that (never by Search, which
// returns an empty RetrievalResult instead).
var ErrEmptyIndex = errors.New("index is empty")

// IngestionError reports a document that could not be ingested. The index is
// never mutated by a failed ingestion; previously indexed documents are
// unaffected.
type IngestionError struct {
	// Source is the document path or name that failed.
	Source string

	// Reason is the underlying cause.
	Reason error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting %s: %v", e.Source, e.Reason)
}

func (e *IngestionError) Unwrap() error { return e.Reason }

// EmbeddingError reports an embedding backend failure: the model is
// unavailable, or an input exceeds the model's maximum length. It is fatal
// for the current operation and is not retried automatically.
type EmbeddingError struct {
	// Model is the embedding model identifier.
	Model string

	// Reason is the underlying cause.
	Reason error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding with %s: %v", e.Model, e.Reason)
}

func (e *EmbeddingError) Unwrap() error { return e.Reason }

// ProviderError reports an external answer-provider failure (network error,
// timeout, malformed response). It is recovered locally by falling back to
// the mock composer and is logged, never surfaced as a request failure.
type ProviderError struct {
	// Provider is the backend label (e.g. "ollama", "openai").
	Provider string

	// Reason is the underlying cause.
	Reason error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("answer provider %s: %v", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Reason }
