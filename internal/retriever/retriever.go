// Package retriever turns a natural-language question into a ranked set of
// index entries plus a confidence judgement about whether the corpus can
// answer it at all.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

const (
	// DefaultTopK is the number of entries retrieved when the caller does
	// not ask for a specific count.
	DefaultTopK = 5

	// DefaultMaxTopK caps caller-supplied top-k values so a single query
	// cannot drag the whole index through the composer.
	DefaultMaxTopK = 20

	// DefaultConfidenceThreshold is the minimum top similarity score for
	// a question to count as answerable from the corpus.
	DefaultConfidenceThreshold = 0.30
)

// Config controls retrieval depth and the in-scope decision.
type Config struct {
	// TopK is the default number of entries to retrieve (default: 5).
	TopK int

	// MaxTopK caps caller-supplied top-k values (default: 20).
	MaxTopK int

	// ConfidenceThreshold is the minimum confidence for a question to be
	// considered in scope (default: 0.30). Must lie in [0, 1].
	ConfidenceThreshold float64
}

// Retriever runs the read path: embed the question, search the index,
// score the outcome.
type Retriever struct {
	embedder  rag.Embedder
	index     rag.Index
	topK      int
	maxTopK   int
	threshold float64
}

// New validates cfg and builds a Retriever over the given embedder and index.
func New(embedder rag.Embedder, index rag.Index, cfg Config) (*Retriever, error) {
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxTopK == 0 {
		cfg.MaxTopK = DefaultMaxTopK
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("retriever: top_k must be positive, got %d", cfg.TopK)
	}
	if cfg.MaxTopK < cfg.TopK {
		return nil, fmt.Errorf("retriever: max_top_k %d is below top_k %d", cfg.MaxTopK, cfg.TopK)
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("retriever: confidence_threshold must be in [0, 1], got %g", cfg.ConfidenceThreshold)
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		topK:      cfg.TopK,
		maxTopK:   cfg.MaxTopK,
		threshold: cfg.ConfidenceThreshold,
	}, nil
}

// Threshold returns the configured in-scope confidence threshold.
func (r *Retriever) Threshold() float64 { return r.threshold }

// Retrieve embeds the question and returns the topK nearest entries. A topK
// of 0 means the configured default; values above the configured maximum are
// clamped, not rejected. An empty question is rejected before any embedding
// call is made.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) (rag.RetrievalResult, error) {
	if strings.TrimSpace(question) == "" {
		return rag.RetrievalResult{}, fmt.Errorf("retriever: question is empty")
	}
	if topK <= 0 {
		topK = r.topK
	}
	if topK > r.maxTopK {
		topK = r.maxTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return rag.RetrievalResult{}, fmt.Errorf("retriever: embed question: %w", err)
	}
	if len(vectors) != 1 {
		return rag.RetrievalResult{}, fmt.Errorf("retriever: embedder returned %d vectors for one question", len(vectors))
	}

	result, err := r.index.Search(ctx, vectors[0], topK)
	if err != nil {
		return rag.RetrievalResult{}, fmt.Errorf("retriever: search index: %w", err)
	}
	return result, nil
}

// InScope reports whether a confidence value clears the threshold.
func (r *Retriever) InScope(confidence float64) bool {
	return confidence >= r.threshold
}
