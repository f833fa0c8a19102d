// Package index provides the vector index backends: a file-persisted local
// index doing exact brute-force cosine search, and a Qdrant-backed remote
// index behind the same contract. Exactness matters more than asymptotic
// speed at the corpus sizes this engine targets (documentation corpora, not
// web-scale), so the brute-force scan is the reference implementation and
// the Qdrant backend is the approximate drop-in.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// Local is an in-memory, append-only vector index with exact cosine search.
// A single RWMutex enforces the engine's single-writer, multiple-reader
// discipline: Add, RemoveDocument, and Save take the write lock; Search and
// Count take the read lock, so a query never observes a half-written index.
type Local struct {
	// mu guards all fields below.
	mu sync.RWMutex

	// dimension is the vector length every entry must have. Fixed at
	// construction from the embedding model's declared dimension.
	dimension int

	// model is the embedding model identifier the index is bound to.
	// Persisted with the entries so a load under a different model fails
	// loudly instead of searching garbage.
	model string

	// nextID is the internal ID assigned to the next appended entry.
	// IDs are assigned in insertion order and never reused.
	nextID int64

	// entries is the append-only entry set, in insertion order.
	entries []rag.IndexEntry
}

// NewLocal constructs an empty Local index bound to the given embedding
// dimension and model identifier.
func NewLocal(dimension int, model string) (*Local, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dimension)
	}
	return &Local{dimension: dimension, model: model, nextID: 1}, nil
}

// Dimension returns the vector length this index is bound to.
func (l *Local) Dimension() int { return l.dimension }

// Model returns the embedding model identifier this index is bound to.
func (l *Local) Model() string { return l.model }

// Add appends entries, assigning each a new internal ID in insertion order.
// Existing entries are never mutated or removed. A vector whose length
// differs from the index dimension is a fatal configuration error — the
// whole batch is rejected and the index is left untouched.
func (l *Local) Add(_ context.Context, entries []rag.IndexEntry) error {
	for i, e := range entries {
		if len(e.Vector) != l.dimension {
			return fmt.Errorf("index: entry %d (chunk %s) has vector dimension %d, index requires %d — embedding model misconfigured",
				i, e.ChunkID, len(e.Vector), l.dimension)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		e.ID = l.nextID
		l.nextID++
		l.entries = append(l.entries, e)
	}
	return nil
}

// Search returns up to topK entries nearest to the query vector by cosine
// similarity, best first. Ties are broken by internal ID ascending so the
// earlier-ingested chunk wins and search stays deterministic. An empty index
// yields an empty result, not an error.
func (l *Local) Search(_ context.Context, vector []float32, topK int) (rag.RetrievalResult, error) {
	if len(vector) != l.dimension {
		return rag.RetrievalResult{}, fmt.Errorf("index: query vector dimension %d, index requires %d", len(vector), l.dimension)
	}
	if topK <= 0 {
		return rag.RetrievalResult{}, fmt.Errorf("index: top_k must be positive, got %d", topK)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	scored := make([]rag.ScoredEntry, 0, len(l.entries))
	for i := range l.entries {
		scored = append(scored, rag.ScoredEntry{
			Entry: l.entries[i],
			Score: cosine(vector, l.entries[i].Vector),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.ID < scored[j].Entry.ID
	})

	if topK < len(scored) {
		scored = scored[:topK]
	}
	return rag.RetrievalResult{Entries: scored}, nil
}

// RemoveDocument removes all entries owned by the given document. Used only
// by replace-mode re-ingestion; the Add path never removes.
func (l *Local) RemoveDocument(_ context.Context, documentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	l.entries = kept
	return nil
}

// Count returns the number of entries currently held.
func (l *Local) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// cosine computes the cosine similarity between two equal-length vectors.
// Returns 0 when either vector has zero norm.
func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
