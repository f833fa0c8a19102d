// Package rag defines the core domain types and contracts for the document
// question-answering engine: documents and their chunks, embedding vectors,
// index entries, retrieval results, and composed answers.
// Concrete implementations (chunker, embedder backends, index backends,
// composers) live in their own packages and satisfy the interfaces here so
// the engine layer never depends on a specific backend.
package rag

import (
	"context"
)

// Page is one page of a source document: its 1-based page number and the raw
// extracted text. Text extraction mechanics (PDF parsing etc.) are the
// loader's concern; by the time a Page reaches the engine it is plain text.
type Page struct {
	// Number is the 1-based page number within the source document.
	Number int

	// Text is the raw extracted text of the page. May be empty for pages
	// that contain only images or vector graphics.
	Text string
}

// Document is an ingestable unit of source material. It is created by a
// loader at ingestion time and is immutable once ingested; re-ingesting the
// same source supersedes (never merges with) the earlier ingestion.
type Document struct {
	// ID uniquely identifies the document within the corpus. For file
	// sources this is the cleaned source path.
	ID string

	// Source is the origin path or name of the document, kept for citations.
	Source string

	// Pages is the ordered sequence of pages making up the document.
	Pages []Page
}

// Chunk is a bounded, page-scoped slice of document text — the unit of
// retrieval. A chunk never spans two pages.
type Chunk struct {
	// ID uniquely identifies the chunk within the index. It is derived
	// deterministically from the document ID, page, and window position so
	// re-chunking the same document yields the same IDs.
	ID string

	// DocumentID is the owning document's ID.
	DocumentID string

	// Page is the 1-based page the chunk was cut from.
	Page int

	// Start and End are rune offsets into the page text, with End > Start.
	// End-Start is bounded by the chunker's target size.
	Start int
	End   int

	// Text is the chunk content, the runes of the page text in [Start, End).
	Text string
}

// IndexEntry pairs a chunk with its embedding vector plus the denormalized
// metadata needed to answer a query without a secondary lookup. The index
// owns the entry; the chunk text is duplicated into it for read-path
// locality.
type IndexEntry struct {
	// ID is the internal entry id, assigned by the index in insertion order.
	// It is stable for the lifetime of the index entry and is the
	// deterministic tie-breaker for equal similarity scores.
	ID int64

	// ChunkID, DocumentID, Page, Start, and End mirror the source chunk.
	ChunkID    string
	DocumentID string
	Page       int
	Start      int
	End        int

	// Text is the chunk content, duplicated from the chunk.
	Text string

	// Vector is the chunk's embedding. Its length always equals the active
	// embedding model's declared dimension; a mismatch is a configuration
	// error rejected at Add time, never silently accepted.
	Vector []float32
}

// ScoredEntry is one search hit: an index entry and its similarity to the
// query vector.
type ScoredEntry struct {
	// Entry is the matched index entry.
	Entry IndexEntry

	// Score is the cosine similarity between the query vector and the
	// entry's vector. Higher is more similar.
	Score float32
}

// RetrievalResult is the ordered output of a similarity search, most similar
// first. Ties are broken by entry ID ascending (earlier-ingested chunk wins)
// so search is deterministic.
type RetrievalResult struct {
	// Entries holds up to top-k scored hits, best first.
	Entries []ScoredEntry
}

// Empty reports whether the search produced no hits.
func (r RetrievalResult) Empty() bool { return len(r.Entries) == 0 }

// Top returns the best-scoring entry. Call only when !Empty().
func (r RetrievalResult) Top() ScoredEntry { return r.Entries[0] }

// Citation points a reader at the passage an answer was grounded on.
type Citation struct {
	// Document is the source document ID.
	Document string `json:"document"`

	// Page is the 1-based page number of the cited chunk.
	Page int `json:"page"`

	// ChunkID identifies the exact chunk for debugging and re-retrieval.
	ChunkID string `json:"chunk_id"`
}

// Provenance records which composition path produced an answer, so callers
// can tell a real model response from a deterministic one.
type Provenance string

const (
	// ProvenanceMock marks an answer composed by the deterministic mock
	// composer, selected by configuration.
	ProvenanceMock Provenance = "mock"

	// ProvenanceLLM marks an answer composed by the external language model.
	ProvenanceLLM Provenance = "llm"

	// ProvenanceFallback marks an answer composed by the mock path after the
	// external model failed or timed out.
	ProvenanceFallback Provenance = "mock-fallback"
)

// Answer is the engine's final output for one question. For out-of-scope
// questions (confidence below threshold, or an empty index) InScope is false,
// Text carries no fabricated content, and Suggestions holds the nearest
// passages for the caller's benefit.
type Answer struct {
	// Question is the question as asked.
	Question string `json:"question"`

	// Text is the composed answer. For out-of-scope answers it is a fixed
	// "not found" message, never fabricated content.
	Text string `json:"answer"`

	// Citations lists the passages the answer is grounded on. Empty for
	// out-of-scope answers.
	Citations []Citation `json:"citations"`

	// Confidence is the retrieval confidence in [0,1], recomputed per query
	// and never persisted.
	Confidence float64 `json:"confidence"`

	// InScope is true when the best match cleared the confidence threshold
	// and the answer text is asserted rather than declined.
	InScope bool `json:"in_scope"`

	// Provenance names the composition path that produced Text.
	Provenance Provenance `json:"provenance"`

	// Suggestions holds human-readable hints at the nearest covered topics
	// when the question is out of scope, never asserted as fact.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Embedder converts text into dense vector embeddings of a fixed,
// model-declared dimension. Implementations must be safe to call from
// multiple goroutines and deterministic for a fixed model and input.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings. The returned
	// slice is parallel to the input slice and has the same length.
	// Failures are reported as *EmbeddingError.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector length this embedder produces.
	Dimension() int
}

// Index stores chunk vectors plus denormalized metadata and answers
// similarity queries. Add appends only — entries are never mutated in place.
// Implementations must allow concurrent Search calls and serialize Add
// against both Search and any persistence operation (single writer,
// multiple readers).
type Index interface {
	// Add appends entries, assigning each a new internal ID in insertion
	// order. A vector whose length differs from the index dimension is a
	// fatal configuration error.
	Add(ctx context.Context, entries []IndexEntry) error

	// Search returns up to topK entries nearest to the query vector by
	// cosine similarity, best first. An empty index yields an empty result,
	// not an error.
	Search(ctx context.Context, vector []float32, topK int) (RetrievalResult, error)

	// RemoveDocument removes all entries owned by the given document.
	// Used only by replace-mode re-ingestion; the Add path never removes.
	RemoveDocument(ctx context.Context, documentID string) error

	// Count returns the number of entries currently held.
	Count(ctx context.Context) (int, error)
}

// Composer turns a question and its retrieved passages into a final Answer.
// Implementations must honor the out-of-scope contract: an empty retrieval
// result always yields the declined answer shape.
type Composer interface {
	// Compose produces the final answer for question given the retrieval
	// result and its confidence. It must not fabricate content beyond the
	// supplied passages.
	Compose(ctx context.Context, question string, result RetrievalResult, confidence float64) (Answer, error)
}
