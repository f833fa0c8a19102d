// Package engine wires the ingestion and question-answering pipelines
// together behind a single façade used by both the CLI commands and the
// HTTP server.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docqa-ai/docqa-go/internal/chunker"
	"github.com/docqa-ai/docqa-go/internal/composer"
	"github.com/docqa-ai/docqa-go/internal/loader"
	"github.com/docqa-ai/docqa-go/internal/logging"
	"github.com/docqa-ai/docqa-go/internal/rag"
	"github.com/docqa-ai/docqa-go/internal/retriever"
)

// DefaultEmbedBatchSize is how many chunks are embedded per provider call
// during ingestion.
const DefaultEmbedBatchSize = 32

// OnDuplicate selects what happens when a document that is already indexed
// is ingested again.
type OnDuplicate string

const (
	// DuplicateAppend keeps existing entries and appends the new ones.
	DuplicateAppend OnDuplicate = "append"

	// DuplicateReplace removes the document's old entries first.
	DuplicateReplace OnDuplicate = "replace"
)

// Saver is implemented by index backends that persist to a local artifact.
// Remote backends manage their own durability and do not implement it.
type Saver interface {
	Save(ctx context.Context, path string) error
}

// Config holds engine-level settings.
type Config struct {
	// EmbedBatchSize is the chunk batch size for embedding calls
	// (default: 32).
	EmbedBatchSize int

	// OnDuplicate selects append or replace semantics for re-ingestion
	// (default: append).
	OnDuplicate OnDuplicate

	// IndexPath is where the local index artifact is written after each
	// successful ingestion. Ignored when the index does not implement
	// Saver.
	IndexPath string
}

// Engine coordinates the write path (load, chunk, embed, add, save) and the
// read path (embed, search, score, compose). Reads go straight to the index,
// whose own locking keeps them consistent; ingestMu serializes writers so
// two concurrent ingestions cannot interleave their batches.
type Engine struct {
	chunker   *chunker.Chunker
	embedder  rag.Embedder
	index     rag.Index
	retriever *retriever.Retriever
	composer  rag.Composer

	batchSize   int
	onDuplicate OnDuplicate
	indexPath   string

	ingestMu sync.Mutex
}

// New assembles an Engine from its components.
func New(ch *chunker.Chunker, emb rag.Embedder, idx rag.Index, ret *retriever.Retriever, comp rag.Composer, cfg Config) (*Engine, error) {
	if ch == nil || emb == nil || idx == nil || ret == nil || comp == nil {
		return nil, fmt.Errorf("engine: all components are required")
	}
	if cfg.EmbedBatchSize < 0 {
		return nil, fmt.Errorf("engine: embed batch size must not be negative, got %d", cfg.EmbedBatchSize)
	}
	if cfg.EmbedBatchSize == 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	switch cfg.OnDuplicate {
	case "":
		cfg.OnDuplicate = DuplicateAppend
	case DuplicateAppend, DuplicateReplace:
	default:
		return nil, fmt.Errorf("engine: unknown on_duplicate mode %q — valid values: append, replace", cfg.OnDuplicate)
	}
	return &Engine{
		chunker:     ch,
		embedder:    emb,
		index:       idx,
		retriever:   ret,
		composer:    comp,
		batchSize:   cfg.EmbedBatchSize,
		onDuplicate: cfg.OnDuplicate,
		indexPath:   cfg.IndexPath,
	}, nil
}

// IngestStats summarizes one completed ingestion.
type IngestStats struct {
	// Document is the ID the entries were indexed under.
	Document string `json:"document"`

	// Pages is the page count of the source document.
	Pages int `json:"pages"`

	// Chunks is how many chunks were embedded and indexed.
	Chunks int `json:"chunks"`

	// Duration is the wall-clock ingestion time.
	Duration time.Duration `json:"duration_ms"`
}

// Ingest runs the full write path for one document: load, chunk, embed in
// batches, append to the index, and persist the artifact. Ingestions are
// serialized; queries keep running against the index throughout and only
// ever see fully appended batches.
func (e *Engine) Ingest(ctx context.Context, path string) (IngestStats, error) {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	start := time.Now()
	log := logging.FromContext(ctx)

	doc, err := loader.Load(path)
	if err != nil {
		return IngestStats{}, fmt.Errorf("engine: ingest %s: %w", path, err)
	}

	chunks := e.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return IngestStats{}, &rag.IngestionError{Source: path, Reason: errors.New("document produced no chunks")}
	}
	log.Info("document chunked",
		slog.String("document", doc.ID),
		slog.Int("pages", len(doc.Pages)),
		slog.Int("chunks", len(chunks)),
	)

	if e.onDuplicate == DuplicateReplace {
		if err := e.index.RemoveDocument(ctx, doc.ID); err != nil {
			return IngestStats{}, fmt.Errorf("engine: remove previous entries for %s: %w", doc.ID, err)
		}
	}

	for offset := 0; offset < len(chunks); offset += e.batchSize {
		end := offset + e.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return IngestStats{}, fmt.Errorf("engine: embed chunks %d-%d of %s: %w", offset, end-1, doc.ID, err)
		}

		entries := make([]rag.IndexEntry, len(batch))
		for i, c := range batch {
			entries[i] = rag.IndexEntry{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				Page:       c.Page,
				Start:      c.Start,
				End:        c.End,
				Text:       c.Text,
				Vector:     vectors[i],
			}
		}
		if err := e.index.Add(ctx, entries); err != nil {
			return IngestStats{}, fmt.Errorf("engine: index chunks of %s: %w", doc.ID, err)
		}
	}

	if err := e.save(ctx); err != nil {
		return IngestStats{}, err
	}

	stats := IngestStats{
		Document: doc.ID,
		Pages:    len(doc.Pages),
		Chunks:   len(chunks),
		Duration: time.Since(start),
	}
	log.Info("document ingested",
		slog.String("document", stats.Document),
		slog.Int("chunks", stats.Chunks),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// save persists the index artifact when the backend supports it.
func (e *Engine) save(ctx context.Context) error {
	saver, ok := e.index.(Saver)
	if !ok || e.indexPath == "" {
		return nil
	}
	if err := saver.Save(ctx, e.indexPath); err != nil {
		return fmt.Errorf("engine: persist index: %w", err)
	}
	return nil
}

// Ask runs the full read path: retrieve, score, and compose. Questions the
// corpus cannot answer come back as out-of-scope answers, not errors.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (rag.Answer, error) {
	result, err := e.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return rag.Answer{}, fmt.Errorf("engine: ask: %w", err)
	}

	confidence := retriever.Confidence(result)
	if !e.retriever.InScope(confidence) {
		logging.FromContext(ctx).Info("question out of scope",
			slog.Float64("confidence", confidence),
			slog.Float64("threshold", e.retriever.Threshold()),
		)
		return composer.OutOfScope(question, result, confidence), nil
	}

	answer, err := e.composer.Compose(ctx, question, result, confidence)
	if err != nil {
		return rag.Answer{}, fmt.Errorf("engine: compose answer: %w", err)
	}
	return answer, nil
}

// Search runs retrieval only, returning the scored entries without answer
// composition.
func (e *Engine) Search(ctx context.Context, query string, topK int) (rag.RetrievalResult, error) {
	result, err := e.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return rag.RetrievalResult{}, fmt.Errorf("engine: search: %w", err)
	}
	return result, nil
}

// Health describes the engine's readiness to answer questions.
type Health struct {
	// IndexLoaded reports whether an index backend is attached.
	IndexLoaded bool `json:"index_loaded"`

	// EntryCount is the number of indexed entries.
	EntryCount int `json:"entry_count"`
}

// Health reports index status. A counting failure is surfaced in the error,
// with the health struct still describing what is known.
func (e *Engine) Health(ctx context.Context) (Health, error) {
	count, err := e.index.Count(ctx)
	if err != nil {
		return Health{IndexLoaded: false}, fmt.Errorf("engine: health: %w", err)
	}
	return Health{IndexLoaded: true, EntryCount: count}, nil
}

// Ping verifies the embedding provider is reachable when it exposes a
// health probe. Used by the server's readiness endpoint.
func (e *Engine) Ping(ctx context.Context) error {
	p, ok := e.embedder.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Name identifies the engine in readiness reporting.
func (e *Engine) Name() string { return "engine" }
