// Package chunker splits a document's pages into overlapping fixed-size
// text windows, each tagged with its source page and character offsets.
// Chunking is deterministic: the same document and configuration always
// yield the same chunk sequence, including chunk IDs.
package chunker

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// Default window parameters, matching the corpus sizes this engine targets
// (technical documentation, not web-scale text).
const (
	// DefaultSize is the target chunk size in characters.
	DefaultSize = 2400

	// DefaultOverlap is the number of characters shared between consecutive
	// chunks from the same page.
	DefaultOverlap = 400
)

// Config holds the chunking window parameters.
type Config struct {
	// Size is the target chunk size in characters. Defaults to DefaultSize
	// if zero.
	Size int

	// Overlap is the overlap between consecutive chunks in characters. Must
	// be smaller than Size. Defaults to DefaultOverlap if zero and Size
	// allows it.
	Overlap int
}

// Chunker cuts documents into page-scoped overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// New validates cfg and constructs a Chunker. An overlap greater than or
// equal to the chunk size is a configuration error reported here, at
// startup, rather than at chunk time.
func New(cfg Config) (*Chunker, error) {
	size := cfg.Size
	if size == 0 {
		size = DefaultSize
	}
	overlap := cfg.Overlap
	if overlap == 0 && cfg.Size == 0 {
		overlap = DefaultOverlap
	}

	if size <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}

	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits doc into an ordered sequence of chunks. Each page is windowed
// independently — a chunk never spans two pages. A page shorter than the
// target size yields exactly one chunk; a page whose text is empty (after
// trimming) yields none.
func (c *Chunker) Chunk(doc rag.Document) []rag.Chunk {
	var chunks []rag.Chunk
	for _, page := range doc.Pages {
		chunks = append(chunks, c.chunkPage(doc.ID, page)...)
	}
	return chunks
}

// chunkPage cuts one page into windows of c.size characters advancing by
// c.size-c.overlap per step. Windows are measured in runes, not bytes, so a
// boundary never splits a multi-byte character; Start and End are rune
// offsets into the page text.
func (c *Chunker) chunkPage(docID string, page rag.Page) []rag.Chunk {
	if strings.TrimSpace(page.Text) == "" {
		return nil
	}
	text := []rune(page.Text)

	var chunks []rag.Chunk
	stride := c.size - c.overlap

	for start := 0; start < len(text); start += stride {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, rag.Chunk{
			ID:         chunkID(docID, page.Number, start),
			DocumentID: docID,
			Page:       page.Number,
			Start:      start,
			End:        end,
			Text:       string(text[start:end]),
		})

		if end == len(text) {
			break
		}
	}

	return chunks
}

// chunkID derives a stable identifier from the document, page, and window
// start so re-chunking the same document reproduces the same IDs.
func chunkID(docID string, page, start int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s#%d#%d", docID, page, start))
	return fmt.Sprintf("%x", h[:16])
}
