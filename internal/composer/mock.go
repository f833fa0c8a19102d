// Package composer turns retrieval results into final answers. Two
// implementations share the contract: Mock assembles a deterministic answer
// from the retrieved passages themselves, and LLM asks a chat model to
// synthesize one, falling back to Mock when the model is unreachable.
package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

const (
	// mockPassages is how many top passages the mock answer quotes.
	mockPassages = 2

	// mockExcerptLen is the maximum excerpt length quoted per passage.
	mockExcerptLen = 300

	// mockNote is appended to every mock answer so nobody mistakes it for
	// model output.
	mockNote = "[NOTE: This is a simulated answer assembled from the retrieved passages. Configure a real LLM backend for synthesized answers.]"
)

// Mock composes answers without any model call: it quotes excerpts of the
// best-matching passages verbatim, with page citations. Deterministic, so
// the same retrieval result always yields the same answer text.
type Mock struct{}

// NewMock returns a Mock composer.
func NewMock() *Mock { return &Mock{} }

// Compose builds an answer from the retrieval result. An empty result yields
// the out-of-scope shape rather than an error.
func (m *Mock) Compose(_ context.Context, question string, result rag.RetrievalResult, confidence float64) (rag.Answer, error) {
	if result.Empty() {
		return OutOfScope(question, result, confidence), nil
	}

	var b strings.Builder
	b.WriteString("Based on the available technical documentation:\n\n")

	n := len(result.Entries)
	if n > mockPassages {
		n = mockPassages
	}
	for i := 0; i < n; i++ {
		e := result.Entries[i].Entry
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "According to the documentation (page %d): %s", e.Page, excerpt(e.Text, mockExcerptLen))
	}
	b.WriteString("\n\n")
	b.WriteString(mockNote)

	return rag.Answer{
		Question:   question,
		Text:       b.String(),
		Citations:  citations(result),
		Confidence: confidence,
		InScope:    true,
		Provenance: rag.ProvenanceMock,
	}, nil
}

// OutOfScope builds the refusal answer returned when retrieval found nothing
// close enough to ground a response. Suggestions point at the nearest
// document regions so the caller can rephrase toward covered material.
func OutOfScope(question string, result rag.RetrievalResult, confidence float64) rag.Answer {
	return rag.Answer{
		Question:    question,
		Text:        "The available documentation does not cover this question.",
		Citations:   []rag.Citation{},
		Confidence:  confidence,
		InScope:     false,
		Provenance:  rag.ProvenanceMock,
		Suggestions: suggestions(result),
	}
}

// citations maps every retrieved entry to a citation, best match first.
func citations(result rag.RetrievalResult) []rag.Citation {
	out := make([]rag.Citation, 0, len(result.Entries))
	for _, s := range result.Entries {
		out = append(out, rag.Citation{
			Document: s.Entry.DocumentID,
			Page:     s.Entry.Page,
			ChunkID:  s.Entry.ChunkID,
		})
	}
	return out
}

// suggestions names the closest covered regions, at most three, so an
// out-of-scope answer still tells the user what the corpus does contain.
func suggestions(result rag.RetrievalResult) []string {
	out := make([]string, 0, 3)
	for _, s := range result.Entries {
		if len(out) == 3 {
			break
		}
		out = append(out, fmt.Sprintf("Closest covered topic: %s (%s, page %d)",
			excerpt(s.Entry.Text, 80), s.Entry.DocumentID, s.Entry.Page))
	}
	return out
}

// excerpt truncates text to max characters on a rune boundary, appending an
// ellipsis when anything was cut.
func excerpt(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
