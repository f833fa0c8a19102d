// Package budget provides token budget estimation and passage trimming for
// prompt assembly. Because the answer composer supports multiple chat
// backends with different tokenizers, this package uses a conservative
// character-based heuristic: 1 token ≈ 4 characters (English prose).
// This deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"github.com/docqa-ai/docqa-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving
	// room for the system prompt, the question, and the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimPassages drops the lowest-ranked retrieval entries until the passage
// text fits within maxTokens after subtracting reservedTokens (system prompt,
// question, prompt scaffolding). Entries arrive best-first, so trimming
// removes from the tail and never discards a better match to keep a worse
// one. At least one entry is always kept — a single over-long passage is
// the model's problem, not grounds for an empty prompt.
func TrimPassages(result rag.RetrievalResult, reservedTokens, maxTokens int) rag.RetrievalResult {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	budget := maxTokens - reservedTokens

	entries := result.Entries
	for len(entries) > 1 {
		total := 0
		for _, e := range entries {
			total += Estimate(e.Entry.Text)
		}
		if total <= budget {
			break
		}
		entries = entries[:len(entries)-1]
	}
	return rag.RetrievalResult{Entries: entries}
}
