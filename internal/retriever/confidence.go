package retriever

import "github.com/docqa-ai/docqa-go/internal/rag"

// Confidence maps a retrieval result to a value in [0, 1]. The policy is the
// best cosine score among the retrieved entries, clamped: the single closest
// chunk decides whether the corpus speaks to the question, and a result whose
// best match improves can never lose confidence. An empty result has
// confidence 0.
func Confidence(result rag.RetrievalResult) float64 {
	if result.Empty() {
		return 0
	}
	best := float64(result.Entries[0].Score)
	for _, e := range result.Entries[1:] {
		if s := float64(e.Score); s > best {
			best = s
		}
	}
	if best < 0 {
		return 0
	}
	if best > 1 {
		return 1
	}
	return best
}
