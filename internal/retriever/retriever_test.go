package retriever

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/docqa-ai/docqa-go/internal/index"
	"github.com/docqa-ai/docqa-go/internal/rag"
)

// fakeEmbedder returns canned vectors per exact input text.
type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no canned vector for %q", t)
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func seededIndex(t *testing.T) *index.Local {
	t.Helper()
	idx, err := index.NewLocal(3, "test-model")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	entries := []rag.IndexEntry{
		{ChunkID: "power", DocumentID: "manual.pdf", Page: 2, Text: "power supply specs", Vector: []float32{1, 0, 0}},
		{ChunkID: "temp", DocumentID: "manual.pdf", Page: 7, Text: "operating temperature range", Vector: []float32{0, 1, 0}},
		{ChunkID: "safety", DocumentID: "manual.pdf", Page: 9, Text: "safety notices", Vector: []float32{0, 0, 1}},
	}
	if err := idx.Add(context.Background(), entries); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return idx
}

func Test_New_ValidatesConfig(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dim: 3}
	idx := seededIndex(t)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative top_k", Config{TopK: -1}},
		{"max below default", Config{TopK: 10, MaxTopK: 5}},
		{"threshold above one", Config{ConfidenceThreshold: 1.5}},
		{"threshold negative", Config{ConfidenceThreshold: -0.1}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(emb, idx, tc.cfg); err == nil {
				t.Errorf("New(%+v): expected error", tc.cfg)
			}
		})
	}
}

func Test_Retrieve_RanksNearestFirst(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dim: 3, vectors: map[string][]float32{
		"what is the temperature range?": {0.1, 0.9, 0},
	}}
	r, err := New(emb, seededIndex(t), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := r.Retrieve(context.Background(), "what is the temperature range?", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Empty() {
		t.Fatal("expected results")
	}
	if got := res.Top().Entry.ChunkID; got != "temp" {
		t.Errorf("top result = %q, want %q", got, "temp")
	}
}

func Test_Retrieve_ClampsTopK(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dim: 3, vectors: map[string][]float32{"q": {1, 0, 0}}}
	r, err := New(emb, seededIndex(t), Config{TopK: 1, MaxTopK: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := r.Retrieve(context.Background(), "q", 99)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Errorf("got %d entries, want top_k clamped to 2", len(res.Entries))
	}

	res, err = r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Errorf("got %d entries, want configured default 1", len(res.Entries))
	}
}

func Test_Retrieve_RejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dim: 3, vectors: map[string][]float32{}}
	r, err := New(emb, seededIndex(t), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := r.Retrieve(context.Background(), q, 0); err == nil {
			t.Errorf("Retrieve(%q): expected error", q)
		}
	}
}

func Test_Retrieve_WrapsEmbedderFailure(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dim: 3, err: &rag.EmbeddingError{Model: "test-model", Reason: errors.New("connection refused")}}
	r, err := New(emb, seededIndex(t), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = r.Retrieve(context.Background(), "anything", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	var embErr *rag.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Errorf("error chain lost EmbeddingError: %v", err)
	}
}

func Test_Confidence_TopScoreClamped(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		scores []float32
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float32{0.42}, 0.42},
		{"top wins", []float32{0.7, 0.3, 0.1}, 0.7},
		{"unsorted input", []float32{0.2, 0.8, 0.5}, 0.8},
		{"negative clamped", []float32{-0.3, -0.9}, 0},
		{"float drift clamped", []float32{1.0000002}, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var res rag.RetrievalResult
			for i, s := range tc.scores {
				res.Entries = append(res.Entries, rag.ScoredEntry{
					Entry: rag.IndexEntry{ID: int64(i + 1)},
					Score: s,
				})
			}
			got := Confidence(res)
			if diff := got - tc.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("Confidence = %f, want %f", got, tc.want)
			}
		})
	}
}

func Test_Confidence_Monotonic(t *testing.T) {
	t.Parallel()

	// Raising the best score must never lower confidence.
	prev := -1.0
	for _, top := range []float32{0.0, 0.1, 0.3, 0.5, 0.9, 1.0} {
		res := rag.RetrievalResult{Entries: []rag.ScoredEntry{
			{Entry: rag.IndexEntry{ID: 1}, Score: top},
			{Entry: rag.IndexEntry{ID: 2}, Score: 0.05},
		}}
		got := Confidence(res)
		if got < prev {
			t.Fatalf("confidence dropped from %f to %f as top score rose to %f", prev, got, top)
		}
		prev = got
	}
}

func Test_InScope_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dim: 3}
	r, err := New(emb, seededIndex(t), Config{ConfidenceThreshold: 0.30})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !r.InScope(0.30) {
		t.Error("confidence exactly at threshold must be in scope")
	}
	if !r.InScope(0.31) {
		t.Error("confidence above threshold must be in scope")
	}
	if r.InScope(0.29) {
		t.Error("confidence below threshold must be out of scope")
	}
}
