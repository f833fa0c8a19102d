package budget

import (
	"strings"
	"testing"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 4000), 1000},
	}

	for _, tc := range cases {
		if got := Estimate(tc.in); got != tc.want {
			t.Errorf("Estimate(%d chars): expected %d, got %d", len(tc.in), tc.want, got)
		}
	}
}

// entriesOf builds a best-first result with one entry per text.
func entriesOf(texts ...string) rag.RetrievalResult {
	var r rag.RetrievalResult
	for i, txt := range texts {
		r.Entries = append(r.Entries, rag.ScoredEntry{
			Entry: rag.IndexEntry{ID: int64(i + 1), Page: i + 1, Text: txt},
			Score: 1.0 - float32(i)*0.1,
		})
	}
	return r
}

func TestTrimPassages_FitsUntouched(t *testing.T) {
	t.Parallel()

	r := entriesOf("short one", "short two", "short three")
	got := TrimPassages(r, 100, 6000)

	if len(got.Entries) != 3 {
		t.Errorf("expected all 3 entries kept, got %d", len(got.Entries))
	}
}

func TestTrimPassages_DropsWorstFirst(t *testing.T) {
	t.Parallel()

	// Each passage is ~250 tokens; budget after reservation holds two.
	big := strings.Repeat("w", 1000)
	r := entriesOf(big, big, big, big)

	got := TrimPassages(r, 0, 500)

	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries kept, got %d", len(got.Entries))
	}
	// Best-ranked entries survive; the tail is trimmed.
	if got.Entries[0].Entry.ID != 1 || got.Entries[1].Entry.ID != 2 {
		t.Errorf("expected entries 1 and 2 kept, got %d and %d",
			got.Entries[0].Entry.ID, got.Entries[1].Entry.ID)
	}
}

func TestTrimPassages_KeepsAtLeastOne(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("w", 100000)
	r := entriesOf(huge)

	got := TrimPassages(r, 0, 100)

	if len(got.Entries) != 1 {
		t.Errorf("expected the single over-budget entry kept, got %d", len(got.Entries))
	}
}

func TestTrimPassages_ZeroBudgetUsesDefault(t *testing.T) {
	t.Parallel()

	r := entriesOf("normal sized passage")
	got := TrimPassages(r, 0, 0)

	if len(got.Entries) != 1 {
		t.Errorf("expected entry kept under default budget, got %d", len(got.Entries))
	}
}
