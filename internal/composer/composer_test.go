package composer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// fakeChatModel returns a canned reply, an error, or blocks until the
// context expires.
type fakeChatModel struct {
	reply string
	err   error
	hang  bool

	// lastPrompt records the user message content of the last Generate call.
	lastPrompt string
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	for _, m := range input {
		if m.Role == schema.User {
			f.lastPrompt = m.Content
		}
	}
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported")
}

func resultWith(texts ...string) rag.RetrievalResult {
	var res rag.RetrievalResult
	for i, text := range texts {
		res.Entries = append(res.Entries, rag.ScoredEntry{
			Entry: rag.IndexEntry{
				ID:         int64(i + 1),
				ChunkID:    fmt.Sprintf("chunk-%d", i+1),
				DocumentID: "manual.pdf",
				Page:       i + 3,
				Text:       text,
			},
			Score: 0.9 - 0.1*float32(i),
		})
	}
	return res
}

func Test_Mock_QuotesTopTwoPassages(t *testing.T) {
	t.Parallel()

	m := NewMock()
	res := resultWith("first passage text", "second passage text", "third passage text")

	ans, err := m.Compose(context.Background(), "what is it?", res, 0.9)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if !ans.InScope {
		t.Error("expected in-scope answer")
	}
	if ans.Provenance != rag.ProvenanceMock {
		t.Errorf("provenance = %q, want %q", ans.Provenance, rag.ProvenanceMock)
	}
	if !strings.Contains(ans.Text, "first passage text") {
		t.Error("answer missing top passage")
	}
	if !strings.Contains(ans.Text, "second passage text") {
		t.Error("answer missing second passage")
	}
	if strings.Contains(ans.Text, "third passage text") {
		t.Error("answer quotes more than two passages")
	}
	if !strings.Contains(ans.Text, "(page 3)") {
		t.Error("answer missing page citation for top passage")
	}
	if len(ans.Citations) != 3 {
		t.Errorf("got %d citations, want one per retrieved entry", len(ans.Citations))
	}
	if ans.Citations[0].ChunkID != "chunk-1" || ans.Citations[0].Page != 3 {
		t.Errorf("top citation = %+v, want chunk-1 page 3", ans.Citations[0])
	}
}

func Test_Mock_Deterministic(t *testing.T) {
	t.Parallel()

	m := NewMock()
	res := resultWith("alpha", "beta")

	a1, err := m.Compose(context.Background(), "q", res, 0.5)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	a2, err := m.Compose(context.Background(), "q", res, 0.5)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if a1.Text != a2.Text {
		t.Error("same input produced different answer text")
	}
}

func Test_Mock_TruncatesLongPassages(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1000)
	m := NewMock()

	ans, err := m.Compose(context.Background(), "q", resultWith(long), 0.8)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(ans.Text, long) {
		t.Error("passage was not truncated")
	}
	if !strings.Contains(ans.Text, strings.Repeat("x", mockExcerptLen)+"...") {
		t.Error("expected excerpt with ellipsis")
	}
}

func Test_Mock_EmptyResult(t *testing.T) {
	t.Parallel()

	m := NewMock()
	ans, err := m.Compose(context.Background(), "anything", rag.RetrievalResult{}, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if ans.InScope {
		t.Error("empty result must be out of scope")
	}
	if len(ans.Citations) != 0 {
		t.Errorf("got %d citations, want none", len(ans.Citations))
	}
}

func Test_OutOfScope_SuggestsNearestTopics(t *testing.T) {
	t.Parallel()

	res := resultWith("battery replacement procedure", "charging port cleaning", "warranty terms", "firmware updates")
	ans := OutOfScope("how do I cook pasta?", res, 0.12)

	if ans.InScope {
		t.Error("expected out-of-scope answer")
	}
	if ans.Confidence != 0.12 {
		t.Errorf("confidence = %f, want 0.12", ans.Confidence)
	}
	if len(ans.Suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3", len(ans.Suggestions))
	}
	if !strings.Contains(ans.Suggestions[0], "battery replacement") {
		t.Errorf("first suggestion should name the closest topic, got %q", ans.Suggestions[0])
	}
}

func Test_LLM_UsesModelAnswer(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: "According to page 3, the answer is 42."}
	l, err := NewLLM(fake, "ollama", time.Second)
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	ans, err := l.Compose(context.Background(), "what is the answer?", resultWith("the answer is 42"), 0.85)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if ans.Provenance != rag.ProvenanceLLM {
		t.Errorf("provenance = %q, want %q", ans.Provenance, rag.ProvenanceLLM)
	}
	if ans.Text != "According to page 3, the answer is 42." {
		t.Errorf("unexpected answer text %q", ans.Text)
	}
	if len(ans.Citations) != 1 {
		t.Errorf("got %d citations, want 1", len(ans.Citations))
	}

	// The prompt must carry the passages and the question.
	if !strings.Contains(fake.lastPrompt, "[Page 3]") || !strings.Contains(fake.lastPrompt, "the answer is 42") {
		t.Errorf("prompt missing passage block:\n%s", fake.lastPrompt)
	}
	if !strings.Contains(fake.lastPrompt, "QUESTION: what is the answer?") {
		t.Errorf("prompt missing question:\n%s", fake.lastPrompt)
	}
}

func Test_LLM_FallsBackOnProviderError(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: fmt.Errorf("connection refused")}
	l, err := NewLLM(fake, "ollama", time.Second)
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	ans, err := l.Compose(context.Background(), "q", resultWith("passage one", "passage two"), 0.7)
	if err != nil {
		t.Fatalf("Compose must not surface provider errors, got %v", err)
	}
	if ans.Provenance != rag.ProvenanceFallback {
		t.Errorf("provenance = %q, want %q", ans.Provenance, rag.ProvenanceFallback)
	}
	if !ans.InScope {
		t.Error("fallback answer must stay in scope")
	}
	if !strings.Contains(ans.Text, "passage one") {
		t.Error("fallback answer missing retrieved passage")
	}
}

func Test_LLM_FallsBackOnTimeout(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{hang: true}
	l, err := NewLLM(fake, "openai", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	start := time.Now()
	ans, err := l.Compose(context.Background(), "q", resultWith("some passage"), 0.6)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fallback took %s, timeout not applied", elapsed)
	}
	if ans.Provenance != rag.ProvenanceFallback {
		t.Errorf("provenance = %q, want %q", ans.Provenance, rag.ProvenanceFallback)
	}
}

func Test_LLM_FallsBackOnEmptyResponse(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: "   "}
	l, err := NewLLM(fake, "gemini", time.Second)
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	ans, err := l.Compose(context.Background(), "q", resultWith("some passage"), 0.6)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if ans.Provenance != rag.ProvenanceFallback {
		t.Errorf("provenance = %q, want %q", ans.Provenance, rag.ProvenanceFallback)
	}
}

func Test_LLM_SkipsModelWhenResultEmpty(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{reply: "should never be asked"}
	l, err := NewLLM(fake, "ollama", time.Second)
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	ans, err := l.Compose(context.Background(), "q", rag.RetrievalResult{}, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if ans.InScope {
		t.Error("empty result must be out of scope")
	}
	if fake.lastPrompt != "" {
		t.Error("model was called for an empty retrieval result")
	}
}
