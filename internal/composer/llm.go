package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docqa-ai/docqa-go/internal/budget"
	"github.com/docqa-ai/docqa-go/internal/logging"
	"github.com/docqa-ai/docqa-go/internal/rag"
)

// DefaultTimeout bounds a single model call. A provider that has not
// answered by then is treated as failed and the mock fallback takes over.
const DefaultTimeout = 60 * time.Second

const systemPrompt = `You are a technical assistant specialized in product documentation.
Your task is to answer questions based EXCLUSIVELY on the information provided below.

IMPORTANT INSTRUCTIONS:
1. Use ONLY the information from the provided documents
2. Always cite the page the information came from (e.g. "According to page 2...")
3. If the information is not in the documents, reply: "Information not found in the provided documentation"
4. Be precise and technical
5. Never invent or speculate`

// LLM composes answers by prompting a chat model with the retrieved
// passages. Any provider failure — timeout, connection refused, bad
// response — degrades to the mock composer instead of failing the question;
// the failure is logged, not surfaced.
type LLM struct {
	// model is the chat backend. Only Generate is used.
	model model.BaseChatModel

	// provider names the backend for error reporting ("ollama", "openai", ...).
	provider string

	// timeout bounds each Generate call.
	timeout time.Duration

	// fallback answers when the model cannot.
	fallback *Mock
}

// NewLLM builds an LLM composer over the given chat model. A zero timeout
// means DefaultTimeout.
func NewLLM(chatModel model.BaseChatModel, provider string, timeout time.Duration) (*LLM, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("composer: chat model is nil")
	}
	if timeout < 0 {
		return nil, fmt.Errorf("composer: timeout must not be negative, got %s", timeout)
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &LLM{
		model:    chatModel,
		provider: provider,
		timeout:  timeout,
		fallback: NewMock(),
	}, nil
}

// Compose prompts the model with the retrieved passages and the question.
// An empty result yields the out-of-scope shape without any model call.
func (l *LLM) Compose(ctx context.Context, question string, result rag.RetrievalResult, confidence float64) (rag.Answer, error) {
	if result.Empty() {
		return OutOfScope(question, result, confidence), nil
	}

	text, err := l.generate(ctx, question, result)
	if err != nil {
		perr := &rag.ProviderError{Provider: l.provider, Reason: err}
		logging.FromContext(ctx).Warn("model call failed, falling back to mock composer",
			slog.String("provider", l.provider),
			slog.Any("error", perr),
		)
		answer, ferr := l.fallback.Compose(ctx, question, result, confidence)
		if ferr != nil {
			return rag.Answer{}, ferr
		}
		answer.Provenance = rag.ProvenanceFallback
		return answer, nil
	}

	return rag.Answer{
		Question:   question,
		Text:       strings.TrimSpace(text),
		Citations:  citations(result),
		Confidence: confidence,
		InScope:    true,
		Provenance: rag.ProvenanceLLM,
	}, nil
}

func (l *LLM) generate(ctx context.Context, question string, result rag.RetrievalResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	reserved := budget.Estimate(systemPrompt) + budget.Estimate(question) + 50
	result = budget.TrimPassages(result, reserved, budget.DefaultMaxContextTokens)

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildPrompt(question, result)),
	}

	msg, err := l.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("composer: generate: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("composer: model returned an empty response")
	}
	return msg.Content, nil
}

// buildPrompt lays the retrieved passages out as page-tagged blocks followed
// by the question, matching the citation instruction in the system prompt.
func buildPrompt(question string, result rag.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("DOCUMENTS:\n")
	for i, s := range result.Entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Page %d]\n%s", s.Entry.Page, s.Entry.Text)
	}
	fmt.Fprintf(&b, "\n\nQUESTION: %s\n\nANSWER (cite the pages):", question)
	return b.String()
}
