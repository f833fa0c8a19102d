package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa-ai/docqa-go/internal/engine"
	"github.com/docqa-ai/docqa-go/internal/rag"
)

// fakeAnswerer is a test double for the answerer interface. Each method
// returns the canned value or error set on the struct.
type fakeAnswerer struct {
	// answer is returned by Ask when askErr is nil.
	answer rag.Answer
	// askErr forces Ask to fail.
	askErr error
	// result is returned by Search when searchErr is nil.
	result rag.RetrievalResult
	// searchErr forces Search to fail.
	searchErr error
	// stats is returned by Ingest when ingestErr is nil.
	stats engine.IngestStats
	// ingestErr forces Ingest to fail.
	ingestErr error
	// health is returned by Health when healthErr is nil.
	health engine.Health
	// healthErr forces Health to fail.
	healthErr error

	// lastQuestion records the question passed to Ask.
	lastQuestion string
	// lastTopK records the topK passed to Ask or Search.
	lastTopK int
}

func (f *fakeAnswerer) Ask(_ context.Context, question string, topK int) (rag.Answer, error) {
	f.lastQuestion = question
	f.lastTopK = topK
	if f.askErr != nil {
		return rag.Answer{}, f.askErr
	}
	return f.answer, nil
}

func (f *fakeAnswerer) Search(_ context.Context, _ string, topK int) (rag.RetrievalResult, error) {
	f.lastTopK = topK
	if f.searchErr != nil {
		return rag.RetrievalResult{}, f.searchErr
	}
	return f.result, nil
}

func (f *fakeAnswerer) Ingest(_ context.Context, _ string) (engine.IngestStats, error) {
	if f.ingestErr != nil {
		return engine.IngestStats{}, f.ingestErr
	}
	return f.stats, nil
}

func (f *fakeAnswerer) Health(_ context.Context) (engine.Health, error) {
	if f.healthErr != nil {
		return engine.Health{}, f.healthErr
	}
	return f.health, nil
}

// newTestServer builds a Server around a fakeAnswerer with a fresh isolated
// metrics registry.
func newTestServer() *Server {
	return newTestServerWith(&fakeAnswerer{})
}

func newTestServerWith(fake *fakeAnswerer) *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		engine:  fake,
		cfg:     &Config{MetricsRegistry: reg, MetricsGatherer: reg},
		log:     slog.Default(),
		metrics: newServerMetrics(reg),
	}
}

// postJSON builds a POST request with the given value encoded as JSON body.
func postJSON(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

// ---------------------------------------------------------------------------
// POST /api/ask
// ---------------------------------------------------------------------------

func TestHandleAsk_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{answer: rag.Answer{
		Question:   "What is the operating temperature?",
		Text:       "The operating range is -10 to 60 degrees (page 2).",
		Citations:  []rag.Citation{{Document: "manual.pdf", Page: 2, ChunkID: "manual.pdf:2:0"}},
		Confidence: 0.82,
		InScope:    true,
		Provenance: rag.ProvenanceMock,
	}}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ask", askRequest{Question: "What is the operating temperature?", TopK: 3})
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if fake.lastTopK != 3 {
		t.Errorf("expected topK=3 passed through, got %d", fake.lastTopK)
	}

	var got rag.Answer
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.InScope {
		t.Error("expected in_scope:true")
	}
	if len(got.Citations) != 1 || got.Citations[0].Page != 2 {
		t.Errorf("unexpected citations: %+v", got.Citations)
	}
	if got.Provenance != rag.ProvenanceMock {
		t.Errorf("expected provenance %q, got %q", rag.ProvenanceMock, got.Provenance)
	}
}

func TestHandleAsk_OutOfScope(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{answer: rag.Answer{
		Question:   "Will it rain tomorrow?",
		Text:       "The available documentation does not cover this question.",
		Confidence: 0.05,
		InScope:    false,
		Provenance: rag.ProvenanceMock,
	}}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ask", askRequest{Question: "Will it rain tomorrow?"})
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	// Out-of-scope is a valid answer, not an HTTP error.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for out-of-scope answer, got %d", w.Code)
	}

	var got rag.Answer
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.InScope {
		t.Error("expected in_scope:false")
	}
	if len(got.Citations) != 0 {
		t.Errorf("out-of-scope answer must not carry citations, got %d", len(got.Citations))
	}
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := postJSON(t, "/api/ask", askRequest{Question: ""})
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty question, got %d", w.Code)
	}
}

func TestHandleAsk_InvalidBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestHandleAsk_EmbeddingFailureIs502(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{askErr: &rag.EmbeddingError{Model: "nomic-embed-text", Reason: errors.New("connection refused")}}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ask", askRequest{Question: "anything"})
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for embedding failure, got %d", w.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" {
		t.Error("expected non-empty error message")
	}
}

func TestHandleAsk_UnknownFailureIs500(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{askErr: errors.New("boom")}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ask", askRequest{Question: "anything"})
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/search
// ---------------------------------------------------------------------------

func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{result: rag.RetrievalResult{Entries: []rag.ScoredEntry{
		{Entry: rag.IndexEntry{ID: 1, ChunkID: "doc:1:0", DocumentID: "doc", Page: 1, Text: "battery replacement"}, Score: 0.9},
		{Entry: rag.IndexEntry{ID: 2, ChunkID: "doc:3:0", DocumentID: "doc", Page: 3, Text: "warranty terms"}, Score: 0.4},
	}}}
	s := newTestServerWith(fake)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=battery&top_k=2", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if fake.lastTopK != 2 {
		t.Errorf("expected top_k=2 passed through, got %d", fake.lastTopK)
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query != "battery" {
		t.Errorf("expected query echoed, got %q", resp.Query)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Score < resp.Results[1].Score {
		t.Error("results must be ordered best first")
	}
	if resp.Results[0].ChunkID != "doc:1:0" || resp.Results[0].Page != 1 {
		t.Errorf("unexpected first hit: %+v", resp.Results[0])
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing q, got %d", w.Code)
	}
}

func TestHandleSearch_BadTopK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	for _, v := range []string{"abc", "-1", "1.5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=x&top_k="+v, nil)
		w := httptest.NewRecorder()
		s.handleSearch(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("top_k=%q: expected 400, got %d", v, w.Code)
		}
	}
}

func TestHandleSearch_EmptyIndex(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(&fakeAnswerer{})
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=anything", nil)
	w := httptest.NewRecorder()
	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty result, got %d", w.Code)
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected empty results, got %d", len(resp.Results))
	}
}

// ---------------------------------------------------------------------------
// POST /api/ingest
// ---------------------------------------------------------------------------

func TestHandleIngest_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{stats: engine.IngestStats{Document: "manual.pdf", Pages: 12, Chunks: 40}}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ingest", ingestRequest{Path: "/data/manual.pdf"})
	w := httptest.NewRecorder()
	s.handleIngest(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var stats engine.IngestStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Chunks != 40 || stats.Pages != 12 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHandleIngest_MissingPath(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := postJSON(t, "/api/ingest", ingestRequest{})
	w := httptest.NewRecorder()
	s.handleIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing path, got %d", w.Code)
	}
}

func TestHandleIngest_RejectedDocumentIs400(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{ingestErr: &rag.IngestionError{Source: "notes.csv", Reason: errors.New("unsupported file type")}}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ingest", ingestRequest{Path: "notes.csv"})
	w := httptest.NewRecorder()
	s.handleIngest(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for rejected document, got %d", w.Code)
	}
}

func TestHandleIngest_EmbeddingFailureIs502(t *testing.T) {
	t.Parallel()

	fake := &fakeAnswerer{ingestErr: &rag.EmbeddingError{Model: "text-embedding-3-small", Reason: errors.New("rate limited")}}
	s := newTestServerWith(fake)

	req := postJSON(t, "/api/ingest", ingestRequest{Path: "/data/manual.pdf"})
	w := httptest.NewRecorder()
	s.handleIngest(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for embedding failure, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_NilEngine(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}); err == nil {
		t.Error("expected error for nil engine")
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(&fakeAnswerer{}, &Config{MetricsRegistry: reg, MetricsGatherer: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.stopRL()

	if s.cfg.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %q", s.cfg.Host)
	}
	if s.cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", s.cfg.Port)
	}
	if s.httpServer.Addr != "127.0.0.1:8080" {
		t.Errorf("unexpected addr %q", s.httpServer.Addr)
	}
}

// TestRoutes_MethodNotAllowed verifies that the mux rejects wrong methods on
// registered patterns.
func TestRoutes_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(&fakeAnswerer{}, &Config{MetricsRegistry: reg, MetricsGatherer: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.stopRL()

	req := httptest.NewRequest(http.MethodGet, "/api/ask", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /api/ask, got %d", w.Code)
	}
}
