package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa-ai/docqa-go/internal/engine"
	"github.com/docqa-ai/docqa-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. Must be
	// long enough to cover an ingestion of a large document.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface the handlers call into. *engine.Engine satisfies
// it; tests inject a fake.
type answerer interface {
	// Ask answers a question from the indexed corpus.
	Ask(ctx context.Context, question string, topK int) (rag.Answer, error)
	// Search returns the scored entries for a query without composing an answer.
	Search(ctx context.Context, query string, topK int) (rag.RetrievalResult, error)
	// Ingest indexes the document at path.
	Ingest(ctx context.Context, path string) (engine.IngestStats, error)
	// Health reports index status.
	Health(ctx context.Context) (engine.Health, error)
}

// Server is the HTTP server that exposes the question-answering engine.
type Server struct {
	// engine handles all ask/search/ingest/health calls.
	engine answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// TopK overrides the configured retrieval depth. 0 means default.
	TopK int `json:"top_k,omitempty"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// Path is the server-local path of the document to ingest.
	Path string `json:"path"`
}

// searchHit is one entry of the GET /api/search response.
type searchHit struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`
	// Document is the source document ID.
	Document string `json:"document"`
	// Page is the 1-based source page.
	Page int `json:"page"`
	// Text is the chunk text.
	Text string `json:"text"`
	// Score is the cosine similarity to the query.
	Score float32 `json:"score"`
}

// searchResponse is the JSON response for GET /api/search.
type searchResponse struct {
	// Query echoes the search query.
	Query string `json:"query"`
	// Results holds the scored hits, best first.
	Results []searchHit `json:"results"`
}

// healthResponse is the JSON response for GET /api/health.
type healthResponse struct {
	// Status is "ok" whenever the process is serving.
	Status string `json:"status"`
	// IndexLoaded reports whether an index backend is attached.
	IndexLoaded bool `json:"index_loaded"`
	// EntryCount is the number of indexed entries.
	EntryCount int `json:"entry_count"`
}

// errorResponse is the JSON body for all non-2xx API responses.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
