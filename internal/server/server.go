// Package server implements the HTTP server that exposes the docqa engine
// via a REST API. The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docqa-ai/docqa-go/internal/logging"
	"github.com/docqa-ai/docqa-go/internal/rag"
)

// New constructs a Server from the provided engine and config.
func New(eng answerer, cfg *Config) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full ingestion round-trip.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:  eng,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}
	registerIndexGauge(cfg.MetricsRegistry, eng)

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("server: DOCQA_API_KEY not set — API authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", s.instrument("ask", s.protect(rl, http.HandlerFunc(s.handleAsk))))
	mux.Handle("GET /api/search", s.instrument("search", s.protect(rl, http.HandlerFunc(s.handleSearch))))
	mux.Handle("POST /api/ingest", s.instrument("ingest", s.protect(rl, http.HandlerFunc(s.handleIngest))))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(cfg.Logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// protect wraps a handler with auth and per-IP rate limiting. Health and
// readiness probes stay unprotected so orchestrators can reach them.
func (s *Server) protect(rl *rateLimiter, next http.Handler) http.Handler {
	return authMiddleware(s.cfg.APIKey, rl.middleware(next))
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask: retrieve, score, compose, respond.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues("error").Inc()
		s.writeEngineError(w, r, err)
		return
	}

	outcome := "ok"
	if !answer.InScope {
		outcome = "out_of_scope"
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	s.writeJSON(w, http.StatusOK, answer)
}

// handleSearch handles GET /api/search?q=...&top_k=N.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	topK := 0
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "top_k must be a non-negative integer")
			return
		}
		topK = n
	}

	result, err := s.engine.Search(r.Context(), query, topK)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	resp := searchResponse{Query: query, Results: make([]searchHit, 0, len(result.Entries))}
	for _, e := range result.Entries {
		resp.Results = append(resp.Results, searchHit{
			ChunkID:  e.Entry.ChunkID,
			Document: e.Entry.DocumentID,
			Page:     e.Entry.Page,
			Text:     e.Entry.Text,
			Score:    e.Score,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleIngest handles POST /api/ingest. The document path is server-local;
// ingestion runs synchronously and responds with the chunk count.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	stats, err := s.engine.Ingest(r.Context(), req.Path)
	if err != nil {
		s.metrics.ingestTotal.WithLabelValues("error").Inc()
		s.writeEngineError(w, r, err)
		return
	}

	s.metrics.ingestTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(stats.Chunks))
	s.writeJSON(w, http.StatusOK, stats)
}

// handleHealth handles GET /api/health for liveness checks plus basic index
// status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.engine.Health(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		IndexLoaded: h.IndexLoaded,
		EntryCount:  h.EntryCount,
	})
}

// writeEngineError maps engine failures to HTTP status codes: caller
// mistakes are 400, upstream provider problems are 502, everything else 500.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())

	var ingErr *rag.IngestionError
	var embErr *rag.EmbeddingError
	switch {
	case errors.As(err, &ingErr):
		log.Warn("ingestion rejected", slog.Any("error", err))
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &embErr):
		log.Error("embedding provider failure", slog.Any("error", err))
		s.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, rag.ErrIndexCorrupt):
		log.Error("index corruption detected", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.Error("request failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON encodes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode error", slog.Any("error", err))
	}
}

// writeError encodes a JSON error body with the given status.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
