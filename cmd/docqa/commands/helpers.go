package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docqa-ai/docqa-go/internal/chunker"
	"github.com/docqa-ai/docqa-go/internal/composer"
	"github.com/docqa-ai/docqa-go/internal/config"
	"github.com/docqa-ai/docqa-go/internal/embedder"
	"github.com/docqa-ai/docqa-go/internal/engine"
	"github.com/docqa-ai/docqa-go/internal/index"
	"github.com/docqa-ai/docqa-go/internal/provider"
	"github.com/docqa-ai/docqa-go/internal/rag"
	"github.com/docqa-ai/docqa-go/internal/retriever"
	"github.com/docqa-ai/docqa-go/internal/server"
)

// buildEngine assembles the full question-answering engine from the resolved
// configuration: embedder, index backend, retriever, composer. The returned
// close function releases backend resources (Qdrant connection) and must be
// called before exit. Pingers for /api/ready are returned alongside.
func buildEngine(ctx context.Context, cfg *config.Config, log *slog.Logger) (*engine.Engine, []server.Pinger, func(), error) {
	noop := func() {}

	embedder.WarnIfChatModel(log, cfg.Embedding.Model)

	embCfg := &embedder.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimensions,
		Endpoint:   cfg.Embedding.Endpoint,
		APIKey:     cfg.Embedding.APIKey,
		APIVersion: cfg.Embedding.APIVersion,
	}
	emb, err := embedder.New(embCfg)
	if err != nil {
		return nil, nil, noop, err
	}
	log.Info("embedder initialised",
		slog.String("provider", cfg.Embedding.Provider),
		slog.String("model", embCfg.Model),
		slog.Int("dimension", embCfg.Dimension),
	)

	idx, closeIdx, err := buildIndex(ctx, cfg, embCfg, log)
	if err != nil {
		return nil, nil, noop, err
	}

	ret, err := retriever.New(emb, idx, retriever.Config{
		TopK:                cfg.Retrieval.TopK,
		MaxTopK:             cfg.Retrieval.MaxTopK,
		ConfidenceThreshold: cfg.Retrieval.ConfidenceThreshold,
	})
	if err != nil {
		closeIdx()
		return nil, nil, noop, err
	}

	comp, err := buildComposer(ctx, cfg, log)
	if err != nil {
		closeIdx()
		return nil, nil, noop, err
	}

	ch, err := chunker.New(chunker.Config{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap})
	if err != nil {
		closeIdx()
		return nil, nil, noop, err
	}

	indexPath := ""
	if cfg.Index.Backend == "local" {
		indexPath = cfg.Index.Path
	}
	eng, err := engine.New(ch, emb, idx, ret, comp, engine.Config{
		EmbedBatchSize: cfg.Ingest.BatchSize,
		OnDuplicate:    engine.OnDuplicate(cfg.Ingest.OnDuplicate),
		IndexPath:      indexPath,
	})
	if err != nil {
		closeIdx()
		return nil, nil, noop, err
	}

	pingers := []server.Pinger{eng}
	if p, ok := idx.(server.Pinger); ok {
		pingers = append(pingers, p)
	}

	return eng, pingers, closeIdx, nil
}

// buildIndex constructs the configured index backend. For the local backend
// an existing artifact is loaded when present; a missing artifact means a
// fresh start, while a damaged one is a fatal error requiring re-ingestion.
func buildIndex(ctx context.Context, cfg *config.Config, embCfg *embedder.Config, log *slog.Logger) (rag.Index, func(), error) {
	noop := func() {}

	switch cfg.Index.Backend {
	case "", "local":
		idx, err := index.LoadLocal(ctx, cfg.Index.Path, embCfg.Dimension, embCfg.Model)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Info("no index artifact found, starting empty", slog.String("path", cfg.Index.Path))
				fresh, newErr := index.NewLocal(embCfg.Dimension, embCfg.Model)
				if newErr != nil {
					return nil, noop, newErr
				}
				return fresh, noop, nil
			}
			if errors.Is(err, rag.ErrIndexCorrupt) {
				return nil, noop, fmt.Errorf("index artifact at %s is unusable — delete it and re-ingest: %w", cfg.Index.Path, err)
			}
			return nil, noop, err
		}
		count, _ := idx.Count(ctx)
		log.Info("index loaded", slog.String("path", cfg.Index.Path), slog.Int("entries", count))
		return idx, noop, nil

	case "qdrant":
		q, err := index.NewQdrant(ctx, &index.QdrantConfig{
			Host:       cfg.Index.Qdrant.Host,
			Port:       cfg.Index.Qdrant.Port,
			Collection: cfg.Index.Qdrant.Collection,
			Dimension:  embCfg.Dimension,
			APIKey:     cfg.Index.Qdrant.APIKey,
			UseTLS:     cfg.Index.Qdrant.TLS,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to qdrant at %s:%d: %w", cfg.Index.Qdrant.Host, cfg.Index.Qdrant.Port, err)
		}
		log.Info("qdrant index ready",
			slog.String("host", cfg.Index.Qdrant.Host),
			slog.Int("port", cfg.Index.Qdrant.Port),
			slog.String("collection", cfg.Index.Qdrant.Collection),
		)
		return q, func() { _ = q.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown index backend %q — valid values: local, qdrant", cfg.Index.Backend)
	}
}

// buildComposer selects the answer composer: the deterministic mock, or an
// external chat model wrapped with timeout and mock fallback.
func buildComposer(ctx context.Context, cfg *config.Config, log *slog.Logger) (rag.Composer, error) {
	switch cfg.Answer.Provider {
	case "", "mock":
		return composer.NewMock(), nil

	case "llm":
		backend := provider.Backend(cfg.Answer.Backend)
		chatModel, err := provider.New(ctx, provider.ConfigFromEnv(backend))
		if err != nil {
			return nil, fmt.Errorf("failed to initialise answer model: %w", err)
		}
		timeout := time.Duration(cfg.Answer.TimeoutSeconds) * time.Second
		log.Info("answer model initialised",
			slog.String("backend", cfg.Answer.Backend),
			slog.Duration("timeout", timeout),
		)
		return composer.NewLLM(chatModel, cfg.Answer.Backend, timeout)

	default:
		return nil, fmt.Errorf("unknown answer provider %q — valid values: mock, llm", cfg.Answer.Provider)
	}
}
