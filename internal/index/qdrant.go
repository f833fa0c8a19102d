package index

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docqa-ai/docqa-go/internal/rag"
)

// QdrantConfig holds connection parameters for the Qdrant index backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// Dimension is the vector length of the embeddings stored in this
	// collection. Must match the configured embedding model.
	Dimension int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant implements rag.Index backed by a Qdrant instance. Search is
// approximate HNSW rather than exact, but the contract is the same as the
// local backend: cosine scores, best first. Persistence is Qdrant's own,
// so Save and Load do not apply to this backend.
type Qdrant struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrant creates a Qdrant-backed index, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use rag.Index.
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant: dimension must be positive, got %d", cfg.Dimension)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &Qdrant{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}

	return nil
}

// pointID derives a stable UUID for a chunk. Point identity follows chunk
// identity: re-ingesting a document upserts its chunks in place instead of
// duplicating them, and IDs cannot collide across restarts or deletions.
func pointID(chunkID string) string {
	sum := sha256.Sum256([]byte(chunkID))
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// Add upserts entries as points keyed by their chunk-derived UUID. The chunk
// provenance travels in the point payload so search results can carry it
// back out for citations.
func (q *Qdrant) Add(ctx context.Context, entries []rag.IndexEntry) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if len(e.Vector) != q.cfg.Dimension {
			return fmt.Errorf("qdrant: entry %d (chunk %s) has vector dimension %d, collection requires %d — embedding model misconfigured",
				i, e.ChunkID, len(e.Vector), q.cfg.Dimension)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e.ChunkID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"chunk_id":    e.ChunkID,
				"document_id": e.DocumentID,
				"page":        int64(e.Page),
				"start":       int64(e.Start),
				"end":         int64(e.End),
				"text":        e.Text,
			}),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity query and returns the top-k entries,
// best first.
func (q *Qdrant) Search(ctx context.Context, vector []float32, topK int) (rag.RetrievalResult, error) {
	if len(vector) != q.cfg.Dimension {
		return rag.RetrievalResult{}, fmt.Errorf("qdrant: query vector dimension %d, collection requires %d", len(vector), q.cfg.Dimension)
	}
	if topK <= 0 {
		return rag.RetrievalResult{}, fmt.Errorf("qdrant: top_k must be positive, got %d", topK)
	}

	limit := uint64(topK)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return rag.RetrievalResult{}, fmt.Errorf("qdrant: search failed: %w", err)
	}

	entries := make([]rag.ScoredEntry, 0, len(results))
	for _, r := range results {
		var e rag.IndexEntry
		if p := r.Payload; p != nil {
			if v, ok := p["chunk_id"]; ok {
				e.ChunkID = v.GetStringValue()
			}
			if v, ok := p["document_id"]; ok {
				e.DocumentID = v.GetStringValue()
			}
			if v, ok := p["page"]; ok {
				e.Page = int(v.GetIntegerValue())
			}
			if v, ok := p["start"]; ok {
				e.Start = int(v.GetIntegerValue())
			}
			if v, ok := p["end"]; ok {
				e.End = int(v.GetIntegerValue())
			}
			if v, ok := p["text"]; ok {
				e.Text = v.GetStringValue()
			}
		}
		entries = append(entries, rag.ScoredEntry{Entry: e, Score: r.Score})
	}

	return rag.RetrievalResult{Entries: entries}, nil
}

// RemoveDocument deletes all points whose payload names the given document.
// Used only by replace-mode re-ingestion.
func (q *Qdrant) RemoveDocument(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						{
							ConditionOneOf: &qdrant.Condition_Field{
								Field: &qdrant.FieldCondition{
									Key: "document_id",
									Match: &qdrant.Match{
										MatchValue: &qdrant.Match_Keyword{Keyword: documentID},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete document %q: %w", documentID, err)
	}

	return nil
}

// Count returns the number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	info, err := q.client.GetCollectionInfo(ctx, q.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("qdrant: collection info for %q: %w", q.cfg.Collection, err)
	}
	if info.PointsCount == nil {
		return 0, nil
	}
	return int(*info.PointsCount), nil
}

// Ping checks reachability of the Qdrant server for readiness probes.
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check: %w", err)
	}
	return nil
}

// Name identifies this dependency in readiness reporting.
func (q *Qdrant) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
