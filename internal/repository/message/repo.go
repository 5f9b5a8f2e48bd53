// Package message is the vector store client for chat messages: a Redis or
// Valkey FT index whose vectors come from the configured embedder.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/digestsearch/internal/db"
	"github.com/kailas-cloud/digestsearch/internal/domain"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
)

// store is the consumer interface for the vector store (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetIfExists(ctx context.Context, key string, fields map[string]string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndexes(ctx context.Context) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// Config holds repository settings.
type Config struct {
	KeyPrefix string
	VectorDim int
	// Algorithm selects the vector index; empty means HNSW.
	Algorithm db.VectorAlgorithm
	HNSW      HNSWConfig
}

// Repo implements the vector store boundary used by ingest and search.
type Repo struct {
	store    store
	embedder domain.Embedder
	cfg      Config
}

// New creates a message repository. embedder vectorizes near-text concepts.
func New(s store, embedder domain.Embedder, cfg Config) *Repo {
	return &Repo{store: s, embedder: embedder, cfg: cfg}
}

// EnsureCollection creates the collection index when it is absent.
// A concurrent creator winning the race is success.
func (r *Repo) EnsureCollection(ctx context.Context, collection string) error {
	name := r.indexName(collection)
	if !db.IsValidIdentifier(name) {
		return fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidRequest, collection)
	}

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return storeErr("index exists", name, err)
	}
	if exists {
		return nil
	}

	def, err := r.buildIndex(collection)
	if err != nil {
		return fmt.Errorf("build index %s: %w", name, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return storeErr("create index", name, err)
	}
	return nil
}

// Update overwrites the object id only if it already exists.
// A missing object is domain.ErrNotFound.
func (r *Repo) Update(
	ctx context.Context, collection string, id uuid.UUID, msg *dommsg.Message, vector []float32,
) error {
	key := r.objectKey(collection, id.String())
	if err := r.store.HSetIfExists(ctx, key, messageToHash(msg, vector)); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		return storeErr("update", key, err)
	}
	return nil
}

// Insert writes the object id unconditionally.
func (r *Repo) Insert(
	ctx context.Context, collection string, id uuid.UUID, msg *dommsg.Message, vector []float32,
) error {
	key := r.objectKey(collection, id.String())
	if err := r.store.HSet(ctx, key, messageToHash(msg, vector)); err != nil {
		return storeErr("insert", key, err)
	}
	return nil
}

// QueryNearText embeds concepts, averages them into one query vector and
// returns up to limit nearest objects matching filters, in store order.
// Certainty is derived from cosine distance as 1 - d/2.
func (r *Repo) QueryNearText(
	ctx context.Context, collection string, concepts []string, filters filter.Expression, limit int,
) ([]result.Candidate, error) {
	if len(concepts) == 0 {
		return nil, fmt.Errorf("%w: at least one concept is required", domain.ErrInvalidRequest)
	}

	emb, err := domain.EmbedAll(ctx, r.embedder, concepts)
	if err != nil {
		return nil, fmt.Errorf("embed concepts: %w", err)
	}
	vector, err := domain.Centroid(emb.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}

	name := r.indexName(collection)
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    name,
		Filters:      filters,
		Vector:       vector,
		K:            limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, storeErr("query near text", name, err)
	}
	if sr == nil {
		return nil, nil
	}

	prefix := r.keyPrefix(collection)
	out := make([]result.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		c := result.Candidate{
			ID:      strings.TrimPrefix(e.Key, prefix),
			Message: messageFromHash(e.Fields),
		}
		if e.HasDistance {
			d := e.Distance
			cert := clamp01(1 - d/2)
			c.Distance = &d
			c.Certainty = &cert
		}
		out = append(out, c)
	}
	return out, nil
}

// ListCollections returns the collections under this key prefix.
func (r *Repo) ListCollections(ctx context.Context) ([]string, error) {
	names, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, storeErr("list collections", "", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if c, ok := strings.CutPrefix(n, r.cfg.KeyPrefix); ok && c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// FetchObjects returns up to limit stored messages without ranking.
func (r *Repo) FetchObjects(ctx context.Context, collection string, limit int) ([]dommsg.Message, error) {
	name := r.indexName(collection)
	sr, err := r.store.SearchList(ctx, name, "*", 0, limit, returnFields)
	if err != nil {
		return nil, storeErr("fetch objects", name, err)
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]dommsg.Message, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, messageFromHash(e.Fields))
	}
	return out, nil
}

func storeErr(op, target string, err error) error {
	if target == "" {
		return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStoreUnavailable, op, target, err)
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
