package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
)

// Store is the write side of the vector store boundary.
type Store interface {
	EnsureCollection(ctx context.Context, collection string) error
	// Update returns domain.ErrNotFound when id does not exist.
	Update(ctx context.Context, collection string, id uuid.UUID, msg *dommsg.Message, vector []float32) error
	Insert(ctx context.Context, collection string, id uuid.UUID, msg *dommsg.Message, vector []float32) error
}

// Embedder vectorizes message texts.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
