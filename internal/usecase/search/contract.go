package search

import (
	"context"

	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
)

// Repository is the read side of the vector store boundary.
type Repository interface {
	// QueryNearText returns up to limit hits for concepts matching filters,
	// in the store's native order.
	QueryNearText(
		ctx context.Context, collection string,
		concepts []string, filters filter.Expression, limit int,
	) ([]result.Candidate, error)

	FetchObjects(ctx context.Context, collection string, limit int) ([]dommsg.Message, error)
}
