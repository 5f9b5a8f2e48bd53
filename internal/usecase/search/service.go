// Package search answers relevance queries: it over-fetches candidates from
// the vector store and re-ranks them by a blend of similarity and recency.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
	"github.com/kailas-cloud/digestsearch/internal/logger"
	"github.com/kailas-cloud/digestsearch/internal/metrics"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// DefaultSampleLimit is the number of messages Sample returns by default.
const DefaultSampleLimit = 20

// MaxSampleLimit caps Sample.
const MaxSampleLimit = 100

// Service runs searches against one collection.
type Service struct {
	repo       Repository
	collection string
	opts       QueryOptions
}

// New creates a search service.
func New(repo Repository, collection string, opts QueryOptions) *Service {
	return &Service{repo: repo, collection: collection, opts: opts.withDefaults()}
}

// Search returns up to req.TopK() ranked hits. An empty candidate set is an
// empty result, not an error.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.ScoredHit, error) {
	q, err := BuildQuery(req, timeNow(), s.opts)
	if err != nil {
		return nil, err
	}

	hits, err := s.repo.QueryNearText(ctx, s.collection, q.Concepts, q.Filter, q.FetchLimit)
	if err != nil {
		logger.FromContext(ctx).Error("Near-text query failed",
			zap.String("collection", s.collection),
			zap.String("workspace_id", req.WorkspaceID()),
			zap.Int("limit", q.FetchLimit),
			zap.Error(err),
		)
		return nil, fmt.Errorf("query near text: %w", err)
	}

	ranked := Rank(hits, q.MinTS, q.Now, req)

	metrics.SearchCandidates.Observe(float64(len(hits)))
	metrics.SearchResults.Observe(float64(len(ranked)))
	logger.Annotate(ctx,
		zap.String("workspace_id", req.WorkspaceID()),
		zap.String("user_id", req.UserID()),
		zap.Int("concepts", len(q.Concepts)),
		zap.Int("fetch_limit", q.FetchLimit),
		zap.Int("candidates", len(hits)),
		zap.Int("results", len(ranked)),
	)

	return ranked, nil
}

// Sample returns up to limit stored messages without ranking.
func (s *Service) Sample(ctx context.Context, limit int) ([]dommsg.Message, error) {
	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	if limit > MaxSampleLimit {
		return nil, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidRequest, MaxSampleLimit)
	}

	msgs, err := s.repo.FetchObjects(ctx, s.collection, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch objects: %w", err)
	}
	return msgs, nil
}
