package search

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
)

const secondsPerDay = 86400

// Over-fetch defaults. Ranking drops hits below min_score and reorders by
// recency, so the store is asked for more than top_k. A larger factor costs
// more store work per query and loses fewer qualifying hits.
const (
	DefaultOverfetchFactor = 3
	DefaultMaxFetch        = 200
)

// QueryOptions tune candidate retrieval.
type QueryOptions struct {
	OverfetchFactor int
	MaxFetch        int
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = DefaultOverfetchFactor
	}
	if o.MaxFetch <= 0 {
		o.MaxFetch = DefaultMaxFetch
	}
	return o
}

// Query is the store-native form of a search request.
type Query struct {
	// Filter is the only server-side filter: workspace scope and time window.
	Filter filter.Expression
	// Concepts are the near-text inputs: the query followed by the topics.
	Concepts   []string
	FetchLimit int
	// MinTS and Now are Unix seconds bounding the recency window.
	MinTS float64
	Now   float64
}

// BuildQuery translates req into a store query as of now.
func BuildQuery(req *request.Request, now time.Time, opts QueryOptions) (Query, error) {
	concepts := req.Concepts()
	if len(concepts) == 0 {
		return Query{}, fmt.Errorf("%w: query or topics is required", domain.ErrInvalidRequest)
	}
	opts = opts.withDefaults()

	nowSec := unixSeconds(now)
	minTS := nowSec - float64(req.TimeframeDays())*secondsPerDay

	ws, err := filter.Equal("workspace_id", req.WorkspaceID())
	if err != nil {
		return Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	since, err := filter.GreaterThanEqual("ts", minTS)
	if err != nil {
		return Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	expr, err := filter.And(ws, since)
	if err != nil {
		return Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	return Query{
		Filter:     expr,
		Concepts:   concepts,
		FetchLimit: min(req.TopK()*opts.OverfetchFactor, opts.MaxFetch),
		MinTS:      minTS,
		Now:        nowSec,
	}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
