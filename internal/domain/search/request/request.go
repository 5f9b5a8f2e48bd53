// Package request holds the validated relevance query.
package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/digestsearch/internal/domain"
)

// Search parameter defaults and limits.
const (
	MaxQueryLength = 4096
	MaxTopics      = 32

	DefaultTimeframeDays = 60
	MinTimeframeDays     = 1
	MaxTimeframeDays     = 365

	DefaultTopK = 20
	MaxTopK     = 100

	DefaultMinScore      = 0.0
	DefaultRecencyWeight = 0.3
)

// Params is the unvalidated request as decoded from the wire. Nil numeric
// fields take their defaults.
type Params struct {
	WorkspaceID   string
	UserID        string
	Query         string
	Topics        []string
	TimeframeDays *int
	TopK          *int
	MinScore      *float64
	RecencyWeight *float64
}

// Request is a validated search query.
type Request struct {
	workspaceID   string
	userID        string
	query         string
	topics        []string
	timeframeDays int
	topK          int
	minScore      float64
	recencyWeight float64
}

// New validates params and applies defaults. Every failure wraps
// domain.ErrInvalidRequest.
func New(p Params) (Request, error) {
	r := Request{
		workspaceID:   strings.TrimSpace(p.WorkspaceID),
		userID:        p.UserID,
		query:         strings.TrimSpace(p.Query),
		timeframeDays: DefaultTimeframeDays,
		topK:          DefaultTopK,
		minScore:      DefaultMinScore,
		recencyWeight: DefaultRecencyWeight,
	}

	if r.workspaceID == "" {
		return Request{}, invalid("workspace_id is required")
	}
	if len(r.query) > MaxQueryLength {
		return Request{}, invalid("query too long (max %d chars)", MaxQueryLength)
	}

	for _, t := range p.Topics {
		if t = strings.TrimSpace(t); t != "" {
			r.topics = append(r.topics, t)
		}
	}
	if len(r.topics) > MaxTopics {
		return Request{}, invalid("too many topics (max %d)", MaxTopics)
	}
	if r.query == "" && len(r.topics) == 0 {
		return Request{}, invalid("query or topics is required")
	}

	if p.TimeframeDays != nil {
		r.timeframeDays = *p.TimeframeDays
	}
	if r.timeframeDays < MinTimeframeDays || r.timeframeDays > MaxTimeframeDays {
		return Request{}, invalid("timeframe_days must be between %d and %d", MinTimeframeDays, MaxTimeframeDays)
	}

	if p.TopK != nil {
		r.topK = *p.TopK
	}
	if r.topK < 1 || r.topK > MaxTopK {
		return Request{}, invalid("top_k must be between 1 and %d", MaxTopK)
	}

	if p.MinScore != nil {
		r.minScore = *p.MinScore
	}
	if !unit(r.minScore) {
		return Request{}, invalid("min_score must be between 0 and 1")
	}

	if p.RecencyWeight != nil {
		r.recencyWeight = *p.RecencyWeight
	}
	if !unit(r.recencyWeight) {
		return Request{}, invalid("recency_weight must be between 0 and 1")
	}

	return r, nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// WorkspaceID returns the workspace the search is scoped to.
func (r *Request) WorkspaceID() string { return r.workspaceID }

// UserID returns the requesting user, if any.
func (r *Request) UserID() string { return r.userID }

// Query returns the free-text query (may be empty when topics are set).
func (r *Request) Query() string { return r.query }

// Topics returns the topic concepts.
func (r *Request) Topics() []string { return r.topics }

// TimeframeDays returns the look-back window in days.
func (r *Request) TimeframeDays() int { return r.timeframeDays }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }

// MinScore returns the semantic score floor.
func (r *Request) MinScore() float64 { return r.minScore }

// RecencyWeight returns the blend weight given to recency.
func (r *Request) RecencyWeight() float64 { return r.recencyWeight }

// Concepts returns the query followed by the topics.
func (r *Request) Concepts() []string {
	out := make([]string, 0, len(r.topics)+1)
	if r.query != "" {
		out = append(out, r.query)
	}
	return append(out, r.topics...)
}
