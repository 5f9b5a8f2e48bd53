package digestsearch

// Message is a chat message. TS is the Unix timestamp in seconds exactly as
// the chat platform sent it; it is part of the message identity.
type Message struct {
	MessageID   string
	WorkspaceID string
	ChannelID   string
	UserID      string
	Text        string
	TS          string
	Topics      []string
}

// SearchRequest is a relevance query. Nil numeric fields take the defaults:
// 60 days, top 20, no score floor, recency weight 0.3.
type SearchRequest struct {
	WorkspaceID   string
	UserID        string
	Query         string
	Topics        []string
	TimeframeDays *int
	TopK          *int
	MinScore      *float64
	RecencyWeight *float64
}

// Hit is a ranked search result.
type Hit struct {
	Message
	SemanticScore float64
	RecencyScore  float64
	FinalScore    float64
}

// Outcome is the per-message result of an upsert.
type Outcome string

// Outcome values.
const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeInserted Outcome = "inserted"
	OutcomeFailed   Outcome = "failed"
)

// UpsertResult reports one message of a batch.
type UpsertResult struct {
	MessageID string
	ObjectID  string
	Outcome   Outcome
	Err       error
}

// UpsertReport summarizes a batch.
type UpsertReport struct {
	Upserted int
	Results  []UpsertResult
}

// HealthStatus is the aggregated system health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component -> "ok", "error" or "missing"
}
