package chi

import (
	"encoding/json"

	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
)

// messageRecord is the wire form of a chat message. ts accepts a JSON number
// or a numeric string and keeps its literal text for id derivation.
type messageRecord struct {
	MessageID   string      `json:"message_id"`
	WorkspaceID string      `json:"workspace_id"`
	ChannelID   string      `json:"channel_id"`
	UserID      string      `json:"user_id"`
	Text        string      `json:"text"`
	TS          json.Number `json:"ts"`
	Topics      []string    `json:"topics,omitempty"`
}

type upsertRequest struct {
	Messages []messageRecord `json:"messages"`
}

type upsertFailure struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type upsertResponse struct {
	UpsertedCount int             `json:"upserted_count"`
	Failed        []upsertFailure `json:"failed,omitempty"`
}

type searchRequest struct {
	WorkspaceID   string   `json:"workspace_id"`
	UserID        string   `json:"user_id,omitempty"`
	Query         string   `json:"query,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	TimeframeDays *int     `json:"timeframe_days,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	MinScore      *float64 `json:"min_score,omitempty"`
	RecencyWeight *float64 `json:"recency_weight,omitempty"`
}

type scoredHit struct {
	MessageID     string      `json:"message_id"`
	WorkspaceID   string      `json:"workspace_id"`
	ChannelID     string      `json:"channel_id"`
	UserID        string      `json:"user_id"`
	Text          string      `json:"text"`
	TS            json.Number `json:"ts"`
	Topics        []string    `json:"topics"`
	SemanticScore float64     `json:"semantic_score"`
	RecencyScore  float64     `json:"recency_score"`
	FinalScore    float64     `json:"final_score"`
}

type searchResponse struct {
	Results []scoredHit `json:"results"`
}

type sampleResponse struct {
	Results []messageRecord `json:"results"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func recordFromWire(m *messageRecord) ingestuc.Record {
	return ingestuc.Record{
		MessageID:   m.MessageID,
		WorkspaceID: m.WorkspaceID,
		ChannelID:   m.ChannelID,
		UserID:      m.UserID,
		Text:        m.Text,
		TS:          m.TS.String(),
		Topics:      m.Topics,
	}
}

func (r *searchRequest) params() request.Params {
	return request.Params{
		WorkspaceID:   r.WorkspaceID,
		UserID:        r.UserID,
		Query:         r.Query,
		Topics:        r.Topics,
		TimeframeDays: r.TimeframeDays,
		TopK:          r.TopK,
		MinScore:      r.MinScore,
		RecencyWeight: r.RecencyWeight,
	}
}

func messageToWire(m *dommsg.Message) messageRecord {
	return messageRecord{
		MessageID:   m.MessageID(),
		WorkspaceID: m.WorkspaceID(),
		ChannelID:   m.ChannelID(),
		UserID:      m.UserID(),
		Text:        m.Text(),
		TS:          json.Number(m.TS().Raw()),
		Topics:      m.Topics(),
	}
}

func hitToWire(h *result.ScoredHit) scoredHit {
	m := h.Message()
	topics := m.Topics()
	if topics == nil {
		topics = []string{}
	}
	return scoredHit{
		MessageID:     m.MessageID(),
		WorkspaceID:   m.WorkspaceID(),
		ChannelID:     m.ChannelID(),
		UserID:        m.UserID(),
		Text:          m.Text(),
		TS:            json.Number(m.TS().Raw()),
		Topics:        topics,
		SemanticScore: h.SemanticScore(),
		RecencyScore:  h.RecencyScore(),
		FinalScore:    h.FinalScore(),
	}
}
