// Package result holds raw store hits and the ranked hits built from them.
package result

import "github.com/kailas-cloud/digestsearch/internal/domain/message"

// Candidate is a raw hit as returned by the vector store, in store order.
// Certainty and Distance are nil when the store did not report them.
type Candidate struct {
	ID        string
	Message   message.Message
	Certainty *float64
	Distance  *float64
}

// ScoredHit is a ranked search result. It exists only for one response.
type ScoredHit struct {
	msg           message.Message
	semanticScore float64
	recencyScore  float64
	finalScore    float64
}

// NewScoredHit creates a ranked hit.
func NewScoredHit(msg message.Message, semantic, recency, final float64) ScoredHit {
	return ScoredHit{msg: msg, semanticScore: semantic, recencyScore: recency, finalScore: final}
}

// Message returns the matched message.
func (h *ScoredHit) Message() message.Message { return h.msg }

// SemanticScore returns the normalized similarity in [0,1].
func (h *ScoredHit) SemanticScore() float64 { return h.semanticScore }

// RecencyScore returns the time-decayed score in [0,1].
func (h *ScoredHit) RecencyScore() float64 { return h.recencyScore }

// FinalScore returns the blended score in [0,1].
func (h *ScoredHit) FinalScore() float64 { return h.finalScore }
