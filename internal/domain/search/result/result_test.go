package result

import (
	"testing"

	"github.com/kailas-cloud/digestsearch/internal/domain/message"
)

func TestNewScoredHit(t *testing.T) {
	ts, _ := message.ParseTimestamp("1711000000")
	msg := message.Reconstruct("M1", "W1", "C1", "U1", "ship it", ts, []string{"release"})

	h := NewScoredHit(msg, 0.9, 0.5, 0.7)

	if h.SemanticScore() != 0.9 || h.RecencyScore() != 0.5 || h.FinalScore() != 0.7 {
		t.Errorf("unexpected scores: %v %v %v", h.SemanticScore(), h.RecencyScore(), h.FinalScore())
	}
	m := h.Message()
	if m.MessageID() != "M1" || m.Text() != "ship it" {
		t.Errorf("unexpected message %+v", m)
	}
}
