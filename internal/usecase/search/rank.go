package search

import (
	"sort"

	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
)

// recencyEpsilon keeps the recency denominator positive when now == minTS.
const recencyEpsilon = 1e-9

// Rank scores hits, drops those whose semantic score is below the request's
// floor, blends semantic and recency scores and returns at most top_k hits
// by final score. Ties keep store order. Rank does no I/O.
func Rank(hits []result.Candidate, minTS, now float64, req *request.Request) []result.ScoredHit {
	w := req.RecencyWeight()

	scored := make([]result.ScoredHit, 0, len(hits))
	for i := range hits {
		sem := semanticScore(&hits[i])
		if sem < req.MinScore() {
			continue
		}
		rec := recencyScore(hits[i].Message.TS().Seconds(), minTS, now)
		final := (1-w)*sem + w*rec
		scored = append(scored, result.NewScoredHit(hits[i].Message, sem, rec, final))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore() > scored[j].FinalScore()
	})

	if len(scored) > req.TopK() {
		scored = scored[:req.TopK()]
	}
	return scored
}

// semanticScore prefers certainty, then 1 - distance, then 0.
func semanticScore(c *result.Candidate) float64 {
	switch {
	case c.Certainty != nil:
		return clamp(*c.Certainty)
	case c.Distance != nil:
		return clamp(1 - *c.Distance)
	default:
		return 0
	}
}

// recencyScore is 0 at minTS and 1 at or after now.
func recencyScore(ts, minTS, now float64) float64 {
	return clamp((ts - minTS) / (now - minTS + recencyEpsilon))
}

func clamp(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	return max(0, min(1, v))
}
