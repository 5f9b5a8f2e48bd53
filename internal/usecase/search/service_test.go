package search

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
)

const testNow = 1_711_000_000.0

var fixedNow = time.Unix(int64(testNow), 0)

type mockRepo struct {
	hits    []result.Candidate
	msgs    []dommsg.Message
	err     error
	calls   int
	concept []string
	filters filter.Expression
	limit   int
}

func (m *mockRepo) QueryNearText(
	_ context.Context, _ string, concepts []string, filters filter.Expression, limit int,
) ([]result.Candidate, error) {
	m.calls++
	m.concept = concepts
	m.filters = filters
	m.limit = limit
	return m.hits, m.err
}

func (m *mockRepo) FetchObjects(_ context.Context, _ string, limit int) ([]dommsg.Message, error) {
	m.calls++
	m.limit = limit
	if len(m.msgs) > limit {
		return m.msgs[:limit], m.err
	}
	return m.msgs, m.err
}

func withFixedNow(t *testing.T) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return fixedNow }
	t.Cleanup(func() { timeNow = prev })
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func mustRequest(t *testing.T, p request.Params) *request.Request {
	t.Helper()
	if p.WorkspaceID == "" {
		p.WorkspaceID = "T1"
	}
	req, err := request.New(p)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func msgAt(id string, secs float64) dommsg.Message {
	ts, err := dommsg.ParseTimestamp(strconv.FormatFloat(secs, 'f', -1, 64))
	if err != nil {
		panic(err)
	}
	return dommsg.Reconstruct(id, "T1", "C1", "U1", "text "+id, ts, []string{"general"})
}

func certain(id string, ts, certainty float64) result.Candidate {
	return result.Candidate{ID: id, Message: msgAt(id, ts), Certainty: floatPtr(certainty)}
}

func ids(hits []result.ScoredHit) []string {
	out := make([]string, len(hits))
	for i := range hits {
		m := hits[i].Message()
		out[i] = m.MessageID()
	}
	return out
}

func TestSearch_BlendsSimilarityAndRecency(t *testing.T) {
	withFixedNow(t)
	repo := &mockRepo{hits: []result.Candidate{
		certain("old", testNow-30*secondsPerDay, 0.95),
		certain("new", testNow, 0.70),
	}}
	svc := New(repo, "Message", QueryOptions{})

	got, err := svc.Search(context.Background(), mustRequest(t, request.Params{Query: "deploy"}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || ids(got)[0] != "old" {
		t.Fatalf("order = %v, want [old new]", ids(got))
	}
	if math.Abs(got[0].FinalScore()-0.815) > 1e-6 {
		t.Errorf("old final = %f, want 0.815", got[0].FinalScore())
	}
	if math.Abs(got[1].FinalScore()-0.79) > 1e-6 {
		t.Errorf("new final = %f, want 0.79", got[1].FinalScore())
	}
	if math.Abs(got[0].RecencyScore()-0.5) > 1e-6 {
		t.Errorf("old recency = %f, want 0.5", got[0].RecencyScore())
	}
}

func TestSearch_QueryShape(t *testing.T) {
	withFixedNow(t)
	repo := &mockRepo{}
	svc := New(repo, "Message", QueryOptions{})

	req := mustRequest(t, request.Params{
		Query:         "deploy",
		Topics:        []string{"infra", "ci"},
		TimeframeDays: intPtr(7),
		TopK:          intPtr(10),
	})
	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if repo.limit != 30 {
		t.Errorf("limit = %d, want 30", repo.limit)
	}
	wantConcepts := []string{"deploy", "infra", "ci"}
	if len(repo.concept) != len(wantConcepts) {
		t.Fatalf("concepts = %v", repo.concept)
	}
	for i := range wantConcepts {
		if repo.concept[i] != wantConcepts[i] {
			t.Errorf("concepts[%d] = %q, want %q", i, repo.concept[i], wantConcepts[i])
		}
	}

	must := repo.filters.Must()
	if len(must) != 2 {
		t.Fatalf("conditions = %d, want 2", len(must))
	}
	if must[0].Key() != "workspace_id" || must[0].Match() != "T1" {
		t.Errorf("first condition = %s:%s", must[0].Key(), must[0].Match())
	}
	r := must[1].Range()
	if must[1].Key() != "ts" || r == nil || r.GTE() == nil {
		t.Fatalf("second condition should be ts >= min_ts")
	}
	if *r.GTE() != testNow-7*secondsPerDay {
		t.Errorf("min_ts = %f, want %f", *r.GTE(), testNow-7*secondsPerDay)
	}
}

func TestBuildQuery_FetchLimitCapped(t *testing.T) {
	req := mustRequest(t, request.Params{Query: "q", TopK: intPtr(100)})

	q, err := BuildQuery(req, fixedNow, QueryOptions{})
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if q.FetchLimit != DefaultMaxFetch {
		t.Errorf("fetch limit = %d, want %d", q.FetchLimit, DefaultMaxFetch)
	}

	q, _ = BuildQuery(req, fixedNow, QueryOptions{OverfetchFactor: 1, MaxFetch: 500})
	if q.FetchLimit != 100 {
		t.Errorf("fetch limit = %d, want 100", q.FetchLimit)
	}
}

func TestSearch_EmptyCandidates(t *testing.T) {
	withFixedNow(t)
	svc := New(&mockRepo{}, "Message", QueryOptions{})

	got, err := svc.Search(context.Background(), mustRequest(t, request.Params{Topics: []string{"infra"}}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d hits, want 0", len(got))
	}
}

func TestSearch_NoConceptsRejectedBeforeStore(t *testing.T) {
	withFixedNow(t)
	repo := &mockRepo{}
	svc := New(repo, "Message", QueryOptions{})

	_, err := svc.Search(context.Background(), &request.Request{})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if repo.calls != 0 {
		t.Errorf("store called %d times", repo.calls)
	}
}

func TestSearch_StoreError(t *testing.T) {
	withFixedNow(t)
	repo := &mockRepo{err: domain.ErrStoreUnavailable}
	svc := New(repo, "Message", QueryOptions{})

	_, err := svc.Search(context.Background(), mustRequest(t, request.Params{Query: "q"}))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestRank_WeightExtremes(t *testing.T) {
	hits := []result.Candidate{
		certain("similar-old", testNow-59*secondsPerDay, 0.9),
		certain("weak-new", testNow, 0.2),
	}
	minTS := testNow - 60*secondsPerDay

	pure := Rank(hits, minTS, testNow, mustRequest(t, request.Params{Query: "q", RecencyWeight: floatPtr(0)}))
	if ids(pure)[0] != "similar-old" {
		t.Errorf("weight 0 order = %v", ids(pure))
	}
	for i := range pure {
		if pure[i].FinalScore() != pure[i].SemanticScore() {
			t.Errorf("weight 0: final %f != semantic %f", pure[i].FinalScore(), pure[i].SemanticScore())
		}
	}

	fresh := Rank(hits, minTS, testNow, mustRequest(t, request.Params{Query: "q", RecencyWeight: floatPtr(1)}))
	if ids(fresh)[0] != "weak-new" {
		t.Errorf("weight 1 order = %v", ids(fresh))
	}
	for i := range fresh {
		if fresh[i].FinalScore() != fresh[i].RecencyScore() {
			t.Errorf("weight 1: final %f != recency %f", fresh[i].FinalScore(), fresh[i].RecencyScore())
		}
	}
}

func TestRank_ScoresBoundedAndSorted(t *testing.T) {
	minTS := testNow - 60*secondsPerDay
	hits := []result.Candidate{
		certain("a", testNow+3600, 1.5), // future ts and out-of-range certainty
		certain("b", minTS-3600, -0.2),
		{ID: "c", Message: msgAt("c", testNow-10*secondsPerDay), Distance: floatPtr(0.4)},
		{ID: "d", Message: msgAt("d", testNow-20*secondsPerDay), Distance: floatPtr(2)},
		certain("e", testNow-5*secondsPerDay, 0.5),
	}
	got := Rank(hits, minTS, testNow, mustRequest(t, request.Params{Query: "q"}))

	if len(got) != len(hits) {
		t.Fatalf("got %d hits, want %d", len(got), len(hits))
	}
	for i := range got {
		for name, v := range map[string]float64{
			"semantic": got[i].SemanticScore(),
			"recency":  got[i].RecencyScore(),
			"final":    got[i].FinalScore(),
		} {
			if v < 0 || v > 1 {
				t.Errorf("%s %s score = %f out of [0,1]", ids(got)[i], name, v)
			}
		}
		if i > 0 && got[i-1].FinalScore() < got[i].FinalScore() {
			t.Errorf("not sorted at %d: %v", i, ids(got))
		}
	}
}

func TestRank_RecencyMonotonic(t *testing.T) {
	minTS := testNow - 60*secondsPerDay
	prev := -1.0
	for _, days := range []float64{60, 45, 30, 10, 1, 0} {
		rec := recencyScore(testNow-days*secondsPerDay, minTS, testNow)
		if rec < prev {
			t.Errorf("recency decreased at %v days: %f < %f", days, rec, prev)
		}
		prev = rec
	}
	if got := recencyScore(minTS, minTS, testNow); got != 0 {
		t.Errorf("recency at min_ts = %f, want 0", got)
	}
	if got := recencyScore(testNow, testNow, testNow); got != 0 {
		t.Errorf("recency with empty window = %f, want 0", got)
	}
}

func TestRank_MinScoreGatesSemantic(t *testing.T) {
	hits := []result.Candidate{
		certain("weak-but-fresh", testNow, 0.4),
		certain("strong", testNow-30*secondsPerDay, 0.8),
	}
	req := mustRequest(t, request.Params{Query: "q", MinScore: floatPtr(0.5), RecencyWeight: floatPtr(1)})

	got := Rank(hits, testNow-60*secondsPerDay, testNow, req)
	if len(got) != 1 || ids(got)[0] != "strong" {
		t.Errorf("got %v, want [strong]", ids(got))
	}
}

func TestRank_TiesKeepStoreOrder(t *testing.T) {
	ts := testNow - secondsPerDay
	hits := []result.Candidate{
		certain("first", ts, 0.6),
		certain("second", ts, 0.6),
		certain("third", ts, 0.6),
	}
	got := Rank(hits, testNow-60*secondsPerDay, testNow, mustRequest(t, request.Params{Query: "q"}))

	want := []string{"first", "second", "third"}
	for i, id := range ids(got) {
		if id != want[i] {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}
}

func TestRank_TruncatesToTopK(t *testing.T) {
	var hits []result.Candidate
	for i := range 10 {
		hits = append(hits, certain(string(rune('a'+i)), testNow, float64(i)/10))
	}
	got := Rank(hits, testNow-60*secondsPerDay, testNow, mustRequest(t, request.Params{Query: "q", TopK: intPtr(3)}))

	want := []string{"j", "i", "h"}
	if len(got) != 3 {
		t.Fatalf("got %d hits, want 3", len(got))
	}
	for i, id := range ids(got) {
		if id != want[i] {
			t.Errorf("hit[%d] = %s, want %s", i, id, want[i])
		}
	}
}

func TestSemanticScore_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		cand result.Candidate
		want float64
	}{
		{"certainty wins", result.Candidate{Certainty: floatPtr(0.7), Distance: floatPtr(0.9)}, 0.7},
		{"distance", result.Candidate{Distance: floatPtr(0.25)}, 0.75},
		{"distance beyond 1", result.Candidate{Distance: floatPtr(1.4)}, 0},
		{"no metadata", result.Candidate{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := semanticScore(&tt.cand); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("semanticScore = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSample(t *testing.T) {
	repo := &mockRepo{msgs: []dommsg.Message{msgAt("a", testNow), msgAt("b", testNow)}}
	svc := New(repo, "Message", QueryOptions{})

	got, err := svc.Sample(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if repo.limit != DefaultSampleLimit || len(got) != 2 {
		t.Errorf("limit = %d, got %d messages", repo.limit, len(got))
	}

	if _, err := svc.Sample(context.Background(), MaxSampleLimit+1); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestRank_OneDayWindowScenario(t *testing.T) {
	minTS := testNow - secondsPerDay
	hits := []result.Candidate{
		certain("fresh", testNow, 0.9),
		certain("half-day", testNow-43200, 0.9),
		certain("weak", testNow, 0.2),
	}
	req := mustRequest(t, request.Params{
		Query:         "q",
		TimeframeDays: intPtr(1),
		TopK:          intPtr(2),
		RecencyWeight: floatPtr(0.5),
	})

	got := Rank(hits, minTS, testNow, req)
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}
	if ids(got)[0] != "fresh" || ids(got)[1] != "half-day" {
		t.Fatalf("order = %v", ids(got))
	}
	if math.Abs(got[0].FinalScore()-0.95) > 1e-6 || math.Abs(got[1].FinalScore()-0.70) > 1e-6 {
		t.Errorf("scores = %f, %f; want 0.95, 0.70", got[0].FinalScore(), got[1].FinalScore())
	}
}
