package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/digestsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/digestsearch/internal/usecase/search"
)

// --- Fakes ---

type fakeWriter struct {
	ids       []uuid.UUID
	ensureErr error
}

func (f *fakeWriter) EnsureCollection(context.Context, string) error { return f.ensureErr }

func (f *fakeWriter) Update(context.Context, string, uuid.UUID, *dommsg.Message, []float32) error {
	return domain.ErrNotFound
}

func (f *fakeWriter) Insert(_ context.Context, _ string, id uuid.UUID, _ *dommsg.Message, _ []float32) error {
	f.ids = append(f.ids, id)
	return nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 3}, nil
}

type fakeReader struct {
	hits  []result.Candidate
	msgs  []dommsg.Message
	err   error
	panic bool
	calls int
}

func (f *fakeReader) QueryNearText(
	context.Context, string, []string, filter.Expression, int,
) ([]result.Candidate, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.hits, f.err
}

func (f *fakeReader) FetchObjects(context.Context, string, int) ([]dommsg.Message, error) {
	f.calls++
	return f.msgs, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testEnv struct {
	handler http.Handler
	writer  *fakeWriter
	reader  *fakeReader
}

func newTestEnv(t *testing.T, emb fakeEmbedder, ping fakePinger) *testEnv {
	t.Helper()
	w := &fakeWriter{}
	rd := &fakeReader{}
	srv := NewServer(
		ingestuc.New(w, emb, "Message"),
		searchuc.New(rd, "Message", searchuc.QueryOptions{}),
		healthuc.New(ping, nil, nil, "Message"),
		zap.NewNop(),
	)
	return &testEnv{handler: NewRouter(srv, zap.NewNop()), writer: w, reader: rd}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func candidate(id string, certainty float64) result.Candidate {
	msg := dommsg.Reconstruct(id, "T1", "C1", "U1", "text "+id,
		mustTS("1711000000"), []string{"infra"})
	return result.Candidate{ID: id, Message: msg, Certainty: &certainty}
}

// --- Tests ---

func TestEmbedAndUpsert_CountsAndKeepsRawTS(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
	body := `{"messages":[
		{"message_id":"M1","workspace_id":"T1","channel_id":"C123","user_id":"U1","text":"hi","ts":1711000000.001},
		{"message_id":"M2","workspace_id":"T1","channel_id":"C123","user_id":"U1","text":"yo","ts":"1711000001.500"}
	]}`

	rec := env.do(t, http.MethodPost, "/tools/embed_and_upsert", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[upsertResponse](t, rec)
	if resp.UpsertedCount != 2 || len(resp.Failed) != 0 {
		t.Errorf("resp = %+v", resp)
	}
	want := dommsg.DeriveID("C123", "1711000000.001")
	if len(env.writer.ids) != 2 || env.writer.ids[0] != want {
		t.Errorf("ids = %v, want first %s", env.writer.ids, want)
	}
}

func TestEmbedAndUpsert_PartialFailure(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
	body := `{"messages":[
		{"message_id":"M1","workspace_id":"T1","channel_id":"C1","text":"ok","ts":1711000000},
		{"message_id":"M2","workspace_id":"T1","channel_id":"","text":"no channel","ts":1711000001}
	]}`

	rec := env.do(t, http.MethodPost, "/tools/embed_and_upsert", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[upsertResponse](t, rec)
	if resp.UpsertedCount != 1 || len(resp.Failed) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Failed[0].MessageID != "M2" || resp.Failed[0].Code != codeValidationFailed {
		t.Errorf("failure = %+v", resp.Failed[0])
	}
}

func TestEmbedAndUpsert_EmptyBatch(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})

	rec := env.do(t, http.MethodPost, "/tools/embed_and_upsert", `{"messages":[]}`)
	if rec.Code != http.StatusOK || decode[upsertResponse](t, rec).UpsertedCount != 0 {
		t.Errorf("status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestEmbedAndUpsert_SystemicErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"provider", fmt.Errorf("%w: upstream 500", domain.ErrEmbeddingProviderError), http.StatusBadGateway, codeProviderError},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited},
		{"quota", domain.ErrEmbeddingQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, fakeEmbedder{err: tt.err}, fakePinger{})
			body := `{"messages":[{"message_id":"M1","workspace_id":"T1","channel_id":"C1","text":"x","ts":1}]}`

			rec := env.do(t, http.MethodPost, "/tools/embed_and_upsert", body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decode[errorResponse](t, rec).Code; got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
			if strings.Contains(rec.Body.String(), "upstream 500") {
				t.Error("provider detail leaked to client")
			}
		})
	}
}

func TestEmbedAndUpsert_BadJSON(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})

	rec := env.do(t, http.MethodPost, "/tools/embed_and_upsert", `{"messages":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchSimilar_RequiresQueryOrTopics(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})

	rec := env.do(t, http.MethodPost, "/tools/search_similar", `{"workspace_id":"T1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if decode[errorResponse](t, rec).Code != codeValidationFailed {
		t.Errorf("body = %s", rec.Body.String())
	}
	if env.reader.calls != 0 {
		t.Errorf("store called %d times", env.reader.calls)
	}
}

func TestSearchSimilar_RankedResults(t *testing.T) {
	for _, path := range []string{"/tools/search_similar", "/tools/fetch_relevant_messages"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
			env.reader.hits = []result.Candidate{candidate("low", 0.4), candidate("high", 0.9)}

			rec := env.do(t, http.MethodPost, path,
				`{"workspace_id":"T1","query":"deploy","recency_weight":0,"timeframe_days":365}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			resp := decode[searchResponse](t, rec)
			if len(resp.Results) != 2 || resp.Results[0].MessageID != "high" {
				t.Fatalf("results = %+v", resp.Results)
			}
			if resp.Results[0].FinalScore != 0.9 || resp.Results[0].TS.String() != "1711000000" {
				t.Errorf("first = %+v", resp.Results[0])
			}
		})
	}
}

func TestSearchSimilar_EmptyIsNotError(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})

	rec := env.do(t, http.MethodPost, "/tools/search_similar", `{"workspace_id":"T1","topics":["infra"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSearchSimilar_StoreErrorsHidden(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", fmt.Errorf("%w: dial tcp 10.0.0.5:6379", domain.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("dial tcp 10.0.0.5:6379"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
			env.reader.err = tt.err

			rec := env.do(t, http.MethodPost, "/tools/search_similar", `{"workspace_id":"T1","query":"q"}`)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if strings.Contains(rec.Body.String(), "10.0.0.5") {
				t.Errorf("internal detail leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestSampleMessages(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
	env.reader.msgs = []dommsg.Message{candidate("M1", 1).Message}

	rec := env.do(t, http.MethodGet, "/tools/sample_messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[sampleResponse](t, rec)
	if len(resp.Results) != 1 || resp.Results[0].MessageID != "M1" {
		t.Errorf("results = %+v", resp.Results)
	}

	rec = env.do(t, http.MethodGet, "/tools/sample_messages?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rec.Code)
	}

	env = newTestEnv(t, fakeEmbedder{}, fakePinger{err: errors.New("down")})
	rec = env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d", rec.Code)
	}
	if resp := decode[healthResponse](t, rec); resp.Status != string(healthuc.Degraded) {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMiddleware_RequestIDAndRecover(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})
	env.reader.panic = true

	rec := env.do(t, http.MethodPost, "/tools/search_similar", `{"workspace_id":"T1","query":"q"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if decode[errorResponse](t, rec).Code != codeInternal {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, fakeEmbedder{}, fakePinger{})

	rec := env.do(t, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func mustTS(raw string) dommsg.Timestamp {
	ts, err := dommsg.ParseTimestamp(raw)
	if err != nil {
		panic(err)
	}
	return ts
}
