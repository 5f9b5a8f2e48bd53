package digestsearch

import (
	"context"

	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/digestsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
)

// --- ingestUseCase mock ---

type mockIngestUC struct {
	upsertFn func(ctx context.Context, records []ingestuc.Record) (ingestuc.Report, error)
}

func (m *mockIngestUC) UpsertBatch(ctx context.Context, records []ingestuc.Record) (ingestuc.Report, error) {
	return m.upsertFn(ctx, records)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, req *request.Request) ([]result.ScoredHit, error)
	sampleFn func(ctx context.Context, limit int) ([]dommsg.Message, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req *request.Request) ([]result.ScoredHit, error) {
	return m.searchFn(ctx, req)
}

func (m *mockSearchUC) Sample(ctx context.Context, limit int) ([]dommsg.Message, error) {
	return m.sampleFn(ctx, limit)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- embedders ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	calls int
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	m.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// --- helpers ---

func testClient(ingest ingestUseCase, search searchUseCase, health healthUseCase) *Client {
	return &Client{
		ingestSvc: ingest,
		searchSvc: search,
		healthSvc: health,
	}
}

func testMessage(id string) dommsg.Message {
	return dommsg.Reconstruct(id, "T1", "C123", "U1", "text "+id,
		mustTS("1711000000"), []string{"infra"})
}

func mustTS(raw string) dommsg.Timestamp {
	ts, err := dommsg.ParseTimestamp(raw)
	if err != nil {
		panic(err)
	}
	return ts
}
