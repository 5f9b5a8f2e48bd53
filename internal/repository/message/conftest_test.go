package message

import (
	"context"
	"testing"

	"github.com/kailas-cloud/digestsearch/internal/db"
	"github.com/kailas-cloud/digestsearch/internal/domain"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetIfExistsFn func(ctx context.Context, key string, fields map[string]string) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	listIndexesFn  func(ctx context.Context) ([]string, error)
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchListFn   func(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetIfExists(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetIfExistsFn != nil {
		return m.hsetIfExistsFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) ListIndexes(ctx context.Context) ([]string, error) {
	if m.listIndexesFn != nil {
		return m.listIndexesFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}

// vectorsByText embeds each known text to a fixed vector.
type vectorsByText map[string][]float32

func (v vectorsByText) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: v[text], TotalTokens: 1}, nil
}

func newTestRepo(t *testing.T, emb domain.Embedder) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	if emb == nil {
		emb = vectorsByText{}
	}
	repo := New(ms, emb, Config{KeyPrefix: "ds:", VectorDim: 2, HNSW: HNSWConfig{M: 16, EFConstruct: 200}})
	return repo, ms
}

func testMessage(t *testing.T) dommsg.Message {
	t.Helper()
	ts, err := dommsg.ParseTimestamp("1711000000.001")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := dommsg.New("M1", "W1", "C1", "U1", "deploy is green", ts, []string{"release", "ci"})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}
