package digestsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/digestsearch/internal/db"
	dbRedis "github.com/kailas-cloud/digestsearch/internal/db/redis"
	dbValkey "github.com/kailas-cloud/digestsearch/internal/db/valkey"
	dombatch "github.com/kailas-cloud/digestsearch/internal/domain/batch"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/request"
	"github.com/kailas-cloud/digestsearch/internal/domain/search/result"
	messagerepo "github.com/kailas-cloud/digestsearch/internal/repository/message"
	healthuc "github.com/kailas-cloud/digestsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/digestsearch/internal/usecase/search"
)

// Internal interfaces for substitution in tests.
type ingestUseCase interface {
	UpsertBatch(ctx context.Context, records []ingestuc.Record) (ingestuc.Report, error)
}

type searchUseCase interface {
	Search(ctx context.Context, req *request.Request) ([]result.ScoredHit, error)
	Sample(ctx context.Context, limit int) ([]dommsg.Message, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the digestsearch SDK entry point.
type Client struct {
	store     db.Store
	ingestSvc ingestUseCase
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to the database. ctx bounds the
// startup probe loop.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("digestsearch: database address required (use WithRedis or WithValkey)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("digestsearch: embedder required (use WithEmbedder)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := connectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return wireClient(store, cfg, obs), nil
}

// connectStore dials the configured driver, retrying until the search
// module answers or the connect budget is spent.
func connectStore(ctx context.Context, cfg *clientConfig) (db.Store, error) {
	rcfg := dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password}
	switch cfg.driver {
	case "valkey":
		s, err := dbValkey.Connect(ctx, rcfg, cfg.connectAttempts, cfg.connectDelay)
		if err != nil {
			return nil, fmt.Errorf("digestsearch: database not ready: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.Connect(ctx, rcfg, cfg.connectAttempts, cfg.connectDelay)
		if err != nil {
			return nil, fmt.Errorf("digestsearch: database not ready: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("digestsearch: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	emb := adaptEmbedder(cfg.embedder)
	algo := db.VectorHNSW
	if cfg.flatIndex {
		algo = db.VectorFlat
	}
	repo := messagerepo.New(store, emb, messagerepo.Config{
		KeyPrefix: cfg.keyPrefix,
		VectorDim: cfg.vectorDimensions,
		Algorithm: algo,
		HNSW:      messagerepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct},
	})

	ingestSvc := ingestuc.New(repo, emb, cfg.collection)
	if cfg.maxBatchSize > 0 {
		ingestSvc = ingestSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}

	return &Client{
		store:     store,
		ingestSvc: ingestSvc,
		searchSvc: searchuc.New(repo, cfg.collection, searchuc.QueryOptions{
			OverfetchFactor: cfg.overfetchFactor,
			MaxFetch:        cfg.maxFetch,
		}),
		healthSvc: healthuc.New(store, repo, nil, cfg.collection),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Health checks the database and the collection index.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{Status: string(report.Status), Checks: checks}
}

// Upsert writes messages idempotently. Per-message failures are reported in
// the result; an error means nothing was written.
func (c *Client) Upsert(ctx context.Context, msgs []Message) (rep UpsertReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upsert", start, err, "messages", len(msgs), "upserted", rep.Upserted) }()

	records := make([]ingestuc.Record, len(msgs))
	for i := range msgs {
		records[i] = ingestuc.Record{
			MessageID:   msgs[i].MessageID,
			WorkspaceID: msgs[i].WorkspaceID,
			ChannelID:   msgs[i].ChannelID,
			UserID:      msgs[i].UserID,
			Text:        msgs[i].Text,
			TS:          msgs[i].TS,
			Topics:      msgs[i].Topics,
		}
	}

	report, err := c.ingestSvc.UpsertBatch(ctx, records)
	if err != nil {
		return UpsertReport{}, fmt.Errorf("upsert: %w", err)
	}

	rep = UpsertReport{Upserted: report.Upserted, Results: make([]UpsertResult, len(report.Results))}
	for i, r := range report.Results {
		rep.Results[i] = resultFromBatch(r)
	}
	return rep, nil
}

// Search returns ranked hits for req.
func (c *Client) Search(ctx context.Context, sr SearchRequest) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err, "hits", len(hits)) }()

	req, err := request.New(request.Params{
		WorkspaceID:   sr.WorkspaceID,
		UserID:        sr.UserID,
		Query:         sr.Query,
		Topics:        sr.Topics,
		TimeframeDays: sr.TimeframeDays,
		TopK:          sr.TopK,
		MinScore:      sr.MinScore,
		RecencyWeight: sr.RecencyWeight,
	})
	if err != nil {
		return nil, err
	}

	scored, err := c.searchSvc.Search(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits = make([]Hit, len(scored))
	for i := range scored {
		m := scored[i].Message()
		hits[i] = Hit{
			Message:       messageFromDomain(&m),
			SemanticScore: scored[i].SemanticScore(),
			RecencyScore:  scored[i].RecencyScore(),
			FinalScore:    scored[i].FinalScore(),
		}
	}
	return hits, nil
}

// Sample returns up to limit stored messages without ranking.
// limit <= 0 uses the default of 20.
func (c *Client) Sample(ctx context.Context, limit int) (msgs []Message, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sample", start, err) }()

	stored, err := c.searchSvc.Sample(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	msgs = make([]Message, len(stored))
	for i := range stored {
		msgs[i] = messageFromDomain(&stored[i])
	}
	return msgs, nil
}

// ObjectID returns the store identity of the message posted in channelID at
// the raw timestamp ts. ts is validated as Upsert validates it, so an id is
// only returned for timestamps that can actually be stored.
func ObjectID(channelID, ts string) (string, error) {
	parsed, err := dommsg.ParseTimestamp(ts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return dommsg.DeriveID(channelID, parsed.Raw()).String(), nil
}

func messageFromDomain(m *dommsg.Message) Message {
	return Message{
		MessageID:   m.MessageID(),
		WorkspaceID: m.WorkspaceID(),
		ChannelID:   m.ChannelID(),
		UserID:      m.UserID(),
		Text:        m.Text(),
		TS:          m.TS().Raw(),
		Topics:      m.Topics(),
	}
}

func resultFromBatch(r dombatch.Result) UpsertResult {
	return UpsertResult{
		MessageID: r.ID(),
		ObjectID:  r.ObjectID(),
		Outcome:   Outcome(r.Outcome()),
		Err:       r.Err(),
	}
}
