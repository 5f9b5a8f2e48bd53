// Package ingest writes chat messages into the vector store idempotently:
// each record is updated in place and inserted only when absent.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/digestsearch/internal/domain"
	dombatch "github.com/kailas-cloud/digestsearch/internal/domain/batch"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
	"github.com/kailas-cloud/digestsearch/internal/logger"
	"github.com/kailas-cloud/digestsearch/internal/metrics"
)

// DefaultMaxBatchSize is the maximum number of records per batch.
const DefaultMaxBatchSize = 100

// Record is an unvalidated message as received from an ingestion source.
// TS is the timestamp string exactly as sent upstream.
type Record struct {
	MessageID   string
	WorkspaceID string
	ChannelID   string
	UserID      string
	Text        string
	TS          string
	Topics      []string
}

// Report summarizes one batch.
type Report struct {
	Upserted int
	Results  []dombatch.Result
}

// Service runs the upsert pipeline against one collection.
type Service struct {
	store        Store
	embed        Embedder
	collection   string
	maxBatchSize int
}

// New creates an ingest service writing into collection.
func New(store Store, embed Embedder, collection string) *Service {
	return &Service{
		store:        store,
		embed:        embed,
		collection:   collection,
		maxBatchSize: DefaultMaxBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// UpsertBatch writes records and reports a tagged outcome per record.
// Invalid records and per-record store errors fail only that record. An
// error is returned only for systemic failures (collection unavailable,
// embedding provider down), in which case nothing was written.
func (s *Service) UpsertBatch(ctx context.Context, records []Record) (Report, error) {
	if len(records) == 0 {
		return Report{}, nil
	}
	if len(records) > s.maxBatchSize {
		return Report{}, fmt.Errorf("%w: batch size %d exceeds %d",
			domain.ErrInvalidRequest, len(records), s.maxBatchSize)
	}

	log := logger.FromContext(ctx).With(zap.String("collection", s.collection))

	if err := s.store.EnsureCollection(ctx, s.collection); err != nil {
		log.Error("Ensure collection failed", zap.Error(err))
		return Report{}, fmt.Errorf("ensure collection %s: %w", s.collection, err)
	}

	results := make([]dombatch.Result, len(records))
	valid := make([]int, 0, len(records))
	msgs := make([]dommsg.Message, len(records))
	for i := range records {
		msg, err := toMessage(&records[i])
		if err != nil {
			results[i] = dombatch.NewFailed(records[i].MessageID, "",
				fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
			continue
		}
		msgs[i] = msg
		valid = append(valid, i)
	}

	if len(valid) > 0 {
		texts := make([]string, len(valid))
		for j, i := range valid {
			texts[j] = msgs[i].Text()
		}

		emb, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			log.Error("Embedding batch failed", zap.Int("texts", len(texts)), zap.Error(err))
			return Report{}, fmt.Errorf("embed batch: %w", err)
		}
		if len(emb.Embeddings) != len(texts) {
			return Report{}, fmt.Errorf("%w: got %d embeddings for %d texts",
				domain.ErrEmbeddingProviderError, len(emb.Embeddings), len(texts))
		}

		for j, i := range valid {
			results[i] = s.upsertOne(ctx, log, &msgs[i], emb.Embeddings[j])
		}
	}

	report := Report{Upserted: dombatch.CountStored(results), Results: results}
	s.observe(ctx, report)
	return report, nil
}

// upsertOne runs update-then-insert for a single record.
func (s *Service) upsertOne(ctx context.Context, log *zap.Logger, msg *dommsg.Message, vector []float32) dombatch.Result {
	id := msg.ID()
	objectID := id.String()

	err := s.store.Update(ctx, s.collection, id, msg, vector)
	if err == nil {
		return dombatch.NewUpdated(msg.MessageID(), objectID)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		log.Warn("Update failed",
			zap.String("object_id", objectID),
			zap.String("operation", "update"),
			zap.Error(err),
		)
		return dombatch.NewFailed(msg.MessageID(), objectID, err)
	}

	if err := s.store.Insert(ctx, s.collection, id, msg, vector); err != nil {
		log.Warn("Insert failed",
			zap.String("object_id", objectID),
			zap.String("operation", "insert"),
			zap.Error(err),
		)
		return dombatch.NewFailed(msg.MessageID(), objectID, err)
	}
	return dombatch.NewInserted(msg.MessageID(), objectID)
}

func (s *Service) observe(ctx context.Context, report Report) {
	counts := map[dombatch.Outcome]int{}
	for _, r := range report.Results {
		counts[r.Outcome()]++
	}
	for _, o := range []dombatch.Outcome{dombatch.OutcomeUpdated, dombatch.OutcomeInserted, dombatch.OutcomeFailed} {
		if counts[o] > 0 {
			metrics.UpsertOutcomesTotal.WithLabelValues(string(o)).Add(float64(counts[o]))
		}
	}
	metrics.UpsertBatchSize.Observe(float64(len(report.Results)))

	logger.Annotate(ctx,
		zap.Int("batch_size", len(report.Results)),
		zap.Int("updated", counts[dombatch.OutcomeUpdated]),
		zap.Int("inserted", counts[dombatch.OutcomeInserted]),
		zap.Int("failed", counts[dombatch.OutcomeFailed]),
	)
}

func toMessage(r *Record) (dommsg.Message, error) {
	ts, err := dommsg.ParseTimestamp(r.TS)
	if err != nil {
		return dommsg.Message{}, err
	}
	return dommsg.New(r.MessageID, r.WorkspaceID, r.ChannelID, r.UserID, r.Text, ts, r.Topics)
}
