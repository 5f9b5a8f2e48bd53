// Package health aggregates readiness of the vector store and embedding provider.
package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/digestsearch/internal/logger"
)

// Status is the aggregated health status.
type Status string

const (
	// Healthy means every check passed.
	Healthy Status = "ok"
	// Degraded means at least one check failed.
	Degraded Status = "degraded"
)

// CheckResult is a single component outcome.
type CheckResult string

const (
	CheckOK      CheckResult = "ok"
	CheckError   CheckResult = "error"
	CheckMissing CheckResult = "missing"
)

// Check names as they appear in the report.
const (
	CheckStore      = "vector_store"
	CheckCollection = "collection"
	CheckEmbedding  = "embedding"
)

// DefaultCheckTimeout bounds each probe.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs health probes.
type Service struct {
	store      Pinger
	lister     CollectionLister
	provider   ProviderChecker
	collection string
	timeout    time.Duration
}

// New creates a Service. lister and provider may be nil.
func New(store Pinger, lister CollectionLister, provider ProviderChecker, collection string) *Service {
	return &Service{
		store:      store,
		lister:     lister,
		provider:   provider,
		collection: collection,
		timeout:    DefaultCheckTimeout,
	}
}

// WithTimeout overrides the per-probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all probes. The store and embedding probes run concurrently;
// the collection lookup follows a successful store ping. A missing
// collection is reported but does not degrade the service: the first
// upsert creates it.
func (s *Service) Check(ctx context.Context) Report {
	res := &results{checks: make(map[string]CheckResult, 3)}
	log := logger.FromContext(ctx)

	var g errgroup.Group
	g.Go(func() error {
		if !s.probe(ctx, CheckStore, s.store.Ping, res, log) || s.lister == nil {
			return nil
		}
		res.set(CheckCollection, s.checkCollection(ctx, log))
		return nil
	})
	if s.provider != nil {
		g.Go(func() error {
			s.probe(ctx, CheckEmbedding, s.provider.HealthCheck, res, log)
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range res.checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: res.checks}
}

func (s *Service) checkCollection(ctx context.Context, log *zap.Logger) CheckResult {
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	names, err := s.lister.ListCollections(pctx)
	switch {
	case err != nil:
		log.Warn("Health check failed", zap.String("check", CheckCollection), zap.Error(err))
		return CheckError
	case slices.Contains(names, s.collection):
		return CheckOK
	default:
		return CheckMissing
	}
}

func (s *Service) probe(
	ctx context.Context, name string, fn func(context.Context) error,
	res *results, log *zap.Logger,
) bool {
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(pctx); err != nil {
		log.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		res.set(name, CheckError)
		return false
	}
	res.set(name, CheckOK)
	return true
}

type results struct {
	mu     sync.Mutex
	checks map[string]CheckResult
}

func (r *results) set(name string, v CheckResult) {
	r.mu.Lock()
	r.checks[name] = v
	r.mu.Unlock()
}
