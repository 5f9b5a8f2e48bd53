package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/digestsearch/internal/config"
	"github.com/kailas-cloud/digestsearch/internal/db"
	dbRedis "github.com/kailas-cloud/digestsearch/internal/db/redis"
	dbValkey "github.com/kailas-cloud/digestsearch/internal/db/valkey"
	"github.com/kailas-cloud/digestsearch/internal/domain"
	logpkg "github.com/kailas-cloud/digestsearch/internal/logger"
	"github.com/kailas-cloud/digestsearch/internal/metrics"
	"github.com/kailas-cloud/digestsearch/internal/repository/embcache"
	messagerepo "github.com/kailas-cloud/digestsearch/internal/repository/message"
	openaiEmb "github.com/kailas-cloud/digestsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/digestsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/digestsearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/digestsearch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/digestsearch/internal/usecase/search"
	"github.com/kailas-cloud/digestsearch/internal/version"
)

// app is the wired service graph. The store handle is created once and
// shared by every component.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
	ingest *ingestuc.Service
	search *searchuc.Service
	health *healthuc.Service
}

// newApp loads configuration, connects to the store and wires use cases.
// Connection runs the bounded startup probe and fails when it is exhausted.
func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Info("Starting digestsearch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	logger.Info("Connecting to vector store",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
		zap.Int("attempts", cfg.Database.ConnectAttempts),
		zap.Duration("delay", cfg.Database.ConnectDelay()),
	)
	store, err := connectStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Vector store ready")

	provName, vecCfg, provCfg := cfg.Embedding.Active()
	vectorDim := vecCfg.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Timeout:    time.Duration(provCfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(base, provName, provCfg, vecCfg, vecCfg.DocumentInstruction, cfg, store, logger)
	queryEmbedder := buildEmbedder(base, provName, provCfg, vecCfg, vecCfg.QueryInstruction, cfg, store, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vectorDim),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	repoCfg := messagerepo.Config{
		KeyPrefix: cfg.Storage.KeyPrefix,
		VectorDim: vectorDim,
		Algorithm: vectorAlgorithm(cfg.Index.Algorithm),
		HNSW: messagerepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	}
	writeRepo := messagerepo.New(store, docEmbedder, repoCfg)
	readRepo := messagerepo.New(store, queryEmbedder, repoCfg)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		ingest: ingestuc.New(writeRepo, docEmbedder, cfg.Index.Collection).
			WithMaxBatchSize(cfg.Index.MaxBatchSize),
		search: searchuc.New(readRepo, cfg.Index.Collection, searchuc.QueryOptions{
			OverfetchFactor: cfg.Search.OverfetchFactor,
			MaxFetch:        cfg.Search.MaxFetch,
		}),
		health: healthuc.New(store, readRepo, base, cfg.Index.Collection),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// connectStore runs the bounded startup connect loop for the configured driver.
func connectStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	rcfg := dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		Logger:   logger,
	}
	switch cfg.Driver {
	case "valkey":
		s, err := dbValkey.Connect(ctx, rcfg, cfg.ConnectAttempts, cfg.ConnectDelay())
		if err != nil {
			return nil, fmt.Errorf("connect valkey store: %w", err)
		}
		return s, nil
	default:
		s, err := dbRedis.Connect(ctx, rcfg, cfg.ConnectAttempts, cfg.ConnectDelay())
		if err != nil {
			return nil, fmt.Errorf("connect redis store: %w", err)
		}
		return s, nil
	}
}

// vectorAlgorithm maps the validated index.algorithm value to the FT.CREATE name.
func vectorAlgorithm(name string) db.VectorAlgorithm {
	if name == "flat" {
		return db.VectorFlat
	}
	return db.VectorHNSW
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	base *openaiEmb.Embedder,
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	instruction string,
	cfg config.Config,
	store db.KVStore,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = base
	if cfg.Embedding.Cache.Enabled {
		embedder = embcache.New(base, store, embcache.Config{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     vecCfg.Model,
			TTL:       time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, provCfg.MaxBatch)

	// Outermost so the cache key includes the instruction.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}
