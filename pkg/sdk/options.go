package digestsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	password string

	connectAttempts int
	connectDelay    time.Duration

	embedder Embedder

	collection       string
	keyPrefix        string
	vectorDimensions int
	flatIndex        bool
	hnswM            int
	hnswEFConstruct  int
	maxBatchSize     int
	overfetchFactor  int
	maxFetch         int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		connectAttempts:  20,
		connectDelay:     2 * time.Second,
		collection:       "Message",
		keyPrefix:        "ds:",
		vectorDimensions: 1536,
		hnswM:            16,
		hnswEFConstruct:  200,
	}
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithConnectRetry sets the startup probe budget. New fails once attempts
// probes spaced by delay have all failed. Defaults: 20 attempts, 2s apart.
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.connectAttempts = attempts
		c.connectDelay = delay
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCollection sets the collection name. Default: "Message".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithKeyPrefix sets the key and index name prefix. Default: "ds:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithVectorDimensions sets the embedding dimension. Default: 1536.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithFlatIndex indexes vectors with exact brute-force search instead of
// HNSW. Suited to small collections; HNSW parameters are ignored.
func WithFlatIndex() Option {
	return optionFunc(func(c *clientConfig) {
		c.flatIndex = true
	})
}

// WithMaxBatchSize sets the maximum number of messages per Upsert.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithOverfetch sets how many candidates are fetched per requested hit and
// the hard cap. Defaults: 3 and 200.
func WithOverfetch(factor, maxFetch int) Option {
	return optionFunc(func(c *clientConfig) {
		c.overfetchFactor = factor
		c.maxFetch = maxFetch
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
