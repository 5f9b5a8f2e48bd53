package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/digestsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis/Valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Logger   *zap.Logger

	dial func(rueidis.ClientOption) (rueidis.Client, error)
}

// Store implements db.Store via rueidis against Redis 8+ or Valkey with the
// search module loaded.
type Store struct {
	client rueidis.Client
	logger *zap.Logger
}

// Connect dials the server and probes the search module with FT._LIST,
// retrying both steps up to attempts times with delay between tries.
// rueidis dials on construction, so an unreachable server is retried here
// rather than failing the first attempt. It gives up early if ctx is done.
func Connect(ctx context.Context, cfg Config, attempts int, delay time.Duration) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	if attempts <= 0 {
		attempts = 1
	}
	dial := cfg.dial
	if dial == nil {
		dial = rueidis.NewClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		s       *Store
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Info("Probing vector store",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
		)
		if s == nil {
			client, err := dial(clientOption(cfg))
			if err != nil {
				lastErr = fmt.Errorf("create client: %w", err)
			} else {
				s = newStore(client, logger)
			}
		}
		if s != nil {
			_, err := s.ListIndexes(ctx)
			if err == nil {
				return s, nil
			}
			lastErr = err
		}
		logger.Warn("Vector store not ready yet", zap.Int("attempt", attempt), zap.Error(lastErr))

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			closeStore(s)
			return nil, fmt.Errorf("waiting for database: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	closeStore(s)
	return nil, fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}

func clientOption(cfg Config) rueidis.ClientOption {
	return rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	}
}

func closeStore(s *Store) {
	if s != nil {
		s.Close()
	}
}

func newStore(c rueidis.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: c, logger: logger}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
