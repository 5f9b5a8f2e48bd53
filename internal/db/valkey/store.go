// Package valkey adapts the Redis store to valkey-search, which rejects bare
// "*" queries without a KNN clause.
package valkey

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/digestsearch/internal/db"
	"github.com/kailas-cloud/digestsearch/internal/db/redis"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store is a Redis store whose unranked listing goes through SCAN.
type Store struct {
	*redis.Store
}

// Connect dials a Valkey server with the search module loaded, retrying as
// redis.Connect does.
func Connect(ctx context.Context, cfg redis.Config, attempts int, delay time.Duration) (*Store, error) {
	base, err := redis.Connect(ctx, cfg, attempts, delay)
	if err != nil {
		return nil, err
	}
	return &Store{Store: base}, nil
}

// SearchList performs paginated listing. A match-all query falls back to
// SCAN + HGETALL over the index key prefix; anything else goes to FT.SEARCH.
func (s *Store) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if query != "*" {
		return s.Store.SearchList(ctx, index, query, offset, limit, fields)
	}
	return s.scanList(ctx, index, offset, limit, fields)
}

func (s *Store) scanList(
	ctx context.Context, index string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	keys, err := s.Scan(ctx, KeyPrefix(index)+"*")
	if err != nil {
		return nil, fmt.Errorf("scan for list: %w", err)
	}

	sort.Strings(keys) // deterministic ordering

	total := len(keys)
	if offset >= total {
		return &db.SearchResult{Total: total}, nil
	}

	end := min(offset+limit, total)

	entries := make([]db.SearchEntry, 0, end-offset)
	for _, key := range keys[offset:end] {
		all, err := s.HGetAll(ctx, key)
		if err != nil {
			continue // key may have been deleted between SCAN and HGETALL
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: project(all, fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// KeyPrefix is the key prefix documents of index live under.
func KeyPrefix(index string) string {
	return index + ":"
}

func project(all map[string]string, fields []string) map[string]string {
	if len(fields) == 0 {
		return all
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}
