package message

import (
	"fmt"

	"github.com/kailas-cloud/digestsearch/internal/db"
	dommsg "github.com/kailas-cloud/digestsearch/internal/domain/message"
)

// HNSWConfig tunes the vector index graph. Zero values use server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// buildIndex describes the FT index over one message collection.
func (r *Repo) buildIndex(collection string) (*db.IndexDefinition, error) {
	if r.cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}
	b := db.NewIndex(r.indexName(collection)).
		Prefix(r.keyPrefix(collection)).
		TagWithOpts(fieldMessageID, dommsg.IDTagSeparator, true).
		TagWithOpts(fieldWorkspaceID, dommsg.IDTagSeparator, true).
		TagWithOpts(fieldChannelID, dommsg.IDTagSeparator, true).
		TagWithOpts(fieldUserID, dommsg.IDTagSeparator, true).
		TagWithOpts(fieldTopics, "|", false).
		Numeric(fieldTS)

	switch r.cfg.Algorithm {
	case db.VectorFlat:
		b.VectorFlat(fieldVector, r.cfg.VectorDim, db.DistanceCosine)
	case db.VectorHNSW, "":
		b.VectorHNSW(fieldVector, r.cfg.VectorDim, db.DistanceCosine, r.cfg.HNSW.M, r.cfg.HNSW.EFConstruct)
	default:
		return nil, fmt.Errorf("unknown vector algorithm %q", r.cfg.Algorithm)
	}
	return b.Build()
}

// indexName is the FT index of a collection. Keys live under indexName + ":".
func (r *Repo) indexName(collection string) string {
	return r.cfg.KeyPrefix + collection
}

func (r *Repo) keyPrefix(collection string) string {
	return r.indexName(collection) + ":"
}

func (r *Repo) objectKey(collection, id string) string {
	return r.keyPrefix(collection) + id
}
