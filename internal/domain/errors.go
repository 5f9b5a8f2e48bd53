package domain

import "errors"

var (
	// ErrInvalidRequest signals a request that fails validation. Raised before
	// any store access.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals a missing stored object.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable signals that the vector store could not be reached
	// or rejected a batch-level precondition.
	ErrStoreUnavailable = errors.New("vector store unavailable")
	// ErrRateLimited signals a rate limit hit at the embedding provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted provider quota.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
