package health

import "context"

// Pinger checks vector store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionLister reports which collections exist in the vector store.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

// ProviderChecker checks embedding provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
