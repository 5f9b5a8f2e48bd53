package db

import "github.com/kailas-cloud/digestsearch/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search. Entries keep the order the
// server returned them in.
type SearchEntry struct {
	Key string
	// Distance is the raw __vector_score (cosine distance for COSINE indexes).
	// HasDistance is false for non-KNN searches.
	Distance    float64
	HasDistance bool
	Fields      map[string]string
}
