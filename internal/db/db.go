// Package db defines the vector store facade: hash point storage plus an
// FT index with metadata-filtered KNN search.
package db

import (
	"context"
	"time"

	"github.com/cvlens/cvlens/internal/domain/filter"
)

// Store is the vector store facade. Consumers depend on narrow sub-interfaces.
type Store interface {
	Pinger
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based point storage. Writes are overwrite-by-key,
// which is what makes re-indexing a document idempotent; deletes reclaim a
// removed document's points.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	Del(ctx context.Context, key string) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides filtered similarity search over an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
	SearchFirst(ctx context.Context, index string, filters filter.Expression, fields []string) (*SearchEntry, error)
}

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

// SearchEntry is a single point hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
