// Package vectorstore provides interfaces and implementations for vector
// similarity search over the legal chunk collection.
package vectorstore

import (
	"context"
	"errors"

	"github.com/qanoonhub/lawrag/internal/corpus"
)

var (
	// ErrStoreUnavailable indicates the backing store is not reachable at the
	// configured location. Configuration-level; not retried internally.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrCollectionMissing indicates the named collection does not exist
	// yet, which means ingestion never ran. Fatal, not transient.
	ErrCollectionMissing = errors.New("collection does not exist")
)

// Point is one chunk ready for upsert: a stable id, its embedding, and the
// denormalized payload stored alongside for filtering and display.
type Point struct {
	ID      string
	Vector  []float32
	Payload corpus.ChunkPayload
}

// SearchResult is a candidate chunk returned by nearest-neighbor search,
// carrying the store's similarity score and the full payload.
type SearchResult struct {
	ID      string
	Score   float32
	Payload corpus.ChunkPayload
}

// Store defines the vector storage operations used by ingestion and retrieval.
// The collection is append-only from the ingestion side (upsert by id,
// idempotent) and read-only from the retrieval side.
type Store interface {
	// CreateCollection creates the collection with the given vector dimension
	// and cosine distance.
	CreateCollection(ctx context.Context, dimension int) error

	// CollectionExists checks whether the collection exists.
	CollectionExists(ctx context.Context) (bool, error)

	// Upsert inserts or overwrites points by id.
	Upsert(ctx context.Context, points []Point) error

	// Search performs a top-limit nearest-neighbor query. A non-empty
	// category restricts results to chunks whose category set contains it
	// (set membership, not equality). Results come back in the store's
	// native descending-similarity order.
	Search(ctx context.Context, vector []float32, category string, limit int) ([]SearchResult, error)
}
