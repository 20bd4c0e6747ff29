// Package reranker provides re-ranking for retrieval results.
//
// Re-ranking scores each (query, document) pair with a cross-encoder, which
// sees both texts together rather than independently. It adds one model call
// of latency per query in exchange for better precision when the top vector
// results have similar scores; it is toggled per deployment via configuration.
package reranker

import (
	"context"

	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

// ScoredResult is a search result with its pairwise relevance score attached.
// Scores have no fixed range; only their relative order matters.
type ScoredResult struct {
	vectorstore.SearchResult
	RerankScore float32
}

// Reranker defines the interface for re-ranking search results.
type Reranker interface {
	// Rerank scores results against the query and returns them ordered by
	// rerank score descending, truncated to topK. Ties keep the original
	// candidate order. An empty input returns empty without any model call.
	Rerank(ctx context.Context, query string, results []vectorstore.SearchResult, topK int) ([]ScoredResult, error)
}
