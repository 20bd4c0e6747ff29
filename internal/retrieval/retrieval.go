// Package retrieval composes the query-time pipeline: query encoding,
// filtered candidate search, optional cross-encoder reranking, and
// consolidation of sub-chunks back into distinct articles.
package retrieval

import (
	"context"

	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qanoonhub/lawrag/internal/embedder"
)

// Candidate is a chunk returned by vector search for one query, optionally
// carrying a rerank score. It lives only for the duration of one retrieval
// call.
type Candidate struct {
	ID          string
	Payload     corpus.ChunkPayload
	Score       float32 // vector similarity
	RerankScore float32
	Reranked    bool
}

// EffectiveScore is the prevailing score for this pipeline variant: the
// rerank score when reranking occurred, else the vector similarity score.
func (c Candidate) EffectiveScore() float32 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.Score
}

// QueryEncoder formats and embeds a user query. The query-side task prefix
// distinguishes query embeddings from the passage embeddings written at
// ingestion time.
type QueryEncoder struct {
	embedder embedder.Embedder
}

// NewQueryEncoder creates a QueryEncoder over the given embedder.
func NewQueryEncoder(emb embedder.Embedder) *QueryEncoder {
	return &QueryEncoder{embedder: emb}
}

// Encode returns the unit-length embedding for a query.
func (e *QueryEncoder) Encode(ctx context.Context, query string) ([]float32, error) {
	return e.embedder.Embed(ctx, embedder.QueryPrefix+query)
}
