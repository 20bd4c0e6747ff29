package retrieval

import (
	"context"

	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

// Searcher issues filtered nearest-neighbor queries against the vector store
// and normalizes results into candidates.
type Searcher struct {
	store vectorstore.Store
}

// NewSearcher creates a Searcher over the given store.
func NewSearcher(store vectorstore.Store) *Searcher {
	return &Searcher{store: store}
}

// Search returns up to topK candidates in the store's native
// descending-similarity order. A non-empty category restricts results to
// chunks whose category set contains it. Store-level failures
// (vectorstore.ErrStoreUnavailable, vectorstore.ErrCollectionMissing) are
// surfaced to the caller unchanged.
func (s *Searcher) Search(ctx context.Context, vector []float32, category string, topK int) ([]Candidate, error) {
	results, err := s.store.Search(ctx, vector, category, topK)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(results))
	for i, res := range results {
		candidates[i] = Candidate{
			ID:      res.ID,
			Payload: res.Payload,
			Score:   res.Score,
		}
	}

	return candidates, nil
}
