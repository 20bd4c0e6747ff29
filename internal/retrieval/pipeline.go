package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/qanoonhub/lawrag/internal/embedder"
	"github.com/qanoonhub/lawrag/internal/reranker"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

// Pipeline is the two-stage retrieval pipeline:
// encode -> search -> [rerank if configured] -> group -> top-K slice.
type Pipeline struct {
	encoder  *QueryEncoder
	searcher *Searcher
	reranker reranker.Reranker // nil when reranking is disabled
	topK     int
	searchK  int
	logger   *slog.Logger
}

// PipelineConfig holds the retrieval defaults. TopK and SearchK apply when a
// call passes zero values.
type PipelineConfig struct {
	TopK    int
	SearchK int
	Logger  *slog.Logger
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithReranker enables cross-encoder reranking of the candidate set.
func WithReranker(r reranker.Reranker) PipelineOption {
	return func(p *Pipeline) {
		p.reranker = r
	}
}

// NewPipeline creates a retrieval pipeline over the given embedder and store.
func NewPipeline(emb embedder.Embedder, store vectorstore.Store, cfg PipelineConfig, opts ...PipelineOption) *Pipeline {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	searchK := cfg.SearchK
	if searchK <= 0 {
		searchK = 50
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		encoder:  NewQueryEncoder(emb),
		searcher: NewSearcher(store),
		topK:     topK,
		searchK:  searchK,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Retrieve runs one query through the pipeline and returns at most topK
// grouped results ordered by best score descending. A non-empty category
// restricts the search space before vector search. Zero topK or searchK fall
// back to the configured defaults. searchK below topK is not rejected; it
// just yields fewer results. Zero candidates short-circuit to an empty list
// without invoking the reranker or grouper.
func (p *Pipeline) Retrieve(ctx context.Context, query, category string, topK, searchK int) ([]GroupedResult, error) {
	if topK <= 0 {
		topK = p.topK
	}
	if searchK <= 0 {
		searchK = p.searchK
	}

	start := time.Now()

	vector, err := p.encoder.Encode(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := p.searcher.Search(ctx, vector, category, searchK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []GroupedResult{}, nil
	}

	if p.reranker != nil {
		candidates, err = p.rerank(ctx, query, candidates, searchK)
		if err != nil {
			return nil, err
		}
	}

	grouped := Group(candidates)
	if len(grouped) > topK {
		grouped = grouped[:topK]
	}

	p.logger.Debug("retrieval finished",
		"category", category,
		"candidates", len(candidates),
		"results", len(grouped),
		"reranked", p.reranker != nil,
		"duration", time.Since(start))

	return grouped, nil
}

// rerank scores all candidates at once; the rerank stage keeps the full
// candidate set (truncation to topK happens after grouping).
func (p *Pipeline) rerank(ctx context.Context, query string, candidates []Candidate, searchK int) ([]Candidate, error) {
	results := make([]vectorstore.SearchResult, len(candidates))
	for i, cand := range candidates {
		results[i] = vectorstore.SearchResult{
			ID:      cand.ID,
			Score:   cand.Score,
			Payload: cand.Payload,
		}
	}

	scored, err := p.reranker.Rerank(ctx, query, results, searchK)
	if err != nil {
		return nil, err
	}

	reranked := make([]Candidate, len(scored))
	for i, res := range scored {
		reranked[i] = Candidate{
			ID:          res.ID,
			Payload:     res.Payload,
			Score:       res.Score,
			RerankScore: res.RerankScore,
			Reranked:    true,
		}
	}

	return reranked, nil
}
