package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

// DefaultTimeout bounds one batched scoring call.
const DefaultTimeout = 30 * time.Second

// rerankRequest is the request payload for the scoring endpoint. All pairs go
// in one batch to amortize the fixed per-call overhead of the model service.
type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// rerankResponseResult is a single result in the scoring response.
type rerankResponseResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// rerankResponse is the response from the scoring endpoint.
type rerankResponse struct {
	Results []rerankResponseResult `json:"results"`
	Model   string                 `json:"model,omitempty"`
}

// CrossEncoder implements Reranker via HTTP calls to a cross-encoder scoring
// service (e.g. a bge-reranker deployment exposing POST /v1/rerank).
type CrossEncoder struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// CrossEncoderConfig holds configuration for the cross-encoder client.
type CrossEncoderConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewCrossEncoder creates a new cross-encoder reranker client.
func NewCrossEncoder(cfg CrossEncoderConfig) *CrossEncoder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CrossEncoder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  client,
		logger:  logger,
	}
}

// Rerank scores each result's rich text against the query in one batched call
// and returns the results sorted by rerank score descending.
func (r *CrossEncoder) Rerank(ctx context.Context, query string, results []vectorstore.SearchResult, topK int) ([]ScoredResult, error) {
	if len(results) == 0 {
		return []ScoredResult{}, nil
	}

	documents := make([]string, len(results))
	for i, res := range results {
		documents[i] = documentText(res.Payload)
	}

	scores, err := r.scoreBatch(ctx, query, documents)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredResult, len(results))
	for i, res := range results {
		scored[i] = ScoredResult{
			SearchResult: res,
			RerankScore:  scores[i],
		}
	}

	// Stable: ties preserve the candidates' store order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RerankScore > scored[j].RerankScore
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	return scored, nil
}

// scoreBatch posts all (query, document) pairs in one call and returns one
// score per document, in input order.
func (r *CrossEncoder) scoreBatch(ctx context.Context, query string, documents []string) ([]float32, error) {
	start := time.Now()

	body, err := json.Marshal(rerankRequest{
		Query:      query,
		Candidates: documents,
		Model:      r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	// A well-behaved deployment scores every candidate exactly once; anything
	// else would silently rank candidates by a default zero score.
	if len(parsed.Results) != len(documents) {
		return nil, fmt.Errorf("rerank endpoint returned %d scores for %d candidates",
			len(parsed.Results), len(documents))
	}

	scores := make([]float32, len(documents))
	seen := make([]bool, len(documents))
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(scores) || seen[result.Index] {
			return nil, fmt.Errorf("rerank endpoint returned invalid result index %d", result.Index)
		}
		seen[result.Index] = true
		scores[result.Index] = result.Score
	}

	r.logger.Debug("rerank_scored",
		slog.Int("pair_count", len(documents)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return scores, nil
}

// documentText assembles the rich text the cross-encoder sees for one
// candidate, mirroring the structure used at embedding time so the model gets
// comparable context.
func documentText(p corpus.ChunkPayload) string {
	return fmt.Sprintf("Law: %s\nArticle: %s (%s)\nText: %s",
		p.LawName, p.ArticleTitle, p.Status, p.TextContent)
}

// Ensure CrossEncoder implements Reranker.
var _ Reranker = (*CrossEncoder)(nil)
