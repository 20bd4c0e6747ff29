package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qanoonhub/lawrag/internal/ingestion"
	"github.com/qanoonhub/lawrag/internal/reranker"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	// Deterministic unit vector derived from the text so that identical texts
	// collide and different texts mostly do not.
	v := make([]float32, f.dim)
	h := uint32(2166136261)
	for _, b := range []byte(text) {
		h = (h ^ uint32(b)) * 16777619
	}
	v[int(h)%f.dim] = 1
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake" }

// memoryStore is an in-process Store with brute-force cosine search, enough
// to run the full ingest-then-retrieve path without a running Qdrant.
type memoryStore struct {
	points  []vectorstore.Point
	results []vectorstore.SearchResult // overrides search when non-nil
	err     error
}

func (m *memoryStore) CreateCollection(context.Context, int) error { return nil }
func (m *memoryStore) CollectionExists(context.Context) (bool, error) {
	return true, nil
}

func (m *memoryStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	m.points = append(m.points, points...)
	return nil
}

func (m *memoryStore) Search(_ context.Context, vector []float32, category string, limit int) ([]vectorstore.SearchResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.results != nil {
		if len(m.results) > limit {
			return m.results[:limit], nil
		}
		return m.results, nil
	}

	var out []vectorstore.SearchResult
	for _, pt := range m.points {
		if category != "" && !containsString(pt.Payload.Categories, category) {
			continue
		}
		var dot float32
		for i := range vector {
			dot += vector[i] * pt.Vector[i]
		}
		out = append(out, vectorstore.SearchResult{ID: pt.ID, Score: dot, Payload: pt.Payload})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeReranker struct {
	calls  int
	scores map[string]float32 // chunk id -> rerank score
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, results []vectorstore.SearchResult, topK int) ([]reranker.ScoredResult, error) {
	f.calls++
	scored := make([]reranker.ScoredResult, len(results))
	for i, res := range results {
		scored[i] = reranker.ScoredResult{SearchResult: res, RerankScore: f.scores[res.ID]}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].RerankScore > scored[j].RerankScore })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result(id, groupKey string, score float32) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ID:      id,
		Score:   score,
		Payload: corpus.ChunkPayload{GroupKey: groupKey, TextContent: "text " + id},
	}
}

func TestPipeline_NoCandidatesShortCircuits(t *testing.T) {
	store := &memoryStore{results: []vectorstore.SearchResult{}}
	rr := &fakeReranker{}
	p := NewPipeline(&fakeEmbedder{dim: 8}, store, PipelineConfig{Logger: discardLogger()}, WithReranker(rr))

	got, err := p.Retrieve(context.Background(), "anything", "", 5, 50)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
	if rr.calls != 0 {
		t.Errorf("reranker called %d times for an empty candidate set", rr.calls)
	}
}

func TestPipeline_RerankScoresDriveOrdering(t *testing.T) {
	store := &memoryStore{results: []vectorstore.SearchResult{
		result("a", "A", 0.9),
		result("b", "B", 0.8),
		result("c", "C", 0.7),
	}}
	rr := &fakeReranker{scores: map[string]float32{"a": -1.0, "b": 3.5, "c": 1.2}}
	p := NewPipeline(&fakeEmbedder{dim: 8}, store, PipelineConfig{Logger: discardLogger()}, WithReranker(rr))

	got, err := p.Retrieve(context.Background(), "labor rights", "", 3, 10)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	wantOrder := []string{"B", "C", "A"}
	for i, want := range wantOrder {
		if got[i].GroupKey != want {
			t.Errorf("result %d = %q, want %q", i, got[i].GroupKey, want)
		}
	}
	if got[0].Score != 3.5 {
		t.Errorf("top score = %v, want rerank score 3.5", got[0].Score)
	}
}

func TestPipeline_TopKSlicesAfterGrouping(t *testing.T) {
	store := &memoryStore{results: []vectorstore.SearchResult{
		result("a", "A", 0.9),
		result("b", "B", 0.8),
		result("c", "C", 0.7),
		result("d", "D", 0.6),
	}}
	p := NewPipeline(&fakeEmbedder{dim: 8}, store, PipelineConfig{Logger: discardLogger()})

	got, err := p.Retrieve(context.Background(), "query", "", 2, 10)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].GroupKey != "A" || got[1].GroupKey != "B" {
		t.Errorf("results = %q, %q, want A, B", got[0].GroupKey, got[1].GroupKey)
	}
}

func TestPipeline_StoreErrorSurfaces(t *testing.T) {
	store := &memoryStore{err: vectorstore.ErrCollectionMissing}
	p := NewPipeline(&fakeEmbedder{dim: 8}, store, PipelineConfig{Logger: discardLogger()})

	_, err := p.Retrieve(context.Background(), "query", "", 5, 50)
	if !errors.Is(err, vectorstore.ErrCollectionMissing) {
		t.Fatalf("err = %v, want ErrCollectionMissing", err)
	}
}

// TestPipeline_IngestThenRetrieve runs the full path: one long article split
// into sibling chunks at ingestion, then collapsed back into a single result
// at query time.
func TestPipeline_IngestThenRetrieve(t *testing.T) {
	emb := &fakeEmbedder{dim: 64}
	store := &memoryStore{}

	ing := ingestion.NewPipeline(emb, store, ingestion.PipelineConfig{
		Splitter:  ingestion.NewSplitter(1000, 200),
		BatchSize: 8,
		Logger:    discardLogger(),
	})

	corpusJSON := `[
	  {
	    "element_id": "77",
	    "decision_name": "Commercial Code",
	    "law_address": "Commercial Code",
	    "categories": ["Commercial Law"],
	    "articles": [
	      {"article_number": "10", "article_title": "Article 10", "article_content": "` + strings.Repeat("trade ", 420) + `"}
	    ]
	  }
	]`

	summary, err := ing.ProcessCorpus(context.Background(), strings.NewReader(corpusJSON))
	if err != nil {
		t.Fatalf("ProcessCorpus error: %v", err)
	}
	if summary.ChunksWritten < 2 {
		t.Fatalf("chunks written = %d, want the article split into siblings", summary.ChunksWritten)
	}

	p := NewPipeline(emb, store, PipelineConfig{Logger: discardLogger()})

	got, err := p.Retrieve(context.Background(), "trade obligations", "Commercial Law", 1, 10)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].GroupKey != "77_10" {
		t.Errorf("group key = %q, want \"77_10\"", got[0].GroupKey)
	}
	if got[0].Count != summary.ChunksWritten {
		t.Errorf("count = %d, want all %d sibling chunks", got[0].Count, summary.ChunksWritten)
	}

	// A category the corpus does not carry excludes every candidate.
	got, err = p.Retrieve(context.Background(), "trade obligations", "Family Law", 1, 10)
	if err != nil {
		t.Fatalf("filtered Retrieve error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results for a non-matching category, want 0", len(got))
	}
}
