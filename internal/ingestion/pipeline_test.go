package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/qanoonhub/lawrag/internal/repository"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

type fakeEmbedder struct {
	dim       int
	failBatch int // 1-based index of the EmbedBatch call that fails, 0 = never
	calls     int
	texts     [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(context.Background(), []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts = append(f.texts, texts)
	if f.failBatch != 0 && f.calls == f.failBatch {
		return nil, errors.New("model service unavailable")
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, f.dim)
		vecs[i][0] = 1
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake" }

type fakeStore struct {
	exists    bool
	created   int
	createdAt int // dimension passed to CreateCollection
	points    []vectorstore.Point
	upsertErr error
}

func (f *fakeStore) CreateCollection(_ context.Context, dimension int) error {
	f.created++
	f.createdAt = dimension
	f.exists = true
	return nil
}

func (f *fakeStore) CollectionExists(_ context.Context) (bool, error) {
	return f.exists, nil
}

func (f *fakeStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, _ string, _ int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testCorpus = `[
  {
    "element_id": "1",
    "decision_name": "Civil Code",
    "law_address": "Civil Code",
    "categories": ["Civil Law"],
    "articles": [
      {"article_number": "1", "article_title": "Article 1", "article_content": "Contracts bind the parties."},
      {"article_number": "2", "article_title": "Article 2", "article_content": "   "},
      {"article_number": "3", "article_title": "Article 3", "article_content": "Obligations arise from law."}
    ]
  },
  {
    "element_id": "2",
    "decision_name": "Labor Law",
    "law_address": "Labor Law",
    "categories": ["Labor Law"],
    "articles": [
      {"article_number": "1", "article_title": "Article 1", "article_content": "Working hours are limited."}
    ]
  }
]`

func newTestPipeline(emb *fakeEmbedder, store *fakeStore, batchSize int) *Pipeline {
	return NewPipeline(emb, store, PipelineConfig{
		Splitter:  NewSplitter(1000, 200),
		BatchSize: batchSize,
		Logger:    discardLogger(),
	})
}

func TestPipeline_ProcessCorpus(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	store := &fakeStore{exists: true}
	p := newTestPipeline(emb, store, 2)

	summary, err := p.ProcessCorpus(context.Background(), strings.NewReader(testCorpus))
	if err != nil {
		t.Fatalf("ProcessCorpus error: %v", err)
	}

	if summary.Laws != 2 {
		t.Errorf("laws = %d, want 2", summary.Laws)
	}
	if summary.SkippedArticles != 1 {
		t.Errorf("skipped articles = %d, want 1", summary.SkippedArticles)
	}
	if summary.ChunksWritten != 3 {
		t.Errorf("chunks written = %d, want 3", summary.ChunksWritten)
	}
	if len(summary.FailedBatches) != 0 {
		t.Errorf("failed batches = %v", summary.FailedBatches)
	}
	if len(store.points) != 3 {
		t.Fatalf("store holds %d points, want 3", len(store.points))
	}

	// Passage-side texts must carry the asymmetric task prefix.
	for _, call := range emb.texts {
		for _, text := range call {
			if !strings.HasPrefix(text, "passage: ") {
				t.Errorf("embedded text missing passage prefix: %q", text)
			}
		}
	}
}

func TestPipeline_EmbedFailureIsRecordedAndRunContinues(t *testing.T) {
	emb := &fakeEmbedder{dim: 4, failBatch: 1}
	store := &fakeStore{exists: true}
	p := newTestPipeline(emb, store, 2)

	summary, err := p.ProcessCorpus(context.Background(), strings.NewReader(testCorpus))
	if err != nil {
		t.Fatalf("ProcessCorpus error: %v", err)
	}

	if len(summary.FailedBatches) != 1 {
		t.Fatalf("failed batches = %d, want 1", len(summary.FailedBatches))
	}
	fb := summary.FailedBatches[0]
	if fb.Stage != "embed" || fb.Size != 2 {
		t.Errorf("failure = %+v, want embed stage of size 2", fb)
	}
	// The second batch still lands.
	if summary.ChunksWritten != 1 {
		t.Errorf("chunks written = %d, want 1", summary.ChunksWritten)
	}
	if len(store.points) != 1 {
		t.Errorf("store holds %d points, want 1", len(store.points))
	}
}

func TestPipeline_UpsertFailureIsRecorded(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	store := &fakeStore{exists: true, upsertErr: errors.New("store down")}
	p := newTestPipeline(emb, store, 10)

	summary, err := p.ProcessCorpus(context.Background(), strings.NewReader(testCorpus))
	if err != nil {
		t.Fatalf("ProcessCorpus error: %v", err)
	}
	if summary.ChunksWritten != 0 {
		t.Errorf("chunks written = %d, want 0", summary.ChunksWritten)
	}
	if len(summary.FailedBatches) != 1 || summary.FailedBatches[0].Stage != "upsert" {
		t.Errorf("failed batches = %v, want one upsert failure", summary.FailedBatches)
	}
}

func TestPipeline_EnsureCollection(t *testing.T) {
	emb := &fakeEmbedder{dim: 1024}
	store := &fakeStore{}
	p := newTestPipeline(emb, store, 2)

	if err := p.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection error: %v", err)
	}
	if store.created != 1 || store.createdAt != 1024 {
		t.Fatalf("created %d times at dim %d, want once at 1024", store.created, store.createdAt)
	}

	// Second call sees the collection and leaves it alone.
	if err := p.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("second EnsureCollection error: %v", err)
	}
	if store.created != 1 {
		t.Errorf("created %d times, want 1", store.created)
	}
}

func TestPipeline_ArtifactStages(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	store := &fakeStore{exists: true}
	p := newTestPipeline(emb, store, 2)

	var artifact bytes.Buffer
	summary, err := p.WriteArtifact(context.Background(), strings.NewReader(testCorpus), &artifact)
	if err != nil {
		t.Fatalf("WriteArtifact error: %v", err)
	}
	if summary.ChunksWritten != 3 {
		t.Fatalf("artifact chunks = %d, want 3", summary.ChunksWritten)
	}
	if emb.calls != 0 {
		t.Errorf("chunking stage called the embedder %d times", emb.calls)
	}

	summary, err = p.IngestArtifact(context.Background(), &artifact)
	if err != nil {
		t.Fatalf("IngestArtifact error: %v", err)
	}
	if summary.ChunksWritten != 3 {
		t.Errorf("ingested chunks = %d, want 3", summary.ChunksWritten)
	}
	if len(store.points) != 3 {
		t.Fatalf("store holds %d points, want 3", len(store.points))
	}
	for _, pt := range store.points {
		if pt.Payload.GroupKey == "" {
			t.Errorf("point %s lost its group key", pt.ID)
		}
	}
}

type fakeRegistry struct {
	records []*repository.LawRecord
}

func (f *fakeRegistry) Upsert(_ context.Context, law *repository.LawRecord) error {
	f.records = append(f.records, law)
	return nil
}

func (f *fakeRegistry) GetByID(context.Context, string) (*repository.LawRecord, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeRegistry) List(context.Context, int, int) ([]*repository.LawRecord, int, error) {
	return nil, 0, nil
}

func TestPipeline_RecordsLawsInRegistry(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	store := &fakeStore{exists: true}
	registry := &fakeRegistry{}
	runID := uuid.New()

	p := NewPipeline(emb, store, PipelineConfig{
		Splitter:  NewSplitter(1000, 200),
		BatchSize: 2,
		Registry:  registry,
		RunID:     runID,
		Logger:    discardLogger(),
	})

	if _, err := p.ProcessCorpus(context.Background(), strings.NewReader(testCorpus)); err != nil {
		t.Fatalf("ProcessCorpus error: %v", err)
	}

	if len(registry.records) != 2 {
		t.Fatalf("registry holds %d laws, want 2", len(registry.records))
	}
	first := registry.records[0]
	if first.ID != "1" || first.Name != "Civil Code" {
		t.Errorf("first record = %+v", first)
	}
	if first.Articles != 3 || first.Chunks != 2 {
		t.Errorf("first record articles/chunks = %d/%d, want 3/2", first.Articles, first.Chunks)
	}
	if first.RunID != runID {
		t.Errorf("record run id = %v, want %v", first.RunID, runID)
	}
}

func TestPipeline_CanceledContextStopsRun(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	store := &fakeStore{exists: true}
	p := newTestPipeline(emb, store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessCorpus(ctx, strings.NewReader(testCorpus))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
