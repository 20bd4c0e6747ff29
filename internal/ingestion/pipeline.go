package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qanoonhub/lawrag/internal/embedder"
	"github.com/qanoonhub/lawrag/internal/repository"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

// DefaultBatchSize is the number of chunks embedded and upserted per call.
// Batching amortizes the fixed per-call overhead of the model service; it is
// not a concurrency mechanism.
const DefaultBatchSize = 32

// BatchFailure records one failed embed-or-upsert batch. Ingestion logs the
// failure and continues with the next batch, trading completeness for forward
// progress on large corpora.
type BatchFailure struct {
	Size   int
	Stage  string // "embed" or "upsert"
	Reason string
}

// Summary aggregates the outcome of one ingestion run. Failures are carried
// explicitly rather than swallowed.
type Summary struct {
	Laws             int
	MalformedRecords int
	SkippedArticles  int // articles whose effective text was empty
	ChunksWritten    int
	FailedBatches    []BatchFailure
	Duration         time.Duration
}

// Pipeline orchestrates chunk assembly, embedding and vector store loading.
type Pipeline struct {
	assembler *Assembler
	embedder  embedder.Embedder
	store     vectorstore.Store
	registry  repository.LawRepository // nil when bookkeeping is disabled
	runID     uuid.UUID
	batchSize int
	logger    *slog.Logger
}

// PipelineConfig holds configuration for the ingestion pipeline. Registry and
// RunID are optional; when set, every processed law is recorded in the law
// registry under that run.
type PipelineConfig struct {
	Splitter  Splitter
	BatchSize int
	Registry  repository.LawRepository
	RunID     uuid.UUID
	Logger    *slog.Logger
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(emb embedder.Embedder, store vectorstore.Store, cfg PipelineConfig) *Pipeline {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		assembler: NewAssembler(cfg.Splitter),
		embedder:  emb,
		store:     store,
		registry:  cfg.Registry,
		runID:     cfg.RunID,
		batchSize: batchSize,
		logger:    logger,
	}
}

// EnsureCollection creates the store collection with the embedder's dimension
// if it does not exist yet. Existing collections are appended to.
func (p *Pipeline) EnsureCollection(ctx context.Context) error {
	exists, err := p.store.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	p.logger.Info("creating collection", "dimension", p.embedder.Dimension())
	return p.store.CreateCollection(ctx, p.embedder.Dimension())
}

// ProcessCorpus streams a corpus file, assembles chunks for every article and
// loads them into the vector store in batches. Batch failures are recorded in
// the summary and skipped; the run continues.
func (p *Pipeline) ProcessCorpus(ctx context.Context, r io.Reader) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	batch := make([]Chunk, 0, p.batchSize)

	stats, err := corpus.ReadLaws(r, func(law corpus.Law) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunks, err := p.assembleLaw(ctx, law, summary)
		if err != nil {
			return err
		}

		for _, chunk := range chunks {
			batch = append(batch, chunk)
			if len(batch) >= p.batchSize {
				p.flush(ctx, batch, summary)
				batch = batch[:0]
			}
		}
		return nil
	})
	summary.Laws = stats.Laws
	summary.MalformedRecords = stats.Malformed
	if err != nil {
		return summary, err
	}

	if len(batch) > 0 {
		p.flush(ctx, batch, summary)
	}

	summary.Duration = time.Since(start)
	p.logger.Info("corpus ingestion finished",
		"laws", summary.Laws,
		"chunks", summary.ChunksWritten,
		"skipped_articles", summary.SkippedArticles,
		"malformed_records", summary.MalformedRecords,
		"failed_batches", len(summary.FailedBatches),
		"duration", summary.Duration)

	return summary, nil
}

// WriteArtifact streams a corpus file and writes the assembled chunks as a
// JSONL artifact, the persisted contract between the chunking and embedding
// stages.
func (p *Pipeline) WriteArtifact(ctx context.Context, r io.Reader, w io.Writer) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	rw := NewRecordWriter(w)

	stats, err := corpus.ReadLaws(r, func(law corpus.Law) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunks, err := p.assembleLaw(ctx, law, summary)
		if err != nil {
			return err
		}

		for _, chunk := range chunks {
			if err := rw.Write(chunk); err != nil {
				return err
			}
			summary.ChunksWritten++
		}
		return nil
	})
	summary.Laws = stats.Laws
	summary.MalformedRecords = stats.Malformed
	if err != nil {
		return summary, err
	}

	if err := rw.Flush(); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// IngestArtifact reads a JSONL chunk artifact and loads it into the vector
// store in batches.
func (p *Pipeline) IngestArtifact(ctx context.Context, r io.Reader) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	batch := make([]Chunk, 0, p.batchSize)

	read, skipped, err := ReadRecords(r, func(rec Record) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch = append(batch, Chunk{
			ID:         rec.ID,
			GroupKey:   rec.Payload.GroupKey,
			Index:      rec.Payload.ChunkIndex,
			Total:      rec.Payload.ChunkTotal,
			VectorText: rec.VectorText,
			Payload:    rec.Payload,
		})
		if len(batch) >= p.batchSize {
			p.flush(ctx, batch, summary)
			batch = batch[:0]
		}
		return nil
	})
	summary.MalformedRecords = skipped
	if err != nil {
		return summary, err
	}

	if len(batch) > 0 {
		p.flush(ctx, batch, summary)
	}

	summary.Duration = time.Since(start)
	p.logger.Info("artifact ingestion finished",
		"records", read,
		"chunks", summary.ChunksWritten,
		"malformed_records", summary.MalformedRecords,
		"failed_batches", len(summary.FailedBatches),
		"duration", summary.Duration)

	return summary, nil
}

// assembleLaw assembles all articles of one law, counting empty articles.
// When a registry is configured the law is recorded under the current run;
// registry failures only log.
func (p *Pipeline) assembleLaw(ctx context.Context, law corpus.Law, summary *Summary) ([]Chunk, error) {
	var chunks []Chunk
	for _, article := range law.Articles {
		articleChunks, err := p.assembler.Assemble(law, article)
		if err != nil {
			return nil, fmt.Errorf("law %q: %w", law.ID.String(), err)
		}
		if len(articleChunks) == 0 {
			summary.SkippedArticles++
			continue
		}
		chunks = append(chunks, articleChunks...)
	}

	if p.registry != nil {
		rec := &repository.LawRecord{
			ID:         law.ID.String(),
			Name:       law.Name,
			Categories: law.Categories,
			Articles:   len(law.Articles),
			Chunks:     len(chunks),
			RunID:      p.runID,
			IngestedAt: time.Now(),
		}
		if err := p.registry.Upsert(ctx, rec); err != nil {
			p.logger.Warn("failed to record law", "law_id", rec.ID, "error", err)
		}
	}

	return chunks, nil
}

// flush embeds one batch and upserts it. A failure at either stage is
// recorded and the batch is dropped; ingestion continues.
func (p *Pipeline) flush(ctx context.Context, batch []Chunk, summary *Summary) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = embedder.PassagePrefix + chunk.VectorText
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		p.logger.Error("batch embedding failed", "size", len(batch), "error", err)
		summary.FailedBatches = append(summary.FailedBatches, BatchFailure{
			Size:   len(batch),
			Stage:  "embed",
			Reason: err.Error(),
		})
		return
	}

	points := make([]vectorstore.Point, len(batch))
	for i, chunk := range batch {
		points[i] = vectorstore.Point{
			ID:      chunk.ID,
			Vector:  vectors[i],
			Payload: chunk.Payload,
		}
	}

	if err := p.store.Upsert(ctx, points); err != nil {
		p.logger.Error("batch upsert failed", "size", len(batch), "error", err)
		summary.FailedBatches = append(summary.FailedBatches, BatchFailure{
			Size:   len(batch),
			Stage:  "upsert",
			Reason: err.Error(),
		})
		return
	}

	summary.ChunksWritten += len(batch)
}
