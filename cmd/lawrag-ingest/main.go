// Command lawrag-ingest loads a legal corpus into the vector store.
//
// Modes:
//
//	-mode chunk  corpus JSON -> JSONL chunk artifact (no models needed)
//	-mode embed  JSONL chunk artifact -> vector store
//	-mode all    corpus JSON -> vector store directly
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/qanoonhub/lawrag/internal/config"
	"github.com/qanoonhub/lawrag/internal/embedder"
	"github.com/qanoonhub/lawrag/internal/ingestion"
	"github.com/qanoonhub/lawrag/internal/repository"
	"github.com/qanoonhub/lawrag/internal/repository/postgres"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

func main() {
	var (
		mode     = flag.String("mode", "all", "chunk, embed or all")
		input    = flag.String("input", "", "corpus JSON file (chunk/all) or JSONL artifact (embed)")
		artifact = flag.String("artifact", "chunks.jsonl", "JSONL artifact path (chunk mode output)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	if *input == "" {
		slog.Error("missing -input")
		os.Exit(1)
	}

	if err := run(*mode, *input, *artifact); err != nil {
		slog.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}

func run(mode, input, artifact string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	splitter := ingestion.NewSplitter(cfg.MaxChunkChars, cfg.OverlapChars)

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	// Chunk-only mode needs neither the embedder nor the store.
	if mode == "chunk" {
		out, err := os.Create(artifact)
		if err != nil {
			return fmt.Errorf("failed to create artifact: %w", err)
		}
		defer out.Close()

		pipeline := ingestion.NewPipeline(nil, nil, ingestion.PipelineConfig{
			Splitter:  splitter,
			BatchSize: cfg.BatchSize,
		})
		summary, err := pipeline.WriteArtifact(ctx, in, out)
		if err != nil {
			return err
		}
		slog.Info("artifact written",
			"path", artifact,
			"laws", summary.Laws,
			"chunks", summary.ChunksWritten,
			"skipped_articles", summary.SkippedArticles,
			"malformed_records", summary.MalformedRecords)
		return nil
	}

	store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	emb := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:   cfg.EmbedderURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	})

	// Optional run and law-registry bookkeeping in Postgres
	var (
		runRepo  repository.RunRepository
		registry repository.LawRepository
	)
	runRec := &repository.IngestionRun{
		ID:         uuid.New(),
		Collection: cfg.CollectionName,
		Status:     repository.RunStatusRunning,
		StartedAt:  time.Now(),
	}
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		runRepo = postgres.NewRunRepo(db)
		registry = postgres.NewLawRepo(db)
		if err := runRepo.Create(ctx, runRec); err != nil {
			return err
		}
	}

	pipeline := ingestion.NewPipeline(emb, store, ingestion.PipelineConfig{
		Splitter:  splitter,
		BatchSize: cfg.BatchSize,
		Registry:  registry,
		RunID:     runRec.ID,
	})

	if err := pipeline.EnsureCollection(ctx); err != nil {
		return err
	}

	var summary *ingestion.Summary
	switch mode {
	case "embed":
		summary, err = pipeline.IngestArtifact(ctx, in)
	case "all":
		summary, err = pipeline.ProcessCorpus(ctx, in)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	if runRepo != nil {
		finishRun(ctx, runRepo, runRec, summary, err)
	}
	return err
}

// finishRun records the run outcome; bookkeeping failures only log.
func finishRun(ctx context.Context, repo repository.RunRepository, run *repository.IngestionRun, summary *ingestion.Summary, runErr error) {
	now := time.Now()
	run.CompletedAt = &now
	run.Status = repository.RunStatusCompleted
	if runErr != nil {
		run.Status = repository.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	}
	if summary != nil {
		run.Laws = summary.Laws
		run.ChunksWritten = summary.ChunksWritten
		run.SkippedArticles = summary.SkippedArticles
		run.MalformedRecords = summary.MalformedRecords
		run.FailedBatches = len(summary.FailedBatches)
	}
	if err := repo.Update(ctx, run); err != nil {
		slog.Warn("failed to record ingestion run", "error", err)
	}
}
