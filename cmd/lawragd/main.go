package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qanoonhub/lawrag/internal/config"
	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qanoonhub/lawrag/internal/embedder"
	"github.com/qanoonhub/lawrag/internal/reranker"
	"github.com/qanoonhub/lawrag/internal/retrieval"
	"github.com/qanoonhub/lawrag/internal/server"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

func main() {
	corpusPath := flag.String("corpus", "", "optional corpus JSON file; used to serve the category list")
	flag.Parse()

	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(*corpusPath); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run(corpusPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting legal retrieval service",
		"http_port", cfg.HTTPPort,
		"collection", cfg.CollectionName,
		"rerank_enabled", cfg.RerankEnabled,
	)

	// Initialize Qdrant vector store
	store, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()
	slog.Info("connected to Qdrant")

	// Initialize embedder
	emb := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:   cfg.EmbedderURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	})
	slog.Info("initialized embedder", "model", cfg.EmbeddingModel, "dimension", cfg.EmbeddingDimension)

	// Build the retrieval pipeline, with reranking when configured
	var opts []retrieval.PipelineOption
	if cfg.RerankEnabled {
		opts = append(opts, retrieval.WithReranker(reranker.NewCrossEncoder(reranker.CrossEncoderConfig{
			BaseURL: cfg.RerankerURL,
			Model:   cfg.RerankerModel,
		})))
		slog.Info("initialized reranker", "model", cfg.RerankerModel)
	}

	pipeline := retrieval.NewPipeline(emb, store, retrieval.PipelineConfig{
		TopK:    cfg.TopK,
		SearchK: cfg.SearchK,
	}, opts...)

	// Category list for the front-end, if a corpus file is at hand
	var categories []string
	if corpusPath != "" {
		f, err := os.Open(corpusPath)
		if err != nil {
			return fmt.Errorf("failed to open corpus file: %w", err)
		}
		categories, err = corpus.UniqueCategories(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read categories: %w", err)
		}
		slog.Info("loaded corpus categories", "count", len(categories))
	}

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:       cfg.HTTPPort,
		APIKey:     cfg.APIKey,
		Retriever:  pipeline,
		Categories: categories,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 15*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
