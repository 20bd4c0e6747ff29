// Package config loads configuration from environment variables and .env files.
package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the legal retrieval service
type Config struct {
	// Server
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	APIKey   string `env:"API_KEY"`

	// Qdrant
	QdrantURL      string `env:"QDRANT_URL" envDefault:"localhost:6334"`
	CollectionName string `env:"COLLECTION_NAME" envDefault:"legal_documents"`

	// PostgreSQL (optional; ingestion-run bookkeeping is skipped when empty)
	DatabaseURL string `env:"DATABASE_URL"`

	// Embedding model service
	EmbedderURL        string `env:"EMBEDDER_URL" envDefault:"http://localhost:11434"`
	EmbeddingModel     string `env:"EMBEDDING_MODEL" envDefault:"multilingual-e5-large"`
	EmbeddingDimension int    `env:"EMBEDDING_DIMENSION" envDefault:"1024"`

	// Cross-encoder reranking service
	RerankerURL   string `env:"RERANKER_URL" envDefault:"http://localhost:8091"`
	RerankerModel string `env:"RERANKER_MODEL" envDefault:"bge-reranker-base"`
	RerankEnabled bool   `env:"RERANK_ENABLED" envDefault:"true"`

	// Chunking
	MaxChunkChars int `env:"MAX_CHUNK_CHARS" envDefault:"1500"`
	OverlapChars  int `env:"OVERLAP_CHARS" envDefault:"200"`

	// Retrieval
	TopK    int `env:"TOP_K" envDefault:"5"`
	SearchK int `env:"SEARCH_K" envDefault:"50"`

	// Ingestion
	BatchSize int `env:"BATCH_SIZE" envDefault:"32"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
