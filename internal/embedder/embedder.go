// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// The embedding model is asymmetric: query-side and passage-side text must be
// marked with different task prefixes for retrieval to work correctly.
const (
	QueryPrefix   = "query: "
	PassagePrefix = "passage: "
)

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
