// Package embedder defines the Embedder external collaborator (spec §6.1)
// and an Ollama-compatible HTTP driver, grounded in the teacher's
// vector.OllamaEmbedding / OllamaEmbeddingConfig wiring.
package embedder

import "context"

// Embedder is the capability set spec §6.1 requires.
type Embedder interface {
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
