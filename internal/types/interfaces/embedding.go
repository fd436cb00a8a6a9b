package interfaces

import "context"

// EmbeddingClient produces fixed-dimension dense vectors for text (C2).
// Implementations must be deterministic for equal input and safe for
// concurrent callers.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}
