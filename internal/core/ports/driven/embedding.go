package driven

import "context"

// EmbeddingService turns legal text and search queries into vectors.
// Only the vector-backed LegalIndex needs one; the keyword index does not.
// Backed by OpenAI or Ollama embedding models.
type EmbeddingService interface {
	// Embed returns the vector for one query or chunk.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector size. The Qdrant collection is created with it.
	Dimensions() int

	ModelName() string

	// Ping sends a minimal request to check credentials and reachability.
	Ping(ctx context.Context) error

	Close() error
}
