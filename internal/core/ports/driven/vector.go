package driven

import "context"

// VectorIndex stores embedded legal chunks for similarity search.
// Backed by Qdrant in production and by a brute-force index in memory.
type VectorIndex interface {
	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []VectorPoint) error

	// Remove deletes points by ID. Unknown IDs are ignored.
	Remove(ctx context.Context, ids []string) error

	// Search finds the points nearest to the query vector, best first.
	Search(ctx context.Context, q VectorQuery) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorPoint is one embedded chunk with its filterable payload.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// VectorQuery is a nearest-neighbour lookup.
type VectorQuery struct {
	Vector []float32

	// Limit is the maximum number of hits.
	Limit int

	// ScoreThreshold drops hits below it. Zero disables the filter.
	ScoreThreshold float64

	// Match requires payload fields to equal the given values.
	Match map[string]string
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	ID string

	// Score is the cosine similarity (higher is closer).
	Score float64

	Payload map[string]any
}
