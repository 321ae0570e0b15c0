package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// PostProcessor is one stage of the chunking chain. The first stage cuts the
// document text into structural chunks; later stages annotate those chunks
// with legal references, clause tags and section labels.
type PostProcessor interface {
	// Name is the key the stage is registered and configured under.
	Name() string

	// Process receives the chunks of the previous stage, nil for the first,
	// and returns the chunks to hand on. Stages must keep offsets intact.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline runs a document through every stage in order.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
