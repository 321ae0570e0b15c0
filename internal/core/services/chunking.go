package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
	"github.com/custodia-labs/lexcheck/internal/postprocessors/chunker"
)

// Ensure ChunkingService implements the interface.
var _ driving.ChunkingService = (*ChunkingService)(nil)

// ChunkingService runs documents through the chunking pipeline.
type ChunkingService struct {
	pipeline   driven.PostProcessorPipeline
	classifier *chunker.Classifier
}

// NewChunkingService creates a chunking service. classifier may be nil.
func NewChunkingService(pipeline driven.PostProcessorPipeline, classifier *chunker.Classifier) *ChunkingService {
	if classifier == nil {
		classifier = chunker.NewClassifier()
	}
	return &ChunkingService{pipeline: pipeline, classifier: classifier}
}

// Profile classifies the structure of a document.
func (s *ChunkingService) Profile(doc *domain.Document) domain.StructureProfile {
	if doc == nil {
		return s.classifier.Classify("", domain.DocumentHints{})
	}
	return s.classifier.Classify(doc.Content, doc.Hints)
}

// Chunk splits a document into enriched chunks.
func (s *ChunkingService) Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
	}
	return chunks, nil
}

// UnitsFromChunks turns structural chunks into analysis units. Overlap is
// dropped so units tile the document without repeating text.
func UnitsFromChunks(chunks []domain.Chunk) []domain.AnalysisUnit {
	units := make([]domain.AnalysisUnit, 0, len(chunks))
	for _, c := range chunks {
		body := c.Body()
		if strings.TrimSpace(body) == "" {
			continue
		}
		title := strings.TrimSpace(strings.Join(nonEmpty(c.Section, c.Subsection), " / "))
		units = append(units, domain.AnalysisUnit{
			Title:       title,
			Content:     body,
			StartOffset: c.StartOffset + c.Overlap,
			EndOffset:   c.EndOffset,
		})
	}
	return numberUnits(units)
}
