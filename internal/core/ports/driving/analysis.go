package driving

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// AnalysisService runs and tracks compliance analyses.
type AnalysisService interface {
	// CreateJob starts an analysis in the background and returns its job.
	// Starting an id that is already in flight returns the running job
	// without starting a second run.
	CreateJob(ctx context.Context, req domain.AnalysisRequest) (*domain.Job, error)

	// Run executes an analysis synchronously and returns the stored result.
	// Returns domain.ErrJobInProgress if the id is already in flight.
	Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)

	// Cancel requests cooperative cancellation of an in-flight job.
	Cancel(analysisID string) error

	// Status returns the current job record.
	Status(ctx context.Context, analysisID string) (*domain.Job, error)

	// Wait blocks until the job reaches a terminal status or ctx is done.
	Wait(ctx context.Context, analysisID string) (*domain.Job, error)

	// Result returns the reconstructed result of a completed analysis.
	Result(ctx context.Context, analysisID string) (*domain.AnalysisResult, error)

	// List returns summaries of a user's analyses, newest first.
	List(ctx context.Context, userID string, limit int) ([]domain.AnalysisSummary, error)

	// Delete removes a stored analysis that is not in flight.
	Delete(ctx context.Context, analysisID string) error
}

// ChunkingService exposes the structural chunker to callers.
type ChunkingService interface {
	// Profile classifies the structure of a document.
	Profile(doc *domain.Document) domain.StructureProfile

	// Chunk splits a document into enriched chunks.
	Chunk(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}

// CorpusService maintains the body of law analyses are judged against.
type CorpusService interface {
	// Index extracts, chunks and indexes a legal text. Indexing an existing
	// source id replaces its chunks.
	Index(ctx context.Context, req domain.IndexRequest) (*domain.LegalSource, error)

	// Sources lists the indexed legal sources, most recently indexed first.
	Sources(ctx context.Context) ([]domain.LegalSource, error)
}
