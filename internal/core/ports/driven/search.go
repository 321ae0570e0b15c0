package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Chunk metadata keys used to filter legal-context searches.
const (
	MetaLegalArea    = "legal_area"
	MetaJurisdiction = "jurisdiction"
	MetaIndexID      = "index_id"

	// MetaSourceID and MetaSourceTitle name the legal source a chunk was cut from.
	MetaSourceID    = "source_id"
	MetaSourceTitle = "source_title"
)

// LegalIndex stores and searches the body of law units are judged against.
// Implementations are interchangeable: orchestration code depends only on
// this interface.
type LegalIndex interface {
	// Index adds or replaces chunks of legal text.
	Index(ctx context.Context, chunks []domain.Chunk) error

	// Remove deletes chunks by id. Unknown ids are ignored.
	Remove(ctx context.Context, ids []string) error

	// Search returns chunks relevant to the query, best first.
	Search(ctx context.Context, q LegalSearchQuery) (LegalSearchResult, error)

	// Close releases resources.
	Close() error
}

// LegalSearchQuery describes one legal-context lookup.
type LegalSearchQuery struct {
	// Query is the free-text search query.
	Query string

	// LegalArea and Jurisdiction restrict results when set. They match the
	// chunk metadata keys MetaLegalArea and MetaJurisdiction.
	LegalArea    string
	Jurisdiction string

	// TopK is the maximum number of results.
	TopK int

	// IndexID selects a named corpus when set.
	IndexID string

	// ScoreThreshold drops results scoring below it. Zero disables the filter.
	ScoreThreshold float64
}

// LegalSearchResult holds parallel slices of documents and their scores.
type LegalSearchResult struct {
	Documents []domain.Chunk
	Scores    []float64
}

// Items pairs documents with their scores.
func (r LegalSearchResult) Items() []domain.LegalContextItem {
	items := make([]domain.LegalContextItem, 0, len(r.Documents))
	for i, doc := range r.Documents {
		var score float64
		if i < len(r.Scores) {
			score = r.Scores[i]
		}
		items = append(items, domain.LegalContextItem{Source: doc, RelevanceScore: score})
	}
	return items
}
