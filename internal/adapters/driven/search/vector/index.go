// Package vector implements a LegalIndex on top of an embedding service and
// any driven.VectorIndex (Qdrant or the in-memory cosine index).
package vector

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.LegalIndex = (*Index)(nil)

// DefaultTopK is used when a query does not set TopK.
const DefaultTopK = 5

// Payload keys written for every chunk. Chunk metadata is stored alongside.
const (
	PayloadChunkID    = "chunk_id"
	PayloadDocumentID = "document_id"
	PayloadContent    = "content"
	PayloadIndex      = "index"
	PayloadLevel      = "level"
	PayloadSection    = "section"
	PayloadSubsection = "subsection"
	PayloadReferences = "legal_references"
	PayloadClauseTags = "clause_tags"
	PayloadLanguage   = "language"
)

// Index embeds chunks and queries and delegates storage to a VectorIndex.
type Index struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorIndex
	log      *logger.Logger
}

// New creates an embedding-backed legal index.
func New(embedder driven.EmbeddingService, vectors driven.VectorIndex, log *logger.Logger) *Index {
	return &Index{embedder: embedder, vectors: vectors, log: log.With("vector-search")}
}

// Index embeds the chunks in one batch and upserts them.
func (x *Index) Index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w: %w", domain.ErrSearchUnavailable, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d embeddings for %d chunks: %w",
			len(embeddings), len(chunks), domain.ErrSearchUnavailable)
	}

	points := make([]driven.VectorPoint, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		points[i] = driven.VectorPoint{ID: c.ID, Vector: embeddings[i], Payload: ChunkPayload(c)}
	}
	if err := x.vectors.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert chunks: %w: %w", domain.ErrSearchUnavailable, err)
	}
	x.log.Debug("Indexed %d chunks with %s", len(points), x.embedder.ModelName())
	return nil
}

// Remove deletes chunks from the vector index.
func (x *Index) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.vectors.Remove(ctx, ids); err != nil {
		return fmt.Errorf("remove chunks: %w: %w", domain.ErrSearchUnavailable, err)
	}
	return nil
}

// Search embeds the query and returns the nearest chunks passing the filters.
func (x *Index) Search(ctx context.Context, q driven.LegalSearchQuery) (driven.LegalSearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return driven.LegalSearchResult{}, nil
	}

	vec, err := x.embedder.Embed(ctx, q.Query)
	if err != nil {
		return driven.LegalSearchResult{}, fmt.Errorf("embed query: %w: %w", domain.ErrSearchUnavailable, err)
	}

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	match := make(map[string]string, 3)
	if q.LegalArea != "" {
		match[driven.MetaLegalArea] = q.LegalArea
	}
	if q.Jurisdiction != "" {
		match[driven.MetaJurisdiction] = q.Jurisdiction
	}
	if q.IndexID != "" {
		match[driven.MetaIndexID] = q.IndexID
	}

	hits, err := x.vectors.Search(ctx, driven.VectorQuery{
		Vector:         vec,
		Limit:          topK,
		ScoreThreshold: q.ScoreThreshold,
		Match:          match,
	})
	if err != nil {
		return driven.LegalSearchResult{}, fmt.Errorf("vector search: %w: %w", domain.ErrSearchUnavailable, err)
	}

	var res driven.LegalSearchResult
	for _, h := range hits {
		res.Documents = append(res.Documents, ChunkFromPayload(h.ID, h.Payload))
		res.Scores = append(res.Scores, h.Score)
	}
	x.log.Debug("Search %q: %d hits", q.Query, len(hits))
	return res, nil
}

// Close closes the underlying vector index.
func (x *Index) Close() error {
	return x.vectors.Close()
}

// ChunkPayload flattens a chunk into a filterable payload. Metadata values
// are kept when they are scalars; fixed chunk fields take precedence.
func ChunkPayload(c domain.Chunk) map[string]any {
	payload := make(map[string]any, len(c.Metadata)+10)
	for k, v := range c.Metadata {
		switch val := v.(type) {
		case string, bool, int, int64, float64:
			payload[k] = val
		}
	}
	payload[PayloadChunkID] = c.ID
	payload[PayloadDocumentID] = c.DocumentID
	payload[PayloadContent] = c.Content
	payload[PayloadIndex] = int64(c.Index)
	payload[PayloadLevel] = string(c.Level)
	payload[PayloadLanguage] = string(c.Language)
	if c.Section != "" {
		payload[PayloadSection] = c.Section
	}
	if c.Subsection != "" {
		payload[PayloadSubsection] = c.Subsection
	}
	if len(c.LegalReferences) > 0 {
		payload[PayloadReferences] = toList(c.LegalReferences)
	}
	if len(c.ClauseTags) > 0 {
		payload[PayloadClauseTags] = toList(c.ClauseTags)
	}
	return payload
}

var reservedKeys = map[string]bool{
	PayloadChunkID: true, PayloadDocumentID: true, PayloadContent: true, PayloadIndex: true,
	PayloadLevel: true, PayloadSection: true, PayloadSubsection: true, PayloadReferences: true,
	PayloadClauseTags: true, PayloadLanguage: true,
}

// ChunkFromPayload rebuilds a chunk from a stored payload. pointID is used
// when the payload carries no chunk id.
func ChunkFromPayload(pointID string, payload map[string]any) domain.Chunk {
	c := domain.Chunk{
		ID:         str(payload[PayloadChunkID]),
		DocumentID: str(payload[PayloadDocumentID]),
		Content:    str(payload[PayloadContent]),
		Index:      integer(payload[PayloadIndex]),
		Level:      domain.ChunkLevel(str(payload[PayloadLevel])),
		Language:   domain.Language(str(payload[PayloadLanguage])),
		Section:    str(payload[PayloadSection]),
		Subsection: str(payload[PayloadSubsection]),

		LegalReferences: strs(payload[PayloadReferences]),
		ClauseTags:      strs(payload[PayloadClauseTags]),
	}
	if c.ID == "" {
		c.ID = pointID
	}
	for k, v := range payload {
		if reservedKeys[k] {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		c.Metadata[k] = v
	}
	return c
}

func toList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func integer(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	return 0
}

func strs(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
