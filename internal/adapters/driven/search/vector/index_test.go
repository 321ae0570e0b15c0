package vector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/search/memory"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// axisEmbedder maps text onto three axes by keyword: consent, erasure, termination.
type axisEmbedder struct {
	err     error
	batches int
}

func (e *axisEmbedder) vector(text string) []float32 {
	text = strings.ToLower(text)
	v := []float32{0.01, 0.01, 0.01}
	for i, kw := range []string{"consent", "erasure", "terminat"} {
		if strings.Contains(text, kw) {
			v[i] = 1
		}
	}
	return v
}

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *axisEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *axisEmbedder) Dimensions() int            { return 3 }
func (e *axisEmbedder) ModelName() string          { return "axis" }
func (e *axisEmbedder) Ping(context.Context) error { return nil }
func (e *axisEmbedder) Close() error               { return nil }

type failingVectors struct{ driven.VectorIndex }

func (failingVectors) Upsert(context.Context, []driven.VectorPoint) error {
	return errors.New("connection refused")
}

func (failingVectors) Remove(context.Context, []string) error {
	return errors.New("connection refused")
}

func (failingVectors) Search(context.Context, driven.VectorQuery) ([]driven.VectorHit, error) {
	return nil, errors.New("connection refused")
}

func seed(t *testing.T, idx *Index) {
	t.Helper()
	require.NoError(t, idx.Index(context.Background(), []domain.Chunk{
		{
			ID: "art-7", DocumentID: "gdpr", Index: 6, Level: domain.LevelSection, Section: "7",
			Content:         "Conditions for consent.",
			LegalReferences: []string{"Art. 7 GDPR"},
			Metadata:        map[string]any{driven.MetaLegalArea: "data_protection", driven.MetaJurisdiction: "EU"},
		},
		{
			ID: "art-17", DocumentID: "gdpr", Index: 16, Level: domain.LevelSection,
			Content:  "Right to erasure.",
			Metadata: map[string]any{driven.MetaLegalArea: "data_protection", driven.MetaJurisdiction: "EU"},
		},
		{
			ID: "bgb-314", DocumentID: "bgb", Level: domain.LevelClause,
			Content:  "Termination for a compelling reason.",
			Metadata: map[string]any{driven.MetaLegalArea: "contract", driven.MetaJurisdiction: "DE"},
		},
	}))
}

func TestIndex_Search(t *testing.T) {
	embedder := &axisEmbedder{}
	idx := New(embedder, memory.NewVectorIndex(0), nil)
	seed(t, idx)
	assert.Equal(t, 1, embedder.batches)

	res, err := idx.Search(context.Background(), driven.LegalSearchQuery{Query: "Was consent given?", ScoreThreshold: 0.7})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	got := res.Documents[0]
	assert.Equal(t, "art-7", got.ID)
	assert.Equal(t, "gdpr", got.DocumentID)
	assert.Equal(t, 6, got.Index)
	assert.Equal(t, domain.LevelSection, got.Level)
	assert.Equal(t, "7", got.Section)
	assert.Equal(t, []string{"Art. 7 GDPR"}, got.LegalReferences)
	assert.Equal(t, "EU", got.Metadata[driven.MetaJurisdiction])
	assert.InDelta(t, 1.0, res.Scores[0], 0.01)

	items := res.Items()
	require.Len(t, items, 1)
	assert.Equal(t, res.Scores[0], items[0].RelevanceScore)
}

func TestIndex_SearchFilters(t *testing.T) {
	idx := New(&axisEmbedder{}, memory.NewVectorIndex(0), nil)
	seed(t, idx)

	res, err := idx.Search(context.Background(), driven.LegalSearchQuery{Query: "termination", Jurisdiction: "EU", TopK: 1})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.NotEqual(t, "bgb-314", res.Documents[0].ID)

	res, err = idx.Search(context.Background(), driven.LegalSearchQuery{Query: "termination", LegalArea: "contract"})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "bgb-314", res.Documents[0].ID)

	res, err = idx.Search(context.Background(), driven.LegalSearchQuery{Query: "  "})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestIndex_Errors(t *testing.T) {
	ctx := context.Background()

	broken := New(&axisEmbedder{err: errors.New("model not loaded")}, memory.NewVectorIndex(0), nil)
	_, err := broken.Search(ctx, driven.LegalSearchQuery{Query: "consent"})
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
	assert.ErrorIs(t, broken.Index(ctx, []domain.Chunk{{Content: "x"}}), domain.ErrSearchUnavailable)

	down := New(&axisEmbedder{}, failingVectors{}, nil)
	_, err = down.Search(ctx, driven.LegalSearchQuery{Query: "consent"})
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
	assert.ErrorIs(t, down.Index(ctx, []domain.Chunk{{Content: "x"}}), domain.ErrSearchUnavailable)
	assert.NoError(t, down.Index(ctx, nil))
	assert.ErrorIs(t, down.Remove(ctx, []string{"art-7"}), domain.ErrSearchUnavailable)
	assert.NoError(t, down.Remove(ctx, nil))
}

func TestIndex_Remove(t *testing.T) {
	idx := New(&axisEmbedder{}, memory.NewVectorIndex(0), nil)
	seed(t, idx)

	require.NoError(t, idx.Remove(context.Background(), []string{"bgb-314"}))

	res, err := idx.Search(context.Background(), driven.LegalSearchQuery{Query: "termination", LegalArea: "contract"})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestChunkPayload_RoundTrip(t *testing.T) {
	c := domain.Chunk{
		ID: "c1", DocumentID: "d1", Index: 3, Level: domain.LevelClause, Language: "de",
		Content: "§ 5 Haftung", Section: "5", Subsection: "2",
		ClauseTags: []string{"liability"},
		Metadata:   map[string]any{driven.MetaIndexID: "bgb", "nested": map[string]any{"x": 1}},
	}

	payload := ChunkPayload(c)
	assert.NotContains(t, payload, "nested")
	assert.Equal(t, int64(3), payload[PayloadIndex])

	// Stores that decode numbers as float64 still round-trip the index.
	payload[PayloadIndex] = float64(3)
	got := ChunkFromPayload("point", payload)

	c.Metadata = map[string]any{driven.MetaIndexID: "bgb"}
	assert.Equal(t, c, got)

	assert.Equal(t, "point", ChunkFromPayload("point", map[string]any{}).ID)
}
