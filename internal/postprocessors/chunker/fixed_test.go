package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

func TestNewFixed(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := NewFixed()
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
	})

	t.Run("custom values", func(t *testing.T) {
		p := NewFixed(WithChunkSize(500), WithOverlap(100))
		assert.Equal(t, 500, p.chunkSize)
		assert.Equal(t, 100, p.overlap)
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := NewFixed(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, p.overlap, p.chunkSize)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := NewFixed(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, p.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, p.overlap)
	})
}

func TestFixed_Name(t *testing.T) {
	assert.Equal(t, "fixed", NewFixed().Name())
}

func TestFixed_Process_EmptyContent(t *testing.T) {
	chunks, err := NewFixed().Process(context.Background(), &domain.Document{ID: "d"}, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFixed_Process_CoversSource(t *testing.T) {
	content := strings.Repeat("abcdefghij", 55)
	doc := &domain.Document{ID: "doc-1", Content: content}

	chunks, err := NewFixed(WithChunkSize(100), WithOverlap(20)).Process(context.Background(), doc, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, content, reassemble(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.Equal(t, content[c.StartOffset:c.EndOffset], c.Content)
		assert.LessOrEqual(t, len(c.Content), 100)
		if i > 0 {
			assert.Equal(t, 20, c.Overlap)
		}
	}
}

func TestFixed_Process_RuneSafe(t *testing.T) {
	content := strings.Repeat("Größe für Verträge – ", 40)
	doc := &domain.Document{ID: "d", Content: content}

	chunks, err := NewFixed(WithChunkSize(37), WithOverlap(5)).Process(context.Background(), doc, nil)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content), "chunk %d splits a rune", c.Index)
	}
	assert.Equal(t, content, reassemble(chunks))
}

func TestFixedSpans(t *testing.T) {
	assert.Nil(t, FixedSpans("", 10))

	spans := FixedSpans("0123456789abc", 5)
	assert.Equal(t, []Span{{0, 5}, {5, 10}, {10, 13}}, spans)

	// A size smaller than one rune still makes progress on rune boundaries.
	spans = FixedSpans("ää", 1)
	assert.Equal(t, []Span{{0, 2}, {2, 4}}, spans)
}

func reassemble(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Body())
	}
	return b.String()
}
