// Package chunker splits legal documents into structurally bounded chunks.
//
// Classifier inspects a text and reports its shape. Hierarchical picks a
// splitting strategy from that shape. Fixed is the size-only splitter every
// other strategy degrades to when it cannot complete.
package chunker

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// DefaultChunkSize is the default number of bytes per fixed chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping bytes.
const DefaultChunkOverlap = 200

// Fixed splits document content into fixed-size chunks.
// It implements the PostProcessor interface.
type Fixed struct {
	chunkSize int
	overlap   int
}

// Option configures the fixed-size processor.
type Option func(*Fixed)

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(p *Fixed) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(p *Fixed) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// NewFixed creates a fixed-size processor with the given options.
func NewFixed(opts ...Option) *Fixed {
	p := &Fixed{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Fixed) Name() string {
	return "fixed"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Fixed) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc == nil || doc.Content == "" {
		return nil, nil
	}
	return p.chunk(doc, doc.Hints.Language), nil
}

func (p *Fixed) chunk(doc *domain.Document, lang domain.Language) []domain.Chunk {
	content := doc.Content
	bodies := FixedSpans(content, p.chunkSize-p.overlap)
	chunks := make([]domain.Chunk, 0, len(bodies))

	for i, body := range bodies {
		start := body.Start
		if i > 0 {
			start = runeFloor(content, max(body.Start-p.overlap, bodies[i-1].Start))
		}
		chunks = append(chunks, domain.Chunk{
			ID:          uuid.New().String(),
			DocumentID:  doc.ID,
			Index:       i,
			Level:       domain.LevelParagraph,
			Content:     content[start:body.End],
			StartOffset: start,
			EndOffset:   body.End,
			Overlap:     body.Start - start,
			Language:    lang,
			Metadata:    make(map[string]any),
		})
	}

	return chunks
}

// FixedSpans tiles text into consecutive spans of at most size bytes.
// Cuts are moved back to the nearest rune boundary.
func FixedSpans(text string, size int) []Span {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	spans := make([]Span, 0, len(text)/size+1)
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else if cut := runeFloor(text, end); cut > start {
			end = cut
		} else {
			for end < len(text) && !utf8.RuneStart(text[end]) {
				end++
			}
		}
		spans = append(spans, Span{start, end})
		start = end
	}
	return spans
}

// runeFloor moves pos back to the start of the rune containing it.
func runeFloor(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
