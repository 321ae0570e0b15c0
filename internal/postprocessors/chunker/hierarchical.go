package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Level target sizes. Chapter, section and paragraph sizes are in bytes;
// clause sizes are in language-model tokens.
const (
	ChapterSize    = 4000
	ChapterOverlap = 400
	SectionSize    = 2000
	SectionOverlap = 200
	ParagraphSize  = 800

	ClauseTokens        = 256
	ClauseOverlapTokens = 32

	// ClauseCeiling is the size above which recursive refinement clause-splits
	// a section chunk.
	ClauseCeiling = 1500
)

// Strategy names the splitting strategy chosen for a document.
type Strategy string

// Strategies in selection order.
const (
	StrategyChapter   Strategy = "chapter"
	StrategySection   Strategy = "section"
	StrategyTable     Strategy = "table"
	StrategyRecursive Strategy = "recursive"
)

// Hierarchical turns raw text into chunks whose boundaries follow legal
// structure. It implements the PostProcessor interface and never fails on
// content: anything it cannot split structurally is split by Fixed.
type Hierarchical struct {
	classifier *Classifier
	tokenizer  driven.Tokenizer
	fallback   *Fixed
	log        *logger.Logger
}

// HierarchicalOption configures a Hierarchical chunker.
type HierarchicalOption func(*Hierarchical)

// WithClassifier sets the structure classifier.
func WithClassifier(c *Classifier) HierarchicalOption {
	return func(h *Hierarchical) {
		if c != nil {
			h.classifier = c
		}
	}
}

// WithTokenizer sets the tokenizer used for clause-level sizing.
func WithTokenizer(t driven.Tokenizer) HierarchicalOption {
	return func(h *Hierarchical) {
		h.tokenizer = t
	}
}

// WithFallback sets the fixed-size splitter used when structural splitting fails.
func WithFallback(f *Fixed) HierarchicalOption {
	return func(h *Hierarchical) {
		if f != nil {
			h.fallback = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) HierarchicalOption {
	return func(h *Hierarchical) {
		h.log = l
	}
}

// NewHierarchical creates a hierarchical chunker.
func NewHierarchical(opts ...HierarchicalOption) *Hierarchical {
	h := &Hierarchical{
		classifier: NewClassifier(),
		fallback:   NewFixed(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the processor name.
func (h *Hierarchical) Name() string {
	return "hierarchical"
}

// Classifier returns the classifier used to profile documents.
func (h *Hierarchical) Classifier() *Classifier {
	return h.classifier
}

// Select returns the strategy for a profile. The first matching rule wins.
func (h *Hierarchical) Select(p domain.StructureProfile) Strategy {
	switch {
	case p.Kind == domain.KindRegulation && p.HasChapters:
		return StrategyChapter
	case p.Kind == domain.KindContract:
		return StrategySection
	case p.HasTables:
		return StrategyTable
	case p.Complexity == domain.ComplexityHigh:
		return StrategyRecursive
	default:
		return StrategySection
	}
}

// Process splits the document into chunks. Input chunks are ignored.
func (h *Hierarchical) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) (chunks []domain.Chunk, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	profile := h.classifier.Classify(doc.Content, doc.Hints)
	strategy := h.Select(profile)
	h.log.Debug("chunking %s: kind=%s lang=%s complexity=%s strategy=%s",
		doc.ID, profile.Kind, profile.Language, profile.Complexity, strategy)

	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("chunking %s degraded to fixed-size: %v", doc.ID, r)
			chunks, err = h.fallback.chunk(doc, profile.Language), nil
		}
	}()

	s := newSplitter(doc.Content)
	pieces, splitErr := h.split(s, profile, strategy)
	if splitErr != nil {
		h.log.Warn("chunking %s degraded to fixed-size: %v", doc.ID, splitErr)
		return h.fallback.chunk(doc, profile.Language), nil
	}

	return h.build(s, doc, profile.Language, pieces), nil
}

func (h *Hierarchical) split(s *splitter, p domain.StructureProfile, strategy Strategy) ([]piece, error) {
	whole := Span{0, len(s.text)}

	var pieces []piece
	switch strategy {
	case StrategyChapter:
		pieces = h.byLevel(s, whole, domain.LevelChapter, ChapterSize, ChapterOverlap, chapterFamily(p.Language))
	case StrategyTable:
		pieces = h.tableAware(s, whole, p)
	case StrategyRecursive:
		var err error
		pieces, err = h.recursive(s, whole, p)
		if err != nil {
			return nil, err
		}
	default:
		pieces = h.sections(s, whole, p)
	}

	pieces = s.mergeBlank(pieces)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("no chunks produced")
	}
	if pieces[0].Start != 0 || pieces[len(pieces)-1].End != len(s.text) {
		return nil, fmt.Errorf("chunks do not cover the document")
	}
	return pieces, nil
}

func (h *Hierarchical) byLevel(s *splitter, sp Span, level domain.ChunkLevel, size, overlap int, family []*regexp.Regexp) []piece {
	spans := s.pack(segments(sp, s.headingBounds(sp, family)), size)
	return toPieces(spans, level, overlap)
}

// sections splits at section headings, or into sentence-packed paragraphs
// when the document has no section markers.
func (h *Hierarchical) sections(s *splitter, sp Span, p domain.StructureProfile) []piece {
	if p.HasSections {
		return h.byLevel(s, sp, domain.LevelSection, SectionSize, SectionOverlap, sectionFamily(p.Language))
	}
	return h.paragraphs(s, sp)
}

func (h *Hierarchical) paragraphs(s *splitter, sp Span) []piece {
	sentences := Sentences(s.text[sp.Start:sp.End])
	segs := make([]Span, len(sentences))
	for i, sen := range sentences {
		segs[i] = Span{sp.Start + sen.Start, sp.Start + sen.End}
	}
	return toPieces(s.pack(segs, ParagraphSize), domain.LevelParagraph, 0)
}

// tableAware emits every table as one atomic chunk and section-splits the
// prose around it.
func (h *Hierarchical) tableAware(s *splitter, sp Span, p domain.StructureProfile) []piece {
	var out []piece
	cursor := sp.Start
	for _, t := range s.protected {
		if t.Start > cursor {
			out = append(out, h.sections(s, Span{cursor, t.Start}, p)...)
		}
		out = append(out, piece{Span: t, level: domain.LevelTable, atomic: true})
		cursor = t.End
	}
	if cursor < sp.End {
		out = append(out, h.sections(s, Span{cursor, sp.End}, p)...)
	}
	return out
}

// recursive splits into chapters, each chapter into sections, and any
// section still over ClauseCeiling into clauses.
func (h *Hierarchical) recursive(s *splitter, sp Span, p domain.StructureProfile) ([]piece, error) {
	var out []piece
	for _, ch := range h.byLevel(s, sp, domain.LevelChapter, ChapterSize, ChapterOverlap, chapterFamily(p.Language)) {
		for _, sec := range h.byLevel(s, ch.Span, domain.LevelSection, SectionSize, SectionOverlap, sectionFamily(p.Language)) {
			if sec.Len() <= ClauseCeiling {
				out = append(out, sec)
				continue
			}
			clauses, err := h.clauses(s, sec.Span)
			if err != nil {
				return nil, err
			}
			out = append(out, clauses...)
		}
	}
	return out, nil
}

// clauses splits sp at numbered sub-clauses into pieces of at most
// ClauseTokens tokens. Byte targets are derived from the span's own
// bytes-per-token ratio.
func (h *Hierarchical) clauses(s *splitter, sp Span) ([]piece, error) {
	tokens, err := h.countTokens(s.text[sp.Start:sp.End])
	if err != nil {
		return nil, fmt.Errorf("count clause tokens: %w", err)
	}
	if tokens <= ClauseTokens {
		return []piece{{Span: sp, level: domain.LevelClause}}, nil
	}

	bytesPerToken := float64(sp.Len()) / float64(tokens)
	target := max(1, int(float64(ClauseTokens)*bytesPerToken))
	overlap := int(float64(ClauseOverlapTokens) * bytesPerToken)

	bounds := s.headingBounds(sp, []*regexp.Regexp{clausePattern})
	return toPieces(s.pack(segments(sp, bounds), target), domain.LevelClause, overlap), nil
}

func (h *Hierarchical) countTokens(text string) (int, error) {
	if h.tokenizer == nil {
		return (len(text) + 3) / 4, nil
	}
	return h.tokenizer.Count(text)
}

func (h *Hierarchical) build(s *splitter, doc *domain.Document, lang domain.Language, pieces []piece) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, p := range pieces {
		start := p.Start
		if i > 0 {
			start = s.overlapStart(pieces[i-1], p, p.overlap)
		}
		chunks = append(chunks, domain.Chunk{
			ID:          uuid.New().String(),
			DocumentID:  doc.ID,
			Index:       i,
			Level:       p.level,
			Content:     s.text[start:p.End],
			StartOffset: start,
			EndOffset:   p.End,
			Overlap:     p.Start - start,
			Language:    lang,
			Metadata:    make(map[string]any),
		})
	}
	return chunks
}

func toPieces(spans []Span, level domain.ChunkLevel, overlap int) []piece {
	pieces := make([]piece, len(spans))
	for i, sp := range spans {
		pieces[i] = piece{Span: sp, level: level, overlap: overlap}
	}
	return pieces
}
