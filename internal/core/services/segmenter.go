package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
	"github.com/custodia-labs/lexcheck/internal/postprocessors/chunker"
)

// Ensure Segmenter implements PromptStoreAware.
var _ driven.PromptStoreAware = (*Segmenter)(nil)

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRun      = regexp.MustCompile(`\n{3,}`)
)

// Segmenter turns document text into analysis units. It asks the reasoning
// service for a semantic split of each sub-chunk that fits the per-request
// token ceiling. It never fails: anything it cannot segment semantically is
// cut into fixed-size units.
type Segmenter struct {
	llm       driven.LLMService
	tokenizer driven.Tokenizer
	prompts   promptSource
	cfg       domain.ChunkingSettings
	log       *logger.Logger
}

// NewSegmenter creates a segmenter. llm may be nil, in which case every
// text is cut into fixed-size units.
func NewSegmenter(
	llm driven.LLMService, tokenizer driven.Tokenizer, cfg domain.ChunkingSettings, log *logger.Logger,
) *Segmenter {
	defaults := domain.DefaultSettings().Chunking
	if cfg.MaxRequestTokens <= 0 {
		cfg.MaxRequestTokens = defaults.MaxRequestTokens
	}
	if cfg.MinUnitChars < 0 {
		cfg.MinUnitChars = 0
	}
	if cfg.FallbackChunkChars <= 0 {
		cfg.FallbackChunkChars = defaults.FallbackChunkChars
	}
	return &Segmenter{
		llm:       llm,
		tokenizer: tokenizer,
		cfg:       cfg,
		log:       log,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *Segmenter) SetPromptStore(store driven.PromptStore) {
	s.prompts.store = store
}

// Normalize applies NFKC, converts line endings to LF, strips trailing
// spaces and collapses runs of blank lines.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingSpace.ReplaceAllString(text, "\n")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimRight(text, " \t\n")
}

// Segment normalises text and splits it into analysis units in document
// order. Unit offsets refer to the normalised text.
func (s *Segmenter) Segment(ctx context.Context, text string) []domain.AnalysisUnit {
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	subs, err := s.preSplit(text)
	if err != nil {
		s.log.Warn("segmentation degraded to fixed-size: %v", err)
		return numberUnits(s.fixed(text, 0))
	}
	s.log.Debug("segmenting %d bytes in %d sub-chunks", len(text), len(subs))

	// Sub-chunks are independent; each result lands at its own index so the
	// concatenation keeps document order.
	parts := make([][]domain.AnalysisUnit, len(subs))
	var wg sync.WaitGroup
	for i, sp := range subs {
		wg.Add(1)
		go func(i int, sp chunker.Span) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Warn("segmenting sub-chunk %d panicked: %v", i, r)
					parts[i] = s.fixed(text[sp.Start:sp.End], sp.Start)
				}
			}()
			parts[i] = s.segmentSub(ctx, text[sp.Start:sp.End], sp.Start)
		}(i, sp)
	}
	wg.Wait()

	var units []domain.AnalysisUnit
	for _, p := range parts {
		units = append(units, p...)
	}
	return numberUnits(units)
}

// preSplit cuts text at sentence boundaries into spans of at most
// MaxRequestTokens tokens. A sentence longer than the ceiling is cut at
// word boundaries.
func (s *Segmenter) preSplit(text string) ([]chunker.Span, error) {
	if s.tokenizer == nil {
		return nil, fmt.Errorf("%w: no tokenizer", domain.ErrTokenEstimation)
	}
	total, err := s.tokenizer.Count(text)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}
	ceiling := s.cfg.MaxRequestTokens
	if total <= ceiling {
		return []chunker.Span{{Start: 0, End: len(text)}}, nil
	}

	var units []chunker.Span
	var counts []int
	for _, sen := range chunker.Sentences(text) {
		n, err := s.tokenizer.Count(text[sen.Start:sen.End])
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if n <= ceiling {
			units = append(units, sen)
			counts = append(counts, n)
			continue
		}
		words, err := s.splitWords(text, sen)
		if err != nil {
			return nil, err
		}
		for _, w := range words {
			m, err := s.tokenizer.Count(text[w.Start:w.End])
			if err != nil {
				return nil, fmt.Errorf("count tokens: %w", err)
			}
			units = append(units, w)
			counts = append(counts, m)
		}
	}

	var out []chunker.Span
	for start := 0; start < len(units); {
		end := start + 1
		sum := counts[start]
		for end < len(units) && sum+counts[end] <= ceiling {
			sum += counts[end]
			end++
		}
		// Joined pieces can tokenize differently from their parts.
		for end-start > 1 {
			n, err := s.tokenizer.Count(text[units[start].Start:units[end-1].End])
			if err != nil {
				return nil, fmt.Errorf("count tokens: %w", err)
			}
			if n <= ceiling {
				break
			}
			end--
		}
		out = append(out, chunker.Span{Start: units[start].Start, End: units[end-1].End})
		start = end
	}
	return out, nil
}

// splitWords cuts an over-long sentence at word boundaries into pieces that
// each fit the token ceiling.
func (s *Segmenter) splitWords(text string, sp chunker.Span) ([]chunker.Span, error) {
	var out []chunker.Span
	start := sp.Start
	for start < sp.End {
		end := sp.End
		for {
			n, err := s.tokenizer.Count(text[start:end])
			if err != nil {
				return nil, fmt.Errorf("count tokens: %w", err)
			}
			if n <= s.cfg.MaxRequestTokens {
				break
			}
			next := wordCut(text, start, start+(end-start)/2)
			if next <= start || next >= end {
				break
			}
			end = next
		}
		out = append(out, chunker.Span{Start: start, End: end})
		start = end
	}
	return out, nil
}

// wordCut returns the position just after the last space at or before pos,
// or pos itself moved to a rune boundary when there is no space.
func wordCut(text string, lo, pos int) int {
	if i := strings.LastIndexAny(text[lo:pos], " \n\t"); i > 0 {
		return lo + i + 1
	}
	for pos > lo && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// proposedSection is one unit proposed by the reasoning service. Offsets are
// character offsets into the sub-chunk.
type proposedSection struct {
	Title   string `json:"title"`
	Start   *int   `json:"start"`
	End     *int   `json:"end"`
	Content string `json:"content"`
}

type segmentationResponse struct {
	Sections []proposedSection `json:"sections"`
}

// segmentSub asks the reasoning service to segment one sub-chunk. base is
// the sub-chunk's offset in the full text.
func (s *Segmenter) segmentSub(ctx context.Context, sub string, base int) []domain.AnalysisUnit {
	if s.llm == nil {
		return s.fixed(sub, base)
	}

	user := fmt.Sprintf(s.prompts.load(driven.PromptSegmentationUser), s.cfg.MinUnitChars, sub)
	raw, err := driven.Invoke(ctx, s.llm, s.prompts.load(driven.PromptSegmentationSystem), user,
		driven.ChatOptions{JSONMode: true})
	if err != nil {
		s.log.Warn("segmentation call failed at offset %d: %v", base, err)
		return s.fixed(sub, base)
	}

	var resp segmentationResponse
	if err := decodeResponse(raw, &resp); err != nil {
		s.log.Warn("segmentation response unparseable at offset %d: %v: %s", base, err, truncate(raw, maxLoggedResponse))
		return s.fixed(sub, base)
	}

	units := s.resolve(sub, base, resp.Sections)
	if len(units) == 0 {
		s.log.Warn("segmentation returned no usable sections at offset %d", base)
		return s.fixed(sub, base)
	}
	return units
}

// resolve turns proposed sections into units cut from sub. Offsets are used
// when valid; otherwise the returned content is located in sub.
func (s *Segmenter) resolve(sub string, base int, sections []proposedSection) []domain.AnalysisUnit {
	runeIndex := runeOffsets(sub)
	var units []domain.AnalysisUnit
	for _, sec := range sections {
		start, end, ok := -1, -1, false
		if sec.Start != nil && sec.End != nil && *sec.Start >= 0 && *sec.Start < *sec.End && *sec.End < len(runeIndex) {
			start, end, ok = runeIndex[*sec.Start], runeIndex[*sec.End], true
		}
		if !ok && strings.TrimSpace(sec.Content) != "" {
			if i := strings.Index(sub, sec.Content); i >= 0 {
				start, end, ok = i, i+len(sec.Content), true
			}
		}
		if !ok {
			continue
		}
		content := sub[start:end]
		if len(strings.TrimSpace(content)) < s.cfg.MinUnitChars {
			continue
		}
		units = append(units, domain.AnalysisUnit{
			Title:       strings.TrimSpace(sec.Title),
			Content:     content,
			StartOffset: base + start,
			EndOffset:   base + end,
		})
	}
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].StartOffset < units[j].StartOffset
	})
	return units
}

// fixed cuts sub into fixed-size units, skipping blank pieces.
func (s *Segmenter) fixed(sub string, base int) []domain.AnalysisUnit {
	var units []domain.AnalysisUnit
	for _, sp := range chunker.FixedSpans(sub, s.cfg.FallbackChunkChars) {
		content := sub[sp.Start:sp.End]
		if strings.TrimSpace(content) == "" {
			continue
		}
		units = append(units, domain.AnalysisUnit{
			Content:     content,
			StartOffset: base + sp.Start,
			EndOffset:   base + sp.End,
		})
	}
	return units
}

// runeOffsets maps character offsets to byte offsets. The extra final entry
// maps len(runes) to len(s).
func runeOffsets(s string) []int {
	idx := make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		idx = append(idx, i)
	}
	return append(idx, len(s))
}

// numberUnits assigns ids and default titles in document order.
func numberUnits(units []domain.AnalysisUnit) []domain.AnalysisUnit {
	for i := range units {
		units[i].ID = fmt.Sprintf("unit_%03d", i+1)
		if units[i].Title == "" {
			units[i].Title = fmt.Sprintf("Section %d", i+1)
		}
	}
	return units
}
