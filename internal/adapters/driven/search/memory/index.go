// Package memory provides in-process legal-context search: a keyword
// LegalIndex for small corpora and tests, and a brute-force cosine
// VectorIndex for the embedding-backed index.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// Ensure KeywordIndex implements the interface.
var _ driven.LegalIndex = (*KeywordIndex)(nil)

// DefaultTopK is used when a query does not set TopK.
const DefaultTopK = 5

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "to": true, "with": true,
	"der": true, "die": true, "das": true, "und": true, "le": true, "la": true, "les": true,
}

// KeywordIndex scores chunks by query term coverage and frequency.
// Scores lie in [0,1]: a chunk containing every query term scores at least 0.8.
type KeywordIndex struct {
	mu     sync.RWMutex
	order  []string
	chunks map[string]indexedChunk
	closed bool
}

type indexedChunk struct {
	chunk domain.Chunk
	terms map[string]int
}

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{chunks: make(map[string]indexedChunk)}
}

// Index adds or replaces chunks by ID. Chunks without an ID are assigned one.
func (x *KeywordIndex) Index(_ context.Context, chunks []domain.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("keyword index: %w", domain.ErrSearchUnavailable)
	}
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, exists := x.chunks[c.ID]; !exists {
			x.order = append(x.order, c.ID)
		}
		x.chunks[c.ID] = indexedChunk{chunk: c, terms: termCounts(c.Content)}
	}
	return nil
}

// Remove deletes chunks by ID.
func (x *KeywordIndex) Remove(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("keyword index: %w", domain.ErrSearchUnavailable)
	}
	x.order = removeIDs(x.order, ids, func(id string) { delete(x.chunks, id) })
	return nil
}

// Search returns matching chunks, best first. Ties keep indexing order.
func (x *KeywordIndex) Search(_ context.Context, q driven.LegalSearchQuery) (driven.LegalSearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return driven.LegalSearchResult{}, fmt.Errorf("keyword index: %w", domain.ErrSearchUnavailable)
	}

	query := termCounts(q.Query)
	if len(query) == 0 {
		return driven.LegalSearchResult{}, nil
	}
	filters := Filters(q)

	type scored struct {
		chunk domain.Chunk
		score float64
	}
	var hits []scored
	for _, id := range x.order {
		ic := x.chunks[id]
		if !MatchesMetadata(ic.chunk.Metadata, filters) {
			continue
		}
		score := keywordScore(query, ic.terms)
		if score == 0 || score < q.ScoreThreshold {
			continue
		}
		hits = append(hits, scored{chunk: ic.chunk, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}

	var res driven.LegalSearchResult
	for _, h := range hits {
		res.Documents = append(res.Documents, h.chunk)
		res.Scores = append(res.Scores, h.score)
	}
	return res, nil
}

// Len returns the number of indexed chunks.
func (x *KeywordIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Close marks the index unusable.
func (x *KeywordIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}

// removeIDs drops ids from order, calling drop for each one present.
func removeIDs(order, ids []string, drop func(string)) []string {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := order[:0]
	for _, id := range order {
		if gone[id] {
			drop(id)
			continue
		}
		kept = append(kept, id)
	}
	return kept
}

// keywordScore combines the share of query terms present with how often
// they occur: coverage * (0.8 + 0.2 * mean saturation).
func keywordScore(query, doc map[string]int) float64 {
	var matched int
	var saturation float64
	for term := range query {
		tf := doc[term]
		if tf == 0 {
			continue
		}
		matched++
		saturation += 1 - 1/float64(1+tf)
	}
	if matched == 0 {
		return 0
	}
	coverage := float64(matched) / float64(len(query))
	return coverage * (0.8 + 0.2*saturation/float64(matched))
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(word)) < 2 || stopWords[word] {
			continue
		}
		counts[word]++
	}
	return counts
}

// Filters returns the metadata constraints a query carries.
func Filters(q driven.LegalSearchQuery) map[string]string {
	filters := make(map[string]string, 3)
	if q.LegalArea != "" {
		filters[driven.MetaLegalArea] = q.LegalArea
	}
	if q.Jurisdiction != "" {
		filters[driven.MetaJurisdiction] = q.Jurisdiction
	}
	if q.IndexID != "" {
		filters[driven.MetaIndexID] = q.IndexID
	}
	return filters
}

// MatchesMetadata reports whether every filter equals the metadata value,
// ignoring case. A missing field never matches.
func MatchesMetadata(meta map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok || !strings.EqualFold(fmt.Sprint(got), want) {
			return false
		}
	}
	return true
}
