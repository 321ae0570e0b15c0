// Package enrich annotates chunks with legal metadata: statute and article
// citations, clause-type tags and the section numerals they belong to.
package enrich

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// referencePatterns are citation families by jurisdiction.
var referencePatterns = []*regexp.Regexp{
	// EU regulations and directives in the four supported languages.
	regexp.MustCompile(`(?i)\b(?:regulation|directive|verordnung|richtlinie|règlement|reglamento|directiva)\s+\((?:EU|EG|EC|UE|CE)\)\s+(?:No\.?\s+|Nr\.\s+|n[°º]\s*)?\d{2,4}/\d{1,4}`),
	// Articles, optionally with paragraph and act abbreviation.
	regexp.MustCompile(`\b(?:Article|Art\.|Artikel|Artículo)\s+\d+[a-z]?(?:\s*\(\d+\))?(?:\s+(?:GDPR|DSGVO|RGPD|TFEU|AEUV|TFUE|BGB|HGB))?`),
	// United States Code.
	regexp.MustCompile(`\b\d+\s+U\.S\.C\.\s+§+\s*\d+[a-z0-9]*`),
	// German statutes.
	regexp.MustCompile(`§§?\s*\d+[a-z]?(?:\s+(?:Abs\.|Absatz)\s*\d+)?\s+(?:BGB|HGB|StGB|UWG|BDSG|GmbHG|AktG|TMG)\b`),
	// French codes.
	regexp.MustCompile(`(?i)\b(?:article|art\.)\s+[LRD]\.?\s?\d+(?:-\d+)*\s+du\s+code\s+(?:civil|de\s+commerce|du\s+travail|de\s+la\s+consommation|pénal)`),
	// Spanish statutes.
	regexp.MustCompile(`\b(?:Ley(?:\s+Orgánica)?|Real\s+Decreto(?:\s+Legislativo)?)\s+\d+/\d{4}`),
}

var whitespace = regexp.MustCompile(`\s+`)

// References extracts legal citations into Chunk.LegalReferences.
// It implements the PostProcessor interface.
type References struct{}

// NewReferences creates a legal-reference enricher.
func NewReferences() *References {
	return &References{}
}

// Name returns the processor name.
func (r *References) Name() string {
	return "legal_references"
}

// Process annotates each chunk with the citations found in its content.
func (r *References) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	for i := range chunks {
		chunks[i].LegalReferences = ExtractReferences(chunks[i].Content)
	}
	return chunks, nil
}

// ExtractReferences returns the distinct citations in text in order of
// first appearance.
func ExtractReferences(text string) []string {
	type hit struct {
		pos int
		ref string
	}
	var hits []hit
	for _, re := range referencePatterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{m[0], whitespace.ReplaceAllString(text[m[0]:m[1]], " ")})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool, len(hits))
	var refs []string
	for _, h := range hits {
		key := strings.ToLower(h.ref)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, h.ref)
	}
	return refs
}
