package services

import (
	"regexp"
	"sort"
	"strings"
)

// MaxKeyTerms caps the number of detected key terms.
const MaxKeyTerms = 10

// Defined-term patterns: `(the "Supplier")` and `"Services" means`.
var definedTermPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(\s*(?:the\s+|hereinafter\s+(?:the\s+)?)?["“„«]\s*([^"”“«»\n]{2,60}?)\s*["”“»]\s*\)`),
	regexp.MustCompile(`["“„«]\s*([\p{Lu}][^"”“«»\n]{1,59}?)\s*["”“»]\s+(?:means|shall mean|refers to|bezeichnet|désigne|significa)\b`),
}

// DetectKeyTerms returns the defined terms of a legal text in order of
// first definition.
func DetectKeyTerms(text string) []string {
	type hit struct {
		pos  int
		term string
	}
	var hits []hit
	for _, re := range definedTermPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			hits = append(hits, hit{pos: m[0], term: strings.TrimSpace(text[m[2]:m[3]])})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	terms := make([]string, 0, MaxKeyTerms)
	seen := make(map[string]bool)
	for _, h := range hits {
		key := strings.ToLower(h.term)
		if h.term == "" || seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, h.term)
		if len(terms) == MaxKeyTerms {
			break
		}
	}
	return terms
}
