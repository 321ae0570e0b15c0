package enrich

import (
	"context"
	"regexp"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

var (
	sectionLabel = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^[ \t]*(?:ARTICLE|Article|SECTION|Section|Clause|ARTIKEL|Artikel|ARTÍCULO|Artículo|Articulo|Art\.|§)[ \t]*(\d+[a-z]?)\b`),
		regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+(\d+(?:\.\d+)*)`),
		regexp.MustCompile(`(?m)^[ \t]*(\d{1,2})\.[ \t]+\p{Lu}`),
	}
	subsectionLabel = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^[ \t]*(\d+\.\d+(?:\.\d+)*)\.?[ \t]`),
		regexp.MustCompile(`(?m)^[ \t]*\((\d+)\)[ \t]`),
	}
)

// SectionLabels records the section and subsection numerals each chunk
// belongs to. A chunk without its own heading inherits the labels of the
// chunk before it. It implements the PostProcessor interface.
type SectionLabels struct{}

// NewSectionLabels creates a section-label enricher.
func NewSectionLabels() *SectionLabels {
	return &SectionLabels{}
}

// Name returns the processor name.
func (s *SectionLabels) Name() string {
	return "section_labels"
}

// Process annotates chunks in order.
func (s *SectionLabels) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	var section, subsection string
	for i := range chunks {
		body := chunks[i].Body()
		if label := firstMatch(body, sectionLabel); label != "" {
			section = label
			subsection = ""
		}
		if label := firstMatch(body, subsectionLabel); label != "" {
			subsection = label
		}
		chunks[i].Section = section
		chunks[i].Subsection = subsection
	}
	return chunks, nil
}

// firstMatch returns the first capture of whichever pattern matches earliest.
func firstMatch(text string, patterns []*regexp.Regexp) string {
	best, label := -1, ""
	for _, re := range patterns {
		m := re.FindStringSubmatchIndex(text)
		if m == nil || len(m) < 4 || m[2] < 0 {
			continue
		}
		if best < 0 || m[0] < best {
			best, label = m[0], text[m[2]:m[3]]
		}
	}
	return label
}
