package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// DefaultComplexityThreshold is the text length in bytes above which a
// structured document is considered complex.
const DefaultComplexityThreshold = 20000

// languageSampleBytes bounds how much text language scoring reads.
const languageSampleBytes = 20000

// Classifier inspects raw text and declares its structural shape.
// Detection is heuristic and never fails.
type Classifier struct {
	fallback  domain.Language
	threshold int
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithFallbackLanguage sets the language used when detection is inconclusive.
func WithFallbackLanguage(lang domain.Language) ClassifierOption {
	return func(c *Classifier) {
		if lang.IsValid() {
			c.fallback = lang
		}
	}
}

// WithComplexityThreshold sets the length threshold for complexity grading.
func WithComplexityThreshold(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// NewClassifier creates a classifier with the given options.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		fallback:  domain.LanguageEnglish,
		threshold: DefaultComplexityThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a best-effort structure profile of text.
// Valid hints take precedence over detection.
func (c *Classifier) Classify(text string, hints domain.DocumentHints) domain.StructureProfile {
	lang := hints.Language
	if !lang.IsValid() {
		lang = c.DetectLanguage(text)
	}

	kind := hints.Kind
	if !kind.IsValid() {
		kind = detectKind(text)
	}

	profile := domain.StructureProfile{
		Kind:        kind,
		Language:    lang,
		HasChapters: matchesAny(text, chapterFamily(lang)),
		HasSections: matchesAny(text, sectionFamily(lang)),
		HasTables:   len(findTables(text)) > 0,
	}

	long := len(text) > c.threshold
	structured := profile.MarkerCount() >= 2
	switch {
	case long && structured:
		profile.Complexity = domain.ComplexityHigh
	case long || structured:
		profile.Complexity = domain.ComplexityMedium
	default:
		profile.Complexity = domain.ComplexityLow
	}

	return profile
}

// DetectLanguage scores keyword frequency across the supported languages.
// Ties and texts without any keyword yield the fallback language.
func (c *Classifier) DetectLanguage(text string) domain.Language {
	if len(text) > languageSampleBytes {
		text = text[:languageSampleBytes]
	}

	scores := make(map[domain.Language]int, len(languageKeywords))
	for _, word := range strings.FieldsFunc(strings.ToLower(text), notLetter) {
		for _, lang := range keywordIndex[word] {
			scores[lang]++
		}
	}

	best := c.fallback
	bestScore := 0
	tie := false
	for _, lang := range domain.Languages() {
		score := scores[lang]
		switch {
		case score > bestScore:
			best, bestScore, tie = lang, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return c.fallback
	}
	return best
}

func detectKind(text string) domain.DocumentKind {
	lower := strings.ToLower(text)
	best := domain.KindOther
	bestScore := 0
	for _, kind := range kindPriority {
		score := 0
		for _, kw := range kindKeywords[kind] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = kind, score
		}
	}
	return best
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func notLetter(r rune) bool {
	return !unicode.IsLetter(r)
}

// keywordIndex maps each keyword to the languages it counts for.
var keywordIndex map[string][]domain.Language

func init() {
	keywordIndex = make(map[string][]domain.Language)
	for lang, words := range languageKeywords {
		for _, w := range words {
			keywordIndex[w] = append(keywordIndex[w], lang)
		}
	}
}
