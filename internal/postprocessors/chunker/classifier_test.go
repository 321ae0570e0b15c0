package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

func TestClassifier_DetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.Language
	}{
		{"english", "The party shall indemnify the other party and any affiliate in accordance with this agreement.", domain.LanguageEnglish},
		{"german", "Der Vertrag ist gemäß den Bestimmungen des Gesetzes mit dem Käufer und von der Firma geschlossen.", domain.LanguageGerman},
		{"french", "Le contrat est conclu pour une durée de deux ans et les parties sont tenues au respect des obligations.", domain.LanguageFrench},
		{"spanish", "El contrato se celebra por las partes y los anexos del presente documento con una duración de dos años.", domain.LanguageSpanish},
		{"no keywords", "1234 5678 !!!", domain.LanguageEnglish},
		{"empty", "", domain.LanguageEnglish},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DetectLanguage(tt.text))
		})
	}
}

func TestClassifier_DetectLanguage_FallbackOnTie(t *testing.T) {
	c := NewClassifier(WithFallbackLanguage(domain.LanguageGerman))

	// "la" is not a keyword; "the" and "le" score one point each.
	assert.Equal(t, domain.LanguageGerman, c.DetectLanguage("the le"))
	assert.Equal(t, domain.LanguageGerman, c.DetectLanguage("xyz"))
}

func TestClassifier_InvalidFallbackIgnored(t *testing.T) {
	c := NewClassifier(WithFallbackLanguage("xx"))
	assert.Equal(t, domain.LanguageEnglish, c.DetectLanguage(""))
}

func TestClassifier_HintsOverrideDetection(t *testing.T) {
	c := NewClassifier()
	text := "The party shall pay the fee under this agreement."

	p := c.Classify(text, domain.DocumentHints{Kind: domain.KindPolicy, Language: domain.LanguageFrench})
	assert.Equal(t, domain.KindPolicy, p.Kind)
	assert.Equal(t, domain.LanguageFrench, p.Language)

	p = c.Classify(text, domain.DocumentHints{Kind: "bogus", Language: "xx"})
	assert.Equal(t, domain.KindContract, p.Kind)
	assert.Equal(t, domain.LanguageEnglish, p.Language)
}

func TestClassifier_DetectKind(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.DocumentKind
	}{
		{"regulation", "This Regulation shall enter into force and apply in all Member States.", domain.KindRegulation},
		{"contract", "This Agreement is made between the parties, hereinafter the Supplier and the Customer.", domain.KindContract},
		{"policy", "This privacy notice explains which personal data we collect and how we use cookies.", domain.KindPolicy},
		{"other", "Meeting notes from Tuesday.", domain.KindOther},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text, domain.DocumentHints{}).Kind)
		})
	}
}

func TestClassifier_StructureMarkers(t *testing.T) {
	c := NewClassifier()

	t.Run("chapters and articles", func(t *testing.T) {
		text := "CHAPTER I\nGeneral provisions\n\nArticle 1\nSubject matter\n"
		p := c.Classify(text, domain.DocumentHints{})
		assert.True(t, p.HasChapters)
		assert.True(t, p.HasSections)
		assert.False(t, p.HasTables)
	})

	t.Run("german paragraphs", func(t *testing.T) {
		text := "Kapitel 2\nDer Vertrag\n\n§ 5 Haftung\nDie Haftung ist nicht beschränkt und wird von der Firma getragen.\n"
		p := c.Classify(text, domain.DocumentHints{})
		assert.Equal(t, domain.LanguageGerman, p.Language)
		assert.True(t, p.HasChapters)
		assert.True(t, p.HasSections)
	})

	t.Run("markdown headers", func(t *testing.T) {
		p := c.Classify("# Title\n\n## Scope\ntext\n", domain.DocumentHints{})
		assert.True(t, p.HasChapters)
		assert.True(t, p.HasSections)
	})

	t.Run("table", func(t *testing.T) {
		p := c.Classify("Fees:\n| Item | Price |\n|---|---|\n| A | 1 |\n", domain.DocumentHints{})
		assert.True(t, p.HasTables)
	})

	t.Run("single pipe row is not a table", func(t *testing.T) {
		p := c.Classify("| lonely row |\ntext\n", domain.DocumentHints{})
		assert.False(t, p.HasTables)
	})
}

func TestClassifier_Complexity(t *testing.T) {
	structured := "CHAPTER I\n\nArticle 1\n"
	long := strings.Repeat("plain words without markers ", 1000)

	tests := []struct {
		name string
		text string
		want domain.Complexity
	}{
		{"short plain", "just a note", domain.ComplexityLow},
		{"short structured", structured, domain.ComplexityMedium},
		{"long plain", long, domain.ComplexityMedium},
		{"long structured", structured + long, domain.ComplexityHigh},
	}

	c := NewClassifier(WithComplexityThreshold(10000))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text, domain.DocumentHints{}).Complexity)
		})
	}
}
