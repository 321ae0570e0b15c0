package chunker

import (
	"regexp"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Language keyword sets. Only short, high-frequency function words and a
// few legal nouns are used so scoring works on short excerpts.
var languageKeywords = map[domain.Language][]string{
	domain.LanguageEnglish: {
		"the", "and", "of", "shall", "to", "in", "which", "be", "agreement",
		"party", "law", "any", "such", "this", "with", "by",
	},
	domain.LanguageGerman: {
		"der", "die", "und", "das", "des", "ist", "nicht", "gemäß", "vertrag",
		"artikel", "mit", "von", "eine", "dem", "den", "wird",
	},
	domain.LanguageFrench: {
		"le", "les", "et", "des", "du", "est", "contrat", "conformément", "pour",
		"dans", "une", "au", "aux", "sont", "être", "présent",
	},
	domain.LanguageSpanish: {
		"el", "los", "las", "y", "del", "que", "contrato", "artículo", "por",
		"para", "con", "una", "se", "al", "será", "presente",
	},
}

// Chapter-level heading patterns per language. All patterns are anchored to
// the start of a line.
var chapterPatterns = map[domain.Language][]*regexp.Regexp{
	domain.LanguageEnglish: {
		regexp.MustCompile(`(?m)^[ \t]*(?:CHAPTER|Chapter|PART|Part|TITLE|Title)[ \t]+(?:[IVXLC]+|\d+)\b`),
	},
	domain.LanguageGerman: {
		regexp.MustCompile(`(?m)^[ \t]*(?:KAPITEL|Kapitel|TEIL|Teil|TITEL|Titel)[ \t]+(?:[IVXLC]+|\d+)\b`),
	},
	domain.LanguageFrench: {
		regexp.MustCompile(`(?m)^[ \t]*(?:CHAPITRE|Chapitre|TITRE|Titre|PARTIE|Partie)[ \t]+(?:[IVXLC]+|\d+|premier|PREMIER)\b`),
	},
	domain.LanguageSpanish: {
		regexp.MustCompile(`(?m)^[ \t]*(?:CAPÍTULO|Capítulo|CAPITULO|Capitulo|TÍTULO|Título)[ \t]+(?:[IVXLC]+|\d+)\b`),
	},
}

// Section-level heading patterns per language.
var sectionPatterns = map[domain.Language][]*regexp.Regexp{
	domain.LanguageEnglish: {
		regexp.MustCompile(`(?m)^[ \t]*(?:ARTICLE|Article|SECTION|Section|Clause|CLAUSE|§)[ \t]*\d+[a-z]?\b`),
		regexp.MustCompile(`(?m)^[ \t]*\d{1,2}\.[ \t]+[A-Z][A-Za-z ,&'-]{2,60}$`),
	},
	domain.LanguageGerman: {
		regexp.MustCompile(`(?m)^[ \t]*(?:ARTIKEL|Artikel|Art\.|§)[ \t]*\d+[a-z]?\b`),
		regexp.MustCompile(`(?m)^[ \t]*\d{1,2}\.[ \t]+[A-ZÄÖÜ][\p{L} ,&'-]{2,60}$`),
	},
	domain.LanguageFrench: {
		regexp.MustCompile(`(?m)^[ \t]*(?:ARTICLE|Article|Art\.)[ \t]*(?:\d+|premier|1er)\b`),
		regexp.MustCompile(`(?m)^[ \t]*\d{1,2}\.[ \t]+[A-ZÉÈ][\p{L} ,&'-]{2,60}$`),
	},
	domain.LanguageSpanish: {
		regexp.MustCompile(`(?m)^[ \t]*(?:ARTÍCULO|Artículo|ARTICULO|Articulo|Art\.)[ \t]*\d+\b`),
		regexp.MustCompile(`(?m)^[ \t]*\d{1,2}\.[ \t]+[A-ZÁÉÍÓÚÑ][\p{L} ,&'-]{2,60}$`),
	},
}

var (
	markdownChapter = regexp.MustCompile(`(?m)^#[ \t]+\S`)
	markdownSection = regexp.MustCompile(`(?m)^#{2,6}[ \t]+\S`)

	// clausePattern marks numbered sub-clauses: "1.1", "(a)", "(iv)", "a)".
	clausePattern = regexp.MustCompile(`(?m)^[ \t]*(?:\d+\.\d+(?:\.\d+)*\.?|\([a-z0-9]{1,4}\)|[a-z]\))[ \t]+\S`)

	// tableRowPattern matches one pipe-delimited row.
	tableRowPattern = regexp.MustCompile(`^[ \t]*\|.*\|[ \t\r]*$`)
)

// Document-kind keywords, matched as lowercase substrings.
var kindKeywords = map[domain.DocumentKind][]string{
	domain.KindRegulation: {
		"regulation", "directive", "member states", "entry into force", "official journal",
		"verordnung", "gesetz", "inkrafttreten", "règlement", "entrée en vigueur",
		"reglamento", "ley orgánica", "real decreto", "entrada en vigor",
	},
	domain.KindContract: {
		"agreement", "contract", "the parties", "hereinafter", "in witness whereof", "signed by",
		"vertrag", "vertragsparteien", "nachfolgend", "contrat", "les parties", "ci-après",
		"contrato", "las partes", "en adelante",
	},
	domain.KindPolicy: {
		"policy", "privacy notice", "we collect", "your data", "cookies",
		"datenschutzerklärung", "politique de confidentialité", "política de privacidad",
	},
}

// kindPriority breaks ties between kind scores.
var kindPriority = []domain.DocumentKind{domain.KindRegulation, domain.KindContract, domain.KindPolicy}

func chapterFamily(lang domain.Language) []*regexp.Regexp {
	return append([]*regexp.Regexp{markdownChapter}, chapterPatterns[lang]...)
}

func sectionFamily(lang domain.Language) []*regexp.Regexp {
	return append([]*regexp.Regexp{markdownSection}, sectionPatterns[lang]...)
}
