package domain

// Language is an ISO 639-1 code for a supported document language.
type Language string

// Supported languages.
const (
	LanguageEnglish Language = "en"
	LanguageGerman  Language = "de"
	LanguageFrench  Language = "fr"
	LanguageSpanish Language = "es"
)

// Languages returns all languages the classifier scores.
func Languages() []Language {
	return []Language{LanguageEnglish, LanguageGerman, LanguageFrench, LanguageSpanish}
}

// IsValid returns true if the language is supported.
func (l Language) IsValid() bool {
	switch l {
	case LanguageEnglish, LanguageGerman, LanguageFrench, LanguageSpanish:
		return true
	default:
		return false
	}
}

// DocumentKind is the broad legal category of a document.
type DocumentKind string

// Document kinds.
const (
	KindRegulation DocumentKind = "regulation"
	KindContract   DocumentKind = "contract"
	KindPolicy     DocumentKind = "policy"
	KindOther      DocumentKind = "other"
)

// IsValid returns true if the kind is recognised.
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindRegulation, KindContract, KindPolicy, KindOther:
		return true
	default:
		return false
	}
}

// Document is the ephemeral input to the chunker. It is never persisted.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title, usually the file name.
	Title string

	// Content is the full extracted text.
	Content string

	// Hints are caller-declared structural facts that override detection.
	Hints DocumentHints
}

// DocumentHints carries optional structural hints for a document.
type DocumentHints struct {
	// Kind overrides the detected document kind when valid.
	Kind DocumentKind

	// Language overrides the detected language when valid.
	Language Language
}

// ChunkLevel is the structural granularity of a chunk.
type ChunkLevel string

// Chunk levels, coarsest first.
const (
	LevelChapter   ChunkLevel = "chapter"
	LevelSection   ChunkLevel = "section"
	LevelClause    ChunkLevel = "clause"
	LevelTable     ChunkLevel = "table"
	LevelParagraph ChunkLevel = "paragraph"
)

// Chunk is a structurally bounded slice of a document's text.
//
// Offsets are byte offsets into the source text and Content is exactly
// source[StartOffset:EndOffset]. Overlap is the number of leading bytes of
// Content that repeat the tail of the previous chunk, so concatenating
// Content[Overlap:] over all chunks in order reproduces the source.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// DocumentID links to the source document.
	DocumentID string `json:"document_id"`

	// Index is the ordinal position within the document.
	Index int `json:"index"`

	// Level is the structural level the chunk was cut at.
	Level ChunkLevel `json:"level"`

	// Content is the chunk text including any leading overlap.
	Content string `json:"content"`

	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
	Overlap     int `json:"overlap,omitempty"`

	// Language is the detected document language.
	Language Language `json:"language,omitempty"`

	// LegalReferences are statute and article citations found in the content.
	LegalReferences []string `json:"legal_references,omitempty"`

	// ClauseTags classify the clause types present (liability, termination, ...).
	ClauseTags []string `json:"clause_tags,omitempty"`

	// Section and Subsection are the numerals the chunk belongs to, if recoverable.
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`

	// Metadata contains source-specific key-value pairs, e.g. search payload fields.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Body returns the chunk content without its leading overlap.
func (c Chunk) Body() string {
	if c.Overlap <= 0 || c.Overlap > len(c.Content) {
		return c.Content
	}
	return c.Content[c.Overlap:]
}
