package domain

import (
	"fmt"
	"strings"
	"time"
)

// LegalSource is a body of law (statute, regulation, guideline) whose
// chunks are held in the legal-context index.
type LegalSource struct {
	// ID names the source. Chunk ids are derived from it.
	ID string `json:"id"`

	Title    string `json:"title"`
	Filename string `json:"filename,omitempty"`

	// LegalArea, Jurisdiction and IndexID are stamped on every chunk so
	// searches can filter on them.
	LegalArea    string `json:"legal_area,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	IndexID      string `json:"index_id,omitempty"`

	Language Language     `json:"language,omitempty"`
	Kind     DocumentKind `json:"kind,omitempty"`

	// Chunks is the number of chunks indexed for the source.
	Chunks int `json:"chunks"`

	// References is the number of distinct legal citations found.
	References int `json:"references"`

	IndexedAt time.Time `json:"indexed_at"`
}

// IndexRequest asks for a legal text to be added to the legal-context index.
type IndexRequest struct {
	// SourceID identifies the source. Derived from Filename when empty.
	// Indexing an existing id replaces that source.
	SourceID string `json:"source_id,omitempty"`

	Title       string `json:"title,omitempty"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`

	LegalArea    string `json:"legal_area,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	IndexID      string `json:"index_id,omitempty"`

	Hints DocumentHints `json:"hints"`
}

// SourceIDFromFilename derives a source id from a file name: the base name
// without extension, lower-cased, with runs of other characters replaced
// by a single dash.
func SourceIDFromFilename(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ValidateSourceID rejects ids that cannot address a stored record.
func ValidateSourceID(id string) error {
	if id == "" || strings.ContainsAny(id, "/ \t\n") {
		return fmt.Errorf("%w: source id %q", ErrInvalidInput, id)
	}
	return nil
}

// SourceChunkID returns the id of the n-th chunk of a source.
func SourceChunkID(sourceID string, n int) string {
	return fmt.Sprintf("%s:%04d", sourceID, n)
}
