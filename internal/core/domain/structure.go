package domain

// Complexity grades how much structure a document carries.
type Complexity string

// Complexity grades.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// StructureProfile is the classifier's verdict on a document's shape.
// It is computed once per document and never persisted.
type StructureProfile struct {
	Kind        DocumentKind `json:"kind"`
	Language    Language     `json:"language"`
	HasChapters bool         `json:"has_chapters"`
	HasSections bool         `json:"has_sections"`
	HasTables   bool         `json:"has_tables"`
	Complexity  Complexity   `json:"complexity"`
}

// MarkerCount returns how many structural markers were detected.
func (p StructureProfile) MarkerCount() int {
	n := 0
	for _, present := range []bool{p.HasChapters, p.HasSections, p.HasTables} {
		if present {
			n++
		}
	}
	return n
}
