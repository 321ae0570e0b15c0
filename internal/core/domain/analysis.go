package domain

import "time"

// AnalysisStrategy selects how a document is handed to the reasoning service.
type AnalysisStrategy string

// Analysis strategies.
const (
	// StrategyLocalSectionSearch splits the document into units, searches legal
	// context locally for each unit and analyses units in rate-limited batches.
	StrategyLocalSectionSearch AnalysisStrategy = "local_section_search"

	// StrategyDirectDocument sends the whole document as a single unit with the
	// original file attached. It is the N=1 case: no splitting, no batching.
	StrategyDirectDocument AnalysisStrategy = "direct_document"
)

// IsValid returns true if the strategy is recognised.
func (s AnalysisStrategy) IsValid() bool {
	return s == StrategyLocalSectionSearch || s == StrategyDirectDocument
}

// String returns the string representation.
func (s AnalysisStrategy) String() string {
	return string(s)
}

// AnalysisUnit is one section of a document analysed independently.
type AnalysisUnit struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// DocumentContext describes the document as a whole to every unit analysis.
type DocumentContext struct {
	DocumentType string   `json:"document_type,omitempty"`
	Domain       string   `json:"domain,omitempty"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	LegalArea    string   `json:"legal_area,omitempty"`
	KeyTerms     []string `json:"key_terms,omitempty"`
}

// LegalContextItem is one piece of retrieved law with its relevance.
type LegalContextItem struct {
	Source         Chunk   `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
}

// LegalSourceRef is the persisted reference to a retrieved legal source.
// The retrieved text itself is not stored with the result.
type LegalSourceRef struct {
	ChunkID    string   `json:"chunk_id"`
	DocumentID string   `json:"document_id,omitempty"`
	Score      float64  `json:"score"`
	References []string `json:"references,omitempty"`
}

// ComplianceVerdict is the reasoning service's judgment of one unit.
type ComplianceVerdict struct {
	IsCompliant     bool     `json:"isCompliant"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	Violations      []string `json:"violations"`
	Recommendations []string `json:"recommendations"`
}

// FallbackConfidence is the confidence assigned to placeholder verdicts.
const FallbackConfidence = 0.2

// FallbackVerdict returns the low-confidence placeholder used whenever a unit
// could not be analysed or the response could not be parsed.
func FallbackVerdict() ComplianceVerdict {
	return ComplianceVerdict{
		IsCompliant:     true,
		Confidence:      FallbackConfidence,
		Reasoning:       "Automatic analysis could not be completed for this section; manual review required.",
		Violations:      []string{},
		Recommendations: []string{"Manual review required"},
	}
}

// Severity ranks how serious a finding is.
type Severity string

// Severities.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FindingTypeLegalViolation is the type of findings derived from verdict violations.
const FindingTypeLegalViolation = "legal_violation"

// Location pins a finding to a span of the source text.
type Location struct {
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	SectionLabel string `json:"section_label,omitempty"`
}

// Finding is a single identified legal issue, owned by one analysis result.
type Finding struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Evidence    []string `json:"evidence,omitempty"`
	LegalBasis  []string `json:"legal_basis,omitempty"`
}

// UnitResult is the outcome of analysing one unit.
type UnitResult struct {
	UnitID       string            `json:"unit_id"`
	Title        string            `json:"title,omitempty"`
	Content      string            `json:"content"`
	StartOffset  int               `json:"start_offset"`
	EndOffset    int               `json:"end_offset"`
	Verdict      ComplianceVerdict `json:"verdict"`
	Queries      []string          `json:"queries,omitempty"`
	LegalSources []LegalSourceRef  `json:"legal_sources,omitempty"`
	Findings     []Finding         `json:"findings"`

	// Fallback is true when Verdict is the placeholder verdict.
	Fallback bool `json:"fallback,omitempty"`
}

// FindingIDs returns the ids of the unit's findings in order.
func (u UnitResult) FindingIDs() []string {
	ids := make([]string, len(u.Findings))
	for i, f := range u.Findings {
		ids[i] = f.ID
	}
	return ids
}

// FallbackResult builds the placeholder result for a unit that failed.
func FallbackResult(unit AnalysisUnit) UnitResult {
	return UnitResult{
		UnitID:      unit.ID,
		Title:       unit.Title,
		Content:     unit.Content,
		StartOffset: unit.StartOffset,
		EndOffset:   unit.EndOffset,
		Verdict:     FallbackVerdict(),
		Findings:    []Finding{},
		Fallback:    true,
	}
}

// OverallCompliance is the aggregated verdict for a document.
type OverallCompliance struct {
	IsCompliant     bool    `json:"is_compliant"`
	ComplianceScore float64 `json:"compliance_score"`
	Summary         string  `json:"summary"`
	ViolationCount  int     `json:"violation_count"`
	FallbackCount   int     `json:"fallback_count"`
}

// AnalysisResult is the full outcome of one analysis run.
type AnalysisResult struct {
	AnalysisID        string            `json:"analysis_id"`
	DocumentID        string            `json:"document_id"`
	UserID            string            `json:"user_id"`
	Status            JobStatus         `json:"status"`
	Strategy          AnalysisStrategy  `json:"strategy"`
	DocumentContext   DocumentContext   `json:"document_context"`
	Units             []UnitResult      `json:"units"`
	OverallCompliance OverallCompliance `json:"overall_compliance"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// Findings returns every finding across all units in unit order.
func (r *AnalysisResult) Findings() []Finding {
	var all []Finding
	for _, u := range r.Units {
		all = append(all, u.Findings...)
	}
	return all
}

// AnalysisSummary is the listing view of a stored analysis.
type AnalysisSummary struct {
	AnalysisID      string    `json:"analysis_id"`
	DocumentID      string    `json:"document_id"`
	UserID          string    `json:"user_id"`
	Status          JobStatus `json:"status"`
	IsCompliant     bool      `json:"is_compliant"`
	ComplianceScore float64   `json:"compliance_score"`
	UnitCount       int       `json:"unit_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// AnalysisRequest is everything needed to run one analysis.
type AnalysisRequest struct {
	// AnalysisID identifies the run. Generated when empty.
	AnalysisID string `json:"analysis_id,omitempty"`

	DocumentID string `json:"document_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`

	// Filename and ContentType describe Data for text extraction.
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`

	// KeywordMap maps anonymisation placeholders back to original values.
	KeywordMap map[string]string `json:"keyword_map,omitempty"`

	DocumentContext DocumentContext  `json:"document_context"`
	Strategy        AnalysisStrategy `json:"strategy,omitempty"`
	Hints           DocumentHints    `json:"hints"`
}
