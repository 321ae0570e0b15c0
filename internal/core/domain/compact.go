package domain

import "time"

// CompactUnit is a unit result with findings replaced by their ids.
type CompactUnit struct {
	UnitID           string            `json:"unit_id"`
	Title            string            `json:"title,omitempty"`
	Content          string            `json:"content"`
	ContentTruncated bool              `json:"content_truncated,omitempty"`
	StartOffset      int               `json:"start_offset"`
	EndOffset        int               `json:"end_offset"`
	Verdict          ComplianceVerdict `json:"verdict"`
	Queries          []string          `json:"queries,omitempty"`
	LegalSources     []LegalSourceRef  `json:"legal_sources,omitempty"`
	FindingIDs       []string          `json:"finding_ids"`
	Fallback         bool              `json:"fallback,omitempty"`
}

// CompactIndex is the size-bounded half of a stored analysis result.
// It holds everything except full Finding records.
type CompactIndex struct {
	AnalysisID        string            `json:"analysis_id"`
	DocumentID        string            `json:"document_id"`
	UserID            string            `json:"user_id"`
	Status            JobStatus         `json:"status"`
	Strategy          AnalysisStrategy  `json:"strategy"`
	DocumentContext   DocumentContext   `json:"document_context"`
	Units             []CompactUnit     `json:"units"`
	OverallCompliance OverallCompliance `json:"overall_compliance"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// DetailsBlob is the unbounded half of a stored analysis result.
type DetailsBlob struct {
	AnalysisID string             `json:"analysis_id"`
	Findings   map[string]Finding `json:"findings"`
}

// Summary returns the listing view of the index.
func (c *CompactIndex) Summary() AnalysisSummary {
	return AnalysisSummary{
		AnalysisID:      c.AnalysisID,
		DocumentID:      c.DocumentID,
		UserID:          c.UserID,
		Status:          c.Status,
		IsCompliant:     c.OverallCompliance.IsCompliant,
		ComplianceScore: c.OverallCompliance.ComplianceScore,
		UnitCount:       len(c.Units),
		CreatedAt:       c.CreatedAt,
	}
}
