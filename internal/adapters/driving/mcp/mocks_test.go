package mcp

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// mockAnalysisService is a mock implementation of driving.AnalysisService.
type mockAnalysisService struct {
	job       *domain.Job
	result    *domain.AnalysisResult
	summaries []domain.AnalysisSummary
	err       error
	statusErr error
	resultErr error

	lastRequest domain.AnalysisRequest
	lastUser    string
	lastLimit   int
	cancelled   []string
}

func (m *mockAnalysisService) CreateJob(_ context.Context, req domain.AnalysisRequest) (*domain.Job, error) {
	m.lastRequest = req
	return m.job, m.err
}

func (m *mockAnalysisService) Run(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *mockAnalysisService) Cancel(id string) error {
	m.cancelled = append(m.cancelled, id)
	return m.err
}

func (m *mockAnalysisService) Status(_ context.Context, _ string) (*domain.Job, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.job, nil
}

func (m *mockAnalysisService) Wait(_ context.Context, _ string) (*domain.Job, error) {
	return m.job, m.err
}

func (m *mockAnalysisService) Result(_ context.Context, _ string) (*domain.AnalysisResult, error) {
	if m.resultErr != nil {
		return nil, m.resultErr
	}
	return m.result, nil
}

func (m *mockAnalysisService) List(_ context.Context, userID string, limit int) ([]domain.AnalysisSummary, error) {
	m.lastUser = userID
	m.lastLimit = limit
	return m.summaries, m.err
}

func (m *mockAnalysisService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockChunkingService is a mock implementation of driving.ChunkingService.
type mockChunkingService struct {
	profile domain.StructureProfile
	chunks  []domain.Chunk
	err     error
	lastDoc *domain.Document
}

func (m *mockChunkingService) Profile(doc *domain.Document) domain.StructureProfile {
	m.lastDoc = doc
	return m.profile
}

func (m *mockChunkingService) Chunk(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	m.lastDoc = doc
	return m.chunks, m.err
}

// mockCorpusService is a mock implementation of driving.CorpusService.
type mockCorpusService struct {
	source  *domain.LegalSource
	sources []domain.LegalSource
	err     error
	lastReq domain.IndexRequest
}

func (m *mockCorpusService) Index(_ context.Context, req domain.IndexRequest) (*domain.LegalSource, error) {
	m.lastReq = req
	return m.source, m.err
}

func (m *mockCorpusService) Sources(_ context.Context) ([]domain.LegalSource, error) {
	return m.sources, m.err
}

// mockExtractor is a mock implementation of driven.TextExtractor.
type mockExtractor struct {
	err error
}

func (m *mockExtractor) Extract(_ context.Context, data []byte, _, _ string) (string, error) {
	return string(data), m.err
}

func (m *mockExtractor) ReverseAnonymization(text string, _ map[string]string) string {
	return text
}

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		AnalysisID: "an-1",
		DocumentID: "doc-1",
		Status:     domain.JobCompleted,
		Strategy:   domain.StrategyLocalSectionSearch,
		Units: []domain.UnitResult{
			{
				UnitID: "unit_001", Title: "Termination", StartOffset: 0, EndOffset: 40,
				Verdict: domain.ComplianceVerdict{
					IsCompliant: false, Confidence: 0.9,
					Violations: []string{"Notice period below statutory minimum"},
				},
				Findings: []domain.Finding{{
					ID: "finding_001", Type: domain.FindingTypeLegalViolation, Severity: domain.SeverityHigh,
					Title:      "Notice period below statutory minimum",
					Location:   domain.Location{StartOffset: 0, EndOffset: 40},
					LegalBasis: []string{"§ 622 BGB"},
				}},
			},
			{
				UnitID: "unit_002", Title: "Payment", StartOffset: 40, EndOffset: 90,
				Verdict:  domain.ComplianceVerdict{IsCompliant: true, Confidence: 0.8},
				Findings: []domain.Finding{},
			},
		},
		OverallCompliance: domain.OverallCompliance{
			IsCompliant: false, ComplianceScore: 0.5, Summary: "1 of 2 sections non-compliant", ViolationCount: 1,
		},
	}
}
