package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// defaultListLimit caps list_analyses when no limit is given.
const defaultListLimit = 20

// AnalyzeInput is the input schema for the analyze_document tool.
type AnalyzeInput struct {
	Content      string            `json:"content" jsonschema:"the document text, markdown or HTML"`
	Filename     string            `json:"filename,omitempty" jsonschema:"file name used to detect the format"`
	ContentType  string            `json:"content_type,omitempty" jsonschema:"MIME type of the content"`
	DocumentType string            `json:"document_type,omitempty" jsonschema:"document type, e.g. employment contract"`
	Domain       string            `json:"domain,omitempty" jsonschema:"business domain of the document"`
	Jurisdiction string            `json:"jurisdiction,omitempty" jsonschema:"jurisdiction the document is judged under"`
	LegalArea    string            `json:"legal_area,omitempty" jsonschema:"legal area, e.g. data protection"`
	KeyTerms     []string          `json:"key_terms,omitempty" jsonschema:"key terms to focus the analysis on"`
	UserID       string            `json:"user_id,omitempty" jsonschema:"owner of the analysis"`
	Strategy     string            `json:"strategy,omitempty" jsonschema:"local_section_search (default) or direct_document"`
	AnalysisID   string            `json:"analysis_id,omitempty" jsonschema:"analysis id, generated when empty"`
	KeywordMap   map[string]string `json:"keyword_map,omitempty" jsonschema:"anonymisation placeholders mapped to original values"`
	Background   bool              `json:"background,omitempty" jsonschema:"start the analysis and return immediately"`
}

// AnalyzeOutput is the output schema for the analyze_document tool.
type AnalyzeOutput struct {
	AnalysisID      string          `json:"analysis_id"`
	Status          string          `json:"status"`
	IsCompliant     bool            `json:"is_compliant"`
	ComplianceScore float64         `json:"compliance_score"`
	Summary         string          `json:"summary,omitempty"`
	ViolationCount  int             `json:"violation_count"`
	FallbackCount   int             `json:"fallback_count"`
	Findings        []FindingOutput `json:"findings,omitempty"`
}

// FindingOutput is one finding in tool output.
type FindingOutput struct {
	ID          string   `json:"id"`
	UnitID      string   `json:"unit_id"`
	Severity    string   `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	LegalBasis  []string `json:"legal_basis,omitempty"`
	StartOffset int      `json:"start_offset"`
	EndOffset   int      `json:"end_offset"`
}

// AnalysisIDInput selects one analysis.
type AnalysisIDInput struct {
	AnalysisID string `json:"analysis_id" jsonschema:"the analysis id"`
}

// GetAnalysisOutput is the output schema for the get_analysis tool. Result is
// set once the analysis has completed; Job is set otherwise.
type GetAnalysisOutput struct {
	Job    *JobOutput      `json:"job,omitempty"`
	Result *AnalysisOutput `json:"result,omitempty"`
}

// JobOutput is the tool view of a job.
type JobOutput struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	Percent   int    `json:"percent"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// AnalysisOutput is the tool view of a stored result.
type AnalysisOutput struct {
	Overview    AnalyzeOutput `json:"overview"`
	DocumentID  string        `json:"document_id"`
	UserID      string        `json:"user_id,omitempty"`
	Strategy    string        `json:"strategy"`
	Units       []UnitOutput  `json:"units"`
	CreatedAt   string        `json:"created_at"`
	CompletedAt string        `json:"completed_at,omitempty"`
}

// UnitOutput is the tool view of one analysed section.
type UnitOutput struct {
	UnitID          string   `json:"unit_id"`
	Title           string   `json:"title,omitempty"`
	StartOffset     int      `json:"start_offset"`
	EndOffset       int      `json:"end_offset"`
	IsCompliant     bool     `json:"is_compliant"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning,omitempty"`
	Violations      []string `json:"violations,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Fallback        bool     `json:"fallback,omitempty"`
	FindingIDs      []string `json:"finding_ids,omitempty"`
}

// ListInput is the input schema for the list_analyses tool.
type ListInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"only list analyses of this user"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of analyses to return (default 20)"`
}

// ListOutput is the output schema for the list_analyses tool.
type ListOutput struct {
	Analyses []SummaryOutput `json:"analyses"`
	Count    int             `json:"count"`
}

// SummaryOutput is one listed analysis.
type SummaryOutput struct {
	AnalysisID      string  `json:"analysis_id"`
	DocumentID      string  `json:"document_id"`
	Status          string  `json:"status"`
	IsCompliant     bool    `json:"is_compliant"`
	ComplianceScore float64 `json:"compliance_score"`
	UnitCount       int     `json:"unit_count"`
	CreatedAt       string  `json:"created_at"`
}

// CancelOutput is the output schema for the cancel_analysis tool.
type CancelOutput struct {
	AnalysisID string `json:"analysis_id"`
	Requested  bool   `json:"requested"`
}

// ChunkInput is the input schema for the chunk_document tool.
type ChunkInput struct {
	Content     string `json:"content" jsonschema:"the document text, markdown or HTML"`
	Filename    string `json:"filename,omitempty" jsonschema:"file name used to detect the format"`
	ContentType string `json:"content_type,omitempty" jsonschema:"MIME type of the content"`
	Kind        string `json:"kind,omitempty" jsonschema:"document kind hint: regulation, contract, policy or other"`
	Language    string `json:"language,omitempty" jsonschema:"language hint: en, de, fr or es"`
}

// ChunkOutput is the output schema for the chunk_document tool.
type ChunkOutput struct {
	Kind        string        `json:"kind"`
	Language    string        `json:"language"`
	Complexity  string        `json:"complexity"`
	HasChapters bool          `json:"has_chapters"`
	HasSections bool          `json:"has_sections"`
	HasTables   bool          `json:"has_tables"`
	Chunks      []ChunkResult `json:"chunks"`
	Count       int           `json:"count"`
}

// ChunkResult is one chunk in tool output.
type ChunkResult struct {
	Index           int      `json:"index"`
	Level           string   `json:"level"`
	Section         string   `json:"section,omitempty"`
	Subsection      string   `json:"subsection,omitempty"`
	StartOffset     int      `json:"start_offset"`
	EndOffset       int      `json:"end_offset"`
	Content         string   `json:"content"`
	LegalReferences []string `json:"legal_references,omitempty"`
	ClauseTags      []string `json:"clause_tags,omitempty"`
}

// IndexSourceInput is the input schema for the index_legal_source tool.
type IndexSourceInput struct {
	Content      string `json:"content" jsonschema:"the legal text, markdown or HTML"`
	Filename     string `json:"filename" jsonschema:"file name used to detect the format and derive the source id"`
	ContentType  string `json:"content_type,omitempty" jsonschema:"MIME type of the content"`
	SourceID     string `json:"source_id,omitempty" jsonschema:"source id; indexing an existing id replaces that source"`
	Title        string `json:"title,omitempty" jsonschema:"source title, e.g. German Civil Code"`
	Jurisdiction string `json:"jurisdiction,omitempty" jsonschema:"jurisdiction the text applies in"`
	LegalArea    string `json:"legal_area,omitempty" jsonschema:"legal area, e.g. employment"`
	IndexID      string `json:"index_id,omitempty" jsonschema:"named corpus to add the text to"`
	Language     string `json:"language,omitempty" jsonschema:"language hint: en, de, fr or es"`
}

// SourceOutput is the tool view of an indexed legal source.
type SourceOutput struct {
	SourceID     string `json:"source_id"`
	Title        string `json:"title"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	LegalArea    string `json:"legal_area,omitempty"`
	IndexID      string `json:"index_id,omitempty"`
	Language     string `json:"language,omitempty"`
	Chunks       int    `json:"chunks"`
	References   int    `json:"references"`
	IndexedAt    string `json:"indexed_at"`
}

// SourcesOutput is the output schema for the list_legal_sources tool.
type SourcesOutput struct {
	Sources []SourceOutput `json:"sources"`
	Count   int            `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "analyze_document",
		Description: "Analyse a legal document section by section for legal compliance " +
			"and return the overall verdict with its findings",
	}, s.handleAnalyze)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_analysis",
		Description: "Get a stored analysis result, or the job status while it is running",
	}, s.handleGetAnalysis)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_analyses",
		Description: "List stored analyses, newest first",
	}, s.handleListAnalyses)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_analysis",
		Description: "Request cancellation of a running analysis",
	}, s.handleCancelAnalysis)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chunk_document",
		Description: "Classify a document's structure and split it into structural chunks",
	}, s.handleChunk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_legal_source",
		Description: "Add a statute, regulation or guideline to the legal context analyses are judged against",
	}, s.handleIndexSource)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_legal_sources",
		Description: "List the legal sources in the legal-context index, most recently indexed first",
	}, s.handleListSources)
}

func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeInput,
) (*mcp.CallToolResult, AnalyzeOutput, error) {
	req := domain.AnalysisRequest{
		AnalysisID:  input.AnalysisID,
		UserID:      input.UserID,
		Filename:    input.Filename,
		ContentType: input.ContentType,
		Data:        []byte(input.Content),
		KeywordMap:  input.KeywordMap,
		DocumentContext: domain.DocumentContext{
			DocumentType: input.DocumentType,
			Domain:       input.Domain,
			Jurisdiction: input.Jurisdiction,
			LegalArea:    input.LegalArea,
			KeyTerms:     input.KeyTerms,
		},
		Strategy: domain.AnalysisStrategy(input.Strategy),
	}

	if input.Background {
		job, err := s.ports.Analysis.CreateJob(ctx, req)
		if err != nil {
			return nil, AnalyzeOutput{}, err
		}
		return nil, AnalyzeOutput{AnalysisID: job.ID, Status: string(job.Status)}, nil
	}

	result, err := s.ports.Analysis.Run(ctx, req)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}
	return nil, toAnalyzeOutput(result), nil
}

func (s *Server) handleGetAnalysis(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalysisIDInput,
) (*mcp.CallToolResult, GetAnalysisOutput, error) {
	if input.AnalysisID == "" {
		return nil, GetAnalysisOutput{}, fmt.Errorf("%w: analysis_id is required", domain.ErrInvalidInput)
	}

	job, err := s.ports.Analysis.Status(ctx, input.AnalysisID)
	if err == nil && job.Status != domain.JobCompleted {
		return nil, GetAnalysisOutput{Job: toJobOutput(job)}, nil
	}

	result, err := s.ports.Analysis.Result(ctx, input.AnalysisID)
	if err != nil {
		return nil, GetAnalysisOutput{}, err
	}
	return nil, GetAnalysisOutput{Result: toAnalysisOutput(result)}, nil
}

func (s *Server) handleListAnalyses(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	summaries, err := s.ports.Analysis.List(ctx, input.UserID, limit)
	if err != nil {
		return nil, ListOutput{}, err
	}

	output := ListOutput{
		Analyses: make([]SummaryOutput, len(summaries)),
		Count:    len(summaries),
	}
	for i, sum := range summaries {
		output.Analyses[i] = SummaryOutput{
			AnalysisID:      sum.AnalysisID,
			DocumentID:      sum.DocumentID,
			Status:          string(sum.Status),
			IsCompliant:     sum.IsCompliant,
			ComplianceScore: sum.ComplianceScore,
			UnitCount:       sum.UnitCount,
			CreatedAt:       formatTime(sum.CreatedAt),
		}
	}
	return nil, output, nil
}

func (s *Server) handleCancelAnalysis(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AnalysisIDInput,
) (*mcp.CallToolResult, CancelOutput, error) {
	if err := s.ports.Analysis.Cancel(input.AnalysisID); err != nil {
		return nil, CancelOutput{}, err
	}
	return nil, CancelOutput{AnalysisID: input.AnalysisID, Requested: true}, nil
}

func (s *Server) handleChunk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChunkInput,
) (*mcp.CallToolResult, ChunkOutput, error) {
	if s.ports.Chunking == nil || s.ports.Extractor == nil {
		return nil, ChunkOutput{}, ErrChunkingUnavailable
	}

	text, err := s.ports.Extractor.Extract(ctx, []byte(input.Content), input.ContentType, input.Filename)
	if err != nil {
		return nil, ChunkOutput{}, err
	}
	doc := &domain.Document{
		ID:      input.Filename,
		Title:   input.Filename,
		Content: text,
		Hints: domain.DocumentHints{
			Kind:     domain.DocumentKind(input.Kind),
			Language: domain.Language(input.Language),
		},
	}

	profile := s.ports.Chunking.Profile(doc)
	chunks, err := s.ports.Chunking.Chunk(ctx, doc)
	if err != nil {
		return nil, ChunkOutput{}, err
	}

	output := ChunkOutput{
		Kind:        string(profile.Kind),
		Language:    string(profile.Language),
		Complexity:  string(profile.Complexity),
		HasChapters: profile.HasChapters,
		HasSections: profile.HasSections,
		HasTables:   profile.HasTables,
		Chunks:      make([]ChunkResult, len(chunks)),
		Count:       len(chunks),
	}
	for i, c := range chunks {
		output.Chunks[i] = ChunkResult{
			Index:           c.Index,
			Level:           string(c.Level),
			Section:         c.Section,
			Subsection:      c.Subsection,
			StartOffset:     c.StartOffset,
			EndOffset:       c.EndOffset,
			Content:         c.Body(),
			LegalReferences: c.LegalReferences,
			ClauseTags:      c.ClauseTags,
		}
	}
	return nil, output, nil
}

func (s *Server) handleIndexSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexSourceInput,
) (*mcp.CallToolResult, SourceOutput, error) {
	if s.ports.Corpus == nil {
		return nil, SourceOutput{}, ErrCorpusUnavailable
	}
	src, err := s.ports.Corpus.Index(ctx, domain.IndexRequest{
		SourceID:     input.SourceID,
		Title:        input.Title,
		Filename:     input.Filename,
		ContentType:  input.ContentType,
		Data:         []byte(input.Content),
		LegalArea:    input.LegalArea,
		Jurisdiction: input.Jurisdiction,
		IndexID:      input.IndexID,
		Hints:        domain.DocumentHints{Language: domain.Language(input.Language)},
	})
	if err != nil {
		return nil, SourceOutput{}, err
	}
	return nil, toSourceOutput(*src), nil
}

func (s *Server) handleListSources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, SourcesOutput, error) {
	if s.ports.Corpus == nil {
		return nil, SourcesOutput{}, ErrCorpusUnavailable
	}
	sources, err := s.ports.Corpus.Sources(ctx)
	if err != nil {
		return nil, SourcesOutput{}, err
	}
	output := SourcesOutput{Sources: make([]SourceOutput, len(sources)), Count: len(sources)}
	for i, src := range sources {
		output.Sources[i] = toSourceOutput(src)
	}
	return nil, output, nil
}

func toSourceOutput(src domain.LegalSource) SourceOutput {
	return SourceOutput{
		SourceID:     src.ID,
		Title:        src.Title,
		Jurisdiction: src.Jurisdiction,
		LegalArea:    src.LegalArea,
		IndexID:      src.IndexID,
		Language:     string(src.Language),
		Chunks:       src.Chunks,
		References:   src.References,
		IndexedAt:    formatTime(src.IndexedAt),
	}
}

func toAnalyzeOutput(r *domain.AnalysisResult) AnalyzeOutput {
	overall := r.OverallCompliance
	out := AnalyzeOutput{
		AnalysisID:      r.AnalysisID,
		Status:          string(r.Status),
		IsCompliant:     overall.IsCompliant,
		ComplianceScore: overall.ComplianceScore,
		Summary:         overall.Summary,
		ViolationCount:  overall.ViolationCount,
		FallbackCount:   overall.FallbackCount,
	}
	for _, u := range r.Units {
		for _, f := range u.Findings {
			out.Findings = append(out.Findings, FindingOutput{
				ID:          f.ID,
				UnitID:      u.UnitID,
				Severity:    string(f.Severity),
				Title:       f.Title,
				Description: f.Description,
				LegalBasis:  f.LegalBasis,
				StartOffset: f.Location.StartOffset,
				EndOffset:   f.Location.EndOffset,
			})
		}
	}
	return out
}

func toAnalysisOutput(r *domain.AnalysisResult) *AnalysisOutput {
	out := &AnalysisOutput{
		Overview:   toAnalyzeOutput(r),
		DocumentID: r.DocumentID,
		UserID:     r.UserID,
		Strategy:   string(r.Strategy),
		Units:      make([]UnitOutput, len(r.Units)),
		CreatedAt:  formatTime(r.CreatedAt),
	}
	if r.CompletedAt != nil {
		out.CompletedAt = formatTime(*r.CompletedAt)
	}
	for i, u := range r.Units {
		out.Units[i] = UnitOutput{
			UnitID:          u.UnitID,
			Title:           u.Title,
			StartOffset:     u.StartOffset,
			EndOffset:       u.EndOffset,
			IsCompliant:     u.Verdict.IsCompliant,
			Confidence:      u.Verdict.Confidence,
			Reasoning:       u.Verdict.Reasoning,
			Violations:      u.Verdict.Violations,
			Recommendations: u.Verdict.Recommendations,
			Fallback:        u.Fallback,
			FindingIDs:      u.FindingIDs(),
		}
	}
	return out
}

func toJobOutput(job *domain.Job) *JobOutput {
	return &JobOutput{
		ID:        job.ID,
		Status:    string(job.Status),
		Stage:     string(job.Stage),
		Percent:   job.Percent,
		Message:   job.Message,
		Error:     job.Error,
		UpdatedAt: formatTime(job.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
