package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure SectionAnalyzer implements PromptStoreAware.
var _ driven.PromptStoreAware = (*SectionAnalyzer)(nil)

// QueriesPerUnit is the number of legal-context search queries per unit.
const QueriesPerUnit = 3

const (
	excerptWords       = 12
	maxContextChars    = 1500
	maxEvidenceChars   = 300
	maxFindingTitle    = 80
	maxLegalBasisItems = 5
)

// SectionAnalyzer judges one analysis unit: it generates search queries,
// retrieves legal context and asks the reasoning service for a verdict on
// that unit alone.
type SectionAnalyzer struct {
	llm     driven.LLMService
	index   driven.LegalIndex
	prompts promptSource
	search  domain.SearchSettings
	log     *logger.Logger
}

// NewSectionAnalyzer creates a section analyzer. index may be nil, in which
// case units are judged without legal context.
func NewSectionAnalyzer(
	llm driven.LLMService, index driven.LegalIndex, search domain.SearchSettings, log *logger.Logger,
) *SectionAnalyzer {
	if search.TopK <= 0 {
		search.TopK = domain.DefaultSettings().Search.TopK
	}
	return &SectionAnalyzer{
		llm:    llm,
		index:  index,
		search: search,
		log:    log,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (a *SectionAnalyzer) SetPromptStore(store driven.PromptStore) {
	a.prompts.store = store
}

// Analyze runs the full per-unit pipeline. An error means the unit could
// not be judged at all; callers substitute the fallback result.
func (a *SectionAnalyzer) Analyze(
	ctx context.Context, unit domain.AnalysisUnit, docCtx domain.DocumentContext,
) (domain.UnitResult, error) {
	if a.llm == nil {
		return domain.UnitResult{}, fmt.Errorf("%w: %w", domain.ErrUnitAnalysis, domain.ErrLLMUnavailable)
	}

	// 1. Generate search queries
	queries := a.GenerateQueries(ctx, unit, docCtx)

	// 2. Retrieve legal context for every query
	items := a.SearchContext(ctx, queries, docCtx)

	// 3. Judge this unit only
	verdict, fallback, err := a.judge(ctx,
		a.prompts.load(driven.PromptComplianceSystem), unit, docCtx, items, nil)
	if err != nil {
		return domain.UnitResult{}, err
	}

	// 4. Derive findings from violations
	return a.result(unit, verdict, fallback, queries, items), nil
}

// AnalyzeDirect judges a whole document as a single unit with the original
// file attached. One document-level search supplies legal context.
func (a *SectionAnalyzer) AnalyzeDirect(
	ctx context.Context, unit domain.AnalysisUnit, docCtx domain.DocumentContext, attachment *driven.Attachment,
) (domain.UnitResult, error) {
	if a.llm == nil {
		return domain.UnitResult{}, fmt.Errorf("%w: %w", domain.ErrUnitAnalysis, domain.ErrLLMUnavailable)
	}

	queries := TemplatedQueries(unit, docCtx)[:1]
	items := a.SearchContext(ctx, queries, docCtx)

	verdict, fallback, err := a.judge(ctx,
		a.prompts.load(driven.PromptDirectSystem), unit, docCtx, items, attachment)
	if err != nil {
		return domain.UnitResult{}, err
	}
	return a.result(unit, verdict, fallback, queries, items), nil
}

type queriesResponse struct {
	Queries []string `json:"queries"`
}

// GenerateQueries asks the reasoning service for QueriesPerUnit search
// queries. Malformed or short answers are completed with templated queries.
func (a *SectionAnalyzer) GenerateQueries(
	ctx context.Context, unit domain.AnalysisUnit, docCtx domain.DocumentContext,
) []string {
	user := fmt.Sprintf(a.prompts.load(driven.PromptQueryGenerationUser),
		FormatDocumentContext(docCtx), truncate(unit.Content, maxContextChars))
	raw, err := driven.Invoke(ctx, a.llm, a.prompts.load(driven.PromptQueryGenerationSystem), user,
		driven.ChatOptions{JSONMode: true})
	if err != nil {
		a.log.Warn("query generation failed for unit %s: %v", unit.ID, err)
		return TemplatedQueries(unit, docCtx)
	}

	var resp queriesResponse
	if err := decodeResponse(raw, &resp); err != nil {
		a.log.Warn("query generation response unparseable for unit %s: %v: %s",
			unit.ID, err, truncate(raw, maxLoggedResponse))
		return TemplatedQueries(unit, docCtx)
	}

	queries := make([]string, 0, QueriesPerUnit)
	seen := make(map[string]bool)
	for _, q := range resp.Queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
		if len(queries) == QueriesPerUnit {
			return queries
		}
	}
	for _, q := range TemplatedQueries(unit, docCtx) {
		if len(queries) == QueriesPerUnit {
			break
		}
		if key := strings.ToLower(q); !seen[key] {
			seen[key] = true
			queries = append(queries, q)
		}
	}
	return queries
}

// TemplatedQueries builds QueriesPerUnit deterministic queries from the
// document context and an excerpt of the unit.
func TemplatedQueries(unit domain.AnalysisUnit, docCtx domain.DocumentContext) []string {
	excerpt := firstWords(unit.Content, excerptWords)
	topic := strings.TrimSpace(strings.Join(nonEmpty(docCtx.LegalArea, docCtx.Domain), " "))
	if topic == "" {
		topic = "legal"
	}
	docType := docCtx.DocumentType
	if docType == "" {
		docType = "document"
	}

	candidates := []string{
		strings.Join(nonEmpty(topic, "requirements", prefixed("in", docCtx.Jurisdiction), prefixed("for", unit.Title)), " "),
		strings.Join(nonEmpty(docType, strings.Join(docCtx.KeyTerms, " "), excerpt), " "),
		strings.Join(nonEmpty(docCtx.Jurisdiction, "law", excerpt), " "),
		strings.Join(nonEmpty("legal obligations", excerpt), " "),
	}

	queries := make([]string, 0, QueriesPerUnit)
	seen := make(map[string]bool)
	for _, q := range candidates {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
		if len(queries) == QueriesPerUnit {
			break
		}
	}
	for i := 1; len(queries) < QueriesPerUnit; i++ {
		queries = append(queries, fmt.Sprintf("%s compliance %d", topic, i))
	}
	return queries
}

// SearchContext runs every query concurrently and merges the results,
// keeping the best score per chunk. Failed searches are logged and skipped.
func (a *SectionAnalyzer) SearchContext(
	ctx context.Context, queries []string, docCtx domain.DocumentContext,
) []domain.LegalContextItem {
	if a.index == nil || len(queries) == 0 {
		return nil
	}

	perQuery := make([][]domain.LegalContextItem, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			res, err := a.index.Search(ctx, driven.LegalSearchQuery{
				Query:          q,
				LegalArea:      docCtx.LegalArea,
				Jurisdiction:   docCtx.Jurisdiction,
				TopK:           a.search.TopK,
				IndexID:        a.search.IndexID,
				ScoreThreshold: a.search.ScoreThreshold,
			})
			if err != nil {
				a.log.Warn("legal search failed for %q: %v", q, err)
				return
			}
			perQuery[i] = res.Items()
		}(i, q)
	}
	wg.Wait()

	best := make(map[string]domain.LegalContextItem)
	var order []string
	for _, items := range perQuery {
		for _, item := range items {
			id := item.Source.ID
			prev, ok := best[id]
			if !ok {
				order = append(order, id)
			}
			if !ok || item.RelevanceScore > prev.RelevanceScore {
				best[id] = item
			}
		}
	}

	merged := make([]domain.LegalContextItem, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})
	return merged
}

// verdictResponse accepts both camelCase and snake_case field names.
type verdictResponse struct {
	IsCompliant      *bool    `json:"isCompliant"`
	IsCompliantSnake *bool    `json:"is_compliant"`
	Confidence       *float64 `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	Violations       []string `json:"violations"`
	Recommendations  []string `json:"recommendations"`
}

// ParseVerdict decodes a compliance verdict from a raw response.
func ParseVerdict(raw string) (domain.ComplianceVerdict, error) {
	var resp verdictResponse
	if err := decodeResponse(raw, &resp); err != nil {
		return domain.ComplianceVerdict{}, err
	}

	compliant := resp.IsCompliant
	if compliant == nil {
		compliant = resp.IsCompliantSnake
	}
	if compliant == nil {
		return domain.ComplianceVerdict{}, fmt.Errorf("%w: verdict has no isCompliant field", domain.ErrResponseParse)
	}

	confidence := 0.5
	if resp.Confidence != nil {
		confidence = min(max(*resp.Confidence, 0), 1)
	}

	return domain.ComplianceVerdict{
		IsCompliant:     *compliant,
		Confidence:      confidence,
		Reasoning:       strings.TrimSpace(resp.Reasoning),
		Violations:      nonEmpty(resp.Violations...),
		Recommendations: nonEmpty(resp.Recommendations...),
	}, nil
}

// judge asks for a verdict. A response that cannot be parsed yields the
// fallback verdict and fallback=true; a failed call is an error.
func (a *SectionAnalyzer) judge(
	ctx context.Context,
	system string,
	unit domain.AnalysisUnit,
	docCtx domain.DocumentContext,
	items []domain.LegalContextItem,
	attachment *driven.Attachment,
) (verdict domain.ComplianceVerdict, fallback bool, err error) {
	title := unit.Title
	if title == "" {
		title = unit.ID
	}
	user := fmt.Sprintf(a.prompts.load(driven.PromptComplianceUser),
		FormatDocumentContext(docCtx), title, unit.Content, FormatLegalContext(items))

	raw, err := driven.Invoke(ctx, a.llm, system, user, driven.ChatOptions{
		JSONMode:   true,
		Attachment: attachment,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.ComplianceVerdict{}, false, err
		}
		return domain.ComplianceVerdict{}, false, fmt.Errorf("%w: compliance call for %s: %w",
			domain.ErrUnitAnalysis, unit.ID, err)
	}

	verdict, err = ParseVerdict(raw)
	if err != nil {
		a.log.Warn("compliance response unparseable for unit %s: %v: %s",
			unit.ID, err, truncate(raw, maxLoggedResponse))
		return domain.FallbackVerdict(), true, nil
	}
	return verdict, false, nil
}

func (a *SectionAnalyzer) result(
	unit domain.AnalysisUnit,
	verdict domain.ComplianceVerdict,
	fallback bool,
	queries []string,
	items []domain.LegalContextItem,
) domain.UnitResult {
	sources := make([]domain.LegalSourceRef, 0, len(items))
	for _, item := range items {
		sources = append(sources, domain.LegalSourceRef{
			ChunkID:    item.Source.ID,
			DocumentID: item.Source.DocumentID,
			Score:      item.RelevanceScore,
			References: item.Source.LegalReferences,
		})
	}

	return domain.UnitResult{
		UnitID:       unit.ID,
		Title:        unit.Title,
		Content:      unit.Content,
		StartOffset:  unit.StartOffset,
		EndOffset:    unit.EndOffset,
		Verdict:      verdict,
		Queries:      queries,
		LegalSources: sources,
		Findings:     DeriveFindings(unit, verdict, items),
		Fallback:     fallback,
	}
}

// DeriveFindings creates one high-severity legal-violation finding per
// reported violation, located at the unit's offsets.
func DeriveFindings(
	unit domain.AnalysisUnit, verdict domain.ComplianceVerdict, items []domain.LegalContextItem,
) []domain.Finding {
	findings := make([]domain.Finding, 0, len(verdict.Violations))
	if len(verdict.Violations) == 0 {
		return findings
	}

	basis := legalBasis(items)
	evidence := []string{truncate(strings.TrimSpace(unit.Content), maxEvidenceChars)}
	for _, v := range verdict.Violations {
		findings = append(findings, domain.Finding{
			ID:          uuid.New().String(),
			Type:        domain.FindingTypeLegalViolation,
			Severity:    domain.SeverityHigh,
			Title:       truncate(v, maxFindingTitle),
			Description: v,
			Location: domain.Location{
				StartOffset:  unit.StartOffset,
				EndOffset:    unit.EndOffset,
				SectionLabel: unit.Title,
			},
			Evidence:   evidence,
			LegalBasis: basis,
		})
	}
	return findings
}

func legalBasis(items []domain.LegalContextItem) []string {
	var basis []string
	seen := make(map[string]bool)
	for _, item := range items {
		for _, ref := range item.Source.LegalReferences {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			basis = append(basis, ref)
			if len(basis) == maxLegalBasisItems {
				return basis
			}
		}
	}
	return basis
}

// FormatDocumentContext renders the document context for a prompt.
func FormatDocumentContext(docCtx domain.DocumentContext) string {
	var b strings.Builder
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", name, value)
		}
	}
	field("Document type", docCtx.DocumentType)
	field("Domain", docCtx.Domain)
	field("Jurisdiction", docCtx.Jurisdiction)
	field("Legal area", docCtx.LegalArea)
	field("Key terms", strings.Join(docCtx.KeyTerms, ", "))
	if b.Len() == 0 {
		return "(none provided)"
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatLegalContext renders retrieved legal context for a prompt.
func FormatLegalContext(items []domain.LegalContextItem) string {
	if len(items) == 0 {
		return "(no legal context retrieved; rely on generally applicable law)"
	}
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "[%d] relevance %.2f", i+1, item.RelevanceScore)
		if len(item.Source.LegalReferences) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(item.Source.LegalReferences, "; "))
		}
		fmt.Fprintf(&b, "\n%s\n\n", truncate(strings.TrimSpace(item.Source.Content), maxContextChars))
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func prefixed(prefix, value string) string {
	if value == "" {
		return ""
	}
	return prefix + " " + value
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
