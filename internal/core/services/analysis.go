package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
	"github.com/custodia-labs/lexcheck/internal/logger"
	"github.com/custodia-labs/lexcheck/internal/postprocessors/chunker"
)

// Ensure AnalysisService implements the interface.
var _ driving.AnalysisService = (*AnalysisService)(nil)

// Progress percentages at stage boundaries. The analyze stage spans
// analyzeStart to analyzeEnd in proportion to settled units.
const (
	percentExtract   = 5
	percentSplit     = 15
	percentContext   = 25
	analyzeStart     = 30
	analyzeEnd       = 85
	percentAggregate = 90
	percentSave      = 95
)

// AnalysisDeps are the collaborators of an AnalysisService. Results is
// required; everything else degrades when nil.
type AnalysisDeps struct {
	Extractor    driven.TextExtractor
	Chunking     driving.ChunkingService
	Segmenter    *Segmenter
	Orchestrator *BatchOrchestrator
	Analyzer     *SectionAnalyzer
	Results      *CompactResultStore
	Events       *EventDispatcher

	// Segmentation selects semantic or structural analysis units.
	Segmentation domain.SegmentationMode

	Logger *logger.Logger
}

// jobHandle tracks one in-flight analysis.
type jobHandle struct {
	job       domain.Job // guarded by AnalysisService.mu
	cancelled atomic.Bool
	done      chan struct{}
}

// AnalysisService runs the analysis pipeline: extract, split, derive
// context, analyse in batches, aggregate and save. At most one run per
// analysis id is active at a time.
type AnalysisService struct {
	deps AnalysisDeps
	log  *logger.Logger
	now  func() time.Time

	mu       sync.Mutex
	inflight map[string]*jobHandle
}

// NewAnalysisService creates an analysis service.
func NewAnalysisService(deps AnalysisDeps) *AnalysisService {
	if deps.Orchestrator == nil {
		deps.Orchestrator = NewBatchOrchestrator(nil, domain.DefaultSettings().Budget,
			WithBatchLogger(deps.Logger))
	}
	if deps.Segmentation == "" {
		deps.Segmentation = domain.SegmentationSemantic
	}
	return &AnalysisService{
		deps:     deps,
		log:      deps.Logger,
		now:      time.Now,
		inflight: make(map[string]*jobHandle),
	}
}

// CreateJob starts an analysis detached from ctx and returns its job.
// Starting an id that is already in flight returns the running job.
func (s *AnalysisService) CreateJob(ctx context.Context, req domain.AnalysisRequest) (*domain.Job, error) {
	req, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	h, created := s.register(req)
	job := s.snapshot(h)
	if !created {
		s.log.Info("analysis %s already in flight, not starting again", req.AnalysisID)
		return job, nil
	}

	s.saveJob(ctx, job)
	go s.execute(context.WithoutCancel(ctx), h, req) //nolint:errcheck // outcome recorded on the job
	return job, nil
}

// Run executes an analysis synchronously.
func (s *AnalysisService) Run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	req, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	h, created := s.register(req)
	if !created {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobInProgress, req.AnalysisID)
	}
	s.saveJob(ctx, s.snapshot(h))
	return s.execute(ctx, h, req)
}

// Cancel requests cancellation of an in-flight analysis. It takes effect
// at the next stage checkpoint.
func (s *AnalysisService) Cancel(analysisID string) error {
	s.mu.Lock()
	h, ok := s.inflight[analysisID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no running analysis %s", domain.ErrNotFound, analysisID)
	}
	h.cancelled.Store(true)
	s.log.Info("cancellation requested for %s", analysisID)
	return nil
}

// Status returns the live job of an in-flight analysis, or the stored job.
func (s *AnalysisService) Status(ctx context.Context, analysisID string) (*domain.Job, error) {
	s.mu.Lock()
	h, ok := s.inflight[analysisID]
	s.mu.Unlock()
	if ok {
		return s.snapshot(h), nil
	}
	return s.deps.Results.GetJob(ctx, analysisID)
}

// Wait blocks until the analysis leaves the in-flight set or ctx is done.
func (s *AnalysisService) Wait(ctx context.Context, analysisID string) (*domain.Job, error) {
	s.mu.Lock()
	h, ok := s.inflight[analysisID]
	s.mu.Unlock()
	if ok {
		select {
		case <-h.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Status(ctx, analysisID)
}

// Result returns the reconstructed result of a stored analysis.
func (s *AnalysisService) Result(ctx context.Context, analysisID string) (*domain.AnalysisResult, error) {
	return s.deps.Results.Get(ctx, analysisID)
}

// List returns a user's analyses, newest first.
func (s *AnalysisService) List(ctx context.Context, userID string, limit int) ([]domain.AnalysisSummary, error) {
	return s.deps.Results.List(ctx, userID, limit)
}

// Delete removes a stored analysis. In-flight analyses cannot be deleted.
func (s *AnalysisService) Delete(ctx context.Context, analysisID string) error {
	s.mu.Lock()
	_, running := s.inflight[analysisID]
	s.mu.Unlock()
	if running {
		return fmt.Errorf("%w: %s", domain.ErrJobInProgress, analysisID)
	}
	return s.deps.Results.Delete(ctx, analysisID)
}

func (s *AnalysisService) prepare(req domain.AnalysisRequest) (domain.AnalysisRequest, error) {
	if len(req.Data) == 0 {
		return req, fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}
	if req.Strategy == "" {
		req.Strategy = domain.StrategyLocalSectionSearch
	}
	if !req.Strategy.IsValid() {
		return req, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidInput, req.Strategy)
	}
	if req.AnalysisID == "" {
		req.AnalysisID = uuid.New().String()
	}
	if req.DocumentID == "" {
		req.DocumentID = uuid.New().String()
	}
	return req, nil
}

// register adds the analysis to the in-flight set. created is false if an
// analysis with the same id is already running.
func (s *AnalysisService) register(req domain.AnalysisRequest) (h *jobHandle, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.inflight[req.AnalysisID]; ok {
		return h, false
	}
	now := s.now().UTC()
	h = &jobHandle{
		job: domain.Job{
			ID:         req.AnalysisID,
			DocumentID: req.DocumentID,
			UserID:     req.UserID,
			Status:     domain.JobPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		done: make(chan struct{}),
	}
	s.inflight[req.AnalysisID] = h
	return h, true
}

func (s *AnalysisService) release(h *jobHandle) {
	s.mu.Lock()
	delete(s.inflight, h.job.ID)
	s.mu.Unlock()
	close(h.done)
}

func (s *AnalysisService) snapshot(h *jobHandle) *domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := h.job
	return &job
}

// execute runs the pipeline and records its terminal status.
func (s *AnalysisService) execute(ctx context.Context, h *jobHandle, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	defer s.release(h)

	result, err := s.pipeline(ctx, h, req)
	persistCtx := context.WithoutCancel(ctx)
	switch {
	case errors.Is(err, domain.ErrCancelled):
		s.log.Info("analysis %s cancelled", req.AnalysisID)
		s.finish(persistCtx, h, domain.JobCancelled, "")
		s.deps.Events.OnCancelled(req.AnalysisID)
	case err != nil:
		s.log.Error("analysis %s failed: %v", req.AnalysisID, err)
		s.finish(persistCtx, h, domain.JobFailed, err.Error())
		s.deps.Events.OnFailed(req.AnalysisID, err)
	default:
		s.log.Info("analysis %s completed: %s", req.AnalysisID, result.OverallCompliance.Summary)
		s.finish(persistCtx, h, domain.JobCompleted, "")
		s.deps.Events.OnCompleted(req.AnalysisID, result.OverallCompliance)
	}
	return result, err
}

func (s *AnalysisService) pipeline(ctx context.Context, h *jobHandle, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	s.log.Section("Analysis " + req.AnalysisID)
	createdAt := s.snapshot(h).CreatedAt

	// 1. Extract text
	s.progress(ctx, h, domain.StageExtract, percentExtract, "extracting text")
	text, err := s.extract(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.checkpoint(h); err != nil {
		return nil, err
	}

	// 2. Split into analysis units
	s.progress(ctx, h, domain.StageSplit, percentSplit, "splitting document")
	units := s.split(ctx, text, req)
	s.log.Debug("analysis %s: %d units", req.AnalysisID, len(units))
	if err := s.checkpoint(h); err != nil {
		return nil, err
	}

	// 3. Derive document context
	s.progress(ctx, h, domain.StageContext, percentContext, "deriving document context")
	docCtx := s.documentContext(text, req)
	if err := s.checkpoint(h); err != nil {
		return nil, err
	}

	// 4. Analyse units in rate-limited batches
	s.progress(ctx, h, domain.StageAnalyze, analyzeStart, fmt.Sprintf("analysing %d sections", len(units)))
	results := s.analyze(ctx, h, units, docCtx, req)
	if err := s.checkpoint(h); err != nil {
		return nil, err
	}

	// 5. Aggregate
	s.progress(ctx, h, domain.StageAggregate, percentAggregate, "aggregating verdicts")
	completedAt := s.now().UTC()
	result := &domain.AnalysisResult{
		AnalysisID:        req.AnalysisID,
		DocumentID:        req.DocumentID,
		UserID:            req.UserID,
		Status:            domain.JobCompleted,
		Strategy:          req.Strategy,
		DocumentContext:   docCtx,
		Units:             results,
		OverallCompliance: Aggregate(results),
		CreatedAt:         createdAt,
		CompletedAt:       &completedAt,
	}

	// 6. Save
	if err := s.checkpoint(h); err != nil {
		return nil, err
	}
	s.progress(ctx, h, domain.StageSave, percentSave, "saving result")
	if err := s.deps.Results.Save(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AnalysisService) checkpoint(h *jobHandle) error {
	if h.cancelled.Load() {
		return domain.ErrCancelled
	}
	return nil
}

func (s *AnalysisService) extract(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	if s.deps.Extractor == nil {
		return "", fmt.Errorf("%w: no text extractor configured", domain.ErrExtraction)
	}
	text, err := s.deps.Extractor.Extract(ctx, req.Data, req.ContentType, req.Filename)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	if len(req.KeywordMap) > 0 {
		text = s.deps.Extractor.ReverseAnonymization(text, req.KeywordMap)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document contains no text", domain.ErrExtraction)
	}
	return text, nil
}

// split produces the analysis units. The direct strategy always yields the
// whole document as one unit.
func (s *AnalysisService) split(ctx context.Context, text string, req domain.AnalysisRequest) []domain.AnalysisUnit {
	if req.Strategy == domain.StrategyDirectDocument {
		return wholeDocument(text, req.Filename)
	}

	var units []domain.AnalysisUnit
	switch {
	case s.deps.Segmentation == domain.SegmentationSemantic && s.deps.Segmenter != nil:
		units = s.deps.Segmenter.Segment(ctx, text)
	case s.deps.Chunking != nil:
		chunks, err := s.deps.Chunking.Chunk(ctx, &domain.Document{
			ID:      req.DocumentID,
			Title:   req.Filename,
			Content: text,
			Hints:   req.Hints,
		})
		if err != nil {
			s.log.Warn("structural split failed, using fixed-size units: %v", err)
			units = fixedUnits(text)
		} else {
			units = UnitsFromChunks(chunks)
		}
	default:
		units = fixedUnits(text)
	}

	if len(units) == 0 {
		return wholeDocument(text, req.Filename)
	}
	return units
}

// documentContext completes the request's context with locally derived
// key terms and document type.
func (s *AnalysisService) documentContext(text string, req domain.AnalysisRequest) domain.DocumentContext {
	docCtx := req.DocumentContext
	if len(docCtx.KeyTerms) == 0 {
		docCtx.KeyTerms = DetectKeyTerms(text)
	}
	if docCtx.DocumentType == "" && s.deps.Chunking != nil {
		profile := s.deps.Chunking.Profile(&domain.Document{Content: text, Hints: req.Hints})
		if profile.Kind != domain.KindOther {
			docCtx.DocumentType = string(profile.Kind)
		}
	}
	return docCtx
}

func (s *AnalysisService) analyze(
	ctx context.Context,
	h *jobHandle,
	units []domain.AnalysisUnit,
	docCtx domain.DocumentContext,
	req domain.AnalysisRequest,
) []domain.UnitResult {
	var fn UnitFunc
	switch {
	case s.deps.Analyzer == nil:
		s.log.Warn("no analyzer configured, every section gets the fallback verdict")
	case req.Strategy == domain.StrategyDirectDocument:
		attachment := &driven.Attachment{Filename: req.Filename, ContentType: req.ContentType, Data: req.Data}
		fn = func(ctx context.Context, unit domain.AnalysisUnit, docCtx domain.DocumentContext) (domain.UnitResult, error) {
			return s.deps.Analyzer.AnalyzeDirect(ctx, unit, docCtx, attachment)
		}
	default:
		fn = s.deps.Analyzer.Analyze
	}

	progress := func(done, total int) {
		percent := analyzeStart + (analyzeEnd-analyzeStart)*done/total
		s.progress(ctx, h, domain.StageAnalyze, percent, fmt.Sprintf("analysed %d of %d sections", done, total))
	}
	return s.deps.Orchestrator.Run(ctx, units, docCtx, fn, progress)
}

// progress updates the live job, persists it and emits a progress event.
// Persistence and delivery are best effort.
func (s *AnalysisService) progress(ctx context.Context, h *jobHandle, stage domain.Stage, percent int, msg string) {
	s.mu.Lock()
	h.job.Status = domain.JobProcessing
	h.job.Stage = stage
	h.job.Percent = percent
	h.job.Message = msg
	h.job.UpdatedAt = s.now().UTC()
	job := h.job
	s.mu.Unlock()

	s.log.Debug("analysis %s: %s %d%% %s", job.ID, stage, percent, msg)
	s.saveJob(ctx, &job)
	s.deps.Events.OnProgress(job.ID, domain.Progress{Stage: stage, Percent: percent, Message: msg})
}

func (s *AnalysisService) finish(ctx context.Context, h *jobHandle, status domain.JobStatus, errMsg string) {
	s.mu.Lock()
	h.job.Status = status
	h.job.Error = errMsg
	h.job.UpdatedAt = s.now().UTC()
	if status == domain.JobCompleted {
		h.job.Percent = 100
		h.job.Message = "done"
	}
	job := h.job
	s.mu.Unlock()

	s.saveJob(ctx, &job)
}

func (s *AnalysisService) saveJob(ctx context.Context, job *domain.Job) {
	if err := s.deps.Results.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		s.log.Warn("saving job %s: %v", job.ID, err)
	}
}

func wholeDocument(text, filename string) []domain.AnalysisUnit {
	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if filename == "" {
		title = "Document"
	}
	return []domain.AnalysisUnit{{
		ID:          "unit_001",
		Title:       title,
		Content:     text,
		StartOffset: 0,
		EndOffset:   len(text),
	}}
}

func fixedUnits(text string) []domain.AnalysisUnit {
	var units []domain.AnalysisUnit
	for _, sp := range chunker.FixedSpans(text, domain.DefaultSettings().Chunking.FallbackChunkChars) {
		if strings.TrimSpace(text[sp.Start:sp.End]) == "" {
			continue
		}
		units = append(units, domain.AnalysisUnit{
			Content:     text[sp.Start:sp.End],
			StartOffset: sp.Start,
			EndOffset:   sp.End,
		})
	}
	return numberUnits(units)
}
