package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Record collections.
const (
	CollectionAnalyses = "analyses"
	CollectionDetails  = "analysis_details"
	CollectionJobs     = "jobs"
)

// excerptBytes is how much unit content survives truncation of an
// oversized index.
const excerptBytes = 500

// CompactResultStore persists analysis results as a size-bounded compact
// index plus an unbounded details blob, and reconstructs them on read.
type CompactResultStore struct {
	store    driven.RecordStore
	maxBytes int
	log      *logger.Logger
}

// NewCompactResultStore creates a result store. maxIndexBytes is the
// per-record ceiling for the compact index; zero disables the check.
func NewCompactResultStore(store driven.RecordStore, maxIndexBytes int, log *logger.Logger) *CompactResultStore {
	return &CompactResultStore{
		store:    store,
		maxBytes: maxIndexBytes,
		log:      log,
	}
}

func analysisPath(id string) string { return CollectionAnalyses + "/" + id }
func detailsPath(id string) string  { return CollectionDetails + "/" + id }
func jobPath(id string) string      { return CollectionJobs + "/" + id }

// Compact splits a result into its index and details halves.
func Compact(result *domain.AnalysisResult) (*domain.CompactIndex, *domain.DetailsBlob) {
	index := &domain.CompactIndex{
		AnalysisID:        result.AnalysisID,
		DocumentID:        result.DocumentID,
		UserID:            result.UserID,
		Status:            result.Status,
		Strategy:          result.Strategy,
		DocumentContext:   result.DocumentContext,
		Units:             make([]domain.CompactUnit, 0, len(result.Units)),
		OverallCompliance: result.OverallCompliance,
		CreatedAt:         result.CreatedAt.UTC(),
		CompletedAt:       result.CompletedAt,
	}
	details := &domain.DetailsBlob{
		AnalysisID: result.AnalysisID,
		Findings:   make(map[string]domain.Finding),
	}

	for _, u := range result.Units {
		index.Units = append(index.Units, domain.CompactUnit{
			UnitID:       u.UnitID,
			Title:        u.Title,
			Content:      u.Content,
			StartOffset:  u.StartOffset,
			EndOffset:    u.EndOffset,
			Verdict:      u.Verdict,
			Queries:      u.Queries,
			LegalSources: u.LegalSources,
			FindingIDs:   u.FindingIDs(),
			Fallback:     u.Fallback,
		})
		for _, f := range u.Findings {
			details.Findings[f.ID] = f
		}
	}
	return index, details
}

// Expand rebuilds a result from its halves. details may be nil. Finding ids
// that do not resolve are dropped and reported in gaps.
func Expand(index *domain.CompactIndex, details *domain.DetailsBlob) (result *domain.AnalysisResult, gaps []string) {
	result = &domain.AnalysisResult{
		AnalysisID:        index.AnalysisID,
		DocumentID:        index.DocumentID,
		UserID:            index.UserID,
		Status:            index.Status,
		Strategy:          index.Strategy,
		DocumentContext:   index.DocumentContext,
		Units:             make([]domain.UnitResult, 0, len(index.Units)),
		OverallCompliance: index.OverallCompliance,
		CreatedAt:         index.CreatedAt,
		CompletedAt:       index.CompletedAt,
	}

	for _, cu := range index.Units {
		findings := make([]domain.Finding, 0, len(cu.FindingIDs))
		for _, id := range cu.FindingIDs {
			if details == nil {
				gaps = append(gaps, id)
				continue
			}
			f, ok := details.Findings[id]
			if !ok {
				gaps = append(gaps, id)
				continue
			}
			findings = append(findings, f)
		}
		result.Units = append(result.Units, domain.UnitResult{
			UnitID:       cu.UnitID,
			Title:        cu.Title,
			Content:      cu.Content,
			StartOffset:  cu.StartOffset,
			EndOffset:    cu.EndOffset,
			Verdict:      cu.Verdict,
			Queries:      cu.Queries,
			LegalSources: cu.LegalSources,
			Findings:     findings,
			Fallback:     cu.Fallback,
		})
	}
	return result, gaps
}

// Save writes the index and details of result in one atomic batch.
func (s *CompactResultStore) Save(ctx context.Context, result *domain.AnalysisResult) error {
	index, details := Compact(result)

	indexData, err := s.encodeIndex(index)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceWrite, err)
	}
	detailsData, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("%w: encode details: %w", domain.ErrPersistenceWrite, err)
	}

	err = s.store.BatchSet(ctx, []driven.RecordWrite{
		{Path: analysisPath(result.AnalysisID), Data: indexData},
		{Path: detailsPath(result.AnalysisID), Data: detailsData},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceWrite, err)
	}

	s.log.Debug("saved analysis %s: index %d bytes, %d findings", result.AnalysisID, len(indexData), len(details.Findings))
	return nil
}

// encodeIndex marshals the index, truncating unit content to excerpts when
// the full index exceeds the size ceiling.
func (s *CompactResultStore) encodeIndex(index *domain.CompactIndex) ([]byte, error) {
	data, err := json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	if s.maxBytes <= 0 || len(data) <= s.maxBytes {
		return data, nil
	}

	s.log.Warn("index for %s is %d bytes (limit %d), truncating unit content", index.AnalysisID, len(data), s.maxBytes)
	for i := range index.Units {
		u := &index.Units[i]
		if len(u.Content) > excerptBytes {
			u.Content = truncate(u.Content, excerptBytes)
			u.ContentTruncated = true
		}
	}
	data, err = json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	if len(data) > s.maxBytes {
		return nil, fmt.Errorf("%w: index is %d bytes, limit %d", domain.ErrRecordTooLarge, len(data), s.maxBytes)
	}
	return data, nil
}

// Get loads and reconstructs a result. A missing index is ErrNotFound. A
// missing or unreadable details blob, or an unresolved finding id, is
// logged and yields empty findings; it never fails the read.
func (s *CompactResultStore) Get(ctx context.Context, analysisID string) (*domain.AnalysisResult, error) {
	data, err := s.store.Get(ctx, analysisPath(analysisID))
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", analysisID, err)
	}
	var index domain.CompactIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", analysisID, err)
	}

	details := s.loadDetails(ctx, analysisID)
	result, gaps := Expand(&index, details)
	if len(gaps) > 0 {
		s.log.Warn("analysis %s: %d finding references could not be resolved", analysisID, len(gaps))
	}
	return result, nil
}

func (s *CompactResultStore) loadDetails(ctx context.Context, analysisID string) *domain.DetailsBlob {
	data, err := s.store.Get(ctx, detailsPath(analysisID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("analysis %s: details blob missing", analysisID)
		} else {
			s.log.Warn("analysis %s: details blob unreadable: %v", analysisID, err)
		}
		return nil
	}
	var details domain.DetailsBlob
	if err := json.Unmarshal(data, &details); err != nil {
		s.log.Warn("analysis %s: details blob undecodable: %v", analysisID, err)
		return nil
	}
	return &details
}

// List returns summaries of stored analyses, newest first. An empty userID
// lists every user's analyses.
func (s *CompactResultStore) List(ctx context.Context, userID string, limit int) ([]domain.AnalysisSummary, error) {
	q := driven.RecordQuery{
		Collection: CollectionAnalyses,
		OrderBy:    "created_at",
		Desc:       true,
		Limit:      limit,
	}
	if userID != "" {
		q.Equals = map[string]any{"user_id": userID}
	}

	records, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	summaries := make([]domain.AnalysisSummary, 0, len(records))
	for _, rec := range records {
		var index domain.CompactIndex
		if err := json.Unmarshal(rec.Data, &index); err != nil {
			s.log.Warn("skipping undecodable analysis record %s: %v", rec.Path, err)
			continue
		}
		summaries = append(summaries, index.Summary())
	}
	return summaries, nil
}

// Delete removes a stored analysis and its job record.
func (s *CompactResultStore) Delete(ctx context.Context, analysisID string) error {
	if _, err := s.store.Get(ctx, analysisPath(analysisID)); err != nil {
		return fmt.Errorf("get analysis %s: %w", analysisID, err)
	}
	return s.store.Delete(ctx, analysisPath(analysisID), detailsPath(analysisID), jobPath(analysisID))
}

// SaveJob merges the job record into the store.
func (s *CompactResultStore) SaveJob(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return s.store.BatchSet(ctx, []driven.RecordWrite{{Path: jobPath(job.ID), Data: data, Merge: true}})
}

// GetJob loads a job record.
func (s *CompactResultStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.store.Get(ctx, jobPath(id))
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}
