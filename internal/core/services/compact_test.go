package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

func sampleResult(id, userID string, createdAt time.Time) *domain.AnalysisResult {
	completed := createdAt.Add(2 * time.Minute)
	units := []domain.UnitResult{
		{
			UnitID:      "unit_001",
			Title:       "Termination",
			Content:     "Either party may terminate without notice.",
			StartOffset: 0,
			EndOffset:   43,
			Verdict: domain.ComplianceVerdict{
				IsCompliant:     false,
				Confidence:      0.85,
				Reasoning:       "Statutory notice periods apply.",
				Violations:      []string{"No notice period"},
				Recommendations: []string{"Add a notice period"},
			},
			Queries:      []string{"termination notice period", "employment law", "legal obligations"},
			LegalSources: []domain.LegalSourceRef{{ChunkID: "c1", DocumentID: "bgb", Score: 0.91, References: []string{"§ 622 BGB"}}},
			Findings: []domain.Finding{{
				ID:          "f-1",
				Type:        domain.FindingTypeLegalViolation,
				Severity:    domain.SeverityHigh,
				Title:       "No notice period",
				Description: "No notice period",
				Location:    domain.Location{StartOffset: 0, EndOffset: 43, SectionLabel: "Termination"},
				Evidence:    []string{"Either party may terminate without notice."},
				LegalBasis:  []string{"§ 622 BGB"},
			}},
		},
		{
			UnitID:      "unit_002",
			Title:       "Governing law",
			Content:     "This agreement is governed by German law.",
			StartOffset: 44,
			EndOffset:   85,
			Verdict: domain.ComplianceVerdict{
				IsCompliant:     true,
				Confidence:      0.95,
				Reasoning:       "Choice of law is permitted.",
				Violations:      []string{},
				Recommendations: []string{},
			},
			Queries:  []string{"choice of law"},
			Findings: []domain.Finding{},
		},
	}
	return &domain.AnalysisResult{
		AnalysisID:        id,
		DocumentID:        "doc-" + id,
		UserID:            userID,
		Status:            domain.JobCompleted,
		Strategy:          domain.StrategyLocalSectionSearch,
		DocumentContext:   domain.DocumentContext{Jurisdiction: "DE", LegalArea: "employment"},
		Units:             units,
		OverallCompliance: Aggregate(units),
		CreatedAt:         createdAt,
		CompletedAt:       &completed,
	}
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestCompactExpand_RoundTrip(t *testing.T) {
	result := sampleResult("a1", "alice", baseTime)

	index, details := Compact(result)
	assert.Equal(t, []string{"f-1"}, index.Units[0].FindingIDs)
	assert.Empty(t, index.Units[1].FindingIDs)
	assert.Len(t, details.Findings, 1)

	got, gaps := Expand(index, details)
	assert.Empty(t, gaps)
	assert.Equal(t, result, got)
}

func TestExpand_UnresolvedFindingsDropped(t *testing.T) {
	result := sampleResult("a1", "alice", baseTime)
	index, details := Compact(result)
	index.Units[0].FindingIDs = append(index.Units[0].FindingIDs, "f-missing")

	got, gaps := Expand(index, details)
	assert.Equal(t, []string{"f-missing"}, gaps)
	require.Len(t, got.Units[0].Findings, 1)
	assert.Equal(t, "f-1", got.Units[0].Findings[0].ID)

	got, gaps = Expand(index, nil)
	assert.Equal(t, []string{"f-1", "f-missing"}, gaps)
	assert.Empty(t, got.Units[0].Findings)
	assert.NotNil(t, got.Units[0].Findings)
}

func TestCompactResultStore_SaveGet(t *testing.T) {
	records := memory.NewRecordStore()
	store := NewCompactResultStore(records, 0, nil)
	ctx := context.Background()
	result := sampleResult("a1", "alice", baseTime)

	require.NoError(t, store.Save(ctx, result))
	assert.Equal(t, 2, records.Len())

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, result, got)
}

func TestCompactResultStore_GetWithoutDetails(t *testing.T) {
	records := memory.NewRecordStore()
	store := NewCompactResultStore(records, 0, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleResult("a1", "alice", baseTime)))

	require.NoError(t, records.Delete(ctx, detailsPath("a1")))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got.Units, 2)
	assert.Empty(t, got.Units[0].Findings)
	assert.Equal(t, "No notice period", got.Units[0].Verdict.Violations[0])
}

func TestCompactResultStore_GetUndecodableDetails(t *testing.T) {
	records := memory.NewRecordStore()
	store := NewCompactResultStore(records, 0, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleResult("a1", "alice", baseTime)))
	require.NoError(t, records.BatchSet(ctx, []driven.RecordWrite{
		{Path: detailsPath("a1"), Data: []byte(`{"findings":[1,2]}`)},
	}))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got.Findings())
}

func TestCompactResultStore_GetMissing(t *testing.T) {
	store := NewCompactResultStore(memory.NewRecordStore(), 0, nil)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompactResultStore_SaveIsAtomic(t *testing.T) {
	records := memory.NewRecordStore()
	records.FailWritesTo(detailsPath("a1"), errors.New("quota exceeded"))
	store := NewCompactResultStore(records, 0, nil)

	err := store.Save(context.Background(), sampleResult("a1", "alice", baseTime))

	require.ErrorIs(t, err, domain.ErrPersistenceWrite)
	assert.Zero(t, records.Len())
}

func TestCompactResultStore_OversizedIndex(t *testing.T) {
	ctx := context.Background()
	result := sampleResult("a1", "alice", baseTime)
	result.Units[0].Content = strings.Repeat("Long clause text. ", 500)

	t.Run("truncates content to fit", func(t *testing.T) {
		records := memory.NewRecordStore()
		store := NewCompactResultStore(records, 4096, nil)

		require.NoError(t, store.Save(ctx, result))

		data, err := records.Get(ctx, analysisPath("a1"))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(data), 4096)

		var index domain.CompactIndex
		require.NoError(t, json.Unmarshal(data, &index))
		assert.True(t, index.Units[0].ContentTruncated)
		assert.False(t, index.Units[1].ContentTruncated)

		got, err := store.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Len(t, got.Units[0].Findings, 1)
	})

	t.Run("fails when still too large", func(t *testing.T) {
		records := memory.NewRecordStore()
		store := NewCompactResultStore(records, 200, nil)

		err := store.Save(ctx, result)

		assert.ErrorIs(t, err, domain.ErrRecordTooLarge)
		assert.ErrorIs(t, err, domain.ErrPersistenceWrite)
		assert.Zero(t, records.Len())
	})
}

func TestCompactResultStore_List(t *testing.T) {
	store := NewCompactResultStore(memory.NewRecordStore(), 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleResult("a1", "alice", baseTime)))
	require.NoError(t, store.Save(ctx, sampleResult("a2", "bob", baseTime.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, sampleResult("a3", "alice", baseTime.Add(2*time.Hour))))

	summaries, err := store.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "a3", summaries[0].AnalysisID)
	assert.Equal(t, "a1", summaries[1].AnalysisID)
	assert.Equal(t, 2, summaries[0].UnitCount)
	assert.InDelta(t, 0.5, summaries[0].ComplianceScore, 1e-9)

	all, err := store.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a3", all[0].AnalysisID)
}

func TestCompactResultStore_Delete(t *testing.T) {
	records := memory.NewRecordStore()
	store := NewCompactResultStore(records, 0, nil)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleResult("a1", "alice", baseTime)))
	require.NoError(t, store.SaveJob(ctx, &domain.Job{ID: "a1", Status: domain.JobCompleted}))

	require.NoError(t, store.Delete(ctx, "a1"))
	assert.Zero(t, records.Len())

	assert.ErrorIs(t, store.Delete(ctx, "a1"), domain.ErrNotFound)
}

func TestCompactResultStore_Jobs(t *testing.T) {
	store := NewCompactResultStore(memory.NewRecordStore(), 0, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &domain.Job{ID: "j1", UserID: "alice", Status: domain.JobPending}))
	require.NoError(t, store.SaveJob(ctx, &domain.Job{ID: "j1", Status: domain.JobProcessing, Stage: domain.StageSplit, Percent: 15}))

	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, job.Status)
	assert.Equal(t, domain.StageSplit, job.Stage)
	assert.Equal(t, 15, job.Percent)
	assert.Equal(t, "alice", job.UserID, "merge keeps fields the update omits")

	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
