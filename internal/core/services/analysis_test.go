package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// blockingExtractor holds every extraction until release is closed.
type blockingExtractor struct {
	mockExtractor
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingExtractor() *blockingExtractor {
	return &blockingExtractor{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (b *blockingExtractor) Extract(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return b.mockExtractor.Extract(ctx, data, contentType, filename)
}

// contractLLM segments contractText into its two clauses and finds the
// termination clause non-compliant.
func contractLLM() *mockLLM {
	second := strings.Index(contractText, "2. Termination")
	return &mockLLM{respond: func(system, user string, _ driven.ChatOptions) (string, error) {
		switch system {
		case DefaultPrompts[driven.PromptSegmentationSystem]:
			return fmt.Sprintf(`{"sections":[{"title":"Parties","start":0,"end":%d},{"title":"Termination","start":%d,"end":%d}]}`,
				second, second, len(contractText)), nil
		case DefaultPrompts[driven.PromptQueryGenerationSystem]:
			return `{"queries":["employment contract parties","termination notice","written form"]}`, nil
		case DefaultPrompts[driven.PromptComplianceSystem], DefaultPrompts[driven.PromptDirectSystem]:
			if strings.Contains(user, "Section: Termination") {
				return `{"isCompliant":false,"confidence":0.8,"reasoning":"Notice below statutory minimum.",` +
					`"violations":["Notice period shorter than statutory minimum"],"recommendations":["Extend notice"]}`, nil
			}
			return `{"isCompliant":true,"confidence":0.9,"reasoning":"Fine."}`, nil
		}
		return "", errors.New("unexpected prompt")
	}}
}

type analysisFixture struct {
	svc      *AnalysisService
	records  *memory.RecordStore
	notifier *mockNotifier
	events   *EventDispatcher
	llm      *mockLLM
}

func newAnalysisFixture(t *testing.T, llm *mockLLM, extractor driven.TextExtractor) *analysisFixture {
	t.Helper()
	f := &analysisFixture{
		records:  memory.NewRecordStore(),
		notifier: &mockNotifier{},
		llm:      llm,
	}
	f.events = NewEventDispatcher(f.notifier, WithRetryBackoff(0))
	t.Cleanup(f.events.Close)

	budget := domain.DefaultSettings().Budget
	f.svc = NewAnalysisService(AnalysisDeps{
		Extractor:    extractor,
		Segmenter:    NewSegmenter(llm, wordTokenizer{}, chunkingSettings(), nil),
		Orchestrator: NewBatchOrchestrator(NewBudgetEstimator(wordTokenizer{}, budget), budget, WithSleep((&noSleep{}).sleep)),
		Analyzer:     NewSectionAnalyzer(llm, &mockIndex{}, domain.SearchSettings{}, nil),
		Results:      NewCompactResultStore(f.records, 0, nil),
		Events:       f.events,
	})
	return f
}

func contractRequest(id string) domain.AnalysisRequest {
	return domain.AnalysisRequest{
		AnalysisID:  id,
		UserID:      "alice",
		Filename:    "employment.txt",
		ContentType: "text/plain",
		Data:        []byte(contractText),
		DocumentContext: domain.DocumentContext{
			Jurisdiction: "Germany",
			LegalArea:    "employment",
		},
	}
}

func TestAnalysisService_Run(t *testing.T) {
	f := newAnalysisFixture(t, contractLLM(), mockExtractor{})
	ctx := context.Background()

	result, err := f.svc.Run(ctx, contractRequest("a1"))

	require.NoError(t, err)
	assert.Equal(t, "a1", result.AnalysisID)
	assert.Equal(t, domain.StrategyLocalSectionSearch, result.Strategy)
	assert.Equal(t, domain.JobCompleted, result.Status)
	require.Len(t, result.Units, 2)
	assert.True(t, result.Units[0].Verdict.IsCompliant)
	assert.False(t, result.Units[1].Verdict.IsCompliant)
	assert.False(t, result.OverallCompliance.IsCompliant)
	assert.InDelta(t, 0.5, result.OverallCompliance.ComplianceScore, 1e-9)
	require.Len(t, result.Findings(), 1)
	assert.Equal(t, "Termination", result.Findings()[0].Location.SectionLabel)
	assert.Equal(t, []string{"Employer", "Employee"}, result.DocumentContext.KeyTerms)
	require.NotNil(t, result.CompletedAt)

	stored, err := f.svc.Result(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, result.Findings(), stored.Findings())
	assert.Equal(t, result.OverallCompliance, stored.OverallCompliance)

	job, err := f.svc.Status(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Percent)

	summaries, err := f.svc.List(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].UnitCount)

	f.events.Close()
	events := f.notifier.delivered()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventCompleted, last.Type)
	percents := []int{}
	for _, e := range events[:len(events)-1] {
		require.Equal(t, domain.EventProgress, e.Type)
		percents = append(percents, e.Progress.Percent)
	}
	assert.IsNonDecreasing(t, percents)
}

func TestAnalysisService_CreateJobDuplicateInFlight(t *testing.T) {
	extractor := newBlockingExtractor()
	f := newAnalysisFixture(t, contractLLM(), extractor)
	ctx := context.Background()

	first, err := f.svc.CreateJob(ctx, contractRequest("a1"))
	require.NoError(t, err)
	<-extractor.started

	second, err := f.svc.CreateJob(ctx, contractRequest("a1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	_, err = f.svc.Run(ctx, contractRequest("a1"))
	assert.ErrorIs(t, err, domain.ErrJobInProgress)

	assert.ErrorIs(t, f.svc.Delete(ctx, "a1"), domain.ErrJobInProgress)

	close(extractor.release)
	job, err := f.svc.Wait(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, int32(1), extractor.calls.Load(), "only one run executed")

	// A finished id can be started again.
	again, err := f.svc.CreateJob(ctx, contractRequest("a1"))
	require.NoError(t, err)
	assert.Equal(t, "a1", again.ID)
	<-extractor.started
	_, err = f.svc.Wait(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), extractor.calls.Load())
}

func TestAnalysisService_Cancel(t *testing.T) {
	extractor := newBlockingExtractor()
	f := newAnalysisFixture(t, contractLLM(), extractor)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, contractRequest("a1"))
	require.NoError(t, err)
	<-extractor.started

	require.NoError(t, f.svc.Cancel("a1"))
	close(extractor.release)

	job, err := f.svc.Wait(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, job.Status)
	assert.Empty(t, job.Error)
	assert.Zero(t, f.llm.callCount(), "no unit was analysed")

	_, err = f.svc.Result(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.svc.Cancel("a1"), domain.ErrNotFound)

	f.events.Close()
	events := f.notifier.delivered()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventCancelled, events[len(events)-1].Type)
}

func TestAnalysisService_WaitHonoursContext(t *testing.T) {
	extractor := newBlockingExtractor()
	f := newAnalysisFixture(t, contractLLM(), extractor)
	defer close(extractor.release)

	_, err := f.svc.CreateJob(context.Background(), contractRequest("a1"))
	require.NoError(t, err)
	<-extractor.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.Wait(ctx, "a1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	job, err := f.svc.Status(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, job.Status)
	assert.Equal(t, domain.StageExtract, job.Stage)
}

func TestAnalysisService_Failures(t *testing.T) {
	tests := []struct {
		name      string
		extractor driven.TextExtractor
		setup     func(*memory.RecordStore)
		data      []byte
		want      error
	}{
		{
			name:      "extraction error",
			extractor: mockExtractor{err: errors.New("corrupt pdf")},
			data:      []byte("%PDF"),
			want:      domain.ErrExtraction,
		},
		{
			name:      "no text",
			extractor: mockExtractor{},
			data:      []byte("   \n  "),
			want:      domain.ErrExtraction,
		},
		{
			name:      "no extractor",
			extractor: nil,
			data:      []byte(contractText),
			want:      domain.ErrExtraction,
		},
		{
			name:      "persistence",
			extractor: mockExtractor{},
			setup: func(r *memory.RecordStore) {
				r.FailWritesTo(CollectionAnalyses+"/a1", errors.New("write quota exceeded"))
			},
			data: []byte(contractText),
			want: domain.ErrPersistenceWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture(t, contractLLM(), tt.extractor)
			if tt.setup != nil {
				tt.setup(f.records)
			}
			req := contractRequest("a1")
			req.Data = tt.data

			_, err := f.svc.Run(context.Background(), req)
			require.ErrorIs(t, err, tt.want)

			job, err := f.svc.Status(context.Background(), "a1")
			require.NoError(t, err)
			assert.Equal(t, domain.JobFailed, job.Status)
			assert.NotEmpty(t, job.Error)

			_, err = f.svc.Result(context.Background(), "a1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestAnalysisService_InvalidRequests(t *testing.T) {
	f := newAnalysisFixture(t, contractLLM(), mockExtractor{})
	ctx := context.Background()

	_, err := f.svc.Run(ctx, domain.AnalysisRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req := contractRequest("a1")
	req.Strategy = "telepathy"
	_, err = f.svc.CreateJob(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalysisService_UnitFailureIsAbsorbed(t *testing.T) {
	llm := contractLLM()
	base := llm.respond
	llm.respond = func(system, user string, opts driven.ChatOptions) (string, error) {
		if system == DefaultPrompts[driven.PromptComplianceSystem] && strings.Contains(user, "Section: Parties") {
			return "", domain.ErrRateLimited
		}
		return base(system, user, opts)
	}
	f := newAnalysisFixture(t, llm, mockExtractor{})

	result, err := f.svc.Run(context.Background(), contractRequest("a1"))

	require.NoError(t, err)
	require.Len(t, result.Units, 2)
	assert.True(t, result.Units[0].Fallback)
	assert.LessOrEqual(t, result.Units[0].Verdict.Confidence, 0.3)
	assert.Equal(t, 1, result.OverallCompliance.FallbackCount)
	assert.Contains(t, result.OverallCompliance.Summary, "manual review")
}

func TestAnalysisService_DirectStrategy(t *testing.T) {
	f := newAnalysisFixture(t, contractLLM(), mockExtractor{})
	req := contractRequest("a1")
	req.Strategy = domain.StrategyDirectDocument

	result, err := f.svc.Run(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, result.Units, 1)
	assert.Equal(t, "employment", result.Units[0].Title)
	assert.Equal(t, contractText, result.Units[0].Content)

	require.Equal(t, 1, f.llm.callCount(), "no segmentation or query generation")
	call := f.llm.calls[0]
	assert.Equal(t, DefaultPrompts[driven.PromptDirectSystem], call.System)
	require.NotNil(t, call.Opts.Attachment)
	assert.Equal(t, "employment.txt", call.Opts.Attachment.Filename)
	assert.Equal(t, []byte(contractText), call.Opts.Attachment.Data)
}

func TestAnalysisService_ReverseAnonymization(t *testing.T) {
	f := newAnalysisFixture(t, contractLLM(), mockExtractor{})
	req := contractRequest("a1")
	req.Strategy = domain.StrategyDirectDocument
	req.Data = []byte(strings.Replace(contractText, "Employer", "[ORG_1]", 1))
	req.KeywordMap = map[string]string{"[ORG_1]": "Employer"}

	result, err := f.svc.Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, contractText, result.Units[0].Content)
}

func TestAnalysisService_StructuralFallbackWithoutSegmenter(t *testing.T) {
	records := memory.NewRecordStore()
	svc := NewAnalysisService(AnalysisDeps{
		Extractor:    mockExtractor{},
		Segmentation: domain.SegmentationStructural,
		Results:      NewCompactResultStore(records, 0, nil),
	})

	result, err := svc.Run(context.Background(), contractRequest("a1"))

	require.NoError(t, err)
	require.NotEmpty(t, result.Units)
	for _, u := range result.Units {
		assert.True(t, u.Fallback, "no analyzer configured")
	}
	assert.Equal(t, len(result.Units), result.OverallCompliance.FallbackCount)
}

func TestAnalysisService_Delete(t *testing.T) {
	f := newAnalysisFixture(t, contractLLM(), mockExtractor{})
	ctx := context.Background()

	_, err := f.svc.Run(ctx, contractRequest("a1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "a1"))
	_, err = f.svc.Result(ctx, "a1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "a1"), domain.ErrNotFound)
}
