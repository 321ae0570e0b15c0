package cli

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// mockAnalysisService is a mock implementation of driving.AnalysisService.
type mockAnalysisService struct {
	mu sync.Mutex

	job       *domain.Job
	status    *domain.Job
	result    *domain.AnalysisResult
	summaries []domain.AnalysisSummary
	err       error
	resultErr error
	deleteErr error
	waitDelay time.Duration
	lastReq   domain.AnalysisRequest
	lastUser  string
	lastLimit int
	cancelled []string
	deleted   []string
}

func (m *mockAnalysisService) CreateJob(_ context.Context, req domain.AnalysisRequest) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	id := req.AnalysisID
	if id == "" {
		id = "an-1"
	}
	return &domain.Job{ID: id, Status: domain.JobPending}, nil
}

func (m *mockAnalysisService) Run(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastReq = req
	return m.result, m.err
}

func (m *mockAnalysisService) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockAnalysisService) Status(_ context.Context, _ string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return nil, domain.ErrNotFound
	}
	return m.status, nil
}

func (m *mockAnalysisService) Wait(_ context.Context, _ string) (*domain.Job, error) {
	time.Sleep(m.waitDelay)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job, nil
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

func (m *mockAnalysisService) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.deleteErr
}

// mockChunkingService is a mock implementation of driving.ChunkingService.
type mockChunkingService struct {
	lastDoc *domain.Document
}

func (m *mockChunkingService) Profile(doc *domain.Document) domain.StructureProfile {
	m.lastDoc = doc
	return domain.StructureProfile{
		Kind: domain.KindContract, Language: domain.LanguageEnglish,
		HasSections: true, Complexity: domain.ComplexityLow,
	}
}

func (m *mockChunkingService) Chunk(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	offset := 0
	for i, part := range strings.SplitAfter(doc.Content, "\n\n") {
		chunks = append(chunks, domain.Chunk{
			Index: i, Level: domain.LevelSection, Section: string(rune('1' + i)), Content: part,
			StartOffset: offset, EndOffset: offset + len(part), LegalReferences: []string{"Art. 6 GDPR"},
		})
		offset += len(part)
	}
	return chunks, nil
}

// mockCorpusService is a mock implementation of driving.CorpusService.
type mockCorpusService struct {
	requests []domain.IndexRequest
	sources  []domain.LegalSource
	err      error
}

func (m *mockCorpusService) Index(_ context.Context, req domain.IndexRequest) (*domain.LegalSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.requests = append(m.requests, req)
	id := req.SourceID
	if id == "" {
		id = domain.SourceIDFromFilename(req.Filename)
	}
	return &domain.LegalSource{
		ID: id, Title: req.Title, Jurisdiction: req.Jurisdiction, LegalArea: req.LegalArea,
		Chunks: strings.Count(string(req.Data), "\n\n") + 1, References: 1,
	}, nil
}

func (m *mockCorpusService) Sources(_ context.Context) ([]domain.LegalSource, error) {
	return m.sources, m.err
}

// mockReader is a mock DocumentReader that returns the data unchanged.
type mockReader struct {
	err error
}

func (m *mockReader) Extract(_ context.Context, data []byte, _, _ string) (string, error) {
	return string(data), m.err
}

func (m *mockReader) ReverseAnonymization(text string, _ map[string]string) string {
	return text
}

func (m *mockReader) Title(_ []byte, _, filename string) string {
	return "Title of " + filename
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    *domain.Settings
	validateErr error
	llmErr      error
	embedErr    error
	searchErr   error
	setErr      error
	values      map[string]string
	llmProvider domain.AIProvider
	llmModel    string
	llmKey      string
}

func newMockSettingsService() *mockSettingsService {
	s := domain.DefaultSettings()
	s.LLM.APIKey = "sk-test-1234567890"
	return &mockSettingsService{settings: &s, values: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.Settings, error) { return m.settings, nil }

func (m *mockSettingsService) Save(s *domain.Settings) error {
	m.settings = s
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.llmProvider, m.llmModel, m.llmKey = provider, model, apiKey
	return nil
}

func (m *mockSettingsService) SetValue(key, raw string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = raw
	return nil
}

func (m *mockSettingsService) Validate() error                { return m.validateErr }
func (m *mockSettingsService) GetDefaults() domain.Settings   { return domain.DefaultSettings() }
func (m *mockSettingsService) ValidateLLMConfig() error       { return m.llmErr }
func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.embedErr }
func (m *mockSettingsService) ValidateSearchConfig() error    { return m.searchErr }

// setupTestServices installs mocks and returns a cleanup function.
func setupTestServices(analysis *mockAnalysisService) (*mockSettingsService, func()) {
	settings := newMockSettingsService()
	SetServices(Services{
		Analysis: analysis,
		Chunking: &mockChunkingService{},
		Settings: settings,
		Reader:   &mockReader{},
		Corpus:   &mockCorpusService{},
	})
	resetCommandFlags()

	origTerminal := stderrIsTerminal
	stderrIsTerminal = func() bool { return false }

	return settings, func() {
		SetServices(Services{})
		stderrIsTerminal = origTerminal
		resetCommandFlags()
	}
}

// resetCommandFlags restores flag defaults between executions of the shared root command.
func resetCommandFlags() {
	analyzeOpts = analyzeOptions{
		strategy: string(domain.StrategyLocalSectionSearch),
		keywords: map[string]string{},
	}
	for _, c := range []*cobra.Command{showCmd, listCmd, chunkCmd, indexCmd, sourcesCmd, mcpServeCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue) //nolint:errcheck // defaults always parse
			f.Changed = false
		})
	}
}
