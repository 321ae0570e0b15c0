package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// mockLLM answers chat calls through respond and records every call.
type mockLLM struct {
	mu      sync.Mutex
	respond func(system, user string, opts driven.ChatOptions) (string, error)
	calls   []mockLLMCall
}

type mockLLMCall struct {
	System string
	User   string
	Opts   driven.ChatOptions
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	return m.Chat(ctx, []driven.ChatMessage{{Role: "user", Content: prompt}}, driven.ChatOptions{})
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	var call mockLLMCall
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			call.System = msg.Content
		case "user":
			call.User = msg.Content
		}
	}
	call.Opts = opts

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.respond == nil {
		return "", errors.New("no response scripted")
	}
	return m.respond(call.System, call.User, opts)
}

func (m *mockLLM) ModelName() string            { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// byPrompt routes a call by the system prompt it was made with.
func byPrompt(routes map[string]string) func(system, user string, opts driven.ChatOptions) (string, error) {
	return func(system, _ string, _ driven.ChatOptions) (string, error) {
		for name, answer := range routes {
			if system == DefaultPrompts[name] {
				return answer, nil
			}
		}
		return "", errors.New("unexpected prompt")
	}
}

// wordTokenizer counts whitespace-separated words.
type wordTokenizer struct {
	err error
}

func (w wordTokenizer) Count(text string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return len(strings.Fields(text)), nil
}

func (w wordTokenizer) Model() string { return "words" }

// mockIndex returns scripted results per query.
type mockIndex struct {
	mu      sync.Mutex
	results map[string]driven.LegalSearchResult
	errs    map[string]error
	queries []driven.LegalSearchQuery
}

func (m *mockIndex) Index(_ context.Context, _ []domain.Chunk) error { return nil }

func (m *mockIndex) Remove(_ context.Context, _ []string) error { return nil }

func (m *mockIndex) Search(_ context.Context, q driven.LegalSearchQuery) (driven.LegalSearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if err := m.errs[q.Query]; err != nil {
		return driven.LegalSearchResult{}, err
	}
	return m.results[q.Query], nil
}

func (m *mockIndex) Close() error { return nil }

// mockNotifier records delivered events and fails the first failures calls.
type mockNotifier struct {
	mu       sync.Mutex
	failures int
	attempts int
	events   []domain.Event
	block    chan struct{}
}

func (m *mockNotifier) Notify(_ context.Context, event domain.Event) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failures {
		return errors.New("webhook unavailable")
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotifier) delivered() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.events...)
}

// mockExtractor returns Data as text.
type mockExtractor struct {
	err error
}

func (m mockExtractor) Extract(_ context.Context, data []byte, _, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return string(data), nil
}

func (m mockExtractor) ReverseAnonymization(text string, keywordMap map[string]string) string {
	for k, v := range keywordMap {
		text = strings.ReplaceAll(text, k, v)
	}
	return text
}

// mockPromptStore overrides some prompts.
type mockPromptStore struct {
	prompts map[string]string
}

func (m mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m mockPromptStore) Reload() {}

// noSleep skips batch cooldowns and counts them.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.waits = append(n.waits, d)
	n.mu.Unlock()
	return ctx.Err()
}

func (n *noSleep) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.waits)
}
