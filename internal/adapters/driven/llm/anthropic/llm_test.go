package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/llm"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewLLMService(Config{APIKey: "sk-ant", BaseURL: server.URL, Model: "claude-test"})
	require.NoError(t, err)
	return svc
}

func reply(w http.ResponseWriter, blocks ...string) {
	content := make([]map[string]string, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, map[string]string{"type": "text", "text": b})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"content": content, "stop_reason": "end_turn"})
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	svc, err := NewLLMService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
}

func TestChat_RequestShape(t *testing.T) {
	var got messagesRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, "Hello", " world")
	})

	out, err := driven.Invoke(context.Background(), svc, "Be brief.", "Say hello", driven.ChatOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)
	assert.Equal(t, "Be brief.", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestChat_JSONModePrefill(t *testing.T) {
	var got messagesRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, `"isCompliant":true}`)
	})

	out, err := driven.Invoke(context.Background(), svc, "Judge.", "Clause text", driven.ChatOptions{JSONMode: true, MaxTokens: 300})

	require.NoError(t, err)
	assert.Equal(t, `{"isCompliant":true}`, out)
	assert.Contains(t, got.System, "Judge.")
	assert.Contains(t, got.System, llm.JSONInstruction)
	assert.Equal(t, 300, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, messagesMessage{Role: "assistant", Content: "{"}, got.Messages[1])
}

func TestChat_Attachment(t *testing.T) {
	var got messagesRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reply(w, "ok")
	})

	_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "Analyse."}}, driven.ChatOptions{
		Attachment: &driven.Attachment{Filename: "policy.md", ContentType: "text/markdown", Data: []byte("# Policy")},
	})

	require.NoError(t, err)
	assert.Contains(t, got.Messages[0].Content, "# Policy")

	_, err = svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "x"}}, driven.ChatOptions{
		Attachment: &driven.Attachment{Filename: "scan.pdf", Data: []byte{0xff, 0xd8}},
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"overloaded", 529, `{"error":{"type":"overloaded_error"}}`, domain.ErrLLMUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.ErrRateLimited},
		{"error body", http.StatusOK, `{"error":{"message":"bad"}}`, nil},
		{"empty content", http.StatusOK, `{"content":[]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := svc.Generate(context.Background(), "x", driven.GenerateOptions{})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, svc.Ping(context.Background()))
}
