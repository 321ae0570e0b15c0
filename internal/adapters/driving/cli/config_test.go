package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

func TestConfigShow(t *testing.T) {
	settings, cleanup := setupTestServices(&mockAnalysisService{})
	defer cleanup()
	settings.settings.Notify.WebhookURL = "https://hooks.example.com/lexcheck"

	out, err := executeRoot(context.Background(), "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Provider: OpenAI (cloud)")
	assert.Contains(t, out, "API Key: sk-t...7890")
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Backend: memory")
	assert.Contains(t, out, "Tokens/minute: 30000 (margin 0.80, buffer 1.20)")
	assert.Contains(t, out, "Webhook: https://hooks.example.com/lexcheck")
	assert.Contains(t, out, "Configuration is valid.")
	assert.NotContains(t, out, "sk-test-1234567890")
}

func TestConfigShow_WarnsOnInvalidSettings(t *testing.T) {
	settings, cleanup := setupTestServices(&mockAnalysisService{})
	defer cleanup()
	settings.validateErr = domain.ErrLLMUnavailable

	out, err := executeRoot(context.Background(), "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: ")
	assert.NotContains(t, out, "Configuration is valid.")
}

func TestConfigSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		setErr  error
		wantOut string
	}{
		{
			name:    "plain value",
			key:     "budget.tokens_per_minute",
			value:   "40000",
			wantOut: "Set budget.tokens_per_minute = 40000",
		},
		{
			name:    "api key is masked",
			key:     "llm.api_key",
			value:   "sk-ant-abcdef123456",
			wantOut: "Set llm.api_key = sk-a...3456",
		},
		{
			name:   "rejected value",
			key:    "search.backend",
			value:  "elastic",
			setErr: domain.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, cleanup := setupTestServices(&mockAnalysisService{})
			defer cleanup()
			settings.setErr = tt.setErr

			out, err := executeRoot(context.Background(), "config", "set", tt.key, tt.value)

			if tt.setErr != nil {
				assert.ErrorIs(t, err, tt.setErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
			assert.Equal(t, tt.value, settings.values[tt.key])
		})
	}
}

func TestConfigSet_RequiresKeyAndValue(t *testing.T) {
	_, err := executeRoot(context.Background(), "config", "set", "llm.model")
	assert.ErrorContains(t, err, "accepts 2 arg(s)")
}

func TestConfigKeys(t *testing.T) {
	out, err := executeRoot(context.Background(), "config", "keys")

	require.NoError(t, err)
	assert.Contains(t, out, "budget.tokens_per_minute\n")
	assert.Contains(t, out, "qdrant.collection\n")
}

func TestConfigValidate(t *testing.T) {
	t.Run("all ok", func(t *testing.T) {
		settings, cleanup := setupTestServices(&mockAnalysisService{})
		defer cleanup()
		settings.settings.Search.Backend = domain.SearchBackendQdrant

		out, err := executeRoot(context.Background(), "config", "validate")

		require.NoError(t, err)
		assert.Contains(t, out, "Settings: OK")
		assert.Contains(t, out, "LLM provider: OK")
		assert.Contains(t, out, "Embedding provider: OK")
		assert.Contains(t, out, "Search backend: OK")
	})

	t.Run("qdrant unreachable", func(t *testing.T) {
		settings, cleanup := setupTestServices(&mockAnalysisService{})
		defer cleanup()
		settings.settings.Search.Backend = domain.SearchBackendQdrant
		settings.searchErr = domain.ErrSearchUnavailable

		out, err := executeRoot(context.Background(), "config", "validate")

		assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
		assert.Contains(t, out, "Search backend: FAILED")
	})

	t.Run("provider unreachable", func(t *testing.T) {
		settings, cleanup := setupTestServices(&mockAnalysisService{})
		defer cleanup()
		settings.llmErr = domain.ErrLLMUnavailable

		out, err := executeRoot(context.Background(), "config", "validate")

		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		assert.Contains(t, out, "Settings: OK")
		assert.Contains(t, out, "LLM provider: FAILED")
		assert.NotContains(t, out, "Embedding provider:", "embeddings are only checked for qdrant")
	})
}

func TestConfigLLM_Wizard(t *testing.T) {
	settings, cleanup := setupTestServices(&mockAnalysisService{})
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("2\n\nsk-ant-1234567890\n"))
	defer rootCmd.SetIn(nil)

	out, err := executeRoot(context.Background(), "config", "llm")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.llmProvider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], settings.llmModel)
	assert.Equal(t, "sk-ant-1234567890", settings.llmKey)
	assert.Contains(t, out, "LLM provider configured: Anthropic (cloud)")
}

func TestConfigLLM_OllamaNeedsNoKey(t *testing.T) {
	settings, cleanup := setupTestServices(&mockAnalysisService{})
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("3\nmistral\n"))
	defer rootCmd.SetIn(nil)

	_, err := executeRoot(context.Background(), "config", "llm")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.llmProvider)
	assert.Equal(t, "mistral", settings.llmModel)
	assert.Empty(t, settings.llmKey)
}

func TestConfigLLM_MissingKey(t *testing.T) {
	settings, cleanup := setupTestServices(&mockAnalysisService{})
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("1\n\n\n"))
	defer rootCmd.SetIn(nil)

	_, err := executeRoot(context.Background(), "config", "llm")

	assert.ErrorContains(t, err, "API key is required")
	assert.Empty(t, settings.llmProvider)
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Short key", input: "abc123", expected: "****"},
		{name: "Exactly 8 chars", input: "12345678", expected: "****"},
		{name: "Long key", input: "sk-1234567890abcdef", expected: "sk-1...cdef"},
		{name: "Very long key", input: "sk-proj-1234567890abcdefghijklmnop", expected: "sk-p...mnop"},
		{name: "Empty key", input: "", expected: "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.input))
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{name: "Empty input returns default", input: "", maxVal: 5, defaultVal: 1, expected: 1},
		{name: "Valid choice within range", input: "3", maxVal: 5, defaultVal: 1, expected: 3},
		{name: "Choice below minimum returns default", input: "0", maxVal: 5, defaultVal: 1, expected: 1},
		{name: "Choice above maximum returns default", input: "6", maxVal: 5, defaultVal: 1, expected: 1},
		{name: "Invalid input returns default", input: "abc", maxVal: 5, defaultVal: 2, expected: 2},
		{name: "Negative number returns default", input: "-1", maxVal: 5, defaultVal: 1, expected: 1},
		{name: "Maximum value is valid", input: "5", maxVal: 5, defaultVal: 1, expected: 5},
		{name: "Minimum value is valid", input: "1", maxVal: 5, defaultVal: 3, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChoice(tt.input, tt.maxVal, tt.defaultVal))
		})
	}
}
