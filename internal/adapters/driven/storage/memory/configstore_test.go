package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Seed(t *testing.T) {
	seed := map[string]any{"llm.model": "gpt-4o-mini"}
	store := NewConfigStore(seed)

	seed["llm.model"] = "changed"
	assert.Equal(t, "gpt-4o-mini", store.GetString("llm.model"))
	assert.Equal(t, []string{"llm.model"}, store.Keys())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"search.top_k":         int64(7),
		"budget.safety_margin": 0.8,
		"budget.tpm":           30000,
		"qdrant.use_tls":       true,
		"chunking.languages":   []any{"en", 3, "de"},
		"llm.model":            "llama3",
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"int64 as int", store.GetInt("search.top_k"), 7},
		{"float as int", store.GetInt("budget.safety_margin"), 0},
		{"float", store.GetFloat("budget.safety_margin"), 0.8},
		{"int as float", store.GetFloat("budget.tpm"), 30000.0},
		{"bool", store.GetBool("qdrant.use_tls"), true},
		{"string slice drops non-strings", store.GetStringSlice("chunking.languages"), []string{"en", "de"}},
		{"string", store.GetString("llm.model"), "llama3"},
		{"missing string", store.GetString("nope"), ""},
		{"missing float", store.GetFloat("nope"), 0.0},
		{"wrong type bool", store.GetBool("llm.model"), false},
		{"missing slice", store.GetStringSlice("nope"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_SetAndSave(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("llm.provider", "openai"))
	require.NoError(t, store.Set("llm.provider", "anthropic"))
	require.NoError(t, store.Save())
	require.NoError(t, store.Load())

	val, ok := store.Get("llm.provider")
	assert.True(t, ok)
	assert.Equal(t, "anthropic", val)
	assert.Equal(t, 1, store.Saves())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("search.top_k", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("search.top_k")
		}()
	}
	wg.Wait()

	_, ok := store.Get("search.top_k")
	assert.True(t, ok)
}
