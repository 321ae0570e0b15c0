package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
	assert.Empty(t, store.Keys())
}

func TestNewConfigStore_HomeEnv(t *testing.T) {
	home := filepath.Join(t.TempDir(), "lexhome")
	t.Setenv(HomeEnv, home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), store.Path())

	info, err := os.Stat(home)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_Errors(t *testing.T) {
	t.Run("cannot create directory", func(t *testing.T) {
		store, err := NewConfigStore("/dev/null/cannot/create/dirs")
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("corrupted file", func(t *testing.T) {
		tmpDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not toml {{{[["), 0600))

		store, err := NewConfigStore(tmpDir)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestConfigStore_Load_NestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[llm]
provider = "anthropic"
requests_per_second = 2

[budget]
tokens_per_minute = 90000
safety_margin = 0.5

[search]
top_k = 8.0
backends = ["memory", "qdrant"]

[qdrant]
use_tls = true
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", store.GetString("llm.provider"))
	assert.InDelta(t, 2.0, store.GetFloat("llm.requests_per_second"), 1e-9)
	assert.Equal(t, 90000, store.GetInt("budget.tokens_per_minute"))
	assert.InDelta(t, 0.5, store.GetFloat("budget.safety_margin"), 1e-9)
	assert.Equal(t, 8, store.GetInt("search.top_k"))
	assert.Equal(t, []string{"memory", "qdrant"}, store.GetStringSlice("search.backends"))
	assert.True(t, store.GetBool("qdrant.use_tls"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	store.mu.Lock()
	store.data = map[string]any{
		"s":        "text",
		"i64":      int64(42),
		"i":        7,
		"f":        0.25,
		"f_whole":  3.0,
		"b":        true,
		"strs":     []string{"a"},
		"anys":     []any{"x", 1, "y"},
		"mismatch": struct{}{},
	}
	store.mu.Unlock()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("s"), "text"},
		{"string of int", store.GetString("i"), ""},
		{"int64", store.GetInt("i64"), 42},
		{"int", store.GetInt("i"), 7},
		{"int of whole float", store.GetInt("f_whole"), 3},
		{"int of fraction", store.GetInt("f"), 0},
		{"float", store.GetFloat("f"), 0.25},
		{"float of int64", store.GetFloat("i64"), 42.0},
		{"float of string", store.GetFloat("s"), 0.0},
		{"bool", store.GetBool("b"), true},
		{"bool missing", store.GetBool("missing"), false},
		{"string slice", store.GetStringSlice("strs"), []string{"a"}},
		{"any slice keeps strings", store.GetStringSlice("anys"), []string{"x", "y"}},
		{"slice mismatch", store.GetStringSlice("mismatch"), []string(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_SaveWritesNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("budget.safety_margin", 0.8))
	require.NoError(t, store.Set("budget.cooldown_seconds", 60))
	require.NoError(t, store.Set("llm.provider", "openai"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[budget]")
	assert.Contains(t, string(raw), "[llm]")
	assert.NotContains(t, string(raw), `"budget.safety_margin"`)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, reopened.GetFloat("budget.safety_margin"), 1e-9)
	assert.Equal(t, 60, reopened.GetInt("budget.cooldown_seconds"))
	assert.Equal(t, "openai", reopened.GetString("llm.provider"))
}

func TestConfigStore_SaveKeepsCollidingKeys(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("notify", "log"))
	require.NoError(t, store.Set("notify.max_attempts", 3))

	reopened, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "log", reopened.GetString("notify"))
	assert.Equal(t, 3, reopened.GetInt("notify.max_attempts"))
}

func TestConfigStore_SetFailureRollsBack(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))

	// Channels cannot be encoded as TOML.
	err = store.Set("llm.model", make(chan int))
	require.Error(t, err)
	assert.Equal(t, "gpt-4o-mini", store.GetString("llm.model"))

	err = store.Set("llm.extra", make(chan int))
	require.Error(t, err)
	_, ok := store.Get("llm.extra")
	assert.False(t, ok)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("test", "value"))

	// Replace the file with a directory to cause write error
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Save())
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# Just a comment\n\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any_key")
	assert.False(t, ok)
	require.NoError(t, store.Set("k", "v"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
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

func TestNestMap(t *testing.T) {
	got := nestMap(map[string]any{
		"a.b.c": 1,
		"a.d":   "x",
		"e":     true,
	})
	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, got)
	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": "x", "e": true}, flattenMap(got, ""))
}
