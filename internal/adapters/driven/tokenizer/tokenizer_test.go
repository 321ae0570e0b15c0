package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteEncoder emits one token per byte.
type byteEncoder struct{}

func (byteEncoder) Encode(text string, _, _ []string) []int {
	return make([]int, len(text))
}

func TestTokenizer_CountWithEncoder(t *testing.T) {
	tok := NewWithEncoder("gpt-4o-mini", byteEncoder{})

	n, err := tok.Count("hello")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, tok.Exact())
	assert.Equal(t, "gpt-4o-mini", tok.Model())
}

func TestTokenizer_CountEmpty(t *testing.T) {
	n, err := NewWithEncoder("m", byteEncoder{}).Count("")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTokenizer_FallsBackToEstimate(t *testing.T) {
	tok := NewWithEncoder("llama3.1", nil)
	assert.False(t, tok.Exact())

	n, err := tok.Count("one two three four five six seven eight nine ten")
	require.NoError(t, err)
	assert.Equal(t, 13, n)
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"words", "alpha beta gamma delta epsilon zeta eta theta iota kappa", 13},
		{"punctuation", "a, b. c; d!", 5 + 2},
		{"long", strings.Repeat("word ", 100), 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Estimate(tt.text))
		})
	}
}
