package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", "Here is the result: {\"a\":{\"b\":2}} Hope this helps.", `{"a":{"b":2}}`, false},
		{"braces in strings", `{"s":"a } b { c","t":"\"}"}`, `{"s":"a } b { c","t":"\"}"}`, false},
		{"first object wins", `{"a":1} {"b":2}`, `{"a":1}`, false},
		{"no object", "I cannot help with that.", "", true},
		{"unterminated", `{"a":{"b":1}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrResponseParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeResponse_InvalidJSON(t *testing.T) {
	var v map[string]any
	err := decodeResponse(`{"a": tru}`, &v)
	assert.ErrorIs(t, err, domain.ErrResponseParse)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	// "ä" is two bytes; the cut moves back to the rune start.
	assert.Equal(t, "a...", truncate("aäb", 2))
}
