// Package tokenizer counts language-model tokens with the model's BPE
// encoding, falling back to a word-based estimate when no encoding loads.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// Ensure Tokenizer implements the interface.
var _ driven.Tokenizer = (*Tokenizer)(nil)

// defaultEncoding is used for models tiktoken does not know, such as
// Anthropic and Ollama models.
const defaultEncoding = "cl100k_base"

// Encoder is the subset of *tiktoken.Tiktoken used for counting.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// Tokenizer counts tokens for one model.
type Tokenizer struct {
	model string
	enc   Encoder
}

// New loads the encoding for model. Unknown models use cl100k_base; if no
// encoding can be loaded the tokenizer estimates counts from words.
func New(model string, log *logger.Logger) *Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		log.Debug("no tiktoken encoding for model %q, using %s", model, defaultEncoding)
		enc, err = tiktoken.GetEncoding(defaultEncoding)
	}
	if err != nil {
		log.Warn("tiktoken unavailable, estimating tokens from words: %v", err)
		return &Tokenizer{model: model}
	}
	return &Tokenizer{model: model, enc: enc}
}

// NewWithEncoder creates a tokenizer around an existing encoder.
// A nil encoder selects the word-based estimate.
func NewWithEncoder(model string, enc Encoder) *Tokenizer {
	return &Tokenizer{model: model, enc: enc}
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if t.enc == nil {
		return Estimate(text), nil
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// Model returns the model whose encoding is used.
func (t *Tokenizer) Model() string {
	return t.model
}

// Exact reports whether counts come from a real BPE encoding.
func (t *Tokenizer) Exact() bool {
	return t.enc != nil
}

// Estimate approximates a token count as 1.3 tokens per word plus one
// token per two punctuation marks.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	words := len(strings.Fields(text))
	punct := 0
	for _, r := range text {
		if unicode.IsPunct(r) {
			punct++
		}
	}

	return int(float64(words)*1.3) + punct/2
}
