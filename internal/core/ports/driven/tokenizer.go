package driven

// Tokenizer counts language-model tokens for a specific model.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) (int, error)

	// Model returns the model whose encoding is used.
	Model() string
}
