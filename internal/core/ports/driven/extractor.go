package driven

import "context"

// TextExtractor turns uploaded bytes into plain text.
type TextExtractor interface {
	// Extract returns the text content of data.
	// Unreadable or unsupported input returns an error wrapping domain.ErrExtraction.
	Extract(ctx context.Context, data []byte, contentType, filename string) (string, error)

	// ReverseAnonymization replaces placeholder keys with their original values.
	ReverseAnonymization(text string, keywordMap map[string]string) string
}
