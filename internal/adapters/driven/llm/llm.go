// Package llm holds helpers shared by the reasoning-service adapters.
// Provider implementations live in the openai, anthropic and ollama
// subpackages; ratelimit wraps any of them with a request throttle.
package llm

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// JSONInstruction is appended to the system prompt for providers without a
// native JSON response mode.
const JSONInstruction = "Respond with a single JSON object and nothing else. Do not wrap it in code fences."

// maxErrorBody caps how much of a provider's error body ends up in an error.
const maxErrorBody = 512

// PrepareMessages returns messages with the attachment inlined into the last
// user message as a delimited block. Only textual attachments are supported.
func PrepareMessages(messages []driven.ChatMessage, att *driven.Attachment) ([]driven.ChatMessage, error) {
	out := append([]driven.ChatMessage(nil), messages...)
	if att == nil {
		return out, nil
	}
	if !utf8.Valid(att.Data) {
		return nil, fmt.Errorf("%w: attachment %q is not text", domain.ErrUnsupportedType, att.Filename)
	}

	block := fmt.Sprintf("<document filename=%q content_type=%q>\n%s\n</document>",
		att.Filename, att.ContentType, string(att.Data))

	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == "user" {
			out[i].Content = out[i].Content + "\n\n" + block
			return out, nil
		}
	}
	return append(out, driven.ChatMessage{Role: "user", Content: block}), nil
}

// SplitSystem separates system messages from the conversation. Multiple
// system messages are joined with blank lines.
func SplitSystem(messages []driven.ChatMessage) (string, []driven.ChatMessage) {
	var system []string
	rest := make([]driven.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// StatusError classifies a non-200 provider response. Rate limiting maps to
// domain.ErrRateLimited; auth and server failures to domain.ErrLLMUnavailable.
func StatusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w (status %d): %s", provider, domain.ErrRateLimited, status, msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status >= 500:
		return fmt.Errorf("%s: %w (status %d): %s", provider, domain.ErrLLMUnavailable, status, msg)
	default:
		return fmt.Errorf("%s error (status %d): %s", provider, status, msg)
	}
}
