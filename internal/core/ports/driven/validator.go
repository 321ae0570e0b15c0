package driven

import "github.com/custodia-labs/lexcheck/internal/core/domain"

// ProviderValidator checks that the configured external services answer.
// Every method returns nil when its service is not configured.
type ProviderValidator interface {
	// ValidateLLM pings the reasoning service.
	ValidateLLM(config *domain.LLMSettings) error

	// ValidateEmbedding pings the embedding provider.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateSearch reaches the legal-context backend. The in-memory
	// keyword index always passes.
	ValidateSearch(config *domain.SearchSettings) error
}
