package ai

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/adapters/driven/search/qdrant"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

var _ driven.ProviderValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings by connecting to each service.
type ConfigValidator struct {
	pingSearch func(ctx context.Context, settings domain.QdrantSettings) error
}

// NewConfigValidator creates a validator that talks to the real services.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{pingSearch: qdrant.Ping}
}

// ValidateEmbedding pings the embedding provider.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	return ValidateEmbeddingConfig(config)
}

// ValidateLLM pings the reasoning service.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	return ValidateLLMConfig(config)
}

// ValidateSearch runs a Qdrant health check when Qdrant is the backend.
func (v *ConfigValidator) ValidateSearch(config *domain.SearchSettings) error {
	if config == nil || config.Backend != domain.SearchBackendQdrant {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return v.pingSearch(ctx, config.Qdrant)
}
