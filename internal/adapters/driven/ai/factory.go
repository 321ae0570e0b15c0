// Package ai builds the reasoning, embedding and legal-search adapters
// from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/lexcheck/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/lexcheck/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/lexcheck/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/lexcheck/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/lexcheck/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/llm/ratelimit"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/search/memory"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/search/qdrant"
	"github.com/custodia-labs/lexcheck/internal/adapters/driven/search/vector"
	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// ollamaNumCtx is the context window requested from Ollama. Its default is
// too small for compliance prompts carrying legal context.
const ollamaNumCtx = 8192

// Services holds the AI-backed collaborators of the analysis pipeline.
type Services struct {
	LLM       driven.LLMService
	Embedding driven.EmbeddingService // Nil for the keyword backend.
	Index     driven.LegalIndex
	Warnings  []string // Non-fatal issues that caused fallback.
	FellBack  bool     // True if the keyword index replaced the configured backend.
}

// Close releases all resources held by Services.
func (s *Services) Close() {
	if s.Index != nil {
		s.Index.Close()
	}
	if s.Embedding != nil {
		s.Embedding.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
}

// Build creates the LLM (rate limited when configured) and the legal index.
// An unconfigured LLM is an error; a failing vector backend falls back to the
// in-memory keyword index with a warning.
func Build(settings domain.Settings, log *logger.Logger) (*Services, error) {
	llm, err := CreateLLMService(&settings.LLM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if llm == nil {
		return nil, fmt.Errorf("%w: provider %q is not configured. Run 'lexcheck config set llm.provider <name>'",
			domain.ErrLLMUnavailable, settings.LLM.Provider)
	}

	s := &Services{
		LLM: ratelimit.Wrap(llm, ratelimit.Config{RequestsPerSecond: settings.LLM.RequestsPerSecond}, log),
	}

	switch settings.Search.Backend {
	case domain.SearchBackendQdrant:
		emb, idx, err := createVectorIndex(settings, log)
		if err != nil {
			log.Warn("Vector search unavailable, using keyword search: %v", err)
			s.Warnings = append(s.Warnings, err.Error())
			s.FellBack = true
			s.Index = memory.NewKeywordIndex()
			break
		}
		s.Embedding = emb
		s.Index = idx
	case domain.SearchBackendMemory, "":
		s.Index = memory.NewKeywordIndex()
	default:
		s.Close()
		return nil, fmt.Errorf("%w: search backend %q", domain.ErrUnsupportedType, settings.Search.Backend)
	}
	return s, nil
}

func createVectorIndex(settings domain.Settings, log *logger.Logger) (driven.EmbeddingService, driven.LegalIndex, error) {
	emb, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}
	if emb == nil {
		return nil, nil, fmt.Errorf("%w: qdrant search needs an embedding provider", domain.ErrSearchUnavailable)
	}
	points, err := qdrant.New(settings.Search.Qdrant, emb.Dimensions(), log)
	if err != nil {
		emb.Close()
		return nil, nil, err
	}
	return emb, vector.New(emb, points, log), nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'lexcheck config validate' for details",
			domain.ErrSearchUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: embedding service unreachable (%w)", domain.ErrSearchUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'lexcheck config validate' for details",
			domain.ErrLLMUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			NumCtx:  ollamaNumCtx,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}
