package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
	keyLLMRPS      = "llm.requests_per_second"

	keyEmbedProvider = "embedding.provider"
	keyEmbedModel    = "embedding.model"
	keyEmbedBaseURL  = "embedding.base_url"
	keyEmbedAPIKey   = "embedding.api_key"

	keySearchBackend   = "search.backend"
	keySearchTopK      = "search.top_k"
	keySearchThreshold = "search.score_threshold"
	keySearchIndexID   = "search.index_id"
	keyQdrantHost      = "qdrant.host"
	keyQdrantPort      = "qdrant.port"
	keyQdrantAPIKey    = "qdrant.api_key"
	keyQdrantTLS       = "qdrant.use_tls"
	keyQdrantColl      = "qdrant.collection"

	keyBudgetTPM        = "budget.tokens_per_minute"
	keyBudgetMargin     = "budget.safety_margin"
	keyBudgetCooldown   = "budget.cooldown_seconds"
	keyBudgetBuffer     = "budget.safety_buffer"
	keyBudgetFallback   = "budget.fallback_batch_size"
	keyBudgetSystem     = "budget.system_prompt_tokens"
	keyBudgetQueryGen   = "budget.query_gen_tokens"
	keyBudgetCompliance = "budget.compliance_call_tokens"
	keyBudgetResponse   = "budget.response_tokens"

	keyChunkMaxTokens    = "chunking.max_request_tokens"
	keyChunkMinChars     = "chunking.min_unit_chars"
	keyChunkFallback     = "chunking.fallback_chunk_chars"
	keyChunkLanguage     = "chunking.fallback_language"
	keyChunkSegmentation = "chunking.segmentation"

	keyStorageMaxIndex = "storage.max_index_bytes"

	keyNotifyWebhook  = "notify.webhook_url"
	keyNotifyAttempts = "notify.max_attempts"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
)

// settableKeys lists every key accepted by SetValue with its value type.
var settableKeys = map[string]valueKind{
	keyLLMProvider:       kindString,
	keyLLMModel:          kindString,
	keyLLMBaseURL:        kindString,
	keyLLMAPIKey:         kindString,
	keyLLMRPS:            kindFloat,
	keyEmbedProvider:     kindString,
	keyEmbedModel:        kindString,
	keyEmbedBaseURL:      kindString,
	keyEmbedAPIKey:       kindString,
	keySearchBackend:     kindString,
	keySearchTopK:        kindInt,
	keySearchThreshold:   kindFloat,
	keySearchIndexID:     kindString,
	keyQdrantHost:        kindString,
	keyQdrantPort:        kindInt,
	keyQdrantAPIKey:      kindString,
	keyQdrantTLS:         kindBool,
	keyQdrantColl:        kindString,
	keyBudgetTPM:         kindInt,
	keyBudgetMargin:      kindFloat,
	keyBudgetCooldown:    kindInt,
	keyBudgetBuffer:      kindFloat,
	keyBudgetFallback:    kindInt,
	keyBudgetSystem:      kindInt,
	keyBudgetQueryGen:    kindInt,
	keyBudgetCompliance:  kindInt,
	keyBudgetResponse:    kindInt,
	keyChunkMaxTokens:    kindInt,
	keyChunkMinChars:     kindInt,
	keyChunkFallback:     kindInt,
	keyChunkLanguage:     kindString,
	keyChunkSegmentation: kindString,
	keyStorageMaxIndex:   kindInt,
	keyNotifyWebhook:     kindString,
	keyNotifyAttempts:    kindInt,
}

// SettableKeys returns the keys accepted by SetValue in sorted order.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService maps flat configuration keys to Settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.ProviderValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.ProviderValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current settings. Missing or invalid keys take their defaults.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerSecond: s.getFloat(keyLLMRPS, d.LLM.RequestsPerSecond),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		Search: domain.SearchSettings{
			Backend:        s.getBackend(d.Search.Backend),
			TopK:           s.getInt(keySearchTopK, d.Search.TopK),
			ScoreThreshold: s.getFloat(keySearchThreshold, d.Search.ScoreThreshold),
			IndexID:        s.configStore.GetString(keySearchIndexID),
			Qdrant: domain.QdrantSettings{
				Host:       s.getString(keyQdrantHost, d.Search.Qdrant.Host),
				Port:       s.getInt(keyQdrantPort, d.Search.Qdrant.Port),
				APIKey:     s.configStore.GetString(keyQdrantAPIKey),
				UseTLS:     s.getBool(keyQdrantTLS, d.Search.Qdrant.UseTLS),
				Collection: s.getString(keyQdrantColl, d.Search.Qdrant.Collection),
			},
		},
		Budget: domain.BudgetSettings{
			TokensPerMinute:      s.getInt(keyBudgetTPM, d.Budget.TokensPerMinute),
			SafetyMargin:         s.getFloat(keyBudgetMargin, d.Budget.SafetyMargin),
			Cooldown:             time.Duration(s.getInt(keyBudgetCooldown, int(d.Budget.Cooldown/time.Second))) * time.Second,
			SafetyBuffer:         s.getFloat(keyBudgetBuffer, d.Budget.SafetyBuffer),
			FallbackBatchSize:    s.getInt(keyBudgetFallback, d.Budget.FallbackBatchSize),
			SystemPromptTokens:   s.getInt(keyBudgetSystem, d.Budget.SystemPromptTokens),
			QueryGenTokens:       s.getInt(keyBudgetQueryGen, d.Budget.QueryGenTokens),
			ComplianceCallTokens: s.getInt(keyBudgetCompliance, d.Budget.ComplianceCallTokens),
			ResponseTokens:       s.getInt(keyBudgetResponse, d.Budget.ResponseTokens),
		},
		Chunking: domain.ChunkingSettings{
			MaxRequestTokens:   s.getInt(keyChunkMaxTokens, d.Chunking.MaxRequestTokens),
			MinUnitChars:       s.getInt(keyChunkMinChars, d.Chunking.MinUnitChars),
			FallbackChunkChars: s.getInt(keyChunkFallback, d.Chunking.FallbackChunkChars),
			FallbackLanguage:   s.getLanguage(d.Chunking.FallbackLanguage),
			Segmentation:       s.getSegmentation(d.Chunking.Segmentation),
		},
		Storage: domain.StorageSettings{
			MaxIndexBytes: s.getInt(keyStorageMaxIndex, d.Storage.MaxIndexBytes),
		},
		Notify: domain.NotifySettings{
			WebhookURL:  s.configStore.GetString(keyNotifyWebhook),
			MaxAttempts: s.getInt(keyNotifyAttempts, d.Notify.MaxAttempts),
		},
	}

	return settings, nil
}

// Save persists settings and writes the config file.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMRPS, settings.LLM.RequestsPerSecond},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keySearchBackend, string(settings.Search.Backend)},
		{keySearchTopK, settings.Search.TopK},
		{keySearchThreshold, settings.Search.ScoreThreshold},
		{keySearchIndexID, settings.Search.IndexID},
		{keyQdrantHost, settings.Search.Qdrant.Host},
		{keyQdrantPort, settings.Search.Qdrant.Port},
		{keyQdrantTLS, settings.Search.Qdrant.UseTLS},
		{keyQdrantColl, settings.Search.Qdrant.Collection},
		{keyBudgetTPM, settings.Budget.TokensPerMinute},
		{keyBudgetMargin, settings.Budget.SafetyMargin},
		{keyBudgetCooldown, int(settings.Budget.Cooldown / time.Second)},
		{keyBudgetBuffer, settings.Budget.SafetyBuffer},
		{keyBudgetFallback, settings.Budget.FallbackBatchSize},
		{keyBudgetSystem, settings.Budget.SystemPromptTokens},
		{keyBudgetQueryGen, settings.Budget.QueryGenTokens},
		{keyBudgetCompliance, settings.Budget.ComplianceCallTokens},
		{keyBudgetResponse, settings.Budget.ResponseTokens},
		{keyChunkMaxTokens, settings.Chunking.MaxRequestTokens},
		{keyChunkMinChars, settings.Chunking.MinUnitChars},
		{keyChunkFallback, settings.Chunking.FallbackChunkChars},
		{keyChunkLanguage, string(settings.Chunking.FallbackLanguage)},
		{keyChunkSegmentation, string(settings.Chunking.Segmentation)},
		{keyStorageMaxIndex, settings.Storage.MaxIndexBytes},
		{keyNotifyWebhook, settings.Notify.WebhookURL},
		{keyNotifyAttempts, settings.Notify.MaxAttempts},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set so an empty form never erases them.
	secrets := map[string]string{
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyQdrantAPIKey: settings.Search.Qdrant.APIKey,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return s.configStore.Save()
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	// Local providers need a base URL, cloud providers use their default endpoint
	if provider == domain.AIProviderOllama {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetValue parses raw according to the type of key and persists it.
// Enumerated keys only accept their known values.
func (s *SettingsService) SetValue(key, raw string) error {
	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	raw = strings.TrimSpace(raw)

	var value any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		value = n
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		value = f
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		value = b
	default:
		if err := validateEnum(key, raw); err != nil {
			return err
		}
		value = raw
	}

	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return s.configStore.Save()
}

func validateEnum(key, raw string) error {
	var valid bool
	switch key {
	case keyLLMProvider:
		valid = domain.AIProvider(raw).IsValid()
	case keyEmbedProvider:
		p := domain.AIProvider(raw)
		valid = p.IsValid() && p != domain.AIProviderAnthropic
	case keySearchBackend:
		valid = domain.SearchBackend(raw).IsValid()
	case keyChunkLanguage:
		valid = domain.Language(raw).IsValid()
	case keyChunkSegmentation:
		m := domain.SegmentationMode(raw)
		valid = m == domain.SegmentationSemantic || m == domain.SegmentationStructural
	default:
		return nil
	}
	if !valid {
		return fmt.Errorf("%w: invalid value %q for %s", domain.ErrInvalidInput, raw, key)
	}
	return nil
}

// Validate checks that the current settings can run an analysis.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider))
	}
	if settings.Search.Backend == domain.SearchBackendQdrant && !settings.Embedding.IsConfigured() {
		errs = append(errs, errors.New("qdrant search requires an embedding provider"))
	}
	if settings.Budget.TokensPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", keyBudgetTPM))
	}
	if settings.Budget.SafetyMargin <= 0 || settings.Budget.SafetyMargin > 1 {
		errs = append(errs, fmt.Errorf("%s must be in (0, 1]", keyBudgetMargin))
	}
	if settings.Budget.SafetyBuffer < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", keyBudgetBuffer))
	}
	if settings.Chunking.MaxRequestTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", keyChunkMaxTokens))
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// ValidateSearchConfig reaches the configured legal-context backend.
func (s *SettingsService) ValidateSearchConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateSearch(&settings.Search)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.SearchBackend) domain.SearchBackend {
	backend := domain.SearchBackend(s.configStore.GetString(keySearchBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getLanguage(defaultVal domain.Language) domain.Language {
	lang := domain.Language(s.configStore.GetString(keyChunkLanguage))
	if !lang.IsValid() {
		return defaultVal
	}
	return lang
}

func (s *SettingsService) getSegmentation(defaultVal domain.SegmentationMode) domain.SegmentationMode {
	mode := domain.SegmentationMode(s.configStore.GetString(keyChunkSegmentation))
	if mode != domain.SegmentationSemantic && mode != domain.SegmentationStructural {
		return defaultVal
	}
	return mode
}
