package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// AllLLMProviders returns the providers that can serve as reasoning service.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama}
}

// LLMSettings holds reasoning-service configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name. It also selects the tokenizer.
	Model string

	// BaseURL is the API endpoint (required for Ollama, optional otherwise).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RequestsPerSecond throttles individual requests. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// SearchBackend selects the legal-context search implementation.
type SearchBackend string

// Search backends.
const (
	SearchBackendMemory SearchBackend = "memory"
	SearchBackendQdrant SearchBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b SearchBackend) IsValid() bool {
	return b == SearchBackendMemory || b == SearchBackendQdrant
}

// QdrantSettings holds connection details for the Qdrant vector store.
type QdrantSettings struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// SearchSettings configures legal-context retrieval.
type SearchSettings struct {
	Backend        SearchBackend
	TopK           int
	ScoreThreshold float64
	IndexID        string
	Qdrant         QdrantSettings
}

// BudgetSettings are the rate-limit policy values for the reasoning service.
// They are operational tuning values, not protocol requirements.
type BudgetSettings struct {
	// TokensPerMinute is the provider's token-per-minute rate limit.
	TokensPerMinute int

	// SafetyMargin is the fraction of TokensPerMinute a job may plan to use.
	SafetyMargin float64

	// Cooldown is the pause between sequential batches.
	Cooldown time.Duration

	// SafetyBuffer multiplies every per-unit estimate.
	SafetyBuffer float64

	// FallbackBatchSize is used when the per-unit estimate cannot be computed.
	FallbackBatchSize int

	// Fixed per-unit overheads in tokens.
	SystemPromptTokens   int
	QueryGenTokens       int
	ComplianceCallTokens int
	ResponseTokens       int
}

// SegmentationMode selects how analysis units are produced.
type SegmentationMode string

// Segmentation modes.
const (
	// SegmentationSemantic asks the reasoning service to propose units.
	SegmentationSemantic SegmentationMode = "semantic"

	// SegmentationStructural uses the hierarchical chunker's chunks as units.
	SegmentationStructural SegmentationMode = "structural"
)

// ChunkingSettings configures the chunker and the semantic segmenter.
type ChunkingSettings struct {
	// MaxRequestTokens is the per-request ceiling for segmentation sub-chunks.
	MaxRequestTokens int

	// MinUnitChars discards proposed units shorter than this.
	MinUnitChars int

	// FallbackChunkChars is the fixed chunk size used when segmentation degrades.
	FallbackChunkChars int

	// FallbackLanguage is used when language detection is inconclusive.
	FallbackLanguage Language

	// Segmentation selects semantic or structural units.
	Segmentation SegmentationMode
}

// StorageSettings configures the result store.
type StorageSettings struct {
	// MaxIndexBytes is the per-record size ceiling for the compact index.
	MaxIndexBytes int
}

// NotifySettings configures outbound job notifications.
type NotifySettings struct {
	WebhookURL  string
	MaxAttempts int
}

// Settings is the complete application configuration.
type Settings struct {
	LLM       LLMSettings
	Embedding EmbeddingSettings
	Search    SearchSettings
	Budget    BudgetSettings
	Chunking  ChunkingSettings
	Storage   StorageSettings
	Notify    NotifySettings
}

// DefaultSettings returns the defaults used for any key missing from config.
func DefaultSettings() Settings {
	return Settings{
		LLM: LLMSettings{
			Provider: AIProviderOpenAI,
			Model:    DefaultLLMModels()[AIProviderOpenAI],
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Search: SearchSettings{
			Backend:        SearchBackendMemory,
			TopK:           5,
			ScoreThreshold: 0.7,
			Qdrant: QdrantSettings{
				Host:       "localhost",
				Port:       6334,
				Collection: "legal_corpus",
			},
		},
		Budget: BudgetSettings{
			TokensPerMinute:      30000,
			SafetyMargin:         0.8,
			Cooldown:             60 * time.Second,
			SafetyBuffer:         1.2,
			FallbackBatchSize:    3,
			SystemPromptTokens:   400,
			QueryGenTokens:       300,
			ComplianceCallTokens: 600,
			ResponseTokens:       800,
		},
		Chunking: ChunkingSettings{
			MaxRequestTokens:   4000,
			MinUnitChars:       50,
			FallbackChunkChars: 2000,
			FallbackLanguage:   LanguageEnglish,
			Segmentation:       SegmentationSemantic,
		},
		Storage: StorageSettings{
			MaxIndexBytes: 1 << 20,
		},
		Notify: NotifySettings{
			MaxAttempts: 3,
		},
	}
}

// DefaultLLMModels returns the default model for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.1",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns known dimensions for embedding models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
	}
}
