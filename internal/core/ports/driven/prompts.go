package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptSegmentationSystem instructs the model to split text into
	// legally relevant units. It has no format placeholders.
	PromptSegmentationSystem = "segmentation_system"

	// PromptSegmentationUser carries the text to segment.
	// The template expects %d (minimum unit length) and %s (text) placeholders.
	PromptSegmentationUser = "segmentation_user"

	// PromptQueryGenerationSystem instructs the model to produce search queries.
	PromptQueryGenerationSystem = "query_generation_system"

	// PromptQueryGenerationUser expects %s (document context) and %s (unit excerpt).
	PromptQueryGenerationUser = "query_generation_user"

	// PromptComplianceSystem instructs the model to judge one unit only.
	PromptComplianceSystem = "compliance_system"

	// PromptComplianceUser expects %s (document context), %s (unit title),
	// %s (unit content) and %s (legal context) placeholders.
	PromptComplianceUser = "compliance_user"

	// PromptDirectSystem is the system prompt for whole-document analysis.
	PromptDirectSystem = "direct_system"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
