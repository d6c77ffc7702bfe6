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

	// Dir returns where editable prompts live, or "" when they are not
	// backed by files.
	Dir() string
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptRelevanceSystem is the system prompt for the yes/no relevance check.
	// This prompt has no format placeholders.
	PromptRelevanceSystem = "relevance_system"

	// PromptRelevanceUser asks the relevance question.
	// The prompt template expects %s (title) and %s (excerpt) placeholders.
	PromptRelevanceUser = "relevance_user"

	// PromptAnalysisSystem is the system prompt for structured analysis.
	// This prompt has no format placeholders.
	PromptAnalysisSystem = "analysis_system"

	// PromptAnalysisRetry is the simplified system prompt used when the first
	// analysis attempt returned unparsable output.
	PromptAnalysisRetry = "analysis_retry"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
