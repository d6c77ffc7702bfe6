// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LLMService is the language model behind relevance checks and article
// analysis. When nil, the pipeline scores by keywords only and analysis
// requires mock mode.
type LLMService interface {
	// Chat sends one conversation and returns the model's reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the configured model.
	ModelName() string

	// Ping checks that the backend is reachable and serves the configured
	// model, without running inference. Failures wrap domain.ErrLLMUnavailable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage is a single turn of a conversation.
type ChatMessage struct {
	// Role is RoleSystem, RoleUser or RoleAssistant.
	Role string

	Content string
}

// ChatOptions tunes a single call.
type ChatOptions struct {
	// MaxTokens caps the reply. Zero leaves the backend default.
	MaxTokens int

	// Temperature is sent as given, including zero.
	Temperature float64

	// JSON asks for a reply that is one JSON object. Backends without a
	// native JSON mode prime the reply with an opening brace.
	JSON bool
}
