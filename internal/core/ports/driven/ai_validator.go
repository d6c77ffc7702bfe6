package driven

import (
	"context"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// AIConfigValidator checks LLM settings by contacting the backend.
type AIConfigValidator interface {
	// ValidateLLM returns nil when the settings are unset or the backend
	// serves the configured model; otherwise an error wrapping
	// domain.ErrLLMUnavailable.
	ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error
}
