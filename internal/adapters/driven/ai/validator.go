package ai

import (
	"context"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks LLM settings against the live backend.
type ConfigValidator struct{}

// NewConfigValidator creates a validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateLLM pings the configured backend and model.
func (v *ConfigValidator) ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error {
	return ValidateLLMConfig(ctx, settings)
}
