// Package ai wires LLM backends into the relevance and analysis capabilities.
package ai

import (
	"context"
	"fmt"
	"time"

	anthropicllm "github.com/custodia-labs/sercha-digest/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/sercha-digest/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sercha-digest/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// pingTimeout bounds a connectivity check.
const pingTimeout = 10 * time.Second

// ValidateLLMConfig builds a backend from settings and pings it. Unset
// settings are valid: the pipeline then scores by keywords only.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	timeout := time.Duration(settings.TimeoutSeconds) * time.Second

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
