// Package openai runs relevance checks and article analysis against the
// OpenAI chat completions API or a compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/llm/llmhttp"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 60 * time.Second
)

// LLMConfig holds configuration for the OpenAI backend. BaseURL may point
// at Azure OpenAI or any compatible server.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls /chat/completions.
type LLMService struct {
	api   *llmhttp.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// NewLLMService creates an OpenAI backend. The API key is required.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	return &LLMService{
		api:   llmhttp.New("openai", cfg.BaseURL, cfg.Timeout, header),
		model: cfg.Model,
	}, nil
}

// Chat requests one completion. JSON requests set response_format to
// json_object; the prompt must then mention JSON, which the analysis
// prompts do.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := chatRequest{
		Model:       s.model,
		Messages:    make([]message, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for i, m := range messages {
		req.Messages[i] = message{Role: m.Role, Content: m.Content}
	}
	if opts.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := s.api.Post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned: %w", domain.ErrTransient)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		logger.Debug("openai: %s reply cut at %d tokens", s.model, opts.MaxTokens)
	}
	return choice.Message.Content, nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping retrieves the configured model, which checks the key and that the
// account may use the model without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/models/"+url.PathEscape(s.model), nil); err != nil {
		return fmt.Errorf("%w: model %s: %w", domain.ErrLLMUnavailable, s.model, err)
	}
	return nil
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}
