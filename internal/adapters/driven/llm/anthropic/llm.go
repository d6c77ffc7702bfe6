// Package anthropic runs relevance checks and article analysis against the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/llm/llmhttp"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second

	anthropicVersion = "2023-06-01"

	// defaultMaxTokens is sent when the caller leaves MaxTokens unset; the
	// API requires a value.
	defaultMaxTokens = 1024
)

// jsonPrefill opens the assistant turn so the reply continues a JSON object.
const jsonPrefill = "{"

// Config holds configuration for the Anthropic backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls /v1/messages.
type LLMService struct {
	api   *llmhttp.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewLLMService creates an Anthropic backend. The API key is required.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	header := http.Header{}
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", anthropicVersion)
	return &LLMService{
		api:   llmhttp.New("anthropic", cfg.BaseURL, cfg.Timeout, header),
		model: cfg.Model,
	}, nil
}

// Chat sends one conversation. System turns move to the top-level system
// field. The API has no JSON mode, so JSON requests prefill the assistant
// turn with an opening brace and the reply is returned with it restored.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := messagesRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, m := range messages {
		if m.Role == driven.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, message{Role: m.Role, Content: m.Content})
	}
	req.System = strings.Join(system, "\n\n")
	if opts.JSON {
		req.Messages = append(req.Messages, message{Role: driven.RoleAssistant, Content: jsonPrefill})
	}

	var resp messagesResponse
	if err := s.api.Post(ctx, "/v1/messages", req, &resp); err != nil {
		return "", err
	}
	if resp.StopReason == "max_tokens" {
		logger.Debug("anthropic: %s reply cut at %d tokens", s.model, req.MaxTokens)
	}

	var out strings.Builder
	if opts.JSON {
		out.WriteString(jsonPrefill)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty reply: %w", domain.ErrTransient)
	}
	return out.String(), nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping retrieves the configured model, which checks the key and resolves
// aliases such as "-latest" without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/v1/models/"+url.PathEscape(s.model), nil); err != nil {
		return fmt.Errorf("%w: model %s: %w", domain.ErrLLMUnavailable, s.model, err)
	}
	return nil
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}
