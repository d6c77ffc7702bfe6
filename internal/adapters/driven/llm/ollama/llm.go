// Package ollama runs relevance checks and article analysis on a local
// Ollama server.
package ollama

import (
	"context"
	"fmt"
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
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// keepAlive holds the model in memory between the articles of a run, so a
// batch of analyses loads it once.
const keepAlive = "10m"

// LLMConfig holds configuration for the Ollama backend.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls the Ollama chat API.
type LLMService struct {
	api   *llmhttp.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream"`
	Format    string    `json:"format,omitempty"`
	KeepAlive string    `json:"keep_alive,omitempty"`
	Options   options   `json:"options"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message    message `json:"message"`
	DoneReason string  `json:"done_reason"`
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// NewLLMService creates an Ollama backend.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api:   llmhttp.New("ollama", cfg.BaseURL, cfg.Timeout, nil),
		model: cfg.Model,
	}
}

// Chat sends a non-streaming chat request. JSON requests use Ollama's
// constrained "json" format.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := chatRequest{
		Model:     s.model,
		Messages:  make([]message, len(messages)),
		KeepAlive: keepAlive,
		Options:   options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature},
	}
	for i, m := range messages {
		req.Messages[i] = message{Role: m.Role, Content: m.Content}
	}
	if opts.JSON {
		req.Format = "json"
	}

	var resp chatResponse
	if err := s.api.Post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	if resp.DoneReason == "length" {
		logger.Debug("ollama: %s reply cut at %d tokens", s.model, opts.MaxTokens)
	}
	return resp.Message.Content, nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists the local models and fails unless the configured one has been
// pulled. A run would otherwise fail on the first article.
func (s *LLMService) Ping(ctx context.Context) error {
	var tags tagsResponse
	if err := s.api.Get(ctx, "/api/tags", &tags); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	for _, m := range tags.Models {
		if sameModel(m.Name, s.model) || sameModel(m.Model, s.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: ollama model %q is not pulled at %s (run: ollama pull %s)",
		domain.ErrLLMUnavailable, s.model, s.api.BaseURL(), s.model)
}

// sameModel treats an untagged name as ":latest".
func sameModel(have, want string) bool {
	if have == "" {
		return false
	}
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	if !strings.Contains(have, ":") {
		have += ":latest"
	}
	return have == want
}

// Close is a no-op; the HTTP client holds no resources of its own.
func (s *LLMService) Close() error {
	return nil
}
