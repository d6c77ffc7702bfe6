package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// Ensure RelevanceChecker implements the interfaces.
var (
	_ driven.RelevanceChecker = (*RelevanceChecker)(nil)
	_ driven.PromptStoreAware = (*RelevanceChecker)(nil)
)

const (
	relevanceTemperature = 0.1
	relevanceMaxTokens   = 5

	// relevanceExcerptRunes bounds the snippet sent with the question.
	relevanceExcerptRunes = 300
)

// RelevanceChecker asks an LLM a strict yes/no relevance question.
type RelevanceChecker struct {
	llm     driven.LLMService
	prompts promptLoader
}

// NewRelevanceChecker creates a relevance checker backed by llm.
func NewRelevanceChecker(llm driven.LLMService) *RelevanceChecker {
	return &RelevanceChecker{llm: llm}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (c *RelevanceChecker) SetPromptStore(store driven.PromptStore) {
	c.prompts.store = store
}

// CheckRelevance returns true for YES, false for NO and
// domain.ErrUnparsableVerdict for anything else.
func (c *RelevanceChecker) CheckRelevance(ctx context.Context, title, excerpt string) (bool, error) {
	if c.llm == nil {
		return false, domain.ErrLLMUnavailable
	}

	userTmpl := c.prompts.load(driven.PromptRelevanceUser)
	if strings.Count(userTmpl, "%s") != 2 {
		userTmpl = DefaultPrompts[driven.PromptRelevanceUser]
	}

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: c.prompts.load(driven.PromptRelevanceSystem)},
		{Role: driven.RoleUser, Content: fmt.Sprintf(userTmpl, title, truncate(excerpt, relevanceExcerptRunes))},
	}

	answer, err := c.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   relevanceMaxTokens,
		Temperature: relevanceTemperature,
	})
	if err != nil {
		return false, fmt.Errorf("relevance check: %w", err)
	}
	return ParseVerdict(answer)
}

// ParseVerdict interprets a model answer. Leading whitespace, quotes and
// punctuation are ignored and matching is case-insensitive.
func ParseVerdict(answer string) (bool, error) {
	word := strings.TrimLeftFunc(answer, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	word = strings.ToUpper(word)
	switch {
	case strings.HasPrefix(word, "YES"):
		return true, nil
	case strings.HasPrefix(word, "NO"):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnparsableVerdict, truncate(answer, 40))
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
