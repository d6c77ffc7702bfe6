package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

type stubValidator struct {
	err   error
	calls int
}

func (v *stubValidator) ValidateLLM(_ context.Context, _ *domain.LLMSettings) error {
	v.calls++
	return v.err
}

type stubPrompts struct {
	prompts  map[string]string
	reloaded bool
}

func (s *stubPrompts) Load(name string) (string, error) {
	p, ok := s.prompts[name]
	if !ok {
		return "", fmt.Errorf("%w: prompt %s", domain.ErrNotFound, name)
	}
	return p, nil
}

func (s *stubPrompts) Reload() { s.reloaded = true }

func (s *stubPrompts) Dir() string { return "/tmp/prompts" }

func validPrompts() *stubPrompts {
	return &stubPrompts{prompts: map[string]string{
		driven.PromptRelevanceSystem: "You filter industrial news.",
		driven.PromptRelevanceUser:   "Title: %s\nSnippet: %s",
		driven.PromptAnalysisSystem:  "Answer in JSON.",
		driven.PromptAnalysisRetry:   "JSON only.",
	}}
}

func TestSetupCheck_AllPass(t *testing.T) {
	validator := &stubValidator{}
	prompts := validPrompts()
	check := NewSetupCheck(SetupCheckDeps{
		LLM:       &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
		Validator: validator,
		Sources:   []domain.SourceConfig{{ID: "web"}, {ID: "rss"}},
		Reader: &mockReader{records: map[string][]domain.RawRecord{
			"web": {{Title: "a"}, {Title: "b"}},
		}},
		Prompts: prompts,
	})

	results := check.Check(context.Background())
	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.OK(), r.Name)
	}
	assert.Equal(t, "llm", results[0].Name)
	assert.Equal(t, "ollama llama3.2", results[0].Detail)
	assert.Equal(t, "source web", results[1].Name)
	assert.Equal(t, "2 records", results[1].Detail)
	assert.Equal(t, "0 records", results[2].Detail)
	assert.Equal(t, "/tmp/prompts", results[3].Detail)
	assert.Equal(t, 1, validator.calls)
	assert.True(t, prompts.reloaded)
}

func TestSetupCheck_UnconfiguredLLMPasses(t *testing.T) {
	validator := &stubValidator{err: domain.ErrLLMUnavailable}
	check := NewSetupCheck(SetupCheckDeps{LLM: &domain.LLMSettings{}, Validator: validator})

	results := check.Check(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Contains(t, results[0].Detail, "not configured")
	assert.Zero(t, validator.calls)
}

func TestSetupCheck_Failures(t *testing.T) {
	prompts := validPrompts()
	prompts.prompts[driven.PromptRelevanceUser] = "Title: %s"
	check := NewSetupCheck(SetupCheckDeps{
		LLM:       &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
		Validator: &stubValidator{err: fmt.Errorf("%w: model gone", domain.ErrLLMUnavailable)},
		Sources:   []domain.SourceConfig{{ID: "web"}, {ID: "rss"}},
		Reader: &mockReader{
			records: map[string][]domain.RawRecord{"rss": {{Title: "a"}}},
			errs:    map[string]error{"web": errors.New("open web.json: no such file")},
		},
		Prompts: prompts,
	})

	results := check.Check(context.Background())
	require.Len(t, results, 4)
	assert.ErrorIs(t, results[0].Err, domain.ErrLLMUnavailable)
	assert.ErrorContains(t, results[1].Err, "no such file")
	assert.True(t, results[2].OK(), "one failing source does not hide the others")
	assert.ErrorIs(t, results[3].Err, domain.ErrInvalidInput)
	assert.ErrorContains(t, results[3].Err, driven.PromptRelevanceUser)
}

func TestSetupCheck_MissingPrompt(t *testing.T) {
	prompts := validPrompts()
	delete(prompts.prompts, driven.PromptAnalysisRetry)

	results := NewSetupCheck(SetupCheckDeps{Prompts: prompts}).Check(context.Background())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, domain.ErrNotFound)
}
