package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
)

// Ensure SetupCheck implements the interface.
var _ driving.SetupChecker = (*SetupCheck)(nil)

// promptPlaceholders is the number of %s verbs each template must carry.
var promptPlaceholders = map[string]int{
	driven.PromptRelevanceSystem: 0,
	driven.PromptRelevanceUser:   2,
	driven.PromptAnalysisSystem:  0,
	driven.PromptAnalysisRetry:   0,
}

// SetupCheckDeps holds the collaborators of a setup check. Any of them may
// be nil, in which case the matching check is skipped.
type SetupCheckDeps struct {
	LLM       *domain.LLMSettings
	Validator driven.AIConfigValidator
	Sources   []domain.SourceConfig
	Reader    driven.SourceReader
	Prompts   driven.PromptStore
}

// SetupCheck runs the checks behind the check command.
type SetupCheck struct {
	deps SetupCheckDeps
}

// NewSetupCheck creates a setup check.
func NewSetupCheck(deps SetupCheckDeps) *SetupCheck {
	return &SetupCheck{deps: deps}
}

// Check runs every check in a fixed order: LLM backend, each source, then
// the prompt templates. It never stops early.
func (c *SetupCheck) Check(ctx context.Context) []domain.CheckResult {
	var results []domain.CheckResult
	if c.deps.Validator != nil {
		results = append(results, c.checkLLM(ctx))
	}
	if c.deps.Reader != nil {
		for _, src := range c.deps.Sources {
			results = append(results, c.checkSource(ctx, src))
		}
	}
	if c.deps.Prompts != nil {
		results = append(results, c.checkPrompts())
	}
	return results
}

func (c *SetupCheck) checkLLM(ctx context.Context) domain.CheckResult {
	res := domain.CheckResult{Name: "llm"}
	settings := c.deps.LLM
	if settings == nil || !settings.IsConfigured() {
		res.Detail = "not configured, keyword scoring and mock analysis only"
		return res
	}
	res.Detail = fmt.Sprintf("%s %s", settings.Provider, settings.Model)
	res.Err = c.deps.Validator.ValidateLLM(ctx, settings)
	return res
}

func (c *SetupCheck) checkSource(ctx context.Context, src domain.SourceConfig) domain.CheckResult {
	res := domain.CheckResult{Name: "source " + src.ID}
	records, err := c.deps.Reader.Read(ctx, src)
	if err != nil {
		res.Err = err
		return res
	}
	res.Detail = fmt.Sprintf("%d records", len(records))
	return res
}

// checkPrompts re-reads the templates from disk so edits made since start
// are seen.
func (c *SetupCheck) checkPrompts() domain.CheckResult {
	res := domain.CheckResult{Name: "prompts", Detail: c.deps.Prompts.Dir()}
	c.deps.Prompts.Reload()
	for _, name := range []string{
		driven.PromptRelevanceSystem,
		driven.PromptRelevanceUser,
		driven.PromptAnalysisSystem,
		driven.PromptAnalysisRetry,
	} {
		text, err := c.deps.Prompts.Load(name)
		if err != nil {
			res.Err = err
			return res
		}
		if got, want := strings.Count(text, "%s"), promptPlaceholders[name]; got != want {
			res.Err = fmt.Errorf("%w: prompt %s has %d %%s placeholders, want %d", domain.ErrInvalidInput, name, got, want)
			return res
		}
	}
	return res
}
