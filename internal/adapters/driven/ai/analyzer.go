package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Ensure DocumentAnalyzer implements the interfaces.
var (
	_ driven.DocumentAnalyzer = (*DocumentAnalyzer)(nil)
	_ driven.PromptStoreAware = (*DocumentAnalyzer)(nil)
)

//go:embed analysis.schema.json
var analysisSchemaJSON string

const (
	analysisTemperature = 0.2

	// Local models are verbose and need more room.
	localMaxTokens  = 1500
	remoteMaxTokens = 800

	analysisExcerptRunes = 800
)

// AnalyzerConfig configures a DocumentAnalyzer.
type AnalyzerConfig struct {
	// Local selects the larger token budget used for local models.
	Local bool

	// RetrySimplified re-asks with the short JSON-only prompt when the first
	// answer could not be parsed.
	RetrySimplified bool
}

// DocumentAnalyzer asks an LLM for structured, persona-tagged analysis.
type DocumentAnalyzer struct {
	llm     driven.LLMService
	cfg     AnalyzerConfig
	prompts promptLoader
}

// NewDocumentAnalyzer creates an analyzer backed by llm.
func NewDocumentAnalyzer(llm driven.LLMService, cfg AnalyzerConfig) *DocumentAnalyzer {
	return &DocumentAnalyzer{llm: llm, cfg: cfg}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (a *DocumentAnalyzer) SetPromptStore(store driven.PromptStore) {
	a.prompts.store = store
}

// Analyze returns the analysis for doc. Backend errors are returned as is so
// that callers can retry transient ones; output that cannot be decoded after
// the simplified retry yields domain.ErrUnparsableAnalysis.
func (a *DocumentAnalyzer) Analyze(
	ctx context.Context,
	doc domain.ScoredDocument,
	personas []domain.Persona,
) (domain.Analysis, error) {
	if a.llm == nil {
		return domain.Analysis{}, domain.ErrLLMUnavailable
	}

	user := userContent(doc, personas)

	data, err := a.callAndParse(ctx, a.prompts.load(driven.PromptAnalysisSystem), user)
	if err != nil {
		return domain.Analysis{}, err
	}
	if data == nil && a.cfg.RetrySimplified {
		logger.Warn("%s: retrying analysis of %q with simplified prompt", a.llm.ModelName(), truncate(doc.Title, 40))
		data, err = a.callAndParse(ctx, a.prompts.load(driven.PromptAnalysisRetry), user)
		if err != nil {
			return domain.Analysis{}, err
		}
	}
	if data == nil {
		return domain.Analysis{}, fmt.Errorf("%w: document %s", domain.ErrUnparsableAnalysis, doc.ID)
	}

	return toAnalysis(data, personas), nil
}

// callAndParse returns nil data without error when the answer was unusable.
func (a *DocumentAnalyzer) callAndParse(ctx context.Context, system, user string) (map[string]any, error) {
	maxTokens := remoteMaxTokens
	if a.cfg.Local {
		maxTokens = localMaxTokens
	}

	raw, err := a.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}, driven.ChatOptions{MaxTokens: maxTokens, Temperature: analysisTemperature, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}

	data := ExtractJSON(raw)
	if data == nil {
		logger.Debug("analysis: no JSON object in %d-char answer", len(raw))
		return nil, nil
	}
	if err := validateAnalysis(data); err != nil {
		logger.Debug("analysis: answer failed schema: %v", err)
		return nil, nil
	}
	return data, nil
}

func userContent(doc domain.ScoredDocument, personas []domain.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	fmt.Fprintf(&b, "Source: %s\n", doc.SourceName)
	fmt.Fprintf(&b, "Link: %s\n", doc.URL)
	if len(personas) > 0 {
		names := make([]string, len(personas))
		for i, p := range personas {
			names[i] = string(p)
		}
		fmt.Fprintf(&b, "Audiences: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Excerpt:\n%s\n\nOutput JSON only.", truncate(doc.Excerpt, analysisExcerptRunes))
	return b.String()
}

func toAnalysis(data map[string]any, personas []domain.Persona) domain.Analysis {
	a := domain.Analysis{
		CategoryTag:    stringField(data, "category_tag"),
		TitleZH:        stringField(data, "title_zh"),
		TitleEN:        stringField(data, "title_en"),
		TitleDE:        stringField(data, "title_de"),
		SummaryZH:      stringField(data, "summary_zh"),
		SummaryEN:      stringField(data, "summary_en"),
		SummaryDE:      stringField(data, "summary_de"),
		CoreTechPoints: stringField(data, "core_tech_points"),
		GermanContext:  stringField(data, "german_context"),
		ToolStack:      stringField(data, "tool_stack"),
		Personas:       personas,
	}
	for _, p := range personas {
		switch p {
		case domain.PersonaStudent:
			if s := stringField(data, "simple_explanation"); s != "" {
				a.Student = &domain.StudentView{SimpleExplanation: s}
			}
		case domain.PersonaTechnician:
			if s := stringField(data, "technician_analysis_de"); s != "" {
				a.Technician = &domain.TechnicianView{AnalysisDE: s}
			}
		}
	}
	return a
}

// stringField reads a string, joining lists some models return instead.
func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

var (
	fencePattern        = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	trailingObjectComma = regexp.MustCompile(`,\s*}`)
	trailingArrayComma  = regexp.MustCompile(`,\s*]`)
)

// ExtractJSON pulls a JSON object out of free-form model output. It tries,
// in order: the whole text, a fenced code block, the first balanced brace
// block, and that block with single quotes and trailing commas repaired.
// It returns nil when nothing decodes.
func ExtractJSON(text string) map[string]any {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil
	}

	if obj, ok := decodeObject(raw); ok {
		return obj
	}

	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		if obj, ok := decodeObject(strings.TrimSpace(m[1])); ok {
			return obj
		}
	}

	candidate := firstBraceBlock(raw)
	if candidate == "" {
		return nil
	}
	if obj, ok := decodeObject(candidate); ok {
		return obj
	}
	fixed := strings.ReplaceAll(candidate, "'", `"`)
	fixed = trailingObjectComma.ReplaceAllString(fixed, "}")
	fixed = trailingArrayComma.ReplaceAllString(fixed, "]")
	if obj, ok := decodeObject(fixed); ok {
		return obj
	}
	return nil
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// firstBraceBlock returns the first balanced {...} block, or "".
func firstBraceBlock(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("analysis.schema.json", strings.NewReader(analysisSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("analysis.schema.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

func validateAnalysis(data map[string]any) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}
	return s.Validate(data)
}
