package ai

import (
	"strings"

	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// DefaultPrompts holds the built-in prompt templates keyed by prompt name.
// A PromptStore may override any of them.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var DefaultPrompts = map[string]string{
	driven.PromptRelevanceSystem: `You are a relevance filter for industrial technology news. Reply with only YES or NO.`,

	driven.PromptRelevanceUser: `Title: %s
Snippet: %s

Is this article about industrial AI, discrete event simulation, digital twin, or smart manufacturing? Reply with only YES or NO.`,

	driven.PromptAnalysisSystem: `Role: You are a senior engineer working on German Industrie 4.0 projects, bridging automation engineering (OT) and data science (IT).

Task: Analyse the news item below for two audiences: engineering students and shop-floor technicians.

Constraints:
1. Link the content to concrete tooling such as Siemens TIA Portal (PLC programming, HMI configuration) and Jupyter notebooks (data cleaning, model training).
2. Avoid clichés.
   - Student view: explain the data flow (sensor -> PLC -> Jupyter -> simulation model).
   - Technician view: focus on maintenance (Instandhaltung), equipment availability (Anlagenverfügbarkeit) and OEE.
3. Keep key German and English terms in their original form with a short Chinese gloss.

Output pure JSON and nothing else, with exactly these keys:
{
    "category_tag": "one of Digital Twin / Industry 4.0 / Simulation / AI / Research",
    "title_zh": "Chinese title",
    "title_en": "English title",
    "title_de": "German title (professional register)",
    "summary_zh": "one-sentence Chinese summary",
    "summary_en": "one-sentence English summary",
    "summary_de": "one-sentence German summary",
    "core_tech_points": "core technical points",
    "german_context": "German application context",
    "tool_stack": "software tools involved",
    "simple_explanation": "student deep dive in Chinese: relate to TIA Portal, Jupyter and real pain points",
    "technician_analysis_de": "technician analysis in German: maintenance, PLC/SPS, OEE, TIA Portal integration, VDI tone"
}

Pay attention to VDI guidelines, the Asset Administration Shell (Verwaltungsschale) and industrial software tool names.
Only output JSON, no explanation.`,

	driven.PromptAnalysisRetry: `You are a JSON generator. Output ONLY a JSON object with these keys: "category_tag", "title_zh", "title_en", "title_de", "summary_zh", "summary_en", "summary_de", "core_tech_points", "german_context", "tool_stack", "simple_explanation", "technician_analysis_de". No explanation, no markdown, ONLY JSON.`,
}

// promptLoader resolves prompts from an optional store, falling back to
// DefaultPrompts.
type promptLoader struct {
	store driven.PromptStore
}

func (l promptLoader) load(name string) string {
	if l.store != nil {
		if p, err := l.store.Load(name); err == nil && strings.TrimSpace(p) != "" {
			return p
		}
	}
	return DefaultPrompts[name]
}
