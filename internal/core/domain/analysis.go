package domain

import (
	"fmt"
	"strings"
)

// Persona is a named audience archetype.
type Persona string

// Known personas.
const (
	PersonaStudent    Persona = "student"
	PersonaTechnician Persona = "technician"
)

// Routing tags derived from scoring.
const (
	TagGeneral    = "general"
	TagTechnician = "technician"
)

// StudentView holds the beginner-oriented deep dive.
type StudentView struct {
	SimpleExplanation string
}

// TechnicianView holds the shop-floor oriented deep dive, written in German.
type TechnicianView struct {
	AnalysisDE string
}

// Analysis is the structured output of the analysis capability.
// Persona-specific fields live in optional views; Personas lists the
// audiences this analysis satisfies.
type Analysis struct {
	CategoryTag string

	TitleZH string
	TitleEN string
	TitleDE string

	SummaryZH string
	SummaryEN string
	SummaryDE string

	CoreTechPoints string
	GermanContext  string
	ToolStack      string

	Student    *StudentView
	Technician *TechnicianView

	Personas []Persona
}

// Satisfies reports whether the analysis carries a view for the persona.
func (a Analysis) Satisfies(p Persona) bool {
	for _, have := range a.Personas {
		if have == p {
			return true
		}
	}
	return false
}

// AnalyzedDocument is a ScoredDocument enriched with analysis.
type AnalyzedDocument struct {
	ScoredDocument

	Analysis Analysis

	// Fallback is set when the analysis was derived from the document itself
	// because the backend failed or returned unusable output.
	Fallback bool
}

// Tags returns the routing tags: persona tags plus the lower-cased category.
func (d AnalyzedDocument) Tags() []string {
	tags := make([]string, 0, len(d.PersonaTags)+1)
	tags = append(tags, d.PersonaTags...)
	if c := strings.ToLower(strings.TrimSpace(d.Analysis.CategoryTag)); c != "" {
		tags = append(tags, c)
	}
	return tags
}

// TitleIn returns the title in the requested language, falling back to the
// English title and then to the original document title.
func (d AnalyzedDocument) TitleIn(lang string) string {
	return firstNonEmpty(pickLang(lang, d.Analysis.TitleZH, d.Analysis.TitleEN, d.Analysis.TitleDE),
		d.Analysis.TitleEN, d.Document.Title)
}

// SummaryIn returns the summary in the requested language with the same
// fallback chain as TitleIn.
func (d AnalyzedDocument) SummaryIn(lang string) string {
	return firstNonEmpty(pickLang(lang, d.Analysis.SummaryZH, d.Analysis.SummaryEN, d.Analysis.SummaryDE),
		d.Analysis.SummaryEN, d.Document.Title)
}

func pickLang(lang, zh, en, de string) string {
	switch strings.ToLower(lang) {
	case "zh":
		return zh
	case "de":
		return de
	default:
		return en
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// PersonasFor returns the personas a scored document should be analysed for.
// Technician-tier matches make an item technician-only.
func PersonasFor(d ScoredDocument) []Persona {
	for _, tag := range d.PersonaTags {
		if tag == TagTechnician {
			return []Persona{PersonaTechnician}
		}
	}
	return []Persona{PersonaStudent, PersonaTechnician}
}

// FallbackAnalysis builds a readable analysis from the document alone.
func FallbackAnalysis(d ScoredDocument) Analysis {
	a := Analysis{}
	a.FillDefaults(d)
	return a
}

// FillDefaults replaces every empty field with a value derived from the
// document so that no delivery ever shows a blank field.
func (a *Analysis) FillDefaults(d ScoredDocument) {
	title := strings.TrimSpace(d.Title)
	if a.CategoryTag == "" {
		a.CategoryTag = firstNonEmpty(d.Category, "Other")
	}
	a.TitleZH = firstNonEmpty(a.TitleZH, title)
	a.TitleEN = firstNonEmpty(a.TitleEN, title)
	a.TitleDE = firstNonEmpty(a.TitleDE, title)
	a.SummaryZH = firstNonEmpty(a.SummaryZH, title)
	a.SummaryEN = firstNonEmpty(a.SummaryEN, title)
	a.SummaryDE = firstNonEmpty(a.SummaryDE, title)
	a.CoreTechPoints = firstNonEmpty(a.CoreTechPoints, title)
	a.GermanContext = firstNonEmpty(a.GermanContext, d.SourceName, d.SourceID)
	a.ToolStack = firstNonEmpty(a.ToolStack, "-")

	if len(a.Personas) == 0 {
		a.Personas = PersonasFor(d)
	}
	for _, p := range a.Personas {
		switch p {
		case PersonaStudent:
			if a.Student == nil {
				a.Student = &StudentView{}
			}
			a.Student.SimpleExplanation = firstNonEmpty(a.Student.SimpleExplanation,
				fmt.Sprintf("Read the original article: %s", title))
		case PersonaTechnician:
			if a.Technician == nil {
				a.Technician = &TechnicianView{}
			}
			a.Technician.AnalysisDE = firstNonEmpty(a.Technician.AnalysisDE,
				fmt.Sprintf("Originalartikel lesen: %s", title))
		}
	}
}
