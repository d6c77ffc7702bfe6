package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceType_IsValid(t *testing.T) {
	for _, st := range []SourceType{SourceTypeWeb, SourceTypeRSS, SourceTypeDynamic, SourceTypeVideo} {
		assert.True(t, st.IsValid(), st)
	}
	assert.False(t, SourceType("podcast").IsValid())
}

func TestScoredDocument_Excluded(t *testing.T) {
	passed := ScoredDocument{Breakdown: []ScoreStep{{Rule: "tier:high:digital twin", Delta: 2}}}
	excluded := ScoredDocument{Breakdown: []ScoreStep{{Rule: "hard_exclude:webinar", Terminal: true}}}

	assert.False(t, passed.Excluded())
	assert.True(t, excluded.Excluded())
}

func TestPersonasFor(t *testing.T) {
	general := ScoredDocument{PersonaTags: []string{TagGeneral}}
	tech := ScoredDocument{PersonaTags: []string{TagGeneral, TagTechnician}}

	assert.Equal(t, []Persona{PersonaStudent, PersonaTechnician}, PersonasFor(general))
	assert.Equal(t, []Persona{PersonaTechnician}, PersonasFor(tech))
}

func TestFallbackAnalysis_NeverBlank(t *testing.T) {
	doc := ScoredDocument{Document: Document{
		ID:         "d1",
		Title:      "Virtuelle Inbetriebnahme im Werk Amberg",
		SourceName: "VDI Nachrichten",
	}}

	a := FallbackAnalysis(doc)

	assert.Equal(t, "Other", a.CategoryTag)
	assert.Equal(t, doc.Title, a.TitleEN)
	assert.Equal(t, doc.Title, a.TitleZH)
	assert.Equal(t, doc.Title, a.SummaryDE)
	assert.Equal(t, "VDI Nachrichten", a.GermanContext)
	require.NotNil(t, a.Student)
	require.NotNil(t, a.Technician)
	assert.Contains(t, a.Student.SimpleExplanation, doc.Title)
	assert.Contains(t, a.Technician.AnalysisDE, doc.Title)
}

func TestAnalysis_FillDefaultsKeepsValues(t *testing.T) {
	doc := ScoredDocument{Document: Document{Title: "Digital Twin", Category: "research"}}
	a := Analysis{CategoryTag: "Simulation", TitleEN: "A digital twin story", Personas: []Persona{PersonaTechnician}}

	a.FillDefaults(doc)

	assert.Equal(t, "Simulation", a.CategoryTag)
	assert.Equal(t, "A digital twin story", a.TitleEN)
	assert.Equal(t, "Digital Twin", a.TitleDE)
	assert.Nil(t, a.Student)
	require.NotNil(t, a.Technician)
	assert.True(t, a.Satisfies(PersonaTechnician))
	assert.False(t, a.Satisfies(PersonaStudent))
}

func TestAnalyzedDocument_TitleAndTags(t *testing.T) {
	d := AnalyzedDocument{
		ScoredDocument: ScoredDocument{
			Document:    Document{Title: "orig"},
			PersonaTags: []string{TagGeneral},
		},
		Analysis: Analysis{CategoryTag: "Digital Twin", TitleDE: "Digitaler Zwilling", TitleEN: "Digital twin"},
	}

	assert.Equal(t, "Digitaler Zwilling", d.TitleIn("de"))
	assert.Equal(t, "Digital twin", d.TitleIn("zh"))
	assert.Equal(t, "orig", d.SummaryIn("en"))
	assert.Equal(t, []string{TagGeneral, "digital twin"}, d.Tags())
}

func TestRecipientProfile_Accepts(t *testing.T) {
	catchAll := RecipientProfile{ID: "all"}
	tech := RecipientProfile{ID: "tech", AcceptedTags: []string{"Technician"}}

	assert.True(t, catchAll.IsCatchAll())
	assert.False(t, tech.IsCatchAll())
	assert.True(t, tech.Accepts([]string{"general", "technician"}))
	assert.False(t, tech.Accepts([]string{"general"}))
	assert.True(t, tech.AcceptsTag("TECHNICIAN"))
}
