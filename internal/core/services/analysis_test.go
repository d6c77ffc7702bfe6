package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// mockAnalyzer returns a canned analysis or a per-document error.
type mockAnalyzer struct {
	mu       sync.Mutex
	errs     map[string]error
	partial  map[string]bool
	calls    map[string]int
	personas map[string][]domain.Persona
}

func newMockAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{
		errs:     map[string]error{},
		partial:  map[string]bool{},
		calls:    map[string]int{},
		personas: map[string][]domain.Persona{},
	}
}

func (m *mockAnalyzer) Analyze(_ context.Context, d domain.ScoredDocument, personas []domain.Persona) (domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[d.ID]++
	m.personas[d.ID] = personas
	if err := m.errs[d.ID]; err != nil {
		return domain.Analysis{}, err
	}
	if m.partial[d.ID] {
		return domain.Analysis{TitleEN: "Only English"}, nil
	}
	return domain.Analysis{
		CategoryTag: "Simulation",
		TitleEN:     "EN " + d.Title,
		TitleDE:     "DE " + d.Title,
		TitleZH:     "ZH " + d.Title,
		SummaryEN:   "Summary",
		SummaryDE:   "Zusammenfassung",
		SummaryZH:   "摘要",
		Personas:    personas,
	}, nil
}

func TestAnalysisStage_PreservesOrder(t *testing.T) {
	var selected []domain.ScoredDocument
	for i := 0; i < 10; i++ {
		selected = append(selected, scored(fmt.Sprintf("d%d", i), 10-i, 1, nil))
	}

	stage := NewAnalysisStage(newMockAnalyzer(), nil, 4)
	out, errs := stage.Analyze(context.Background(), selected)
	require.Empty(t, errs)
	require.Len(t, out, 10)
	for i, a := range out {
		assert.Equal(t, selected[i].ID, a.ID)
		assert.False(t, a.Fallback)
		assert.Equal(t, "EN "+selected[i].Title, a.Analysis.TitleEN)
	}
}

// A truncated response yields a fallback derived from the title.
func TestAnalysisStage_FallbackOnUnparsable(t *testing.T) {
	analyzer := newMockAnalyzer()
	analyzer.errs["bad"] = fmt.Errorf("decode: %w", domain.ErrUnparsableAnalysis)

	r, _ := recordingRetrier(3)
	stage := NewAnalysisStage(analyzer, r, 2)
	good := scored("good", 3, 1, nil)
	bad := scored("bad", 3, 1, nil)
	bad.Title = "Digital Twin for Predictive Maintenance"

	out, errs := stage.Analyze(context.Background(), []domain.ScoredDocument{good, bad})
	require.Len(t, out, 2)
	require.Len(t, errs, 1)

	var aerr *domain.AnalysisError
	require.ErrorAs(t, errs[0], &aerr)
	assert.Equal(t, "bad", aerr.DocumentID)
	assert.ErrorIs(t, errs[0], domain.ErrUnparsableAnalysis)

	fb := out[1]
	assert.True(t, fb.Fallback)
	assert.Equal(t, bad.Title, fb.Analysis.TitleEN)
	assert.Equal(t, bad.Title, fb.Analysis.SummaryDE)
	assert.Equal(t, bad.Title, fb.TitleIn("zh"))
	require.NotNil(t, fb.Analysis.Student)
	assert.Contains(t, fb.Analysis.Student.SimpleExplanation, bad.Title)

	// Unparsable output is not retried by the policy.
	assert.Equal(t, 1, analyzer.calls["bad"])
}

func TestAnalysisStage_RetriesTransient(t *testing.T) {
	analyzer := newMockAnalyzer()
	analyzer.errs["slow"] = domain.ErrTransient

	r, _ := recordingRetrier(3)
	stage := NewAnalysisStage(analyzer, r, 1)
	out, errs := stage.Analyze(context.Background(), []domain.ScoredDocument{scored("slow", 2, 1, nil)})
	require.Len(t, errs, 1)
	assert.True(t, out[0].Fallback)
	assert.Equal(t, 3, analyzer.calls["slow"])
}

func TestAnalysisStage_FillsPartialOutput(t *testing.T) {
	analyzer := newMockAnalyzer()
	analyzer.partial["p"] = true
	tech := scored("p", 4, 1, nil)
	tech.PersonaTags = []string{domain.TagTechnician}

	out, errs := NewAnalysisStage(analyzer, nil, 1).Analyze(context.Background(), []domain.ScoredDocument{tech})
	require.Empty(t, errs)
	a := out[0]
	assert.False(t, a.Fallback)
	assert.Equal(t, "Only English", a.Analysis.TitleEN)
	assert.Equal(t, tech.Title, a.Analysis.TitleDE)
	assert.Equal(t, []domain.Persona{domain.PersonaTechnician}, analyzer.personas["p"])
	assert.True(t, a.Analysis.Satisfies(domain.PersonaTechnician))
	assert.False(t, a.Analysis.Satisfies(domain.PersonaStudent))
	require.NotNil(t, a.Analysis.Technician)
	assert.NotEmpty(t, a.Analysis.Technician.AnalysisDE)
}
