package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// Ensure mocks implement the interfaces.
var (
	_ driven.DocumentAnalyzer = MockAnalyzer{}
	_ driven.RelevanceChecker = MockChecker{}
)

// MockAnalyzer returns deterministic analysis without calling a backend.
// It is used for offline runs and tests of the delivery path.
type MockAnalyzer struct{}

// Analyze builds a fixed analysis around the document title.
func (MockAnalyzer) Analyze(_ context.Context, doc domain.ScoredDocument, personas []domain.Persona) (domain.Analysis, error) {
	a := domain.Analysis{
		CategoryTag:    "Digital Twin",
		TitleZH:        fmt.Sprintf("[测试] %s (CN)", doc.Title),
		TitleEN:        fmt.Sprintf("[TEST] %s (EN)", doc.Title),
		TitleDE:        fmt.Sprintf("[TEST] %s (DE)", doc.Title),
		SummaryZH:      "这是一个测试摘要。",
		SummaryEN:      "This is a test summary.",
		SummaryDE:      "Dies ist eine Test-Zusammenfassung.",
		CoreTechPoints: "Mock core tech points.",
		GermanContext:  "Mock context.",
		ToolStack:      "AnyLogic, Python",
		Personas:       personas,
	}
	for _, p := range personas {
		switch p {
		case domain.PersonaStudent:
			a.Student = &domain.StudentView{SimpleExplanation: "这是一个通俗易懂的解释，专门给非技术人员看的。"}
		case domain.PersonaTechnician:
			a.Technician = &domain.TechnicianView{AnalysisDE: "Dies ist eine technische Analyse für Techniker (Mock)."}
		}
	}
	return a, nil
}

// MockChecker accepts every document.
type MockChecker struct{}

// CheckRelevance always answers yes.
func (MockChecker) CheckRelevance(context.Context, string, string) (bool, error) {
	return true, nil
}
