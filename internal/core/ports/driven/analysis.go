package driven

import (
	"context"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// RelevanceChecker answers whether a document is on topic.
type RelevanceChecker interface {
	// CheckRelevance returns the YES/NO verdict for title and excerpt.
	// An answer that is neither returns domain.ErrUnparsableVerdict.
	CheckRelevance(ctx context.Context, title, excerpt string) (bool, error)
}

// DocumentAnalyzer produces the structured analysis of a selected document.
type DocumentAnalyzer interface {
	// Analyze returns fields for doc, including the views the given personas
	// need. Undecodable output returns domain.ErrUnparsableAnalysis.
	Analyze(ctx context.Context, doc domain.ScoredDocument, personas []domain.Persona) (domain.Analysis, error)
}

// LanguageDetector guesses the language of short text.
type LanguageDetector interface {
	// Detect returns an ISO 639-1 code, or "" when unsure.
	Detect(text string) string
}
