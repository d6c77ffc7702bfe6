package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// AnalysisStage enriches selected documents through the analysis backend.
// It never fails: an item whose analysis cannot be obtained gets a fallback
// record derived from the document itself.
type AnalysisStage struct {
	analyzer    driven.DocumentAnalyzer
	retrier     *Retrier
	concurrency int
}

// NewAnalysisStage creates an analysis stage.
func NewAnalysisStage(analyzer driven.DocumentAnalyzer, retrier *Retrier, concurrency int) *AnalysisStage {
	if retrier == nil {
		retrier = NewRetrier(domain.RetryPolicy{MaxAttempts: 1}, nil, 0)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &AnalysisStage{analyzer: analyzer, retrier: retrier, concurrency: concurrency}
}

// Analyze returns one AnalyzedDocument per input, in input order, plus the
// per-item errors that led to fallbacks.
func (s *AnalysisStage) Analyze(ctx context.Context, selected []domain.ScoredDocument) ([]domain.AnalyzedDocument, []error) {
	out := make([]domain.AnalyzedDocument, len(selected))

	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, d := range selected {
		g.Go(func() error {
			personas := domain.PersonasFor(d)

			var analysis domain.Analysis
			err := s.retrier.Do(ctx, "analyze "+d.ID, func(ctx context.Context) error {
				var err error
				analysis, err = s.analyzer.Analyze(ctx, d, personas)
				return err
			})

			result := domain.AnalyzedDocument{ScoredDocument: d}
			if err != nil {
				logger.Warn("analysis failed for %q, using fallback: %v", d.Title, err)
				result.Analysis = domain.FallbackAnalysis(d)
				result.Fallback = true

				mu.Lock()
				errs = append(errs, &domain.AnalysisError{DocumentID: d.ID, Err: err})
				mu.Unlock()
			} else {
				if len(analysis.Personas) == 0 {
					analysis.Personas = personas
				}
				analysis.FillDefaults(d)
				result.Analysis = analysis
			}

			// Each goroutine owns its slot.
			out[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return out, errs
}
