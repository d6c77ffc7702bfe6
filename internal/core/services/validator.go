package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Validator runs the optional semantic relevance check over scored
// candidates and combines its verdicts with the lexical score.
type Validator struct {
	checker           driven.RelevanceChecker
	retrier           *Retrier
	fallbackThreshold int

	// onVerdict is called once per candidate; may be nil.
	onVerdict func(domain.Verdict)
}

// NewValidator creates a validator. fallbackThreshold is the minimum score
// an indeterminate candidate needs to be retained.
func NewValidator(checker driven.RelevanceChecker, retrier *Retrier, fallbackThreshold int) *Validator {
	if retrier == nil {
		retrier = NewRetrier(domain.RetryPolicy{MaxAttempts: 1}, nil, 0)
	}
	return &Validator{
		checker:           checker,
		retrier:           retrier,
		fallbackThreshold: fallbackThreshold,
	}
}

// OnVerdict registers a hook observing each verdict.
func (v *Validator) OnVerdict(fn func(domain.Verdict)) {
	v.onVerdict = fn
}

// Validate checks every candidate with at most concurrency calls in flight.
// The result is keyed by document ID so completion order never leaks into
// ranking. Failures after retries and unparsable answers become
// INDETERMINATE; the returned errors are informational only.
func (v *Validator) Validate(ctx context.Context, candidates []domain.ScoredDocument, concurrency int) (map[string]domain.Verdict, []error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		verdicts = make(map[string]domain.Verdict, len(candidates))
		errs     []error
	)

	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, c := range candidates {
		g.Go(func() error {
			verdict, err := v.check(ctx, c)

			mu.Lock()
			verdicts[c.ID] = verdict
			if err != nil {
				errs = append(errs, &domain.ValidationError{DocumentID: c.ID, Err: err})
			}
			mu.Unlock()

			if v.onVerdict != nil {
				v.onVerdict(verdict)
			}
			logger.Debug("validate %s: %s (%q)", c.ID, verdict, c.Title)
			return nil
		})
	}
	_ = g.Wait()

	return verdicts, errs
}

func (v *Validator) check(ctx context.Context, c domain.ScoredDocument) (domain.Verdict, error) {
	var relevant bool
	err := v.retrier.Do(ctx, "validate "+c.ID, func(ctx context.Context) error {
		var err error
		relevant, err = v.checker.CheckRelevance(ctx, c.Title, c.Excerpt)
		return err
	})
	switch {
	case err == nil && relevant:
		return domain.VerdictYes, nil
	case err == nil:
		return domain.VerdictNo, nil
	default:
		return domain.VerdictIndeterminate, err
	}
}

// Retain keeps candidates whose verdict is YES, or INDETERMINATE with a
// score at or above the fallback threshold. A candidate missing from the
// verdict map counts as indeterminate. Input order is preserved.
func (v *Validator) Retain(candidates []domain.ScoredDocument, verdicts map[string]domain.Verdict) []domain.ScoredDocument {
	kept := make([]domain.ScoredDocument, 0, len(candidates))
	for _, c := range candidates {
		verdict, ok := verdicts[c.ID]
		if !ok {
			verdict = domain.VerdictIndeterminate
		}
		switch verdict {
		case domain.VerdictYes:
			kept = append(kept, c)
		case domain.VerdictIndeterminate:
			if c.Score >= v.fallbackThreshold {
				kept = append(kept, c)
			}
		}
	}
	return kept
}
