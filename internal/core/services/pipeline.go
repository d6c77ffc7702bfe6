package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.PipelineRunner = (*Pipeline)(nil)

// staleLockAfter is how long a run lock may be held before another run
// takes it over.
const staleLockAfter = 2 * time.Hour

// PipelineDeps holds the collaborators of a Pipeline.
// Checker, MockChecker, Lock, Archive and Metrics are optional.
type PipelineDeps struct {
	Config   domain.PipelineConfig
	Sources  []domain.SourceConfig
	Profiles []domain.RecipientProfile

	Reader       driven.SourceReader
	Normalizer   *Normalizer
	Deduplicator *Deduplicator
	Scorer       *Scorer

	Checker      driven.RelevanceChecker
	MockChecker  driven.RelevanceChecker
	Analyzer     driven.DocumentAnalyzer
	MockAnalyzer driven.DocumentAnalyzer
	Retrier      *Retrier

	ValidatorConcurrency int
	AnalysisConcurrency  int

	History    *HistoryGuard
	Archive    driven.DigestArchive
	Lock       driven.RunLock
	Deliverers []driven.Deliverer

	// DryRunDeliverer replaces every channel when RunOptions.DryRun is set.
	DryRunDeliverer driven.Deliverer

	Metrics driven.MetricsRecorder
}

// Pipeline runs the digest pipeline end to end.
type Pipeline struct {
	deps       PipelineDeps
	ranker     *Ranker
	deliverers map[string]driven.Deliverer
}

// NewPipeline creates a pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	deliverers := make(map[string]driven.Deliverer, len(deps.Deliverers))
	for _, d := range deps.Deliverers {
		deliverers[d.Name()] = d
	}
	if deps.Normalizer == nil {
		deps.Normalizer = NewNormalizer(nil)
	}
	if deps.Deduplicator == nil {
		deps.Deduplicator = NewDeduplicator(DefaultTitleSimilarity)
	}
	return &Pipeline{
		deps:       deps,
		ranker:     NewRanker(deps.Config.OverflowCap, deps.Config.SourceTypeCaps),
		deliverers: deliverers,
	}
}

// run carries the state of one invocation.
type run struct {
	opts   domain.RunOptions
	now    time.Time
	result *domain.RunResult
}

// stageFailed records a stage-level error. In strict mode it returns the
// error that aborts the run.
func (r *run) stageFailed(stage string, err error) error {
	r.result.Stats.Errors = append(r.result.Stats.Errors, err)
	logger.Warn("%s: %v", stage, err)
	if r.opts.Strict {
		return &domain.StageError{Stage: stage, Err: err}
	}
	return nil
}

// Run executes one digest run.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (p *Pipeline) Run(ctx context.Context, opts domain.RunOptions) (*domain.RunResult, error) {
	wallStart := time.Now()
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	r := &run{
		opts: opts,
		now:  now,
		result: &domain.RunResult{Stats: domain.RunStats{
			RunID:     uuid.New().String(),
			StartedAt: now,
		}},
	}
	stats := &r.result.Stats

	// 1. Configuration must be complete before anything is ingested
	if err := p.checkConfig(opts); err != nil {
		return r.result, err
	}

	// 2. One run at a time
	if p.deps.Lock != nil {
		if err := p.deps.Lock.Acquire(ctx, stats.RunID, staleLockAfter); err != nil {
			return r.result, fmt.Errorf("acquire run lock: %w", err)
		}
		defer func() {
			if err := p.deps.Lock.Release(context.WithoutCancel(ctx), stats.RunID); err != nil {
				logger.Warn("release run lock: %v", err)
			}
		}()
	}
	defer p.flushMetrics()

	logger.Debug("run %s started", stats.RunID)

	// 3. Ingest and normalise
	logger.Section("Ingest")
	start := time.Now()
	docs, err := p.ingest(ctx, r)
	if err != nil {
		return r.result, err
	}
	p.observe(domain.StageIngest, len(docs), start)
	logger.Info("Scraped %d records, %d documents", stats.Scraped, len(docs))

	// 4. Deduplicate
	start = time.Now()
	docs = p.deps.Deduplicator.Dedup(docs)
	stats.Deduped = len(docs)
	p.observe(domain.StageDedup, len(docs), start)
	logger.Info("Deduplicated to %d documents", stats.Deduped)

	// 5. Score
	logger.Section("Filter")
	start = time.Now()
	r.result.Scored = p.deps.Scorer.ScoreAll(docs)
	var passed []domain.ScoredDocument
	for _, d := range r.result.Scored {
		if d.Passed {
			passed = append(passed, d)
		}
	}
	stats.Passed = len(passed)
	p.observe(domain.StageScore, len(passed), start)
	logger.Info("%d of %d documents passed the keyword filter (threshold %d)",
		stats.Passed, stats.Deduped, p.deps.Scorer.Threshold())

	// 6. Semantic validation
	var verdicts map[string]domain.Verdict
	retained := passed
	if p.validationActive(opts) && len(passed) > 0 {
		start = time.Now()
		validator := NewValidator(p.checker(opts), p.deps.Retrier, p.deps.Config.FallbackAcceptThreshold)
		if p.deps.Metrics != nil {
			validator.OnVerdict(func(v domain.Verdict) { p.deps.Metrics.ObserveVerdict(v.String()) })
		}
		var errs []error
		verdicts, errs = validator.Validate(ctx, passed, p.deps.ValidatorConcurrency)
		for _, e := range errs {
			stats.Errors = append(stats.Errors, e)
			p.incError(domain.StageValidate)
		}
		retained = validator.Retain(passed, verdicts)
		p.observe(domain.StageValidate, len(retained), start)
		logger.Info("%d of %d documents confirmed by semantic validation", len(retained), len(passed))
	}
	stats.Validated = len(retained)

	if opts.ReportPath != "" {
		report := RenderFilterReport(r.result.Scored, verdicts, p.deps.Scorer.Threshold(), now)
		if err := os.WriteFile(opts.ReportPath, []byte(report), 0o644); err != nil {
			logger.Warn("write filter report: %v", err)
		} else {
			logger.Info("Filter report written to %s", opts.ReportPath)
		}
	}

	// 7. Rank and select
	start = time.Now()
	topN := p.deps.Config.TopN
	if opts.TopN != nil {
		topN = *opts.TopN
	}
	selection := p.ranker.Select(retained, topN)
	r.result.Selected = selection.Selected
	r.result.Overflow = selection.Overflow
	p.observe(domain.StageSelect, len(selection.Selected), start)
	logger.Info("Selected %d documents for analysis, %d related", len(selection.Selected), len(selection.Overflow))

	// 8. Analyse
	logger.Section("Analyse")
	start = time.Now()
	stage := NewAnalysisStage(p.analyzer(opts), p.deps.Retrier, p.deps.AnalysisConcurrency)
	analyzed, errs := stage.Analyze(ctx, selection.Selected)
	for _, e := range errs {
		stats.Errors = append(stats.Errors, e)
		p.incError(domain.StageAnalyze)
	}
	for _, a := range analyzed {
		if a.Fallback {
			stats.Fallbacks++
		}
	}
	r.result.Analyzed = analyzed
	stats.Analyzed = len(analyzed)
	p.observe(domain.StageAnalyze, len(analyzed), start)
	logger.Info("Analysed %d documents (%d fallbacks)", stats.Analyzed, stats.Fallbacks)

	// 9. Route
	start = time.Now()
	routing, err := p.route(ctx, r, analyzed, relatedRefs(selection.Overflow))
	if err != nil {
		return r.result, err
	}
	r.result.Routing = routing
	p.observe(domain.StageRoute, len(routing.Order), start)

	// 10. Deliver
	logger.Section("Deliver")
	start = time.Now()
	if err := p.deliver(ctx, r); err != nil {
		return r.result, err
	}
	p.observe(domain.StageDeliver, stats.Delivered, start)

	// 11. Maintain history
	if !opts.DryRun && p.deps.History != nil {
		if _, err := p.deps.History.Prune(ctx, now); err != nil {
			logger.Warn("%v", err)
		}
	}

	stats.FinishedAt = now.Add(time.Since(wallStart))
	logger.Info("Run complete: scraped %d, deduped %d, passed %d, validated %d, analysed %d, delivered %d",
		stats.Scraped, stats.Deduped, stats.Passed, stats.Validated, stats.Analyzed, stats.Delivered)
	return r.result, nil
}

// checkConfig fails with a ConfigError when the selected mode is missing a
// collaborator.
func (p *Pipeline) checkConfig(opts domain.RunOptions) error {
	if err := p.deps.Config.Validate(); err != nil {
		return &domain.ConfigError{Field: "pipeline", Err: err}
	}
	if p.deps.Reader == nil {
		return &domain.ConfigError{Field: "sources", Err: fmt.Errorf("%w: no source reader", domain.ErrInvalidInput)}
	}
	if p.deps.Scorer == nil {
		return &domain.ConfigError{Field: "keywords", Err: fmt.Errorf("%w: no keyword table", domain.ErrInvalidInput)}
	}
	if p.validationActive(opts) && p.checker(opts) == nil {
		return &domain.ConfigError{Field: "llm", Err: domain.ErrLLMUnavailable}
	}
	if p.analyzer(opts) == nil {
		return &domain.ConfigError{Field: "llm", Err: domain.ErrLLMUnavailable}
	}
	if opts.DryRun {
		if p.deps.DryRunDeliverer == nil {
			return &domain.ConfigError{Field: "delivery", Err: fmt.Errorf("%w: stdout", domain.ErrUnknownChannel)}
		}
		return nil
	}
	for _, prof := range p.deps.Profiles {
		for _, ch := range prof.Channels {
			if _, ok := p.deliverers[ch]; !ok {
				return &domain.ConfigError{
					Field: "profiles." + prof.ID,
					Err:   fmt.Errorf("%w: %s", domain.ErrUnknownChannel, ch),
				}
			}
		}
	}
	return nil
}

func (p *Pipeline) validationActive(opts domain.RunOptions) bool {
	return p.deps.Config.ValidationEnabled && !opts.SkipValidation
}

func (p *Pipeline) checker(opts domain.RunOptions) driven.RelevanceChecker {
	if opts.Mock && p.deps.MockChecker != nil {
		return p.deps.MockChecker
	}
	return p.deps.Checker
}

func (p *Pipeline) analyzer(opts domain.RunOptions) driven.DocumentAnalyzer {
	if opts.Mock {
		return p.deps.MockAnalyzer
	}
	return p.deps.Analyzer
}

// ingest reads every source. A failing source is skipped; in strict mode it
// aborts the run.
func (p *Pipeline) ingest(ctx context.Context, r *run) ([]domain.Document, error) {
	var (
		docs    []domain.Document
		seq     int
		read    int
		failed  int
		sources int
	)
	for _, src := range p.deps.Sources {
		if r.opts.SkipDynamic && src.Type == domain.SourceTypeDynamic {
			logger.Debug("skipping dynamic source %s", src.ID)
			continue
		}
		sources++

		raws, err := p.deps.Reader.Read(ctx, src)
		if err != nil {
			failed++
			p.incError(domain.StageIngest)
			if abort := r.stageFailed(domain.StageIngest, &domain.IngestionError{SourceID: src.ID, Err: err}); abort != nil {
				return nil, abort
			}
			continue
		}
		if limit := p.deps.Config.MaxItemsPerSource; limit > 0 && len(raws) > limit {
			raws = raws[:limit]
		}
		read += len(raws)

		normalized, errs := p.deps.Normalizer.NormalizeAll(raws, src, seq)
		seq += len(raws)
		for _, e := range errs {
			logger.Debug("%s: dropped record: %v", src.ID, e)
		}
		logger.Info("%s: %d documents", src.DisplayName(), len(normalized))
		docs = append(docs, normalized...)
	}
	r.result.Stats.Scraped = read

	if sources > 0 && failed == sources {
		logger.Warn("every source failed; continuing with an empty run")
	}
	return docs, nil
}

// route fills payloads. When history cannot be read the run continues
// without it unless strict mode is active.
func (p *Pipeline) route(ctx context.Context, r *run, analyzed []domain.AnalyzedDocument, related []domain.RelatedRef) (domain.Routing, error) {
	router := NewRouter(p.deps.Config, p.deps.History)
	routing, err := router.Route(ctx, analyzed, related, p.deps.Profiles, r.now)
	if err == nil {
		return routing, nil
	}
	p.incError(domain.StageRoute)
	if abort := r.stageFailed(domain.StageRoute, err); abort != nil {
		return domain.Routing{}, abort
	}
	return NewRouter(p.deps.Config, nil).Route(ctx, analyzed, related, p.deps.Profiles, r.now)
}

// deliver hands each payload to the profile's channels and records history
// for profiles whose every channel succeeded.
func (p *Pipeline) deliver(ctx context.Context, r *run) error {
	stats := &r.result.Stats
	routing := r.result.Routing
	profiles := make(map[string]domain.RecipientProfile, len(p.deps.Profiles))
	for _, prof := range p.deps.Profiles {
		profiles[prof.ID] = prof
	}

	for _, id := range routing.Order {
		prof := profiles[id]
		payload := routing.Payloads[id]
		payload.Run = snapshot(*stats)

		if len(payload.Primary) == 0 {
			logger.Info("%s: nothing to deliver", id)
			continue
		}

		ok := true
		for _, d := range p.channels(prof, r.opts) {
			if err := d.Deliver(ctx, prof, payload); err != nil {
				ok = false
				p.incError(domain.StageDeliver)
				derr := &domain.DeliveryError{ProfileID: id, Channel: d.Name(), Err: err}
				if abort := r.stageFailed(domain.StageDeliver, derr); abort != nil {
					r.result.Failed = append(r.result.Failed, id)
					return abort
				}
				continue
			}
			logger.Debug("%s: delivered %d items via %s", id, len(payload.Primary), d.Name())
		}
		if !ok {
			r.result.Failed = append(r.result.Failed, id)
			continue
		}

		stats.Delivered += len(payload.Primary)
		if r.opts.DryRun {
			continue
		}
		if p.deps.History != nil {
			if err := p.deps.History.RecordDelivered(ctx, payload.DocumentIDs(), prof, r.now); err != nil {
				if abort := r.stageFailed(domain.StageDeliver, err); abort != nil {
					return abort
				}
			}
		}
		if p.deps.Archive != nil {
			digest := domain.ArchivedDigest{ProfileID: id, RunID: stats.RunID, DeliveredAt: r.now, Payload: payload}
			if err := p.deps.Archive.Save(ctx, digest); err != nil {
				if abort := r.stageFailed(domain.StageDeliver, fmt.Errorf("archiving digest for %s: %w", id, err)); abort != nil {
					return abort
				}
			}
		}
	}
	return nil
}

func (p *Pipeline) channels(prof domain.RecipientProfile, opts domain.RunOptions) []driven.Deliverer {
	if opts.DryRun {
		return []driven.Deliverer{p.deps.DryRunDeliverer}
	}
	out := make([]driven.Deliverer, 0, len(prof.Channels))
	for _, name := range prof.Channels {
		out = append(out, p.deliverers[name])
	}
	return out
}

// snapshot copies stats so channels never observe later mutation.
func snapshot(s domain.RunStats) domain.RunStats {
	s.Errors = append([]error(nil), s.Errors...)
	return s
}

func (p *Pipeline) observe(stage string, count int, start time.Time) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveStage(stage, count, time.Since(start))
	}
}

func (p *Pipeline) incError(stage string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.IncError(stage)
	}
}

func (p *Pipeline) flushMetrics() {
	if p.deps.Metrics == nil {
		return
	}
	if err := p.deps.Metrics.Flush(); err != nil {
		logger.Warn("flush metrics: %v", err)
	}
}
