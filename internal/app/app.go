// Package app wires configuration, adapters and services into a runnable
// digest pipeline.
package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/delivery/email"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/delivery/markdown"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/delivery/notion"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/delivery/stdout"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/langdetect"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/metrics/prom"
	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-digest/internal/connectors/scraped"
	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-digest/internal/core/services"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Options tune the composition for the calling command.
type Options struct {
	// Out receives stdout deliveries; nil means os.Stdout.
	Out io.Writer

	// Plain disables terminal colours.
	Plain bool
}

// App holds the wired services.
type App struct {
	Config *file.Config

	Pipeline  driving.PipelineRunner
	Explainer driving.DocumentExplainer
	History   driving.HistoryService
	Resender  driving.DigestResender
	Checker   driving.SetupChecker

	store *sqlite.Store
	llm   driven.LLMService
}

// New builds every collaborator from cfg. The configuration must already be
// valid. Nothing here touches the network.
func New(cfg *file.Config, opts Options) (*App, error) {
	table, err := file.LoadKeywordTable(cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	pipelineCfg := cfg.PipelineConfig()
	scorer := services.NewScorer(table, pipelineCfg.PassThreshold)

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	guard := services.NewHistoryGuard(store.HistoryStore(), pipelineCfg.Cooldown(), pipelineCfg.Retention())

	a := &App{
		Config:    cfg,
		Explainer: scorer,
		History:   guard,
		store:     store,
	}

	settings := cfg.LLMSettings()
	llm, err := ai.CreateLLMService(settings)
	if err != nil {
		store.Close()
		return nil, &domain.ConfigError{Field: "llm", Err: err}
	}
	a.llm = llm

	prompts, err := file.NewPromptStore(cfg.PromptsDir, ai.DefaultPrompts)
	if err != nil {
		a.Close()
		return nil, err
	}

	reader := scraped.NewReader()
	deps := services.PipelineDeps{
		Config:       pipelineCfg,
		Sources:      cfg.SourceConfigs(),
		Profiles:     cfg.RecipientProfiles(),
		Reader:       reader,
		Normalizer:   services.NewNormalizer(langdetect.New()),
		Deduplicator: services.NewDeduplicator(services.DefaultTitleSimilarity),
		Scorer:       scorer,
		MockChecker:  ai.MockChecker{},
		MockAnalyzer: ai.MockAnalyzer{},
		Retrier: services.NewRetrier(cfg.RetryPolicy(), services.NewRateLimiter(rateLimit(settings)),
			time.Duration(settings.TimeoutSeconds)*time.Second),
		ValidatorConcurrency: settings.Concurrency(),
		AnalysisConcurrency:  settings.Concurrency(),
		History:              guard,
		Archive:              store.DigestArchive(),
		Lock:                 store.RunLock(),
		Metrics:              prom.New(cfg.Metrics.Textfile),
	}

	if llm != nil {
		checker := ai.NewRelevanceChecker(llm)
		checker.SetPromptStore(prompts)
		analyzer := ai.NewDocumentAnalyzer(llm, ai.AnalyzerConfig{
			Local:           settings.Provider.IsLocal(),
			RetrySimplified: settings.Provider.IsLocal(),
		})
		analyzer.SetPromptStore(prompts)
		deps.Checker = checker
		deps.Analyzer = analyzer
		logger.Debug("llm: %s (%s), concurrency %d", settings.Provider, llm.ModelName(), settings.Concurrency())
	} else {
		logger.Debug("llm: not configured, only --mock runs can analyse")
	}

	styles := stdout.DefaultStyles()
	if opts.Plain {
		styles = stdout.Plain()
	}
	deps.DryRunDeliverer = stdout.New(opts.Out, styles)
	deps.Deliverers = deliverers(cfg, deps.DryRunDeliverer)

	a.Pipeline = services.NewPipeline(deps)
	a.Resender = services.NewResender(deps.Archive, deps.Profiles, deps.Deliverers)
	a.Checker = services.NewSetupCheck(services.SetupCheckDeps{
		LLM:       settings,
		Validator: ai.NewConfigValidator(),
		Sources:   deps.Sources,
		Reader:    reader,
		Prompts:   prompts,
	})
	return a, nil
}

// deliverers builds the channels profiles refer to.
func deliverers(cfg *file.Config, out driven.Deliverer) []driven.Deliverer {
	var list []driven.Deliverer
	for _, ch := range cfg.Channels() {
		switch ch {
		case file.ChannelMarkdown:
			list = append(list, markdown.NewWriter(cfg.Delivery.MarkdownDir))
		case file.ChannelNotion:
			list = append(list, notion.New(cfg.Secrets.NotionToken, cfg.Delivery.NotionDatabase))
		case file.ChannelEmail:
			list = append(list, email.NewSender(email.Config{
				Host:    cfg.Delivery.SMTPHost,
				Port:    cfg.Delivery.SMTPPort,
				From:    cfg.Delivery.SMTPFrom,
				User:    cfg.Secrets.SMTPUser,
				Pass:    cfg.Secrets.SMTPPass,
				Subject: cfg.Delivery.Subject,
			}))
		case file.ChannelStdout:
			list = append(list, out)
		}
	}
	return list
}

// rateLimit uses the configured limits, or the provider defaults when unset.
func rateLimit(s *domain.LLMSettings) services.RateLimitConfig {
	if s.RequestsPerSecond > 0 {
		return services.RateLimitConfig{RequestsPerSecond: s.RequestsPerSecond, BurstSize: s.Burst}
	}
	return services.DefaultRateLimits.For(s.Provider.IsLocal())
}

// Close releases the LLM client and the database.
func (a *App) Close() error {
	var errs []error
	if a.llm != nil {
		errs = append(errs, a.llm.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
