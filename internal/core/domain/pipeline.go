package domain

import (
	"fmt"
	"time"
)

// Default pipeline values.
const (
	DefaultPassThreshold           = 1
	DefaultFallbackAcceptThreshold = 3
	DefaultOverflowCap             = 20
	DefaultCooldownDays            = 7
	DefaultRetentionDays           = 30
	DefaultMaxItemsPerSource       = 20
)

// PipelineConfig selects which stages run and with which thresholds.
type PipelineConfig struct {
	// PassThreshold is the minimum score for a document to pass scoring.
	PassThreshold int

	// FallbackAcceptThreshold is the minimum score for a document whose
	// semantic verdict is indeterminate to be kept.
	FallbackAcceptThreshold int

	ValidationEnabled bool

	// TopN caps analysed items; zero or less means unlimited.
	TopN int

	// OverflowCap bounds the related-but-unanalysed list; zero or less
	// means unlimited.
	OverflowCap int

	// SourceTypeCaps limits selected items per source type.
	SourceTypeCaps map[SourceType]int

	// ExclusiveTags are tags that only reach profiles listing them.
	ExclusiveTags []string

	CooldownDays      int
	RetentionDays     int
	MaxItemsPerSource int
}

// DefaultPipelineConfig returns the baseline two-stage configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PassThreshold:           DefaultPassThreshold,
		FallbackAcceptThreshold: DefaultFallbackAcceptThreshold,
		ValidationEnabled:       true,
		TopN:                    20,
		OverflowCap:             DefaultOverflowCap,
		SourceTypeCaps:          map[SourceType]int{SourceTypeVideo: 2},
		ExclusiveTags:           []string{TagTechnician},
		CooldownDays:            DefaultCooldownDays,
		RetentionDays:           DefaultRetentionDays,
		MaxItemsPerSource:       DefaultMaxItemsPerSource,
	}
}

// Validate checks internal consistency.
func (c PipelineConfig) Validate() error {
	if c.PassThreshold < 0 {
		return fmt.Errorf("%w: pass_threshold must not be negative", ErrInvalidInput)
	}
	if c.ValidationEnabled && c.FallbackAcceptThreshold <= c.PassThreshold {
		return fmt.Errorf("%w: fallback_accept_threshold (%d) must exceed pass_threshold (%d)",
			ErrInvalidInput, c.FallbackAcceptThreshold, c.PassThreshold)
	}
	if c.CooldownDays < 0 {
		return fmt.Errorf("%w: cooldown_days must not be negative", ErrInvalidInput)
	}
	if c.RetentionDays > 0 && c.RetentionDays < c.CooldownDays {
		return fmt.Errorf("%w: retention_days (%d) is shorter than cooldown_days (%d)",
			ErrInvalidInput, c.RetentionDays, c.CooldownDays)
	}
	return nil
}

// Cooldown returns the cooldown window as a duration.
func (c PipelineConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownDays) * 24 * time.Hour
}

// Retention returns the retention horizon as a duration.
func (c PipelineConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// RunOptions are per-invocation switches.
type RunOptions struct {
	SkipDynamic    bool
	SkipValidation bool

	// TopN overrides PipelineConfig.TopN when set.
	TopN *int

	// DryRun computes everything but delivers only to stdout and records
	// no history.
	DryRun bool

	// Mock replaces the analysis backend with deterministic output.
	Mock bool

	// Strict aborts the run on the first stage error.
	Strict bool

	// ReportPath, when set, receives a Markdown filter report.
	ReportPath string

	// Now pins the run clock; zero means time.Now().
	Now time.Time
}

// Stage names used in stats, logs and metrics.
const (
	StageIngest   = "ingest"
	StageDedup    = "dedup"
	StageScore    = "score"
	StageValidate = "validate"
	StageSelect   = "select"
	StageAnalyze  = "analyze"
	StageRoute    = "route"
	StageDeliver  = "deliver"
)

// RunStats is the run-level metadata handed to delivery channels.
type RunStats struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Scraped   int
	Deduped   int
	Passed    int
	Validated int
	Analyzed  int
	Delivered int

	Fallbacks int

	// Errors holds per-item and per-stage failures that did not abort the run.
	Errors []error
}

// RunResult is returned by a pipeline run.
type RunResult struct {
	Stats    RunStats
	Scored   []ScoredDocument
	Selected []ScoredDocument
	Overflow []ScoredDocument
	Analyzed []AnalyzedDocument
	Routing  Routing

	// Failed lists profiles where at least one channel failed.
	Failed []string
}

// CheckResult is the outcome of one setup check.
type CheckResult struct {
	Name   string
	Detail string
	Err    error
}

// OK reports whether the check passed.
func (c CheckResult) OK() bool {
	return c.Err == nil
}
