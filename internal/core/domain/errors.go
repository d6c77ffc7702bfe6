package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingField indicates a raw record lacks a required field.
	ErrMissingField = errors.New("missing required field")

	// ErrRunInProgress indicates another run holds the run lock.
	ErrRunInProgress = errors.New("run in progress")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrRateLimited indicates the backend rejected a call for rate reasons.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a failure worth retrying (5xx, network).
	ErrTransient = errors.New("transient failure")

	// ErrUnparsableVerdict indicates a relevance answer was neither YES nor NO.
	ErrUnparsableVerdict = errors.New("unparsable verdict")

	// ErrUnparsableAnalysis indicates analysis output could not be decoded.
	ErrUnparsableAnalysis = errors.New("unparsable analysis")

	// ErrUnknownChannel indicates a profile references an unregistered deliverer.
	ErrUnknownChannel = errors.New("unknown delivery channel")
)

// RateLimitError carries a server-suggested wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// IsTransient reports whether err is worth retrying: rate limits, transient
// backend failures and timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

// IngestionError reports that one source failed to produce documents.
type IngestionError struct {
	SourceID string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.SourceID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ValidationError reports a semantic check that failed after retries.
type ValidationError struct {
	DocumentID string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s: %v", e.DocumentID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AnalysisError reports a document whose analysis failed.
type AnalysisError struct {
	DocumentID string
	Err        error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.DocumentID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// DeliveryError reports a channel that failed for a profile.
type DeliveryError struct {
	ProfileID string
	Channel   string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s via %s: %v", e.ProfileID, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ConfigError reports missing or invalid configuration. It always aborts
// the run before ingestion.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StageError wraps a failure of a whole stage (as opposed to one item).
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
