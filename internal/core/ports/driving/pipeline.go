package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// PipelineRunner executes one digest run end to end.
type PipelineRunner interface {
	// Run ingests, filters, analyses and delivers. A non-nil error means the
	// run was aborted (configuration error, lock held, or strict-mode failure);
	// the result may still carry partial stats.
	Run(ctx context.Context, opts domain.RunOptions) (*domain.RunResult, error)
}

// DocumentExplainer scores a single document and shows why.
type DocumentExplainer interface {
	Explain(doc domain.Document) domain.ScoredDocument
}

// HistoryService exposes delivery history maintenance.
type HistoryService interface {
	// List returns history entries for a profile (all profiles when empty).
	List(ctx context.Context, profileID string, limit int) ([]domain.DeliveryHistoryEntry, error)

	// Prune removes entries beyond the retention horizon, never touching
	// entries inside the cooldown window.
	Prune(ctx context.Context, now time.Time) (int, error)
}

// DigestResender re-sends the last archived digest of a profile.
type DigestResender interface {
	// Resend delivers the newest archived digest of profileID again. An
	// empty channel means every channel of the profile. History is not
	// touched.
	Resend(ctx context.Context, profileID, channel string) (domain.ArchivedDigest, error)
}

// SetupChecker verifies configuration against the outside world before a
// run: LLM reachability, source readability and prompt templates.
type SetupChecker interface {
	Check(ctx context.Context) []domain.CheckResult
}
