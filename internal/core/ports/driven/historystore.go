package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// HistoryStore persists delivery history across runs.
// Lookups by (profile, document) must not degrade with log size.
type HistoryStore interface {
	// Append records deliveries.
	Append(ctx context.Context, entries []domain.DeliveryHistoryEntry) error

	// LastDelivered returns the most recent delivery time of a document to a
	// profile. The bool is false when the document was never delivered.
	LastDelivered(ctx context.Context, profileID, documentID string) (time.Time, bool, error)

	// List returns entries for a profile, newest first. An empty profileID
	// lists all profiles; limit <= 0 means no limit.
	List(ctx context.Context, profileID string, limit int) ([]domain.DeliveryHistoryEntry, error)

	// DeleteBefore removes entries delivered strictly before t and returns
	// how many were removed.
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
}

// DigestArchive keeps recently delivered payloads per profile.
type DigestArchive interface {
	// Save stores a delivered digest. Implementations may drop the oldest
	// digests of the profile to bound storage.
	Save(ctx context.Context, digest domain.ArchivedDigest) error

	// Latest returns the newest digest of a profile, or domain.ErrNotFound.
	Latest(ctx context.Context, profileID string) (domain.ArchivedDigest, error)
}

// RunLock prevents overlapping runs from corrupting shared state.
type RunLock interface {
	// Acquire takes the lock for owner. A lock older than staleAfter is
	// taken over. Returns domain.ErrRunInProgress when held by another owner.
	Acquire(ctx context.Context, owner string, staleAfter time.Duration) error

	// Release frees the lock if owner holds it.
	Release(ctx context.Context, owner string) error
}
