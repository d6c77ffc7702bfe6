package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

var _ driven.DigestArchive = (*DigestArchive)(nil)

// DigestArchive is an in-memory driven.DigestArchive holding the newest
// digest per profile.
type DigestArchive struct {
	mu     sync.RWMutex
	latest map[string]domain.ArchivedDigest
}

// NewDigestArchive creates an empty archive.
func NewDigestArchive() *DigestArchive {
	return &DigestArchive{latest: make(map[string]domain.ArchivedDigest)}
}

// Save keeps d unless the profile already has a newer digest.
func (a *DigestArchive) Save(_ context.Context, d domain.ArchivedDigest) error {
	if d.ProfileID == "" {
		return fmt.Errorf("%w: archived digest needs a profile", domain.ErrInvalidInput)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.latest[d.ProfileID]; ok && prev.DeliveredAt.After(d.DeliveredAt) {
		return nil
	}
	a.latest[d.ProfileID] = d
	return nil
}

// Latest returns the newest digest of a profile.
func (a *DigestArchive) Latest(_ context.Context, profileID string) (domain.ArchivedDigest, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.latest[profileID]
	if !ok {
		return domain.ArchivedDigest{}, fmt.Errorf("%w: no archived digest for %s", domain.ErrNotFound, profileID)
	}
	return d, nil
}
