package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

type historyKey struct {
	profileID  string
	documentID string
}

// HistoryStore is an in-memory implementation of driven.HistoryStore.
// Entries are kept in append order with a per-key index of the latest
// delivery time.
type HistoryStore struct {
	mu      sync.RWMutex
	entries []domain.DeliveryHistoryEntry
	latest  map[historyKey]time.Time
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		latest: make(map[historyKey]time.Time),
	}
}

// Append records deliveries.
func (s *HistoryStore) Append(_ context.Context, entries []domain.DeliveryHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries = append(s.entries, e)
		key := historyKey{e.ProfileID, e.DocumentID}
		if prev, ok := s.latest[key]; !ok || e.DeliveredAt.After(prev) {
			s.latest[key] = e.DeliveredAt
		}
	}
	return nil
}

// LastDelivered returns the most recent delivery time for a profile/document.
func (s *HistoryStore) LastDelivered(_ context.Context, profileID, documentID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.latest[historyKey{profileID, documentID}]
	return t, ok, nil
}

// List returns entries for a profile, newest first.
func (s *HistoryStore) List(_ context.Context, profileID string, limit int) ([]domain.DeliveryHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DeliveryHistoryEntry
	for _, e := range s.entries {
		if profileID == "" || e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeliveredAt.After(out[j].DeliveredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteBefore removes entries delivered strictly before t.
func (s *HistoryStore) DeleteBefore(_ context.Context, t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.DeliveredAt.Before(t) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept

	s.latest = make(map[historyKey]time.Time, len(s.entries))
	for _, e := range s.entries {
		key := historyKey{e.ProfileID, e.DocumentID}
		if prev, ok := s.latest[key]; !ok || e.DeliveredAt.After(prev) {
			s.latest[key] = e.DeliveredAt
		}
	}
	return removed, nil
}

// Len returns the number of stored entries.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
