package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Ensure HistoryGuard implements the interface.
var _ driving.HistoryService = (*HistoryGuard)(nil)

// HistoryGuard is the only component that reads or writes delivery history.
// It filters repeats inside the cooldown window and re-admits them as
// flagged backfill when a profile would otherwise fall short.
type HistoryGuard struct {
	store     driven.HistoryStore
	cooldown  time.Duration
	retention time.Duration
}

// NewHistoryGuard creates a history guard over a store.
func NewHistoryGuard(store driven.HistoryStore, cooldown, retention time.Duration) *HistoryGuard {
	return &HistoryGuard{store: store, cooldown: cooldown, retention: retention}
}

// Seen reports whether the document was delivered to the profile less than
// one cooldown window before now.
func (g *HistoryGuard) Seen(ctx context.Context, profileID, documentID string, now time.Time) (bool, error) {
	if g.cooldown <= 0 {
		return false, nil
	}
	last, ok, err := g.store.LastDelivered(ctx, profileID, documentID)
	if err != nil {
		return false, fmt.Errorf("history lookup %s/%s: %w", profileID, documentID, err)
	}
	if !ok {
		return false, nil
	}
	return now.Sub(last) < g.cooldown, nil
}

// FilterUnseen splits documents into fresh ones and repeats for a profile.
// Both results keep input order.
func (g *HistoryGuard) FilterUnseen(ctx context.Context, docs []domain.AnalyzedDocument, profile domain.RecipientProfile, now time.Time) (fresh, repeats []domain.AnalyzedDocument, err error) {
	for _, d := range docs {
		seen, err := g.Seen(ctx, profile.ID, d.ID, now)
		if err != nil {
			return nil, nil, err
		}
		if seen {
			logger.Debug("history: %s already delivered to %s", d.ID, profile.ID)
			repeats = append(repeats, d)
			continue
		}
		fresh = append(fresh, d)
	}
	return fresh, repeats, nil
}

// Backfill tops items up to minItems with the highest-scoring repeats,
// flagged as backfill. Nothing is added when the run's candidate pool is
// smaller than minItems, or when items already reach it.
func (g *HistoryGuard) Backfill(items []domain.DeliveredItem, repeats []domain.AnalyzedDocument, minItems, poolSize int) []domain.DeliveredItem {
	if len(items) >= minItems || poolSize < minItems || len(repeats) == 0 {
		return items
	}

	ranked := make([]domain.AnalyzedDocument, len(repeats))
	copy(ranked, repeats)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(ranked[i].ScoredDocument, ranked[j].ScoredDocument)
	})

	for _, d := range ranked {
		if len(items) >= minItems {
			break
		}
		items = append(items, domain.DeliveredItem{AnalyzedDocument: d, Backfill: true})
	}
	return items
}

// RecordDelivered appends history for the given documents. Call it only
// after every channel of the profile confirmed delivery.
func (g *HistoryGuard) RecordDelivered(ctx context.Context, documentIDs []string, profile domain.RecipientProfile, runAt time.Time) error {
	if len(documentIDs) == 0 {
		return nil
	}
	entries := make([]domain.DeliveryHistoryEntry, len(documentIDs))
	for i, id := range documentIDs {
		entries[i] = domain.DeliveryHistoryEntry{
			ProfileID:   profile.ID,
			DocumentID:  id,
			DeliveredAt: runAt,
		}
	}
	if err := g.store.Append(ctx, entries); err != nil {
		return fmt.Errorf("record history for %s: %w", profile.ID, err)
	}
	return nil
}

// List returns history entries for a profile, newest first.
func (g *HistoryGuard) List(ctx context.Context, profileID string, limit int) ([]domain.DeliveryHistoryEntry, error) {
	return g.store.List(ctx, profileID, limit)
}

// Prune removes entries older than the retention horizon. The horizon is
// never shorter than the cooldown window, so no active entry is removed.
// A zero retention disables pruning.
func (g *HistoryGuard) Prune(ctx context.Context, now time.Time) (int, error) {
	if g.retention <= 0 {
		return 0, nil
	}
	horizon := g.retention
	if g.cooldown > horizon {
		horizon = g.cooldown
	}
	n, err := g.store.DeleteBefore(ctx, now.Add(-horizon))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if n > 0 {
		logger.Debug("history: pruned %d entries older than %s", n, horizon)
	}
	return n, nil
}
