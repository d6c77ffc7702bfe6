package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

var base = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.HistoryStore().Append(context.Background(), []domain.DeliveryHistoryEntry{
		{ProfileID: "p", DocumentID: "d", DeliveredAt: base},
	}))
	require.NoError(t, first.Close())

	// Reopening must not re-run migrations or lose data.
	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 3, version)

	entries, err := second.HistoryStore().List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistoryStore_LastDelivered(t *testing.T) {
	ctx := context.Background()
	h := setupTestStore(t).HistoryStore()

	_, ok, err := h.LastDelivered(ctx, "student", "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "student", DocumentID: "d1", DeliveredAt: base},
		{ProfileID: "student", DocumentID: "d1", DeliveredAt: base.Add(48 * time.Hour)},
		{ProfileID: "technician", DocumentID: "d1", DeliveredAt: base.Add(96 * time.Hour)},
	}))

	last, ok, err := h.LastDelivered(ctx, "student", "d1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, last.Equal(base.Add(48*time.Hour)), "got %s", last)
}

func TestHistoryStore_ListAndLimit(t *testing.T) {
	ctx := context.Background()
	h := setupTestStore(t).HistoryStore()

	require.NoError(t, h.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "student", DocumentID: "d1", DeliveredAt: base},
		{ProfileID: "student", DocumentID: "d2", DeliveredAt: base.Add(time.Hour)},
		{ProfileID: "technician", DocumentID: "d3", DeliveredAt: base.Add(2 * time.Hour)},
	}))

	all, err := h.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d3", all[0].DocumentID)

	student, err := h.List(ctx, "student", 1)
	require.NoError(t, err)
	require.Len(t, student, 1)
	assert.Equal(t, "d2", student[0].DocumentID)
}

func TestHistoryStore_AppendRejectsIncompleteEntry(t *testing.T) {
	ctx := context.Background()
	h := setupTestStore(t).HistoryStore()

	err := h.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "student", DocumentID: "d1", DeliveredAt: base},
		{ProfileID: "", DocumentID: "d2", DeliveredAt: base},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// The batch is all or nothing.
	all, err := h.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHistoryStore_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	h := setupTestStore(t).HistoryStore()

	require.NoError(t, h.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "student", DocumentID: "old", DeliveredAt: base.Add(-40 * 24 * time.Hour)},
		{ProfileID: "student", DocumentID: "edge", DeliveredAt: base.Add(-30 * 24 * time.Hour)},
		{ProfileID: "student", DocumentID: "new", DeliveredAt: base},
	}))

	n, err := h.DeleteBefore(ctx, base.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := h.LastDelivered(ctx, "student", "edge")
	require.NoError(t, err)
	assert.True(t, ok, "entries exactly at the horizon are kept")
}

func TestRunLock(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := base
	store.now = func() time.Time { return now }
	lock := store.RunLock()

	require.NoError(t, lock.Acquire(ctx, "run-a", time.Hour))
	require.NoError(t, lock.Acquire(ctx, "run-a", time.Hour), "re-entrant for the same owner")
	assert.ErrorIs(t, lock.Acquire(ctx, "run-b", time.Hour), domain.ErrRunInProgress)

	// Releasing with the wrong owner is a no-op.
	require.NoError(t, lock.Release(ctx, "run-b"))
	assert.ErrorIs(t, lock.Acquire(ctx, "run-b", time.Hour), domain.ErrRunInProgress)

	require.NoError(t, lock.Release(ctx, "run-a"))
	require.NoError(t, lock.Acquire(ctx, "run-b", time.Hour))
}

func TestRunLock_StaleTakeover(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := base
	store.now = func() time.Time { return now }
	lock := store.RunLock()

	require.NoError(t, lock.Acquire(ctx, "crashed", time.Hour))

	now = base.Add(2 * time.Hour)
	require.NoError(t, lock.Acquire(ctx, "fresh", time.Hour))
	assert.ErrorIs(t, lock.Acquire(ctx, "crashed", time.Hour), domain.ErrRunInProgress)
}

func archived(profileID, runID string, at time.Time, title string) domain.ArchivedDigest {
	published := at.Add(-time.Hour)
	return domain.ArchivedDigest{
		ProfileID:   profileID,
		RunID:       runID,
		DeliveredAt: at,
		Payload: domain.DeliveryPayload{
			ProfileID: profileID,
			Primary: []domain.DeliveredItem{{
				AnalyzedDocument: domain.AnalyzedDocument{
					ScoredDocument: domain.ScoredDocument{
						Document: domain.Document{ID: "d-" + runID, Title: title, PublishedAt: &published},
						Score:    5,
					},
					Analysis: domain.Analysis{
						SummaryEN: "summary",
						Student:   &domain.StudentView{SimpleExplanation: "plain"},
					},
				},
				Backfill: true,
			}},
			Run: domain.RunStats{RunID: runID, StartedAt: at, Errors: []error{errors.New("lost")}},
		},
	}
}

func TestDigestArchive_SaveAndLatest(t *testing.T) {
	ctx := context.Background()
	archive := setupTestStore(t).DigestArchive()

	require.NoError(t, archive.Save(ctx, archived("student", "r1", base, "Old digest")))
	require.NoError(t, archive.Save(ctx, archived("student", "r2", base.Add(24*time.Hour), "New digest")))
	require.NoError(t, archive.Save(ctx, archived("technician", "r3", base.Add(48*time.Hour), "Other profile")))

	got, err := archive.Latest(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RunID)
	assert.True(t, got.DeliveredAt.Equal(base.Add(24*time.Hour)))

	require.Len(t, got.Payload.Primary, 1)
	item := got.Payload.Primary[0]
	assert.Equal(t, "New digest", item.Title)
	assert.True(t, item.Backfill)
	require.NotNil(t, item.Analysis.Student)
	assert.Equal(t, "plain", item.Analysis.Student.SimpleExplanation)
	require.NotNil(t, item.PublishedAt)
	assert.True(t, item.PublishedAt.Equal(base.Add(23*time.Hour)))
	assert.Empty(t, got.Payload.Run.Errors)

	_, err = archive.Latest(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, archive.Save(ctx, domain.ArchivedDigest{}), domain.ErrInvalidInput)
}

func TestDigestArchive_KeepsNewestPerProfile(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	archive := store.DigestArchive()

	for i := 0; i < archiveKeep+3; i++ {
		d := archived("student", fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Hour), "t")
		require.NoError(t, archive.Save(ctx, d))
	}
	require.NoError(t, archive.Save(ctx, archived("technician", "x", base, "t")))

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM digest_archive WHERE profile_id = 'student'").Scan(&n))
	assert.Equal(t, archiveKeep, n)
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM digest_archive WHERE profile_id = 'technician'").Scan(&n))
	assert.Equal(t, 1, n)

	latest, err := archive.Latest(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("r%d", archiveKeep+2), latest.RunID)
}
