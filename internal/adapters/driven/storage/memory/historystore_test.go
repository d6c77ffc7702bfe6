package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

func TestHistoryStore_LastDelivered(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	t1 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)

	require.NoError(t, store.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "student", DocumentID: "a", DeliveredAt: t2},
		{ProfileID: "student", DocumentID: "a", DeliveredAt: t1},
		{ProfileID: "technician", DocumentID: "b", DeliveredAt: t1},
	}))

	got, ok, err := store.LastDelivered(ctx, "student", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, t2, got)

	_, ok, err = store.LastDelivered(ctx, "student", "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "student", DocumentID: "a", DeliveredAt: base},
		{ProfileID: "student", DocumentID: "b", DeliveredAt: base.Add(time.Hour)},
		{ProfileID: "technician", DocumentID: "c", DeliveredAt: base.Add(2 * time.Hour)},
	}))

	got, err := store.List(ctx, "student", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].DocumentID)

	all, err := store.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].DocumentID)
}

func TestHistoryStore_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, []domain.DeliveryHistoryEntry{
		{ProfileID: "p", DocumentID: "old", DeliveredAt: base},
		{ProfileID: "p", DocumentID: "edge", DeliveredAt: base.Add(24 * time.Hour)},
		{ProfileID: "p", DocumentID: "new", DeliveredAt: base.Add(48 * time.Hour)},
	}))

	n, err := store.DeleteBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, store.Len())

	_, ok, _ := store.LastDelivered(ctx, "p", "old")
	assert.False(t, ok)
	_, ok, _ = store.LastDelivered(ctx, "p", "edge")
	assert.True(t, ok)
}

func TestRunLock(t *testing.T) {
	ctx := context.Background()
	lock := NewRunLock()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }

	require.NoError(t, lock.Acquire(ctx, "run-1", time.Hour))
	assert.ErrorIs(t, lock.Acquire(ctx, "run-2", time.Hour), domain.ErrRunInProgress)

	// Stale locks are taken over.
	now = now.Add(2 * time.Hour)
	require.NoError(t, lock.Acquire(ctx, "run-2", time.Hour))
	assert.Equal(t, "run-2", lock.Holder())

	// Releasing with the wrong owner is a no-op.
	require.NoError(t, lock.Release(ctx, "run-1"))
	assert.Equal(t, "run-2", lock.Holder())
	require.NoError(t, lock.Release(ctx, "run-2"))
	assert.Equal(t, "", lock.Holder())
}
