package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-shift/internal/domain"
)

func openRecord(id int64, owner string) *domain.AttendanceRecord {
	return &domain.AttendanceRecord{
		ID:        id,
		OwnerID:   owner,
		PunchInAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		Status:    domain.StatusWorking,
	}
}

func TestMemoryShiftRepository_InsertFind(t *testing.T) {
	repo := NewMemoryShiftRepository()
	ctx := context.Background()

	rec := openRecord(1, "u-1")
	require.NoError(t, repo.Insert(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	got, err := repo.FindOpen(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// callers cannot mutate stored state through returned pointers
	got.Status = domain.StatusAbsent
	again, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWorking, again.Status)

	_, err = repo.FindOpen(ctx, "u-2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryShiftRepository_InsertConflicts(t *testing.T) {
	repo := NewMemoryShiftRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, openRecord(1, "u-1")))
	assert.ErrorIs(t, repo.Insert(ctx, openRecord(1, "u-2")), ErrDuplicateID)
	assert.ErrorIs(t, repo.Insert(ctx, openRecord(2, "u-1")), ErrOpenShiftExists)
}

func TestMemoryShiftRepository_UpdateCAS(t *testing.T) {
	repo := NewMemoryShiftRepository()
	ctx := context.Background()

	rec := openRecord(1, "u-1")
	require.NoError(t, repo.Insert(ctx, rec))

	sent := rec.PunchInAt.Add(10 * time.Hour)
	next := rec.Clone()
	next.LastReminderSentAt = &sent
	require.NoError(t, repo.Update(ctx, next, 1))
	assert.Equal(t, int64(2), next.Version)

	// stale version
	stale := rec.Clone()
	out := rec.PunchInAt.Add(11 * time.Hour)
	stale.PunchOutAt = &out
	assert.ErrorIs(t, repo.Update(ctx, stale, 1), ErrVersionConflict)

	// owner filter
	foreign := next.Clone()
	foreign.OwnerID = "u-2"
	assert.ErrorIs(t, repo.Update(ctx, foreign, 2), ErrVersionConflict)

	closed := next.Clone()
	closed.PunchOutAt = &out
	closed.Status = domain.StatusOnTimePresent
	closed.LastReminderSentAt = nil
	require.NoError(t, repo.Update(ctx, closed, 2))

	_, err := repo.FindOpen(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// closed rows are never updated again
	assert.ErrorIs(t, repo.Update(ctx, closed, 3), ErrVersionConflict)

	// a new shift may be opened once the previous one closed
	require.NoError(t, repo.Insert(ctx, openRecord(2, "u-1")))
}

func TestMemoryShiftRepository_Lists(t *testing.T) {
	repo := NewMemoryShiftRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, openRecord(3, "u-1")))
	require.NoError(t, repo.Insert(ctx, openRecord(1, "u-2")))
	closed := openRecord(2, "u-3")
	out := closed.PunchInAt.Add(time.Hour)
	closed.PunchOutAt = &out
	closed.Status = domain.StatusAbsent
	require.NoError(t, repo.Insert(ctx, closed))

	open, err := repo.ListOpenAcrossOwners(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, int64(1), open[0].ID)
	assert.Equal(t, int64(3), open[1].ID)

	require.NoError(t, repo.Insert(ctx, openRecord(5, "u-3")))
	mine, err := repo.ListByOwner(ctx, "u-3")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(5), mine[0].ID)
	assert.Equal(t, int64(2), mine[1].ID)
}

func TestMemoryShiftRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryShiftRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListOpenAcrossOwners(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
