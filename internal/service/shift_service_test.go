package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-shift/internal/clock"
	"wisefido-shift/internal/domain"
	"wisefido-shift/internal/events"
	"wisefido-shift/internal/repository"
)

// monday 2025-03-03 09:00 UTC
var monday9 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, t events.Type, rec *domain.AttendanceRecord) error {
	args := m.Called(ctx, t, rec)
	return args.Error(0)
}

func newTestService(t *testing.T, start time.Time) (*ShiftService, *repository.MemoryShiftRepository, *clock.Manual) {
	t.Helper()
	store := repository.NewMemoryShiftRepository()
	clk := clock.NewManual(start)
	return NewShiftService(store, clk, zap.NewNop(), ShiftOptions{}), store, clk
}

func TestShiftService_PunchInAndOut(t *testing.T) {
	svc, store, clk := newTestService(t, monday9)
	ctx := context.Background()

	rec, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)
	assert.Equal(t, monday9.UnixMilli(), rec.ID)
	assert.Equal(t, domain.StatusWorking, rec.Status)
	assert.True(t, rec.IsOpen())
	assert.Equal(t, int64(1), rec.Version)

	clk.Advance(9*time.Hour + 36*time.Minute)
	closed, err := svc.PunchOut(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, closed.PunchOutAt)
	require.NotNil(t, closed.DurationHours)
	assert.Equal(t, 9.6, *closed.DurationHours)
	assert.Equal(t, domain.StatusOnTimePresent, closed.Status)
	assert.Nil(t, closed.LastReminderSentAt)
	assert.Equal(t, int64(2), closed.Version)

	stored, err := store.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, closed, stored)
}

func TestShiftService_PunchInRoundTrip(t *testing.T) {
	svc, store, _ := newTestService(t, monday9)
	ctx := context.Background()

	rec, err := svc.PunchIn(ctx, "u-1", true)
	require.NoError(t, err)

	got, err := store.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.OwnerID, got.OwnerID)
	assert.True(t, rec.PunchInAt.Equal(got.PunchInAt))
	assert.Equal(t, rec.IsHalfDay, got.IsHalfDay)
	assert.Equal(t, rec.Status, got.Status)
	assert.Nil(t, got.PunchOutAt)
}

func TestShiftService_DoublePunchIn(t *testing.T) {
	svc, store, clk := newTestService(t, monday9)
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = svc.PunchIn(ctx, "u-1", false)
	assert.ErrorIs(t, err, ErrAlreadyOpen)

	all, err := store.ListByOwner(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestShiftService_ConcurrentPunchInKeepsOneOpen(t *testing.T) {
	svc, store, _ := newTestService(t, monday9)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.PunchIn(ctx, "u-1", false)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyOpen)
	}
	assert.Equal(t, 1, ok)

	open, err := store.ListOpenAcrossOwners(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestShiftService_PunchInIDCollisionRetries(t *testing.T) {
	svc, store, _ := newTestService(t, monday9)
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)

	// same millisecond, different owner
	rec, err := svc.PunchIn(ctx, "u-2", false)
	require.NoError(t, err)
	assert.Equal(t, monday9.UnixMilli()+1, rec.ID)

	got, err := store.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "u-2", got.OwnerID)
}

func TestShiftService_PunchOutWithoutOpenShift(t *testing.T) {
	svc, _, _ := newTestService(t, monday9)

	_, err := svc.PunchOut(context.Background(), "u-1")
	assert.ErrorIs(t, err, ErrNoOpenShift)
}

func TestShiftService_SecondPunchOutHasNoOpenShift(t *testing.T) {
	svc, _, clk := newTestService(t, monday9)
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)
	clk.Advance(10 * time.Hour)
	first, err := svc.PunchOut(ctx, "u-1")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = svc.PunchOut(ctx, "u-1")
	assert.ErrorIs(t, err, ErrNoOpenShift)

	history, err := svc.ListHistory(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].PunchOutAt.Equal(*first.PunchOutAt))
	assert.Equal(t, first.Version, history[0].Version)
}

func TestShiftService_InvalidOwner(t *testing.T) {
	svc, _, _ := newTestService(t, monday9)
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, " ", false)
	assert.ErrorIs(t, err, ErrInvalidOwner)
	_, err = svc.PunchOut(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidOwner)
	_, err = svc.ListHistory(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestShiftService_PunchOutRecord(t *testing.T) {
	svc, _, clk := newTestService(t, monday9)
	ctx := context.Background()

	rec, err := svc.PunchIn(ctx, "u-1", true)
	require.NoError(t, err)

	_, err = svc.PunchOutRecord(ctx, "u-2", rec.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	clk.Advance(5 * time.Hour)
	closed, err := svc.PunchOutRecord(ctx, "u-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnTimePresent, closed.Status)

	// double submit
	_, err = svc.PunchOutRecord(ctx, "u-1", rec.ID)
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	_, err = svc.PunchOutRecord(ctx, "u-1", 42)
	assert.ErrorIs(t, err, ErrNoOpenShift)
}

func TestShiftService_Classification(t *testing.T) {
	tests := []struct {
		name   string
		in     time.Time
		worked time.Duration
		half   bool
		want   domain.StatusCode
	}{
		{"late present", time.Date(2025, 3, 3, 10, 30, 0, 0, time.UTC), 10 * time.Hour, false, domain.StatusLatePresent},
		{"late absent", time.Date(2025, 3, 3, 10, 30, 0, 0, time.UTC), 5 * time.Hour, false, domain.StatusLateAbsent},
		{"sunday off", time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC), 3 * time.Hour, false, domain.StatusOff},
		{"on-time partial", monday9, 5 * time.Hour, false, domain.StatusOnTimePartial},
		{"absent", monday9, 2 * time.Hour, false, domain.StatusAbsent},
		{"half day present", monday9, 4*time.Hour + 45*time.Minute, true, domain.StatusOnTimePresent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, clk := newTestService(t, tt.in)
			ctx := context.Background()

			_, err := svc.PunchIn(ctx, "u-1", tt.half)
			require.NoError(t, err)
			clk.Advance(tt.worked)

			closed, err := svc.PunchOut(ctx, "u-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, closed.Status)
		})
	}
}

func TestShiftService_ClassifiesInShiftTimeZone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	store := repository.NewMemoryShiftRepository()
	// 14:30 UTC is 09:30 EST: on time
	clk := clock.NewManual(time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC))
	svc := NewShiftService(store, clk, zap.NewNop(), ShiftOptions{Location: est})
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)
	clk.Advance(10 * time.Hour)

	closed, err := svc.PunchOut(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnTimePresent, closed.Status)
}

func TestShiftService_RemainingTime(t *testing.T) {
	svc, _, clk := newTestService(t, monday9)
	ctx := context.Background()

	_, err := svc.RemainingTime(ctx, "u-1", clk.Now())
	assert.ErrorIs(t, err, ErrNoOpenShift)

	_, err = svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)

	d, err := svc.RemainingTime(ctx, "u-1", monday9.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = svc.RemainingTime(ctx, "u-1", monday9.Add(11*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestShiftService_ListHistoryNewestFirstAndIsolated(t *testing.T) {
	svc, _, clk := newTestService(t, monday9)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.PunchIn(ctx, "u-1", false)
		require.NoError(t, err)
		_, err = svc.PunchIn(ctx, "u-2", false)
		require.NoError(t, err)
		clk.Advance(time.Hour)
		_, err = svc.PunchOut(ctx, "u-1")
		require.NoError(t, err)
		_, err = svc.PunchOut(ctx, "u-2")
		require.NoError(t, err)
		clk.Advance(24 * time.Hour)
	}

	history, err := svc.ListHistory(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, rec := range history {
		assert.Equal(t, "u-1", rec.OwnerID)
		if i > 0 {
			assert.Less(t, rec.ID, history[i-1].ID)
		}
	}
}

func TestShiftService_PublishesEvents(t *testing.T) {
	store := repository.NewMemoryShiftRepository()
	clk := clock.NewManual(monday9)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, events.PunchedIn, mock.AnythingOfType("*domain.AttendanceRecord")).Return(nil).Once()
	pub.On("Publish", mock.Anything, events.PunchedOut, mock.AnythingOfType("*domain.AttendanceRecord")).Return(errors.New("redis down")).Once()

	svc := NewShiftService(store, clk, zap.NewNop(), ShiftOptions{Events: pub})
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	// publish failure does not fail the punch-out
	_, err = svc.PunchOut(ctx, "u-1")
	require.NoError(t, err)

	pub.AssertExpectations(t)
}

// racingStore closes the record behind the caller's back before the first update.
type racingStore struct {
	*repository.MemoryShiftRepository
	once sync.Once
	at   time.Time
}

func (s *racingStore) Update(ctx context.Context, rec *domain.AttendanceRecord, expectedVersion int64) error {
	s.once.Do(func() {
		other := rec.Clone()
		other.PunchOutAt = &s.at
		_ = s.MemoryShiftRepository.Update(ctx, other, expectedVersion)
	})
	return s.MemoryShiftRepository.Update(ctx, rec, expectedVersion)
}

func TestShiftService_PunchOutLosesRaceToOtherClose(t *testing.T) {
	mem := repository.NewMemoryShiftRepository()
	store := &racingStore{MemoryShiftRepository: mem, at: monday9.Add(time.Hour)}
	clk := clock.NewManual(monday9)
	svc := NewShiftService(store, clk, zap.NewNop(), ShiftOptions{})
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)

	_, err = svc.PunchOut(ctx, "u-1")
	assert.ErrorIs(t, err, ErrAlreadyClosed)
}

// conflictStore always loses the conditional write.
type conflictStore struct {
	*repository.MemoryShiftRepository
	updates int
}

func (s *conflictStore) Update(context.Context, *domain.AttendanceRecord, int64) error {
	s.updates++
	return repository.ErrVersionConflict
}

func TestShiftService_PunchOutGivesUpAfterRetries(t *testing.T) {
	store := &conflictStore{MemoryShiftRepository: repository.NewMemoryShiftRepository()}
	clk := clock.NewManual(monday9)
	svc := NewShiftService(store, clk, zap.NewNop(), ShiftOptions{MaxRetries: 3})
	ctx := context.Background()

	_, err := svc.PunchIn(ctx, "u-1", false)
	require.NoError(t, err)

	_, err = svc.PunchOut(ctx, "u-1")
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 3, store.updates)
}

// downStore fails every call as an unreachable database would.
type downStore struct {
	repository.ShiftStore
}

func (downStore) FindOpen(context.Context, string) (*domain.AttendanceRecord, error) {
	return nil, repository.ErrStoreUnavailable
}

func TestShiftService_StoreUnavailable(t *testing.T) {
	svc := NewShiftService(downStore{}, clock.NewManual(monday9), zap.NewNop(), ShiftOptions{})

	_, err := svc.PunchIn(context.Background(), "u-1", false)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	_, err = svc.PunchOut(context.Background(), "u-1")
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
}
