package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"wisefido-shift/internal/clock"
	"wisefido-shift/internal/domain"
	"wisefido-shift/internal/events"
	"wisefido-shift/internal/repository"
	"wisefido-shift/internal/status"
)

const (
	DefaultMaxRetries   = 3
	DefaultStoreTimeout = 5 * time.Second
)

// ShiftOptions optional collaborators and limits of ShiftService
type ShiftOptions struct {
	Location     *time.Location   // shift time zone, UTC when nil
	Events       events.Publisher // lifecycle events, discarded when nil
	MaxRetries   int              // conditional-write attempts, DefaultMaxRetries when <= 0
	StoreTimeout time.Duration    // per store call, DefaultStoreTimeout when <= 0
}

// ShiftService punch-in/punch-out lifecycle of attendance records
type ShiftService struct {
	store  repository.ShiftStore
	clock  clock.Clock
	logger *zap.Logger

	loc          *time.Location
	events       events.Publisher
	maxRetries   int
	storeTimeout time.Duration
}

func NewShiftService(store repository.ShiftStore, clk clock.Clock, logger *zap.Logger, opts ShiftOptions) *ShiftService {
	s := &ShiftService{
		store:        store,
		clock:        clk,
		logger:       logger,
		loc:          opts.Location,
		events:       opts.Events,
		maxRetries:   opts.MaxRetries,
		storeTimeout: opts.StoreTimeout,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	return s
}

// Now current instant in the shift time zone.
func (s *ShiftService) Now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Location shift time zone used for classification and display.
func (s *ShiftService) Location() *time.Location {
	return s.loc
}

// PunchIn opens a new shift for ownerID.
func (s *ShiftService) PunchIn(ctx context.Context, ownerID string, isHalfDay bool) (*domain.AttendanceRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidOwner
	}

	if _, err := s.findOpen(ctx, ownerID); err == nil {
		return nil, ErrAlreadyOpen
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Postgres keeps microseconds; millis keep id and punchInAt aligned.
	now := s.Now().Truncate(time.Millisecond)
	rec := &domain.AttendanceRecord{
		ID:        now.UnixMilli(),
		OwnerID:   ownerID,
		PunchInAt: now,
		IsHalfDay: isHalfDay,
		Status:    domain.StatusWorking,
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.insert(ctx, rec)
		switch {
		case err == nil:
			s.logger.Info("Shift punched in",
				zap.String("owner_id", ownerID),
				zap.Int64("record_id", rec.ID),
				zap.String("kind", rec.Kind()),
			)
			s.publish(ctx, events.PunchedIn, rec)
			return rec, nil
		case errors.Is(err, repository.ErrDuplicateID):
			rec.ID++
		case errors.Is(err, repository.ErrOpenShiftExists):
			return nil, ErrAlreadyOpen
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("punch in: %w", ErrConcurrentModification)
}

// PunchOut closes the owner's open shift.
func (s *ShiftService) PunchOut(ctx context.Context, ownerID string) (*domain.AttendanceRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidOwner
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		rec, err := s.findOpen(ctx, ownerID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoOpenShift
		}
		if err != nil {
			return nil, err
		}

		closed, err := s.close(ctx, rec)
		if err == nil {
			return closed, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		if err := s.checkStillOpen(ctx, rec.ID); err != nil {
			return nil, err
		}
	}
	return nil, ErrConcurrentModification
}

// PunchOutRecord closes a specific record of ownerID.
func (s *ShiftService) PunchOutRecord(ctx context.Context, ownerID string, recordID int64) (*domain.AttendanceRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidOwner
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		rec, err := s.findByID(ctx, recordID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoOpenShift
		}
		if err != nil {
			return nil, err
		}
		if rec.OwnerID != ownerID {
			s.logger.Warn("Punch-out on foreign record rejected",
				zap.String("owner_id", ownerID),
				zap.Int64("record_id", recordID),
			)
			return nil, ErrNotOwner
		}
		if !rec.IsOpen() {
			return nil, ErrAlreadyClosed
		}

		closed, err := s.close(ctx, rec)
		if err == nil {
			return closed, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, ErrConcurrentModification
}

// RemainingTime shortfall of the owner's open shift at now; zero once the
// required duration is reached.
func (s *ShiftService) RemainingTime(ctx context.Context, ownerID string, now time.Time) (time.Duration, error) {
	rec, err := s.CurrentShift(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return status.RemainingTime(rec, now), nil
}

// CurrentShift returns the owner's open record or ErrNoOpenShift.
func (s *ShiftService) CurrentShift(ctx context.Context, ownerID string) (*domain.AttendanceRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidOwner
	}
	rec, err := s.findOpen(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoOpenShift
	}
	return rec, err
}

// ListHistory returns the owner's records newest first.
func (s *ShiftService) ListHistory(ctx context.Context, ownerID string) ([]*domain.AttendanceRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidOwner
	}
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.ListByOwner(ctx, ownerID)
}

// close writes the punch-out of rec conditionally on its version.
func (s *ShiftService) close(ctx context.Context, rec *domain.AttendanceRecord) (*domain.AttendanceRecord, error) {
	out := s.Now()
	if !out.After(rec.PunchInAt) {
		// clock skew; punchOutAt must stay after punchInAt
		out = rec.PunchInAt.Add(time.Millisecond)
	}
	in := rec.PunchInAt.In(s.loc)

	next := rec.Clone()
	hours := status.DurationHours(in, out)
	next.PunchOutAt = &out
	next.DurationHours = &hours
	next.Status = status.Classify(in, out, rec.IsHalfDay, in.Weekday())
	next.LastReminderSentAt = nil

	if err := s.update(ctx, next, rec.Version); err != nil {
		return nil, err
	}

	s.logger.Info("Shift punched out",
		zap.String("owner_id", next.OwnerID),
		zap.Int64("record_id", next.ID),
		zap.String("status", string(next.Status)),
		zap.Float64("duration_hours", hours),
	)
	s.publish(ctx, events.PunchedOut, next)
	return next, nil
}

// checkStillOpen re-reads a record after a lost conditional write.
func (s *ShiftService) checkStillOpen(ctx context.Context, id int64) error {
	cur, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if !cur.IsOpen() {
		return ErrAlreadyClosed
	}
	return nil
}

func (s *ShiftService) publish(ctx context.Context, t events.Type, rec *domain.AttendanceRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, t, rec); err != nil {
		s.logger.Warn("Failed to publish shift event",
			zap.String("event_type", string(t)),
			zap.Int64("record_id", rec.ID),
			zap.Error(err),
		)
	}
}

func (s *ShiftService) findOpen(ctx context.Context, ownerID string) (*domain.AttendanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.FindOpen(ctx, ownerID)
}

func (s *ShiftService) findByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.FindByID(ctx, id)
}

func (s *ShiftService) insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Insert(ctx, rec)
}

func (s *ShiftService) update(ctx context.Context, rec *domain.AttendanceRecord, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Update(ctx, rec, expectedVersion)
}
