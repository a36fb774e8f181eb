package repository

import (
	"context"
	"errors"
	"fmt"

	"wisefido-shift/internal/domain"
)

var (
	// ErrNotFound no matching record
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID a record with the same id already exists
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrOpenShiftExists the owner already has an open record
	ErrOpenShiftExists = errors.New("owner already has an open shift")
	// ErrVersionConflict the conditional update matched no row: the record was
	// closed, changed owner filter, or its version moved on.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrStoreUnavailable the backing persistence could not be reached
	ErrStoreUnavailable = errors.New("shift store unavailable")
)

// unavailable wraps a driver/connection failure so callers can match
// ErrStoreUnavailable while keeping the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// ShiftStore durable storage for attendance records
type ShiftStore interface {
	// FindOpen returns the owner's open record or ErrNotFound.
	FindOpen(ctx context.Context, ownerID string) (*domain.AttendanceRecord, error)

	// FindByID returns a record by id or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error)

	// Insert persists a new record with version 1. It never overwrites:
	// ErrDuplicateID on id collision, ErrOpenShiftExists when the owner
	// already has an open record.
	Insert(ctx context.Context, rec *domain.AttendanceRecord) error

	// Update writes rec only if the stored row still has the same owner,
	// is still open and carries expectedVersion; otherwise ErrVersionConflict.
	// On success rec.Version is expectedVersion+1.
	Update(ctx context.Context, rec *domain.AttendanceRecord, expectedVersion int64) error

	// ListOpenAcrossOwners returns every open record.
	ListOpenAcrossOwners(ctx context.Context) ([]*domain.AttendanceRecord, error)

	// ListByOwner returns the owner's records ordered by id descending.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.AttendanceRecord, error)
}

// ContactDirectory resolves where an owner's reminders are delivered.
type ContactDirectory interface {
	// LookupContact returns the owner's contact or ErrNotFound.
	LookupContact(ctx context.Context, ownerID string) (*domain.Contact, error)
}
