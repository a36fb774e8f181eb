package repository

import (
	"context"
	"sort"
	"sync"

	"wisefido-shift/internal/domain"
)

// MemoryShiftRepository ShiftStore kept in process memory, used when the
// database is disabled or unreachable (demo mode) and in tests.
// - records keyed by id
// - open index keyed by owner enforces one open shift per owner
// - every read returns a copy
type MemoryShiftRepository struct {
	mu      sync.RWMutex
	records map[int64]*domain.AttendanceRecord
	open    map[string]int64 // ownerID -> id of the open record
}

func NewMemoryShiftRepository() *MemoryShiftRepository {
	return &MemoryShiftRepository{
		records: map[int64]*domain.AttendanceRecord{},
		open:    map[string]int64{},
	}
}

var _ ShiftStore = (*MemoryShiftRepository)(nil)

func (r *MemoryShiftRepository) FindOpen(ctx context.Context, ownerID string) (*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("find open shift", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.open[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.records[id].Clone(), nil
}

func (r *MemoryShiftRepository) FindByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("find shift by id", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *MemoryShiftRepository) Insert(ctx context.Context, rec *domain.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return unavailable("insert shift", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return ErrDuplicateID
	}
	if rec.IsOpen() {
		if _, exists := r.open[rec.OwnerID]; exists {
			return ErrOpenShiftExists
		}
	}

	rec.Version = 1
	r.records[rec.ID] = rec.Clone()
	if rec.IsOpen() {
		r.open[rec.OwnerID] = rec.ID
	}
	return nil
}

func (r *MemoryShiftRepository) Update(ctx context.Context, rec *domain.AttendanceRecord, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return unavailable("update shift", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.records[rec.ID]
	if !ok || cur.OwnerID != rec.OwnerID || !cur.IsOpen() || cur.Version != expectedVersion {
		return ErrVersionConflict
	}

	// Identity and punch-in fields are immutable; only mutable fields are copied.
	next := cur.Clone()
	next.PunchOutAt = rec.Clone().PunchOutAt
	next.Status = rec.Status
	next.DurationHours = rec.Clone().DurationHours
	next.LastReminderSentAt = rec.Clone().LastReminderSentAt
	next.Version = expectedVersion + 1

	r.records[rec.ID] = next
	if !next.IsOpen() {
		delete(r.open, next.OwnerID)
	}
	rec.Version = next.Version
	return nil
}

func (r *MemoryShiftRepository) ListOpenAcrossOwners(ctx context.Context) ([]*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list open shifts", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.AttendanceRecord, 0, len(r.open))
	for _, id := range r.open {
		out = append(out, r.records[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryShiftRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list shifts by owner", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.AttendanceRecord{}
	for _, rec := range r.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
