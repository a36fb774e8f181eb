package domain

import (
	"fmt"
	"time"
)

// StatusCode attendance classification of a shift
type StatusCode string

const (
	// StatusWorking is the transient status of an open shift.
	StatusWorking StatusCode = "working"

	StatusLatePresent   StatusCode = "LP"
	StatusLateAbsent    StatusCode = "LA"
	StatusOnTimePresent StatusCode = "OP"
	StatusOff           StatusCode = "OFF"
	StatusOnTimePartial StatusCode = "OA"
	StatusAbsent        StatusCode = "A"
)

// IsTerminal reports whether the code belongs to a closed shift.
func (s StatusCode) IsTerminal() bool {
	switch s {
	case StatusLatePresent, StatusLateAbsent, StatusOnTimePresent, StatusOff, StatusOnTimePartial, StatusAbsent:
		return true
	}
	return false
}

// AttendanceRecord one shift (对应 attendance_records 表)
type AttendanceRecord struct {
	ID      int64  `db:"id"`       // BIGINT, PRIMARY KEY, punch-in unix millis
	OwnerID string `db:"owner_id"` // TEXT, NOT NULL, immutable

	PunchInAt  time.Time  `db:"punch_in_at"`  // TIMESTAMPTZ, NOT NULL, immutable
	PunchOutAt *time.Time `db:"punch_out_at"` // TIMESTAMPTZ, NULL while open

	IsHalfDay bool       `db:"is_half_day"` // BOOLEAN, fixed at punch-in
	Status    StatusCode `db:"status"`

	DurationHours *float64 `db:"duration_hours"` // set on close, 2 decimals

	LastReminderSentAt *time.Time `db:"last_reminder_sent_at"` // only meaningful while open

	// Version optimistic concurrency token, bumped by every successful update.
	Version int64 `db:"version"`
}

// IsOpen reports whether the shift has not been punched out yet.
func (r *AttendanceRecord) IsOpen() bool {
	return r.PunchOutAt == nil
}

// Kind "half-day" or "full-day"
func (r *AttendanceRecord) Kind() string {
	if r.IsHalfDay {
		return "half-day"
	}
	return "full-day"
}

// Clone returns a deep copy so stores never share pointers with callers.
func (r *AttendanceRecord) Clone() *AttendanceRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.PunchOutAt != nil {
		t := *r.PunchOutAt
		c.PunchOutAt = &t
	}
	if r.DurationHours != nil {
		d := *r.DurationHours
		c.DurationHours = &d
	}
	if r.LastReminderSentAt != nil {
		t := *r.LastReminderSentAt
		c.LastReminderSentAt = &t
	}
	return &c
}

// FormatDuration renders hours with two decimals, e.g. "9.60".
func FormatDuration(hours float64) string {
	return fmt.Sprintf("%.2f", hours)
}
