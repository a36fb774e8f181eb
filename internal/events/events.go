package events

import (
	"context"
	"time"

	"wisefido-shift/internal/domain"
)

// Type shift lifecycle event name
type Type string

const (
	PunchedIn    Type = "shift.punched_in"
	PunchedOut   Type = "shift.punched_out"
	ReminderSent Type = "reminder.sent"
)

// DefaultStream Redis stream the events are appended to
const DefaultStream = "shift:events"

// Event one published lifecycle change
type Event struct {
	ID         string            `json:"eventId"`
	Type       Type              `json:"eventType"`
	OccurredAt time.Time         `json:"occurredAt"`
	Record     domain.RecordView `json:"record"`
}

// Publisher delivers lifecycle events to sync/export consumers.
// Publish failures never roll back the write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, t Type, rec *domain.AttendanceRecord) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Type, *domain.AttendanceRecord) error { return nil }
