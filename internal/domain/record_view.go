package domain

import "time"

// Layouts of the persisted display fields (en-US locale strings of the web client).
const (
	DateLayout = "1/2/2006"
	DayLayout  = "Mon"
	TimeLayout = "3:04:05 PM"
)

// RecordView wire shape shared with export and sync collaborators.
type RecordView struct {
	ID                 int64      `json:"id"`
	OwnerID            string     `json:"ownerId"`
	Date               string     `json:"date"`
	Day                string     `json:"day"`
	PunchIn            string     `json:"punchIn"`
	PunchOut           *string    `json:"punchOut"`
	Duration           *string    `json:"duration"`
	Status             StatusCode `json:"status"`
	Timestamp          string     `json:"timestamp"`
	LastReminderSentAt *time.Time `json:"lastReminderSentAt"`
	IsHalfDay          bool       `json:"isHalfDay"`
}

// View renders the record in loc; a nil loc means UTC.
func (r *AttendanceRecord) View(loc *time.Location) RecordView {
	if loc == nil {
		loc = time.UTC
	}
	in := r.PunchInAt.In(loc)

	v := RecordView{
		ID:                 r.ID,
		OwnerID:            r.OwnerID,
		Date:               in.Format(DateLayout),
		Day:                in.Format(DayLayout),
		PunchIn:            in.Format(TimeLayout),
		Status:             r.Status,
		Timestamp:          r.PunchInAt.UTC().Format(time.RFC3339Nano),
		LastReminderSentAt: r.LastReminderSentAt,
		IsHalfDay:          r.IsHalfDay,
	}
	if r.PunchOutAt != nil {
		out := r.PunchOutAt.In(loc).Format(TimeLayout)
		v.PunchOut = &out
	}
	if r.DurationHours != nil {
		d := FormatDuration(*r.DurationHours)
		v.Duration = &d
	}
	return v
}

// Views renders a slice, preserving order.
func Views(records []*AttendanceRecord, loc *time.Location) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		out = append(out, r.View(loc))
	}
	return out
}
