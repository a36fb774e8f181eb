// Package status holds the attendance rules: required shift durations, the
// late threshold and the ordered decision table that classifies a closed shift.
package status

import (
	"fmt"
	"math"
	"time"

	"wisefido-shift/internal/domain"
)

const (
	// FullDayRequired hours a full-day shift must last.
	FullDayRequired = 9*time.Hour + 30*time.Minute
	// HalfDayRequired hours a half-day shift must last.
	HalfDayRequired = 4*time.Hour + 30*time.Minute

	// PartialMinimum is the floor above which a short on-time shift counts as OA.
	PartialMinimum = 4 * time.Hour

	// LateAfterHour punch-ins strictly after this hour (local) are late.
	LateAfterHour = 10
)

// RequiredDuration returns the duration a shift of the given kind must last.
func RequiredDuration(isHalfDay bool) time.Duration {
	if isHalfDay {
		return HalfDayRequired
	}
	return FullDayRequired
}

// IsLate reports whether punchIn is strictly after 10:00:00 on its own wall clock.
// Callers pass punchIn already converted to the shift time zone.
func IsLate(punchIn time.Time) bool {
	h, m, s := punchIn.Clock()
	if h != LateAfterHour {
		return h > LateAfterHour
	}
	return m > 0 || s > 0 || punchIn.Nanosecond() > 0
}

// Classify maps a closed shift to its status code. The rules are evaluated in
// order and the first match wins.
func Classify(punchIn, punchOut time.Time, isHalfDay bool, weekday time.Weekday) domain.StatusCode {
	worked := punchOut.Sub(punchIn)
	enough := worked >= RequiredDuration(isHalfDay)
	late := IsLate(punchIn)

	switch {
	case late && enough:
		return domain.StatusLatePresent
	case late:
		return domain.StatusLateAbsent
	case enough:
		return domain.StatusOnTimePresent
	case weekday == time.Sunday:
		return domain.StatusOff
	case worked > PartialMinimum:
		return domain.StatusOnTimePartial
	default:
		return domain.StatusAbsent
	}
}

// DurationHours is (punchOut - punchIn) in hours rounded to two decimals,
// never negative.
func DurationHours(punchIn, punchOut time.Time) float64 {
	d := punchOut.Sub(punchIn)
	if d < 0 {
		return 0
	}
	return math.Round(d.Hours()*100) / 100
}

// IsOverdue reports whether an open shift has run past its required duration.
func IsOverdue(punchIn, now time.Time, isHalfDay bool) bool {
	return now.Sub(punchIn) > RequiredDuration(isHalfDay)
}

// RemainingTime is the shortfall of an open record against its required
// duration at now; zero once the requirement is met.
func RemainingTime(rec *domain.AttendanceRecord, now time.Time) time.Duration {
	remaining := RequiredDuration(rec.IsHalfDay) - now.Sub(rec.PunchInAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatRemaining renders a shortfall as "Xh Ym", truncating seconds.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}
