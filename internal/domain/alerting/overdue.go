// Package alerting detects missed doses and dispatches email alerts to the
// responsible caretaker. Detection is a pure function of the schedule and the
// clock; dispatch is best-effort and never blocks the sweep.
package alerting

import (
	"time"

	"github.com/medminder/medminder/internal/domain/medication"
)

// Overdue reports whether the entry's dose has been missed as of now.
// The scheduled moment is today's date at the entry's wall-clock HH:MM with
// seconds zeroed, in now's location. The comparison is strict: at the exact
// scheduled moment the dose is not yet overdue. Taken entries and entries
// without a parseable time are never overdue.
func Overdue(e *medication.Entry, now time.Time) bool {
	if e == nil || e.Taken || e.Time == "" {
		return false
	}
	t, err := time.Parse("15:04", e.Time)
	if err != nil {
		return false
	}
	scheduled := time.Date(now.Year(), now.Month(), now.Day(),
		t.Hour(), t.Minute(), 0, 0, now.Location())
	return now.After(scheduled)
}

// AlertSentToday reports whether an alert for the entry already went out on
// now's calendar date. Dates are compared in now's location, so the
// suppression window resets at local midnight.
func AlertSentToday(e *medication.Entry, now time.Time) bool {
	if e == nil || e.LastAlertSent == nil {
		return false
	}
	last := e.LastAlertSent.In(now.Location())
	return last.Year() == now.Year() && last.Month() == now.Month() && last.Day() == now.Day()
}
