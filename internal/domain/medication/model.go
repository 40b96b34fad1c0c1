package medication

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entry maps to the medicines table. The schedule is a wall-clock "HH:MM"
// with no date or timezone component; it is interpreted against the current
// local day every time it is evaluated.
//
// Taken is monotonic: once true it is never reset by any operation here.
// TakenAt is set exactly once, on the false-to-true transition.
type Entry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Time           string     `db:"time" json:"time"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientEmail   string     `db:"patient_email" json:"patient_email"`
	CaretakerID    uuid.UUID  `db:"caretaker_id" json:"caretaker_id"`
	CaretakerEmail string     `db:"caretaker_email" json:"caretaker_email"`
	Taken          bool       `db:"taken" json:"taken"`
	TakenAt        *time.Time `db:"taken_at" json:"taken_at,omitempty"`
	LastAlertSent  *time.Time `db:"last_alert_sent" json:"last_alert_sent,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidTime reports whether s is a well-formed 24-hour "HH:MM" schedule.
func ValidTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// DisplayTime renders an "HH:MM" schedule in 12-hour form for dashboards
// and alert emails. Malformed or empty input is returned unchanged.
func DisplayTime(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

// SortByTime orders entries ascending by their raw "HH:MM" schedule.
// Entries with an empty schedule sort last; ties break on ID so the order
// is deterministic regardless of storage order.
func SortByTime(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Time == "" && b.Time == "":
			return a.ID.String() < b.ID.String()
		case a.Time == "":
			return false
		case b.Time == "":
			return true
		case a.Time != b.Time:
			return a.Time < b.Time
		default:
			return a.ID.String() < b.ID.String()
		}
	})
}

// Stats summarizes a patient's list for the dashboard.
type Stats struct {
	Total   int `json:"total"`
	Taken   int `json:"taken"`
	Pending int `json:"pending"`
}

// ComputeStats tallies taken and pending counts over a patient's entries.
func ComputeStats(entries []*Entry) Stats {
	s := Stats{Total: len(entries)}
	for _, e := range entries {
		if e.Taken {
			s.Taken++
		} else {
			s.Pending++
		}
	}
	return s
}
