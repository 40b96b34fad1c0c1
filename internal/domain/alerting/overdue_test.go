package alerting

import (
	"testing"
	"time"

	"github.com/medminder/medminder/internal/domain/medication"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestOverdue(t *testing.T) {
	cases := []struct {
		name  string
		entry medication.Entry
		now   string
		want  bool
	}{
		{"before schedule", medication.Entry{Time: "08:00"}, "2026-08-29 07:59:59", false},
		{"exact schedule", medication.Entry{Time: "08:00"}, "2026-08-29 08:00:00", false},
		{"one second past", medication.Entry{Time: "08:00"}, "2026-08-29 08:00:01", true},
		{"well past", medication.Entry{Time: "08:00"}, "2026-08-29 14:30:00", true},
		{"taken", medication.Entry{Time: "08:00", Taken: true}, "2026-08-29 14:30:00", false},
		{"no time", medication.Entry{Time: ""}, "2026-08-29 14:30:00", false},
		{"unparseable time", medication.Entry{Time: "noonish"}, "2026-08-29 14:30:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overdue(&tc.entry, at(t, tc.now)); got != tc.want {
				t.Errorf("Overdue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverdueNil(t *testing.T) {
	if Overdue(nil, time.Now()) {
		t.Error("nil entry must not be overdue")
	}
}

func TestAlertSentToday(t *testing.T) {
	now := at(t, "2026-08-29 10:00:00")

	sameDay := at(t, "2026-08-29 00:01:00")
	if !AlertSentToday(&medication.Entry{LastAlertSent: &sameDay}, now) {
		t.Error("alert sent earlier today should suppress")
	}

	yesterday := at(t, "2026-08-28 23:59:00")
	if AlertSentToday(&medication.Entry{LastAlertSent: &yesterday}, now) {
		t.Error("suppression must reset at midnight")
	}

	if AlertSentToday(&medication.Entry{}, now) {
		t.Error("never-alerted entry is not suppressed")
	}
	if AlertSentToday(nil, now) {
		t.Error("nil entry is not suppressed")
	}
}
