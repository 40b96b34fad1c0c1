package medication

import (
	"testing"

	"github.com/google/uuid"
)

func TestValidTime(t *testing.T) {
	valid := []string{"00:00", "08:30", "14:00", "23:59"}
	for _, s := range valid {
		if !ValidTime(s) {
			t.Errorf("ValidTime(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "24:00", "8:30:00", "noon", "12:60", "99:99"}
	for _, s := range invalid {
		if ValidTime(s) {
			t.Errorf("ValidTime(%q) = true, want false", s)
		}
	}
}

func TestDisplayTime(t *testing.T) {
	cases := map[string]string{
		"08:30": "8:30 AM",
		"14:00": "2:00 PM",
		"00:05": "12:05 AM",
		"":      "",
		"junk":  "junk",
	}
	for in, want := range cases {
		if got := DisplayTime(in); got != want {
			t.Errorf("DisplayTime(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSortByTime(t *testing.T) {
	a := &Entry{ID: uuid.New(), Name: "afternoon", Time: "14:00"}
	b := &Entry{ID: uuid.New(), Name: "unscheduled", Time: ""}
	c := &Entry{ID: uuid.New(), Name: "morning", Time: "08:30"}

	entries := []*Entry{a, b, c}
	SortByTime(entries)

	want := []string{"morning", "afternoon", "unscheduled"}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("position %d = %s, want %s", i, entries[i].Name, name)
		}
	}
}

func TestSortByTimeTieBreak(t *testing.T) {
	first := &Entry{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Time: "09:00"}
	second := &Entry{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Time: "09:00"}

	entries := []*Entry{second, first}
	SortByTime(entries)

	if entries[0] != first || entries[1] != second {
		t.Fatal("entries with equal times should order by id")
	}
}

func TestComputeStats(t *testing.T) {
	entries := []*Entry{
		{Taken: true},
		{Taken: false},
		{Taken: false},
	}
	stats := ComputeStats(entries)
	if stats.Total != 3 || stats.Taken != 1 || stats.Pending != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	empty := ComputeStats(nil)
	if empty.Total != 0 || empty.Taken != 0 || empty.Pending != 0 {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}
}
