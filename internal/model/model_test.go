package model

import (
	"testing"
	"time"
)

func TestWorkingHours_Bounds(t *testing.T) {
	day := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	start, end, err := WorkingHours{Start: "09:00", End: "17:30"}.Bounds(day)
	if err != nil {
		t.Fatal(err)
	}
	if start.Hour() != 9 || start.Minute() != 0 {
		t.Errorf("start = %s", start)
	}
	if end.Hour() != 17 || end.Minute() != 30 {
		t.Errorf("end = %s", end)
	}
	if start.Day() != 2 || end.Day() != 2 {
		t.Error("bounds must land on the given day")
	}

	for _, w := range []WorkingHours{
		{Start: "nine", End: "17:00"},
		{Start: "09:00", End: "25:00"},
		{Start: "17:00", End: "09:00"}, // empty window
		{Start: "09:60", End: "17:00"},
	} {
		if _, _, err := w.Bounds(day); err == nil {
			t.Errorf("Bounds(%+v): expected error", w)
		}
	}
}

func TestTimeRange_Overlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	window := TimeRange{Start: base, End: base.Add(2 * time.Hour)}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", base.Add(30 * time.Minute), base.Add(time.Hour), true},
		{"straddles start", base.Add(-time.Hour), base.Add(time.Hour), true},
		{"touches end only", window.End, window.End.Add(time.Hour), false},
		{"touches start only", base.Add(-time.Hour), base, false},
		{"fully before", base.Add(-2 * time.Hour), base.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.Overlaps(tt.start, tt.end); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventPatch_Fields(t *testing.T) {
	if !(EventPatch{}).IsZero() {
		t.Error("empty patch must be zero")
	}

	title := "t"
	start := time.Now()
	p := EventPatch{Title: &title, Start: &start}
	got := p.Fields()
	if len(got) != 2 || got[0] != FieldTitle || got[1] != FieldStart {
		t.Errorf("fields = %v", got)
	}
	if p.IsZero() {
		t.Error("patch with fields must not be zero")
	}
}

func TestEventFilter_Matches(t *testing.T) {
	ev := CalendarEvent{Calendar: "Work"}
	if !(EventFilter{}).Matches(ev) {
		t.Error("empty filter must match everything")
	}
	if !(EventFilter{Calendars: []string{"work"}}).Matches(ev) {
		t.Error("calendar match is case-insensitive")
	}
	if (EventFilter{Calendars: []string{"Personal"}}).Matches(ev) {
		t.Error("non-matching calendar must be filtered")
	}
}

func TestCalendarEvent_TypeAndSeriesPredicates(t *testing.T) {
	if (CalendarEvent{}).Type() != TypeDefault {
		t.Error("empty event type must read as default")
	}
	parent := CalendarEvent{Recurrence: []string{"RRULE:FREQ=DAILY"}}
	if !parent.IsSeriesParent() || parent.IsOccurrence() {
		t.Error("event with a rule is a series parent")
	}
	occ := CalendarEvent{RecurringEventID: "parent-1"}
	if occ.IsSeriesParent() || !occ.IsOccurrence() {
		t.Error("event with a back-reference is an occurrence")
	}
}

func TestSuitabilityRank(t *testing.T) {
	if !(SuitabilityExcellent.Rank() < SuitabilityGood.Rank() && SuitabilityGood.Rank() < SuitabilityAcceptable.Rank()) {
		t.Error("rank order broken")
	}
}

func TestDateKey(t *testing.T) {
	if got := DateKey(time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)); got != "2026-03-02" {
		t.Errorf("got %q", got)
	}
}
