package dedup

import (
	"testing"
	"time"

	"github.com/example/calhub/internal/model"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func event(id string, src model.SourceID, uid, title string, start time.Time, dur time.Duration) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      id,
		Source:  src,
		ICalUID: uid,
		Title:   title,
		Start:   start,
		End:     start.Add(dur),
	}
}

func TestDeduplicate_FirstOccurrenceWins(t *testing.T) {
	osCopy := event("os-1", model.SourceOS, "uid-1", "Standup", baseTime, 30*time.Minute)
	osCopy.Location = "Room A"
	cloudCopy := event("cloud-1", model.SourceCloud, "uid-1", "Standup", baseTime, 30*time.Minute)
	cloudCopy.Location = "Room B"

	got := Deduplicate([]model.CalendarEvent{osCopy, cloudCopy})
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Source != model.SourceOS {
		t.Errorf("survivor source = %s, want %s", got[0].Source, model.SourceOS)
	}
	// Fields are never merged; the first copy's metadata survives intact.
	if got[0].Location != "Room A" {
		t.Errorf("survivor location = %q, want %q", got[0].Location, "Room A")
	}
}

func TestDeduplicate_UIDAuthoritativeBothWays(t *testing.T) {
	// Same UID, wildly different titles: still duplicates.
	a := event("a", model.SourceOS, "shared-uid", "Planning", baseTime, time.Hour)
	b := event("b", model.SourceCloud, "shared-uid", "Completely Different", baseTime.Add(2*time.Hour), time.Hour)
	if got := Deduplicate([]model.CalendarEvent{a, b}); len(got) != 1 {
		t.Errorf("same UID should collapse, got %d events", len(got))
	}

	// Different UIDs, identical title and timing: still distinct.
	c := event("c", model.SourceOS, "uid-c", "Standup", baseTime, 30*time.Minute)
	d := event("d", model.SourceCloud, "uid-d", "Standup", baseTime, 30*time.Minute)
	if got := Deduplicate([]model.CalendarEvent{c, d}); len(got) != 2 {
		t.Errorf("distinct UIDs should not collapse, got %d events", len(got))
	}
}

func TestDeduplicate_HeuristicFallback(t *testing.T) {
	tests := []struct {
		name string
		a, b model.CalendarEvent
		want int
	}{
		{
			name: "same title and timing, no UIDs",
			a:    event("a", model.SourceOS, "", "1:1 With Sam", baseTime, 30*time.Minute),
			b:    event("b", model.SourceCloud, "", "1:1 with sam", baseTime, 30*time.Minute),
			want: 1,
		},
		{
			name: "same title, different start",
			a:    event("a", model.SourceOS, "", "1:1", baseTime, 30*time.Minute),
			b:    event("b", model.SourceCloud, "", "1:1", baseTime.Add(time.Hour), 30*time.Minute),
			want: 2,
		},
		{
			name: "one UID missing falls back to heuristic",
			a:    event("a", model.SourceOS, "uid-a", "Review", baseTime, time.Hour),
			b:    event("b", model.SourceCloud, "", "Review", baseTime, time.Hour),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deduplicate([]model.CalendarEvent{tt.a, tt.b})
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	events := []model.CalendarEvent{
		event("a", model.SourceOS, "uid-1", "Standup", baseTime, 30*time.Minute),
		event("b", model.SourceCloud, "uid-1", "Standup", baseTime, 30*time.Minute),
		event("c", model.SourceCloud, "uid-2", "Lunch", baseTime.Add(2*time.Hour), time.Hour),
	}

	once := Deduplicate(events)
	twice := Deduplicate(once)
	if len(once) != 2 || len(twice) != len(once) {
		t.Fatalf("dedup not idempotent: first pass %d, second pass %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("second pass reordered events: %s vs %s", once[i].ID, twice[i].ID)
		}
	}
}

func TestDeduplicate_PreservesOrder(t *testing.T) {
	events := []model.CalendarEvent{
		event("a", model.SourceOS, "uid-1", "First", baseTime, time.Hour),
		event("b", model.SourceOS, "uid-2", "Second", baseTime.Add(time.Hour), time.Hour),
		event("c", model.SourceCloud, "uid-1", "First", baseTime, time.Hour),
		event("d", model.SourceCloud, "uid-3", "Third", baseTime.Add(3*time.Hour), time.Hour),
	}

	got := Deduplicate(events)
	wantIDs := []string{"a", "b", "d"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d events, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestDeduplicate_Empty(t *testing.T) {
	if got := Deduplicate(nil); len(got) != 0 {
		t.Errorf("expected empty result for nil input, got %d", len(got))
	}
}
