package localcal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/source"
)

const simpleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
X-WR-CALNAME:Personal
BEGIN:VEVENT
UID:single-1
SUMMARY:Dentist
LOCATION:Main St
DTSTART:20260302T100000Z
DTEND:20260302T110000Z
END:VEVENT
BEGIN:VEVENT
UID:allday-1
SUMMARY:Conference
DTSTART;VALUE=DATE:20260303
DTEND;VALUE=DATE:20260304
END:VEVENT
END:VCALENDAR
`

const recurringICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:weekly-1
SUMMARY:Weekly sync
DTSTART:20260302T090000Z
DTEND:20260302T093000Z
RRULE:FREQ=WEEKLY;BYDAY=MO
EXDATE:20260316T090000Z
END:VEVENT
END:VCALENDAR
`

func writeStore(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func marchWindow(t *testing.T) model.TimeRange {
	t.Helper()
	return model.TimeRange{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestListEvents_ParsesStore(t *testing.T) {
	dir := writeStore(t, map[string]string{"personal.ics": simpleICS})
	a := New(dir)

	events, err := a.ListEvents(context.Background(), marchWindow(t), model.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}

	byID := make(map[string]model.CalendarEvent)
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	dentist, ok := byID["single-1"]
	if !ok {
		t.Fatal("single-1 missing")
	}
	if dentist.Title != "Dentist" || dentist.Location != "Main St" {
		t.Errorf("event = %+v", dentist)
	}
	if dentist.Source != model.SourceOS || dentist.ICalUID != "single-1" {
		t.Errorf("identity fields = %s/%s", dentist.Source, dentist.ICalUID)
	}
	// Calendar name comes from X-WR-CALNAME, not the filename.
	if dentist.Calendar != "Personal" {
		t.Errorf("calendar = %q, want Personal", dentist.Calendar)
	}
	if !dentist.Start.Equal(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %s", dentist.Start)
	}

	allday, ok := byID["allday-1"]
	if !ok {
		t.Fatal("allday-1 missing")
	}
	if !allday.IsAllDay {
		t.Error("VALUE=DATE start must mark the event all-day")
	}
}

func TestListEvents_ExpandsRecurrence(t *testing.T) {
	dir := writeStore(t, map[string]string{"work.ics": recurringICS})
	a := New(dir)

	events, err := a.ListEvents(context.Background(), marchWindow(t), model.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}

	// Mondays in the window: Mar 2, 9, 16, 23, 30; the 16th is excluded.
	if len(events) != 4 {
		t.Fatalf("got %d occurrences: %+v", len(events), events)
	}
	for _, ev := range events {
		if ev.RecurringEventID != "weekly-1" {
			t.Errorf("occurrence %s missing series back-reference", ev.ID)
		}
		if len(ev.Recurrence) != 0 {
			t.Errorf("occurrence %s must not carry the series rule", ev.ID)
		}
		if ev.Start.Weekday() != time.Monday {
			t.Errorf("occurrence on %s, want Monday", ev.Start.Weekday())
		}
		if ev.Start.Day() == 16 {
			t.Errorf("EXDATE occurrence %s was not excluded", ev.Start)
		}
		if got := ev.End.Sub(ev.Start); got != 30*time.Minute {
			t.Errorf("occurrence duration = %s, want 30m", got)
		}
	}
}

func TestListEvents_WindowFiltering(t *testing.T) {
	dir := writeStore(t, map[string]string{"personal.ics": simpleICS})
	a := New(dir)

	// A window in April catches nothing.
	window := model.TimeRange{
		Start: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	events, err := a.ListEvents(context.Background(), window, model.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events outside the window", len(events))
	}
}

func TestListEvents_CalendarFilter(t *testing.T) {
	dir := writeStore(t, map[string]string{
		"personal.ics": simpleICS,
		"work.ics":     recurringICS,
	})
	a := New(dir)

	events, err := a.ListEvents(context.Background(), marchWindow(t), model.EventFilter{Calendars: []string{"work"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range events {
		// The work file has no X-WR-CALNAME, so its name is the file stem.
		if ev.Calendar != "work" {
			t.Errorf("filter leaked calendar %q", ev.Calendar)
		}
	}
	if len(events) == 0 {
		t.Error("expected the work calendar's events")
	}
}

func TestListEvents_UnparseableFileSkipped(t *testing.T) {
	dir := writeStore(t, map[string]string{
		"good.ics":   simpleICS,
		"broken.ics": "not an ics file at all",
	})
	a := New(dir)

	events, err := a.ListEvents(context.Background(), marchWindow(t), model.EventFilter{})
	if err != nil {
		t.Fatalf("one broken file must not fail the store: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want the good file's 2", len(events))
	}
}

func TestListEvents_MissingStoreIsTerminal(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := a.ListEvents(context.Background(), marchWindow(t), model.EventFilter{})
	if err == nil {
		t.Fatal("expected error for missing store directory")
	}
	if source.KindOf(err) != source.KindTerminal {
		t.Errorf("kind = %s, want terminal", source.KindOf(err))
	}
}

func TestIsAvailable(t *testing.T) {
	dir := t.TempDir()
	if !New(dir).IsAvailable(context.Background()) {
		t.Error("existing directory should be available")
	}
	if New(filepath.Join(dir, "missing")).IsAvailable(context.Background()) {
		t.Error("missing directory should be unavailable")
	}
}

func TestMutationsUnsupported(t *testing.T) {
	a := New(t.TempDir())
	ctx := context.Background()

	if _, err := a.CreateEvent(ctx, model.CreateEventRequest{Title: "x"}); !source.IsUnsupported(err) {
		t.Errorf("CreateEvent err = %v, want unsupported", err)
	}
	if _, err := a.UpdateEvent(ctx, "id", model.EventPatch{}); !source.IsUnsupported(err) {
		t.Errorf("UpdateEvent err = %v, want unsupported", err)
	}
	if err := a.DeleteEvent(ctx, "id"); !source.IsUnsupported(err) {
		t.Errorf("DeleteEvent err = %v, want unsupported", err)
	}
	if err := a.RespondToEvent(ctx, "id", model.ResponseAccepted, ""); !source.IsUnsupported(err) {
		t.Errorf("RespondToEvent err = %v, want unsupported", err)
	}
	if _, err := a.GetEvent(ctx, "id"); !source.IsUnsupported(err) {
		t.Errorf("GetEvent err = %v, want unsupported", err)
	}
}
