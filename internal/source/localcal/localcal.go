// Package localcal adapts the OS-local calendar store (a directory of
// exported .ics files) to the source capability contract. The local store
// is read-only in this system: listing and availability work, every
// mutation answers with an unsupported-operation error so the coordinator
// routes writes elsewhere.
package localcal

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/example/calhub/internal/metrics"
	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/source"
)

// maxOccurrences caps recurrence expansion per event as a guard against
// pathological rules.
const maxOccurrences = 1000

var dateTimeFormats = []string{
	"20060102",
	"20060102T150405",
	"20060102T150405Z",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
}

// Adapter reads the local ICS store.
type Adapter struct {
	dir string
}

func New(dir string) *Adapter { return &Adapter{dir: dir} }

func (a *Adapter) ID() model.SourceID { return model.SourceOS }

// IsAvailable reports whether the store directory is readable.
func (a *Adapter) IsAvailable(context.Context) bool {
	info, err := os.Stat(a.dir)
	return err == nil && info.IsDir()
}

// ListEvents parses every .ics file in the store, expands recurring events
// into occurrences, and returns the events intersecting the window. A file
// that fails to parse is logged and skipped; only an unreadable store fails
// the call.
func (a *Adapter) ListEvents(ctx context.Context, window model.TimeRange, filter model.EventFilter) (events []model.CalendarEvent, err error) {
	done := metrics.ObserveSource(model.SourceOS, source.OpList)
	defer func() { done(err) }()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, &source.Error{
			Source: model.SourceOS,
			Op:     source.OpList,
			Kind:   source.KindTerminal,
			Err:    fmt.Errorf("reading calendar store %s: %w", a.dir, err),
		}
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".ics") {
			continue
		}
		path := filepath.Join(a.dir, entry.Name())
		fileEvents, ferr := a.listFile(path, window)
		if ferr != nil {
			log.Printf("[WARN] os: skipping unparseable calendar file %s: %v", path, ferr)
			continue
		}
		for _, ev := range fileEvents {
			if filter.Matches(ev) {
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func (a *Adapter) listFile(path string, window model.TimeRange) ([]model.CalendarEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cal, err := ical.ParseCalendar(f)
	if err != nil {
		return nil, err
	}

	calendarName := calendarDisplayName(cal, path)

	var out []model.CalendarEvent
	for _, ve := range cal.Events() {
		evs, perr := expandVEvent(ve, calendarName, window)
		if perr != nil {
			log.Printf("[WARN] os: skipping event in %s: %v", path, perr)
			continue
		}
		out = append(out, evs...)
	}
	return out, nil
}

// expandVEvent converts one VEVENT into zero or more occurrences inside the
// window.
func expandVEvent(ve *ical.VEvent, calendarName string, window model.TimeRange) ([]model.CalendarEvent, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, fmt.Errorf("missing UID")
	}
	uid := uidProp.Value

	base := model.CalendarEvent{
		ID:       uid,
		ICalUID:  uid,
		Source:   model.SourceOS,
		Calendar: calendarName,
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		base.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		base.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		base.Location = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("event %s has no parseable DTSTART", uid)
	}
	base.IsAllDay = isAllDayStart(ve)

	end, endErr := ve.GetEndAt()
	if endErr != nil || !end.After(start) {
		if base.IsAllDay {
			end = start.Add(24 * time.Hour)
		} else {
			end = start.Add(time.Hour)
		}
	}
	base.Start, base.End = start, end

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		if window.Overlaps(base.Start, base.End) {
			return []model.CalendarEvent{base}, nil
		}
		return nil, nil
	}

	rule, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("event %s has invalid RRULE %q: %w", uid, rruleProp.Value, err)
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range exceptionDates(ve, start.Location()) {
		set.ExDate(ex)
	}

	duration := end.Sub(start)
	occStarts := set.Between(window.Start.In(start.Location()), window.End.In(start.Location()), true)
	if len(occStarts) > maxOccurrences {
		log.Printf("[WARN] os: truncating occurrences for %s at %d", uid, maxOccurrences)
		occStarts = occStarts[:maxOccurrences]
	}

	out := make([]model.CalendarEvent, 0, len(occStarts))
	for _, occStart := range occStarts {
		occ := base
		occ.ID = fmt.Sprintf("%s_%s", uid, occStart.UTC().Format("20060102T150405Z"))
		occ.RecurringEventID = uid
		occ.Recurrence = nil
		if base.IsAllDay {
			y, m, d := occStart.Date()
			occ.Start = time.Date(y, m, d, 0, 0, 0, 0, occStart.Location())
			occ.End = occ.Start.Add(24 * time.Hour)
		} else {
			occ.Start = occStart
			occ.End = occStart.Add(duration)
		}
		out = append(out, occ)
	}
	return out, nil
}

func isAllDayStart(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func exceptionDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, raw := range strings.Split(p.Value, ",") {
			if t, err := parseDateTime(strings.TrimSpace(raw), loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, format := range dateTimeFormats {
		if strings.HasSuffix(format, "Z") {
			if t, err := time.Parse(format, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(format, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}

func calendarDisplayName(cal *ical.Calendar, path string) string {
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "X-WR-CALNAME") && p.Value != "" {
			return p.Value
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// The local store cannot mutate events; the coordinator's fallback logic
// pattern-matches on these to route writes to a capable backend.

func (a *Adapter) GetEvent(context.Context, string) (*model.CalendarEvent, error) {
	return nil, source.Unsupported(model.SourceOS, source.OpGet)
}

func (a *Adapter) CreateEvent(context.Context, model.CreateEventRequest) (*model.CalendarEvent, error) {
	return nil, source.Unsupported(model.SourceOS, source.OpCreate)
}

func (a *Adapter) UpdateEvent(context.Context, string, model.EventPatch) (*model.CalendarEvent, error) {
	return nil, source.Unsupported(model.SourceOS, source.OpUpdate)
}

func (a *Adapter) DeleteEvent(context.Context, string) error {
	return source.Unsupported(model.SourceOS, source.OpDelete)
}

func (a *Adapter) RespondToEvent(context.Context, string, model.RSVPResponse, string) error {
	return source.Unsupported(model.SourceOS, source.OpRespond)
}
