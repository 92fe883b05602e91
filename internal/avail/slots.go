// Package avail turns event snapshots and busy periods into free time:
// scored, annotated slots for one user, and common free slots for a group.
// Everything here is a pure function of an immutable snapshot fetched
// moments earlier; nothing is cached or persisted.
package avail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/calhub/internal/model"
)

// Default slot-duration bounds, in minutes.
const (
	DefaultMinDurationMinutes = 30
	DefaultMaxDurationMinutes = 540
)

// Scoring thresholds.
const (
	shortSlotMinutes    = 25
	morningSlotMinutes  = 60
	extendedSlotMinutes = 240
	morningHourCutoff   = 12
)

// Scoring configures the day-character lists the suitability rules consult.
type Scoring struct {
	DeepWorkDays     []time.Weekday
	MeetingHeavyDays []time.Weekday
}

func (s Scoring) dayType(d time.Weekday) model.DayType {
	for _, w := range s.DeepWorkDays {
		if w == d {
			return model.DayDeepWork
		}
	}
	for _, w := range s.MeetingHeavyDays {
		if w == d {
			return model.DayMeetingHeavy
		}
	}
	return model.DayNormal
}

// SlotRequest carries the caller's availability query.
type SlotRequest struct {
	Window             model.TimeRange
	MinDurationMinutes int
	MaxDurationMinutes int
	WorkingHours       model.WorkingHours
	// PreferredLocation of homeOffice or officeLocation moves matching
	// slots ahead of non-matching ones; empty or "any" leaves order alone.
	PreferredLocation model.WorkingLocationType
	// RespectBlockingTypes selects type-aware blocking semantics. When
	// false only birthday/fromGmail events are excluded (legacy behavior).
	RespectBlockingTypes bool
}

// Engine finds and scores free slots within working hours.
type Engine struct {
	scoring Scoring
}

func NewEngine(s Scoring) *Engine { return &Engine{scoring: s} }

// blocks reports whether the event occupies time for availability purposes.
func blocks(e model.CalendarEvent, respectTypes bool) bool {
	switch e.Type() {
	case model.TypeBirthday, model.TypeFromGmail:
		return false
	case model.TypeWorkingLocation:
		return !respectTypes
	default:
		return true
	}
}

// FindSlots computes scored free slots for every calendar day in the
// request window. The input events are an already-deduplicated snapshot of
// the same window.
func (e *Engine) FindSlots(events []model.CalendarEvent, req SlotRequest) ([]model.AvailableSlot, error) {
	if err := req.Window.Validate(); err != nil {
		return nil, err
	}
	minDur := req.MinDurationMinutes
	if minDur <= 0 {
		minDur = DefaultMinDurationMinutes
	}
	maxDur := req.MaxDurationMinutes
	if maxDur <= 0 {
		maxDur = DefaultMaxDurationMinutes
	}
	if maxDur < minDur {
		return nil, fmt.Errorf("maxDuration %d is below minDuration %d", maxDur, minDur)
	}

	locationByDay := workingLocations(events)
	sourceLabel := sourcesLabel(events)

	var slots []model.AvailableSlot
	for day := dayStart(req.Window.Start); day.Before(req.Window.End); day = day.AddDate(0, 0, 1) {
		daySlots, err := e.findDaySlots(events, day, req, minDur, maxDur)
		if err != nil {
			return nil, err
		}
		for i := range daySlots {
			e.score(&daySlots[i])
			annotateLocation(&daySlots[i], locationByDay)
			daySlots[i].Source = sourceLabel
		}
		slots = append(slots, daySlots...)
	}

	slots = partitionByLocation(slots, req.PreferredLocation)

	// Stable sort on suitability only. The per-day walk already yields
	// ascending start times, so within a tier slots stay chronological
	// except where the location partition has promoted matches; that
	// partition must stay dominant inside equal-suitability groups.
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Suitability.Rank() < slots[j].Suitability.Rank()
	})
	return slots, nil
}

// findDaySlots walks one day's blocking events and emits the gaps between
// them that fit the duration bounds.
func (e *Engine) findDaySlots(events []model.CalendarEvent, day time.Time, req SlotRequest, minDur, maxDur int) ([]model.AvailableSlot, error) {
	workStart, workEnd, err := req.WorkingHours.Bounds(day)
	if err != nil {
		return nil, err
	}

	var blocking []model.CalendarEvent
	var softTitles []conflictSpan
	for _, ev := range events {
		if !ev.Start.Before(workEnd) || !ev.End.After(workStart) {
			continue
		}
		if blocks(ev, req.RespectBlockingTypes) {
			// A blocking all-day event covering the whole working
			// window blanks the day.
			if ev.IsAllDay && !ev.Start.After(workStart) && !ev.End.Before(workEnd) {
				return nil, nil
			}
			blocking = append(blocking, ev)
		} else if ev.Type() != model.TypeWorkingLocation {
			softTitles = append(softTitles, conflictSpan{start: ev.Start, end: ev.End, title: ev.Title})
		}
	}
	sort.Slice(blocking, func(i, j int) bool { return blocking[i].Start.Before(blocking[j].Start) })

	var out []model.AvailableSlot
	emit := func(start, end time.Time) {
		minutes := int(end.Sub(start).Minutes())
		if minutes < minDur || minutes > maxDur {
			return
		}
		out = append(out, model.AvailableSlot{
			Start:           start,
			End:             end,
			DurationMinutes: minutes,
			Conflicts:       overlappingTitles(softTitles, start, end),
		})
	}

	current := workStart
	for _, ev := range blocking {
		if ev.Start.After(current) {
			gapEnd := ev.Start
			if gapEnd.After(workEnd) {
				gapEnd = workEnd
			}
			emit(current, gapEnd)
		}
		if ev.End.After(current) {
			current = ev.End
		}
		if current.After(workEnd) {
			current = workEnd
		}
	}
	if workEnd.After(current) {
		emit(current, workEnd)
	}
	return out, nil
}

// score applies the four suitability rules in their fixed order. Later rules
// overwrite both the tier and the reason of earlier ones; the ordering is
// load-bearing for which reason wins on boundary cases.
func (e *Engine) score(s *model.AvailableSlot) {
	s.DayType = e.scoring.dayType(s.Start.Weekday())

	switch s.DayType {
	case model.DayDeepWork:
		s.Suitability = model.SuitabilityExcellent
		s.Reason = "deep work day, ideal for focused sessions"
	case model.DayMeetingHeavy:
		s.Suitability = model.SuitabilityAcceptable
		s.Reason = "meeting-heavy day, expect interruptions"
	default:
		s.Suitability = model.SuitabilityGood
		s.Reason = "regular working day"
	}

	if s.Suitability == model.SuitabilityGood && s.Start.Hour() < morningHourCutoff && s.DurationMinutes >= morningSlotMinutes {
		s.Suitability = model.SuitabilityExcellent
		s.Reason = "long morning slot, good for focused work"
	}

	if s.DurationMinutes < shortSlotMinutes {
		switch s.Suitability {
		case model.SuitabilityExcellent:
			s.Suitability = model.SuitabilityGood
		case model.SuitabilityGood:
			s.Suitability = model.SuitabilityAcceptable
		}
		s.Reason = "short slot, fits quick tasks only"
	}

	if s.DurationMinutes > extendedSlotMinutes && s.DayType == model.DayDeepWork {
		s.Suitability = model.SuitabilityExcellent
		s.Reason = "extended block on a deep work day"
	}
}

type conflictSpan struct {
	start, end time.Time
	title      string
}

func overlappingTitles(spans []conflictSpan, start, end time.Time) []string {
	var out []string
	for _, c := range spans {
		if c.start.Before(end) && c.end.After(start) {
			out = append(out, c.title)
		}
	}
	return out
}

// workingLocations indexes workingLocation events by normalized date key.
func workingLocations(events []model.CalendarEvent) map[string]*model.WorkingLocationInfo {
	byDay := make(map[string]*model.WorkingLocationInfo)
	for _, ev := range events {
		if ev.Type() != model.TypeWorkingLocation {
			continue
		}
		key := model.DateKey(ev.Start)
		if _, seen := byDay[key]; seen {
			continue
		}
		if ev.WorkingLocation != nil {
			info := *ev.WorkingLocation
			byDay[key] = &info
		} else {
			byDay[key] = &model.WorkingLocationInfo{Type: model.LocationUnknown, Label: ev.Title}
		}
	}
	return byDay
}

func annotateLocation(s *model.AvailableSlot, byDay map[string]*model.WorkingLocationInfo) {
	if info, ok := byDay[model.DateKey(s.Start)]; ok {
		copied := *info
		s.WorkingLocation = &copied
		return
	}
	s.WorkingLocation = &model.WorkingLocationInfo{Type: model.LocationUnknown}
}

// partitionByLocation stably moves slots matching the preferred location
// ahead of the rest. Runs as a pre-pass before the suitability sort, so the
// preference is visible only within equal-suitability groups.
func partitionByLocation(slots []model.AvailableSlot, preferred model.WorkingLocationType) []model.AvailableSlot {
	if preferred != model.LocationHomeOffice && preferred != model.LocationOffice {
		return slots
	}
	matching := make([]model.AvailableSlot, 0, len(slots))
	var rest []model.AvailableSlot
	for _, s := range slots {
		if s.WorkingLocation != nil && s.WorkingLocation.Type == preferred {
			matching = append(matching, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(matching, rest...)
}

func sourcesLabel(events []model.CalendarEvent) string {
	var seen []string
	for _, ev := range events {
		id := string(ev.Source)
		if id == "" {
			continue
		}
		dup := false
		for _, s := range seen {
			if s == id {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, id)
		}
	}
	if len(seen) == 0 {
		return "none"
	}
	sort.Strings(seen)
	return strings.Join(seen, "+")
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
