// Package model defines the calendar domain types shared by the source
// adapters and the reconciliation engine. Events are always snapshots read
// from a backend; nothing in this package is persisted locally.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceID identifies one of the independent calendar backends.
type SourceID string

const (
	SourceOS    SourceID = "os"
	SourceCloud SourceID = "cloud"
)

// EventType classifies an event for availability purposes. An empty value is
// treated as TypeDefault everywhere.
type EventType string

const (
	TypeDefault         EventType = "default"
	TypeOutOfOffice     EventType = "outOfOffice"
	TypeFocusTime       EventType = "focusTime"
	TypeWorkingLocation EventType = "workingLocation"
	TypeBirthday        EventType = "birthday"
	TypeFromGmail       EventType = "fromGmail"
)

// WorkingLocationType is the sub-type of a working-location event.
type WorkingLocationType string

const (
	LocationHomeOffice WorkingLocationType = "homeOffice"
	LocationOffice     WorkingLocationType = "officeLocation"
	LocationCustom     WorkingLocationType = "customLocation"
	LocationUnknown    WorkingLocationType = "unknown"
)

// WorkingLocationInfo annotates a day (or a slot derived from it) with where
// the user is working. It is never written back to a backend.
type WorkingLocationInfo struct {
	Type  WorkingLocationType `json:"type"`
	Label string              `json:"label,omitempty"`
}

// Attendee is one participant on an event.
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
	Self           bool   `json:"self,omitempty"`
}

// OutOfOfficeInfo carries the type-specific properties of an outOfOffice
// event.
type OutOfOfficeInfo struct {
	AutoDeclineMode string `json:"autoDeclineMode,omitempty"`
	DeclineMessage  string `json:"declineMessage,omitempty"`
}

// Reminder is a notification override on an event.
type Reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// CalendarEvent is one event as reported by a backend. IDs are scoped to the
// owning backend; ICalUID, when both copies carry it, is the authoritative
// cross-backend identity.
type CalendarEvent struct {
	ID               string               `json:"id"`
	Title            string               `json:"title"`
	Start            time.Time            `json:"start"`
	End              time.Time            `json:"end"`
	IsAllDay         bool                 `json:"isAllDay"`
	Source           SourceID             `json:"source"`
	EventType        EventType            `json:"eventType,omitempty"`
	ICalUID          string               `json:"iCalUID,omitempty"`
	Calendar         string               `json:"calendar,omitempty"`
	Location         string               `json:"location,omitempty"`
	Description      string               `json:"description,omitempty"`
	Attendees        []Attendee           `json:"attendees,omitempty"`
	Reminders        []Reminder           `json:"reminders,omitempty"`
	RecurringEventID string               `json:"recurringEventId,omitempty"`
	Recurrence       []string             `json:"recurrenceRule,omitempty"`
	OutOfOffice      *OutOfOfficeInfo     `json:"outOfOffice,omitempty"`
	WorkingLocation  *WorkingLocationInfo `json:"workingLocation,omitempty"`
}

// Type returns the effective event type, mapping the absent value to
// TypeDefault.
func (e CalendarEvent) Type() EventType {
	if e.EventType == "" {
		return TypeDefault
	}
	return e.EventType
}

// IsSeriesParent reports whether the event carries its own recurrence rule.
func (e CalendarEvent) IsSeriesParent() bool { return len(e.Recurrence) > 0 }

// IsOccurrence reports whether the event is a single instance of a series.
func (e CalendarEvent) IsOccurrence() bool { return e.RecurringEventID != "" }

// Validate checks the start<=end invariant.
func (e CalendarEvent) Validate() error {
	if e.End.Before(e.Start) {
		return fmt.Errorf("event %q: end %s before start %s", e.ID, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
	}
	return nil
}

// BusyPeriod is a half-open busy interval [Start, End) reported by a
// freebusy query.
type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TimeRange is a half-open query window [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the range is non-empty and well ordered.
func (r TimeRange) Validate() error {
	if !r.End.After(r.Start) {
		return fmt.Errorf("time range end %s must be after start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether [a.Start, a.End) and [b.Start, b.End) intersect.
func (r TimeRange) Overlaps(start, end time.Time) bool {
	return start.Before(r.End) && end.After(r.Start)
}

// EventFilter restricts a listing to specific calendars. Empty means all.
type EventFilter struct {
	Calendars []string `json:"calendars,omitempty"`
}

// Matches reports whether the event passes the filter.
func (f EventFilter) Matches(e CalendarEvent) bool {
	if len(f.Calendars) == 0 {
		return true
	}
	for _, name := range f.Calendars {
		if strings.EqualFold(name, e.Calendar) {
			return true
		}
	}
	return false
}

// Suitability is the quality tier assigned to an available slot.
type Suitability string

const (
	SuitabilityExcellent  Suitability = "excellent"
	SuitabilityGood       Suitability = "good"
	SuitabilityAcceptable Suitability = "acceptable"
)

// Rank orders tiers ascending from best to worst.
func (s Suitability) Rank() int {
	switch s {
	case SuitabilityExcellent:
		return 0
	case SuitabilityGood:
		return 1
	default:
		return 2
	}
}

// DayType describes the character of the day a slot falls on.
type DayType string

const (
	DayDeepWork     DayType = "deep-work"
	DayMeetingHeavy DayType = "meeting-heavy"
	DayNormal       DayType = "normal"
)

// AvailableSlot is a scored free interval for one user. Derived on every
// query, never persisted.
type AvailableSlot struct {
	Start           time.Time            `json:"start"`
	End             time.Time            `json:"end"`
	DurationMinutes int                  `json:"durationMinutes"`
	Suitability     Suitability          `json:"suitability"`
	DayType         DayType              `json:"dayType"`
	Reason          string               `json:"reason"`
	Conflicts       []string             `json:"conflicts,omitempty"`
	Source          string               `json:"source"`
	WorkingLocation *WorkingLocationInfo `json:"workingLocation,omitempty"`
}

// CommonFreeSlot is an interval where every queried identity is free.
type CommonFreeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}

// ParticipantStatus reports the freebusy outcome for one identity.
type ParticipantStatus struct {
	Identity    string `json:"identity"`
	BusyPeriods int    `json:"busyPeriods"`
	Error       string `json:"error,omitempty"`
}

// CommonAvailabilityResult is the outcome of a multi-identity availability
// query. Identities whose lookup failed appear in Participants with an Error
// and contribute no busy periods.
type CommonAvailabilityResult struct {
	CommonSlots  []CommonFreeSlot    `json:"commonSlots"`
	Participants []ParticipantStatus `json:"participants"`
}

// RecurrenceScope selects which part of a series a mutation applies to.
type RecurrenceScope string

const (
	ScopeThisEvent     RecurrenceScope = "thisEvent"
	ScopeThisAndFuture RecurrenceScope = "thisAndFuture"
	ScopeAllEvents     RecurrenceScope = "allEvents"
)

// Valid reports whether s is one of the defined scopes.
func (s RecurrenceScope) Valid() bool {
	switch s {
	case ScopeThisEvent, ScopeThisAndFuture, ScopeAllEvents:
		return true
	}
	return false
}

// RSVPResponse is the caller's answer to an event invitation.
type RSVPResponse string

const (
	ResponseAccepted  RSVPResponse = "accepted"
	ResponseDeclined  RSVPResponse = "declined"
	ResponseTentative RSVPResponse = "tentative"
)

// RespondResult reports the outcome of respondToEvent, including which
// backend ultimately handled it.
type RespondResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Source  SourceID `json:"source"`
}

// CalendarInfo describes one calendar exposed by the cloud backend.
type CalendarInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary,omitempty"`
}

// CreateEventRequest carries the fields accepted when creating an event.
type CreateEventRequest struct {
	Title       string     `json:"title"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	IsAllDay    bool       `json:"isAllDay,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Attendees   []string   `json:"attendees,omitempty"`
	Calendar    string     `json:"calendar,omitempty"`
	Recurrence  []string   `json:"recurrence,omitempty"`
	Reminders   []Reminder `json:"reminders,omitempty"`
	TimeZone    string     `json:"timeZone,omitempty"`
}

// Validate checks the request's time invariant and required fields.
func (r CreateEventRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("event title is required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("event end %s before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// EventPatch is a partial update. Nil fields are left untouched by the
// backend; set fields are validated against the target event's type before
// any backend call.
type EventPatch struct {
	Title       *string     `json:"title,omitempty"`
	Start       *time.Time  `json:"start,omitempty"`
	End         *time.Time  `json:"end,omitempty"`
	IsAllDay    *bool       `json:"isAllDay,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Description *string     `json:"description,omitempty"`
	Attendees   *[]string   `json:"attendees,omitempty"`
	Reminders   *[]Reminder `json:"reminders,omitempty"`
	Recurrence  *[]string   `json:"recurrence,omitempty"`
}

// Canonical patch field names, used in restriction errors.
const (
	FieldTitle       = "title"
	FieldStart       = "start"
	FieldEnd         = "end"
	FieldIsAllDay    = "isAllDay"
	FieldLocation    = "location"
	FieldDescription = "description"
	FieldAttendees   = "attendees"
	FieldReminders   = "reminders"
	FieldRecurrence  = "recurrence"
)

// Fields returns the names of the fields the patch sets, in a stable order.
func (p EventPatch) Fields() []string {
	var out []string
	if p.Title != nil {
		out = append(out, FieldTitle)
	}
	if p.Start != nil {
		out = append(out, FieldStart)
	}
	if p.End != nil {
		out = append(out, FieldEnd)
	}
	if p.IsAllDay != nil {
		out = append(out, FieldIsAllDay)
	}
	if p.Location != nil {
		out = append(out, FieldLocation)
	}
	if p.Description != nil {
		out = append(out, FieldDescription)
	}
	if p.Attendees != nil {
		out = append(out, FieldAttendees)
	}
	if p.Reminders != nil {
		out = append(out, FieldReminders)
	}
	if p.Recurrence != nil {
		out = append(out, FieldRecurrence)
	}
	return out
}

// IsZero reports whether the patch sets nothing.
func (p EventPatch) IsZero() bool { return len(p.Fields()) == 0 }

// WorkingHours bounds the working day, as "HH:MM" strings.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Bounds resolves the working window for a given calendar day.
func (w WorkingHours) Bounds(day time.Time) (start, end time.Time, err error) {
	sh, sm, err := parseClock(w.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("working hours start: %w", err)
	}
	eh, em, err := parseClock(w.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("working hours end: %w", err)
	}
	y, m, d := day.Date()
	loc := day.Location()
	start = time.Date(y, m, d, sh, sm, 0, 0, loc)
	end = time.Date(y, m, d, eh, em, 0, 0, loc)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("working hours %s-%s are empty", w.Start, w.End)
	}
	return start, end, nil
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock value %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// DateKey renders the timezone-independent calendar-day key used for
// working-location matching.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }
