package gcal

import (
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/example/calhub/internal/model"
)

// fromAPI converts an API event into the domain model. Cancelled tombstones
// are rejected so listings never show them.
func fromAPI(item *calendar.Event, calendarID string) (model.CalendarEvent, error) {
	if item.Status == "cancelled" {
		return model.CalendarEvent{}, fmt.Errorf("event %s is cancelled", item.Id)
	}

	start, startAllDay, err := parseEventTime(item.Start)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end, _, err := parseEventTime(item.End)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}

	ev := model.CalendarEvent{
		ID:               item.Id,
		Title:            item.Summary,
		Start:            start,
		End:              end,
		IsAllDay:         startAllDay,
		Source:           model.SourceCloud,
		EventType:        model.EventType(item.EventType),
		ICalUID:          item.ICalUID,
		Calendar:         calendarID,
		Location:         item.Location,
		Description:      item.Description,
		RecurringEventID: item.RecurringEventId,
		Recurrence:       item.Recurrence,
	}
	if err := ev.Validate(); err != nil {
		return model.CalendarEvent{}, err
	}

	for _, att := range item.Attendees {
		ev.Attendees = append(ev.Attendees, model.Attendee{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Self:           att.Self,
		})
	}
	if item.Reminders != nil {
		for _, o := range item.Reminders.Overrides {
			ev.Reminders = append(ev.Reminders, model.Reminder{Method: o.Method, Minutes: int(o.Minutes)})
		}
	}
	if item.OutOfOfficeProperties != nil {
		ev.OutOfOffice = &model.OutOfOfficeInfo{
			AutoDeclineMode: item.OutOfOfficeProperties.AutoDeclineMode,
			DeclineMessage:  item.OutOfOfficeProperties.DeclineMessage,
		}
	}
	if item.WorkingLocationProperties != nil {
		ev.WorkingLocation = workingLocationInfo(item.WorkingLocationProperties)
	}
	return ev, nil
}

func workingLocationInfo(props *calendar.EventWorkingLocationProperties) *model.WorkingLocationInfo {
	switch props.Type {
	case "homeOffice":
		return &model.WorkingLocationInfo{Type: model.LocationHomeOffice, Label: "Home"}
	case "officeLocation":
		info := &model.WorkingLocationInfo{Type: model.LocationOffice}
		if props.OfficeLocation != nil {
			info.Label = props.OfficeLocation.Label
		}
		return info
	case "customLocation":
		info := &model.WorkingLocationInfo{Type: model.LocationCustom}
		if props.CustomLocation != nil {
			info.Label = props.CustomLocation.Label
		}
		return info
	default:
		return &model.WorkingLocationInfo{Type: model.LocationUnknown}
	}
}

func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool, error) {
	if edt == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		return t, false, err
	}
	if edt.Date != "" {
		t, err := time.Parse(dateLayout, edt.Date)
		return t, true, err
	}
	return time.Time{}, false, fmt.Errorf("time has neither date nor dateTime")
}

func eventTime(t time.Time, allDay bool, timeZone string) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format(dateLayout)}
	}
	edt := &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if timeZone != "" {
		edt.TimeZone = timeZone
	}
	return edt
}

func toAPICreate(req model.CreateEventRequest) *calendar.Event {
	event := &calendar.Event{
		Summary:     req.Title,
		Location:    req.Location,
		Description: req.Description,
		Start:       eventTime(req.Start, req.IsAllDay, req.TimeZone),
		End:         eventTime(req.End, req.IsAllDay, req.TimeZone),
		Recurrence:  req.Recurrence,
	}
	for _, email := range req.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}
	if len(req.Reminders) > 0 {
		overrides := make([]*calendar.EventReminder, 0, len(req.Reminders))
		for _, rem := range req.Reminders {
			overrides = append(overrides, &calendar.EventReminder{Method: rem.Method, Minutes: int64(rem.Minutes)})
		}
		event.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return event
}

// toAPIPatch builds a sparse patch body carrying only the fields the caller
// set.
func toAPIPatch(patch model.EventPatch) *calendar.Event {
	event := &calendar.Event{}
	allDay := patch.IsAllDay != nil && *patch.IsAllDay

	if patch.Title != nil {
		event.Summary = *patch.Title
		if *patch.Title == "" {
			event.ForceSendFields = append(event.ForceSendFields, "Summary")
		}
	}
	if patch.Location != nil {
		event.Location = *patch.Location
		if *patch.Location == "" {
			event.ForceSendFields = append(event.ForceSendFields, "Location")
		}
	}
	if patch.Description != nil {
		event.Description = *patch.Description
		if *patch.Description == "" {
			event.ForceSendFields = append(event.ForceSendFields, "Description")
		}
	}
	if patch.Start != nil {
		event.Start = eventTime(*patch.Start, allDay, "")
	}
	if patch.End != nil {
		event.End = eventTime(*patch.End, allDay, "")
	}
	if patch.Attendees != nil {
		event.Attendees = make([]*calendar.EventAttendee, 0, len(*patch.Attendees))
		for _, email := range *patch.Attendees {
			event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
		}
		event.ForceSendFields = append(event.ForceSendFields, "Attendees")
	}
	if patch.Reminders != nil {
		overrides := make([]*calendar.EventReminder, 0, len(*patch.Reminders))
		for _, rem := range *patch.Reminders {
			overrides = append(overrides, &calendar.EventReminder{Method: rem.Method, Minutes: int64(rem.Minutes)})
		}
		event.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}
	if patch.Recurrence != nil {
		event.Recurrence = *patch.Recurrence
		event.ForceSendFields = append(event.ForceSendFields, "Recurrence")
	}
	return event
}
