// Package source defines the uniform capability contract every calendar
// backend adapter implements, plus the typed error taxonomy and retry policy
// shared by all adapters. "Backend enabled" and "backend supports this
// operation" are orthogonal: an enabled backend may still answer any call
// with an unsupported-operation error, and callers route around that.
package source

import (
	"context"

	"github.com/example/calhub/internal/model"
)

// Operation names used for error annotation and metrics labels.
const (
	OpList     = "listEvents"
	OpGet      = "getEvent"
	OpCreate   = "createEvent"
	OpUpdate   = "updateEvent"
	OpDelete   = "deleteEvent"
	OpRespond  = "respondToEvent"
	OpFreeBusy = "queryFreeBusy"
)

// Source is the capability contract for one calendar backend. Adapters wrap
// every outbound call in the shared retry policy and convert backend-native
// failures to *Error at this boundary; nothing backend-native crosses it.
type Source interface {
	ID() model.SourceID

	// IsAvailable probes reachability without mutating anything. It must
	// return quickly; callers use it for health checks only.
	IsAvailable(ctx context.Context) bool

	ListEvents(ctx context.Context, window model.TimeRange, filter model.EventFilter) ([]model.CalendarEvent, error)
	GetEvent(ctx context.Context, id string) (*model.CalendarEvent, error)
	CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string) error
	RespondToEvent(ctx context.Context, id string, response model.RSVPResponse, calendarID string) error
}

// FreeBusyResult is the outcome of a multi-identity freebusy query.
// Identities the backend could not resolve (access denied, not found) are
// reported in Errors instead of failing the whole query.
type FreeBusyResult struct {
	Busy   map[string][]model.BusyPeriod
	Errors map[string]string
}

// FreeBusySource is the extended contract of backends that can answer
// cross-identity freebusy queries and enumerate calendars. Today only the
// cloud backend implements it.
type FreeBusySource interface {
	Source

	QueryFreeBusy(ctx context.Context, identities []string, window model.TimeRange) (*FreeBusyResult, error)
	ListCalendars(ctx context.Context) ([]model.CalendarInfo, error)
}
