package recur

import (
	"context"
	"fmt"
	"log"

	"github.com/example/calhub/internal/model"
)

// Backend is the mutation surface the resolver drives. The coordinator
// binds it to the one enabled source that supports mutation.
type Backend interface {
	GetEvent(ctx context.Context, id string) (*model.CalendarEvent, error)
	CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Resolver decides which part of a recurring series a mutation applies to
// and executes it, including the series split for thisAndFuture.
type Resolver struct {
	backend Backend
}

func NewResolver(b Backend) *Resolver { return &Resolver{backend: b} }

// EffectiveScope applies the scope defaulting rules: an explicit scope wins;
// an occurrence defaults to thisEvent; a series parent defaults to
// allEvents; for a non-recurring event the scope is irrelevant and thisEvent
// is returned.
func EffectiveScope(e *model.CalendarEvent, requested model.RecurrenceScope) model.RecurrenceScope {
	if requested != "" {
		return requested
	}
	if e.IsOccurrence() {
		return model.ScopeThisEvent
	}
	if e.IsSeriesParent() {
		return model.ScopeAllEvents
	}
	return model.ScopeThisEvent
}

// seriesParentID resolves the id of the series definition: the occurrence's
// back-reference, or the event's own id when called on the parent.
func seriesParentID(e *model.CalendarEvent) string {
	if e.RecurringEventID != "" {
		return e.RecurringEventID
	}
	return e.ID
}

// Update patches id under the given scope (empty scope means default per
// EffectiveScope) and returns the mutated event. For a thisAndFuture split
// the returned event is the head of the newly created continuation series.
func (r *Resolver) Update(ctx context.Context, id string, patch model.EventPatch, scope model.RecurrenceScope) (*model.CalendarEvent, error) {
	if scope != "" && !scope.Valid() {
		return nil, fmt.Errorf("invalid recurrence scope %q", scope)
	}
	target, err := r.backend.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckFieldRestrictions(target.Type(), patch); err != nil {
		return nil, err
	}

	switch EffectiveScope(target, scope) {
	case model.ScopeAllEvents:
		return r.backend.UpdateEvent(ctx, seriesParentID(target), patch)
	case model.ScopeThisAndFuture:
		return r.splitSeries(ctx, target, patch)
	default:
		// thisEvent: patching the occurrence id directly makes the
		// backend materialize an exception without touching siblings.
		return r.backend.UpdateEvent(ctx, target.ID, patch)
	}
}

// Delete removes id under the given scope. Deleting thisAndFuture truncates
// the series the day before the selected occurrence; no replacement series
// is created.
func (r *Resolver) Delete(ctx context.Context, id string, scope model.RecurrenceScope) error {
	if scope != "" && !scope.Valid() {
		return fmt.Errorf("invalid recurrence scope %q", scope)
	}
	target, err := r.backend.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	switch EffectiveScope(target, scope) {
	case model.ScopeAllEvents:
		return r.backend.DeleteEvent(ctx, seriesParentID(target))
	case model.ScopeThisAndFuture:
		_, err := r.truncateParent(ctx, target)
		return err
	default:
		return r.backend.DeleteEvent(ctx, target.ID)
	}
}

// truncateParent fetches and verifies the series parent, then rewrites its
// recurrence so the series ends the day before the selected occurrence.
// Returns the parent as it was before the rewrite.
func (r *Resolver) truncateParent(ctx context.Context, occ *model.CalendarEvent) (*model.CalendarEvent, error) {
	parent := occ
	if pid := seriesParentID(occ); pid != occ.ID {
		var err error
		parent, err = r.backend.GetEvent(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("fetching series parent %s: %w", pid, err)
		}
	}
	if !parent.IsSeriesParent() {
		return nil, fmt.Errorf("event %s is not recurring; thisAndFuture scope does not apply", parent.ID)
	}

	until := EndOfDayBefore(occ.Start)
	truncated, err := TruncateRules(parent.Recurrence, until)
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] truncating series %s at %s", parent.ID, UntilValue(until))
	if _, err := r.backend.UpdateEvent(ctx, parent.ID, model.EventPatch{Recurrence: &truncated}); err != nil {
		return nil, fmt.Errorf("truncating series %s: %w", parent.ID, err)
	}
	return parent, nil
}

// splitSeries executes the thisAndFuture update: truncate the original
// series, then create a continuation starting at the selected occurrence's
// original start, applying the caller's updates and falling back to the
// parent's values for everything unset.
func (r *Resolver) splitSeries(ctx context.Context, occ *model.CalendarEvent, patch model.EventPatch) (*model.CalendarEvent, error) {
	parent, err := r.truncateParent(ctx, occ)
	if err != nil {
		return nil, err
	}

	continuation, err := StripUntil(parent.Recurrence)
	if err != nil {
		return nil, err
	}

	req := continuationRequest(parent, occ, patch)
	req.Recurrence = continuation

	created, err := r.backend.CreateEvent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating continuation series after split of %s: %w", parent.ID, err)
	}
	log.Printf("[INFO] split series %s: continuation %s starts %s", parent.ID, created.ID, created.Start)
	return created, nil
}

// continuationRequest builds the create request for the new series head,
// layering caller updates over the occurrence's timing and the parent's
// remaining fields.
func continuationRequest(parent, occ *model.CalendarEvent, patch model.EventPatch) model.CreateEventRequest {
	req := model.CreateEventRequest{
		Title:       parent.Title,
		Start:       occ.Start,
		End:         occ.End,
		IsAllDay:    occ.IsAllDay,
		Location:    parent.Location,
		Description: parent.Description,
		Calendar:    parent.Calendar,
		Reminders:   parent.Reminders,
	}
	if req.End.Before(req.Start) || req.End.Equal(req.Start) {
		req.End = req.Start.Add(parent.End.Sub(parent.Start))
	}
	for _, a := range parent.Attendees {
		req.Attendees = append(req.Attendees, a.Email)
	}

	if patch.Title != nil {
		req.Title = *patch.Title
	}
	if patch.Start != nil {
		req.Start = *patch.Start
	}
	if patch.End != nil {
		req.End = *patch.End
	}
	if patch.IsAllDay != nil {
		req.IsAllDay = *patch.IsAllDay
	}
	if patch.Location != nil {
		req.Location = *patch.Location
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.Attendees != nil {
		req.Attendees = *patch.Attendees
	}
	if patch.Reminders != nil {
		req.Reminders = *patch.Reminders
	}
	return req
}
