package coord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/calhub/internal/avail"
	"github.com/example/calhub/internal/dedup"
	"github.com/example/calhub/internal/metrics"
	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/recur"
	"github.com/example/calhub/internal/source"
)

// ErrSyncNotImplemented is returned by SyncCalendars; two-way write-back
// between backends is an acknowledged stub.
var ErrSyncNotImplemented = errors.New("syncCalendars is not implemented")

// Options wires a Coordinator.
type Options struct {
	// Sources in registration order; the order decides dedup priority and
	// write-fallback sequence.
	Sources []source.Source
	// FreeBusy is the backend answering cross-identity freebusy queries,
	// nil when the cloud source is disabled.
	FreeBusy source.FreeBusySource
	// Mutable is the single backend updates and scoped deletes route to,
	// nil when no enabled backend supports mutation.
	Mutable source.Source

	Scoring      avail.Scoring
	WorkingHours model.WorkingHours
}

// Coordinator is the façade over the enabled calendar sources: it fans
// reads out, deduplicates the union, feeds the availability engines, and
// routes every mutation to exactly one backend.
type Coordinator struct {
	fallback     *Fallback
	freebusy     source.FreeBusySource
	resolver     *recur.Resolver
	engine       *avail.Engine
	workingHours model.WorkingHours
}

func New(opts Options) *Coordinator {
	c := &Coordinator{
		fallback:     NewFallback(opts.Sources...),
		freebusy:     opts.FreeBusy,
		engine:       avail.NewEngine(opts.Scoring),
		workingHours: opts.WorkingHours,
	}
	if opts.Mutable != nil {
		c.resolver = recur.NewResolver(opts.Mutable)
	}
	if c.workingHours.Start == "" {
		c.workingHours = model.WorkingHours{Start: "09:00", End: "18:00"}
	}
	return c
}

// GetEvents returns the deduplicated union of every enabled source's events
// in the window.
func (c *Coordinator) GetEvents(ctx context.Context, window model.TimeRange, filter model.EventFilter) ([]model.CalendarEvent, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	merged, err := c.fallback.ListAll(ctx, window, filter)
	if err != nil {
		return nil, err
	}
	unique := dedup.Deduplicate(merged)
	metrics.RecordDedupDrops(len(merged) - len(unique))
	return unique, nil
}

// CreateEvent creates the event on the preferred source, falling back
// through the remaining ones.
func (c *Coordinator) CreateEvent(ctx context.Context, req model.CreateEventRequest, preferred model.SourceID) (*model.CalendarEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.fallback.CreateFirst(ctx, req, preferred)
}

// UpdateEvent patches one event through the recurrence scope resolver.
func (c *Coordinator) UpdateEvent(ctx context.Context, id string, patch model.EventPatch, scope model.RecurrenceScope) (*model.CalendarEvent, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("updateEvent: %w", source.ErrNoSources)
	}
	if patch.IsZero() {
		return nil, fmt.Errorf("updateEvent %s: patch sets no fields", id)
	}
	return c.resolver.Update(ctx, id, patch, scope)
}

// DeleteEvent removes an event. With a scope it routes through the
// resolver; with an explicit source it targets just that backend; otherwise
// it attempts deletion everywhere, treating not-found as success.
func (c *Coordinator) DeleteEvent(ctx context.Context, id string, src model.SourceID, scope model.RecurrenceScope) error {
	if scope != "" {
		if c.resolver == nil {
			return fmt.Errorf("deleteEvent with scope: %w", source.ErrNoSources)
		}
		return c.resolver.Delete(ctx, id, scope)
	}
	if src != "" {
		s := c.sourceByID(src)
		if s == nil {
			return fmt.Errorf("deleteEvent: source %q is not enabled", src)
		}
		err := s.DeleteEvent(ctx, id)
		if err != nil && !source.IsNotFound(err) {
			return err
		}
		return nil
	}
	return c.fallback.DeleteAll(ctx, id)
}

// RespondToEvent answers an invitation, reporting which backend handled it.
func (c *Coordinator) RespondToEvent(ctx context.Context, id string, response model.RSVPResponse, preferred model.SourceID, calendarID string) (*model.RespondResult, error) {
	handled, err := c.fallback.RespondFirst(ctx, id, response, calendarID, preferred)
	if err != nil {
		return nil, err
	}
	return &model.RespondResult{
		Success: true,
		Message: fmt.Sprintf("responded %s to event %s", response, id),
		Source:  handled,
	}, nil
}

// FindAvailableSlots fetches and deduplicates the window's events, then
// runs the availability engine over them.
func (c *Coordinator) FindAvailableSlots(ctx context.Context, req avail.SlotRequest) ([]model.AvailableSlot, error) {
	if req.WorkingHours.Start == "" {
		req.WorkingHours = c.workingHours
	}
	events, err := c.GetEvents(ctx, req.Window, model.EventFilter{})
	if err != nil {
		return nil, err
	}
	return c.engine.FindSlots(events, req)
}

// FindCommonAvailability computes shared free slots for the identities.
// Identities whose freebusy lookup failed are reported with an error and
// excluded from the busy pool; the call fails outright only when nobody
// could be resolved.
func (c *Coordinator) FindCommonAvailability(ctx context.Context, identities []string, window model.TimeRange, minDurationMinutes int) (*model.CommonAvailabilityResult, error) {
	if c.freebusy == nil {
		return nil, fmt.Errorf("findCommonAvailability requires the cloud source: %w", source.ErrNoSources)
	}
	if len(identities) == 0 {
		return nil, errors.New("findCommonAvailability: at least one identity is required")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	fb, err := c.freebusy.QueryFreeBusy(ctx, identities, window)
	if err != nil {
		return nil, err
	}

	result := &model.CommonAvailabilityResult{}
	var pool []model.BusyPeriod
	resolved := 0
	for _, id := range identities {
		if reason, failed := fb.Errors[id]; failed {
			log.Printf("[WARN] freebusy for %s failed: %s", id, reason)
			result.Participants = append(result.Participants, model.ParticipantStatus{Identity: id, Error: reason})
			continue
		}
		periods := fb.Busy[id]
		resolved++
		pool = append(pool, periods...)
		result.Participants = append(result.Participants, model.ParticipantStatus{Identity: id, BusyPeriods: len(periods)})
	}
	if resolved == 0 {
		return nil, fmt.Errorf("findCommonAvailability: no identity could be resolved out of %d", len(identities))
	}

	minDur := avail.DefaultCommonMinDuration
	if minDurationMinutes > 0 {
		minDur = time.Duration(minDurationMinutes) * time.Minute
	}
	result.CommonSlots = avail.CommonFree(pool, window, minDur)
	return result, nil
}

// DetectAvailableSources probes every enabled source concurrently.
func (c *Coordinator) DetectAvailableSources(ctx context.Context) map[model.SourceID]bool {
	sources := c.fallback.Sources()
	probes := make([]bool, len(sources))
	var g errgroup.Group
	for i, s := range sources {
		g.Go(func() error {
			probes[i] = s.IsAvailable(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[model.SourceID]bool, len(sources))
	for i, s := range sources {
		status[s.ID()] = probes[i]
	}
	return status
}

// EnabledSources returns the configured source ids in registration order.
func (c *Coordinator) EnabledSources() []model.SourceID {
	out := make([]model.SourceID, 0, len(c.fallback.Sources()))
	for _, s := range c.fallback.Sources() {
		out = append(out, s.ID())
	}
	return out
}

// HealthCheck reports reachability for both known backends, false for any
// that is not enabled.
func (c *Coordinator) HealthCheck(ctx context.Context) map[model.SourceID]bool {
	status := map[model.SourceID]bool{
		model.SourceOS:    false,
		model.SourceCloud: false,
	}
	for id, ok := range c.DetectAvailableSources(ctx) {
		status[id] = ok
	}
	return status
}

// ListCalendars enumerates the cloud backend's calendars.
func (c *Coordinator) ListCalendars(ctx context.Context) ([]model.CalendarInfo, error) {
	if c.freebusy == nil {
		return nil, fmt.Errorf("listCalendars requires the cloud source: %w", source.ErrNoSources)
	}
	return c.freebusy.ListCalendars(ctx)
}

// SyncCalendars is an acknowledged stub; real two-way write-back between
// backends is out of scope.
func (c *Coordinator) SyncCalendars(context.Context) error { return ErrSyncNotImplemented }

func (c *Coordinator) sourceByID(id model.SourceID) source.Source {
	for _, s := range c.fallback.Sources() {
		if s.ID() == id {
			return s
		}
	}
	return nil
}
