// Package coord fans calendar operations out to the enabled backends,
// tolerates partial failure, and composes the public engine surface.
package coord

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/source"
)

// Fallback runs one operation against the enabled sources, in parallel for
// reads and preferred-first sequence for writes. Per-source failures are
// tolerated; only total failure escalates.
type Fallback struct {
	sources []source.Source // registration order; determines dedup priority
}

func NewFallback(sources ...source.Source) *Fallback {
	return &Fallback{sources: sources}
}

// Sources returns the enabled sources in registration order.
func (f *Fallback) Sources() []source.Source { return f.sources }

// ListAll queries every enabled source concurrently and concatenates the
// results in registration order. A failing source is logged and excluded;
// the call errs only when zero sources are enabled (configuration) or every
// source failed (aggregate).
func (f *Fallback) ListAll(ctx context.Context, window model.TimeRange, filter model.EventFilter) ([]model.CalendarEvent, error) {
	if len(f.sources) == 0 {
		return nil, source.ErrNoSources
	}

	results := make([][]model.CalendarEvent, len(f.sources))
	errs := make([]error, len(f.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range f.sources {
		g.Go(func() error {
			events, err := s.ListEvents(gctx, window, filter)
			if err != nil {
				// A source failure never aborts the others.
				errs[i] = err
				log.Printf("[WARN] %s: listEvents failed: %v", s.ID(), err)
				return nil
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.CalendarEvent
	var failures []source.Failure
	succeeded := false
	for i, s := range f.sources {
		if errs[i] != nil {
			failures = append(failures, source.Failure{Source: s.ID(), Err: errs[i]})
			continue
		}
		succeeded = true
		merged = append(merged, results[i]...)
	}
	if !succeeded {
		return nil, &source.AggregateError{Op: source.OpList, Failures: failures}
	}
	// An empty union from a healthy source set is a valid answer.
	return merged, nil
}

// DeleteAll attempts deletion against every enabled source that supports
// it. A not-found answer counts as success (the event is already gone
// there). The call errs only if zero sources achieved success-or-404.
func (f *Fallback) DeleteAll(ctx context.Context, id string) error {
	if len(f.sources) == 0 {
		return source.ErrNoSources
	}

	var failures []source.Failure
	achieved := false
	for _, s := range f.sources {
		err := s.DeleteEvent(ctx, id)
		switch {
		case err == nil:
			achieved = true
		case source.IsNotFound(err):
			achieved = true
		case source.IsUnsupported(err):
			failures = append(failures, source.Failure{Source: s.ID(), Err: err})
		default:
			failures = append(failures, source.Failure{Source: s.ID(), Err: err})
			log.Printf("[WARN] %s: deleteEvent %s failed: %v", s.ID(), id, err)
		}
	}
	if !achieved {
		return &source.AggregateError{Op: source.OpDelete, Failures: failures}
	}
	return nil
}

// CreateFirst tries the preferred source first (when enabled), then falls
// back through the remaining sources in registration order, stopping at the
// first success.
func (f *Fallback) CreateFirst(ctx context.Context, req model.CreateEventRequest, preferred model.SourceID) (*model.CalendarEvent, error) {
	if len(f.sources) == 0 {
		return nil, source.ErrNoSources
	}

	var failures []source.Failure
	for _, s := range f.orderedFrom(preferred) {
		created, err := s.CreateEvent(ctx, req)
		if err == nil {
			return created, nil
		}
		failures = append(failures, source.Failure{Source: s.ID(), Err: err})
		if !source.IsUnsupported(err) {
			log.Printf("[WARN] %s: createEvent failed, trying next source: %v", s.ID(), err)
		}
	}
	return nil, &source.AggregateError{Op: source.OpCreate, Failures: failures}
}

// RespondFirst applies the same preferred-then-fallback sequence to an
// invitation response, returning the source that handled it.
func (f *Fallback) RespondFirst(ctx context.Context, id string, response model.RSVPResponse, calendarID string, preferred model.SourceID) (model.SourceID, error) {
	if len(f.sources) == 0 {
		return "", source.ErrNoSources
	}

	var failures []source.Failure
	for _, s := range f.orderedFrom(preferred) {
		err := s.RespondToEvent(ctx, id, response, calendarID)
		if err == nil {
			return s.ID(), nil
		}
		failures = append(failures, source.Failure{Source: s.ID(), Err: err})
		if !source.IsUnsupported(err) {
			log.Printf("[WARN] %s: respondToEvent %s failed, trying next source: %v", s.ID(), id, err)
		}
	}
	return "", &source.AggregateError{Op: source.OpRespond, Failures: failures}
}

// orderedFrom returns the sources with preferred moved to the front,
// preserving registration order for the rest.
func (f *Fallback) orderedFrom(preferred model.SourceID) []source.Source {
	if preferred == "" {
		return f.sources
	}
	ordered := make([]source.Source, 0, len(f.sources))
	for _, s := range f.sources {
		if s.ID() == preferred {
			ordered = append(ordered, s)
		}
	}
	for _, s := range f.sources {
		if s.ID() != preferred {
			ordered = append(ordered, s)
		}
	}
	return ordered
}
