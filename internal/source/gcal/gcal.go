// Package gcal adapts the Google Calendar v3 API to the source capability
// contract. Credentials come from an oauth2.TokenSource supplied by the
// auth subsystem; this adapter never manages tokens itself. Every outbound
// call is wrapped in the shared retry policy, and googleapi failures are
// converted to typed source errors at this boundary.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/example/calhub/internal/metrics"
	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/source"
)

const (
	// freeBusyBatchLimit is the API's per-request identity cap.
	freeBusyBatchLimit = 50

	listPageSize = 2500
	dateLayout   = "2006-01-02"
)

// Adapter is the cloud calendar backend.
type Adapter struct {
	svc        *calendar.Service
	calendarID string
	retry      source.RetryPolicy
}

// New builds the adapter against one calendar (usually "primary").
func New(ctx context.Context, ts oauth2.TokenSource, calendarID string) (*Adapter, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("building calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Adapter{svc: svc, calendarID: calendarID, retry: source.DefaultRetryPolicy()}, nil
}

// NewWithService injects a prebuilt service; tests use it with a stub
// HTTP transport.
func NewWithService(svc *calendar.Service, calendarID string) *Adapter {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Adapter{svc: svc, calendarID: calendarID, retry: source.DefaultRetryPolicy()}
}

func (a *Adapter) ID() model.SourceID { return model.SourceCloud }

// IsAvailable probes the API with a minimal authenticated request.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := a.svc.CalendarList.List().MaxResults(1).Context(probeCtx).Do()
	return err == nil
}

// do wraps one outbound call with metrics and the retry policy. The fn
// closure must return errors already classified via wrap.
func (a *Adapter) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	done := metrics.ObserveSource(model.SourceCloud, op)
	policy := a.retry
	policy.OnRetry = func(err error, wait time.Duration) {
		metrics.RecordRetry(model.SourceCloud, op)
		log.Printf("[WARN] cloud: retrying %s in %s: %v", op, wait, err)
	}
	err := policy.Do(ctx, func() error { return fn(ctx) })
	done(err)
	return err
}

// wrap classifies a googleapi failure into the typed taxonomy. Anything
// without an HTTP status (network, transport) classifies as transient.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return source.Classify(model.SourceCloud, op, gerr.Code, err)
	}
	return source.Classify(model.SourceCloud, op, 0, err)
}

// ListEvents returns single-instance events in the window; recurring events
// arrive pre-expanded into occurrences by the API.
func (a *Adapter) ListEvents(ctx context.Context, window model.TimeRange, filter model.EventFilter) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	err := a.do(ctx, source.OpList, func(ctx context.Context) error {
		out = out[:0]
		pageToken := ""
		for {
			call := a.svc.Events.List(a.calendarID).
				TimeMin(window.Start.Format(time.RFC3339)).
				TimeMax(window.End.Format(time.RFC3339)).
				SingleEvents(true).
				OrderBy("startTime").
				MaxResults(listPageSize).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			page, err := call.Do()
			if err != nil {
				return wrap(source.OpList, err)
			}
			for _, item := range page.Items {
				ev, convErr := fromAPI(item, a.calendarID)
				if convErr != nil {
					log.Printf("[WARN] cloud: skipping event %s: %v", item.Id, convErr)
					continue
				}
				if filter.Matches(ev) {
					out = append(out, ev)
				}
			}
			if page.NextPageToken == "" {
				return nil
			}
			pageToken = page.NextPageToken
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) GetEvent(ctx context.Context, id string) (*model.CalendarEvent, error) {
	var out *model.CalendarEvent
	err := a.do(ctx, source.OpGet, func(ctx context.Context) error {
		item, err := a.svc.Events.Get(a.calendarID, id).Context(ctx).Do()
		if err != nil {
			return wrap(source.OpGet, err)
		}
		ev, convErr := fromAPI(item, a.calendarID)
		if convErr != nil {
			return &source.Error{Source: model.SourceCloud, Op: source.OpGet, Kind: source.KindTerminal, Err: convErr}
		}
		out = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.CalendarEvent, error) {
	event := toAPICreate(req)
	var out *model.CalendarEvent
	err := a.do(ctx, source.OpCreate, func(ctx context.Context) error {
		created, err := a.svc.Events.Insert(a.calendarID, event).Context(ctx).Do()
		if err != nil {
			return wrap(source.OpCreate, err)
		}
		ev, convErr := fromAPI(created, a.calendarID)
		if convErr != nil {
			return &source.Error{Source: model.SourceCloud, Op: source.OpCreate, Kind: source.KindTerminal, Err: convErr}
		}
		out = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (*model.CalendarEvent, error) {
	event := toAPIPatch(patch)
	var out *model.CalendarEvent
	err := a.do(ctx, source.OpUpdate, func(ctx context.Context) error {
		updated, err := a.svc.Events.Patch(a.calendarID, id, event).Context(ctx).Do()
		if err != nil {
			return wrap(source.OpUpdate, err)
		}
		ev, convErr := fromAPI(updated, a.calendarID)
		if convErr != nil {
			return &source.Error{Source: model.SourceCloud, Op: source.OpUpdate, Kind: source.KindTerminal, Err: convErr}
		}
		out = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) DeleteEvent(ctx context.Context, id string) error {
	return a.do(ctx, source.OpDelete, func(ctx context.Context) error {
		if err := a.svc.Events.Delete(a.calendarID, id).Context(ctx).Do(); err != nil {
			return wrap(source.OpDelete, err)
		}
		return nil
	})
}

// RespondToEvent updates the caller's own attendee entry on the event.
func (a *Adapter) RespondToEvent(ctx context.Context, id string, response model.RSVPResponse, calendarID string) error {
	if calendarID == "" {
		calendarID = a.calendarID
	}
	return a.do(ctx, source.OpRespond, func(ctx context.Context) error {
		event, err := a.svc.Events.Get(calendarID, id).Context(ctx).Do()
		if err != nil {
			return wrap(source.OpRespond, err)
		}
		found := false
		for _, att := range event.Attendees {
			if att.Self {
				att.ResponseStatus = string(response)
				found = true
			}
		}
		if !found {
			return &source.Error{
				Source: model.SourceCloud,
				Op:     source.OpRespond,
				Kind:   source.KindTerminal,
				Err:    fmt.Errorf("event %s has no attendee entry for the authenticated user", id),
			}
		}
		_, err = a.svc.Events.Patch(calendarID, id, &calendar.Event{Attendees: event.Attendees}).Context(ctx).Do()
		return wrap(source.OpRespond, err)
	})
}

// QueryFreeBusy resolves busy periods for the identities, batching at the
// API limit and querying batches concurrently. Identities the API reports
// errors for are returned in Errors; a whole failed batch marks each of its
// identities rather than failing the call.
func (a *Adapter) QueryFreeBusy(ctx context.Context, identities []string, window model.TimeRange) (*source.FreeBusyResult, error) {
	result := &source.FreeBusyResult{
		Busy:   make(map[string][]model.BusyPeriod, len(identities)),
		Errors: make(map[string]string),
	}

	var batches [][]string
	for start := 0; start < len(identities); start += freeBusyBatchLimit {
		end := min(start+freeBusyBatchLimit, len(identities))
		batches = append(batches, identities[start:end])
	}

	type batchOutcome struct {
		busy map[string][]model.BusyPeriod
		errs map[string]string
	}
	outcomes := make([]batchOutcome, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			busy, errs := a.queryBatch(gctx, batch, window)
			outcomes[i] = batchOutcome{busy: busy, errs: errs}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		for id, periods := range o.busy {
			result.Busy[id] = periods
		}
		for id, reason := range o.errs {
			result.Errors[id] = reason
		}
	}
	return result, nil
}

func (a *Adapter) queryBatch(ctx context.Context, batch []string, window model.TimeRange) (busy map[string][]model.BusyPeriod, errs map[string]string) {
	busy = make(map[string][]model.BusyPeriod, len(batch))
	errs = make(map[string]string)

	items := make([]*calendar.FreeBusyRequestItem, 0, len(batch))
	for _, id := range batch {
		items = append(items, &calendar.FreeBusyRequestItem{Id: id})
	}

	var resp *calendar.FreeBusyResponse
	err := a.do(ctx, source.OpFreeBusy, func(ctx context.Context) error {
		var qerr error
		resp, qerr = a.svc.Freebusy.Query(&calendar.FreeBusyRequest{
			TimeMin: window.Start.Format(time.RFC3339),
			TimeMax: window.End.Format(time.RFC3339),
			Items:   items,
		}).Context(ctx).Do()
		return wrap(source.OpFreeBusy, qerr)
	})
	if err != nil {
		for _, id := range batch {
			errs[id] = err.Error()
		}
		return busy, errs
	}

	for _, id := range batch {
		cal, ok := resp.Calendars[id]
		if !ok {
			errs[id] = "identity not present in freebusy response"
			continue
		}
		if len(cal.Errors) > 0 {
			errs[id] = cal.Errors[0].Reason
			continue
		}
		periods := make([]model.BusyPeriod, 0, len(cal.Busy))
		for _, p := range cal.Busy {
			start, serr := time.Parse(time.RFC3339, p.Start)
			end, eerr := time.Parse(time.RFC3339, p.End)
			if serr != nil || eerr != nil {
				continue
			}
			periods = append(periods, model.BusyPeriod{Start: start, End: end})
		}
		busy[id] = periods
	}
	return busy, errs
}

// ListCalendars enumerates the account's calendars.
func (a *Adapter) ListCalendars(ctx context.Context) ([]model.CalendarInfo, error) {
	var out []model.CalendarInfo
	err := a.do(ctx, "listCalendars", func(ctx context.Context) error {
		out = out[:0]
		pageToken := ""
		for {
			call := a.svc.CalendarList.List().Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			page, err := call.Do()
			if err != nil {
				return wrap("listCalendars", err)
			}
			for _, item := range page.Items {
				out = append(out, model.CalendarInfo{ID: item.Id, Summary: item.Summary, Primary: item.Primary})
			}
			if page.NextPageToken == "" {
				return nil
			}
			pageToken = page.NextPageToken
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
