package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/example/calhub/internal/model"
	"github.com/example/calhub/internal/source"
)

func TestWrap_ClassifiesByStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want source.Kind
	}{
		{"404 is not found", &googleapi.Error{Code: 404}, source.KindNotFound},
		{"429 is transient", &googleapi.Error{Code: 429}, source.KindTransient},
		{"503 is transient", &googleapi.Error{Code: 503}, source.KindTransient},
		{"403 is terminal", &googleapi.Error{Code: 403}, source.KindTerminal},
		{"plain network error is transient", errors.New("connection reset"), source.KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := source.KindOf(wrap(source.OpList, tt.err)); got != tt.want {
				t.Errorf("kind = %s, want %s", got, tt.want)
			}
		})
	}
	if wrap(source.OpList, nil) != nil {
		t.Error("nil must pass through")
	}
}

// stubService builds a calendar.Service talking to a local handler.
func stubService(t *testing.T, handler http.Handler) *calendar.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestQueryFreeBusy_PerIdentityErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req calendar.FreeBusyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding freebusy request: %v", err)
		}

		resp := calendar.FreeBusyResponse{
			Calendars: map[string]calendar.FreeBusyCalendar{
				"a@example.com": {
					Busy: []*calendar.TimePeriod{
						{Start: "2026-03-02T10:00:00Z", End: "2026-03-02T11:00:00Z"},
					},
				},
				"b@example.com": {
					Errors: []*calendar.Error{{Reason: "notFound"}},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	a := NewWithService(stubService(t, handler), "primary")
	window := model.TimeRange{
		Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}

	got, err := a.QueryFreeBusy(context.Background(), []string{"a@example.com", "b@example.com", "c@example.com"}, window)
	if err != nil {
		t.Fatal(err)
	}

	periods, ok := got.Busy["a@example.com"]
	if !ok || len(periods) != 1 {
		t.Errorf("busy[a] = %v", periods)
	}
	if got.Errors["b@example.com"] != "notFound" {
		t.Errorf("errors[b] = %q", got.Errors["b@example.com"])
	}
	// An identity the API silently omitted is an error, not "free".
	if _, reported := got.Errors["c@example.com"]; !reported {
		t.Error("omitted identity must be reported as an error")
	}
}

func TestListEvents_SkipsCancelledTombstones(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := calendar.Events{
			Items: []*calendar.Event{
				{
					Id:     "live",
					Status: "confirmed",
					Start:  &calendar.EventDateTime{DateTime: "2026-03-02T10:00:00Z"},
					End:    &calendar.EventDateTime{DateTime: "2026-03-02T11:00:00Z"},
				},
				{Id: "tombstone", Status: "cancelled"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	a := NewWithService(stubService(t, handler), "primary")
	window := model.TimeRange{
		Start: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}

	events, err := a.ListEvents(context.Background(), window, model.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != "live" {
		t.Errorf("events = %+v, want only the live one", events)
	}
}
