// Package httpserver is the thin JSON glue surface over the coordinator's
// public operations. It is not the JSON-RPC/SSE transport, which lives
// outside this system.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/calhub/internal/avail"
	"github.com/example/calhub/internal/model"
)

// Engine is the coordinator surface the handlers call.
type Engine interface {
	GetEvents(ctx context.Context, window model.TimeRange, filter model.EventFilter) ([]model.CalendarEvent, error)
	CreateEvent(ctx context.Context, req model.CreateEventRequest, preferred model.SourceID) (*model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch, scope model.RecurrenceScope) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string, src model.SourceID, scope model.RecurrenceScope) error
	RespondToEvent(ctx context.Context, id string, response model.RSVPResponse, preferred model.SourceID, calendarID string) (*model.RespondResult, error)
	FindAvailableSlots(ctx context.Context, req avail.SlotRequest) ([]model.AvailableSlot, error)
	FindCommonAvailability(ctx context.Context, identities []string, window model.TimeRange, minDurationMinutes int) (*model.CommonAvailabilityResult, error)
	DetectAvailableSources(ctx context.Context) map[model.SourceID]bool
	EnabledSources() []model.SourceID
	HealthCheck(ctx context.Context) map[model.SourceID]bool
	ListCalendars(ctx context.Context) ([]model.CalendarInfo, error)
	SyncCalendars(ctx context.Context) error
}

// Handler serves the JSON API.
type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler { return &Handler{engine: engine} }

func parseWindow(r *http.Request) (model.TimeRange, error) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("invalid or missing start parameter: %w", err)
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		return model.TimeRange{}, fmt.Errorf("invalid or missing end parameter: %w", err)
	}
	return model.TimeRange{Start: start, End: end}, nil
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	var filter model.EventFilter
	if calendars := r.URL.Query()["calendar"]; len(calendars) > 0 {
		filter.Calendars = calendars
	}

	events, err := h.engine.GetEvents(r.Context(), window, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

type createEventBody struct {
	model.CreateEventRequest
	PreferredSource model.SourceID `json:"preferredSource,omitempty"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var body createEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, fmt.Errorf("decoding request body: %w", err))
		return
	}
	created, err := h.engine.CreateEvent(r.Context(), body.CreateEventRequest, body.PreferredSource)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateEventBody struct {
	model.EventPatch
	Scope model.RecurrenceScope `json:"scope,omitempty"`
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var body updateEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, fmt.Errorf("decoding request body: %w", err))
		return
	}
	updated, err := h.engine.UpdateEvent(r.Context(), chi.URLParam(r, "id"), body.EventPatch, body.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	src := model.SourceID(r.URL.Query().Get("source"))
	scope := model.RecurrenceScope(r.URL.Query().Get("scope"))
	if err := h.engine.DeleteEvent(r.Context(), chi.URLParam(r, "id"), src, scope); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type respondBody struct {
	Response   model.RSVPResponse `json:"response"`
	Source     model.SourceID     `json:"source,omitempty"`
	CalendarID string             `json:"calendarId,omitempty"`
}

func (h *Handler) RespondToEvent(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, fmt.Errorf("decoding request body: %w", err))
		return
	}
	switch body.Response {
	case model.ResponseAccepted, model.ResponseDeclined, model.ResponseTentative:
	default:
		badRequest(w, r, fmt.Errorf("invalid response %q (want accepted, declined, tentative)", body.Response))
		return
	}
	result, err := h.engine.RespondToEvent(r.Context(), chi.URLParam(r, "id"), body.Response, body.Source, body.CalendarID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) FindAvailableSlots(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	q := r.URL.Query()

	req := avail.SlotRequest{
		Window:               window,
		PreferredLocation:    model.WorkingLocationType(q.Get("preferredLocation")),
		RespectBlockingTypes: true,
	}
	if v := q.Get("respectBlockingTypes"); v != "" {
		req.RespectBlockingTypes, err = strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, fmt.Errorf("invalid respectBlockingTypes %q", v))
			return
		}
	}
	if req.MinDurationMinutes, err = intParam(q.Get("minDuration"), 0); err != nil {
		badRequest(w, r, err)
		return
	}
	if req.MaxDurationMinutes, err = intParam(q.Get("maxDuration"), 0); err != nil {
		badRequest(w, r, err)
		return
	}

	slots, err := h.engine.FindAvailableSlots(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []model.AvailableSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

type commonAvailabilityBody struct {
	Identities         []string  `json:"identities"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	MinDurationMinutes int       `json:"minDurationMinutes,omitempty"`
}

func (h *Handler) FindCommonAvailability(w http.ResponseWriter, r *http.Request) {
	var body commonAvailabilityBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, r, fmt.Errorf("decoding request body: %w", err))
		return
	}
	window := model.TimeRange{Start: body.Start, End: body.End}
	result, err := h.engine.FindCommonAvailability(r.Context(), body.Identities, window, body.MinDurationMinutes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.engine.ListCalendars(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calendars)
}

type sourcesResponse struct {
	Enabled   []model.SourceID        `json:"enabled"`
	Available map[model.SourceID]bool `json:"available"`
}

func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sourcesResponse{
		Enabled:   h.engine.EnabledSources(),
		Available: h.engine.DetectAvailableSources(r.Context()),
	})
}

func (h *Handler) SyncCalendars(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SyncCalendars(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration parameter %q", v)
	}
	return n, nil
}
