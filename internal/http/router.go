package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/example/calhub/internal/config"
	"github.com/example/calhub/internal/http/ratelimit"
	"github.com/example/calhub/internal/metrics"
)

// NewRouter wires the JSON API, health endpoints and metrics.
func NewRouter(cfg *config.Config, engine Engine) http.Handler {
	r := chi.NewRouter()

	// API endpoints: 20 requests per second, burst of 50.
	apiRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Ready once at least one backend answers its probe.
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		for _, ok := range engine.DetectAvailableSources(ctx) {
			if ok {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
				return
			}
		}
		http.Error(w, "unready", http.StatusServiceUnavailable)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.HealthCheck(r.Context()))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	h := NewHandler(engine)
	r.Route("/api", func(r chi.Router) {
		r.Use(apiRateLimiter.Middleware())

		r.Get("/events", h.GetEvents)
		r.Post("/events", h.CreateEvent)
		r.Patch("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)
		r.Post("/events/{id}/respond", h.RespondToEvent)

		r.Get("/availability", h.FindAvailableSlots)
		r.Post("/availability/common", h.FindCommonAvailability)

		r.Get("/calendars", h.ListCalendars)
		r.Get("/sources", h.Sources)
		r.Post("/sync", h.SyncCalendars)
	})

	return r
}
