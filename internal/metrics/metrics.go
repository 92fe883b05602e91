// Package metrics exposes Prometheus instrumentation for the HTTP glue
// surface and for outbound calendar-backend calls.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/calhub/internal/model"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calhub_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calhub_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	sourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calhub_source_requests_total",
		Help: "Total number of outbound calendar backend calls by outcome.",
	}, []string{"source", "operation", "outcome"})

	sourceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calhub_source_request_duration_seconds",
		Help:    "Histogram of outbound calendar backend call latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "operation"})

	sourceRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calhub_source_retries_total",
		Help: "Total number of retried outbound backend calls.",
	}, []string{"source", "operation"})

	dedupDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calhub_dedup_dropped_total",
		Help: "Total number of events dropped as cross-source duplicates.",
	})
)

// Middleware records request counters and latencies per chi route.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routePattern(r)
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSource starts timing one outbound backend call; the returned
// function records the outcome.
func ObserveSource(src model.SourceID, operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		sourceRequestsTotal.WithLabelValues(string(src), operation, outcome).Inc()
		sourceRequestDuration.WithLabelValues(string(src), operation).
			Observe(time.Since(start).Seconds())
	}
}

// RecordRetry counts one retried backend call.
func RecordRetry(src model.SourceID, operation string) {
	sourceRetriesTotal.WithLabelValues(string(src), operation).Inc()
}

// RecordDedupDrops counts events removed as duplicates during a merge.
func RecordDedupDrops(n int) {
	if n > 0 {
		dedupDroppedTotal.Add(float64(n))
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
