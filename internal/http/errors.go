package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/calhub/internal/coord"
	"github.com/example/calhub/internal/recur"
	"github.com/example/calhub/internal/source"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Sources []string `json:"sources,omitempty"`
}

// writeError maps the engine's error taxonomy to HTTP statuses. Aggregate
// failures keep their per-source breakdown so operators can tell which
// backend is unhealthy.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var agg *source.AggregateError
	var srcErr *source.Error
	var restriction *recur.FieldRestrictionError
	switch {
	case errors.Is(err, source.ErrNoSources):
		status = http.StatusServiceUnavailable
	case errors.Is(err, coord.ErrSyncNotImplemented):
		status = http.StatusNotImplemented
	case errors.As(err, &restriction):
		status = http.StatusBadRequest
	case errors.As(err, &agg):
		status = http.StatusBadGateway
		for _, f := range agg.Failures {
			resp.Sources = append(resp.Sources, string(f.Source))
		}
	case errors.As(err, &srcErr):
		switch srcErr.Kind {
		case source.KindNotFound:
			status = http.StatusNotFound
		case source.KindTerminal:
			status = http.StatusBadGateway
			if srcErr.Status == http.StatusUnauthorized || srcErr.Status == http.StatusForbidden {
				status = srcErr.Status
			}
		case source.KindUnsupported:
			status = http.StatusNotImplemented
		default:
			status = http.StatusBadGateway
		}
	}

	if status >= http.StatusInternalServerError {
		logWithRequestID(r, "[ERROR]", err)
	} else {
		logWithRequestID(r, "[WARN]", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// badRequest reports a malformed request without consulting the taxonomy.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	logWithRequestID(r, "[WARN]", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func logWithRequestID(r *http.Request, level string, err error) {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		log.Printf("%s RequestID=%s: %v", level, requestID, err)
		return
	}
	log.Printf("%s %v", level, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
