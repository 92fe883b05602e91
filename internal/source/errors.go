package source

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/calhub/internal/model"
)

// ErrNoSources indicates that the coordinator has zero enabled sources.
// This is a configuration problem the caller must fix; retrying cannot help.
var ErrNoSources = errors.New("no calendar sources are enabled")

// Kind classifies a backend failure so that retry and fallback decisions are
// a pure function of a typed field rather than of error-message text.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnsupported means the backend cannot perform this operation at
	// all. Callers route around it; it is never surfaced raw.
	KindUnsupported
	// KindTransient covers rate limits, 5xx responses and network errors.
	// Safe to retry with backoff.
	KindTransient
	// KindTerminal covers auth and validation failures. Never retried.
	KindTerminal
	// KindNotFound is 404/410. Terminal, except that deletes treat it as
	// success (the event is already gone).
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported"
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is a backend failure annotated at the adapter boundary with the
// originating source, the attempted operation and a failure kind.
type Error struct {
	Source model.SourceID
	Op     string
	Kind   Kind
	Status int // HTTP status when the backend reported one, else 0
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s failed (%s)", e.Source, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" [status %d]", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Unsupported builds the sentinel failure for an operation a backend does
// not implement.
func Unsupported(src model.SourceID, op string) *Error {
	return &Error{
		Source: src,
		Op:     op,
		Kind:   KindUnsupported,
		Err:    fmt.Errorf("operation %q is not supported by the %s backend", op, src),
	}
}

// Classify wraps a backend error with a kind derived from its HTTP status.
// Status 0 (network-level failures) classifies as transient.
func Classify(src model.SourceID, op string, status int, err error) *Error {
	kind := KindTransient
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindTransient
	case status >= 500:
		kind = KindTransient
	case status >= 400:
		kind = KindTerminal
	}
	return &Error{Source: src, Op: op, Kind: kind, Status: status, Err: err}
}

// KindOf extracts the failure kind, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsUnsupported reports whether the backend declined the operation entirely.
func IsUnsupported(err error) bool { return KindOf(err) == KindUnsupported }

// IsNotFound reports whether the backend answered 404/410.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsTransient reports whether the failure is worth retrying.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// Failure pairs a source with the error it produced during a fan-out.
type Failure struct {
	Source model.SourceID
	Err    error
}

// AggregateError is raised only when every attempted source failed. The
// message enumerates each source and its reason so operators can tell which
// backend is unhealthy.
type AggregateError struct {
	Op       string
	Failures []Failure
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Source, f.Err))
	}
	return fmt.Sprintf("%s: all sources failed: %s", e.Op, strings.Join(parts, "; "))
}
