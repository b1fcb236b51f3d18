package backend

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyInput is returned before any I/O when the question is blank.
	ErrEmptyInput = errors.New("please enter a question")

	// ErrCancelled reports that the caller abandoned the request.
	ErrCancelled = errors.New("cancelled")

	// ErrTimeout matches every *TimeoutError via errors.Is.
	ErrTimeout = errors.New("request timed out")

	// ErrIncompleteStream is reported when a stream ends without its
	// completion marker.
	ErrIncompleteStream = errors.New("stream ended before completion")
)

// Kind classifies an error for presentation and exit codes.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindHTTP
	KindNetwork
	KindTimeout
	KindCancelled
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// HTTPError is a non-2xx reply from the backend.
type HTTPError struct {
	StatusCode int
	Body       string
	// Message is the envelope's message or error field, when the body had one.
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d", e.StatusCode)
}

// BackendError is a 2xx reply whose envelope did not report success.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// NetworkError wraps connection level failures (refused, reset, DNS, TLS).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the wall-clock ceiling expired.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After <= 0 {
		return ErrTimeout.Error()
	}
	return fmt.Sprintf("request timed out after %s", formatCeiling(e.After))
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// KindOf classifies err. Order matters: a timeout or cancellation may arrive
// wrapped inside a network error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var httpErr *HTTPError
	var backendErr *BackendError
	var netErr *NetworkError

	switch {
	case errors.Is(err, ErrEmptyInput):
		return KindValidation
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &backendErr):
		return KindBackend
	case errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindNetwork
	}
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindValidation:
		return "Please enter a question."
	case KindTimeout:
		var te *TimeoutError
		if errors.As(err, &te) && te.After > 0 {
			return fmt.Sprintf("The request took too long (over %s). Please try again.", formatCeiling(te.After))
		}
		return "The request took too long. Please try again."
	case KindCancelled:
		return "Cancelled"
	case KindHTTP:
		var he *HTTPError
		if errors.As(err, &he) && he.Message != "" {
			return fmt.Sprintf("Backend error (HTTP %d): %s", he.StatusCode, he.Message)
		}
		return "Backend error. Check the backend logs."
	case KindBackend:
		var be *BackendError
		if errors.As(err, &be) && be.Message != "" {
			return be.Message
		}
		return "Unknown error from backend."
	default:
		if errors.Is(err, ErrIncompleteStream) {
			return "The answer stream ended unexpectedly. Please try again."
		}
		return "Network error. Check that the backend is running and reachable."
	}
}

// formatCeiling prints whole-second durations as "60s" rather than "1m0s".
func formatCeiling(d time.Duration) string {
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
	return d.String()
}
