package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for dispatch failures.
var (
	// ErrServiceNotFound indicates the named service is not registered.
	ErrServiceNotFound = errors.New("service not found")

	// ErrUpstreamTimeout indicates every attempt timed out.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrUpstreamUnreachable indicates the upstream could not be reached.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
)

// ErrorKind classifies a dispatch failure.
type ErrorKind string

// Dispatch failure kinds.
const (
	KindServiceNotFound     ErrorKind = "service_not_found"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamUnreachable ErrorKind = "upstream_unreachable"
)

// DispatchError is returned by Dispatcher.Forward when no upstream response
// could be obtained.
type DispatchError struct {
	Kind     ErrorKind
	Service  string
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	var msg string
	switch e.Kind {
	case KindServiceNotFound:
		msg = fmt.Sprintf("service '%s' not found", e.Service)
	case KindUpstreamTimeout:
		msg = fmt.Sprintf("service '%s' timed out after %d attempt(s)", e.Service, e.Attempts)
	default:
		msg = fmt.Sprintf("service '%s' unreachable after %d attempt(s)", e.Service, e.Attempts)
	}
	if e.Cause != nil {
		return fmt.Sprintf("dispatch error: %s: %v", msg, e.Cause)
	}
	return "dispatch error: " + msg
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind.
func (e *DispatchError) Is(target error) bool {
	switch e.Kind {
	case KindServiceNotFound:
		return target == ErrServiceNotFound
	case KindUpstreamTimeout:
		return target == ErrUpstreamTimeout
	case KindUpstreamUnreachable:
		return target == ErrUpstreamUnreachable
	}
	return false
}

// KindOf returns the kind of a DispatchError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
