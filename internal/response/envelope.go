// Package response defines the uniform JSON envelope every gateway answer
// is wrapped in.
package response

import (
	"time"

	"github.com/google/uuid"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Envelope is the body of every response. Exactly one of Data and Error is
// meaningful, matching Success.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Details   any    `json:"details,omitempty"`
	Stack     string `json:"stack,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

// Clock returns the current time. Tests replace it.
var Clock = time.Now

// Timestamp formats t as an envelope timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

func requestIDOrNew(requestID string) string {
	if requestID == "" {
		return uuid.NewString()
	}
	return requestID
}

// Success builds a successful envelope.
func Success(message string, data any, requestID string) Envelope {
	return Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: Timestamp(Clock()),
		RequestID: requestIDOrNew(requestID),
	}
}

// Failure builds a failed envelope carrying a machine-readable code.
func Failure(message, code, requestID string) Envelope {
	return Envelope{
		Success:   false,
		Message:   message,
		Error:     code,
		Timestamp: Timestamp(Clock()),
		RequestID: requestIDOrNew(requestID),
	}
}

// WithDetails returns a copy of e carrying details.
func (e Envelope) WithDetails(details any) Envelope {
	e.Details = details
	return e
}

// WithStack returns a copy of e carrying a diagnostic stack.
func (e Envelope) WithStack(stack string) Envelope {
	e.Stack = stack
	return e
}
