package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every *Error.
var ErrValidation = errors.New("validation failed")

// Location is the part of the request a field came from.
type Location string

// Request locations.
const (
	LocationBody   Location = "body"
	LocationQuery  Location = "query"
	LocationParams Location = "params"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every field failure of one request.
type Error struct {
	Fields map[Location][]FieldError
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, loc := range []Location{LocationBody, LocationQuery, LocationParams} {
		for _, f := range e.Fields[loc] {
			parts = append(parts, fmt.Sprintf("%s.%s: %s", loc, f.Field, f.Message))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrValidation.
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

// Details returns the grouped field errors for the response body.
func (e *Error) Details() map[Location][]FieldError {
	return e.Fields
}

func (e *Error) add(loc Location, fields ...FieldError) {
	if len(fields) == 0 {
		return
	}
	if e.Fields == nil {
		e.Fields = make(map[Location][]FieldError)
	}
	e.Fields[loc] = append(e.Fields[loc], fields...)
}

func (e *Error) empty() bool {
	return len(e.Fields) == 0
}
