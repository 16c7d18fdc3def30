// Package apperr defines the error contract shared by the REST and GraphQL
// surfaces: a message, an HTTP-compatible status, and optional validation
// detail.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a caller-facing failure.
type Error struct {
	Message string   `json:"message"`
	Status  int      `json:"status"`
	Data    []string `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Extensions exposes status and validation detail to GraphQL responses.
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"status": e.Status}
	if len(e.Data) > 0 {
		ext["data"] = e.Data
	}
	return ext
}

// Validation reports bad or missing input.
func Validation(message string, data ...string) *Error {
	return &Error{Message: message, Status: http.StatusUnprocessableEntity, Data: data}
}

// Unauthenticated reports a missing or invalid identity.
func Unauthenticated(message string) *Error {
	return &Error{Message: message, Status: http.StatusUnauthorized}
}

// Forbidden reports an identity that does not own the resource.
func Forbidden(message string) *Error {
	return &Error{Message: message, Status: http.StatusForbidden}
}

// NotFound reports an absent resource.
func NotFound(message string) *Error {
	return &Error{Message: message, Status: http.StatusNotFound}
}

// Storage reports an unavailable or failing data store.
func Storage(err error) *Error {
	return &Error{Message: "storage failure: " + err.Error(), Status: http.StatusInternalServerError}
}

// StatusOf extracts the status from err, defaulting to 500.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// From converts err to *Error, wrapping unknown failures as storage errors.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Storage(err)
}
