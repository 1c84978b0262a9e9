// Package apierr defines the typed error kinds the Control & Query API
// translates into HTTP status codes (spec.md §7). Internal components
// (scheduler, prober, orchestrator adapter) never return these to callers
// outside the HTTP layer — they log and continue.
package apierr

import (
	"fmt"
	"net/http"
)

// Kind is one of the seven error categories spec.md §7 names.
type Kind string

const (
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Forbidden    Kind = "forbidden"
	BadRequest   Kind = "bad_request"
	Conflict     Kind = "conflict"
	Unavailable  Kind = "unavailable"
	Internal     Kind = "internal"
)

// Error is a typed API error carrying a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NotFoundf, Unauthorizedf, etc. are convenience constructors used at call
// sites throughout httpapi and the engines it calls into.
func NotFoundf(format string, args ...any) *Error   { return sprintf(NotFound, format, args...) }
func Unauthorizedf(format string, args ...any) *Error { return sprintf(Unauthorized, format, args...) }
func Forbiddenf(format string, args ...any) *Error  { return sprintf(Forbidden, format, args...) }
func BadRequestf(format string, args ...any) *Error { return sprintf(BadRequest, format, args...) }
func Conflictf(format string, args ...any) *Error   { return sprintf(Conflict, format, args...) }
func Unavailablef(format string, args ...any) *Error { return sprintf(Unavailable, format, args...) }
func Internalf(format string, args ...any) *Error   { return sprintf(Internal, format, args...) }

func sprintf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps a Kind to the status code table in spec.md §7.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unavailable:
		return http.StatusBadRequest
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
