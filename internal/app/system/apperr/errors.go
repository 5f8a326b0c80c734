// Package apperr defines the application's error taxonomy.
//
// Errors are built with cockroachdb/errors: a cause, an optional hint
// (the user-facing message), optional safe details, and a mark naming one
// of the sentinels below. Handlers map the mark to an HTTP status with
// HTTPStatus and the hint to the response message with Message.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kind is a sentinel error identifying a class of failures.
type Kind struct {
	Code    string
	Message string
	Status  int
}

func (k *Kind) Error() string { return k.Code + ": " + k.Message }

func kind(code, msg string, status int) *Kind {
	return &Kind{Code: code, Message: msg, Status: status}
}

// Consignment allocation errors.
var (
	ErrInvalidRange       = kind("invalid_range", "invalid consignment range", http.StatusBadRequest)
	ErrRangeConflict      = kind("range_conflict", "range overlaps an active assignment", http.StatusConflict)
	ErrEntityNotFound     = kind("entity_not_found", "entity not found", http.StatusNotFound)
	ErrNoAvailableNumbers = kind("no_available_numbers", "No consignment numbers available", http.StatusConflict)
	ErrOutOfRange         = kind("out_of_range", "consignment number is not within assigned range", http.StatusBadRequest)
	ErrDuplicateUsage     = kind("duplicate_usage", "consignment number already in use", http.StatusConflict)
)

// General errors.
var (
	ErrValidation   = kind("validation_error", "validation error", http.StatusBadRequest)
	ErrNotFound     = kind("not_found", "resource not found", http.StatusNotFound)
	ErrConflict     = kind("conflict", "resource already exists", http.StatusConflict)
	ErrUnauthorized = kind("unauthorized", "sign in required", http.StatusUnauthorized)
	ErrForbidden    = kind("forbidden", "permission denied", http.StatusForbidden)
	ErrRateLimited  = kind("rate_limited", "too many requests", http.StatusTooManyRequests)
	ErrUnavailable  = kind("unavailable", "service temporarily unavailable", http.StatusServiceUnavailable)
	ErrDatabase     = kind("database_error", "database error", http.StatusInternalServerError)
	ErrSystem       = kind("system_error", "system error", http.StatusInternalServerError)
)

var kinds = []*Kind{
	ErrInvalidRange, ErrRangeConflict, ErrEntityNotFound, ErrNoAvailableNumbers,
	ErrOutOfRange, ErrDuplicateUsage,
	ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrForbidden,
	ErrRateLimited, ErrUnavailable, ErrDatabase, ErrSystem,
}

// KindOf returns the first sentinel err is marked with, or nil.
func KindOf(err error) *Kind {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// HTTPStatus maps err to a response status; unmarked errors are 500s.
func HTTPStatus(err error) int {
	if k := KindOf(err); k != nil {
		return k.Status
	}
	return http.StatusInternalServerError
}

// Message returns the first non-empty hint on err, falling back to the
// sentinel's message and finally to a generic text.
func Message(err error) string {
	for _, h := range errors.GetAllHints(err) {
		if h != "" {
			return h
		}
	}
	if k := KindOf(err); k != nil && k.Status < http.StatusInternalServerError {
		return k.Message
	}
	return "An unexpected error occurred"
}

// Is reports whether err carries the given sentinel.
func Is(err error, k *Kind) bool {
	return errors.Is(err, k)
}

// Database wraps a driver error so it surfaces as a 500 without leaking
// driver text to the client.
func Database(err error, op string) error {
	if err == nil {
		return nil
	}
	return WithError(err).
		WithMessage(op).
		WithHint("A database error occurred. Please try again.").
		Mark(ErrDatabase)
}

// InvalidRange builds an ErrInvalidRange with a formatted hint.
func InvalidRange(format string, args ...any) error {
	return NewError(fmt.Sprintf(format, args...)).
		WithHintf(format, args...).
		Mark(ErrInvalidRange)
}
