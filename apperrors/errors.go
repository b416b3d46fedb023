// Package apperrors defines the application error taxonomy. Every failure
// surfaced to a caller maps to one of these kinds with a stable machine-readable
// name, an HTTP status, and a human-readable message.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies the class of an application error.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal_error"
)

// AppError carries an error kind, its HTTP status code, and, for validation
// failures, every violated field rather than just the first one.
type AppError struct {
	Kind    Kind     `json:"kind"`
	Message string   `json:"message"`
	Code    int      `json:"-"`
	Fields  []string `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s [%s]", e.Kind, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewValidation creates a validation error. Fields lists every violated field.
func NewValidation(message string, fields ...string) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Code: http.StatusBadRequest, Fields: fields}
}

// NewUnauthenticated creates an error for a missing or invalid credential.
func NewUnauthenticated(message string) *AppError {
	return &AppError{Kind: KindUnauthenticated, Message: message, Code: http.StatusUnauthorized}
}

// NewForbidden creates an error for a valid credential with insufficient role.
func NewForbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message, Code: http.StatusForbidden}
}

// NewNotFound creates an error for an absent issue or user.
func NewNotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, Code: http.StatusNotFound}
}

// NewConflict creates an error for a duplicate unique field.
func NewConflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Code: http.StatusConflict}
}

// NewInternal creates an error for an unexpected storage or infrastructure failure.
func NewInternal(message string) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Code: http.StatusInternalServerError}
}

// As extracts an AppError from err, or nil if err is not one.
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr := As(err)
	return appErr != nil && appErr.Kind == kind
}
