package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain failure wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not authorized")
)

// Error is a domain error carrying a caller-facing message and its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Code returns the stable API code for the error kind.
func (e *Error) Code() string {
	return CodeOf(e)
}

// NewValidationError reports malformed input.
func NewValidationError(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(resource string, id string) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// NewAuthorizationError reports a requester lacking access.
func NewAuthorizationError(format string, args ...any) error {
	return &Error{Kind: ErrUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// CodeOf maps err to its API code; unknown errors are INTERNAL_ERROR.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_ERROR"
	}
}
