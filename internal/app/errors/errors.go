// Package errors holds the wrapped-error helpers used to report
// configuration problems.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

var (
	ErrMissingAPIKey  = New("API key is required")
	ErrInvalidAPIKey  = New("invalid API key format")
	ErrInvalidConfig  = New("invalid configuration")
	ErrConfigFile     = New("config file unreadable")
	ErrUnknownBackend = New("unknown backend")
)

// Error is a message with an optional cause. Errors built by the field
// helpers also remember the offending setting.
type Error struct {
	message string
	field   string
	cause   error
}

func New(message string) *Error {
	return &Error{message: message}
}

func Newf(format string, args ...any) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{message: message, cause: err}
}

func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches errors with the same message, so a wrapped sentinel still
// compares equal to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.message == t.message
}

// Field names the setting a validation error is about, or "".
func (e *Error) Field() string { return e.field }

func fieldError(field, format string, args ...any) *Error {
	return &Error{field: field, message: field + " " + fmt.Sprintf(format, args...)}
}

func RequiredField(field string) error {
	return fieldError(field, "is required")
}

func InvalidField(field string, reason string) error {
	return fieldError(field, "is invalid: %s", reason)
}

// OutOfRange reports a value outside [min, max].
func OutOfRange(field string, min, max any) error {
	return fieldError(field, "out of range (must be between %v and %v)", min, max)
}

func OneOf(field string, value string, allowed []string) error {
	return fieldError(field, "%q must be one of %s", value, strings.Join(allowed, ", "))
}

// IsValidationError reports whether any error in err's chain came from one
// of the field helpers.
func IsValidationError(err error) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.field != "" {
			return true
		}
		err = e.cause
	}
	return false
}
