package chat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies client errors.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindUnauthorized   Kind = "unauthorized"
	KindRateLimited    Kind = "rate_limited"
	KindUnavailable    Kind = "unavailable"
	KindBlocked        Kind = "blocked"
	KindEmptyResponse  Kind = "empty_response"
	KindUnsupported    Kind = "unsupported"
	KindUnknown        Kind = "unknown"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrRateLimited    = &Error{Kind: KindRateLimited, Message: "rate limited", Retryable: true}
	ErrUnavailable    = &Error{Kind: KindUnavailable, Message: "service unavailable", Retryable: true}
	ErrBlocked        = &Error{Kind: KindBlocked, Message: "blocked by safety filters"}
	ErrEmptyResponse  = &Error{Kind: KindEmptyResponse, Message: "empty response"}
	ErrUnsupported    = &Error{Kind: KindUnsupported, Message: "operation not supported"}
)

// Error is returned by every ChatModel operation that fails.
type Error struct {
	Kind      Kind   `json:"kind"`
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	Retryable bool   `json:"retryable"`
	Err       error  `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("chat ")
	b.WriteString(string(e.Kind))
	if e.Model != "" {
		fmt.Fprintf(&b, " (model %s)", e.Model)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// InvalidRequestf reports a request-shape violation for model.
func InvalidRequestf(model, format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidRequest,
		Code:    http.StatusBadRequest,
		Message: fmt.Sprintf(format, args...),
		Model:   model,
	}
}

// FromHTTPStatus classifies a failed response from the remote service.
func FromHTTPStatus(status int, message, model string, cause error) *Error {
	e := &Error{Code: status, Message: message, Model: model, Err: cause}
	switch {
	case status == http.StatusBadRequest || status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity || status == http.StatusRequestEntityTooLarge:
		e.Kind = KindInvalidRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.Retryable = true
	case status >= 500:
		e.Kind = KindUnavailable
		e.Retryable = true
	default:
		e.Kind = KindUnknown
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// Unavailablef reports a transport failure that never produced a response.
func Unavailablef(model string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:      KindUnavailable,
		Message:   fmt.Sprintf(format, args...),
		Model:     model,
		Retryable: true,
		Err:       cause,
	}
}

// IsRetryable reports whether err is a client error worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
