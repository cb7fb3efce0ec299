package errors

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"genai-chat/internal/app/chat"
)

// ErrorKind classifies an API error and decides its HTTP status.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindBadRequest         ErrorKind = "bad_request"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindBlocked            ErrorKind = "blocked"
	KindRateLimited        ErrorKind = "rate_limited"
	KindNotImplemented     ErrorKind = "not_implemented"
	KindBadGateway         ErrorKind = "bad_gateway"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindInternal           ErrorKind = "internal"
)

var statusByKind = map[ErrorKind]int{
	KindValidation:         http.StatusUnprocessableEntity,
	KindBlocked:            http.StatusUnprocessableEntity,
	KindBadRequest:         http.StatusBadRequest,
	KindUnauthorized:       http.StatusUnauthorized,
	KindRateLimited:        http.StatusTooManyRequests,
	KindNotImplemented:     http.StatusNotImplemented,
	KindBadGateway:         http.StatusBadGateway,
	KindServiceUnavailable: http.StatusServiceUnavailable,
}

var kindByChatKind = map[chat.Kind]ErrorKind{
	chat.KindInvalidRequest: KindBadRequest,
	chat.KindUnauthorized:   KindUnauthorized,
	chat.KindRateLimited:    KindRateLimited,
	chat.KindUnavailable:    KindServiceUnavailable,
	chat.KindBlocked:        KindBlocked,
	chat.KindUnsupported:    KindNotImplemented,
	chat.KindEmptyResponse:  KindBadGateway,
}

// APIError is the JSON body of every failed response.
type APIError struct {
	Kind      ErrorKind         `json:"kind"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	// Code is the chat error kind the response was mapped from.
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// HTTPStatus defaults to 500 for kinds without a dedicated status.
func (e *APIError) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewValidationError reports rejected request fields, keyed by field name.
func NewValidationError(message string, fields map[string]string) *APIError {
	return &APIError{Kind: KindValidation, Message: message, Details: fields}
}

func NewInternalError(message string) *APIError {
	return &APIError{Kind: KindInternal, Message: message}
}

// FromChatError maps a chat client failure onto an API error. Errors that
// are not *chat.Error become internal errors so upstream details never leak.
func FromChatError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	var ce *chat.Error
	if !stderrors.As(err, &ce) {
		return NewInternalError("Internal server error")
	}

	kind, ok := kindByChatKind[ce.Kind]
	if !ok {
		kind = KindInternal
	}
	out := &APIError{
		Kind:      kind,
		Message:   ce.Message,
		Code:      string(ce.Kind),
		Retryable: ce.Retryable,
	}
	details := map[string]string{}
	if ce.Model != "" {
		details["model"] = ce.Model
	}
	if ce.Code != 0 {
		details["upstream_status"] = strconv.Itoa(ce.Code)
	}
	if len(details) > 0 {
		out.Details = details
	}
	return out
}
