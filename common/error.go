package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to API callers alongside the HTTP status.
const (
	CodeValidation   = "validation_error"
	CodeNotFound     = "not_found"
	CodeInvalidState = "invalid_state"
	CodeTransport    = "transport_error"
	CodeTimeout      = "timeout"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeInternal     = "internal_error"
)

type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Code: codeFor(status), Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Code:    codeFor(status),
		Message: message,
		Fields:  fields,
	}
}

func ValidationError(message string, fields map[string]any) APIError {
	return NewAPIError(http.StatusBadRequest, message, fields)
}

func NotFoundError(message string) APIError {
	return NewAPIError(http.StatusNotFound, message, nil)
}

func InvalidStateError(message string, fields map[string]any) APIError {
	return NewAPIError(http.StatusConflict, message, fields)
}

func TransportError(message string, fields map[string]any) APIError {
	return NewAPIError(http.StatusServiceUnavailable, message, fields)
}

// HasCode reports whether err is, or wraps, an APIError with the given code.
func HasCode(err error, code string) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeInvalidState
	case http.StatusServiceUnavailable:
		return CodeTransport
	case http.StatusRequestTimeout:
		return CodeTimeout
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	default:
		return CodeInternal
	}
}
