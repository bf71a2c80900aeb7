// Package errors defines the structured error type shared by the sync client.
// Transport, payload and gateway failures are absorbed by the sync cores and
// logged rather than surfaced to callers; validation failures are the only
// errors callers are expected to branch on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// TransportError covers connection refused, broker error frames and
	// unexpected socket closure.
	TransportError ErrorType = "TRANSPORT_ERROR"
	// PayloadError covers malformed or schema-invalid realtime frames.
	PayloadError ErrorType = "PAYLOAD_ERROR"
	// GatewayError covers 4xx/5xx responses from the REST gateway.
	GatewayError ErrorType = "GATEWAY_ERROR"
	// ValidationError covers rejected user input (empty message content, etc).
	ValidationError ErrorType = "VALIDATION_ERROR"
	// AuthError covers missing or expired credentials.
	AuthError ErrorType = "AUTHENTICATION_ERROR"
	// NotFoundError covers gateway 404s on a specific entity.
	NotFoundError ErrorType = "NOT_FOUND"
)

// AppError represents a structured application error.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Raw
}

// New creates a new AppError.
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Detail:  detail,
	}
}

// Wrap wraps a raw error with AppError context.
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errType,
		Message: message,
		Detail:  err.Error(),
		Raw:     err,
	}
}

// ValidationFailed builds the error returned for rejected user input.
func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// AuthenticationFailed builds the error for missing or invalid credentials.
func AuthenticationFailed(message string) *AppError {
	return &AppError{
		Type:       AuthError,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NotFound builds the error for a gateway 404 on a named entity.
func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewGatewayError builds an error for a non-2xx REST gateway response.
func NewGatewayError(status int, body string) *AppError {
	return &AppError{
		Type:       GatewayError,
		Message:    fmt.Sprintf("gateway request failed with status %d", status),
		Detail:     body,
		HTTPStatus: status,
	}
}

// NewTransportError wraps a transport-level failure.
func NewTransportError(err error, message string) *AppError {
	return Wrap(err, TransportError, message)
}

// NewPayloadError wraps a malformed realtime payload failure.
func NewPayloadError(err error, message string) *AppError {
	return Wrap(err, PayloadError, message)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}
