// Package errors holds the normalized error shapes returned by the API
// client and the stores.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCanceled reports a request that was aborted before it completed.
// Stores treat it as a silent no-op.
var ErrCanceled = stderrors.New("request canceled")

// ErrClosed is returned by a store after Close.
var ErrClosed = stderrors.New("store closed")

// ApiError is the single shape every transport or HTTP failure is normalized
// into. Status is 0 when no response was received.
type ApiError struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ApiError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api error: %s", e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// NewApiError builds an ApiError, falling back to the status text when the
// server sent no message.
func NewApiError(status int, message string, data interface{}) *ApiError {
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = "Unknown error"
	}
	return &ApiError{Message: message, Status: status, Data: data}
}

// IsCanceled reports whether err stems from request cancellation.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, ErrCanceled) || stderrors.Is(err, context.Canceled)
}

// Normalize converts any error into an *ApiError. Cancellation is not an
// ApiError and normalizes to nil.
func Normalize(err error) *ApiError {
	if err == nil || IsCanceled(err) {
		return nil
	}

	var apiErr *ApiError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return &ApiError{Message: stdErr.Message, Status: 0, Data: stdErr}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return &ApiError{Message: "request timed out", Status: 0}
	}

	return &ApiError{Message: err.Error(), Status: 0}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *ApiError
	if stderrors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports a 401. A 403 does not match.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// ErrorCode identifies client-side failures that never reached the server.
type ErrorCode string

const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeNotAuthenticated  ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	ErrCodeTokenStoreFailed  ErrorCode = "TOKEN_STORE_FAILED"
	ErrCodeEncodingFailed    ErrorCode = "ENCODING_FAILED"
)

// StandardError is a structured client-side error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HasCode reports whether err is a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Order status transition not allowed",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Metadata:  map[string]interface{}{"from": from, "to": to},
		Timestamp: time.Now().UTC(),
	}
}

func NewNotAuthenticatedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAuthenticated,
		Message:   "No authenticated user",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Operation requires admin role",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCircuitOpenError(name string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCircuitOpen,
		Message:   fmt.Sprintf("Backend '%s' temporarily unavailable", name),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTokenStoreError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenStoreFailed,
		Message:   "Token store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewEncodingError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEncodingFailed,
		Message:   "Failed to encode request body",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
