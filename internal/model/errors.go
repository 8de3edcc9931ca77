package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrStateConflict  = errors.New("state conflict")
	ErrInternal       = errors.New("internal error")
)

// Error taxonomy codes shared by both transports. The REST adapter maps
// them to HTTP statuses; the MCP adapter returns them verbatim in the
// structured error payload.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "checkout_not_found"
	CodeUpdateFailed   = "checkout_update_failed"
	CodeCompleteFailed = "checkout_complete_failed"
	CodeCancelFailed   = "checkout_cancel_failed"
	CodeInternalError  = "internal_error"
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewInvalidRequestError creates a 400 error for malformed or
// schema-violating input.
func NewInvalidRequestError(field, reason string) *APIError {
	return &APIError{
		Code:       CodeInvalidRequest,
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewNotFoundError creates a 404 error for an unknown session id.
func NewNotFoundError(checkoutID string) *APIError {
	return &APIError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("checkout session %s not found", checkoutID),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewUpdateConflictError creates a 409 error for update preconditions.
// The message names the violated precondition.
func NewUpdateConflictError(reason string) *APIError {
	return &APIError{
		Code:       CodeUpdateFailed,
		Message:    reason,
		StatusCode: 409,
		Err:        ErrStateConflict,
	}
}

// NewCompleteConflictError creates a 409 error for complete preconditions.
func NewCompleteConflictError(reason string) *APIError {
	return &APIError{
		Code:       CodeCompleteFailed,
		Message:    reason,
		StatusCode: 409,
		Err:        ErrStateConflict,
	}
}

// NewCancelConflictError creates a 409 error for cancel preconditions.
func NewCancelConflictError(reason string) *APIError {
	return &APIError{
		Code:       CodeCancelFailed,
		Message:    reason,
		StatusCode: 409,
		Err:        ErrStateConflict,
	}
}

// NewInternalError creates a 500 error for unexpected failures.
// The wrapped error is logged server-side, never exposed to callers.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       CodeInternalError,
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}
