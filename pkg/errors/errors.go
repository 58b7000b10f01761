package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrConflict
	ErrValidation
	ErrInternal
)

// FieldError is a single validation failure on a named field. Kind is a
// machine-readable identifier ("required", "pwned_password", ...); human
// text is rendered at the transport edge.
type FieldError struct {
	Field string         `json:"field"`
	Kind  string         `json:"kind"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// ValidationErrors collects field errors during a validation pass.
type ValidationErrors []FieldError

func (v *ValidationErrors) Add(field, kind string, meta map[string]any) {
	*v = append(*v, FieldError{Field: field, Kind: kind, Meta: meta})
}

// AppError represents an application error
type AppError struct {
	Code    ErrorCode        `json:"code"`
	Message string           `json:"message"`
	Fields  ValidationErrors `json:"fields,omitempty"`
	Err     error            `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewUnauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func NewConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

// NewValidation wraps collected field errors for a 422 response.
func NewValidation(fields ValidationErrors) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}
