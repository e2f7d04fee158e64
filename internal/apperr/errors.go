// Package apperr defines the failures the API can report and the single
// classifier that turns any error into the public error envelope.
package apperr

import (
	"fmt"
	"strings"
)

// FieldError is one field-level problem reported back to the client.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidIDError means a path or body identifier is not a valid ObjectID.
type InvalidIDError struct {
	Field string
	Value string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// ValidationError carries every field violation found in one validation pass.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Has reports whether field already has a violation recorded.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e when it holds violations and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidation builds a ValidationError with a single violation.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NotFoundError means no document of Resource matched the requested id.
type NotFoundError struct {
	Resource string // singular, capitalised: "User", "Entry"
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// UnauthorizedError means the request carries no valid session.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "Authentication required"
	}
	return e.Reason
}

// UnavailableError means an optional integration is not configured.
type UnavailableError struct {
	Service string
}

func (e *UnavailableError) Error() string {
	return e.Service + " is not available"
}

// RateLimitError means the caller exceeded a request budget.
type RateLimitError struct {
	Message    string
	RetryAfter int // seconds, 0 if unknown
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "Too many requests. Please slow down."
	}
	return e.Message
}

// MethodNotAllowedError means the path exists but not for this method.
type MethodNotAllowedError struct {
	Method string
	Path   string
}

func (e *MethodNotAllowedError) Error() string {
	return "Method " + e.Method + " is not allowed on " + e.Path
}

// PanicError carries a recovered panic value and the stack where it was raised.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
