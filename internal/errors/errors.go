package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`

	// Extensions are copied onto the problem details as top-level members.
	Extensions map[string]interface{} `json:"-"`

	cause error
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap returns the error the APIError was built from, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// WithExtension attaches a top-level problem member.
func (e *APIError) WithExtension(key string, value interface{}) *APIError {
	if e.Extensions == nil {
		e.Extensions = make(map[string]interface{})
	}
	e.Extensions[key] = value
	return e
}

// WithCause records the underlying error for errors.Is and errors.As.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeClientNotFound     = "CLIENT_NOT_FOUND"
	CodeDatasetNotFound    = "DATASET_NOT_FOUND"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeGraphUnavailable   = "GRAPH_UNAVAILABLE"
)

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		CodeValidationFailed,
		"Request validation failed",
		ValidationErrors{Errors: errs},
	)
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error()).WithCause(err)
}

// NotFoundWithAvailable creates a 404 for an unknown id. available is a
// sample of valid ids and more reports whether it was truncated.
func NotFoundWithAvailable(code, resource, id string, available []string, more bool, cause error) *APIError {
	if available == nil {
		available = []string{}
	}
	return New(http.StatusNotFound, code, fmt.Sprintf("%s %q not found", resource, id)).
		WithExtension(resource+"_id", id).
		WithExtension("available", available).
		WithExtension("more_available", more).
		WithCause(cause)
}

// GraphUnavailable creates a 503 for requests that need a built graph.
func GraphUnavailable(cause error) *APIError {
	message := "Graph is not available"
	if cause != nil {
		message = fmt.Sprintf("Graph is not available: %v", cause)
	}
	return New(http.StatusServiceUnavailable, CodeGraphUnavailable, message).WithCause(cause)
}

// NewInternalError creates a simple internal server error
func NewInternalError(message string) *APIError {
	return New(http.StatusInternalServerError, CodeInternal, message)
}
