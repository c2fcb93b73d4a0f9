package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"portfoliograph/internal/dataprocessing"
	"portfoliograph/internal/infrastructure"
)

// Common error types following RFC 7807
const (
	TypeValidation     = "/errors/validation"
	TypeNotFound       = "/errors/not-found"
	TypeRateLimit      = "/errors/rate-limit"
	TypeInternal       = "/errors/internal"
	TypeServiceDown    = "/errors/service-unavailable"
	TypeTimeout        = "/errors/timeout"
	TypeCanceled       = "/errors/request-canceled"
	TypeMethodNotAllow = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeClientNotFound   = "/errors/client/not-found"
	TypeDatasetNotFound  = "/errors/dataset/not-found"
	TypeGraphUnavailable = "/errors/graph/unavailable"
	TypeDataNotFound     = "/errors/data/not-found"
	TypeDataSchema       = "/errors/data/schema"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("type", problem.Type),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	h.annotate(problem, r)
	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	if werr := problem.Write(w); werr != nil {
		h.logger.WarnContext(r.Context(), "failed to write problem response", slog.String("error", werr.Error()))
	}
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var schemaErr *dataprocessing.SchemaError
	if errors.As(err, &schemaErr) {
		problem := NewProblemDetails(
			http.StatusInternalServerError,
			TypeDataSchema,
			"Invalid Input Data",
			schemaErr.Error(),
			r.URL.Path,
		).
			WithExtension("source", schemaErr.Kind).
			WithExtension("path", schemaErr.Path)
		if len(schemaErr.MissingColumns) > 0 {
			problem.WithExtension("missing_columns", schemaErr.MissingColumns)
			problem.WithExtension("found_columns", schemaErr.FoundColumns)
		}
		return problem
	}

	var fileErr *dataprocessing.FileError
	if errors.As(err, &fileErr) {
		return NewProblemDetails(
			http.StatusInternalServerError,
			TypeDataNotFound,
			"Input Data Unavailable",
			fileErr.Error(),
			r.URL.Path,
		).
			WithExtension("source", fileErr.Kind).
			WithExtension("path", fileErr.Path)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	case errors.Is(err, context.Canceled):
		return NewProblemDetails(
			http.StatusRequestTimeout,
			TypeCanceled,
			"Request Canceled",
			"The request was cancelled before it completed",
			r.URL.Path,
		)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidationFailed, CodeInvalidRequest:
		problemType = TypeValidation
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeClientNotFound:
		problemType = TypeClientNotFound
	case CodeDatasetNotFound:
		problemType = TypeDatasetNotFound
	case CodeRateLimitExceeded:
		problemType = TypeRateLimit
	case CodeServiceUnavailable:
		problemType = TypeServiceDown
	case CodeGraphUnavailable:
		problemType = TypeGraphUnavailable
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	for k, v := range apiErr.Extensions {
		problem.WithExtension(k, v)
	}

	return problem
}

// annotate adds request and trace identifiers.
func (h *ErrorHandler) annotate(problem *ProblemDetails, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	problem.WithExtension("request_id", reqID)

	traceID := infrastructure.TraceIDFromContext(r.Context())
	if traceID == "" {
		traceID = infrastructure.GetTraceID(r.Context())
	}
	if traceID == "" {
		traceID = reqID
	}
	problem.WithExtension("trace_id", traceID)
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	)
	h.annotate(problem, r)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	_ = problem.Write(w)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	)
	h.annotate(problem, r)
	_ = problem.Write(w)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethodNotAllow,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	)
	h.annotate(problem, r)
	_ = problem.Write(w)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
