package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeExternal   ErrorType = "external_api"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypePermission ErrorType = "permission"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// AppError represents an application error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// New creates a new AppError
func New(errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", file, line)

	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Source:  source,
		Context: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error into AppError
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)
	source := fmt.Sprintf("%s:%d", file, line)

	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   source,
		Context:  make(map[string]interface{}),
	}
}

// Handler logs errors at a level matching their type
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// Handle logs err. Mistakes of the caller are warnings, failures of the
// system are errors. args are extra attributes such as a request id.
func (h *Handler) Handle(ctx context.Context, err error, args ...any) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if err != error(appErr) {
			args = append(args, "error", err.Error())
		}
		h.handleAppError(ctx, appErr, args)
	} else {
		h.handleGenericError(ctx, err, args)
	}
}

// handleAppError handles AppError instances
func (h *Handler) handleAppError(ctx context.Context, err *AppError, args []any) {
	fields := append(args, err.LogFields()...)
	switch err.Type {
	case ErrorTypeValidation:
		h.logger.WarnContext(ctx, "Validation error", fields...)
	case ErrorTypePermission:
		h.logger.WarnContext(ctx, "Permission error", fields...)
	case ErrorTypeRateLimit:
		h.logger.WarnContext(ctx, "Rate limit error", fields...)
	case ErrorTypeDatabase, ErrorTypeExternal, ErrorTypeInternal, ErrorTypeTimeout:
		h.logger.ErrorContext(ctx, "Critical error", fields...)
	default:
		h.logger.ErrorContext(ctx, "Unknown error type", fields...)
	}
}

// handleGenericError handles generic errors
func (h *Handler) handleGenericError(ctx context.Context, err error, args []any) {
	h.logger.ErrorContext(ctx, "Unhandled error", append(args, "error", err.Error())...)
}

// ErrCredentialExpired marks a tracker token that can no longer be refreshed.
var ErrCredentialExpired = New(ErrorTypePermission, "CREDENTIAL_EXPIRED", "Tracker credentials expired")

// Convenience functions for common errors
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, "VALIDATION", message)
}

func NewDatabaseError(err error) *AppError {
	return Wrap(err, ErrorTypeDatabase, "DB_ERROR", "Database operation failed")
}

func NewExternalAPIError(err error, api string) *AppError {
	return Wrap(err, ErrorTypeExternal, "EXTERNAL_API", fmt.Sprintf("%s API error", api)).
		WithContext("api", api)
}

func NewPermissionError(message string) *AppError {
	return New(ErrorTypePermission, "UNAUTHORIZED", message)
}

// TypeOf returns the type of the outermost AppError in the chain.
// Plain errors are internal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeInternal
}

// UserMessage turns any error into the one-line message shown to a person.
// Validation messages are passed through, everything else is generic.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	switch TypeOf(err) {
	case ErrorTypeValidation:
		if errors.As(err, &appErr) {
			return appErr.Message
		}
		return "Invalid input"
	case ErrorTypePermission:
		if errors.As(err, &appErr) && appErr.Code == ErrCredentialExpired.Code {
			return "Your tracker connection has expired. Please reconnect it."
		}
		return "You are not allowed to do that."
	case ErrorTypeExternal:
		return "An external service is unavailable. Please try again later."
	case ErrorTypeTimeout:
		return "The operation timed out. Please try again."
	case ErrorTypeRateLimit:
		return "Too many requests. Please slow down."
	default:
		return "Something went wrong. Please try again."
	}
}

// HTTPStatus maps an error to the response status of the HTTP API.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypePermission:
		return http.StatusUnauthorized
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeExternal:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
