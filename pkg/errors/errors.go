package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/agb-digital/onboarding/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrBusy         = errors.New("operation in progress")
	ErrDevice       = errors.New("device unavailable")
	ErrTransient    = errors.New("transient failure")
	ErrRateLimited  = errors.New("rate limited")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns the message in the locale carried by ctx
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithParams sets the i18n interpolation parameters
func (e *AppError) WithParams(params map[string]string) *AppError {
	e.Params = params
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		MessageKey: "errors.unauthorized",
		StatusCode: http.StatusUnauthorized,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		MessageKey: "errors.bad_request",
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		MessageKey: "errors.conflict",
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// StepBlocked reports field errors that keep the wizard on its current step
func StepBlocked(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "STEP_BLOCKED",
		Message:    "step validation failed",
		MessageKey: "errors.step_blocked",
		StatusCode: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

// Busy rejects navigation while a submission is in flight
func Busy() *AppError {
	return &AppError{
		Err:        ErrBusy,
		Code:       "BUSY",
		Message:    "a submission is already in progress",
		MessageKey: "errors.busy",
		StatusCode: http.StatusConflict,
	}
}

// DeviceUnavailable reports a recoverable camera or microphone failure
func DeviceUnavailable(message string) *AppError {
	return &AppError{
		Err:        ErrDevice,
		Code:       "DEVICE_UNAVAILABLE",
		Message:    message,
		MessageKey: "errors.device_unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}
}

// Transient reports a retryable network failure; no wizard data is lost
func Transient(message string) *AppError {
	return &AppError{
		Err:        ErrTransient,
		Code:       "TRANSIENT",
		Message:    message,
		MessageKey: "errors.transient",
		StatusCode: http.StatusBadGateway,
	}
}

// ResendLocked reports a one-time code resend before the countdown ended
func ResendLocked(seconds int) *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Code:       "RESEND_LOCKED",
		Message:    fmt.Sprintf("code can be resent in %d seconds", seconds),
		MessageKey: "errors.resend_locked",
		Params:     map[string]string{"seconds": strconv.Itoa(seconds)},
		StatusCode: http.StatusConflict,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Code:       "RATE_LIMITED",
		Message:    "too many requests",
		MessageKey: "errors.rate_limited",
		StatusCode: http.StatusTooManyRequests,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		MessageKey: "errors.token_expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		MessageKey: "errors.token_invalid",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
