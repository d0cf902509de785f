package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. The engine has no request/response surface, so codes
// exist for log correlation and tests rather than HTTP mapping.
const (
	// ErrCodeConfigAbsent marks a missing SLA hour budget. Treated as "not
	// tracked", not a failure; logged at most at info level.
	ErrCodeConfigAbsent ErrorCode = "configuration_absent"

	// ErrCodeTransientIO marks a database or mail-send failure. Caught at the
	// point of use and logged; the next tick naturally re-attempts.
	ErrCodeTransientIO ErrorCode = "transient_io_error"

	// ErrCodeStaleLockOverride marks a self-healing guard override, not a
	// failure. Always logged at warning level with the elapsed time.
	ErrCodeStaleLockOverride ErrorCode = "stale_lock_override"

	// ErrCodeInvalidSchedule marks a malformed cron expression. The affected
	// job falls back to a safe default interval instead of crashing.
	ErrCodeInvalidSchedule ErrorCode = "invalid_schedule_expression"

	ErrCodeInternalDB    ErrorCode = "internal_database_error"
	ErrCodeUpstreamMail  ErrorCode = "upstream_mail_provider_unavailable"
	ErrCodeUpstreamRate  ErrorCode = "upstream_rate_limited"
	ErrCodeInternalError ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type. Domain errors are
// expressed as AppError so logs carry a stable code alongside the message
// and the wrapped cause survives errors.Is/errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
