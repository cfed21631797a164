package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Request validation errors
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodePartitionUnknown ErrorCode = "PARTITION_UNKNOWN"

	// Scheduler errors
	ErrCodeSubmissionFailed ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSchedulerFailed  ErrorCode = "SCHEDULER_FAILED"
	ErrCodeJobNotScheduled  ErrorCode = "JOB_NOT_SCHEDULED"

	// Session errors
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// In-job errors
	ErrCodeNoPortAvailable   ErrorCode = "NO_PORT_AVAILABLE"
	ErrCodeServerStartFailed ErrorCode = "SERVER_START_FAILED"

	// Command execution errors
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// HpcodeError represents a structured error with context
type HpcodeError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *HpcodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *HpcodeError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *HpcodeError) WithDetail(key string, value interface{}) *HpcodeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *HpcodeError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new HpcodeError
func New(code ErrorCode, message string) *HpcodeError {
	return &HpcodeError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a HpcodeError
func Wrap(err error, code ErrorCode, message string) *HpcodeError {
	return &HpcodeError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific HpcodeError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	hpErr, ok := err.(*HpcodeError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return hpErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	hpErr, ok := err.(*HpcodeError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return hpErr.Code
}
