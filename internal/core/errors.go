package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Ingestion errors: reject the affected record, not the run
	ErrBadCandle    = &Error{Code: "BAD_CANDLE", Message: "malformed candle"}
	ErrBadSignal    = &Error{Code: "BAD_SIGNAL", Message: "malformed signal"}
	ErrNonMonotonic = &Error{Code: "NON_MONOTONIC", Message: "candle timestamps not ascending"}
	ErrNoData       = &Error{Code: "NO_DATA", Message: "no data available"}

	// Price conversion errors: escalate the trade, never ignore
	ErrNoConversion = &Error{Code: "NO_CONVERSION", Message: "no calendar spread available"}

	// Run-level fatal errors: abort before any trade is staged
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
	ErrDataLoad      = &Error{Code: "DATA_LOAD", Message: "reference data load failed"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}
)
