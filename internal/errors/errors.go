package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Daylog error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrConfiguration      ErrorCode = "CONFIGURATION"       // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrIncompatibleSchema ErrorCode = "INCOMPATIBLE_SCHEMA" // 409
	ErrMalformedEvent     ErrorCode = "MALFORMED_EVENT"     // 422
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// DaylogError represents a structured error with code, status, and details.
type DaylogError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *DaylogError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *DaylogError {
	return &DaylogError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewConfiguration creates a 400 error for an unusable configuration.
// It is fatal for the invocation that loaded the configuration.
func NewConfiguration(field, msg string) *DaylogError {
	return &DaylogError{
		Code:    ErrConfiguration,
		Status:  400,
		Message: fmt.Sprintf("invalid configuration: %s: %s", field, msg),
		Details: map[string]any{"field": field},
	}
}

// NewNotFound creates a 404 error for a missing record or artifact.
func NewNotFound(what, identifier string) *DaylogError {
	return &DaylogError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *DaylogError {
	return &DaylogError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewIncompatibleSchema creates a 409 error for an edit set written under
// a different schema version.
func NewIncompatibleSchema(want, got int) *DaylogError {
	return &DaylogError{
		Code:    ErrIncompatibleSchema,
		Status:  409,
		Message: fmt.Sprintf("edit schema version %d is not supported (want %d)", got, want),
		Details: map[string]any{"want": want, "got": got},
	}
}

// NewMalformedEvent creates a 422 error for an event missing required
// type-specific fields.
func NewMalformedEvent(eventType string, reason string) *DaylogError {
	return &DaylogError{
		Code:    ErrMalformedEvent,
		Status:  422,
		Message: fmt.Sprintf("malformed %s event: %s", eventType, reason),
		Details: map[string]any{"type": eventType, "reason": reason},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message is generic; the cause is kept in Details for logging only.
func NewInternal(err error) *DaylogError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &DaylogError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or anything it wraps) is a DaylogError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DaylogError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

