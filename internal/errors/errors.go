package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Recall error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrMissingAsset   ErrorCode = "MISSING_ASSET"   // 404
	ErrSchema         ErrorCode = "SCHEMA_ERROR"    // 422
	ErrDecodeFailure  ErrorCode = "DECODE_FAILURE"  // 422
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// RecallError represents a structured error with code, status, and details.
type RecallError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *RecallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying driver or filesystem error, if any.
func (e *RecallError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RecallError {
	return &RecallError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a capture database that does not
// exist or is not an SQLite container.
func NewNotFound(path string, cause error) *RecallError {
	return &RecallError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("capture database not found or unreadable: %s", path),
		Details: map[string]any{"path": path},
		cause:   cause,
	}
}

// NewSchema creates a 422 error when an expected table or column is absent
// or the counter table is malformed.
func NewSchema(object string, cause error) *RecallError {
	msg := fmt.Sprintf("unexpected database schema: %s", object)
	if cause != nil {
		msg = fmt.Sprintf("unexpected database schema: %s (%v)", object, cause)
	}
	return &RecallError{
		Code:    ErrSchema,
		Status:  422,
		Message: msg,
		Details: map[string]any{"object": object},
		cause:   cause,
	}
}

// NewMissingAsset creates a 404 error for an image token with no file in
// the image store.
func NewMissingAsset(token string) *RecallError {
	return &RecallError{
		Code:    ErrMissingAsset,
		Status:  404,
		Message: fmt.Sprintf("image file not found: %s", token),
		Details: map[string]any{"token": token},
	}
}

// NewDecodeFailure creates a 422 error for image bytes that cannot be decoded.
func NewDecodeFailure(path string, cause error) *RecallError {
	return &RecallError{
		Code:    ErrDecodeFailure,
		Status:  422,
		Message: fmt.Sprintf("cannot decode image: %s", path),
		Details: map[string]any{"path": path},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RecallError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RecallError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a RecallError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *RecallError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// As returns the RecallError in err's chain, wrapping anything else as INTERNAL.
func As(err error) *RecallError {
	var rErr *RecallError
	if stderrors.As(err, &rErr) {
		return rErr
	}
	return NewInternal(err)
}
