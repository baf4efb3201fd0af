package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidArgument:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrInvalidArgument
	ErrConflict
	ErrInternal
)

// NotFound reports a missing entity, naming it and the id that was looked up.
func NotFound(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found with ID: %v", resource, id),
	}
}

func NotFoundf(format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

func InvalidArgument(message string) *AppError {
	return &AppError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

func InvalidArgumentf(format string, args ...interface{}) *AppError {
	return InvalidArgument(fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

func Conflictf(format string, args ...interface{}) *AppError {
	return Conflict(fmt.Sprintf(format, args...))
}

// Internal hides err behind a generic message; the cause is kept for logging.
func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrNotFound
}

func IsConflict(err error) bool {
	return err != nil && CodeOf(err) == ErrConflict
}

func IsInvalidArgument(err error) bool {
	return err != nil && CodeOf(err) == ErrInvalidArgument
}

// Wrap returns err unchanged when it already carries an AppError, otherwise it
// classifies it as Internal.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Internal(err)
}
