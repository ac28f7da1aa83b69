// Package errors provides the application error type with stable codes,
// plus re-exports of the standard helpers so callers need a single errors
// import.
package errors

import (
	"errors"
	"fmt"
)

// Re-exported standard library helpers.
var (
	New    = errors.New
	Unwrap = errors.Unwrap
	Is     = errors.Is
	As     = errors.As
)

// Error extends the basic error interface with a stable code.
type Error interface {
	error
	Code() string
	Unwrap() error
}

// AppError is the default Error implementation.
type AppError struct {
	code    string
	message string
	err     error
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

func (e *AppError) Code() string {
	return e.code
}

func (e *AppError) Unwrap() error {
	return e.err
}

// NewAppError creates a new application error.
func NewAppError(code string, message string, err error) *AppError {
	return &AppError{
		code:    code,
		message: message,
		err:     err,
	}
}

// Wrap wraps an existing error, preserving the code of a wrapped AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		return NewAppError(appErr.Code(), message, err)
	}

	return NewAppError(ErrInternal, message, err)
}
