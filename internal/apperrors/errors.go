package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks or that the
// requested state change is not allowed for the record's current state.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConfiguration indicates that product configuration needed to complete the
// operation is missing or does not match (e.g. no funding account rule).
var ErrConfiguration = errors.New("configuration error")

// ErrArgument indicates an unsupported or malformed argument, such as an unknown action.
var ErrArgument = errors.New("invalid argument")

// ErrProvider indicates that the payment provider or a transport to it failed.
var ErrProvider = errors.New("provider error")

// ErrConflict indicates a concurrent modification or a held lock.
var ErrConflict = errors.New("conflict")

// ErrInternal indicates an unexpected infrastructure failure.
var ErrInternal = errors.New("internal error")

// AppError carries an HTTP-ish status code alongside a wrapped cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError. When err is nil the error wraps ErrInternal.
func NewAppError(code int, message string, err error) *AppError {
	if err == nil {
		err = ErrInternal
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError returns an error wrapping ErrNotFound with the given detail.
func NewNotFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// NewValidationError returns an error wrapping ErrValidation with the given detail.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NewConfigurationError returns an error wrapping ErrConfiguration with the given detail.
func NewConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// NewArgumentError returns an error wrapping ErrArgument with the given detail.
func NewArgumentError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArgument, fmt.Sprintf(format, args...))
}

// NewProviderError wraps a transport or provider failure.
func NewProviderError(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrProvider, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
}
