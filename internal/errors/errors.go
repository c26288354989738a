// Package errors provides custom error types for the synchronization layer.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrProbeDisabled    = errors.New("probe disabled by configuration")
	ErrThrottled        = errors.New("probe throttled")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobTerminal      = errors.New("job already terminal")
	ErrResultsNotReady  = errors.New("results not ready")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// ValidationError represents a validation error. Validation errors are
// surfaced synchronously to the caller and never reach the remote service.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// RemoteError represents a non-2xx response from the remote service.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote error [%s] status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote error [%s] status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(op string, statusCode int, body string) *RemoteError {
	return &RemoteError{
		Op:         op,
		StatusCode: statusCode,
		Body:       body,
	}
}

// ProbeError represents an absorbed failure inside a probe. It is logged,
// never returned across the probe boundary.
type ProbeError struct {
	Probe string
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe error [%s]: %v", e.Probe, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// NewProbeError creates a new ProbeError.
func NewProbeError(probe string, err error) *ProbeError {
	return &ProbeError{
		Probe: probe,
		Err:   err,
	}
}

// IsTransient reports whether err is a transient remote failure: a transport
// error, a timeout, or a server-side (5xx) status. Transient failures are
// recoverable for that call only and never transition a job to error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout) {
		return true
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode >= 500 || re.StatusCode == 0
	}
	return false
}

// IsValidation reports whether err is a caller-supplied validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
