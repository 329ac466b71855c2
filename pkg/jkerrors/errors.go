// Package jkerrors defines the typed failure taxonomy shared by every
// JetKite client component. All failures derive from ClientError, which
// carries an optional free-form context map for diagnostics.
package jkerrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClientError is the base type for every failure raised by this module.
type ClientError struct {
	Message string
	Context map[string]interface{}
}

func (e *ClientError) Error() string {
	return e.Message
}

// WithContext attaches a key/value pair to the error's context map and
// returns the error for chaining.
func (e *ClientError) WithContext(key string, value interface{}) *ClientError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NetworkError indicates a transport-level failure where no HTTP response
// was obtained at all. Always retryable.
type NetworkError struct {
	ClientError
	Cause error
}

// NewNetworkError wraps an underlying transport failure.
func NewNetworkError(message string, cause error) *NetworkError {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &NetworkError{
		ClientError: ClientError{Message: message},
		Cause:       cause,
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// APIError indicates a response was obtained but carried a non-2xx status.
type APIError struct {
	ClientError
	StatusCode int
	Body       interface{}
}

// NewAPIError builds an APIError for the given status code. Body holds the
// parsed response body when available, otherwise the raw text.
func NewAPIError(message string, statusCode int, body interface{}) *APIError {
	return &APIError{
		ClientError: ClientError{Message: message},
		StatusCode:  statusCode,
		Body:        body,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// IsClientError reports whether the status is in the 4xx range.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError reports whether the status is in the 5xx range.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// Retryable reports whether a retry can reasonably succeed. Only server
// errors qualify; 4xx responses are the caller's fault and never retried.
func (e *APIError) Retryable() bool {
	return e.IsServerError()
}

// ValidationError carries every violation found in a set of intent
// parameters. Violations are always collected in full before raising.
type ValidationError struct {
	ClientError
	Violations []string
}

// NewValidationError builds a ValidationError from the collected violations.
func NewValidationError(violations []string) *ValidationError {
	return &ValidationError{
		ClientError: ClientError{
			Message: fmt.Sprintf("validation failed: %s", strings.Join(violations, "; ")),
		},
		Violations: violations,
	}
}

// TimeoutError indicates an operation's deadline elapsed.
type TimeoutError struct {
	ClientError
	Duration time.Duration
}

// NewTimeoutError builds a TimeoutError for an operation bounded by duration.
func NewTimeoutError(message string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		ClientError: ClientError{Message: message},
		Duration:    duration,
	}
}

// RetryError indicates every attempt of a retryable operation failed.
type RetryError struct {
	ClientError
	Attempts int
	Last     error
}

// NewRetryError wraps the last underlying failure after attempts tries.
func NewRetryError(attempts int, last error) *RetryError {
	return &RetryError{
		ClientError: ClientError{
			Message: fmt.Sprintf("all %d attempts failed: %v", attempts, last),
		},
		Attempts: attempts,
		Last:     last,
	}
}

func (e *RetryError) Unwrap() error {
	return e.Last
}

// IsRetryable reports whether err is worth retrying: network-level failures
// and 5xx API responses are, everything else is not.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}
