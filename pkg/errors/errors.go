package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

var (
	// ErrMaxRetriesReached is returned when a page could not be fetched within its retry budget.
	ErrMaxRetriesReached = errors.New("max retries reached")

	// ErrUserDoesNotExist is returned when an account name cannot be resolved.
	ErrUserDoesNotExist = errors.New("user does not exist")

	// ErrCursorRepeated is returned when pagination hands back a cursor it already returned.
	ErrCursorRepeated = errors.New("pagination cursor repeated")

	// ErrMaxPagesReached is returned when a walk exceeds its configured page cap.
	ErrMaxPagesReached = errors.New("max pages reached")
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// Is lets errors.Is match a not_found API error against ErrUserDoesNotExist.
func (e *Error) Is(target error) bool {
	return target == ErrUserDoesNotExist && e.Type == ErrorTypeNotFound
}

// DecodeError is returned by the page decoders. Missing reports that the
// expected keys were absent, which the API does while throttling; such a
// page is retried. Anything else is a malformed page and ends the walk.
type DecodeError struct {
	Key     string
	Missing bool
	Reason  string
}

func (e *DecodeError) Error() string {
	if e.Missing {
		return fmt.Sprintf("decode %s: missing: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("decode %s: malformed: %s", e.Key, e.Reason)
}

// NewMissing builds a retryable decode error.
func NewMissing(key, reason string) *DecodeError {
	return &DecodeError{Key: key, Missing: true, Reason: reason}
}

// NewMalformed builds a fatal decode error.
func NewMalformed(key, reason string) *DecodeError {
	return &DecodeError{Key: key, Reason: reason}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

// IsSoftFailure reports whether err means "not ready yet": a decode error with
// missing keys or a rate-limited fetch. Soft failures are retried with the
// same URL; everything else is not.
func IsSoftFailure(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Missing
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeRateLimit
	}
	return false
}
