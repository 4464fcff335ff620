// Package types defines the error taxonomy and outcome types for retryable operations
package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies an operation failure. The set of kinds is closed;
// values outside it stringify as "unknown" and are never retryable.
type ErrorKind int

const (
	// KindNetworkTimeout indicates the request timed out in transit
	KindNetworkTimeout ErrorKind = iota
	// KindNetworkUnreachable indicates the peer could not be reached
	KindNetworkUnreachable
	// KindOriginRejected indicates the origin refused to serve the caller
	KindOriginRejected
	// KindContentBlocked indicates the content is blocked by policy
	KindContentBlocked
	// KindInvalidInput indicates a malformed or unknown input identifier
	KindInvalidInput
	// KindServerUnavailable indicates the server is temporarily unavailable
	KindServerUnavailable
	// KindNotFound indicates the resource was not found
	KindNotFound
	// KindLoadTimeout indicates loading took longer than allowed
	KindLoadTimeout
)

// String returns the stable tag for the kind
func (k ErrorKind) String() string {
	switch k {
	case KindNetworkTimeout:
		return "network-timeout"
	case KindNetworkUnreachable:
		return "network-unreachable"
	case KindOriginRejected:
		return "origin-rejected"
	case KindContentBlocked:
		return "content-blocked-by-policy"
	case KindInvalidInput:
		return "invalid-input-id"
	case KindServerUnavailable:
		return "server-unavailable"
	case KindNotFound:
		return "resource-not-found"
	case KindLoadTimeout:
		return "load-timeout"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind are transient.
// Policy and input errors are permanent; kinds outside the defined
// set are treated as permanent as well.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindNetworkTimeout, KindNetworkUnreachable, KindServerUnavailable,
		KindNotFound, KindLoadTimeout:
		return true
	case KindOriginRejected, KindContentBlocked, KindInvalidInput:
		return false
	default:
		return false
	}
}

// RetryableKinds returns the kinds classified as transient
func RetryableKinds() []ErrorKind {
	return []ErrorKind{
		KindNetworkTimeout,
		KindNetworkUnreachable,
		KindServerUnavailable,
		KindNotFound,
		KindLoadTimeout,
	}
}

// canceledKey marks cancellation errors in the Context map
const canceledKey = "canceled"

// OperationError represents a classified operation failure
type OperationError struct {
	// Kind classifies the failure
	Kind ErrorKind

	// Message is a human-readable description
	Message string

	// Context contains error context information
	Context map[string]interface{}

	// Retryable indicates whether the error is retryable
	Retryable bool

	// RetryAfter is an explicit delay before the next attempt. Zero means
	// the computed backoff applies. A positive value is honored as given,
	// even beyond the configured delay cap.
	RetryAfter time.Duration

	// Cause is the underlying error, if any
	Cause error
}

// NewOperationError creates a classified error, deriving retryability from the kind
func NewOperationError(kind ErrorKind, message string) *OperationError {
	return &OperationError{
		Kind:      kind,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: kind.Retryable(),
	}
}

// Error implements the error interface
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error wraps a specific error
func (e *OperationError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// WithContext adds error context
func (e *OperationError) WithContext(key string, value interface{}) *OperationError {
	e.Context[key] = value
	return e
}

// WithRetryAfter sets an explicit delay before the next attempt
func (e *OperationError) WithRetryAfter(d time.Duration) *OperationError {
	e.RetryAfter = d
	return e
}

// NewCanceledError creates the error reported for a canceled execution.
// It reuses the network-unreachable kind but is never retryable and
// carries a context marker so callers can tell it apart from a real
// connectivity failure.
func NewCanceledError(message string) *OperationError {
	e := NewOperationError(KindNetworkUnreachable, message)
	e.Retryable = false
	e.Context[canceledKey] = true
	return e
}

// IsCanceled reports whether err marks a canceled execution
func IsCanceled(err error) bool {
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		return false
	}
	marked, ok := opErr.Context[canceledKey].(bool)
	return ok && marked
}

// AsOperationError normalizes an arbitrary error into an *OperationError.
// Classified errors pass through unchanged. Context cancellation and
// deadline errors map to their kinds. Anything else becomes a retryable
// network-unreachable error with the original error as cause.
func AsOperationError(err error) *OperationError {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}
	var e *OperationError
	switch {
	case errors.Is(err, context.Canceled):
		e = NewCanceledError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		e = NewOperationError(KindNetworkTimeout, err.Error())
	default:
		e = NewOperationError(KindNetworkUnreachable, err.Error())
	}
	e.Cause = err
	return e
}
