package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a caller parameter that violates its declared shape
// or constraint. Always recoverable by the caller; Field names the offender.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError for a field.
func Invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError is a normalized non-2xx or network failure from either
// upstream. Message is derived from the status and never contains credentials.
// Upstream failures are not retried automatically; Retryable is a hint for the
// caller only.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
	Retryable  bool
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	return e.Service + ": " + e.Message
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// UnsupportedError marks a requested combination the upstream cannot service
// at all. Surfaced verbatim to the caller, never silently degraded.
type UnsupportedError struct {
	Message string
}

func (e *UnsupportedError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// CapabilityError means an entire tool tier is unavailable because its
// upstream credentials were not supplied. Detected before any call is made.
type CapabilityError struct {
	Capability string
	Message    string
}

func (e *CapabilityError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// ErrorCode maps an error to the canonical code reported at the tool boundary.
func ErrorCode(err error) string {
	var (
		vErr *ValidationError
		uErr *UpstreamError
		sErr *UnsupportedError
		cErr *CapabilityError
	)
	switch {
	case errors.As(err, &vErr):
		return "INVALID_INPUT"
	case errors.As(err, &cErr):
		return "CAPABILITY_UNAVAILABLE"
	case errors.As(err, &sErr):
		return "UNSUPPORTED_OPERATION"
	case errors.As(err, &uErr):
		return "UPSTREAM_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
