package service

import "fmt"

// ValidationError reports malformed input, caught before the store is
// touched. The transport layer maps it to 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports a fingerprint uniqueness violation: the same semantic
// event was already recorded under a different idempotency token. The
// transport layer maps it to 409. Any other error crossing the service
// boundary is a server-side failure.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }
