// Package errs defines the error taxonomy shared by the storage engine and
// the chat service. Callers branch on classes with errors.Is using the
// exported sentinels: validation failures abort before any I/O and are never
// retried, not-found misses are surfaced as-is, and transient store errors
// are the only class eligible for retry with backoff.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeTransient  Code = "TRANSIENT_STORE"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL"
)

// Sentinels for errors.Is checks.
var (
	ErrValidation = &StoreError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound   = &StoreError{Code: CodeNotFound, Message: "not found"}
	ErrTransient  = &StoreError{Code: CodeTransient, Message: "transient store failure"}
	ErrConflict   = &StoreError{Code: CodeConflict, Message: "version conflict"}
)

// StoreError is a coded error. Two StoreErrors match under errors.Is when
// their codes are equal, so wrapped instances compare against the sentinels.
type StoreError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error { return e.Cause }

func (e *StoreError) Is(target error) bool {
	var se *StoreError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

func Validation(format string, args ...any) error {
	return &StoreError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &StoreError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Transient(msg string, cause error) error {
	return &StoreError{Code: CodeTransient, Message: msg, Cause: cause}
}

func Conflict(msg string) error {
	return &StoreError{Code: CodeConflict, Message: msg}
}

func Internal(msg string, cause error) error {
	return &StoreError{Code: CodeInternal, Message: msg, Cause: cause}
}

// CodeOf extracts the code of a StoreError anywhere in err's chain, or
// CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a point or index lookup miss.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is a retriable store failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// RowFailure records a single failed row inside a sweep batch.
type RowFailure struct {
	Key string
	Err error
}

// PartialBatchFailure aggregates per-row sweep failures. It is returned
// alongside the successful row count; it never represents an aborted batch.
type PartialBatchFailure struct {
	Op       string
	Failures []RowFailure
}

func (e *PartialBatchFailure) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Key, f.Err))
	}
	return fmt.Sprintf("%s: %d row(s) failed: %s", e.Op, len(e.Failures), strings.Join(parts, "; "))
}
