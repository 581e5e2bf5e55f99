// Package errors defines the typed failure kinds used across the feedback
// engine and the classifier helpers the recovery paths key off.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError rejects ingest input before any analysis or write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RaceTimeoutError reports that the AI path missed the race deadline.
type RaceTimeoutError struct {
	Deadline time.Duration
}

func (e *RaceTimeoutError) Error() string {
	return fmt.Sprintf("ai path exceeded race deadline of %s", e.Deadline)
}

// UpstreamUnavailableError covers transport failures, rate limits, and
// non-success replies from an LLM provider.
type UpstreamUnavailableError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider %s unavailable (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// UpstreamBadFormatError reports an LLM reply that could not be parsed even
// after repair. Validation coercions are not failures; only unparseable JSON is.
type UpstreamBadFormatError struct {
	Provider string
	Err      error
}

func (e *UpstreamBadFormatError) Error() string {
	return fmt.Sprintf("llm provider %s returned malformed JSON: %v", e.Provider, e.Err)
}

func (e *UpstreamBadFormatError) Unwrap() error { return e.Err }

// UniqueConflictError reports that an insert lost the race against another
// writer holding the same content hash.
type UniqueConflictError struct {
	Hash string
}

func (e *UniqueConflictError) Error() string {
	return fmt.Sprintf("content hash %s already stored", e.Hash)
}

// StoreUnavailableError wraps a failed store read or commit. It is the only
// upstream failure allowed to surface from ingest.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// AlertFailureError wraps a failed alert delivery. Always swallowed after logging.
type AlertFailureError struct {
	Err error
}

func (e *AlertFailureError) Error() string {
	return fmt.Sprintf("alert delivery failed: %v", e.Err)
}

func (e *AlertFailureError) Unwrap() error { return e.Err }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRaceTimeout reports whether err is a missed race deadline.
func IsRaceTimeout(err error) bool {
	var target *RaceTimeoutError
	return errors.As(err, &target)
}

// IsUpstreamUnavailable reports whether err is a transport-level LLM failure.
func IsUpstreamUnavailable(err error) bool {
	var target *UpstreamUnavailableError
	return errors.As(err, &target)
}

// IsUpstreamBadFormat reports whether err is an unparseable LLM reply.
func IsUpstreamBadFormat(err error) bool {
	var target *UpstreamBadFormatError
	return errors.As(err, &target)
}

// IsUniqueConflict reports whether err is a duplicate-hash insert.
func IsUniqueConflict(err error) bool {
	var target *UniqueConflictError
	return errors.As(err, &target)
}

// IsStoreUnavailable reports whether err is a store read/commit failure.
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
