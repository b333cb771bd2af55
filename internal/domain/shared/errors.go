// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrNotReady         = errors.New("not ready")
	ErrExpired          = errors.New("expired")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "stats", "badge"
	Op      string // Operation that failed, e.g., "Ratio", "Aggregate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Engine error taxonomy. These four conditions cover every failure the
// computation engine itself can produce or observe; all of them are
// recoverable at the call site.
var (
	// ErrInvalidModuleConfig - a module's question target is zero or negative.
	// Fatal to that one ratio computation only; callers get a safe ratio of 0.
	ErrInvalidModuleConfig = NewDomainError("progress", "Ratio", ErrValidation, "question target must be >= 1")

	// ErrSnapshotUnavailable - a live subscription has not delivered yet.
	// Callers must treat this as "loading", never as zero progress.
	ErrSnapshotUnavailable = NewDomainError("subscription", "Snapshot", ErrNotReady, "snapshot not yet delivered")

	// ErrWriteFailed - a record/answer/recalculate write did not reach the store.
	// Retried at the caller's discretion; derived state stays unchanged.
	ErrWriteFailed = NewDomainError("store", "Write", ErrExternalService, "write to store failed")

	// ErrInconsistentCache - the cached completedModules counter disagrees
	// with the moduleProgress map. The map-derived count wins.
	ErrInconsistentCache = NewDomainError("enrollment", "CompletedCount", ErrInvalidState, "completed-modules cache diverged from module progress map")
)

// Enrollment domain errors
var (
	ErrEnrollmentNotFound = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentExists   = NewDomainError("enrollment", "Create", ErrAlreadyExists, "enrollment already exists")
	ErrStatusRegression   = NewDomainError("enrollment", "SetStatus", ErrStateTransition, "enrollment status may only move forward")
)

// Campaign domain errors
var (
	ErrCampaignNotFound = NewDomainError("campaign", "Find", ErrNotFound, "campaign not found")
	ErrModuleNotFound   = NewDomainError("campaign", "FindModule", ErrNotFound, "module not found in campaign")
)

// Badge domain errors
var (
	ErrBadgeNotFound       = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrBadgeAlreadyEarned  = NewDomainError("badge", "Award", ErrAlreadyExists, "badge already earned")
	ErrUnknownCriteriaKind = NewDomainError("badge", "Evaluate", ErrInvalidInput, "unknown badge criteria kind")
)

// Leaderboard domain errors
var (
	ErrLeaderboardNotFound = NewDomainError("leaderboard", "Find", ErrNotFound, "leaderboard not found")
	ErrUserNotRanked       = NewDomainError("leaderboard", "FindRank", ErrNotFound, "user is not ranked")
	ErrInvalidRank         = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid rank")
)

// External service errors
var (
	ErrStatsAPIUnavailable     = NewDomainError("statsapi", "Request", ErrServiceUnavailable, "stats API is unavailable")
	ErrStatsAPIRateLimited     = NewDomainError("statsapi", "Request", ErrRateLimited, "stats API rate limit exceeded")
	ErrStatsAPITimeout         = NewDomainError("statsapi", "Request", ErrTimeout, "stats API request timeout")
	ErrStatsAPIInvalidResponse = NewDomainError("statsapi", "Parse", ErrInvalidFormat, "invalid response from stats API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsLoading checks if the error means "data not delivered yet" rather than
// a real failure. UI surfaces render a loading state for these.
func IsLoading(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrExternalService)
}
