// Package shared contains the error taxonomy and transaction contract used by
// every domain package. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, matched with errors.Is().
var (
	// ErrValidation marks malformed or illegal input.
	ErrValidation = errors.New("validation error")

	// ErrForbidden marks a caller that is not a permitted party.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated marks a request without a usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict marks a write rejected by a uniqueness or state guard.
	ErrConflict = errors.New("conflict")

	// ErrStore marks a failure of the underlying persistence layer.
	ErrStore = errors.New("store failure")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "match", "session", "progress"
	Op      string // operation that failed, e.g. "Create", "UpdateStatus"
	Kind    error  // base kind for errors.Is() checking
	Message string // user-facing message
	Err     error  // underlying error (optional)
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

// Is implements errors.Is() matching against the kind and the cause.
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

// StoreFailure wraps a persistence error as ErrStore.
func StoreFailure(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrStore, "store operation failed", err)
}

// Auth errors
var (
	ErrMissingToken = NewDomainError("auth", "Authenticate", ErrUnauthenticated, "no token, authorization denied")
	ErrInvalidToken = NewDomainError("auth", "Authenticate", ErrUnauthenticated, "token is not valid")
)

// User domain errors
var (
	ErrUserNotFound = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrNotSelf      = NewDomainError("user", "Authorize", ErrForbidden, "callers may only access their own records")
)

// Match domain errors
var (
	ErrMatchNotFound       = NewDomainError("match", "Find", ErrNotFound, "match not found")
	ErrSkillNotFound       = NewDomainError("match", "Create", ErrNotFound, "teacher, learner or skill not found")
	ErrSelfMatch           = NewDomainError("match", "Create", ErrValidation, "cannot create a match with yourself")
	ErrMissingMatchFields  = NewDomainError("match", "Create", ErrValidation, "teacher_id, learner_id and skill_id are required")
	ErrNotMatchParticipant = NewDomainError("match", "Authorize", ErrForbidden, "caller is not a participant of this match")
	ErrActiveMatchExists   = NewDomainError("match", "Create", ErrConflict, "an active match or pending request for this skill already exists between these users")
	ErrInvalidMatchStatus  = NewDomainError("match", "UpdateStatus", ErrValidation, "invalid match status provided")
	ErrIllegalTransition   = NewDomainError("match", "UpdateStatus", ErrValidation, "match status transition is not allowed")
	ErrMatchStatusChanged  = NewDomainError("match", "UpdateStatus", ErrConflict, "match status was changed concurrently")
)

// Session domain errors
var (
	ErrSessionNotFound         = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrMatchNotAccepted        = NewDomainError("session", "Create", ErrValidation, "sessions can only be scheduled for accepted matches")
	ErrInvalidSessionDate      = NewDomainError("session", "Create", ErrValidation, "session_date is required")
	ErrInvalidSessionDuration  = NewDomainError("session", "Create", ErrValidation, "duration_minutes must be positive")
	ErrSelfRating              = NewDomainError("session", "Complete", ErrForbidden, "participants cannot rate themselves")
	ErrRatingOutOfRange        = NewDomainError("session", "Complete", ErrValidation, "feedback rating is out of range")
	ErrFeedbackAlreadyRecorded = NewDomainError("session", "Complete", ErrConflict, "a different rating was already recorded for this session")
)

// Progress domain errors
var (
	ErrProgressNotFound        = NewDomainError("progress", "Find", ErrNotFound, "progress record not found")
	ErrProgressSubjectNotFound = NewDomainError("progress", "IncrementSessions", ErrNotFound, "learner or skill not found")
	ErrNotProgressOwner        = NewDomainError("progress", "Authorize", ErrForbidden, "caller does not own this progress record")
	ErrInvalidPercentage       = NewDomainError("progress", "Update", ErrValidation, "completion_percentage must be between 0 and 100")
	ErrEmptyProgressPatch      = NewDomainError("progress", "Update", ErrValidation, "nothing to update")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsForbidden checks if the caller was not a permitted party.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsUnauthenticated checks if the request carried no usable identity.
func IsUnauthenticated(err error) bool { return errors.Is(err, ErrUnauthenticated) }

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsStore checks if the error came from the persistence layer.
func IsStore(err error) bool { return errors.Is(err, ErrStore) }

// UserMessage returns the user-facing message of the outermost DomainError,
// or an empty string when err carries none.
func UserMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
