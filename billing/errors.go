/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Callers match with errors.Is() on the sentinels; the structured types
  carry enough context (session id, interval bounds, occupancy) to locate
  the offending data.

ERROR CATEGORIES:
  1. Interval errors  - Malformed membership timing
  2. Configuration errors - Missing or gapped rate tiers
  3. Sequencing errors - NotEnded / AlreadySettled lifecycle violations

REMEDY MODEL:
  The engine is deterministic and pure, so no error is retryable from
  inside it. The only remedy is correcting the input data (membership
  timestamps or the rate table) and recomputing.

SEE ALSO:
  - timeline.go: Returns InvalidIntervalError
  - tier.go: Returns ConfigurationError
  - settle.go: Returns ErrNotEnded / ErrAlreadySettled
*/
package billing

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInterval is returned when a membership has leave before
	// join, or an open membership joined outside the session bounds.
	ErrInvalidInterval = errors.New("invalid membership interval")

	// ErrConfiguration is returned when an observed occupancy count has no
	// covering rate tier. The rate table must be corrected at the source;
	// the engine never clamps or defaults.
	ErrConfiguration = errors.New("rate table configuration gap")

	// ErrNotEnded is returned when reconciliation or finalization is
	// attempted before the session has an end time.
	ErrNotEnded = errors.New("session not ended")

	// ErrAlreadySettled is returned when cost recomputation is attempted
	// for a session whose settlement record is marked final. Recomputation
	// after settlement requires an explicit override.
	ErrAlreadySettled = errors.New("session already settled")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidIntervalError describes a malformed membership interval.
type InvalidIntervalError struct {
	SessionID    SessionID
	MembershipID MembershipID
	Join         time.Time
	Leave        time.Time
	Reason       string // e.g. "leave before join", "join outside session"
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval for membership %s in session %s: %s [%s, %s]",
		e.MembershipID, e.SessionID, e.Reason,
		e.Join.Format(time.RFC3339), e.Leave.Format(time.RFC3339))
}

func (e *InvalidIntervalError) Unwrap() error { return ErrInvalidInterval }

// ConfigurationError describes an occupancy count with no covering tier.
type ConfigurationError struct {
	LocationID LocationID
	Occupancy  int
	MaxCovered int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no rate tier at location %s covers occupancy %d (max covered: %d)",
		e.LocationID, e.Occupancy, e.MaxCovered)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NotEndedError identifies the session that is still open.
type NotEndedError struct {
	SessionID SessionID
}

func (e *NotEndedError) Error() string {
	return fmt.Sprintf("session %s has no end time", e.SessionID)
}

func (e *NotEndedError) Unwrap() error { return ErrNotEnded }

// AlreadySettledError identifies the session with a final settlement.
type AlreadySettledError struct {
	SessionID SessionID
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("session %s has a final settlement; pass an explicit override to recompute", e.SessionID)
}

func (e *AlreadySettledError) Unwrap() error { return ErrAlreadySettled }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDataError returns true if the error is caused by bad input data that
// must be corrected at the source (memberships or rate table).
func IsDataError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) || errors.Is(err, ErrConfiguration)
}

// IsSequencingError returns true if the error is a lifecycle-stage violation
// that the caller can recover from by retrying at the right stage or
// passing an override.
func IsSequencingError(err error) bool {
	return errors.Is(err, ErrNotEnded) || errors.Is(err, ErrAlreadySettled)
}
