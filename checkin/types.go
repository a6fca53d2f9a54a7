/*
Package checkin implements the session lifecycle around the billing engine.

PURPOSE:
  The check-in surface owns Sessions and Memberships: participants join and
  leave timed sessions at a location, and ending a session finalizes it.
  The billing engine itself is pure; this package feeds it a consistent
  snapshot and writes the computed costs back.

KEY CONCEPTS IN THIS FILE (types.go):
  - Store: persistence interface the service is built over
  - MembershipRecord: a membership plus its stored cost fields
  - Sentinel errors for lifecycle violations

LIFECYCLE:
  StartSession -> Join/Leave/rejoin (serialized per session) -> EndSession
  (end time set once, open memberships force-closed, costs computed and
  persisted) -> adjustments / settlement / reconciliation.

SEE ALSO:
  - service.go: The lifecycle operations
  - locks.go: Per-session serialization
  - store/sqlite: Production Store implementation
*/
package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrSessionNotFound is returned when a referenced session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrLocationNotFound is returned when a referenced location doesn't exist.
	ErrLocationNotFound = errors.New("location not found")

	// ErrSessionEnded is returned when a mutation targets a finalized
	// session. End times are immutable once set.
	ErrSessionEnded = errors.New("session already ended")

	// ErrAlreadyPresent is returned when a participant joins a session they
	// already have an open membership in.
	ErrAlreadyPresent = errors.New("participant already present")

	// ErrNotPresent is returned when a participant leaves a session they
	// have no open membership in.
	ErrNotPresent = errors.New("participant not present")

	// ErrMembershipNotFound is returned when a referenced membership
	// doesn't exist.
	ErrMembershipNotFound = errors.New("membership not found")

	// ErrNoSettlement is returned when reconciliation is requested for a
	// session with no settlement record.
	ErrNoSettlement = errors.New("no settlement recorded")
)

// =============================================================================
// MEMBERSHIP RECORD - Membership plus persisted cost fields
// =============================================================================

// MembershipRecord is a membership row as stored: the timing data the
// engine reads, plus the derived ComputedCost and the optional
// AdjustedCost admin override. ComputedCost is recomputable and never
// hand-edited; AdjustedCost supersedes it for billing but never replaces
// it.
type MembershipRecord struct {
	billing.Membership
	ComputedCost *decimal.Decimal
	AdjustedCost *decimal.Decimal
}

// memberships strips cost fields for the engine's Membership input.
func memberships(records []MembershipRecord) []billing.Membership {
	out := make([]billing.Membership, len(records))
	for i, r := range records {
		out[i] = r.Membership
	}
	return out
}

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store is the persistence boundary for the check-in lifecycle. The
// billing engine never touches it; only this package and the API layer do.
//
// Writes performed during finalization (SetSessionEnd, CloseOpenMemberships,
// SaveComputedCosts) must each be atomic; the service serializes them per
// session via its lock table.
type Store interface {
	// Locations (rate table is read-only at computation time)
	GetLocation(ctx context.Context, id billing.LocationID) (*billing.Location, error)

	// Sessions
	CreateSession(ctx context.Context, s billing.Session) error
	GetSession(ctx context.Context, id billing.SessionID) (*billing.Session, error)
	// SetSessionEnd sets end_time. Implementations must reject the write
	// when an end time is already present (immutability).
	SetSessionEnd(ctx context.Context, id billing.SessionID, end time.Time) error
	// ListOpenSessions returns sessions without an end time, oldest first.
	ListOpenSessions(ctx context.Context) ([]billing.Session, error)

	// Memberships
	OpenMembership(ctx context.Context, m billing.Membership) error
	CloseMembership(ctx context.Context, id billing.MembershipID, leave time.Time) error
	// CloseOpenMemberships force-closes every open membership of the
	// session at the given instant (used at finalization).
	CloseOpenMemberships(ctx context.Context, sessionID billing.SessionID, at time.Time) error
	FindOpenMembership(ctx context.Context, sessionID billing.SessionID, participantID billing.ParticipantID) (*billing.Membership, error)
	ListMemberships(ctx context.Context, sessionID billing.SessionID) ([]MembershipRecord, error)

	// Costs
	SaveComputedCosts(ctx context.Context, sessionID billing.SessionID, costs map[billing.MembershipID]decimal.Decimal) error
	SetAdjustedCost(ctx context.Context, id billing.MembershipID, amount decimal.Decimal) error

	// Settlement
	SaveSettlement(ctx context.Context, record billing.SettlementRecord) error
	GetSettlement(ctx context.Context, sessionID billing.SessionID) (*billing.SettlementRecord, error)
}
