/*
Package billing provides the session cost-allocation engine.

PURPOSE:
  This package contains the pure computation core for pay-per-room group
  sessions: given a location's tiered rate table and the timeline of who
  was present in a session and when, it computes a deterministic, auditable
  cost per membership.

KEY CONCEPTS IN THIS FILE (types.go):
  - RateTier / Location: the tiered day/night rate table
  - Session: a timed room booking at a location
  - Membership: one continuous presence of a participant in a session
  - Interval: an elementary slice of session time with constant occupancy
  - CostResult: per-membership computed costs plus the grand total

DESIGN PRINCIPLES:
  1. Purity: the engine is a function of its inputs; it owns no state
  2. Precision: uses decimal.Decimal to avoid floating-point drift
  3. Determinism: identical inputs always produce bit-identical outputs
  4. Conservation: allocation redistributes the room total, never changes it

USAGE:
  result, err := billing.ComputeCosts(location, session, memberships)
  if err != nil { ... }
  for id, cost := range result.Costs { ... }

SEE ALSO:
  - timeline.go: Occupancy timeline construction
  - daynight.go: Day/night boundary splitting
  - allocate.go: Cost allocation and rounding reconciliation
  - settle.go: Settlement reconciliation
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LocationID string
type SessionID string
type MembershipID string
type ParticipantID string

// =============================================================================
// RATE TABLE - Per-location group-size tiers with day/night hourly rates
// =============================================================================

// RateTier maps a contiguous occupancy range [GroupMin, GroupMax] to a pair
// of hourly rates. Rates are currency units per hour.
type RateTier struct {
	GroupMin  int
	GroupMax  int
	DayRate   decimal.Decimal
	NightRate decimal.Decimal
}

// Contains reports whether the occupancy count falls inside this tier.
func (t RateTier) Contains(occupancy int) bool {
	return occupancy >= t.GroupMin && occupancy <= t.GroupMax
}

// Rate returns the hourly rate for the given side of the day/night cutoff.
func (t RateTier) Rate(isDay bool) decimal.Decimal {
	if isDay {
		return t.DayRate
	}
	return t.NightRate
}

// Location carries the identity and rate configuration the engine needs.
// CRUD for locations lives in the surrounding API, not here.
type Location struct {
	ID   LocationID
	Name string

	// Tiers ordered by GroupMin. Invariant: tiers partition
	// [1, MaxGroupSize()] with no gaps and no overlaps.
	Tiers []RateTier

	// NightCutoffHour is the hour-of-day (0-23) at which day rates switch
	// to night rates. Day is [midnight, cutoff), night is [cutoff, midnight).
	NightCutoffHour int
}

// MaxGroupSize returns the largest occupancy covered by the rate table,
// or 0 when no tiers are configured.
func (l Location) MaxGroupSize() int {
	max := 0
	for _, t := range l.Tiers {
		if t.GroupMax > max {
			max = t.GroupMax
		}
	}
	return max
}

// =============================================================================
// SESSION & MEMBERSHIP - Owned by the check-in API, read by the engine
// =============================================================================

// Session is a timed group booking at a location. EndTime is nil while the
// session is active and immutable once set.
type Session struct {
	ID         SessionID
	LocationID LocationID
	StartTime  time.Time
	EndTime    *time.Time

	// CutoffOverride replaces the location's day/night cutoff hour for
	// this session only. Nil means inherit.
	CutoffOverride *int
}

// Ended reports whether the session has been finalized.
func (s Session) Ended() bool { return s.EndTime != nil }

// CutoffHour returns the session's effective day/night cutoff hour.
func (s Session) CutoffHour(loc Location) int {
	if s.CutoffOverride != nil {
		return *s.CutoffOverride
	}
	return loc.NightCutoffHour
}

// Membership is one continuous presence of a participant in a session.
// A participant may have several memberships per session (rejoin), but at
// most one with a nil LeaveTime at any instant.
type Membership struct {
	ID            MembershipID
	SessionID     SessionID
	ParticipantID ParticipantID
	JoinTime      time.Time
	LeaveTime     *time.Time
}

// effectiveLeave clips an open membership to the given horizon (session end
// for finalization, "now" for preview).
func (m Membership) effectiveLeave(horizon time.Time) time.Time {
	if m.LeaveTime != nil {
		return *m.LeaveTime
	}
	return horizon
}

// =============================================================================
// ELEMENTARY INTERVAL - Constant occupancy, constant day/night side
// =============================================================================

// Interval is a maximal sub-span of the session during which the set of
// present memberships is constant. After day/night splitting, the IsDay
// flag is also constant and Split is true.
type Interval struct {
	Start     time.Time
	End       time.Time
	Occupancy int
	Members   []MembershipID // sorted ascending for determinism
	IsDay     bool
	Split     bool // set once the interval has passed the day/night splitter
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Hours returns the interval length in hours as an exact decimal
// (nanoseconds / 3.6e12).
func (iv Interval) Hours() decimal.Decimal {
	return decimal.NewFromInt(iv.Duration().Nanoseconds()).
		Div(decimal.NewFromInt(int64(time.Hour)))
}

// =============================================================================
// COST RESULTS - The engine's output
// =============================================================================

// CostResult maps each membership to its rounded computed cost. The sum of
// Costs always equals GrandTotal exactly (largest-remainder reconciliation).
type CostResult struct {
	Costs      map[MembershipID]decimal.Decimal
	GrandTotal decimal.Decimal
}

// SettlementRecord is the session-level amount actually collected, recorded
// by administrative action independently of per-membership costs.
type SettlementRecord struct {
	SessionID SessionID
	Collected decimal.Decimal
	Final     bool
}

// ReconciliationReport compares billed costs against the collected amount.
// Purely advisory; nothing is mutated.
type ReconciliationReport struct {
	SessionID   SessionID
	BilledTotal decimal.Decimal
	Collected   decimal.Decimal
	// Difference = Collected - BilledTotal. Negative means under-collected.
	Difference decimal.Decimal
}
