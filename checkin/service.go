/*
service.go - Session lifecycle operations

PURPOSE:
  Implements the check-in lifecycle over a Store: start, join, leave,
  end (finalize), preview, adjust, settle, reconcile. This is where the
  pure billing engine meets persistence and concurrency.

SERIALIZATION:
  Join, Leave, EndSession, and RecomputeCosts for a given session run
  under that session's exclusive lock (see locks.go). EndSession therefore
  always computes from a stable membership snapshot. Sessions don't
  contend with each other.

FINALIZATION:
  1. Set end_time (immutable once set; second attempt fails)
  2. Force-close every open membership at end_time
  3. Load the membership snapshot and the location's rate table
  4. Run the engine; persist ComputedCost per membership atomically

  The computation is idempotent, so a failure after step 2 is retried
  safely via RecomputeCosts.

SEE ALSO:
  - billing/engine.go: The pure computation
  - locks.go: Per-session lock table
*/
package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service implements the check-in lifecycle.
type Service struct {
	store Store
	locks *sessionLocks

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a lifecycle service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: newSessionLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// StartSession opens a new session at the location. A non-nil
// cutoffOverride replaces the location's day/night cutoff hour for this
// session only.
func (s *Service) StartSession(ctx context.Context, locationID billing.LocationID, cutoffOverride *int) (billing.Session, error) {
	loc, err := s.store.GetLocation(ctx, locationID)
	if err != nil {
		return billing.Session{}, err
	}
	if loc == nil {
		return billing.Session{}, ErrLocationNotFound
	}

	session := billing.Session{
		ID:             billing.SessionID(uuid.NewString()),
		LocationID:     locationID,
		StartTime:      s.now(),
		CutoffOverride: cutoffOverride,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return billing.Session{}, err
	}

	slog.Info("session started", "session_id", session.ID, "location_id", locationID)
	return session, nil
}

// Join opens a membership for the participant. A participant can hold at
// most one open membership per session; rejoining after a leave creates a
// new membership row so costs accumulate per presence.
func (s *Service) Join(ctx context.Context, sessionID billing.SessionID, participantID billing.ParticipantID) (billing.Membership, error) {
	defer s.locks.lock(sessionID)()

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return billing.Membership{}, err
	}

	existing, err := s.store.FindOpenMembership(ctx, sessionID, participantID)
	if err != nil {
		return billing.Membership{}, err
	}
	if existing != nil {
		return billing.Membership{}, fmt.Errorf("%w: participant %s in session %s", ErrAlreadyPresent, participantID, sessionID)
	}

	m := billing.Membership{
		ID:            billing.MembershipID(uuid.NewString()),
		SessionID:     session.ID,
		ParticipantID: participantID,
		JoinTime:      s.now(),
	}
	if err := s.store.OpenMembership(ctx, m); err != nil {
		return billing.Membership{}, err
	}

	slog.Info("participant joined", "session_id", sessionID, "participant_id", participantID, "membership_id", m.ID)
	return m, nil
}

// Leave closes the participant's open membership at the current time.
func (s *Service) Leave(ctx context.Context, sessionID billing.SessionID, participantID billing.ParticipantID) error {
	defer s.locks.lock(sessionID)()

	if _, err := s.openSession(ctx, sessionID); err != nil {
		return err
	}

	open, err := s.store.FindOpenMembership(ctx, sessionID, participantID)
	if err != nil {
		return err
	}
	if open == nil {
		return fmt.Errorf("%w: participant %s in session %s", ErrNotPresent, participantID, sessionID)
	}

	if err := s.store.CloseMembership(ctx, open.ID, s.now()); err != nil {
		return err
	}

	slog.Info("participant left", "session_id", sessionID, "participant_id", participantID, "membership_id", open.ID)
	return nil
}

// EndSession finalizes the session: sets the end time, force-closes open
// memberships, and computes and persists per-membership costs. The end
// time is immutable; calling EndSession on an ended session fails with
// ErrSessionEnded.
func (s *Service) EndSession(ctx context.Context, sessionID billing.SessionID) (billing.CostResult, error) {
	defer s.locks.lock(sessionID)()

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return billing.CostResult{}, err
	}

	end := s.now()
	if err := s.store.SetSessionEnd(ctx, sessionID, end); err != nil {
		return billing.CostResult{}, err
	}
	if err := s.store.CloseOpenMemberships(ctx, sessionID, end); err != nil {
		return billing.CostResult{}, err
	}
	session.EndTime = &end

	result, err := s.computeAndPersist(ctx, *session)
	if err != nil {
		return billing.CostResult{}, err
	}

	slog.Info("session finalized",
		"session_id", sessionID,
		"grand_total", result.GrandTotal.String(),
		"memberships", len(result.Costs))
	return result, nil
}

// RecomputeCosts recomputes ComputedCost for an ended session after its
// memberships were corrected post-hoc. Costs are recomputed from scratch,
// never blended with the previous run. A final settlement blocks
// recomputation unless override is set.
func (s *Service) RecomputeCosts(ctx context.Context, sessionID billing.SessionID, override bool) (billing.CostResult, error) {
	defer s.locks.lock(sessionID)()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return billing.CostResult{}, err
	}
	if session.EndTime == nil {
		return billing.CostResult{}, &billing.NotEndedError{SessionID: sessionID}
	}

	settlement, err := s.store.GetSettlement(ctx, sessionID)
	if err != nil {
		return billing.CostResult{}, err
	}
	if err := billing.GuardRecompute(*session, settlement, override); err != nil {
		return billing.CostResult{}, err
	}

	result, err := s.computeAndPersist(ctx, *session)
	if err != nil {
		return billing.CostResult{}, err
	}

	slog.Info("costs recomputed", "session_id", sessionID, "grand_total", result.GrandTotal.String(), "override", override)
	return result, nil
}

// PreviewCosts returns a read-only cost preview as of now. Works for open
// sessions (open memberships clipped to now) and ended ones.
func (s *Service) PreviewCosts(ctx context.Context, sessionID billing.SessionID) (billing.CostResult, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return billing.CostResult{}, err
	}
	loc, records, err := s.snapshot(ctx, *session)
	if err != nil {
		return billing.CostResult{}, err
	}
	return billing.PreviewCosts(*loc, *session, memberships(records), s.now())
}

// =============================================================================
// ADJUSTMENTS, SETTLEMENT, RECONCILIATION
// =============================================================================

// SetAdjustedCost records an administrative override for one membership.
// The computed cost is kept untouched for audit.
func (s *Service) SetAdjustedCost(ctx context.Context, id billing.MembershipID, amount decimal.Decimal) error {
	return s.store.SetAdjustedCost(ctx, id, amount.Round(billing.CurrencyPlaces))
}

// RecordSettlement stores the amount actually collected for a session.
// Draft settlements can be re-recorded; a final one is immutable.
func (s *Service) RecordSettlement(ctx context.Context, sessionID billing.SessionID, collected decimal.Decimal, final bool) error {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.EndTime == nil {
		return &billing.NotEndedError{SessionID: sessionID}
	}
	existing, err := s.store.GetSettlement(ctx, sessionID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Final {
		return &billing.AlreadySettledError{SessionID: sessionID}
	}
	return s.store.SaveSettlement(ctx, billing.SettlementRecord{
		SessionID: sessionID,
		Collected: collected.Round(billing.CurrencyPlaces),
		Final:     final,
	})
}

// Reconcile produces the billed-versus-collected report for the session.
func (s *Service) Reconcile(ctx context.Context, sessionID billing.SessionID) (billing.ReconciliationReport, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return billing.ReconciliationReport{}, err
	}

	settlement, err := s.store.GetSettlement(ctx, sessionID)
	if err != nil {
		return billing.ReconciliationReport{}, err
	}
	if settlement == nil {
		return billing.ReconciliationReport{}, fmt.Errorf("%w: session %s", ErrNoSettlement, sessionID)
	}

	records, err := s.store.ListMemberships(ctx, sessionID)
	if err != nil {
		return billing.ReconciliationReport{}, err
	}

	costs := make(map[billing.MembershipID]decimal.Decimal)
	adjustments := make(map[billing.MembershipID]decimal.Decimal)
	for _, r := range records {
		if r.ComputedCost != nil {
			costs[r.ID] = *r.ComputedCost
		}
		if r.AdjustedCost != nil {
			adjustments[r.ID] = *r.AdjustedCost
		}
	}

	return billing.Reconcile(*session, costs, adjustments, *settlement)
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Service) getSession(ctx context.Context, id billing.SessionID) (*billing.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

func (s *Service) openSession(ctx context.Context, id billing.SessionID) (*billing.Session, error) {
	session, err := s.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, id)
	}
	return session, nil
}

func (s *Service) snapshot(ctx context.Context, session billing.Session) (*billing.Location, []MembershipRecord, error) {
	loc, err := s.store.GetLocation(ctx, session.LocationID)
	if err != nil {
		return nil, nil, err
	}
	if loc == nil {
		return nil, nil, ErrLocationNotFound
	}
	records, err := s.store.ListMemberships(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return loc, records, nil
}

func (s *Service) computeAndPersist(ctx context.Context, session billing.Session) (billing.CostResult, error) {
	loc, records, err := s.snapshot(ctx, session)
	if err != nil {
		return billing.CostResult{}, err
	}

	result, err := billing.ComputeCosts(*loc, session, memberships(records))
	if err != nil {
		return billing.CostResult{}, err
	}

	if err := s.store.SaveComputedCosts(ctx, session.ID, result.Costs); err != nil {
		return billing.CostResult{}, err
	}
	return result, nil
}
