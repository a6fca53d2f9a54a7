/*
engine.go - Cost computation pipeline

PURPOSE:
  Orchestrates the full pipeline:

    Timeline Builder -> Day/Night Splitter -> Tier Resolver (per interval)
      -> Cost Allocation -> rounded CostResult

  The engine is a pure function of (rate table, membership intervals,
  session bounds, day/night cutoff). It owns no persistent state, has no
  suspension points, and is safe to call from any goroutine given an
  immutable snapshot of its inputs. Serializing membership mutations
  against finalization is the caller's job (see package checkin).

SEE ALSO:
  - timeline.go, daynight.go, allocate.go: Pipeline stages
  - settle.go: Post-finalization reconciliation
*/
package billing

import "time"

// =============================================================================
// ENGINE ENTRY POINTS
// =============================================================================

// ComputeCosts computes the deterministic per-membership cost for a
// finalized session. Open memberships are treated as ending at the
// session's end time. Returns NotEndedError for a session without one.
//
// Recomputing on an unchanged membership set yields bit-identical results.
func ComputeCosts(loc Location, session Session, memberships []Membership) (CostResult, error) {
	if session.EndTime == nil {
		return CostResult{}, &NotEndedError{SessionID: session.ID}
	}
	return computeAt(loc, session, memberships, *session.EndTime)
}

// PreviewCosts computes a read-only cost preview for an open session,
// treating open memberships as ending at now. The result is advisory and
// never persisted.
func PreviewCosts(loc Location, session Session, memberships []Membership, now time.Time) (CostResult, error) {
	horizon := now
	if session.EndTime != nil {
		horizon = *session.EndTime
	}
	return computeAt(loc, session, memberships, horizon)
}

func computeAt(loc Location, session Session, memberships []Membership, horizon time.Time) (CostResult, error) {
	intervals, err := BuildTimeline(session, memberships, horizon)
	if err != nil {
		return CostResult{}, err
	}
	intervals = SplitDayNight(intervals, session.CutoffHour(loc))
	return AllocateCosts(loc, intervals)
}
