/*
timeline.go - Occupancy timeline construction

PURPOSE:
  Turns a session's membership intervals into a gap-free, non-overlapping
  sequence of elementary intervals covering [start, end], each tagged with
  a constant occupancy count and the set of memberships present.

ALGORITHM:
  1. Validate every membership (leave >= join, open joins inside bounds)
  2. Collect session start/end plus every join and effective leave time
     as breakpoints; sort and de-duplicate
  3. Form consecutive breakpoint pairs as elementary intervals
  4. For each interval, occupancy = memberships whose [join, leave)
     contains it; zero-duration intervals are dropped by de-duplication

OPEN MEMBERSHIPS:
  A membership with no leave time is clipped to the horizon: the session
  end for finalization, or "now" for a live preview of an open session.

SEE ALSO:
  - daynight.go: Splits these intervals at day/night boundaries
  - engine.go: Orchestrates the full pipeline
*/
package billing

import (
	"sort"
	"time"
)

// =============================================================================
// TIMELINE BUILDER
// =============================================================================

// BuildTimeline converts memberships into elementary intervals covering
// [session.StartTime, horizon]. The horizon is the session end time at
// finalization, or the preview instant for an open session.
//
// The result is ordered, gap-free, and non-overlapping. Member sets are
// sorted ascending so identical inputs yield identical output.
func BuildTimeline(session Session, memberships []Membership, horizon time.Time) ([]Interval, error) {
	start := session.StartTime
	end := horizon

	if err := validateMemberships(session, memberships, start, end); err != nil {
		return nil, err
	}

	// Collect breakpoints. Session bounds are always included so the
	// timeline covers the whole span even with no memberships.
	points := []time.Time{start, end}
	for _, m := range memberships {
		points = append(points, clamp(m.JoinTime, start, end))
		points = append(points, clamp(m.effectiveLeave(end), start, end))
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })
	points = dedupeTimes(points)

	var intervals []Interval
	for i := 0; i+1 < len(points); i++ {
		iv := Interval{Start: points[i], End: points[i+1]}
		for _, m := range memberships {
			if covers(m, end, iv) {
				iv.Members = append(iv.Members, m.ID)
			}
		}
		sort.Slice(iv.Members, func(a, b int) bool { return iv.Members[a] < iv.Members[b] })
		iv.Occupancy = len(iv.Members)
		intervals = append(intervals, iv)
	}

	return intervals, nil
}

// covers reports whether membership m is present for the whole of iv,
// treating the membership as the half-open span [join, effectiveLeave).
func covers(m Membership, horizon time.Time, iv Interval) bool {
	leave := m.effectiveLeave(horizon)
	return !m.JoinTime.After(iv.Start) && !leave.Before(iv.End)
}

func validateMemberships(session Session, memberships []Membership, start, end time.Time) error {
	for _, m := range memberships {
		if m.LeaveTime != nil && m.LeaveTime.Before(m.JoinTime) {
			return &InvalidIntervalError{
				SessionID:    session.ID,
				MembershipID: m.ID,
				Join:         m.JoinTime,
				Leave:        *m.LeaveTime,
				Reason:       "leave before join",
			}
		}
		if m.LeaveTime == nil && (m.JoinTime.Before(start) || m.JoinTime.After(end)) {
			return &InvalidIntervalError{
				SessionID:    session.ID,
				MembershipID: m.ID,
				Join:         m.JoinTime,
				Leave:        end,
				Reason:       "open membership joined outside session bounds",
			}
		}
	}
	return nil
}

// clamp restricts t to [lo, hi]. Closed memberships recorded slightly
// outside the session bounds still contribute only their in-bounds span.
func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

// dedupeTimes removes equal consecutive instants from a sorted slice.
// This is what drops zero-duration intervals.
func dedupeTimes(points []time.Time) []time.Time {
	out := points[:0]
	for _, p := range points {
		if len(out) == 0 || !out[len(out)-1].Equal(p) {
			out = append(out, p)
		}
	}
	return out
}
