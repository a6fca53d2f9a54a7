package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
)

// =============================================================================
// TEST HELPERS (shared across the package's test files)
// =============================================================================

// at builds a timestamp on a fixed reference day, hour:minute, UTC.
func at(hour, min int) time.Time {
	return time.Date(2025, time.March, 10, hour, min, 0, 0, time.UTC)
}

func atDay(day, hour, min int) time.Time {
	return time.Date(2025, time.March, day, hour, min, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// standardLocation mirrors the spec examples: tier 1-3 at 30/hr day,
// 45/hr night, cutoff 18:00, plus a 4-6 tier for larger groups.
func standardLocation() billing.Location {
	return billing.Location{
		ID:   "loc-1",
		Name: "Room A",
		Tiers: []billing.RateTier{
			{GroupMin: 1, GroupMax: 3, DayRate: money("30"), NightRate: money("45")},
			{GroupMin: 4, GroupMax: 6, DayRate: money("40"), NightRate: money("60")},
		},
		NightCutoffHour: 18,
	}
}

func closedMembership(id, participant string, join, leave time.Time) billing.Membership {
	return billing.Membership{
		ID:            billing.MembershipID(id),
		SessionID:     "sess-1",
		ParticipantID: billing.ParticipantID(participant),
		JoinTime:      join,
		LeaveTime:     ptr(leave),
	}
}

func openMembership(id, participant string, join time.Time) billing.Membership {
	return billing.Membership{
		ID:            billing.MembershipID(id),
		SessionID:     "sess-1",
		ParticipantID: billing.ParticipantID(participant),
		JoinTime:      join,
	}
}

func endedSession(start, end time.Time) billing.Session {
	return billing.Session{ID: "sess-1", LocationID: "loc-1", StartTime: start, EndTime: ptr(end)}
}

// =============================================================================
// TIMELINE BUILDER TESTS
// =============================================================================

func TestBuildTimeline_GapFreeCoverage(t *testing.T) {
	// GIVEN: A 10:00-12:00 session with A 10:00-12:00 and B 11:00-12:00
	// WHEN: Building the timeline
	// THEN: Two intervals, occupancy 1 then 2, covering the session exactly

	session := endedSession(at(10, 0), at(12, 0))
	memberships := []billing.Membership{
		closedMembership("m-a", "p-a", at(10, 0), at(12, 0)),
		closedMembership("m-b", "p-b", at(11, 0), at(12, 0)),
	}

	intervals, err := billing.BuildTimeline(session, memberships, *session.EndTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if intervals[0].Occupancy != 1 || intervals[1].Occupancy != 2 {
		t.Errorf("expected occupancy [1, 2], got [%d, %d]", intervals[0].Occupancy, intervals[1].Occupancy)
	}
	if !intervals[0].Start.Equal(at(10, 0)) || !intervals[1].End.Equal(at(12, 0)) {
		t.Errorf("timeline does not cover session bounds: [%v, %v]", intervals[0].Start, intervals[1].End)
	}
	if !intervals[0].End.Equal(intervals[1].Start) {
		t.Errorf("timeline has a gap at %v / %v", intervals[0].End, intervals[1].Start)
	}
}

func TestBuildTimeline_EmptySession_SingleZeroOccupancyInterval(t *testing.T) {
	// GIVEN: A session with no memberships
	// WHEN: Building the timeline
	// THEN: One interval spanning the session with occupancy 0

	session := endedSession(at(10, 0), at(12, 0))

	intervals, err := billing.BuildTimeline(session, nil, *session.EndTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	if intervals[0].Occupancy != 0 {
		t.Errorf("expected occupancy 0, got %d", intervals[0].Occupancy)
	}
}

func TestBuildTimeline_ZeroDurationIntervalsDropped(t *testing.T) {
	// GIVEN: B leaves at the exact instant C joins
	// WHEN: Building the timeline
	// THEN: No zero-duration interval appears between them

	session := endedSession(at(10, 0), at(12, 0))
	memberships := []billing.Membership{
		closedMembership("m-b", "p-b", at(10, 0), at(11, 0)),
		closedMembership("m-c", "p-c", at(11, 0), at(12, 0)),
	}

	intervals, err := billing.BuildTimeline(session, memberships, *session.EndTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, iv := range intervals {
		if !iv.Start.Before(iv.End) {
			t.Errorf("zero-duration interval survived: [%v, %v]", iv.Start, iv.End)
		}
	}
	if len(intervals) != 2 {
		t.Errorf("expected 2 intervals, got %d", len(intervals))
	}
}

func TestBuildTimeline_OpenMembershipClippedToHorizon(t *testing.T) {
	// GIVEN: An open membership in an active session
	// WHEN: Building with a preview horizon of 11:30
	// THEN: The membership is present up to 11:30

	session := billing.Session{ID: "sess-1", LocationID: "loc-1", StartTime: at(10, 0)}
	memberships := []billing.Membership{openMembership("m-a", "p-a", at(10, 0))}

	intervals, err := billing.BuildTimeline(session, memberships, at(11, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := intervals[len(intervals)-1]
	if !last.End.Equal(at(11, 30)) {
		t.Errorf("expected horizon end 11:30, got %v", last.End)
	}
	if last.Occupancy != 1 {
		t.Errorf("expected open membership counted, occupancy %d", last.Occupancy)
	}
}

func TestBuildTimeline_LeaveBeforeJoin_Fails(t *testing.T) {
	// GIVEN: A membership whose leave precedes its join
	// WHEN: Building the timeline
	// THEN: InvalidIntervalError identifying the membership

	session := endedSession(at(10, 0), at(12, 0))
	memberships := []billing.Membership{
		closedMembership("m-bad", "p-a", at(11, 0), at(10, 30)),
	}

	_, err := billing.BuildTimeline(session, memberships, *session.EndTime)
	if !errors.Is(err, billing.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	var detail *billing.InvalidIntervalError
	if !errors.As(err, &detail) {
		t.Fatalf("expected InvalidIntervalError detail, got %T", err)
	}
	if detail.MembershipID != "m-bad" {
		t.Errorf("error should name the offending membership, got %q", detail.MembershipID)
	}
}

func TestBuildTimeline_OpenJoinOutsideBounds_Fails(t *testing.T) {
	// GIVEN: An open membership that joined before the session started
	// WHEN: Building the timeline
	// THEN: InvalidIntervalError

	session := endedSession(at(10, 0), at(12, 0))
	memberships := []billing.Membership{
		openMembership("m-early", "p-a", at(9, 0)),
	}

	_, err := billing.BuildTimeline(session, memberships, *session.EndTime)
	if !errors.Is(err, billing.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestBuildTimeline_MembersSortedForDeterminism(t *testing.T) {
	// GIVEN: Memberships supplied in reverse id order
	// WHEN: Building the timeline
	// THEN: Interval member sets come back sorted ascending

	session := endedSession(at(10, 0), at(11, 0))
	memberships := []billing.Membership{
		closedMembership("m-z", "p-z", at(10, 0), at(11, 0)),
		closedMembership("m-a", "p-a", at(10, 0), at(11, 0)),
	}

	intervals, err := billing.BuildTimeline(session, memberships, *session.EndTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	members := intervals[0].Members
	if len(members) != 2 || members[0] != "m-a" || members[1] != "m-z" {
		t.Errorf("expected sorted members [m-a m-z], got %v", members)
	}
}
