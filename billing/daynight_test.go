package billing_test

import (
	"testing"
	"time"

	"github.com/venueworks/roomledger/billing"
)

func interval(start, end time.Time, occupancy int, members ...billing.MembershipID) billing.Interval {
	return billing.Interval{Start: start, End: end, Occupancy: occupancy, Members: members}
}

// =============================================================================
// DAY/NIGHT SPLITTER TESTS
// =============================================================================

func TestSplitDayNight_StraddlingCutoff(t *testing.T) {
	// GIVEN: An interval 17:00-19:00 with cutoff 18:00
	// WHEN: Splitting
	// THEN: 17-18 day and 18-19 night, total duration preserved

	in := []billing.Interval{interval(at(17, 0), at(19, 0), 2, "m-a", "m-b")}

	out := billing.SplitDayNight(in, 18)

	if len(out) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(out))
	}
	if !out[0].IsDay || out[1].IsDay {
		t.Errorf("expected [day, night], got [%v, %v]", out[0].IsDay, out[1].IsDay)
	}
	if !out[0].End.Equal(at(18, 0)) || !out[1].Start.Equal(at(18, 0)) {
		t.Errorf("expected cut at 18:00, got %v / %v", out[0].End, out[1].Start)
	}
	total := out[0].Duration() + out[1].Duration()
	if total != 2*time.Hour {
		t.Errorf("duration not preserved: %v", total)
	}
	// Occupancy and members carry over to both sides
	for _, iv := range out {
		if iv.Occupancy != 2 || len(iv.Members) != 2 {
			t.Errorf("interval tags lost in split: %+v", iv)
		}
	}
}

func TestSplitDayNight_EntirelyOnOneSide_NoOp(t *testing.T) {
	// GIVEN: An interval 14:00-16:00, fully on the day side
	// WHEN: Splitting at cutoff 18
	// THEN: One interval, tagged day

	out := billing.SplitDayNight([]billing.Interval{interval(at(14, 0), at(16, 0), 1, "m-a")}, 18)

	if len(out) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(out))
	}
	if !out[0].IsDay {
		t.Errorf("14:00-16:00 should be day side")
	}
	if !out[0].Start.Equal(at(14, 0)) || !out[0].End.Equal(at(16, 0)) {
		t.Errorf("bounds changed: [%v, %v]", out[0].Start, out[0].End)
	}
}

func TestSplitDayNight_MultiDayInterval_SplitPerCalendarDay(t *testing.T) {
	// GIVEN: An interval from Mar 10 17:00 to Mar 11 09:00, cutoff 18
	// WHEN: Splitting
	// THEN: Cuts at 18:00 (day->night) and midnight (night->day):
	//       [17-18 day] [18-24 night] [00-09 day]

	in := []billing.Interval{interval(atDay(10, 17, 0), atDay(11, 9, 0), 1, "m-a")}

	out := billing.SplitDayNight(in, 18)

	if len(out) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(out))
	}
	wantDay := []bool{true, false, true}
	for i, iv := range out {
		if iv.IsDay != wantDay[i] {
			t.Errorf("interval %d: IsDay = %v, want %v", i, iv.IsDay, wantDay[i])
		}
	}

	var total time.Duration
	for _, iv := range out {
		total += iv.Duration()
	}
	if total != 16*time.Hour {
		t.Errorf("duration not preserved: %v", total)
	}
}

func TestSplitDayNight_Idempotent(t *testing.T) {
	// GIVEN: Intervals already split at the cutoff
	// WHEN: Splitting again
	// THEN: No further cuts; re-splitting is a no-op

	once := billing.SplitDayNight([]billing.Interval{interval(at(17, 0), at(19, 0), 1, "m-a")}, 18)
	twice := billing.SplitDayNight(once, 18)

	if len(twice) != len(once) {
		t.Fatalf("re-splitting changed interval count: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Start.Equal(twice[i].Start) || !once[i].End.Equal(twice[i].End) || once[i].IsDay != twice[i].IsDay {
			t.Errorf("interval %d changed on re-split: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestSplitDayNight_CutoffMidnight_AllNight(t *testing.T) {
	// GIVEN: Cutoff hour 0 (day side is empty)
	// WHEN: Splitting a daytime interval
	// THEN: The interval is tagged night

	out := billing.SplitDayNight([]billing.Interval{interval(at(10, 0), at(12, 0), 1, "m-a")}, 0)

	if len(out) != 1 || out[0].IsDay {
		t.Errorf("with cutoff 0 everything is night, got %+v", out)
	}
}
