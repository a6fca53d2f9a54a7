package billing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/venueworks/roomledger/billing"
)

// =============================================================================
// TIER RESOLVER TESTS
// =============================================================================

func TestResolveTier_CoveredOccupancy(t *testing.T) {
	loc := standardLocation()

	tier, err := billing.ResolveTier(loc, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier.GroupMin != 1 || tier.GroupMax != 3 {
		t.Errorf("occupancy 2 resolved to tier [%d, %d]", tier.GroupMin, tier.GroupMax)
	}
	if !tier.Rate(true).Equal(money("30")) || !tier.Rate(false).Equal(money("45")) {
		t.Errorf("unexpected rates: day %v, night %v", tier.Rate(true), tier.Rate(false))
	}
}

func TestResolveTier_ZeroOccupancy_Fails(t *testing.T) {
	// Zero-occupancy intervals must be skipped by the caller, not priced.
	_, err := billing.ResolveTier(standardLocation(), 0)
	if !errors.Is(err, billing.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestResolveTier_AboveMaxTier_FailsWithoutClamping(t *testing.T) {
	// GIVEN: A rate table covering 1-6
	// WHEN: Resolving occupancy 7
	// THEN: ConfigurationError carrying the gap details; no clamping

	_, err := billing.ResolveTier(standardLocation(), 7)
	if !errors.Is(err, billing.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	var detail *billing.ConfigurationError
	if !errors.As(err, &detail) {
		t.Fatalf("expected ConfigurationError detail, got %T", err)
	}
	if detail.Occupancy != 7 || detail.MaxCovered != 6 {
		t.Errorf("error context wrong: %+v", detail)
	}
}

func TestValidateTiers(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []billing.RateTier
		wantErr bool
	}{
		{
			name:  "contiguous partition",
			tiers: standardLocation().Tiers,
		},
		{
			name: "gap between tiers",
			tiers: []billing.RateTier{
				{GroupMin: 1, GroupMax: 3, DayRate: money("30"), NightRate: money("45")},
				{GroupMin: 5, GroupMax: 8, DayRate: money("40"), NightRate: money("60")},
			},
			wantErr: true,
		},
		{
			name: "overlapping tiers",
			tiers: []billing.RateTier{
				{GroupMin: 1, GroupMax: 3, DayRate: money("30"), NightRate: money("45")},
				{GroupMin: 3, GroupMax: 8, DayRate: money("40"), NightRate: money("60")},
			},
			wantErr: true,
		},
		{
			name: "first tier does not start at 1",
			tiers: []billing.RateTier{
				{GroupMin: 2, GroupMax: 5, DayRate: money("30"), NightRate: money("45")},
			},
			wantErr: true,
		},
		{
			name: "negative rate",
			tiers: []billing.RateTier{
				{GroupMin: 1, GroupMax: 3, DayRate: money("-1"), NightRate: money("45")},
			},
			wantErr: true,
		},
		{
			name:    "empty table",
			tiers:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := billing.ValidateTiers(tt.tiers)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTiers() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocateCosts_ZeroOccupancyIntervalsSkipped(t *testing.T) {
	// GIVEN: A timeline with an empty hour between two occupied hours
	// WHEN: Allocating
	// THEN: The empty hour contributes no cost and no allocation

	loc := standardLocation()
	intervals := billing.SplitDayNight([]billing.Interval{
		interval(at(10, 0), at(11, 0), 1, "m-a"),
		interval(at(11, 0), at(12, 0), 0),
		interval(at(12, 0), at(13, 0), 1, "m-a"),
	}, loc.NightCutoffHour)

	result, err := billing.AllocateCosts(loc, intervals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.GrandTotal.Equal(money("60.00")) {
		t.Errorf("grand total = %v, want 60.00", result.GrandTotal)
	}
	if !result.Costs["m-a"].Equal(money("60.00")) {
		t.Errorf("m-a = %v, want 60.00", result.Costs["m-a"])
	}
}

func TestAllocateCosts_LargestRemainder_ThreeWaySplit(t *testing.T) {
	// GIVEN: One hour at 10/hr shared by three memberships (3.333... each)
	// WHEN: Allocating
	// THEN: Shares are 3.34/3.33/3.33 and sum exactly to 10.00,
	//       with the extra cent going to the lowest membership id on a tie

	loc := billing.Location{
		ID: "loc-1",
		Tiers: []billing.RateTier{
			{GroupMin: 1, GroupMax: 3, DayRate: money("10"), NightRate: money("10")},
		},
		NightCutoffHour: 18,
	}
	intervals := billing.SplitDayNight([]billing.Interval{
		interval(at(10, 0), at(11, 0), 3, "m-a", "m-b", "m-c"),
	}, loc.NightCutoffHour)

	result, err := billing.AllocateCosts(loc, intervals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.GrandTotal.Equal(money("10.00")) {
		t.Errorf("grand total = %v, want 10.00", result.GrandTotal)
	}
	sum := decimal.Zero
	for _, c := range result.Costs {
		sum = sum.Add(c)
	}
	if !sum.Equal(result.GrandTotal) {
		t.Errorf("rounded shares sum to %v, want %v", sum, result.GrandTotal)
	}
	if !result.Costs["m-a"].Equal(money("3.34")) {
		t.Errorf("m-a = %v, want 3.34 (tie broken by id)", result.Costs["m-a"])
	}
	if !result.Costs["m-b"].Equal(money("3.33")) || !result.Costs["m-c"].Equal(money("3.33")) {
		t.Errorf("m-b/m-c = %v/%v, want 3.33 each", result.Costs["m-b"], result.Costs["m-c"])
	}
}

func TestAllocateCosts_ConservationAcrossOccupancyChanges(t *testing.T) {
	// GIVEN: A timeline whose occupancy varies across intervals
	// WHEN: Allocating
	// THEN: The sum of rounded shares equals the rounded grand total

	loc := standardLocation()
	intervals := billing.SplitDayNight([]billing.Interval{
		interval(at(10, 0), at(10, 40), 1, "m-a"),
		interval(at(10, 40), at(11, 25), 3, "m-a", "m-b", "m-c"),
		interval(at(11, 25), at(12, 0), 2, "m-b", "m-c"),
	}, loc.NightCutoffHour)

	result, err := billing.AllocateCosts(loc, intervals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := decimal.Zero
	for _, c := range result.Costs {
		sum = sum.Add(c)
	}
	if !sum.Equal(result.GrandTotal) {
		t.Errorf("conservation violated: shares sum %v, grand total %v", sum, result.GrandTotal)
	}
	// Room total is rate * 2h regardless of who was present: 30 * 2 = 60
	if !result.GrandTotal.Equal(money("60.00")) {
		t.Errorf("grand total = %v, want 60.00", result.GrandTotal)
	}
}

func TestAllocateCosts_UncoveredOccupancy_SurfacesConfigurationError(t *testing.T) {
	// GIVEN: An interval whose occupancy exceeds every tier
	// WHEN: Allocating
	// THEN: ConfigurationError; the session cannot be priced

	loc := standardLocation()
	intervals := billing.SplitDayNight([]billing.Interval{
		interval(at(10, 0), at(11, 0), 9, "m-1", "m-2", "m-3", "m-4", "m-5", "m-6", "m-7", "m-8", "m-9"),
	}, loc.NightCutoffHour)

	_, err := billing.AllocateCosts(loc, intervals)
	if !errors.Is(err, billing.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
