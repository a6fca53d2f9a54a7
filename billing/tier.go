/*
tier.go - Rate tier resolution and rate table validation

PURPOSE:
  Maps an occupancy count to the tier whose [GroupMin, GroupMax] contains
  it, and validates that a location's tiers partition the covered range.

NO CLAMPING:
  An occupancy above the highest tier is a configuration gap and is
  surfaced as ConfigurationError, never absorbed by the last tier.
  Silently mispricing a large group is worse than failing the session's
  finalization until the rate table is corrected.

SEE ALSO:
  - allocate.go: Consults the resolver per interval
  - errors.go: ConfigurationError
*/
package billing

import "fmt"

// =============================================================================
// TIER RESOLVER
// =============================================================================

// ResolveTier returns the tier covering the occupancy count.
//
// Occupancy 0 is a caller error: zero-occupancy intervals must be skipped,
// not priced. Occupancy above the highest tier is a rate table gap. Both
// return ConfigurationError.
func ResolveTier(loc Location, occupancy int) (RateTier, error) {
	if occupancy <= 0 {
		return RateTier{}, &ConfigurationError{
			LocationID: loc.ID,
			Occupancy:  occupancy,
			MaxCovered: loc.MaxGroupSize(),
		}
	}
	for _, t := range loc.Tiers {
		if t.Contains(occupancy) {
			return t, nil
		}
	}
	return RateTier{}, &ConfigurationError{
		LocationID: loc.ID,
		Occupancy:  occupancy,
		MaxCovered: loc.MaxGroupSize(),
	}
}

// =============================================================================
// RATE TABLE VALIDATION
// =============================================================================

// ValidateTiers checks that tiers are ordered and partition
// [1, MaxGroupSize] with no gaps, no overlaps, and non-negative rates.
// Used by the administration surface before persisting a rate table.
func ValidateTiers(tiers []RateTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("rate table is empty")
	}
	expectedMin := 1
	for i, t := range tiers {
		if t.GroupMin != expectedMin {
			return fmt.Errorf("tier %d: group_min %d, expected %d (gap or overlap)", i, t.GroupMin, expectedMin)
		}
		if t.GroupMax < t.GroupMin {
			return fmt.Errorf("tier %d: group_max %d below group_min %d", i, t.GroupMax, t.GroupMin)
		}
		if t.DayRate.IsNegative() || t.NightRate.IsNegative() {
			return fmt.Errorf("tier %d: negative rate", i)
		}
		expectedMin = t.GroupMax + 1
	}
	return nil
}
