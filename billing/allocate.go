/*
allocate.go - Cost integration, allocation, and rounding reconciliation

PURPOSE:
  Integrates rate x duration over the split interval sequence and divides
  each interval's cost equally among the memberships present, accumulating
  per-membership totals. A final largest-remainder rounding pass makes the
  rounded per-membership costs sum exactly to the rounded grand total.

CONSERVATION GUARANTEE:
  The sum of interval costs before allocation equals the rate-integrated
  total cost of the room for the session, independent of how many people
  were present at any moment. Allocation only redistributes this total;
  the single rounding-reconciliation step is the only place a cent can
  move between memberships.

ROUNDING RULE (largest remainder, 2 decimal places):
  1. Round the grand total to 2dp (half away from zero)
  2. Floor each accumulator to 2dp
  3. Distribute the missing cents one at a time, largest fractional
     remainder first, ties broken by membership id ascending

  The rule is deterministic, so recomputation on unchanged input yields
  bit-identical results.

SEE ALSO:
  - tier.go: Rate lookup per interval
  - engine.go: Pipeline orchestration
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the fixed precision costs are rounded to.
const CurrencyPlaces = 2

// =============================================================================
// ALLOCATION
// =============================================================================

// AllocateCosts prices every split interval against the location's rate
// table and allocates each interval's cost equally across the memberships
// present in it. Zero-occupancy intervals contribute no cost and no
// allocation.
//
// Accumulators are keyed by membership id, not participant id, so a rejoin
// accumulates into its own row matching the schema.
func AllocateCosts(loc Location, intervals []Interval) (CostResult, error) {
	raw := make(map[MembershipID]decimal.Decimal)
	total := decimal.Zero

	for _, iv := range intervals {
		if iv.Occupancy == 0 {
			continue
		}
		tier, err := ResolveTier(loc, iv.Occupancy)
		if err != nil {
			return CostResult{}, err
		}

		cost := tier.Rate(iv.IsDay).Mul(iv.Hours())
		total = total.Add(cost)

		share := cost.Div(decimal.NewFromInt(int64(iv.Occupancy)))
		for _, id := range iv.Members {
			raw[id] = raw[id].Add(share)
		}
	}

	return roundAllocations(raw, total), nil
}

// =============================================================================
// ROUNDING RECONCILIATION
// =============================================================================

// roundAllocations applies the largest-remainder rule so that the rounded
// per-membership costs sum exactly to the rounded grand total.
func roundAllocations(raw map[MembershipID]decimal.Decimal, total decimal.Decimal) CostResult {
	grand := total.Round(CurrencyPlaces)
	costs := make(map[MembershipID]decimal.Decimal, len(raw))

	if len(raw) == 0 {
		return CostResult{Costs: costs, GrandTotal: grand}
	}

	type slice struct {
		id        MembershipID
		floored   decimal.Decimal
		remainder decimal.Decimal
	}

	slices := make([]slice, 0, len(raw))
	flooredSum := decimal.Zero
	for id, amount := range raw {
		floored := amount.RoundDown(CurrencyPlaces)
		slices = append(slices, slice{id: id, floored: floored, remainder: amount.Sub(floored)})
		flooredSum = flooredSum.Add(floored)
	}

	// Largest remainder first; ties by membership id for determinism.
	sort.Slice(slices, func(i, j int) bool {
		if !slices[i].remainder.Equal(slices[j].remainder) {
			return slices[i].remainder.GreaterThan(slices[j].remainder)
		}
		return slices[i].id < slices[j].id
	})

	// Missing cents between the rounded grand total and the floored sum.
	cent := decimal.New(1, -CurrencyPlaces)
	deficit := grand.Sub(flooredSum).Div(cent).Round(0).IntPart()

	for i := range slices {
		costs[slices[i].id] = slices[i].floored
	}
	for i := int64(0); i < deficit; i++ {
		id := slices[i%int64(len(slices))].id
		costs[id] = costs[id].Add(cent)
	}

	return CostResult{Costs: costs, GrandTotal: grand}
}
