/*
settle.go - Settlement reconciliation

PURPOSE:
  Compares what the session should have billed (computed costs, with any
  admin overrides applied) against what was actually collected. Purely
  advisory: nothing here mutates costs or settlement records.

BILLED TOTAL:
  For each membership, AdjustedCost supersedes ComputedCost when present.
  The computed value is never replaced in storage - it is kept for audit -
  but billing and reconciliation use the override.

SETTLEMENT POLICY:
  Once a settlement record is marked final, recomputing costs for that
  session requires an explicit override. GuardRecompute enforces this for
  the lifecycle layer; Reconcile itself stays read-only.

SEE ALSO:
  - engine.go: Produces the computed costs
  - errors.go: NotEndedError / AlreadySettledError
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconcile produces the billed-versus-collected report for a finalized
// session. adjustments maps membership id to an AdjustedCost override and
// may be nil. Returns NotEndedError if the session is still open.
func Reconcile(
	session Session,
	costs map[MembershipID]decimal.Decimal,
	adjustments map[MembershipID]decimal.Decimal,
	settlement SettlementRecord,
) (ReconciliationReport, error) {
	if session.EndTime == nil {
		return ReconciliationReport{}, &NotEndedError{SessionID: session.ID}
	}

	billed := decimal.Zero
	for id, computed := range costs {
		if adjusted, ok := adjustments[id]; ok {
			billed = billed.Add(adjusted)
			continue
		}
		billed = billed.Add(computed)
	}
	// Overrides for memberships without a computed cost still bill.
	for id, adjusted := range adjustments {
		if _, ok := costs[id]; !ok {
			billed = billed.Add(adjusted)
		}
	}

	return ReconciliationReport{
		SessionID:   session.ID,
		BilledTotal: billed,
		Collected:   settlement.Collected,
		Difference:  settlement.Collected.Sub(billed),
	}, nil
}

// GuardRecompute checks whether computed costs may be recomputed for a
// session given its settlement state. A final settlement blocks
// recomputation unless the caller passes an explicit override.
func GuardRecompute(session Session, settlement *SettlementRecord, override bool) error {
	if settlement != nil && settlement.Final && !override {
		return &AlreadySettledError{SessionID: session.ID}
	}
	return nil
}
