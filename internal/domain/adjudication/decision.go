package adjudication

import (
	"github.com/medishield/opdclaims/pkg/types"
)

// Resolver maps flags, confidence, and the calculated amount onto the final
// decision.  Precedence is fixed:
//
//  1. Any BLOCKING flag → REJECTED, amount zero; the itemized deductions are
//     replaced by a single entry carrying the rejection reason.
//  2. Confidence below the manual-review threshold → MANUAL_REVIEW; the
//     computed amount is reported but marked provisional.
//  3. Full amount payable with no deductions → APPROVED.
//  4. Reduced but non-zero amount → PARTIAL.
//  5. Zero payable without a BLOCKING flag → REJECTED with reason ZERO_PAYABLE.
type Resolver struct {
	policy Policy
}

// NewResolver constructs a Resolver bound to a policy table.
func NewResolver(policy Policy) *Resolver {
	return &Resolver{policy: policy}
}

// Resolve produces the final Result from the pipeline outputs.
func (r *Resolver) Resolve(claim *NormalizedClaim, flags []Flag, calc CalcResult, confidence float64) *Result {
	res := &Result{
		Confidence:  confidence,
		Flags:       flags,
		Deductions:  calc.Deductions,
		BilledTotal: claim.BilledTotal(),
	}

	for _, f := range flags {
		if f.IsBlocking() {
			res.Decision = DecisionRejected
			res.ApprovedAmount = 0
			res.Reason = f.Code
			res.Deductions = rejectionDeductions(f.Code, res.BilledTotal)
			return res
		}
	}

	if confidence < r.policy.ManualReviewThreshold {
		res.Decision = DecisionManualReview
		res.ApprovedAmount = calc.ApprovedAmount
		res.Provisional = true
		return res
	}

	if calc.ApprovedAmount.IsZero() {
		res.Decision = DecisionRejected
		res.ApprovedAmount = 0
		res.Reason = ReasonZeroPayable
		res.Deductions = rejectionDeductions(ReasonZeroPayable, res.BilledTotal)
		return res
	}

	if len(calc.Deductions) == 0 && calc.ApprovedAmount == claim.BilledTotal() {
		res.Decision = DecisionApproved
		res.ApprovedAmount = calc.ApprovedAmount
		return res
	}

	res.Decision = DecisionPartial
	res.ApprovedAmount = calc.ApprovedAmount
	return res
}

// rejectionDeductions builds the single deduction a rejected result carries.
// The itemized entries describe a payout that will not happen, so they are
// dropped in favour of one entry accounting for the full billed amount under
// the rejection reason.  Conservation still holds: zero approved plus the
// billed total equals the billed total.
func rejectionDeductions(reason string, billed types.Money) []Deduction {
	return []Deduction{{Type: DeductionType(reason), Amount: billed}}
}
