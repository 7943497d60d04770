package adjudication

import (
	"github.com/medishield/opdclaims/pkg/types"
)

// Calculator computes the payable amount and the ordered deduction list.
//
// Deduction ordering is an observable contract: NON_COVERED_ITEM and
// CATEGORY_LIMIT entries appear in bill-line order, then the single
// NON_NETWORK_COPAY entry, then the single YTD_LIMIT_PARTIAL entry.  Two
// claims with identical inputs always produce identically ordered lists.
type Calculator struct {
	policy Policy
}

// NewCalculator constructs a Calculator bound to a policy table.
func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

// CalcResult carries the calculator's output back to the engine.
type CalcResult struct {
	ApprovedAmount types.Money
	Deductions     []Deduction
	// YTDClipped is true when the annual-limit clip reduced the amount; the
	// engine emits the YTD_LIMIT_PARTIAL warning for it.
	YTDClipped bool
}

// Calculate applies, in order: secondary-exclusion removal, per-category caps,
// the non-network co-pay, and the annual-limit clip.
//
// Conservation invariant: ApprovedAmount plus the sum of all deductions
// equals the billed total, exactly, in minor units.
func (c *Calculator) Calculate(claim *NormalizedClaim, facts PolicyFacts) CalcResult {
	var out CalcResult

	// Pass 1: per line, drop excluded items and cap per-category totals.
	// Cap headroom is tracked across lines so two dental lines share the
	// dental cap in bill order.
	capUsed := make(map[Category]types.Money)
	var subtotal types.Money
	for _, line := range claim.Lines {
		if line.Excluded {
			out.Deductions = append(out.Deductions, Deduction{
				Type:   DeductionNonCoveredItem,
				Amount: line.Amount,
			})
			continue
		}
		eligible := line.Amount
		if cap, ok := c.policy.CapFor(line.Category); ok {
			headroom := cap - capUsed[line.Category]
			if headroom < 0 {
				headroom = 0
			}
			if eligible > headroom {
				excess := eligible - headroom
				out.Deductions = append(out.Deductions, Deduction{
					Type:   DeductionCategoryLimit,
					Amount: excess,
				})
				eligible = headroom
			}
		}
		capUsed[line.Category] += eligible
		subtotal += eligible
	}

	// Pass 2: non-network co-pay on the post-cap subtotal.
	if !claim.Network && c.policy.NonNetworkCopayPct > 0 && subtotal > 0 {
		copay := subtotal.PercentOf(c.policy.NonNetworkCopayPct)
		if copay > 0 {
			out.Deductions = append(out.Deductions, Deduction{
				Type:   DeductionNonNetworkCopay,
				Amount: copay,
			})
			subtotal -= copay
		}
	}

	// Pass 3: clip to remaining annual-limit headroom.
	headroom := facts.RemainingHeadroom()
	if subtotal > headroom {
		clipped := subtotal - headroom
		out.Deductions = append(out.Deductions, Deduction{
			Type:   DeductionYTDLimitPartial,
			Amount: clipped,
		})
		subtotal = headroom
		out.YTDClipped = true
	}

	out.ApprovedAmount = subtotal
	return out
}
