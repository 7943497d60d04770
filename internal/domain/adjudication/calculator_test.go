package adjudication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishield/opdclaims/pkg/types"
)

func calcClaim(lines []BillLine, network bool) *NormalizedClaim {
	return &NormalizedClaim{Lines: lines, Network: network}
}

func calcFacts(headroomRupees int64, policy Policy) PolicyFacts {
	return PolicyFacts{
		YTDLimit:         policy.AnnualLimit,
		YTDApprovedTotal: policy.AnnualLimit - types.MoneyFromRupees(headroomRupees),
	}
}

func TestCalculateUnderCapNetwork(t *testing.T) {
	policy := testPolicy()
	calc := NewCalculator(policy)

	res := calc.Calculate(calcClaim([]BillLine{
		{Category: CategoryConsultation, Amount: types.MoneyFromRupees(500)},
	}, true), calcFacts(50000, policy))

	assert.Equal(t, types.MoneyFromRupees(500), res.ApprovedAmount)
	assert.Empty(t, res.Deductions)
	assert.False(t, res.YTDClipped)
}

func TestCalculateSharedCategoryCap(t *testing.T) {
	// Two dental lines share one dental cap; the excess on the second line
	// becomes its own CATEGORY_LIMIT deduction.
	policy := testPolicy()
	policy.CategoryCaps[CategoryDental] = types.MoneyFromRupees(5000)
	calc := NewCalculator(policy)

	res := calc.Calculate(calcClaim([]BillLine{
		{Category: CategoryDental, Amount: types.MoneyFromRupees(3000)},
		{Category: CategoryDental, Amount: types.MoneyFromRupees(4000)},
	}, true), calcFacts(50000, policy))

	assert.Equal(t, types.MoneyFromRupees(5000), res.ApprovedAmount)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionCategoryLimit, res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(2000), res.Deductions[0].Amount)
}

func TestCalculateExcludedLine(t *testing.T) {
	policy := testPolicy()
	calc := NewCalculator(policy)

	res := calc.Calculate(calcClaim([]BillLine{
		{Category: CategoryConsultation, Amount: types.MoneyFromRupees(500)},
		{Category: CategoryDental, Amount: types.MoneyFromRupees(1200), Excluded: true},
	}, true), calcFacts(50000, policy))

	assert.Equal(t, types.MoneyFromRupees(500), res.ApprovedAmount)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionNonCoveredItem, res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(1200), res.Deductions[0].Amount)
}

func TestCalculateCopayIntegerMath(t *testing.T) {
	// Co-pay applies to the post-cap subtotal with truncating integer math:
	// 20% of 800 is exactly 160.
	policy := testPolicy()
	policy.CategoryCaps[CategoryConsultation] = types.MoneyFromRupees(800)
	calc := NewCalculator(policy)

	res := calc.Calculate(calcClaim([]BillLine{
		{Category: CategoryConsultation, Amount: types.MoneyFromRupees(1000)},
	}, false), calcFacts(50000, policy))

	assert.Equal(t, types.MoneyFromRupees(640), res.ApprovedAmount)
	require.Len(t, res.Deductions, 2)
	assert.Equal(t, types.MoneyFromRupees(200), res.Deductions[0].Amount)
	assert.Equal(t, types.MoneyFromRupees(160), res.Deductions[1].Amount)
}

func TestCalculateYTDClip(t *testing.T) {
	policy := testPolicy()
	calc := NewCalculator(policy)

	res := calc.Calculate(calcClaim([]BillLine{
		{Category: CategoryConsultation, Amount: types.MoneyFromRupees(500)},
	}, true), calcFacts(300, policy))

	assert.True(t, res.YTDClipped)
	assert.Equal(t, types.MoneyFromRupees(300), res.ApprovedAmount)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionYTDLimitPartial, res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(200), res.Deductions[0].Amount)
}

func TestCalculateConservation(t *testing.T) {
	policy := testPolicy()
	policy.CategoryCaps[CategoryConsultation] = types.MoneyFromRupees(800)
	calc := NewCalculator(policy)

	lines := []BillLine{
		{Category: CategoryConsultation, Amount: types.Money(123457)},
		{Category: CategoryDental, Amount: types.Money(99999), Excluded: true},
		{Category: CategoryDiagnosticTests, Amount: types.Money(34567)},
	}
	var billed types.Money
	for _, l := range lines {
		billed += l.Amount
	}

	res := calc.Calculate(calcClaim(lines, false), calcFacts(700, policy))

	var deducted types.Money
	for _, d := range res.Deductions {
		deducted += d.Amount
	}
	assert.Equal(t, billed, res.ApprovedAmount+deducted)
	assert.False(t, res.ApprovedAmount.IsNegative())
}

func TestScorer(t *testing.T) {
	policy := testPolicy() // warning penalty 0.05, threshold 0.7
	s := NewScorer(policy)

	warn := Flag{Code: FlagUnknownHospital, Severity: SeverityWarning}
	block := Flag{Code: FlagWaitingPeriodNotMet, Severity: SeverityBlocking}

	assert.InDelta(t, 0.98, s.Score([]float64{0.98}, nil), 1e-9)
	assert.InDelta(t, 0.4, s.Score([]float64{0.4, 0.9}, nil), 1e-9)
	assert.InDelta(t, 0.88, s.Score([]float64{0.98, 0.99}, []Flag{warn, warn}), 1e-9)
	// BLOCKING flags carry no penalty.
	assert.InDelta(t, 0.98, s.Score([]float64{0.98}, []Flag{block}), 1e-9)
	// Clamped to [0,1].
	assert.Equal(t, 0.0, s.Score([]float64{0.05}, []Flag{warn, warn}))
	assert.Equal(t, 1.0, s.Score([]float64{1.5}, nil))
	assert.Equal(t, 0.0, s.Score(nil, nil))
}

func TestPolicyFromConfigConvertsToMinorUnits(t *testing.T) {
	policy := testPolicy()
	assert.Equal(t, types.Money(5000000), policy.AnnualLimit) // 50000 rupees
	assert.Equal(t, types.Money(10000), policy.MinClaimAmount)
	cap, ok := policy.CapFor(CategoryConsultation)
	require.True(t, ok)
	assert.Equal(t, types.Money(150000), cap)
	_, ok = policy.CapFor(Category("unknown"))
	assert.False(t, ok)
}
