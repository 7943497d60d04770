package adjudication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishield/opdclaims/internal/config"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

const validReg = "KA/12345/2015"

func testPolicy() Policy {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return PolicyFromConfig(cfg.Policy)
}

func testMember(joinDaysAgo int) MemberSnapshot {
	treat := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	return MemberSnapshot{
		MemberID: "MEM-2026-0001",
		Name:     "Rahul Sharma",
		JoinDate: treat.AddDate(0, 0, -joinDaysAgo),
	}
}

func baseClaim() RawClaim {
	return RawClaim{
		PatientName:        "Rahul Sharma",
		TreatmentDate:      "2026-06-15",
		HospitalName:       "Apollo Clinic Indiranagar",
		Diagnosis:          "viral fever",
		DoctorName:         "Dr. Mehta",
		DoctorRegistration: validReg,
		Treatments:         []string{"consultation"},
		BillLines: []RawBillLine{
			{Description: "general consultation", Category: "consultation", Amount: "500"},
		},
		BillDate:               "2026-06-15",
		PrescriptionDate:       "2026-06-15",
		HasPrescription:        true,
		HasBill:                true,
		PrescriptionConfidence: 0.98,
		BillConfidence:         0.98,
	}
}

func adjudicate(t *testing.T, policy Policy, member MemberSnapshot, raw RawClaim) *Result {
	t.Helper()
	res, err := NewEngine(policy).Adjudicate(member, []RawClaim{raw}, raw.TreatmentDate)
	require.NoError(t, err)
	return res
}

func TestCleanClaimApproved(t *testing.T) {
	// Member well past the waiting period, known category under cap, network
	// hospital, high extraction confidence.
	res := adjudicate(t, testPolicy(), testMember(200), baseClaim())

	assert.Equal(t, DecisionApproved, res.Decision)
	assert.Equal(t, types.MoneyFromRupees(500), res.ApprovedAmount)
	assert.Empty(t, res.Deductions)
	assert.Empty(t, res.Flags)
	assert.False(t, res.Provisional)
}

func TestWaitingPeriodRejected(t *testing.T) {
	res := adjudicate(t, testPolicy(), testMember(10), baseClaim())

	assert.Equal(t, DecisionRejected, res.Decision)
	assert.True(t, res.ApprovedAmount.IsZero())
	assert.Equal(t, FlagWaitingPeriodNotMet, res.Reason)
	require.Len(t, res.BlockingFlags(), 1)
	assert.Equal(t, FlagWaitingPeriodNotMet, res.BlockingFlags()[0].Code)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionType(FlagWaitingPeriodNotMet), res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(500), res.Deductions[0].Amount)
}

func TestRejectionReplacesItemizedDeductions(t *testing.T) {
	// A claim that would carry cap and co-pay deductions, filed inside the
	// waiting period: the rejection must not keep the itemized list around.
	policy := testPolicy()
	policy.CategoryCaps[CategoryConsultation] = types.MoneyFromRupees(800)

	raw := baseClaim()
	raw.HospitalName = "City Care Clinic"
	raw.BillLines[0].Amount = "1000"

	res := adjudicate(t, policy, testMember(10), raw)

	assert.Equal(t, DecisionRejected, res.Decision)
	assert.True(t, res.ApprovedAmount.IsZero())
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionType(FlagWaitingPeriodNotMet), res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(1000), res.Deductions[0].Amount)
}

func TestNonNetworkCapAndCopayPartial(t *testing.T) {
	// Unrecognized hospital, bill 1000 against a category cap of 800 and a
	// 20% non-network co-pay: deductions [CATEGORY_LIMIT 200][NON_NETWORK_COPAY 160],
	// approved 640.
	policy := testPolicy()
	policy.CategoryCaps[CategoryConsultation] = types.MoneyFromRupees(800)

	raw := baseClaim()
	raw.HospitalName = "City Care Clinic"
	raw.BillLines[0].Amount = "1000"

	res := adjudicate(t, policy, testMember(200), raw)

	assert.Equal(t, DecisionPartial, res.Decision)
	assert.Equal(t, types.MoneyFromRupees(640), res.ApprovedAmount)
	require.Len(t, res.Deductions, 2)
	assert.Equal(t, DeductionCategoryLimit, res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(200), res.Deductions[0].Amount)
	assert.Equal(t, DeductionNonNetworkCopay, res.Deductions[1].Type)
	assert.Equal(t, types.MoneyFromRupees(160), res.Deductions[1].Amount)

	var codes []string
	for _, f := range res.Flags {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, FlagUnknownHospital)
}

func TestLowConfidenceManualReview(t *testing.T) {
	raw := baseClaim()
	raw.PrescriptionConfidence = 0.4
	raw.BillConfidence = 0.9

	res := adjudicate(t, testPolicy(), testMember(200), raw)

	assert.Equal(t, DecisionManualReview, res.Decision)
	assert.True(t, res.Provisional)
	// Amount is still computed and reported.
	assert.Equal(t, types.MoneyFromRupees(500), res.ApprovedAmount)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
}

func TestYTDExhaustedRejected(t *testing.T) {
	policy := testPolicy()
	member := testMember(200)
	member.YTDApproved = policy.AnnualLimit

	res := adjudicate(t, policy, member, baseClaim())

	assert.Equal(t, DecisionRejected, res.Decision)
	assert.True(t, res.ApprovedAmount.IsZero())
	assert.Equal(t, FlagYTDLimitExceeded, res.Reason)
}

func TestYTDPartialClip(t *testing.T) {
	policy := testPolicy()
	member := testMember(200)
	// 300 rupees of headroom remain against a 500 rupee bill.
	member.YTDApproved = policy.AnnualLimit - types.MoneyFromRupees(300)

	res := adjudicate(t, policy, member, baseClaim())

	assert.Equal(t, DecisionPartial, res.Decision)
	assert.Equal(t, types.MoneyFromRupees(300), res.ApprovedAmount)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionYTDLimitPartial, res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(200), res.Deductions[0].Amount)

	var codes []string
	for _, f := range res.Flags {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, FlagYTDLimitPartial)
}

func TestTreatmentBeforeJoinIsError(t *testing.T) {
	member := testMember(200)
	member.JoinDate = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewEngine(testPolicy()).Adjudicate(member, []RawClaim{baseClaim()}, "2026-06-15")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimInvalidDateOrder))
}

func TestMultipleClaimsRejectedAtEntry(t *testing.T) {
	_, err := NewEngine(testPolicy()).Adjudicate(testMember(200),
		[]RawClaim{baseClaim(), baseClaim()}, "2026-06-15")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimMultiNotSupported))
}

func TestDeterminism(t *testing.T) {
	policy := testPolicy()
	member := testMember(200)
	member.YTDApproved = types.MoneyFromRupees(100)
	raw := baseClaim()
	raw.HospitalName = "Unknown Clinic"
	raw.BillLines = append(raw.BillLines, RawBillLine{
		Description: "teeth whitening session", Category: "dental", Amount: "700.25",
	})

	first := adjudicate(t, policy, member, raw)
	for i := 0; i < 50; i++ {
		again := adjudicate(t, policy, member, raw)
		assert.Equal(t, first, again)
	}
}

func TestConservationAndBounds(t *testing.T) {
	// Across a spread of claim shapes the invariants must hold: amount within
	// [0, billed], and approved plus deductions equals billed.
	policy := testPolicy()
	policy.CategoryCaps[CategoryConsultation] = types.MoneyFromRupees(800)

	shapes := []RawClaim{
		baseClaim(),
		func() RawClaim {
			r := baseClaim()
			r.HospitalName = "Roadside Clinic"
			r.BillLines = []RawBillLine{
				{Description: "consultation", Category: "consultation", Amount: "1000"},
				{Description: "cosmetic whitening", Category: "dental", Amount: "450.50"},
				{Description: "blood test", Category: "diagnostic_tests", Amount: "399.99"},
			}
			return r
		}(),
		func() RawClaim {
			r := baseClaim()
			r.BillLines = []RawBillLine{
				{Description: "root canal", Category: "dental", Amount: "6000"},
			}
			return r
		}(),
	}

	for _, raw := range shapes {
		member := testMember(200)
		member.YTDApproved = policy.AnnualLimit - types.MoneyFromRupees(900)
		res := adjudicate(t, policy, member, raw)

		var billed types.Money
		for _, l := range raw.BillLines {
			m, err := types.ParseMoney(l.Amount)
			require.NoError(t, err)
			billed += m
		}

		assert.False(t, res.ApprovedAmount.IsNegative())
		assert.LessOrEqual(t, int64(res.ApprovedAmount), int64(billed))

		// Holds for every decision: a rejection carries one deduction for the
		// whole billed amount.
		var deducted types.Money
		for _, d := range res.Deductions {
			deducted += d.Amount
		}
		assert.Equal(t, billed, res.ApprovedAmount+deducted,
			"approved + deductions must equal billed total")
	}
}

func TestDeductionOrdering(t *testing.T) {
	policy := testPolicy()
	policy.CategoryCaps[CategoryConsultation] = types.MoneyFromRupees(800)

	raw := baseClaim()
	raw.HospitalName = "Nowhere Clinic"
	raw.BillLines = []RawBillLine{
		{Description: "cosmetic filler", Category: "dental", Amount: "300"},
		{Description: "consultation", Category: "consultation", Amount: "1000"},
	}
	member := testMember(200)
	member.YTDApproved = policy.AnnualLimit - types.MoneyFromRupees(500)

	res := adjudicate(t, policy, member, raw)

	// Exclusions and caps in bill order, then co-pay, then YTD clip.
	require.Len(t, res.Deductions, 4)
	assert.Equal(t, DeductionNonCoveredItem, res.Deductions[0].Type)
	assert.Equal(t, DeductionCategoryLimit, res.Deductions[1].Type)
	assert.Equal(t, DeductionNonNetworkCopay, res.Deductions[2].Type)
	assert.Equal(t, DeductionYTDLimitPartial, res.Deductions[3].Type)
}

func TestRejectedAmountAlwaysZero(t *testing.T) {
	// Decision/flag coherence: REJECTED if and only if a BLOCKING flag is
	// present or the payable amount computes to zero.
	policy := testPolicy()
	raw := baseClaim()
	raw.DoctorRegistration = "not-a-reg"

	res := adjudicate(t, policy, testMember(200), raw)
	assert.Equal(t, DecisionRejected, res.Decision)
	assert.True(t, res.ApprovedAmount.IsZero())
	assert.NotEmpty(t, res.BlockingFlags())
}

func TestZeroPayableWithoutBlocking(t *testing.T) {
	// Every line secondary-excluded: no BLOCKING flag, but nothing payable.
	raw := baseClaim()
	raw.BillLines = []RawBillLine{
		{Description: "teeth whitening cosmetic package", Category: "dental", Amount: "2000"},
	}

	res := adjudicate(t, testPolicy(), testMember(200), raw)

	assert.Equal(t, DecisionRejected, res.Decision)
	assert.Equal(t, ReasonZeroPayable, res.Reason)
	assert.Empty(t, res.BlockingFlags())
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, DeductionType(ReasonZeroPayable), res.Deductions[0].Type)
	assert.Equal(t, types.MoneyFromRupees(2000), res.Deductions[0].Amount)
}

func TestMinAmountIgnoresExcludedLines(t *testing.T) {
	// An excluded cosmetic line must not lift a tiny claim over the minimum:
	// 100 excluded plus 50 covered leaves 50 eligible, below the 100 minimum.
	raw := baseClaim()
	raw.BillLines = []RawBillLine{
		{Description: "cosmetic skin polish", Category: "dental", Amount: "100"},
		{Description: "general consultation", Category: "consultation", Amount: "50"},
	}

	res := adjudicate(t, testPolicy(), testMember(200), raw)

	assert.Equal(t, DecisionRejected, res.Decision)
	assert.Equal(t, FlagBelowMinAmount, res.Reason)
	assert.True(t, res.ApprovedAmount.IsZero())

	var codes []string
	for _, f := range res.Flags {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, FlagExcludedItemsPresent)
	assert.Contains(t, codes, FlagBelowMinAmount)
}

func TestStrictHospitalModeBlocks(t *testing.T) {
	policy := testPolicy()
	policy.RejectUnknownHospital = true

	raw := baseClaim()
	raw.HospitalName = "Totally Unknown Hospital"

	res := adjudicate(t, policy, testMember(200), raw)

	assert.Equal(t, DecisionRejected, res.Decision)
	assert.Equal(t, FlagUnknownHospital, res.Reason)
}
