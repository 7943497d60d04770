package adjudication

import (
	"fmt"
	"time"

	"github.com/medishield/opdclaims/internal/config"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

// Policy is the resolved policy table the engine adjudicates against.
// Monetary values are minor units.  A Policy is immutable once constructed;
// hot-reloaded configuration produces a fresh Policy via PolicyFromConfig and
// the engine swap is atomic at the application layer.
type Policy struct {
	WaitingPeriodDays     int
	AnnualLimit           types.Money
	MinClaimAmount        types.Money
	CategoryCaps          map[Category]types.Money
	NonNetworkCopayPct    int64
	DateWindowDays        int
	ManualReviewThreshold float64
	WarningPenalty        float64
	NetworkHospitals      []string
	RejectUnknownHospital bool
	PreauthTreatments     []string
	PreauthAmount         types.Money
	HighAmountThreshold   types.Money
	SameDayClaimWarnAt    int
	MonthlyClaimWarnAt    int
}

// PolicyFromConfig converts the configuration policy table (whole rupees)
// into an engine Policy (minor units).
func PolicyFromConfig(cfg config.PolicyConfig) Policy {
	caps := make(map[Category]types.Money, len(cfg.CategoryCaps))
	for name, rupees := range cfg.CategoryCaps {
		caps[Category(name)] = types.MoneyFromRupees(rupees)
	}
	return Policy{
		WaitingPeriodDays:     cfg.WaitingPeriodDays,
		AnnualLimit:           types.MoneyFromRupees(cfg.AnnualLimit),
		MinClaimAmount:        types.MoneyFromRupees(cfg.MinClaimAmount),
		CategoryCaps:          caps,
		NonNetworkCopayPct:    cfg.NonNetworkCopayPct,
		DateWindowDays:        cfg.DateWindowDays,
		ManualReviewThreshold: cfg.ManualReviewThreshold,
		WarningPenalty:        cfg.WarningPenalty,
		NetworkHospitals:      append([]string(nil), cfg.NetworkHospitals...),
		RejectUnknownHospital: cfg.RejectUnknownHospital,
		PreauthTreatments:     append([]string(nil), cfg.PreauthTreatments...),
		PreauthAmount:         types.MoneyFromRupees(cfg.PreauthAmount),
		HighAmountThreshold:   types.MoneyFromRupees(cfg.HighAmountThreshold),
		SameDayClaimWarnAt:    cfg.SameDayClaimWarnAt,
		MonthlyClaimWarnAt:    cfg.MonthlyClaimWarnAt,
	}
}

// CapFor returns the reimbursement cap for a category and whether one exists.
func (p Policy) CapFor(cat Category) (types.Money, bool) {
	cap, ok := p.CategoryCaps[cat]
	return cap, ok
}

// PolicyFacts is the derived, read-only snapshot of member state relative to
// the claim being adjudicated.  It is computed fresh per adjudication call and
// never persisted separately from its source member record.
type PolicyFacts struct {
	DaysSinceJoin     int
	WaitingPeriodDays int
	YTDApprovedTotal  types.Money
	YTDLimit          types.Money
}

// WaitingPeriodMet reports whether the member has been enrolled at least the
// waiting-period length by the treatment date.
func (f PolicyFacts) WaitingPeriodMet() bool {
	return f.DaysSinceJoin >= f.WaitingPeriodDays
}

// RemainingHeadroom returns how much of the annual limit is still claimable.
// Never negative: an over-limit YTD total yields zero headroom.
func (f PolicyFacts) RemainingHeadroom() types.Money {
	rem := f.YTDLimit - f.YTDApprovedTotal
	if rem < 0 {
		return 0
	}
	return rem
}

// ResolveFacts derives PolicyFacts for a member and treatment date.
// Returns ErrCodeClaimInvalidDateOrder when the treatment date precedes the
// member's join date; a claim for treatment before enrolment can never be
// valid and the pipeline stops before any flags are produced.
func ResolveFacts(member MemberSnapshot, treatmentDate time.Time, policy Policy) (PolicyFacts, error) {
	join := member.JoinDate.Truncate(24 * time.Hour)
	treat := treatmentDate.Truncate(24 * time.Hour)
	if treat.Before(join) {
		return PolicyFacts{}, apperrors.New(apperrors.ErrCodeClaimInvalidDateOrder,
			fmt.Sprintf("treatment date %s precedes join date %s",
				treat.Format("2006-01-02"), join.Format("2006-01-02")))
	}
	days := int(treat.Sub(join).Hours() / 24)
	return PolicyFacts{
		DaysSinceJoin:     days,
		WaitingPeriodDays: policy.WaitingPeriodDays,
		YTDApprovedTotal:  member.YTDApproved,
		YTDLimit:          policy.AnnualLimit,
	}, nil
}
