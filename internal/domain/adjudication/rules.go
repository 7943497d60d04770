package adjudication

import (
	"fmt"
	"regexp"
	"strings"
)

// Doctor registration number patterns recognised by the medical council
// check: a state-council allopathic number (e.g. "KA/12345/2015") or an
// AYUSH-stream number (e.g. "AYUR/KA/12345/2015").
var (
	reDoctorReg      = regexp.MustCompile(`^[A-Z]{2,4}/\d{4,6}/\d{4}$`)
	reDoctorRegAyush = regexp.MustCompile(`^(AYUR|HOMEO|UNANI)/[A-Z]{2,4}/\d{4,6}/\d{4}$`)
)

// Exclusion keyword families.  Primary exclusions make the whole claim
// non-covered; secondary exclusions remove only the matching bill lines.
var (
	primaryExclusions = map[string][]string{
		"weight loss":  {"obesity", "weight loss", "bariatric"},
		"infertility":  {"infertility", "ivf", "fertility treatment"},
		"experimental": {"experimental", "investigational"},
	}

	secondaryExclusions = map[string][]string{
		"cosmetic":    {"cosmetic", "aesthetic", "beautification", "whitening"},
		"supplements": {"diet plan", "weight management program"},
	}
)

// Validator runs the ordered rule checks.  Checks never short-circuit: a
// claim that trips the waiting period is still scanned for exclusions so the
// result carries every applicable flag.
type Validator struct {
	policy Policy
}

// NewValidator constructs a Validator bound to a policy table.
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate appends rule flags to the claim and marks secondary-excluded bill
// lines.  The claim is mutated in place (line exclusion markers); flags are
// returned in check order, which is part of the engine's observable contract.
func (v *Validator) Validate(claim *NormalizedClaim, member MemberSnapshot, facts PolicyFacts) []Flag {
	var flags []Flag

	// 1. Doctor registration.
	if !validDoctorReg(claim.DoctorReg) {
		flags = append(flags, Flag{
			Code:     FlagInvalidDoctorReg,
			Severity: SeverityBlocking,
			Message:  fmt.Sprintf("doctor registration number %q is not a valid council format", claim.DoctorReg),
		})
	}

	// 2. Waiting period.
	if !facts.WaitingPeriodMet() {
		flags = append(flags, Flag{
			Code:     FlagWaitingPeriodNotMet,
			Severity: SeverityBlocking,
			Message: fmt.Sprintf("member joined %d days before treatment; waiting period is %d days",
				facts.DaysSinceJoin, facts.WaitingPeriodDays),
		})
	}

	// 3. Primary exclusions: diagnosis or any treatment in a fully excluded
	// family rejects the claim outright.
	if family := matchPrimaryExclusion(claim); family != "" {
		flags = append(flags, Flag{
			Code:     FlagServiceNotCovered,
			Severity: SeverityBlocking,
			Message:  fmt.Sprintf("claim falls under policy exclusion %q", family),
		})
	}

	// 4. Secondary exclusions: mark matching bill lines; the calculator turns
	// them into NON_COVERED_ITEM deductions.
	if markSecondaryExclusions(claim) {
		flags = append(flags, Flag{
			Code:     FlagExcludedItemsPresent,
			Severity: SeverityWarning,
			Message:  "bill contains non-covered items; they were excluded from the payable amount",
		})
	}

	// 5. Pre-authorisation for high-value scan treatments.
	if v.requiresPreauth(claim) && !member.PreauthObtained {
		flags = append(flags, Flag{
			Code:     FlagPreauthRequired,
			Severity: SeverityBlocking,
			Message: fmt.Sprintf("treatment requires pre-authorisation above %s", v.policy.PreauthAmount),
		})
	}

	// 6. Minimum claim amount, on the eligible total: excluded lines do not
	// count toward it.  A fully excluded claim is left to the zero-payable
	// rejection rather than flagged as too small.
	if eligible := claim.EligibleTotal(); !eligible.IsZero() && eligible < v.policy.MinClaimAmount {
		flags = append(flags, Flag{
			Code:     FlagBelowMinAmount,
			Severity: SeverityBlocking,
			Message: fmt.Sprintf("eligible amount %s is below the minimum claimable amount %s",
				eligible, v.policy.MinClaimAmount),
		})
	}

	// 7. YTD limit: zero headroom blocks; partial headroom is handled by the
	// calculator's clip, which emits the YTD_LIMIT_PARTIAL warning.
	if facts.RemainingHeadroom().IsZero() {
		flags = append(flags, Flag{
			Code:     FlagYTDLimitExceeded,
			Severity: SeverityBlocking,
			Message: fmt.Sprintf("annual limit %s already exhausted (approved to date %s)",
				facts.YTDLimit, facts.YTDApprovedTotal),
		})
	}

	// 8. Deterministic unusual-pattern checks.  Each adds a WARNING so the
	// confidence scorer routes suspicious claims to manual review.
	flags = append(flags, v.patternFlags(claim, member)...)

	return flags
}

// validDoctorReg reports whether reg matches either council format.
// Matching is case-sensitive: council numbers are issued upper-case.
func validDoctorReg(reg string) bool {
	if reg == "" {
		return false
	}
	return reDoctorReg.MatchString(reg) || reDoctorRegAyush.MatchString(reg)
}

// matchPrimaryExclusion returns the first primary exclusion family whose
// keywords appear in the diagnosis or any treatment, or "" when none match.
// Families are scanned in a fixed order for determinism.
func matchPrimaryExclusion(claim *NormalizedClaim) string {
	for _, family := range []string{"weight loss", "infertility", "experimental"} {
		for _, kw := range primaryExclusions[family] {
			if strings.Contains(claim.Diagnosis, kw) {
				return family
			}
			for _, t := range claim.Treatments {
				if strings.Contains(t, kw) {
					return family
				}
			}
		}
	}
	return ""
}

// markSecondaryExclusions sets the Excluded marker on every bill line whose
// description matches a secondary exclusion keyword and reports whether any
// line was marked.
func markSecondaryExclusions(claim *NormalizedClaim) bool {
	marked := false
	for i := range claim.Lines {
		for _, keywords := range secondaryExclusions {
			for _, kw := range keywords {
				if strings.Contains(claim.Lines[i].Description, kw) {
					claim.Lines[i].Excluded = true
					marked = true
				}
			}
		}
	}
	return marked
}

// requiresPreauth reports whether the claim includes a pre-auth treatment
// (MRI, CT scan) with an eligible amount above the pre-auth threshold.
// Excluded lines do not count: they are never paid, so they cannot trip the
// high-value gate.
func (v *Validator) requiresPreauth(claim *NormalizedClaim) bool {
	if claim.EligibleTotal() <= v.policy.PreauthAmount {
		return false
	}
	for _, pat := range v.policy.PreauthTreatments {
		p := strings.ToLower(pat)
		for _, t := range claim.Treatments {
			if strings.Contains(t, p) {
				return true
			}
		}
		for _, l := range claim.Lines {
			if strings.Contains(l.Description, p) {
				return true
			}
		}
	}
	return false
}

// patternFlags emits an UNUSUAL_PATTERN warning per tripped heuristic:
// repeated same-day claims, high monthly frequency, and unusually large
// amounts.
func (v *Validator) patternFlags(claim *NormalizedClaim, member MemberSnapshot) []Flag {
	var flags []Flag
	if v.policy.SameDayClaimWarnAt > 0 && member.History.SameDayClaims >= v.policy.SameDayClaimWarnAt {
		flags = append(flags, Flag{
			Code:     FlagUnusualPattern,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d prior claim(s) with the same treatment date", member.History.SameDayClaims),
		})
	}
	if v.policy.MonthlyClaimWarnAt > 0 && member.History.LastMonthClaims >= v.policy.MonthlyClaimWarnAt {
		flags = append(flags, Flag{
			Code:     FlagUnusualPattern,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d claim(s) filed in the last month", member.History.LastMonthClaims),
		})
	}
	if !v.policy.HighAmountThreshold.IsZero() && claim.BilledTotal() > v.policy.HighAmountThreshold {
		flags = append(flags, Flag{
			Code:     FlagUnusualPattern,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("billed total %s exceeds the usual amount threshold %s", claim.BilledTotal(), v.policy.HighAmountThreshold),
		})
	}
	return flags
}
