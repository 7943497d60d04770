// Package adjudication implements the deterministic claim adjudication engine:
// policy facts resolution, input normalization, rule validation, deduction and
// amount calculation, confidence scoring, and decision resolution.  All
// business rules that decide a claim live here; infrastructure concerns
// (persistence, document storage, extraction) are handled by separate
// repository and adapter layers.
//
// The engine is pure: given the same member snapshot, claim input, and policy
// table it always produces a byte-identical result.  Nothing in this package
// reads the clock, generates randomness, or touches I/O.
package adjudication

import (
	"time"

	"github.com/medishield/opdclaims/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Decisions, flags, deductions
// ─────────────────────────────────────────────────────────────────────────────

// Decision is the final outcome of an adjudication run.
type Decision string

const (
	DecisionApproved     Decision = "APPROVED"
	DecisionPartial      Decision = "PARTIAL"
	DecisionRejected     Decision = "REJECTED"
	DecisionManualReview Decision = "MANUAL_REVIEW"
)

// Severity classifies a flag's effect on the decision.  BLOCKING flags force
// rejection; WARNING flags lower confidence but never reject on their own.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

// Flag codes emitted by the rule validator and normalizer.
const (
	FlagWaitingPeriodNotMet      = "WAITING_PERIOD_NOT_MET"
	FlagYTDLimitExceeded         = "YTD_LIMIT_EXCEEDED"
	FlagYTDLimitPartial          = "YTD_LIMIT_PARTIAL"
	FlagUnknownCategoryDefaulted = "UNKNOWN_CATEGORY_DEFAULTED"
	FlagUnknownHospital          = "UNKNOWN_HOSPITAL_NONNETWORK"
	FlagInvalidDoctorReg         = "INVALID_DOCTOR_REG"
	FlagServiceNotCovered        = "SERVICE_NOT_COVERED"
	FlagExcludedItemsPresent     = "EXCLUDED_ITEMS_PRESENT"
	FlagPreauthRequired          = "PREAUTH_REQUIRED"
	FlagBelowMinAmount           = "BELOW_MIN_AMOUNT"
	FlagUnusualPattern           = "UNUSUAL_PATTERN"
	FlagNameMismatch             = "NAME_MISMATCH"
	FlagDateMismatch             = "DATE_MISMATCH"
)

// ReasonZeroPayable is the rejection reason used when no BLOCKING flag is
// present but the payable amount computes to zero.
const ReasonZeroPayable = "ZERO_PAYABLE"

// Flag is a single validation finding attached to a result.
type Flag struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// IsBlocking reports whether the flag forces rejection.
func (f Flag) IsBlocking() bool { return f.Severity == SeverityBlocking }

// DeductionType identifies why an amount was subtracted from the billed total.
type DeductionType string

const (
	DeductionNonCoveredItem  DeductionType = "NON_COVERED_ITEM"
	DeductionCategoryLimit   DeductionType = "CATEGORY_LIMIT"
	DeductionNonNetworkCopay DeductionType = "NON_NETWORK_COPAY"
	DeductionYTDLimitPartial DeductionType = "YTD_LIMIT_PARTIAL"
)

// Deduction is one subtraction applied during amount calculation.  The order
// of deductions in a result is an observable contract: exclusions and
// category caps in bill-line order, then co-pay, then the YTD clip.
type Deduction struct {
	Type   DeductionType `json:"type"`
	Amount types.Money   `json:"amount"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Categories
// ─────────────────────────────────────────────────────────────────────────────

// Category is a policy coverage category.  Unknown inputs default to
// CategoryConsultation with a WARNING flag.
type Category string

const (
	CategoryConsultation        Category = "consultation"
	CategoryDiagnosticTests     Category = "diagnostic_tests"
	CategoryPharmacy            Category = "pharmacy"
	CategoryDental              Category = "dental"
	CategoryVision              Category = "vision"
	CategoryAlternativeMedicine Category = "alternative_medicine"
)

// ─────────────────────────────────────────────────────────────────────────────
// Member snapshot and claim history
// ─────────────────────────────────────────────────────────────────────────────

// MemberSnapshot is the read-only view of member state the engine adjudicates
// against.  It is assembled by the caller from the member record and claim
// history; the engine never loads data itself.
type MemberSnapshot struct {
	MemberID        string
	Name            string
	JoinDate        time.Time
	YTDApproved     types.Money
	YTDClaimed      types.Money
	PreauthObtained bool
	History         ClaimHistory
}

// ClaimHistory carries the deterministic counts the unusual-pattern checks
// compare against.  Counts exclude the claim under adjudication.
type ClaimHistory struct {
	// SameDayClaims is the number of prior claims with the same treatment date.
	SameDayClaims int
	// LastMonthClaims is the number of claims in the thirty days before the
	// treatment date.
	LastMonthClaims int
}

// ─────────────────────────────────────────────────────────────────────────────
// Raw claim input (as extracted from documents)
// ─────────────────────────────────────────────────────────────────────────────

// RawBillLine is one bill line item as extracted, before normalization.
type RawBillLine struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
}

// RawClaim is the structured extraction output for one claim upload.  All
// fields are strings exactly as the extraction service produced them; the
// normalizer owns parsing and tolerance decisions.
type RawClaim struct {
	PatientName        string        `json:"patient_name"`
	TreatmentDate      string        `json:"treatment_date"`
	HospitalName       string        `json:"hospital_name"`
	Diagnosis          string        `json:"diagnosis"`
	DoctorName         string        `json:"doctor_name"`
	DoctorRegistration string        `json:"doctor_registration"`
	Treatments         []string      `json:"treatments"`
	BillLines          []RawBillLine `json:"bill_lines"`
	BillDate           string        `json:"bill_date"`
	PrescriptionDate   string        `json:"prescription_date"`

	HasPrescription bool `json:"has_prescription"`
	HasBill         bool `json:"has_bill"`
	HasTestReport   bool `json:"has_test_report"`

	// Per-document extraction confidences in [0,1].  Absent documents carry
	// zero and are ignored by the scorer.
	PrescriptionConfidence float64 `json:"prescription_confidence"`
	BillConfidence         float64 `json:"bill_confidence"`
	TestReportConfidence   float64 `json:"test_report_confidence"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Normalized claim
// ─────────────────────────────────────────────────────────────────────────────

// BillLine is a normalized bill line: parsed amount, resolved category, and
// the excluded marker set by the coverage rules for secondary-exclusion items.
type BillLine struct {
	Description string      `json:"description"`
	Category    Category    `json:"category"`
	Amount      types.Money `json:"amount"`
	Excluded    bool        `json:"excluded"`
}

// NormalizedClaim is the validated, parsed form of a RawClaim.  Every field
// the downstream stages read has been through strict parsing or a documented
// tolerance rule.
type NormalizedClaim struct {
	TreatmentDate time.Time
	Hospital      string
	Network       bool
	Diagnosis     string
	DoctorReg     string
	Treatments    []string
	Lines         []BillLine

	PreauthObtained bool

	// Confidences of the documents that were actually present.
	DocConfidences []float64

	// Flags raised during normalization (unknown category, unknown hospital,
	// name/date mismatches).  The validator appends to this list.
	Flags []Flag
}

// BilledTotal returns the sum of all bill line amounts.
func (c *NormalizedClaim) BilledTotal() types.Money {
	var total types.Money
	for _, l := range c.Lines {
		total += l.Amount
	}
	return total
}

// EligibleTotal returns the billed total minus secondary-excluded lines.
// Threshold checks (minimum claim amount, pre-auth) run against this value:
// non-covered items cannot push a claim over or under a policy threshold.
func (c *NormalizedClaim) EligibleTotal() types.Money {
	var total types.Money
	for _, l := range c.Lines {
		if !l.Excluded {
			total += l.Amount
		}
	}
	return total
}

// ─────────────────────────────────────────────────────────────────────────────
// Result
// ─────────────────────────────────────────────────────────────────────────────

// Result is the complete, immutable outcome of one adjudication run.
type Result struct {
	Decision       Decision    `json:"decision"`
	ApprovedAmount types.Money `json:"approved_amount"`
	// Provisional marks a MANUAL_REVIEW amount as computed but not payable.
	Provisional bool        `json:"provisional"`
	Confidence  float64     `json:"confidence"`
	Reason      string      `json:"reason,omitempty"`
	Flags       []Flag      `json:"flags"`
	Deductions  []Deduction `json:"deductions"`
	BilledTotal types.Money `json:"billed_total"`
}

// BlockingFlags returns the subset of flags with BLOCKING severity.
func (r *Result) BlockingFlags() []Flag {
	var out []Flag
	for _, f := range r.Flags {
		if f.IsBlocking() {
			out = append(out, f)
		}
	}
	return out
}

// WarningCount returns the number of WARNING flags.
func warningCount(flags []Flag) int {
	n := 0
	for _, f := range flags {
		if f.Severity == SeverityWarning {
			n++
		}
	}
	return n
}
