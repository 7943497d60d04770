package adjudication

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

// dateLayout is the only accepted date format.  Anything else is a hard
// input error, never silently coerced.
const dateLayout = "2006-01-02"

// categoryKeywords infers a coverage category from free-text descriptions
// when the extraction service did not label the line.  Order matters: the
// first matching family wins, mirroring the specificity ordering of the
// policy document (dental before diagnostic, so "tooth x-ray" lands in
// dental).
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryDental, []string{"tooth", "dental", "root canal", "filling", "extraction", "decay"}},
	{CategoryVision, []string{"eye", "vision", "glasses", "contact lens", "lasik"}},
	{CategoryAlternativeMedicine, []string{"ayurved", "homeopath", "unani", "panchakarma", "chronic joint"}},
	{CategoryDiagnosticTests, []string{"mri", "ct scan", "ultrasound", "x-ray", "blood test", "scan"}},
	{CategoryPharmacy, []string{"tablet", "capsule", "syrup", "medicine", "pharmacy", "drug"}},
}

// knownCategories maps explicit category labels to their canonical value.
var knownCategories = map[string]Category{
	"consultation":         CategoryConsultation,
	"consultation_fees":    CategoryConsultation,
	"diagnostic_tests":     CategoryDiagnosticTests,
	"diagnostics":          CategoryDiagnosticTests,
	"pharmacy":             CategoryPharmacy,
	"dental":               CategoryDental,
	"vision":               CategoryVision,
	"alternative_medicine": CategoryAlternativeMedicine,
}

// Normalizer turns raw extraction output into a NormalizedClaim.  Hard
// failures (unparseable dates, non-positive amounts, missing documents)
// return an error; tolerable oddities become WARNING flags.
type Normalizer struct {
	policy Policy
}

// NewNormalizer constructs a Normalizer bound to a policy table.
func NewNormalizer(policy Policy) *Normalizer {
	return &Normalizer{policy: policy}
}

// Normalize validates and parses one raw claim against the member snapshot
// and the treatment date stated on the upload.
func (n *Normalizer) Normalize(raw RawClaim, member MemberSnapshot, statedDate string) (*NormalizedClaim, error) {
	if !raw.HasPrescription {
		return nil, apperrors.New(apperrors.ErrCodeClaimMissingDocument, "prescription document is required")
	}
	if !raw.HasBill {
		return nil, apperrors.New(apperrors.ErrCodeClaimMissingDocument, "bill document is required")
	}

	treatDate, err := parseDate(statedDate)
	if err != nil {
		return nil, err
	}
	if len(raw.BillLines) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeClaimInvalidAmount, "bill contains no line items")
	}

	nc := &NormalizedClaim{
		TreatmentDate:   treatDate,
		Hospital:        strings.TrimSpace(raw.HospitalName),
		Diagnosis:       strings.ToLower(strings.TrimSpace(raw.Diagnosis)),
		DoctorReg:       strings.TrimSpace(raw.DoctorRegistration),
		PreauthObtained: false,
	}
	for _, t := range raw.Treatments {
		nc.Treatments = append(nc.Treatments, strings.ToLower(strings.TrimSpace(t)))
	}

	// Document confidences: only documents actually present contribute.
	nc.DocConfidences = append(nc.DocConfidences, raw.PrescriptionConfidence, raw.BillConfidence)
	if raw.HasTestReport {
		nc.DocConfidences = append(nc.DocConfidences, raw.TestReportConfidence)
	}

	// Bill lines: strict amount parsing, category resolution with default.
	defaulted := false
	for i, line := range raw.BillLines {
		amount, err := types.ParseMoney(line.Amount)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrCodeClaimInvalidAmount,
				"bill line %d: %v", i+1, err)
		}
		if amount.IsZero() {
			return nil, apperrors.Newf(apperrors.ErrCodeClaimInvalidAmount,
				"bill line %d: amount must be greater than zero", i+1)
		}
		cat, known := resolveCategory(line.Category, line.Description)
		if !known {
			defaulted = true
		}
		nc.Lines = append(nc.Lines, BillLine{
			Description: strings.ToLower(strings.TrimSpace(line.Description)),
			Category:    cat,
			Amount:      amount,
		})
	}
	if defaulted {
		nc.Flags = append(nc.Flags, Flag{
			Code:     FlagUnknownCategoryDefaulted,
			Severity: SeverityWarning,
			Message:  "one or more bill lines had no recognizable category; defaulted to consultation",
		})
	}

	// Hospital network status: case-insensitive substring against the
	// configured network list.  Unknown hospitals are treated as non-network
	// with a warning; strict mode upgrades this to BLOCKING.
	nc.Network = n.isNetworkHospital(nc.Hospital)
	if !nc.Network {
		sev := SeverityWarning
		if n.policy.RejectUnknownHospital {
			sev = SeverityBlocking
		}
		nc.Flags = append(nc.Flags, Flag{
			Code:     FlagUnknownHospital,
			Severity: sev,
			Message:  fmt.Sprintf("hospital %q is not on the network list; treated as non-network", nc.Hospital),
		})
	}

	// Loose name match: case-insensitive, whitespace-normalized, at least
	// half of the shorter name's tokens must appear in the longer.
	if raw.PatientName != "" && !namesMatch(member.Name, raw.PatientName) {
		nc.Flags = append(nc.Flags, Flag{
			Code:     FlagNameMismatch,
			Severity: SeverityWarning,
			Message:  "patient name on documents does not match member record",
		})
	}

	// Loose date match: each dated document must fall within the configured
	// window of the stated treatment date.
	if mismatch, err := n.datesMismatch(treatDate, raw.TreatmentDate, raw.BillDate, raw.PrescriptionDate); err != nil {
		return nil, err
	} else if mismatch {
		nc.Flags = append(nc.Flags, Flag{
			Code:     FlagDateMismatch,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("document dates differ from treatment date by more than %d day(s)", n.policy.DateWindowDays),
		})
	}

	return nc, nil
}

// parseDate accepts only strict YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.Newf(apperrors.ErrCodeClaimDateFormat,
			"date %q is not in YYYY-MM-DD format", s)
	}
	return t, nil
}

// resolveCategory maps an explicit label or description keywords to a
// category.  The second return value is false when the consultation default
// was applied because nothing matched.
func resolveCategory(label, description string) (Category, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if cat, ok := knownCategories[l]; ok {
		return cat, true
	}
	combined := strings.ToLower(description)
	if l != "" {
		combined = l + " " + combined
	}
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(combined, kw) {
				return group.category, true
			}
		}
	}
	if l == "" && strings.Contains(combined, "consult") {
		return CategoryConsultation, true
	}
	return CategoryConsultation, false
}

// isNetworkHospital reports whether the hospital name contains any network
// chain name, case-insensitively.
func (n *Normalizer) isNetworkHospital(hospital string) bool {
	h := strings.ToLower(hospital)
	for _, chain := range n.policy.NetworkHospitals {
		if chain != "" && strings.Contains(h, strings.ToLower(chain)) {
			return true
		}
	}
	return false
}

// namesMatch implements the loose name tolerance: lower-case both names,
// collapse whitespace, and require at least half of the shorter name's tokens
// to appear in the other name's token set.
func namesMatch(a, b string) bool {
	ta := strings.Fields(strings.ToLower(a))
	tb := strings.Fields(strings.ToLower(b))
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	short, long := ta, tb
	if len(tb) < len(ta) {
		short, long = tb, ta
	}
	set := make(map[string]bool, len(long))
	for _, tok := range long {
		set[tok] = true
	}
	matched := 0
	for _, tok := range short {
		if set[tok] {
			matched++
		}
	}
	return matched*2 >= len(short)
}

// datesMismatch parses every supplied document date (strict format) and
// reports whether any falls outside the tolerance window around stated.
func (n *Normalizer) datesMismatch(stated time.Time, docDates ...string) (bool, error) {
	window := time.Duration(n.policy.DateWindowDays) * 24 * time.Hour
	for _, ds := range docDates {
		if strings.TrimSpace(ds) == "" {
			continue
		}
		d, err := parseDate(ds)
		if err != nil {
			return false, err
		}
		diff := d.Sub(stated)
		if diff < 0 {
			diff = -diff
		}
		if diff > window {
			return true, nil
		}
	}
	return false, nil
}
