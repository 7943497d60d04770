// Package member implements the Member bounded context: the aggregate root,
// validation rules, and the repository contract.  Year-to-date totals are part
// of the member record because the adjudication engine reads them as policy
// facts; their mutation ordering is owned by the storage layer.
package member

import (
	"regexp"
	"strings"
	"time"

	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

// reMemberID matches the issued member ID format, e.g. "MEM-2026-000123".
var reMemberID = regexp.MustCompile(`^MEM-\d{4}-\d{4,6}$`)

// Member is the aggregate root for an insured member.  One policy per member;
// dependents are out of scope.
type Member struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	JoinDate          time.Time   `json:"join_date"`
	PreferredHospital string      `json:"preferred_hospital,omitempty"`
	Cashless          bool        `json:"cashless"`
	PreauthObtained   bool        `json:"preauth_obtained"`
	YTDClaimed        types.Money `json:"ytd_claimed"`
	YTDApproved       types.Money `json:"ytd_approved"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewMember constructs and validates a member record at registration time.
func NewMember(id, name string, joinDate time.Time, preferredHospital string, cashless bool) (*Member, error) {
	m := &Member{
		ID:                strings.TrimSpace(id),
		Name:              strings.TrimSpace(name),
		JoinDate:          joinDate,
		PreferredHospital: strings.TrimSpace(preferredHospital),
		Cashless:          cashless,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate enforces the member invariants.
func (m *Member) Validate() error {
	if !reMemberID.MatchString(m.ID) {
		return apperrors.Newf(apperrors.ErrCodeMemberIDInvalid,
			"member id %q does not match MEM-YYYY-NNNNNN", m.ID)
	}
	if m.Name == "" {
		return apperrors.New(apperrors.ErrCodeMemberDataInvalid, "member name is required")
	}
	if m.JoinDate.IsZero() {
		return apperrors.New(apperrors.ErrCodeMemberDataInvalid, "member join date is required")
	}
	if m.YTDClaimed.IsNegative() || m.YTDApproved.IsNegative() {
		return apperrors.New(apperrors.ErrCodeMemberDataInvalid, "year-to-date totals must not be negative")
	}
	return nil
}

// RecordAdjudication accumulates one adjudicated claim into the member's
// year-to-date totals.  Provisional (manual review) amounts must not be
// recorded; the caller applies this only for final decisions.
func (m *Member) RecordAdjudication(billed, approved types.Money) error {
	if billed.IsNegative() || approved.IsNegative() {
		return apperrors.New(apperrors.ErrCodeMemberDataInvalid, "amounts must not be negative")
	}
	if approved > billed {
		return apperrors.New(apperrors.ErrCodeMemberDataInvalid, "approved amount exceeds billed amount")
	}
	m.YTDClaimed += billed
	m.YTDApproved += approved
	m.UpdatedAt = time.Now().UTC()
	return nil
}
