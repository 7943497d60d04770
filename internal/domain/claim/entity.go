// Package claim implements the Claim bounded context: the uploaded-claim
// aggregate, its lifecycle states, and the repository contract.  A claim is
// created at upload time, carries the stored document references and the
// extraction output, and is finalised with the engine's result.
package claim

import (
	"time"

	"github.com/google/uuid"

	"github.com/medishield/opdclaims/internal/domain/adjudication"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

// Status is the claim lifecycle state.
type Status string

const (
	// StatusReceived: documents stored, extraction/adjudication not yet done.
	StatusReceived Status = "RECEIVED"
	// StatusAdjudicated: a final Result is attached.
	StatusAdjudicated Status = "ADJUDICATED"
	// StatusFailed: extraction or an input error prevented adjudication.
	StatusFailed Status = "FAILED"
)

// DocumentKind distinguishes the uploaded files of one claim.
type DocumentKind string

const (
	DocPrescription DocumentKind = "prescription"
	DocBill         DocumentKind = "bill"
	DocTestReport   DocumentKind = "test_report"
)

// Document references one stored object in the claim-documents bucket.
type Document struct {
	Kind        DocumentKind `json:"kind"`
	ObjectKey   string       `json:"object_key"`
	FileName    string       `json:"file_name"`
	ContentType string       `json:"content_type"`
	SizeBytes   int64        `json:"size_bytes"`
}

// Claim is the aggregate root for one uploaded claim.
type Claim struct {
	ID            uuid.UUID  `json:"id"`
	MemberID      string     `json:"member_id"`
	TreatmentDate time.Time  `json:"treatment_date"`
	Status        Status     `json:"status"`
	Documents     []Document `json:"documents"`

	// Extracted is the raw structured extraction output, kept verbatim for
	// audit and for the results endpoint.
	Extracted *adjudication.RawClaim `json:"extracted,omitempty"`

	// Result is set when Status is ADJUDICATED.
	Result *adjudication.Result `json:"result,omitempty"`

	// FailureReason is set when Status is FAILED.
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// New constructs a claim in the RECEIVED state.
func New(memberID string, treatmentDate time.Time, docs []Document) (*Claim, error) {
	if memberID == "" {
		return nil, apperrors.New(apperrors.ErrCodeMemberIDInvalid, "member id is required")
	}
	if treatmentDate.IsZero() {
		return nil, apperrors.New(apperrors.ErrCodeClaimDateFormat, "treatment date is required")
	}
	hasPrescription, hasBill := false, false
	for _, d := range docs {
		switch d.Kind {
		case DocPrescription:
			hasPrescription = true
		case DocBill:
			hasBill = true
		}
	}
	if !hasPrescription || !hasBill {
		return nil, apperrors.New(apperrors.ErrCodeClaimMissingDocument,
			"prescription and bill documents are required")
	}
	return &Claim{
		ID:            uuid.New(),
		MemberID:      memberID,
		TreatmentDate: treatmentDate,
		Status:        StatusReceived,
		Documents:     docs,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Finalize attaches the adjudication result and moves the claim to
// ADJUDICATED.  Finalizing twice is a conflict.
func (c *Claim) Finalize(extracted *adjudication.RawClaim, result *adjudication.Result, at time.Time) error {
	if c.Status != StatusReceived {
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"claim %s is %s and cannot be finalized", c.ID, c.Status)
	}
	c.Extracted = extracted
	c.Result = result
	c.Status = StatusAdjudicated
	c.ProcessedAt = &at
	return nil
}

// Fail records an extraction or input failure.
func (c *Claim) Fail(reason string, at time.Time) error {
	if c.Status != StatusReceived {
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"claim %s is %s and cannot be failed", c.ID, c.Status)
	}
	c.Status = StatusFailed
	c.FailureReason = reason
	c.ProcessedAt = &at
	return nil
}

// ApprovedAmount returns the payable amount, zero when not adjudicated.
func (c *Claim) ApprovedAmount() types.Money {
	if c.Result == nil {
		return 0
	}
	return c.Result.ApprovedAmount
}
