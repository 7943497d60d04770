package member

import (
	"context"

	"github.com/medishield/opdclaims/pkg/types"
)

// Stats is the aggregate view returned by the member stats endpoint.
type Stats struct {
	MemberID      string      `json:"member_id"`
	Name          string      `json:"name"`
	TotalClaims   int         `json:"total_claims"`
	Approved      int         `json:"approved"`
	Partial       int         `json:"partial"`
	Rejected      int         `json:"rejected"`
	ManualReview  int         `json:"manual_review"`
	YTDClaimed    types.Money `json:"ytd_claimed"`
	YTDApproved   types.Money `json:"ytd_approved"`
	ApprovalRate  float64     `json:"approval_rate"`
}

// Repository is the persistence contract for members.  Implementations live
// in internal/infrastructure/database/postgres.
type Repository interface {
	// Create inserts a new member.  Returns ErrCodeMemberAlreadyExists when
	// the ID is taken.
	Create(ctx context.Context, m *Member) error

	// GetByID loads a member.  Returns ErrCodeMemberNotFound when absent.
	GetByID(ctx context.Context, id string) (*Member, error)

	// ApplyAdjudication atomically adds the billed and approved amounts to
	// the member's year-to-date totals.  Callers serialize per-member
	// invocations with a distributed lock; the update itself is a single
	// statement so concurrent writers can never interleave partial totals.
	ApplyAdjudication(ctx context.Context, id string, billed, approved types.Money) error

	// Stats aggregates the member's claim counts and totals.
	Stats(ctx context.Context, id string) (*Stats, error)
}
