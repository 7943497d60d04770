package claim

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medishield/opdclaims/internal/domain/adjudication"
)

// ListFilter narrows and pages the claims listing.
type ListFilter struct {
	MemberID string
	Decision adjudication.Decision
	Limit    int
	Offset   int
}

// Repository is the persistence contract for claims.  Implementations live
// in internal/infrastructure/database/postgres.
type Repository interface {
	// Create inserts a claim in the RECEIVED state.
	Create(ctx context.Context, c *Claim) error

	// Update persists status, extraction output, and result changes.
	Update(ctx context.Context, c *Claim) error

	// GetByID loads a claim.  Returns ErrCodeClaimNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)

	// List returns claims matching the filter, newest first, plus the total
	// matching count for pagination.
	List(ctx context.Context, f ListFilter) ([]*Claim, int, error)

	// CountSameDay counts the member's adjudicated claims with the given
	// treatment date, excluding the claim identified by exclude.
	CountSameDay(ctx context.Context, memberID string, treatmentDate time.Time, exclude uuid.UUID) (int, error)

	// CountSince counts the member's adjudicated claims with a treatment
	// date in [from, until), excluding the claim identified by exclude.
	CountSince(ctx context.Context, memberID string, from, until time.Time, exclude uuid.UUID) (int, error)
}
