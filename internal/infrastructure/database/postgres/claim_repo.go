package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/domain/claim"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

type claimRepository struct {
	conn   *Connection
	logger logging.Logger
}

// NewClaimRepository creates the PostgreSQL-backed claim repository.
// Documents, extraction output, and results are stored as JSONB; the columns
// the service filters on (member, status, decision, treatment date) are
// regular columns.
func NewClaimRepository(conn *Connection, log logging.Logger) claim.Repository {
	return &claimRepository{conn: conn, logger: log}
}

func (r *claimRepository) Create(ctx context.Context, c *claim.Claim) error {
	docs, err := json.Marshal(c.Documents)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to marshal documents")
	}
	_, err = r.conn.Pool().Exec(ctx, `
		INSERT INTO claims (id, member_id, treatment_date, status, documents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.MemberID, c.TreatmentDate, c.Status, docs, c.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to insert claim")
	}
	return nil
}

func (r *claimRepository) Update(ctx context.Context, c *claim.Claim) error {
	var extracted, result []byte
	var err error
	if c.Extracted != nil {
		if extracted, err = json.Marshal(c.Extracted); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to marshal extraction output")
		}
	}
	if c.Result != nil {
		if result, err = json.Marshal(c.Result); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to marshal result")
		}
	}

	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE claims
		SET status = $2, extracted = $3, result = $4,
			failure_reason = $5, processed_at = $6
		WHERE id = $1`,
		c.ID, c.Status, extracted, result, nullableString(c.FailureReason), c.ProcessedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to update claim")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.ErrCodeClaimNotFound, "claim %s not found", c.ID)
	}
	return nil
}

func (r *claimRepository) GetByID(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	row := r.conn.Pool().QueryRow(ctx, `
		SELECT id, member_id, treatment_date, status, documents,
			extracted, result, failure_reason, created_at, processed_at
		FROM claims WHERE id = $1`, id)

	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeClaimNotFound, "claim %s not found", id)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load claim")
	}
	return c, nil
}

func (r *claimRepository) List(ctx context.Context, f claim.ListFilter) ([]*claim.Claim, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0

	if f.MemberID != "" {
		n++
		where += fmt.Sprintf(" AND member_id = $%d", n)
		args = append(args, f.MemberID)
	}
	if f.Decision != "" {
		n++
		where += fmt.Sprintf(" AND result->>'decision' = $%d", n)
		args = append(args, string(f.Decision))
	}

	var total int
	if err := r.conn.Pool().QueryRow(ctx, "SELECT COUNT(*) FROM claims "+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to count claims")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
		SELECT id, member_id, treatment_date, status, documents,
			extracted, result, failure_reason, created_at, processed_at
		FROM claims %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.conn.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list claims")
	}
	defer rows.Close()

	var claims []*claim.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan claim")
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to read claims")
	}
	return claims, total, nil
}

func (r *claimRepository) CountSameDay(ctx context.Context, memberID string, treatmentDate time.Time, exclude uuid.UUID) (int, error) {
	var count int
	err := r.conn.Pool().QueryRow(ctx, `
		SELECT COUNT(*) FROM claims
		WHERE member_id = $1 AND treatment_date = $2
			AND status = 'ADJUDICATED' AND id <> $3`,
		memberID, treatmentDate, exclude,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to count same-day claims")
	}
	return count, nil
}

func (r *claimRepository) CountSince(ctx context.Context, memberID string, from, until time.Time, exclude uuid.UUID) (int, error) {
	var count int
	err := r.conn.Pool().QueryRow(ctx, `
		SELECT COUNT(*) FROM claims
		WHERE member_id = $1 AND treatment_date >= $2 AND treatment_date < $3
			AND status = 'ADJUDICATED' AND id <> $4`,
		memberID, from, until, exclude,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to count recent claims")
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*claim.Claim, error) {
	var c claim.Claim
	var docs, extracted, result []byte
	var failureReason *string

	err := row.Scan(&c.ID, &c.MemberID, &c.TreatmentDate, &c.Status, &docs,
		&extracted, &result, &failureReason, &c.CreatedAt, &c.ProcessedAt)
	if err != nil {
		return nil, err
	}

	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &c.Documents); err != nil {
			return nil, err
		}
	}
	if len(extracted) > 0 {
		c.Extracted = &adjudication.RawClaim{}
		if err := json.Unmarshal(extracted, c.Extracted); err != nil {
			return nil, err
		}
	}
	if len(result) > 0 {
		c.Result = &adjudication.Result{}
		if err := json.Unmarshal(result, c.Result); err != nil {
			return nil, err
		}
	}
	if failureReason != nil {
		c.FailureReason = *failureReason
	}
	return &c, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
