package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medishield/opdclaims/internal/domain/member"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

const pgUniqueViolation = "23505"

type memberRepository struct {
	conn   *Connection
	logger logging.Logger
}

// NewMemberRepository creates the PostgreSQL-backed member repository.
func NewMemberRepository(conn *Connection, log logging.Logger) member.Repository {
	return &memberRepository{conn: conn, logger: log}
}

func (r *memberRepository) Create(ctx context.Context, m *member.Member) error {
	now := time.Now().UTC()
	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO members (id, name, join_date, preferred_hospital, cashless,
			preauth_obtained, ytd_claimed, ytd_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		m.ID, m.Name, m.JoinDate, m.PreferredHospital, m.Cashless,
		m.PreauthObtained, int64(m.YTDClaimed), int64(m.YTDApproved), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.Newf(apperrors.ErrCodeMemberAlreadyExists,
				"member %s is already registered", m.ID)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to insert member")
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*member.Member, error) {
	var m member.Member
	var ytdClaimed, ytdApproved int64
	err := r.conn.Pool().QueryRow(ctx, `
		SELECT id, name, join_date, preferred_hospital, cashless,
			preauth_obtained, ytd_claimed, ytd_approved, created_at, updated_at
		FROM members WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.JoinDate, &m.PreferredHospital, &m.Cashless,
		&m.PreauthObtained, &ytdClaimed, &ytdApproved, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load member")
	}
	m.YTDClaimed = types.Money(ytdClaimed)
	m.YTDApproved = types.Money(ytdApproved)
	return &m, nil
}

func (r *memberRepository) ApplyAdjudication(ctx context.Context, id string, billed, approved types.Money) error {
	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE members
		SET ytd_claimed = ytd_claimed + $2,
			ytd_approved = ytd_approved + $3,
			updated_at = $4
		WHERE id = $1`,
		id, int64(billed), int64(approved), time.Now().UTC(),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to update member totals")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
	}
	return nil
}

func (r *memberRepository) Stats(ctx context.Context, id string) (*member.Stats, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &member.Stats{
		MemberID:    m.ID,
		Name:        m.Name,
		YTDClaimed:  m.YTDClaimed,
		YTDApproved: m.YTDApproved,
	}

	rows, err := r.conn.Pool().Query(ctx, `
		SELECT result->>'decision', COUNT(*)
		FROM claims
		WHERE member_id = $1 AND status = 'ADJUDICATED'
		GROUP BY result->>'decision'`, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to aggregate member stats")
	}
	defer rows.Close()

	for rows.Next() {
		var decision string
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan member stats")
		}
		stats.TotalClaims += count
		switch decision {
		case "APPROVED":
			stats.Approved = count
		case "PARTIAL":
			stats.Partial = count
		case "REJECTED":
			stats.Rejected = count
		case "MANUAL_REVIEW":
			stats.ManualReview = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to read member stats")
	}

	if stats.TotalClaims > 0 {
		stats.ApprovalRate = float64(stats.Approved+stats.Partial) / float64(stats.TotalClaims)
	}
	return stats, nil
}
