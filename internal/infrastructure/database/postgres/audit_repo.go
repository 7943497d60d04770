package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

// AuditEntry is one row in the audit_log table.
type AuditEntry struct {
	EventID  string
	Action   string
	Entity   string
	EntityID string
	Detail   map[string]string
	At       time.Time
}

// AuditRepository persists audit events consumed from the audit.log topic.
type AuditRepository interface {
	// Insert writes one entry.  A duplicate event ID is silently ignored so
	// at-least-once delivery never produces double rows.
	Insert(ctx context.Context, e *AuditEntry) error
}

type auditRepository struct {
	conn   *Connection
	logger logging.Logger
}

// NewAuditRepository creates the PostgreSQL-backed audit repository.
func NewAuditRepository(conn *Connection, log logging.Logger) AuditRepository {
	return &auditRepository{conn: conn, logger: log}
}

func (r *auditRepository) Insert(ctx context.Context, e *AuditEntry) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to marshal audit detail")
	}
	_, err = r.conn.Pool().Exec(ctx, `
		INSERT INTO audit_log (event_id, action, entity, entity_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.Action, e.Entity, e.EntityID, detail, e.At,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to insert audit entry")
	}
	return nil
}
