// Package audit turns audit.log events into audit_log table rows.  It is the
// handler half of the worker binary; the kafka consumer drives it.
package audit

import (
	"context"

	"github.com/medishield/opdclaims/internal/infrastructure/database/postgres"
	"github.com/medishield/opdclaims/internal/infrastructure/messaging/kafka"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
)

// Service persists consumed audit events.
type Service struct {
	repo   postgres.AuditRepository
	logger logging.Logger
}

// NewService creates the audit worker service.
func NewService(repo postgres.AuditRepository, log logging.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// HandleMessage is the kafka.MessageHandler for the audit.log topic.
func (s *Service) HandleMessage(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		// Malformed envelopes cannot succeed on retry; log and drop.
		s.logger.Error("Discarding malformed audit event", logging.Err(err))
		return nil
	}

	var payload kafka.AuditLogPayload
	if err := env.DecodePayload(&payload); err != nil {
		s.logger.Error("Discarding undecodable audit payload",
			logging.String("event_id", env.EventID),
			logging.Err(err),
		)
		return nil
	}

	entry := &postgres.AuditEntry{
		EventID:  env.EventID,
		Action:   payload.Action,
		Entity:   payload.Entity,
		EntityID: payload.EntityID,
		Detail:   payload.Detail,
		At:       payload.At,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		// Database errors are retryable; let the consumer back off.
		return err
	}

	s.logger.Debug("Audit entry recorded",
		logging.String("action", payload.Action),
		logging.String("entity_id", payload.EntityID),
	)
	return nil
}
