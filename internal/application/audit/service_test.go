package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishield/opdclaims/internal/infrastructure/database/postgres"
	"github.com/medishield/opdclaims/internal/infrastructure/messaging/kafka"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

type fakeAuditRepo struct {
	entries []*postgres.AuditEntry
	err     error
}

func (r *fakeAuditRepo) Insert(ctx context.Context, e *postgres.AuditEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func auditMessage(t *testing.T) *kafka.Message {
	t.Helper()
	env, err := kafka.NewEventEnvelope("audit.log", "opdclaims", kafka.AuditLogPayload{
		Action:   "claim_adjudicated",
		Entity:   "claim",
		EntityID: "b7a9e9be-0000-4000-8000-000000000001",
		Detail:   map[string]string{"decision": "APPROVED"},
		At:       time.Now().UTC(),
	})
	require.NoError(t, err)
	pm, err := env.ToMessage(kafka.TopicAuditLog, "MEM-2026-000123")
	require.NoError(t, err)
	return &kafka.Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value}
}

func TestHandleMessage(t *testing.T) {
	t.Run("valid event inserted", func(t *testing.T) {
		repo := &fakeAuditRepo{}
		svc := NewService(repo, logging.NewNopLogger())

		err := svc.HandleMessage(context.Background(), auditMessage(t))
		require.NoError(t, err)
		require.Len(t, repo.entries, 1)
		assert.Equal(t, "claim_adjudicated", repo.entries[0].Action)
		assert.Equal(t, "claim", repo.entries[0].Entity)
		assert.NotEmpty(t, repo.entries[0].EventID)
	})

	t.Run("malformed envelope dropped without error", func(t *testing.T) {
		repo := &fakeAuditRepo{}
		svc := NewService(repo, logging.NewNopLogger())

		err := svc.HandleMessage(context.Background(), &kafka.Message{
			Topic: kafka.TopicAuditLog,
			Value: []byte("not json"),
		})
		assert.NoError(t, err)
		assert.Empty(t, repo.entries)
	})

	t.Run("database error propagates for retry", func(t *testing.T) {
		repo := &fakeAuditRepo{err: apperrors.New(apperrors.ErrCodeDatabaseError, "connection reset")}
		svc := NewService(repo, logging.NewNopLogger())

		err := svc.HandleMessage(context.Background(), auditMessage(t))
		assert.Error(t, err)
	})
}
