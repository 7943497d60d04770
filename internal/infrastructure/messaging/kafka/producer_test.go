package kafka

import (
	"context"
	"encoding/json"
	"testing"

	segmentio "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

type fakeWriter struct {
	messages []segmentio.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...segmentio.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	t.Run("writes keyed message with headers", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewProducerWithWriter(w, logging.NewNopLogger())

		err := p.Publish(context.Background(), &ProducerMessage{
			Topic:   TopicClaimReceived,
			Key:     []byte("MEM-2026-000123"),
			Value:   []byte(`{}`),
			Headers: map[string]string{"event_type": "claim.received"},
		})
		require.NoError(t, err)
		require.Len(t, w.messages, 1)
		assert.Equal(t, TopicClaimReceived, w.messages[0].Topic)
		assert.Equal(t, []byte("MEM-2026-000123"), w.messages[0].Key)
		require.Len(t, w.messages[0].Headers, 1)
		assert.Equal(t, int64(1), p.Sent())
	})

	t.Run("missing topic or value rejected", func(t *testing.T) {
		p := NewProducerWithWriter(&fakeWriter{}, logging.NewNopLogger())
		assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Value: []byte("x")}))
		assert.Error(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t"}))
	})

	t.Run("writer failure counted", func(t *testing.T) {
		w := &fakeWriter{err: assert.AnError}
		p := NewProducerWithWriter(w, logging.NewNopLogger())

		err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessageQueueError))
		assert.Equal(t, int64(1), p.Failed())
	})

	t.Run("closed producer rejects", func(t *testing.T) {
		p := NewProducerWithWriter(&fakeWriter{}, logging.NewNopLogger())
		require.NoError(t, p.Close())

		err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
		assert.ErrorIs(t, err, ErrProducerClosed)
	})
}

func TestPublishEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, logging.NewNopLogger())

	err := p.PublishEvent(context.Background(), TopicMemberRegistered, "member.registered",
		"MEM-2026-000123", MemberRegisteredPayload{MemberID: "MEM-2026-000123", Name: "Rahul"})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &env))
	assert.Equal(t, "member.registered", env.EventType)
	assert.Equal(t, "opdclaims", env.Source)

	var payload MemberRegisteredPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "Rahul", payload.Name)
}
