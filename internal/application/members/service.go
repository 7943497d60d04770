// Package members implements the member-facing application operations:
// registration, lookup, and claim statistics.
package members

import (
	"context"
	"time"

	"github.com/medishield/opdclaims/internal/domain/member"
	"github.com/medishield/opdclaims/internal/infrastructure/messaging/kafka"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

const dateLayout = "2006-01-02"

// EventPublisher publishes domain events.  Satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType, key string, payload interface{}) error
}

// RegisterInput is the registration request after transport decoding.
type RegisterInput struct {
	MemberID          string `json:"member_id"`
	Name              string `json:"name"`
	JoinDate          string `json:"join_date"` // YYYY-MM-DD
	PreferredHospital string `json:"preferred_hospital"`
	Cashless          bool   `json:"cashless"`
}

// Service orchestrates member operations over the repository and event bus.
type Service struct {
	repo      member.Repository
	publisher EventPublisher
	logger    logging.Logger
}

// NewService creates the member application service.
func NewService(repo member.Repository, publisher EventPublisher, log logging.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: log}
}

// Register validates and persists a new member, then announces it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*member.Member, error) {
	joinDate, err := time.Parse(dateLayout, in.JoinDate)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCodeMemberDataInvalid,
			"join date %q is not in YYYY-MM-DD format", in.JoinDate)
	}

	m, err := member.NewMember(in.MemberID, in.Name, joinDate, in.PreferredHospital, in.Cashless)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("Member registered",
		logging.String("member_id", m.ID),
		logging.String("join_date", in.JoinDate),
	)

	if s.publisher != nil {
		payload := kafka.MemberRegisteredPayload{
			MemberID:     m.ID,
			Name:         m.Name,
			JoinDate:     in.JoinDate,
			RegisteredAt: m.CreatedAt,
		}
		if err := s.publisher.PublishEvent(ctx, kafka.TopicMemberRegistered, "member.registered", m.ID, payload); err != nil {
			// Registration already committed; the event is best effort.
			s.logger.Warn("Failed to publish member.registered", logging.Err(err))
		}
	}
	return m, nil
}

// Get loads one member.
func (s *Service) Get(ctx context.Context, id string) (*member.Member, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats aggregates the member's adjudication history.
func (s *Service) Stats(ctx context.Context, id string) (*member.Stats, error) {
	return s.repo.Stats(ctx, id)
}
