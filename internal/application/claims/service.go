// Package claims implements the claim intake and adjudication workflow: store
// documents, extract structured fields, run the adjudication engine, persist
// the result, and update the member's year-to-date totals under a per-member
// lock.
package claims

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/domain/claim"
	"github.com/medishield/opdclaims/internal/domain/member"
	"github.com/medishield/opdclaims/internal/infrastructure/database/redis"
	"github.com/medishield/opdclaims/internal/infrastructure/extraction"
	"github.com/medishield/opdclaims/internal/infrastructure/messaging/kafka"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/prometheus"
	"github.com/medishield/opdclaims/internal/infrastructure/storage/minio"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

const (
	dateLayout       = "2006-01-02"
	maxDocumentBytes = 10 * 1024 * 1024
	idempotencyTTL   = 24 * time.Hour
)

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// EventPublisher publishes domain events.  Satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType, key string, payload interface{}) error
}

// IdempotencyStore reserves upload fingerprints.  Satisfied by *redis.Client.
type IdempotencyStore interface {
	Key(parts ...string) string
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// EngineProvider returns the current adjudication engine.  Indirection lets
// the policy table hot-reload without restarting in-flight services.
type EngineProvider func() *adjudication.Engine

// DocumentUpload is one uploaded file after transport decoding.
type DocumentUpload struct {
	Kind        claim.DocumentKind
	FileName    string
	ContentType string
	Data        []byte
}

// UploadInput is the claim upload request.
type UploadInput struct {
	MemberID      string
	TreatmentDate string // YYYY-MM-DD
	Documents     []DocumentUpload
}

// Service orchestrates the upload-to-decision workflow.
type Service struct {
	claims    claim.Repository
	members   member.Repository
	docs      minio.DocumentStore
	extractor extraction.Extractor
	locks     redis.LockFactory
	idem      IdempotencyStore
	publisher EventPublisher
	engine    EngineProvider
	logger    logging.Logger
	metrics   *prometheus.AppMetrics
}

// NewService creates the claims application service.
func NewService(
	claims claim.Repository,
	members member.Repository,
	docs minio.DocumentStore,
	extractor extraction.Extractor,
	locks redis.LockFactory,
	idem IdempotencyStore,
	publisher EventPublisher,
	engine EngineProvider,
	log logging.Logger,
) *Service {
	return &Service{
		claims:    claims,
		members:   members,
		docs:      docs,
		extractor: extractor,
		locks:     locks,
		idem:      idem,
		publisher: publisher,
		engine:    engine,
		logger:    log,
	}
}

// WithMetrics attaches the metrics sink.  The service works without one;
// tests and the offline CLI run unmetered.
func (s *Service) WithMetrics(m *prometheus.AppMetrics) *Service {
	s.metrics = m
	return s
}

// Upload runs the full intake-and-adjudication workflow for one claim.  The
// returned claim is ADJUDICATED on success and FAILED when extraction or the
// engine rejected the input outright; in the FAILED case the error explains
// why.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*claim.Claim, error) {
	mem, err := s.members.GetByID(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}

	treatmentDate, err := time.Parse(dateLayout, in.TreatmentDate)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCodeClaimDateFormat,
			"treatment date %q is not in YYYY-MM-DD format", in.TreatmentDate)
	}

	if err := validateDocuments(in.Documents); err != nil {
		return nil, err
	}

	if err := s.reserveUpload(ctx, in); err != nil {
		return nil, err
	}

	// Store documents first; the claim row only references object keys.  The
	// claim ID is allocated up front so all of its objects share one prefix.
	claimID := uuid.New()
	stored := make([]claim.Document, 0, len(in.Documents))
	for _, d := range in.Documents {
		key := minio.ObjectKey(claimID.String(), string(d.Kind), d.FileName)
		res, err := s.docs.Upload(ctx, &minio.UploadRequest{
			ObjectKey:   key,
			Data:        d.Data,
			ContentType: d.ContentType,
			Metadata:    map[string]string{"member_id": in.MemberID},
		})
		if err != nil {
			return nil, err
		}
		stored = append(stored, claim.Document{
			Kind:        d.Kind,
			ObjectKey:   res.ObjectKey,
			FileName:    d.FileName,
			ContentType: d.ContentType,
			SizeBytes:   res.Size,
		})
	}

	c, err := claim.New(in.MemberID, treatmentDate, stored)
	if err != nil {
		return nil, err
	}
	c.ID = claimID
	if err := s.claims.Create(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ClaimsReceivedTotal.WithLabelValues().Inc()
		for _, d := range in.Documents {
			s.metrics.DocumentBytesTotal.WithLabelValues(string(d.Kind)).Add(float64(len(d.Data)))
		}
	}

	s.publish(ctx, kafka.TopicClaimReceived, "claim.received", c.MemberID, kafka.ClaimReceivedPayload{
		ClaimID:       c.ID.String(),
		MemberID:      c.MemberID,
		TreatmentDate: in.TreatmentDate,
		DocumentCount: len(stored),
		ReceivedAt:    c.CreatedAt,
	})

	// Extraction happens outside the member lock; it is the slow part and
	// touches no shared state.
	extractStart := time.Now()
	rawClaims, err := s.extractor.Extract(ctx, extractionInputs(in.Documents))
	if s.metrics != nil {
		prometheus.RecordExtractionCall(s.metrics, err == nil, time.Since(extractStart))
	}
	if err != nil {
		return s.failClaim(ctx, c, err)
	}

	return s.adjudicate(ctx, c, mem, rawClaims, in.TreatmentDate)
}

// adjudicate runs the engine and applies the outcome under the member lock so
// concurrent uploads for one member see each other's YTD updates.
func (s *Service) adjudicate(ctx context.Context, c *claim.Claim, mem *member.Member, rawClaims []adjudication.RawClaim, statedDate string) (*claim.Claim, error) {
	start := time.Now()
	mutex := s.locks.NewMutex("member:" + mem.ID)
	if err := mutex.Lock(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeCacheError, "failed to acquire member lock")
	}
	if s.metrics != nil {
		s.metrics.LockWaitDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	}
	defer func() {
		if err := mutex.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release member lock", logging.Err(err))
		}
	}()

	// Reload under the lock; another upload may have moved the totals.
	mem, err := s.members.GetByID(ctx, mem.ID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.snapshot(ctx, c, mem)
	if err != nil {
		return nil, err
	}

	result, err := s.engine().Adjudicate(snapshot, rawClaims, statedDate)
	if err != nil {
		return s.failClaim(ctx, c, err)
	}

	now := time.Now().UTC()
	var extracted *adjudication.RawClaim
	if len(rawClaims) == 1 {
		extracted = &rawClaims[0]
	}
	if err := c.Finalize(extracted, result, now); err != nil {
		return nil, err
	}
	if err := s.claims.Update(ctx, c); err != nil {
		return nil, err
	}

	// Provisional (manual review) amounts are not payable and must not move
	// the member's totals.
	if !result.Provisional {
		if err := s.members.ApplyAdjudication(ctx, mem.ID, result.BilledTotal, result.ApprovedAmount); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		prometheus.RecordAdjudication(s.metrics, string(result.Decision), int64(result.ApprovedAmount), time.Since(start))
		for _, f := range result.Flags {
			s.metrics.FlagsRaisedTotal.WithLabelValues(f.Code, string(f.Severity)).Inc()
		}
		for _, d := range result.Deductions {
			s.metrics.DeductionsTotal.WithLabelValues(string(d.Type)).Inc()
		}
	}

	s.logger.Info("Claim adjudicated",
		logging.String("claim_id", c.ID.String()),
		logging.String("member_id", mem.ID),
		logging.String("decision", string(result.Decision)),
		logging.Int64("approved", int64(result.ApprovedAmount)),
		logging.Float64("confidence", result.Confidence),
	)

	s.publish(ctx, kafka.TopicClaimAdjudicated, "claim.adjudicated", mem.ID, kafka.ClaimAdjudicatedPayload{
		ClaimID:        c.ID.String(),
		MemberID:       mem.ID,
		Decision:       string(result.Decision),
		ApprovedAmount: int64(result.ApprovedAmount),
		BilledTotal:    int64(result.BilledTotal),
		Confidence:     result.Confidence,
		Provisional:    result.Provisional,
		ProcessedAt:    now,
	})
	s.publish(ctx, kafka.TopicAuditLog, "audit.log", mem.ID, kafka.AuditLogPayload{
		Action:   "claim_adjudicated",
		Entity:   "claim",
		EntityID: c.ID.String(),
		Detail: map[string]string{
			"member_id": mem.ID,
			"decision":  string(result.Decision),
			"reason":    result.Reason,
		},
		At: now,
	})
	return c, nil
}

// snapshot assembles the deterministic member view the engine reads.
func (s *Service) snapshot(ctx context.Context, c *claim.Claim, mem *member.Member) (adjudication.MemberSnapshot, error) {
	sameDay, err := s.claims.CountSameDay(ctx, mem.ID, c.TreatmentDate, c.ID)
	if err != nil {
		return adjudication.MemberSnapshot{}, err
	}
	monthAgo := c.TreatmentDate.AddDate(0, 0, -30)
	lastMonth, err := s.claims.CountSince(ctx, mem.ID, monthAgo, c.TreatmentDate, c.ID)
	if err != nil {
		return adjudication.MemberSnapshot{}, err
	}

	return adjudication.MemberSnapshot{
		MemberID:        mem.ID,
		Name:            mem.Name,
		JoinDate:        mem.JoinDate,
		YTDApproved:     mem.YTDApproved,
		YTDClaimed:      mem.YTDClaimed,
		PreauthObtained: mem.PreauthObtained,
		History: adjudication.ClaimHistory{
			SameDayClaims:   sameDay,
			LastMonthClaims: lastMonth,
		},
	}, nil
}

func (s *Service) failClaim(ctx context.Context, c *claim.Claim, cause error) (*claim.Claim, error) {
	now := time.Now().UTC()
	if err := c.Fail(cause.Error(), now); err != nil {
		return nil, err
	}
	if err := s.claims.Update(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		prometheus.RecordError(s.metrics, "claims", string(apperrors.GetCode(cause)))
	}
	s.logger.Warn("Claim failed",
		logging.String("claim_id", c.ID.String()),
		logging.Err(cause),
	)
	s.publish(ctx, kafka.TopicClaimFailed, "claim.failed", c.MemberID, kafka.ClaimFailedPayload{
		ClaimID:  c.ID.String(),
		MemberID: c.MemberID,
		Reason:   cause.Error(),
		FailedAt: now,
	})
	return c, cause
}

// reserveUpload rejects byte-identical re-submissions within the TTL window.
func (s *Service) reserveUpload(ctx context.Context, in UploadInput) error {
	if s.idem == nil {
		return nil
	}
	h := sha256.New()
	h.Write([]byte(in.MemberID))
	h.Write([]byte(in.TreatmentDate))
	for _, d := range in.Documents {
		h.Write(d.Data)
	}
	key := s.idem.Key("upload", in.MemberID, hex.EncodeToString(h.Sum(nil)))

	ok, err := s.idem.SetNX(ctx, key, 1, idempotencyTTL)
	if err != nil {
		// Idempotency is an optimization; a Redis outage must not block intake.
		s.logger.Warn("Idempotency check unavailable", logging.Err(err))
		return nil
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeClaimDuplicateUpload,
			"identical upload was already submitted")
	}
	return nil
}

// GetClaim loads one claim with its documents and result.
func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	return s.claims.GetByID(ctx, id)
}

// GetResult loads a claim that has finished processing.  A claim still in
// RECEIVED returns ErrCodeClaimNotAdjudicated.
func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == claim.StatusReceived {
		return nil, apperrors.Newf(apperrors.ErrCodeClaimNotAdjudicated,
			"claim %s has not been adjudicated yet", id)
	}
	return c, nil
}

// List returns claims matching the filter plus the total count.
func (s *Service) List(ctx context.Context, f claim.ListFilter) ([]*claim.Claim, int, error) {
	return s.claims.List(ctx, f)
}

func (s *Service) publish(ctx context.Context, topic, eventType, key string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, topic, eventType, key, payload)
	if s.metrics != nil {
		prometheus.RecordEventPublished(s.metrics, topic, err)
	}
	if err != nil {
		s.logger.Warn("Failed to publish event",
			logging.String("topic", topic),
			logging.Err(err),
		)
	}
}

func validateDocuments(docs []DocumentUpload) error {
	if len(docs) == 0 {
		return apperrors.New(apperrors.ErrCodeClaimMissingDocument, "no documents uploaded")
	}
	for _, d := range docs {
		switch d.Kind {
		case claim.DocPrescription, claim.DocBill, claim.DocTestReport:
		default:
			return apperrors.Newf(apperrors.ErrCodeClaimDocumentType,
				"unknown document kind %q", d.Kind)
		}
		if len(d.Data) == 0 {
			return apperrors.Newf(apperrors.ErrCodeClaimMissingDocument,
				"document %s is empty", d.FileName)
		}
		if len(d.Data) > maxDocumentBytes {
			return apperrors.Newf(apperrors.ErrCodeClaimDocumentTooLarge,
				"document %s exceeds the %d byte limit", d.FileName, maxDocumentBytes)
		}
		if d.ContentType != "" && !allowedContentTypes[d.ContentType] {
			return apperrors.Newf(apperrors.ErrCodeClaimDocumentType,
				"content type %q is not accepted", d.ContentType)
		}
	}
	return nil
}

func extractionInputs(docs []DocumentUpload) []extraction.DocumentInput {
	out := make([]extraction.DocumentInput, 0, len(docs))
	for _, d := range docs {
		out = append(out, extraction.DocumentInput{
			Kind:        string(d.Kind),
			FileName:    d.FileName,
			ContentType: d.ContentType,
			Data:        d.Data,
		})
	}
	return out
}
