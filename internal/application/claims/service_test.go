package claims

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/domain/claim"
	"github.com/medishield/opdclaims/internal/domain/member"
	"github.com/medishield/opdclaims/internal/infrastructure/database/redis"
	"github.com/medishield/opdclaims/internal/infrastructure/extraction"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/internal/infrastructure/storage/minio"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeClaimRepo struct {
	mu     sync.Mutex
	claims map[uuid.UUID]*claim.Claim

	sameDay   int
	lastMonth int
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{claims: make(map[uuid.UUID]*claim.Claim)}
}

func (r *fakeClaimRepo) Create(ctx context.Context, c *claim.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.claims[c.ID] = &cp
	return nil
}

func (r *fakeClaimRepo) Update(ctx context.Context, c *claim.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.claims[c.ID]; !ok {
		return apperrors.Newf(apperrors.ErrCodeClaimNotFound, "claim %s not found", c.ID)
	}
	cp := *c
	r.claims[c.ID] = &cp
	return nil
}

func (r *fakeClaimRepo) GetByID(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeClaimNotFound, "claim %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeClaimRepo) List(ctx context.Context, f claim.ListFilter) ([]*claim.Claim, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*claim.Claim
	for _, c := range r.claims {
		if f.MemberID != "" && c.MemberID != f.MemberID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (r *fakeClaimRepo) CountSameDay(ctx context.Context, memberID string, treatmentDate time.Time, exclude uuid.UUID) (int, error) {
	return r.sameDay, nil
}

func (r *fakeClaimRepo) CountSince(ctx context.Context, memberID string, from, until time.Time, exclude uuid.UUID) (int, error) {
	return r.lastMonth, nil
}

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[string]*member.Member
	applied []appliedTotals
}

type appliedTotals struct {
	id               string
	billed, approved types.Money
}

func newFakeMemberRepo(members ...*member.Member) *fakeMemberRepo {
	r := &fakeMemberRepo{members: make(map[string]*member.Member)}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r
}

func (r *fakeMemberRepo) Create(ctx context.Context, m *member.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; ok {
		return apperrors.Newf(apperrors.ErrCodeMemberAlreadyExists, "member %s is already registered", m.ID)
	}
	r.members[m.ID] = m
	return nil
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, id string) (*member.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMemberRepo) ApplyAdjudication(ctx context.Context, id string, billed, approved types.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeMemberNotFound, "member %s not found", id)
	}
	m.YTDClaimed += billed
	m.YTDApproved += approved
	r.applied = append(r.applied, appliedTotals{id: id, billed: billed, approved: approved})
	return nil
}

func (r *fakeMemberRepo) Stats(ctx context.Context, id string) (*member.Stats, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &member.Stats{MemberID: m.ID, Name: m.Name}, nil
}

type fakeDocStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{objects: make(map[string][]byte)}
}

func (s *fakeDocStore) Upload(ctx context.Context, req *minio.UploadRequest) (*minio.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[req.ObjectKey] = req.Data
	return &minio.UploadResult{
		ObjectKey:  req.ObjectKey,
		Size:       int64(len(req.Data)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

func (s *fakeDocStore) Download(ctx context.Context, objectKey string) (*minio.DownloadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey]
	if !ok {
		return nil, minio.ErrObjectNotFound
	}
	return &minio.DownloadResult{Data: data, Size: int64(len(data))}, nil
}

func (s *fakeDocStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectKey]
	return ok, nil
}

func (s *fakeDocStore) Delete(ctx context.Context, objectKey string) error { return nil }

func (s *fakeDocStore) ListClaim(ctx context.Context, claimID string) ([]minio.ObjectInfo, error) {
	return nil, nil
}

func (s *fakeDocStore) PresignedDownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	return "https://example.test/" + objectKey, nil
}

type fakeExtractor struct {
	claims []adjudication.RawClaim
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, docs []extraction.DocumentInput) ([]adjudication.RawClaim, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.claims, nil
}

type fakeLock struct{}

func (fakeLock) Lock(ctx context.Context) error                               { return nil }
func (fakeLock) TryLock(ctx context.Context) (bool, error)                    { return true, nil }
func (fakeLock) Unlock(ctx context.Context) error                             { return nil }
func (fakeLock) Extend(ctx context.Context, ttl time.Duration) (bool, error)  { return true, nil }
func (fakeLock) TTL(ctx context.Context) (time.Duration, error)               { return 0, nil }

type fakeLockFactory struct{}

func (fakeLockFactory) NewMutex(name string, opts ...redis.LockOption) redis.DistributedLock {
	return fakeLock{}
}

type fakeIdemStore struct {
	taken bool
	err   error
}

func (s *fakeIdemStore) Key(parts ...string) string {
	out := "test"
	for _, p := range parts {
		out += ":" + p
	}
	return out
}

func (s *fakeIdemStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return !s.taken, nil
}

type publishedEvent struct {
	topic, eventType, key string
	payload               interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, eventType, key, payload})
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func testEngine() EngineProvider {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	engine := adjudication.NewEngine(adjudication.PolicyFromConfig(cfg.Policy))
	return func() *adjudication.Engine { return engine }
}

func testMember() *member.Member {
	return &member.Member{
		ID:       "MEM-2026-000123",
		Name:     "Rahul Sharma",
		JoinDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cleanRawClaim() adjudication.RawClaim {
	return adjudication.RawClaim{
		PatientName:        "Rahul Sharma",
		TreatmentDate:      "2026-06-15",
		HospitalName:       "Apollo Clinic Indiranagar",
		Diagnosis:          "viral fever",
		DoctorName:         "Dr. Mehta",
		DoctorRegistration: "KA/12345/2015",
		Treatments:         []string{"consultation"},
		BillLines: []adjudication.RawBillLine{
			{Description: "general consultation", Category: "consultation", Amount: "500"},
		},
		BillDate:               "2026-06-15",
		PrescriptionDate:       "2026-06-15",
		HasPrescription:        true,
		HasBill:                true,
		PrescriptionConfidence: 0.98,
		BillConfidence:         0.98,
	}
}

func testUploadInput() UploadInput {
	return UploadInput{
		MemberID:      "MEM-2026-000123",
		TreatmentDate: "2026-06-15",
		Documents: []DocumentUpload{
			{Kind: claim.DocPrescription, FileName: "rx.pdf", ContentType: "application/pdf", Data: []byte("rx bytes")},
			{Kind: claim.DocBill, FileName: "bill.pdf", ContentType: "application/pdf", Data: []byte("bill bytes")},
		},
	}
}

type serviceFixture struct {
	svc       *Service
	claims    *fakeClaimRepo
	members   *fakeMemberRepo
	docs      *fakeDocStore
	extractor *fakeExtractor
	idem      *fakeIdemStore
	publisher *fakePublisher
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		claims:    newFakeClaimRepo(),
		members:   newFakeMemberRepo(testMember()),
		docs:      newFakeDocStore(),
		extractor: &fakeExtractor{claims: []adjudication.RawClaim{cleanRawClaim()}},
		idem:      &fakeIdemStore{},
		publisher: &fakePublisher{},
	}
	f.svc = NewService(f.claims, f.members, f.docs, f.extractor,
		fakeLockFactory{}, f.idem, f.publisher, testEngine(), logging.NewNopLogger())
	return f
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestUploadCleanClaim(t *testing.T) {
	f := newServiceFixture()

	c, err := f.svc.Upload(context.Background(), testUploadInput())
	require.NoError(t, err)

	assert.Equal(t, claim.StatusAdjudicated, c.Status)
	require.NotNil(t, c.Result)
	assert.Equal(t, adjudication.DecisionApproved, c.Result.Decision)
	assert.Equal(t, types.MoneyFromRupees(500), c.Result.ApprovedAmount)

	// Documents stored under the claim's prefix.
	ok, err := f.docs.Exists(context.Background(), minio.ObjectKey(c.ID.String(), "prescription", "rx.pdf"))
	require.NoError(t, err)
	assert.True(t, ok)

	// YTD totals moved by billed/approved.
	require.Len(t, f.members.applied, 1)
	assert.Equal(t, types.MoneyFromRupees(500), f.members.applied[0].billed)
	assert.Equal(t, types.MoneyFromRupees(500), f.members.applied[0].approved)

	topics := f.publisher.topics()
	assert.Contains(t, topics, "claim.received")
	assert.Contains(t, topics, "claim.adjudicated")
	assert.Contains(t, topics, "audit.log")
}

func TestUploadUnknownMember(t *testing.T) {
	f := newServiceFixture()
	in := testUploadInput()
	in.MemberID = "MEM-2026-999999"

	_, err := f.svc.Upload(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMemberNotFound))
	assert.Empty(t, f.publisher.topics())
}

func TestUploadBadDate(t *testing.T) {
	f := newServiceFixture()
	in := testUploadInput()
	in.TreatmentDate = "15-06-2026"

	_, err := f.svc.Upload(context.Background(), in)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimDateFormat))
}

func TestUploadDocumentValidation(t *testing.T) {
	t.Run("no documents", func(t *testing.T) {
		f := newServiceFixture()
		in := testUploadInput()
		in.Documents = nil

		_, err := f.svc.Upload(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimMissingDocument))
	})

	t.Run("oversized document", func(t *testing.T) {
		f := newServiceFixture()
		in := testUploadInput()
		in.Documents[0].Data = make([]byte, maxDocumentBytes+1)

		_, err := f.svc.Upload(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimDocumentTooLarge))
	})

	t.Run("unsupported content type", func(t *testing.T) {
		f := newServiceFixture()
		in := testUploadInput()
		in.Documents[0].ContentType = "application/zip"

		_, err := f.svc.Upload(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimDocumentType))
	})

	t.Run("unknown document kind", func(t *testing.T) {
		f := newServiceFixture()
		in := testUploadInput()
		in.Documents[0].Kind = "selfie"

		_, err := f.svc.Upload(context.Background(), in)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimDocumentType))
	})
}

func TestUploadDuplicateRejected(t *testing.T) {
	f := newServiceFixture()
	f.idem.taken = true

	_, err := f.svc.Upload(context.Background(), testUploadInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimDuplicateUpload))
}

func TestUploadProceedsWhenIdempotencyStoreDown(t *testing.T) {
	f := newServiceFixture()
	f.idem.err = apperrors.New(apperrors.ErrCodeCacheError, "redis unavailable")

	c, err := f.svc.Upload(context.Background(), testUploadInput())
	require.NoError(t, err)
	assert.Equal(t, claim.StatusAdjudicated, c.Status)
}

func TestUploadExtractionFailureFailsClaim(t *testing.T) {
	f := newServiceFixture()
	f.extractor.err = apperrors.New(apperrors.ErrCodeExtractionFailed, "extractor unavailable")

	c, err := f.svc.Upload(context.Background(), testUploadInput())
	require.Error(t, err)
	require.NotNil(t, c)
	assert.Equal(t, claim.StatusFailed, c.Status)
	assert.NotEmpty(t, c.FailureReason)

	topics := f.publisher.topics()
	assert.Contains(t, topics, "claim.received")
	assert.Contains(t, topics, "claim.failed")
	assert.NotContains(t, topics, "claim.adjudicated")

	// A failed claim must not move member totals.
	assert.Empty(t, f.members.applied)
}

func TestUploadManualReviewSkipsTotals(t *testing.T) {
	f := newServiceFixture()
	low := cleanRawClaim()
	low.PrescriptionConfidence = 0.4
	f.extractor.claims = []adjudication.RawClaim{low}

	c, err := f.svc.Upload(context.Background(), testUploadInput())
	require.NoError(t, err)

	require.NotNil(t, c.Result)
	assert.Equal(t, adjudication.DecisionManualReview, c.Result.Decision)
	assert.True(t, c.Result.Provisional)
	assert.Empty(t, f.members.applied)
}

func TestUploadConservation(t *testing.T) {
	// approved + deductions must always reconstruct the billed total.
	f := newServiceFixture()
	raw := cleanRawClaim()
	raw.HospitalName = "City Care Clinic"
	raw.BillLines[0].Amount = "5000"
	f.extractor.claims = []adjudication.RawClaim{raw}

	c, err := f.svc.Upload(context.Background(), testUploadInput())
	require.NoError(t, err)
	require.NotNil(t, c.Result)

	total := c.Result.ApprovedAmount
	for _, d := range c.Result.Deductions {
		total += d.Amount
	}
	assert.Equal(t, c.Result.BilledTotal, total)
}

func TestGetResult(t *testing.T) {
	f := newServiceFixture()

	t.Run("unknown claim", func(t *testing.T) {
		_, err := f.svc.GetResult(context.Background(), uuid.New())
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimNotFound))
	})

	t.Run("received claim not yet adjudicated", func(t *testing.T) {
		c, err := claim.New("MEM-2026-000123",
			time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			[]claim.Document{
				{Kind: claim.DocPrescription, ObjectKey: "p"},
				{Kind: claim.DocBill, ObjectKey: "b"},
			})
		require.NoError(t, err)
		require.NoError(t, f.claims.Create(context.Background(), c))

		_, err = f.svc.GetResult(context.Background(), c.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeClaimNotAdjudicated))
	})

	t.Run("adjudicated claim returned", func(t *testing.T) {
		c, err := f.svc.Upload(context.Background(), testUploadInput())
		require.NoError(t, err)

		got, err := f.svc.GetResult(context.Background(), c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)
		require.NotNil(t, got.Result)
	})
}
