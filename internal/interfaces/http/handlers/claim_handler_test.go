package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medishield/opdclaims/internal/application/claims"
	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/domain/claim"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
	"github.com/medishield/opdclaims/pkg/types"
)

type stubClaimRepo struct {
	claims map[uuid.UUID]*claim.Claim
}

func newStubClaimRepo() *stubClaimRepo {
	return &stubClaimRepo{claims: make(map[uuid.UUID]*claim.Claim)}
}

func (r *stubClaimRepo) Create(ctx context.Context, c *claim.Claim) error {
	r.claims[c.ID] = c
	return nil
}

func (r *stubClaimRepo) Update(ctx context.Context, c *claim.Claim) error {
	r.claims[c.ID] = c
	return nil
}

func (r *stubClaimRepo) GetByID(ctx context.Context, id uuid.UUID) (*claim.Claim, error) {
	c, ok := r.claims[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeClaimNotFound, "claim %s not found", id)
	}
	return c, nil
}

func (r *stubClaimRepo) List(ctx context.Context, f claim.ListFilter) ([]*claim.Claim, int, error) {
	var out []*claim.Claim
	for _, c := range r.claims {
		if f.MemberID != "" && c.MemberID != f.MemberID {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *stubClaimRepo) CountSameDay(ctx context.Context, memberID string, treatmentDate time.Time, exclude uuid.UUID) (int, error) {
	return 0, nil
}

func (r *stubClaimRepo) CountSince(ctx context.Context, memberID string, from, until time.Time, exclude uuid.UUID) (int, error) {
	return 0, nil
}

func claimRouter(repo *stubClaimRepo) *gin.Engine {
	svc := claims.NewService(repo, nil, nil, nil, nil, nil, nil, nil, logging.NewNopLogger())
	h := NewClaimHandler(svc, logging.NewNopLogger())
	r := gin.New()
	r.POST("/api/v1/claims/upload", h.Upload)
	r.GET("/api/v1/claims", h.List)
	r.GET("/api/v1/claims/:claimID/result", h.Result)
	return r
}

func adjudicatedClaim(t *testing.T) *claim.Claim {
	t.Helper()
	c, err := claim.New("MEM-2026-000123",
		time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		[]claim.Document{
			{Kind: claim.DocPrescription, ObjectKey: "p"},
			{Kind: claim.DocBill, ObjectKey: "b"},
		})
	require.NoError(t, err)
	require.NoError(t, c.Finalize(&adjudication.RawClaim{}, &adjudication.Result{
		Decision:       adjudication.DecisionApproved,
		ApprovedAmount: types.MoneyFromRupees(500),
		BilledTotal:    types.MoneyFromRupees(500),
		Confidence:     0.95,
	}, time.Now().UTC()))
	return c
}

func TestUploadEndpointMissingFields(t *testing.T) {
	r := claimRouter(newStubClaimRepo())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("member_id", "MEM-2026-000123"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResultEndpoint(t *testing.T) {
	repo := newStubClaimRepo()
	r := claimRouter(repo)

	t.Run("invalid uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/claims/not-a-uuid/result", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown claim", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/claims/"+uuid.NewString()+"/result", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("claim still processing", func(t *testing.T) {
		c, err := claim.New("MEM-2026-000123",
			time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			[]claim.Document{
				{Kind: claim.DocPrescription, ObjectKey: "p"},
				{Kind: claim.DocBill, ObjectKey: "b"},
			})
		require.NoError(t, err)
		repo.claims[c.ID] = c

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/claims/"+c.ID.String()+"/result", nil))
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(apperrors.ErrCodeClaimNotAdjudicated), resp.Code)
	})

	t.Run("adjudicated claim returned", func(t *testing.T) {
		c := adjudicatedClaim(t)
		repo.claims[c.ID] = c

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/claims/"+c.ID.String()+"/result", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, c.ID.String(), body["claim_id"])
		assert.Equal(t, "2026-06-15", body["treatment_date"])
		result, ok := body["result"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "APPROVED", result["decision"])
	})
}

func TestListEndpoint(t *testing.T) {
	repo := newStubClaimRepo()
	c := adjudicatedClaim(t)
	repo.claims[c.ID] = c
	r := claimRouter(repo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/claims?member_id=MEM-2026-000123", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Claims []map[string]interface{} `json:"claims"`
		Total  int                      `json:"total"`
		Limit  int                      `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 20, body.Limit)
	require.Len(t, body.Claims, 1)
}
