package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medishield/opdclaims/internal/application/claims"
	"github.com/medishield/opdclaims/internal/domain/adjudication"
	"github.com/medishield/opdclaims/internal/domain/claim"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

// ClaimHandler serves the claim upload, result, and listing endpoints.
type ClaimHandler struct {
	service *claims.Service
	logger  logging.Logger
}

// NewClaimHandler creates the claim handler.
func NewClaimHandler(service *claims.Service, log logging.Logger) *ClaimHandler {
	return &ClaimHandler{service: service, logger: log}
}

// documentFields maps the multipart form field names to document kinds.
// prescription and bill are mandatory; test_report is optional.
var documentFields = []struct {
	field string
	kind  claim.DocumentKind
}{
	{"prescription", claim.DocPrescription},
	{"bill", claim.DocBill},
	{"test_report", claim.DocTestReport},
}

// Upload handles POST /api/v1/claims/upload (multipart form).
func (h *ClaimHandler) Upload(c *gin.Context) {
	memberID := c.PostForm("member_id")
	treatmentDate := c.PostForm("treatment_date")
	if memberID == "" || treatmentDate == "" {
		respondError(c, apperrors.New(apperrors.ErrCodeBadRequest,
			"member_id and treatment_date form fields are required"))
		return
	}

	in := claims.UploadInput{MemberID: memberID, TreatmentDate: treatmentDate}
	for _, df := range documentFields {
		fh, err := c.FormFile(df.field)
		if err != nil {
			continue // missing optional document; the service enforces the mandatory set
		}
		doc, err := readUpload(fh, df.kind)
		if err != nil {
			respondError(c, err)
			return
		}
		in.Documents = append(in.Documents, *doc)
	}

	result, err := h.service.Upload(c.Request.Context(), in)
	if err != nil {
		// A failed claim still has an ID the caller can query; surface it.
		if result != nil {
			c.JSON(apperrors.HTTPStatusForCode(apperrors.GetCode(err)), gin.H{
				"claim_id": result.ID,
				"status":   result.Status,
				"error": ErrorResponse{
					Code:    string(apperrors.GetCode(err)),
					Message: result.FailureReason,
				},
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadResponse(result))
}

// Result handles GET /api/v1/claims/:claimID/result.
func (h *ClaimHandler) Result(c *gin.Context) {
	id, err := uuid.Parse(c.Param("claimID"))
	if err != nil {
		respondError(c, apperrors.New(apperrors.ErrCodeBadRequest, "claim id must be a UUID"))
		return
	}

	cl, err := h.service.GetResult(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultResponse(cl))
}

// List handles GET /api/v1/claims.
func (h *ClaimHandler) List(c *gin.Context) {
	limit, offset := parsePagination(c)
	filter := claim.ListFilter{
		MemberID: c.Query("member_id"),
		Decision: adjudication.Decision(c.Query("decision")),
		Limit:    limit,
		Offset:   offset,
	}

	list, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(list))
	for _, cl := range list {
		items = append(items, resultResponse(cl))
	}
	c.JSON(http.StatusOK, gin.H{
		"claims": items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func readUpload(fh *multipart.FileHeader, kind claim.DocumentKind) (*claims.DocumentUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "failed to open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "failed to read uploaded file")
	}
	return &claims.DocumentUpload{
		Kind:        kind,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func uploadResponse(cl *claim.Claim) gin.H {
	resp := gin.H{
		"claim_id": cl.ID,
		"status":   cl.Status,
	}
	if cl.Result != nil {
		resp["result"] = cl.Result
	}
	return resp
}

func resultResponse(cl *claim.Claim) gin.H {
	resp := gin.H{
		"claim_id":       cl.ID,
		"member_id":      cl.MemberID,
		"treatment_date": cl.TreatmentDate.Format("2006-01-02"),
		"status":         cl.Status,
		"created_at":     cl.CreatedAt,
	}
	if cl.Result != nil {
		resp["result"] = cl.Result
	}
	if cl.Extracted != nil {
		resp["extracted"] = cl.Extracted
	}
	if cl.FailureReason != "" {
		resp["failure_reason"] = cl.FailureReason
	}
	if cl.ProcessedAt != nil {
		resp["processed_at"] = cl.ProcessedAt
	}
	return resp
}
