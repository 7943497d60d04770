package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medishield/opdclaims/internal/application/members"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	apperrors "github.com/medishield/opdclaims/pkg/errors"
)

// MemberHandler serves the member registration and statistics endpoints.
type MemberHandler struct {
	service *members.Service
	logger  logging.Logger
}

// NewMemberHandler creates the member handler.
func NewMemberHandler(service *members.Service, log logging.Logger) *MemberHandler {
	return &MemberHandler{service: service, logger: log}
}

// Register handles POST /api/v1/members/register.
func (h *MemberHandler) Register(c *gin.Context) {
	var in members.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid registration body"))
		return
	}

	m, err := h.service.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Get handles GET /api/v1/members/:memberID.
func (h *MemberHandler) Get(c *gin.Context) {
	m, err := h.service.Get(c.Request.Context(), c.Param("memberID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Stats handles GET /api/v1/members/:memberID/stats.
func (h *MemberHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("memberID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
