package ccrs

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Handler handles HTTP requests for CCR operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new CCR handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers CCR routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, mw *auth.Middleware) {
	ccrs := router.Group("/ccrs")
	{
		member := ccrs.Group("", mw.RequireUser())
		{
			member.POST("", h.createDraft)
			member.GET("", h.listOwn)
			member.GET("/:id", h.getCCR)
			member.PUT("/:id", h.updateDraft)
			member.DELETE("/:id", h.deleteCCR)
			member.PUT("/:id/submit_for_approval", h.submitForApproval)
		}

		admin := ccrs.Group("", mw.RequireAdmin())
		{
			admin.GET("/pending", h.listPending)
			admin.PUT("/:id/review", h.reviewCCR)
		}
	}
}

func (h *Handler) createDraft(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ccr, err := h.service.CreateDraft(c.Request.Context(), userID, req)
	if err != nil {
		h.respondError(c, err, "Failed to create ccr")
		return
	}

	c.JSON(http.StatusCreated, ccr)
}

func (h *Handler) listOwn(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)

	ccrs, err := h.service.ListByAuthor(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "Failed to list ccrs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ccrs": ccrs})
}

func (h *Handler) getCCR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ccr ID"})
		return
	}

	ccr, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get ccr")
		return
	}

	c.JSON(http.StatusOK, ccr)
}

func (h *Handler) updateDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ccr ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ccr, err := h.service.UpdateDraft(c.Request.Context(), id, userID, req)
	if err != nil {
		h.respondError(c, err, "Failed to update ccr")
		return
	}

	c.JSON(http.StatusOK, ccr)
}

func (h *Handler) deleteCCR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ccr ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		h.respondError(c, err, "Failed to delete ccr")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) submitForApproval(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ccr ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	ccr, err := h.service.SubmitForApproval(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err, "Failed to submit ccr")
		return
	}

	c.JSON(http.StatusOK, ccr)
}

func (h *Handler) listPending(c *gin.Context) {
	ccrs, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to list pending ccrs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ccrs": ccrs})
}

func (h *Handler) reviewCCR(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ccr ID"})
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ccr, err := h.service.ReviewPending(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err, "Failed to review ccr")
		return
	}

	c.JSON(http.StatusOK, ccr)
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
