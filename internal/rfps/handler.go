package rfps

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Handler handles HTTP requests for RFP operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new RFP handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers RFP routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, mw *auth.Middleware) {
	rfps := router.Group("/rfps")
	{
		rfps.GET("", h.listLive)
		rfps.GET("/:id", h.getRFP)

		rfps.PUT("/:id/close", mw.RequireAdmin(), h.closeRFP)
	}
}

func (h *Handler) listLive(c *gin.Context) {
	rfps, err := h.service.ListLive(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to list rfps")
		return
	}

	c.JSON(http.StatusOK, gin.H{"rfps": rfps})
}

func (h *Handler) getRFP(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rfp ID"})
		return
	}

	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get rfp")
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) closeRFP(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rfp ID"})
		return
	}

	if err := h.service.Close(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "Failed to close rfp")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
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
