package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Handler handles HTTP requests for user settings
type Handler struct {
	repo   Repository
	logger *zap.Logger
}

// NewHandler creates a new users handler
func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes registers user routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, mw *auth.Middleware) {
	users := router.Group("/users", mw.RequireUser())
	{
		users.GET("/me", h.me)
		users.PUT("/me/email_settings", h.updateEmailSettings)
	}
}

func (h *Handler) me(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err, "Failed to load user")
		return
	}

	c.JSON(http.StatusOK, user)
}

type emailSettingsRequest struct {
	EmailSettings Subscription `json:"emailSettings"`
}

func (h *Handler) updateEmailSettings(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)

	var req emailSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repo.UpdateEmailSettings(c.Request.Context(), userID, req.EmailSettings); err != nil {
		h.respondError(c, err, "Failed to update email settings")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
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
