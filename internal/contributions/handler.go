package contributions

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// AddressSource resolves the deposit address for a pledge. Implemented by the
// chain watcher client.
type AddressSource interface {
	GetContributionAddress(ctx context.Context, contributionID uuid.UUID) (string, error)
}

// Handler handles HTTP requests for contribution operations
type Handler struct {
	service      *Service
	addresses    AddressSource
	webhookToken string
	logger       *zap.Logger
}

// NewHandler creates a new contributions handler. webhookToken guards the
// watcher confirmation callback.
func NewHandler(service *Service, addresses AddressSource, webhookToken string, logger *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		addresses:    addresses,
		webhookToken: webhookToken,
		logger:       logger,
	}
}

// RegisterRoutes registers contribution routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, mw *auth.Middleware) {
	proposals := router.Group("/proposals")
	{
		proposals.POST("/:id/contributions", mw.OptionalUser(), h.createContribution)
		proposals.POST("/:id/stake", mw.RequireUser(), h.getStakingContribution)
	}

	contributions := router.Group("/contributions", mw.RequireUser())
	{
		contributions.GET("/:id", h.getContribution)
		contributions.DELETE("/:id", h.deleteContribution)
	}

	// Watcher callback, authenticated by shared token rather than a user.
	router.POST("/webhooks/contributions/:id/confirm", h.confirmContribution)
}

type createContributionRequest struct {
	Amount  string `json:"amount"`
	Private *bool  `json:"private"`
}

// isPrivate defaults omitted pledges to private.
func (r createContributionRequest) isPrivate() bool {
	if r.Private == nil {
		return true
	}
	return *r.Private
}

type contributionResponse struct {
	Contribution *Contribution `json:"contribution"`
	Address      string        `json:"address,omitempty"`
}

func (h *Handler) createContribution(c *gin.Context) {
	proposalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	var req createContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	create := CreateRequest{
		ProposalID: proposalID,
		Amount:     req.Amount,
		Private:    req.isPrivate(),
	}
	if userID, ok := auth.CurrentUser(c); ok {
		create.UserID = &userID
	}

	contribution, err := h.service.Create(c.Request.Context(), create)
	if err != nil {
		h.respondError(c, err, "Failed to create contribution")
		return
	}

	c.JSON(http.StatusCreated, h.withAddress(c, contribution))
}

func (h *Handler) getStakingContribution(c *gin.Context) {
	proposalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	contribution, err := h.service.GetStakingContribution(c.Request.Context(), proposalID, userID)
	if err != nil {
		h.respondError(c, err, "Failed to get staking contribution")
		return
	}

	c.JSON(http.StatusOK, h.withAddress(c, contribution))
}

// withAddress decorates a pledge with its deposit address. Address lookup is
// best-effort: the watcher being down should not hide the pledge itself.
func (h *Handler) withAddress(c *gin.Context, contribution *Contribution) contributionResponse {
	resp := contributionResponse{Contribution: contribution}
	if contribution.Status != StatusPending {
		return resp
	}

	address, err := h.addresses.GetContributionAddress(c.Request.Context(), contribution.ID)
	if err != nil {
		h.logger.Error("failed to resolve deposit address",
			zap.String("contribution_id", contribution.ID.String()), zap.Error(err))
		return resp
	}
	resp.Address = address
	return resp
}

func (h *Handler) getContribution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	contribution, err := h.service.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err, "Failed to get contribution")
		return
	}

	c.JSON(http.StatusOK, contribution)
}

func (h *Handler) deleteContribution(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		h.respondError(c, err, "Failed to delete contribution")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type confirmContributionRequest struct {
	TxID   string `json:"txId"`
	Amount string `json:"amount"`
}

func (h *Handler) confirmContribution(c *gin.Context) {
	token := c.GetHeader("X-Watcher-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contribution ID"})
		return
	}

	var req confirmContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Confirm(c.Request.Context(), id, req.TxID, req.Amount); err != nil {
		h.respondError(c, err, "Failed to confirm contribution")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsExternalService(err):
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream service unavailable"})
	default:
		h.logger.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
