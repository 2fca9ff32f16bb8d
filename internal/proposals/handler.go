package proposals

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Handler handles HTTP requests for proposal operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new proposals handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers proposal routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, mw *auth.Middleware) {
	proposals := router.Group("/proposals")
	{
		proposals.GET("/:id", mw.OptionalUser(), h.getProposal)

		member := proposals.Group("", mw.RequireUser())
		{
			member.POST("", h.createProposal)
			member.PUT("/:id", h.updateDraft)
			member.DELETE("/:id", h.deleteProposal)
			member.PUT("/:id/submit_for_approval", h.submitForApproval)
			member.PUT("/:id/publish", h.publishProposal)

			member.POST("/:id/invites", h.inviteTeamMember)

			member.POST("/:id/draft", h.makeLiveDraft)
			member.PUT("/:id/draft/consume", h.consumeLiveDraft)

			member.PUT("/:id/arbiter/respond", h.respondToArbiterNomination)

			member.PUT("/:id/milestones/:milestoneId/request", h.requestMilestonePayout)
			member.PUT("/:id/milestones/:milestoneId/accept", h.acceptMilestonePayout)
			member.PUT("/:id/milestones/:milestoneId/reject", h.rejectMilestonePayout)
		}

		admin := proposals.Group("", mw.RequireAdmin())
		{
			admin.PUT("/:id/review", h.reviewProposal)
			admin.PUT("/:id/request_changes", h.requestChanges)
			admin.PUT("/:id/resolve_changes", h.resolveChanges)
			admin.PUT("/:id/accept", h.acceptProposal)
			admin.PUT("/:id/cancel", h.cancelProposal)
			admin.PUT("/:id/arbiter", h.nominateArbiter)
		}
	}

	invites := router.Group("/invites", mw.RequireUser())
	{
		invites.PUT("/:id/respond", h.respondToTeamInvite)
	}
}

func (h *Handler) createProposal(c *gin.Context) {
	userID, _ := auth.CurrentUser(c)

	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.service.CreateProposal(c.Request.Context(), userID, req)
	if err != nil {
		h.respondError(c, err, "Failed to create proposal")
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

func (h *Handler) getProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	proposal, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to get proposal")
		return
	}

	// Drafts and pending proposals are only visible to their team.
	if !publiclyVisible(proposal.Status) {
		userID, ok := auth.CurrentUser(c)
		if !ok || !proposal.IsTeamMember(userID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
			return
		}
	}

	c.JSON(http.StatusOK, proposal)
}

func publiclyVisible(status Status) bool {
	switch status {
	case StatusDiscussion, StatusLive, StatusApproved:
		return true
	}
	return false
}

func (h *Handler) updateDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.service.UpdateDraft(c.Request.Context(), id, userID, req)
	if err != nil {
		h.respondError(c, err, "Failed to update proposal")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *Handler) deleteProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		h.respondError(c, err, "Failed to delete proposal")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) submitForApproval(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	proposal, err := h.service.SubmitForApproval(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err, "Failed to submit proposal")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *Handler) publishProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	proposal, err := h.service.Publish(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err, "Failed to publish proposal")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

type reviewProposalRequest struct {
	Approve      bool   `json:"approve"`
	RejectReason string `json:"rejectReason,omitempty"`
}

func (h *Handler) reviewProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	var req reviewProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.service.ApproveDiscussion(c.Request.Context(), id, req.Approve, req.RejectReason)
	if err != nil {
		h.respondError(c, err, "Failed to review proposal")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

type requestChangesRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) requestChanges(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	var req requestChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.service.RequestChangesDiscussion(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondError(c, err, "Failed to request changes")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *Handler) resolveChanges(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	proposal, err := h.service.ResolveChangesDiscussion(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to resolve changes")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

type acceptProposalRequest struct {
	WithFunding bool `json:"withFunding"`
}

func (h *Handler) acceptProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	var req acceptProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proposal, err := h.service.AcceptProposal(c.Request.Context(), id, req.WithFunding)
	if err != nil {
		h.respondError(c, err, "Failed to accept proposal")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *Handler) cancelProposal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	proposal, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to cancel proposal")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

func (h *Handler) makeLiveDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	draft, err := h.service.MakeLiveDraft(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err, "Failed to create live draft")
		return
	}

	c.JSON(http.StatusCreated, draft)
}

func (h *Handler) consumeLiveDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	proposal, err := h.service.ConsumeLiveDraft(c.Request.Context(), id, userID)
	if err != nil {
		h.respondError(c, err, "Failed to apply live draft")
		return
	}

	c.JSON(http.StatusOK, proposal)
}

type nominateArbiterRequest struct {
	NomineeID uuid.UUID `json:"nomineeId"`
}

func (h *Handler) nominateArbiter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	var req nominateArbiterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	arbiter, err := h.service.NominateArbiter(c.Request.Context(), id, req.NomineeID)
	if err != nil {
		h.respondError(c, err, "Failed to nominate arbiter")
		return
	}

	c.JSON(http.StatusOK, arbiter)
}

type arbiterResponseRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) respondToArbiterNomination(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	var req arbiterResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	arbiter, err := h.service.AcceptArbiterNomination(c.Request.Context(), id, userID, req.Accept)
	if err != nil {
		h.respondError(c, err, "Failed to respond to nomination")
		return
	}

	c.JSON(http.StatusOK, arbiter)
}

type inviteTeamMemberRequest struct {
	Address string `json:"address"`
}

func (h *Handler) inviteTeamMember(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	var req inviteTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invite, err := h.service.InviteTeamMember(c.Request.Context(), id, userID, req.Address)
	if err != nil {
		h.respondError(c, err, "Failed to invite team member")
		return
	}

	c.JSON(http.StatusCreated, invite)
}

type inviteResponseRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) respondToTeamInvite(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	var req inviteResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invite, err := h.service.RespondToTeamInvite(c.Request.Context(), id, userID, req.Accept)
	if err != nil {
		h.respondError(c, err, "Failed to respond to invite")
		return
	}

	c.JSON(http.StatusOK, invite)
}

func (h *Handler) requestMilestonePayout(c *gin.Context) {
	h.milestoneAction(c, func(proposalID, milestoneID, userID uuid.UUID) (*Milestone, error) {
		return h.service.RequestMilestonePayout(c.Request.Context(), proposalID, milestoneID, userID)
	})
}

func (h *Handler) acceptMilestonePayout(c *gin.Context) {
	h.milestoneAction(c, func(proposalID, milestoneID, userID uuid.UUID) (*Milestone, error) {
		return h.service.AcceptMilestonePayout(c.Request.Context(), proposalID, milestoneID, userID)
	})
}

type rejectMilestoneRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectMilestonePayout(c *gin.Context) {
	var req rejectMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.milestoneAction(c, func(proposalID, milestoneID, userID uuid.UUID) (*Milestone, error) {
		return h.service.RejectMilestonePayout(c.Request.Context(), proposalID, milestoneID, userID, req.Reason)
	})
}

func (h *Handler) milestoneAction(c *gin.Context, action func(proposalID, milestoneID, userID uuid.UUID) (*Milestone, error)) {
	proposalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}
	milestoneID, err := uuid.Parse(c.Param("milestoneId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone ID"})
		return
	}
	userID, _ := auth.CurrentUser(c)

	milestone, err := action(proposalID, milestoneID, userID)
	if err != nil {
		h.respondError(c, err, "Milestone action failed")
		return
	}

	c.JSON(http.StatusOK, milestone)
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
