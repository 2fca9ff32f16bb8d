package ccrs

import (
	"context"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/money"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
	"grantflow/grant-portal-backend/pkg/workflows"
)

// RFPCreator opens a live RFP from an approved change request. Declared here so
// the ccrs package does not depend on the rfps package directly. The caller
// supplies the RFP id so it can link the CCR before the RFP store commits.
type RFPCreator interface {
	CreateFromCCR(ctx context.Context, rfpID, ccrID uuid.UUID, title, brief, content string) error
}

// Service coordinates the community change request lifecycle.
type Service struct {
	repo      Repository
	userRepo  users.Repository
	rfps      RFPCreator
	mailer    *mail.Dispatcher
	targetMax decimal.Decimal
	machine   *workflows.StateMachine
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

// NewService creates a new CCR service
func NewService(repo Repository, userRepo users.Repository, rfps RFPCreator, mailer *mail.Dispatcher, targetMax decimal.Decimal, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		rfps:      rfps,
		mailer:    mailer,
		targetMax: targetMax,
		machine:   newStatusMachine(),
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger,
	}
}

// DraftRequest carries the editable fields of a CCR.
type DraftRequest struct {
	Title        string `json:"title"`
	Brief        string `json:"brief"`
	Content      string `json:"content"`
	TargetAmount string `json:"target_amount"`
}

// CreateDraft creates an empty or partially filled draft owned by the author.
func (s *Service) CreateDraft(ctx context.Context, authorID uuid.UUID, req DraftRequest) (*CCR, error) {
	ccr := &CCR{
		ID:       uuid.New(),
		AuthorID: authorID,
		Status:   StatusDraft,
	}
	if err := s.applyDraft(ccr, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, ccr); err != nil {
		return nil, err
	}
	return ccr, nil
}

// UpdateDraft applies edits to a draft or rejected CCR owned by the author.
func (s *Service) UpdateDraft(ctx context.Context, id, authorID uuid.UUID, req DraftRequest) (*CCR, error) {
	ccr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ccr.AuthorID != authorID {
		return nil, apperrors.Validation("only the author may edit a change request")
	}
	if ccr.Status != StatusDraft && ccr.Status != StatusRejected {
		return nil, apperrors.Validation("cannot edit a change request in status %s", ccr.Status)
	}

	if err := s.applyDraft(ccr, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ccr); err != nil {
		return nil, err
	}
	return ccr, nil
}

func (s *Service) applyDraft(ccr *CCR, req DraftRequest) error {
	if len(req.Title) > MaxTitleLength {
		return apperrors.Validation("title exceeds %d characters", MaxTitleLength)
	}
	if len(req.Brief) > MaxBriefLength {
		return apperrors.Validation("brief exceeds %d characters", MaxBriefLength)
	}
	if len(req.Content) > MaxContentLength {
		return apperrors.Validation("content exceeds %d characters", MaxContentLength)
	}

	ccr.Title = req.Title
	ccr.Brief = req.Brief
	ccr.Content = s.sanitizer.Sanitize(req.Content)

	if req.TargetAmount != "" {
		target, err := money.Parse(req.TargetAmount)
		if err != nil {
			return err
		}
		if target.GreaterThan(s.targetMax) {
			return apperrors.Validation("target cannot exceed %s", s.targetMax.String())
		}
		ccr.TargetAmount = target
	}

	return nil
}

// SubmitForApproval moves a draft into the admin review queue and notifies
// admins.
func (s *Service) SubmitForApproval(ctx context.Context, id, authorID uuid.UUID) (*CCR, error) {
	ccr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ccr.AuthorID != authorID {
		return nil, apperrors.Validation("only the author may submit a change request")
	}
	if !s.machine.CanTransition(string(ccr.Status), string(StatusPending)) {
		return nil, apperrors.Validation("cannot submit a change request in status %s", ccr.Status)
	}
	if err := s.validateSubmittable(ccr); err != nil {
		return nil, err
	}

	ccr.Status = StatusPending
	ccr.RejectReason = ""
	if err := s.repo.Update(ctx, ccr); err != nil {
		return nil, err
	}

	s.notifyAdmins(ctx, ccr)
	s.notifyAuthor(ctx, ccr, mail.TemplateCCRSubmitted, map[string]any{
		"CCRTitle": ccr.Title,
	})
	return ccr, nil
}

func (s *Service) validateSubmittable(ccr *CCR) error {
	if ccr.Title == "" {
		return apperrors.Validation("title is required")
	}
	if ccr.Brief == "" {
		return apperrors.Validation("brief is required")
	}
	if ccr.Content == "" {
		return apperrors.Validation("content is required")
	}
	if !ccr.TargetAmount.IsPositive() {
		return apperrors.Validation("target must be greater than zero")
	}
	return nil
}

// ReviewRequest captures the admin's approve-or-reject decision.
type ReviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// ReviewPending resolves a pending CCR. Approval opens a live RFP seeded from
// the request and links it back; rejection requires a reason the author can
// act on. Either way the author is notified.
func (s *Service) ReviewPending(ctx context.Context, id uuid.UUID, req ReviewRequest) (*CCR, error) {
	ccr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ccr.Status != StatusPending {
		return nil, apperrors.Validation("cannot review a change request in status %s", ccr.Status)
	}

	if !req.Approve {
		if req.Reason == "" {
			return nil, apperrors.Validation("a reject reason is required")
		}
		ccr.Status = StatusRejected
		ccr.RejectReason = req.Reason
		if err := s.repo.Update(ctx, ccr); err != nil {
			return nil, err
		}
		s.notifyAuthor(ctx, ccr, mail.TemplateCCRRejected, map[string]any{
			"CCRTitle": ccr.Title,
			"Reason":   req.Reason,
		})
		return ccr, nil
	}

	// Commit the CCR first, then open the RFP in the separate sqlx store. If
	// the RFP store fails, the CCR is rolled back to PENDING so the approval
	// can be retried; the reverse order would strand a live RFP no CCR links.
	rfpID := uuid.New()
	ccr.Status = StatusLive
	ccr.RFPID = &rfpID
	if err := s.repo.Update(ctx, ccr); err != nil {
		return nil, err
	}

	if err := s.rfps.CreateFromCCR(ctx, rfpID, ccr.ID, ccr.Title, ccr.Brief, ccr.Content); err != nil {
		ccr.Status = StatusPending
		ccr.RFPID = nil
		if rbErr := s.repo.Update(ctx, ccr); rbErr != nil {
			s.logger.Error("failed to roll back ccr after rfp creation failure",
				zap.String("ccr_id", ccr.ID.String()), zap.Error(rbErr))
		}
		return nil, err
	}

	s.logger.Info("ccr approved",
		zap.String("ccr_id", ccr.ID.String()),
		zap.String("rfp_id", rfpID.String()))

	s.notifyAuthor(ctx, ccr, mail.TemplateCCRApproved, map[string]any{
		"CCRTitle": ccr.Title,
	})
	return ccr, nil
}

// Delete soft-deletes a CCR that has not gone live. Author only.
func (s *Service) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	ccr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ccr.AuthorID != authorID {
		return apperrors.Validation("only the author may delete a change request")
	}
	if !s.machine.CanTransition(string(ccr.Status), string(StatusDeleted)) {
		return apperrors.Validation("cannot delete a change request in status %s", ccr.Status)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns a single CCR.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CCR, error) {
	return s.repo.GetByID(ctx, id)
}

// ListPending returns the admin review queue.
func (s *Service) ListPending(ctx context.Context) ([]*CCR, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// ListByAuthor returns a member's own change requests.
func (s *Service) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*CCR, error) {
	return s.repo.ListByAuthor(ctx, authorID)
}

func (s *Service) notifyAdmins(ctx context.Context, ccr *CCR) {
	admins, err := s.userRepo.ListAdmins(ctx)
	if err != nil {
		s.logger.Error("failed to list admins for ccr notification", zap.Error(err))
		return
	}
	recipients := make([]mail.Recipient, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, mail.UserRecipient(a))
	}
	s.mailer.SendAll(ctx, recipients, mail.TemplateAdminApprovalCCR, map[string]any{
		"CCRTitle": ccr.Title,
		"CCRID":    ccr.ID.String(),
	})
}

func (s *Service) notifyAuthor(ctx context.Context, ccr *CCR, template mail.Template, args map[string]any) {
	author, err := s.userRepo.GetByID(ctx, ccr.AuthorID)
	if err != nil {
		s.logger.Error("failed to load ccr author for notification",
			zap.String("ccr_id", ccr.ID.String()), zap.Error(err))
		return
	}
	s.mailer.Send(ctx, mail.UserRecipient(author), template, args)
}
