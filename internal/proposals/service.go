package proposals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/money"
	"grantflow/grant-portal-backend/internal/tasks"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// ContributionReader exposes the contribution ledger aggregates the proposal
// workflow depends on. Implemented by the contributions package.
type ContributionReader interface {
	Contributed(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error)
	AmountStaked(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error)
	ConfirmedContributors(ctx context.Context, proposalID uuid.UUID) ([]users.User, error)
}

// AddressValidator checks payout address format. Implemented by the watcher
// client; validation calls block the originating request.
type AddressValidator interface {
	ValidateAddress(ctx context.Context, addr string) (bool, error)
}

// TaskScheduler enqueues deferred jobs. Implemented by the task runner; may be
// left unset, in which case milestone reminders are skipped.
type TaskScheduler interface {
	Enqueue(ctx context.Context, jobType tasks.JobType, payload any, notBefore time.Time) error
}

// Service orchestrates the proposal state machine: it validates, mutates
// within one transaction, and dispatches notification effects after commit.
type Service struct {
	repo          Repository
	userRepo      users.Repository
	contributions ContributionReader
	addresses     AddressValidator
	mailer        *mail.Dispatcher
	scheduler     TaskScheduler
	limits        Limits
	sanitizer     *bluemonday.Policy
	logger        *zap.Logger
}

// SetScheduler wires the deferred-job hook used for milestone reminders.
func (s *Service) SetScheduler(scheduler TaskScheduler) {
	s.scheduler = scheduler
}

// NewService creates a proposal service.
func NewService(
	repo Repository,
	userRepo users.Repository,
	contributions ContributionReader,
	addresses AddressValidator,
	mailer *mail.Dispatcher,
	limits Limits,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:          repo,
		userRepo:      userRepo,
		contributions: contributions,
		addresses:     addresses,
		mailer:        mailer,
		limits:        limits,
		sanitizer:     bluemonday.UGCPolicy(),
		logger:        logger,
	}
}

// Requests

type CreateProposalRequest struct {
	Title string `json:"title"`
	Brief string `json:"brief"`
	RFPID *uuid.UUID
}

type UpdateDraftRequest struct {
	Title                *string     `json:"title"`
	Brief                *string     `json:"brief"`
	Content              *string     `json:"content"`
	Target               *string     `json:"target"`
	PayoutAddress        *string     `json:"payoutAddress"`
	TipJarAddress        *string     `json:"tipJarAddress"`
	DeadlineDuration     *int64      `json:"deadlineDuration"`
	ContributionMatching *string     `json:"contributionMatching"`
	RFPOptIn             *bool       `json:"rfpOptIn"`
	Milestones           []Milestone `json:"milestones"`
}

// CreateProposal creates a DRAFT proposal owned by the given user, with its
// arbiter record created atomically alongside it.
func (s *Service) CreateProposal(ctx context.Context, ownerID uuid.UUID, req CreateProposalRequest) (*Proposal, error) {
	owner, err := s.userRepo.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	p := &Proposal{
		Status: StatusDraft,
		Stage:  StagePreview,
		Title:  req.Title,
		Brief:  req.Brief,
		RFPID:  req.RFPID,
		Team:   []users.User{*owner},
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("proposal created",
		zap.String("proposal_id", p.ID.String()),
		zap.String("owner_id", ownerID.String()))
	return p, nil
}

// editableStatuses are the statuses in which draft fields may still change.
var editableStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusRejected:  true,
	StatusLiveDraft: true,
}

// UpdateDraft applies field edits to a proposal that is still editable.
// Content is run through the HTML sanitizer.
func (s *Service) UpdateDraft(ctx context.Context, id, userID uuid.UUID, req UpdateDraftRequest) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsTeamMember(userID) {
		return nil, apperrors.Validation("only team members may edit a proposal")
	}
	if !editableStatuses[p.Status] {
		return nil, apperrors.Validation("cannot edit proposal with status %s", p.Status)
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Brief != nil {
		p.Brief = *req.Brief
	}
	if req.Content != nil {
		p.Content = s.sanitizer.Sanitize(*req.Content)
	}
	if req.Target != nil {
		target, err := money.Parse(*req.Target)
		if err != nil {
			return nil, err
		}
		p.TargetAmount = target
	}
	if req.PayoutAddress != nil {
		p.PayoutAddress = *req.PayoutAddress
	}
	if req.TipJarAddress != nil {
		p.TipJarAddress = *req.TipJarAddress
	}
	if req.DeadlineDuration != nil {
		p.DeadlineDuration = *req.DeadlineDuration
	}
	if req.ContributionMatching != nil {
		matching, err := money.Parse(*req.ContributionMatching)
		if err != nil {
			return nil, err
		}
		p.ContributionMatching = matching
	}
	if req.RFPOptIn != nil {
		p.RFPOptIn = *req.RFPOptIn
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if req.Milestones != nil {
			if err := tx.ReplaceMilestones(ctx, p.ID, req.Milestones); err != nil {
				return err
			}
		}
		return tx.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// SubmitForApproval validates a draft end to end (including payout address
// format via the watcher) and moves it into STAKING or PENDING.
func (s *Service) SubmitForApproval(ctx context.Context, id, userID uuid.UUID) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsTeamMember(userID) {
		return nil, apperrors.Validation("only team members may submit a proposal")
	}

	if err := s.validateAddresses(ctx, p); err != nil {
		return nil, err
	}

	staked, err := s.contributions.AmountStaked(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	effects, err := p.submitForApproval(s.limits, staked)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.dispatch(ctx, p, effects)
	return p, nil
}

// SetPendingWhenReady advances a STAKING proposal to PENDING if its staking
// target is now met. Called after a staking contribution confirms.
func (s *Service) SetPendingWhenReady(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	staked, err := s.contributions.AmountStaked(ctx, p.ID)
	if err != nil {
		return err
	}
	effects, moved := p.setPendingWhenReady(staked, s.limits.StakingTarget)
	if !moved {
		return nil
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.dispatch(ctx, p, effects)
	return nil
}

// ApproveDiscussion resolves the admin review of a PENDING proposal.
func (s *Service) ApproveDiscussion(ctx context.Context, id uuid.UUID, isOpen bool, rejectReason string) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effects, err := p.approveDiscussion(isOpen, rejectReason)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.dispatch(ctx, p, effects)
	return p, nil
}

// RequestChangesDiscussion flags a proposal under discussion as needing
// changes.
func (s *Service) RequestChangesDiscussion(ctx context.Context, id uuid.UUID, reason string) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effects, err := p.requestChangesDiscussion(reason)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.dispatch(ctx, p, effects)
	return p, nil
}

// ResolveChangesDiscussion clears the changes-requested flag.
func (s *Service) ResolveChangesDiscussion(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.resolveChangesDiscussion(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AcceptProposal publishes a proposal out of discussion, optionally fully
// funding it through the bounty.
func (s *Service) AcceptProposal(ctx context.Context, id uuid.UUID, withFunding bool) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effects, err := p.acceptProposal(withFunding, s.limits, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.dispatch(ctx, p, effects)

	// Work starts immediately on a funded acceptance, so the first milestone's
	// clock starts now.
	if withFunding && len(p.Milestones) > 0 {
		s.scheduleMilestoneReminder(ctx, p, &p.Milestones[0], time.Now())
	}
	return p, nil
}

// Publish is the legacy APPROVED to LIVE path, kept for proposals approved
// under the pre-discussion flow.
func (s *Service) Publish(ctx context.Context, id, userID uuid.UUID) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsTeamMember(userID) {
		return nil, apperrors.Validation("only team members may publish a proposal")
	}
	effects, err := p.publish(time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.dispatch(ctx, p, effects)
	return p, nil
}

// Cancel stops a live proposal and notifies the team and every confirmed
// contributor.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	effects, err := p.cancel()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.dispatch(ctx, p, effects)
	return p, nil
}

// Delete hard-removes a proposal still in an early-lifecycle status, cleaning
// up its owned child records in order. A live-draft child is removed first.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsTeamMember(userID) {
		return apperrors.Validation("only team members may delete a proposal")
	}
	if !deletableStatuses[p.Status] {
		return apperrors.Validation("cannot delete proposal with status %s", p.Status)
	}
	return s.repo.Transaction(ctx, func(tx Repository) error {
		if p.LiveDraftID != nil {
			if err := tx.DeleteCascade(ctx, *p.LiveDraftID); err != nil {
				return err
			}
		}
		return tx.DeleteCascade(ctx, p.ID)
	})
}

// Get returns a proposal aggregate.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	return s.repo.GetByID(ctx, id)
}

// Funded returns the effective funded amount: confirmed contributions with
// matching applied, plus bounty, clamped to target.
func (s *Service) Funded(ctx context.Context, p *Proposal) (decimal.Decimal, error) {
	contributed, err := s.contributions.Contributed(ctx, p.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Funded(p.TargetAmount, contributed, p.ContributionMatching, p.ContributionBounty), nil
}

// IsFunded reports whether the proposal has reached its target.
func (s *Service) IsFunded(ctx context.Context, p *Proposal) (bool, error) {
	funded, err := s.Funded(ctx, p)
	if err != nil {
		return false, err
	}
	return funded.GreaterThanOrEqual(p.TargetAmount), nil
}

// NominateArbiter nominates a user to arbitrate the proposal's milestone
// payouts. Team members cannot arbitrate their own proposal.
func (s *Service) NominateArbiter(ctx context.Context, proposalID, nomineeID uuid.UUID) (*ProposalArbiter, error) {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.IsTeamMember(nomineeID) {
		return nil, apperrors.Validation("team members cannot arbitrate their own proposal")
	}
	nominee, err := s.userRepo.GetByID(ctx, nomineeID)
	if err != nil {
		return nil, err
	}
	if p.Arbiter == nil {
		return nil, apperrors.NotFound("arbiter record for proposal %s not found", proposalID)
	}
	if p.Arbiter.Status == ArbiterAccepted {
		return nil, apperrors.Validation("proposal already has an accepted arbiter")
	}

	p.Arbiter.UserID = &nomineeID
	p.Arbiter.Status = ArbiterNominated
	if err := s.repo.SaveArbiter(ctx, p.Arbiter); err != nil {
		return nil, err
	}
	s.mailer.Send(ctx, mail.UserRecipient(nominee), mail.TemplateArbiterNominated, p.baseArgs())
	return p.Arbiter, nil
}

// AcceptArbiterNomination lets the nominee accept or decline.
func (s *Service) AcceptArbiterNomination(ctx context.Context, proposalID, userID uuid.UUID, accept bool) (*ProposalArbiter, error) {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Arbiter == nil || p.Arbiter.Status != ArbiterNominated ||
		p.Arbiter.UserID == nil || *p.Arbiter.UserID != userID {
		return nil, apperrors.Validation("user is not the nominated arbiter of this proposal")
	}
	if accept {
		p.Arbiter.Status = ArbiterAccepted
	} else {
		p.Arbiter.Status = ArbiterMissing
		p.Arbiter.UserID = nil
	}
	if err := s.repo.SaveArbiter(ctx, p.Arbiter); err != nil {
		return nil, err
	}
	return p.Arbiter, nil
}

func (s *Service) validateAddresses(ctx context.Context, p *Proposal) error {
	valid, err := s.addresses.ValidateAddress(ctx, p.PayoutAddress)
	if err != nil {
		return err
	}
	if !valid {
		return apperrors.Validation("payout address is not a valid address")
	}
	if p.TipJarAddress != "" {
		valid, err := s.addresses.ValidateAddress(ctx, p.TipJarAddress)
		if err != nil {
			return err
		}
		if !valid {
			return apperrors.Validation("tip jar address is not a valid address")
		}
	}
	return nil
}

// dispatch resolves effect audiences to recipients and delivers best-effort.
func (s *Service) dispatch(ctx context.Context, p *Proposal, effects []Effect) {
	for _, effect := range effects {
		recipients, err := s.resolveAudience(ctx, p, effect.Audience)
		if err != nil {
			s.logger.Error("failed to resolve notification audience",
				zap.String("audience", string(effect.Audience)),
				zap.String("proposal_id", p.ID.String()),
				zap.Error(err))
			continue
		}
		s.mailer.SendAll(ctx, recipients, mail.Template(effect.Template), effect.Args)
	}
}

func (s *Service) resolveAudience(ctx context.Context, p *Proposal, audience Audience) ([]mail.Recipient, error) {
	switch audience {
	case AudienceTeam:
		recipients := make([]mail.Recipient, 0, len(p.Team))
		for i := range p.Team {
			recipients = append(recipients, mail.UserRecipient(&p.Team[i]))
		}
		return recipients, nil
	case AudienceAdmins:
		admins, err := s.userRepo.ListAdmins(ctx)
		if err != nil {
			return nil, err
		}
		recipients := make([]mail.Recipient, 0, len(admins))
		for _, admin := range admins {
			recipients = append(recipients, mail.UserRecipient(admin))
		}
		return recipients, nil
	case AudienceArbiter:
		if p.Arbiter == nil || p.Arbiter.User == nil {
			return nil, nil
		}
		return []mail.Recipient{mail.UserRecipient(p.Arbiter.User)}, nil
	case AudienceContributors:
		contributors, err := s.contributions.ConfirmedContributors(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		recipients := make([]mail.Recipient, 0, len(contributors))
		for i := range contributors {
			recipients = append(recipients, mail.UserRecipient(&contributors[i]))
		}
		return recipients, nil
	}
	return nil, nil
}
