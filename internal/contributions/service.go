package contributions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/money"
	"grantflow/grant-portal-backend/internal/proposals"
	"grantflow/grant-portal-backend/internal/tasks"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// ProposalAdvancer is the slice of the proposal workflow the ledger pokes
// when a staking contribution confirms.
type ProposalAdvancer interface {
	SetPendingWhenReady(ctx context.Context, id uuid.UUID) error
}

// TaskScheduler enqueues deferred jobs. Implemented by the task runner.
type TaskScheduler interface {
	Enqueue(ctx context.Context, jobType tasks.JobType, payload any, notBefore time.Time) error
}

// Service is the contribution ledger: pledge creation with idempotency
// lookup, one-way confirmation, staking remainders, and funding aggregates.
type Service struct {
	repo          Repository
	proposalRepo  proposals.Repository
	advancer      ProposalAdvancer
	scheduler     TaskScheduler
	mailer        *mail.Dispatcher
	stakingTarget decimal.Decimal
	expiry        time.Duration
	logger        *zap.Logger
}

// NewService creates a contribution service. The advancer may be set after
// construction to break the wiring cycle with the proposal service.
func NewService(
	repo Repository,
	proposalRepo proposals.Repository,
	scheduler TaskScheduler,
	mailer *mail.Dispatcher,
	stakingTarget decimal.Decimal,
	expiry time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:          repo,
		proposalRepo:  proposalRepo,
		scheduler:     scheduler,
		mailer:        mailer,
		stakingTarget: stakingTarget,
		expiry:        expiry,
		logger:        logger,
	}
}

// SetAdvancer wires the proposal workflow hook.
func (s *Service) SetAdvancer(advancer ProposalAdvancer) {
	s.advancer = advancer
}

// CreateRequest describes a new pledge.
type CreateRequest struct {
	ProposalID uuid.UUID
	UserID     *uuid.UUID
	Amount     string
	Staking    bool
	Private    bool
}

// expiryPayload is the contribution-expiry task body.
type expiryPayload struct {
	ContributionID uuid.UUID `json:"contributionId"`
}

// Create records a PENDING pledge. For signed-in users it first performs the
// idempotency lookup so client retries do not duplicate pledges, and
// schedules an expiry job.
//
// The lookup-then-insert pair is a read-then-write sequence relying on the
// store's transaction isolation; concurrent identical requests can still race
// to create duplicates without a uniqueness constraint.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Contribution, error) {
	amount, err := money.Parse(req.Amount)
	if err != nil {
		return nil, err
	}
	if err := money.ValidateContribution(amount); err != nil {
		return nil, err
	}
	if _, err := s.proposalRepo.GetByID(ctx, req.ProposalID); err != nil {
		return nil, err
	}

	if req.UserID != nil {
		existing, err := s.repo.GetExistingPending(ctx, *req.UserID, req.ProposalID, amount, req.Private)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	c := &Contribution{
		ProposalID: req.ProposalID,
		UserID:     req.UserID,
		Amount:     amount,
		Status:     StatusPending,
		Staking:    req.Staking,
		Private:    req.Private,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if req.UserID != nil {
		err := s.scheduler.Enqueue(ctx, tasks.JobContributionExpiry,
			expiryPayload{ContributionID: c.ID}, time.Now().Add(s.expiry))
		if err != nil {
			// Expiry reminders are best effort; the pledge stands either way.
			s.logger.Error("failed to schedule contribution expiry",
				zap.String("contribution_id", c.ID.String()), zap.Error(err))
		}
	}
	return c, nil
}

// Confirm applies a blockchain-watcher confirmation: one-way PENDING to
// CONFIRMED with the settled amount and transaction id. Re-confirming is a
// no-op success, and unknown ids are logged rather than raised so webhook
// delivery never hard-fails.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, txID, amount string) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Error("confirmation for unknown contribution",
				zap.String("contribution_id", id.String()),
				zap.String("tx_id", txID))
			return nil
		}
		return err
	}
	if c.Status == StatusConfirmed {
		return nil
	}

	settled, err := money.Parse(amount)
	if err != nil {
		return err
	}
	now := time.Now()
	c.Status = StatusConfirmed
	c.TxID = txID
	c.Amount = settled
	c.DateConfirmed = &now
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}

	if c.Staking && s.advancer != nil {
		if err := s.advancer.SetPendingWhenReady(ctx, c.ProposalID); err != nil {
			s.logger.Error("failed to advance staked proposal",
				zap.String("proposal_id", c.ProposalID.String()), zap.Error(err))
		}
	}
	return nil
}

// Delete soft-removes a pledge. Only the owner may delete, and only while the
// pledge is still pending.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID == nil || *c.UserID != userID {
		return apperrors.Validation("only the contributor may delete a contribution")
	}
	if c.Status != StatusPending {
		return apperrors.Validation("cannot delete a contribution with status %s", c.Status)
	}
	c.Status = StatusDeleted
	return s.repo.Update(ctx, c)
}

// GetStakingContribution returns the user's open staking pledge for a
// proposal, creating one sized to the outstanding staking remainder.
func (s *Service) GetStakingContribution(ctx context.Context, proposalID, userID uuid.UUID) (*Contribution, error) {
	staked, err := s.AmountStaked(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	remaining := s.stakingTarget.Sub(staked)
	if !remaining.IsPositive() {
		return nil, apperrors.Validation("proposal is already fully staked")
	}

	existing, err := s.repo.GetPendingStaking(ctx, proposalID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	c := &Contribution{
		ProposalID: proposalID,
		UserID:     &userID,
		Amount:     remaining,
		Status:     StatusPending,
		Staking:    true,
		Private:    true,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a pledge visible to its owner.
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Contribution, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID == nil || *c.UserID != userID {
		return nil, apperrors.NotFound("contribution not found")
	}
	return c, nil
}

// Contributed is the sum of confirmed non-staking amounts.
func (s *Service) Contributed(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumConfirmed(ctx, proposalID, false)
}

// AmountStaked is the sum of confirmed staking amounts.
func (s *Service) AmountStaked(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumConfirmed(ctx, proposalID, true)
}

// ConfirmedContributors lists the distinct users with confirmed
// contributions to a proposal.
func (s *Service) ConfirmedContributors(ctx context.Context, proposalID uuid.UUID) ([]users.User, error) {
	return s.repo.ConfirmedContributors(ctx, proposalID)
}

// Funded computes the displayed funded amount for a proposal.
func (s *Service) Funded(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error) {
	p, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return decimal.Zero, err
	}
	contributed, err := s.Contributed(ctx, proposalID)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Funded(p.TargetAmount, contributed, p.ContributionMatching, p.ContributionBounty), nil
}

// PendingState returns what the watcher needs for its bootstrap handshake:
// ids of still-pending contributions and the latest confirmed tx id.
func (s *Service) PendingState(ctx context.Context) ([]uuid.UUID, string, error) {
	ids, err := s.repo.ListPendingIDs(ctx)
	if err != nil {
		return nil, "", err
	}
	latest, err := s.repo.LatestConfirmedTxID(ctx)
	if err != nil {
		return nil, "", err
	}
	return ids, latest, nil
}

// HandleExpiry is the contribution_expiry task body: if the pledge is still
// pending past its window, soft-delete it and tell the contributor. Replays
// are no-ops.
func (s *Service) HandleExpiry(ctx context.Context, payload json.RawMessage) error {
	var body expiryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}
	c, err := s.repo.GetByID(ctx, body.ContributionID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if c.Status != StatusPending {
		return nil
	}

	c.Status = StatusDeleted
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}

	if c.User != nil {
		p, err := s.proposalRepo.GetByID(ctx, c.ProposalID)
		if err != nil {
			return nil
		}
		s.mailer.Send(ctx, mail.UserRecipient(c.User), mail.TemplateContributionExpired, map[string]any{
			"ProposalTitle": p.Title,
			"Amount":        c.Amount.String(),
		})
	}
	return nil
}
