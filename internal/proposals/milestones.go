package proposals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/money"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Milestone payout sub-state machine: NOT_REQUESTED -> ONGOING_VOTE (team
// member requests, proposal must be funded) -> PAID (arbiter accepts) or back
// to NOT_REQUESTED (arbiter rejects with a reason).

// PayoutAmount is the tranche paid for this milestone: percent of the
// proposal target.
func (m *Milestone) PayoutAmount(target decimal.Decimal) decimal.Decimal {
	return money.Quantize(target.Mul(decimal.NewFromInt(int64(m.PayoutPercent))).Div(decimal.NewFromInt(100)))
}

func (p *Proposal) findMilestone(milestoneID uuid.UUID) (*Milestone, error) {
	for i := range p.Milestones {
		if p.Milestones[i].ID == milestoneID {
			return &p.Milestones[i], nil
		}
	}
	// A milestone id that does not belong to the proposal is a lookup miss,
	// not an internal failure.
	return nil, apperrors.NotFound("milestone %s not found on proposal %s", milestoneID, p.ID)
}

// RequestMilestonePayout opens an arbiter vote on a milestone payout. The
// proposal must be funded and the caller a team member.
func (s *Service) RequestMilestonePayout(ctx context.Context, proposalID, milestoneID, userID uuid.UUID) (*Milestone, error) {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsTeamMember(userID) {
		return nil, apperrors.Validation("only team members may request a milestone payout")
	}
	m, err := p.findMilestone(milestoneID)
	if err != nil {
		return nil, err
	}

	funded, err := s.IsFunded(ctx, p)
	if err != nil {
		return nil, err
	}
	if !funded {
		return nil, apperrors.Validation("milestone payouts require a fully funded proposal")
	}

	machine := newMilestoneMachine()
	if !machine.CanTransition(string(m.Stage), string(MilestoneOngoingVote)) {
		return nil, apperrors.Validation("cannot request payout for milestone in stage %s", m.Stage)
	}

	now := time.Now()
	m.Stage = MilestoneOngoingVote
	m.DateRequested = &now
	m.RejectReason = ""
	if err := s.repo.UpdateMilestone(ctx, m); err != nil {
		return nil, err
	}

	args := p.baseArgs()
	args["MilestoneTitle"] = m.Title
	s.dispatch(ctx, p, []Effect{
		{Template: effectMilestoneRequest, Audience: AudienceArbiter, Args: args},
	})
	s.logger.Info("milestone payout requested",
		zap.String("proposal_id", p.ID.String()),
		zap.String("milestone_id", m.ID.String()))
	return m, nil
}

// AcceptMilestonePayout marks a requested milestone as paid. Only the
// accepted arbiter may do this.
func (s *Service) AcceptMilestonePayout(ctx context.Context, proposalID, milestoneID, userID uuid.UUID) (*Milestone, error) {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsArbiter(userID) {
		return nil, apperrors.Validation("only the proposal arbiter may accept a payout request")
	}
	m, err := p.findMilestone(milestoneID)
	if err != nil {
		return nil, err
	}

	machine := newMilestoneMachine()
	if !machine.CanTransition(string(m.Stage), string(MilestonePaid)) {
		return nil, apperrors.Validation("cannot accept payout for milestone in stage %s", m.Stage)
	}

	now := time.Now()
	m.Stage = MilestonePaid
	m.DatePaid = &now
	if err := s.repo.UpdateMilestone(ctx, m); err != nil {
		return nil, err
	}

	args := p.baseArgs()
	args["MilestoneTitle"] = m.Title
	args["Amount"] = m.PayoutAmount(p.TargetAmount).String()
	s.dispatch(ctx, p, []Effect{
		{Template: effectMilestoneAccept, Audience: AudienceTeam, Args: args},
	})

	// The next milestone's clock starts when this one pays out.
	for i := range p.Milestones {
		if p.Milestones[i].Index == m.Index+1 {
			s.scheduleMilestoneReminder(ctx, p, &p.Milestones[i], now)
			break
		}
	}
	return m, nil
}

// RejectMilestonePayout sends a requested milestone back to NOT_REQUESTED
// with a mandatory reason.
func (s *Service) RejectMilestonePayout(ctx context.Context, proposalID, milestoneID, userID uuid.UUID, reason string) (*Milestone, error) {
	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsArbiter(userID) {
		return nil, apperrors.Validation("only the proposal arbiter may reject a payout request")
	}
	if err := validateRejectReason(reason); err != nil {
		return nil, err
	}
	m, err := p.findMilestone(milestoneID)
	if err != nil {
		return nil, err
	}

	machine := newMilestoneMachine()
	if m.Stage != MilestoneOngoingVote || !machine.CanTransition(string(m.Stage), string(MilestoneNotRequested)) {
		return nil, apperrors.Validation("cannot reject payout for milestone in stage %s", m.Stage)
	}

	m.Stage = MilestoneNotRequested
	m.DateRequested = nil
	m.RejectReason = reason
	if err := s.repo.UpdateMilestone(ctx, m); err != nil {
		return nil, err
	}

	args := p.baseArgs()
	args["MilestoneTitle"] = m.Title
	args["Reason"] = reason
	s.dispatch(ctx, p, []Effect{
		{Template: effectMilestoneReject, Audience: AudienceTeam, Args: args},
	})
	return m, nil
}
