package proposals

import (
	"time"

	"github.com/shopspring/decimal"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Audience selects who receives an effect's notification.
type Audience string

const (
	AudienceTeam         Audience = "team"
	AudienceAdmins       Audience = "admins"
	AudienceArbiter      Audience = "arbiter"
	AudienceContributors Audience = "contributors"
)

// Effect is a notification requested by a state transition. Transitions are
// pure: they mutate the entity in memory and return the effects to perform.
// The service persists the mutation first and dispatches effects best-effort
// afterwards, so a notification failure can never roll back a transition.
type Effect struct {
	Template string
	Audience Audience
	Args     map[string]any
}

// Template keys dispatched by proposal transitions. They mirror the mail
// package registry; the service resolves them at dispatch time.
const (
	effectAdminApproval     = "admin_approval"
	effectApprovedDiscuss   = "proposal_approved_discussion"
	effectRejectedDiscuss   = "proposal_rejected_discussion"
	effectChangesRequested  = "proposal_changes_requested"
	effectAccepted          = "proposal_accepted"
	effectAcceptedFunded    = "proposal_accepted_with_funding"
	effectCanceled          = "proposal_canceled"
	effectCanceledRefund    = "contribution_proposal_canceled"
	effectMilestoneRequest  = "milestone_request"
	effectMilestoneAccept   = "milestone_accept"
	effectMilestoneReject   = "milestone_reject"
	effectMilestoneDeadline = "milestone_deadline"
	effectArbiterNominated  = "proposal_arbiter"
	effectProposalSubmitted = "proposal_submitted"
	effectProposalFailed    = "proposal_failed"
)

var (
	statusMachine = newStatusMachine()
	stageMachine  = newStageMachine()
)

// canMove consults the closed transition table. Operation-specific source
// checks still apply on top of it where two operations share a target status.
func (p *Proposal) canMove(to Status) bool {
	return statusMachine.CanTransition(string(p.Status), string(to))
}

func (p *Proposal) baseArgs() map[string]any {
	return map[string]any{
		"ProposalTitle": p.Title,
		"ProposalID":    p.ID.String(),
	}
}

// submitForApproval moves a draft (or a rejected proposal being resubmitted)
// into review. If the staking requirement is not yet met the proposal parks in
// STAKING instead and auto-advances once staking confirms.
func (p *Proposal) submitForApproval(limits Limits, staked decimal.Decimal) ([]Effect, error) {
	if !p.canMove(StatusPending) || (p.Status != StatusDraft && p.Status != StatusRejected) {
		return nil, apperrors.Validation("cannot submit proposal with status %s for approval", p.Status)
	}
	if err := ValidatePublishable(p, limits); err != nil {
		return nil, err
	}
	if err := ValidateMilestoneDays(p.Milestones); err != nil {
		return nil, err
	}

	if staked.LessThan(limits.StakingTarget) {
		p.Status = StatusStaking
		return []Effect{
			{Template: effectProposalSubmitted, Audience: AudienceTeam, Args: p.baseArgs()},
		}, nil
	}

	p.Status = StatusPending
	return []Effect{
		{Template: effectProposalSubmitted, Audience: AudienceTeam, Args: p.baseArgs()},
		{Template: effectAdminApproval, Audience: AudienceAdmins, Args: p.baseArgs()},
	}, nil
}

// setPendingWhenReady advances STAKING to PENDING once the staking target is
// fully met. It reports whether a transition happened.
func (p *Proposal) setPendingWhenReady(staked, stakingTarget decimal.Decimal) ([]Effect, bool) {
	if p.Status != StatusStaking || !p.canMove(StatusPending) || staked.LessThan(stakingTarget) {
		return nil, false
	}
	p.Status = StatusPending
	return []Effect{
		{Template: effectAdminApproval, Audience: AudienceAdmins, Args: p.baseArgs()},
	}, true
}

// approveDiscussion resolves an admin review: open the proposal for public
// discussion, or reject it with a mandatory reason.
func (p *Proposal) approveDiscussion(isOpen bool, rejectReason string) ([]Effect, error) {
	if p.Status != StatusPending || !p.canMove(StatusDiscussion) {
		return nil, apperrors.Validation("cannot review proposal with status %s", p.Status)
	}

	if isOpen {
		p.Status = StatusDiscussion
		return []Effect{
			{Template: effectApprovedDiscuss, Audience: AudienceTeam, Args: p.baseArgs()},
		}, nil
	}

	if rejectReason == "" {
		return nil, apperrors.Validation("a reject reason is required")
	}
	p.Status = StatusRejected
	args := p.baseArgs()
	args["Reason"] = rejectReason
	return []Effect{
		{Template: effectRejectedDiscuss, Audience: AudienceTeam, Args: args},
	}, nil
}

// requestChangesDiscussion flags a proposal under discussion as needing
// changes before it can be accepted.
func (p *Proposal) requestChangesDiscussion(reason string) ([]Effect, error) {
	if p.Status != StatusDiscussion {
		return nil, apperrors.Validation("cannot request changes for proposal with status %s", p.Status)
	}
	if reason == "" {
		return nil, apperrors.Validation("a reason is required to request changes")
	}
	p.ChangesRequestedDiscussion = true
	p.ChangesRequestedDiscussionReason = reason
	args := p.baseArgs()
	args["Reason"] = reason
	return []Effect{
		{Template: effectChangesRequested, Audience: AudienceTeam, Args: args},
	}, nil
}

// resolveChangesDiscussion clears the changes-requested flag.
func (p *Proposal) resolveChangesDiscussion() error {
	if p.Status != StatusDiscussion {
		return apperrors.Validation("cannot resolve changes for proposal with status %s", p.Status)
	}
	p.ChangesRequestedDiscussion = false
	p.ChangesRequestedDiscussionReason = ""
	return nil
}

// acceptProposal takes a proposal out of discussion and publishes it. With
// funding, the bounty is set to the full target so the proposal is fully
// funded on acceptance.
func (p *Proposal) acceptProposal(withFunding bool, limits Limits, now time.Time) ([]Effect, error) {
	if p.Status != StatusDiscussion || !p.canMove(StatusLive) {
		return nil, apperrors.Validation("cannot accept proposal with status %s", p.Status)
	}
	if err := ValidatePublishable(p, limits); err != nil {
		return nil, err
	}

	p.Status = StatusLive
	p.Stage = StageWIP
	p.DateApproved = &now
	p.DatePublished = &now
	args := p.baseArgs()
	args["Target"] = p.TargetAmount.String()

	if withFunding {
		p.ContributionBounty = p.TargetAmount
		args["Bounty"] = p.ContributionBounty.String()
		return []Effect{
			{Template: effectAcceptedFunded, Audience: AudienceTeam, Args: args},
		}, nil
	}
	return []Effect{
		{Template: effectAccepted, Audience: AudienceTeam, Args: args},
	}, nil
}

// publish is the legacy pre-discussion path from APPROVED to LIVE.
func (p *Proposal) publish(now time.Time) ([]Effect, error) {
	if p.Status != StatusApproved || !p.canMove(StatusLive) {
		return nil, apperrors.Validation("cannot publish proposal with status %s", p.Status)
	}
	p.Status = StatusLive
	if stageMachine.CanTransition(string(p.Stage), string(StageWIP)) {
		p.Stage = StageWIP
	}
	p.DatePublished = &now
	return nil, nil
}

// cancel stops a live proposal. Confirmed contributors are notified so they
// can set a refund address.
func (p *Proposal) cancel() ([]Effect, error) {
	if p.Status != StatusLive || !stageMachine.CanTransition(string(p.Stage), string(StageCanceled)) {
		return nil, apperrors.Validation("cannot cancel proposal with status %s", p.Status)
	}
	p.Stage = StageCanceled
	return []Effect{
		{Template: effectCanceled, Audience: AudienceTeam, Args: p.baseArgs()},
		{Template: effectCanceledRefund, Audience: AudienceContributors, Args: p.baseArgs()},
	}, nil
}

// markFailed records a missed funding deadline.
func (p *Proposal) markFailed() ([]Effect, error) {
	if !stageMachine.CanTransition(string(p.Stage), string(StageFailed)) {
		return nil, apperrors.Validation("cannot fail proposal in stage %s", p.Stage)
	}
	p.Stage = StageFailed
	return []Effect{
		{Template: effectProposalFailed, Audience: AudienceTeam, Args: p.baseArgs()},
	}, nil
}

// IsFailed reports whether a published proposal missed its funding deadline.
// Derived, never stored: true iff the proposal is live, published, not already
// failed or canceled, past its deadline, and not funded.
func (p *Proposal) IsFailed(now time.Time, funded bool) bool {
	if p.Status != StatusLive || p.DatePublished == nil {
		return false
	}
	if p.Stage == StageFailed || p.Stage == StageCanceled {
		return false
	}
	deadline := p.Deadline()
	if deadline == nil || now.Before(*deadline) {
		return false
	}
	return !funded
}
