package proposals

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/tasks"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// ExpireMissedDeadlines sweeps published proposals whose funding deadline has
// passed without reaching their target, marks them failed, and notifies their
// teams. Invoked from the scheduled task runner; each proposal is handled
// independently so one failure does not stall the sweep.
func (s *Service) ExpireMissedDeadlines(ctx context.Context) error {
	candidates, err := s.repo.ListPublishedUnfunded(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, p := range candidates {
		funded, err := s.IsFunded(ctx, p)
		if err != nil {
			s.logger.Error("failed to compute funded amount",
				zap.String("proposal_id", p.ID.String()), zap.Error(err))
			continue
		}
		if !p.IsFailed(now, funded) {
			continue
		}

		effects, err := p.markFailed()
		if err != nil {
			s.logger.Error("failed to mark proposal failed",
				zap.String("proposal_id", p.ID.String()), zap.Error(err))
			continue
		}
		if err := s.repo.Update(ctx, p); err != nil {
			s.logger.Error("failed to persist failed proposal",
				zap.String("proposal_id", p.ID.String()), zap.Error(err))
			continue
		}

		s.logger.Info("proposal missed funding deadline",
			zap.String("proposal_id", p.ID.String()))
		s.dispatch(ctx, p, effects)
	}

	return nil
}

// milestoneDeadlinePayload is the milestone-reminder task body.
type milestoneDeadlinePayload struct {
	ProposalID  uuid.UUID `json:"proposalId"`
	MilestoneID uuid.UUID `json:"milestoneId"`
}

// scheduleMilestoneReminder enqueues a reminder for when the milestone's
// estimated duration runs out, counted from when work on it starts.
// Best-effort: a reminder is never worth failing the payout that triggered it.
func (s *Service) scheduleMilestoneReminder(ctx context.Context, p *Proposal, m *Milestone, from time.Time) {
	if s.scheduler == nil || m.DaysEstimated <= 0 {
		return
	}
	due := from.AddDate(0, 0, m.DaysEstimated)
	err := s.scheduler.Enqueue(ctx, tasks.JobMilestoneDeadline, milestoneDeadlinePayload{
		ProposalID:  p.ID,
		MilestoneID: m.ID,
	}, due)
	if err != nil {
		s.logger.Error("failed to schedule milestone reminder",
			zap.String("proposal_id", p.ID.String()),
			zap.String("milestone_id", m.ID.String()),
			zap.Error(err))
	}
}

// HandleMilestoneDeadline is the task handler for milestone reminders. The
// reminder only fires if the milestone is still unrequested on a live,
// in-progress proposal; anything else means the state moved on and the
// reminder is stale.
func (s *Service) HandleMilestoneDeadline(ctx context.Context, payload json.RawMessage) error {
	var body milestoneDeadlinePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return err
	}

	p, err := s.repo.GetByID(ctx, body.ProposalID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("milestone reminder for unknown proposal",
				zap.String("proposal_id", body.ProposalID.String()))
			return nil
		}
		return err
	}
	if p.Status != StatusLive || p.Stage != StageWIP {
		return nil
	}

	m, err := p.findMilestone(body.MilestoneID)
	if err != nil {
		return nil
	}
	if m.Stage != MilestoneNotRequested {
		return nil
	}

	args := p.baseArgs()
	args["MilestoneTitle"] = m.Title
	s.dispatch(ctx, p, []Effect{
		{Template: effectMilestoneDeadline, Audience: AudienceTeam, Args: args},
	})
	return nil
}
