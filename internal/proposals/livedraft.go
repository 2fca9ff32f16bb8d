package proposals

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// The live-draft flow lets a published proposal be edited through a shadow
// copy. The draft is merged back with ConsumeLiveDraft, which records an
// immutable revision of what changed.

// MakeLiveDraft clones a proposal's editable fields into a LIVE_DRAFT shadow
// proposal. A proposal holds at most one live draft; repeated calls return the
// existing one.
func (s *Service) MakeLiveDraft(ctx context.Context, parentID, userID uuid.UUID) (*Proposal, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsTeamMember(userID) {
		return nil, apperrors.Validation("only team members may edit a proposal")
	}
	if parent.Status != StatusDiscussion && parent.Status != StatusLive {
		return nil, apperrors.Validation("cannot create a live draft for proposal with status %s", parent.Status)
	}
	if parent.LiveDraftID != nil {
		return s.repo.GetByID(ctx, *parent.LiveDraftID)
	}

	draft := cloneForEditing(parent)
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.Create(ctx, draft); err != nil {
			return err
		}
		if err := tx.ReplaceMilestones(ctx, draft.ID, cloneMilestones(parent.Milestones)); err != nil {
			return err
		}
		parent.LiveDraftID = &draft.ID
		return tx.Update(ctx, parent)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("live draft created",
		zap.String("proposal_id", parent.ID.String()),
		zap.String("draft_id", draft.ID.String()))
	return s.repo.GetByID(ctx, draft.ID)
}

// ConsumeLiveDraft merges a live draft back into its parent, valid only while
// the parent is under discussion.
//
// If the diff is empty and no out-of-band field (payout/tip address, RFP
// opt-in, team) changed, this is an error. If only out-of-band fields changed
// they are applied directly, without a revision, and the draft is removed.
// Otherwise the merge records a revision: on the first ever revision the
// current parent state is first frozen into an ARCHIVED copy so revision 0
// always exists, then the diff is recorded against that copy, the draft's
// fields are applied, invites are cleared, and the draft is archived.
func (s *Service) ConsumeLiveDraft(ctx context.Context, parentID, authorID uuid.UUID) (*Proposal, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsTeamMember(authorID) {
		return nil, apperrors.Validation("only team members may publish proposal changes")
	}
	if parent.Status != StatusDiscussion {
		return nil, apperrors.Validation("cannot publish changes for proposal with status %s", parent.Status)
	}
	if parent.LiveDraftID == nil {
		return nil, apperrors.NotFound("proposal %s has no live draft", parentID)
	}
	draft, err := s.repo.GetByID(ctx, *parent.LiveDraftID)
	if err != nil {
		return nil, err
	}

	changes := DiffProposals(parent, draft)
	outOfBand := hasOutOfBandChanges(parent, draft)

	if len(changes) == 0 && !outOfBand {
		return nil, apperrors.Validation("live draft has no changes")
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if len(changes) == 0 {
			// Out-of-band fields only: apply directly, no revision, drop the
			// draft entirely.
			applyOutOfBand(parent, draft)
			parent.LiveDraftID = nil
			if err := tx.Update(ctx, parent); err != nil {
				return err
			}
			if err := tx.ReplaceTeam(ctx, parent.ID, draft.Team); err != nil {
				return err
			}
			return tx.DeleteCascade(ctx, draft.ID)
		}

		// Freeze the pre-merge state.
		archived := cloneForEditing(parent)
		archived.Status = StatusArchived
		if err := tx.Create(ctx, archived); err != nil {
			return err
		}
		if err := tx.ReplaceMilestones(ctx, archived.ID, cloneMilestones(parent.Milestones)); err != nil {
			return err
		}

		nextIndex := len(parent.Revisions)
		if nextIndex == 0 {
			// Originally-unversioned proposal: record the base snapshot as
			// revision 0 before the first real revision.
			base := &ProposalRevision{
				ProposalID:         parent.ID,
				ArchivedProposalID: archived.ID,
				AuthorID:           authorID,
				RevisionIndex:      0,
				Changes:            []byte("[]"),
			}
			if err := tx.CreateRevision(ctx, base); err != nil {
				return err
			}
			nextIndex = 1
		}

		encoded, err := json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("failed to encode revision changes: %w", err)
		}
		revision := &ProposalRevision{
			ProposalID:         parent.ID,
			ArchivedProposalID: archived.ID,
			AuthorID:           authorID,
			RevisionIndex:      nextIndex,
			Changes:            encoded,
		}
		if err := tx.CreateRevision(ctx, revision); err != nil {
			return err
		}

		// Apply the draft onto the parent.
		parent.Title = draft.Title
		parent.Brief = draft.Brief
		parent.Content = draft.Content
		parent.TargetAmount = draft.TargetAmount
		parent.DeadlineDuration = draft.DeadlineDuration
		applyOutOfBand(parent, draft)
		parent.LiveDraftID = nil
		if err := tx.Update(ctx, parent); err != nil {
			return err
		}
		if err := tx.ReplaceMilestones(ctx, parent.ID, cloneMilestones(draft.Milestones)); err != nil {
			return err
		}
		if err := tx.ReplaceTeam(ctx, parent.ID, draft.Team); err != nil {
			return err
		}
		if err := tx.ClearInvites(ctx, parent.ID); err != nil {
			return err
		}

		draft.Status = StatusArchived
		return tx.Update(ctx, draft)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, parentID)
}

func cloneForEditing(p *Proposal) *Proposal {
	return &Proposal{
		Status:               StatusLiveDraft,
		Stage:                StagePreview,
		Title:                p.Title,
		Brief:                p.Brief,
		Content:              p.Content,
		TargetAmount:         p.TargetAmount,
		PayoutAddress:        p.PayoutAddress,
		TipJarAddress:        p.TipJarAddress,
		DeadlineDuration:     p.DeadlineDuration,
		ContributionMatching: p.ContributionMatching,
		ContributionBounty:   p.ContributionBounty,
		RFPID:                p.RFPID,
		RFPOptIn:             p.RFPOptIn,
		Team:                 append([]users.User(nil), p.Team...),
	}
}

func cloneMilestones(ms []Milestone) []Milestone {
	out := make([]Milestone, len(ms))
	for i, m := range ms {
		out[i] = Milestone{
			Title:           m.Title,
			Content:         m.Content,
			PayoutPercent:   m.PayoutPercent,
			ImmediatePayout: m.ImmediatePayout,
			DaysEstimated:   m.DaysEstimated,
			DateEstimated:   m.DateEstimated,
			Stage:           MilestoneNotRequested,
			Index:           i,
		}
	}
	return out
}

func hasOutOfBandChanges(parent, draft *Proposal) bool {
	if parent.PayoutAddress != draft.PayoutAddress {
		return true
	}
	if parent.TipJarAddress != draft.TipJarAddress {
		return true
	}
	if parent.RFPOptIn != draft.RFPOptIn {
		return true
	}
	return teamChanged(parent, draft)
}

func teamChanged(parent, draft *Proposal) bool {
	if len(parent.Team) != len(draft.Team) {
		return true
	}
	ids := make(map[uuid.UUID]bool, len(parent.Team))
	for _, member := range parent.Team {
		ids[member.ID] = true
	}
	for _, member := range draft.Team {
		if !ids[member.ID] {
			return true
		}
	}
	return false
}

func applyOutOfBand(parent, draft *Proposal) {
	parent.PayoutAddress = draft.PayoutAddress
	parent.TipJarAddress = draft.TipJarAddress
	parent.RFPOptIn = draft.RFPOptIn
}
