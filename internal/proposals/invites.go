package proposals

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// InviteTeamMember records a pending invitation to join the proposal team,
// addressed by email. If the address belongs to an existing account the invite
// is linked to it immediately; either way the address is emailed.
func (s *Service) InviteTeamMember(ctx context.Context, proposalID, requesterID uuid.UUID, address string) (*TeamInvite, error) {
	address = strings.TrimSpace(strings.ToLower(address))
	if address == "" {
		return nil, apperrors.Validation("an invite address is required")
	}

	p, err := s.repo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsTeamMember(requesterID) {
		return nil, apperrors.Validation("only team members may invite others")
	}
	if !editableStatuses[p.Status] {
		return nil, apperrors.Validation("cannot invite to a proposal with status %s", p.Status)
	}

	for _, member := range p.Team {
		if strings.EqualFold(member.EmailAddress, address) {
			return nil, apperrors.Validation("%s is already a team member", address)
		}
	}
	for i := range p.Invites {
		invite := &p.Invites[i]
		if invite.Accepted == nil && strings.EqualFold(invite.Address, address) {
			return invite, nil
		}
	}

	invite := &TeamInvite{
		ID:         uuid.New(),
		ProposalID: p.ID,
		Address:    address,
	}

	recipient := mail.Recipient{Email: address, Subscriptions: users.SubscriptionAll}
	if invited, err := s.userRepo.GetByEmail(ctx, address); err == nil {
		invite.UserID = &invited.ID
		recipient = mail.UserRecipient(invited)
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	if err := s.repo.SaveInvite(ctx, invite); err != nil {
		return nil, err
	}

	s.mailer.Send(ctx, recipient, mail.TemplateTeamInvite, map[string]any{
		"ProposalTitle": p.Title,
	})
	return invite, nil
}

// RespondToTeamInvite answers an open invitation. Accepting adds the user to
// the proposal team; either answer closes the invite.
func (s *Service) RespondToTeamInvite(ctx context.Context, inviteID, userID uuid.UUID, accept bool) (*TeamInvite, error) {
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if invite.Accepted != nil {
		return nil, apperrors.Validation("invite has already been answered")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if invite.UserID != nil {
		if *invite.UserID != userID {
			return nil, apperrors.Validation("invite is addressed to another user")
		}
	} else if !strings.EqualFold(invite.Address, user.EmailAddress) {
		return nil, apperrors.Validation("invite is addressed to another user")
	}

	invite.Accepted = &accept
	invite.UserID = &userID

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.SaveInvite(ctx, invite); err != nil {
			return err
		}
		if accept {
			return tx.AddTeamMember(ctx, invite.ProposalID, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}
