package proposals

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

func discussionProposal(memberID uuid.UUID) *Proposal {
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusDiscussion
	p.Team = []users.User{teamMember(memberID)}
	return p
}

func liveDraftOf(parent *Proposal) *Proposal {
	draft := cloneForEditing(parent)
	draft.ID = uuid.New()
	draft.Milestones = cloneMilestones(parent.Milestones)
	parent.LiveDraftID = &draft.ID
	return draft
}

func TestMakeLiveDraftClonesEditableFields(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	draftID := uuid.New()
	draft := cloneForEditing(parent)
	draft.ID = draftID

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)
	m.repo.On("Create", ctx, mock.AnythingOfType("*proposals.Proposal")).
		Run(func(args mock.Arguments) {
			created := args.Get(1).(*Proposal)
			assert.Equal(t, StatusLiveDraft, created.Status)
			assert.Equal(t, parent.Title, created.Title)
			created.ID = draftID
		}).Return(nil)
	m.repo.On("ReplaceMilestones", ctx, draftID, mock.Anything).Return(nil)
	m.repo.On("Update", ctx, parent).Return(nil)
	m.repo.On("GetByID", ctx, draftID).Return(draft, nil)

	result, err := service.MakeLiveDraft(ctx, parent.ID, memberID)

	require.NoError(t, err)
	assert.Equal(t, draftID, result.ID)
	require.NotNil(t, parent.LiveDraftID)
	assert.Equal(t, draftID, *parent.LiveDraftID)
}

func TestMakeLiveDraftReturnsExistingDraft(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	draft := liveDraftOf(parent)

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)
	m.repo.On("GetByID", ctx, draft.ID).Return(draft, nil)

	result, err := service.MakeLiveDraft(ctx, parent.ID, memberID)

	require.NoError(t, err)
	assert.Equal(t, draft.ID, result.ID)
	m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMakeLiveDraftRejectsDraftProposal(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	parent.Status = StatusDraft

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)

	_, err := service.MakeLiveDraft(ctx, parent.ID, memberID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestConsumeLiveDraftWithoutChangesIsAnError(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	draft := liveDraftOf(parent)

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)
	m.repo.On("GetByID", ctx, draft.ID).Return(draft, nil)

	_, err := service.ConsumeLiveDraft(ctx, parent.ID, memberID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestConsumeLiveDraftOutOfBandOnlySkipsRevision(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	draft := liveDraftOf(parent)
	draftID := draft.ID
	draft.PayoutAddress = "14E5nqKAp3oAJcmzgZhUa2RKWpXys24bDgtJf6zX1wCji8zu"

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)
	m.repo.On("GetByID", ctx, draftID).Return(draft, nil)
	m.repo.On("Update", ctx, parent).Return(nil)
	m.repo.On("ReplaceTeam", ctx, parent.ID, draft.Team).Return(nil)
	m.repo.On("DeleteCascade", ctx, draftID).Return(nil)

	result, err := service.ConsumeLiveDraft(ctx, parent.ID, memberID)

	require.NoError(t, err)
	assert.Equal(t, draft.PayoutAddress, result.PayoutAddress)
	assert.Nil(t, result.LiveDraftID)
	m.repo.AssertNotCalled(t, "CreateRevision", mock.Anything, mock.Anything)
	m.repo.AssertExpectations(t)
}

func TestConsumeLiveDraftFirstMergeRecordsBaseRevision(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	draft := liveDraftOf(parent)
	draft.Title = "Light client, revised"
	archivedID := uuid.New()

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)
	m.repo.On("GetByID", ctx, draft.ID).Return(draft, nil)
	m.repo.On("Create", ctx, mock.AnythingOfType("*proposals.Proposal")).
		Run(func(args mock.Arguments) {
			archived := args.Get(1).(*Proposal)
			assert.Equal(t, StatusArchived, archived.Status)
			archived.ID = archivedID
		}).Return(nil)
	m.repo.On("ReplaceMilestones", ctx, mock.Anything, mock.Anything).Return(nil)
	m.repo.On("CreateRevision", ctx, mock.MatchedBy(func(r *ProposalRevision) bool {
		return r.RevisionIndex == 0 && string(r.Changes) == "[]"
	})).Return(nil).Once()
	m.repo.On("CreateRevision", ctx, mock.MatchedBy(func(r *ProposalRevision) bool {
		if r.RevisionIndex != 1 || r.ArchivedProposalID != archivedID {
			return false
		}
		var changes []Change
		if err := json.Unmarshal(r.Changes, &changes); err != nil {
			return false
		}
		return len(changes) == 1 && changes[0].Type == ChangeProposalTitle
	})).Return(nil).Once()
	m.repo.On("Update", ctx, mock.AnythingOfType("*proposals.Proposal")).Return(nil)
	m.repo.On("ReplaceTeam", ctx, parent.ID, draft.Team).Return(nil)
	m.repo.On("ClearInvites", ctx, parent.ID).Return(nil)

	result, err := service.ConsumeLiveDraft(ctx, parent.ID, memberID)

	require.NoError(t, err)
	assert.Equal(t, "Light client, revised", result.Title)
	assert.Nil(t, result.LiveDraftID)
	assert.Equal(t, StatusArchived, draft.Status)
	m.repo.AssertExpectations(t)
}

func TestConsumeLiveDraftLaterMergeSkipsBaseRevision(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	parent.Revisions = []ProposalRevision{
		{RevisionIndex: 0}, {RevisionIndex: 1},
	}
	draft := liveDraftOf(parent)
	draft.Brief = "Now with warp sync support"

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)
	m.repo.On("GetByID", ctx, draft.ID).Return(draft, nil)
	m.repo.On("Create", ctx, mock.AnythingOfType("*proposals.Proposal")).Return(nil)
	m.repo.On("ReplaceMilestones", ctx, mock.Anything, mock.Anything).Return(nil)
	m.repo.On("CreateRevision", ctx, mock.MatchedBy(func(r *ProposalRevision) bool {
		return r.RevisionIndex == 2
	})).Return(nil).Once()
	m.repo.On("Update", ctx, mock.AnythingOfType("*proposals.Proposal")).Return(nil)
	m.repo.On("ReplaceTeam", ctx, parent.ID, draft.Team).Return(nil)
	m.repo.On("ClearInvites", ctx, parent.ID).Return(nil)

	_, err := service.ConsumeLiveDraft(ctx, parent.ID, memberID)

	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestConsumeLiveDraftOnlyWhileUnderDiscussion(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	parent := discussionProposal(memberID)
	parent.Status = StatusLive
	liveDraftOf(parent)

	m.repo.On("GetByID", ctx, parent.ID).Return(parent, nil)

	_, err := service.ConsumeLiveDraft(ctx, parent.ID, memberID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
