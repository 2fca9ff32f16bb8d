package proposals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/tasks"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p *Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Proposal), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, p *Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) ListByStatus(ctx context.Context, status Status) ([]*Proposal, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]*Proposal), args.Error(1)
}

func (m *MockRepository) ListPublishedUnfunded(ctx context.Context) ([]*Proposal, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*Proposal), args.Error(1)
}

func (m *MockRepository) ReplaceMilestones(ctx context.Context, proposalID uuid.UUID, milestones []Milestone) error {
	args := m.Called(ctx, proposalID, milestones)
	return args.Error(0)
}

func (m *MockRepository) UpdateMilestone(ctx context.Context, milestone *Milestone) error {
	args := m.Called(ctx, milestone)
	return args.Error(0)
}

func (m *MockRepository) ReplaceTeam(ctx context.Context, proposalID uuid.UUID, team []users.User) error {
	args := m.Called(ctx, proposalID, team)
	return args.Error(0)
}

func (m *MockRepository) AddTeamMember(ctx context.Context, proposalID uuid.UUID, member *users.User) error {
	args := m.Called(ctx, proposalID, member)
	return args.Error(0)
}

func (m *MockRepository) SaveInvite(ctx context.Context, invite *TeamInvite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockRepository) GetInvite(ctx context.Context, id uuid.UUID) (*TeamInvite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TeamInvite), args.Error(1)
}

func (m *MockRepository) ClearInvites(ctx context.Context, proposalID uuid.UUID) error {
	args := m.Called(ctx, proposalID)
	return args.Error(0)
}

func (m *MockRepository) SaveArbiter(ctx context.Context, a *ProposalArbiter) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) CreateRevision(ctx context.Context, r *ProposalRevision) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Transaction runs the callback against the mock itself so multi-step
// expectations read flat in tests.
func (m *MockRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return fn(m)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserRepository) ListAdmins(ctx context.Context) ([]*users.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*users.User), args.Error(1)
}

func (m *MockUserRepository) UpdateEmailSettings(ctx context.Context, id uuid.UUID, settings users.Subscription) error {
	args := m.Called(ctx, id, settings)
	return args.Error(0)
}

type MockContributionReader struct {
	mock.Mock
}

func (m *MockContributionReader) Contributed(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, proposalID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockContributionReader) AmountStaked(ctx context.Context, proposalID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, proposalID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockContributionReader) ConfirmedContributors(ctx context.Context, proposalID uuid.UUID) ([]users.User, error) {
	args := m.Called(ctx, proposalID)
	return args.Get(0).([]users.User), args.Error(1)
}

type MockAddressValidator struct {
	mock.Mock
}

func (m *MockAddressValidator) ValidateAddress(ctx context.Context, addr string) (bool, error) {
	args := m.Called(ctx, addr)
	return args.Bool(0), args.Error(1)
}

type MockTaskScheduler struct {
	mock.Mock
}

func (m *MockTaskScheduler) Enqueue(ctx context.Context, jobType tasks.JobType, payload any, notBefore time.Time) error {
	args := m.Called(ctx, jobType, payload, notBefore)
	return args.Error(0)
}

type serviceMocks struct {
	repo          *MockRepository
	users         *MockUserRepository
	contributions *MockContributionReader
	addresses     *MockAddressValidator
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		repo:          new(MockRepository),
		users:         new(MockUserRepository),
		contributions: new(MockContributionReader),
		addresses:     new(MockAddressValidator),
	}
	logger := zap.NewNop()
	mailer := mail.NewDispatcher(mail.NewLogChannel(logger), logger)
	service := NewService(m.repo, m.users, m.contributions, m.addresses, mailer, testLimits(), logger)
	return service, m
}

func teamMember(id uuid.UUID) users.User {
	return users.User{
		ID:            id,
		DisplayName:   "Maintainer",
		EmailAddress:  "maintainer@example.com",
		EmailSettings: users.SubscriptionAll,
	}
}

func TestSubmitForApprovalParksInStakingWhenUnderTarget(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Team = []users.User{teamMember(memberID)}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.addresses.On("ValidateAddress", ctx, p.PayoutAddress).Return(true, nil)
	m.contributions.On("AmountStaked", ctx, p.ID).Return(decimal.RequireFromString("4"), nil)
	m.repo.On("Update", ctx, p).Return(nil)

	result, err := service.SubmitForApproval(ctx, p.ID, memberID)

	require.NoError(t, err)
	assert.Equal(t, StatusStaking, result.Status)
	m.repo.AssertExpectations(t)
}

func TestSubmitForApprovalMovesToPendingOnceStaked(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Team = []users.User{teamMember(memberID)}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.addresses.On("ValidateAddress", ctx, p.PayoutAddress).Return(true, nil)
	m.contributions.On("AmountStaked", ctx, p.ID).Return(decimal.RequireFromString("10"), nil)
	m.repo.On("Update", ctx, p).Return(nil)
	m.users.On("ListAdmins", ctx).Return([]*users.User{}, nil)

	result, err := service.SubmitForApproval(ctx, p.ID, memberID)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
}

func TestSubmitForApprovalRejectsNonTeamMember(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Team = []users.User{teamMember(uuid.New())}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)

	_, err := service.SubmitForApproval(ctx, p.ID, uuid.New())

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSubmitForApprovalRejectsLiveProposal(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusLive
	p.Team = []users.User{teamMember(memberID)}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.addresses.On("ValidateAddress", ctx, p.PayoutAddress).Return(true, nil)
	m.contributions.On("AmountStaked", ctx, p.ID).Return(decimal.Zero, nil)

	_, err := service.SubmitForApproval(ctx, p.ID, memberID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestSubmitForApprovalRejectsInvalidPayoutAddress(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Team = []users.User{teamMember(memberID)}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.addresses.On("ValidateAddress", ctx, p.PayoutAddress).Return(false, nil)

	_, err := service.SubmitForApproval(ctx, p.ID, memberID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSetPendingWhenReadyAdvancesOnceStaked(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusStaking

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.contributions.On("AmountStaked", ctx, p.ID).Return(decimal.RequireFromString("10"), nil)
	m.repo.On("Update", ctx, p).Return(nil)
	m.users.On("ListAdmins", ctx).Return([]*users.User{}, nil)

	err := service.SetPendingWhenReady(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
}

func TestSetPendingWhenReadyNoOpWhileShort(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusStaking

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.contributions.On("AmountStaked", ctx, p.ID).Return(decimal.RequireFromString("5"), nil)

	err := service.SetPendingWhenReady(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, StatusStaking, p.Status)
	m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestApproveDiscussionOpensPendingProposal(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusPending
	p.Team = []users.User{teamMember(uuid.New())}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.repo.On("Update", ctx, p).Return(nil)

	result, err := service.ApproveDiscussion(ctx, p.ID, true, "")

	require.NoError(t, err)
	assert.Equal(t, StatusDiscussion, result.Status)
}

func TestApproveDiscussionRejectRequiresReason(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusPending

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)

	_, err := service.ApproveDiscussion(ctx, p.ID, false, "")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, StatusPending, p.Status)
}

func TestAcceptProposalWithFundingFullyFundsViaBounty(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusDiscussion
	p.Team = []users.User{teamMember(uuid.New())}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.repo.On("Update", ctx, p).Return(nil)

	result, err := service.AcceptProposal(ctx, p.ID, true)

	require.NoError(t, err)
	assert.Equal(t, StatusLive, result.Status)
	assert.Equal(t, StageWIP, result.Stage)
	assert.True(t, result.ContributionBounty.Equal(result.TargetAmount))
	assert.NotNil(t, result.DatePublished)
	assert.NotNil(t, result.DateApproved)
}

func TestAcceptProposalSchedulesFirstMilestoneReminder(t *testing.T) {
	service, m := newTestService()
	scheduler := new(MockTaskScheduler)
	service.SetScheduler(scheduler)

	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusDiscussion
	p.Team = []users.User{teamMember(uuid.New())}
	p.Milestones[0].ID = uuid.New()

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.repo.On("Update", ctx, p).Return(nil)
	scheduler.On("Enqueue", ctx, tasks.JobMilestoneDeadline,
		milestoneDeadlinePayload{ProposalID: p.ID, MilestoneID: p.Milestones[0].ID},
		mock.AnythingOfType("time.Time")).Return(nil)

	_, err := service.AcceptProposal(ctx, p.ID, true)

	require.NoError(t, err)
	scheduler.AssertExpectations(t)
}

func TestAcceptProposalRejectsOutsideDiscussion(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)

	_, err := service.AcceptProposal(ctx, p.ID, false)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCancelNotifiesTeamAndContributors(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusLive
	p.Stage = StageWIP
	p.Team = []users.User{teamMember(uuid.New())}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.repo.On("Update", ctx, p).Return(nil)
	m.contributions.On("ConfirmedContributors", ctx, p.ID).
		Return([]users.User{teamMember(uuid.New())}, nil)

	result, err := service.Cancel(ctx, p.ID)

	require.NoError(t, err)
	assert.Equal(t, StageCanceled, result.Stage)
	m.contributions.AssertExpectations(t)
}

func TestDeleteRejectsPublishedProposal(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	memberID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Status = StatusLive
	p.Team = []users.User{teamMember(memberID)}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)

	err := service.Delete(ctx, p.ID, memberID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	m.repo.AssertNotCalled(t, "DeleteCascade", mock.Anything, mock.Anything)
}

func TestNominateArbiterRejectsTeamMember(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	nomineeID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Team = []users.User{teamMember(nomineeID)}
	p.Arbiter = &ProposalArbiter{ProposalID: p.ID, Status: ArbiterMissing}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)

	_, err := service.NominateArbiter(ctx, p.ID, nomineeID)

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	m.repo.AssertNotCalled(t, "SaveArbiter", mock.Anything, mock.Anything)
}

func TestAcceptArbiterNominationDeclineClearsNominee(t *testing.T) {
	service, m := newTestService()
	ctx := context.Background()
	nomineeID := uuid.New()
	p := publishableProposal()
	p.ID = uuid.New()
	p.Arbiter = &ProposalArbiter{ProposalID: p.ID, Status: ArbiterNominated, UserID: &nomineeID}

	m.repo.On("GetByID", ctx, p.ID).Return(p, nil)
	m.repo.On("SaveArbiter", ctx, p.Arbiter).Return(nil)

	arbiter, err := service.AcceptArbiterNomination(ctx, p.ID, nomineeID, false)

	require.NoError(t, err)
	assert.Equal(t, ArbiterMissing, arbiter.Status)
	assert.Nil(t, arbiter.UserID)
}
