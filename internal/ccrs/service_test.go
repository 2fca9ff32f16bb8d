package ccrs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/mail"
	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, ccr *CCR) error {
	args := m.Called(ctx, ccr)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*CCR, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CCR), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, ccr *CCR) error {
	args := m.Called(ctx, ccr)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListByStatus(ctx context.Context, status Status) ([]*CCR, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]*CCR), args.Error(1)
}

func (m *MockRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*CCR, error) {
	args := m.Called(ctx, authorID)
	return args.Get(0).([]*CCR), args.Error(1)
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

type MockRFPCreator struct {
	mock.Mock
}

func (m *MockRFPCreator) CreateFromCCR(ctx context.Context, rfpID, ccrID uuid.UUID, title, brief, content string) error {
	args := m.Called(ctx, rfpID, ccrID, title, brief, content)
	return args.Error(0)
}

func newTestService(repo Repository, userRepo users.Repository, rfps RFPCreator) *Service {
	logger := zap.NewNop()
	mailer := mail.NewDispatcher(mail.NewLogChannel(logger), logger)
	return NewService(repo, userRepo, rfps, mailer, decimal.RequireFromString("10000000"), logger)
}

func testAuthor(id uuid.UUID) *users.User {
	return &users.User{
		ID:            id,
		EmailAddress:  "author@example.com",
		EmailSettings: users.SubscriptionAll,
	}
}

func TestSubmitForApprovalMovesDraftToPending(t *testing.T) {
	mockRepo := new(MockRepository)
	mockUsers := new(MockUserRepository)
	service := newTestService(mockRepo, mockUsers, new(MockRFPCreator))

	ctx := context.Background()
	authorID := uuid.New()
	ccr := &CCR{
		ID:           uuid.New(),
		AuthorID:     authorID,
		Title:        "Improve wallet tooling",
		Brief:        "Better dev experience for wallet authors",
		Content:      "Long form pitch",
		TargetAmount: decimal.RequireFromString("500"),
		Status:       StatusDraft,
	}

	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*ccrs.CCR")).Return(nil)
	mockUsers.On("ListAdmins", ctx).Return([]*users.User{testAuthor(uuid.New())}, nil)
	mockUsers.On("GetByID", ctx, authorID).Return(testAuthor(authorID), nil)

	updated, err := service.SubmitForApproval(ctx, ccr.ID, authorID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	mockRepo.AssertExpectations(t)
}

func TestSubmitForApprovalRejectsNonAuthor(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserRepository), new(MockRFPCreator))

	ctx := context.Background()
	ccr := &CCR{ID: uuid.New(), AuthorID: uuid.New(), Status: StatusDraft}
	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)

	_, err := service.SubmitForApproval(ctx, ccr.ID, uuid.New())
	assert.True(t, apperrors.IsValidation(err))
}

func TestSubmitForApprovalRejectsLive(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserRepository), new(MockRFPCreator))

	ctx := context.Background()
	authorID := uuid.New()
	ccr := &CCR{ID: uuid.New(), AuthorID: authorID, Status: StatusLive}
	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)

	_, err := service.SubmitForApproval(ctx, ccr.ID, authorID)
	assert.True(t, apperrors.IsValidation(err))
}

func TestReviewPendingApprovalOpensRFP(t *testing.T) {
	mockRepo := new(MockRepository)
	mockUsers := new(MockUserRepository)
	mockRFPs := new(MockRFPCreator)
	service := newTestService(mockRepo, mockUsers, mockRFPs)

	ctx := context.Background()
	authorID := uuid.New()
	ccr := &CCR{
		ID:       uuid.New(),
		AuthorID: authorID,
		Title:    "Improve wallet tooling",
		Brief:    "Better dev experience",
		Content:  "Long form pitch",
		Status:   StatusPending,
	}
	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*ccrs.CCR")).Return(nil)
	mockRFPs.On("CreateFromCCR", ctx, mock.AnythingOfType("uuid.UUID"), ccr.ID, ccr.Title, ccr.Brief, ccr.Content).Return(nil)
	mockUsers.On("GetByID", ctx, authorID).Return(testAuthor(authorID), nil)

	updated, err := service.ReviewPending(ctx, ccr.ID, ReviewRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, StatusLive, updated.Status)
	require.NotNil(t, updated.RFPID)
	mockRFPs.AssertExpectations(t)
}

func TestReviewPendingRevertsCCRWhenRFPCreationFails(t *testing.T) {
	mockRepo := new(MockRepository)
	mockUsers := new(MockUserRepository)
	mockRFPs := new(MockRFPCreator)
	service := newTestService(mockRepo, mockUsers, mockRFPs)

	ctx := context.Background()
	ccr := &CCR{
		ID:       uuid.New(),
		AuthorID: uuid.New(),
		Title:    "Improve wallet tooling",
		Brief:    "Better dev experience",
		Content:  "Long form pitch",
		Status:   StatusPending,
	}

	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*ccrs.CCR")).Return(nil)
	mockRFPs.On("CreateFromCCR", ctx, mock.AnythingOfType("uuid.UUID"), ccr.ID, ccr.Title, ccr.Brief, ccr.Content).
		Return(errors.New("rfp store unavailable"))

	_, err := service.ReviewPending(ctx, ccr.ID, ReviewRequest{Approve: true})

	require.Error(t, err)
	assert.Equal(t, StatusPending, ccr.Status)
	assert.Nil(t, ccr.RFPID)
	mockRepo.AssertNumberOfCalls(t, "Update", 2)
	mockUsers.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestReviewPendingRejectRequiresReason(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserRepository), new(MockRFPCreator))

	ctx := context.Background()
	ccr := &CCR{ID: uuid.New(), AuthorID: uuid.New(), Status: StatusPending}
	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)

	_, err := service.ReviewPending(ctx, ccr.ID, ReviewRequest{Approve: false})
	assert.True(t, apperrors.IsValidation(err))
}

func TestReviewPendingRejectKeepsReason(t *testing.T) {
	mockRepo := new(MockRepository)
	mockUsers := new(MockUserRepository)
	service := newTestService(mockRepo, mockUsers, new(MockRFPCreator))

	ctx := context.Background()
	authorID := uuid.New()
	ccr := &CCR{ID: uuid.New(), AuthorID: authorID, Title: "T", Status: StatusPending}

	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)
	mockRepo.On("Update", ctx, mock.AnythingOfType("*ccrs.CCR")).Return(nil)
	mockUsers.On("GetByID", ctx, authorID).Return(testAuthor(authorID), nil)

	updated, err := service.ReviewPending(ctx, ccr.ID, ReviewRequest{Approve: false, Reason: "scope too broad"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, updated.Status)
	assert.Equal(t, "scope too broad", updated.RejectReason)
}

func TestUpdateDraftRejectsOversizedTitle(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserRepository), new(MockRFPCreator))

	ctx := context.Background()
	authorID := uuid.New()
	ccr := &CCR{ID: uuid.New(), AuthorID: authorID, Status: StatusDraft}
	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)

	long := make([]byte, MaxTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := service.UpdateDraft(ctx, ccr.ID, authorID, DraftRequest{Title: string(long)})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDeleteRejectsLive(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, new(MockUserRepository), new(MockRFPCreator))

	ctx := context.Background()
	authorID := uuid.New()
	ccr := &CCR{ID: uuid.New(), AuthorID: authorID, Status: StatusLive}
	mockRepo.On("GetByID", ctx, ccr.ID).Return(ccr, nil)

	err := service.Delete(ctx, ccr.ID, authorID)
	assert.True(t, apperrors.IsValidation(err))
}
