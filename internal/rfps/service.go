package rfps

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service coordinates RFP lifecycle operations.
type Service struct {
	repo            Repository
	closingDuration time.Duration
	logger          *zap.Logger
}

// NewService creates a new RFP service
func NewService(repo Repository, closingDuration time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:            repo,
		closingDuration: closingDuration,
		logger:          logger,
	}
}

// Detail is an RFP together with the accepted proposals it solicited.
type Detail struct {
	RFP       *RFP               `json:"rfp"`
	Proposals []*ProposalSummary `json:"proposals"`
}

// CreateFromCCR opens a live RFP seeded from an approved community change
// request, under the id the approver already linked. The closing date is set
// relative to approval time.
func (s *Service) CreateFromCCR(ctx context.Context, rfpID, ccrID uuid.UUID, title, brief, content string) error {
	now := time.Now()
	closes := now.Add(s.closingDuration)

	rfp := &RFP{
		ID:         rfpID,
		Title:      title,
		Brief:      brief,
		Content:    content,
		Category:   CategoryGrant,
		Status:     StatusLive,
		DateOpened: &now,
		DateCloses: &closes,
		CCRID:      &ccrID,
	}

	if err := s.repo.Create(ctx, rfp); err != nil {
		return err
	}

	s.logger.Info("opened rfp from ccr",
		zap.String("rfp_id", rfp.ID.String()),
		zap.String("ccr_id", ccrID.String()),
		zap.Time("closes", closes))

	return nil
}

// Get returns an RFP with its accepted proposals.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	rfp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	proposals, err := s.repo.ListAcceptedProposals(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Detail{RFP: rfp, Proposals: proposals}, nil
}

// ListLive returns the RFPs currently accepting proposals.
func (s *Service) ListLive(ctx context.Context) ([]*RFP, error) {
	live := StatusLive
	return s.repo.List(ctx, &live)
}

// Close marks an RFP as no longer accepting proposals.
func (s *Service) Close(ctx context.Context, id uuid.UUID) error {
	rfp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rfp.Status == StatusClosed {
		return nil
	}

	rfp.Status = StatusClosed
	return s.repo.Update(ctx, rfp)
}

// CloseExpired closes every live RFP whose closing date has passed. Invoked
// from the scheduled task runner.
func (s *Service) CloseExpired(ctx context.Context) error {
	expired, err := s.repo.ListClosable(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, rfp := range expired {
		rfp.Status = StatusClosed
		if err := s.repo.Update(ctx, rfp); err != nil {
			s.logger.Error("failed to close expired rfp",
				zap.String("rfp_id", rfp.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("closed expired rfp", zap.String("rfp_id", rfp.ID.String()))
	}

	return nil
}
