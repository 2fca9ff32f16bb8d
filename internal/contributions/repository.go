package contributions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"grantflow/grant-portal-backend/internal/users"
	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Repository provides access to contribution records.
type Repository interface {
	Create(ctx context.Context, c *Contribution) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contribution, error)
	Update(ctx context.Context, c *Contribution) error

	// GetExistingPending is the idempotency lookup used before creating a
	// pledge: at most one PENDING contribution per (user, proposal, amount,
	// privacy). A nil result means no match.
	GetExistingPending(ctx context.Context, userID, proposalID uuid.UUID, amount decimal.Decimal, private bool) (*Contribution, error)

	// GetPendingStaking returns the user's open staking contribution for a
	// proposal, or nil.
	GetPendingStaking(ctx context.Context, proposalID, userID uuid.UUID) (*Contribution, error)

	SumConfirmed(ctx context.Context, proposalID uuid.UUID, staking bool) (decimal.Decimal, error)
	ConfirmedContributors(ctx context.Context, proposalID uuid.UUID) ([]users.User, error)

	ListPendingIDs(ctx context.Context) ([]uuid.UUID, error)
	LatestConfirmedTxID(ctx context.Context) (string, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed contribution repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, c *Contribution) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Contribution, error) {
	var c Contribution
	err := r.db.WithContext(ctx).Preload("User").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("contribution %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) Update(ctx context.Context, c *Contribution) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *gormRepository) GetExistingPending(ctx context.Context, userID, proposalID uuid.UUID, amount decimal.Decimal, private bool) (*Contribution, error) {
	var c Contribution
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND proposal_id = ? AND amount = ? AND private = ? AND status = ?",
			userID, proposalID, amount, private, StatusPending).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) GetPendingStaking(ctx context.Context, proposalID, userID uuid.UUID) (*Contribution, error) {
	var c Contribution
	err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND user_id = ? AND staking = ? AND status = ?",
			proposalID, userID, true, StatusPending).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) SumConfirmed(ctx context.Context, proposalID uuid.UUID, staking bool) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&Contribution{}).
		Select("SUM(amount)").
		Where("proposal_id = ? AND staking = ? AND status = ?", proposalID, staking, StatusConfirmed).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *gormRepository) ConfirmedContributors(ctx context.Context, proposalID uuid.UUID) ([]users.User, error) {
	var out []users.User
	err := r.db.WithContext(ctx).
		Model(&users.User{}).
		Distinct("users.*").
		Joins("JOIN contributions ON contributions.user_id = users.id").
		Where("contributions.proposal_id = ? AND contributions.status = ?", proposalID, StatusConfirmed).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) ListPendingIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&Contribution{}).
		Where("status = ?", StatusPending).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *gormRepository) LatestConfirmedTxID(ctx context.Context) (string, error) {
	var c Contribution
	err := r.db.WithContext(ctx).
		Where("status = ? AND tx_id <> ''", StatusConfirmed).
		Order("date_confirmed desc").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.TxID, nil
}
