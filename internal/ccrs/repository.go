package ccrs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Repository defines the interface for CCR data access
type Repository interface {
	Create(ctx context.Context, ccr *CCR) error
	GetByID(ctx context.Context, id uuid.UUID) (*CCR, error)
	Update(ctx context.Context, ccr *CCR) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStatus(ctx context.Context, status Status) ([]*CCR, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*CCR, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed CCR repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, ccr *CCR) error {
	return r.db.WithContext(ctx).Create(ccr).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*CCR, error) {
	var ccr CCR
	err := r.db.WithContext(ctx).
		Preload("Author").
		First(&ccr, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ccr not found")
		}
		return nil, err
	}
	return &ccr, nil
}

func (r *gormRepository) Update(ctx context.Context, ccr *CCR) error {
	return r.db.WithContext(ctx).Save(ccr).Error
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&CCR{}, "id = ?", id).Error
}

func (r *gormRepository) ListByStatus(ctx context.Context, status Status) ([]*CCR, error) {
	var ccrs []*CCR
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&ccrs).Error
	return ccrs, err
}

func (r *gormRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*CCR, error) {
	var ccrs []*CCR
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&ccrs).Error
	return ccrs, err
}
