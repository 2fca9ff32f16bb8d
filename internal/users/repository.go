package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

// Repository provides access to user records.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListAdmins(ctx context.Context) ([]*User, error)
	UpdateEmailSettings(ctx context.Context, id uuid.UUID, settings Subscription) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed user repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, "email_address = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("user with email %s not found", email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) ListAdmins(ctx context.Context) ([]*User, error) {
	var admins []*User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *gormRepository) UpdateEmailSettings(ctx context.Context, id uuid.UUID, settings Subscription) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("email_settings", settings)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("user %s not found", id)
	}
	return nil
}
