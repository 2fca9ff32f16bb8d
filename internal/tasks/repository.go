package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository provides access to the task queue.
type Repository interface {
	Create(ctx context.Context, task *Task) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed task repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, task *Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *gormRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*Task, error) {
	var due []*Task
	err := r.db.WithContext(ctx).
		Where("not_before <= ? AND executed_at IS NULL AND failed_at IS NULL", now).
		Order("not_before asc").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	return due, nil
}

func (r *gormRepository) MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Update("executed_at", at).Error
}

func (r *gormRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).
		Updates(map[string]any{"failed_at": at, "last_error": errMsg}).Error
}
