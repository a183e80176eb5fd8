package ports

import (
	"context"
	"taskbroker/internal/domain"
)

type TaskStore interface {
	// Save inserts a new task and returns it with its assigned id.
	Save(ctx context.Context, t domain.Task) (domain.Task, error)
	FindByID(ctx context.Context, id int64) (*domain.Task, error)
	// Update persists t only if the stored status still equals from.
	// It returns domain.ErrStaleState otherwise.
	Update(ctx context.Context, t domain.Task, from domain.TaskStatus) error
	CountByStatus(ctx context.Context, s domain.TaskStatus) (int64, error)
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]domain.Task, error)
}
