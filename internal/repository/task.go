package repository

import (
	"context"

	"github.com/google/uuid"

	"task-service/internal/domain"
)

// TaskRepository exposes persistence operations for Task aggregates.
type TaskRepository interface {
	Repository[domain.Task]
	OwnedRepository[domain.Task]
	// UpdateStatus moves the owner's task from one status to another and
	// returns ErrStale when the stored status is no longer from.
	UpdateStatus(ctx context.Context, owner, id uuid.UUID, from, to domain.TaskStatus) (*domain.Task, error)
}
