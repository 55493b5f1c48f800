package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"task-service/internal/domain"
	"task-service/internal/repository"
)

// Gate scopes every task lookup to the calling user. A task owned by someone
// else is reported exactly like a missing one.
type Gate struct {
	tasks repository.OwnedRepository[domain.Task]
}

func NewGate(tasks repository.OwnedRepository[domain.Task]) *Gate {
	return &Gate{tasks: tasks}
}

func (g *Gate) Fetch(ctx context.Context, caller *domain.User, id uuid.UUID) (*domain.Task, error) {
	task, err := g.tasks.GetOwned(ctx, caller.ID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (g *Gate) List(ctx context.Context, caller *domain.User, page domain.Page) ([]domain.Task, error) {
	page = page.Normalize()
	return g.tasks.ListOwned(ctx, caller.ID, page.Offset(), page.Limit())
}

func (g *Gate) Remove(ctx context.Context, caller *domain.User, id uuid.UUID) error {
	return notFound(g.tasks.DeleteOwned(ctx, caller.ID, id))
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrTaskNotFound
	}
	return err
}
